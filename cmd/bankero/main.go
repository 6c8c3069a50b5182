// Command bankero is a local-first ledger that syncs between devices.
package main

import (
	"context"
	"os"

	"github.com/roach88/bankero/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
