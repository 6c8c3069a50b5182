package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bankero/internal/ledger"
)

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance [account-prefix]",
		Short: "Show balances per account and commodity",
		Long: `Sum the postings of every event in the current workspace.

Example:
  bankero balance
  bankero balance assets`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return runBalance(rootOpts, prefix, cmd)
		},
	}
	return cmd
}

type balanceRow struct {
	Account   string `json:"account"`
	Commodity string `json:"commodity"`
	Amount    string `json:"amount"`
}

func runBalance(opts *RootOptions, prefix string, cmd *cobra.Command) error {
	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	events, err := a.store.ListEvents(cmd.Context())
	if err != nil {
		return err
	}

	rows := []balanceRow{}
	for _, b := range ledger.Balances(events, prefix) {
		rows = append(rows, balanceRow{Account: b.Account, Commodity: b.Commodity, Amount: b.Amount.String()})
	}
	return a.formatter(cmd).Success(rows, func(w io.Writer) {
		if len(rows) == 0 {
			fmt.Fprintln(w, "(no balances)")
			return
		}
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Account, r.Commodity, r.Amount)
		}
	})
}
