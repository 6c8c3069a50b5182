package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/bankero/internal/ledger"
)

// EventOptions are the flags shared by commands that write an event.
type EventOptions struct {
	Note        string
	Tags        []string
	Category    string
	Confirm     bool
	EffectiveAt string
	AsOf        string
	Basis       string
}

func (o *EventOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Note, "note", "m", "", "free-form note")
	cmd.Flags().StringArrayVar(&o.Tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&o.Category, "category", "", "category")
	cmd.Flags().BoolVar(&o.Confirm, "confirm", false, "ask before writing the event")
	cmd.Flags().StringVar(&o.EffectiveAt, "effective-at", "", "financial time (RFC3339, default now)")
	cmd.Flags().StringVar(&o.AsOf, "as-of", "", "rate resolution time (RFC3339, default --effective-at)")
	cmd.Flags().StringVarP(&o.Basis, "basis", "b", "", `intrinsic value: "@provider" or "<amount> <COMMODITY>"`)
}

// DepositOptions holds flags for the deposit command.
type DepositOptions struct {
	*RootOptions
	EventOptions
	From string
	To   string
}

// NewDepositCommand creates the deposit command.
func NewDepositCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DepositOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deposit <amount> <commodity> --from <account> --to <account> [@provider[:rate]]",
		Short: "Record money arriving in an account",
		Long: `Record a deposit: amount of commodity leaves --from and arrives in --to.

Example:
  bankero deposit 100 USD --from income:salary --to assets:cash
  bankero deposit 2500 VES --from income:gift --to assets:bank @bcv:45.2`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeposit(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "source account (required)")
	cmd.Flags().StringVar(&opts.To, "to", "", "destination account (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	opts.EventOptions.register(cmd)

	return cmd
}

type writeResult struct {
	EventID  string `json:"event_id"`
	Database string `json:"database"`
	Written  bool   `json:"written"`
}

func runDeposit(opts *DepositOptions, args []string, cmd *cobra.Command) error {
	in, err := parseDepositInput(opts, args)
	if err != nil {
		return err
	}

	a, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	event, err := ledger.NewDeposit(a.ids(), a.clock(), a.cfg.Scope(), in)
	if err != nil {
		return err
	}

	res := writeResult{EventID: event.ID.String(), Database: a.paths.WorkspaceDB(a.cfg.CurrentWorkspace)}
	if opts.Confirm && !promptYesNo(cmd.InOrStdin(), cmd.ErrOrStderr(), "Proceed? [Y/n] ") {
		return a.formatter(cmd).Success(res, func(w io.Writer) {
			fmt.Fprintf(w, "Discarded event %s\n", res.EventID)
		})
	}

	if err := a.store.AppendEvent(cmd.Context(), event); err != nil {
		return err
	}
	res.Written = true
	a.log.Debug("event written", "id", event.ID, "action", event.Payload.Action)

	return a.formatter(cmd).Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "Wrote event %s to %s\n", res.EventID, res.Database)
	})
}

func parseDepositInput(opts *DepositOptions, args []string) (ledger.DepositInput, error) {
	amount, err := parseDecimal(args[0], "amount")
	if err != nil {
		return ledger.DepositInput{}, err
	}
	in := ledger.DepositInput{
		Amount:    amount,
		Commodity: strings.TrimSpace(args[1]),
		From:      opts.From,
		To:        opts.To,
		Tags:      opts.Tags,
		Confirm:   opts.Confirm,
	}

	if len(args) == 3 {
		token, ok := ledger.ParseProviderToken(args[2])
		if !ok {
			return in, NewExitError(ExitCommandError,
				fmt.Sprintf("Invalid provider. Expected @provider or @provider:rate, got: %s", args[2]))
		}
		in.Provider = &token
	}

	if in.EffectiveAt, err = parseOptionalTime(opts.EffectiveAt, "--effective-at"); err != nil {
		return in, err
	}
	if in.AsOf, err = parseOptionalTime(opts.AsOf, "--as-of"); err != nil {
		return in, err
	}
	if opts.Note != "" {
		in.Note = &opts.Note
	}
	if opts.Category != "" {
		in.Category = &opts.Category
	}
	if opts.Basis != "" {
		basis, err := ledger.ParseBasis(opts.Basis)
		if err != nil {
			return in, WrapExitError(ExitCommandError, "invalid --basis", err)
		}
		in.Basis = basis
	}
	return in, nil
}

func parseDecimal(raw, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, NewExitError(ExitCommandError, fmt.Sprintf("Invalid decimal for %s: %s", field, raw))
	}
	return d, nil
}

// parseOptionalTime parses an RFC3339 flag value; empty yields the zero time.
func parseOptionalTime(raw, flag string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, NewExitError(ExitCommandError, fmt.Sprintf("Invalid RFC3339 timestamp for %s: %s", flag, raw))
	}
	return t.UTC(), nil
}

// promptYesNo writes prompt to out and reads one answer from in. Blank,
// y and yes accept.
func promptYesNo(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return true
	}
	return false
}
