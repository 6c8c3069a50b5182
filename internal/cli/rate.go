package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/bankero/internal/ledger"
)

// NewRateCommand creates the rate command group.
func NewRateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Record and look up exchange rates",
	}
	cmd.AddCommand(newRateSetCommand(rootOpts))
	cmd.AddCommand(newRateGetCommand(rootOpts))
	cmd.AddCommand(newRateListCommand(rootOpts))
	return cmd
}

type rateRow struct {
	Provider string `json:"provider"`
	Base     string `json:"base"`
	Quote    string `json:"quote"`
	AsOf     string `json:"as_of"`
	Rate     string `json:"rate"`
}

func toRateRow(r ledger.RateFact) rateRow {
	return rateRow{
		Provider: r.Provider,
		Base:     r.Base,
		Quote:    r.Quote,
		AsOf:     r.AsOf.UTC().Format(time.RFC3339Nano),
		Rate:     r.Rate.String(),
	}
}

func (r rateRow) line() string {
	return fmt.Sprintf("%s\t%s/%s\t%s\t%s", r.Provider, r.Base, r.Quote, r.AsOf, r.Rate)
}

// parseProvider accepts "@name" and returns "@name".
func parseProvider(raw string) (string, error) {
	tok, ok := ledger.ParseProviderToken(raw)
	if !ok || tok.OverrideRate.Valid {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("Invalid provider. Expected @provider, got: %s", raw))
	}
	return tok.String(), nil
}

func newRateSetCommand(rootOpts *RootOptions) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "set <@provider> <base> <quote> <rate>",
		Short: "Record a rate (quote per base) as of a point in time",
		Long: `Record a rate. Setting the same provider, pair and --as-of again
replaces the earlier value.

Example:
  bankero rate set @bcv USD VES 45.2 --as-of 2026-02-25T12:00:00Z`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := parseProvider(args[0])
			if err != nil {
				return err
			}
			rate, err := parseDecimal(args[3], "rate")
			if err != nil {
				return err
			}
			at, err := parseOptionalTime(asOf, "--as-of")
			if err != nil {
				return err
			}

			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()
			if at.IsZero() {
				at = a.clock().Now().UTC()
			}

			fact := ledger.RateFact{
				Provider: provider,
				Base:     strings.ToUpper(args[1]),
				Quote:    strings.ToUpper(args[2]),
				AsOf:     at,
				Rate:     rate,
			}
			if err := a.store.UpsertRate(cmd.Context(), fact); err != nil {
				return err
			}
			row := toRateRow(fact)
			return a.formatter(cmd).Success(row, func(w io.Writer) {
				fmt.Fprintf(w, "set\t%s\n", row.line())
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "point in time the rate applies from (RFC3339, default now)")
	return cmd
}

func newRateGetCommand(rootOpts *RootOptions) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "get <@provider> <base> <quote>",
		Short: "Show the latest rate at or before a point in time",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := parseProvider(args[0])
			if err != nil {
				return err
			}
			at, err := parseOptionalTime(asOf, "--as-of")
			if err != nil {
				return err
			}

			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()
			if at.IsZero() {
				at = a.clock().Now().UTC()
			}

			base, quote := strings.ToUpper(args[1]), strings.ToUpper(args[2])
			fact, found, err := a.store.RateAsOf(cmd.Context(), provider, base, quote, at)
			if err != nil {
				return err
			}
			if !found {
				return NewExitError(ExitFailure, fmt.Sprintf("No rate for %s %s/%s as of %s",
					provider, base, quote, at.Format(time.RFC3339Nano)))
			}
			row := toRateRow(fact)
			return a.formatter(cmd).Success(row, func(w io.Writer) {
				fmt.Fprintln(w, row.line())
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "lookup time (RFC3339, default now)")
	return cmd
}

func newRateListCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list <@provider> <base> <quote>",
		Short: "List recorded rates, newest first",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := parseProvider(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			facts, err := a.store.ListRates(cmd.Context(), provider,
				strings.ToUpper(args[1]), strings.ToUpper(args[2]), limit)
			if err != nil {
				return err
			}
			rows := []rateRow{}
			for _, f := range facts {
				rows = append(rows, toRateRow(f))
			}
			return a.formatter(cmd).Success(rows, func(w io.Writer) {
				if len(rows) == 0 {
					fmt.Fprintln(w, "(no rates)")
					return
				}
				for _, r := range rows {
					fmt.Fprintln(w, r.line())
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of rates (0 = all)")
	return cmd
}
