package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/report"
)

func newSummaryCommand(opts *rootOptions) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print monthly and per-category totals for the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			if month != "" {
				outflows, inflows, err := st.MonthTotals(month)
				if err != nil {
					return err
				}
				printTotals(cmd, "Outflow by category, "+month, outflows)
				printTotals(cmd, "Inflow by category, "+month, inflows)
				return nil
			}
			sum := st.Summary(time.Now())

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "MONTH\tOUTFLOW\tINFLOW\tNET\t")
			for _, m := range sum.Months {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", m.Month, m.Outflow.StringFixed(2), m.Inflow.StringFixed(2), m.Net.StringFixed(2))
			}
			fmt.Fprintln(tw, "\t\t\t\t")
			fmt.Fprintf(tw, "All time (%d)\t%s\t%s\t%s\t\n", sum.All.Count, sum.All.Outflow.StringFixed(2), sum.All.Inflow.StringFixed(2), sum.All.Net.StringFixed(2))
			fmt.Fprintf(tw, "This month (%d)\t%s\t%s\t%s\t\n", sum.Current.Count, sum.Current.Outflow.StringFixed(2), sum.Current.Inflow.StringFixed(2), sum.Current.Net.StringFixed(2))
			if err := tw.Flush(); err != nil {
				return err
			}

			printTotals(cmd, "Outflow by category", sum.Outflows)
			printTotals(cmd, "Inflow by category", sum.Inflows)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "only show category totals for this month (YYYY-MM)")
	return cmd
}

func printTotals(cmd *cobra.Command, title string, totals []report.CategoryTotal) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%s\n", title)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, ct := range totals {
		fmt.Fprintf(tw, "  %s\t%s\n", ct.Category, ct.Amount.StringFixed(2))
	}
	_ = tw.Flush()
}
