package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/app"
	"github.com/tally-dev/tally/internal/id"
	"github.com/tally-dev/tally/internal/importer"
	"github.com/tally-dev/tally/internal/model"
)

func newSessionCommand(opts *rootOptions) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Review and edit the loaded records before merging",
	}
	sessionCmd.AddCommand(
		newSessionListCommand(opts),
		newSessionSetCategoryCommand(opts),
		newSessionSetAmountCommand(opts),
		newSessionDeleteCommand(opts),
		newSessionInsertCommand(opts),
		newSessionResetCommand(opts),
	)
	return sessionCmd
}

func newSessionListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List session records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if st.Session.Len() == 0 {
				fmt.Fprintln(out, "Session is empty")
				return nil
			}
			fmt.Fprintf(out, "Upload: %s\n", st.Session.Upload())
			return writeRecordTable(out, st.Session.Records())
		},
	}
}

func writeRecordTable(out io.Writer, records []model.Record) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tMERCHANT\tINFLOW\tOUTFLOW\tSOURCE\tCATEGORY")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			id.ShortID(rec.ID),
			formatDate(rec.Date),
			rec.Merchant,
			formatMoney(rec.Inflow),
			formatMoney(rec.Outflow),
			rec.Source.Label(),
			rec.Category,
		)
	}
	return tw.Flush()
}

func newSessionSetCategoryCommand(opts *rootOptions) *cobra.Command {
	var learn bool

	cmd := &cobra.Command{
		Use:   "set-category <id> <category>",
		Short: "Change the category of a session record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			if err := st.SetCategory(args[0], args[1], learn); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s to %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().BoolVar(&learn, "learn", false, "also learn the merchant as a keyword for the category")
	return cmd
}

func newSessionSetAmountCommand(opts *rootOptions) *cobra.Command {
	var inflow, outflow string

	cmd := &cobra.Command{
		Use:   "set-amount <id>",
		Short: "Replace the amounts of a session record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out, err := parseAmounts(inflow, outflow)
			if err != nil {
				return err
			}
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			if err := st.SetAmount(args[0], in, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&inflow, "inflow", "", "money received")
	cmd.Flags().StringVar(&outflow, "outflow", "", "money spent")
	return cmd
}

func newSessionDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a record from the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			if err := st.DeleteRecord(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newSessionInsertCommand(opts *rootOptions) *cobra.Command {
	var (
		date, description, merchant string
		inflow, outflow             string
		source, category            string
	)

	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Add a record to the session by hand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := time.Parse("2006-01-02", date)
			if err != nil {
				return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", date)
			}
			in, out, err := parseAmounts(inflow, outflow)
			if err != nil {
				return err
			}
			var src model.Source
			if source != "" {
				var ok bool
				if src, ok = model.ParseSource(source); !ok {
					return fmt.Errorf("%w: %q", app.ErrUnknownSource, source)
				}
			}

			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			recordID, err := st.InsertRecord(app.InsertParams{
				Date:        day,
				Description: description,
				Merchant:    merchant,
				Inflow:      in,
				Outflow:     out,
				Source:      src,
				Category:    category,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inserted %s\n", id.ShortID(recordID))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "transaction date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("date")
	cmd.Flags().StringVar(&description, "description", "", "description")
	_ = cmd.MarkFlagRequired("description")
	cmd.Flags().StringVar(&merchant, "merchant", "", "merchant (defaults to description)")
	cmd.Flags().StringVar(&inflow, "inflow", "", "money received")
	cmd.Flags().StringVar(&outflow, "outflow", "", "money spent")
	cmd.Flags().StringVar(&source, "source", "", "source (defaults to canonical)")
	cmd.Flags().StringVar(&category, "category", "", "category (defaults to Uncategorized)")
	return cmd
}

func newSessionResetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard every pending record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			n := st.Session.Len()
			if err := st.ResetSession(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Discarded %d records\n", n)
			return nil
		},
	}
}

func parseAmounts(inflow, outflow string) (in, out decimal.Decimal, err error) {
	if in, err = importer.ParseAmount(inflow); err != nil {
		return in, out, fmt.Errorf("invalid --inflow: %w", err)
	}
	if out, err = importer.ParseAmount(outflow); err != nil {
		return in, out, fmt.Errorf("invalid --outflow: %w", err)
	}
	return in, out, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatMoney(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}
