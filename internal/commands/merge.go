package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMergeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Fold the session into the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			res, err := st.Merge()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d records (%d duplicates dropped); ledger has %d records, learned %d keywords\n",
				res.Merged, res.Dropped, res.Total, res.Learned)
			if res.Commit != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Committed data dir (%s)\n", res.Commit)
			}
			return nil
		},
	}
}
