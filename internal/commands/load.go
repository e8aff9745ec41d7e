package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoadCommand(opts *rootOptions) *cobra.Command {
	var (
		source string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Load an export into the session for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			res, err := st.LoadUpload(args[0], source, force)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Skipped {
				fmt.Fprintf(out, "%s is already loaded (%d records); use --force to reload\n", res.Upload, res.Records)
				return nil
			}
			fmt.Fprintf(out, "Loaded %d records from %s\n", res.Records, res.Upload)
			for _, is := range res.Issues {
				fmt.Fprintf(out, "  warning: %s\n", is)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "source format (cibc, amex, canonical)")
	_ = cmd.MarkFlagRequired("source")
	cmd.Flags().BoolVar(&force, "force", false, "reload even if this file is already the session")
	return cmd
}
