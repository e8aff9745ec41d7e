package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConvertCommand(opts *rootOptions) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "convert <file>...",
		Short: "Clean export files into the output folder",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				res, err := st.Convert(path, source)
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "%s: %d records -> %s\n", path, res.Records, res.Output)
				for _, is := range res.Issues {
					fmt.Fprintf(out, "  warning: %s\n", is)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "source format (cibc, amex, canonical)")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}
