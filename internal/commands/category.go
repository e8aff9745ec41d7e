package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCategoryCommand(opts *rootOptions) *cobra.Command {
	categoryCmd := &cobra.Command{
		Use:   "category",
		Short: "Manage the category table",
	}
	categoryCmd.AddCommand(
		newCategoryListCommand(opts),
		newCategoryAddCommand(opts),
		newCategoryLearnCommand(opts),
	)
	return categoryCmd
}

func newCategoryListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories and their keywords",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tKEYWORDS")
			for _, c := range st.Categories.Table().Categories {
				fmt.Fprintf(tw, "%s\t%s\n", c.Name, strings.Join(c.Keywords, ", "))
			}
			return tw.Flush()
		},
	}
}

func newCategoryAddCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			added, err := st.Categories.AddCategory(args[0])
			if err != nil {
				return err
			}
			if !added {
				fmt.Fprintf(cmd.OutOrStdout(), "Category %s already exists\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added category %s\n", args[0])
			return nil
		},
	}
}

func newCategoryLearnCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "learn <category> <keyword>",
		Short: "Teach a category a merchant keyword",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			added, err := st.Categories.Learn(args[0], args[1])
			if err != nil {
				return err
			}
			if !added {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already knows %q\n", args[0], args[1])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now matches %q\n", args[0], args[1])
			return nil
		},
	}
}
