package commands

import (
	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/app"
	"github.com/tally-dev/tally/internal/buildinfo"
	"github.com/tally-dev/tally/internal/config"
	"github.com/tally-dev/tally/internal/logger"
)

type rootOptions struct {
	configPath string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "tally",
		Short:   "Personal finance ledger for bank and card exports",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.FileName, "path to tally.yaml")

	rootCmd.AddCommand(
		newInitCommand(),
		newWatchCommand(opts),
		newConvertCommand(opts),
		newLoadCommand(opts),
		newSessionCommand(opts),
		newCategoryCommand(opts),
		newMergeCommand(opts),
		newSummaryCommand(opts),
		newReportCommand(opts),
		newHistoryCommand(opts),
	)

	return rootCmd
}

// open loads the config and application state for a command. The logger
// built from the config is stored in the command's context.
func (o *rootOptions) open(cmd *cobra.Command) (*app.State, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	log := logger.NewWithOptions(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	cmd.SetContext(logger.WithContext(cmd.Context(), log))
	return app.Open(cfg, log)
}
