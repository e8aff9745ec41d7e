package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/intake"
	"github.com/tally-dev/tally/internal/logger"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the configured folders and clean new exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			ctrls, err := st.Controllers()
			if err != nil {
				return err
			}
			if len(ctrls) == 0 {
				return errors.New("no watchers configured")
			}
			for _, c := range ctrls {
				if err := os.MkdirAll(c.Location().Dir, 0o755); err != nil {
					return fmt.Errorf("creating watch dir: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log := logger.FromContext(ctx)

			log.Info().Int("watchers", len(ctrls)).Msg("intake started")
			if err := intake.WatchAll(ctx, ctrls); err != nil {
				return err
			}
			log.Info().Msg("intake stopped")
			return nil
		},
	}
}
