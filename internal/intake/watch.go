package intake

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// Watch subscribes to the location's folder and handles Create and Write
// events until ctx is cancelled. The watch handle is closed on return.
func (c *Controller) Watch(ctx context.Context) error {
	if err := os.MkdirAll(c.loc.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(c.loc.Dir); err != nil {
		return fmt.Errorf("watching %s: %w", c.loc.Dir, err)
	}
	c.log.Info().Str("dir", c.loc.Dir).Str("output", c.loc.OutputDir).Msg("watching")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Str("dir", c.loc.Dir).Msg("watch stopped")
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			c.Handle(Event{Path: ev.Name, IsDir: isDir(ev.Name)})
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.Error().Err(err).Str("dir", c.loc.Dir).Msg("watch error")
		}
	}
}

// WatchAll runs every controller's watch loop concurrently and returns when
// ctx is cancelled or any loop fails to start.
func WatchAll(ctx context.Context, controllers []*Controller) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range controllers {
		g.Go(func() error {
			return c.Watch(ctx)
		})
	}
	return g.Wait()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
