package skytoml

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/albertocavalcante/skytoml/internal/starlark/runner"
)

// runWatch runs every script once, then re-runs affected scripts whenever a
// script, a module it loads, or a file it reads changes. Deleted scripts
// are dropped from the watch set. It returns when ctx is done.
func runWatch(ctx context.Context, opts *options) error {
	watcher, err := runner.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	r := newRunner(opts)
	rerun := func(file string) {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			opts.logger.Info("script removed", zap.String("file", file))
			if err := watcher.Remove(file); err != nil {
				opts.logger.Warn("cannot unwatch script", zap.String("file", file), zap.Error(err))
			}
			return
		}
		result := runOne(ctx, r, file, opts)
		if err := watcher.Track(result.Result); err != nil {
			opts.logger.Warn("cannot watch script", zap.String("file", file), zap.Error(err))
		}
	}

	for _, file := range opts.files {
		rerun(file)
	}
	writef(opts.stdout, "Watching %d script(s). Press Ctrl+C to stop.\n", len(watcher.WatchedScripts()))

	for {
		select {
		case <-ctx.Done():
			writeln(opts.stdout, "Stopping watch mode.")
			return nil

		case event := <-watcher.Events:
			opts.logger.Info("file changed",
				zap.String("file", event.File),
				zap.Strings("affected", event.Affected),
			)
			for _, file := range event.Affected {
				rerun(file)
			}

		case err := <-watcher.Errors:
			opts.logger.Warn("watcher error", zap.Error(err))
		}
	}
}
