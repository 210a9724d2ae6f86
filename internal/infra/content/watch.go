package content

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"
)

// Watch invalidates cached records when their files change.
// It blocks until ctx is cancelled.
func (s *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}
	defer watcher.Close()

	for _, dir := range []string{s.sequenceDir, s.clipDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
		if err := watcher.Add(dir); err != nil {
			return errors.Wrapf(err, "failed to watch %s", dir)
		}
	}
	zlog.Info().Msgf("content: watching for changes: sequences=%s clips=%s", s.sequenceDir, s.clipDir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			zlog.Error().Msgf("content: watcher error: %v", err)
			// Missed events may hide changes
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				s.InvalidateAll()
			}
		}
	}
}

// handleEvent drops the cached record affected by a file event.
func (s *FileStore) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	name, ok := recordName(filepath.Base(event.Name))
	if !ok {
		return
	}

	zlog.Debug().Msgf("content: record changed: op=%s name=%s", event.Op, name)
	s.Invalidate(name)
}
