package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/narrator/internal/app/session"
	"github.com/osa030/narrator/internal/domain/dialog"
	"github.com/osa030/narrator/internal/infra/config"
	"github.com/osa030/narrator/internal/infra/console"
	"github.com/osa030/narrator/internal/infra/content"
)

// play requests each sequence in turn on the console presenter and waits
// for the queue to drain before the next one.
func play(cfg *config.Config, names []string, gap, abortAfter, timeout time.Duration) error {
	presenter := console.New(os.Stdout)
	sessionMgr, err := session.NewManager(cfg, presenter)
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}
	defer sessionMgr.Close()
	if err := sessionMgr.Start(); err != nil {
		return errors.Wrap(err, "failed to start session")
	}

	ctx, stop := signalContext()
	defer stop()

	for i, name := range names {
		if i > 0 && gap > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(gap):
			}
		}

		outcome, err := sessionMgr.PlaySequence(ctx, name)
		if err != nil {
			return err
		}
		presenter.Note("%s: %s", name, outcome)

		var timer *time.Timer
		if abortAfter > 0 {
			timer = time.AfterFunc(abortAfter, func() {
				if aborted, _ := sessionMgr.Abort(ctx); aborted {
					presenter.Note("%s: aborted", name)
				}
			})
		}

		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		err = sessionMgr.WaitIdle(waitCtx)
		cancel()
		if timer != nil {
			timer.Stop()
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "sequence %s did not finish", name)
		}
	}
	return nil
}

// validate lints stored content and fails when any issue is found.
func validate(cfg *config.Config) error {
	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	issues, err := content.Lint(context.Background(), store)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		fmt.Println("No issues found")
		return nil
	}

	fmt.Printf("Found %d issue(s):\n", len(issues))
	for _, issue := range issues {
		fmt.Printf("  %s\n", issue)
	}
	return errors.Newf("%d content issue(s)", len(issues))
}

// exampleText holds the sample line written for each event list.
var exampleText = map[dialog.EventKind]string{
	dialog.EventDefault:   "Some text.",
	dialog.EventInterrupt: "As I was saying...",
	dialog.EventAbort:     "Never mind.",
	dialog.EventEarly:     "You are ahead of yourself.",
	dialog.EventLate:      "Took you long enough.",
	dialog.EventReturn:    "Where was I?",
}

// generateExample writes a sample sequence with one clip per requested
// event list through the store's save path.
func generateExample(cfg *config.Config, name string, events []string) error {
	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	seq := dialog.NewSequence(name)
	for _, ev := range events {
		kind, ok := dialog.ParseEventKind(ev)
		if !ok {
			return errors.Newf("unknown event %q", ev)
		}

		clipName := name + "-" + kind.String()
		clip := &dialog.Clip{
			Name:            clipName,
			AudioResourceID: clipName,
			DisplayText:     exampleText[kind],
		}
		if err := store.SaveClip(clip); err != nil {
			return errors.Wrapf(err, "failed to save example clip %s", clip.Name)
		}
		seq.SetClips(kind, []string{clip.Name})
		fmt.Printf("Saved clip %s\n", clip.Name)
	}

	if err := store.SaveSequence(seq); err != nil {
		return errors.Wrapf(err, "failed to save example sequence %s", name)
	}
	fmt.Printf("Saved sequence %s to %s\n", name, store.SequenceDir())
	return nil
}

func newStore(cfg *config.Config) (*content.FileStore, error) {
	store, err := content.NewFileStore(content.Config{
		Root:        cfg.Content.Root,
		SequenceDir: cfg.Content.SequenceDir,
		ClipDir:     cfg.Content.ClipDir,
		Format:      cfg.Content.Format,
		Cache:       cfg.CacheContent(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create content store")
	}
	return store, nil
}
