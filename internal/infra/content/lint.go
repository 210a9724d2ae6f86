package content

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/osa030/narrator/internal/domain/dialog"
)

// Catalog is the read side of a content store that can enumerate sequences.
type Catalog interface {
	ListSequences() ([]string, error)
	LoadSequence(ctx context.Context, name string) (*dialog.Sequence, error)
	LoadClip(ctx context.Context, name string) (*dialog.Clip, error)
}

// Issue is a problem found in stored content.
type Issue struct {
	Sequence string
	Message  string
}

// String returns the issue as a single line.
func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Sequence, i.Message)
}

// lintConcurrency bounds the number of sequences checked at once.
const lintConcurrency = 8

// Lint loads every sequence and reports unresolvable clips and
// sequence references. The returned error is for I/O failures only.
func Lint(ctx context.Context, catalog Catalog) ([]Issue, error) {
	names, err := catalog.ListSequences()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sequences")
	}

	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	var (
		mu     sync.Mutex
		issues []Issue
	)
	report := func(seq, format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		issues = append(issues, Issue{Sequence: seq, Message: fmt.Sprintf(format, args...)})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lintConcurrency)

	for _, name := range names {
		g.Go(func() error {
			seq, err := catalog.LoadSequence(gctx, name)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					report(name, "cannot be loaded: %v", err)
					return nil
				}
				return err
			}

			for _, kind := range dialog.EventKinds {
				for _, clipName := range seq.Clips(kind) {
					if _, err := catalog.LoadClip(gctx, clipName); err != nil {
						if !errors.Is(err, ErrNotFound) {
							return err
						}
						report(name, "%s clip %q cannot be loaded", kind, clipName)
					}
				}
			}

			if seq.PreviousSequence != "" && !known[seq.PreviousSequence] {
				report(name, "previous sequence %q does not exist", seq.PreviousSequence)
			}
			if seq.NextSequence != "" && !known[seq.NextSequence] {
				report(name, "next sequence %q does not exist", seq.NextSequence)
			}
			if seq.Persistent && len(seq.Clips(dialog.EventReturn)) == 0 {
				report(name, "persistent sequence has no return clips")
			}
			if seq.MinTime > 0 && seq.MaxTime > 0 && seq.MinTime >= seq.MaxTime {
				report(name, "min_time %v is not below max_time %v", seq.MinTime, seq.MaxTime)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Sequence != issues[j].Sequence {
			return issues[i].Sequence < issues[j].Sequence
		}
		return issues[i].Message < issues[j].Message
	})
	return issues, nil
}
