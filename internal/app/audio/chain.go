package audio

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/narrator/internal/domain/dialog"
)

// NamedSource wraps a source with its display name.
type NamedSource struct {
	Source      Source
	DisplayName string
}

// Chain tries multiple sources in order until one returns a resource.
type Chain struct {
	sources []NamedSource
}

// NewChain creates a new source chain.
func NewChain(sources []NamedSource) *Chain {
	return &Chain{
		sources: sources,
	}
}

// Fetch returns the first resource any source can provide.
func (c *Chain) Fetch(ctx context.Context, clip dialog.Clip) (*Resource, error) {
	for i, ns := range c.sources {
		res, err := ns.Source.Fetch(ctx, clip)
		if err == nil {
			zlog.Debug().Msgf("audio: resolved clip: clip=%s source=%s duration=%v", clip.Name, ns.DisplayName, res.Duration)
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if errors.Is(err, ErrNoResource) {
			zlog.Debug().Msgf("audio: source has no resource: index=%d source=%s clip=%s", i+1, ns.DisplayName, clip.Name)
		} else {
			zlog.Warn().Msgf("audio: source failed, trying next: source=%s clip=%s error=%v", ns.DisplayName, clip.Name, err)
		}
	}

	return nil, errors.Wrapf(ErrNoResource, "all sources failed for clip %q", clip.Name)
}

// Name returns the chain name.
func (c *Chain) Name() string {
	return "chain"
}

// Len returns the number of sources in the chain.
func (c *Chain) Len() int {
	return len(c.sources)
}
