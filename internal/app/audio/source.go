// Package audio provides audio resource loading for dialog clips.
package audio

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/narrator/internal/domain/dialog"
)

// Errors
var (
	ErrNoResource = errors.New("no audio resource for clip")
	ErrPending    = errors.New("audio request still pending")
)

// Resource is a loaded audio resource.
type Resource struct {
	ID       string        // Resource identifier
	Source   string        // Name of the source that produced it
	Format   string        // Encoding, e.g. "wav" or "pcm"
	Data     []byte        // Encoded audio
	Duration time.Duration // Natural play length
}

// Source is the interface for audio resource sources.
// Different implementations resolve a clip's audio in different ways
// (recorded files, speech synthesis, etc.).
type Source interface {
	// Fetch loads the audio for the given clip.
	// Returns ErrNoResource when the source cannot serve the clip.
	Fetch(ctx context.Context, clip dialog.Clip) (*Resource, error)

	// Name returns the source name (used in config).
	Name() string
}

// Request is an asynchronous handle for a resource fetch.
type Request struct {
	done chan struct{}
	res  *Resource
	err  error
}

// Done returns a channel closed when the fetch has finished.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// IsDone reports whether the fetch has finished.
func (r *Request) IsDone() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Result returns the fetched resource.
// Returns ErrPending while the fetch is still running.
func (r *Request) Result() (*Resource, error) {
	if !r.IsDone() {
		return nil, ErrPending
	}
	return r.res, r.err
}

// Loader issues asynchronous fetches against a source.
type Loader struct {
	source Source
}

// NewLoader creates a new loader.
func NewLoader(source Source) *Loader {
	return &Loader{source: source}
}

// RequestAudioResource starts fetching the clip's audio and returns immediately.
// Cancelling ctx abandons the fetch.
func (l *Loader) RequestAudioResource(ctx context.Context, clip dialog.Clip) *Request {
	r := &Request{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		r.res, r.err = l.source.Fetch(ctx, clip)
	}()
	return r
}
