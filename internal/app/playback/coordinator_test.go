package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/narrator/internal/app/audio"
	"github.com/osa030/narrator/internal/domain/dialog"
)

// fakePresenter records presenter calls in order.
type fakePresenter struct {
	mu    sync.Mutex
	calls []string
	texts []string
}

func (p *fakePresenter) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *fakePresenter) DisplayText(text string) {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	p.mu.Unlock()
	p.record("display")
}

func (p *fakePresenter) ClearText() { p.record("clear") }

func (p *fakePresenter) PlayAudio(res *audio.Resource) time.Duration {
	p.record("play:" + res.ID)
	return res.Duration
}

func (p *fakePresenter) StopAudio() { p.record("stop") }

func (p *fakePresenter) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakePresenter) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

// fakeSource answers fetches with a fixed result, optionally blocking
// until released or cancelled.
type fakeSource struct {
	res       *audio.Resource
	err       error
	block     chan struct{}
	cancelled atomic.Bool
}

func (s *fakeSource) Fetch(ctx context.Context, _ dialog.Clip) (*audio.Resource, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			s.cancelled.Store(true)
			return nil, ctx.Err()
		}
	}
	return s.res, s.err
}

func (s *fakeSource) Name() string { return "fake" }

type doneCounter struct {
	n atomic.Int32
}

func (d *doneCounter) done() { d.n.Add(1) }

func (d *doneCounter) count() int { return int(d.n.Load()) }

func newCoordinator(t *testing.T, src *fakeSource, cfg Config) (*Coordinator, *fakePresenter) {
	t.Helper()
	p := &fakePresenter{}
	c := NewCoordinator(p, audio.NewLoader(src), cfg)
	t.Cleanup(c.Close)
	return c, p
}

var testClip = dialog.Clip{Name: "c1", AudioResourceID: "c1.wav", DisplayText: "Hello there."}

func TestCoordinator_ResolvedPlaysAudioForResourceDuration(t *testing.T) {
	src := &fakeSource{res: &audio.Resource{ID: "c1.wav", Duration: 30 * time.Millisecond}}
	c, p := newCoordinator(t, src, Config{
		ResourceTimeout:    time.Second,
		TimeoutDisplayTime: time.Hour,
		ShowText:           true,
	})

	var d doneCounter
	require.True(t, c.Play(testClip, d.done))

	assert.Eventually(t, func() bool { return d.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"play:c1.wav", "display", "stop", "clear"}, p.Calls())
	assert.Equal(t, []string{"Hello there."}, p.Texts())
	assert.Equal(t, StateIdle, c.State())
	_, ok := c.CurrentClip()
	assert.False(t, ok)
}

func TestCoordinator_TimeoutFallsBackToText(t *testing.T) {
	src := &fakeSource{block: make(chan struct{})}
	c, p := newCoordinator(t, src, Config{
		ResourceTimeout:    20 * time.Millisecond,
		TimeoutDisplayTime: 30 * time.Millisecond,
		ShowText:           true,
	})

	var d doneCounter
	require.True(t, c.Play(testClip, d.done))

	assert.Eventually(t, func() bool { return c.State() == StateDisplaying }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return d.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"clear"}, p.Calls())

	// The abandoned fetch is cancelled once the clip completes
	assert.Eventually(t, src.cancelled.Load, time.Second, 5*time.Millisecond)
}

func TestCoordinator_FetchErrorFallsBackToText(t *testing.T) {
	src := &fakeSource{err: errors.Wrap(audio.ErrNoResource, "fake")}
	c, p := newCoordinator(t, src, Config{
		ResourceTimeout:    time.Second,
		TimeoutDisplayTime: 20 * time.Millisecond,
		ShowText:           true,
	})

	var d doneCounter
	require.True(t, c.Play(testClip, d.done))

	assert.Eventually(t, func() bool { return d.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"clear"}, p.Calls())
}

func TestCoordinator_SingleFlight(t *testing.T) {
	src := &fakeSource{block: make(chan struct{})}
	c, _ := newCoordinator(t, src, Config{ResourceTimeout: time.Hour, TimeoutDisplayTime: time.Hour})

	require.True(t, c.Play(testClip, nil))
	assert.False(t, c.Play(dialog.Clip{Name: "c2"}, nil))

	clip, ok := c.CurrentClip()
	require.True(t, ok)
	assert.Equal(t, "c1", clip.Name)
	assert.Equal(t, StateRequested, c.State())
}

func TestCoordinator_StopDuringPlaybackSkipsCompletion(t *testing.T) {
	src := &fakeSource{res: &audio.Resource{ID: "c1.wav", Duration: time.Hour}}
	c, p := newCoordinator(t, src, Config{ResourceTimeout: time.Second, TimeoutDisplayTime: time.Hour, ShowText: true})

	var d doneCounter
	require.True(t, c.Play(testClip, d.done))
	require.Eventually(t, func() bool { return c.State() == StatePlaying }, time.Second, time.Millisecond)

	assert.True(t, c.Stop())
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, []string{"play:c1.wav", "display", "stop", "clear"}, p.Calls())

	assert.Never(t, func() bool { return d.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	// A stopped coordinator accepts the next clip
	assert.True(t, c.Play(testClip, nil))
}

func TestCoordinator_StopWhileRequested(t *testing.T) {
	src := &fakeSource{block: make(chan struct{})}
	c, p := newCoordinator(t, src, Config{ResourceTimeout: time.Hour, TimeoutDisplayTime: time.Hour, ShowText: true})

	var d doneCounter
	require.True(t, c.Play(testClip, d.done))
	assert.True(t, c.Stop())

	assert.Eventually(t, src.cancelled.Load, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"clear"}, p.Calls())
	assert.Equal(t, 0, d.count())

	// Stopping an idle coordinator does nothing
	assert.False(t, c.Stop())
	assert.Equal(t, []string{"clear"}, p.Calls())
}

func TestCoordinator_ShowTextDisabled(t *testing.T) {
	src := &fakeSource{res: &audio.Resource{ID: "c1.wav", Duration: 10 * time.Millisecond}}
	c, p := newCoordinator(t, src, Config{ResourceTimeout: time.Second, TimeoutDisplayTime: time.Hour, ShowText: false})

	var d doneCounter
	require.True(t, c.Play(testClip, d.done))

	assert.Eventually(t, func() bool { return d.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, p.Texts())
	assert.Equal(t, []string{"play:c1.wav", "stop", "clear"}, p.Calls())
}

func TestCoordinator_CompletionMayStartNextClip(t *testing.T) {
	src := &fakeSource{err: audio.ErrNoResource}
	c, _ := newCoordinator(t, src, Config{ResourceTimeout: time.Second, TimeoutDisplayTime: 10 * time.Millisecond})

	var started atomic.Bool
	var d doneCounter
	require.True(t, c.Play(testClip, func() {
		started.Store(c.Play(dialog.Clip{Name: "c2", DisplayText: "next"}, d.done))
	}))

	assert.Eventually(t, func() bool { return d.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, started.Load())
}

func TestCoordinator_StopAfterCompletionReportsNothingStopped(t *testing.T) {
	src := &fakeSource{err: audio.ErrNoResource}
	c, p := newCoordinator(t, src, Config{ResourceTimeout: time.Second, TimeoutDisplayTime: 10 * time.Millisecond})

	// The callback runs after the coordinator went idle, so a Stop racing it
	// must not claim to have stopped the finished clip.
	var stopped atomic.Bool
	var d doneCounter
	require.True(t, c.Play(testClip, func() {
		stopped.Store(c.Stop())
		d.done()
	}))

	require.Eventually(t, func() bool { return d.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, stopped.Load())
	assert.Equal(t, []string{"clear"}, p.Calls())
}

func TestCoordinator_PlayAfterClose(t *testing.T) {
	src := &fakeSource{err: audio.ErrNoResource}
	c, _ := newCoordinator(t, src, Config{TimeoutDisplayTime: time.Hour})

	require.True(t, c.Play(testClip, nil))
	c.Close()

	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Play(testClip, nil))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "requested", StateRequested.String())
	assert.Equal(t, "playing", StatePlaying.String())
	assert.Equal(t, "displaying", StateDisplaying.String())
	assert.Equal(t, "unknown", State(99).String())
}
