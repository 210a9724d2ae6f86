package playback

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/narrator/internal/app/audio"
	"github.com/osa030/narrator/internal/domain/dialog"
)

// Presenter shows clip text and plays clip audio.
// Calls are made from coordinator goroutines and must not block.
type Presenter interface {
	DisplayText(text string)
	ClearText()
	// PlayAudio starts the resource and returns its play length.
	PlayAudio(res *audio.Resource) time.Duration
	StopAudio()
}

// ResourceLoader starts asynchronous audio fetches.
type ResourceLoader interface {
	RequestAudioResource(ctx context.Context, clip dialog.Clip) *audio.Request
}

// Config holds coordinator configuration.
type Config struct {
	ResourceTimeout    time.Duration // Wait limit for the audio resource (0 waits indefinitely)
	TimeoutDisplayTime time.Duration // Display length of text-only clips
	ShowText           bool          // Display clip text
}

// Coordinator plays one clip at a time.
type Coordinator struct {
	mu sync.Mutex

	presenter Presenter
	loader    ResourceLoader
	config    Config

	state   State
	current *dialog.Clip
	gen     uint64
	cancel  context.CancelFunc // Cancels the in-flight clip
	closed  bool

	ctx      context.Context
	ctxClose context.CancelFunc
	wg       sync.WaitGroup
}

// NewCoordinator creates a new coordinator.
func NewCoordinator(presenter Presenter, loader ResourceLoader, config Config) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		presenter: presenter,
		loader:    loader,
		config:    config,
		state:     StateIdle,
		ctx:       ctx,
		ctxClose:  cancel,
	}
}

// Play starts the clip. onDone is called once the clip has been shown for its
// full duration; it is never called if the clip is stopped.
// Returns false when a clip is already in flight.
func (c *Coordinator) Play(clip dialog.Clip, onDone func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if c.state != StateIdle {
		zlog.Debug().Msgf("playback: clip already in flight, ignoring: current=%s requested=%s", c.current.Name, clip.Name)
		return false
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.gen++
	c.cancel = cancel
	c.current = &clip
	c.state = StateRequested

	c.wg.Add(1)
	go c.run(ctx, c.gen, clip, onDone)
	return true
}

// Stop halts the in-flight clip without calling its completion callback.
// Returns false when no clip was in flight, including a clip that has
// finished but whose callback has not run yet.
func (c *Coordinator) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentClip returns the in-flight clip.
func (c *Coordinator) CurrentClip() (dialog.Clip, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return dialog.Clip{}, false
	}
	return *c.current, true
}

// Close stops playback and waits for clip goroutines to exit.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.stopLocked()
	c.closed = true
	c.ctxClose()
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Coordinator) stopLocked() bool {
	if c.state == StateIdle {
		return false
	}

	c.cancel()
	if c.state == StatePlaying {
		c.presenter.StopAudio()
	}
	c.presenter.ClearText()

	zlog.Debug().Msgf("playback: stopped clip: name=%s state=%s", c.current.Name, c.state)
	c.finishLocked()
	return true
}

// finishLocked returns to idle. Bumping gen invalidates the clip goroutine.
func (c *Coordinator) finishLocked() {
	c.gen++
	c.cancel = nil
	c.current = nil
	c.state = StateIdle
}

// run drives one clip through request, present and completion.
func (c *Coordinator) run(ctx context.Context, gen uint64, clip dialog.Clip, onDone func()) {
	defer c.wg.Done()

	res, ok := c.awaitResource(ctx, clip)
	if !ok {
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	duration := c.config.TimeoutDisplayTime
	if res != nil {
		if d := c.presenter.PlayAudio(res); d > 0 {
			duration = d
		} else if res.Duration > 0 {
			duration = res.Duration
		}
		c.state = StatePlaying
	} else {
		c.state = StateDisplaying
	}
	if c.config.ShowText && clip.DisplayText != "" {
		c.presenter.DisplayText(clip.DisplayText)
	}
	zlog.Debug().Msgf("playback: presenting clip: name=%s state=%s duration=%v", clip.Name, c.state, duration)
	c.mu.Unlock()

	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if c.state == StatePlaying {
		c.presenter.StopAudio()
	}
	c.presenter.ClearText()
	c.cancel()
	c.finishLocked()
	c.mu.Unlock()

	if onDone != nil {
		onDone()
	}
}

// awaitResource races the audio fetch against the resource timeout.
// Returns a nil resource for the text-only path, and false when cancelled.
func (c *Coordinator) awaitResource(ctx context.Context, clip dialog.Clip) (*audio.Resource, bool) {
	req := c.loader.RequestAudioResource(ctx, clip)

	var timeout <-chan time.Time
	if c.config.ResourceTimeout > 0 {
		timer := time.NewTimer(c.config.ResourceTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return nil, false
	case <-req.Done():
		res, err := req.Result()
		if err != nil {
			zlog.Debug().Msgf("playback: no audio, showing text only: clip=%s error=%v", clip.Name, err)
			return nil, true
		}
		return res, true
	case <-timeout:
		zlog.Info().Msgf("playback: audio resource timed out, showing text only: clip=%s timeout=%v",
			clip.Name, c.config.ResourceTimeout)
		return nil, true
	}
}
