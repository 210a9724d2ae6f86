// Package session provides the session manager.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/narrator/internal/app/audio"
	"github.com/osa030/narrator/internal/app/notification"
	"github.com/osa030/narrator/internal/app/playback"
	"github.com/osa030/narrator/internal/app/sequencer"
	"github.com/osa030/narrator/internal/infra/config"
	"github.com/osa030/narrator/internal/infra/content"
	"github.com/osa030/narrator/internal/infra/statefile"
)

var ErrSessionNotRunning = errors.New("session is not running")

const idlePollInterval = 50 * time.Millisecond

// Status is a snapshot of the session.
type Status struct {
	SessionID   string
	StartedAt   time.Time
	Running     bool
	Playback    playback.State
	CurrentClip string
	Sequencer   sequencer.Status
	Subscribers int
}

// Manager wires the content store, audio chain, coordinator and sequencer
// together and owns their lifecycle.
type Manager struct {
	mu sync.RWMutex

	config    *config.Config
	sessionID string
	startedAt time.Time
	running   bool

	// Components
	store        *content.FileStore
	coordinator  *playback.Coordinator
	sequencer    *sequencer.Sequencer
	notification *notification.Manager
	stateFile    *statefile.Store // nil when persistence is disabled
	persistMu    sync.Mutex       // orders seen-set snapshots with their saves

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a new session manager.
func NewManager(cfg *config.Config, presenter playback.Presenter) (*Manager, error) {
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

	chain, err := audio.NewChainFromConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create audio source chain")
	}

	coordinator := playback.NewCoordinator(presenter, audio.NewLoader(chain), playback.Config{
		ResourceTimeout:    cfg.ResourceTimeout(),
		TimeoutDisplayTime: cfg.TimeoutDisplayTime(),
		ShowText:           cfg.ShowText(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:       cfg,
		sessionID:    uuid.New().String(),
		store:        store,
		coordinator:  coordinator,
		sequencer:    sequencer.New(store, coordinator, sequencer.Config{ClipAgeMaximum: cfg.ClipAgeMaximum()}),
		notification: notification.NewManager(),
		ctx:          ctx,
		cancel:       cancel,
	}
	if cfg.State.File != "" {
		m.stateFile = statefile.New(cfg.State.File)
	}
	return m, nil
}

// Start restores the saved seen-set and starts background loops.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	if m.ctx.Err() != nil {
		return errors.New("session manager is closed")
	}

	m.restoreState()

	m.wg.Add(1)
	go m.eventLoop()

	if m.config.Content.Watch {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.store.Watch(m.ctx); err != nil {
				zlog.Error().Msgf("session: content watcher stopped: %v", err)
			}
		}()
	}

	m.running = true
	m.startedAt = time.Now()
	zlog.Info().Msgf("session: started: session_id=%s content=%s", m.sessionID, m.config.Content.Root)
	return nil
}

// PlaySequence requests a sequence by name.
func (m *Manager) PlaySequence(ctx context.Context, name string) (sequencer.Outcome, error) {
	if !m.isRunning() {
		return sequencer.OutcomeNotFound, ErrSessionNotRunning
	}
	outcome := m.sequencer.PlaySequence(ctx, name)
	switch outcome {
	case sequencer.OutcomeQueued, sequencer.OutcomeRejected:
		// Both record the name in the seen-set
		m.persistState()
	}
	return outcome, nil
}

// Abort aborts the active sequence. Returns false when none is active.
func (m *Manager) Abort(ctx context.Context) (bool, error) {
	if !m.isRunning() {
		return false, ErrSessionNotRunning
	}
	return m.sequencer.AbortCurrentSequence(ctx), nil
}

// Reset clears the sequencer state, including the seen-set.
func (m *Manager) Reset() error {
	if !m.isRunning() {
		return ErrSessionNotRunning
	}
	m.sequencer.Reset()
	m.persistState()
	return nil
}

// WaitIdle blocks until no sequence is active and no clip is in flight.
func (m *Manager) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	for {
		if m.sequencer.IsIdle() && m.coordinator.State() == playback.StateIdle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetStatus returns a snapshot of the session.
func (m *Manager) GetStatus() *Status {
	m.mu.RLock()
	st := &Status{
		SessionID: m.sessionID,
		StartedAt: m.startedAt,
		Running:   m.running,
	}
	m.mu.RUnlock()

	st.Playback = m.coordinator.State()
	if clip, ok := m.coordinator.CurrentClip(); ok {
		st.CurrentClip = clip.Name
	}
	st.Sequencer = m.sequencer.Status()
	st.Subscribers = m.notification.SubscriberCount()
	return st
}

// GetNotificationManager returns the notification manager.
func (m *Manager) GetNotificationManager() *notification.Manager {
	return m.notification
}

// Close stops playback and background loops and saves the seen-set.
func (m *Manager) Close() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	m.cancel()
	m.sequencer.Close()
	m.coordinator.Close()
	m.wg.Wait()

	m.persistState()
	m.notification.Close()
	zlog.Info().Msgf("session: closed: session_id=%s", m.sessionID)
}

func (m *Manager) isRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// eventLoop broadcasts sequencer events. It exits when the sequencer is closed.
func (m *Manager) eventLoop() {
	defer m.wg.Done()

	for e := range m.sequencer.Events() {
		zlog.Debug().Msgf("session: sequencer event: type=%s sequence=%s clip=%s", e.Type, e.Sequence, e.Clip)
		m.notification.Broadcast(notification.FromEvent(e))
	}
}

func (m *Manager) restoreState() {
	if m.stateFile == nil {
		return
	}
	st, err := m.stateFile.Load()
	if err != nil {
		zlog.Warn().Msgf("session: ignoring saved state: %v", err)
		return
	}
	m.sequencer.Restore(st.Seen)
	zlog.Info().Msgf("session: restored state: file=%s seen=%d", m.stateFile.Path(), len(st.Seen))
}

func (m *Manager) persistState() {
	if m.stateFile == nil {
		return
	}
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	st := &statefile.State{
		SessionID: m.sessionID,
		Seen:      m.sequencer.Seen(),
		SavedAt:   time.Now(),
	}
	if err := m.stateFile.Save(st); err != nil {
		zlog.Error().Msgf("session: failed to save state: %v", err)
	}
}
