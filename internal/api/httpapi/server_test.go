package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/narrator/internal/app/notification"
	"github.com/osa030/narrator/internal/app/playback"
	"github.com/osa030/narrator/internal/app/sequencer"
	"github.com/osa030/narrator/internal/app/session"
)

const testToken = "secret"

type fakeSession struct {
	mu        sync.Mutex
	outcomes  map[string]sequencer.Outcome
	requested []string
	active    bool
	resets    int
	err       error
	nm        *notification.Manager
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		outcomes: map[string]sequencer.Outcome{
			"intro": sequencer.OutcomeQueued,
			"again": sequencer.OutcomeAlreadySeen,
			"busy":  sequencer.OutcomeRejected,
		},
		nm: notification.NewManager(),
	}
}

func (f *fakeSession) PlaySequence(_ context.Context, name string) (sequencer.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return sequencer.OutcomeNotFound, f.err
	}
	f.requested = append(f.requested, name)
	outcome, ok := f.outcomes[name]
	if !ok {
		return sequencer.OutcomeNotFound, nil
	}
	if outcome == sequencer.OutcomeQueued {
		f.active = true
	}
	return outcome, nil
}

func (f *fakeSession) Abort(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := f.active
	f.active = false
	return was, nil
}

func (f *fakeSession) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func (f *fakeSession) GetStatus() *session.Status {
	return &session.Status{
		SessionID:   "s-1",
		Running:     true,
		Playback:    playback.StatePlaying,
		CurrentClip: "c1",
		Sequencer: sequencer.Status{
			Active: []string{"intro"},
			Queue: []sequencer.QueuedClip{
				{Sequence: "intro", Clip: "c1", EnqueuedAt: time.Date(2024, 1, 1, 11, 59, 50, 0, time.UTC)},
			},
			Seen: []string{"intro"},
		},
		Subscribers: f.nm.SubscriberCount(),
	}
}

func (f *fakeSession) GetNotificationManager() *notification.Manager {
	return f.nm
}

func newTestServer(t *testing.T, sess Session) (*httptest.Server, *Client) {
	t.Helper()
	srv := NewServer(sess, testToken)
	srv.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, NewClient(ts.URL, testToken, ts.Client())
}

func TestServer_RequiresToken(t *testing.T) {
	ts, _ := newTestServer(t, newFakeSession())

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "wrong", token: "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(ts.URL, tt.token, ts.Client())
			_, err := c.Status(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "401")
		})
	}
}

func TestServer_Play(t *testing.T) {
	sess := newFakeSession()
	_, c := newTestServer(t, sess)

	tests := []struct {
		name    string
		outcome string
		success bool
	}{
		{name: "intro", outcome: "queued", success: true},
		{name: "again", outcome: "already_seen"},
		{name: "busy", outcome: "rejected"},
		{name: "missing", outcome: "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := c.Play(context.Background(), tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.name, resp.Sequence)
			assert.Equal(t, tt.outcome, resp.Outcome)
			assert.Equal(t, tt.success, resp.Success)
			assert.NotEmpty(t, resp.Message)
		})
	}
	assert.Equal(t, []string{"intro", "again", "busy", "missing"}, sess.requested)
}

func TestServer_PlayNotRunning(t *testing.T) {
	sess := newFakeSession()
	sess.err = session.ErrSessionNotRunning
	_, c := newTestServer(t, sess)

	_, err := c.Play(context.Background(), "intro")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestServer_AbortAndReset(t *testing.T) {
	sess := newFakeSession()
	_, c := newTestServer(t, sess)

	resp, err := c.Abort(context.Background())
	require.NoError(t, err)
	assert.False(t, resp.Success)

	_, err = c.Play(context.Background(), "intro")
	require.NoError(t, err)
	resp, err = c.Abort(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Success)

	reset, err := c.Reset(context.Background())
	require.NoError(t, err)
	assert.True(t, reset.Success)
	assert.Equal(t, 1, sess.resets)
}

func TestServer_Status(t *testing.T) {
	_, c := newTestServer(t, newFakeSession())

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s-1", st.SessionID)
	assert.Equal(t, "playing", st.Playback)
	assert.Equal(t, "c1", st.CurrentClip)
	assert.Equal(t, []string{"intro"}, st.Active)
	require.Len(t, st.Queue, 1)
	assert.InDelta(t, 10.0, st.Queue[0].AgeSec, 0.001)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t, newFakeSession())

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/abort", nil)
	require.NoError(t, err)
	req.Header.Set(AdminTokenHeader, testToken)
	res, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestServer_Events(t *testing.T) {
	sess := newFakeSession()
	_, c := newTestServer(t, sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *notification.Notification, 4)
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Events(ctx, func(n *notification.Notification) { received <- n })
	}()

	require.Eventually(t, func() bool { return sess.nm.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	sess.nm.Broadcast(&notification.Notification{Type: "clip_started", Sequence: "intro", Clip: "c1"})

	select {
	case n := <-received:
		assert.Equal(t, "clip_started", n.Type)
		assert.Equal(t, "c1", n.Clip)
		assert.Equal(t, uint64(1), n.SequenceNo)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not received")
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("event stream did not stop")
	}
	assert.Eventually(t, func() bool { return sess.nm.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
}
