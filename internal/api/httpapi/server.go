package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/osa030/narrator/internal/app/notification"
	"github.com/osa030/narrator/internal/app/sequencer"
	"github.com/osa030/narrator/internal/app/session"
	"github.com/osa030/narrator/internal/infra/logger"
)

// Session is the part of the session manager the API drives.
type Session interface {
	PlaySequence(ctx context.Context, name string) (sequencer.Outcome, error)
	Abort(ctx context.Context) (bool, error)
	Reset() error
	GetStatus() *session.Status
	GetNotificationManager() *notification.Manager
}

// Server serves the trigger API.
type Server struct {
	session Session
	token   string
	log     zerolog.Logger
	now     func() time.Time
}

// NewServer creates a new API server. Every route requires token.
func NewServer(sess Session, token string) *Server {
	return &Server{
		session: sess,
		token:   token,
		log:     logger.Component("httpapi"),
		now:     time.Now,
	}
}

// Handler returns the routed, authenticated handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sequences/{name}/play", s.handlePlay)
	mux.HandleFunc("POST /v1/abort", s.handleAbort)
	mux.HandleFunc("POST /v1/reset", s.handleReset)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	return s.logRequests(s.requireToken(mux))
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	outcome, err := s.session.PlaySequence(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := PlayResponse{
		Sequence: name,
		Outcome:  outcome.String(),
		Success:  outcome == sequencer.OutcomeQueued,
	}
	switch outcome {
	case sequencer.OutcomeQueued:
		resp.Message = "Sequence queued"
	case sequencer.OutcomeAlreadySeen:
		resp.Message = "Sequence already played"
	case sequencer.OutcomeNotFound:
		resp.Message = "Sequence not found"
	case sequencer.OutcomeRejected:
		resp.Message = "Active sequence cannot be interrupted"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	aborted, err := s.session.Abort(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := AbortResponse{Success: aborted, Message: "Sequence aborted"}
	if !aborted {
		resp.Message = "No active sequence"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Reset(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ResetResponse{Success: true, Message: "Sequencer reset"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.session.GetStatus()
	now := s.now()

	resp := StatusResponse{
		SessionID:     st.SessionID,
		StartedAt:     st.StartedAt,
		Running:       st.Running,
		Playback:      st.Playback.String(),
		CurrentClip:   st.CurrentClip,
		Active:        st.Sequencer.Active,
		Queue:         make([]QueueEntry, 0, len(st.Sequencer.Queue)),
		Seen:          st.Sequencer.Seen,
		LastQueueTime: st.Sequencer.LastQueueTime,
		Subscribers:   st.Subscribers,
	}
	for _, q := range st.Sequencer.Queue {
		resp.Queue = append(resp.Queue, QueueEntry{
			Sequence: q.Sequence,
			Clip:     q.Clip,
			AgeSec:   now.Sub(q.EnqueuedAt).Seconds(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvents streams notifications as newline-delimited JSON until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream := &ndjsonStream{enc: json.NewEncoder(w), flusher: flusher}
	nm := s.session.GetNotificationManager()
	id := nm.Subscribe(stream)
	defer nm.Unsubscribe(id)

	s.log.Info().Msgf("event stream opened: subscription=%s remote=%s", id, r.RemoteAddr)
	<-r.Context().Done()
	s.log.Info().Msgf("event stream closed: subscription=%s", id)
}

// ndjsonStream writes notifications to an HTTP response.
type ndjsonStream struct {
	mu      sync.Mutex
	enc     *json.Encoder
	flusher http.Flusher
}

func (n *ndjsonStream) Send(msg *notification.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.enc.Encode(msg); err != nil {
		return errors.Wrap(err, "failed to write notification")
	}
	n.flusher.Flush()
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, session.ErrSessionNotRunning) {
		status = http.StatusServiceUnavailable
	}
	s.log.Warn().Msgf("request failed: status=%d error=%v", status, err)
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requireToken rejects requests without a valid admin token.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(AdminTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().Msgf("%s %s: status=%d duration=%v", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
