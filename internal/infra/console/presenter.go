// Package console provides a terminal Presenter.
package console

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/narrator/internal/app/audio"
)

// Presenter prints clip text and audio cues to a terminal.
// Audio is not decoded; a cue line stands in for playback and the
// resource's own duration is reported back.
type Presenter struct {
	mu sync.Mutex
	w  io.Writer

	text  lipgloss.Style
	cue   lipgloss.Style
	muted lipgloss.Style

	shown   string // Displayed text
	playing string // Playing resource ID
}

// New creates a presenter writing to w.
// Colors are used only when w is a terminal.
func New(w io.Writer) *Presenter {
	r := lipgloss.NewRenderer(w)
	return &Presenter{
		w:     w,
		text:  r.NewStyle().Foreground(lipgloss.Color("#E6EDF3")).Bold(true),
		cue:   r.NewStyle().Foreground(lipgloss.Color("#5B8DEF")),
		muted: r.NewStyle().Foreground(lipgloss.Color("#8B9AAE")),
	}
}

// DisplayText prints the clip text.
func (p *Presenter) DisplayText(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.shown = text
	fmt.Fprintln(p.w, p.text.Render("> "+text))
}

// ClearText clears the displayed text.
func (p *Presenter) ClearText() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown = ""
}

// PlayAudio prints an audio cue and returns the resource duration.
func (p *Presenter) PlayAudio(res *audio.Resource) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.playing = res.ID
	fmt.Fprintln(p.w, p.cue.Render(fmt.Sprintf("~ %s [%s %s]", res.ID, res.Source, res.Duration.Round(time.Millisecond))))
	zlog.Debug().Msgf("console: playing audio: id=%s source=%s bytes=%d", res.ID, res.Source, len(res.Data))
	return res.Duration
}

// StopAudio stops the playing cue.
func (p *Presenter) StopAudio() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = ""
}

// Note prints an out-of-band status line.
func (p *Presenter) Note(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.muted.Render("# "+fmt.Sprintf(format, args...)))
}

// Current returns the displayed text and playing resource ID.
func (p *Presenter) Current() (text, audioID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shown, p.playing
}
