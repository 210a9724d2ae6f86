package console

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/narrator/internal/app/audio"
)

func TestPresenter(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	d := p.PlayAudio(&audio.Resource{ID: "intro.wav", Source: "file", Duration: 1500 * time.Millisecond})
	assert.Equal(t, 1500*time.Millisecond, d)

	p.DisplayText("Welcome aboard.")
	text, id := p.Current()
	assert.Equal(t, "Welcome aboard.", text)
	assert.Equal(t, "intro.wav", id)

	p.StopAudio()
	p.ClearText()
	text, id = p.Current()
	assert.Empty(t, text)
	assert.Empty(t, id)

	p.Note("sequence %s aborted", "intro")

	// Non-terminal writers get plain text
	assert.Equal(t, "~ intro.wav [file 1.5s]\n> Welcome aboard.\n# sequence intro aborted\n", buf.String())
}
