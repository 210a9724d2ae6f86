package dialog

// Clip is a single unit of displayable text plus optional audio.
type Clip struct {
	Name            string // Unique clip name
	AudioResourceID string // Audio resource identifier (empty for text-only clips)
	DisplayText     string // Text shown while the clip plays
}

// HasAudio reports whether the clip references an audio resource.
func (c *Clip) HasAudio() bool {
	return c.AudioResourceID != ""
}

// IsEmpty reports whether the clip carries neither audio nor text.
func (c *Clip) IsEmpty() bool {
	return c.AudioResourceID == "" && c.DisplayText == ""
}
