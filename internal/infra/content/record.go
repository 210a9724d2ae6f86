package content

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/narrator/internal/domain/dialog"
)

// Record formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var validate = validator.New()

// sequenceRecord is the persisted form of a sequence.
// Every event list is written even when empty.
type sequenceRecord struct {
	EventDefault   []string `json:"event_default" yaml:"event_default"`
	EventInterrupt []string `json:"event_interrupt" yaml:"event_interrupt"`
	EventAbort     []string `json:"event_abort" yaml:"event_abort"`
	EventEarly     []string `json:"event_early" yaml:"event_early"`
	EventLate      []string `json:"event_late" yaml:"event_late"`
	EventReturn    []string `json:"event_return" yaml:"event_return"`

	Unstoppable bool `json:"unstoppable" yaml:"unstoppable"`
	Persistent  bool `json:"persistent" yaml:"persistent"`
	CanRepeat   bool `json:"can_repeat" yaml:"can_repeat"`

	PreviousSequence string `json:"previous_sequence" yaml:"previous_sequence"`
	NextSequence     string `json:"next_sequence" yaml:"next_sequence"`

	MinTime float64 `json:"min_time" yaml:"min_time" validate:"gte=0"`
	MaxTime float64 `json:"max_time" yaml:"max_time" validate:"gte=0"`
}

// clipRecord is the persisted form of a clip.
type clipRecord struct {
	AudioResourceID string `json:"audio_resource_id" yaml:"audio_resource_id"`
	DisplayText     string `json:"display_text" yaml:"display_text"`
}

func (r *sequenceRecord) lists() map[dialog.EventKind]*[]string {
	return map[dialog.EventKind]*[]string{
		dialog.EventDefault:   &r.EventDefault,
		dialog.EventInterrupt: &r.EventInterrupt,
		dialog.EventAbort:     &r.EventAbort,
		dialog.EventEarly:     &r.EventEarly,
		dialog.EventLate:      &r.EventLate,
		dialog.EventReturn:    &r.EventReturn,
	}
}

func (r *sequenceRecord) toSequence(name string) *dialog.Sequence {
	seq := dialog.NewSequence(name)
	for kind, list := range r.lists() {
		seq.SetClips(kind, *list)
	}
	seq.Unstoppable = r.Unstoppable
	seq.Persistent = r.Persistent
	seq.CanRepeat = r.CanRepeat
	seq.PreviousSequence = strings.TrimSpace(r.PreviousSequence)
	seq.NextSequence = strings.TrimSpace(r.NextSequence)
	seq.MinTime = secondsToDuration(r.MinTime)
	seq.MaxTime = secondsToDuration(r.MaxTime)
	return seq
}

func sequenceToRecord(seq *dialog.Sequence) *sequenceRecord {
	r := &sequenceRecord{
		Unstoppable:      seq.Unstoppable,
		Persistent:       seq.Persistent,
		CanRepeat:        seq.CanRepeat,
		PreviousSequence: seq.PreviousSequence,
		NextSequence:     seq.NextSequence,
		MinTime:          seq.MinTime.Seconds(),
		MaxTime:          seq.MaxTime.Seconds(),
	}
	for kind, list := range r.lists() {
		*list = seq.Clips(kind)
	}
	return r
}

func (r *clipRecord) toClip(name string) *dialog.Clip {
	return &dialog.Clip{
		Name:            name,
		AudioResourceID: strings.TrimSpace(r.AudioResourceID),
		DisplayText:     r.DisplayText,
	}
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

// decode parses data in the given format, rejecting unknown fields.
func decode(format string, data []byte, out any) error {
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(out)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		return dec.Decode(out)
	default:
		return errors.Newf("unsupported format: %s", format)
	}
}

// encode serialises v in the given format.
func encode(format string, v any) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(v, "", "    ")
	case FormatYAML:
		return yaml.Marshal(v)
	default:
		return nil, errors.Newf("unsupported format: %s", format)
	}
}

// extensions returns the file extensions for a format, preferred first.
func extensions(format string) []string {
	switch format {
	case FormatYAML:
		return []string{".yaml", ".yml"}
	default:
		return []string{".json"}
	}
}
