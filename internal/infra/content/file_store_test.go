package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/narrator/internal/domain/dialog"
)

func newTestStore(t *testing.T, format string) *FileStore {
	t.Helper()
	store, err := NewFileStore(Config{Root: t.TempDir(), Format: format, Cache: true})
	require.NoError(t, err)
	return store
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestNewFileStore_Config(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "defaults", config: Config{Root: "/tmp/dialog"}},
		{name: "yaml format", config: Config{Root: "/tmp/dialog", Format: "YAML"}},
		{name: "missing root", config: Config{}, wantErr: true},
		{name: "unknown format", config: Config{Root: "/tmp/dialog", Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewFileStore(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(tt.config.Root, "sequences"), store.SequenceDir())
			assert.Equal(t, filepath.Join(tt.config.Root, "clips"), store.ClipDir())
		})
	}
}

func TestFileStore_LoadSequenceJSON(t *testing.T) {
	store := newTestStore(t, FormatJSON)
	writeFile(t, store.SequenceDir(), "intro.json", `{
		"event_default": ["c1", "c2"],
		"event_interrupt": ["i1"],
		"event_abort": [],
		"event_early": [],
		"event_late": ["l1"],
		"event_return": [],
		"unstoppable": false,
		"persistent": true,
		"can_repeat": false,
		"previous_sequence": "",
		"next_sequence": "outro",
		"min_time": 1.5,
		"max_time": 60
	}`)

	seq, err := store.LoadSequence(context.Background(), "intro")
	require.NoError(t, err)

	assert.Equal(t, "intro", seq.Name)
	assert.Equal(t, []string{"c1", "c2"}, seq.Clips(dialog.EventDefault))
	assert.Equal(t, []string{"i1"}, seq.Clips(dialog.EventInterrupt))
	assert.Equal(t, []string{"l1"}, seq.Clips(dialog.EventLate))
	assert.Empty(t, seq.Clips(dialog.EventReturn))
	assert.True(t, seq.Persistent)
	assert.False(t, seq.CanRepeat)
	assert.Equal(t, "outro", seq.NextSequence)
	assert.Equal(t, 1500*time.Millisecond, seq.MinTime)
	assert.Equal(t, time.Minute, seq.MaxTime)
}

func TestFileStore_LoadSequenceMissingListsAreEmpty(t *testing.T) {
	store := newTestStore(t, FormatJSON)
	writeFile(t, store.SequenceDir(), "short.json", `{"event_default": ["c1"]}`)

	seq, err := store.LoadSequence(context.Background(), "short")
	require.NoError(t, err)

	for _, k := range dialog.EventKinds {
		assert.NotNil(t, seq.Clips(k))
	}
}

func TestFileStore_LoadYAMLFallback(t *testing.T) {
	// Configured for JSON, but a YAML record exists
	store := newTestStore(t, FormatJSON)
	writeFile(t, store.ClipDir(), "c1.yaml", "audio_resource_id: hello\ndisplay_text: Hello there.\n")

	clip, err := store.LoadClip(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", clip.Name)
	assert.Equal(t, "hello", clip.AudioResourceID)
	assert.Equal(t, "Hello there.", clip.DisplayText)
}

func TestFileStore_NotFoundAndMalformed(t *testing.T) {
	store := newTestStore(t, FormatJSON)
	writeFile(t, store.SequenceDir(), "broken.json", `{"event_default": [`)
	writeFile(t, store.SequenceDir(), "typo.json", `{"event_defualt": ["c1"]}`)
	writeFile(t, store.SequenceDir(), "negative.json", `{"min_time": -1}`)
	writeFile(t, store.ClipDir(), "blank.json", `{}`)

	tests := []struct {
		name string
		load func() error
	}{
		{name: "missing sequence", load: func() error {
			_, err := store.LoadSequence(context.Background(), "nope")
			return err
		}},
		{name: "broken json", load: func() error {
			_, err := store.LoadSequence(context.Background(), "broken")
			return err
		}},
		{name: "unknown field", load: func() error {
			_, err := store.LoadSequence(context.Background(), "typo")
			return err
		}},
		{name: "negative time", load: func() error {
			_, err := store.LoadSequence(context.Background(), "negative")
			return err
		}},
		{name: "defaulted clip", load: func() error {
			_, err := store.LoadClip(context.Background(), "blank")
			return err
		}},
		{name: "path traversal", load: func() error {
			_, err := store.LoadClip(context.Background(), "../sequences/broken")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.load()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotFound), "expected not found, got %v", err)
		})
	}
}

func TestFileStore_SaveAndLoadRoundTrip(t *testing.T) {
	for _, format := range []string{FormatJSON, FormatYAML} {
		t.Run(format, func(t *testing.T) {
			store := newTestStore(t, format)

			seq := dialog.NewSequence("about")
			seq.SetClips(dialog.EventDefault, []string{"a1", "a2"})
			seq.SetClips(dialog.EventAbort, []string{"ab1"})
			seq.Unstoppable = true
			seq.PreviousSequence = "intro"
			seq.MaxTime = 30 * time.Second
			require.NoError(t, store.SaveSequence(seq))

			loaded, err := store.LoadSequence(context.Background(), "about")
			require.NoError(t, err)
			assert.Equal(t, seq.Clips(dialog.EventDefault), loaded.Clips(dialog.EventDefault))
			assert.Equal(t, seq.Clips(dialog.EventAbort), loaded.Clips(dialog.EventAbort))
			assert.True(t, loaded.Unstoppable)
			assert.Equal(t, "intro", loaded.PreviousSequence)
			assert.Equal(t, 30*time.Second, loaded.MaxTime)

			require.NoError(t, store.SaveClip(&dialog.Clip{Name: "a1", DisplayText: "About us."}))
			clip, err := store.LoadClip(context.Background(), "a1")
			require.NoError(t, err)
			assert.Equal(t, "About us.", clip.DisplayText)
		})
	}
}

func TestFileStore_SaveRejectsDegenerate(t *testing.T) {
	store := newTestStore(t, FormatJSON)

	err := store.SaveClip(&dialog.Clip{Name: "empty"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerate))

	err = store.SaveSequence(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerate))

	err = store.SaveClip(&dialog.Clip{Name: "../escape", DisplayText: "x"})
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(store.ClipDir(), "empty.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileStore_CacheAndInvalidate(t *testing.T) {
	store := newTestStore(t, FormatJSON)
	writeFile(t, store.ClipDir(), "c1.json", `{"display_text": "first"}`)

	clip, err := store.LoadClip(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "first", clip.DisplayText)

	writeFile(t, store.ClipDir(), "c1.json", `{"display_text": "second"}`)

	clip, err = store.LoadClip(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "first", clip.DisplayText, "cached record should be returned")

	store.handleEvent(fsnotify.Event{Name: filepath.Join(store.ClipDir(), "c1.json"), Op: fsnotify.Write})

	clip, err = store.LoadClip(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "second", clip.DisplayText)
}

func TestFileStore_HandleEventIgnoresChmodAndOtherFiles(t *testing.T) {
	store := newTestStore(t, FormatJSON)
	writeFile(t, store.ClipDir(), "c1.json", `{"display_text": "first"}`)
	_, err := store.LoadClip(context.Background(), "c1")
	require.NoError(t, err)

	store.handleEvent(fsnotify.Event{Name: filepath.Join(store.ClipDir(), "c1.json"), Op: fsnotify.Chmod})
	store.handleEvent(fsnotify.Event{Name: filepath.Join(store.ClipDir(), "c1.txt"), Op: fsnotify.Write})

	store.mu.RLock()
	_, cached := store.clips["c1"]
	store.mu.RUnlock()
	assert.True(t, cached)
}

func TestFileStore_ListSequences(t *testing.T) {
	store := newTestStore(t, FormatJSON)

	names, err := store.ListSequences()
	require.NoError(t, err)
	assert.Empty(t, names)

	writeFile(t, store.SequenceDir(), "b.json", `{}`)
	writeFile(t, store.SequenceDir(), "a.yaml", `{}`)
	writeFile(t, store.SequenceDir(), "a.json", `{}`)
	writeFile(t, store.SequenceDir(), ".hidden.json", `{}`)
	writeFile(t, store.SequenceDir(), "notes.txt", `x`)

	names, err = store.ListSequences()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestFileStore_CancelledContext(t *testing.T) {
	store := newTestStore(t, FormatJSON)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.LoadSequence(ctx, "intro")
	assert.ErrorIs(t, err, context.Canceled)
}
