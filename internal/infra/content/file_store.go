// Package content provides the file-backed store for sequences and clips.
package content

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/osa030/narrator/internal/domain/dialog"
)

// Errors
var (
	ErrNotFound   = errors.New("content not found")
	ErrDegenerate = errors.New("serialized content is degenerate")
)

// Config holds file store configuration.
type Config struct {
	Root        string // Base directory for all content
	SequenceDir string // Sequence directory, relative to Root unless absolute
	ClipDir     string // Clip directory, relative to Root unless absolute
	Format      string // Format used when saving ("json" or "yaml")
	Cache       bool   // Keep loaded records in memory
}

// FileStore loads and saves sequences and clips as one file per record.
// Loaded records are immutable and may be shared between callers.
type FileStore struct {
	config      Config
	sequenceDir string
	clipDir     string

	mu        sync.RWMutex
	sequences map[string]*dialog.Sequence
	clips     map[string]*dialog.Clip

	group singleflight.Group
}

// NewFileStore creates a new file store.
func NewFileStore(cfg Config) (*FileStore, error) {
	if cfg.Root == "" {
		return nil, errors.New("content root is required")
	}
	if cfg.SequenceDir == "" {
		cfg.SequenceDir = "sequences"
	}
	if cfg.ClipDir == "" {
		cfg.ClipDir = "clips"
	}
	cfg.Format = strings.ToLower(cfg.Format)
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	if cfg.Format != FormatJSON && cfg.Format != FormatYAML {
		return nil, errors.Newf("unsupported content format: %s", cfg.Format)
	}

	return &FileStore{
		config:      cfg,
		sequenceDir: resolveDir(cfg.Root, cfg.SequenceDir),
		clipDir:     resolveDir(cfg.Root, cfg.ClipDir),
		sequences:   make(map[string]*dialog.Sequence),
		clips:       make(map[string]*dialog.Clip),
	}, nil
}

func resolveDir(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// SequenceDir returns the resolved sequence directory.
func (s *FileStore) SequenceDir() string {
	return s.sequenceDir
}

// ClipDir returns the resolved clip directory.
func (s *FileStore) ClipDir() string {
	return s.clipDir
}

// LoadSequence loads a sequence by name.
// Missing and malformed records both satisfy errors.Is(err, ErrNotFound).
func (s *FileStore) LoadSequence(ctx context.Context, name string) (*dialog.Sequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	cached, ok := s.sequences[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := s.group.Do("sequence/"+name, func() (interface{}, error) {
		var rec sequenceRecord
		if err := s.readRecord(s.sequenceDir, name, &rec); err != nil {
			return nil, err
		}
		if err := validate.Struct(rec); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "invalid sequence %q", name), ErrNotFound)
		}
		return rec.toSequence(name), nil
	})
	if err != nil {
		return nil, err
	}

	seq := v.(*dialog.Sequence)
	if s.config.Cache {
		s.mu.Lock()
		s.sequences[name] = seq
		s.mu.Unlock()
	}
	return seq, nil
}

// LoadClip loads a clip by name.
// Missing and malformed records both satisfy errors.Is(err, ErrNotFound).
func (s *FileStore) LoadClip(ctx context.Context, name string) (*dialog.Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	cached, ok := s.clips[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := s.group.Do("clip/"+name, func() (interface{}, error) {
		var rec clipRecord
		if err := s.readRecord(s.clipDir, name, &rec); err != nil {
			return nil, err
		}
		clip := rec.toClip(name)
		// A clip with neither audio nor text is a defaulted record
		if clip.IsEmpty() {
			return nil, errors.Mark(errors.Newf("clip %q has no audio and no text", name), ErrNotFound)
		}
		return clip, nil
	})
	if err != nil {
		return nil, err
	}

	clip := v.(*dialog.Clip)
	if s.config.Cache {
		s.mu.Lock()
		s.clips[name] = clip
		s.mu.Unlock()
	}
	return clip, nil
}

// SaveSequence writes a sequence record using the configured format.
func (s *FileStore) SaveSequence(seq *dialog.Sequence) error {
	if seq == nil {
		return errors.Wrap(ErrDegenerate, "nil sequence")
	}
	if err := s.writeRecord(s.sequenceDir, seq.Name, sequenceToRecord(seq)); err != nil {
		return errors.Wrapf(err, "failed to save sequence %q", seq.Name)
	}
	s.Invalidate(seq.Name)
	return nil
}

// SaveClip writes a clip record using the configured format.
func (s *FileStore) SaveClip(clip *dialog.Clip) error {
	if clip == nil || clip.IsEmpty() {
		return errors.Wrap(ErrDegenerate, "clip has no audio and no text")
	}
	rec := &clipRecord{
		AudioResourceID: clip.AudioResourceID,
		DisplayText:     clip.DisplayText,
	}
	if err := s.writeRecord(s.clipDir, clip.Name, rec); err != nil {
		return errors.Wrapf(err, "failed to save clip %q", clip.Name)
	}
	s.Invalidate(clip.Name)
	return nil
}

// ListSequences returns the names of all sequence records, sorted.
func (s *FileStore) ListSequences() ([]string, error) {
	entries, err := os.ReadDir(s.sequenceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.Wrap(err, "failed to read sequence directory")
	}

	seen := make(map[string]bool)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ok := recordName(e.Name())
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Invalidate drops any cached sequence or clip with the given name.
func (s *FileStore) Invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sequences, name)
	delete(s.clips, name)
}

// InvalidateAll drops every cached record.
func (s *FileStore) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences = make(map[string]*dialog.Sequence)
	s.clips = make(map[string]*dialog.Clip)
}

// readRecord locates and decodes a record file.
func (s *FileStore) readRecord(dir, name string, out any) error {
	if !validName(name) {
		return errors.Wrapf(ErrNotFound, "invalid record name %q", name)
	}

	path, format, ok := s.locate(dir, name)
	if !ok {
		zlog.Warn().Msgf("content: file not found: dir=%s name=%s", dir, name)
		return errors.Wrapf(ErrNotFound, "%s", filepath.Join(dir, name))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}

	if err := decode(format, data, out); err != nil {
		zlog.Warn().Msgf("content: failed to parse: path=%s error=%v", path, err)
		return errors.Mark(errors.Wrapf(err, "failed to parse %s", path), ErrNotFound)
	}
	return nil
}

// locate finds the record file, trying the configured format first.
func (s *FileStore) locate(dir, name string) (string, string, bool) {
	formats := []string{s.config.Format}
	for _, f := range []string{FormatJSON, FormatYAML} {
		if f != s.config.Format {
			formats = append(formats, f)
		}
	}

	for _, format := range formats {
		for _, ext := range extensions(format) {
			path := filepath.Join(dir, name+ext)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, format, true
			}
		}
	}
	return "", "", false
}

// writeRecord encodes and writes a record file.
func (s *FileStore) writeRecord(dir, name string, rec any) error {
	if !validName(name) {
		return errors.Newf("invalid record name %q", name)
	}

	data, err := encode(s.config.Format, rec)
	if err != nil {
		return errors.Wrap(err, "failed to encode record")
	}
	// An empty object or document means serialisation failed somehow
	if len(bytes.TrimSpace(data)) <= 3 {
		return ErrDegenerate
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}

	path := filepath.Join(dir, name+extensions(s.config.Format)[0])
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	zlog.Debug().Msgf("content: saved record: path=%s", path)
	return nil
}

// validName rejects names that would escape the content directories.
func validName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

// recordName strips a known record extension from a file name.
func recordName(file string) (string, bool) {
	if strings.HasPrefix(file, ".") {
		return "", false
	}
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		if strings.HasSuffix(file, ext) {
			return strings.TrimSuffix(file, ext), true
		}
	}
	return "", false
}
