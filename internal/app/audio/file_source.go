package audio

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/narrator/internal/domain/dialog"
)

type FileSourceConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir" validate:"required"`
	Extension string `yaml:"extension" mapstructure:"extension" default:".wav" validate:"startswith=."`
}

// FileSource serves recorded WAV files named after the clip's audio resource ID.
type FileSource struct {
	config *FileSourceConfig
}

// NewFileSource creates a new FileSource.
func NewFileSource(settings map[string]any) (*FileSource, error) {
	var config FileSourceConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("file source config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &FileSource{config: &config}, nil
}

// Fetch reads the clip's WAV file and measures its duration.
func (s *FileSource) Fetch(ctx context.Context, clip dialog.Clip) (*Resource, error) {
	if !clip.HasAudio() {
		return nil, ErrNoResource
	}
	id := clip.AudioResourceID
	if strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return nil, errors.Wrapf(ErrNoResource, "invalid resource id %q", id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(s.config.Dir, id+s.config.Extension)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNoResource, "%s", path)
		}
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	duration, err := wavDuration(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read wav header of %s", path)
	}

	return &Resource{
		ID:       id,
		Source:   s.Name(),
		Format:   "wav",
		Data:     data,
		Duration: duration,
	}, nil
}

// Name returns the source name.
func (s *FileSource) Name() string {
	return "file"
}

// wavDuration computes the play length of a RIFF/WAVE payload from its
// fmt byte rate and data chunk size.
func wavDuration(data []byte) (time.Duration, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, errors.New("not a RIFF/WAVE file")
	}

	var byteRate, dataSize uint32
	var haveFmt, haveData bool

	offset := 12
	for offset+8 <= len(data) && !(haveFmt && haveData) {
		id := string(data[offset : offset+4])
		size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		body := offset + 8

		switch id {
		case "fmt ":
			if body+12 > len(data) {
				return 0, errors.New("truncated fmt chunk")
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			haveFmt = true
		case "data":
			// Streamed files may carry a placeholder size
			remaining := uint32(len(data) - body)
			dataSize = min(size, remaining)
			haveData = true
		}

		next := body + int(size)
		if size%2 == 1 {
			next++
		}
		if next <= offset {
			break
		}
		offset = next
	}

	if !haveFmt || !haveData {
		return 0, errors.New("missing fmt or data chunk")
	}
	if byteRate == 0 {
		return 0, errors.New("zero byte rate")
	}

	return time.Duration(float64(dataSize) / float64(byteRate) * float64(time.Second)), nil
}
