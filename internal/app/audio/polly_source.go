package audio

import (
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/narrator/internal/domain/dialog"
)

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

type PollySourceConfig struct {
	Region     string `yaml:"region" mapstructure:"region" default:"us-east-1"`
	VoiceID    string `yaml:"voice_id" mapstructure:"voice_id" default:"Joanna"`
	Engine     string `yaml:"engine" mapstructure:"engine" default:"neural" validate:"oneof=neural standard"`
	SampleRate int    `yaml:"sample_rate" mapstructure:"sample_rate" default:"16000" validate:"oneof=8000 16000"`
}

// PollySource synthesises a clip's display text with Amazon Polly.
// Used as a fallback for clips without recorded audio.
type PollySource struct {
	mu     sync.Mutex
	client synthClient
	config *PollySourceConfig
}

// NewPollySource creates a new PollySource.
// The AWS client is created on first use.
func NewPollySource(settings map[string]any) (*PollySource, error) {
	return newPollySourceWithClient(settings, nil)
}

func newPollySourceWithClient(settings map[string]any, client synthClient) (*PollySource, error) {
	var config PollySourceConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("polly source config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &PollySource{client: client, config: &config}, nil
}

// Fetch synthesises the clip text as 16-bit mono PCM.
func (s *PollySource) Fetch(ctx context.Context, clip dialog.Clip) (*Resource, error) {
	text := strings.TrimSpace(clip.DisplayText)
	if text == "" {
		return nil, ErrNoResource
	}

	client, err := s.resolveClient(ctx)
	if err != nil {
		return nil, err
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(s.config.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}

	output, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatPcm,
		SampleRate:   aws.String(strconv.Itoa(s.config.SampleRate)),
		Text:         aws.String(text),
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(s.config.VoiceID),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return nil, errors.Wrapf(err, "polly rejected synthesis: code=%s", apiErr.ErrorCode())
		}
		return nil, errors.Wrap(err, "polly synthesis failed")
	}
	if output == nil || output.AudioStream == nil {
		return nil, errors.Wrap(ErrNoResource, "polly returned empty audio")
	}
	defer output.AudioStream.Close()

	data, err := io.ReadAll(output.AudioStream)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read polly audio stream")
	}

	id := clip.AudioResourceID
	if id == "" {
		id = "polly:" + clip.Name
	}

	return &Resource{
		ID:       id,
		Source:   s.Name(),
		Format:   "pcm",
		Data:     data,
		Duration: pcmDuration(len(data), s.config.SampleRate),
	}, nil
}

// Name returns the source name.
func (s *PollySource) Name() string {
	return "polly"
}

func (s *PollySource) resolveClient(ctx context.Context) (synthClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s.config.Region))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load aws config")
	}
	s.client = polly.NewFromConfig(cfg)
	return s.client, nil
}

// pcmDuration returns the length of 16-bit mono PCM audio.
func pcmDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate*2)
}
