package audio

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/narrator/internal/infra/config"
)

// NewChainFromConfig creates a source chain from configuration.
func NewChainFromConfig(cfg *config.Config) (*Chain, error) {
	if len(cfg.Audio.Sources) == 0 {
		return nil, errors.New("no audio sources configured")
	}

	var sources []NamedSource

	for i, scfg := range cfg.Audio.Sources {
		var source Source
		var err error
		zlog.Debug().Msgf("creating audio source: index=%d type=%s settings=%+v", i+1, scfg.Type, scfg.Settings)
		switch scfg.Type {
		case "file":
			source, err = NewFileSource(scfg.Settings)

		case "polly":
			source, err = NewPollySource(scfg.Settings)

		default:
			return nil, errors.Newf("unsupported audio source type: %s (source index %d)", scfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create audio source (index %d, type %s)", i, scfg.Type)
		}

		displayName := scfg.DisplayName
		if displayName == "" {
			displayName = scfg.Type
		}
		sources = append(sources, NamedSource{
			Source:      source,
			DisplayName: displayName,
		})

		zlog.Info().Msgf("registered audio source: index=%d type=%s display_name=%s", i+1, scfg.Type, displayName)
	}

	return NewChain(sources), nil
}
