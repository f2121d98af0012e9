package commands

import (
	"fmt"

	"github.com/dj-oyu/motionglyph/internal/config"
	"github.com/dj-oyu/motionglyph/internal/pipeline"
	"github.com/dj-oyu/motionglyph/internal/randsrc"
	"github.com/dj-oyu/motionglyph/internal/source"
	"github.com/dj-oyu/motionglyph/internal/symbols"
)

// newController builds a pipeline controller from the detection section.
func newController(cfg config.Config) (*pipeline.Controller, error) {
	opts := []pipeline.Option{pipeline.WithConfig(cfg.Pipeline())}

	if cfg.Detection.Seed != nil {
		opts = append(opts, pipeline.WithRand(randsrc.Seeded(*cfg.Detection.Seed)))
	}
	if cfg.Detection.Alphabet != "" {
		a, err := symbols.ParseAlphabet(cfg.Detection.Alphabet)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithAlphabet(a))
	}
	return pipeline.New(opts...), nil
}

// newSource builds the configured frame source. It returns nil for kind "none".
func newSource(cfg config.Config, norm *source.Normalizer) (source.Source, error) {
	switch cfg.Source.Kind {
	case config.SourceNone, "":
		return nil, nil
	case config.SourceDir:
		return source.NewDirSource(cfg.Source.Path, cfg.Source.Loop, norm)
	case config.SourceSynthetic:
		return source.NewSyntheticSource(cfg.Source.Width, cfg.Source.Height), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}
