package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/rkjdid/util"
	"github.com/rs/zerolog/log"

	"github.com/bosporos/pbxd/pbx"
	"github.com/bosporos/pbxd/strip"
)

type Config struct {
	Pattern  string        `toml:"pattern" yaml:"pattern"` // sine, bounce or solid
	Channel  uint8         `toml:"channel" yaml:"channel"`
	Pixels   int           `toml:"pixels" yaml:"pixels"`
	Interval util.Duration `toml:"interval" yaml:"interval"`
	Color    Color         `toml:"color" yaml:"color"` // solid pattern only
}

var DefaultConfig = Config{
	Pattern:  "sine",
	Pixels:   240,
	Interval: util.Duration(10 * time.Millisecond),
}

// Target is what Run draws on. *strip.Strip implements it.
type Target interface {
	Write(n uint8, pixels []byte) error
	Draw() error
	Channels() []strip.ChannelSnapshot
}

// Run plays the configured pattern on target until ctx is done. Write
// errors are logged and the loop goes on, so that a reconnected device
// picks up the animation.
func Run(ctx context.Context, target Target, cfg Config) error {
	p, err := NewPattern(cfg.Pattern, cfg.Color)
	if err != nil {
		return err
	}
	width := 0
	for _, ch := range target.Channels() {
		if ch.Number == cfg.Channel {
			width = ch.Width
		}
	}
	if width == 0 {
		return fmt.Errorf("%w: demo needs an enabled channel %d", strip.ErrUnknownChannel, cfg.Channel)
	}
	if cfg.Pixels <= 0 || cfg.Pixels > pbx.MaxPixels {
		return fmt.Errorf("%w: %d pixels", pbx.ErrOutOfRange, cfg.Pixels)
	}
	interval := time.Duration(cfg.Interval)
	if interval <= 0 {
		interval = time.Duration(DefaultConfig.Interval)
	}

	log.Info().Str("pattern", cfg.Pattern).Uint8("channel", cfg.Channel).Int("pixels", cfg.Pixels).
		Dur("interval", interval).Msg("demo: running")

	frame := make([]byte, cfg.Pixels*width)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var failing bool
	for {
		p.Fill(frame, width)
		err := target.Write(cfg.Channel, frame)
		if err == nil {
			err = target.Draw()
		}
		switch {
		case err != nil && !failing:
			log.Warn().Err(err).Msg("demo: frame dropped")
			failing = true
		case err == nil && failing:
			log.Info().Msg("demo: frames going through again")
			failing = false
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
