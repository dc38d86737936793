// Package logging provides JSON structured logging using zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls log output format and verbosity.
type Config struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

var root zerolog.Logger

func init() {
	root = zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339
}

// Init configures the process-wide logger. Call once from main before
// any component grabs a sub-logger.
func Init(cfg Config) error {
	level := zerolog.InfoLevel

	if cfg.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return err
		}
	}

	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}

	root = zerolog.New(out).Level(level).With().Timestamp().Logger()

	return nil
}

// Root returns the process-wide logger.
func Root() zerolog.Logger {
	return root
}

// WithComponent returns a sub-logger tagged with a component name.
func WithComponent(component string) zerolog.Logger {
	return root.With().Str("component", component).Logger()
}
