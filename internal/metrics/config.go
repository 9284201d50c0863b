package metrics

import (
	"strings"

	"codeberg.org/mutker/irrigatectl/internal/errors"
)

const defaultPath = "/metrics"

type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Path:    defaultPath,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate Path if metrics is enabled
	if c.Enabled && !strings.HasPrefix(c.Path, "/") {
		return errFactory.WithData(ErrInvalidPath, c.Path)
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
