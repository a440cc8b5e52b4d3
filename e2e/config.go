package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// RelayAddr points the suite at an already running relay. When empty,
	// the suite boots an in-process relay on a random port.
	RelayAddr string `envconfig:"E2E_RELAY_ADDR"`

	Colours bool `envconfig:"E2E_COLOURS" default:"true"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"ERROR"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
