// Package internal holds configuration shared by the server binary and the
// inspection tooling.
package internal

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Host           string        `env:"HOST,default=localhost" validate:"required"`
	Port           int           `env:"PORT,default=5000" validate:"min=0,max=65535"`
	BufferSize     int           `env:"BUFFER_SIZE,default=1024" validate:"min=64"`
	LogLevel       string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath string        `env:"BADGER_FILEPATH,required=true" validate:"required"`
	LimitMessages  *int          `env:"LIMIT_MESSAGES"`
	BannedWords    string        `env:"BANNED_WORDS_FILE"`
	CensorChar     string        `env:"CENSOR_CHARACTER,default=*"`
	MetricInterval time.Duration `env:"METRIC_INTERVAL,default=30s" validate:"min=1s"`
}

var validate = validator.New()

// Validate applies the struct-level rules after the environment unmarshal.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Addr renders the host:port pair the listener binds.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CharacterRune converts the censor replacement setting to a single rune.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CENSOR_CHARACTER must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
