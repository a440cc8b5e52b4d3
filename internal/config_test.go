package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           5000,
		BufferSize:     1024,
		LogLevel:       "INFO",
		BadgerFilepath: "/tmp/historial",
		CensorChar:     "*",
		MetricInterval: 30 * time.Second,
	}
}

func TestConfig_Validate(t *testing.T) {
	req := require.New(t)

	req.NoError(validConfig().Validate())

	missingDB := validConfig()
	missingDB.BadgerFilepath = ""
	req.Error(missingDB.Validate())

	badPort := validConfig()
	badPort.Port = 70000
	req.Error(badPort.Validate())

	tinyBuffer := validConfig()
	tinyBuffer.BufferSize = 16
	req.Error(tinyBuffer.Validate())
}

func TestConfig_Addr(t *testing.T) {
	require.Equal(t, "localhost:5000", validConfig().Addr())
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)

	r, err := CharacterRune("*")
	req.NoError(err)
	req.Equal('*', r)

	_, err = CharacterRune("**")
	req.Error(err)
	_, err = CharacterRune("")
	req.Error(err)
}
