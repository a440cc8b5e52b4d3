package moderation

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"chat-salas/errors"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// The dictionary uses specific words to avoid partial collisions
// (e.g. "he" inside "The").
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	dictionary := []string{"badger", "snake"}
	mod, err := NewModerator(dictionary, replacementChar, log)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "The badger is here",
			expected: "The ****** is here",
			words:    []string{"badger"},
		},
		{
			name:     "Leet speak variant",
			input:    "mira ese b4dg3r ahí",
			expected: "mira ese ****** ahí",
			words:    []string{"badger"},
		},
		{
			name:     "Noise separated uppercase",
			input:    "S-N-A-K-E al ataque",
			expected: "********* al ataque",
			words:    []string{"snake"},
		},
		{
			name:     "Clean text untouched",
			input:    "hola a todos",
			expected: "hola a todos",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			censored, found := mod.Censor(tt.input)
			require.Equal(t, tt.expected, censored)
			require.Equal(t, tt.words, found)
		})
	}
}

func TestNewModerator_EmptyDictionary(t *testing.T) {
	req := require.New(t)

	_, err := NewModerator(nil, replacementChar, logs.GetLoggerFromLevel(slog.LevelError))

	req.ErrorIs(err, errors.ErrEmptyWords)
}

func TestLoadWords(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "palabras.txt")
	req.NoError(os.WriteFile(path, []byte("badger\n\n# comentario\n  snake  \n"), 0o600))

	words, err := LoadWords(path)

	req.NoError(err)
	req.Equal([]string{"badger", "snake"}, words)
}
