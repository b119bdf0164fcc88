package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewParsesLevel(t *testing.T) {
	log := New(Config{Level: "warn"})
	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())

	log = New(Config{Level: " DEBUG "})
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
}

func TestNewFallsBackToInfo(t *testing.T) {
	for _, level := range []string{"", "verbose", "loud"} {
		log := New(Config{Level: level})
		assert.Equal(t, zerolog.InfoLevel, log.GetLevel(), "level %q", level)
	}
}
