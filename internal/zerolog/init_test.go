package zerolog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestInitLoggerLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	InitLogger("debug", FormatJSON)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	InitLogger("nonsense", FormatJSON)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	InitLogger("", FormatConsole)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestDefaultLoggerWritesCaller(t *testing.T) {
	var buf bytes.Buffer
	InitDefaultLogger(&buf)
	defer InitDefaultLogger(&bytes.Buffer{})

	log.Error().Err(errors.New("boom")).Msg("failed")

	out := buf.String()
	assert.Contains(t, out, `"caller"`)
	assert.Contains(t, out, `"boom"`)
}
