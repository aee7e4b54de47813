package zerolog

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

func init() {
	InitDefaultLogger(os.Stderr)
}

// InitDefaultLogger installs a JSON logger with caller info writing to w.
func InitDefaultLogger(w io.Writer) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := zerolog.New(w).With().Timestamp().Caller().Logger()
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
}

// InitLogger sets the global level and output format. Unknown levels fall
// back to info, unknown formats to json.
func InitLogger(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var w io.Writer = os.Stderr
	if strings.EqualFold(format, FormatConsole) {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	InitDefaultLogger(w)
}
