package logger

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger writes JSON lines to w when jsonOutput is set and
// human-readable console lines otherwise.
func NewZerologLogger(w io.Writer, jsonOutput bool) *ZerologLogger {
	if !jsonOutput {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return &ZerologLogger{
		zl: zerolog.New(w).With().Timestamp().Str("service", "pagewatch").Logger(),
	}
}

// WithComponent returns a child logger tagging every entry with the
// component name.
func (z *ZerologLogger) WithComponent(name string) *ZerologLogger {
	return &ZerologLogger{zl: z.zl.With().Str("component", name).Logger()}
}

func (z *ZerologLogger) Info(format string, args ...interface{}) {
	z.zl.Info().Msg(fmt.Sprintf(format, args...))
}

func (z *ZerologLogger) Warning(format string, args ...interface{}) {
	z.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

func (z *ZerologLogger) Error(format string, args ...interface{}) {
	z.zl.Error().Msg(fmt.Sprintf(format, args...))
}

// Close is a no-op; zerolog holds no resources of its own.
func (z *ZerologLogger) Close() error {
	return nil
}

var _ Logger = (*ZerologLogger)(nil)
