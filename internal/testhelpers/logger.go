package testhelpers

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/myrjola/noir/internal/logging"
)

// NewLogger creates a new logger with the given log sink such as io.Discard.
func NewLogger(logSink io.Writer) *slog.Logger {
	handler := logging.NewContextHandler(slog.NewTextHandler(logSink, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	return slog.New(handler)
}

type testWriter struct {
	tb testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.tb.Helper()
	w.tb.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// NewTestLogger logs through tb.Log so that the output is shown only for failing or verbose tests.
func NewTestLogger(tb testing.TB) *slog.Logger {
	tb.Helper()
	return NewLogger(testWriter{tb: tb})
}
