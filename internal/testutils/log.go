package testutils

import (
	"io"
	"sync"
	"testing"

	"github.com/decred/slog"
)

// TestLogBackend is a slog backend that writes through t.Log.
type TestLogBackend struct {
	mtx     sync.Mutex
	tb      testing.TB
	w       io.Writer
	done    bool
	showLog bool
}

func (tlb *TestLogBackend) Write(b []byte) (int, error) {
	tlb.mtx.Lock()
	if !tlb.done && tlb.showLog {
		tlb.tb.Log(string(b[:len(b)-1]))
	}
	tlb.mtx.Unlock()

	if tlb.w != nil {
		tlb.w.Write(b)
	}
	return len(b), nil
}

type TestLogBackendOption func(t *TestLogBackend)

// WithMiddlewareWriter also copies every log line to w.
func WithMiddlewareWriter(w io.Writer) TestLogBackendOption {
	return func(t *TestLogBackend) {
		t.w = w
	}
}

// NewTestLogBackend returns a log backend that can be used as an io.Writer to
// write logs to during a test.
func NewTestLogBackend(t testing.TB, opts ...TestLogBackendOption) *TestLogBackend {
	// Lines are only shown with -v.
	tlb := &TestLogBackend{tb: t, showLog: testing.Verbose()}
	for _, opt := range opts {
		opt(tlb)
	}
	t.Cleanup(func() {
		// Audio workers may still log after the test ends and t.Log
		// panics then.
		tlb.mtx.Lock()
		tlb.done = true
		tlb.mtx.Unlock()
	})
	return tlb
}

// TestLoggerSys returns a trace level slog.Logger for subsystem sys.
func TestLoggerSys(t testing.TB, sys string, opts ...TestLogBackendOption) slog.Logger {
	bknd := slog.NewBackend(NewTestLogBackend(t, opts...))
	logg := bknd.Logger(sys)
	logg.SetLevel(slog.LevelTrace)
	return logg
}
