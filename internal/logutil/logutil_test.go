package logutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/decred/slog"
)

func TestPrefixLogger(t *testing.T) {
	var buf bytes.Buffer
	bknd := slog.NewBackend(&buf)
	base := bknd.Logger("LOOP")
	base.SetLevel(slog.LevelInfo)

	log := PrefixLogger(base, "[session 3]")
	log.Infof("started %d", 1)
	log.Warn("gone")
	log.Debugf("hidden")

	got := buf.String()
	wantLines := []string{"[session 3] started 1", "[session 3] gone"}
	for _, want := range wantLines {
		if !strings.Contains(got, want) {
			t.Fatalf("log output %q does not contain %q", got, want)
		}
	}
	if strings.Contains(got, "[session 3]  ") {
		t.Fatalf("prefix followed by a double space: %q", got)
	}
	if strings.Contains(got, "hidden") {
		t.Fatalf("debug message written at info level: %q", got)
	}

	log.SetLevel(slog.LevelDebug)
	if base.Level() != slog.LevelDebug {
		t.Fatalf("unexpected base level %s", base.Level())
	}
}
