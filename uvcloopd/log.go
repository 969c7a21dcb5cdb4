package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
	"golang.org/x/exp/slices"
)

// Log subsystems.
const (
	subsysMain     = "UVCL"
	subsysAudio    = "AUDI"
	subsysLoopback = "LOOP"
	subsysUSB      = "USBW"
	subsysControl  = "LCTL"
)

var knownSubsystems = []string{subsysMain, subsysAudio, subsysLoopback,
	subsysUSB, subsysControl}

type logBackend struct {
	stdOut          io.Writer
	logRotator      *rotator.Rotator
	bknd            *slog.Backend
	defaultLogLevel slog.Level
	logLevels       map[string]slog.Level
}

// parseDebugLevel parses a debuglevel string. It is either a single level
// applied to all subsystems or a comma separated list of level and
// subsys=level entries.
func parseDebugLevel(debugLevel string) (slog.Level, map[string]slog.Level, error) {
	defaultLevel := slog.LevelInfo
	levels := make(map[string]slog.Level)
	for _, v := range strings.Split(debugLevel, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		fields := strings.Split(v, "=")
		switch len(fields) {
		case 1:
			level, ok := slog.LevelFromString(fields[0])
			if !ok {
				return 0, nil, fmt.Errorf("unknown log level %q", fields[0])
			}
			defaultLevel = level
		case 2:
			subsys := strings.ToUpper(strings.TrimSpace(fields[0]))
			if !slices.Contains(knownSubsystems, subsys) {
				return 0, nil, fmt.Errorf("unknown log subsystem %q", fields[0])
			}
			level, ok := slog.LevelFromString(fields[1])
			if !ok {
				return 0, nil, fmt.Errorf("unknown log level %q", fields[1])
			}
			levels[subsys] = level
		default:
			return 0, nil, fmt.Errorf("unable to parse %q as subsys=level "+
				"debuglevel string", v)
		}
	}
	return defaultLevel, levels, nil
}

func newLogBackend(logFile, debugLevel string, stdOut io.Writer) (*logBackend, error) {
	defaultLevel, levels, err := parseDebugLevel(debugLevel)
	if err != nil {
		return nil, err
	}

	var logRotator *rotator.Rotator
	if logFile != "" {
		logDir := filepath.Dir(logFile)
		err := os.MkdirAll(logDir, 0700)
		if err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		logRotator, err = rotator.New(logFile, 1024, false, maxLogFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to create file rotator: %w", err)
		}
	}

	b := &logBackend{
		stdOut:          stdOut,
		logRotator:      logRotator,
		defaultLogLevel: defaultLevel,
		logLevels:       levels,
	}
	b.bknd = slog.NewBackend(b, slog.WithFlags(slog.LUTC))
	return b, nil
}

func (bknd *logBackend) Write(b []byte) (int, error) {
	if bknd.stdOut != nil {
		bknd.stdOut.Write(b)
	}
	if bknd.logRotator != nil {
		bknd.logRotator.Write(b)
	}

	return len(b), nil
}

func (bknd *logBackend) logger(subsys string) slog.Logger {
	l := bknd.bknd.Logger(subsys)
	if level, ok := bknd.logLevels[subsys]; ok {
		l.SetLevel(level)
	} else {
		l.SetLevel(bknd.defaultLogLevel)
	}
	return l
}

func (bknd *logBackend) close() error {
	if bknd.logRotator != nil {
		return bknd.logRotator.Close()
	}
	return nil
}
