package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/companyzero/uvcloop/internal/assert"
	"github.com/companyzero/uvcloop/internal/testutils"
	"github.com/companyzero/uvcloop/internal/usbwatch"
	"github.com/decred/slog"
)

func writeTestConfig(t testing.TB, contents string) string {
	t.Helper()
	fname := filepath.Join(testutils.TempTestDir(t, "uvcloopd"), "uvcloopd.conf")
	if err := os.WriteFile(fname, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return fname
}

func TestLoadSettingsMissingFile(t *testing.T) {
	t.Parallel()

	rootDir := testutils.TempTestDir(t, "uvcloopd")
	s, err := loadSettings(filepath.Join(rootDir, "missing.conf"), rootDir)
	assert.NilErr(t, err)
	assert.DeepEqual(t, s, defaultSettings(rootDir))
}

func TestLoadSettings(t *testing.T) {
	t.Parallel()

	fname := writeTestConfig(t, `
listenprometheus = 127.0.0.1:9100

[audio]
gain = -3.5
capturedevice = USB Video: USB Audio
playbackdevice = Headphones

[usb]
captureids = 534d:2109, 1b3f:2247
devdir = /tmp/usb
rescaninterval = 2s

[log]
logfile = /tmp/uvcloopd.log
debuglevel = info,LOOP=trace
profiler = 127.0.0.1:6060
statsinterval =
`)
	s, err := loadSettings(fname, "/root")
	assert.NilErr(t, err)

	want := &settings{
		ListenPrometheus: "127.0.0.1:9100",
		PlaybackGain:     -3.5,
		CaptureDevice:    "USB Video: USB Audio",
		PlaybackDevice:   "Headphones",
		CaptureIDs: []usbwatch.DeviceID{
			{VendorID: 0x534d, ProductID: 0x2109},
			{VendorID: 0x1b3f, ProductID: 0x2247},
		},
		DevDir:         "/tmp/usb",
		RescanInterval: 2 * time.Second,
		LogFile:        "/tmp/uvcloopd.log",
		DebugLevel:     "info,LOOP=trace",
		Profiler:       "127.0.0.1:6060",
		StatsInterval:  0,
	}
	assert.DeepEqual(t, s, want)
}

func TestLoadSettingsDisabledRescan(t *testing.T) {
	t.Parallel()

	fname := writeTestConfig(t, "[usb]\nrescaninterval =\n")
	s, err := loadSettings(fname, "/root")
	assert.NilErr(t, err)
	assert.DeepEqual(t, s.RescanInterval, time.Duration(-1))
}

func TestLoadSettingsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		contents string
	}{
		{"bad gain", "[audio]\ngain = loud\n"},
		{"bad capture ids", "[usb]\ncaptureids = 534d\n"},
		{"bad rescan interval", "[usb]\nrescaninterval = often\n"},
		{"bad stats interval", "[log]\nstatsinterval = 5\n"},
		{"bad debug level", "[log]\ndebuglevel = verbose\n"},
		{"bad subsys level", "[log]\ndebuglevel = LOOP=verbose\n"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := loadSettings(writeTestConfig(t, tc.contents), "/root")
			assert.NonNilErr(t, err)
		})
	}
}

func TestParseDebugLevel(t *testing.T) {
	t.Parallel()

	def, levels, err := parseDebugLevel("debug, usbw=trace,LOOP=warn")
	assert.NilErr(t, err)
	assert.DeepEqual(t, def, slog.LevelDebug)
	assert.DeepEqual(t, levels, map[string]slog.Level{
		"USBW": slog.LevelTrace,
		"LOOP": slog.LevelWarn,
	})

	_, _, err = parseDebugLevel("a=b=c")
	assert.NonNilErr(t, err)
	_, _, err = parseDebugLevel("NOPE=debug")
	assert.NonNilErr(t, err)
}

func TestLogBackendLevels(t *testing.T) {
	t.Parallel()

	bknd, err := newLogBackend("", "warn,LOOP=debug", nil)
	assert.NilErr(t, err)
	assert.DeepEqual(t, bknd.logger(subsysLoopback).Level(), slog.LevelDebug)
	for _, subsys := range knownSubsystems {
		if subsys == subsysLoopback {
			continue
		}
		assert.DeepEqual(t, bknd.logger(subsys).Level(), slog.LevelWarn)
	}
}
