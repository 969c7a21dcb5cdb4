package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/companyzero/uvcloop/internal/usbwatch"
	"github.com/companyzero/uvcloop/internal/version"
	"github.com/vaughan0/go-ini"
)

const maxLogFiles = 10

type settings struct {
	ListenPrometheus string // listen addr for metrics

	// audio section
	PlaybackGain   float64
	CaptureDevice  string // capture device name
	PlaybackDevice string // playback device name

	// usb section
	CaptureIDs     []usbwatch.DeviceID
	DevDir         string
	RescanInterval time.Duration

	// log section
	LogFile       string // log filename
	DebugLevel    string // debug level config string
	Profiler      string // go profiler link
	StatsInterval time.Duration

	// Command line only.
	ListDevices bool
	Interactive bool
}

func defaultSettings(rootDir string) *settings {
	return &settings{
		DevDir:         usbwatch.DefaultDevDir,
		RescanInterval: usbwatch.DefaultRescanInterval,
		LogFile:        filepath.Join(rootDir, "logs", "uvcloopd.log"),
		DebugLevel:     "info",
		StatsInterval:  time.Minute,
	}
}

// loadSettings loads the settings from the config file. A missing file means
// default settings.
func loadSettings(filename, rootDir string) (*settings, error) {
	s := defaultSettings(rootDir)

	cfg, err := ini.LoadFile(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	get := func(s *string, section, field string) bool {
		v, ok := cfg.Get(section, field)
		if ok {
			*s = v
		}
		return ok
	}
	getDuration := func(d *time.Duration, section, field string) error {
		var v string
		if !get(&v, section, field) {
			return nil
		}
		if v == "" {
			// Disabled.
			*d = 0
			return nil
		}
		dur, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("unable to parse %s.%s duration: %v",
				section, field, err)
		}
		*d = dur
		return nil
	}

	// Fill settings.
	get(&s.ListenPrometheus, "", "listenprometheus")
	get(&s.CaptureDevice, "audio", "capturedevice")
	get(&s.PlaybackDevice, "audio", "playbackdevice")
	var gain string
	if get(&gain, "audio", "gain") && gain != "" {
		s.PlaybackGain, err = strconv.ParseFloat(gain, 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse audio.gain: %v", err)
		}
	}

	var captureIDs string
	if get(&captureIDs, "usb", "captureids") {
		s.CaptureIDs, err = usbwatch.ParseDeviceIDs(captureIDs)
		if err != nil {
			return nil, err
		}
	}
	get(&s.DevDir, "usb", "devdir")
	if err := getDuration(&s.RescanInterval, "usb", "rescaninterval"); err != nil {
		return nil, err
	}
	if s.RescanInterval == 0 {
		// The watcher treats negative values as disabled.
		s.RescanInterval = -1
	}

	get(&s.LogFile, "log", "logfile")
	get(&s.DebugLevel, "log", "debuglevel")
	get(&s.Profiler, "log", "profiler")
	if err := getDuration(&s.StatsInterval, "log", "statsinterval"); err != nil {
		return nil, err
	}

	if _, _, err := parseDebugLevel(s.DebugLevel); err != nil {
		return nil, err
	}

	return s, nil
}

func obtainSettings() (*settings, error) {
	// setup default paths
	usr, err := user.Current()
	if err != nil {
		return nil, err
	}

	// config file
	rootDir := filepath.Join(usr.HomeDir, ".uvcloopd")
	filename := flag.String("cfg", filepath.Join(rootDir, "uvcloopd.conf"), "config file")
	versionFlag := flag.Bool("version", false, "show version")
	showEnvFlag := flag.Bool("showenv", false, "show environment and config information")
	lsdevFlag := flag.Bool("lsdev", false, "list audio devices and quit")
	interactiveFlag := flag.Bool("interactive", false, "control the loopback from the terminal")
	flag.Parse()

	println := func(format string, args ...interface{}) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
	if *versionFlag || *showEnvFlag {
		println("uvcloopd %s (%s)", version.String(), runtime.Version())
	}
	if *versionFlag {
		os.Exit(0)
	}
	if *showEnvFlag {
		println("Username: %s", usr.Username)
		println("Uid: %s", usr.Uid)
		println("Home dir: %s", usr.HomeDir)
		println("Root dir: %s", rootDir)
		println("Config file path: %s", *filename)
	}

	s, err := loadSettings(*filename, rootDir)
	if err != nil {
		return nil, err
	}
	s.ListDevices = *lsdevFlag
	s.Interactive = *interactiveFlag

	if *showEnvFlag {
		println("Log file: %q", s.LogFile)
		println("Playback gain: %.2f dB", s.PlaybackGain)
		println("Capture device: %q", s.CaptureDevice)
		println("Playback device: %q", s.PlaybackDevice)
		println("USB device dir: %q", s.DevDir)
		println("Additional USB capture devices:")
		for i, id := range s.CaptureIDs {
			println("  %d - %s", i, id)
		}
		os.Exit(0)
	}

	return s, nil
}
