package main

import (
	"context"
	"fmt"
	"os"

	"github.com/companyzero/uvcloop/internal/audio"
	"github.com/companyzero/uvcloop/internal/loopctl"
	"golang.org/x/sys/unix"
)

type userInputCtl struct {
	oldTermios *unix.Termios
	ctl        *loopctl.Controller
	loop       *audio.Loopback
	quit       func()
	gain       float64
}

func (uic *userInputCtl) processInput(_ context.Context, in []byte) {
	switch in[0] {
	case 's':
		uic.ctl.RequestStart()

	case 'x':
		uic.ctl.RequestStop()

	case '+':
		uic.gain += 1
		uic.loop.SetPlaybackGain(uic.gain)
		fmt.Printf("Playback gain: %.0f dB\r\n", uic.gain)

	case '-':
		uic.gain -= 1
		uic.loop.SetPlaybackGain(uic.gain)
		fmt.Printf("Playback gain: %.0f dB\r\n", uic.gain)

	case 'l':
		capture, playback := uic.ctl.Routes()
		fmt.Printf("Status: %s\r\n", uic.ctl.Status())
		fmt.Printf("Input: %s\r\n", capture)
		fmt.Printf("Output: %s\r\n", playback)

	case 'q':
		uic.quit()
	}
}

func (uic *userInputCtl) run(ctx context.Context) error {
	defer restoreTerminal(os.Stdin, uic.oldTermios)
	b := make([]byte, 1)

	stdin := os.Stdin

	readChan := make(chan int, 10)
	errChan := make(chan error, 10)
	readNext := func() {
		n, err := stdin.Read(b)
		if err != nil {
			errChan <- err
		} else {
			readChan <- n
		}
	}

	fmt.Printf("Keys: s start, x stop, +/- gain, l status, q quit\r\n")
	for ctx.Err() == nil {
		go readNext()
		select {
		case n := <-readChan:
			if n == 0 {
				continue
			}

			uic.processInput(ctx, b)

		case err := <-errChan:
			return err
		case <-ctx.Done():
			return nil
		}
	}

	return nil
}

func initUserInputCtl(ctl *loopctl.Controller, loop *audio.Loopback, quit func()) (*userInputCtl, error) {
	oldTermios, err := makeRaw(os.Stdin)
	if err != nil {
		return nil, err
	}
	return &userInputCtl{
		oldTermios: oldTermios,
		ctl:        ctl,
		loop:       loop,
		quit:       quit,
		gain:       loop.PlaybackGain(),
	}, nil
}

func makeRaw(f *os.File) (*unix.Termios, error) {
	termios, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	if err != nil {
		return nil, err
	}

	oldTermios := *termios

	// Turn off ICANON (canonical mode) and ECHO
	termios.Lflag &^= unix.ICANON | unix.ECHO

	// Set minimum number of bytes for non-canonical read
	termios.Cc[unix.VMIN] = 1
	// Set timeout to 0 deciseconds
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(int(f.Fd()), unix.TCSETS, termios); err != nil {
		return nil, err
	}

	return &oldTermios, nil
}

func restoreTerminal(f *os.File, termios *unix.Termios) error {
	return unix.IoctlSetTermios(int(f.Fd()), unix.TCSETS, termios)
}
