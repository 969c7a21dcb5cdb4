//go:build !linux

package main

import (
	"context"
	"errors"

	"github.com/companyzero/uvcloop/internal/audio"
	"github.com/companyzero/uvcloop/internal/loopctl"
)

type userInputCtl struct{}

func (uic *userInputCtl) run(ctx context.Context) error { return nil }

func initUserInputCtl(ctl *loopctl.Controller, loop *audio.Loopback, quit func()) (*userInputCtl, error) {
	return nil, errors.New("interactive mode is only supported on linux")
}
