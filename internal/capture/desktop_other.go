//go:build !darwin && !linux

package capture

import (
	"context"
	"errors"
)

// TODO: Implement using Windows GDI or DXGI
type unsupportedGrabber struct{}

func newPlatformGrabber(string) grabber { return unsupportedGrabber{} }

func (unsupportedGrabber) available() error {
	return errors.New("desktop capture is not supported on this platform")
}

func (unsupportedGrabber) grab(context.Context) ([]byte, error) {
	return nil, errors.New("desktop capture is not supported on this platform")
}
