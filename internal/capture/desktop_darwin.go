//go:build darwin

package capture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

type darwinGrabber struct{ tempDir string }

func newPlatformGrabber(tempDir string) grabber { return &darwinGrabber{tempDir: tempDir} }

func (d *darwinGrabber) available() error {
	if _, err := exec.LookPath("screencapture"); err != nil {
		return fmt.Errorf("screencapture not found: %w", err)
	}
	return nil
}

func (d *darwinGrabber) grab(ctx context.Context) ([]byte, error) {
	tmpFile := filepath.Join(d.tempDir, screenshotName)
	// -x: no sound, -m: main display only
	cmd := exec.CommandContext(ctx, "screencapture", "-x", "-t", "png", "-m", tmpFile)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("screencapture: %w: %s", err, stderr.String())
	}
	defer os.Remove(tmpFile)
	return os.ReadFile(tmpFile)
}
