//go:build linux

package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

type linuxGrabber struct{ tempDir string }

func newPlatformGrabber(tempDir string) grabber { return &linuxGrabber{tempDir: tempDir} }

// tool prefers gnome-screenshot and falls back to scrot.
func (l *linuxGrabber) tool() (string, error) {
	for _, name := range []string{"gnome-screenshot", "scrot"} {
		if _, err := exec.LookPath(name); err == nil {
			return name, nil
		}
	}
	return "", errors.New("no screenshot tool found (install gnome-screenshot or scrot)")
}

func (l *linuxGrabber) available() error {
	_, err := l.tool()
	return err
}

func (l *linuxGrabber) grab(ctx context.Context) ([]byte, error) {
	name, err := l.tool()
	if err != nil {
		return nil, err
	}
	tmpFile := filepath.Join(l.tempDir, screenshotName)
	var cmd *exec.Cmd
	if name == "scrot" {
		cmd = exec.CommandContext(ctx, name, "-o", tmpFile)
	} else {
		cmd = exec.CommandContext(ctx, name, "-f", tmpFile)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, stderr.String())
	}
	defer os.Remove(tmpFile)
	return os.ReadFile(tmpFile)
}
