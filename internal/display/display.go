// Package display shows classified images to the user.
package display

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
)

type Displayer interface {
	Display(path string) error
}

// Nop discards display requests.
type Nop struct{}

func (Nop) Display(string) error { return nil }

var ErrNoViewer = errors.New("no image viewer available")

// Viewer hands the file to an external program and does not wait for it.
type Viewer struct {
	name   string
	args   []string
	logger *zap.Logger

	mu       sync.Mutex
	disabled bool
	wg       sync.WaitGroup
}

// DefaultCommand returns the desktop opener for the current platform.
func DefaultCommand() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"open"}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler"}
	default:
		return []string{"xdg-open"}
	}
}

// NewViewer builds a viewer from a command line such as "feh --scale-down".
// An empty command selects the platform opener. The image path is appended
// as the last argument.
func NewViewer(command string, logger *zap.Logger) *Viewer {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		argv = DefaultCommand()
	}
	return &Viewer{
		name:   argv[0],
		args:   argv[1:],
		logger: logger.Named("display"),
	}
}

func (v *Viewer) Display(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.disabled {
		return nil
	}
	bin, err := exec.LookPath(v.name)
	if err != nil {
		v.disabled = true
		v.logger.Warn("image viewer not found, display disabled", zap.String("viewer", v.name))
		return fmt.Errorf("%w: %w", ErrNoViewer, err)
	}

	cmd := exec.Command(bin, append(append([]string{}, v.args...), path)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", v.name, err)
	}

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		if err := cmd.Wait(); err != nil {
			v.logger.Warn("image viewer exited with error",
				zap.String("path", path),
				zap.Error(err),
				zap.String("stderr", strings.TrimSpace(stderr.String())))
		}
	}()
	return nil
}

// wait blocks until every launched viewer has exited.
func (v *Viewer) wait() {
	v.wg.Wait()
}
