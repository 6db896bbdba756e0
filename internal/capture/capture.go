// Package capture shells out to the OS screenshot utility and returns the
// captured region as an image data URL.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/glimpsehq/glimpse/internal/config"
)

// ErrCancelled is returned when the user dismisses the selection without
// capturing anything.
var ErrCancelled = errors.New("capture cancelled")

// Service invokes an external capture command (screencapture -i on macOS)
// that writes a PNG to a path passed as its last argument.
type Service struct {
	command string
	args    []string
	logger  *slog.Logger
}

func New(cfg config.CaptureConfig, logger *slog.Logger) *Service {
	return &Service{command: cfg.Command, args: cfg.Args, logger: logger}
}

// Capture runs the capture command and returns the image as a
// data:image/png;base64 URL.
func (s *Service) Capture(ctx context.Context) (string, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("glimpse-%d.png", time.Now().UnixNano()))
	defer os.Remove(path)

	args := append(append([]string{}, s.args...), path)
	cmd := exec.CommandContext(ctx, s.command, args...)
	if err := cmd.Run(); err != nil {
		// screencapture exits non-zero when the selection is dismissed;
		// only treat it as a real failure if no file was produced for
		// another reason.
		if _, statErr := os.Stat(path); statErr != nil {
			s.logger.Debug("capture produced no file", "error", err)
			return "", ErrCancelled
		}
		return "", fmt.Errorf("capture command failed: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", ErrCancelled
	}
	if len(data) == 0 {
		return "", ErrCancelled
	}
	return EncodePNG(data), nil
}

// EncodePNG wraps raw PNG bytes in a data URL, the shape the completion
// service and the store both consume.
func EncodePNG(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}
