package capture

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/glimpsehq/glimpse/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEncodePNG(t *testing.T) {
	data := []byte{0x89, 'P', 'N', 'G'}
	url := EncodePNG(data)
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/png;base64,"))
	require.NoError(t, err)
	require.Equal(t, data, decoded)
}

// Uses cp as a stand-in capture command: the service appends the output path
// as the last argument, exactly like screencapture.
func TestCapture_Success(t *testing.T) {
	src := filepath.Join(t.TempDir(), "shot.png")
	content := []byte("fake png bytes")
	require.NoError(t, os.WriteFile(src, content, 0o644))

	svc := New(config.CaptureConfig{Command: "cp", Args: []string{src}}, testLogger())
	url, err := svc.Capture(context.Background())
	require.NoError(t, err)
	require.Equal(t, EncodePNG(content), url)
}

func TestCapture_Cancelled(t *testing.T) {
	// A command that exits non-zero without writing the output file is how
	// screencapture reports a dismissed selection.
	svc := New(config.CaptureConfig{Command: "false"}, testLogger())
	_, err := svc.Capture(context.Background())
	require.ErrorIs(t, err, ErrCancelled)
}

func TestCapture_EmptyFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "empty.png")
	require.NoError(t, os.WriteFile(src, nil, 0o644))

	svc := New(config.CaptureConfig{Command: "cp", Args: []string{src}}, testLogger())
	_, err := svc.Capture(context.Background())
	require.ErrorIs(t, err, ErrCancelled)
}
