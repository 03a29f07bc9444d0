// Package ffprobe extracts media container duration using the local
// ffprobe binary.
package ffprobe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"videofetch/internal/core/domain"
	"videofetch/internal/core/ports"
)

// Prober shells out to ffprobe. A missing binary is reported as
// domain.ErrProberUnavailable so the caller can degrade gracefully.
type Prober struct {
	binaryPath string
}

var _ ports.MediaProber = (*Prober)(nil)

// New creates a prober that expects ffprobe on PATH.
func New() *Prober {
	return &Prober{binaryPath: "ffprobe"}
}

// Duration returns the container duration in seconds. Unparsable probe
// output yields zero with no error; the validator treats zero as corrupt.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	if _, err := exec.LookPath(p.binaryPath); err != nil {
		return 0, domain.ErrProberUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binaryPath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return 0, domain.ErrProberUnavailable
		}
		return 0, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	raw := strings.TrimSpace(out.String())
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		// Missing or non-numeric duration reads as zero, i.e. corrupt.
		return 0, nil
	}
	return seconds, nil
}
