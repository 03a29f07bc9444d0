package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"videofetch/internal/core/domain"
	"videofetch/internal/core/ports"
)

// validate probes the transferred file's media duration to distinguish a
// genuine video from a corrupt transfer. Integrity checking is
// best-effort: a missing probe tool degrades to accepting the file. A
// zero or unreadable duration means corrupt; the file is deleted so no
// bad output survives a failed run.
func (o *Orchestrator) validate(ctx context.Context, localPath string, log zerolog.Logger) (domain.ValidationOutcome, error) {
	seconds, err := o.prober.Duration(ctx, localPath)
	if errors.Is(err, domain.ErrProberUnavailable) {
		log.Warn().Msg("media probe tool unavailable, skipping integrity check")
		return domain.ValidationOutcome{Valid: true}, nil
	}

	name := filepath.Base(localPath)
	if err != nil || seconds <= 0 {
		if removeErr := os.Remove(localPath); removeErr != nil {
			log.Error().Err(removeErr).Msg("failed to delete corrupt file")
		}
		log.Error().Err(err).Float64("duration", seconds).Msg("corrupt video deleted")
		o.alert(ctx, ports.PriorityHigh, fmt.Sprintf("%s: downloaded file is corrupt, deleted", name), log)
		if err != nil {
			return domain.ValidationOutcome{}, fmt.Errorf("media probe: %w", err)
		}
		return domain.ValidationOutcome{}, fmt.Errorf("corrupt video: no usable duration")
	}

	log.Info().Float64("duration", seconds).Msg("video validated")
	return domain.ValidationOutcome{Valid: true, Duration: seconds}, nil
}
