package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"videofetch/internal/core/domain"
)

// scheduleWindow bounds how far back the estimator looks for a schedule
// announcement. Anything older describes a previous production run.
const scheduleWindow = 24 * time.Hour

// estimateSleep derives how long to wait before polling from the most
// recent schedule announcement ("End: HH:MM") on the feed. An empty or
// unreadable feed downgrades to polling immediately; readiness estimation
// is advisory, never fatal.
func (o *Orchestrator) estimateSleep(ctx context.Context, req domain.FetchRequest, log zerolog.Logger) time.Duration {
	msgs, err := o.feed.Poll(ctx, scheduleWindow)
	if err != nil {
		log.Warn().Err(err).Msg("readiness unknown: feed poll failed")
		return 0
	}

	now := o.now()
	hour, minute := 0, 0
	found := false
	// Messages arrive oldest first; the last match is authoritative.
	for _, m := range msgs {
		if now.Sub(m.Time) > scheduleWindow {
			continue
		}
		if h, min, ok := domain.ParseEndTime(m.Text); ok {
			hour, minute = h, min
			found = true
		}
	}
	if !found {
		log.Info().Msg("readiness unknown: no schedule announcement, polling immediately")
		return 0
	}

	d := domain.SleepUntilReady(hour, minute, o.timing.Buffer(), now)
	log.Info().
		Str("end", time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC).Format("15:04")).
		Dur("buffer", o.timing.Buffer()).
		Dur("sleep", d).
		Msg("estimated completion time")
	return d
}
