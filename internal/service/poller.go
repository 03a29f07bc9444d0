package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"videofetch/internal/core/domain"
	"videofetch/internal/core/ports"
)

// confirmationWindow bounds how far back a save confirmation may date.
const confirmationWindow = 24 * time.Hour

// savedPhrase appears in the producer's save-confirmation message.
const savedPhrase = "saved"

// pollForCompletion polls the feed until a save confirmation names the
// produced artifact, and returns that filename. The attempt count is a
// hard ceiling so a stuck producer cannot stack cron invocations; hitting
// it sends a high-priority alert and fails the fetch.
func (o *Orchestrator) pollForCompletion(ctx context.Context, req domain.FetchRequest, log zerolog.Logger) (string, error) {
	prefix := fmt.Sprintf("%s.%s", req.Project, req.Date)

	for attempt := 1; attempt <= o.timing.PollMaxAttempts; attempt++ {
		msgs, err := o.feed.Poll(ctx, confirmationWindow)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("feed poll failed")
		} else if name := findConfirmation(msgs, req, prefix); name != "" {
			log.Info().Str("artifact", name).Int("attempt", attempt).Msg("save confirmation received")
			return name, nil
		}

		if attempt == o.timing.PollMaxAttempts {
			break
		}
		log.Debug().Int("attempt", attempt).Msg("no save confirmation yet")
		if err := o.sleep(ctx, o.timing.PollInterval()); err != nil {
			return "", err
		}
	}

	text := fmt.Sprintf("%s: no save confirmation after %d attempts, giving up", prefix, o.timing.PollMaxAttempts)
	o.alert(ctx, ports.PriorityHigh, text, log)
	return "", fmt.Errorf("polling timed out after %d attempts", o.timing.PollMaxAttempts)
}

// findConfirmation scans messages (oldest first) for the latest save
// confirmation naming a complete artifact. The filename embedded in the
// message is authoritative and may differ from the guessed variant.
func findConfirmation(msgs []ports.Message, req domain.FetchRequest, prefix string) string {
	name := ""
	for _, m := range msgs {
		if !strings.Contains(m.Text, prefix) {
			continue
		}
		if !strings.Contains(strings.ToLower(m.Text), savedPhrase) {
			continue
		}
		if n := domain.ExtractArtifactName(req.Project, req.Date, m.Text); n != "" {
			name = n
		}
	}
	return name
}
