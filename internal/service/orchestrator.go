package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"videofetch/internal/config"
	"videofetch/internal/core/domain"
	"videofetch/internal/core/ports"
)

// Orchestrator drives one fetch invocation through its stages: readiness
// estimation, completion polling, transport, and integrity validation.
// It is single-threaded; every delay is a plain suspension.
type Orchestrator struct {
	feed       ports.NotificationFeed
	alerter    ports.Alerter
	transport  ports.RemoteTransport
	remediator ports.Remediator
	prober     ports.MediaProber
	timing     config.TimingConfig
	remoteDir  string
	localDir   string
	logger     zerolog.Logger

	now func() time.Time // injected for tests
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Feed       ports.NotificationFeed
	Alerter    ports.Alerter
	Transport  ports.RemoteTransport
	Remediator ports.Remediator
	Prober     ports.MediaProber
	Timing     config.TimingConfig
	RemoteDir  string
	LocalDir   string
	Logger     zerolog.Logger
}

// New creates an Orchestrator.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		feed:       deps.Feed,
		alerter:    deps.Alerter,
		transport:  deps.Transport,
		remediator: deps.Remediator,
		prober:     deps.Prober,
		timing:     deps.Timing,
		remoteDir:  deps.RemoteDir,
		localDir:   deps.LocalDir,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// Result summarizes a completed fetch.
type Result struct {
	RunID     string
	Artifact  string
	LocalPath string
	Skipped   bool   // a matching local file already existed
	Duration  string // human-readable, empty when the probe was unavailable
}

// Run executes the full fetch flow for the request. A non-nil error means
// the process should exit non-zero; alerts have already been sent.
func (o *Orchestrator) Run(ctx context.Context, req domain.FetchRequest) (*Result, error) {
	runID := uuid.New().String()
	log := o.logger.With().Str("run_id", runID).Str("project", req.Project).Str("date", req.Date).Logger()

	result := &Result{RunID: runID}
	log.Info().Bool("force", req.Force).Msg("starting fetch")

	// Best-effort mutual exclusion against duplicate runs: an existing
	// local file for this date means a previous invocation already
	// finished, so stop before touching the network.
	if !req.Force {
		if existing := o.findLocal(req); existing != "" {
			log.Info().Str("file", existing).Msg("local file already exists, skipping")
			result.Skipped = true
			result.LocalPath = existing
			return result, nil
		}
	}

	var artifact string
	if req.Force {
		log.Info().Msg("force mode: skipping readiness estimation and polling")
	} else {
		if d := o.estimateSleep(ctx, req, log); d > 0 {
			log.Info().Dur("sleep", d).Msg("waiting for expected completion time")
			if err := o.sleep(ctx, d); err != nil {
				return result, err
			}
		}

		name, err := o.pollForCompletion(ctx, req, log)
		if err != nil {
			return result, err
		}
		artifact = name
	}

	localPath, artifact, err := o.fetch(ctx, req, artifact, log)
	if err != nil {
		return result, err
	}
	result.Artifact = artifact
	result.LocalPath = localPath

	outcome, err := o.validate(ctx, localPath, log)
	if err != nil {
		return result, err
	}
	if outcome.Valid && outcome.Duration > 0 {
		result.Duration = domain.FormatDuration(outcome.Duration)
	}

	success := fmt.Sprintf("%s downloaded to %s", artifact, o.localDir)
	if result.Duration != "" {
		success = fmt.Sprintf("%s downloaded (%s)", artifact, result.Duration)
	}
	o.alert(ctx, ports.PriorityDefault, success, log)
	log.Info().Str("file", localPath).Str("duration", result.Duration).Msg("fetch complete")

	return result, nil
}

// findLocal returns the path of an existing local file matching either
// artifact variant, or "".
func (o *Orchestrator) findLocal(req domain.FetchRequest) string {
	for _, name := range domain.ArtifactVariants(req.Project, req.Date) {
		path := filepath.Join(o.localDir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// alert pushes a notification and swallows any transport failure; alerts
// are best-effort and never change the fetch outcome.
func (o *Orchestrator) alert(ctx context.Context, priority ports.Priority, text string, log zerolog.Logger) {
	if err := o.alerter.Send(ctx, priority, text); err != nil {
		log.Warn().Err(err).Msg("alert delivery failed")
	}
}

// sleep suspends until the duration elapses or the context is cancelled.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (o *Orchestrator) remotePath(name string) string {
	if o.remoteDir == "" {
		return name
	}
	return o.remoteDir + "/" + name
}
