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

// stage names the fetcher's state machine states for log correlation.
type stage string

const (
	stageCheckingReachability stage = "checking_reachability"
	stageResolvingName        stage = "resolving_name"
	stageTransferring         stage = "transferring"
	stageValidatingSize       stage = "validating_size"
	stageDone                 stage = "done"
)

// fetch runs the transport stage: reachability (with one remediated
// retry), filename resolution or re-verification, the transfer (with one
// delayed retry), and the local size check. Control flows strictly
// forward; any failure beyond the two retry edges aborts.
func (o *Orchestrator) fetch(ctx context.Context, req domain.FetchRequest, resolved string, log zerolog.Logger) (string, string, error) {
	log.Info().Str("stage", string(stageCheckingReachability)).Msg("verifying remote host")
	if err := o.ensureReachable(ctx, log); err != nil {
		return "", "", err
	}

	log.Info().Str("stage", string(stageResolvingName)).Msg("resolving remote artifact")
	artifact, err := o.resolveRemote(ctx, req, resolved, log)
	if err != nil {
		return "", "", err
	}

	localPath := filepath.Join(o.localDir, artifact)
	log.Info().Str("stage", string(stageTransferring)).Str("artifact", artifact).Msg("transferring")
	if err := o.transfer(ctx, artifact, localPath, log); err != nil {
		return "", "", err
	}

	log.Info().Str("stage", string(stageValidatingSize)).Msg("checking local file size")
	info, err := os.Stat(localPath)
	if err != nil {
		o.alert(ctx, ports.PriorityHigh, fmt.Sprintf("%s: local file missing after transfer", artifact), log)
		return "", "", fmt.Errorf("local file missing after transfer: %w", err)
	}
	if info.Size() == 0 {
		// The file stays on disk for operator inspection: an empty result
		// from a successful transfer points at a remote data problem.
		o.alert(ctx, ports.PriorityHigh, fmt.Sprintf("%s: transfer produced an empty file", artifact), log)
		return "", "", fmt.Errorf("transfer produced an empty local file")
	}

	log.Info().Str("stage", string(stageDone)).Int64("bytes", info.Size()).Msg("transfer complete")
	return localPath, artifact, nil
}

// ensureReachable probes the host, and on failure invokes the firewall
// remediator and rechecks exactly once. A second failure is terminal.
func (o *Orchestrator) ensureReachable(ctx context.Context, log zerolog.Logger) error {
	err := o.transport.CheckReachable(ctx)
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Msg("remote host unreachable")
	o.alert(ctx, ports.PriorityDefault, "remote host unreachable, trying firewall update", log)

	if err := o.remediator.Remediate(ctx); err != nil {
		o.alert(ctx, ports.PriorityHigh, "firewall remediation failed, cannot reach remote host", log)
		return fmt.Errorf("firewall remediation: %w", err)
	}

	if err := o.sleep(ctx, o.timing.ReachRetryDelay()); err != nil {
		return err
	}
	if err := o.transport.CheckReachable(ctx); err != nil {
		o.alert(ctx, ports.PriorityHigh, "remote host still unreachable after firewall update", log)
		return fmt.Errorf("host unreachable after remediation: %w", err)
	}
	log.Info().Msg("remote host reachable after firewall update")
	return nil
}

// resolveRemote returns the artifact filename to transfer. In force mode
// it probes both variants in order and takes the first that exists and is
// non-empty. In automatic mode the poller already resolved the name; the
// file is re-verified to be present and non-empty, with distinct alerts
// for "absent" and "empty".
func (o *Orchestrator) resolveRemote(ctx context.Context, req domain.FetchRequest, resolved string, log zerolog.Logger) (string, error) {
	if resolved == "" {
		for _, name := range domain.ArtifactVariants(req.Project, req.Date) {
			size, err := o.transport.Stat(ctx, o.remotePath(name))
			if errors.Is(err, domain.ErrNotExist) {
				continue
			}
			if err != nil {
				return "", fmt.Errorf("probe remote file %s: %w", name, err)
			}
			if size == 0 {
				log.Warn().Str("file", name).Msg("remote variant exists but is empty, skipping")
				continue
			}
			log.Info().Str("artifact", name).Int64("bytes", size).Msg("resolved remote artifact")
			return name, nil
		}
		text := fmt.Sprintf("%s.%s: no video found on remote host (checked both variants)", req.Project, req.Date)
		o.alert(ctx, ports.PriorityDefault, text, log)
		return "", fmt.Errorf("no remote file for %s.%s", req.Project, req.Date)
	}

	size, err := o.transport.Stat(ctx, o.remotePath(resolved))
	if errors.Is(err, domain.ErrNotExist) {
		o.alert(ctx, ports.PriorityDefault, fmt.Sprintf("%s: confirmed file is absent on remote host", resolved), log)
		return "", fmt.Errorf("confirmed file absent: %w", err)
	}
	if err != nil {
		return "", fmt.Errorf("verify remote file %s: %w", resolved, err)
	}
	if size == 0 {
		o.alert(ctx, ports.PriorityHigh, fmt.Sprintf("%s: remote file exists but is empty", resolved), log)
		return "", fmt.Errorf("remote file %s is empty", resolved)
	}
	log.Info().Str("artifact", resolved).Int64("bytes", size).Msg("remote artifact verified")
	return resolved, nil
}

// transfer downloads the artifact, retrying exactly once after a fixed
// delay on a transport-level failure.
func (o *Orchestrator) transfer(ctx context.Context, artifact, localPath string, log zerolog.Logger) error {
	err := o.transport.Download(ctx, o.remotePath(artifact), localPath)
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Msg("transfer failed")
	o.alert(ctx, ports.PriorityDefault,
		fmt.Sprintf("%s: transfer failed, retrying in %s", artifact, o.timing.TransferRetryDelay()), log)

	if err := o.sleep(ctx, o.timing.TransferRetryDelay()); err != nil {
		return err
	}
	if err := o.transport.Download(ctx, o.remotePath(artifact), localPath); err != nil {
		o.alert(ctx, ports.PriorityHigh, fmt.Sprintf("%s: transfer failed after retry", artifact), log)
		return fmt.Errorf("transfer failed after retry: %w", err)
	}
	log.Info().Msg("transfer succeeded on retry")
	return nil
}
