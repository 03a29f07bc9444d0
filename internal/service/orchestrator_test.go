package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videofetch/internal/core/domain"
	"videofetch/internal/core/ports"
)

var testReq = domain.FetchRequest{Project: "VLA", Date: "02252026"}

func confirmation(name string) ports.Message {
	return ports.Message{Time: time.Now(), Text: "Video " + name + " has been saved"}
}

func TestRunSkipsWhenLocalFileExists(t *testing.T) {
	feed := &fakeFeed{}
	alerter := &fakeAlerter{}
	transport := &fakeTransport{}
	o := testOrchestrator(t, feed, alerter, transport, &fakeRemediator{}, &fakeProber{})

	existing := filepath.Join(o.localDir, "VLA.02252026.mp4")
	require.NoError(t, os.WriteFile(existing, []byte("already here"), 0o644))

	result, err := o.Run(context.Background(), testReq)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, existing, result.LocalPath)

	// The remote host must not be contacted at all.
	assert.Zero(t, feed.polls)
	assert.Zero(t, transport.reachCalls)
	assert.Zero(t, transport.downloadCalls)
}

func TestRunForceModePrefersPlainVariant(t *testing.T) {
	transport := &fakeTransport{
		sizes: map[string]int64{
			"VLA.02252026.mp4":          1024,
			"VLA.02252026.NO_AUDIO.mp4": 1024,
		},
	}
	feed := &fakeFeed{}
	o := testOrchestrator(t, feed, &fakeAlerter{}, transport, &fakeRemediator{}, &fakeProber{seconds: 60})

	req := testReq
	req.Force = true
	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "VLA.02252026.mp4", result.Artifact)
	assert.Zero(t, feed.polls, "force mode must not poll the feed")
}

func TestRunForceModeFallsBackToNoAudio(t *testing.T) {
	transport := &fakeTransport{
		statErrs: map[string]error{"VLA.02252026.mp4": domain.ErrNotExist},
		sizes:    map[string]int64{"VLA.02252026.NO_AUDIO.mp4": 1024},
	}
	o := testOrchestrator(t, &fakeFeed{}, &fakeAlerter{}, transport, &fakeRemediator{}, &fakeProber{seconds: 60})

	req := testReq
	req.Force = true
	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "VLA.02252026.NO_AUDIO.mp4", result.Artifact)
}

func TestRunForceModeNeitherVariantExists(t *testing.T) {
	transport := &fakeTransport{
		statErrs: map[string]error{
			"VLA.02252026.mp4":          domain.ErrNotExist,
			"VLA.02252026.NO_AUDIO.mp4": domain.ErrNotExist,
		},
	}
	alerter := &fakeAlerter{}
	o := testOrchestrator(t, &fakeFeed{}, alerter, transport, &fakeRemediator{}, &fakeProber{})

	req := testReq
	req.Force = true
	_, err := o.Run(context.Background(), req)
	require.Error(t, err)
	require.Len(t, alerter.byPriority(ports.PriorityDefault), 1)
	assert.Empty(t, alerter.byPriority(ports.PriorityHigh))
}

func TestRunAutomaticFlow(t *testing.T) {
	feed := &fakeFeed{batches: [][]ports.Message{
		{confirmation("VLA.02252026.NO_AUDIO.mp4")},
	}}
	transport := &fakeTransport{sizes: map[string]int64{"VLA.02252026.NO_AUDIO.mp4": 2048}}
	alerter := &fakeAlerter{}
	o := testOrchestrator(t, feed, alerter, transport, &fakeRemediator{}, &fakeProber{seconds: 134.5})

	result, err := o.Run(context.Background(), testReq)
	require.NoError(t, err)

	// The confirmed name supersedes the guessed plain variant.
	assert.Equal(t, "VLA.02252026.NO_AUDIO.mp4", result.Artifact)
	assert.Equal(t, "2m14s", result.Duration)
	assert.FileExists(t, result.LocalPath)

	defaults := alerter.byPriority(ports.PriorityDefault)
	require.Len(t, defaults, 1)
	assert.Contains(t, defaults[0], "2m14s")
}

func TestPollerStopsOnFirstMatch(t *testing.T) {
	// Confirmation available from the very first poll: no further
	// attempts may be spent.
	feed := &fakeFeed{batches: [][]ports.Message{
		{confirmation("VLA.02252026.mp4")},
	}}
	transport := &fakeTransport{sizes: map[string]int64{"VLA.02252026.mp4": 100}}
	o := testOrchestrator(t, feed, &fakeAlerter{}, transport, &fakeRemediator{}, &fakeProber{seconds: 10})

	_, err := o.Run(context.Background(), testReq)
	require.NoError(t, err)
	// One poll from the estimator, one from the poller.
	assert.Equal(t, 2, feed.polls)
}

func TestPollerTimesOutAfterMaxAttempts(t *testing.T) {
	feed := &fakeFeed{batches: [][]ports.Message{
		{{Time: time.Now(), Text: "still rendering VLA.02252026"}},
	}}
	alerter := &fakeAlerter{}
	transport := &fakeTransport{}
	o := testOrchestrator(t, feed, alerter, transport, &fakeRemediator{}, &fakeProber{})

	_, err := o.Run(context.Background(), testReq)
	require.Error(t, err)

	highs := alerter.byPriority(ports.PriorityHigh)
	require.Len(t, highs, 1)
	assert.Contains(t, highs[0], "no save confirmation")
	assert.Zero(t, transport.downloadCalls)
	// Estimator poll plus exactly PollMaxAttempts poller polls.
	assert.Equal(t, 1+o.timing.PollMaxAttempts, feed.polls)
}

func TestTransferRetriesOnceThenSucceeds(t *testing.T) {
	feed := &fakeFeed{batches: [][]ports.Message{
		{confirmation("VLA.02252026.mp4")},
	}}
	transport := &fakeTransport{
		sizes:        map[string]int64{"VLA.02252026.mp4": 100},
		downloadErrs: []error{errors.New("connection reset")},
	}
	alerter := &fakeAlerter{}
	o := testOrchestrator(t, feed, alerter, transport, &fakeRemediator{}, &fakeProber{seconds: 30})

	result, err := o.Run(context.Background(), testReq)
	require.NoError(t, err)
	assert.Equal(t, 2, transport.downloadCalls)
	assert.FileExists(t, result.LocalPath)

	var retryAlerts []string
	for _, text := range alerter.byPriority(ports.PriorityDefault) {
		if strings.Contains(text, "retrying") {
			retryAlerts = append(retryAlerts, text)
		}
	}
	require.Len(t, retryAlerts, 1)
	assert.Empty(t, alerter.byPriority(ports.PriorityHigh))
}

func TestTransferFailsAfterRetry(t *testing.T) {
	feed := &fakeFeed{batches: [][]ports.Message{
		{confirmation("VLA.02252026.mp4")},
	}}
	transport := &fakeTransport{
		sizes:        map[string]int64{"VLA.02252026.mp4": 100},
		downloadErrs: []error{errors.New("reset"), errors.New("reset again")},
	}
	alerter := &fakeAlerter{}
	o := testOrchestrator(t, feed, alerter, transport, &fakeRemediator{}, &fakeProber{})

	_, err := o.Run(context.Background(), testReq)
	require.Error(t, err)
	assert.Equal(t, 2, transport.downloadCalls)
	require.Len(t, alerter.byPriority(ports.PriorityHigh), 1)
}

func TestUnreachableHostRemediatedOnce(t *testing.T) {
	feed := &fakeFeed{batches: [][]ports.Message{
		{confirmation("VLA.02252026.mp4")},
	}}
	transport := &fakeTransport{
		reachErrs: []error{errors.New("connect timeout")},
		sizes:     map[string]int64{"VLA.02252026.mp4": 100},
	}
	alerter := &fakeAlerter{}
	remediator := &fakeRemediator{}
	o := testOrchestrator(t, feed, alerter, transport, remediator, &fakeProber{seconds: 5})

	_, err := o.Run(context.Background(), testReq)
	require.NoError(t, err)
	assert.Equal(t, 1, remediator.calls)
	assert.Equal(t, 2, transport.reachCalls)

	defaults := alerter.byPriority(ports.PriorityDefault)
	require.NotEmpty(t, defaults)
	assert.Contains(t, defaults[0], "firewall")
	assert.Empty(t, alerter.byPriority(ports.PriorityHigh))
}

func TestUnreachableHostFatalAfterRemediation(t *testing.T) {
	feed := &fakeFeed{batches: [][]ports.Message{
		{confirmation("VLA.02252026.mp4")},
	}}
	transport := &fakeTransport{
		reachErrs: []error{errors.New("timeout"), errors.New("timeout")},
	}
	alerter := &fakeAlerter{}
	remediator := &fakeRemediator{}
	o := testOrchestrator(t, feed, alerter, transport, remediator, &fakeProber{})

	_, err := o.Run(context.Background(), testReq)
	require.Error(t, err)
	assert.Equal(t, 1, remediator.calls)
	require.Len(t, alerter.byPriority(ports.PriorityHigh), 1)
	assert.Zero(t, transport.downloadCalls)
}

func TestRemediationFailureIsFatal(t *testing.T) {
	feed := &fakeFeed{batches: [][]ports.Message{
		{confirmation("VLA.02252026.mp4")},
	}}
	transport := &fakeTransport{reachErrs: []error{errors.New("timeout")}}
	alerter := &fakeAlerter{}
	o := testOrchestrator(t, feed, alerter, transport, &fakeRemediator{err: errors.New("acl update denied")}, &fakeProber{})

	_, err := o.Run(context.Background(), testReq)
	require.Error(t, err)
	// Failed remediation aborts before the reachability recheck.
	assert.Equal(t, 1, transport.reachCalls)
	require.Len(t, alerter.byPriority(ports.PriorityHigh), 1)
}

func TestEmptyRemoteFileIsHighPriority(t *testing.T) {
	feed := &fakeFeed{batches: [][]ports.Message{
		{confirmation("VLA.02252026.mp4")},
	}}
	transport := &fakeTransport{sizes: map[string]int64{"VLA.02252026.mp4": 0}}
	alerter := &fakeAlerter{}
	o := testOrchestrator(t, feed, alerter, transport, &fakeRemediator{}, &fakeProber{})

	_, err := o.Run(context.Background(), testReq)
	require.Error(t, err)

	highs := alerter.byPriority(ports.PriorityHigh)
	require.Len(t, highs, 1)
	assert.Contains(t, highs[0], "empty")
	assert.Zero(t, transport.downloadCalls)
}

func TestAbsentRemoteFileIsDefaultPriority(t *testing.T) {
	feed := &fakeFeed{batches: [][]ports.Message{
		{confirmation("VLA.02252026.mp4")},
	}}
	transport := &fakeTransport{
		statErrs: map[string]error{"VLA.02252026.mp4": domain.ErrNotExist},
	}
	alerter := &fakeAlerter{}
	o := testOrchestrator(t, feed, alerter, transport, &fakeRemediator{}, &fakeProber{})

	_, err := o.Run(context.Background(), testReq)
	require.Error(t, err)

	defaults := alerter.byPriority(ports.PriorityDefault)
	require.Len(t, defaults, 1)
	assert.Contains(t, defaults[0], "absent")
	assert.Empty(t, alerter.byPriority(ports.PriorityHigh))
}

func TestCorruptFileDeletedAndReported(t *testing.T) {
	feed := &fakeFeed{batches: [][]ports.Message{
		{confirmation("VLA.02252026.mp4")},
	}}
	transport := &fakeTransport{sizes: map[string]int64{"VLA.02252026.mp4": 100}}
	alerter := &fakeAlerter{}
	o := testOrchestrator(t, feed, alerter, transport, &fakeRemediator{}, &fakeProber{seconds: 0})

	_, err := o.Run(context.Background(), testReq)
	require.Error(t, err)

	assert.NoFileExists(t, filepath.Join(o.localDir, "VLA.02252026.mp4"))
	highs := alerter.byPriority(ports.PriorityHigh)
	require.Len(t, highs, 1)
	assert.Contains(t, highs[0], "corrupt")
}

func TestProberUnavailableDegradesGracefully(t *testing.T) {
	feed := &fakeFeed{batches: [][]ports.Message{
		{confirmation("VLA.02252026.mp4")},
	}}
	transport := &fakeTransport{sizes: map[string]int64{"VLA.02252026.mp4": 100}}
	o := testOrchestrator(t, feed, &fakeAlerter{}, transport, &fakeRemediator{},
		&fakeProber{err: domain.ErrProberUnavailable})

	result, err := o.Run(context.Background(), testReq)
	require.NoError(t, err)
	assert.Empty(t, result.Duration)
	assert.FileExists(t, result.LocalPath)
}

func TestEmptyLocalFileAfterTransferIsFatal(t *testing.T) {
	feed := &fakeFeed{batches: [][]ports.Message{
		{confirmation("VLA.02252026.mp4")},
	}}
	transport := &fakeTransport{
		sizes:   map[string]int64{"VLA.02252026.mp4": 100},
		content: []byte{},
	}
	alerter := &fakeAlerter{}
	prober := &fakeProber{}
	o := testOrchestrator(t, feed, alerter, transport, &fakeRemediator{}, prober)

	_, err := o.Run(context.Background(), testReq)
	require.Error(t, err)

	highs := alerter.byPriority(ports.PriorityHigh)
	require.Len(t, highs, 1)
	assert.Contains(t, highs[0], "empty")
	// Empty files are kept for operator inspection; not retried, not probed.
	assert.FileExists(t, filepath.Join(o.localDir, "VLA.02252026.mp4"))
	assert.Equal(t, 1, transport.downloadCalls)
	assert.Zero(t, prober.calls)
}
