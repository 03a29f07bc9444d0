package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"videofetch/internal/config"
	"videofetch/internal/core/ports"
)

// fakeFeed serves one canned batch of messages per poll, repeating the
// last batch once the script runs out.
type fakeFeed struct {
	batches [][]ports.Message
	err     error
	polls   int
}

func (f *fakeFeed) Poll(ctx context.Context, since time.Duration) ([]ports.Message, error) {
	f.polls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	i := f.polls - 1
	if i >= len(f.batches) {
		i = len(f.batches) - 1
	}
	return f.batches[i], nil
}

type sentAlert struct {
	priority ports.Priority
	text     string
}

type fakeAlerter struct {
	sent []sentAlert
}

func (f *fakeAlerter) Send(ctx context.Context, priority ports.Priority, text string) error {
	f.sent = append(f.sent, sentAlert{priority, text})
	return nil
}

func (f *fakeAlerter) byPriority(p ports.Priority) []string {
	var out []string
	for _, a := range f.sent {
		if a.priority == p {
			out = append(out, a.text)
		}
	}
	return out
}

// fakeTransport scripts reachability and download outcomes per call and
// serves remote sizes from a map.
type fakeTransport struct {
	reachErrs    []error // consumed per call; nil past the end
	sizes        map[string]int64
	statErrs     map[string]error
	downloadErrs []error // consumed per call; nil past the end
	content      []byte  // written locally on successful download

	reachCalls    int
	statCalls     int
	downloadCalls int
}

func (f *fakeTransport) CheckReachable(ctx context.Context) error {
	f.reachCalls++
	if f.reachCalls <= len(f.reachErrs) {
		return f.reachErrs[f.reachCalls-1]
	}
	return nil
}

func (f *fakeTransport) Stat(ctx context.Context, remotePath string) (int64, error) {
	f.statCalls++
	if err, ok := f.statErrs[remotePath]; ok {
		return 0, err
	}
	return f.sizes[remotePath], nil
}

func (f *fakeTransport) Download(ctx context.Context, remotePath, localPath string) error {
	f.downloadCalls++
	if f.downloadCalls <= len(f.downloadErrs) {
		if err := f.downloadErrs[f.downloadCalls-1]; err != nil {
			return err
		}
	}
	content := f.content
	if content == nil {
		content = []byte("video-bytes")
	}
	return os.WriteFile(localPath, content, 0o644)
}

type fakeRemediator struct {
	err   error
	calls int
}

func (f *fakeRemediator) Remediate(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakeProber struct {
	seconds float64
	err     error
	calls   int
}

func (f *fakeProber) Duration(ctx context.Context, path string) (float64, error) {
	f.calls++
	return f.seconds, f.err
}

// testOrchestrator wires fakes with zeroed delays so tests never sleep.
func testOrchestrator(t *testing.T, feed *fakeFeed, alerter *fakeAlerter, transport *fakeTransport, remediator *fakeRemediator, prober *fakeProber) *Orchestrator {
	t.Helper()
	o := New(Deps{
		Feed:       feed,
		Alerter:    alerter,
		Transport:  transport,
		Remediator: remediator,
		Prober:     prober,
		Timing: config.TimingConfig{
			BufferMinutes:   18,
			PollMaxAttempts: 3,
		},
		LocalDir: t.TempDir(),
		Logger:   zerolog.Nop(),
	})
	return o
}
