package ports

import (
	"context"
	"time"
)

// Message is one entry from the notification feed.
type Message struct {
	Time time.Time // arrival time
	Text string    // opaque message body
}

// Priority selects the alert urgency understood by the push endpoint.
type Priority string

const (
	PriorityDefault Priority = "default"
	PriorityHigh    Priority = "high"
)

// NotificationFeed is the read side of the notification service: a polling
// endpoint returning recent text messages, oldest first.
type NotificationFeed interface {
	// Poll returns messages that arrived within the given window.
	Poll(ctx context.Context, since time.Duration) ([]Message, error)
}

// Alerter is the push side of the notification service. Sends are
// fire-and-forget: callers log and swallow the returned error, it must
// never mask the underlying fetch status.
type Alerter interface {
	Send(ctx context.Context, priority Priority, text string) error
}

// RemoteTransport abstracts the secure shell/copy channel to the producer
// host.
type RemoteTransport interface {
	// CheckReachable runs a trivial remote command to verify connectivity.
	CheckReachable(ctx context.Context) error

	// Stat returns the size of a remote file, or domain.ErrNotExist.
	Stat(ctx context.Context, remotePath string) (int64, error)

	// Download copies a remote file to the local path.
	Download(ctx context.Context, remotePath, localPath string) error
}

// Remediator is the external corrective action taken when the remote host
// is unreachable (firewall/ACL update). Failure is fatal to the fetch.
type Remediator interface {
	Remediate(ctx context.Context) error
}

// MediaProber extracts the container duration of a local media file.
// Implementations return domain.ErrProberUnavailable when the probe tool
// is not installed.
type MediaProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}
