// Package ntfy talks to an ntfy-style notification service: polling a topic
// for recent messages and publishing alerts with a priority header.
package ntfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"videofetch/internal/core/ports"
)

// Client implements ports.NotificationFeed and ports.Alerter against one
// topic of a notification service.
type Client struct {
	baseURL string
	topic   string
	token   string
	client  *http.Client
}

var _ ports.NotificationFeed = (*Client)(nil)
var _ ports.Alerter = (*Client)(nil)

// New builds a client for a topic. baseURL is the service root, e.g.
// "https://ntfy.sh".
func New(baseURL, topic, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		topic:   topic,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// feedMessage mirrors the service's message envelope. Only plain messages
// carry a usable body; open/keepalive events have an empty one.
type feedMessage struct {
	Time    int64  `json:"time"`
	Event   string `json:"event"`
	Message string `json:"message"`
}

// Poll fetches messages that arrived within the given window, oldest first.
func (c *Client) Poll(ctx context.Context, since time.Duration) ([]ports.Message, error) {
	url := fmt.Sprintf("%s/%s/json?poll=1&since=%ds", c.baseURL, c.topic, int(since.Seconds()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build poll request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed response: %w", err)
	}
	return decodeMessages(body)
}

// decodeMessages accepts either a JSON array of message objects or the
// newline-delimited stream the service emits in poll mode.
func decodeMessages(body []byte) ([]ports.Message, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	var raw []feedMessage
	if body[0] == '[' {
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode feed response: %w", err)
		}
	} else {
		for _, line := range bytes.Split(body, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			var m feedMessage
			if err := json.Unmarshal(line, &m); err != nil {
				return nil, fmt.Errorf("decode feed message: %w", err)
			}
			raw = append(raw, m)
		}
	}

	msgs := make([]ports.Message, 0, len(raw))
	for _, m := range raw {
		if m.Event != "" && m.Event != "message" {
			continue
		}
		if m.Message == "" {
			continue
		}
		msgs = append(msgs, ports.Message{Time: time.Unix(m.Time, 0), Text: m.Message})
	}
	return msgs, nil
}

// Send publishes an alert to the topic. Failures are returned but the
// orchestrator treats them as best-effort and never lets them mask the
// fetch outcome.
func (c *Client) Send(ctx context.Context, priority ports.Priority, text string) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, c.topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Priority", string(priority))
	req.Header.Set("Title", "videofetch")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("alert endpoint returned %s", resp.Status)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
