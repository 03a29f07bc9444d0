package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Env override names. Secrets and machine-local paths may come from the
// environment instead of the checked-in project document.
const (
	sshKeyEnv     = "VIDEOFETCH_SSH_KEY"
	remoteHostEnv = "VIDEOFETCH_REMOTE_HOST"
	feedTokenEnv  = "VIDEOFETCH_FEED_TOKEN"
)

// Config holds everything one fetch invocation needs. It is validated once
// at startup and never mutated afterwards.
type Config struct {
	Feed        FeedConfig        `json:"feed"`
	Remote      RemoteConfig      `json:"remote"`
	LocalDir    string            `json:"local_dir"`
	Remediation RemediationConfig `json:"remediation"`
	Timing      TimingConfig      `json:"timing"`
	Log         LogConfig         `json:"log"`
}

// FeedConfig locates the notification feed topic used for both polling and
// alert pushes.
type FeedConfig struct {
	BaseURL string `json:"base_url"`
	Topic   string `json:"topic"`
	Token   string `json:"token"` // optional bearer token
}

// RemoteConfig describes the producer host the artifact is fetched from.
type RemoteConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	User    string `json:"user"`
	KeyFile string `json:"key_file"`
	Dir     string `json:"dir"` // remote directory holding artifacts
}

// RemediationConfig names the external program run when the host is
// unreachable. An empty command means no remediation is available.
type RemediationConfig struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// TimingConfig carries every tunable delay in the fetch flow, in the units
// their names state.
type TimingConfig struct {
	BufferMinutes          int `json:"buffer_minutes"`         // post-processing buffer after announced end
	PollIntervalSeconds    int `json:"poll_interval_seconds"`  // between completion-poll attempts
	PollMaxAttempts        int `json:"poll_max_attempts"`      // hard ceiling
	ReachRetryDelaySecs    int `json:"reach_retry_delay_secs"` // after remediation, before recheck
	TransferRetryDelaySecs int `json:"transfer_retry_delay_secs"`
	ConnectTimeoutSecs     int `json:"connect_timeout_secs"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	File         string `json:"file"`
	MaxSizeBytes int64  `json:"max_size_bytes"`
	Level        string `json:"level"`
}

// Load reads and validates configs/<project>.json relative to dir.
// Any missing document or required field is a fatal startup error.
func Load(dir, project string) (Config, error) {
	path := filepath.Join(dir, "configs", project+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read project config %s: %w", path, err)
	}

	cfg := defaults(project)
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse project config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("project config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(sshKeyEnv); v != "" {
		c.Remote.KeyFile = v
	}
	if v := os.Getenv(remoteHostEnv); v != "" {
		c.Remote.Host = v
	}
	if v := os.Getenv(feedTokenEnv); v != "" {
		c.Feed.Token = v
	}
}

func (c Config) validate() error {
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("missing feed.base_url")
	}
	if c.Feed.Topic == "" {
		return fmt.Errorf("missing feed.topic")
	}
	if c.Remote.Host == "" {
		return fmt.Errorf("missing remote.host")
	}
	if c.Remote.User == "" {
		return fmt.Errorf("missing remote.user")
	}
	return nil
}

// Buffer returns the post-processing buffer as a duration.
func (t TimingConfig) Buffer() time.Duration {
	return time.Duration(t.BufferMinutes) * time.Minute
}

// PollInterval returns the delay between completion-poll attempts.
func (t TimingConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalSeconds) * time.Second
}

// ReachRetryDelay returns the pause between remediation and the single
// reachability recheck.
func (t TimingConfig) ReachRetryDelay() time.Duration {
	return time.Duration(t.ReachRetryDelaySecs) * time.Second
}

// TransferRetryDelay returns the pause before the single transfer retry.
func (t TimingConfig) TransferRetryDelay() time.Duration {
	return time.Duration(t.TransferRetryDelaySecs) * time.Second
}

// ConnectTimeout returns the SSH connect timeout.
func (t TimingConfig) ConnectTimeout() time.Duration {
	return time.Duration(t.ConnectTimeoutSecs) * time.Second
}

func defaults(project string) Config {
	return Config{
		Remote:   RemoteConfig{Port: 22},
		LocalDir: ".",
		Timing: TimingConfig{
			BufferMinutes:          18,
			PollIntervalSeconds:    60,
			PollMaxAttempts:        30,
			ReachRetryDelaySecs:    5,
			TransferRetryDelaySecs: 60,
			ConnectTimeoutSecs:     10,
		},
		Log: LogConfig{
			File:         project + "_fetch.log",
			MaxSizeBytes: 5 * 1024 * 1024,
			Level:        "info",
		},
	}
}
