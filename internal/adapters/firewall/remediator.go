// Package firewall runs the external remediation program that updates
// network ACLs when the producer host stops answering.
package firewall

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"videofetch/internal/core/ports"
)

// Remediator invokes a configured command as a subprocess with the parent
// environment. Its failure is fatal to the fetch.
type Remediator struct {
	command string
	args    []string
	timeout time.Duration
}

var _ ports.Remediator = (*Remediator)(nil)

// New builds a remediator for the given command line. An empty command is
// allowed at construction; Remediate then fails immediately.
func New(command string, args []string) *Remediator {
	return &Remediator{command: command, args: args, timeout: 5 * time.Minute}
}

// Remediate runs the remediation program to completion.
func (r *Remediator) Remediate(ctx context.Context) error {
	if r.command == "" {
		return fmt.Errorf("no remediation command configured")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.command, r.args...)
	cmd.Env = os.Environ()

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("remediation command failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
