// Package sshtransport implements the remote transport over SSH/SFTP with
// key authentication, a short connect timeout, and host-key auto-acceptance
// for non-interactive operation.
package sshtransport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"videofetch/internal/core/domain"
	"videofetch/internal/core/ports"
)

// Transport holds a lazily established SSH connection to the producer host.
// After any operation fails the connection is dropped so the next call
// redials, which is what the reachability retry relies on.
type Transport struct {
	addr    string
	config  *ssh.ClientConfig
	client  *ssh.Client
	sftpCli *sftp.Client
}

var _ ports.RemoteTransport = (*Transport)(nil)

// New builds a transport for user@host:port using the given private key
// file. connectTimeout bounds the TCP+handshake phase.
func New(host string, port int, user, keyFile string, connectTimeout time.Duration) (*Transport, error) {
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read ssh key %s: %w", keyFile, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", keyFile, err)
	}

	return &Transport{
		addr: net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		config: &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: ssh.InsecureIgnoreHostKey(), // non-interactive: accept unknown host keys
			Timeout:         connectTimeout,
		},
	}, nil
}

func (t *Transport) connect(ctx context.Context) error {
	if t.client != nil {
		return nil
	}

	d := net.Dialer{Timeout: t.config.Timeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, t.addr, t.config)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ssh handshake with %s: %w", t.addr, err)
	}
	t.client = ssh.NewClient(sshConn, chans, reqs)

	sftpCli, err := sftp.NewClient(t.client)
	if err != nil {
		t.drop()
		return fmt.Errorf("open sftp subsystem: %w", err)
	}
	t.sftpCli = sftpCli
	return nil
}

func (t *Transport) drop() {
	if t.sftpCli != nil {
		t.sftpCli.Close()
		t.sftpCli = nil
	}
	if t.client != nil {
		t.client.Close()
		t.client = nil
	}
}

// Close releases the connection if one is open.
func (t *Transport) Close() error {
	t.drop()
	return nil
}

// CheckReachable dials (if needed) and runs a trivial remote command.
func (t *Transport) CheckReachable(ctx context.Context) error {
	if err := t.connect(ctx); err != nil {
		return err
	}

	session, err := t.client.NewSession()
	if err != nil {
		t.drop()
		return fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	if err := session.Run("true"); err != nil {
		t.drop()
		return fmt.Errorf("remote probe command: %w", err)
	}
	return nil
}

// Stat returns the size of a remote file. A missing file maps to
// domain.ErrNotExist; other failures drop the connection.
func (t *Transport) Stat(ctx context.Context, remotePath string) (int64, error) {
	if err := t.connect(ctx); err != nil {
		return 0, err
	}

	info, err := t.sftpCli.Stat(remotePath)
	if err != nil {
		if isNotExist(err) {
			return 0, fmt.Errorf("%s: %w", remotePath, domain.ErrNotExist)
		}
		t.drop()
		return 0, fmt.Errorf("stat %s: %w", remotePath, err)
	}
	return info.Size(), nil
}

// Download copies a remote file to localPath.
func (t *Transport) Download(ctx context.Context, remotePath, localPath string) error {
	if err := t.connect(ctx); err != nil {
		return err
	}

	src, err := t.sftpCli.Open(remotePath)
	if err != nil {
		if isNotExist(err) {
			return fmt.Errorf("%s: %w", remotePath, domain.ErrNotExist)
		}
		t.drop()
		return fmt.Errorf("open remote %s: %w", remotePath, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local file %s: %w", localPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		t.drop()
		return fmt.Errorf("copy %s: %w", remotePath, err)
	}
	if err := dst.Sync(); err != nil {
		return fmt.Errorf("sync local file %s: %w", localPath, err)
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, sftp.ErrSSHFxNoSuchFile)
}
