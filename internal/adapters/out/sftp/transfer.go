package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/stower/stower/internal/domain"
)

const dialTimeout = 30 * time.Second

// Transfer implements the transfer boundary over SFTP.
//
// Settings: "host", "port" (default 22), "user", "password" or "key_file",
// "path" (remote root), "local_dir".
type Transfer struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Transfer {
	return &Transfer{log: log}
}

func (t *Transfer) Backend() string {
	return domain.BackendSFTP
}

// connect dials a fresh session from the configuration's settings, so
// rotated credentials supplied during reconciliation take effect on
// removals. The sftp library is not context-aware; ctx is honored between
// per-file operations and through the dial timeout.
func (t *Transfer) connect(cfg domain.StorageConfig) (*ssh.Client, *sftp.Client, error) {
	auth, err := authMethods(cfg)
	if err != nil {
		return nil, nil, err
	}

	port := cfg.Setting("port")
	if port == "" {
		port = "22"
	}

	sshCfg := &ssh.ClientConfig{
		User:            cfg.Setting("user"),
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	conn, err := ssh.Dial("tcp", net.JoinHostPort(cfg.Setting("host"), port), sshCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", cfg.Setting("host"), err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open sftp session: %w", err)
	}
	return conn, client, nil
}

func authMethods(cfg domain.StorageConfig) ([]ssh.AuthMethod, error) {
	if keyFile := cfg.Setting("key_file"); keyFile != "" {
		keyData, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if password := cfg.Setting("password"); password != "" {
		return []ssh.AuthMethod{ssh.Password(password)}, nil
	}
	return nil, errors.New("no sftp credentials configured: set password or key_file")
}

// Upload copies every artifact file into <path>/<trigger>/<timestamp> on the
// remote host, creating missing directories lazily.
func (t *Transfer) Upload(ctx context.Context, cfg domain.StorageConfig) error {
	conn, client, err := t.connect(cfg)
	if err != nil {
		return &domain.TransferError{Backend: t.Backend(), Op: domain.OpUpload, Err: err}
	}
	defer conn.Close()
	defer client.Close()

	destDir := path.Join(cfg.Setting("path"), cfg.RemoteDir())
	if err := client.MkdirAll(destDir); err != nil {
		return &domain.TransferError{Backend: t.Backend(), Op: domain.OpUpload, Err: err}
	}

	for _, name := range cfg.Artifact.LocalFileNames() {
		if err := ctx.Err(); err != nil {
			return &domain.TransferError{Backend: t.Backend(), Op: domain.OpUpload, Err: err}
		}

		remote, err := cfg.Artifact.RemoteFileName(name)
		if err != nil {
			return &domain.TransferError{Backend: t.Backend(), Op: domain.OpUpload, Err: err}
		}

		t.log.Debug().Str("dst", path.Join(destDir, remote)).Msg("uploading artifact file")
		if err := t.uploadFile(client, filepath.Join(cfg.Setting("local_dir"), name), path.Join(destDir, remote)); err != nil {
			return &domain.TransferError{Backend: t.Backend(), Op: domain.OpUpload, Err: err}
		}
	}
	return nil
}

func (t *Transfer) uploadFile(client *sftp.Client, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := client.Create(dst)
	if err != nil {
		return fmt.Errorf("create remote file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy data: %w", err)
	}
	return out.Close()
}

// Remove deletes the artifact's remote directory and its files. A directory
// that is already gone is not an error; any other backend error is surfaced.
func (t *Transfer) Remove(ctx context.Context, cfg domain.StorageConfig) error {
	conn, client, err := t.connect(cfg)
	if err != nil {
		return &domain.TransferError{Backend: t.Backend(), Op: domain.OpRemove, Err: err}
	}
	defer conn.Close()
	defer client.Close()

	destDir := path.Join(cfg.Setting("path"), cfg.RemoteDir())
	entries, err := client.ReadDir(destDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &domain.TransferError{Backend: t.Backend(), Op: domain.OpRemove, Err: err}
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return &domain.TransferError{Backend: t.Backend(), Op: domain.OpRemove, Err: err}
		}
		if err := client.Remove(path.Join(destDir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return &domain.TransferError{Backend: t.Backend(), Op: domain.OpRemove, Err: err}
		}
	}

	if err := client.RemoveDirectory(destDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &domain.TransferError{Backend: t.Backend(), Op: domain.OpRemove, Err: err}
	}
	return nil
}
