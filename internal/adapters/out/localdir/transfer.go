package localdir

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stower/stower/internal/domain"
)

// Transfer implements the transfer boundary against a local directory tree.
//
// Settings: "path" (destination root), "local_dir" (where the archive
// producer wrote the run's files).
type Transfer struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Transfer {
	return &Transfer{log: log}
}

func (t *Transfer) Backend() string {
	return domain.BackendLocal
}

// Upload copies every artifact file into <path>/<trigger>/<timestamp>,
// creating the destination lazily. Files are written to a temp name and
// renamed so a partial copy never masquerades as a finished upload.
func (t *Transfer) Upload(ctx context.Context, cfg domain.StorageConfig) error {
	destDir := filepath.Join(expandTilde(cfg.Setting("path")), filepath.FromSlash(cfg.RemoteDir()))
	if err := os.MkdirAll(destDir, 0750); err != nil {
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

		src := filepath.Join(cfg.Setting("local_dir"), name)
		dst := filepath.Join(destDir, remote)
		t.log.Debug().Str("src", src).Str("dst", dst).Msg("copying artifact file")
		if err := copyFile(src, dst); err != nil {
			return &domain.TransferError{Backend: t.Backend(), Op: domain.OpUpload, Err: err}
		}
	}
	return nil
}

// Remove deletes the artifact's destination directory. A destination that is
// already gone is not an error.
func (t *Transfer) Remove(ctx context.Context, cfg domain.StorageConfig) error {
	if err := ctx.Err(); err != nil {
		return &domain.TransferError{Backend: t.Backend(), Op: domain.OpRemove, Err: err}
	}

	destDir := filepath.Join(expandTilde(cfg.Setting("path")), filepath.FromSlash(cfg.RemoteDir()))
	if err := os.RemoveAll(destDir); err != nil {
		return &domain.TransferError{Backend: t.Backend(), Op: domain.OpRemove, Err: err}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("copy data: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close destination: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalize destination: %w", err)
	}
	return nil
}

// expandTilde replaces a leading "~/" with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path[2:])
	}
	return path
}
