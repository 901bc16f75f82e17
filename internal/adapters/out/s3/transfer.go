package s3

import (
	"context"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/stower/stower/internal/domain"
)

// Transfer implements the transfer boundary against any S3-compatible object
// store.
//
// Settings: "endpoint", "access_key", "secret_key", "bucket", "region",
// "use_ssl" ("false" to disable), "prefix" (optional key prefix),
// "local_dir".
type Transfer struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Transfer {
	return &Transfer{log: log}
}

func (t *Transfer) Backend() string {
	return domain.BackendS3
}

// client is rebuilt per call from the configuration's settings, so rotated
// credentials supplied during reconciliation take effect on removals.
func (t *Transfer) client(cfg domain.StorageConfig) (*minio.Client, error) {
	return minio.New(cfg.Setting("endpoint"), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Setting("access_key"), cfg.Setting("secret_key"), ""),
		Secure: cfg.Setting("use_ssl") != "false",
		Region: cfg.Setting("region"),
	})
}

func objectDir(cfg domain.StorageConfig) string {
	return path.Join(cfg.Setting("prefix"), cfg.RemoteDir())
}

// Upload puts every artifact file under <prefix>/<trigger>/<timestamp>/ in
// the configured bucket, creating the bucket lazily.
func (t *Transfer) Upload(ctx context.Context, cfg domain.StorageConfig) error {
	client, err := t.client(cfg)
	if err != nil {
		return &domain.TransferError{Backend: t.Backend(), Op: domain.OpUpload, Err: err}
	}

	bucket := cfg.Setting("bucket")
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: cfg.Setting("region")}); err != nil {
		// Racing an existing bucket is fine; anything else is not.
		exists, existsErr := client.BucketExists(ctx, bucket)
		if existsErr != nil || !exists {
			return &domain.TransferError{Backend: t.Backend(), Op: domain.OpUpload, Err: err}
		}
	}

	for _, name := range cfg.Artifact.LocalFileNames() {
		remote, err := cfg.Artifact.RemoteFileName(name)
		if err != nil {
			return &domain.TransferError{Backend: t.Backend(), Op: domain.OpUpload, Err: err}
		}

		key := path.Join(objectDir(cfg), remote)
		src := filepath.Join(cfg.Setting("local_dir"), name)
		t.log.Debug().Str("bucket", bucket).Str("key", key).Msg("putting artifact object")
		if _, err := client.FPutObject(ctx, bucket, key, src, minio.PutObjectOptions{}); err != nil {
			return &domain.TransferError{Backend: t.Backend(), Op: domain.OpUpload, Err: err}
		}
	}
	return nil
}

// Remove deletes every object under the artifact's key prefix. An empty
// listing (already removed) is not an error, but listing or deletion errors
// reported by the backend are surfaced.
func (t *Transfer) Remove(ctx context.Context, cfg domain.StorageConfig) error {
	client, err := t.client(cfg)
	if err != nil {
		return &domain.TransferError{Backend: t.Backend(), Op: domain.OpRemove, Err: err}
	}

	bucket := cfg.Setting("bucket")
	prefix := objectDir(cfg) + "/"
	for object := range client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return &domain.TransferError{Backend: t.Backend(), Op: domain.OpRemove, Err: object.Err}
		}
		if err := client.RemoveObject(ctx, bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return &domain.TransferError{Backend: t.Backend(), Op: domain.OpRemove, Err: err}
		}
	}
	return nil
}
