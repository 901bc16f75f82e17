package out

import (
	"context"

	"github.com/stower/stower/internal/domain"
)

// Transfer moves a run's artifact files to and from one remote backend. New
// backends are added by adding an implementation, never by changing the
// cycling engine.
//
// Upload copies every file named by the artifact to the destination derived
// from the configuration, creating missing destination directories lazily.
// Remove deletes the artifact's whole destination; a destination that no
// longer exists (in part or whole) is not an error, but an explicit backend
// error must be surfaced. Both honor cancellation through ctx and must not
// mutate the configuration.
type Transfer interface {
	Backend() string
	Upload(ctx context.Context, cfg domain.StorageConfig) error
	Remove(ctx context.Context, cfg domain.StorageConfig) error
}
