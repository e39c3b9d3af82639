// Package objstore stores uploaded post images and hands back their public URLs.
// Images live either in a bucket of the hosted backend or in an S3-compatible
// MinIO server.
package objstore

import (
	"context"
	"fmt"
	"io"

	"github.com/composerunion/composerunion/internal/config"
	"github.com/composerunion/composerunion/internal/gateway"
)

// Store is an image bucket.
type Store interface {
	// Upload writes an object under name. size may be -1 when unknown.
	Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	// PublicURL returns the address browsers load the object from.
	PublicURL(name string) string
}

// New returns the Store selected by configuration.
func New(cfg *config.Config, gw *gateway.Client) (Store, error) {
	switch cfg.StorageBackend {
	case config.StorageMinIO:
		return NewMinIO(MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			Bucket:    cfg.StorageBucket,
			PublicURL: cfg.MinIOPublicURL,
		})
	case config.StorageGateway, "":
		return NewGateway(gw, cfg.StorageBucket), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
