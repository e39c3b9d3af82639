package objstore

import (
	"context"
	"fmt"
	"io"

	"github.com/composerunion/composerunion/internal/gateway"
)

// Gateway stores objects in a public bucket of the hosted backend.
type Gateway struct {
	gw     *gateway.Client
	bucket string
}

// NewGateway creates a Store backed by a gateway bucket.
func NewGateway(gw *gateway.Client, bucket string) *Gateway {
	return &Gateway{gw: gw, bucket: bucket}
}

// Upload implements Store. The backend rejects names that already exist.
func (g *Gateway) Upload(ctx context.Context, name string, r io.Reader, _ int64, contentType string) error {
	if err := g.gw.Upload(ctx, g.bucket, name, r, contentType); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

// PublicURL implements Store.
func (g *Gateway) PublicURL(name string) string {
	return g.gw.PublicURL(g.bucket, name)
}
