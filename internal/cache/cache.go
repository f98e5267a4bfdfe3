package cache

import (
	"context"

	"github.com/culturalbot/eventbot/internal/model"
)

// MediaCache maps source image URLs to uploaded platform media ids. Get
// never returns an entry whose expiry has passed; Sweep reclaims those
// entries and reports how many were removed.
type MediaCache interface {
	Get(ctx context.Context, sourceURL string) (model.MediaEntry, bool, error)
	Put(ctx context.Context, entry model.MediaEntry) error
	Sweep(ctx context.Context) (int64, error)
}
