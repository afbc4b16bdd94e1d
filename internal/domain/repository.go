package domain

import (
	"context"
)

// KeyValueStore is the persistent key-value storage shared by the query cache
// and the favorites store. Values are opaque strings; callers serialize JSON
// themselves. Get returns ErrKeyNotFound for keys that were never written.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// CatalogClient fetches raw JSON payloads from the remote recipe catalog.
// path is relative to the catalog base URL (e.g. "complexSearch").
type CatalogClient interface {
	Fetch(ctx context.Context, path string, params QueryParams) ([]byte, error)
}
