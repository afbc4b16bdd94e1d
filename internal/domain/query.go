package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// QueryParams is the parameter set of a catalog request.
// Entries holding a nil value are treated as unset and never sent.
type QueryParams map[string]any

// Values converts the set parameters into url.Values.
func (p QueryParams) Values() url.Values {
	values := url.Values{}
	for k, v := range p {
		if v == nil {
			continue
		}
		values.Set(k, fmt.Sprint(v))
	}
	return values
}

// CacheEntry is the persisted form of a cached catalog response.
type CacheEntry struct {
	Timestamp int64           `json:"ts"` // unix milliseconds
	Data      json.RawMessage `json:"data"`
}

// NewCacheEntry stamps data with the given fetch time.
func NewCacheEntry(fetchedAt time.Time, data []byte) CacheEntry {
	return CacheEntry{Timestamp: fetchedAt.UnixMilli(), Data: data}
}

// FetchedAt returns the time the entry was written.
func (e CacheEntry) FetchedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Age returns how old the entry is relative to now.
func (e CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt())
}
