package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"dispatcher/internal/overlay"
)

// StatusCache keeps derived hospital overlays in process memory, keyed by hospital
// name. Entries expire after the TTL so registry changes made outside the API show up
// even between passes.
type StatusCache struct {
	c *gocache.Cache
}

// NewStatusCache creates a status cache whose entries expire after ttl
func NewStatusCache(ttl time.Duration) *StatusCache {
	return &StatusCache{c: gocache.New(ttl, 2*ttl)}
}

// Get returns the cached status of the named hospital
func (s *StatusCache) Get(name string) (overlay.Status, bool) {
	v, ok := s.c.Get(name)
	if !ok {
		return overlay.Status{}, false
	}
	return v.(overlay.Status), true
}

// Put stores a status under its hospital name
func (s *StatusCache) Put(status overlay.Status) {
	s.c.SetDefault(status.Hospital, status)
}

// Invalidate drops the status of the named hospital
func (s *StatusCache) Invalidate(name string) {
	s.c.Delete(name)
}

// Replace swaps the whole cache for the statuses of one pass
func (s *StatusCache) Replace(statuses []overlay.Status) {
	s.c.Flush()
	for _, status := range statuses {
		s.Put(status)
	}
}
