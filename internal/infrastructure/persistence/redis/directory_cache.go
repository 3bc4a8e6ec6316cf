package redis

import (
	"context"
	"errors"
	"time"

	"github.com/planboard/planboard-core/internal/domain/member"
)

// DirectoryCache implements member.SnapshotCache on top of Cache.
// It keeps the last successfully fetched roster so that a restart while the
// roster source is down still resolves names.
type DirectoryCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewDirectoryCache creates a new DirectoryCache.
func NewDirectoryCache(cache *Cache) *DirectoryCache {
	return &DirectoryCache{cache: cache, ttl: TTLDirectorySnapshot}
}

type directoryEntry struct {
	Fingerprint string          `json:"fingerprint"`
	Members     []member.Member `json:"members"`
	StoredAt    time.Time       `json:"stored_at"`
}

// LoadMembers returns the cached roster or ErrCacheMiss.
func (d *DirectoryCache) LoadMembers(ctx context.Context) ([]member.Member, error) {
	var entry directoryEntry
	if err := d.cache.Get(ctx, DirectoryKey("members"), &entry); err != nil {
		return nil, err
	}
	return entry.Members, nil
}

// StoreMembers caches the roster.
func (d *DirectoryCache) StoreMembers(ctx context.Context, members []member.Member) error {
	if members == nil {
		return ErrCacheNilValue
	}
	entry := directoryEntry{
		Fingerprint: member.NewDirectory(members).Fingerprint(),
		Members:     members,
		StoredAt:    time.Now().UTC(),
	}
	return d.cache.Set(ctx, DirectoryKey("members"), entry, d.ttl)
}

// Fingerprint returns the fingerprint of the cached roster, or "" when none.
func (d *DirectoryCache) Fingerprint(ctx context.Context) (string, error) {
	var entry directoryEntry
	err := d.cache.Get(ctx, DirectoryKey("members"), &entry)
	if errors.Is(err, ErrCacheMiss) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return entry.Fingerprint, nil
}
