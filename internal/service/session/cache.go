package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/zhouzirui/csvsage/backend/internal/analysis/tabular"
	"github.com/zhouzirui/csvsage/backend/internal/model/chat"
	"github.com/zhouzirui/csvsage/backend/internal/service/ai"
	"github.com/zhouzirui/csvsage/backend/pkg/log"
)

var ErrSessionNotFound = errors.New("session not found or CSV not uploaded")

// Entry is one cached session: an immutable dataset and its conversation.
type Entry struct {
	Session chat.Session
	Dataset *tabular.Dataset
	Memory  *ai.Memory

	mu sync.Mutex
}

// Lock serializes queries against this session.
func (e *Entry) Lock() { e.mu.Lock() }

// Unlock releases the query lock.
func (e *Entry) Unlock() { e.mu.Unlock() }

// Options bounds the cache.
type Options struct {
	// Capacity caps the number of sessions; the least recently used entry is
	// evicted first. Zero means unbounded.
	Capacity int
	// TTL expires entries this long after they were stored. Zero disables
	// expiry.
	TTL time.Duration
}

// Cache maps session identifiers to their entries. It is safe for
// concurrent use.
type Cache struct {
	entries *expirable.LRU[string, *Entry]
}

// NewCache returns an empty cache. Evictions are logged through ctx.
func NewCache(ctx context.Context, opts Options) *Cache {
	logger := log.FromCtx(ctx)
	onEvict := func(id string, entry *Entry) {
		logger.Info().
			Str("session_id", id).
			Time("created_at", entry.Session.CreatedAt).
			Msg("session evicted")
	}
	return &Cache{entries: expirable.NewLRU[string, *Entry](opts.Capacity, onEvict, opts.TTL)}
}

// Put stores ds under id, replacing any previous entry and its
// conversation.
func (c *Cache) Put(id string, ds *tabular.Dataset) *Entry {
	entry := &Entry{
		Session: chat.Session{
			ID:        id,
			Rows:      ds.Rows(),
			Columns:   ds.Width(),
			CreatedAt: time.Now().UTC(),
		},
		Dataset: ds,
		Memory:  ai.NewMemory(),
	}
	c.entries.Add(id, entry)
	return entry
}

// Get returns the entry for id. It never creates one.
func (c *Cache) Get(id string) (*Entry, error) {
	entry, ok := c.entries.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry, nil
}

// Len returns the number of live sessions.
func (c *Cache) Len() int {
	return c.entries.Len()
}
