package memory

import (
	"sync"
	"time"

	"ai-assistant-be/pkg/generation"

	"github.com/patrickmn/go-cache"
)

// ContextEntry is one live conversation context.
type ContextEntry struct {
	Controller *generation.Controller

	mu    sync.Mutex
	owner string
}

// Claim binds an anonymous context to the first authenticated user that uses
// it and reports whether userID may use the context.
func (e *ContextEntry) Claim(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.owner == "":
		e.owner = userID
		return true
	case userID == "":
		return false
	default:
		return e.owner == userID
	}
}

func (e *ContextEntry) Owner() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.owner
}

// ContextRepository keeps one controller per context id and closes it once
// the context has been idle for the TTL.
type ContextRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewContextRepository(ttl time.Duration, onEvict func(contextID string, entry *ContextEntry)) *ContextRepository {
	// Purge expired contexts every ttl/6, at least once a minute
	cleanup := min(ttl/6, time.Minute)
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	c := cache.New(ttl, cleanup)
	c.OnEvicted(func(id string, x interface{}) {
		entry := x.(*ContextEntry)
		if onEvict != nil {
			onEvict(id, entry)
		}
		// Close waits for the running session
		go entry.Controller.Close()
	})
	return &ContextRepository{cache: c}
}

// GetOrCreate returns the entry for contextID, creating it with create when
// missing. Every access restarts the idle timer.
func (r *ContextRepository) GetOrCreate(contextID string, create func() *generation.Controller) (*ContextEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if x, found := r.cache.Get(contextID); found {
		entry := x.(*ContextEntry)
		r.cache.Set(contextID, entry, cache.DefaultExpiration)
		return entry, false
	}

	entry := &ContextEntry{Controller: create()}
	r.cache.Set(contextID, entry, cache.DefaultExpiration)
	return entry, true
}

func (r *ContextRepository) Get(contextID string) (*ContextEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	x, found := r.cache.Get(contextID)
	if !found {
		return nil, false
	}
	entry := x.(*ContextEntry)
	r.cache.Set(contextID, entry, cache.DefaultExpiration)
	return entry, true
}

func (r *ContextRepository) Delete(contextID string) {
	r.cache.Delete(contextID)
}

func (r *ContextRepository) Count() int {
	return r.cache.ItemCount()
}

// CloseAll evicts every context and waits for their controllers to stop.
func (r *ContextRepository) CloseAll() {
	r.mu.Lock()
	items := r.cache.Items()
	r.cache.Flush()
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, item := range items {
		entry := item.Object.(*ContextEntry)
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry.Controller.Close()
		}()
	}
	wg.Wait()
}
