package memory

import (
	"sync/atomic"
	"testing"
	"time"

	"ai-assistant-be/pkg/generation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newController(id string) func() *generation.Controller {
	return func() *generation.Controller {
		cfg := generation.DefaultConfig()
		cfg.ContextID = id
		return generation.NewController(cfg, nil, nil, nil)
	}
}

func TestGetOrCreateReusesEntry(t *testing.T) {
	repo := NewContextRepository(time.Hour, nil)
	defer repo.CloseAll()

	first, created := repo.GetOrCreate("ctx-1", newController("ctx-1"))
	require.True(t, created)
	second, created := repo.GetOrCreate("ctx-1", newController("ctx-1"))
	assert.False(t, created)
	assert.Same(t, first, second)

	other, created := repo.GetOrCreate("ctx-2", newController("ctx-2"))
	assert.True(t, created)
	assert.NotSame(t, first.Controller, other.Controller)
	assert.Equal(t, 2, repo.Count())
}

func TestIdleContextIsEvicted(t *testing.T) {
	var evicted atomic.Value
	repo := NewContextRepository(30*time.Millisecond, func(id string, _ *ContextEntry) {
		evicted.Store(id)
	})
	defer repo.CloseAll()

	repo.GetOrCreate("ctx-idle", newController("ctx-idle"))

	require.Eventually(t, func() bool { return evicted.Load() == "ctx-idle" }, 2*time.Second, 5*time.Millisecond)
	_, found := repo.Get("ctx-idle")
	assert.False(t, found)
}

func TestAccessKeepsContextAlive(t *testing.T) {
	repo := NewContextRepository(80*time.Millisecond, nil)
	defer repo.CloseAll()

	repo.GetOrCreate("ctx-busy", newController("ctx-busy"))
	for i := 0; i < 5; i++ {
		time.Sleep(30 * time.Millisecond)
		_, found := repo.Get("ctx-busy")
		require.True(t, found, "access %d", i)
	}
}

func TestDeleteEvicts(t *testing.T) {
	var evicted atomic.Bool
	repo := NewContextRepository(time.Hour, func(string, *ContextEntry) { evicted.Store(true) })

	repo.GetOrCreate("ctx-del", newController("ctx-del"))
	repo.Delete("ctx-del")

	assert.True(t, evicted.Load())
	assert.Zero(t, repo.Count())
}

func TestClaim(t *testing.T) {
	e := &ContextEntry{}

	assert.True(t, e.Claim(""), "anonymous use of an unclaimed context")
	assert.True(t, e.Claim("alice"))
	assert.Equal(t, "alice", e.Owner())
	assert.True(t, e.Claim("alice"))
	assert.False(t, e.Claim("bob"))
	assert.False(t, e.Claim(""))
}
