package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func freshEntry(key string, now time.Time) Entry {
	return Entry{
		Key:        key,
		RequestURL: "https://example.com/" + key,
		Response:   `{"a":1}`,
		CachedAt:   now.UnixMilli(),
		TTL:        300,
	}
}

func TestMemStoreFIFOEviction(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemStore(1000)
	s.now = func() time.Time { return now }

	for i := 0; i <= 1000; i++ {
		err := s.Set(ctx, freshEntry(fmt.Sprintf("k%04d", i), now))
		assert.NoError(err)
	}

	assert.Equal(1000, s.Len())

	first, err := s.Get(ctx, "k0000")
	assert.NoError(err)
	assert.Nil(first, "first-inserted key should have been evicted")

	last, err := s.Get(ctx, "k1000")
	assert.NoError(err)
	assert.NotNil(last)
}

func TestMemStoreOverwriteKeepsEvictionPriority(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemStore(2)
	s.now = func() time.Time { return now }

	assert.NoError(s.Set(ctx, freshEntry("a", now)))
	assert.NoError(s.Set(ctx, freshEntry("b", now)))

	// overwriting "a" must not make it newer than "b"
	updated := freshEntry("a", now)
	updated.Response = `{"a":2}`
	assert.NoError(s.Set(ctx, updated))

	assert.NoError(s.Set(ctx, freshEntry("c", now)))

	a, err := s.Get(ctx, "a")
	assert.NoError(err)
	assert.Nil(a, "oldest-inserted key should be evicted despite the overwrite")

	b, err := s.Get(ctx, "b")
	assert.NoError(err)
	assert.NotNil(b)
}

func TestMemStoreLazyExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemStore(10)
	s.now = func() time.Time { return now }

	assert.NoError(s.Set(ctx, Entry{
		Key:      "k1",
		Response: `{"a":1}`,
		CachedAt: now.UnixMilli(),
		TTL:      300,
	}))

	got, err := s.Get(ctx, "k1")
	assert.NoError(err)
	assert.NotNil(got)
	assert.Equal(`{"a":1}`, got.Response)

	now = now.Add(301 * time.Second)

	got, err = s.Get(ctx, "k1")
	assert.NoError(err)
	assert.Nil(got)
	assert.Equal(0, s.Len(), "expired entry should be reaped on touch")
}

func TestMemStorePrunesExpiredBeforeEvicting(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemStore(2)
	s.now = func() time.Time { return now }

	stale := freshEntry("stale", now.Add(-10*time.Minute))
	assert.NoError(s.Set(ctx, stale))
	assert.NoError(s.Set(ctx, freshEntry("live", now)))

	assert.NoError(s.Set(ctx, freshEntry("new", now)))

	live, err := s.Get(ctx, "live")
	assert.NoError(err)
	assert.NotNil(live, "fresh entry should survive when an expired one can be pruned instead")

	fresh, err := s.Get(ctx, "new")
	assert.NoError(err)
	assert.NotNil(fresh)
}

func TestMemStoreDeleteAbsentKey(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemStore(10)
	assert.NoError(s.Delete(ctx, "nope"))
	assert.NoError(s.Close())
	assert.NoError(s.Close())
}
