package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveKey(t *testing.T) {
	assert := assert.New(t)

	k := DeriveKey("https://example.com/api", "")
	assert.Len(k, 64)
	assert.Equal(k, DeriveKey("https://example.com/api", ""))

	assert.NotEqual(k, DeriveKey("https://example.com/api2", ""))
	assert.NotEqual(k, DeriveKey("https://example.com/api", "fp1"))
	assert.NotEqual(
		DeriveKey("https://example.com/api", "fp1"),
		DeriveKey("https://example.com/api", "fp2"),
	)

	// a scoped pair must not collide with an unscoped URL that embeds the
	// fingerprint
	assert.NotEqual(
		DeriveKey("fp1https://example.com/api", ""),
		DeriveKey("https://example.com/api", "fp1"),
	)
}

func TestEntryValidity(t *testing.T) {
	assert := assert.New(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ent := Entry{
		Key:      "k1",
		Response: `{"a":1}`,
		CachedAt: base.UnixMilli(),
		TTL:      300,
	}

	assert.True(ent.Valid(base))
	assert.True(ent.Valid(base.Add(299 * time.Second)))

	expiry := base.Add(300 * time.Second)
	assert.True(ent.Valid(expiry.Add(-time.Millisecond)))
	assert.False(ent.Valid(expiry)) // boundary itself is expired
	assert.False(ent.Valid(expiry.Add(time.Second)))
}

func TestEntryValidityCapsExtremeTTL(t *testing.T) {
	assert := assert.New(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ent := Entry{
		Key:      "k1",
		CachedAt: base.UnixMilli(),
		TTL:      10 * 365 * 24 * 3600, // ten years
	}

	cappedExpiry := base.Add(time.Duration(maxValiditySeconds) * time.Second)
	assert.True(ent.Valid(cappedExpiry.Add(-time.Millisecond)))
	assert.False(ent.Valid(cappedExpiry))
	assert.False(ent.Valid(base.AddDate(1, 0, 0)))
}
