package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"time"
)

// keySeparator sits between the credential fingerprint and the URL before
// hashing, so a scoped (fingerprint, url) pair can never collide with an
// unscoped URL that happens to contain both strings.
const keySeparator = "\x1f"

// maxValiditySeconds caps the TTL used by Valid so the millisecond expiry
// offset stays within 32-bit range (about 24.8 days of headroom). Longer
// TTLs are stored untouched but clamped at validity-check time; batch
// intake separately rejects TTLs above one year before anything is written.
const maxValiditySeconds = math.MaxInt32 / 1000

// Entry is one memoized HTTP response. Response is always a plain string at
// the Store boundary; backends may re-encode it internally.
type Entry struct {
	Key        string
	RequestURL string
	Response   string
	CachedAt   int64 // epoch milliseconds at write time
	TTL        int64 // seconds the entry remains valid from CachedAt
}

// Valid reports whether the entry is still usable at the given instant. The
// boundary itself is expired: now == CachedAt+TTL is not valid.
func (e *Entry) Valid(now time.Time) bool {
	ttl := e.TTL
	if ttl > maxValiditySeconds {
		ttl = maxValiditySeconds
	}
	return now.UnixMilli() < e.CachedAt+ttl*1000
}

// DeriveKey computes the cache identifier for a URL, optionally scoped by a
// credential fingerprint. Callers pass a pre-hashed fingerprint, never raw
// credential material, so keys are safe to log and store. Deterministic:
// equal inputs always produce equal keys.
func DeriveKey(url, credentialFingerprint string) string {
	sum := sha256.Sum256([]byte(credentialFingerprint + keySeparator + url))
	return hex.EncodeToString(sum[:])
}
