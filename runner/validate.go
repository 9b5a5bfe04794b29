package runner

import (
	"fmt"
	"regexp"
)

// MaxTTLSeconds bounds caller-supplied TTLs at one year. The validity
// predicate separately clamps extreme stored TTLs; this check rejects them
// before anything is stored.
const MaxTTLSeconds = 31536000

// postgres identifiers are limited to 63 bytes; also require a leading
// letter so names survive unquoted use elsewhere.
var tableNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,62}$`)

// ValidateTableName rejects persistent-table identifiers that are unsafe or
// oversized. Call before constructing a postgres-backed store; the store
// sanitizes independently and does not rely on this check.
func ValidateTableName(name string) error {
	if !tableNameRe.MatchString(name) {
		return fmt.Errorf("invalid cache table name %q: must start with a letter, use only letters, digits and underscores, and be at most 63 characters", name)
	}
	return nil
}

// ValidateTTL rejects TTLs outside (0, MaxTTLSeconds].
func ValidateTTL(ttl int64) error {
	if ttl <= 0 || ttl > MaxTTLSeconds {
		return fmt.Errorf("ttl %d out of range: must be between 1 and %d seconds", ttl, MaxTTLSeconds)
	}
	return nil
}
