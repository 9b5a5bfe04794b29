package runner

import "encoding/json"

// Item is one logical fetch request within a batch.
type Item struct {
	URL string
	// CredentialFingerprint scopes the cache key to a credential set. Must
	// be a derived fingerprint, never raw secret material. Empty for
	// unauthenticated fetches.
	CredentialFingerprint string
	// TTL in seconds for the entry written on a cache miss.
	TTL int64
}

// Result is the outcome of one batch item. Err is empty on success; a
// failed item carries its error here instead of aborting the batch.
type Result struct {
	URL       string          `json:"url"`
	FromCache bool            `json:"fromCache"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Err       string          `json:"error,omitempty"`
}

func errResult(url string, err error) Result {
	return Result{URL: url, Err: err.Error()}
}
