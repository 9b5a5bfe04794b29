// Package runner orchestrates batches of fetch-and-memoize items: derive the
// cache key, serve valid hits, repair corrupt entries, fetch on miss, record
// per-item errors without aborting siblings, and tear the store down when
// the batch is done.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/meetbryce/smartfetch/cache"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("runner")

// Fetcher is the external collaborator that performs the HTTP GET on a
// cache miss, returning the serialized response body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type Runner struct {
	store  cache.Store
	fetch  Fetcher
	logger *slog.Logger

	now func() time.Time
}

func New(store cache.Store, fetcher Fetcher, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:  store,
		fetch:  fetcher,
		logger: logger.With("system", "runner"),
		now:    time.Now,
	}
}

// Run processes a batch sequentially. Configuration problems (an
// out-of-range TTL) abort the whole batch before any item is touched;
// per-item failures are recorded in their Result and do not stop siblings.
// The store is always closed when Run returns, including on the abort path;
// a close failure is logged, never returned, so it cannot mask an earlier
// error.
func (r *Runner) Run(ctx context.Context, items []Item) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(attribute.Int("items", len(items)))

	defer func() {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("closing cache store", "err", err)
		}
	}()

	for _, it := range items {
		if err := ValidateTTL(it.TTL); err != nil {
			return nil, err
		}
	}

	results := make([]Result, 0, len(items))
	for _, it := range items {
		results = append(results, r.ProcessItem(ctx, it))
	}
	return results, nil
}

// ProcessItem runs the per-item state flow. It never panics or returns an
// error; failures are folded into the Result.
func (r *Runner) ProcessItem(ctx context.Context, it Item) Result {
	ctx, span := tracer.Start(ctx, "ProcessItem")
	defer span.End()
	span.SetAttributes(attribute.String("url", it.URL))

	log := r.logger.With("url", it.URL)
	key := cache.DeriveKey(it.URL, it.CredentialFingerprint)

	ent, err := r.store.Get(ctx, key)
	if err != nil {
		return errResult(it.URL, fmt.Errorf("cache lookup: %w", err))
	}

	if ent != nil && ent.Valid(r.now()) {
		if json.Valid([]byte(ent.Response)) {
			log.Debug("cache hit", "key", key)
			return Result{URL: it.URL, FromCache: true, Payload: json.RawMessage(ent.Response)}
		}
		// corrupt entry: drop it best-effort and fall through to a fetch
		log.Warn("cached payload is not valid JSON, refetching", "key", key)
		if derr := r.store.Delete(ctx, key); derr != nil {
			log.Warn("failed to delete corrupt cache entry", "key", key, "err", derr)
		}
	}

	body, err := r.fetch.Fetch(ctx, it.URL)
	if err != nil {
		log.Warn("fetch failed", "err", err)
		return errResult(it.URL, err)
	}
	if !json.Valid([]byte(body)) {
		return errResult(it.URL, fmt.Errorf("response from %s is not valid JSON", it.URL))
	}

	entry := cache.Entry{
		Key:        key,
		RequestURL: it.URL,
		Response:   body,
		CachedAt:   r.now().UnixMilli(),
		TTL:        it.TTL,
	}
	if err := r.store.Set(ctx, entry); err != nil {
		return errResult(it.URL, fmt.Errorf("storing response: %w", err))
	}

	log.Debug("fetched and cached", "key", key, "ttl", it.TTL)
	return Result{URL: it.URL, Payload: json.RawMessage(body)}
}
