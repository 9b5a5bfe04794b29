package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("cache")

// PGConfig describes the postgresql connection and destination table for a
// PGStore.
type PGConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	// SSLMode selects the transport security policy. "disable" turns
	// encryption off; "verify-ca" and "verify-full" additionally verify the
	// server certificate chain. Every other value, including empty, "allow",
	// "require" and "true", maps to "require": encrypted but with the peer
	// identity NOT verified. This permissive default keeps self-signed and
	// cloud-managed certificates working and is not the most secure option.
	SSLMode string

	// Table is the destination table name. The store strips it down to
	// [A-Za-z0-9_] and quotes it; callers should still validate names up
	// front (see runner.ValidateTableName).
	Table string
}

func (c PGConfig) connString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", normalizeSSLMode(c.SSLMode))
	u.RawQuery = q.Encode()
	return u.String()
}

func normalizeSSLMode(mode string) string {
	switch mode {
	case "disable", "verify-ca", "verify-full":
		return mode
	default:
		return "require"
	}
}

var identStrip = regexp.MustCompile(`[^A-Za-z0-9_]`)

// sanitizeTable strips every character outside [A-Za-z0-9_], then defers
// quote-escaping and wrapping to pgx. The result is safe to splice into SQL
// as an identifier even if upstream validation was skipped.
func sanitizeTable(name string) string {
	return pgx.Identifier{identStrip.ReplaceAllString(name, "")}.Sanitize()
}

type initAttempt struct {
	done chan struct{}
	err  error
}

// PGStore is a durable Store backed by a postgresql table. The connection
// pool and the table are provisioned lazily by the first operation; callers
// arriving while that first attempt is still in flight wait on it instead of
// starting their own. A failed attempt resets the guard so a later operation
// retries from scratch.
type PGStore struct {
	cfg   PGConfig
	table string // sanitized and quoted

	lk      sync.Mutex
	pool    *pgxpool.Pool
	attempt *initAttempt

	connect func(ctx context.Context) (*pgxpool.Pool, error)
}

var _ Store = (*PGStore)(nil)

func NewPGStore(cfg PGConfig) *PGStore {
	s := &PGStore{
		cfg:   cfg,
		table: sanitizeTable(cfg.Table),
	}
	s.connect = s.connectAndProvision
	return s
}

func (s *PGStore) connectAndProvision(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, s.cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key VARCHAR(128) PRIMARY KEY,
		request_url TEXT,
		response JSONB,
		cached_at TIMESTAMPTZ,
		ttl INTEGER
	)`, s.table)
	if _, err := pool.Exec(ctx, stmt); err != nil {
		pool.Close()
		return nil, fmt.Errorf("provisioning cache table %s: %w", s.table, err)
	}
	return pool, nil
}

// ensure returns the ready pool, running or joining the single in-flight
// connect-and-provision attempt as needed.
func (s *PGStore) ensure(ctx context.Context) (*pgxpool.Pool, error) {
	s.lk.Lock()
	for {
		if s.pool != nil {
			pool := s.pool
			s.lk.Unlock()
			return pool, nil
		}
		if s.attempt == nil {
			break
		}
		att := s.attempt
		s.lk.Unlock()
		select {
		case <-att.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if att.err != nil {
			return nil, att.err
		}
		s.lk.Lock()
	}

	att := &initAttempt{done: make(chan struct{})}
	s.attempt = att
	s.lk.Unlock()

	pool, err := s.connect(ctx)

	s.lk.Lock()
	s.attempt = nil
	if err == nil {
		s.pool = pool
	}
	s.lk.Unlock()

	att.err = err
	close(att.done)
	return pool, err
}

func (s *PGStore) Get(ctx context.Context, key string) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "PGStore.Get")
	defer span.End()
	span.SetAttributes(attribute.String("key", key))

	pool, err := s.ensure(ctx)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT key, request_url, response, cached_at, ttl FROM %s WHERE key = $1`, s.table)

	var (
		ent      Entry
		payload  []byte
		cachedAt time.Time
	)
	err = pool.QueryRow(ctx, q, key).Scan(&ent.Key, &ent.RequestURL, &payload, &cachedAt, &ent.TTL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	ent.Response = decodePayload(payload)
	ent.CachedAt = cachedAt.UnixMilli()
	return &ent, nil
}

func (s *PGStore) Set(ctx context.Context, entry Entry) error {
	ctx, span := tracer.Start(ctx, "PGStore.Set")
	defer span.End()
	span.SetAttributes(attribute.String("key", entry.Key))

	pool, err := s.ensure(ctx)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`INSERT INTO %s (key, request_url, response, cached_at, ttl)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			request_url = EXCLUDED.request_url,
			response = EXCLUDED.response,
			cached_at = EXCLUDED.cached_at,
			ttl = EXCLUDED.ttl`, s.table)

	_, err = pool.Exec(ctx, q,
		entry.Key,
		entry.RequestURL,
		encodePayload(entry.Response),
		time.UnixMilli(entry.CachedAt).UTC(),
		entry.TTL,
	)
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "PGStore.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("key", key))

	pool, err := s.ensure(ctx)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table)
	if _, err := pool.Exec(ctx, q, key); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Close releases the pool. Safe to call repeatedly, or on a store that was
// never initialized.
func (s *PGStore) Close() error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

// encodePayload prepares a response string for the JSONB column. The string
// is stored as a JSON string value, which round-trips byte-exact regardless
// of whether the payload itself parses as JSON.
func encodePayload(response string) string {
	b, _ := json.Marshal(response)
	return string(b)
}

// decodePayload reverses encodePayload. Rows written by other clients may
// hold a bare JSON document instead of a string value; those come back as
// the document text.
func decodePayload(raw []byte) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
