// Package cache memoizes HTTP response payloads (as JSON strings) keyed by a
// credential-scoped digest of the request URL.
//
// Includes a storage interface and implementations using process memory and
// postgresql. The memory store is bounded and evicts in insertion order; the
// postgresql store provisions its table lazily on first use.
package cache
