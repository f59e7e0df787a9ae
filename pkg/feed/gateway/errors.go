// Package gateway provides the shared HTTP dispatch layer for price
// adapters: per-domain rate-limit backoff, bounded retries and optional
// proxy rotation.
package gateway

import "errors"

var (
	// ErrNoProxiesConfigured indicates proxy escalation was needed but the
	// pool is empty.
	ErrNoProxiesConfigured = errors.New("no proxies configured")
	// ErrNoValidProxies indicates every candidate proxy failed validation.
	ErrNoValidProxies = errors.New("no valid proxies available")
	// ErrAllProxiesFailed indicates every attempted proxy errored or was
	// rate limited.
	ErrAllProxiesFailed = errors.New("all proxy attempts failed")
)
