// Package ratelimit implements a per-client request counter guarding the
// chat endpoint.
//
// This is a reset-window counter, not a true sliding window: each client key
// maps to a count and a window-end timestamp, and the count resets when the
// window passes. Counters live for the lifetime of the process and are never
// swept; acceptable for bounded-lifetime processes, a known scaling
// limitation for long-lived ones.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// Default limiter parameters.
const (
	DefaultWindow      = time.Minute
	DefaultMaxRequests = 30
)

// record is one client's counter within the current window.
type record struct {
	count   int
	resetAt time.Time
}

// Store holds per-client counters. It is an interface so a multi-process
// deployment can swap in a shared external counter without changing call
// sites; the in-memory implementation below covers a single process.
type Store interface {
	// Take increments and returns the client's count for the current
	// window, resetting the window first if it has expired.
	Take(key string, now time.Time, window time.Duration) int
}

// memoryStore is the process-lifetime counter map. It starts empty and has
// no teardown; a restart loses all counters.
type memoryStore struct {
	mu      sync.Mutex
	records map[string]*record
}

// NewMemoryStore returns an empty in-memory counter store.
func NewMemoryStore() Store {
	return &memoryStore{records: make(map[string]*record)}
}

func (s *memoryStore) Take(key string, now time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || now.After(rec.resetAt) {
		s.records[key] = &record{count: 1, resetAt: now.Add(window)}
		return 1
	}

	rec.count++
	return rec.count
}

// Limiter answers whether a request from a given client key is allowed.
type Limiter struct {
	store       Store
	window      time.Duration
	maxRequests int
	now         func() time.Time
}

// New creates a Limiter over the given store. Non-positive window or max
// fall back to the defaults.
func New(store Store, window time.Duration, maxRequests int) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	return &Limiter{
		store:       store,
		window:      window,
		maxRequests: maxRequests,
		now:         time.Now,
	}
}

// Allow reports whether the client identified by key may make another
// request in the current window.
func (l *Limiter) Allow(key string) bool {
	return l.store.Take(key, l.now(), l.window) <= l.maxRequests
}

// ClientKey derives the client identifier for a request: the first entry of
// X-Forwarded-For, else X-Real-IP, else a constant placeholder. Clients
// sharing a proxy or lacking these headers are bucketed together; documented
// limitation.
func ClientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx != -1 {
			forwarded = forwarded[:idx]
		}
		return strings.TrimSpace(forwarded)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return "unknown"
}
