package otp

import (
	"context"
	"strings"
	"sync"
	"time"
)

// memoryEntry is one live code plus its own lock, so concurrent issue and
// verify calls for the same email serialize without a registry-wide stall.
// evicted marks an entry already removed from the registry map; lockEntry
// discards such entries and retries.
type memoryEntry struct {
	mu       sync.Mutex
	code     string
	issuedAt time.Time
	evicted  bool
}

// MemoryRegistry is the in-process registry backend. State does not survive
// restarts and is not shared across instances; deployments that need either
// use the Redis backend.
type MemoryRegistry struct {
	expiry time.Duration

	mu      sync.Mutex
	entries map[string]*memoryEntry

	now func() time.Time
}

// NewMemoryRegistry constructs a MemoryRegistry with the given code expiry.
func NewMemoryRegistry(expiry time.Duration) *MemoryRegistry {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &MemoryRegistry{
		expiry:  expiry,
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// lockEntry returns the entry for the email with its lock held; the caller
// must unlock it. Returns nil when no entry exists and create is false.
// Entries evicted between the map read and the lock acquisition are retried.
func (r *MemoryRegistry) lockEntry(email string, create bool) *memoryEntry {
	for {
		r.mu.Lock()
		e := r.entries[email]
		if e == nil {
			if !create {
				r.mu.Unlock()
				return nil
			}
			e = &memoryEntry{}
			r.entries[email] = e
		}
		r.mu.Unlock()

		e.mu.Lock()
		if !e.evicted {
			return e
		}
		e.mu.Unlock()
	}
}

// evict removes the entry from the registry map so consumed and expired
// codes do not accumulate. Called with e.mu held.
func (r *MemoryRegistry) evict(email string, e *memoryEntry) {
	e.code = ""
	e.evicted = true
	r.mu.Lock()
	if r.entries[email] == e {
		delete(r.entries, email)
	}
	r.mu.Unlock()
}

// Issue stores a fresh code for the email, replacing any prior entry.
func (r *MemoryRegistry) Issue(_ context.Context, email string) (string, error) {
	code, errGen := GenerateCode()
	if errGen != nil {
		return "", errGen
	}
	e := r.lockEntry(email, true)
	e.code = code
	e.issuedAt = r.now()
	e.mu.Unlock()
	return code, nil
}

// Verify checks a submitted code. Expired entries are evicted even when the
// code matches; a successful match consumes the entry.
func (r *MemoryRegistry) Verify(_ context.Context, email, submitted string) (Result, error) {
	e := r.lockEntry(email, false)
	if e == nil {
		return Result{Status: StatusNotFound}, nil
	}
	defer e.mu.Unlock()

	if e.code == "" {
		// Freshly inserted by a concurrent Issue that has not stored its
		// code yet; nothing to verify against.
		return Result{Status: StatusNotFound}, nil
	}
	if r.now().Sub(e.issuedAt) > r.expiry {
		r.evict(email, e)
		return Result{Status: StatusExpired}, nil
	}
	if e.code != strings.TrimSpace(submitted) {
		return Result{Status: StatusMismatch}, nil
	}
	r.evict(email, e)
	return Result{Valid: true, Status: StatusOK}, nil
}

// Outstanding reports whether an entry survives for the email. Presence
// alone blocks account creation, even past code expiry, until a verify
// attempt evicts the entry.
func (r *MemoryRegistry) Outstanding(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	_, ok := r.entries[email]
	r.mu.Unlock()
	return ok, nil
}
