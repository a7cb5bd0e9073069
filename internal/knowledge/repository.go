package knowledge

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EntryRepository defines the interface for knowledge entry data operations.
// Counter mutations are atomic at the store level so that concurrent
// adjustments to the same entry are never lost.
type EntryRepository interface {
	// Create inserts a new entry as a single atomic write, generating an
	// ID if the entry does not carry one. The entry either exists fully
	// afterwards or not at all.
	Create(ctx context.Context, entry *Entry) error

	// GetByID retrieves an entry by its ID.
	GetByID(ctx context.Context, id string) (*Entry, error)

	// ListAll retrieves every entry ordered by created_at DESC.
	ListAll(ctx context.Context) ([]*Entry, error)

	// ListByCommunity retrieves entries whose community tag equals the
	// given value exactly (case-sensitive), ordered by created_at DESC.
	ListByCommunity(ctx context.Context, community string) ([]*Entry, error)

	// AdjustUpvotes applies delta to the upvote counter in one atomic
	// read-modify-write and returns the new value. Returns
	// ErrEntryNotFound if no entry has the given ID.
	AdjustUpvotes(ctx context.Context, id string, delta int) (int, error)

	// IncrementReplies adds one to the reply counter atomically and
	// returns the new value. Returns ErrEntryNotFound if no entry has
	// the given ID.
	IncrementReplies(ctx context.Context, id string) (int, error)
}

// InMemoryEntryRepository is an in-memory implementation of EntryRepository.
// Thread-safe via RWMutex; counter adjustments happen under the write lock
// so concurrent increments are never lost.
type InMemoryEntryRepository struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	seq     int64
}

// NewInMemoryEntryRepository creates a new in-memory entry repository.
func NewInMemoryEntryRepository() *InMemoryEntryRepository {
	return &InMemoryEntryRepository{
		entries: make(map[string]*Entry),
	}
}

// Create inserts a new entry, generating a UUID if needed.
func (r *InMemoryEntryRepository) Create(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		// time.Now has coarse granularity on some platforms; nudge
		// assigned timestamps apart so creation order stays monotonic.
		r.seq++
		entry.CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Nanosecond)
	}

	entryCopy := *entry
	r.entries[entry.ID] = &entryCopy
	return nil
}

// GetByID retrieves an entry by its ID.
func (r *InMemoryEntryRepository) GetByID(ctx context.Context, id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}

	entryCopy := *entry
	return &entryCopy, nil
}

// ListAll retrieves every entry ordered by created_at DESC.
func (r *InMemoryEntryRepository) ListAll(ctx context.Context) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(*Entry) bool { return true }), nil
}

// ListByCommunity retrieves entries with an exact community tag match,
// ordered by created_at DESC.
func (r *InMemoryEntryRepository) ListByCommunity(ctx context.Context, community string) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(e *Entry) bool { return e.Community == community }), nil
}

// collect gathers deep copies of matching entries sorted newest first.
// Callers must hold at least the read lock.
func (r *InMemoryEntryRepository) collect(match func(*Entry) bool) []*Entry {
	var results []*Entry
	for _, entry := range r.entries {
		if match(entry) {
			entryCopy := *entry
			results = append(results, &entryCopy)
		}
	}
	sortEntriesByCreatedDesc(results)
	return results
}

// AdjustUpvotes applies delta to the upvote counter under the write lock.
func (r *InMemoryEntryRepository) AdjustUpvotes(ctx context.Context, id string, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return 0, ErrEntryNotFound
	}

	entry.Upvotes += delta
	return entry.Upvotes, nil
}

// IncrementReplies adds one to the reply counter under the write lock.
func (r *InMemoryEntryRepository) IncrementReplies(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return 0, ErrEntryNotFound
	}

	entry.ReplyCount++
	return entry.ReplyCount, nil
}

// sortEntriesByCreatedDesc sorts entries by created_at DESC, then by ID ASC
// for tie-breaking. This provides stable ordering across repeated calls.
func sortEntriesByCreatedDesc(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.After(entries[j].CreatedAt) {
			return true
		}
		if entries[i].CreatedAt.Before(entries[j].CreatedAt) {
			return false
		}
		return entries[i].ID < entries[j].ID
	})
}
