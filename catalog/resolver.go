package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// ErrEntityNotFound signals that a label matches no catalog entry.
var ErrEntityNotFound = errors.New("catalog: entity not found")

// Source supplies the catalog entries a Resolver indexes.
type Source interface {
	ListAll(ctx context.Context) ([]Entry, error)
}

// Resolver maps free-text labels (sheet names, aliases) to entity keys. It
// holds a snapshot of the catalog taken by Refresh; it is never refreshed
// implicitly.
type Resolver struct {
	source Source

	mu          sync.RWMutex
	entries     map[string]Entry
	byShortCode map[string]string
	byName      map[string]string
	byKey       map[string]string
	ordered     []Entry

	memo *cache.Cache
}

// NewResolver builds an empty resolver over source. Call Refresh before use.
// memoTTL bounds how long resolved labels are memoised; zero disables expiry.
func NewResolver(source Source, memoTTL time.Duration) *Resolver {
	expiry := memoTTL
	if expiry <= 0 {
		expiry = cache.NoExpiration
	}
	r := &Resolver{
		source: source,
		memo:   cache.New(expiry, 2*expiry),
	}
	r.index(nil)
	return r
}

// NewStaticResolver builds a resolver over a fixed set of entries.
func NewStaticResolver(entries []Entry) *Resolver {
	r := NewResolver(nil, 0)
	r.index(entries)
	return r
}

// Refresh reloads the catalog from the source and drops memoised lookups.
func (r *Resolver) Refresh(ctx context.Context) error {
	if r.source == nil {
		return nil
	}
	entries, err := r.source.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("catalog: refresh: %w", err)
	}
	r.index(entries)
	return nil
}

func (r *Resolver) index(entries []Entry) {
	byKey := make(map[string]string, len(entries))
	byShort := make(map[string]string, len(entries))
	byName := make(map[string]string, len(entries))
	all := make(map[string]Entry, len(entries))
	ordered := make([]Entry, 0, len(entries))

	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		all[e.Key] = e
		ordered = append(ordered, e)
		byKey[Canonical(e.Key)] = e.Key
		if code := Canonical(e.ShortCode); code != "" {
			if _, taken := byShort[code]; !taken {
				byShort[code] = e.Key
			}
		}
		if name := Canonical(e.Name); name != "" {
			if _, taken := byName[name]; !taken {
				byName[name] = e.Key
			}
		}
	}
	SortEntries(ordered)

	r.mu.Lock()
	r.entries = all
	r.byShortCode = byShort
	r.byName = byName
	r.byKey = byKey
	r.ordered = ordered
	r.mu.Unlock()

	r.memo.Flush()
}

// Resolve returns the entity key for label, trying the short code first, then
// the full name and finally the key itself.
func (r *Resolver) Resolve(label string) (string, error) {
	canon := Canonical(label)
	if canon == "" {
		return "", fmt.Errorf("%w: empty label", ErrEntityNotFound)
	}
	if key, ok := r.memo.Get(canon); ok {
		return key.(string), nil
	}

	r.mu.RLock()
	key, ok := r.byShortCode[canon]
	if !ok {
		key, ok = r.byName[canon]
	}
	if !ok {
		key, ok = r.byKey[canon]
	}
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %q", ErrEntityNotFound, label)
	}
	r.memo.SetDefault(canon, key)
	return key, nil
}

// Normalize resolves value to a key, returning value unchanged when it does
// not resolve.
func (r *Resolver) Normalize(value string) string {
	if key, err := r.Resolve(value); err == nil {
		return key
	}
	return value
}

// Entry returns the catalog entry for key.
func (r *Resolver) Entry(key string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	return e, ok
}

// ShortCode returns the entity short code, or key when it has none.
func (r *Resolver) ShortCode(key string) string {
	if e, ok := r.Entry(key); ok && e.ShortCode != "" {
		return e.ShortCode
	}
	return key
}

// Display returns the label shown for key: short code, then name, then key.
func (r *Resolver) Display(key string) string {
	e, ok := r.Entry(key)
	if !ok {
		return key
	}
	if e.ShortCode != "" {
		return e.ShortCode
	}
	if e.Name != "" {
		return e.Name
	}
	return key
}

// Entries returns the indexed entries in ordinal order.
func (r *Resolver) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.ordered))
	copy(out, r.ordered)
	return out
}
