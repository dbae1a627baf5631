package progress

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sync"
)

// LearnedKey is the store key holding the learned command ids.
const LearnedKey = "learnedCommands"

// LearnedSet is the set of command ids the learner marked as learned. It is
// hydrated once from the store and written back on every change.
type LearnedSet struct {
	store Store

	mu     sync.Mutex
	ids    map[string]struct{}
	loaded bool
}

// NewLearnedSet creates an empty set backed by store.
func NewLearnedSet(store Store) *LearnedSet {
	return &LearnedSet{store: store, ids: make(map[string]struct{})}
}

// Load hydrates the set from the store. Only the first call reads; later
// calls return nil. A corrupt stored value leaves the set empty.
func (l *LearnedSet) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return nil
	}
	l.loaded = true

	raw, ok, err := l.store.Get(LearnedKey)
	if err != nil {
		return fmt.Errorf("load learned set: %w", err)
	}
	if !ok || raw == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return fmt.Errorf("load learned set: decode: %w", err)
	}
	for _, id := range ids {
		l.ids[id] = struct{}{}
	}
	return nil
}

// Has reports whether id is learned.
func (l *LearnedSet) Has(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.ids[id]
	return ok
}

// Toggle flips id and returns its new state.
func (l *LearnedSet) Toggle(id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, learned := l.ids[id]
	if learned {
		delete(l.ids, id)
	} else {
		l.ids[id] = struct{}{}
	}
	return !learned, l.save()
}

// Add marks id as learned.
func (l *LearnedSet) Add(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ids[id]; ok {
		return nil
	}
	l.ids[id] = struct{}{}
	return l.save()
}

// Remove clears id.
func (l *LearnedSet) Remove(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ids[id]; !ok {
		return nil
	}
	delete(l.ids, id)
	return l.save()
}

// Merge adds every id in ids with a single write and returns how many
// were new.
func (l *LearnedSet) Merge(ids []string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	added := 0
	for _, id := range ids {
		if _, ok := l.ids[id]; !ok {
			l.ids[id] = struct{}{}
			added++
		}
	}
	if added == 0 {
		return 0, nil
	}
	return added, l.save()
}

// IDs returns the learned ids in sorted order.
func (l *LearnedSet) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sorted()
}

// Len returns the number of learned ids.
func (l *LearnedSet) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ids)
}

// Percent returns the learned share of total as a whole percentage,
// capped at 100.
func (l *LearnedSet) Percent(total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(l.Len()) / float64(total) * 100))
	return min(p, 100)
}

func (l *LearnedSet) sorted() []string {
	ids := make([]string, 0, len(l.ids))
	for id := range l.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (l *LearnedSet) save() error {
	data, err := json.Marshal(l.sorted())
	if err != nil {
		return fmt.Errorf("save learned set: encode: %w", err)
	}
	if err := l.store.Set(LearnedKey, string(data)); err != nil {
		return fmt.Errorf("save learned set: %w", err)
	}
	return nil
}
