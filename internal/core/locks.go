package core

import (
	"sort"
	"sync"
)

// entryLocks serializes operations per entry ID. Locks for several
// entries are always taken in sorted order, so two operations sharing
// entries cannot deadlock.
type entryLocks struct {
	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func newEntryLocks() *entryLocks {
	return &entryLocks{locks: make(map[string]*entryLock)}
}

// lock blocks until every listed entry is held and returns the release func.
func (l *entryLocks) lock(ids ...string) func() {
	keys := uniqueSorted(ids)
	held := make([]*entryLock, len(keys))

	l.mu.Lock()
	for i, id := range keys {
		el, ok := l.locks[id]
		if !ok {
			el = &entryLock{}
			l.locks[id] = el
		}
		el.refs++
		held[i] = el
	}
	l.mu.Unlock()

	for _, el := range held {
		el.mu.Lock()
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
		l.mu.Lock()
		for i, id := range keys {
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.locks, id)
			}
		}
		l.mu.Unlock()
	}
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
