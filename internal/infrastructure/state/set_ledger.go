package state

import (
	"context"
	"sync"

	"StockNewsScanner/internal/ports"
)

// SetLedger is a persisted string set: the default file-backed
// implementation of both the dedup and sent ledgers. The set grows
// monotonically and is rewritten (atomically) after every insertion.
type SetLedger struct {
	mu    sync.Mutex
	path  string
	items map[string]struct{}
}

var (
	_ ports.DedupLedger = (*SetLedger)(nil)
	_ ports.SentLedger  = (*SetLedger)(nil)
)

// NewSetLedger loads the set from path if it exists.
func NewSetLedger(path string) (*SetLedger, error) {
	var stored []string
	if err := readJSON(path, &stored); err != nil {
		return nil, err
	}

	items := make(map[string]struct{}, len(stored))
	for _, item := range stored {
		items[item] = struct{}{}
	}
	return &SetLedger{path: path, items: items}, nil
}

// Seen reports whether key is already in the set.
func (l *SetLedger) Seen(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.items[key]
	return ok, nil
}

// Mark inserts key and persists the set.
func (l *SetLedger) Mark(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.items[key]; ok {
		return nil
	}
	l.items[key] = struct{}{}
	return l.save()
}

// Sent reports whether headline was already delivered.
func (l *SetLedger) Sent(ctx context.Context, headline string) (bool, error) {
	return l.Seen(ctx, headline)
}

// MarkSent inserts delivered headlines and persists the set.
func (l *SetLedger) MarkSent(_ context.Context, headlines []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	changed := false
	for _, headline := range headlines {
		if _, ok := l.items[headline]; !ok {
			l.items[headline] = struct{}{}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return l.save()
}

// Len reports the set size.
func (l *SetLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

func (l *SetLedger) save() error {
	stored := make([]string, 0, len(l.items))
	for item := range l.items {
		stored = append(stored, item)
	}
	return writeJSON(l.path, stored)
}
