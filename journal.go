package tea

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Entry is one applied action in a journal: the action's name and payload,
// and the committed state it produced.
type Entry struct {
	Seq       int64           `json:"seq"`
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data"`
	State     json.RawMessage `json:"state"`
	Timestamp time.Time       `json:"timestamp"`
}

// Journal defines the interface for recording applied actions.
//
// A journal is an audit artifact: models never restore state from one at
// construction. Use a Replayer to fold a journal back into a state offline.
type Journal interface {
	// Record appends an entry. Entries arrive in apply order with
	// monotonically increasing Seq, starting at 1.
	Record(ctx context.Context, entry *Entry) error

	// Load returns entries with from <= Seq <= to. A to of -1 means
	// "through the end".
	Load(ctx context.Context, from, to int64) ([]*Entry, error)

	// Position returns the highest recorded Seq, 0 when empty.
	Position(ctx context.Context) (int64, error)

	// Close releases any resources held by the journal
	Close() error
}

// Fold applies update left-to-right over actions, starting from initial.
// It is the reference semantics of a model: for a single producer sending
// A1..An, the model's final committed state equals Fold(update, zero, A1..An).
func Fold[S comparable, A any](update UpdateFunc[S, A], initial S, actions ...A) S {
	state := initial
	for _, action := range actions {
		state = update(state, action)
	}
	return state
}

// MemoryJournal is a simple in-memory implementation of Journal and
// CheckpointStore. It is safe for concurrent use.
type MemoryJournal struct {
	mu          sync.RWMutex
	entries     []*Entry
	checkpoints []*Checkpoint
}

// NewMemoryJournal creates an empty in-memory journal
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// Record implements Journal
func (m *MemoryJournal) Record(ctx context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.Seq == 0 {
		entry.Seq = int64(len(m.entries)) + 1
	}
	m.entries = append(m.entries, entry)
	return nil
}

// Load implements Journal
func (m *MemoryJournal) Load(ctx context.Context, from, to int64) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Entry
	for _, entry := range m.entries {
		if entry.Seq >= from && (to == -1 || entry.Seq <= to) {
			result = append(result, entry)
		}
	}
	return result, nil
}

// Position implements Journal
func (m *MemoryJournal) Position(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return 0, nil
	}
	return m.entries[len(m.entries)-1].Seq, nil
}

// Close implements Journal
func (m *MemoryJournal) Close() error {
	return nil
}

// SaveCheckpoint implements CheckpointStore
func (m *MemoryJournal) SaveCheckpoint(ctx context.Context, cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints = append(m.checkpoints, cp)
	return nil
}

// LatestCheckpoint implements CheckpointStore
func (m *MemoryJournal) LatestCheckpoint(ctx context.Context) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.checkpoints) == 0 {
		return nil, nil
	}
	return m.checkpoints[len(m.checkpoints)-1], nil
}
