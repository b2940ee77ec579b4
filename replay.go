package tea

import (
	"context"
	"encoding/json"
	"fmt"
)

// DecodeFunc turns a journaled action back into a value of the action type.
// The actionType is the name recorded in the entry (after upcasting).
type DecodeFunc[A any] func(actionType string, data json.RawMessage) (A, error)

// ReplayerOption configures a Replayer
type ReplayerOption func(*replayerConfig)

type replayerConfig struct {
	upcasts *UpcastRegistry
}

// WithUpcasts applies the registry's upcasters to every entry before
// decoding.
func WithUpcasts(reg *UpcastRegistry) ReplayerOption {
	return func(c *replayerConfig) {
		c.upcasts = reg
	}
}

// Replayer folds a journal back into a state. Because transition functions
// are pure, replaying the same entries from the same initial state always
// reproduces the same committed states.
type Replayer[S comparable, A any] struct {
	update UpdateFunc[S, A]
	decode DecodeFunc[A]
	cfg    *replayerConfig
}

// NewReplayer creates a replayer for a model family's transition function
func NewReplayer[S comparable, A any](update UpdateFunc[S, A], decode DecodeFunc[A], opts ...ReplayerOption) *Replayer[S, A] {
	cfg := &replayerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Replayer[S, A]{
		update: update,
		decode: decode,
		cfg:    cfg,
	}
}

// Replay folds all entries with Seq >= from onto initial and returns the
// resulting state along with the Seq of the last entry applied (from-1 when
// the range is empty).
func (r *Replayer[S, A]) Replay(ctx context.Context, j Journal, initial S, from int64) (S, int64, error) {
	entries, err := j.Load(ctx, from, -1)
	if err != nil {
		var zero S
		return zero, 0, fmt.Errorf("tea: load journal: %w", err)
	}

	state := initial
	last := from - 1
	for _, entry := range entries {
		action, err := r.decodeEntry(entry)
		if err != nil {
			var zero S
			return zero, 0, err
		}
		state = r.update(state, action)
		last = entry.Seq
	}
	return state, last, nil
}

// ReplayFromCheckpoint restores the latest checkpoint (or the zero state
// when none exists) and folds the entries recorded after it.
func (r *Replayer[S, A]) ReplayFromCheckpoint(ctx context.Context, j Journal, cps CheckpointStore) (S, int64, error) {
	var initial S
	from := int64(1)

	cp, err := cps.LatestCheckpoint(ctx)
	if err != nil {
		var zero S
		return zero, 0, fmt.Errorf("tea: load checkpoint: %w", err)
	}
	if cp != nil {
		if err := json.Unmarshal(cp.State, &initial); err != nil {
			var zero S
			return zero, 0, fmt.Errorf("tea: decode checkpoint state at seq %d: %w", cp.Seq, err)
		}
		from = cp.Seq + 1
	}

	state, last, err := r.Replay(ctx, j, initial, from)
	if err != nil {
		var zero S
		return zero, 0, err
	}
	if last < from-1 {
		last = from - 1
	}
	return state, last, nil
}

// Verify recomputes every transition recorded in the journal, starting from
// initial, and checks that each computed state equals the recorded one. A
// mismatch means the transition function changed or is not pure.
func (r *Replayer[S, A]) Verify(ctx context.Context, j Journal, initial S) error {
	entries, err := j.Load(ctx, 1, -1)
	if err != nil {
		return fmt.Errorf("tea: load journal: %w", err)
	}

	state := initial
	for _, entry := range entries {
		action, err := r.decodeEntry(entry)
		if err != nil {
			return err
		}
		state = r.update(state, action)

		var recorded S
		if err := json.Unmarshal(entry.State, &recorded); err != nil {
			return fmt.Errorf("tea: decode recorded state at seq %d: %w", entry.Seq, err)
		}
		if state != recorded {
			return fmt.Errorf("tea: state mismatch at seq %d (%s): computed %+v, recorded %+v",
				entry.Seq, entry.Action, state, recorded)
		}
	}
	return nil
}

func (r *Replayer[S, A]) decodeEntry(entry *Entry) (A, error) {
	name := entry.Action
	data := entry.Data

	if r.cfg.upcasts != nil {
		var err error
		data, name, err = r.cfg.upcasts.Apply(name, data)
		if err != nil {
			var zero A
			return zero, err
		}
	}

	action, err := r.decode(name, data)
	if err != nil {
		var zero A
		return zero, fmt.Errorf("tea: decode action %s at seq %d: %w", name, entry.Seq, err)
	}
	return action, nil
}
