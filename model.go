package tea

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// UpdateFunc is the transition function of a model. It maps the current
// committed state and one action to the next state. It must be total: every
// (state, action) pair yields a state, with invalid transitions encoded as
// state values rather than faults. It is invoked from exactly one goroutine
// and never concurrently with itself.
type UpdateFunc[S comparable, A any] func(S, A) S

// Model is a shareable handle to one state value and its action queue.
// It is a small value type; copies are cheap and all copies refer to the
// same underlying state. The zero Model is not usable; construct with New.
type Model[S comparable, A any] struct {
	rt *runtime[S, A]
}

// runtime is the shared core behind every copy of a Model
type runtime[S comparable, A any] struct {
	update UpdateFunc[S, A]
	cell   *cell[S]
	queue  *queue[A]
	cfg    *config

	// Loop-local bookkeeping, only touched by the update goroutine
	seq                int64
	lastCheckpointSeq  int64
	lastCheckpointTime time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a model whose state starts at the zero value of S, starts its
// update loop, and returns the handle. Each call produces an independent
// model family; nothing is shared across calls.
func New[S comparable, A any](update UpdateFunc[S, A], opts ...Option) Model[S, A] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	rt := &runtime[S, A]{
		update:             update,
		cell:               newCell[S](),
		queue:              newQueue[A](),
		cfg:                cfg,
		lastCheckpointTime: time.Now(),
		done:               make(chan struct{}),
	}

	go rt.loop()

	return Model[S, A]{rt: rt}
}

// Read returns the latest committed state. It never blocks producers and
// never observes a partially applied transition.
func (m Model[S, A]) Read() S {
	return m.rt.cell.load()
}

// Send enqueues an action for the update loop. It never blocks and gives no
// confirmation; the action takes effect asynchronously, in FIFO order with
// respect to this goroutine's earlier sends. Sending to a closed model is a
// silent no-op.
func (m Model[S, A]) Send(action A) {
	if !m.rt.queue.push(action) {
		return
	}
	if obs := m.rt.cfg.observability; obs != nil {
		obs.OnEnqueue(context.Background(), ActionType(action))
	}
}

// Subscribe registers a change observer, notified once per committed
// mutation. Observers run on the update loop goroutine and should hand off
// any slow work.
func (m Model[S, A]) Subscribe(fn ObserverFunc, opts ...SubscribeOption) *Subscription {
	return m.rt.cell.subscribe(fn, opts...)
}

// Pending reports the number of actions waiting in the queue.
func (m Model[S, A]) Pending() int {
	return m.rt.queue.len()
}

// Close tears down the model: the queue stops accepting actions, already
// enqueued actions are drained and applied, and the update loop exits.
// Close blocks until the loop has finished and is safe to call from any
// copy of the handle, multiple times.
func (m Model[S, A]) Close() error {
	m.rt.closeOnce.Do(func() {
		m.rt.queue.close()
		<-m.rt.done
	})
	return nil
}

// loop is the single consumer of the action queue. One action is applied
// and fully committed before the next is dequeued, so an action enqueued
// after observing a transition always runs against that committed state.
func (rt *runtime[S, A]) loop() {
	defer close(rt.done)

	for {
		action, ok := rt.queue.pop()
		if !ok {
			return
		}
		rt.apply(action)
	}
}

func (rt *runtime[S, A]) apply(action A) {
	ctx := context.Background()
	obs := rt.cfg.observability

	var start time.Time
	if obs != nil {
		ctx = obs.OnApplyStart(ctx, ActionType(action))
		start = time.Now()
	}

	next, changed := rt.cell.commit(func(s S) S {
		return rt.update(s, action)
	})
	rt.seq++

	if changed || !rt.cfg.notifyOnChange {
		rt.cell.notify(rt.cfg.panicHandler)
	}

	if rt.cfg.journal != nil {
		rt.record(ctx, action, next)
	}
	if rt.cfg.checkpoints != nil {
		rt.maybeCheckpoint(ctx, next)
	}

	if obs != nil {
		obs.OnApplyComplete(ctx, time.Since(start))
	}
}

// record appends the applied action and resulting state to the journal.
// Failures never affect the committed state; they go to the configured
// error handler.
func (rt *runtime[S, A]) record(ctx context.Context, action A, state S) {
	actionData, err := json.Marshal(action)
	if err != nil {
		rt.journalError(fmt.Errorf("tea: marshal action %s: %w", ActionType(action), err))
		return
	}
	stateData, err := json.Marshal(state)
	if err != nil {
		rt.journalError(fmt.Errorf("tea: marshal state after %s: %w", ActionType(action), err))
		return
	}

	entry := &Entry{
		Seq:       rt.seq,
		Action:    ActionType(action),
		Data:      actionData,
		State:     stateData,
		Timestamp: time.Now(),
	}

	obs := rt.cfg.observability
	var start time.Time
	if obs != nil {
		ctx = obs.OnRecordStart(ctx, entry.Action, entry.Seq)
		start = time.Now()
	}

	err = rt.cfg.journal.Record(ctx, entry)

	if obs != nil {
		obs.OnRecordComplete(ctx, time.Since(start), err)
	}
	if err != nil {
		rt.journalError(fmt.Errorf("tea: record action %s: %w", entry.Action, err))
	}
}

func (rt *runtime[S, A]) maybeCheckpoint(ctx context.Context, state S) {
	policy := rt.cfg.checkpointPolicy
	if policy == nil {
		policy = Never()
	}
	if !policy.ShouldCheckpoint(rt.seq, rt.lastCheckpointSeq, rt.lastCheckpointTime) {
		return
	}

	data, err := json.Marshal(state)
	if err != nil {
		rt.journalError(fmt.Errorf("tea: marshal checkpoint state: %w", err))
		return
	}

	cp := &Checkpoint{
		Seq:       rt.seq,
		State:     data,
		Timestamp: time.Now(),
	}
	if err := rt.cfg.checkpoints.SaveCheckpoint(ctx, cp); err != nil {
		rt.journalError(fmt.Errorf("tea: save checkpoint at seq %d: %w", cp.Seq, err))
		return
	}

	rt.lastCheckpointSeq = cp.Seq
	rt.lastCheckpointTime = cp.Timestamp
}

func (rt *runtime[S, A]) journalError(err error) {
	if rt.cfg.onJournalError != nil {
		rt.cfg.onJournalError(err)
	}
}

// Namer lets an action type provide a stable name for journaling and
// instrumentation, independent of the Go type name.
type Namer interface {
	ActionName() string
}

// ActionType returns the name used for an action in journal entries and
// instrumentation: the Namer name if implemented, otherwise the Go type.
func ActionType(action any) string {
	if n, ok := action.(Namer); ok {
		return n.ActionName()
	}
	if action == nil {
		return "<nil>"
	}
	return reflect.TypeOf(action).String()
}

// Observability receives hooks from the model's hot paths. Implementations
// must be safe for concurrent use: OnEnqueue fires on producer goroutines,
// the remaining hooks on the update loop.
type Observability interface {
	// OnEnqueue is called after an action is accepted by the queue
	OnEnqueue(ctx context.Context, actionType string)

	// OnApplyStart is called before the transition function runs
	OnApplyStart(ctx context.Context, actionType string) context.Context

	// OnApplyComplete is called after commit, notification and journaling
	OnApplyComplete(ctx context.Context, duration time.Duration)

	// OnRecordStart is called before a journal write
	OnRecordStart(ctx context.Context, actionType string, seq int64) context.Context

	// OnRecordComplete is called after a journal write (with or without error)
	OnRecordComplete(ctx context.Context, duration time.Duration, err error)
}
