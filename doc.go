// Package tea implements a minimal unidirectional-dataflow runtime in the
// style of The Elm Architecture: all mutations of a state value flow through
// an ordered queue of actions drained by a single update goroutine, and reads
// always observe a fully committed state.
//
// # Models
//
// A model is created from a transition function and starts its own update
// loop. The returned handle is a small value that can be copied freely; all
// copies share the same state and queue:
//
//	type Counter struct{ N int }
//	type Incr struct{ By int }
//
//	model := tea.New(func(s Counter, a Incr) Counter {
//	    s.N += a.By
//	    return s
//	})
//	defer model.Close()
//
//	model.Send(Incr{By: 2})
//	n := model.Read().N
//
// Send never blocks and carries no confirmation: the action is applied
// asynchronously, in FIFO order, by the model's update loop. Read returns the
// latest committed state and never observes a half-applied transition.
//
// The transition function must be total: invalid actions are folded into the
// state (for example as an error variant) rather than reported through an
// error return. It is called from exactly one goroutine and needs no internal
// locking.
//
// # Observers
//
// Observers are payload-free callbacks fired once per committed mutation.
// A renderer re-reads the state when notified:
//
//	sub := model.Subscribe(func() {
//	    render(model.Read())
//	})
//	defer sub.Cancel()
//
// # Journaling
//
// Applied actions and their resulting states can be recorded to a Journal for
// auditing and replay:
//
//	journal := tea.NewMemoryJournal()
//	model := tea.New(update, tea.WithJournal(journal))
//
// A Replayer folds a journal back into a state and can verify that every
// recorded transition is reproducible. Journals are debugging artifacts: a
// model always starts from the zero state and never restores from a journal.
//
// The stores/sqlite sub-package provides a SQLite-backed journal; the otel
// sub-package provides OpenTelemetry instrumentation of the runtime.
package tea
