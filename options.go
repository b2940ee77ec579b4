package tea

// Option configures a model at construction time
type Option func(*config)

// config holds all model configuration
type config struct {
	journal          Journal
	onJournalError   func(error)
	checkpoints      CheckpointStore
	checkpointPolicy CheckpointPolicy
	observability    Observability
	notifyOnChange   bool
	panicHandler     PanicHandler
}

func defaultConfig() *config {
	return &config{}
}

// WithJournal records every applied action and its resulting committed state
// to the given journal. Recording happens on the update loop, after commit
// and observer notification.
func WithJournal(j Journal) Option {
	return func(c *config) {
		c.journal = j
	}
}

// WithJournalErrorHandler sets a callback for journal marshal/record
// failures. Without a handler such failures are dropped silently; the
// applied state is committed either way.
func WithJournalErrorHandler(fn func(error)) Option {
	return func(c *config) {
		c.onJournalError = fn
	}
}

// WithCheckpoints saves a checkpoint of the committed state to store
// whenever policy triggers. Checkpoints bound how far back a Replayer
// has to fold.
func WithCheckpoints(store CheckpointStore, policy CheckpointPolicy) Option {
	return func(c *config) {
		c.checkpoints = store
		c.checkpointPolicy = policy
	}
}

// WithObservability instruments the model with the given hooks.
// See the otel sub-package for an OpenTelemetry implementation.
func WithObservability(obs Observability) Option {
	return func(c *config) {
		c.observability = obs
	}
}

// WithNotifyOnChange suppresses observer notification for commits that
// leave the state equal to its previous value. By default observers are
// notified on every commit, including no-op transitions.
func WithNotifyOnChange() Option {
	return func(c *config) {
		c.notifyOnChange = true
	}
}

// WithPanicHandler sets a function to be called when an observer panics
func WithPanicHandler(fn PanicHandler) Option {
	return func(c *config) {
		c.panicHandler = fn
	}
}
