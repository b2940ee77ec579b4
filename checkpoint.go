package tea

import (
	"context"
	"encoding/json"
	"time"
)

// Checkpoint is a point-in-time serialization of a committed state,
// taken after the action with the given Seq was applied.
type Checkpoint struct {
	Seq       int64           `json:"seq"`
	State     json.RawMessage `json:"state"`
	Timestamp time.Time       `json:"timestamp"`
}

// CheckpointStore defines the interface for storing and retrieving checkpoints
type CheckpointStore interface {
	// SaveCheckpoint stores a checkpoint
	SaveCheckpoint(ctx context.Context, cp *Checkpoint) error

	// LatestCheckpoint retrieves the most recent checkpoint, or nil when
	// none has been saved
	LatestCheckpoint(ctx context.Context) (*Checkpoint, error)
}

// CheckpointPolicy determines when the update loop saves a checkpoint
type CheckpointPolicy interface {
	// ShouldCheckpoint returns true if a checkpoint should be saved after
	// applying the action with the given seq
	ShouldCheckpoint(seq, lastCheckpointSeq int64, lastCheckpointTime time.Time) bool
}

// PolicyFunc is a function that implements CheckpointPolicy
type PolicyFunc func(seq, lastCheckpointSeq int64, lastCheckpointTime time.Time) bool

func (f PolicyFunc) ShouldCheckpoint(seq, lastCheckpointSeq int64, lastCheckpointTime time.Time) bool {
	return f(seq, lastCheckpointSeq, lastCheckpointTime)
}

// EveryNActions creates a policy that checkpoints after every N applied actions
func EveryNActions(n int64) CheckpointPolicy {
	if n <= 0 {
		n = 1
	}
	return PolicyFunc(func(seq, lastSeq int64, lastTime time.Time) bool {
		return seq-lastSeq >= n
	})
}

// TimeInterval creates a policy that checkpoints after a time interval
func TimeInterval(interval time.Duration) CheckpointPolicy {
	return PolicyFunc(func(seq, lastSeq int64, lastTime time.Time) bool {
		return time.Since(lastTime) >= interval
	})
}

// Never creates a policy that never checkpoints
func Never() CheckpointPolicy {
	return PolicyFunc(func(seq, lastSeq int64, lastTime time.Time) bool {
		return false
	})
}

// AnyOf creates a policy that triggers when ANY of the given policies does
func AnyOf(policies ...CheckpointPolicy) CheckpointPolicy {
	return PolicyFunc(func(seq, lastSeq int64, lastTime time.Time) bool {
		for _, policy := range policies {
			if policy.ShouldCheckpoint(seq, lastSeq, lastTime) {
				return true
			}
		}
		return false
	})
}
