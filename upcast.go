package tea

import (
	"encoding/json"
	"fmt"
	"sync"
)

// UpcastFunc transforms a journaled action payload from one shape to
// another. It receives the raw JSON data and returns the transformed data.
type UpcastFunc func(data json.RawMessage) (json.RawMessage, error)

// Upcaster represents a transformation from one action type to another.
// Upcasters let old journals replay after an action is renamed or its
// payload reshaped.
type Upcaster struct {
	FromType string     // Source action type
	ToType   string     // Target action type
	Upcast   UpcastFunc // Payload transformation, nil to pass data through
}

// UpcastRegistry manages registered upcasters. A Replayer applies them to
// each journal entry before decoding.
type UpcastRegistry struct {
	upcasters map[string]Upcaster
	mu        sync.RWMutex
}

// NewUpcastRegistry creates an empty registry
func NewUpcastRegistry() *UpcastRegistry {
	return &UpcastRegistry{
		upcasters: make(map[string]Upcaster),
	}
}

// Register adds an upcaster from one action type to another. At most one
// upcaster may be registered per source type, and registrations that would
// form a cycle are rejected.
func (r *UpcastRegistry) Register(fromType, toType string, upcast UpcastFunc) error {
	if fromType == "" || toType == "" {
		return fmt.Errorf("tea: upcast types cannot be empty")
	}
	if fromType == toType {
		return fmt.Errorf("tea: cannot upcast type to itself")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.upcasters[fromType]; exists {
		return fmt.Errorf("tea: upcaster already registered for %s", fromType)
	}
	if r.wouldCreateCycle(fromType, toType) {
		return fmt.Errorf("tea: upcast %s -> %s would create a cycle", fromType, toType)
	}

	r.upcasters[fromType] = Upcaster{
		FromType: fromType,
		ToType:   toType,
		Upcast:   upcast,
	}
	return nil
}

// wouldCreateCycle checks whether a path already leads from toType back to
// fromType. Callers must hold the lock.
func (r *UpcastRegistry) wouldCreateCycle(fromType, toType string) bool {
	current := toType
	for {
		up, ok := r.upcasters[current]
		if !ok {
			return false
		}
		if up.ToType == fromType {
			return true
		}
		current = up.ToType
	}
}

// Apply follows the upcast chain for an action type, transforming the
// payload at each step, and returns the final data and type name. Types
// with no registered upcaster pass through unchanged.
func (r *UpcastRegistry) Apply(actionType string, data json.RawMessage) (json.RawMessage, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for {
		up, ok := r.upcasters[actionType]
		if !ok {
			return data, actionType, nil
		}

		if up.Upcast != nil {
			transformed, err := up.Upcast(data)
			if err != nil {
				return nil, actionType, fmt.Errorf("tea: upcast %s -> %s: %w", up.FromType, up.ToType, err)
			}
			data = transformed
		}
		actionType = up.ToType
	}
}
