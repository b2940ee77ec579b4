// Package teatime is a model of making a cup of tea, used as the reference
// instantiation of the tea runtime: a small state machine driven through a
// total transition function, with invalid transitions folded into an error
// status instead of raised as faults.
package teatime

import (
	"encoding/json"
	"fmt"

	"github.com/brewloop/tea"
)

// Phase enumerates the stages of making tea
type Phase int

const (
	// PhaseFetchingCup is the initial phase, before a cup is available
	PhaseFetchingCup Phase = iota
	PhaseEmptyCup
	PhaseTeaBag
	PhaseWater
	PhaseTeaReady
	PhaseError
)

// TeaKind identifies a kind of tea with its valid steeping temperatures
type TeaKind int

const (
	Black TeaKind = iota
	Green
	White
	Oolong
)

// SteepingRange returns the inclusive range of valid steeping temperatures
// for the kind, in degrees Celsius.
func (k TeaKind) SteepingRange() (low, high int) {
	switch k {
	case Black:
		return 100, 100
	case Green:
		return 70, 79
	case White:
		return 70, 82
	case Oolong:
		return 85, 93
	default:
		return 0, 0
	}
}

func (k TeaKind) String() string {
	switch k {
	case Black:
		return "Black"
	case Green:
		return "Green"
	case White:
		return "White"
	case Oolong:
		return "Oolong"
	default:
		return fmt.Sprintf("TeaKind(%d)", int(k))
	}
}

// BrewError describes why a transition was invalid. It is a state value,
// not a Go error: the transition function is total and never fails.
type BrewError int

const (
	ErrNone BrewError = iota
	ErrMissingTeaBag
	ErrWaterTooHot
	ErrWaterTooCold
	ErrMissingWater
	ErrCupNotEmpty
)

func (e BrewError) String() string {
	switch e {
	case ErrMissingTeaBag:
		return "No tea bag added"
	case ErrWaterTooHot:
		return "Water is too hot"
	case ErrWaterTooCold:
		return "Water is too cold"
	case ErrMissingWater:
		return "No water added"
	case ErrCupNotEmpty:
		return "The cup is not empty"
	default:
		return "Unknown error"
	}
}

// Status is the brewing state: a phase plus the fields that phase carries.
// Only the fields belonging to the current phase are meaningful; the rest
// stay zero so Status values compare cleanly.
type Status struct {
	Phase       Phase     `json:"phase"`
	Bag         TeaKind   `json:"bag,omitempty"`
	Temperature int       `json:"temperature,omitempty"`
	Err         BrewError `json:"err,omitempty"`
}

func (s Status) String() string {
	switch s.Phase {
	case PhaseFetchingCup:
		return "Fetching a cup..."
	case PhaseEmptyCup:
		return "Empty cup. Add a tea bag."
	case PhaseTeaBag:
		return fmt.Sprintf("Tea bag added: %s", s.Bag)
	case PhaseWater:
		return fmt.Sprintf("Water added at %d°C. Waiting for tea to brew...", s.Temperature)
	case PhaseTeaReady:
		return "Tea is ready!"
	case PhaseError:
		return fmt.Sprintf("Error: %s", s.Err)
	default:
		return fmt.Sprintf("Phase(%d)", int(s.Phase))
	}
}

func errorStatus(reason BrewError) Status {
	return Status{Phase: PhaseError, Err: reason}
}

// AppState is the application state managed by the runtime. The zero value
// (fetching a cup) is the initial state of a fresh model.
type AppState struct {
	Status Status `json:"status"`
}

// Action is one requested brewing transition
type Action interface {
	tea.Namer
	isAction()
}

// CupFetched reports that a cup is available. It always resets the state to
// an empty cup, regardless of what came before.
type CupFetched struct{}

// AddTeaBag puts a tea bag of the given kind into the cup
type AddTeaBag struct {
	Kind TeaKind `json:"kind"`
}

// AddWater pours water at the given temperature over the tea bag
type AddWater struct {
	Temperature int `json:"temperature"`
}

// Done declares the brewing finished
type Done struct{}

func (CupFetched) isAction() {}
func (AddTeaBag) isAction()  {}
func (AddWater) isAction()   {}
func (Done) isAction()       {}

func (CupFetched) ActionName() string { return "cup_fetched" }
func (AddTeaBag) ActionName() string  { return "add_tea_bag" }
func (AddWater) ActionName() string   { return "add_water" }
func (Done) ActionName() string       { return "done" }

// Update is the transition function for AppState. It is total: every
// (state, action) pair yields a state, with invalid transitions mapped to
// an error status.
func Update(s AppState, action Action) AppState {
	switch a := action.(type) {
	case CupFetched:
		// a fetched cup always starts over with an empty cup
		s.Status = Status{Phase: PhaseEmptyCup}

	case AddTeaBag:
		if s.Status.Phase == PhaseEmptyCup {
			s.Status = Status{Phase: PhaseTeaBag, Bag: a.Kind}
		} else {
			s.Status = errorStatus(ErrCupNotEmpty)
		}

	case AddWater:
		if s.Status.Phase != PhaseTeaBag {
			s.Status = errorStatus(ErrMissingTeaBag)
			break
		}
		low, high := s.Status.Bag.SteepingRange()
		switch {
		case a.Temperature < low:
			s.Status = errorStatus(ErrWaterTooCold)
		case a.Temperature > high:
			s.Status = errorStatus(ErrWaterTooHot)
		default:
			s.Status = Status{Phase: PhaseWater, Temperature: a.Temperature}
		}

	case Done:
		if s.Status.Phase == PhaseWater {
			s.Status = Status{Phase: PhaseTeaReady}
		} else {
			s.Status = errorStatus(ErrMissingWater)
		}
	}
	return s
}

// NewModel creates a tea-making model with Update as its transition function
func NewModel(opts ...tea.Option) tea.Model[AppState, Action] {
	return tea.New[AppState, Action](Update, opts...)
}

// DecodeAction decodes a journaled action by its recorded name. It is the
// DecodeFunc for replaying teatime journals.
func DecodeAction(actionType string, data json.RawMessage) (Action, error) {
	switch actionType {
	case CupFetched{}.ActionName():
		return CupFetched{}, nil
	case AddTeaBag{}.ActionName():
		var a AddTeaBag
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("teatime: decode add_tea_bag: %w", err)
		}
		return a, nil
	case AddWater{}.ActionName():
		var a AddWater
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("teatime: decode add_water: %w", err)
		}
		return a, nil
	case Done{}.ActionName():
		return Done{}, nil
	default:
		return nil, fmt.Errorf("teatime: unknown action type %q", actionType)
	}
}
