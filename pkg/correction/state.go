package correction

import "fmt"

// State is a step in a correction's lifecycle
type State int

const (
	// None means no draft has existed yet
	None State = iota
	Drawn
	AwaitingInput
	Submitting
	Confirmed
	SubmitFailed
	Cancelled
)

var stateNames = map[State]string{
	None:          "none",
	Drawn:         "drawn",
	AwaitingInput: "awaiting_input",
	Submitting:    "submitting",
	Confirmed:     "confirmed",
	SubmitFailed:  "submit_failed",
	Cancelled:     "cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown correction state %q", text)
}

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == Confirmed || s == Cancelled
}
