package engine

import "strconv"

// State is the engine's execution state, owned exclusively by the
// engine. Hosts observe it through GetState and OnStateChange.
type State uint8

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStepping
	StateWaitingForResponse
	StateComplete
	StateError
)

var stateNames = [...]string{
	StateIdle:               "IDLE",
	StateRunning:            "RUNNING",
	StatePaused:             "PAUSED",
	StateStepping:           "STEPPING",
	StateWaitingForResponse: "WAITING_FOR_RESPONSE",
	StateComplete:           "COMPLETE",
	StateError:              "ERROR",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// live reports whether the engine has a run in progress (a Stop is
// meaningful).
func (s State) live() bool {
	switch s {
	case StateRunning, StatePaused, StateStepping, StateWaitingForResponse:
		return true
	default:
		return false
	}
}
