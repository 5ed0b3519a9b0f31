// File: game/state.go
package game

// State is the room lifecycle state. A room is in exactly one state at a time;
// every emitted event carries the state it was generated in.
type State int

const (
	StateLobby State = iota
	StateIntro
	StateQuestion
	StateReveal
	StatePodium
	StateClosed
)

var stateNames = map[State]string{
	StateLobby:    "LOBBY",
	StateIntro:    "INTRO",
	StateQuestion: "QUESTION",
	StateReveal:   "REVEAL",
	StatePodium:   "PODIUM",
	StateClosed:   "CLOSED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// hasQuestionIndex reports whether the current question index is defined.
func (s State) hasQuestionIndex() bool {
	return s == StateIntro || s == StateQuestion || s == StateReveal
}
