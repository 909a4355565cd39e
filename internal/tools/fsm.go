package tools

// State is a gesture state.
type State string

const (
	StateIdle     State = "idle"
	StateDragging State = "dragging"
	StateBuilding State = "building"
	StatePainting State = "painting"
	StateEditing  State = "editing"
)

// Action names what a transition does.
type Action string

// Key selects a transition.
type Key struct {
	From State
	On   EventType
}

// Transition is the outcome of an event in a state. An action may still
// redirect the tool to another state (a polygon that auto-completes returns
// to idle).
type Transition struct {
	To     State
	Action Action
}

// FSM is a transition table. Events with no entry are ignored.
type FSM map[Key]Transition

// Next looks up the transition for an event.
func (f FSM) Next(from State, on EventType) (Transition, bool) {
	t, ok := f[Key{From: from, On: on}]
	return t, ok
}

// drive looks up the transition, runs the action and stores the resulting
// state. run may return a non-empty state to override the table's target.
func drive(f FSM, state *State, ev EventType, run func(Action) (State, error)) error {
	if *state == "" {
		*state = StateIdle
	}
	t, ok := f.Next(*state, ev)
	if !ok {
		return nil
	}
	next, err := run(t.Action)
	if next == "" {
		next = t.To
	}
	*state = next
	return err
}
