package hub

import (
	"errors"
	"time"

	"omniagent/pkg/proto"
)

var (
	// ErrBusy is returned when an operation arrives while a call is in flight.
	ErrBusy = errors.New("hub is busy")

	// ErrIllegalInput is returned when an operation is not legal in the current context.
	ErrIllegalInput = errors.New("input not accepted in current context")

	// ErrInvalidApproval is returned when there is no plan to approve or the plan has no steps.
	ErrInvalidApproval = errors.New("execution plan is invalid or empty")

	// ErrInvalidTransition is returned when a move is missing from the transition table.
	ErrInvalidTransition = errors.New("invalid context transition")
)

// Busy is the in-flight status of the machine.
type Busy string

// Busy values.
const (
	BusyIdle      Busy = "idle"
	BusyLoading   Busy = "loading"
	BusyExecuting Busy = "executing"
)

// TransitionTable lists the contexts reachable from each context.
type TransitionTable map[proto.AppContext][]proto.AppContext

var workspaceContexts = []proto.AppContext{
	proto.ContextSlides, proto.ContextWeb, proto.ContextDesign,
	proto.ContextResearch, proto.ContextYouTube, proto.ContextRoadmap,
}

// HubTransitions is the hub's transition table. Edits and revisions stay in
// place and are not transitions.
var HubTransitions = func() TransitionTable {
	t := TransitionTable{
		proto.ContextHub:     {proto.ContextLoading, proto.ContextChat},
		proto.ContextLoading: {proto.ContextResearch, proto.ContextYouTube, proto.ContextHub},
		proto.ContextChat:    append([]proto.AppContext{proto.ContextHub}, workspaceContexts...),
	}
	for _, ws := range workspaceContexts {
		t[ws] = []proto.AppContext{proto.ContextHub}
	}
	return t
}()

// IsValidTransition reports whether the table allows from -> to.
func (t TransitionTable) IsValidTransition(from, to proto.AppContext) bool {
	for _, allowed := range t[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition is one recorded context change.
type Transition struct {
	From    proto.AppContext `json:"from"`
	To      proto.AppContext `json:"to"`
	Trigger string           `json:"trigger"`
	At      time.Time        `json:"at"`
}
