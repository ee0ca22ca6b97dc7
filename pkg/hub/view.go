package hub

import "omniagent/pkg/proto"

// View is a point-in-time copy of the machine state. Envelope is shared with
// the machine and must be treated as read-only.
type View struct {
	SessionID  string                  `json:"sessionId"`
	Context    proto.AppContext        `json:"context"`
	Mode       *proto.AgentKind        `json:"mode,omitempty"`
	Busy       Busy                    `json:"busy"`
	Transcript []proto.Message         `json:"transcript"`
	Envelope   *proto.ResponseEnvelope `json:"envelope,omitempty"`
	LastPrompt string                  `json:"lastPrompt,omitempty"`
	Notice     string                  `json:"notice,omitempty"`
	History    []Transition            `json:"history"`
}

// LatestPlan returns the most recent plan in the transcript, or nil.
func (v View) LatestPlan() *proto.ExecutionPlan {
	for i := len(v.Transcript) - 1; i >= 0; i-- {
		if v.Transcript[i].Plan != nil {
			return v.Transcript[i].Plan
		}
	}
	return nil
}

// Snapshot returns the current state. A workspace context without a matching
// envelope is repaired by returning to HUB first.
func (m *Machine) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy == BusyIdle && !m.envelopeMatchesLocked() {
		m.fallBackToHubLocked()
	}

	v := View{
		SessionID:  m.sessionID,
		Context:    m.state,
		Busy:       m.busy,
		Transcript: make([]proto.Message, len(m.transcript)),
		Envelope:   m.envelope,
		LastPrompt: m.lastPrompt,
		Notice:     m.notice,
		History:    append([]Transition{}, m.history...),
	}
	if m.mode != nil {
		v.Mode = m.mode.Ptr()
	}
	for i, msg := range m.transcript {
		v.Transcript[i] = msg.Clone()
	}
	return v
}

// Context returns the active context.
func (m *Machine) Context() proto.AppContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsBusy reports whether a planning or dispatch call is in flight.
func (m *Machine) IsBusy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy != BusyIdle
}
