// Package hub implements the context state machine that drives the OmniAgent
// hub: mode selection, plan-first or direct dispatch, plan revision and
// approval, in-place workspace edits, and reset.
package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"omniagent/pkg/agent/llmerrors"
	"omniagent/pkg/config"
	"omniagent/pkg/dispatch"
	"omniagent/pkg/logx"
	"omniagent/pkg/persistence"
	"omniagent/pkg/planner"
	"omniagent/pkg/proto"
)

// Assistant transcript texts and user-facing notices.
const (
	PlanReadyMessage   = "I've analyzed your request. Here's a structured plan to build exactly what you need. Please review the steps below before we initiate the specialized agents."
	PlanRevisedMessage = "I've updated the roadmap based on your feedback."
	ApologyMessage     = "I apologize, but I encountered a critical error during analysis. Could you please refine your request?"

	InvalidPlanNotice   = "System Error: Execution plan is invalid or empty."
	ExecutionNotice     = "Execution interrupted."
	EditFailedNotice    = "Edit failed. The previous result is unchanged."
	EnvelopeLostNotice  = "The workspace result was unavailable, so the hub was reset."
	noticeDetailMaxRune = 200
)

// PlanGenerator produces execution plans. *planner.Planner satisfies it.
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, prompt string, forced *proto.AgentKind) (*proto.ExecutionPlan, error)
}

// Dispatcher runs an agent. *dispatch.Resolver satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, prompt string, kind proto.AgentKind, planContext *proto.ExecutionPlan) (*proto.ResponseEnvelope, error)
}

// RunLedger records one audit row per planning or dispatch call. *persistence.Ledger satisfies it.
type RunLedger interface {
	Record(ctx context.Context, run persistence.Run) error
}

// Machine is the hub state machine. All methods are safe for concurrent use;
// only one planning or dispatch call runs at a time and the lock is never
// held across one. Once issued, a call runs to completion or failure: the
// caller's cancellation is not propagated, only its values.
type Machine struct {
	planner    PlanGenerator
	dispatcher Dispatcher
	ledger     RunLedger
	metrics    *hubMetrics
	logger     *logx.Logger
	table      TransitionTable
	sessionID  string
	maxHistory int

	mu         sync.Mutex
	state      proto.AppContext
	busy       Busy
	mode       *proto.AgentKind
	transcript []proto.Message
	envelope   *proto.ResponseEnvelope
	lastPrompt string
	notice     string
	history    []Transition
}

// Option customizes a Machine.
type Option func(*Machine)

// WithLedger records every call in l.
func WithLedger(l RunLedger) Option {
	return func(m *Machine) { m.ledger = l }
}

// WithRegisterer registers the hub metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Machine) { m.metrics = newHubMetrics(reg) }
}

// WithHistoryLimit bounds the transition history. n <= 0 keeps the default.
func WithHistoryLimit(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.maxHistory = n
		}
	}
}

// WithSessionID fixes the session ID instead of generating one.
func WithSessionID(id string) Option {
	return func(m *Machine) { m.sessionID = id }
}

// New creates a machine in the HUB context.
func New(plans PlanGenerator, dispatcher Dispatcher, opts ...Option) *Machine {
	m := &Machine{
		planner:    plans,
		dispatcher: dispatcher,
		logger:     logx.NewLogger("hub"),
		table:      HubTransitions,
		sessionID:  uuid.NewString(),
		maxHistory: config.DefaultHistoryTransitions,
		state:      proto.ContextHub,
		busy:       BusyIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = newHubMetrics(nil)
	}
	return m
}

// SessionID returns the ID used for ledger rows.
func (m *Machine) SessionID() string {
	return m.sessionID
}

// SetMode selects or, with nil, clears the forced agent. Only legal in HUB.
func (m *Machine) SetMode(kind *proto.AgentKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLocked("set mode", proto.ContextHub); err != nil {
		return err
	}
	if kind == nil {
		m.mode = nil
		m.logger.Info("Mode cleared")
		return nil
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown agent kind %q", ErrIllegalInput, *kind)
	}
	k := *kind
	m.mode = &k
	m.logger.Info("Mode set to %s", k)
	return nil
}

// directKind reports whether mode skips planning and dispatch immediately from HUB.
func directKind(mode *proto.AgentKind) bool {
	return mode != nil && (*mode == proto.AgentResearcher || *mode == proto.AgentYouTubeResearcher)
}

// Submit handles hub input. With a forced RESEARCHER or YOUTUBE_RESEARCHER
// mode it dispatches directly through LOADING and returns any dispatch error;
// otherwise it enters CHAT and generates a plan, reporting a planning failure
// as an apology in the transcript rather than as an error.
func (m *Machine) Submit(ctx context.Context, text string) error {
	ctx = context.WithoutCancel(ctx)
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: empty request", ErrIllegalInput)
	}

	m.mu.Lock()
	if err := m.checkLocked("submit", proto.ContextHub); err != nil {
		m.mu.Unlock()
		return err
	}
	m.lastPrompt = text
	m.notice = ""
	var forced *proto.AgentKind
	if m.mode != nil {
		k := *m.mode
		forced = &k
	}

	if directKind(forced) {
		m.beginLocked(BusyLoading)
		m.mustTransitionLocked(proto.ContextLoading, "submit")
		m.mu.Unlock()
		return m.runDispatch(ctx, "submit", persistence.OperationDispatch, text, *forced, nil)
	}

	m.transcript = []proto.Message{{Role: proto.RoleUser, Content: text}}
	m.beginLocked(BusyLoading)
	m.mustTransitionLocked(proto.ContextChat, "submit")
	m.mu.Unlock()

	m.runPlan(ctx, persistence.OperationPlan, text, forced, PlanReadyMessage)
	return nil
}

// Revise appends a revision request in CHAT and generates a replacement plan
// from the latest plan's prompt and the revision text. Earlier plan messages
// are left untouched. A planning failure appends an apology.
func (m *Machine) Revise(ctx context.Context, text string) error {
	ctx = context.WithoutCancel(ctx)
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: empty revision", ErrIllegalInput)
	}

	m.mu.Lock()
	if err := m.checkLocked("revise", proto.ContextChat); err != nil {
		m.mu.Unlock()
		return err
	}
	base := m.firstUserPromptLocked()
	if msg := m.latestPlanMessageLocked(); msg != nil && msg.Prompt != "" {
		base = msg.Prompt
	}
	m.transcript = append(m.transcript, proto.Message{Role: proto.RoleUser, Content: text})
	m.lastPrompt = text
	m.notice = ""
	var forced *proto.AgentKind
	if m.mode != nil {
		k := *m.mode
		forced = &k
	}
	m.beginLocked(BusyLoading)
	m.mu.Unlock()

	m.runPlan(ctx, persistence.OperationRevise, planner.RevisionPrompt(base, text), forced, PlanRevisedMessage)
	return nil
}

// Approve executes the most recent plan in CHAT with the primary executor:
// the forced mode, else the first step's agent, else ORCHESTRATOR. Without a
// plan, or with an empty one, it returns ErrInvalidApproval before any call.
// A dispatch failure returns to HUB with a notice and the error.
func (m *Machine) Approve(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	m.mu.Lock()
	if err := m.checkLocked("approve", proto.ContextChat); err != nil {
		m.mu.Unlock()
		return err
	}
	msg := m.latestPlanMessageLocked()
	if msg == nil || len(msg.Plan.Steps) == 0 {
		m.notice = InvalidPlanNotice
		m.metrics.operations.WithLabelValues("approve", "invalid").Inc()
		m.mu.Unlock()
		m.logger.Warn("Approval rejected: no plan with steps")
		return ErrInvalidApproval
	}
	plan := msg.Plan.Clone()
	prompt := msg.Prompt
	if prompt == "" {
		prompt = m.lastPrompt
	}
	executor := dispatch.PrimaryExecutor(m.mode, plan)
	m.notice = ""
	m.beginLocked(BusyExecuting)
	m.mu.Unlock()

	m.logger.Info("Executing approved plan with %s (%d steps)", executor, len(plan.Steps))
	return m.runDispatch(ctx, "approve", persistence.OperationDispatch, prompt, executor, plan)
}

// Edit re-runs the current workspace's agent with text. On success the
// envelope is replaced; on failure it is kept, a notice is set and the error
// is returned. The context does not change either way.
func (m *Machine) Edit(ctx context.Context, text string) error {
	ctx = context.WithoutCancel(ctx)
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: empty edit", ErrIllegalInput)
	}

	m.mu.Lock()
	if err := m.checkLocked("edit", workspaceContexts...); err != nil {
		m.mu.Unlock()
		return err
	}
	if !m.envelopeMatchesLocked() {
		m.fallBackToHubLocked()
		m.mu.Unlock()
		return fmt.Errorf("%w: no result to edit", ErrIllegalInput)
	}
	kind := m.envelope.Type
	m.notice = ""
	m.beginLocked(BusyLoading)
	m.mu.Unlock()

	started := time.Now()
	env, err := m.dispatcher.Dispatch(ctx, text, kind, nil)
	m.record(ctx, persistence.OperationEdit, kind, text, started, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.endLocked()
	if err == nil && env.Type != kind {
		err = fmt.Errorf("edit returned %s content for a %s workspace", env.Type, kind)
	}
	if err != nil {
		m.notice = EditFailedNotice
		m.metrics.operations.WithLabelValues("edit", "error").Inc()
		m.logger.Warn("Edit of %s failed, keeping previous result: %v", kind, err)
		return err
	}
	m.envelope = env
	m.metrics.operations.WithLabelValues("edit", "ok").Inc()
	return nil
}

// Reset returns to HUB and clears the mode, envelope, transcript, last prompt and notice.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy != BusyIdle {
		m.metrics.busyRejections.Inc()
		return ErrBusy
	}
	m.clearLocked()
	if m.state != proto.ContextHub {
		m.mustTransitionLocked(proto.ContextHub, "reset")
	}
	m.metrics.operations.WithLabelValues("reset", "ok").Inc()
	return nil
}

func (m *Machine) clearLocked() {
	m.mode = nil
	m.envelope = nil
	m.transcript = nil
	m.lastPrompt = ""
	m.notice = ""
}

func (m *Machine) runPlan(ctx context.Context, operation, prompt string, forced *proto.AgentKind, successText string) {
	started := time.Now()
	plan, err := m.planner.GeneratePlan(ctx, prompt, forced)
	m.record(ctx, operation, "", prompt, started, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.endLocked()
	if err != nil {
		m.logger.Warn("Planning failed: %v", err)
		m.transcript = append(m.transcript, proto.Message{Role: proto.RoleAssistant, Content: ApologyMessage})
		m.metrics.operations.WithLabelValues(operation, "error").Inc()
		return
	}
	m.transcript = append(m.transcript, proto.Message{
		Role:    proto.RoleAssistant,
		Content: successText,
		Plan:    plan.Clone(),
		Prompt:  prompt,
	})
	m.metrics.operations.WithLabelValues(operation, "ok").Inc()
}

func (m *Machine) runDispatch(ctx context.Context, trigger, operation, prompt string, kind proto.AgentKind, plan *proto.ExecutionPlan) error {
	started := time.Now()
	env, err := m.dispatcher.Dispatch(ctx, prompt, kind, plan)
	m.record(ctx, operation, kind, prompt, started, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.endLocked()

	var workspace proto.AppContext
	if err == nil {
		var ok bool
		workspace, ok = proto.WorkspaceFor(env.Type)
		if !ok {
			err = fmt.Errorf("%s result has no workspace", env.Type)
		} else if !m.table.IsValidTransition(m.state, workspace) {
			err = fmt.Errorf("%w: %s cannot show %s", ErrInvalidTransition, m.state, workspace)
		}
	}
	if err != nil {
		m.notice = failureNotice(err)
		m.envelope = nil
		m.mustTransitionLocked(proto.ContextHub, trigger+" failed")
		m.metrics.operations.WithLabelValues(trigger, "error").Inc()
		return err
	}
	m.envelope = env
	m.mustTransitionLocked(workspace, trigger)
	m.metrics.operations.WithLabelValues(trigger, "ok").Inc()
	return nil
}

func failureNotice(err error) string {
	detail := []rune(err.Error())
	if len(detail) > noticeDetailMaxRune {
		detail = append(detail[:noticeDetailMaxRune], '…')
	}
	return ExecutionNotice + " " + string(detail)
}

// checkLocked rejects the operation when busy or outside the allowed contexts.
func (m *Machine) checkLocked(operation string, allowed ...proto.AppContext) error {
	if m.busy != BusyIdle {
		m.metrics.busyRejections.Inc()
		m.logger.Debug("Rejected %s while %s", operation, m.busy)
		return ErrBusy
	}
	for _, c := range allowed {
		if c == m.state {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s in %s", ErrIllegalInput, operation, m.state)
}

func (m *Machine) beginLocked(b Busy) {
	m.busy = b
	m.metrics.inFlight.Set(1)
}

func (m *Machine) endLocked() {
	m.busy = BusyIdle
	m.metrics.inFlight.Set(0)
}

// mustTransitionLocked applies a table-checked transition. A move missing
// from the table is logged and falls back to HUB, which every context can reach.
func (m *Machine) mustTransitionLocked(to proto.AppContext, trigger string) {
	if err := m.transitionLocked(to, trigger); err != nil {
		m.logger.Error("%v", err)
		if m.state != proto.ContextHub {
			_ = m.transitionLocked(proto.ContextHub, "invalid transition")
		}
	}
}

func (m *Machine) transitionLocked(to proto.AppContext, trigger string) error {
	from := m.state
	if !m.table.IsValidTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s (%s)", ErrInvalidTransition, from, to, trigger)
	}
	m.state = to
	m.history = append(m.history, Transition{From: from, To: to, Trigger: trigger, At: time.Now().UTC()})
	if len(m.history) > m.maxHistory {
		m.history = append([]Transition(nil), m.history[len(m.history)-m.maxHistory:]...)
	}
	m.metrics.transitions.WithLabelValues(string(from), string(to)).Inc()
	m.logger.Info("🔄 Hub transition: %s → %s (%s)", from, to, trigger)
	return nil
}

func (m *Machine) latestPlanMessageLocked() *proto.Message {
	for i := len(m.transcript) - 1; i >= 0; i-- {
		if m.transcript[i].Plan != nil {
			return &m.transcript[i]
		}
	}
	return nil
}

func (m *Machine) firstUserPromptLocked() string {
	for _, msg := range m.transcript {
		if msg.Role == proto.RoleUser {
			return msg.Content
		}
	}
	return m.lastPrompt
}

// envelopeMatchesLocked reports whether the envelope agrees with a workspace state.
func (m *Machine) envelopeMatchesLocked() bool {
	expected, ok := proto.ExpectedKind(m.state)
	if !ok {
		return true
	}
	return m.envelope != nil && m.envelope.Type == expected
}

func (m *Machine) fallBackToHubLocked() {
	m.logger.Error("Context %s has no matching result, returning to %s", m.state, proto.ContextHub)
	m.envelope = nil
	m.notice = EnvelopeLostNotice
	m.mustTransitionLocked(proto.ContextHub, "envelope mismatch")
}

func (m *Machine) record(ctx context.Context, operation string, kind proto.AgentKind, prompt string, started time.Time, callErr error) {
	if m.ledger == nil {
		return
	}
	run := persistence.Run{
		SessionID:   m.sessionID,
		Operation:   operation,
		Agent:       string(kind),
		Outcome:     persistence.OutcomeOK,
		PromptChars: utf8.RuneCountInString(prompt),
		StartedAt:   started,
		Duration:    time.Since(started),
	}
	if callErr != nil {
		run.Outcome = persistence.OutcomeError
		run.ErrorType = ErrorKind(callErr)
		run.Error = callErr.Error()
	}
	if err := m.ledger.Record(ctx, run); err != nil {
		m.logger.Warn("Failed to record %s run: %v", operation, err)
	}
}

// ErrorKind returns a short classification of a planning or dispatch error.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, dispatch.ErrUnsupportedAgent):
		return "unsupported_agent"
	case errors.Is(err, dispatch.ErrImageExtraction):
		return "image_extraction"
	case errors.Is(err, proto.ErrEmptyPlan):
		return "empty_plan"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return llmerrors.ErrorTypeTransport.String()
	default:
		return llmerrors.TypeOf(err).String()
	}
}
