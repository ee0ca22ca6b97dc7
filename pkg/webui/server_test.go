package webui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omniagent/pkg/hub"
	"omniagent/pkg/persistence"
	"omniagent/pkg/proto"
)

type stubPlanner struct {
	plan *proto.ExecutionPlan
	err  error
}

func (p *stubPlanner) GeneratePlan(context.Context, string, *proto.AgentKind) (*proto.ExecutionPlan, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.plan.Clone(), nil
}

type stubDispatcher struct {
	err error
}

func (d *stubDispatcher) Dispatch(_ context.Context, prompt string, kind proto.AgentKind, _ *proto.ExecutionPlan) (*proto.ResponseEnvelope, error) {
	if d.err != nil {
		return nil, d.err
	}
	switch kind {
	case proto.AgentWebArchitect:
		return proto.NewEnvelope(&proto.WebBuild{HTML: "<h1>" + prompt + "</h1><script>alert(1)</script>", CSS: "h1{color:red}"}, "built"), nil
	default:
		return proto.NewEnvelope(&proto.ResearchReport{Content: prompt, Sources: []string{}}, "found"), nil
	}
}

type stubRuns struct {
	runs  []persistence.Run
	limit int
}

func (s *stubRuns) RecentRuns(_ context.Context, limit int) ([]persistence.Run, error) {
	s.limit = limit
	return s.runs, nil
}

func webPlan() *proto.ExecutionPlan {
	return &proto.ExecutionPlan{
		Objective:           "Site",
		TechnicalStack:      []string{},
		EstimatedComplexity: proto.ComplexityLow,
		Steps:               []proto.PlanStep{{ID: "1", Title: "Build", Agent: proto.AgentWebArchitect}},
	}
}

func newTestServer(t *testing.T, p *stubPlanner, d *stubDispatcher) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := hub.New(p, d, hub.WithRegisterer(reg))
	srv := httptest.NewServer(NewServer(m, &stubRuns{}, reg).Router())
	t.Cleanup(srv.Close)
	return srv, reg
}

func post(t *testing.T, srv *httptest.Server, path, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestPlanApproveFlow(t *testing.T) {
	srv, _ := newTestServer(t, &stubPlanner{plan: webPlan()}, &stubDispatcher{})

	resp, body := post(t, srv, "/api/submit", `{"text":"landing page"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var view hub.View
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, proto.ContextChat, view.Context)
	require.Len(t, view.Transcript, 2)
	require.NotNil(t, view.Transcript[1].Plan)

	resp, body = post(t, srv, "/api/approve", `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Equal(t, "WEB", raw["context"])
	envelope, ok := raw["envelope"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "WEB_ARCHITECT", envelope["type"])

	resp, body = get(t, srv, "/api/workspace/preview")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sandbox", resp.Header.Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Contains(t, string(body), "<h1>landing page</h1>")
	assert.True(t, strings.HasPrefix(string(body), "<style>h1{color:red}</style>"))
}

func TestModeAndDirectResearch(t *testing.T) {
	srv, _ := newTestServer(t, &stubPlanner{}, &stubDispatcher{})

	resp, body := post(t, srv, "/api/mode", `{"mode":"researcher"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = post(t, srv, "/api/submit", `{"text":"rust async"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var view hub.View
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, proto.ContextResearch, view.Context)
	assert.Equal(t, "rust async", view.LastPrompt)

	resp, _ = get(t, srv, "/api/workspace/preview")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = post(t, srv, "/api/reset", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, proto.ContextHub, view.Context)
	assert.Nil(t, view.Mode)
}

func TestErrorStatusCodes(t *testing.T) {
	t.Run("illegal input", func(t *testing.T) {
		srv, _ := newTestServer(t, &stubPlanner{}, &stubDispatcher{})
		resp, body := post(t, srv, "/api/approve", `{}`)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		var er errorResponse
		require.NoError(t, json.Unmarshal(body, &er))
		require.NotNil(t, er.State)
		assert.Equal(t, proto.ContextHub, er.State.Context)
	})
	t.Run("invalid approval", func(t *testing.T) {
		srv, _ := newTestServer(t, &stubPlanner{err: errors.New("down")}, &stubDispatcher{})
		post(t, srv, "/api/submit", `{"text":"x"}`)
		resp, body := post(t, srv, "/api/approve", `{}`)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		var er errorResponse
		require.NoError(t, json.Unmarshal(body, &er))
		assert.Equal(t, hub.InvalidPlanNotice, er.State.Notice)
	})
	t.Run("dispatch failure", func(t *testing.T) {
		srv, _ := newTestServer(t, &stubPlanner{plan: webPlan()}, &stubDispatcher{err: errors.New("provider down")})
		post(t, srv, "/api/submit", `{"text":"x"}`)
		resp, body := post(t, srv, "/api/approve", `{}`)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		var er errorResponse
		require.NoError(t, json.Unmarshal(body, &er))
		assert.Contains(t, er.Error, "provider down")
		assert.Equal(t, proto.ContextHub, er.State.Context)
	})
	t.Run("bad body", func(t *testing.T) {
		srv, _ := newTestServer(t, &stubPlanner{}, &stubDispatcher{})
		resp, _ := post(t, srv, "/api/submit", `not json`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
	t.Run("unknown mode", func(t *testing.T) {
		srv, _ := newTestServer(t, &stubPlanner{}, &stubDispatcher{})
		resp, _ := post(t, srv, "/api/mode", `{"mode":"wizard"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, StatusFor(hub.ErrBusy))
	assert.Equal(t, http.StatusConflict, StatusFor(hub.ErrIllegalInput))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(hub.ErrInvalidApproval))
	assert.Equal(t, http.StatusBadGateway, StatusFor(errors.New("anything else")))
}

func TestAgentsAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubPlanner{}, &stubDispatcher{})

	resp, body := get(t, srv, "/api/agents")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var agents []proto.AgentInfo
	require.NoError(t, json.Unmarshal(body, &agents))
	assert.Len(t, agents, len(proto.AllAgentKinds()))

	resp, body = get(t, srv, "/api/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)
}

func TestRunsEndpoint(t *testing.T) {
	runs := &stubRuns{runs: []persistence.Run{{ID: "r1", Operation: persistence.OperationPlan, Outcome: persistence.OutcomeOK}}}
	m := hub.New(&stubPlanner{}, &stubDispatcher{})
	srv := httptest.NewServer(NewServer(m, runs, nil).Router())
	defer srv.Close()

	resp, body := get(t, srv, "/api/runs?limit=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, runs.limit)
	var got []persistence.Run
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)

	resp, _ = get(t, srv, "/api/runs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, srv, "/metrics")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubPlanner{plan: webPlan()}, &stubDispatcher{})
	post(t, srv, "/api/submit", `{"text":"x"}`)

	resp, body := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `omniagent_hub_transitions_total{from="HUB",to="CHAT"} 1`)
}

func TestLogsRejectsBadSince(t *testing.T) {
	srv, _ := newTestServer(t, &stubPlanner{}, &stubDispatcher{})
	resp, _ := get(t, srv, "/api/logs?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, srv, "/api/logs?component=hub")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// slowDispatcher blocks until released and fails with the context error if
// the context it was handed has ended by then.
type slowDispatcher struct {
	started chan struct{}
	release chan struct{}
}

func (d *slowDispatcher) Dispatch(ctx context.Context, prompt string, kind proto.AgentKind, _ *proto.ExecutionPlan) (*proto.ResponseEnvelope, error) {
	close(d.started)
	select {
	case <-d.release:
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return proto.NewEnvelope(&proto.ResearchReport{Content: prompt, Sources: []string{}}, "found"), nil
}

func TestDisconnectedClientStillLandsInWorkspace(t *testing.T) {
	d := &slowDispatcher{started: make(chan struct{}), release: make(chan struct{})}
	m := hub.New(&stubPlanner{}, d, hub.WithRegisterer(prometheus.NewRegistry()))
	srv := httptest.NewServer(NewServer(m, nil, nil).Router())
	t.Cleanup(srv.Close)

	resp, body := post(t, srv, "/api/mode", `{"mode":"RESEARCHER"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/api/submit", strings.NewReader(`{"text":"solar market"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	clientErr := make(chan error, 1)
	go func() {
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
		}
		clientErr <- err
	}()

	<-d.started
	cancel()
	require.ErrorIs(t, <-clientErr, context.Canceled)
	time.Sleep(50 * time.Millisecond)
	close(d.release)

	require.Eventually(t, func() bool { return !m.IsBusy() }, time.Second, 5*time.Millisecond)
	v := m.Snapshot()
	assert.Equal(t, proto.ContextResearch, v.Context)
	assert.Empty(t, v.Notice)
	require.NotNil(t, v.Envelope)
	assert.Equal(t, proto.AgentResearcher, v.Envelope.Type)
}
