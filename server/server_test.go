package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/digestai/digestai/browser"
	"github.com/digestai/digestai/history"
	"github.com/digestai/digestai/research"
)

type fakeResearch struct {
	threads  map[string]*research.Snapshot
	lastOpts research.StartOptions
	feedback []string
}

func newFakeResearch() *fakeResearch {
	return &fakeResearch{threads: map[string]*research.Snapshot{}}
}

func (f *fakeResearch) Start(_ context.Context, topic string, opts research.StartOptions) (*research.Snapshot, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, research.ErrEmptyTopic
	}
	f.lastOpts = opts
	id := opts.ThreadID
	if id == "" {
		id = "t1"
	}
	if _, ok := f.threads[id]; ok {
		return nil, research.ErrThreadExists
	}
	snap := &research.Snapshot{ThreadID: id, Topic: topic, Stage: research.StageAwaitingTemplateFeedback, Template: "# Outline"}
	f.threads[id] = snap
	return snap, nil
}

func (f *fakeResearch) submit(id, feedback string, want, next research.Stage) (*research.Snapshot, error) {
	snap, ok := f.threads[id]
	if !ok {
		return nil, research.ErrThreadNotFound
	}
	if snap.Stage != want {
		return nil, research.ErrUnexpectedStage
	}
	f.feedback = append(f.feedback, feedback)
	snap.Stage = next
	if next == research.StageComplete {
		snap.Report = "# Report\n\nDone."
	}
	return snap, nil
}

func (f *fakeResearch) SubmitTemplateFeedback(_ context.Context, id, feedback string) (*research.Snapshot, error) {
	return f.submit(id, feedback, research.StageAwaitingTemplateFeedback, research.StageAwaitingAnalystFeedback)
}

func (f *fakeResearch) SubmitAnalystFeedback(_ context.Context, id, feedback string) (*research.Snapshot, error) {
	return f.submit(id, feedback, research.StageAwaitingAnalystFeedback, research.StageComplete)
}

func (f *fakeResearch) State(_ context.Context, id string) (*research.Snapshot, error) {
	snap, ok := f.threads[id]
	if !ok {
		return nil, research.ErrThreadNotFound
	}
	return snap, nil
}

func (f *fakeResearch) Resume(_ context.Context, id string) (*research.Snapshot, error) {
	snap, ok := f.threads[id]
	if !ok {
		return nil, research.ErrThreadNotFound
	}
	if snap.Stage != research.StageInProgress {
		return nil, research.ErrUnexpectedStage
	}
	snap.Stage = research.StageAwaitingAnalystFeedback
	return snap, nil
}

func (f *fakeResearch) Delete(_ context.Context, id string) error {
	delete(f.threads, id)
	return nil
}

type fakeBrowse struct {
	userID string
	task   browser.Task
}

func (f *fakeBrowse) Stream(_ context.Context, userID string, task browser.Task, sink browser.Sink) error {
	f.userID, f.task = userID, task
	_ = sink.Emit(browser.Event{Type: browser.EventStart, Message: "Starting task: " + task.Task})
	ok := true
	return sink.Emit(browser.Event{Type: browser.EventComplete, Message: "done", Success: &ok})
}

func token(t *testing.T, sub string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString([]byte("any"))
	require.NoError(t, err)
	return signed
}

func do(t *testing.T, h http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRootAndHealth(t *testing.T) {
	h := New(Options{}, nil, nil, nil).Handler()

	rec := do(t, h, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Welcome to the Digest AI API"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResearchFlow(t *testing.T) {
	fr := newFakeResearch()
	h := New(Options{}, fr, nil, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/research", `{"topic":"grid storage","max_analysts":3}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var snap research.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "t1", snap.ThreadID)
	assert.Equal(t, research.StageAwaitingTemplateFeedback, snap.Stage)
	assert.Equal(t, 3, fr.lastOpts.MaxAnalysts)

	rec = do(t, h, http.MethodPost, "/api/research", `{"topic":"again"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/research/t1/report.html", "", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/research/t1/report.html?part=template", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1")

	rec = do(t, h, http.MethodPost, "/api/research/t1/analyst-feedback", `{"feedback":"approve"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/research/t1/template-feedback", `{"feedback":"add costs"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/research/t1/analyst-feedback", `{"feedback":""}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"add costs", ""}, fr.feedback)

	rec = do(t, h, http.MethodGet, "/api/research/t1", "", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, research.StageComplete, snap.Stage)

	rec = do(t, h, http.MethodGet, "/api/research/t1/report.html", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `<h1 id="report">Report</h1>`)

	rec = do(t, h, http.MethodDelete, "/api/research/t1", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	rec = do(t, h, http.MethodGet, "/api/research/t1", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResearchResume(t *testing.T) {
	fr := newFakeResearch()
	fr.threads["stalled"] = &research.Snapshot{ThreadID: "stalled", Stage: research.StageInProgress, Next: []string{research.NodeCreateAnalysts}}
	fr.threads["paused"] = &research.Snapshot{ThreadID: "paused", Stage: research.StageAwaitingTemplateFeedback}
	h := New(Options{}, fr, nil, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/research/stalled/resume", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap research.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, research.StageAwaitingAnalystFeedback, snap.Stage)

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/research/paused/resume", "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/research/missing/resume", "", "").Code)
}

func TestResearchBadRequests(t *testing.T) {
	h := New(Options{}, newFakeResearch(), nil, nil).Handler()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/research", `{"topic":" "}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/research", `{`, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/research", `{"topic":"x","max_analysts":-1}`, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/research/missing/template-feedback", `{}`, "").Code)

	unconfigured := New(Options{}, nil, nil, nil).Handler()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, unconfigured, http.MethodPost, "/api/research/t/template-feedback", `{}`, "").Code)
}

func TestBodyLimit(t *testing.T) {
	h := New(Options{MaxBodyBytes: 16}, newFakeResearch(), nil, nil).Handler()
	rec := do(t, h, http.MethodPost, "/api/research", `{"topic":"`+strings.Repeat("x", 64)+`"}`, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestBrowse(t *testing.T) {
	fb := &fakeBrowse{}
	h := New(Options{}, nil, fb, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/browse", `{"task":"find flights"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/browse", `{"task":""}`, token(t, "user-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/browse", `{"task":"find flights"}`, token(t, "user-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Equal(t, "user-1", fb.userID)
	assert.Equal(t, browser.DefaultModel, fb.task.Model)

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"type":"start","message":"Starting task: find flights"}`, lines[0])
	assert.JSONEq(t, `{"type":"complete","message":"done","success":true}`, lines[1])
}

func TestHistoryRoutes(t *testing.T) {
	store := history.NewMemoryStore()
	ctx := context.Background()
	for _, task := range []string{"a", "b", "c"} {
		_, err := store.Save(ctx, &history.Record{UserID: "user-1", Task: task, GIFContent: "gif"})
		require.NoError(t, err)
	}
	id, err := store.Save(ctx, &history.Record{UserID: "user-2", Task: "other"})
	require.NoError(t, err)

	h := New(Options{}, nil, nil, store).Handler()
	tok := token(t, "user-1")

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/history", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/history", "", "not-a-jwt").Code)

	rec := do(t, h, http.MethodGet, "/api/history?limit=2&offset=0", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	var page history.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Data, 2)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/history?limit=x", "", tok).Code)

	first := page.Data[0].ID
	rec = do(t, h, http.MethodGet, "/api/history/"+first, "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail history.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "gif", detail.GIFContent)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/history/"+id, "", tok).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/api/history/"+id, "", tok).Code)

	rec = do(t, h, http.MethodDelete, "/api/history/"+first, "", tok)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/history/"+first, "", tok).Code)
}

func TestCORS(t *testing.T) {
	h := New(Options{AllowedOrigins: []string{"https://ai.digestafrica.com"}}, nil, nil, nil).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/history", nil)
	req.Header.Set("Origin", "https://ai.digestafrica.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://ai.digestafrica.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	open := New(Options{}, nil, nil, nil).Handler()
	rec = do(t, open, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUserIDFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := UserIDFromRequest(req)
	assert.ErrorIs(t, err, ErrMissingToken)

	req.Header.Set("Authorization", "Bearer "+token(t, "abc"))
	id, err := UserIDFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "x"}).SignedString([]byte("k"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+noSub)
	_, err = UserIDFromRequest(req)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestOTelHTTP(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	h := New(Options{TracerProvider: tp}, nil, nil, nil).Handler()
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/health", "", "").Code)
	assert.Len(t, sr.Ended(), 1)
}
