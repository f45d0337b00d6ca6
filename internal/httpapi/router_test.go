package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/agent-platform/internal/agent"
	"github.com/suPer8Hu/agent-platform/internal/ai"
	"github.com/suPer8Hu/agent-platform/internal/chat"
	"github.com/suPer8Hu/agent-platform/internal/config"
	"github.com/suPer8Hu/agent-platform/internal/db"
	"github.com/suPer8Hu/agent-platform/internal/httpapi/handlers"
)

const (
	testKey    = "secret"
	validReply = `{"support_advice":"Your balance is 1123.45","block_card":false,"risk_level":1,"follow_up_actions":[]}`
)

func init() { gin.SetMode(gin.TestMode) }

type fakeProvider struct {
	reply string
	err   error
}

func (p *fakeProvider) Chat(ctx context.Context, messages []ai.Message, opts ...ai.Option) (string, error) {
	return p.reply, p.err
}

// StreamChat replays reply in small pieces.
func (p *fakeProvider) StreamChat(ctx context.Context, messages []ai.Message, opts ...ai.Option) (<-chan string, <-chan error) {
	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		s := p.reply
		for len(s) > 0 {
			n := min(11, len(s))
			select {
			case out <- s[:n]:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
			s = s[n:]
		}
		if p.err != nil {
			errs <- p.err
		}
	}()
	return out, errs
}

var testDBSeq atomic.Int64

func testConfig() config.Config {
	return config.Config{
		APIPrefix:       "/api/v1",
		Version:         "test",
		APIKey:          testKey,
		APIKeyHeader:    "X-API-Key",
		StreamHeartbeat: time.Hour,
	}
}

func newTestRouter(t *testing.T, prov ai.Provider, cfg config.Config) *gin.Engine {
	t.Helper()
	gdb, err := db.Connect("sqlite", fmt.Sprintf("file:httpapi_test_%d?mode=memory&cache=shared", testDBSeq.Add(1)))
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := chat.NewRepo(gdb)
	require.NoError(t, repo.Migrate(context.Background()))
	agents, err := agent.NewRegistry(agent.NewBankSupportAgent(prov, "fake", "test-model", nil))
	require.NoError(t, err)
	svc := chat.NewService(repo, agents, chat.Options{Logger: zerolog.Nop()})

	return NewRouter(cfg, handlers.NewHandler(cfg, svc, zerolog.Nop()), zerolog.Nop())
}

type call struct {
	method string
	path   string
	body   any
	user   string
	header map[string]string
}

func do(t *testing.T, r http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if c.body != nil {
		b, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testKey)
	if c.user != "" {
		req.Header.Set("X-User-ID", c.user)
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type threadJSON struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	AgentType string `json:"agent_type"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Messages  []struct {
		ID      string `json:"id"`
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type errorJSON struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func createThread(t *testing.T, r http.Handler, user string) threadJSON {
	t.Helper()
	w := do(t, r, call{method: http.MethodPost, path: "/api/v1/threads", body: gin.H{"agent_type": "bank_support"}, user: user})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[threadJSON](t, w)
}

func getThread(t *testing.T, r http.Handler, id, user string) threadJSON {
	t.Helper()
	w := do(t, r, call{method: http.MethodGet, path: "/api/v1/threads/" + id, user: user})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[threadJSON](t, w)
}

func TestAPIKey(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{reply: validReply}, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/threads", nil)
	req.Header.Set("X-User-ID", uuid.NewString())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, call{method: http.MethodGet, path: "/api/v1/threads", user: uuid.NewString(), header: map[string]string{"X-API-Key": "wrong"}})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, 40101, decode[errorJSON](t, w).Code)

	// operational endpoints are open
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[map[string]any](t, w)
	require.Equal(t, "healthy", health["status"])
	require.Equal(t, "test", health["version"])
	require.NotEmpty(t, health["hostname"])
	require.NotEmpty(t, health["timestamp"])
}

func TestIdentity(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{reply: validReply}, testConfig())
	u := uuid.NewString()

	w := do(t, r, call{method: http.MethodGet, path: "/api/v1/threads", user: "not-a-uuid"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, call{method: http.MethodGet, path: "/api/v1/threads"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// query fallback works alone, but must agree with the header
	w = do(t, r, call{method: http.MethodGet, path: "/api/v1/threads?user_id=" + u})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, call{method: http.MethodGet, path: "/api/v1/threads?user_id=" + u, user: uuid.NewString()})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, call{method: http.MethodPost, path: "/api/v1/agent/query", body: gin.H{"query": "hi", "user_id": u}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestThreads(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{reply: validReply}, testConfig())
	u1, u2 := uuid.NewString(), uuid.NewString()

	th := createThread(t, r, u1)
	require.Equal(t, u1, th.UserID)
	require.Equal(t, "bank_support", th.AgentType)
	require.NotEmpty(t, th.CreatedAt)

	w := do(t, r, call{method: http.MethodGet, path: "/api/v1/threads?user_id=" + u1})
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]threadJSON](t, w)
	require.Len(t, list, 1)
	require.Equal(t, th.ID, list[0].ID)

	w = do(t, r, call{method: http.MethodGet, path: "/api/v1/threads", user: u2})
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, w.Body.String())

	w = do(t, r, call{method: http.MethodGet, path: "/api/v1/threads/" + th.ID, user: u2})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, call{method: http.MethodGet, path: "/api/v1/threads/" + uuid.NewString(), user: u1})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, call{method: http.MethodPost, path: "/api/v1/threads", body: gin.H{"agent_type": "weather"}, user: u1})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	detail := getThread(t, r, th.ID, u1)
	require.Empty(t, detail.Messages)
	require.NotNil(t, detail.Messages)

	w = do(t, r, call{method: http.MethodDelete, path: "/api/v1/threads/" + th.ID, user: u2})
	require.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, r, call{method: http.MethodDelete, path: "/api/v1/threads/" + th.ID, user: u1})
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, call{method: http.MethodGet, path: "/api/v1/threads/" + th.ID, user: u1})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuery_Scenario(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{reply: validReply}, testConfig())
	u1 := uuid.NewString()
	th := createThread(t, r, u1)

	w := do(t, r, call{method: http.MethodPost, path: "/api/v1/agent/query", body: gin.H{"query": "balance?", "thread_id": th.ID}, user: u1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[map[string]string](t, w)
	require.Equal(t, th.ID, res["thread_id"])
	require.NotEmpty(t, res["message_id"])
	require.JSONEq(t, validReply, res["response"])

	detail := getThread(t, r, th.ID, u1)
	require.Len(t, detail.Messages, 2)
	require.Equal(t, "user", detail.Messages[0].Role)
	require.Equal(t, "balance?", detail.Messages[0].Content)
	require.Equal(t, "assistant", detail.Messages[1].Role)
	require.Equal(t, res["message_id"], detail.Messages[1].ID)

	// repeated reads agree
	again := getThread(t, r, th.ID, u1)
	require.Equal(t, detail.Messages, again.Messages)
}

func TestQuery_Errors(t *testing.T) {
	prov := &fakeProvider{err: errors.New("model offline")}
	r := newTestRouter(t, prov, testConfig())
	u1, u2 := uuid.NewString(), uuid.NewString()
	th := createThread(t, r, u1)

	w := do(t, r, call{method: http.MethodPost, path: "/api/v1/agent/query", body: gin.H{"query": "balance?", "thread_id": th.ID}, user: u1})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "internal error", decode[errorJSON](t, w).Message)
	require.Empty(t, getThread(t, r, th.ID, u1).Messages)

	w = do(t, r, call{method: http.MethodPost, path: "/api/v1/agent/query", body: gin.H{"query": "balance?", "thread_id": th.ID}, user: u2})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, call{method: http.MethodPost, path: "/api/v1/agent/query", body: gin.H{"thread_id": th.ID}, user: u1})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, call{method: http.MethodPost, path: "/api/v1/agent/query", body: gin.H{"query": "hi", "thread_id": "nope"}, user: u1})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, call{method: http.MethodPost, path: "/api/v1/agent/query", body: gin.H{"query": "hi", "thread_id": uuid.NewString()}, user: u1})
	require.Equal(t, http.StatusNotFound, w.Code)
}

type frame struct {
	name string
	data map[string]any
}

func parseSSE(t *testing.T, body string) []frame {
	t.Helper()
	var out []frame
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var f frame
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				f.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f.data))
			}
		}
		if f.name != "" {
			require.Equal(t, f.name, f.data["event"])
			out = append(out, f)
		}
	}
	return out
}

func names(frames []frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.name
	}
	return out
}

func TestStream_SSE(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{reply: validReply}, testConfig())
	u1 := uuid.NewString()

	w := do(t, r, call{method: http.MethodPost, path: "/api/v1/agent/stream", body: gin.H{"query": "balance?"}, user: u1})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	frames := parseSSE(t, w.Body.String())
	n := names(frames)
	require.Equal(t, []string{"thread_created", "message_created", "message_started"}, n[:3])
	require.Equal(t, []string{"message_complete", "done"}, n[len(n)-2:])
	for _, name := range n[3 : len(n)-2] {
		require.Equal(t, "token", name)
	}

	threadID := frames[0].data["thread_id"].(string)
	answerID := frames[2].data["message_id"].(string)
	lastToken := frames[len(frames)-3].data["token"].(string)

	detail := getThread(t, r, threadID, u1)
	require.Len(t, detail.Messages, 2)
	require.Equal(t, answerID, detail.Messages[1].ID)
	require.Equal(t, lastToken, detail.Messages[1].Content)
}

func TestStream_NDJSONAndErrors(t *testing.T) {
	prov := &fakeProvider{reply: validReply[:30], err: errors.New("connection reset")}
	r := newTestRouter(t, prov, testConfig())
	u1 := uuid.NewString()
	th := createThread(t, r, u1)

	w := do(t, r, call{
		method: http.MethodPost, path: "/api/v1/agent/stream",
		body: gin.H{"query": "balance?", "thread_id": th.ID}, user: u1,
		header: map[string]string{"Accept": "application/x-ndjson"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	var events []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(w.Body.String()), "\n") {
		var e map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		events = append(events, e)
	}
	require.Equal(t, "message_created", events[0]["event"])
	require.Equal(t, "message_started", events[1]["event"])
	last := events[len(events)-1]
	require.Equal(t, "error", last["event"])
	require.Equal(t, "AGENT_ERROR", last["error_type"])
	for _, e := range events {
		require.NotEqual(t, "done", e["event"])
	}
	require.Empty(t, getThread(t, r, th.ID, u1).Messages)

	// ownership problems are reported before the stream opens
	w = do(t, r, call{method: http.MethodPost, path: "/api/v1/agent/stream", body: gin.H{"query": "hi", "thread_id": th.ID}, user: uuid.NewString()})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestJobs_DisabledWithoutBroker(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{reply: validReply}, testConfig())
	u := uuid.NewString()

	w := do(t, r, call{method: http.MethodPost, path: "/api/v1/agent/jobs", body: gin.H{"query": "hi"}, user: u})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, r, call{method: http.MethodGet, path: "/api/v1/agent/jobs/01ABC", user: u})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	r := newTestRouter(t, &fakeProvider{reply: validReply}, cfg)
	u := uuid.NewString()

	w := do(t, r, call{method: http.MethodPost, path: "/api/v1/agent/query", body: gin.H{"query": "hi"}, user: u})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, call{method: http.MethodPost, path: "/api/v1/agent/query", body: gin.H{"query": "hi"}, user: u})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// limits are per user, thread routes are not limited
	w = do(t, r, call{method: http.MethodPost, path: "/api/v1/agent/query", body: gin.H{"query": "hi"}, user: uuid.NewString()})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, call{method: http.MethodGet, path: "/api/v1/threads", user: u})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestNoRoute(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{}, testConfig())
	w := do(t, r, call{method: http.MethodGet, path: "/nope"})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, 40400, decode[errorJSON](t, w).Code)
}
