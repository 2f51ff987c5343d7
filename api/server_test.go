package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aidin1998/codemeet/api"
	"github.com/Aidin1998/codemeet/internal/matching"
	"github.com/Aidin1998/codemeet/internal/opportunity"
	"github.com/Aidin1998/codemeet/internal/persistence"
)

type testEnv struct {
	router  *gin.Engine
	store   *matching.QueueStore
	ledger  *opportunity.MemoryLedger
	history *persistence.MemoryStore
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := matching.NewQueueStore(nil)
	ledger := opportunity.NewMemoryLedger(1)
	history := persistence.NewMemoryStore()
	srv := api.NewServer(api.Options{
		Queue:         matching.NewQueueService(store, ledger, zap.NewNop()),
		History:       history,
		Opportunities: ledger,
		Logger:        zap.NewNop(),
	})
	return &testEnv{router: srv.Router(), store: store, ledger: ledger, history: history}
}

func (e *testEnv) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(api.UserIDHeader, userID)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	env := setupRouter(t)
	w := env.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupRouter(t)
	w := env.do(http.MethodGet, "/metrics", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "codemeet_")
}

func TestJoinQueue_MissingUserHeader(t *testing.T) {
	env := setupRouter(t)
	w := env.do(http.MethodPost, "/api/v1/match/queue", "", map[string]any{"role": "both", "difficulty": "easy"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestJoinQueue_Created(t *testing.T) {
	env := setupRouter(t)

	w := env.do(http.MethodPost, "/api/v1/match/queue", "alice",
		map[string]any{"role": "interviewer", "difficulty": "medium", "enableVideo": true})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "waiting", resp["status"])
	assert.EqualValues(t, 0, resp["aheadCount"])
	assert.NotEmpty(t, resp["queueId"])

	w = env.do(http.MethodPost, "/api/v1/match/queue", "bob",
		map[string]any{"role": "both", "difficulty": "both"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["aheadCount"])

	entry, ok := env.store.GetEntry("alice")
	require.True(t, ok)
	assert.Equal(t, matching.RoleInterviewer, entry.Role)
	assert.Equal(t, matching.DifficultyMedium, entry.Difficulty)
	assert.True(t, entry.EnableVideo)
}

func TestJoinQueue_DifficultyCombination(t *testing.T) {
	env := setupRouter(t)

	w := env.do(http.MethodPost, "/api/v1/match/queue", "alice",
		map[string]any{"role": "both", "difficulty": "easy|hard"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	entry, ok := env.store.GetEntry("alice")
	require.True(t, ok)
	assert.Equal(t, matching.DifficultyEasy|matching.DifficultyHard, entry.Difficulty)

	w = env.do(http.MethodPost, "/api/v1/match/queue", "bob",
		map[string]any{"role": "both", "difficulty": "easy|extreme"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "difficulty")
}

func TestJoinQueue_Conflict(t *testing.T) {
	env := setupRouter(t)
	body := map[string]any{"role": "both", "difficulty": "easy"}

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/match/queue", "alice", body).Code)
	w := env.do(http.MethodPost, "/api/v1/match/queue", "alice", body)

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decode(t, w)
	assert.EqualValues(t, http.StatusConflict, resp["status"])
	assert.Equal(t, "/api/v1/match/queue", resp["instance"])

	entry, ok := env.store.GetEntry("alice")
	require.True(t, ok)
	assert.Equal(t, entry.QueueID.String(), resp["queueId"])
	assert.EqualValues(t, 0, resp["aheadCount"])
}

func TestJoinQueue_InsufficientOpportunities(t *testing.T) {
	env := setupRouter(t)
	ok, err := env.ledger.TryConsume(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, ok)

	w := env.do(http.MethodPost, "/api/v1/match/queue", "alice", map[string]any{"role": "interviewee", "difficulty": "hard"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, env.store.IsQueued("alice"))

	// Interviewers are not gated.
	w = env.do(http.MethodPost, "/api/v1/match/queue", "alice", map[string]any{"role": "interviewer", "difficulty": "hard"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestJoinQueue_ValidationErrors(t *testing.T) {
	env := setupRouter(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing role", map[string]any{"difficulty": "easy"}},
		{"unknown role", map[string]any{"role": "observer", "difficulty": "easy"}},
		{"unknown difficulty", map[string]any{"role": "both", "difficulty": "extreme"}},
		{"not json", "role=both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/v1/match/queue", "alice", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
		})
	}
	assert.Equal(t, 0, env.store.Count())
}

func TestLeaveQueue(t *testing.T) {
	env := setupRouter(t)
	require.Equal(t, http.StatusCreated,
		env.do(http.MethodPost, "/api/v1/match/queue", "alice", map[string]any{"role": "both", "difficulty": "easy"}).Code)

	w := env.do(http.MethodDelete, "/api/v1/match/queue", "alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, env.store.IsQueued("alice"))

	w = env.do(http.MethodDelete, "/api/v1/match/queue", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueueStatus(t *testing.T) {
	env := setupRouter(t)

	w := env.do(http.MethodGet, "/api/v1/match/queue/status", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, false, resp["isQueued"])
	assert.Nil(t, resp["queueId"])

	require.Equal(t, http.StatusCreated,
		env.do(http.MethodPost, "/api/v1/match/queue", "alice", map[string]any{"role": "both", "difficulty": "easy"}).Code)
	w = env.do(http.MethodGet, "/api/v1/match/queue/status", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode(t, w)
	assert.Equal(t, true, resp["isQueued"])
	assert.Equal(t, "waiting", resp["status"])
	assert.NotNil(t, resp["enteredAt"])
}

func TestMatchHistory(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	factory := matching.NewMatchFactory("https://docs.test/%s", "https://video.test/%s")
	m, err := matching.NewMatch("alice", "bob", matching.DifficultyEasy, true, nil)
	require.NoError(t, err)
	require.NoError(t, factory.AssignResources(m))

	scope, err := env.history.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, scope.Matches().Insert(ctx, m))
	require.NoError(t, scope.Commit(ctx))

	w := env.do(http.MethodGet, "/api/v1/match/history", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Matches []struct {
			ID           string  `json:"id"`
			Role         string  `json:"role"`
			Status       string  `json:"status"`
			Difficulty   string  `json:"difficulty"`
			VideoRoomURL *string `json:"videoRoomUrl"`
		} `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, m.ID.String(), resp.Matches[0].ID)
	assert.Equal(t, "interviewer", resp.Matches[0].Role)
	assert.Equal(t, "ready", resp.Matches[0].Status)
	assert.Equal(t, "easy", resp.Matches[0].Difficulty)
	require.NotNil(t, resp.Matches[0].VideoRoomURL)

	w = env.do(http.MethodGet, "/api/v1/match/history", "carol", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"matches":[]}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/v1/match/history?limit=500", "bob", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebSocketUnavailable(t *testing.T) {
	env := setupRouter(t)
	w := env.do(http.MethodGet, "/api/v1/match/ws", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOpportunities_BalanceAndDailyClaim(t *testing.T) {
	env := setupRouter(t)

	w := env.do(http.MethodGet, "/api/v1/match/opportunities", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"balance":1}`, w.Body.String())

	// Account creation counts as today's award.
	w = env.do(http.MethodPost, "/api/v1/match/opportunities/daily", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"awarded":false,"balance":1}`, w.Body.String())
}
