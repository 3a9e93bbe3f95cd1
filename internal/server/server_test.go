package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborbank/teller/internal/audit"
	"github.com/harborbank/teller/internal/auth"
	"github.com/harborbank/teller/internal/fraud"
	"github.com/harborbank/teller/internal/intent"
	"github.com/harborbank/teller/internal/ledger"
	"github.com/harborbank/teller/internal/model"
	"github.com/harborbank/teller/internal/orchestrator"
	"github.com/harborbank/teller/internal/session"
	"github.com/harborbank/teller/internal/workflow"
)

func newTestServer(t *testing.T) (*Server, *auth.Service) {
	t.Helper()

	gateway := ledger.NewMockGateway(nil)
	gateway.SetLatency(0)

	engine := workflow.NewEngine(
		workflow.NewValidator(decimal.Zero, decimal.Zero),
		fraud.NewScorer(fraud.DefaultConfig(), nil),
		gateway, audit.NopSink{}, time.Second, nil)

	orch := orchestrator.New(orchestrator.Config{
		Sessions:   session.NewStore(),
		Classifier: intent.NewChain(nil, intent.NewKeywordClassifier(), nil),
		Workflow:   engine,
		Gateway:    gateway,
	})

	authSvc := auth.NewService("test-secret", 30*time.Minute, nil)
	return New(orch, authSvc, 100, nil), authSvc
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_ChatAnonymous(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/chat", "",
		map[string]string{"message": "what's my balance?"})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.Response
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.SessionID)
	assert.True(t, resp.RequiresAuth)
}

func TestServer_ChatRejectsEmptyMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/chat", "",
		map[string]string{"message": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewBufferString("not json"))
	rec2 := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestServer_ChatInvalidTokenDegradesToAnonymous(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/chat", "garbage-token",
		map[string]string{"message": "what's my balance?"})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.Response
	decode(t, rec, &resp)
	assert.True(t, resp.RequiresAuth)
}

func TestServer_LoginFlow(t *testing.T) {
	srv, authSvc := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/request-otp", "",
		map[string]string{"user_id": "user_001"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Wrong code first.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"user_id": "user_001", "otp": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The OTP store was consumed by nothing; regenerate and log in.
	otp := authSvc.GenerateOTP("user_001")
	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"user_id": "user_001", "otp": otp})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	require.NotEmpty(t, body["token"])

	// The token authenticates a chat turn.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/chat", body["token"],
		map[string]string{"message": "what's my balance?"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.Response
	decode(t, rec, &resp)
	assert.False(t, resp.RequiresAuth)
	assert.Contains(t, resp.Message, "balances")
}

func login(t *testing.T, router http.Handler, authSvc *auth.Service, userID string) string {
	t.Helper()
	otp := authSvc.GenerateOTP(userID)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"user_id": userID, "otp": otp})
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	return body["token"]
}

func TestServer_TransactionExecuteFlow(t *testing.T) {
	srv, authSvc := newTestServer(t)
	router := srv.Router()
	token := login(t, router, authSvc, "user_001")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/chat", token,
		map[string]string{"message": "transfer $500.00 from my savings to my checking"})
	require.Equal(t, http.StatusOK, rec.Code)

	var chat model.Response
	decode(t, rec, &chat)
	require.True(t, chat.RequiresConfirmation)
	txID := chat.Metadata["transaction_id"]
	require.NotEmpty(t, txID)

	// Unauthenticated execute is refused.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+txID+"/execute", "",
		map[string]string{"session_id": chat.SessionID})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+txID+"/execute", token,
		map[string]string{"session_id": chat.SessionID})
	require.Equal(t, http.StatusOK, rec.Code)

	var exec workflow.ExecutionResult
	decode(t, rec, &exec)
	assert.True(t, exec.Success)
	assert.NotEmpty(t, exec.Reference)

	// Replay is a conflict.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+txID+"/execute", token,
		map[string]string{"session_id": chat.SessionID})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_TransactionCancel(t *testing.T) {
	srv, authSvc := newTestServer(t)
	router := srv.Router()
	token := login(t, router, authSvc, "user_001")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/chat", token,
		map[string]string{"message": "transfer $500.00 from my savings to my checking"})
	var chat model.Response
	decode(t, rec, &chat)
	txID := chat.Metadata["transaction_id"]
	require.NotEmpty(t, txID)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+txID+"/cancel", token,
		map[string]string{"session_id": chat.SessionID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+txID+"/execute", token,
		map[string]string{"session_id": chat.SessionID})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_TransactionNotFound(t *testing.T) {
	srv, authSvc := newTestServer(t)
	router := srv.Router()
	token := login(t, router, authSvc, "user_001")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/transactions/no-such-id/execute", token,
		map[string]string{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ClarifyFlow(t *testing.T) {
	srv, authSvc := newTestServer(t)
	router := srv.Router()
	token := login(t, router, authSvc, "user_001")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/chat", token,
		map[string]string{"message": "lock my card"})
	var chat model.Response
	decode(t, rec, &chat)
	require.Equal(t, "card", chat.Metadata["clarification"])
	txID := chat.Metadata["transaction_id"]
	require.NotEmpty(t, txID)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+txID+"/clarify", token,
		map[string]string{"session_id": chat.SessionID, "choice": "5678"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result workflow.Result
	decode(t, rec, &result)
	assert.True(t, result.RequiresConfirmation)
	assert.NotEqual(t, txID, result.TransactionID)
}

func TestServer_SessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/chat", "",
		map[string]string{"message": "hello"})
	var chat model.Response
	decode(t, rec, &chat)
	require.NotEmpty(t, chat.SessionID)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+chat.SessionID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info map[string]any
	decode(t, rec, &info)
	assert.Equal(t, chat.SessionID, info["session_id"])
	assert.Equal(t, float64(2), info["message_count"])

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/sessions/"+chat.SessionID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+chat.SessionID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_SessionNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodGet, "/api/v1/sessions/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/sessions/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.2.3.4"), "request %d", i)
	}
	assert.False(t, rl.Allow("1.2.3.4"))

	// Other clients are unaffected.
	assert.True(t, rl.Allow("5.6.7.8"))

	// The window slides.
	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("1.2.3.4"))
}

func TestRateLimiter_Middleware(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.limiter = NewRateLimiter(2, time.Minute, nil)
	router := srv.Router()

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewBufferString(`{"message":"hi"}`))
		req.RemoteAddr = "9.9.9.9:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)

	// Health stays outside the limited group.
	rec := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
