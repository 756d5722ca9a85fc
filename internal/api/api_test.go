// ABOUTME: Tests for the REST surface: token lifecycle and AI query routing
// ABOUTME: Uses a real SQLite store and a stubbed provider endpoint

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxmill/feedgate/internal/auth"
	"github.com/fluxmill/feedgate/internal/clip"
	"github.com/fluxmill/feedgate/internal/llm"
	"github.com/fluxmill/feedgate/internal/store"
)

const testUser = "user-1"

type testEnv struct {
	mux      *http.ServeMux
	store    *store.SQLiteStore
	sessions *auth.JWTSessionVerifier
	issuer   *auth.TokenIssuer
	session  string
}

func newTestEnv(t *testing.T, openrouterURL string) *testEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	sessions := auth.NewJWTSessionVerifier([]byte("api-test-secret"), []string{"feedgate"})
	resolver := auth.NewResolver(s, sessions, nil)
	issuer := auth.NewTokenIssuer(s)

	clipper := clip.New(clip.Limits{}, nil)
	client := llm.NewClient(openrouterURL, llm.StaticKey("sk-test"), "openrouter/auto", clipper, nil)
	t.Cleanup(client.Close)

	handler := NewHandler(Config{Store: s, Issuer: issuer, Resolver: resolver, LLM: client})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	session, err := sessions.Generate(testUser, time.Hour)
	require.NoError(t, err)

	return &testEnv{mux: mux, store: s, sessions: sessions, issuer: issuer, session: session}
}

func (env *testEnv) do(t *testing.T, method, path, body, authToken string) *httptest.ResponseRecorder {
	t.Helper()

	var reader = strings.NewReader(body)
	req := httptest.NewRequest(method, path, reader)
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %s", rec.Body.String())
	code, _ := envelope["code"].(string)
	return code
}

func TestRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")

	rec := env.do(t, http.MethodGet, "/api/mcp/tokens", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "auth.unauthorized", errorCode(t, rec))
}

func TestRoutesRejectAccessTokens(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")

	secret, record, err := env.issuer.Issue(context.Background(), testUser, "cli", nil, nil)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/mcp/tokens", "", secret)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "auth.session_required", errorCode(t, rec))

	// The rejection happens before verification, so the token record is not
	// marked as used.
	stored, err := env.store.GetAccessToken(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastUsedAt)
}

func TestCreateTokenDefaults(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")

	rec := env.do(t, http.MethodPost, "/api/mcp/tokens", "{}", env.session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	token, _ := body["token"].(string)
	assert.True(t, strings.HasPrefix(token, auth.TokenPrefix))
	assert.NotEmpty(t, body["id"])
	assert.Nil(t, body["expiresAt"])

	record, err := env.store.GetAccessToken(context.Background(), body["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, testUser, record.Owner)
	assert.Equal(t, []string{store.DefaultTokenScope}, record.Scopes)
}

func TestCreateTokenWithNameScopesAndExpiry(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")

	expiresAt := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	reqBody := fmt.Sprintf(`{"name":"ci bot","scopes":["tools.call","tools.list"],"expiresAt":%q}`, expiresAt)

	rec := env.do(t, http.MethodPost, "/api/mcp/tokens", reqBody, env.session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, expiresAt, body["expiresAt"])

	record, err := env.store.GetAccessToken(context.Background(), body["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "ci bot", record.Name)
	assert.Equal(t, []string{"tools.call", "tools.list"}, record.Scopes)
}

func TestCreateTokenRejectsBadExpiry(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")

	rec := env.do(t, http.MethodPost, "/api/mcp/tokens", `{"expiresAt":"tomorrow"}`, env.session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "mcp_tokens.create_failed", errorCode(t, rec))
}

func TestCreateTokenAcceptsEmptyBody(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")

	rec := env.do(t, http.MethodPost, "/api/mcp/tokens", "", env.session)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestListTokensNewestFirstWithoutSecrets(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")

	ctx := context.Background()
	_, first, err := env.issuer.Issue(ctx, testUser, "first", nil, nil)
	require.NoError(t, err)
	// Nudge created_at so ordering is deterministic.
	second := &store.AccessToken{
		Owner:     testUser,
		KeyPrefix: "MCP-second00",
		TokenHash: auth.HashSecret("MCP-second-secret"),
		Name:      "second",
		CreatedAt: first.CreatedAt.Add(time.Second),
		UpdatedAt: first.CreatedAt.Add(time.Second),
	}
	require.NoError(t, env.store.CreateAccessToken(ctx, second))

	// A token owned by someone else must not leak into the listing.
	_, _, err = env.issuer.Issue(ctx, "user-2", "other", nil, nil)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/mcp/tokens", "", env.session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 2)
	assert.Equal(t, "second", body.Items[0]["name"])
	assert.Equal(t, "first", body.Items[1]["name"])

	for _, item := range body.Items {
		assert.NotContains(t, item, "token")
		assert.NotContains(t, item, "tokenHash")
		assert.NotContains(t, item, "keyPrefix")
	}
}

func TestRevokeToken(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")

	_, record, err := env.issuer.Issue(context.Background(), testUser, "doomed", nil, nil)
	require.NoError(t, err)

	rec := env.do(t, http.MethodDelete, "/api/mcp/tokens/"+record.ID, "", env.session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, record.ID, body["id"])

	_, err = env.store.GetAccessToken(context.Background(), record.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRevokeTokenNotFound(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")

	rec := env.do(t, http.MethodDelete, "/api/mcp/tokens/no-such-id", "", env.session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "mcp_tokens.revoke_failed", errorCode(t, rec))
}

func TestRevokeTokenOwnedByAnotherUser(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")

	_, record, err := env.issuer.Issue(context.Background(), "user-2", "theirs", nil, nil)
	require.NoError(t, err)

	rec := env.do(t, http.MethodDelete, "/api/mcp/tokens/"+record.ID, "", env.session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The other user's token survives.
	_, err = env.store.GetAccessToken(context.Background(), record.ID)
	assert.NoError(t, err)
}

func TestLLMQuery(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"model": "openrouter/auto",
			"choices": [{"message": {"content": "Short summary."}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`)
	}))
	defer upstream.Close()

	env := newTestEnv(t, upstream.URL)

	rec := env.do(t, http.MethodPost, "/api/llm/query",
		`{"type":"summarize","payload":{"text":"A long article body."}}`, env.session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "Short summary.", body["result"])
	assert.Equal(t, "openrouter/auto", body["model"])
	usage, ok := body["usage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(16), usage["totalTokens"])
}

func TestLLMQueryPayloadError(t *testing.T) {
	env := newTestEnv(t, "http://unused.invalid")

	rec := env.do(t, http.MethodPost, "/api/llm/query",
		`{"type":"summarize","payload":{}}`, env.session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "llm.query_failed", errorCode(t, rec))
}

func TestLLMQueryUpstreamStatusPassesThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer upstream.Close()

	env := newTestEnv(t, upstream.URL)

	rec := env.do(t, http.MethodPost, "/api/llm/query",
		`{"type":"summarize","payload":{"text":"body"}}`, env.session)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "llm.query_failed", errorCode(t, rec))
}

func TestLLMModels(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": [{"id": "openrouter/auto", "name": "Auto"}]}`)
	}))
	defer upstream.Close()

	env := newTestEnv(t, upstream.URL)

	rec := env.do(t, http.MethodGet, "/api/llm/models", "", env.session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Models []llm.Model `json:"models"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Models, 1)
	assert.Equal(t, "openrouter/auto", body.Models[0].ID)
	assert.Equal(t, "Auto", body.Models[0].Name)
}
