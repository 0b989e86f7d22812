package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/continuityd/internal/apikey"
	"github.com/fyrsmithlabs/continuityd/internal/bridge"
	"github.com/fyrsmithlabs/continuityd/internal/quota"
	"github.com/fyrsmithlabs/continuityd/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()

	st, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "continuity.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	keys, err := apikey.NewService(st, zap.NewNop())
	require.NoError(t, err)

	qe, err := quota.NewEnforcer(quota.DefaultConfig(), st, zap.NewNop())
	require.NoError(t, err)

	br, err := bridge.NewService(st, zap.NewNop())
	require.NoError(t, err)

	srv, err := NewServer(st, keys, qe, br, zap.NewNop(), nil)
	require.NoError(t, err)

	return srv, st
}

// newAuthedUser creates a user and issues a credential, returning the raw
// secret for use in Authorization headers.
func newAuthedUser(t *testing.T, srv *Server, st *store.Store, id string) string {
	t.Helper()

	ctx := context.Background()
	_, err := st.CreateUser(ctx, id, store.TierBase)
	require.NoError(t, err)

	raw, _, err := srv.keys.Generate(ctx, id, "test device")
	require.NoError(t, err)
	return raw
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, st := newTestServer(t)

	keys, err := apikey.NewService(st, zap.NewNop())
	require.NoError(t, err)
	qe, err := quota.NewEnforcer(nil, st, zap.NewNop())
	require.NoError(t, err)
	br, err := bridge.NewService(st, zap.NewNop())
	require.NoError(t, err)

	_, err = NewServer(nil, keys, qe, br, zap.NewNop(), nil)
	require.Error(t, err)

	_, err = NewServer(st, nil, qe, br, zap.NewNop(), nil)
	require.Error(t, err)

	_, err = NewServer(st, keys, nil, br, zap.NewNop(), nil)
	require.Error(t, err)

	_, err = NewServer(st, keys, qe, nil, zap.NewNop(), nil)
	require.Error(t, err)

	_, err = NewServer(st, keys, qe, br, nil, nil)
	require.Error(t, err)
}

func TestHealth_NoAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestAuth_MissingHeader(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/memories", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid API key", resp.Error)
}

func TestAuth_IndistinguishableFailures(t *testing.T) {
	srv, st := newTestServer(t)

	raw := newAuthedUser(t, srv, st, "user-auth")

	// Revoke every key the user holds.
	keys, err := srv.keys.List(context.Background(), "user-auth")
	require.NoError(t, err)
	for _, k := range keys {
		require.NoError(t, srv.keys.Revoke(context.Background(), "user-auth", k.ID))
	}

	cases := map[string]string{
		"malformed": "not-a-key",
		"unknown":   "sk_0000000000000000000000000000000000000000",
		"revoked":   raw,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodGet, "/api/memories", token, nil)
			require.Equal(t, http.StatusUnauthorized, rec.Code)

			var resp errorResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, "invalid API key", resp.Error)
		})
	}
}

func TestAuth_ValidKeyPasses(t *testing.T) {
	srv, st := newTestServer(t)
	raw := newAuthedUser(t, srv, st, "user-ok")

	rec := doJSON(t, srv, http.MethodGet, "/api/memories", raw, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer sk_abc", "sk_abc", true},
		{"bearer sk_abc", "sk_abc", true},
		{"Bearer  sk_abc ", "sk_abc", true},
		{"Basic dXNlcg==", "", false},
		{"Bearer", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}

func TestRateLimit_Enforced(t *testing.T) {
	_, st := newTestServer(t)

	keys, err := apikey.NewService(st, zap.NewNop())
	require.NoError(t, err)
	qe, err := quota.NewEnforcer(nil, st, zap.NewNop())
	require.NoError(t, err)
	br, err := bridge.NewService(st, zap.NewNop())
	require.NoError(t, err)

	srv, err := NewServer(st, keys, qe, br, zap.NewNop(), &Config{
		Host:             "localhost",
		Port:             0,
		RateLimitEnabled: true,
		RateLimitRPS:     1,
		RateLimitBurst:   2,
	})
	require.NoError(t, err)

	// Burst of 2 passes, third request inside the same instant is rejected.
	for i := 0; i < 2; i++ {
		rec := doJSON(t, srv, http.MethodGet, "/api/health", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := doJSON(t, srv, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}
