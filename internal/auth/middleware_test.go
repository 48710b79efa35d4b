package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupitervolta/ds1054z/internal/logger"
)

func newTestMiddleware(t *testing.T) *Middleware {
	t.Helper()
	v, err := NewVerifier(VerifierConfig{Algorithm: AlgHS256, SecretKey: testSecret})
	require.NoError(t, err)
	return NewMiddleware(v, logger.NewTestLogger())
}

func echoSubject(w http.ResponseWriter, r *http.Request) {
	claims, ok := GetClaimsFromRequest(r)
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	_, _ = w.Write([]byte(claims.Subject))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequireAuth(t *testing.T) {
	m := newTestMiddleware(t)
	handler := m.RequireAuth(echoSubject)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "/api/v1/command", "Bearer " + signHS256(t, viewerClaims(), testSecret), http.StatusOK, "user-123"},
		{"missing header", "/api/v1/command", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "/api/v1/command", "Basic abc", http.StatusUnauthorized, ""},
		{"empty bearer", "/api/v1/command", "Bearer ", http.StatusUnauthorized, ""},
		{"bad token", "/api/v1/command", "Bearer garbage", http.StatusUnauthorized, ""},
		{"health skips auth", HealthPath, "", http.StatusTeapot, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				body := decodeError(t, rec)
				assert.Equal(t, "error", body["result"])
				assert.Equal(t, "UNAUTHORIZED", body["code"])
				assert.NotEmpty(t, body["correlationId"])
			}
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRequireAuthDisabled(t *testing.T) {
	m := NewMiddleware(nil, logger.NewTestLogger())
	assert.False(t, m.Enabled())

	rec := httptest.NewRecorder()
	m.RequireAuth(echoSubject)(rec, httptest.NewRequest(http.MethodPost, "/api/v1/command", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, AnonymousSubject, rec.Body.String())
}

func TestRequireScope(t *testing.T) {
	m := newTestMiddleware(t)
	handler := m.RequireAuth(m.RequireScope(ScopeControl)(echoSubject))

	viewer := httptest.NewRequest(http.MethodGet, "/api/v1/command", nil)
	viewer.Header.Set("Authorization", "Bearer "+signHS256(t, viewerClaims(), testSecret))
	rec := httptest.NewRecorder()
	handler(rec, viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, rec)["code"])

	controller := httptest.NewRequest(http.MethodGet, "/api/v1/command", nil)
	controller.Header.Set("Authorization", "Bearer "+signHS256(t, controllerClaims(), testSecret))
	rec = httptest.NewRecorder()
	handler(rec, controller)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-456", rec.Body.String())
}

func TestRequireScopeWithoutClaims(t *testing.T) {
	m := newTestMiddleware(t)
	rec := httptest.NewRecorder()
	m.RequireScope(ScopeRead)(echoSubject)(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCanRun(t *testing.T) {
	viewer := &Claims{Subject: "v", Roles: []string{RoleViewer}, Scopes: []string{ScopeRead, ScopeTelemetry}}
	controller := &Claims{Subject: "c", Roles: []string{RoleController}, Scopes: []string{ScopeRead, ScopeControl}}
	noScopes := &Claims{Subject: "n", Roles: []string{RoleController}}

	assert.True(t, viewer.CanRun(true))
	assert.False(t, viewer.CanRun(false))
	assert.True(t, controller.CanRun(true))
	assert.True(t, controller.CanRun(false))
	assert.False(t, noScopes.CanRun(true))
	assert.False(t, noScopes.CanRun(false))

	var missing *Claims
	assert.False(t, missing.CanRun(true))
	assert.True(t, Anonymous().CanRun(false))
}
