package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)

	token, err := issuer.Issue(Session{UserID: "demo-pro-1", Email: "pro1@demo.com", UserType: "professional"})
	require.NoError(t, err)

	session, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, Session{UserID: "demo-pro-1", Email: "pro1@demo.com", UserType: "professional"}, session)

	_, err = NewIssuer("other-secret", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredAndForeignAlgorithms(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Minute)
	token, err := issuer.Issue(Session{UserID: "u1", UserType: "client"})
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewIssuer("test-secret", time.Minute).Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func newRouter(opts MiddlewareOptions) *gin.Engine {
	r := gin.New()
	handler := NewHandler(opts.Issuer, zap.NewNop())
	protected := r.Group("/api/v1", Middleware(opts))
	RegisterRoutes(r.Group("/api/v1"), protected, handler, true)
	return r
}

func TestMiddleware(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	token, err := issuer.Issue(Session{UserID: "demo-client-1", UserType: "client"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		opts       MiddlewareOptions
		header     map[string]string
		wantStatus int
		wantUser   string
	}{
		{"bearer token", MiddlewareOptions{Issuer: issuer}, map[string]string{"Authorization": "Bearer " + token}, http.StatusOK, "demo-client-1"},
		{"bad token", MiddlewareOptions{Issuer: issuer, AllowHeaders: true}, map[string]string{"Authorization": "Bearer nope", "X-User-ID": "x"}, http.StatusUnauthorized, ""},
		{"headers in fixture mode", MiddlewareOptions{AllowHeaders: true}, map[string]string{"X-User-ID": "demo-pro-1", "X-User-Type": "professional"}, http.StatusOK, "demo-pro-1"},
		{"headers refused", MiddlewareOptions{Issuer: issuer}, map[string]string{"X-User-ID": "demo-pro-1"}, http.StatusUnauthorized, ""},
		{"nothing", MiddlewareOptions{AllowHeaders: true}, nil, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			newRouter(tt.opts).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantUser != "" {
				var s Session
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
				assert.Equal(t, tt.wantUser, s.UserID)
			}
		})
	}
}

func TestIssueTokenEndpoint(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	r := newRouter(MiddlewareOptions{Issuer: issuer})

	w := httptest.NewRecorder()
	body := `{"user_id":"demo-pro-1","user_type":"professional"}`
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	session, err := issuer.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "professional", session.UserType)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(`{"user_id":"x","user_type":"admin"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
