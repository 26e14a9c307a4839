package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harentsoaR/dentaheal-api/internal/models"
	"github.com/harentsoaR/dentaheal-api/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(tokens *utils.TokenManager) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery(zap.NewNop()))
	r.GET("/me", AuthMiddleware(tokens), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": UserID(c), "role": UserRole(c)})
	})
	r.GET("/doctor", AuthMiddleware(tokens), RequireRole(models.RoleDoctor), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
	return r
}

func doRequest(r http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	tokens := utils.NewTokenManager("secret", time.Hour)
	token, _, err := tokens.Generate("abc", "patient")
	require.NoError(t, err)

	w := doRequest(newTestRouter(tokens), "/me", "Bearer "+token)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "abc", body["id"])
	assert.Equal(t, "patient", body["role"])
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestAuthMiddlewareRejects(t *testing.T) {
	tokens := utils.NewTokenManager("secret", time.Hour)
	other := utils.NewTokenManager("other", time.Hour)
	foreign, _, err := other.Generate("abc", "patient")
	require.NoError(t, err)
	expired, _, err := tokens.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }).Generate("abc", "patient")
	require.NoError(t, err)

	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"empty bearer":   "Bearer ",
		"malformed":      "Bearer not.a.jwt",
		"wrong key":      "Bearer " + foreign,
		"expired":        "Bearer " + expired,
	}
	r := newTestRouter(tokens)
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			w := doRequest(r, "/me", header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "UNAUTHORIZED", decode(t, w)["code"])
		})
	}
}

func TestRequireRole(t *testing.T) {
	tokens := utils.NewTokenManager("secret", time.Hour)
	r := newTestRouter(tokens)

	patient, _, err := tokens.Generate("p1", "patient")
	require.NoError(t, err)
	w := doRequest(r, "/doctor", "Bearer "+patient)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, w)["code"])

	doctor, _, err := tokens.Generate("d1", "doctor")
	require.NoError(t, err)
	w = doRequest(r, "/doctor", "Bearer "+doctor)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRecoveryReturnsInternalError(t *testing.T) {
	w := doRequest(newTestRouter(utils.NewTokenManager("secret", time.Hour)), "/panic", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.Equal(t, "Server error", body["error"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	r := newTestRouter(utils.NewTokenManager("secret", time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}
