package middleware

import (
	"booklending/utils"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("secret")

func echoUser(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, email, err := GetUserFromContext(r)
		require.NoError(t, err)
		assert.Equal(t, uint(42), userID)
		w.Write([]byte(email))
	})
}

func TestAuthMiddleware(t *testing.T) {
	handler := AuthMiddleware(testKey)(echoUser(t))

	token, err := NewToken(testKey, 42, "reader@example.com", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "reader@example.com", rr.Body.String())

	expired, err := NewToken(testKey, 42, "reader@example.com", -time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "x@example.com"}).SignedString(testKey)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+noUser)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetUserFromContextMissing(t *testing.T) {
	_, _, err := GetUserFromContext(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Error(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), 7))
	userID, email, err := GetUserFromContext(req)
	require.NoError(t, err)
	assert.Equal(t, uint(7), userID)
	assert.Empty(t, email)
}

func TestLoggingMiddlewareRecordsFailures(t *testing.T) {
	metrics := utils.NewMetrics()
	handler := LoggingMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	snapshot := metrics.GetMetricsSnapshot()
	assert.Equal(t, int64(1), snapshot["total_requests"])
	assert.Equal(t, int64(1), snapshot["failed_requests"])
}

func TestGinRateLimitAndRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Recovery(), RateLimit(utils.NewRateLimiter(1, time.Minute)))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}
