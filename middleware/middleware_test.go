package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rescuelink/models"
	"rescuelink/repositories"
	"rescuelink/services"
	"rescuelink/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, userID int, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"role":  role,
		"email": "user@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func guardedRouter(metrics *Metrics) *gin.Engine {
	sessions := services.NewSessionService(repositories.NewMemoryTokenRepository(), utils.NewTokenDecoder(testSecret), "/login", "https://landing.example/")
	router := gin.New()
	responder := router.Group("/responder")
	responder.Use(NewPortalGuard(sessions, metrics).Require(models.RoleResponder))
	responder.GET("/missions", func(c *gin.Context) {
		session, ok := GetSession(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"userId": c.GetString("userID"),
			"role":   session.Role(),
			"token":  GetToken(c) != "",
		})
	})
	return router
}

func TestPortalGuard(t *testing.T) {
	metrics := NewMetrics()
	router := guardedRouter(metrics)

	t.Run("missing token redirects to login", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/responder/missions", nil))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		assert.Empty(t, w.Header().Values("Set-Cookie"))
	})

	t.Run("undecodable cookie is cleared", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/responder/missions", nil)
		req.AddCookie(&http.Cookie{Name: models.AccessTokenKey, Value: "not-a-jwt"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		cookies := strings.Join(w.Header().Values("Set-Cookie"), "\n")
		assert.Contains(t, cookies, models.AccessTokenKey+"=;")
		assert.Contains(t, cookies, "Max-Age=0")
	})

	t.Run("other role goes to landing page", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/responder/missions", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, 3, "CITIZEN"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://landing.example/", w.Header().Get("Location"))
		assert.Empty(t, w.Header().Values("Set-Cookie"))
	})

	t.Run("matching role is admitted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/responder/missions", nil)
		req.AddCookie(&http.Cookie{Name: models.AccessTokenKey, Value: signToken(t, 7, "responder")})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "7", body["userId"])
		assert.Equal(t, "RESPONDER", body["role"])
		assert.Equal(t, true, body["token"])
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.guardDecisions.WithLabelValues("RESPONDER", "redirect_login")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.guardDecisions.WithLabelValues("RESPONDER", "redirect_landing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.guardDecisions.WithLabelValues("RESPONDER", "allow")))
}

func TestRateLimiter(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	limiter := NewRateLimiter(RateLimitConfig{
		Redis:    client,
		Requests: 2,
		Window:   time.Minute,
	}, StrategyIP)

	router := gin.New()
	router.POST("/login", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes = append(codes, w.Code)
		if i == 2 {
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
			assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		}
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterWithoutRedisPassesThrough(t *testing.T) {
	router := gin.New()
	router.POST("/login", AuthRateLimit(nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestErrorHandler(t *testing.T) {
	router := gin.New()
	router.Use(DefaultLoggerMiddleware(), NewErrorHandler("production", nil).Handle())
	router.GET("/missing", func(c *gin.Context) {
		_ = c.Error(utils.NewNotFoundError("Mission"))
	})
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
	router.NoRoute(NoRoute)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, utils.ErrCodeNotFound, body.Code)
	assert.Equal(t, w.Header().Get("X-Request-ID"), body.RequestID)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "PANIC_RECOVERED", body.Code)
	assert.Empty(t, body.Details)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(CORSMiddleware(DefaultCORSConfig([]string{"http://localhost:8080/"})))
	router.GET("/citizen/reports", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/citizen/reports", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:8080", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	req = httptest.NewRequest(http.MethodOptions, "/citizen/reports", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMetricsHandler(t *testing.T) {
	metrics := NewMetrics()
	router := gin.New()
	router.Use(metrics.Middleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	metrics.ObserveNotifications(models.RoleCoordinator, []models.Notification{
		{Variant: models.VariantDefault, Title: "Assigned"},
		{Variant: models.VariantDestructive, Title: "Failed"},
	})
	metrics.ViewMounted(models.RoleCitizen)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `rescuelink_http_requests_total{method="GET",path="/health",status="200"} 1`)
	assert.Contains(t, body, `rescuelink_notifications_total{portal="COORDINATOR",variant="destructive"} 1`)
	assert.Contains(t, body, `rescuelink_active_views{portal="CITIZEN"} 1`)

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.ObserveGuard(models.RoleCitizen, services.GuardAllow)
		nilMetrics.ViewClosed(models.RoleCitizen)
	})
}
