package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopops/portal/internal/api"
	"shopops/portal/internal/auth"
	"shopops/portal/internal/config"
	"shopops/portal/internal/email"
	"shopops/portal/internal/models"
	"shopops/portal/internal/utils"
)

const testSecret = "router-test-secret"

func testRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		JwtSecret:           testSecret,
		JwtTTL:              time.Hour,
		Location:            time.UTC,
		RateLimitBucketSize: 100,
		RateLimitRefillRate: 100,
	}
	// Requests in these tests never get past the middleware, so no services are needed.
	return api.SetupRouter(ctx, cfg, &api.Services{}, nil)
}

func bearer(t *testing.T, role models.Role) string {
	token, err := auth.GenerateJWT(&models.User{Base: models.NewBase(), Name: "T", Role: role}, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestSetupRouter_Ping(t *testing.T) {
	r := testRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestSetupRouter_RequiresToken(t *testing.T) {
	r := testRouter(t)
	for _, path := range []string{"/api/tasks", "/api/auth/me", "/api/reports/dashboard", "/api/clients"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestSetupRouter_ReportsAccessDenied(t *testing.T) {
	r := testRouter(t)
	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/reports/tasks-summary"},
		{http.MethodGet, "/api/reports/profit-expenses"},
		{http.MethodGet, "/api/reports/sales-ranking"},
		{http.MethodGet, "/api/reports/dashboard"},
		{http.MethodPost, "/api/reports/heartbeat"},
		{http.MethodGet, "/api/reports/presence"},
		{http.MethodGet, "/api/tasks/deleted"},
		{http.MethodPost, "/api/users"},
	}

	for _, role := range []models.Role{models.RoleUser, models.RoleStaff} {
		for _, p := range paths {
			req := httptest.NewRequest(p.method, p.path, nil)
			req.Header.Set("Authorization", bearer(t, role))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusForbidden, w.Code, "%s %s as %s", p.method, p.path, role)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "Access denied", body["message"])
		}
	}
}

func serviceCall(t *testing.T, r http.Handler, payload string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(http.MethodPost, "/api", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestSetupServiceRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	shutdown := make(chan struct{}, 1)
	r := api.SetupServiceRouter(nil, nil, shutdown)

	w, body := serviceCall(t, r, `{"method":"health"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])

	w, _ = serviceCall(t, r, `{"method":"shutdown"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	select {
	case <-shutdown:
	default:
		t.Fatal("shutdown was not signalled")
	}
	// A second request must not block on the full channel.
	shutdown <- struct{}{}
	w, _ = serviceCall(t, r, `{"method":"shutdown"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = serviceCall(t, r, `{"method":"reboot"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = serviceCall(t, r, `{"method":"getTestEmail","arguments":["only-one"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetupServiceRouter_GetTestEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rdb := utils.SetupTestRedis(t)
	r := api.SetupServiceRouter(nil, rdb, make(chan struct{}, 1))

	sender := email.NewRedisSender(rdb, "noreply@shop.test")
	subject := email.SubjectDailySummary + " 2026-10-18"
	raw := email.BuildMessage("noreply@shop.test", []string{"owner@shop.test"}, subject, "New: 3", time.Now())
	require.NoError(t, sender.Send(context.Background(), []string{"owner@shop.test"}, subject, raw))

	w, body := serviceCall(t, r, `{"method":"getTestEmail","arguments":["daily_summary","owner@shop.test"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, subject, data["subject"])
	assert.Contains(t, data["body"], "New: 3")

	// Consumed on read.
	exists, err := rdb.Exists(context.Background(), email.MockEmailKey("owner@shop.test", email.KindDailySummary)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}
