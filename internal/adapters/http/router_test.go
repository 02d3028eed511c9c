package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/dmehra/meetline/internal/app"
	"github.com/dmehra/meetline/internal/config"
	"github.com/dmehra/meetline/internal/domain"
)

func testConfig() *config.Config {
	return &config.Config{
		Mode:           "release",
		ClientSecret:   "client-secret",
		RecorderSecret: "recorder-secret",
	}
}

func authTestRouter(cfg *config.Config) (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	role := new(string)
	r := gin.New()
	r.GET("/probe", BearerAuthMiddleware(cfg), func(c *gin.Context) {
		*role = c.GetString("client_role")
		c.Status(http.StatusOK)
	})
	return r, role
}

func TestBearerAuthRejectsMissingToken(t *testing.T) {
	r, _ := authTestRouter(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"unauthorized client"}`, w.Body.String())
}

func TestBearerAuthRejectsWrongToken(t *testing.T) {
	r, _ := authTestRouter(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer nonsense")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerAuthAssignsRoles(t *testing.T) {
	cases := []struct {
		token string
		role  domain.Role
	}{
		{"client-secret", domain.RoleParticipant},
		{"recorder-secret", domain.RoleRecorder},
	}
	for _, tc := range cases {
		r, role := authTestRouter(testConfig())
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.Header.Set("Authorization", "Bearer "+tc.token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, string(tc.role), *role)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	reg := app.NewRegistry()
	orch := &app.Orchestrator{
		Registry: reg,
		Recorder: app.NewRecorderOrchestrator(reg),
	}
	r := SetupRouter(context.Background(), cfg, orch)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/count", nil)
	req.Header.Set("Authorization", "Bearer client-secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"participants":0}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/recorder", nil)
	req.Header.Set("Authorization", "Bearer recorder-secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"connected":false}`, w.Body.String())
}
