package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"draughtsman/internal/config"
	"draughtsman/internal/domain"
)

type cannedGenerator struct{}

func (cannedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "Start with E-CAD Essentials.", nil
}

func TestResolveConfigOverlaysEnvironment(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(workspace), []byte("server:\n  addr: 0.0.0.0:9000\n"), 0o644))
	t.Setenv("ADMIN_EMAIL", "ops@example.com")

	v := viper.New()
	require.NoError(t, config.BindEnv(v))
	cfg, err := ResolveConfig(workspace, "", v)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "ops@example.com", cfg.Notifications.OperatorAddress)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
}

func TestResolveConfigExplicitPathMustExist(t *testing.T) {
	_, err := ResolveConfig(t.TempDir(), filepath.Join(t.TempDir(), "missing.yml"), nil)
	assert.Error(t, err)
}

func TestBuildWiresServices(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	a, err := Build(ctx, Options{
		Workspace: t.TempDir(),
		Config:    cfg,
		Logger:    zap.NewNop(),
		Registry:  prometheus.NewRegistry(),
		Generator: cannedGenerator{},
	})
	require.NoError(t, err)
	defer a.Close()

	res := a.Engine.Submit(ctx, domain.KindNewsletter, map[string]string{"email": "reader@example.com"})
	require.True(t, res.Success, res.Message)
	n, err := a.Repo.CountRecords(ctx, domain.CollectionNewsletter)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := a.Recommender.Recommend(ctx, "control panels")
	require.NoError(t, err)
	assert.Equal(t, "Start with E-CAD Essentials.", rec.Recommendation)

	h, err := a.Handler()
	require.NoError(t, err)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v0/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "draughtsman_form_submissions_total")
}

func TestBuildDefaultConfigSignsInAndBooks(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, Options{
		Workspace: t.TempDir(),
		Config:    config.Default(),
		Logger:    zap.NewNop(),
		Registry:  prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	defer a.Close()
	h, err := a.Handler()
	require.NoError(t, err)

	post := func(path, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	w := post("/v0/auth/register", `{"fullName":"Jane Doe","email":"jane@example.com","password":"secret1","confirmPassword":"secret1"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var reg domain.AuthResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	require.NotEmpty(t, reg.Token)

	w = post("/v0/forms/scheduling", `{"name":"Jane Doe","email":"jane@example.com","service":"panel-design","preferredDate":"2026-11-02","preferredTime":"09:00-11:00"}`, reg.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	n, err := a.Repo.CountRecords(ctx, domain.CollectionBookings)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
