package draughtsmansdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"draughtsman/internal/app"
	"draughtsman/internal/config"
)

type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "Power & Control System Design suits you.", nil
}

func newClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "sdk-secret"
	a, err := app.Build(context.Background(), app.Options{
		Workspace: t.TempDir(),
		Config:    cfg,
		Logger:    zap.NewNop(),
		Registry:  prometheus.NewRegistry(),
		Generator: echoGenerator{},
	})
	require.NoError(t, err)
	h, err := a.Handler()
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})
	return New(srv.URL)
}

func TestSubmitForm(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	res, err := c.SubmitForm(ctx, "newsletter", map[string]string{"email": "reader@example.com"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = c.SubmitForm(ctx, "newsletter", map[string]string{"email": "nope"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"Invalid email address."}, res.Issues)

	_, err = c.SubmitForm(ctx, "survey", map[string]string{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "unknown_form", apiErr.Code)
}

func TestAuthFlowKeepsToken(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	_, err := c.SubmitForm(ctx, "scheduling", map[string]string{"name": "Jane Doe"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	res, err := c.Register(ctx, "Jane Doe", "jane@example.com", "secret1", "secret1")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.NotEmpty(t, c.BearerToken)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", me.Email)

	booking, err := c.SubmitForm(ctx, "scheduling", map[string]string{
		"name":          "Jane Doe",
		"email":         "jane@example.com",
		"service":       "panel-design",
		"preferredDate": "2026-11-02",
		"preferredTime": "09:00-11:00",
	})
	require.NoError(t, err)
	assert.True(t, booking.Success)

	bad, err := c.Login(ctx, "jane@example.com", "wrong-one")
	require.NoError(t, err)
	assert.False(t, bad.Success)
}

func TestRecommendAndCatalog(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	text, err := c.Recommend(ctx, "motor starters")
	require.NoError(t, err)
	assert.Equal(t, "Power & Control System Design suits you.", text)

	_, err = c.Recommend(ctx, " ")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Design needs cannot be empty.", apiErr.Message)

	programs, err := c.Programs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fixture", programs.Source)
	require.NotEmpty(t, programs.Items)

	p, err := c.Program(ctx, programs.Items[0].Slug)
	require.NoError(t, err)
	assert.Equal(t, programs.Items[0].Title, p.Item.Title)
	assert.Equal(t, "fixture", p.Source)

	_, err = c.Resource(ctx, "missing")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	testimonials, err := c.Testimonials(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, testimonials.Items)
	showcase, err := c.Showcase(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, showcase.Items)
	resources, err := c.Resources(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, resources.Items)
	r, err := c.Resource(ctx, resources.Items[0].Slug)
	require.NoError(t, err)
	assert.Equal(t, resources.Items[0].Slug, r.Item.Slug)
	assert.Equal(t, "fixture", r.Source)
}
