package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draughtsman/internal/config"
	"draughtsman/internal/db"
	"draughtsman/internal/domain"
	"draughtsman/internal/events"
	"draughtsman/internal/metrics"
	"draughtsman/internal/migrate"
	"draughtsman/internal/repo"
)

type delivery struct {
	header http.Header
	body   webhookEvent
}

type hookReceiver struct {
	mu         sync.Mutex
	deliveries []delivery
	status     int
}

func (h *hookReceiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var evt webhookEvent
	_ = json.Unmarshal(data, &evt)
	h.mu.Lock()
	h.deliveries = append(h.deliveries, delivery{header: r.Header.Clone(), body: evt})
	status := h.status
	h.mu.Unlock()
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func (h *hookReceiver) all() []delivery {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]delivery(nil), h.deliveries...)
}

func newEventRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}
}

func TestWebhookDeliversNewRecords(t *testing.T) {
	ctx := context.Background()
	r := newEventRepo(t)
	_, err := r.Append(ctx, domain.CollectionNewsletter, domain.Record{Fields: map[string]string{"email": "old@example.com"}})
	require.NoError(t, err)

	recv := &hookReceiver{}
	hookSrv := httptest.NewServer(recv)
	defer hookSrv.Close()

	m := metrics.New(prometheus.NewRegistry())
	d := NewWebhookDispatcher(r, []config.WebhookConfig{{
		URL:    hookSrv.URL,
		Events: []string{events.RecordCreated},
		Secret: "s3cret",
	}}, nil, m)

	// The first pass pins the cursor at the existing event.
	d.DispatchAll(ctx)
	assert.Empty(t, recv.all())

	id, err := r.Append(ctx, domain.CollectionGuidance, domain.Record{
		Status: domain.StatusNew,
		Fields: map[string]string{"name": "Jane Doe"},
	})
	require.NoError(t, err)
	d.DispatchAll(ctx)

	got := recv.all()
	require.Len(t, got, 1)
	assert.Equal(t, events.RecordCreated, got[0].header.Get("X-Draughtsman-Event"))
	assert.Equal(t, "s3cret", got[0].header.Get("X-Draughtsman-Secret"))
	assert.NotEmpty(t, got[0].header.Get("X-Draughtsman-Delivery"))
	assert.Equal(t, id, got[0].body.EntityID)
	assert.Equal(t, domain.CollectionGuidance, got[0].body.Collection)
	assert.Contains(t, string(got[0].body.Payload), "Jane Doe")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookDeliveries.WithLabelValues("delivered")))

	d.DispatchAll(ctx)
	assert.Len(t, recv.all(), 1)
}

func TestWebhookRetriesAfterFailure(t *testing.T) {
	ctx := context.Background()
	r := newEventRepo(t)
	recv := &hookReceiver{status: http.StatusInternalServerError}
	hookSrv := httptest.NewServer(recv)
	defer hookSrv.Close()

	m := metrics.New(prometheus.NewRegistry())
	d := NewWebhookDispatcher(r, []config.WebhookConfig{{URL: hookSrv.URL}}, nil, m)
	d.DispatchAll(ctx)

	_, err := r.Append(ctx, domain.CollectionNewsletter, domain.Record{Fields: map[string]string{"email": "a@b.com"}})
	require.NoError(t, err)
	d.DispatchAll(ctx)
	require.Len(t, recv.all(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookDeliveries.WithLabelValues("failed")))

	recv.mu.Lock()
	recv.status = http.StatusOK
	recv.mu.Unlock()
	d.DispatchAll(ctx)
	assert.Len(t, recv.all(), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookDeliveries.WithLabelValues("delivered")))
}

func TestWebhookRunSkipsDisabledHooks(t *testing.T) {
	off := false
	d := NewWebhookDispatcher(newEventRepo(t), []config.WebhookConfig{{URL: "http://127.0.0.1:1", Enabled: &off}}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(t, d.Run(ctx))
}

func TestEventFilter(t *testing.T) {
	assert.True(t, newEventFilter(nil).match("anything"))
	assert.True(t, newEventFilter([]string{" "}).match("anything"))
	f := newEventFilter([]string{events.RecordCreated})
	assert.True(t, f.match(events.RecordCreated))
	assert.False(t, f.match("record.deleted"))
}
