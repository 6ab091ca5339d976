package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"draughtsman/internal/config"
	"draughtsman/internal/db"
	"draughtsman/internal/domain"
	"draughtsman/internal/engine"
	"draughtsman/internal/metrics"
	"draughtsman/internal/migrate"
	"draughtsman/internal/notify"
)

type appendCall struct {
	Collection string
	Record     domain.Record
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []appendCall
	err   error
	block bool
}

func (g *fakeGateway) Append(ctx context.Context, collection string, rec domain.Record) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, appendCall{Collection: collection, Record: rec})
	block, err := g.block, g.err
	g.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return "rec-1", nil
}

func (g *fakeGateway) Calls() []appendCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]appendCall(nil), g.calls...)
}

type sendCall struct {
	To, Subject, HTML string
	CtxErr            error
}

type fakeNotifier struct {
	mu      sync.Mutex
	calls   []sendCall
	result  notify.Result
	release chan struct{}
}

func (n *fakeNotifier) Send(ctx context.Context, to, subject, html string) notify.Result {
	if n.release != nil {
		<-n.release
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, sendCall{To: to, Subject: subject, HTML: html, CtxErr: ctx.Err()})
	return n.result
}

func (n *fakeNotifier) Calls() []sendCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sendCall(nil), n.calls...)
}

type testEnv struct {
	Engine   engine.Engine
	Gateway  *fakeGateway
	Notifier *fakeNotifier
	Logs     *observer.ObservedLogs
	Ctx      context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Notifications.OperatorAddress = "ops@example.test"
	core, logs := observer.New(zapcore.DebugLevel)
	eng := engine.New(nil, cfg)
	gw := &fakeGateway{}
	nt := &fakeNotifier{result: notify.Result{Success: true}}
	eng.Gateway = gw
	eng.Notifier = nt
	eng.Logger = zap.New(core)
	eng.Metrics = metrics.New(prometheus.NewRegistry())
	return testEnv{Engine: eng, Gateway: gw, Notifier: nt, Logs: logs, Ctx: context.Background()}
}

func validGuidance() map[string]string {
	return map[string]string{
		"name":    "Jane Doe",
		"email":   "jane@x.com",
		"message": "Please contact me about panel design training options.",
	}
}

func validBooking() map[string]string {
	return map[string]string{
		"name":          "Jane Doe",
		"email":         "jane@x.com",
		"service":       "panel-design",
		"preferredDate": "2026-11-02",
		"preferredTime": "09:00-11:00",
	}
}

func TestGuidanceRejectedWithoutIO(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t)
	raw := map[string]string{"name": "J", "email": "a@b.com", "message": "short"}
	res := env.Engine.Submit(env.Ctx, domain.KindGuidance, raw)
	env.Engine.Wait()

	assert.False(t, res.Success)
	assert.Equal(t, "Invalid form data.", res.Message)
	assert.Equal(t, []string{
		"Name must be at least 2 characters.",
		"Message must be at least 10 characters.",
	}, res.Issues)
	assert.Equal(t, raw, res.Fields)
	assert.Empty(t, env.Gateway.Calls())
	assert.Empty(t, env.Notifier.Calls())
}

func TestGuidanceSuccessNotifiesOperator(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t)
	res := env.Engine.Submit(env.Ctx, domain.KindGuidance, validGuidance())
	env.Engine.Wait()

	assert.Equal(t, domain.FormResult{
		Success: true,
		Message: "Your request has been submitted successfully! We will get back to you soon.",
	}, res)

	calls := env.Gateway.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "guidanceRequests", calls[0].Collection)
	assert.Equal(t, "new", calls[0].Record.Status)
	assert.NotContains(t, calls[0].Record.Fields, "phone")
	assert.NotContains(t, calls[0].Record.Fields, "company")

	sent := env.Notifier.Calls()
	require.Len(t, sent, 1)
	assert.Equal(t, "ops@example.test", sent[0].To)
	assert.Equal(t, "New guidance request from Jane Doe", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "panel design training options")

	assert.Equal(t, 1.0, testutil.ToFloat64(env.Engine.Metrics.Submissions.WithLabelValues("guidance", engine.OutcomePersisted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.Engine.Metrics.Notifications.WithLabelValues("guidance", "sent")))
}

func TestNotificationFailureDoesNotChangeResult(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t)
	env.Notifier.result = notify.Result{Success: false, Message: "Failed to send email: connection refused"}
	res := env.Engine.Submit(env.Ctx, domain.KindGuidance, validGuidance())
	env.Engine.Wait()

	assert.True(t, res.Success)
	assert.Equal(t, "Your request has been submitted successfully! We will get back to you soon.", res.Message)
	assert.Equal(t, 1, env.Logs.FilterMessage("operator notification failed").Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.Engine.Metrics.Notifications.WithLabelValues("guidance", "failed")))
}

func TestUnconfiguredMailerKeepsSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t)
	env.Engine.Notifier = notify.Mailer{}
	res := env.Engine.Submit(env.Ctx, domain.KindScheduling, validBooking())
	env.Engine.Wait()
	assert.True(t, res.Success)
	assert.Equal(t, "Booking request submitted successfully! We will confirm your session soon.", res.Message)
	assert.Equal(t, 1, env.Logs.FilterMessage("operator notification skipped").Len())
}

func TestPersistFailureSkipsNotification(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t)
	env.Gateway.err = errors.New("disk I/O error at /var/lib/draughtsman.db")
	res := env.Engine.Submit(env.Ctx, domain.KindGuidance, validGuidance())
	env.Engine.Wait()

	assert.Equal(t, domain.FormResult{Success: false, Message: "Failed to submit your request. Please try again later."}, res)
	assert.Empty(t, env.Notifier.Calls())
	errs := env.Logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errs, 1)
	assert.Equal(t, "persist submission failed", errs[0].Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.Engine.Metrics.Submissions.WithLabelValues("guidance", engine.OutcomePersistFailed)))
}

func TestPersistTimeoutIsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t)
	env.Gateway.block = true
	env.Engine.Config.Timeouts.Persist = config.Duration(20 * time.Millisecond)
	res := env.Engine.Submit(env.Ctx, domain.KindNewsletter, map[string]string{"email": "reader@x.com"})
	assert.False(t, res.Success)
	assert.Equal(t, engine.MessageFailed, res.Message)
}

func TestSchedulingMissingDate(t *testing.T) {
	env := newTestEnv(t)
	raw := validBooking()
	delete(raw, "preferredDate")
	res := env.Engine.Submit(env.Ctx, domain.KindScheduling, raw)
	assert.False(t, res.Success)
	assert.Contains(t, res.Issues, "Please select a date.")
	assert.Empty(t, env.Gateway.Calls())
}

func TestNewsletterInvalidEmail(t *testing.T) {
	env := newTestEnv(t)
	res := env.Engine.Submit(env.Ctx, domain.KindNewsletter, map[string]string{"email": "not-an-email"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Issues, "Invalid email address.")
}

func TestNewsletterHasNoStatusAndNoNotification(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t)
	res := env.Engine.Submit(env.Ctx, domain.KindNewsletter, map[string]string{"email": "reader@x.com"})
	env.Engine.Wait()
	assert.True(t, res.Success)
	calls := env.Gateway.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "newsletterSubscriptions", calls[0].Collection)
	assert.Empty(t, calls[0].Record.Status)
	assert.Empty(t, env.Notifier.Calls())
}

func TestStatusIsFixedPerKind(t *testing.T) {
	env := newTestEnv(t)
	g := validGuidance()
	g["status"] = "closed"
	b := validBooking()
	b["status"] = "approved"
	b["notes"] = "status: confirmed please"

	require.True(t, env.Engine.Submit(env.Ctx, domain.KindGuidance, g).Success)
	require.True(t, env.Engine.Submit(env.Ctx, domain.KindScheduling, b).Success)
	env.Engine.Wait()

	calls := env.Gateway.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "new", calls[0].Record.Status)
	assert.Equal(t, "pending", calls[1].Record.Status)
	assert.NotContains(t, calls[0].Record.Fields, "status")
	assert.NotContains(t, calls[1].Record.Fields, "status")
}

func TestUnknownKind(t *testing.T) {
	env := newTestEnv(t)
	res := env.Engine.Submit(env.Ctx, domain.FormKind("survey"), map[string]string{})
	assert.Equal(t, domain.FormResult{Success: false, Message: "Unknown form."}, res)
	assert.Empty(t, env.Gateway.Calls())
}

func TestNotificationOutlivesRequestContext(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t)
	env.Notifier.release = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	res := env.Engine.Submit(ctx, domain.KindGuidance, validGuidance())
	require.True(t, res.Success)
	cancel()
	close(env.Notifier.release)
	env.Engine.Wait()

	sent := env.Notifier.Calls()
	require.Len(t, sent, 1)
	assert.NoError(t, sent[0].CtxErr)
}

func TestNotificationEscapesInput(t *testing.T) {
	env := newTestEnv(t)
	g := validGuidance()
	g["company"] = `<script>alert("x")</script>`
	require.True(t, env.Engine.Submit(env.Ctx, domain.KindGuidance, g).Success)
	env.Engine.Wait()
	sent := env.Notifier.Calls()
	require.Len(t, sent, 1)
	assert.NotContains(t, sent[0].HTML, "<script>")
	assert.Contains(t, sent[0].HTML, "&lt;script&gt;")
}

func TestSubmitPersistsToSQLite(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(conn))

	eng := engine.New(conn, config.Default())
	nt := &fakeNotifier{result: notify.Result{Success: true}}
	eng.Notifier = nt
	ctx := context.Background()

	b := validBooking()
	b["phone"] = "0712345678"
	res := eng.Submit(ctx, domain.KindScheduling, b)
	eng.Wait()
	require.True(t, res.Success, res.Message)

	recs, err := eng.Repo.ListRecords(ctx, domain.CollectionBookings, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "pending", recs[0].Status)
	assert.Equal(t, "0712345678", recs[0].Fields["phone"])
	assert.NotContains(t, recs[0].Fields, "notes")
	assert.NotEmpty(t, recs[0].CreatedAt)
	assert.Len(t, nt.Calls(), 1)
}
