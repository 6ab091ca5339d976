package engine

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"draughtsman/internal/config"
	"draughtsman/internal/domain"
	"draughtsman/internal/metrics"
	"draughtsman/internal/notify"
	"draughtsman/internal/repo"
	"draughtsman/internal/schema"
)

const (
	MessageInvalid = "Invalid form data."
	MessageFailed  = "Failed to submit your request. Please try again later."
	MessageUnknown = "Unknown form."
)

// Submission outcomes as recorded on spans and metrics.
const (
	OutcomeRejected      = "rejected"
	OutcomePersistFailed = "persist_failed"
	OutcomePersisted     = "persisted"
	OutcomeUnknown       = "unknown_form"
)

// Gateway appends a record to a named collection and returns its id.
type Gateway interface {
	Append(ctx context.Context, collection string, rec domain.Record) (string, error)
}

// Notifier sends one operator message. It reports the outcome instead of
// failing.
type Notifier interface {
	Send(ctx context.Context, to, subject, html string) notify.Result
}

type Engine struct {
	Repo     repo.Repo
	Gateway  Gateway
	Notifier Notifier
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time

	inflight *sync.WaitGroup
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	r := repo.Repo{DB: db}
	return Engine{
		Repo:     r,
		Gateway:  r,
		Notifier: notify.Mailer{Config: cfg.Mail},
		Config:   cfg,
		Logger:   zap.NewNop(),
		Now:      time.Now,
		inflight: &sync.WaitGroup{},
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e Engine) config() *config.Config {
	if e.Config == nil {
		return config.Default()
	}
	return e.Config
}

// Wait blocks until every notification started by Submit has finished.
func (e Engine) Wait() {
	if e.inflight != nil {
		e.inflight.Wait()
	}
}

// Submit validates raw against the schema of kind, appends the record and
// announces it to the operator. A success result means the record was
// stored; it says nothing about the notification.
func (e Engine) Submit(ctx context.Context, kind domain.FormKind, raw map[string]string) domain.FormResult {
	ctx, span := otel.Tracer("draughtsman/engine").Start(ctx, "intake.submit",
		trace.WithAttributes(attribute.String("form.kind", string(kind))))
	defer span.End()
	outcome := func(o string) {
		span.SetAttributes(attribute.String("form.outcome", o))
		e.Metrics.IncrementSubmission(string(kind), o)
	}
	log := e.logger().With(zap.String("kind", string(kind)))

	s, ok := schema.For(kind)
	if !ok {
		outcome(OutcomeUnknown)
		return domain.FormResult{Success: false, Message: MessageUnknown}
	}
	res := s.Validate(raw)
	if !res.Valid() {
		outcome(OutcomeRejected)
		log.Info("form rejected", zap.Strings("issues", res.Messages()))
		return domain.FormResult{
			Success: false,
			Message: MessageInvalid,
			Fields:  res.Raw,
			Issues:  res.Messages(),
		}
	}

	rec := domain.Record{Status: kind.Status(), Fields: s.Persisted(res.Values)}
	id, err := e.persist(ctx, kind.Collection(), rec)
	if err != nil {
		outcome(OutcomePersistFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		log.Error("persist submission failed", zap.String("collection", kind.Collection()), zap.Error(err))
		return domain.FormResult{Success: false, Message: MessageFailed}
	}
	outcome(OutcomePersisted)
	log.Info("submission stored", zap.String("collection", kind.Collection()), zap.String("id", id))

	if kind.Notifies() {
		e.notifyOperator(ctx, kind, id, res.Values)
	}
	return domain.FormResult{Success: true, Message: kind.SuccessMessage()}
}

func (e Engine) persist(ctx context.Context, collection string, rec domain.Record) (string, error) {
	timeout := e.config().Timeouts.Persist.Std()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := e.now()
	id, err := e.Gateway.Append(ctx, collection, rec)
	e.Metrics.ObservePersistLatency(e.now().Sub(start).Seconds())
	return id, err
}

// notifyOperator sends the operator e-mail in the background. The send is
// detached from ctx cancellation so a finished request does not abort it.
func (e Engine) notifyOperator(ctx context.Context, kind domain.FormKind, id string, values map[string]string) {
	if e.Notifier == nil {
		return
	}
	log := e.logger().With(zap.String("kind", string(kind)), zap.String("id", id))
	msg, err := renderNotification(e.config().Site.Name, kind, values)
	if err != nil {
		e.Metrics.IncrementNotification(string(kind), "render_failed")
		log.Error("render notification failed", zap.Error(err))
		return
	}
	to := e.config().Notifications.OperatorAddress
	timeout := e.config().Timeouts.Notify.Std()
	detached := context.WithoutCancel(ctx)

	run := func() {
		nctx := detached
		if timeout > 0 {
			var cancel context.CancelFunc
			nctx, cancel = context.WithTimeout(detached, timeout)
			defer cancel()
		}
		res := e.Notifier.Send(nctx, to, msg.Subject, msg.HTML)
		if !res.Success {
			e.Metrics.IncrementNotification(string(kind), "failed")
			log.Warn("operator notification failed", zap.String("message", res.Message))
			return
		}
		e.Metrics.IncrementNotification(string(kind), "sent")
		if res.Message != "" {
			log.Info("operator notification skipped", zap.String("message", res.Message))
		}
	}
	if e.inflight == nil {
		go run()
		return
	}
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		run()
	}()
}
