package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"draughtsman/internal/config"
	"draughtsman/internal/domain"
	"draughtsman/internal/metrics"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// EventSource is the slice of the event log the dispatcher reads.
type EventSource interface {
	EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error)
	LatestEventID(ctx context.Context) (int64, error)
}

// WebhookDispatcher forwards stored events to the configured webhooks. Each
// hook keeps its own in-memory cursor, starting at the newest event seen when
// the hook is first polled.
type WebhookDispatcher struct {
	Events   EventSource
	Webhooks []config.WebhookConfig
	Interval time.Duration
	Logger   *zap.Logger
	Metrics  *metrics.Metrics

	client  *http.Client
	mu      sync.Mutex
	cursors map[int]int64
}

func NewWebhookDispatcher(events EventSource, hooks []config.WebhookConfig, log *zap.Logger, m *metrics.Metrics) *WebhookDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookDispatcher{
		Events:   events,
		Webhooks: hooks,
		Interval: defaultWebhookInterval,
		Logger:   log,
		Metrics:  m,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		cursors:  make(map[int]int64),
	}
}

// Run polls until ctx is done. It returns nil right away when no hook is
// enabled.
func (d *WebhookDispatcher) Run(ctx context.Context) error {
	if !d.hasEnabledHooks() {
		return nil
	}
	interval := d.Interval
	if interval <= 0 {
		interval = defaultWebhookInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		d.DispatchAll(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (d *WebhookDispatcher) hasEnabledHooks() bool {
	for _, hook := range d.Webhooks {
		if hookEnabled(hook) {
			return true
		}
	}
	return false
}

func hookEnabled(hook config.WebhookConfig) bool {
	if hook.Enabled != nil && !*hook.Enabled {
		return false
	}
	return strings.TrimSpace(hook.URL) != ""
}

// DispatchAll runs one delivery pass over every enabled hook.
func (d *WebhookDispatcher) DispatchAll(ctx context.Context) {
	for i, hook := range d.Webhooks {
		if !hookEnabled(hook) {
			continue
		}
		d.dispatchWebhook(ctx, i, hook)
	}
}

func (d *WebhookDispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.WebhookConfig) {
	log := d.Logger.With(zap.String("url", hook.URL))
	cursor := d.cursorFor(ctx, idx)
	events, err := d.Events.EventsAfter(ctx, defaultWebhookBatch, cursor)
	if err != nil {
		log.Warn("webhook: fetch events failed", zap.Error(err))
		return
	}
	filter := newEventFilter(hook.Events)
	for _, evt := range events {
		if !filter.match(evt.Type) {
			d.setCursor(idx, evt.ID)
			continue
		}
		if err := d.postEvent(ctx, hook, evt); err != nil {
			d.Metrics.IncrementWebhookDelivery("failed")
			log.Warn("webhook: delivery failed", zap.Int64("event_id", evt.ID), zap.Error(err))
			return
		}
		d.Metrics.IncrementWebhookDelivery("delivered")
		d.setCursor(idx, evt.ID)
	}
}

func (d *WebhookDispatcher) cursorFor(ctx context.Context, idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cursors == nil {
		d.cursors = make(map[int]int64)
	}
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur, err := d.Events.LatestEventID(ctx)
	if err != nil {
		d.Logger.Warn("webhook: init cursor failed", zap.Error(err))
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *WebhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	Collection string          `json:"collection,omitempty"`
	EntityID   string          `json:"entity_id,omitempty"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
	PayloadRaw string          `json:"payload_raw,omitempty"`
}

func (d *WebhookDispatcher) postEvent(ctx context.Context, hook config.WebhookConfig, evt domain.Event) error {
	payload := json.RawMessage([]byte("{}"))
	var raw string
	if evt.Payload != "" {
		if json.Valid([]byte(evt.Payload)) {
			payload = json.RawMessage([]byte(evt.Payload))
		} else {
			raw = evt.Payload
		}
	}
	data, err := json.Marshal(webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		Collection: evt.Collection,
		EntityID:   evt.EntityID,
		TS:         evt.TS,
		Payload:    payload,
		PayloadRaw: raw,
	})
	if err != nil {
		return err
	}
	client := d.client
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	if hook.TimeoutSeconds > 0 {
		if timeout := time.Duration(hook.TimeoutSeconds) * time.Second; timeout != client.Timeout {
			client = &http.Client{Timeout: timeout}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Draughtsman-Event", evt.Type)
	req.Header.Set("X-Draughtsman-Delivery", fmt.Sprintf("%d", evt.ID))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Draughtsman-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	if len(events) == 0 {
		return eventFilter{all: true}
	}
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
