// Package webhook delivers pipeline events to an external HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/vod-tender/archive/telemetry"
	"github.com/onnwee/vod-tender/archive/vod"
)

// Envelope is the JSON body posted for every event.
type Envelope struct {
	Action string `json:"action"`
	Data   any    `json:"data"`
}

// Dispatcher posts events to URL. With no URL it only logs.
type Dispatcher struct {
	URL        string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

var _ vod.EventDispatcher = (*Dispatcher)(nil)

// New returns a Dispatcher with a bounded client.
func New(url string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Logger:     logger.With(slog.String("component", "webhook")),
	}
}

// Dispatch delivers one event. Failures are logged and counted; the pipeline never waits on them.
func (d *Dispatcher) Dispatch(ctx context.Context, action string, payload any) {
	if err := d.Deliver(ctx, action, payload); err != nil {
		d.logger().Warn("webhook delivery failed", slog.String("action", action), slog.Any("err", err))
	}
}

// Deliver posts the event and returns the delivery error, if any.
func (d *Dispatcher) Deliver(ctx context.Context, action string, payload any) error {
	log := d.logger()
	if d.URL == "" {
		log.Info("event", slog.String("action", action), slog.Any("payload", payload))
		return nil
	}
	body, err := json.Marshal(Envelope{Action: action, Data: payload})
	if err != nil {
		telemetry.ObserveWebhook("error")
		return fmt.Errorf("encode %s: %w", action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		telemetry.ObserveWebhook("error")
		return err
	}
	id := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-ID", id)
	if corr := telemetry.GetCorrelation(ctx); corr != "" {
		req.Header.Set("X-Correlation-ID", corr)
	}

	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		telemetry.ObserveWebhook("error")
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		telemetry.ObserveWebhook("error")
		return fmt.Errorf("delivery %s: status %d", id, resp.StatusCode)
	}
	telemetry.ObserveWebhook("ok")
	log.Debug("event delivered", slog.String("action", action), slog.String("delivery_id", id))
	return nil
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
