package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
)

var clientTracer = otel.Tracer("github.com/Idan-Levin/slack-shopping-agent/automation")

// ErrNotAccepted is returned when the automation service responds but
// does not explicitly accept the shopping run.
var ErrNotAccepted = errors.New("automation did not accept the order")

// Entry is one line of the order payload sent to the automation service.
type Entry struct {
	Title    string   `json:"title"`
	Quantity int      `json:"quantity"`
	Price    *float64 `json:"price,omitempty"`
	User     string   `json:"user"`
}

// OrderRequest is the payload for one shopping run.
type OrderRequest struct {
	Items       []Entry   `json:"items"`
	Total       float64   `json:"total"`
	TriggeredBy string    `json:"triggered_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// Trigger starts a real-world shopping run. A nil return means the
// service explicitly accepted the run; any other outcome is an error
// and the caller must not treat the run as queued.
type Trigger interface {
	PlaceOrder(ctx context.Context, req OrderRequest) error
}

// Module wires the HTTP automation client.
var Module = fx.Provide(NewClient)

// Client calls the automation trigger endpoint over HTTP.
type Client struct {
	url        string
	secret     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds the automation client from configuration. The
// request timeout bounds the only externally blocking step of an order
// run.
func NewClient(cfg config.Config, logger *zap.Logger) Trigger {
	return &Client{
		url:    cfg.Automation.URL,
		secret: cfg.Automation.Secret,
		httpClient: &http.Client{
			Timeout: cfg.Automation.Timeout,
		},
		logger: logger,
	}
}

// triggerResponse is the shape the automation service answers with.
// Only an explicit "accepted" counts as success.
type triggerResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// PlaceOrder performs exactly one synchronous call. It never retries;
// retrying is an explicit human decision made by re-issuing the admin
// command.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) error {
	ctx, span := clientTracer.Start(ctx, "Automation.PlaceOrder", trace.WithAttributes(
		attribute.Int("order.items", len(req.Items)),
	))
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build trigger request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return fmt.Errorf("call automation trigger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, "unexpected status")
		return fmt.Errorf("%w: status %d", ErrNotAccepted, resp.StatusCode)
	}

	var trig triggerResponse
	if err := json.NewDecoder(resp.Body).Decode(&trig); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed response")
		return fmt.Errorf("%w: malformed response: %v", ErrNotAccepted, err)
	}

	if trig.Status != "accepted" {
		span.SetStatus(codes.Error, "rejected")
		if trig.Reason != "" {
			return fmt.Errorf("%w: %s", ErrNotAccepted, trig.Reason)
		}
		return fmt.Errorf("%w: status %q", ErrNotAccepted, trig.Status)
	}

	c.logger.Info("automation run accepted", zap.Int("items", len(req.Items)))
	return nil
}
