package list

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
	"github.com/Idan-Levin/slack-shopping-agent/internal/messaging"
	listsvc "github.com/Idan-Levin/slack-shopping-agent/internal/service/list"
	"github.com/Idan-Levin/slack-shopping-agent/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Idan-Levin/slack-shopping-agent/worker/list")

// Module registers shopping list worker handlers.
var Module = fx.Module("worker_list",
	fx.Provide(
		fx.Annotate(
			NewListEventHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewListEventHandler sets up a worker handler that writes an audit
// trail of shopping list activity.
func NewListEventHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.list.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event listsvc.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode list event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		switch event.Type {
		case listsvc.EventItemAdded:
			logger.Info("item added event processed",
				zap.Int64("id", event.ItemID),
				zap.String("title", event.Title),
				zap.Int("quantity", event.Quantity),
				zap.String("user", event.UserID),
			)
		case listsvc.EventOrderPlaced:
			logger.Info("order placed event processed",
				zap.Int("items", event.Items),
				zap.Float64("total", event.Total),
				zap.String("user", event.UserID),
			)
		default:
			logger.Warn("unknown list event", zap.String("type", event.Type))
		}

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
