package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Idan-Levin/slack-shopping-agent/internal/automation"
	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
	"github.com/Idan-Levin/slack-shopping-agent/internal/entity"
	"github.com/Idan-Levin/slack-shopping-agent/internal/messaging"
	repo "github.com/Idan-Levin/slack-shopping-agent/internal/repository/item"
	listsvc "github.com/Idan-Levin/slack-shopping-agent/internal/service/list"
	"github.com/Idan-Levin/slack-shopping-agent/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Idan-Levin/slack-shopping-agent/service/orders")

// UserSummary itemizes one member's share of an order run.
type UserSummary struct {
	UserID   string
	UserName string
	Items    []entity.ShoppingItem
	Subtotal float64
}

// Summary describes a completed (or empty) order run, grouped by user
// for confirmation messaging.
type Summary struct {
	Users     []UserSummary
	ItemCount int
	Total     float64
	PlacedAt  time.Time
}

// Empty reports whether the run had nothing to order.
func (s *Summary) Empty() bool {
	return s == nil || s.ItemCount == 0
}

// Service runs the admin-triggered order placement handshake: snapshot
// the active list, trigger the external automation once, and mark the
// snapshot ordered only after an explicit acceptance.
type Service struct {
	repo      *repo.Repository
	trigger   automation.Trigger
	list      *listsvc.Service
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
}

type messagingConfig struct {
	enabled bool
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Trigger    automation.Trigger
	List       *listsvc.Service
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:      p.Repository,
		trigger:   p.Trigger,
		list:      p.List,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{enabled: p.Config.Messaging.Enabled},
	}
}

// PlaceOrder executes one order run. The snapshot taken at the start is
// the run: items added while the automation call is in flight stay
// active and wait for the next run. A failed trigger leaves the store
// untouched, so the admin can simply re-issue the command.
func (s *Service) PlaceOrder(ctx context.Context, triggeredBy string) (*Summary, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.PlaceOrder", trace.WithAttributes(
		attribute.String("order.triggered_by", triggeredBy),
	))
	defer span.End()

	snapshot, err := s.repo.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot failed")
		return nil, errorbank.Internal("failed to read the shopping list", errorbank.WithCause(err))
	}

	if len(snapshot) == 0 {
		s.logger.Info("order run skipped, list empty", zap.String("triggered_by", triggeredBy))
		return &Summary{PlacedAt: time.Now().UTC()}, nil
	}

	summary := buildSummary(snapshot)
	request := buildRequest(snapshot, summary.Total, triggeredBy)

	if err := s.trigger.PlaceOrder(ctx, request); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "trigger failed")
		s.logger.Warn("automation trigger failed, list left untouched",
			zap.Int("items", len(snapshot)),
			zap.Error(err),
		)
		return nil, errorbank.External("automation trigger failed", errorbank.WithCause(err))
	}

	ids := make([]int64, len(snapshot))
	for i, item := range snapshot {
		ids[i] = item.ID
	}

	updated, err := s.repo.MarkOrdered(ctx, ids)
	if err != nil {
		// The automation accepted the run but the status flip failed;
		// items stay active and the next run would re-send them.
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark ordered failed")
		return nil, errorbank.Internal("order accepted but list update failed", errorbank.WithCause(err))
	}

	s.list.Invalidate(ctx)
	summary.PlacedAt = time.Now().UTC()

	s.publishPlaced(ctx, summary)
	s.logger.Info("order placed",
		zap.String("triggered_by", triggeredBy),
		zap.Int("items", summary.ItemCount),
		zap.Int64("marked", updated),
		zap.Float64("total", summary.Total),
	)
	return summary, nil
}

// buildSummary groups the snapshot by user in first-seen order and
// computes per-user subtotals and the grand total.
func buildSummary(snapshot []entity.ShoppingItem) *Summary {
	summary := &Summary{ItemCount: len(snapshot)}
	index := make(map[string]int)

	for _, item := range snapshot {
		i, ok := index[item.UserID]
		if !ok {
			i = len(summary.Users)
			index[item.UserID] = i
			summary.Users = append(summary.Users, UserSummary{
				UserID:   item.UserID,
				UserName: item.UserName,
			})
		}
		summary.Users[i].Items = append(summary.Users[i].Items, item)
		summary.Users[i].Subtotal += item.Subtotal()
		summary.Total += item.Subtotal()
	}
	return summary
}

func buildRequest(snapshot []entity.ShoppingItem, total float64, triggeredBy string) automation.OrderRequest {
	entries := make([]automation.Entry, len(snapshot))
	for i, item := range snapshot {
		entries[i] = automation.Entry{
			Title:    item.ProductTitle,
			Quantity: item.Quantity,
			Price:    item.Price,
			User:     item.UserName,
		}
	}
	return automation.OrderRequest{
		Items:       entries,
		Total:       total,
		TriggeredBy: triggeredBy,
		RequestedAt: time.Now().UTC(),
	}
}

func (s *Service) publishPlaced(ctx context.Context, summary *Summary) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := listsvc.Event{
		Type:  listsvc.EventOrderPlaced,
		Items: summary.ItemCount,
		Total: summary.Total,
		At:    summary.PlacedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order placed event", zap.Error(err))
		return
	}
	key := []byte(fmt.Sprintf("order-%d", summary.PlacedAt.UnixNano()))
	if err := s.publisher.Publish(ctx, key, payload); err != nil {
		s.logger.Error("publish order placed event", zap.Error(err))
	}
}
