package list

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Idan-Levin/slack-shopping-agent/internal/cache"
	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
	"github.com/Idan-Levin/slack-shopping-agent/internal/entity"
	"github.com/Idan-Levin/slack-shopping-agent/internal/messaging"
	repo "github.com/Idan-Levin/slack-shopping-agent/internal/repository/item"
	"github.com/Idan-Levin/slack-shopping-agent/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Idan-Levin/slack-shopping-agent/service/list")

const activeCacheKey = "shopping:list:active"

// AddInput carries everything needed to put an item on the list.
type AddInput struct {
	UserID   string
	UserName string
	Title    string
	URL      string
	ImageURL string
	Price    *float64
	Quantity int
}

// Service exposes the member-facing shopping list use-cases.
type Service struct {
	repo      *repo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
}

type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:      p.Repository,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// Add validates and stores a new item, publishing an item-added event.
func (s *Service) Add(ctx context.Context, in AddInput) (*entity.ShoppingItem, error) {
	ctx, span := serviceTracer.Start(ctx, "ListService.Add", trace.WithAttributes(
		attribute.String("item.title", in.Title),
		attribute.Int("item.quantity", in.Quantity),
	))
	defer span.End()

	item := &entity.ShoppingItem{
		UserID:          in.UserID,
		UserName:        in.UserName,
		ProductTitle:    in.Title,
		ProductURL:      in.URL,
		ProductImageURL: in.ImageURL,
		Price:           in.Price,
		Quantity:        in.Quantity,
		AddedAt:         time.Now().UTC(),
	}

	if _, err := s.repo.Add(ctx, item); err != nil {
		if errors.Is(err, repo.ErrInvalid) {
			return nil, errorbank.BadRequest(err.Error())
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to add item", errorbank.WithCause(err))
	}

	s.Invalidate(ctx)
	s.publishEvent(ctx, Event{
		Type:     EventItemAdded,
		ItemID:   item.ID,
		Title:    item.ProductTitle,
		Quantity: item.Quantity,
		UserID:   item.UserID,
		At:       item.AddedAt,
	})

	s.logger.Info("item added",
		zap.Int64("id", item.ID),
		zap.String("title", item.ProductTitle),
		zap.Int("quantity", item.Quantity),
		zap.String("user", item.UserID),
	)
	return item, nil
}

// ActiveItems returns the current active list, serving from cache when
// possible.
func (s *Service) ActiveItems(ctx context.Context) ([]entity.ShoppingItem, error) {
	ctx, span := serviceTracer.Start(ctx, "ListService.ActiveItems")
	defer span.End()

	if items, err := s.fromCache(ctx); err == nil {
		return items, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("list cache read failed", zap.Error(err))
	}

	items, err := s.repo.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load shopping list", errorbank.WithCause(err))
	}

	if err := s.toCache(ctx, items); err != nil {
		s.logger.Warn("list cache write failed", zap.Error(err))
	}
	return items, nil
}

// ActiveItemsFor returns one user's active items.
func (s *Service) ActiveItemsFor(ctx context.Context, userID string) ([]entity.ShoppingItem, error) {
	items, err := s.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, errorbank.Internal("failed to load shopping list", errorbank.WithCause(err))
	}
	return items, nil
}

var itemIDPattern = regexp.MustCompile(`(?i)\b(?:id|item)\s*#?(\d+)\b`)

// ResolveOwned resolves a free-form item reference ("item id 5", "the
// oreo cookies") to one of the user's own active items. Ambiguous
// descriptions come back as a BadRequest listing the candidates.
func (s *Service) ResolveOwned(ctx context.Context, userID, ref string) (*entity.ShoppingItem, error) {
	if m := itemIDPattern.FindStringSubmatch(ref); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			item, err := s.repo.GetByID(ctx, id)
			if errors.Is(err, repo.ErrNotFound) {
				return nil, errorbank.NotFound(fmt.Sprintf("no item with id %d", id))
			}
			if err != nil {
				return nil, errorbank.Internal("failed to look up item", errorbank.WithCause(err))
			}
			return item, nil
		}
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		item, err := s.repo.GetByID(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound(fmt.Sprintf("no item with id %d", id))
		}
		if err != nil {
			return nil, errorbank.Internal("failed to look up item", errorbank.WithCause(err))
		}
		return item, nil
	}

	matches, err := s.repo.FindByDescription(ctx, userID, ref)
	if err != nil {
		return nil, errorbank.Internal("failed to search items", errorbank.WithCause(err))
	}
	switch len(matches) {
	case 0:
		return nil, errorbank.NotFound(fmt.Sprintf("no active item of yours matches %q", ref))
	case 1:
		return &matches[0], nil
	default:
		titles := make([]string, len(matches))
		for i, m := range matches {
			titles[i] = fmt.Sprintf("%s (id %d)", m.ProductTitle, m.ID)
		}
		return nil, errorbank.BadRequest(
			fmt.Sprintf("%d items match %q; delete by id instead", len(matches), ref),
			errorbank.WithDetail("matches", titles),
		)
	}
}

// Delete removes one active item on behalf of its owner or an admin.
func (s *Service) Delete(ctx context.Context, id int64, requestingUserID string, isAdmin bool) error {
	ctx, span := serviceTracer.Start(ctx, "ListService.Delete", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	err := s.repo.Delete(ctx, id, requestingUserID, isAdmin)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return errorbank.NotFound(fmt.Sprintf("no active item with id %d", id))
	case errors.Is(err, repo.ErrForbidden):
		return errorbank.Forbidden("you can only delete items you added")
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to delete item", errorbank.WithCause(err))
	}

	s.Invalidate(ctx)
	s.logger.Info("item deleted", zap.Int64("id", id), zap.String("user", requestingUserID))
	return nil
}

// UpdateQuantity changes how many units of an item are wanted.
func (s *Service) UpdateQuantity(ctx context.Context, id int64, quantity int, requestingUserID string, isAdmin bool) error {
	err := s.repo.UpdateQuantity(ctx, id, quantity, requestingUserID, isAdmin)
	switch {
	case errors.Is(err, repo.ErrInvalid):
		return errorbank.BadRequest(err.Error())
	case errors.Is(err, repo.ErrNotFound):
		return errorbank.NotFound(fmt.Sprintf("no active item with id %d", id))
	case errors.Is(err, repo.ErrForbidden):
		return errorbank.Forbidden("you can only change items you added")
	case err != nil:
		return errorbank.Internal("failed to update item", errorbank.WithCause(err))
	}

	s.Invalidate(ctx)
	return nil
}

// Invalidate drops the cached active list after any mutation.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, activeCacheKey); err != nil {
		s.logger.Warn("list cache invalidation failed", zap.Error(err))
	}
}

func (s *Service) fromCache(ctx context.Context) ([]entity.ShoppingItem, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, activeCacheKey)
	if err != nil {
		return nil, err
	}
	var items []entity.ShoppingItem
	if err := json.Unmarshal(bytes, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) toCache(ctx context.Context, items []entity.ShoppingItem) error {
	if s.cache == nil {
		return nil
	}
	bytes, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, activeCacheKey, bytes, s.cacheTTL)
}

func (s *Service) publishEvent(ctx context.Context, event Event) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal list event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("item-%d", event.ItemID)), payload); err != nil {
		s.logger.Error("publish list event", zap.Error(err))
	}
}

// Event types emitted on the shopping events topic.
const (
	EventItemAdded   = "item_added"
	EventOrderPlaced = "order_placed"
)

// Event is the envelope for shopping list activity on the bus.
type Event struct {
	Type     string    `json:"type"`
	ItemID   int64     `json:"item_id,omitempty"`
	Title    string    `json:"title,omitempty"`
	Quantity int       `json:"quantity,omitempty"`
	UserID   string    `json:"user_id,omitempty"`
	Items    int       `json:"items,omitempty"`
	Total    float64   `json:"total,omitempty"`
	At       time.Time `json:"at"`
}
