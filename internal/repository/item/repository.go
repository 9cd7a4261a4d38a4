package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Idan-Levin/slack-shopping-agent/internal/database"
	"github.com/Idan-Levin/slack-shopping-agent/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Idan-Levin/slack-shopping-agent/repository/item")

// ErrNotFound is returned when no active item matches the reference.
var ErrNotFound = errors.New("item not found")

// ErrForbidden is returned when a non-owner, non-admin tries to mutate
// an item.
var ErrForbidden = errors.New("item not owned by requester")

// ErrInvalid is returned for malformed input before any mutation.
var ErrInvalid = errors.New("invalid item")

// Repository encapsulates all access to the shopping_items table. No
// other component touches the table directly.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Add validates and persists a new active item, returning its id.
func (r *Repository) Add(ctx context.Context, item *entity.ShoppingItem) (int64, error) {
	if item == nil {
		return 0, fmt.Errorf("%w: nil item", ErrInvalid)
	}
	if strings.TrimSpace(item.ProductTitle) == "" {
		return 0, fmt.Errorf("%w: empty product title", ErrInvalid)
	}
	if item.Quantity < 1 {
		return 0, fmt.Errorf("%w: quantity must be at least 1", ErrInvalid)
	}
	if item.UserID == "" {
		return 0, fmt.Errorf("%w: missing user id", ErrInvalid)
	}
	if item.Price != nil && *item.Price < 0 {
		return 0, fmt.Errorf("%w: price must not be negative", ErrInvalid)
	}

	ctx, span := repoTracer.Start(ctx, "ItemRepository.Add", trace.WithAttributes(
		attribute.String("item.title", item.ProductTitle),
		attribute.Int("item.quantity", item.Quantity),
	))
	defer span.End()

	item.Status = entity.StatusActive
	_, err := r.writer.NewInsert().Model(item).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return 0, err
	}
	return item.ID, nil
}

// ListActive returns a snapshot of all active items in insertion order.
func (r *Repository) ListActive(ctx context.Context) ([]entity.ShoppingItem, error) {
	ctx, span := repoTracer.Start(ctx, "ItemRepository.ListActive")
	defer span.End()

	var items []entity.ShoppingItem
	err := r.reader.NewSelect().Model(&items).
		Where("status = ?", entity.StatusActive).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return items, nil
}

// ListActiveByUser returns a snapshot of one user's active items in
// insertion order.
func (r *Repository) ListActiveByUser(ctx context.Context, userID string) ([]entity.ShoppingItem, error) {
	ctx, span := repoTracer.Start(ctx, "ItemRepository.ListActiveByUser", trace.WithAttributes(attribute.String("item.user_id", userID)))
	defer span.End()

	var items []entity.ShoppingItem
	err := r.reader.NewSelect().Model(&items).
		Where("status = ?", entity.StatusActive).
		Where("user_id = ?", userID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return items, nil
}

// FindByDescription returns a user's active items whose title matches
// the description, case-insensitively. Used to resolve delete requests
// phrased as "the oreo cookies".
func (r *Repository) FindByDescription(ctx context.Context, userID, description string) ([]entity.ShoppingItem, error) {
	ctx, span := repoTracer.Start(ctx, "ItemRepository.FindByDescription", trace.WithAttributes(attribute.String("item.user_id", userID)))
	defer span.End()

	pattern := "%" + strings.ToLower(strings.TrimSpace(description)) + "%"
	var items []entity.ShoppingItem
	err := r.reader.NewSelect().Model(&items).
		Where("status = ?", entity.StatusActive).
		Where("user_id = ?", userID).
		Where("LOWER(product_title) LIKE ?", pattern).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return items, nil
}

// GetByID fetches a single item by primary key regardless of status.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.ShoppingItem, error) {
	ctx, span := repoTracer.Start(ctx, "ItemRepository.GetByID", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	item := new(entity.ShoppingItem)
	err := r.reader.NewSelect().Model(item).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return item, nil
}

// Delete removes a single active item. Only the owner or an admin may
// delete it. Items that do not exist, or are no longer active, report
// ErrNotFound.
func (r *Repository) Delete(ctx context.Context, id int64, requestingUserID string, isAdmin bool) error {
	ctx, span := repoTracer.Start(ctx, "ItemRepository.Delete", trace.WithAttributes(
		attribute.Int64("item.id", id),
		attribute.String("item.requested_by", requestingUserID),
	))
	defer span.End()

	return r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		item := new(entity.ShoppingItem)
		err := tx.NewSelect().Model(item).
			Where("id = ?", id).
			Where("status = ?", entity.StatusActive).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			span.RecordError(err)
			return err
		}
		if item.UserID != requestingUserID && !isAdmin {
			return ErrForbidden
		}

		_, err = tx.NewDelete().Model((*entity.ShoppingItem)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "delete failed")
		}
		return err
	})
}

// UpdateQuantity changes the quantity of an active item, with the same
// ownership gate as Delete. The quantity must stay at or above 1.
func (r *Repository) UpdateQuantity(ctx context.Context, id int64, quantity int, requestingUserID string, isAdmin bool) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalid)
	}

	ctx, span := repoTracer.Start(ctx, "ItemRepository.UpdateQuantity", trace.WithAttributes(
		attribute.Int64("item.id", id),
		attribute.Int("item.quantity", quantity),
	))
	defer span.End()

	return r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		item := new(entity.ShoppingItem)
		err := tx.NewSelect().Model(item).
			Where("id = ?", id).
			Where("status = ?", entity.StatusActive).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			span.RecordError(err)
			return err
		}
		if item.UserID != requestingUserID && !isAdmin {
			return ErrForbidden
		}

		_, err = tx.NewUpdate().Model((*entity.ShoppingItem)(nil)).
			Set("quantity = ?", quantity).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "update failed")
		}
		return err
	})
}

// MarkOrdered flips the given items from active to ordered in one
// transaction and reports how many rows changed. Ids that are missing
// or already ordered are skipped silently. Concurrent readers never
// observe a partially updated batch.
func (r *Repository) MarkOrdered(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	ctx, span := repoTracer.Start(ctx, "ItemRepository.MarkOrdered", trace.WithAttributes(attribute.Int("item.count", len(ids))))
	defer span.End()

	var updated int64
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*entity.ShoppingItem)(nil)).
			Set("status = ?", entity.StatusOrdered).
			Where("id IN (?)", bun.In(ids)).
			Where("status = ?", entity.StatusActive).
			Exec(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "update failed")
			return err
		}
		updated, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}
