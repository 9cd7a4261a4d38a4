package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Idan-Levin/slack-shopping-agent/internal/database"
	"github.com/Idan-Levin/slack-shopping-agent/internal/entity"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

func price(v float64) *float64 { return &v }

// Items seeds example shopping items when the table is empty.
func (s *Seeder) Items(ctx context.Context) error {
	count, err := s.db.NewSelect().Model((*entity.ShoppingItem)(nil)).Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		if s.logger != nil {
			s.logger.Info("shopping items already present, skipping seed", zap.Int("count", count))
		}
		return nil
	}

	now := time.Now().UTC()
	samples := []entity.ShoppingItem{
		{UserID: "U0000001", UserName: "alice", ProductTitle: "Oreo Cookies", Price: price(3.50), Quantity: 2, Status: entity.StatusActive, AddedAt: now},
		{UserID: "U0000002", UserName: "bob", ProductTitle: "Whole Milk 1L", Price: price(4.00), Quantity: 1, Status: entity.StatusActive, AddedAt: now},
		{UserID: "U0000001", UserName: "alice", ProductTitle: "Paper Towels", Quantity: 1, Status: entity.StatusActive, AddedAt: now},
	}

	for _, sample := range samples {
		item := sample
		if _, err := s.db.NewInsert().Model(&item).Exec(ctx); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded shopping items", zap.Int("count", len(samples)))
	}
	return nil
}
