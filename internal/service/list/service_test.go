package list

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
	"github.com/Idan-Levin/slack-shopping-agent/internal/database"
	repo "github.com/Idan-Levin/slack-shopping-agent/internal/repository/item"
	"github.com/Idan-Levin/slack-shopping-agent/pkg/errorbank"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(Params{
		Repository: repo.NewRepository(database.NewTestConnections(t)),
		Cache:      nil,
		Config:     config.Config{},
		Logger:     zap.NewNop(),
		Publisher:  nil,
	})
}

func price(v float64) *float64 { return &v }

func mustAdd(t *testing.T, svc *Service, in AddInput) int64 {
	t.Helper()
	item, err := svc.Add(context.Background(), in)
	if err != nil {
		t.Fatalf("adding %q: %v", in.Title, err)
	}
	return item.ID
}

func TestAddRejectsInvalidInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, AddInput{UserID: "U1", UserName: "alice", Title: "Bread", Quantity: 0})
	if errorbank.From(err).Kind() != errorbank.KindBadRequest {
		t.Fatalf("expected bad request, got %v", err)
	}

	items, err := svc.ActiveItems(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("store changed by rejected add: %d items", len(items))
	}
}

func TestResolveOwnedByID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	id := mustAdd(t, svc, AddInput{UserID: "U1", UserName: "alice", Title: "Oreo Cookies", Quantity: 1})

	for _, ref := range []string{"item 1", "id 1", "Item #1", "1"} {
		item, err := svc.ResolveOwned(ctx, "U1", ref)
		if err != nil {
			t.Fatalf("resolving %q: %v", ref, err)
		}
		if item.ID != id {
			t.Errorf("resolving %q: expected id %d, got %d", ref, id, item.ID)
		}
	}
}

func TestResolveOwnedByDescription(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mustAdd(t, svc, AddInput{UserID: "U1", UserName: "alice", Title: "Oreo Cookies", Quantity: 1})
	mustAdd(t, svc, AddInput{UserID: "U1", UserName: "alice", Title: "Chocolate Cookies", Quantity: 1})
	mustAdd(t, svc, AddInput{UserID: "U1", UserName: "alice", Title: "Whole Milk", Quantity: 1})

	item, err := svc.ResolveOwned(ctx, "U1", "milk")
	if err != nil {
		t.Fatalf("resolving single match: %v", err)
	}
	if item.ProductTitle != "Whole Milk" {
		t.Errorf("resolved wrong item: %s", item.ProductTitle)
	}

	_, err = svc.ResolveOwned(ctx, "U1", "cookies")
	if errorbank.From(err).Kind() != errorbank.KindBadRequest {
		t.Fatalf("expected bad request for ambiguous reference, got %v", err)
	}

	_, err = svc.ResolveOwned(ctx, "U1", "anchovies")
	if errorbank.From(err).Kind() != errorbank.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveOwnedMissingID(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ResolveOwned(context.Background(), "U1", "item 99")
	if errorbank.From(err).Kind() != errorbank.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteMapsErrors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	id := mustAdd(t, svc, AddInput{UserID: "U1", UserName: "alice", Title: "Cookies", Quantity: 1})

	err := svc.Delete(ctx, id, "U2", false)
	if errorbank.From(err).Kind() != errorbank.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if err := svc.Delete(ctx, id, "U2", true); err != nil {
		t.Fatalf("admin delete should succeed: %v", err)
	}

	err = svc.Delete(ctx, id, "U1", false)
	if errorbank.From(err).Kind() != errorbank.KindNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestActiveItemsInsertionOrder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mustAdd(t, svc, AddInput{UserID: "U1", UserName: "alice", Title: "First", Price: price(1), Quantity: 1})
	mustAdd(t, svc, AddInput{UserID: "U2", UserName: "bob", Title: "Second", Price: price(2), Quantity: 1})

	items, err := svc.ActiveItems(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(items) != 2 || items[0].ProductTitle != "First" || items[1].ProductTitle != "Second" {
		t.Errorf("unexpected order: %+v", items)
	}
}
