package orders

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Idan-Levin/slack-shopping-agent/internal/automation"
	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
	"github.com/Idan-Levin/slack-shopping-agent/internal/database"
	"github.com/Idan-Levin/slack-shopping-agent/internal/entity"
	repo "github.com/Idan-Levin/slack-shopping-agent/internal/repository/item"
	listsvc "github.com/Idan-Levin/slack-shopping-agent/internal/service/list"
	"github.com/Idan-Levin/slack-shopping-agent/pkg/errorbank"
)

type fakeTrigger struct {
	calls    int
	requests []automation.OrderRequest
	err      error
	onCall   func()
}

func (f *fakeTrigger) PlaceOrder(ctx context.Context, req automation.OrderRequest) error {
	f.calls++
	f.requests = append(f.requests, req)
	if f.onCall != nil {
		f.onCall()
	}
	return f.err
}

type fixture struct {
	svc     *Service
	repo    *repo.Repository
	trigger *fakeTrigger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repository := repo.NewRepository(database.NewTestConnections(t))
	list := listsvc.NewService(listsvc.Params{
		Repository: repository,
		Logger:     zap.NewNop(),
	})
	trigger := &fakeTrigger{}

	svc := NewService(Params{
		Repository: repository,
		Trigger:    trigger,
		List:       list,
		Config:     config.Config{},
		Logger:     zap.NewNop(),
	})
	return &fixture{svc: svc, repo: repository, trigger: trigger}
}

func price(v float64) *float64 { return &v }

func (f *fixture) add(t *testing.T, userID, userName, title string, p *float64, qty int) int64 {
	t.Helper()
	id, err := f.repo.Add(context.Background(), &entity.ShoppingItem{
		UserID:       userID,
		UserName:     userName,
		ProductTitle: title,
		Price:        p,
		Quantity:     qty,
		AddedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("adding %q: %v", title, err)
	}
	return id
}

func (f *fixture) activeCount(t *testing.T) int {
	t.Helper()
	items, err := f.repo.ListActive(context.Background())
	if err != nil {
		t.Fatalf("listing active items: %v", err)
	}
	return len(items)
}

func TestPlaceOrderEmptyList(t *testing.T) {
	f := newFixture(t)

	summary, err := f.svc.PlaceOrder(context.Background(), "UADMIN")
	if err != nil {
		t.Fatalf("placing order on empty list: %v", err)
	}
	if !summary.Empty() {
		t.Errorf("expected empty summary, got %+v", summary)
	}
	if f.trigger.calls != 0 {
		t.Errorf("automation called %d times for empty list", f.trigger.calls)
	}
}

func TestPlaceOrderAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "U1", "alice", "Oreo Cookies", price(3.50), 2)
	f.add(t, "U2", "bob", "Milk", price(4.00), 1)

	summary, err := f.svc.PlaceOrder(ctx, "UADMIN")
	if err != nil {
		t.Fatalf("placing order: %v", err)
	}

	if f.trigger.calls != 1 {
		t.Fatalf("expected exactly one trigger call, got %d", f.trigger.calls)
	}
	if summary.ItemCount != 2 {
		t.Errorf("expected 2 items, got %d", summary.ItemCount)
	}
	if summary.Total != 11.00 {
		t.Errorf("expected total 11.00, got %.2f", summary.Total)
	}
	if len(summary.Users) != 2 {
		t.Fatalf("expected 2 user groups, got %d", len(summary.Users))
	}
	if summary.Users[0].UserName != "alice" || summary.Users[0].Subtotal != 7.00 {
		t.Errorf("unexpected first group: %s %.2f", summary.Users[0].UserName, summary.Users[0].Subtotal)
	}
	if summary.Users[1].UserName != "bob" || summary.Users[1].Subtotal != 4.00 {
		t.Errorf("unexpected second group: %s %.2f", summary.Users[1].UserName, summary.Users[1].Subtotal)
	}

	if n := f.activeCount(t); n != 0 {
		t.Errorf("expected all items ordered, %d still active", n)
	}

	req := f.trigger.requests[0]
	if len(req.Items) != 2 || req.Total != 11.00 || req.TriggeredBy != "UADMIN" {
		t.Errorf("unexpected request payload: %+v", req)
	}
}

func TestPlaceOrderRejectedThenAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "U1", "alice", "Cookies", price(2.00), 1)

	f.trigger.err = automation.ErrNotAccepted
	_, err := f.svc.PlaceOrder(ctx, "UADMIN")
	if errorbank.From(err).Kind() != errorbank.KindExternal {
		t.Fatalf("expected external error, got %v", err)
	}
	if n := f.activeCount(t); n != 1 {
		t.Fatalf("rejected run must not mutate: %d active", n)
	}

	f.trigger.err = nil
	summary, err := f.svc.PlaceOrder(ctx, "UADMIN")
	if err != nil {
		t.Fatalf("second run should succeed: %v", err)
	}
	if summary.ItemCount != 1 {
		t.Errorf("expected 1 item ordered, got %d", summary.ItemCount)
	}
	if n := f.activeCount(t); n != 0 {
		t.Errorf("expected no active items, got %d", n)
	}
}

func TestPlaceOrderSnapshotExcludesConcurrentAdds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "U1", "alice", "Cookies", price(2.00), 1)

	// An item added while the trigger call is in flight waits for the
	// next run.
	f.trigger.onCall = func() {
		f.add(t, "U2", "bob", "Milk", price(4.00), 1)
	}

	summary, err := f.svc.PlaceOrder(ctx, "UADMIN")
	if err != nil {
		t.Fatalf("placing order: %v", err)
	}
	if summary.ItemCount != 1 {
		t.Errorf("expected snapshot of 1 item, got %d", summary.ItemCount)
	}

	items, err := f.repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("listing active items: %v", err)
	}
	if len(items) != 1 || items[0].ProductTitle != "Milk" {
		t.Fatalf("late add should stay active: %+v", items)
	}

	f.trigger.onCall = nil
	summary, err = f.svc.PlaceOrder(ctx, "UADMIN")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.ItemCount != 1 || summary.Total != 4.00 {
		t.Errorf("second run should pick up the late add: %+v", summary)
	}
}
