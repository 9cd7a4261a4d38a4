package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Idan-Levin/slack-shopping-agent/internal/automation"
	"github.com/Idan-Levin/slack-shopping-agent/internal/cache"
	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
	"github.com/Idan-Levin/slack-shopping-agent/internal/database"
	"github.com/Idan-Levin/slack-shopping-agent/internal/intent"
	"github.com/Idan-Levin/slack-shopping-agent/internal/product"
	repo "github.com/Idan-Levin/slack-shopping-agent/internal/repository/item"
	"github.com/Idan-Levin/slack-shopping-agent/internal/scheduler"
	listsvc "github.com/Idan-Levin/slack-shopping-agent/internal/service/list"
	orderssvc "github.com/Idan-Levin/slack-shopping-agent/internal/service/orders"
)

type sentMessage struct {
	channel  string
	threadTS string
	userID   string
	text     string
}

type fakeMessenger struct {
	mu        sync.Mutex
	channel   []sentMessage
	thread    []sentMessage
	ephemeral []sentMessage
}

func (f *fakeMessenger) PostChannelMessage(ctx context.Context, channel, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channel = append(f.channel, sentMessage{channel: channel, text: text})
	return nil
}

func (f *fakeMessenger) PostThreadMessage(ctx context.Context, channel, threadTS, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thread = append(f.thread, sentMessage{channel: channel, threadTS: threadTS, text: text})
	return nil
}

func (f *fakeMessenger) PostEphemeral(ctx context.Context, channel, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemeral = append(f.ephemeral, sentMessage{channel: channel, userID: userID, text: text})
	return nil
}

func (f *fakeMessenger) UserName(ctx context.Context, userID string) (string, error) {
	return "user-" + userID, nil
}

type fakeInterpreter struct {
	intent intent.Intent
	err    error
}

func (f *fakeInterpreter) Interpret(ctx context.Context, msg intent.Message, state *intent.State) (intent.Intent, error) {
	return f.intent, f.err
}

type fakeLookup struct {
	results []product.Candidate
	err     error
}

func (f *fakeLookup) Search(ctx context.Context, query string) ([]product.Candidate, error) {
	return f.results, f.err
}

type acceptAllTrigger struct{}

func (acceptAllTrigger) PlaceOrder(ctx context.Context, req automation.OrderRequest) error {
	return nil
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type harness struct {
	handler     *Handler
	messenger   *fakeMessenger
	interpreter *fakeInterpreter
	lookup      *fakeLookup
	list        *listsvc.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.Config{
		Slack: config.Slack{
			ChannelID: "CMAIN",
			AdminIDs:  []string{"UADMIN"},
		},
		Scheduler: config.Scheduler{Timezone: "UTC"},
		Cache:     config.Cache{StateTTL: time.Minute},
	}

	repository := repo.NewRepository(database.NewTestConnections(t))
	list := listsvc.NewService(listsvc.Params{
		Repository: repository,
		Logger:     zap.NewNop(),
	})
	orders := orderssvc.NewService(orderssvc.Params{
		Repository: repository,
		Trigger:    acceptAllTrigger{},
		List:       list,
		Config:     cfg,
		Logger:     zap.NewNop(),
	})

	messenger := &fakeMessenger{}
	sched, err := scheduler.New(cfg, messenger, zap.NewNop())
	if err != nil {
		t.Fatalf("building scheduler: %v", err)
	}

	interpreter := &fakeInterpreter{}
	lookup := &fakeLookup{}

	handler := NewHandler(Params{
		Interpreter: interpreter,
		States:      intent.NewStateStore(newMemStore(), cfg, zap.NewNop()),
		List:        list,
		Orders:      orders,
		Lookup:      lookup,
		Scheduler:   sched,
		Messenger:   messenger,
		Config:      cfg,
		Logger:      zap.NewNop(),
	})

	return &harness{
		handler:     handler,
		messenger:   messenger,
		interpreter: interpreter,
		lookup:      lookup,
		list:        list,
	}
}

func message(userID string) intent.Message {
	return intent.Message{
		Text:     "whatever was said",
		UserID:   userID,
		UserName: "user-" + userID,
		Channel:  "CMAIN",
		ThreadTS: "171717.001",
	}
}

func TestHandleMessageShowList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.list.Add(ctx, listsvc.AddInput{UserID: "U1", UserName: "alice", Title: "Oreo Cookies", Quantity: 2}); err != nil {
		t.Fatalf("seeding list: %v", err)
	}

	h.interpreter.intent = intent.Intent{Kind: intent.KindShowList}
	h.handler.HandleMessage(ctx, message("U1"))

	if len(h.messenger.thread) != 1 {
		t.Fatalf("expected one thread reply, got %d", len(h.messenger.thread))
	}
	if !strings.Contains(h.messenger.thread[0].text, "Oreo Cookies") {
		t.Errorf("list reply missing item:\n%s", h.messenger.thread[0].text)
	}
}

func TestHandleMessageAddWithQuantity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.lookup.results = []product.Candidate{{Title: "Oreo Cookies", Price: price(3.50), CanonicalURL: "https://shop.example/oreo"}}
	h.interpreter.intent = intent.Intent{Kind: intent.KindAddItem, ProductRef: "oreos", Quantity: 2}

	h.handler.HandleMessage(ctx, message("U1"))

	if len(h.messenger.thread) != 1 || !strings.Contains(h.messenger.thread[0].text, "Added") {
		t.Fatalf("expected add confirmation, got %+v", h.messenger.thread)
	}

	items, err := h.list.ActiveItems(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(items) != 1 || items[0].ProductTitle != "Oreo Cookies" || items[0].Quantity != 2 {
		t.Errorf("unexpected stored item: %+v", items)
	}
}

func TestHandleMessageAddAsksForQuantity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.lookup.results = []product.Candidate{{Title: "Oreo Cookies"}}
	h.interpreter.intent = intent.Intent{Kind: intent.KindAddItem, ProductRef: "oreos"}
	h.handler.HandleMessage(ctx, message("U1"))

	if len(h.messenger.thread) != 1 || !strings.Contains(h.messenger.thread[0].text, "How many") {
		t.Fatalf("expected quantity question, got %+v", h.messenger.thread)
	}

	// Follow-up in the same thread supplies the quantity; the pending
	// choice resolves without another lookup.
	h.lookup.results = nil
	h.interpreter.intent = intent.Intent{Kind: intent.KindAddItem, ProductRef: "2", Quantity: 2}
	h.handler.HandleMessage(ctx, message("U1"))

	items, err := h.list.ActiveItems(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("expected pending item added with quantity 2, got %+v", items)
	}
}

func TestHandleMessageAddPresentsChoices(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.lookup.results = []product.Candidate{{Title: "Oreo Original"}, {Title: "Oreo Double"}}
	h.interpreter.intent = intent.Intent{Kind: intent.KindAddItem, ProductRef: "oreos", Quantity: 1}
	h.handler.HandleMessage(ctx, message("U1"))

	if len(h.messenger.thread) != 1 || !strings.Contains(h.messenger.thread[0].text, "1. *Oreo Original*") {
		t.Fatalf("expected candidate list, got %+v", h.messenger.thread)
	}

	// Picking from the shown candidates adds directly.
	h.interpreter.intent = intent.Intent{Kind: intent.KindAddItem, ProductRef: "the second one", Quantity: 1}
	h.handler.HandleMessage(ctx, message("U1"))

	items, err := h.list.ActiveItems(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(items) != 1 || items[0].ProductTitle != "Oreo Double" {
		t.Fatalf("expected second candidate added, got %+v", items)
	}
}

func TestHandleMessageDeleteForbidden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.list.Add(ctx, listsvc.AddInput{UserID: "U1", UserName: "alice", Title: "Cookies", Quantity: 1}); err != nil {
		t.Fatalf("seeding list: %v", err)
	}

	h.interpreter.intent = intent.Intent{Kind: intent.KindDeleteItem, ItemRef: "item 1"}
	h.handler.HandleMessage(ctx, message("U2"))

	if len(h.messenger.ephemeral) != 1 {
		t.Fatalf("expected ephemeral error, got %+v", h.messenger)
	}
	if h.messenger.ephemeral[0].userID != "U2" {
		t.Errorf("error went to wrong user: %s", h.messenger.ephemeral[0].userID)
	}

	items, err := h.list.ActiveItems(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("item should survive forbidden delete")
	}
}

func TestHandleMessageDeleteByOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.list.Add(ctx, listsvc.AddInput{UserID: "U1", UserName: "alice", Title: "Cookies", Quantity: 1}); err != nil {
		t.Fatalf("seeding list: %v", err)
	}

	h.interpreter.intent = intent.Intent{Kind: intent.KindDeleteItem, ItemRef: "cookies"}
	h.handler.HandleMessage(ctx, message("U1"))

	if len(h.messenger.thread) != 1 || !strings.Contains(h.messenger.thread[0].text, "Removed") {
		t.Fatalf("expected delete confirmation, got %+v", h.messenger.thread)
	}
}

func TestHandleCommandNonAdmin(t *testing.T) {
	h := newHarness(t)

	resp := h.handler.HandleCommand(context.Background(), Command{
		Command: "/place-order",
		UserID:  "U1",
	})
	if !strings.Contains(resp.Text, "admins") {
		t.Errorf("expected admin denial, got %q", resp.Text)
	}
	if resp.InChannel {
		t.Error("denial should be ephemeral")
	}
}

func TestHandleCommandReminders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp := h.handler.HandleCommand(ctx, Command{Command: "/schedule-reminder", UserID: "UADMIN", Text: "not valid"})
	if !strings.Contains(resp.Text, "Usage") {
		t.Errorf("expected usage hint, got %q", resp.Text)
	}

	resp = h.handler.HandleCommand(ctx, Command{Command: "/schedule-reminder", UserID: "UADMIN", Text: "0 9 * * MON | Weekly shop starts today!"})
	if !strings.Contains(resp.Text, "scheduled") {
		t.Fatalf("expected schedule confirmation, got %q", resp.Text)
	}

	resp = h.handler.HandleCommand(ctx, Command{Command: "/list-reminders", UserID: "UADMIN"})
	if !strings.Contains(resp.Text, "Weekly shop starts today!") {
		t.Errorf("expected reminder listing, got %q", resp.Text)
	}

	resp = h.handler.HandleCommand(ctx, Command{Command: "/delete-reminder", UserID: "UADMIN", Text: "abc"})
	if !strings.Contains(resp.Text, "Usage") {
		t.Errorf("expected usage hint, got %q", resp.Text)
	}

	resp = h.handler.HandleCommand(ctx, Command{Command: "/delete-reminder", UserID: "UADMIN", Text: "1"})
	if !strings.Contains(resp.Text, "deleted") {
		t.Errorf("expected delete confirmation, got %q", resp.Text)
	}
}
