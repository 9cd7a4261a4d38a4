package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
	"github.com/Idan-Levin/slack-shopping-agent/internal/intent"
	"github.com/Idan-Levin/slack-shopping-agent/internal/product"
	"github.com/Idan-Levin/slack-shopping-agent/internal/scheduler"
	listsvc "github.com/Idan-Levin/slack-shopping-agent/internal/service/list"
	orderssvc "github.com/Idan-Levin/slack-shopping-agent/internal/service/orders"
	"github.com/Idan-Levin/slack-shopping-agent/pkg/errorbank"
)

var chatTracer = otel.Tracer("github.com/Idan-Levin/slack-shopping-agent/chat")

// Command is one inbound slash command.
type Command struct {
	Command   string
	Text      string
	UserID    string
	UserName  string
	ChannelID string
}

// Response is the immediate reply to a slash command. InChannel posts
// it publicly; otherwise only the invoker sees it.
type Response struct {
	Text      string
	InChannel bool
}

// Handler routes inbound Slack traffic: mentions and thread messages
// go through the interpreter onto list operations, slash commands go
// to the order workflow and the reminder scheduler.
type Handler struct {
	interpreter intent.Interpreter
	states      *intent.StateStore
	list        *listsvc.Service
	orders      *orderssvc.Service
	lookup      product.Lookup
	scheduler   *scheduler.Scheduler
	messenger   Messenger
	cfg         config.Config
	logger      *zap.Logger
}

// Params defines dependencies for constructing Handler.
type Params struct {
	fx.In

	Interpreter intent.Interpreter
	States      *intent.StateStore
	List        *listsvc.Service
	Orders      *orderssvc.Service
	Lookup      product.Lookup
	Scheduler   *scheduler.Scheduler
	Messenger   Messenger
	Config      config.Config
	Logger      *zap.Logger
}

// NewHandler wires a new Handler instance.
func NewHandler(p Params) *Handler {
	return &Handler{
		interpreter: p.Interpreter,
		states:      p.States,
		list:        p.List,
		orders:      p.Orders,
		lookup:      p.Lookup,
		scheduler:   p.Scheduler,
		messenger:   p.Messenger,
		cfg:         p.Config,
		logger:      p.Logger,
	}
}

// HandleMessage processes one mention or thread message end to end:
// load conversation state, interpret, dispatch, reply.
func (h *Handler) HandleMessage(ctx context.Context, msg intent.Message) {
	ctx, span := chatTracer.Start(ctx, "Chat.HandleMessage", trace.WithAttributes(
		attribute.String("chat.user", msg.UserID),
	))
	defer span.End()

	if msg.UserName == "" {
		name, _ := h.messenger.UserName(ctx, msg.UserID)
		msg.UserName = name
	}

	session := intent.SessionKey(msg.Channel, msg.ThreadTS)
	state := h.states.Get(ctx, session)

	classified, err := h.interpreter.Interpret(ctx, msg, state)
	if err != nil {
		h.logger.Error("interpret failed", zap.String("user", msg.UserID), zap.Error(err))
		h.ephemeral(ctx, msg, "Sorry, I had trouble understanding that. Mind rephrasing?")
		return
	}

	span.SetAttributes(attribute.String("chat.intent", string(classified.Kind)))

	switch classified.Kind {
	case intent.KindAddItem:
		h.handleAdd(ctx, msg, state, classified)
	case intent.KindSearch:
		h.handleSearch(ctx, msg, state, classified)
	case intent.KindShowList:
		h.handleShowList(ctx, msg)
	case intent.KindDeleteItem:
		h.handleDelete(ctx, msg, classified)
	default:
		if classified.Reply != "" {
			h.reply(ctx, msg, classified.Reply)
		}
	}
}

func (h *Handler) handleAdd(ctx context.Context, msg intent.Message, state *intent.State, in intent.Intent) {
	candidate, ok := h.resolveCandidate(ctx, msg, state, in.ProductRef)
	if !ok {
		return
	}

	if in.Quantity < 1 {
		state.Chosen = candidate
		state.Candidates = nil
		h.states.Put(ctx, state)
		h.reply(ctx, msg, fmt.Sprintf("How many *%s* would you like?", candidate.Title))
		return
	}

	item, err := h.list.Add(ctx, listsvc.AddInput{
		UserID:   msg.UserID,
		UserName: msg.UserName,
		Title:    candidate.Title,
		URL:      candidate.CanonicalURL,
		ImageURL: candidate.ImageURL,
		Price:    candidate.Price,
		Quantity: in.Quantity,
	})
	if err != nil {
		h.sendError(ctx, msg, err)
		return
	}

	h.states.Clear(ctx, state.SessionID)
	h.reply(ctx, msg, fmt.Sprintf("Added *%s* ×%d to the list (id %d).", item.ProductTitle, item.Quantity, item.ID))
}

// resolveCandidate turns the product reference into a concrete
// candidate: a pending quantity question resolves to the chosen
// product, a bare number picks from the last shown candidates, and
// anything else goes through product lookup.
func (h *Handler) resolveCandidate(ctx context.Context, msg intent.Message, state *intent.State, ref string) (*product.Candidate, bool) {
	if state.Chosen != nil {
		return state.Chosen, true
	}

	if n := selectionIndex(ref); n > 0 && n <= len(state.Candidates) {
		chosen := state.Candidates[n-1]
		return &chosen, true
	}

	results, err := h.lookup.Search(ctx, ref)
	if errors.Is(err, product.ErrNotFound) {
		h.reply(ctx, msg, fmt.Sprintf("I couldn't find anything for %q. Try different wording or paste a link.", ref))
		return nil, false
	}
	if err != nil {
		h.sendError(ctx, msg, err)
		return nil, false
	}

	if len(results) == 1 {
		return &results[0], true
	}

	state.Candidates = results
	state.Chosen = nil
	h.states.Put(ctx, state)
	h.reply(ctx, msg, FormatCandidates(results))
	return nil, false
}

var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
}

func selectionIndex(ref string) int {
	trimmed := strings.ToLower(strings.TrimSpace(ref))
	if n, err := strconv.Atoi(trimmed); err == nil {
		return n
	}
	for _, word := range strings.Fields(trimmed) {
		if n, ok := ordinals[word]; ok {
			return n
		}
	}
	return 0
}

func (h *Handler) handleSearch(ctx context.Context, msg intent.Message, state *intent.State, in intent.Intent) {
	results, err := h.lookup.Search(ctx, in.Query)
	if errors.Is(err, product.ErrNotFound) {
		h.reply(ctx, msg, fmt.Sprintf("No products found for %q.", in.Query))
		return
	}
	if err != nil {
		h.sendError(ctx, msg, err)
		return
	}

	state.Candidates = results
	state.Chosen = nil
	h.states.Put(ctx, state)
	h.reply(ctx, msg, FormatCandidates(results))
}

func (h *Handler) handleShowList(ctx context.Context, msg intent.Message) {
	items, err := h.list.ActiveItems(ctx)
	if err != nil {
		h.sendError(ctx, msg, err)
		return
	}
	h.reply(ctx, msg, FormatList(items))
}

func (h *Handler) handleDelete(ctx context.Context, msg intent.Message, in intent.Intent) {
	item, err := h.list.ResolveOwned(ctx, msg.UserID, in.ItemRef)
	if err != nil {
		h.sendError(ctx, msg, err)
		return
	}

	isAdmin := h.cfg.Slack.IsAdmin(msg.UserID)
	if err := h.list.Delete(ctx, item.ID, msg.UserID, isAdmin); err != nil {
		h.sendError(ctx, msg, err)
		return
	}

	h.reply(ctx, msg, fmt.Sprintf("Removed *%s* from the list.", item.ProductTitle))
}

// HandleCommand processes a slash command. All commands are admin-only.
func (h *Handler) HandleCommand(ctx context.Context, cmd Command) Response {
	_, span := chatTracer.Start(ctx, "Chat.HandleCommand", trace.WithAttributes(
		attribute.String("chat.command", cmd.Command),
		attribute.String("chat.user", cmd.UserID),
	))
	defer span.End()

	if !h.cfg.Slack.IsAdmin(cmd.UserID) {
		return Response{Text: "Sorry, only admins can use this command."}
	}

	switch cmd.Command {
	case "/place-order":
		go h.placeOrder(cmd)
		return Response{Text: "On it! Placing the order now..."}
	case "/schedule-reminder":
		return h.scheduleReminder(cmd)
	case "/list-reminders":
		return Response{Text: FormatReminders(h.scheduler.List())}
	case "/delete-reminder":
		return h.deleteReminder(cmd)
	default:
		return Response{Text: fmt.Sprintf("Unknown command %s.", cmd.Command)}
	}
}

// placeOrder runs the order workflow off the command's request cycle
// so the slash acknowledgement stays within Slack's deadline.
func (h *Handler) placeOrder(cmd Command) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	summary, err := h.orders.PlaceOrder(ctx, cmd.UserID)
	if err != nil {
		app := errorbank.From(err)
		h.messenger.PostEphemeral(ctx, cmd.ChannelID, cmd.UserID,
			fmt.Sprintf("Order was not placed: %s. The list is unchanged, try again in a bit.", app.Message()))
		return
	}
	if summary.Empty() {
		h.messenger.PostEphemeral(ctx, cmd.ChannelID, cmd.UserID, "The shopping list is empty, nothing to order.")
		return
	}

	h.messenger.PostChannelMessage(ctx, h.cfg.Slack.ChannelID, FormatSummary(summary))
}

func (h *Handler) scheduleReminder(cmd Command) Response {
	spec, text, found := strings.Cut(cmd.Text, "|")
	if !found {
		return Response{Text: "Usage: /schedule-reminder <cron spec> | <message>"}
	}

	reminder, err := h.scheduler.Schedule(strings.TrimSpace(spec), strings.TrimSpace(text))
	if err != nil {
		return Response{Text: errorbank.From(err).Message()}
	}
	return Response{Text: fmt.Sprintf("Reminder %d scheduled, next run %s.",
		reminder.ID, reminder.NextRun.Format("Mon Jan 2 15:04 MST"))}
}

func (h *Handler) deleteReminder(cmd Command) Response {
	id, err := strconv.ParseInt(strings.TrimSpace(cmd.Text), 10, 64)
	if err != nil {
		return Response{Text: "Usage: /delete-reminder <id>"}
	}
	if err := h.scheduler.Delete(id); err != nil {
		return Response{Text: errorbank.From(err).Message()}
	}
	return Response{Text: fmt.Sprintf("Reminder %d deleted.", id)}
}

// reply posts publicly into the thread of the triggering message.
func (h *Handler) reply(ctx context.Context, msg intent.Message, text string) {
	h.messenger.PostThreadMessage(ctx, msg.Channel, msg.ThreadTS, text)
}

// ephemeral sends a private notice to the message author.
func (h *Handler) ephemeral(ctx context.Context, msg intent.Message, text string) {
	h.messenger.PostEphemeral(ctx, msg.Channel, msg.UserID, text)
}

// sendError picks the delivery for a failed operation: user mistakes
// go back privately, everything else gets a generic private notice and
// a log line.
func (h *Handler) sendError(ctx context.Context, msg intent.Message, err error) {
	app := errorbank.From(err)
	switch app.Kind() {
	case errorbank.KindBadRequest, errorbank.KindNotFound, errorbank.KindForbidden:
		h.ephemeral(ctx, msg, app.Message())
	default:
		h.logger.Error("chat operation failed", zap.String("user", msg.UserID), zap.Error(err))
		h.ephemeral(ctx, msg, "Something went wrong on my end. Please try again.")
	}
}
