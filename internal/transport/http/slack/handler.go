package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Idan-Levin/slack-shopping-agent/internal/chat"
	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
	"github.com/Idan-Levin/slack-shopping-agent/internal/intent"
)

var httpTracer = otel.Tracer("github.com/Idan-Levin/slack-shopping-agent/transport/http/slack")

// Handler terminates the Slack Events API and slash-command webhooks.
type Handler struct {
	chat          *chat.Handler
	signingSecret string
	logger        *zap.Logger
}

// NewHandler constructs a Slack webhook Handler.
func NewHandler(chatHandler *chat.Handler, cfg config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		chat:          chatHandler,
		signingSecret: cfg.Slack.SigningSecret,
		logger:        logger,
	}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/slack")
	g.POST("/events", h.events)
	g.POST("/commands", h.commands)
}

// verifiedBody reads the request body and checks the Slack signature.
func (h *Handler) verifiedBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	verifier, err := slack.NewSecretsVerifier(c.Request().Header, h.signingSecret)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing signature")
	}
	if _, err := verifier.Write(body); err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "signature check failed")
	}
	if err := verifier.Ensure(); err != nil {
		h.logger.Warn("slack signature rejected", zap.Error(err))
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}
	return body, nil
}

func (h *Handler) events(c echo.Context) error {
	body, err := h.verifiedBody(c)
	if err != nil {
		return err
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unparseable event")
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "bad challenge")
		}
		return c.String(http.StatusOK, challenge.Challenge)

	case slackevents.CallbackEvent:
		_, span := httpTracer.Start(c.Request().Context(), "slack.events", trace.WithAttributes(
			attribute.String("slack.event_type", event.InnerEvent.Type),
		))
		defer span.End()

		h.dispatchCallback(event.InnerEvent)
		return c.NoContent(http.StatusOK)
	}

	return c.NoContent(http.StatusOK)
}

// dispatchCallback acknowledges immediately and processes the message
// in the background, keeping within Slack's response deadline.
func (h *Handler) dispatchCallback(inner slackevents.EventsAPIInnerEvent) {
	var msg intent.Message

	switch ev := inner.Data.(type) {
	case *slackevents.AppMentionEvent:
		msg = intent.Message{
			Text:     stripMentions(ev.Text),
			UserID:   ev.User,
			Channel:  ev.Channel,
			ThreadTS: threadOf(ev.ThreadTimeStamp, ev.TimeStamp),
		}
	case *slackevents.MessageEvent:
		// Thread replies only; ignore bots and message edits.
		if ev.ThreadTimeStamp == "" || ev.BotID != "" || ev.SubType != "" {
			return
		}
		msg = intent.Message{
			Text:     stripMentions(ev.Text),
			UserID:   ev.User,
			Channel:  ev.Channel,
			ThreadTS: ev.ThreadTimeStamp,
		}
	default:
		return
	}

	if strings.TrimSpace(msg.Text) == "" || msg.UserID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		h.chat.HandleMessage(ctx, msg)
	}()
}

func (h *Handler) commands(c echo.Context) error {
	body, err := h.verifiedBody(c)
	if err != nil {
		return err
	}
	c.Request().Body = io.NopCloser(bytes.NewReader(body))

	cmd, err := slack.SlashCommandParse(c.Request())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unparseable command")
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "slack.commands", trace.WithAttributes(
		attribute.String("slack.command", cmd.Command),
	))
	defer span.End()

	resp := h.chat.HandleCommand(ctx, chat.Command{
		Command:   cmd.Command,
		Text:      cmd.Text,
		UserID:    cmd.UserID,
		UserName:  cmd.UserName,
		ChannelID: cmd.ChannelID,
	})

	responseType := "ephemeral"
	if resp.InChannel {
		responseType = "in_channel"
	}
	return c.JSON(http.StatusOK, map[string]string{
		"response_type": responseType,
		"text":          resp.Text,
	})
}

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+>`)

func stripMentions(text string) string {
	return strings.TrimSpace(mentionPattern.ReplaceAllString(text, ""))
}

func threadOf(threadTS, ts string) string {
	if threadTS != "" {
		return threadTS
	}
	return ts
}
