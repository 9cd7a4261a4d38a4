package chat

import (
	"context"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
)

// Messenger sends outbound chat messages. Public channel posts carry
// confirmations, order summaries and reminders; ephemeral posts carry
// validation and permission errors to the requester alone.
type Messenger interface {
	PostChannelMessage(ctx context.Context, channel, text string) error
	PostThreadMessage(ctx context.Context, channel, threadTS, text string) error
	PostEphemeral(ctx context.Context, channel, userID, text string) error
	UserName(ctx context.Context, userID string) (string, error)
}

// Client is the Slack Web API messenger.
type Client struct {
	api    *slack.Client
	logger *zap.Logger
}

// NewClient builds the Slack client from the configured bot token.
func NewClient(cfg config.Config, logger *zap.Logger) *Client {
	return &Client{
		api:    slack.New(cfg.Slack.BotToken),
		logger: logger,
	}
}

// PostChannelMessage posts a visible message to a channel.
func (c *Client) PostChannelMessage(ctx context.Context, channel, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		c.logger.Error("slack post failed", zap.String("channel", channel), zap.Error(err))
	}
	return err
}

// PostThreadMessage posts a visible reply into a thread.
func (c *Client) PostThreadMessage(ctx context.Context, channel, threadTS, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(threadTS),
	)
	if err != nil {
		c.logger.Error("slack thread post failed", zap.String("channel", channel), zap.Error(err))
	}
	return err
}

// UserName resolves a user id to a display name, falling back to the
// id itself when the profile lookup fails.
func (c *Client) UserName(ctx context.Context, userID string) (string, error) {
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		c.logger.Warn("slack user lookup failed", zap.String("user", userID), zap.Error(err))
		return userID, err
	}
	if user.Profile.DisplayName != "" {
		return user.Profile.DisplayName, nil
	}
	if user.RealName != "" {
		return user.RealName, nil
	}
	return user.Name, nil
}

// PostEphemeral posts a message only the given user can see.
func (c *Client) PostEphemeral(ctx context.Context, channel, userID, text string) error {
	_, err := c.api.PostEphemeralContext(ctx, channel, userID, slack.MsgOptionText(text, false))
	if err != nil {
		c.logger.Error("slack ephemeral post failed", zap.String("channel", channel), zap.String("user", userID), zap.Error(err))
	}
	return err
}
