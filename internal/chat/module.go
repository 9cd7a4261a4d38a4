package chat

import (
	"go.uber.org/fx"

	"github.com/Idan-Levin/slack-shopping-agent/internal/scheduler"
)

// Module wires the Slack client and the chat handler. The client is
// bound to both messaging roles it plays: chat replies and scheduled
// reminder posts.
var Module = fx.Options(
	fx.Provide(
		NewClient,
		func(c *Client) Messenger { return c },
		func(c *Client) scheduler.Poster { return c },
		NewHandler,
	),
)
