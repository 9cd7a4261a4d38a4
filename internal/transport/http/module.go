package http

import (
	"go.uber.org/fx"

	itemtransport "github.com/Idan-Levin/slack-shopping-agent/internal/transport/http/item"
	slacktransport "github.com/Idan-Levin/slack-shopping-agent/internal/transport/http/slack"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	itemtransport.Module,
	slacktransport.Module,
)
