package app

import (
	"go.uber.org/fx"

	"github.com/Idan-Levin/slack-shopping-agent/internal/automation"
	"github.com/Idan-Levin/slack-shopping-agent/internal/cache"
	"github.com/Idan-Levin/slack-shopping-agent/internal/chat"
	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
	"github.com/Idan-Levin/slack-shopping-agent/internal/database"
	"github.com/Idan-Levin/slack-shopping-agent/internal/intent"
	"github.com/Idan-Levin/slack-shopping-agent/internal/logger"
	"github.com/Idan-Levin/slack-shopping-agent/internal/messaging"
	"github.com/Idan-Levin/slack-shopping-agent/internal/observability"
	"github.com/Idan-Levin/slack-shopping-agent/internal/product"
	repositoryitem "github.com/Idan-Levin/slack-shopping-agent/internal/repository/item"
	"github.com/Idan-Levin/slack-shopping-agent/internal/scheduler"
	httpserver "github.com/Idan-Levin/slack-shopping-agent/internal/server/http"
	servicelist "github.com/Idan-Levin/slack-shopping-agent/internal/service/list"
	serviceorders "github.com/Idan-Levin/slack-shopping-agent/internal/service/orders"
	transporthttp "github.com/Idan-Levin/slack-shopping-agent/internal/transport/http"
	"github.com/Idan-Levin/slack-shopping-agent/internal/worker"
	workerlist "github.com/Idan-Levin/slack-shopping-agent/internal/worker/list"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryitem.Module,
	servicelist.Module,
	serviceorders.Module,
	automation.Module,
)

// Assistant wires the conversational surface: product lookup, intent
// classification, the chat handler, and the reminder scheduler.
var Assistant = fx.Options(
	product.Module,
	intent.Module,
	intent.StateModule,
	chat.Module,
	scheduler.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	Assistant,
	httpserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerlist.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
