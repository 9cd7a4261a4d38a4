package orders

import "go.uber.org/fx"

// Module provides the order placement service to Fx.
var Module = fx.Provide(NewService)
