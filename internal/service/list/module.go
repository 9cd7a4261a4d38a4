package list

import "go.uber.org/fx"

// Module provides the list service to Fx.
var Module = fx.Provide(NewService)
