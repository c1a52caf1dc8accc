package checkin

import "go.uber.org/fx"

var Module = fx.Module("checkin.service",
	fx.Provide(New),
)
