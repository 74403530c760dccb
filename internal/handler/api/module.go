package api

import "go.uber.org/fx"

var Module = fx.Module("http-api",
	fx.Provide(NewServer),
	fx.Invoke(Run),
)
