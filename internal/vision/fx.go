package vision

import "go.uber.org/fx"

var Module = fx.Module("vision",
	fx.Provide(New),
)
