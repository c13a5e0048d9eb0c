package assistant

import (
	"github.com/smallbiznis/covera/internal/assistant/capability"
	"github.com/smallbiznis/covera/internal/assistant/dialogue"
	"github.com/smallbiznis/covera/internal/assistant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("assistant.service",
	fx.Provide(capability.New),
	fx.Provide(dialogue.New),
	fx.Provide(service.New),
)
