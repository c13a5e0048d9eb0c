package promocode

import (
	"github.com/smallbiznis/covera/internal/promocode/repository"
	"github.com/smallbiznis/covera/internal/promocode/service"
	"go.uber.org/fx"
)

var Module = fx.Module("promocode.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
