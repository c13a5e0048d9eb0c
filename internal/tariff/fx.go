package tariff

import (
	"github.com/smallbiznis/covera/internal/tariff/ratetable"
	"github.com/smallbiznis/covera/internal/tariff/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tariff.service",
	fx.Provide(ratetable.NewHolder),
	fx.Provide(service.New),
)
