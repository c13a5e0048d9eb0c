package document

import (
	"github.com/smallbiznis/covera/internal/document/render"
	"github.com/smallbiznis/covera/internal/document/repository"
	"github.com/smallbiznis/covera/internal/document/service"
	"github.com/smallbiznis/covera/internal/document/storage"
	"go.uber.org/fx"
)

var Module = fx.Module("document.service",
	fx.Provide(repository.Provide),
	fx.Provide(render.NewPDFRenderer),
	fx.Provide(storage.NewMinio),
	fx.Provide(service.New),
)
