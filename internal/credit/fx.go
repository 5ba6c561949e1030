package credit

import (
	"github.com/reelforge/reelforge/internal/credit/repository"
	"github.com/reelforge/reelforge/internal/credit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credit.service",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
