package institution

import (
	"github.com/smallbiznis/finsight/internal/institution/credentials"
	"github.com/smallbiznis/finsight/internal/institution/service"
	"go.uber.org/fx"
)

var Module = fx.Module("institution.service",
	fx.Provide(credentials.Provide),
	fx.Provide(service.NewService),
)
