package audit

import (
	auditdomain "github.com/smallbiznis/finsight/internal/audit/domain"
	"github.com/smallbiznis/finsight/internal/audit/repository"
	"github.com/smallbiznis/finsight/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewRecorder),
	fx.Provide(func(r *service.Recorder) auditdomain.Recorder { return r }),
	fx.Provide(service.NewService),
)
