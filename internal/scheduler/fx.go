package scheduler

import (
	"github.com/smallbiznis/finsight/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(register),
)

func register(lc fx.Lifecycle, cfg config.Config, s *Scheduler) {
	if !cfg.Scheduler.Enabled {
		return
	}
	lc.Append(fx.StartStopHook(s.Start, s.Stop))
}
