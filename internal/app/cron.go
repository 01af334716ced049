package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Shotlin/shotlin-backend/internal/modules/analytics"
	pkgcron "github.com/Shotlin/shotlin-backend/internal/pkg/cron"
	pkgredis "github.com/Shotlin/shotlin-backend/internal/pkg/redis"
	"go.uber.org/zap"
)

// realtimeChannel carries periodic active-visitor snapshots so dashboards
// can subscribe instead of polling the realtime endpoint.
const realtimeChannel = "shotlin:realtime"

func registerCronJobs(sched *pkgcron.Scheduler, engine *analytics.Engine, rc *pkgredis.Client, logger *zap.Logger) {
	sched.Register(pkgcron.Job{
		Name:     "realtime-snapshot",
		Interval: 30 * time.Second,
		Fn: func(ctx context.Context) error {
			snap, err := engine.Realtime(ctx)
			if err != nil {
				logger.Warn("realtime snapshot failed", zap.Error(err))
				return err
			}

			payload, err := json.Marshal(map[string]interface{}{
				"visitors":  snap.Visitors,
				"sessions":  snap.Sessions,
				"timestamp": time.Now().Unix(),
			})
			if err != nil {
				return err
			}
			return rc.Publish(ctx, realtimeChannel, payload)
		},
	})
}
