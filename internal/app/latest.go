package app

import (
	"context"

	"seattlehumus/internal/runtime/supervisor"
	"seattlehumus/internal/watch"
	logx "seattlehumus/pkg/logx"
)

// Latest runs the one-shot latest-weights report and shuts down.
func (a *App) Latest(ctx context.Context) error {
	sup := supervisor.New(context.WithoutCancel(ctx), supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))
	a.startPool()
	a.startRecorder(sup)

	err := watch.LatestReport(ctx, a.conn, a.disp, a.log)

	// The recorder drains what the report published before it stops.
	a.shutdown(context.Background(), sup.Stop)
	return err
}
