package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"seattlehumus/internal/runtime/supervisor"
	"seattlehumus/internal/task/scheduler"
	"seattlehumus/internal/watch"
	logx "seattlehumus/pkg/logx"
	"seattlehumus/pkg/systemd"
)

const (
	pollRestartMin = 250 * time.Millisecond
	pollRestartMax = 5 * time.Minute
	reportTimeout  = 2 * time.Minute
	stopTimeout    = 20 * time.Second
)

// Watch runs the poll loop until ctx is cancelled or a supervised
// component fails for good. Errors before the first poll are returned
// as-is and nothing is left running.
func (a *App) Watch(ctx context.Context) (err error) {
	var sched *scheduler.Service
	if spec := strings.TrimSpace(a.cfg.Report.Schedule); spec != "" {
		if sched, err = scheduler.New(scheduler.Config{Timezone: a.cfg.Report.Timezone}, a.log.With(logx.String("comp", "scheduler"))); err != nil {
			a.close()
			return err
		}
		if _, err = sched.Add("latest_report", spec, reportTimeout, func(c context.Context) error {
			return watch.LatestReport(c, a.conn, a.disp, a.log)
		}); err != nil {
			a.close()
			return fmt.Errorf("report.schedule: %w", err)
		}
	}

	sup := supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
		supervisor.WithRestartHook(func(name string, _ error) { a.metrics.Restarted(name) }),
	)
	sd := systemd.Daemon{}
	w := watch.New(watch.Config{Interval: a.cfg.PollInterval()}, a.conn, a.disp, a.log,
		watch.WithBus(a.bus),
		watch.WithMetrics(a.metrics),
		watch.WithNotifier(sd),
	)

	a.startPool()
	a.startRecorder(sup)
	if err := w.Start(sup.Context()); err != nil {
		sup.Cancel()
		a.shutdown(context.Background(), sup.Wait)
		return err
	}

	sup.GoRestart("watch.poll", w.Run, supervisor.WithRestartBackoff(pollRestartMin, pollRestartMax))
	if addr := strings.TrimSpace(a.cfg.Metrics.Addr); addr != "" {
		sup.Go("metrics.http", func(c context.Context) error { return a.metrics.Serve(c, addr) })
		a.log.Info("metrics listening", logx.String("addr", addr))
	}
	if sched != nil {
		sched.Start(sup.Context())
	}
	if a.cfgm.Path() != "" {
		sup.Go("config.watch", a.cfgm.Watch)
		sup.Go0("config.apply", a.followConfig)
	}
	if d := systemd.WatchdogInterval(); d > 0 && d/2 < a.cfg.PollInterval() {
		a.log.Warn("systemd watchdog is shorter than two poll intervals",
			logx.Duration("watchdog", d), logx.Duration("interval", a.cfg.PollInterval()))
	}
	a.log.Info("watching", logx.String("run", a.runID), logx.Duration("interval", a.cfg.PollInterval()))

	<-sup.Context().Done()
	err = sup.Err()
	if err != nil {
		a.log.Error("stopping on fatal error", logx.Err(err))
	} else {
		a.log.Info("stopping")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if sched != nil {
		a.step(stopCtx, "scheduler", 5*time.Second, func(c context.Context) error { sched.Stop(c); return nil })
	}
	a.shutdown(stopCtx, sup.Wait)
	return err
}
