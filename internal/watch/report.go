package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seattlehumus/internal/litter"
	"seattlehumus/internal/notifier"
	logx "seattlehumus/pkg/logx"
)

// Reading is the latest weight attributed to a cat.
type Reading struct {
	Cat      litter.Cat
	Weight   float64
	At       time.Time
	DeviceID string
	Device   string
}

// Latest finds the most recent reading per cat across all devices, in
// litter.Cats order. Cats without a reading are left out. A device whose
// history cannot be fetched is skipped; Latest fails only when every device
// failed.
func Latest(ctx context.Context, devices []litter.Device, log logx.Logger) ([]Reading, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	best := map[litter.Cat]Reading{}
	var errs []error
	for _, d := range devices {
		history, err := d.History(ctx)
		if err != nil {
			log.Warn("history fetch failed; skipping device", logx.String("device", d.Name()), logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			continue
		}
		for _, ev := range litter.ExtractWeightEvents(history) {
			weight, err := litter.ParseWeight(ev.Text)
			if err != nil {
				log.Warn("unparseable weight event; skipping", logx.String("device", d.Name()), logx.Time("at", ev.Timestamp), logx.Err(err))
				continue
			}
			cat := litter.Classify(weight)
			if cur, ok := best[cat]; ok && !ev.Timestamp.After(cur.At) {
				continue
			}
			best[cat] = Reading{Cat: cat, Weight: weight, At: ev.Timestamp, DeviceID: d.ID(), Device: d.Name()}
		}
	}
	if len(devices) > 0 && len(errs) == len(devices) {
		return nil, errors.Join(errs...)
	}

	out := make([]Reading, 0, len(best))
	for _, cat := range litter.Cats() {
		if r, ok := best[cat]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// LatestReport opens a fresh session and announces the latest reading per
// cat. No state is kept: running it twice announces the same readings twice.
func LatestReport(ctx context.Context, conn litter.Connector, disp Dispatcher, log logx.Logger) error {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "report"))
	s, err := conn.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.Close(closeCtx); err != nil {
			log.Warn("session close failed", logx.Err(err))
		}
	}()

	readings, err := Latest(ctx, s.Devices(), log)
	if err != nil {
		return err
	}
	if len(readings) == 0 {
		log.Info("no weight readings to report")
		return nil
	}

	var errs []error
	for _, r := range readings {
		err := disp.Dispatch(ctx, notifier.Request{
			DeviceID:  r.DeviceID,
			Device:    r.Device,
			EventTime: r.At,
			Cat:       r.Cat,
			Weight:    r.Weight,
		})
		if err != nil {
			log.Error("report dispatch failed", logx.String("cat", r.Cat.String()), logx.Err(err))
			errs = append(errs, err)
			continue
		}
		log.Info("reported", logx.String("cat", r.Cat.String()), logx.Float64("weight", r.Weight), logx.Time("at", r.At))
	}
	return errors.Join(errs...)
}
