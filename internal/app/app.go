package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"seattlehumus/internal/config"
	"seattlehumus/internal/eventbus"
	"seattlehumus/internal/generator"
	"seattlehumus/internal/litter"
	"seattlehumus/internal/metrics"
	"seattlehumus/internal/notifier"
	"seattlehumus/internal/storage"
	kit "seattlehumus/internal/transport"
	telegram "seattlehumus/internal/transport/telegram/adapter"
	"seattlehumus/internal/whisker"
	logx "seattlehumus/pkg/logx"
)

// App wires the device account, the chat transport and the notifier.
type App struct {
	cfgm  *config.Manager
	cfg   *config.Config
	runID string

	log  logx.Logger
	logs *logx.Service

	bus     eventbus.Bus
	metrics *metrics.Manager
	store   storage.Store

	adapter *telegram.Adapter
	pool    *generator.Pool
	disp    *notifier.Dispatcher
	conn    litter.Connector
}

// New loads the configuration and builds every component. Nothing runs
// until Watch or Latest is called.
func New(cfgPath string, lookup config.LookupFunc) (*App, error) {
	cfgm := config.NewManager(cfgPath, lookup)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	chat, err := telegram.ParseChatTarget(cfg.Telegram.ChatID)
	if err != nil {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
	}
	var logChat kit.ChatTarget
	if raw := strings.TrimSpace(cfg.Telegram.LogChatID); raw != "" {
		if logChat, err = telegram.ParseChatTarget(raw); err != nil {
			return nil, fmt.Errorf("TELEGRAM_LOG_CHAT_ID: %w", err)
		}
	}

	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{
		Token:      cfg.Telegram.BotToken,
		Chat:       chat,
		LogChat:    logChat,
		RatePerSec: cfg.Telegram.RatePerSec,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// The adapter doubles as the log sink for the Telegram log chat.
	logSvc, root := logx.New(cfg.Logging.Logx(), ad)
	log := root.With(logx.String("comp", "app"))
	for _, w := range cfg.Warnings {
		log.Warn("config: " + w)
	}
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	a := &App{
		cfgm:    cfgm,
		cfg:     cfg,
		runID:   uuid.NewString(),
		log:     log,
		logs:    logSvc,
		bus:     eventbus.New(),
		metrics: metrics.NewManager(metrics.WithPprof(cfg.Metrics.Pprof, cfg.Metrics.PprofToken)),
		adapter: ad,
	}
	if err := a.build(root); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(root logx.Logger) error {
	cfg := a.cfg

	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: config.DurationOr(cfg.Storage.BusyTimeout, 0),
	}, root.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	a.store = store

	var gen generator.Generator
	oa, err := generator.NewOpenAI(generator.Config{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: config.DurationOr(cfg.OpenAI.Timeout, 0),
	})
	switch {
	case errors.Is(err, generator.ErrNotConfigured):
		a.log.Warn("OPENAI_API_KEY not set; messages use the fallback text")
	case err != nil:
		return fmt.Errorf("generator: %w", err)
	default:
		a.pool = generator.NewPool(oa, generator.PoolConfig{Workers: cfg.OpenAI.Workers}, root.With(logx.String("comp", "generator")))
		gen = a.pool
	}

	a.disp = notifier.New(notifier.Config{
		RetryMax:      cfg.Notifier.RetryMax,
		RetryBase:     config.DurationOr(cfg.Notifier.RetryBase, 0),
		RetryMaxDelay: config.DurationOr(cfg.Notifier.RetryMaxDelay, 0),
		SendTimeout:   config.DurationOr(cfg.Notifier.SendTimeout, 0),
	}, a.adapter, gen, root.With(logx.String("comp", "notifier")),
		notifier.WithBus(a.bus),
		notifier.WithMetrics(a.metrics),
		notifier.WithStickers(stickerTable(cfg.Stickers)),
	)

	a.conn = whisker.New(whisker.Config{
		ClientID:     cfg.LitterRobot.ClientID,
		HistoryLimit: cfg.LitterRobot.HistoryLimit,
		Timeout:      config.DurationOr(cfg.LitterRobot.Timeout, 0),
	}, whisker.Credentials{
		Username: cfg.LitterRobot.Username,
		Password: cfg.LitterRobot.Password,
	}, root.With(logx.String("comp", "whisker")))
	return nil
}

// stickerTable overlays configured pools on the built-in ones.
func stickerTable(overrides map[string][]string) litter.StickerTable {
	t := litter.DefaultStickers()
	for cat, ids := range overrides {
		if len(ids) > 0 {
			t[litter.Cat(cat)] = append([]string(nil), ids...)
		}
	}
	return t
}

func (a *App) startPool() {
	if a.pool != nil {
		// Workers outlive the run context so a batch in flight at shutdown
		// still gets its text. Stop drains them.
		a.pool.Start(context.Background())
	}
}

// step runs one shutdown step bounded by max and the caller's deadline.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < max {
			max = rem
		}
	}
	if max <= 0 {
		a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}

// shutdown stops components in dependency order. waitSup, when set, waits
// for supervised goroutines before the pool and transport go away.
func (a *App) shutdown(ctx context.Context, waitSup func(context.Context) error) {
	if waitSup != nil {
		a.step(ctx, "supervisor", 10*time.Second, waitSup)
	}
	if a.pool != nil {
		a.step(ctx, "generator", 5*time.Second, a.pool.Stop)
	}
	a.close()
}

func (a *App) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
		a.store = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
		a.logs = nil
	}
	if a.adapter != nil {
		a.adapter.Close()
		a.adapter = nil
	}
}
