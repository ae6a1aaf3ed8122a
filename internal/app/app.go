package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"scoutbot/internal/browser"
	"scoutbot/internal/config"
	"scoutbot/internal/fetch"
	"scoutbot/internal/notifier"
	"scoutbot/internal/runtime/supervisor"
	"scoutbot/internal/storage"
	"scoutbot/internal/transport/telegram"
	"scoutbot/internal/watch"
	"scoutbot/pkg/logx"
)

// App owns every long-lived resource: the bot session, the browser page,
// storage and the goroutines that drive them.
type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	page    browser.Page
	disp    *notifier.Dispatcher
	watcher *watch.Watcher
}

// New loads the config and builds every component. Connecting to Telegram
// is retried; running out of attempts is fatal.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// The Telegram sink has no sender until the bot is connected.
	logs, log := logx.New(mapLogConfig(cfg), nil)
	a := &App{cfgm: cfgm, logs: logs, log: log.With(logx.String("comp", "app"))}
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	if a.store, err = openStore(cfg, log); err != nil {
		return nil, err
	}
	if a.disp, err = newDispatcher(ctx, cfg, a.store, log); err != nil {
		return nil, err
	}
	logs.SetSender(a.disp.Bot())

	bcfg, err := mapBrowserConfig(cfg)
	if err != nil {
		return nil, err
	}
	if a.page, err = browser.Open(ctx, bcfg, log.With(logx.String("comp", "browser"))); err != nil {
		return nil, err
	}
	fetcher := fetch.New(a.page, log.With(logx.String("comp", "fetch")))

	wopts, err := mapWatchOptions(cfg, a.store)
	if err != nil {
		return nil, err
	}
	a.watcher, err = watch.New(fetcher, a.disp, mapTargets(cfg), wopts, log.With(logx.String("comp", "watch")))
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

func openStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	if st != nil {
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}
	return st, nil
}

func newDispatcher(ctx context.Context, cfg *config.Config, store storage.Store, log logx.Logger) (*notifier.Dispatcher, error) {
	tcfg, err := mapTelegramConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts, err := mapNotifierOptions(cfg, store)
	if err != nil {
		return nil, err
	}
	connect := telegram.Connector(tcfg, log.With(logx.String("comp", "telegram")))
	return notifier.New(ctx, connect, cfg.Telegram.ChatIDs, opts, log.With(logx.String("comp", "notifier")))
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start schedules the watcher, runs one scan of every target and follows
// the config file.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	sctx := a.sup.Context()

	a.watcher.Start(sctx)
	a.sup.Go0("watch.initial", func(c context.Context) {
		a.watcher.ScanAll(c)
	})

	a.sup.GoRestart("config.watch", a.cfgm.Watch, supervisor.WithRestartBackoff(time.Second, time.Minute))

	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(last, next)
				last = next
			}
		}
	})

	a.log.Info("started",
		logx.String("config", a.cfgm.Path()),
		logx.Int("targets", len(a.watcher.Targets())),
		logx.Int("recipients", len(a.disp.Recipients())),
	)
	return nil
}

// applyConfig applies the live-reloadable parts of next: logging and the
// target list.
func (a *App) applyConfig(prev, next *config.Config) {
	sections, attrs := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.log.Info("config changed", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

	if restart := config.NeedsRestart(prev, next); len(restart) > 0 {
		a.log.Warn("restart required for some changes", logx.Strings("sections", restart))
	}

	a.logs.Apply(mapLogConfig(next))
	if err := a.watcher.Apply(mapTargets(next)); err != nil {
		a.log.Warn("watch targets rejected; keeping previous", logx.Err(err))
	}
}

// Stop stops scheduling, waits for running work (bounded by ctx) and
// releases every resource.
func (a *App) Stop(ctx context.Context) error {
	start := time.Now()
	if a.watcher != nil {
		a.watcher.Stop(ctx)
	}
	var err error
	if a.sup != nil {
		a.log.Info("stopping", logx.Int("goroutines", int(a.sup.Active())))
		err = a.sup.Stop(ctx)
	}
	a.log.Info("stopped", logx.Duration("took", time.Since(start)))
	a.close()
	return err
}

func (a *App) close() {
	if a.page != nil {
		if err := a.page.Close(); err != nil {
			a.log.Warn("browser close failed", logx.Err(err))
		}
		a.page = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
		a.store = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
