// Package app wires the tracker's components together and owns their
// lifecycle: store, fetcher, notifier, monitor, HTTP API.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"github.com/vishn-ui/tracker/internal/config"
	"github.com/vishn-ui/tracker/internal/fetch"
	"github.com/vishn-ui/tracker/internal/httpapi"
	"github.com/vishn-ui/tracker/internal/monitor"
	"github.com/vishn-ui/tracker/internal/notify"
	"github.com/vishn-ui/tracker/internal/store"
	"github.com/vishn-ui/tracker/pkg/logx"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	cfgPath string

	logSvc *logx.Service
	log    logx.Logger

	store    store.Store
	notifier *notify.Telegram // nil when telegram is disabled
	monitor  *monitor.Service
	http     *httpapi.Server
}

func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	st, err := store.Open(store.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: config.DurationOr(cfg.Storage.BusyTimeout, 5*time.Second),
	}, log.With(logx.String("component", "store")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	fetcher, err := fetch.New(fetch.Config{
		Mode:          cfg.Fetch.Mode,
		NavTimeout:    config.DurationOr(cfg.Fetch.NavTimeout, 60*time.Second),
		UserAgent:     cfg.Fetch.UserAgent,
		RatePerMinute: cfg.Fetch.RatePerMinute,
		RespectRobots: cfg.Fetch.RespectRobots,
	}, log.With(logx.String("component", "fetch")))
	if err != nil {
		_ = st.Close()
		_ = logSvc.Close()
		return nil, fmt.Errorf("build fetcher: %w", err)
	}

	var (
		tg       *notify.Telegram
		notifier notify.Notifier = notify.Nop()
	)
	if cfg.Telegram.Enabled {
		tg, err = notify.NewTelegram(notify.Config{
			Token:       cfg.Telegram.Token,
			ChatID:      cfg.Telegram.ChatID,
			SendTimeout: config.DurationOr(cfg.Telegram.SendTimeout, 10*time.Second),
			RatePerSec:  cfg.Telegram.RatePerSec,
		}, log.With(logx.String("component", "notify")))
		if err != nil {
			_ = st.Close()
			_ = logSvc.Close()
			return nil, fmt.Errorf("build notifier: %w", err)
		}
		notifier = tg
	} else {
		log.Info("telegram disabled; notifications will be dropped")
	}

	mon := monitor.New(monitor.Config{
		Interval:     config.DurationOr(cfg.Monitor.CheckInterval, time.Hour),
		CheckTimeout: config.DurationOr(cfg.Monitor.CheckTimeout, 2*time.Minute),
	}, st, fetcher, notifier, log.With(logx.String("component", "monitor")))

	api := httpapi.New(httpapi.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  config.DurationOr(cfg.HTTP.ReadTimeout, 0),
		WriteTimeout: config.DurationOr(cfg.HTTP.WriteTimeout, 0),
		IdleTimeout:  config.DurationOr(cfg.HTTP.IdleTimeout, 0),
	}, st, mon, log.With(logx.String("component", "http")))

	return &App{
		cfgPath:  cfgPath,
		logSvc:   logSvc,
		log:      log,
		store:    st,
		notifier: tg,
		monitor:  mon,
		http:     api,
	}, nil
}

// Run starts everything and blocks until ctx is cancelled. Recovery of the
// persisted schedule completes before the HTTP listener accepts requests,
// so a new subscription cannot race the restart re-scheduling.
func (a *App) Run(ctx context.Context) error {
	if a.notifier != nil {
		a.notifier.Start(ctx)
	}
	a.monitor.Start()

	if err := a.monitor.Recover(ctx); err != nil {
		// Jobs that did schedule keep running; the rest will be retried
		// on next restart.
		a.log.Warn("schedule recovery incomplete", logx.Err(err))
	}

	// Best-effort; no-op outside systemd.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.http.ListenAndServe)
	g.Go(func() error {
		return config.Watch(gctx, a.cfgPath, a.log, a.applyConfig)
	})
	g.Go(func() error {
		<-gctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.http.Shutdown(shCtx)
	})

	err := g.Wait()
	a.shutdown()
	return err
}

// applyConfig handles a config file change. Only the logging section is
// applied live; the rest requires a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
}

func (a *App) shutdown() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.monitor.Stop(stopCtx)

	if a.notifier != nil {
		a.notifier.Stop()
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close failed", logx.Err(err))
	}
	a.log.Info("tracker stopped")
	_ = a.logSvc.Close()
}
