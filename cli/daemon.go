package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/turdm/turc/engine/socketio"
	"github.com/turdm/turc/notify"
	"github.com/turdm/turc/observability"
	"github.com/turdm/turc/registry"
	"github.com/turdm/turc/settings"
	"github.com/turdm/turc/watch"
)

// daemon bundles the long-lived pieces shared by `turc serve` and
// `turc mcp`: the engine transport, the download registry, the settings
// store, the notification pipeline and the history watcher.
type daemon struct {
	logger *slog.Logger

	transport *socketio.Transport
	reg       *registry.Registry
	store     *settings.Store
	hist      *registry.HistoryStore
	watcher   *watch.Watcher
	notifier  *notify.Notifier
	sinks     *notify.Router
	jsonlFile *os.File
}

// newDaemon wires the pieces together without starting any loops; call
// start for those and close when done.
func newDaemon(ctx context.Context, cfg *Config, logger *slog.Logger) (*daemon, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	d := &daemon{logger: logger}

	hist, err := registry.OpenHistory(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	d.hist = hist

	d.store = settings.New(
		&settings.FilePersister{Path: filepath.Join(cfg.DataDir, "settings.json")},
		settings.WithLogger(logger),
		settings.WithCache(settings.NewCache(filepath.Join(cfg.DataDir, "settings-cache.json"))),
	)
	// A failed load is survivable; the store logs it and runs on
	// defaults plus whatever the cache sidecar held.
	_ = d.store.Load(ctx)

	d.transport = socketio.New(socketio.Config{
		URL:                cfg.Engine.URL,
		Namespace:          cfg.Engine.Namespace,
		InsecureSkipVerify: cfg.Engine.InsecureSkipVerify,
		Logger:             logger,
	})

	d.reg = registry.New(d.transport,
		registry.WithLogger(logger),
		registry.WithHistory(hist, func() bool { return settingBool(d.store, "session.history") }),
		registry.WithEventObserver(observability.NewEventLogger(logger).Event),
	)

	var sinks []notify.Sink
	if cfg.Notify.JSONL != "" {
		f, err := os.OpenFile(cfg.Notify.JSONL, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			d.close()
			return nil, fmt.Errorf("open notification log: %w", err)
		}
		d.jsonlFile = f
		sinks = append(sinks, notify.NewJSONL(f))
	}
	if cfg.Notify.Webhook != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.Notify.Webhook, notify.WithWebhookLogger(logger)))
	}
	d.sinks = notify.NewRouter(logger, sinks...)
	d.notifier = notify.NewNotifier(d.reg, d.sinks,
		notify.WithEnabled(func() bool { return settingBool(d.store, "show_notifications") }),
		notify.WithLogger(logger),
	)

	// Another turc process writing the shared history database shows up
	// here and is forwarded into this daemon's change feed.
	d.watcher = watch.New(hist.DB, watch.Options{Logger: logger})

	return d, nil
}

// start restores settled downloads from history, then launches the
// engine session loop, the notifier and the history watcher. The loops
// all stop when ctx is done.
func (d *daemon) start(ctx context.Context) {
	if n, err := d.reg.RestoreHistory(ctx); err != nil {
		d.logger.Warn("history restore failed", "error", err)
	} else if n > 0 {
		d.logger.Info("restored downloads from history", "count", n)
	}

	go d.runEngine(ctx)
	go d.notifier.Run(ctx)
	go d.watcher.OnChange(ctx, func() error {
		d.reg.NotifyHistoryChanged()
		return nil
	})
}

// runEngine keeps one engine session alive, redialing with doubling
// backoff. A session that held for over a minute resets the backoff.
func (d *daemon) runEngine(ctx context.Context) {
	backoff := time.Second
	for {
		started := time.Now()
		err := d.reg.Run(ctx, d.transport)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) > time.Minute {
			backoff = time.Second
		}
		d.logger.Warn("engine session ended", "error", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (d *daemon) close() {
	if d.reg != nil {
		d.reg.Close()
	}
	if d.transport != nil {
		d.transport.Close()
	}
	if d.store != nil {
		d.store.Close()
	}
	if d.sinks != nil {
		d.sinks.Close()
	}
	if d.jsonlFile != nil {
		d.jsonlFile.Close()
	}
	if d.hist != nil {
		d.hist.Close()
	}
}

func settingBool(store *settings.Store, path string) bool {
	v, ok := store.Get(path)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
