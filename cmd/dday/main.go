package main

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"dday/internal/app"
	"dday/internal/clock"
	"dday/internal/config"
	"dday/internal/dday"
	appLog "dday/internal/log"
	"dday/internal/notify"
	"dday/internal/shared"
	"dday/internal/snapshot"
	"dday/internal/store"
	"dday/internal/widget"
)

const version = "0.3.0"

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:           "dday",
		Short:         "D-day countdown tracker with a widget host",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Path to config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime bundles everything one command invocation needs.
type runtime struct {
	cfg    *config.Config
	loc    *time.Location
	clock  clock.Clock
	db     *sql.DB
	store  *store.Store
	shared *shared.Defaults
	center *notify.LocalCenter
	svc    *app.Service
}

// loadConfig reads the config file (creating it on first run) and applies the
// log level.
func loadConfig() (*config.Config, *time.Location, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	loc, err := cfg.Location()
	if err != nil {
		// Location 은 실패해도 time.Local 을 돌려준다.
		appLog.Warn("invalid timezone, using local", "timezone", cfg.Timezone, "error", err)
	}
	return cfg, loc, nil
}

// openRuntime wires store, shared defaults, notifications and the service.
// newReloader picks who is told about snapshot changes: the in-process widget
// host for serve, or a remote one for one-shot commands.
func openRuntime(cfg *config.Config, loc *time.Location, newReloader func(*shared.Defaults) snapshot.Reloader) (*runtime, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	st, err := store.New(db, loc)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	sh, err := shared.Open(cfg.SharedDir, cfg.Suite)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	clk := clock.Real{Loc: loc}
	labels := dday.LabelsFor(cfg.Locale)
	center := notify.NewLocalCenter(clk, cfg.NotificationsAuthorized(), nil)
	syncer := snapshot.NewSynchronizer(sh, newReloader(sh), st, clk, labels)

	return &runtime{
		cfg:    cfg,
		loc:    loc,
		clock:  clk,
		db:     db,
		store:  st,
		shared: sh,
		center: center,
		svc:    app.New(st, syncer, notify.NewScheduler(center, cfg.Locale), clk, labels),
	}, nil
}

func (r *runtime) Close() {
	r.center.RemoveAllPending()
	if err := r.db.Close(); err != nil {
		appLog.Error("database close failed", err)
	}
}

// openCLI is openRuntime for one-shot commands: widget reloads go over HTTP to
// a running serve process, which also resyncs its alerts on that signal.
func openCLI() (*runtime, error) {
	cfg, loc, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openRuntime(cfg, loc, func(*shared.Defaults) snapshot.Reloader {
		return widget.NewRemoteReloader(cfg.ReloadEndpoint(), cfg.Widget.BasicAuth)
	})
}
