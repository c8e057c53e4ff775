package main

import (
	"context"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dday/internal/clock"
	"dday/internal/config"
	appLog "dday/internal/log"
	"dday/internal/refresh"
	"dday/internal/shared"
	"dday/internal/snapshot"
	"dday/internal/widget"
)

func init() {
	var listen string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the widget host, background refresh and local notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), listen)
		},
	}
	serveCmd.Flags().StringVarP(&listen, "listen", "l", "", "HTTP listen address (overrides config if set)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context, listen string) error {
	appLog.Info("dday starting", "version", version)

	cfg, loc, err := loadConfig()
	if err != nil {
		return err
	}
	// CLI --listen overrides config file listen if provided.
	if listen != "" {
		cfg.Widget.Listen = listen
	}

	appLog.Info("effective config",
		"data_dir", cfg.DataDir,
		"shared_dir", cfg.SharedDir,
		"suite", cfg.Suite,
		"timezone", loc.String(),
		"locale", cfg.Locale,
		"refresh", cfg.RefreshCron,
		"listen", cfg.Widget.Listen,
		"capture", cfg.Widget.Capture.Enabled,
		"notifications_permission", cfg.Notifications.Permission,
	)

	var host *widget.Host
	rt, err := openRuntime(cfg, loc, func(sh *shared.Defaults) snapshot.Reloader {
		host = widget.NewHost(cfg, sh, clock.Real{Loc: loc}, newCapturer(cfg))
		return host
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	sched, err := refresh.New(cfg.RefreshCron, loc, rt.svc)
	if err != nil {
		return err
	}
	rt.svc.AttachTimers(sched)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// 다른 프로세스(CLI)가 이벤트를 바꾸면 reload 요청이 온다. serve 가 DB 를 다시 읽어
	// 스냅샷 전체를 새로 쓰고 알림도 다시 맞춘다. 그 사이 오래된 목록으로 쓴 내용은 여기서 덮인다.
	host.OnExternalReload(func() {
		if err := rt.svc.Reconcile(ctx); err != nil {
			appLog.Error("reconcile after external reload failed", err)
		}
	})

	// 시작은 foreground 전환과 같다: 만료 정리, 스냅샷 동기화, 타이머 시작.
	if err := rt.svc.Resume(ctx); err != nil {
		appLog.Error("initial resume failed", err)
	}

	go handleSignals(ctx, cancel, rt)

	err = host.Serve(ctx)
	rt.svc.Suspend()
	// Give in-flight timer callbacks a moment before the database closes.
	time.Sleep(100 * time.Millisecond)
	appLog.Info("dday exiting")
	return err
}

// handleSignals maps process signals onto lifecycle transitions:
// SIGINT/SIGTERM stop, SIGUSR1 backgrounds (timers off), SIGUSR2 foregrounds.
func handleSignals(ctx context.Context, cancel context.CancelFunc, rt *runtime) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGUSR1:
				appLog.Info("signal received, suspending timers", "signal", sig.String())
				rt.svc.Suspend()
			case syscall.SIGUSR2:
				appLog.Info("signal received, resuming", "signal", sig.String())
				if err := rt.svc.Resume(ctx); err != nil {
					appLog.Error("resume failed", err)
				}
			default:
				appLog.Info("signal received, shutting down", "signal", sig.String())
				cancel()
				return
			}
		}
	}
}

// newCapturer returns a Chrome-backed capturer when PNG capture is enabled.
// Basic auth credentials ride in the URL so the headless browser can load
// protected pages.
func newCapturer(cfg *config.Config) widget.Capturer {
	if !cfg.Widget.Capture.Enabled {
		return nil
	}
	base := url.URL{Scheme: "http", Host: cfg.Widget.Listen}
	if ba := cfg.Widget.BasicAuth; ba != nil && ba.Username != "" {
		base.User = url.UserPassword(ba.Username, ba.Password)
	}
	return widget.ChromeCapturer{
		BaseURL:   base.String(),
		OutputDir: cfg.Widget.Capture.OutputDir,
		Width:     cfg.Widget.Capture.Width,
		Height:    cfg.Widget.Capture.Height,
	}
}
