package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/netcheck/linkwatch/internal/api"
	"github.com/netcheck/linkwatch/internal/config"
	"github.com/netcheck/linkwatch/internal/models"
	"github.com/netcheck/linkwatch/internal/pipeline"
	"github.com/netcheck/linkwatch/internal/render"
	"github.com/netcheck/linkwatch/internal/report"
	"github.com/netcheck/linkwatch/internal/session"
	"github.com/netcheck/linkwatch/internal/storage"
	"github.com/netcheck/linkwatch/internal/watch"
	"github.com/netcheck/linkwatch/internal/web"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot/vg"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to linkwatch.yaml or linkwatch.toml (default: next to the executable)")
	logPath := flag.String("log", "", "connectivity log to watch (overrides monitor.log_file)")
	once := flag.Bool("once", false, "render once and exit")
	flag.Parse()

	if *configPath == "" {
		// Get the executable's directory for config resolution
		exePath, err := os.Executable()
		if err != nil {
			fmt.Printf("Failed to get executable path: %v\n", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(exePath), "linkwatch.yaml")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *logPath != "" {
		abs, err := filepath.Abs(*logPath)
		if err != nil {
			fmt.Printf("Invalid -log path: %v\n", err)
			os.Exit(1)
		}
		cfg.Monitor.LogFile = abs
	}

	if err := run(cfg, *configPath, *once); err != nil {
		fmt.Printf("linkwatch: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, configPath string, once bool) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	mode, err := render.ParseMode(cfg.Output.Mode)
	if err != nil {
		return err
	}

	store, err := storage.NewLocalStore(cfg.Output.Directory)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	sessions := session.NewManager(cfg.History.MaxRuns)

	var reporter pipeline.Summarizer
	if cfg.Summary.Enabled {
		r, err := report.NewReporter(loc)
		if err != nil {
			fmt.Printf("Warning: daily summary disabled: %v\n", err)
		} else {
			defer r.Close()
			reporter = r
		}
	}

	renderer := &render.Renderer{
		Mode:      mode,
		Location:  loc,
		Title:     cfg.Output.Title,
		Width:     vg.Length(cfg.Output.WidthInches) * vg.Inch,
		RowHeight: vg.Length(cfg.Output.RowHeightInches) * vg.Inch,
	}

	p := pipeline.New(pipeline.Config{
		LogPath:      cfg.GetLogPath(),
		ImageName:    cfg.Output.ImageName,
		Location:     loc,
		Mode:         mode,
		ThroughToday: cfg.Timeline.ThroughToday,
	}, store, renderer, reporter, sessions)
	p.Observe(pipeline.ObserverFunc(func(run models.Run, snap *session.Snapshot) {
		fmt.Println(runLine(run, snap))
	}))

	fmt.Println(banner(cfg, configPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if once {
		_, err := p.Run(ctx, models.TriggerStartup)
		return err
	}

	trigger, err := pipeline.NewTrigger(cfg.GetLogPath())
	if err != nil {
		return err
	}
	watcher, err := watch.New(trigger.Path(), func(path string) { trigger.Notify(path) })
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return watcher.Run(ctx) })
	g.Go(func() error { return pipeline.NewRunner(p, trigger, cfg.RefreshInterval()).Run(ctx) })

	// Background run history cleanup
	g.Go(func() error {
		interval := time.Duration(cfg.History.CleanupIntervalMinutes) * time.Minute
		if interval <= 0 {
			return nil
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				sessions.CleanupOldRuns(time.Duration(cfg.History.RetentionMinutes) * time.Minute)
			}
		}
	})

	if cfg.Server.Enabled {
		hub := api.NewHub()
		p.Observe(hub)
		e := newServer(cfg, api.NewHandler(sessions, store, cfg.Output.ImageName, Version), hub)

		s := &http.Server{
			Addr:         cfg.GetServerAddr(),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		}
		g.Go(func() error {
			if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	fmt.Println("Shutting down")
	return err
}

func newServer(cfg *config.AppConfig, h *api.Handler, hub *api.Hub) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareOptions{
		EnableCORS:     cfg.Server.EnableCORS,
		RequestTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		RequestLogging: cfg.Server.EnableRequestLogging,
	})
	api.RegisterRoutes(e, h, hub)

	if web.HasEmbeddedFiles() {
		if err := web.RegisterStaticRoutes(e); err != nil {
			fmt.Printf("Warning: failed to register static routes: %v\n", err)
		}
	}
	return e
}
