package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/osamabinlikhon/xfce-desktop/pkg/config"
	"github.com/osamabinlikhon/xfce-desktop/pkg/desktop"
	"github.com/osamabinlikhon/xfce-desktop/pkg/httpapi"
	"github.com/osamabinlikhon/xfce-desktop/pkg/observe"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the desktop pipeline and the status HTTP server",
	Long: `Start the orchestrator: reap any stale instances, launch Xvfb, the Xfce
session, x11vnc and websockify in order, and serve the status endpoint.

The HTTP server accepts connections immediately; /api/status reports a
partially-ready snapshot while the pipeline is still coming up.

Example:
  xfce-desktop serve
  xfce-desktop serve --listen :7860 --resolution 1920x1080 --vnc-port 5901
`,
	RunE: runServe,
}

func init() {
	config.SetDefaults()

	serveCmd.Flags().String("listen", ":7860", "HTTP listen address")
	serveCmd.Flags().String("resolution", "1280x720", "Screen resolution (WIDTHxHEIGHT)")
	serveCmd.Flags().String("display", ":1", "X display identifier")
	serveCmd.Flags().IntP("vnc-port", "p", 5900, "VNC server port")
	serveCmd.Flags().Int("websockify-port", 6080, "websockify (noVNC bridge) port")
	serveCmd.Flags().String("novnc-dir", "/home/user/novnc", "Directory with the noVNC client files")
	serveCmd.Flags().String("role-manifest", "", "Optional YAML file overriding role specs")
	serveCmd.Flags().Bool("metrics", true, "Expose prometheus metrics on /metrics")
	serveCmd.Flags().Bool("tracing", false, "Enable OpenTelemetry tracing (stdout exporter)")

	viper.BindPFlag("http.listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("desktop.resolution", serveCmd.Flags().Lookup("resolution"))
	viper.BindPFlag("desktop.display", serveCmd.Flags().Lookup("display"))
	viper.BindPFlag("vnc.port", serveCmd.Flags().Lookup("vnc-port"))
	viper.BindPFlag("bridge.port", serveCmd.Flags().Lookup("websockify-port"))
	viper.BindPFlag("bridge.web_dir", serveCmd.Flags().Lookup("novnc-dir"))
	viper.BindPFlag("desktop.manifest", serveCmd.Flags().Lookup("role-manifest"))
	viper.BindPFlag("observe.metrics", serveCmd.Flags().Lookup("metrics"))
	viper.BindPFlag("observe.tracing", serveCmd.Flags().Lookup("tracing"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	observe.InitLogging()
	log := slog.Default().With("component", "serve")

	// A malformed resolution or port would poison every dependent
	// role's spec, so configuration errors are fatal before any
	// process is touched.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs := observe.NewManager(&observe.Config{
		ServiceName:    "xfce-desktop",
		ServiceVersion: version,
		EnableTracing:  cfg.TracingEnabled,
	})
	if err := obs.Init(ctx); err != nil {
		return err
	}
	defer obs.Shutdown(context.Background())

	specs := desktop.BuildSpecs(cfg)
	if cfg.ManifestPath != "" {
		manifest, err := desktop.LoadManifest(cfg.ManifestPath)
		if err != nil {
			return err
		}
		if specs, err = manifest.Apply(specs); err != nil {
			return err
		}
		log.Info("applied role manifest", "path", cfg.ManifestPath)
	}

	metrics := desktop.NopMetrics()
	var gatherer prometheus.Gatherer
	if cfg.MetricsEnabled {
		pm := desktop.NewPrometheusMetrics("desktop")
		metrics = pm
		gatherer = pm.Registry()
	}

	sup := desktop.NewSupervisor(specs,
		desktop.WithMetrics(metrics),
		desktop.WithLogger(slog.Default().With("component", "supervisor")),
		desktop.WithTracer(obs.Tracer("desktop")),
	)
	prober := sup.Prober()

	httpServer := httpapi.NewServer(prober, httpapi.Options{
		Listen:   cfg.HTTPListen,
		NovncDir: cfg.NovncDir,
		Gatherer: gatherer,
		Logger:   slog.Default().With("component", "http"),
	})

	// Serving starts before bootstrap: the status resource is
	// well-defined for the not-yet-ready state.
	httpServer.Start()

	go func() {
		if err := sup.Bootstrap(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("bootstrap failed", "error", err)
			return
		}

		// Readiness confirmation is diagnostics only; nothing waits
		// on it.
		readyCtx, readyCancel := context.WithTimeout(ctx, time.Minute)
		defer readyCancel()
		if err := prober.WaitReady(readyCtx, 2*time.Second); err == nil {
			log.Info("desktop environment ready")
		} else if !errors.Is(err, context.Canceled) {
			log.Warn("desktop not ready after bootstrap", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("received shutdown signal", "signal", sig.String())

	// Cancel interrupts a still-running bootstrap; already-spawned
	// desktop processes keep running on their own.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}

	return nil
}
