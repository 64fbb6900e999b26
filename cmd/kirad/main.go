package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/kira-labs/orchestrator/agent"
	"github.com/kira-labs/orchestrator/inference"
	"github.com/kira-labs/orchestrator/observability"
	"github.com/kira-labs/orchestrator/orchestrator"
	"github.com/kira-labs/orchestrator/pipeline"
	"github.com/kira-labs/orchestrator/schedule"
	"github.com/kira-labs/orchestrator/server"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to config JSON file (optional)")
		addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
		agentURL   = flag.String("agent-url", "", "Agent execution service base URL (overrides config)")
		production = flag.Bool("production", false, "Run with production envelope policy")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	cfg := orchestrator.DefaultConfig()
	if *configFile != "" {
		loaded, err := orchestrator.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}

	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *agentURL != "" {
		cfg.AgentServiceURL = *agentURL
	}
	if *production {
		cfg.Production = true
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	observer := observability.NewSlogObserver(logger)

	invoker := agent.NewInvoker(cfg.AgentServiceURL, agent.DefaultRegistry(),
		agent.WithObserver(observer))
	store := schedule.NewStore()
	coordinator := pipeline.NewCoordinator(invoker, store, pipeline.WithObserver(observer))

	engine := inference.NewCannedEngine()

	orch := orchestrator.New(&cfg, engine,
		orchestrator.WithObserver(observer),
		orchestrator.WithPipeline(coordinator))

	srv := server.New(coordinator, invoker, store, orch, orch, cfg.DefaultUser)

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		logger.Info("starting orchestrator", "addr", cfg.ListenAddr, "agent_service", cfg.AgentServiceURL, "production", cfg.Production)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown failed: %v", err)
	}
}
