// Command dosecored is the dose lifecycle engine's entrypoint: it wires
// config, store, dose engine, sweeper, notification drainer, and the HTTP
// API together and runs until SIGINT/SIGTERM, grounded on the teacher's
// cmd/goclawde main's construction order and shutdown sequence.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dosecore/backend/internal/api"
	"github.com/dosecore/backend/internal/clock"
	"github.com/dosecore/backend/internal/config"
	"github.com/dosecore/backend/internal/dose"
	"github.com/dosecore/backend/internal/metrics"
	"github.com/dosecore/backend/internal/notify"
	"github.com/dosecore/backend/internal/store"
	"github.com/dosecore/backend/internal/sweeper"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	version    = "dev"
)

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting dosecored", zap.String("version", version))

	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	st, err := store.New(cfg)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	m := metrics.New()
	c := clock.Real()
	engine := dose.New(st, c, m)
	sw := sweeper.New(st, c, engine, logger, cfg.Sweeper.Period(), m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sw.Start(ctx); err != nil {
		logger.Fatal("failed to start sweeper", zap.Error(err))
	}

	drainer := notify.NewDrainer(st, notify.NewLogNotifier(logger), logger, 5*time.Second)
	drainer.Start(ctx)

	server := api.New(cfg, st, sw, logger, m)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
		if err := server.App().Listen(addr); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("dosecored started",
		zap.String("address", cfg.Server.Address),
		zap.Int("port", cfg.Server.Port),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	cancel()
	drainer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}
