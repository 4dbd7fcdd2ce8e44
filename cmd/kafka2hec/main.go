package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Gunvolt24/kafka2hec/config"
	"github.com/Gunvolt24/kafka2hec/internal/app"
	"github.com/Gunvolt24/kafka2hec/internal/pool"
	"github.com/Gunvolt24/kafka2hec/pkg/logger"
)

func main() {
	_ = godotenv.Load(".env.local")

	configPath := flag.String("config", "kafka_consumer.yml", "путь к YAML-конфигу")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// SIGINT/SIGTERM останавливают и пул, и воркер.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Дочерний процесс пула запускается тем же бинарём и получает свой
	// номер через окружение.
	if id, ok := pool.WorkerID(); ok {
		os.Exit(runWorker(ctx, &cfg, id))
	}

	os.Exit(runPool(ctx, &cfg, *configPath))
}

func runWorker(ctx context.Context, cfg *config.Config, id int) int {
	appl, cleanup, err := app.Bootstrap(ctx, cfg, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker %d: bootstrap: %v\n", id, err)
		return 1
	}
	defer cleanup()

	if err := appl.Run(ctx); err != nil {
		return 1
	}
	return 0
}

func runPool(ctx context.Context, cfg *config.Config, configPath string) int {
	logg, cleanup, err := logger.NewZapLogger(cfg.Logging.Dev, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = cleanup() }()

	logg.Infof(ctx, "starting %d workers (topic=%s group=%s)",
		cfg.General.Workers, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup)

	p := pool.New(cfg.General.Workers, configPath, logg)
	if err := p.Run(ctx); err != nil {
		logg.Errorf(ctx, "pool stopped: %v", err)
		return 1
	}

	logg.Infof(ctx, "all workers stopped")
	return 0
}
