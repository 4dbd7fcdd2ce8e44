// Package app — сборка одного процесса-воркера.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gunvolt24/kafka2hec/config"
	"github.com/Gunvolt24/kafka2hec/internal/bridge"
	"github.com/Gunvolt24/kafka2hec/internal/hec"
	"github.com/Gunvolt24/kafka2hec/internal/kafka"
	"github.com/Gunvolt24/kafka2hec/internal/ports"
	"github.com/Gunvolt24/kafka2hec/internal/retry"
	rest "github.com/Gunvolt24/kafka2hec/internal/transport/http"
	"github.com/Gunvolt24/kafka2hec/pkg/logger"
	"github.com/Gunvolt24/kafka2hec/pkg/metrics"
	"github.com/Gunvolt24/kafka2hec/pkg/telemetry"
)

// SessionRunner — контракт сессии для App (подменяется в тестах).
type SessionRunner interface {
	Run(ctx context.Context) error
	State() bridge.State
}

// App — собранный воркер: сессия моста и служебный HTTP-сервер.
type App struct {
	Logger    ports.Logger
	Session   SessionRunner
	OpsServer *http.Server // nil — метрики выключены
	WorkerID  int
}

// Cleanup — функция освобождения ресурсов.
type Cleanup func()

// Bootstrap собирает зависимости воркера: логгер, метрики, трейсинг,
// HEC-клиент, планировщик повторов, источник Kafka и сессию.
func Bootstrap(ctx context.Context, cfg *config.Config, workerID int) (*App, Cleanup, error) {
	logg, cleanupLogger, err := logger.NewZapLogger(cfg.Logging.Dev, cfg.Logging.Level)
	if err != nil {
		return nil, func() {}, err
	}

	metrics.MustRegister()

	// Трейсинг OTEL (при включённой конфигурации); по умолчанию — no-op.
	shutdownTrace := func(context.Context) error { return nil }
	if cfg.Tracing.Enabled {
		setup, tErr := telemetry.SetupTracing(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.SampleRatio)
		if tErr != nil {
			logg.Warnf(ctx, "failed to setup tracing: %v", tErr)
		} else {
			logg.Infof(ctx, "otel tracing enabled service=%s endpoint=%s sample=%.2f",
				cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.SampleRatio)
			shutdownTrace = setup
		}
	}

	// Поля старых конфигов, которые здесь ничего не включают.
	if cfg.Kafka.ZookeeperServer != "" {
		logg.Infof(ctx, "zookeeper_server=%s accepted for compatibility: group coordination goes through brokers",
			cfg.Kafka.ZookeeperServer)
	}
	if cfg.Kafka.UseNativeClient {
		logg.Infof(ctx, "use_native_client accepted for compatibility and has no effect")
	}

	// Сборка конвейера: источник → накопитель/сессия → HEC.
	sender := hec.NewClient(hec.Config{
		Host:       cfg.HEC.Host,
		Port:       cfg.HEC.Port,
		Scheme:     cfg.HEC.Scheme,
		Channel:    cfg.HEC.Channel,
		Token:      cfg.HEC.Token,
		SourceType: cfg.HEC.SourceType,
		Source:     cfg.HEC.Source,
		Timeout:    cfg.HEC.Timeout,
	})

	sched := retry.NewScheduler(retry.Policy{
		Attempts: cfg.Network.RetryAttempts,
		Sleep:    cfg.Network.SleepTime,
		MaxSleep: cfg.Network.MaxSleepTime,
		Scale:    cfg.Network.SleepScale,
		Jitter:   cfg.Network.Jitter,
	}, logg)

	opener := kafka.NewOpener(&kafka.SourceConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		GroupID:     cfg.Kafka.ConsumerGroup,
		StartOffset: cfg.Kafka.StartOffset,
	}, logg)

	session := bridge.NewSession(opener, sender, sched, cfg.General.BatchSize, cfg.Kafka.Topic, logg)

	// Служебный HTTP-сервер; воркеры делят хост, поэтому порт сдвигается
	// на номер воркера.
	var opsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		addr, aErr := offsetAddr(cfg.Metrics.Addr, workerID)
		if aErr != nil {
			_ = cleanupLogger()
			return nil, func() {}, aErr
		}

		if !cfg.Logging.Dev {
			gin.SetMode(gin.ReleaseMode)
		}

		otelServiceName := ""
		if cfg.Tracing.Enabled {
			otelServiceName = cfg.Tracing.ServiceName
		}

		router := rest.NewRouter(logg, otelServiceName, func() string { return session.State().String() })
		opsSrv = &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	appl := &App{
		Logger:    logg,
		Session:   session,
		OpsServer: opsSrv,
		WorkerID:  workerID,
	}

	cleanup := func() {
		if terr := shutdownTrace(context.Background()); terr != nil {
			logg.Warnf(ctx, "shutdown tracing: %v", terr)
		}
		if cerr := cleanupLogger(); cerr != nil {
			logg.Warnf(ctx, "cleanup logger: %v", cerr)
		}
	}

	return appl, cleanup, nil
}

// offsetAddr сдвигает порт адреса на id воркера.
func offsetAddr(addr string, id int) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("metrics addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", fmt.Errorf("metrics addr %q: %w", addr, err)
	}
	return net.JoinHostPort(host, strconv.Itoa(port+id)), nil
}

// Run — запускает сессию и служебный сервер; ждёт отмены контекста или
// фатальной ошибки сессии. Не доставленный в момент остановки батч будет
// перечитан следующей сессией группы: его оффсеты не коммитились.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.Logger.Infof(ctx, "worker %d: consumer session starting", a.WorkerID)
		errCh <- a.Session.Run(ctx)
	}()

	if a.OpsServer != nil {
		go func() {
			a.Logger.Infof(ctx, "worker %d: ops server starting (addr=%s)", a.WorkerID, a.OpsServer.Addr)
			if err := a.OpsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.Logger.Infof(ctx, "worker %d: shutdown requested", a.WorkerID)
	case err := <-errCh:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			a.Logger.Infof(ctx, "worker %d: session stopped: %v", a.WorkerID, err)
		} else {
			a.Logger.Errorf(ctx, "worker %d: fatal: %v", a.WorkerID, err)
			runErr = err
		}
	}

	if a.OpsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.OpsServer.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warnf(ctx, "ops server shutdown failed: %v", err)
		}
	}

	a.Logger.Infof(ctx, "worker %d stopped (session=%s)", a.WorkerID, a.Session.State())
	return runErr
}
