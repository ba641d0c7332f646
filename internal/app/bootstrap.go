package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Gunvolt24/leasepull/config"
	cachemem "github.com/Gunvolt24/leasepull/internal/cache/memory"
	"github.com/Gunvolt24/leasepull/internal/consumer"
	"github.com/Gunvolt24/leasepull/internal/handler"
	"github.com/Gunvolt24/leasepull/internal/journal"
	"github.com/Gunvolt24/leasepull/internal/kafka"
	"github.com/Gunvolt24/leasepull/internal/ports"
	"github.com/Gunvolt24/leasepull/internal/push"
	"github.com/Gunvolt24/leasepull/internal/push/mqtt"
	"github.com/Gunvolt24/leasepull/internal/repo/postgres"
	rest "github.com/Gunvolt24/leasepull/internal/transport/http"
	"github.com/Gunvolt24/leasepull/internal/usecase"
	"github.com/Gunvolt24/leasepull/pkg/logger"
	"github.com/Gunvolt24/leasepull/pkg/metrics"
	"github.com/Gunvolt24/leasepull/pkg/telemetry"
)

// PushSource — подписка, которая сама вызывает обработку (MQTT).
type PushSource interface {
	Start(ctx context.Context) error
	Stop()
}

// BackgroundRunner — фоновый процесс с явным закрытием (sink журнала из Kafka).
type BackgroundRunner interface {
	Run(ctx context.Context) error
	Close() error
}

// App — собранное приложение и его внешние интерфейсы (HTTP, циклы потребления, push, sink).
type App struct {
	Logger          ports.Logger          // логгер
	HTTPServer      *http.Server          // HTTP-сервер
	MetricsServer   *http.Server          // отдельный сервер /metrics (может быть nil)
	Consumer        ports.MessageConsumer // pull-циклы
	Push            PushSource            // push-подписка (может быть nil)
	Sink            BackgroundRunner      // проекция журнала Kafka → Postgres (может быть nil)
	gracefulTimeout time.Duration         // время ожидания завершения HTTP-серверов
	drainTimeout    time.Duration         // время ожидания начатых батчей (не меньше gracefulTimeout)
}

// Cleanup — функция освобождения ресурсов.
type Cleanup func()

// applyGinMode — устанавливает режим Gin по строке;
// неизвестное значение → debug и предупреждение в лог.
func applyGinMode(ctx context.Context, mode string, log ports.Logger) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	case "", "debug":
		gin.SetMode(gin.DebugMode)
	default:
		gin.SetMode(gin.DebugMode)
		log.Warnf(ctx, "unknown GIN_MODE=%q, fallback to debug", mode)
	}
}

// Bootstrap — собирает зависимости и возвращает приложение, функцию очистки и ошибку.
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, Cleanup, error) {
	// Логгер (dev/prod режим задаётся конфигурацией).
	logg, cleanupLogger, err := logger.NewZapLogger(cfg.Logger.IsProd)
	if err != nil {
		return nil, func() {}, err
	}

	// Освобождение в обратном порядке; наполняется по мере сборки.
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		if cerr := cleanupLogger(); cerr != nil {
			logg.Warnf(ctx, "cleanup logger: %v", cerr)
		}
	}
	fail := func(err error) (*App, Cleanup, error) {
		cleanup()
		return nil, func() {}, err
	}

	// Регистрация метрик (Prometheus).
	metrics.MustRegister()

	// Трейсинг OTEL (при включённой конфигурации); по умолчанию — no-op.
	if cfg.Tracing.Enabled {
		shutdownTrace, tErr := telemetry.SetupTracing(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.SampleRatio)
		if tErr != nil {
			logg.Warnf(ctx, "failed to setup tracing: %v", tErr)
		} else {
			logg.Infof(ctx, "otel tracing enabled service=%s endpoint=%s sample=%.2f",
				cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.SampleRatio)
			closers = append(closers, func() {
				if terr := shutdownTrace(context.Background()); terr != nil {
					logg.Warnf(ctx, "shutdown tracing: %v", terr)
				}
			})
		}
	}

	// История доставок в Postgres (чтение для HTTP и, без Kafka, прямая запись).
	var history *usecase.HistoryService
	if pc := cfg.Journal.Postgres; pc.Enabled {
		if pc.Migrate {
			if mErr := postgres.Migrate(ctx, pc.DSN, pc.MigrationsDir); mErr != nil {
				return fail(mErr)
			}
			logg.Infof(ctx, "postgres migrations applied dir=%s", pc.MigrationsDir)
		}
		pool, pErr := postgres.NewPool(ctx, pc.DSN, pc.MaxConns)
		if pErr != nil {
			return fail(pErr)
		}
		closers = append(closers, pool.Close)

		historyCache := cachemem.NewLRUCacheTTL(cfg.Cache.Capacity, cfg.Cache.TTL)
		history = usecase.NewHistoryService(postgres.NewHistoryRepository(pool), historyCache, logg)

		// Прогрев кэша
		if n := cfg.Cache.WarmUpN; n > 0 {
			if wErr := history.WarmUpCache(ctx, n); wErr != nil {
				logg.Warnf(ctx, "warm-up cache failed: %v", wErr)
			}
		}
	}

	// Журнал доставок: Kafka (тогда в Postgres пишет sink) или напрямую Postgres.
	var journals journal.Multi
	var sink BackgroundRunner
	if kc := cfg.Journal.Kafka; kc.Enabled {
		kj, kErr := journal.NewKafkaJournal(&journal.KafkaConfig{
			Brokers:      kc.Brokers,
			Topic:        kc.Topic,
			BatchTimeout: kc.BatchTimeout,
			BatchSize:    kc.BatchSize,
			RequiredAcks: kc.RequiredAcks,
		})
		if kErr != nil {
			return fail(kErr)
		}
		closers = append(closers, func() {
			if cErr := kj.Close(); cErr != nil {
				logg.Warnf(ctx, "kafka journal close: %v", cErr)
			}
		})
		journals = append(journals, kj)

		if history != nil {
			sink = kafka.NewConsumer(&kafka.ConsumerConfig{
				Brokers:        kc.Brokers,
				Topic:          kc.Topic,
				GroupID:        kc.GroupID,
				StartOffset:    kc.StartOffset,
				MaxWait:        kc.MaxWait,
				ProcessTimeout: kc.ProcessTimeout,
				RetryInitial:   kc.RetryInitial,
				RetryMax:       kc.RetryMax,
			}, history, logg)
		}
	} else if history != nil {
		journals = append(journals, history)
	}

	var opts []consumer.Option
	switch len(journals) {
	case 0:
	case 1:
		opts = append(opts, consumer.WithJournal(journals[0]))
	default:
		opts = append(opts, consumer.WithJournal(journals))
	}

	// Брокер и pull-циклы.
	loopsN := max(1, cfg.Consumer.Loops)
	brokers, closeBroker, err := newBrokers(ctx, cfg, loopsN, logg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeBroker)

	msgHandler := handler.NewDemo(cfg.Handler.Work, cfg.Handler.FailMarker, logg)

	loops := make([]*consumer.Loop, 0, loopsN)
	for i := 0; i < loopsN; i++ {
		loopCfg := consumerConfig(&cfg.Consumer, loopName(cfg.Consumer.Name, i, loopsN))
		l, lErr := consumer.New(brokers[i], msgHandler, loopCfg, logg, opts...)
		if lErr != nil {
			return fail(lErr)
		}
		loops = append(loops, l)
	}
	group := consumer.NewGroup(loops...)
	stats := statsSet{group}

	// Push-режим (MQTT) с той же логикой аренды и подтверждения.
	var pushSrc PushSource
	if mc := cfg.MQTT; mc.Enabled {
		disp, dErr := push.NewDispatcher(msgHandler, consumerConfig(&cfg.Consumer, cfg.Consumer.Name+"-push"), logg, opts...)
		if dErr != nil {
			return fail(dErr)
		}
		sub, sErr := mqtt.NewSubscriber(mqtt.Config{
			Broker:         mc.Broker,
			ClientID:       mc.ClientID,
			Topic:          mc.Topic,
			QoS:            mc.QoS,
			ConnectTimeout: mc.ConnectTimeout,
		}, disp, logg)
		if sErr != nil {
			return fail(sErr)
		}
		pushSrc = sub
		stats = append(stats, disp)
		// Дозапись журнала push-исходов до закрытия журналов (closers идут в обратном порядке).
		closers = append(closers, func() {
			fctx, fcancel := context.WithTimeout(context.Background(), max(cfg.Consumer.AckTimeout, time.Second))
			defer fcancel()
			if cErr := disp.Close(fctx); cErr != nil {
				logg.Warnf(ctx, "push journal not flushed: %v", cErr)
			}
		})
	}

	// Режим Gin.
	applyGinMode(ctx, cfg.HTTP.GinMode, logg)

	// Имя сервиса для otelgin (только при включённом трейсинге).
	otelServiceName := ""
	if cfg.Tracing.Enabled {
		otelServiceName = cfg.Tracing.ServiceName
	}

	// Роутер и HTTP-сервер.
	var historyReader ports.HistoryReadService
	if history != nil {
		historyReader = history
	}
	httpHandler := rest.NewHandler(historyReader, stats, logg, cfg.HTTP.HandlerTimeout)
	router := rest.NewRouter(httpHandler, otelServiceName)

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" && cfg.Metrics.Addr != cfg.HTTP.Addr {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout}
	}

	app := &App{
		Logger:          logg,
		HTTPServer:      httpSrv,
		MetricsServer:   metricsSrv,
		Consumer:        group,
		Push:            pushSrc,
		Sink:            sink,
		gracefulTimeout: cfg.HTTP.GracefulTimeout,
		drainTimeout:    drainTimeout(cfg),
	}

	return app, cleanup, nil
}

// drainTimeout — начатый батч живёт не дольше аренды; сверху последний ack и дозапись журнала.
// Брокер закрывается в cleanup только после этого ожидания.
func drainTimeout(cfg *config.Config) time.Duration {
	c := cfg.Consumer
	return max(cfg.HTTP.GracefulTimeout, c.InvisibilityDuration+2*c.AckTimeout)
}

// Run — запускает циклы, push-подписку, sink и HTTP; ждёт отмены контекста или ошибки и останавливает их.
// Циклы останавливаются мягко: начатые батчи дорабатываются в пределах drainTimeout.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 4)

	// Запуск циклов потребления.
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		a.Logger.Infof(ctx, "consumption loops starting")
		if err := a.Consumer.Run(runCtx); err != nil {
			errCh <- err
		}
	}()

	// Push-подписка: недоступность брокера не роняет процесс.
	if a.Push != nil {
		if err := a.Push.Start(runCtx); err != nil {
			a.Logger.Errorf(ctx, "push subscription failed: %v", err)
		}
	}

	// Проекция журнала.
	sinkDone := make(chan struct{})
	if a.Sink != nil {
		go func() {
			defer close(sinkDone)
			if err := a.Sink.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Warnf(ctx, "journal sink stopped: %v", err)
			}
		}()
	} else {
		close(sinkDone)
	}

	// Запуск HTTP-серверов.
	for _, srv := range []*http.Server{a.HTTPServer, a.MetricsServer} {
		if srv == nil {
			continue
		}
		srv := srv
		go func() {
			a.Logger.Infof(ctx, "http server starting (addr=%s)", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	// Ожидание сигнала остановки или фоновой ошибки.
	select {
	case <-ctx.Done():
		a.Logger.Infof(ctx, "shutdown requested, starting graceful shutdown")
	case err := <-errCh:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			a.Logger.Infof(ctx, "background component stopped: %v", err)
		} else {
			a.Logger.Warnf(ctx, "background error: %v", err)
		}
	}

	gt := a.gracefulTimeout
	if gt <= 0 {
		gt = 5 * time.Second
	}
	dt := max(a.drainTimeout, gt)

	// Сначала перестаём принимать новые сообщения, затем ждём начатые батчи.
	if a.Push != nil {
		a.Push.Stop()
	}
	a.Consumer.Stop()
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), dt)
	select {
	case <-consumerDone:
		a.Logger.Infof(ctx, "consumption loops stopped")
	case <-drainCtx.Done():
		a.Logger.Warnf(ctx, "consumption loops did not stop within %s", dt)
	}
	cancelDrain()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), gt)
	defer cancelShutdown()

	// Корректная остановка HTTP-серверов.
	for _, srv := range []*http.Server{a.HTTPServer, a.MetricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warnf(ctx, "http server shutdown failed addr=%s: %v", srv.Addr, err)
		} else {
			a.Logger.Infof(ctx, "http server stopped gracefully addr=%s", srv.Addr)
		}
	}

	// Остановка sink
	cancel()
	if a.Sink != nil {
		<-sinkDone
		if err := a.Sink.Close(); err != nil {
			a.Logger.Warnf(ctx, "journal sink close error: %v", err)
		}
	}

	a.Logger.Infof(ctx, "service stopped")
	return nil
}
