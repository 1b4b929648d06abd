package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appbooking "github.com/Zhima-Mochi/krishi-prebook/internal/application/booking"
	appcart "github.com/Zhima-Mochi/krishi-prebook/internal/application/cart"
	appcatalog "github.com/Zhima-Mochi/krishi-prebook/internal/application/catalog"
	appidentity "github.com/Zhima-Mochi/krishi-prebook/internal/application/identity"
	domcart "github.com/Zhima-Mochi/krishi-prebook/internal/domain/cart"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/amqprelay"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/config"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/id"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/mirror"
	infraobs "github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/password"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/redismirror"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability"
	httppresentation "github.com/Zhima-Mochi/krishi-prebook/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/krishi-prebook/internal/presentation/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	zl, err := zaplogger.New(zaplogger.Options{Service: cfg.ServiceName, Env: cfg.Env, LogFile: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()
	systemLogger := zl.With(observability.F("trace_id", "system"), observability.F("span_id", "system"))

	shutdownTracing, err := oteltrace.InstallProvider(oteltrace.ProviderOptions{
		ServiceName: cfg.ServiceName,
		Env:         cfg.Env,
		Stdout:      cfg.OTelStdout,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	metrics, err := prometrics.New(prometheus.DefaultRegisterer, "").Register()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	tel := infraobs.New(oteltrace.New(cfg.ServiceName), zl, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Reference data and repositories
	offices, err := config.LoadOffices(cfg.OfficesFile)
	if err != nil {
		return err
	}
	officeDir := memory.NewOfficeDirectory(offices)
	products := memory.NewCatalogRepository()
	seed, err := config.LoadSeed(cfg.SeedFile)
	if err != nil {
		return err
	}
	for _, p := range seed {
		if err := products.Create(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	bookings := memory.NewBookingRepository()
	users := memory.NewUserRepository()
	sessions := memory.NewSessionStore()
	ids := id.NewUUIDGenerator()

	// Event bus, optionally relayed to RabbitMQ
	bus := outbox.NewBus(zl)
	if cfg.AMQPURL != "" {
		conn, ch, err := amqprelay.Dial(ctx, cfg.AMQPURL, cfg.AMQPExchange, systemLogger)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close() }()
		relay := amqprelay.New(ch, cfg.AMQPExchange, tel)
		for _, name := range amqprelay.Events {
			bus.Subscribe(name, workerpresentation.WithEventLogging(zl, "amqp_relay", relay.Handle))
		}
		systemLogger.Info("amqp_relay_enabled", observability.F("exchange", cfg.AMQPExchange))
	}

	// Cart mirror: Redis when configured, in process otherwise
	var remote domcart.Mirror = memory.NewCartMirror()
	if cfg.RedisURL != "" {
		client, err := redismirror.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		remote = redismirror.New(client, redismirror.Options{})
		systemLogger.Info("redis_cart_mirror_enabled")
	}
	retry := mirror.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MirrorMaxAttempts
	mirrorQueue := mirror.NewQueue(remote, cfg.MirrorQueueSize, retry, tel)

	// Application services
	catalogSvc := appcatalog.NewService(products, officeDir, ids, tel)
	cartSvc := appcart.NewService(products, officeDir, mirrorQueue, tel)
	mirrorQueue.OnFailure(cartSvc.HandleMirrorFailure)
	identitySvc := appidentity.NewService(users, sessions, password.NewBcryptHasher(0), ids, tel)
	confirmUC := appbooking.NewConfirmBookingUseCase(products, officeDir, bookings, ids, bus, tel)
	statusSvc := appbooking.NewStatusService(bookings, products, bus, tel)

	sweeper := workerpresentation.NewExpirySweeper(statusSvc, cfg.ExpirySweepInterval, tel)

	bus.Start(ctx)
	mirrorQueue.Start(ctx)
	sweeper.Start(ctx)

	handler := httppresentation.NewHandler(httppresentation.Services{
		Identity: identitySvc,
		Catalog:  catalogSvc,
		Cart:     cartSvc,
		Confirm:  confirmUC,
		Bookings: statusSvc,
	}, promhttp.Handler(), tel)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("offices", len(offices)),
			observability.F("seeded_products", len(seed)),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error", observability.F("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		systemLogger.Info("http_server_stopped")
	}
	sweeper.Stop(shutdownCtx)
	mirrorQueue.Stop(shutdownCtx)
	bus.Stop(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		systemLogger.Warn("tracer_shutdown_error", observability.F("error", err.Error()))
	}
	return nil
}
