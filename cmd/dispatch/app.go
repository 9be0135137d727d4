package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"ride-dispatch/internal/general/clock"
	"ride-dispatch/internal/general/config"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/general/metrics"
	"ride-dispatch/internal/general/notify"
	"ride-dispatch/internal/general/postgres"
	"ride-dispatch/internal/general/rabbitmq"
	"ride-dispatch/internal/general/websocket"
	dispatchhandler "ride-dispatch/internal/software/dispatch/handler"
	dispatchservice "ride-dispatch/internal/software/dispatch/service"
	driverhandler "ride-dispatch/internal/software/driver/handler"
	driverservice "ride-dispatch/internal/software/driver/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// run wires the dispatch service and blocks until ctx is cancelled.
func run(ctx context.Context) error {
	log := logger.New("dispatch")
	ctx = log.WithRequestID(ctx, "startup-001")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		log.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	rmq, err := rabbitmq.Connect(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer rmq.Close()
	pub := rabbitmq.NewMQPublisher(rmq)

	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, 2*time.Hour)

	uow := postgres.NewUnitOfWork(pool)
	rideRepo := postgres.NewRideRepo()
	offerRepo := postgres.NewOfferRepo()
	driverRepo := postgres.NewDriverRepo()
	passengerRepo := postgres.NewPassengerRepo()

	ws := websocket.NewWebSocket(log, jwtManager)
	notifier := notify.New(log, pub, ws)
	sysClock := clock.NewSystem()
	timers := clock.NewTimers()

	dispatchSvc := dispatchservice.New(dispatchservice.Deps{
		Logger:     log,
		Cfg:        cfg,
		UoW:        uow,
		Rides:      rideRepo,
		Offers:     offerRepo,
		Drivers:    driverRepo,
		Passengers: passengerRepo,
		Notifier:   notifier,
		Clock:      sysClock,
		Scheduler:  timers,
	})
	driverSvc := driverservice.New(driverservice.Deps{
		Logger:     log,
		Cfg:        cfg,
		UoW:        uow,
		Rides:      rideRepo,
		Offers:     offerRepo,
		Drivers:    driverRepo,
		Passengers: passengerRepo,
		Notifier:   notifier,
		Clock:      sysClock,
	})

	// phase timers live in memory only; rebuild them from the store
	if *cfg.Dispatch.RecoveryOnStartup {
		if err := dispatchSvc.Recover(ctx); err != nil {
			log.Error(ctx, "recovery_failed", "Failed to recover searching rides", err, nil)
			return err
		}
	}

	mux := http.NewServeMux()
	dispatchhandler.NewDispatchHTTPHandler(dispatchSvc, log, jwtManager, ws).RegisterRoutes(mux)
	driverhandler.NewDriverHTTPHandler(driverSvc, log, jwtManager, ws).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, `{"status":"degraded"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	handler := metrics.HTTPMiddleware(mux)
	handler = withConcurrencyLimit(cfg.HTTP.MaxConcurrent, handler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	log.Info(ctx, "service_started",
		fmt.Sprintf("Dispatch service started on port %d", cfg.HTTP.Port),
		map[string]any{"port": cfg.HTTP.Port, "max_concurrent": cfg.HTTP.MaxConcurrent},
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info(ctx, "shutdown_started", "Graceful shutdown started", nil)
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		if err != nil {
			log.Error(ctx, "http_server_error", "HTTP server terminated with error", err,
				map[string]any{"port": cfg.HTTP.Port})
			return err
		}
	}

	return nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
