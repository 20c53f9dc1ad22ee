package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/slotbook/slotbook/libs/auth"
	"github.com/slotbook/slotbook/libs/config"
	"github.com/slotbook/slotbook/libs/grpcx"
	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/libs/locale"
	otelx "github.com/slotbook/slotbook/libs/otel"
	"github.com/slotbook/slotbook/libs/runtime"
	"github.com/slotbook/slotbook/services/appointment-service/internal/booking"
	"github.com/slotbook/slotbook/services/appointment-service/internal/clock"
	"github.com/slotbook/slotbook/services/appointment-service/internal/dispatch"
	"github.com/slotbook/slotbook/services/appointment-service/internal/handlers"
	"github.com/slotbook/slotbook/services/appointment-service/internal/notifications"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc/health"
)

func main() {
	if err := config.Load(config.String("CONFIG_FILE", "")); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "appointment-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9080")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	backend, err := openBackend(ctx, logger)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		panic(err)
	}
	defer backend.close()

	dispatcher := dispatch.New(backend.sink, logger, dispatch.Config{
		QueueSize: config.Int("DISPATCH_QUEUE_SIZE", 256),
		MaxTries:  uint(config.Int("DISPATCH_MAX_TRIES", 5)),
	})
	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(ctx))
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Run(dispatchCtx)
	}()
	for _, run := range backend.background {
		go run(ctx)
	}

	engine := booking.NewEngine(booking.Deps{
		Tx:            backend.tx,
		Directory:     backend.directory,
		Appointments:  backend.appointments,
		Notifications: backend.notifications,
		Jobs:          dispatcher,
		Clock:         clock.System{},
		Formatter:     locale.New(config.String("NOTICE_LOCALE", "pt"), nil),
		Logger:        logger,
	})
	notificationSvc := notifications.NewService(backend.notifications, backend.directory)

	router := handlers.NewRouter(
		auth.RequireUser(jwtSecret, nil),
		handlers.NewAppointmentHandler(engine, logger, config.String("FILES_BASE_URL", "http://localhost:"+port)),
		handlers.NewNotificationHandler(notificationSvc, logger),
	)
	mux := runtime.NewBaseMuxWithReady(backend.checks...)
	mux.Handle("/", router)

	httpHandler := httpx.Chain(mux,
		httpx.WithRecovery(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		rateLimit(ctx, logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Duration("HTTP_HANDLER_TIMEOUT", 15*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "appointments")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	hs := health.NewServer()
	grpcSrv := grpcx.NewServer(logger, hs)
	go grpcx.NewHealthReporter(hs, service, logger, 10*time.Second, backend.checks...).Run(ctx)

	go func() {
		lis, err := net.Listen("tcp", ":"+grpcPort)
		if err != nil {
			logger.Error("grpc listen failed", "err", err)
			return
		}
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	runtime.Serve(ctx, srv, 10*time.Second, logger)
	grpcSrv.GracefulStop()

	// Requests are drained; flush the jobs they queued.
	stopDispatch()
	<-dispatchDone
	logger.Info("servers stopped", "pending_jobs", dispatcher.Pending())
}
