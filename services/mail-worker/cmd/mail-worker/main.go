package main

import (
	"context"
	"net/http"
	"time"

	"github.com/slotbook/slotbook/libs/config"
	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/libs/kafkax"
	otelx "github.com/slotbook/slotbook/libs/otel"
	"github.com/slotbook/slotbook/libs/runtime"
	"github.com/slotbook/slotbook/services/mail-worker/internal/consumer"
	"github.com/slotbook/slotbook/services/mail-worker/internal/email"
	"github.com/slotbook/slotbook/services/mail-worker/internal/inbox"
	"github.com/slotbook/slotbook/services/mail-worker/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.Load(config.String("CONFIG_FILE", "")); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "mail-worker")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	brokers, err := config.RequiredString("KAFKA_BROKERS")
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

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()
	if config.Bool("DB_MIGRATE", true) {
		if err := db.Migrate(ctx, pool, migrations.FS); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
	}

	loc, err := time.LoadLocation(config.String("MAIL_TIMEZONE", "UTC"))
	if err != nil {
		logger.Warn("unknown MAIL_TIMEZONE, using UTC", "err", err)
		loc = time.UTC
	}
	sender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@slotbook.local"),
		logger,
	)
	mailer := email.NewCancellationMailer(sender, config.String("MAIL_LOCALE", "pt"), loc, logger)

	reader := consumer.NewReader(consumer.Config{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", "mail-worker"),
		Topic:   config.String("KAFKA_CONSUME_TOPIC", "appointment.cancellation.requested.v1"),
	})
	worker := consumer.New(logger, reader, inbox.NewRepository(pool), mailer.Handle)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler, "mail-worker"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	runtime.Serve(ctx, srv, 10*time.Second, logger)
	<-workerDone
	logger.Info("mail worker stopped")
}
