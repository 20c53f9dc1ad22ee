package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slotbook/slotbook/libs/config"
	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/libs/kafkax"
	"github.com/slotbook/slotbook/libs/runtime"
	"github.com/slotbook/slotbook/services/appointment-service/internal/booking"
	"github.com/slotbook/slotbook/services/appointment-service/internal/dispatch"
	"github.com/slotbook/slotbook/services/appointment-service/internal/notifications"
	"github.com/slotbook/slotbook/services/appointment-service/internal/outbox"
	"github.com/slotbook/slotbook/services/appointment-service/internal/storage"
	"github.com/slotbook/slotbook/services/appointment-service/internal/storage/sqlite"
	"github.com/slotbook/slotbook/services/appointment-service/migrations"
)

type notificationStore interface {
	booking.NotificationWriter
	notifications.Store
}

// backend is one storage driver with everything wired on top of it.
type backend struct {
	tx            booking.Transactor
	directory     booking.Directory
	appointments  booking.AppointmentRepository
	notifications notificationStore
	sink          dispatch.Sink
	checks        []runtime.ReadyCheck
	background    []func(context.Context)
	close         func()
}

func openBackend(ctx context.Context, logger *slog.Logger) (*backend, error) {
	brokers := config.String("KAFKA_BROKERS", "")
	switch driver := strings.ToLower(config.String("STORAGE_DRIVER", "postgres")); driver {
	case "postgres":
		return openPostgres(ctx, logger, brokers)
	case "sqlite":
		return openSQLite(logger, brokers)
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", driver)
	}
}

func openPostgres(ctx context.Context, logger *slog.Logger, brokers string) (*backend, error) {
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("db connection failed: %w", err)
	}
	if config.Bool("DB_MIGRATE", true) {
		if err := db.Migrate(ctx, pool, migrations.FS); err != nil {
			pool.Close()
			return nil, err
		}
	}

	outboxRepo := outbox.NewRepository(pool)
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if len(kafkax.SplitBrokers(brokers)) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	return &backend{
		tx:            pool,
		directory:     storage.NewDirectory(pool),
		appointments:  storage.NewAppointmentRepository(pool),
		notifications: storage.NewNotificationRepository(pool),
		sink:          dispatch.NewOutboxSink(outboxRepo),
		checks:        checks,
		background:    []func(context.Context){publisher.Run},
		close:         pool.Close,
	}, nil
}

// openSQLite has no outbox table, so jobs go straight to Kafka, or only to
// the log when no broker is configured.
func openSQLite(logger *slog.Logger, brokers string) (*backend, error) {
	store, err := sqlite.Open(config.String("SQLITE_PATH", "slotbook.db"))
	if err != nil {
		return nil, err
	}

	b := &backend{
		tx:            store,
		directory:     store.Directory(),
		appointments:  store.Appointments(),
		notifications: store.Notifications(),
		checks:        []runtime.ReadyCheck{{Name: "db", Check: store.Ping}},
	}
	if list := kafkax.SplitBrokers(brokers); len(list) > 0 {
		writer := dispatch.NewKafkaWriter(list)
		b.sink = dispatch.NewKafkaSink(writer)
		b.checks = append(b.checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		b.close = func() {
			_ = writer.Close()
			_ = store.Close()
		}
	} else {
		logger.Warn("no kafka brokers configured; cancellation jobs are only logged")
		b.sink = dispatch.NewLogSink(logger)
		b.close = func() { _ = store.Close() }
	}
	return b, nil
}
