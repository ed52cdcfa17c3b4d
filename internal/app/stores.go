package app

import (
	"context"
	"log/slog"

	"github.com/newrelic/go-agent/v3/newrelic"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"fixitnow/internal/config"
	"fixitnow/internal/repository"
	"fixitnow/internal/repository/memory"
	mongorepo "fixitnow/internal/repository/mongo"
	"fixitnow/internal/repository/postgres"
)

// Stores groups the repositories selected by DB_DRIVER.
type Stores struct {
	Bookings      repository.BookingRepository
	Users         repository.UserRepository
	Notifications repository.NotificationRepository
	Health        map[string]HealthCheck

	closers []func()
}

// Close releases the underlying connections.
func (s *Stores) Close() {
	for _, closeFn := range s.closers {
		closeFn()
	}
}

// OpenStores connects the configured storage backend.
func OpenStores(ctx context.Context, cfg *config.Config, nrApp *newrelic.Application, log *slog.Logger) (*Stores, error) {
	st := &Stores{Health: map[string]HealthCheck{}}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := NewDatabase(ctx, cfg.Database, nrApp, log)
		if err != nil {
			return nil, err
		}
		st.Bookings = postgres.NewBookingRepository(db)
		st.Users = postgres.NewUserRepository(db)
		st.Notifications = postgres.NewNotificationRepository(db)
		st.Health["postgres"] = db.PingContext
		st.closers = append(st.closers, func() { db.Close() })
		log.Info("connected to postgres", "host", cfg.Database.Host, "db", cfg.Database.DBName)

	case config.DriverMongo:
		client, db, err := NewMongoDatabase(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		st.Bookings = mongorepo.NewBookingRepository(db)
		st.Users = mongorepo.NewUserRepository(db)
		st.Notifications = mongorepo.NewNotificationRepository(db)
		st.Health["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }
		st.closers = append(st.closers, func() { _ = client.Disconnect(context.Background()) })
		log.Info("connected to mongo", "database", cfg.Mongo.Database)

	default:
		st.Bookings = memory.NewBookingRepository()
		st.Users = memory.NewUserRepository()
		st.Notifications = memory.NewNotificationRepository()
		log.Warn("using in-memory storage; data is lost on restart")
	}
	return st, nil
}
