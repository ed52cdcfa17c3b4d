package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"fixitnow/internal/app"
	"fixitnow/internal/config"
	"fixitnow/internal/domain"
	"fixitnow/internal/logger"
	"fixitnow/internal/middleware"
	"fixitnow/internal/redis"
)

var serviceTypes = []string{
	"plumbing",
	"electrical",
	"hvac",
	"appliance repair",
	"carpentry",
	"locksmith",
	"painting",
	"roofing",
}

func main() {
	customers := flag.Int("customers", 20, "number of customers to create")
	technicians := flag.Int("technicians", 50, "number of technicians to create")
	lat := flag.Float64("lat", 40.7128, "latitude technicians are scattered around")
	lng := flag.Float64("lng", -74.0060, "longitude technicians are scattered around")
	spread := flag.Float64("spread", 0.1, "max degrees of scatter around the centre")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)

	if cfg.Database.Driver == config.DriverMemory {
		log.Error("seeding needs a persistent DB_DRIVER (postgres or mongo)")
		os.Exit(1)
	}

	if err := run(cfg, log, *customers, *technicians, *lat, *lng, *spread); err != nil {
		log.Error("seed failed", "error", err)
		os.Exit(1)
	}
	log.Info("seed complete")
}

func run(cfg *config.Config, log *slog.Logger, customers, technicians int, lat, lng, spread float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	st, err := app.OpenStores(ctx, cfg, nil, log)
	if err != nil {
		return err
	}
	defer st.Close()

	var locations *redis.LocationStore
	if cfg.Redis.Enabled() {
		client, err := app.NewRedisClient(ctx, cfg.Redis, nil)
		if err != nil {
			return err
		}
		defer client.Close()
		locations = redis.NewLocationStore(client)
	}

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret, log)

	admin := fakeUser(domain.RoleAdmin)
	if err := st.Users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	printToken(auth, admin, cfg.Auth.TokenTTL)

	log.Info("seeding customers", "count", customers)
	for i := 0; i < customers; i++ {
		u := fakeUser(domain.RoleCustomer)
		if err := st.Users.Create(ctx, u); err != nil {
			return fmt.Errorf("create customer: %w", err)
		}
		if i == 0 {
			printToken(auth, u, cfg.Auth.TokenTTL)
		}
	}

	log.Info("seeding technicians", "count", technicians, "geo_index", locations != nil)
	for i := 0; i < technicians; i++ {
		u := fakeUser(domain.RoleTechnician)
		u.ServiceTypes = pickServiceTypes()
		u.CompletedJobs = gofakeit.Number(0, 250)
		if err := st.Users.Create(ctx, u); err != nil {
			return fmt.Errorf("create technician: %w", err)
		}
		if i == 0 {
			printToken(auth, u, cfg.Auth.TokenTTL)
		}

		if locations != nil {
			tLat := lat + gofakeit.Float64Range(-spread, spread)
			tLng := lng + gofakeit.Float64Range(-spread, spread)
			if err := locations.UpdateLocation(ctx, u.ID, tLat, tLng); err != nil {
				return fmt.Errorf("index technician position: %w", err)
			}
		}
	}
	return nil
}

func fakeUser(role domain.Role) *domain.User {
	return &domain.User{
		ID:       uuid.New().String(),
		Name:     gofakeit.Name(),
		Email:    gofakeit.Email(),
		Phone:    gofakeit.Phone(),
		Role:     role,
		IsActive: true,
	}
}

// pickServiceTypes returns one to three distinct service types.
func pickServiceTypes() []string {
	n := gofakeit.Number(1, 3)
	picked := make([]string, 0, n)
	seen := make(map[string]bool, n)
	for len(picked) < n {
		s := serviceTypes[gofakeit.Number(0, len(serviceTypes)-1)]
		if seen[s] {
			continue
		}
		seen[s] = true
		picked = append(picked, s)
	}
	return picked
}

func printToken(auth *middleware.Authenticator, u *domain.User, ttl time.Duration) {
	token, err := auth.Issue(domain.Actor{ID: u.ID, Role: u.Role}, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token for %s: %v\n", u.ID, err)
		return
	}
	fmt.Printf("%-10s %s %s\n  %s\n", u.Role, u.ID, u.Name, token)
}
