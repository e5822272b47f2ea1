package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prodtrack/api/internal/config"
	"github.com/prodtrack/api/internal/database"
	"github.com/prodtrack/api/internal/enum"
	"github.com/prodtrack/api/internal/logging"
	"github.com/prodtrack/api/internal/shift"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// CLI flags
	plants := flag.String("plants", "", "Comma-separated plants to seed operator groups for")
	email := flag.String("email", "", "Admin email address")
	password := flag.String("password", "", "Admin password")
	name := flag.String("name", "", "Admin full name")
	flag.Parse()

	// Fall back to environment variables, then defaults
	*plants = firstNonEmpty(*plants, os.Getenv("SEED_PLANTS"), "MILK_PROCESSING")
	*email = firstNonEmpty(*email, os.Getenv("SEED_EMAIL"), "admin@prodtrack.local")
	*name = firstNonEmpty(*name, os.Getenv("SEED_NAME"), "Plant Admin")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "prodtrack-seed"})

	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}
	if *password == "" {
		*password = "password123"
		log.Warn().Msg("using default password 'password123'; change it immediately in production")
	}

	if err := seed(context.Background(), cfg, log, splitPlants(*plants), *email, *password, *name); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	log.Info().Msg("seed completed successfully")
}

func seed(ctx context.Context, cfg *config.Config, log zerolog.Logger, plants []string, email, password, fullName string) error {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	// Seed in a transaction: all groups + admin or nothing
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	q := database.New(tx)

	for _, plant := range plants {
		for _, groupName := range shift.DefaultGroupNames {
			g, err := q.UpsertGroup(ctx, database.UpsertGroupParams{Plant: plant, Name: groupName})
			if err != nil {
				return fmt.Errorf("upsert group %s/%s: %w", plant, groupName, err)
			}
			log.Info().Str("plant", plant).Str("group", g.Name).Int32("id", g.ID).Msg("group ready")
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user, err := q.UpsertUser(ctx, database.UpsertUserParams{
		Email:        email,
		PasswordHash: string(hashed),
		FullName:     fullName,
		Role:         enum.UserRoleAdmin,
		Plant:        pgtype.Text{},
	})
	if err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}
	log.Info().Str("email", user.Email).Str("id", user.ID.String()).Msg("admin ready")

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func splitPlants(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
