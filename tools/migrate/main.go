package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/orgball2608/insta-stories-viewer/internal/migrations"
	"github.com/orgball2608/insta-stories-viewer/internal/repositories/story"
	"github.com/orgball2608/insta-stories-viewer/pkg/config"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
	"github.com/pressly/goose/v3"
)

const usage = "Usage: migrate [up|down|status|reset|create <name>|seed <stories.json>]"

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	command := os.Args[1]

	// The create command does not need a database
	if command == "create" {
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate create <name>")
		}
		createMigration(os.Args[2])
		return
	}

	_ = godotenv.Load()
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	ctx := context.Background()

	if command == "seed" {
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate seed <stories.json>")
		}
		seed(ctx, cfg, os.Args[2])
		return
	}

	db, err := migrations.Open(cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	provider, err := migrations.NewProvider(db)
	if err != nil {
		log.Fatalf("Failed to load migrations: %v", err)
	}

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		fmt.Printf("Applied %d migrations\n", len(results))
	case "down":
		if _, err := provider.Down(ctx); err != nil {
			log.Fatalf("Failed to rollback migration: %v", err)
		}
		fmt.Println("Migration rollback successful")
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			log.Fatalf("Failed to get migration status: %v", err)
		}
		for _, s := range statuses {
			applied := "pending"
			if s.State == goose.StateApplied {
				applied = "applied " + s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%d\t%s\t%s\n", s.Source.Version, s.Source.Path, applied)
		}
	case "reset":
		if _, err := provider.DownTo(ctx, 0); err != nil {
			log.Fatalf("Failed to reset migrations: %v", err)
		}
		fmt.Println("All migrations have been rolled back")
	default:
		log.Fatalf("Unknown command: %s\n%s", command, usage)
	}
}

func createMigration(name string) {
	dir := "internal/migrations"
	fmt.Printf("Creating migration in: %s\n", dir)

	if err := goose.Create(nil, dir, name, "go"); err != nil {
		log.Fatalf("Failed to create migration: %v", err)
	}
}

// seed copies a stories JSON file into the stories table, keeping file order.
func seed(ctx context.Context, cfg *config.Config, path string) {
	lg := logger.New(logger.Opts{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	stories, err := story.NewFileRepository(path).List(ctx)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", path, err)
	}

	pool, err := pgxpool.New(ctx, cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	repo := story.NewPgxRepository(pool, lg)
	inserted := 0
	for _, s := range stories {
		if err := s.Validate(); err != nil {
			lg.Warn("Skipping invalid story", "story_id", s.ID, "error", err)
			continue
		}
		if err := repo.Create(ctx, s); err != nil {
			log.Fatalf("Failed to insert story %s: %v", s.ID, err)
		}
		inserted++
	}
	fmt.Printf("Seeded %d of %d stories\n", inserted, len(stories))
}
