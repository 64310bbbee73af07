package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate|sqlite")
	dir := flag.String("dir", migrate.SourceDir, "migration source directory for create and validate")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	ctx := logg.WithField(context.Background(), "cmd", *cmd)

	switch *cmd {
	case "create":
		if *name == "" {
			fail(ctx, logg, "missing -name for create", nil)
		}
		path, err := migrate.Create(*dir, *name, time.Now())
		if err != nil {
			fail(ctx, logg, "create migration", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		versions, err := migrate.Validate(os.DirFS(*dir))
		if err != nil {
			fail(ctx, logg, "validate migrations", err)
		}
		fmt.Printf("%d migrations valid\n", len(versions))
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail(ctx, logg, "load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		fail(ctx, logg, "connect database", err)
	}
	defer dbClient.Close()

	if *cmd == "sqlite" || dbClient.Dialect() == "sqlite" {
		if err := migrate.ApplySQLite(ctx, dbClient.DB()); err != nil {
			fail(ctx, logg, "apply sqlite schema", err)
		}
		fmt.Println("sqlite schema applied")
		return
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		fail(ctx, logg, "extract sql.DB", err)
	}
	runner, err := migrate.NewRunner(sqlDB, nil)
	if err != nil {
		fail(ctx, logg, "build migration runner", err)
	}

	switch *cmd {
	case "up":
		applied, err := runner.Up(ctx)
		if err != nil {
			fail(ctx, logg, "migrate up", err)
		}
		fmt.Printf("applied %d migrations\n", applied)
	case "down":
		if err := runner.Down(ctx); err != nil {
			fail(ctx, logg, "migrate down", err)
		}
	case "status":
		statuses, err := runner.Status(ctx)
		if err != nil {
			fail(ctx, logg, "migration status", err)
		}
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Printf("%d\t%-8s\t%s\n", s.Version, state, s.Path)
		}
	case "version":
		if *version == "" {
			fail(ctx, logg, "missing -version for version command", nil)
		}
		if err := runner.To(ctx, *version); err != nil {
			fail(ctx, logg, "migrate to version", err)
		}
	default:
		fail(ctx, logg, "unknown -cmd value "+*cmd, nil)
	}
}

func fail(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if err == nil {
		err = fmt.Errorf("%s", msg)
	}
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
