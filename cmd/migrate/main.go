package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/fashionmarket/storefront-backend/pkg/config"
	"github.com/fashionmarket/storefront-backend/pkg/db"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
	"github.com/fashionmarket/storefront-backend/pkg/migrate"
)

const usage = `usage: migrate [-dir path] <command> [arg]

commands:
  up              apply all pending migrations
  down            roll back the latest migration
  to <version>    migrate up or down to version (YYYYMMDDHHMMSS)
  status          list migrations and whether they are applied
  version         print the current schema version
  create <name>   scaffold a new SQL migration
  validate        check migration files without a database
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	flags := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dir := flags.String("dir", migrate.DefaultDir, "migrations directory")
	flags.Usage = func() { fmt.Fprint(flags.Output(), usage) }
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return fmt.Errorf("command required")
	}
	command, arg := flags.Arg(0), flags.Arg(1)

	// Offline commands run before config so they work without a .env.
	switch command {
	case "create":
		if arg == "" {
			return fmt.Errorf("create needs a name")
		}
		path, err := migrate.CreateSQLMigration(*dir, arg, time.Now())
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "validate":
		files, err := migrate.Validate(migrate.DirSource(*dir))
		if err != nil {
			return err
		}
		fmt.Printf("%d migrations ok\n", len(files))
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "command": command, "dir": *dir})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(sqlDB, migrate.DirSource(*dir))
	if err != nil {
		return err
	}

	var applied []migrate.Applied
	switch command {
	case "up":
		applied, err = runner.Up(ctx)
	case "down":
		applied, err = runner.Down(ctx)
	case "to":
		target, perr := migrate.ParseVersion(arg)
		if perr != nil {
			return perr
		}
		applied, err = runner.To(ctx, target)
	case "status":
		rows, serr := runner.Status(ctx)
		if serr != nil {
			return serr
		}
		return printStatus(os.Stdout, rows)
	case "version":
		v, verr := runner.Version(ctx)
		if verr != nil {
			return verr
		}
		fmt.Println(v)
		return nil
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", command)
	}

	for _, m := range applied {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"migration":   m.File,
			"direction":   m.Direction,
			"duration_ms": m.Duration.Milliseconds(),
		}), "migration finished")
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	if len(applied) == 0 {
		logg.Info(ctx, "nothing to migrate")
	}
	return nil
}

func printStatus(out io.Writer, rows []migrate.Status) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tAPPLIED AT\tFILE")
	for _, row := range rows {
		at := "pending"
		if row.Applied {
			at = row.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", row.Version, at, row.File)
	}
	return tw.Flush()
}
