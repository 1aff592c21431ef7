// Command migrate manages the evidence store schema and mart views.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/rowens2025/powervisualize/internal/infrastructure/config"
	"github.com/rowens2025/powervisualize/internal/infrastructure/logger"
	"github.com/rowens2025/powervisualize/internal/infrastructure/migration"
)

const defaultMigrationsPath = "migrations"

var errUsage = errors.New("usage")

// schemaCommand runs against an open migrator. offline commands get nil.
type schemaCommand struct {
	args    int
	offline bool
	run     func(m *migration.Migrator, env *runEnv) error
}

type runEnv struct {
	args []string
	dir  string
	out  io.Writer
	log  *zap.Logger
}

var commands = map[string]schemaCommand{
	"up":   {run: func(m *migration.Migrator, _ *runEnv) error { return m.Up() }},
	"down": {run: func(m *migration.Migrator, _ *runEnv) error { return m.Down() }},
	"step": {args: 1, run: func(m *migration.Migrator, env *runEnv) error {
		n, err := strconv.Atoi(env.args[0])
		if err != nil || n == 0 {
			return fmt.Errorf("invalid step count %q", env.args[0])
		}
		return m.Steps(n)
	}},
	"force": {args: 1, run: func(m *migration.Migrator, env *runEnv) error {
		v, err := strconv.Atoi(env.args[0])
		if err != nil || v < -1 {
			return fmt.Errorf("invalid version %q", env.args[0])
		}
		return m.Force(v)
	}},
	"version": {run: func(m *migration.Migrator, env *runEnv) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if v == 0 {
			fmt.Fprintln(env.out, "no migrations applied")
			return nil
		}
		fmt.Fprintf(env.out, "version %d (dirty=%t)\n", v, dirty)
		return nil
	}},
	"status": {run: func(m *migration.Migrator, env *runEnv) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		files, err := migration.Available(env.dir)
		if err != nil {
			return err
		}
		return printStatus(env.out, files, v, dirty)
	}},
	"list": {offline: true, run: func(_ *migration.Migrator, env *runEnv) error {
		files, err := migration.Available(env.dir)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Fprintln(env.out, "no migrations found in", env.dir)
			return nil
		}
		for _, f := range files {
			fmt.Fprintln(env.out, f)
		}
		return nil
	}},
}

func main() {
	var (
		migrationsPath string
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", "", "Path to migrations directory (default: ./migrations)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	err = run(flag.Args(), resolveMigrationsPath(migrationsPath), os.Stdout, log, openDatabase)
	if errors.Is(err, errUsage) {
		printUsage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		log.Error("Migration command failed", zap.Error(err))
		logger.Sync(log)
		os.Exit(1)
	}
}

// run dispatches one command. open is only called for commands that need
// the database.
func run(args []string, dir string, out io.Writer, log *zap.Logger, open func() (*sql.DB, error)) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	if len(args)-1 != cmd.args {
		return fmt.Errorf("%w: %s takes %d argument(s)", errUsage, args[0], cmd.args)
	}
	env := &runEnv{args: args[1:], dir: dir, out: out, log: log}
	log.Debug("Running migration command", zap.String("command", args[0]), zap.String("migrations_path", dir))

	if cmd.offline {
		return cmd.run(nil, env)
	}

	db, err := open()
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := migration.New(db, dir, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()
	return cmd.run(m, env)
}

func openDatabase() (*sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// resolveMigrationsPath prefers the flag, then ./migrations, then the
// directory two levels above the executable.
func resolveMigrationsPath(flagValue string) string {
	path := flagValue
	if path == "" {
		path = defaultMigrationsPath
		if _, err := os.Stat(path); err != nil {
			if exe, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(exe), "..", "..", defaultMigrationsPath)
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
				}
			}
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// printStatus marks each migration file as applied or pending by comparing
// its version prefix with the current schema version.
func printStatus(w io.Writer, files []string, current uint, dirty bool) error {
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			return fmt.Errorf("migration %q has no version prefix", f)
		}
		state := "pending"
		switch {
		case uint(v) == current && dirty:
			state = "dirty"
		case uint(v) <= current:
			state = "applied"
		}
		fmt.Fprintf(w, "%-8s %s\n", state, f)
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Evidence Store Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  version               Show current schema version
  status                Show each migration as applied, pending or dirty
  force <version>       Set the schema version without running migrations
  list                  List available migrations (no database needed)

Flags:
  -path string          Path to migrations directory (default: ./migrations)
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  PV_DATABASE_HOST, PV_DATABASE_PORT, PV_DATABASE_USER,
  PV_DATABASE_PASSWORD, PV_DATABASE_DBNAME, PV_DATABASE_SSLMODE

Examples:
  # Create the evidence schema and mart views
  migrate up

  # Roll back the mart views only
  migrate step -1`)
}
