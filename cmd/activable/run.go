package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/thebtf/activable/internal/config"
	"github.com/thebtf/activable/internal/db/gorm"
	"github.com/thebtf/activable/internal/maintenance"
	"github.com/thebtf/activable/internal/privacy"
	"github.com/thebtf/activable/pkg/activable"
)

const usage = `usage: activable [-config path] [-debug] <command> [args]

commands:
  migrate                                   apply migrations and print their state
  health                                    print database health
  list <projects|sessions|observations>     list rows (-all, -removed, -limit n)
  remove <kind> <id>                        remove one row and its dependents
  remove-all <kind>                         remove every active row of kind
  sweep                                     remove finished sessions past retention
`

var errUsage = errors.New("invalid usage")

// run executes one command line. Results go to stdout as JSON lines.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("activable", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "Settings file (default ~/.activable/settings.json)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v\n%s", errUsage, err, usage)
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: missing command\n%s", errUsage, usage)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(cfg.Level())
	gormLevel := logger.Silent
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		gormLevel = logger.Info
	}

	log.Debug().
		Str("version", Version).
		Str("driver", cfg.DBDriver).
		Str("dsn", privacy.RedactDSN(cfg.DBDSN)).
		Msg("Opening database")
	if privacy.ContainsCredentials(cfg.DBDSN) {
		log.Warn().Msg("Database DSN carries a password, prefer PGPASSWORD or a .pgpass file")
	}

	store, err := gorm.NewStore(gorm.Config{
		Driver:        cfg.DBDriver,
		DSN:           cfg.DBDSN,
		MaxConns:      cfg.MaxConns,
		LogLevel:      gormLevel,
		SlowOperation: cfg.SlowOperation,
	})
	if err != nil {
		return fmt.Errorf("open store %s: %w", privacy.RedactDSN(cfg.DBDSN), err)
	}
	defer store.Close()

	stores, err := gorm.NewStores(store,
		activable.WithLogger(log.Logger),
		activable.WithObservers(activable.LogObserver(log.Logger)),
		activable.WithBatchSize(cfg.RemoveBatchSize),
	)
	if err != nil {
		return fmt.Errorf("init stores: %w", err)
	}

	cmd := &command{cfg: cfg, store: store, stores: stores, out: json.NewEncoder(stdout)}
	rest := fs.Args()[1:]

	switch name := fs.Arg(0); name {
	case "migrate":
		return cmd.migrate()
	case "health":
		return cmd.out.Encode(store.HealthCheckForce(ctx))
	case "list":
		return cmd.list(ctx, rest)
	case "remove":
		return cmd.remove(ctx, rest)
	case "remove-all":
		return cmd.removeAll(ctx, rest)
	case "sweep":
		return cmd.sweep(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q\n%s", errUsage, name, usage)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if err := config.EnsureAll(); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	return config.Load()
}

type command struct {
	cfg    *config.Config
	store  *gorm.Store
	stores *gorm.Stores
	out    *json.Encoder
}

func (c *command) migrate() error {
	if err := c.store.Migrate(); err != nil {
		return err
	}
	states, err := c.store.MigrationStatus()
	if err != nil {
		return err
	}
	for _, s := range states {
		if err := c.out.Encode(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *command) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	all := fs.Bool("all", false, "Include removed rows")
	removed := fs.Bool("removed", false, "Only removed rows")
	limit := fs.Int("limit", gorm.DefaultListLimit, "Maximum number of rows")
	if len(args) == 0 {
		return fmt.Errorf("%w: list needs a kind", errUsage)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *all && *removed {
		return fmt.Errorf("%w: -all and -removed are exclusive", errUsage)
	}

	var (
		rows any
		err  error
	)
	switch args[0] {
	case "projects":
		switch {
		case *all:
			rows, err = c.stores.Projects.ListAllProjects(ctx, *limit)
		case *removed:
			rows, err = c.stores.Projects.ListRemovedProjects(ctx, *limit)
		default:
			rows, err = c.stores.Projects.ListProjects(ctx, *limit)
		}
	case "sessions":
		switch {
		case *all:
			rows, err = c.stores.Sessions.ListAllSessions(ctx, *limit)
		case *removed:
			rows, err = c.stores.Sessions.ListRemovedSessions(ctx, *limit)
		default:
			rows, err = c.stores.Sessions.ListSessions(ctx, *limit)
		}
	case "observations":
		// Observations show the alive view unless asked otherwise.
		switch {
		case *removed:
			rows, err = c.stores.Observations.ListRemovedObservations(ctx, *limit)
		case *all:
			rows, err = c.stores.Observations.ListObservations(ctx, *limit)
		default:
			rows, err = c.stores.Observations.ListAliveObservations(ctx, *limit)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", errUsage, args[0])
	}
	if err != nil {
		return err
	}
	return c.out.Encode(rows)
}

type removal struct {
	Kind    string `json:"kind"`
	ID      int64  `json:"id,omitempty"`
	Removed int    `json:"removed"`
}

func (c *command) remove(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: remove needs a kind and an id", errUsage)
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad id %q", errUsage, args[1])
	}

	switch args[0] {
	case "project", "projects":
		_, err = c.stores.Projects.RemoveProject(ctx, id)
	case "session", "sessions":
		_, err = c.stores.Sessions.RemoveSession(ctx, id)
	case "observation", "observations":
		_, err = c.stores.Observations.RemoveObservation(ctx, id)
	default:
		return fmt.Errorf("%w: unknown kind %q", errUsage, args[0])
	}
	if err != nil {
		return err
	}

	log.Info().Str("kind", args[0]).Int64("id", id).Msg("Removed")
	return c.out.Encode(removal{Kind: args[0], ID: id, Removed: 1})
}

func (c *command) removeAll(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: remove-all needs a kind", errUsage)
	}

	var (
		n   int
		err error
	)
	switch args[0] {
	case "projects":
		n, err = c.stores.Projects.RemoveAllProjects(ctx)
	case "sessions":
		n, err = c.stores.Sessions.RemoveAllSessions(ctx)
	case "observations":
		n, err = c.stores.Observations.RemoveAllObservations(ctx)
	default:
		return fmt.Errorf("%w: unknown kind %q", errUsage, args[0])
	}
	if err != nil {
		return err
	}
	return c.out.Encode(removal{Kind: args[0], Removed: n})
}

func (c *command) sweep(ctx context.Context) error {
	if c.cfg.SessionRetentionDays <= 0 {
		return fmt.Errorf("%w: sweep needs ACTIVABLE_SESSION_RETENTION_DAYS", errUsage)
	}
	svc := maintenance.NewService(c.store, c.stores.Sessions, c.cfg, log.Logger)
	n, err := svc.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep sessions: %w", err)
	}
	if err := c.store.Optimize(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to optimize database after sweep")
	}
	return c.out.Encode(removal{Kind: "sessions", Removed: n})
}
