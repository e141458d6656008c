package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/smpbot/core/config"
	coredatabase "github.com/m3rciful/smpbot/core/database"
	"github.com/m3rciful/smpbot/core/logger"
	"github.com/m3rciful/smpbot/core/storage"
)

// Options control the bootstrap pipeline. The function fields default to
// the real implementations and exist for tests.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coreconfig.DatabaseConfig) (*sqlx.DB, error)
	Migrate    func(context.Context, coreconfig.DatabaseConfig) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Store storage.Store
	// DB is nil when run history is kept in memory.
	DB *sqlx.DB
}

// Close releases the database pool, if any.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger and selects the run store. With a database
// configured it connects and applies migrations; otherwise it falls back
// to the in-memory store.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	dbCfg := opts.Config.Database
	if !dbCfg.Enabled() {
		logger.DB.Info("run history in memory",
			slog.String("event", "store.select"),
			slog.String("mode", "memory"),
		)
		return &Result{Store: storage.NewMemory()}, nil
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(ctx, dbCfg); err != nil {
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	logger.DB.Info("run history in postgres",
		slog.String("event", "store.select"),
		slog.String("mode", "postgres"),
		slog.String("db", dbCfg.Name),
	)
	return &Result{Store: storage.NewPostgres(db), DB: db}, nil
}
