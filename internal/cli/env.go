package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/timelock/internal/config"
	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/ledger"
	"github.com/roach88/timelock/internal/query"
	"github.com/roach88/timelock/internal/store"
)

// env is everything a command needs, built from config plus flags.
type env struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	registry *ledger.Registry
	engine   *engine.Engine
	query    *query.Service
	clock    engine.Clock
	logger   *slog.Logger
	caller   string
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.As != "" {
		cfg.Identity = opts.As
	}
	return cfg, nil
}

// newLogger installs a text handler on stderr. Verbose forces debug.
func newLogger(opts *RootOptions, cfg *config.Config, cmd *cobra.Command) *slog.Logger {
	level := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// openEnv loads config, opens the database and wires the engine.
// The caller must call close.
func openEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	caller, err := query.Caller(cfg.Identity)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid identity", err)
	}
	logger := newLogger(opts, cfg, cmd)

	registry, err := cfg.Registry()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid ledger config", err)
	}

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	var clock engine.Clock = engine.NewSystemClock()
	if opts.Now != 0 {
		clock = fixedClock(opts.Now)
	}

	gw := ledger.NewJournalGateway(st, registry, logger)
	eng := engine.New(st, gw,
		engine.WithLogger(logger),
		engine.WithClaimGrace(cfg.ClaimGraceNS),
		engine.WithMinTimelock(cfg.MinTimelockNS),
		engine.WithClock(clock),
	)

	return &env{
		cfg:      cfg,
		store:    st,
		registry: registry,
		engine:   eng,
		query:    query.NewService(st),
		clock:    clock,
		logger:   logger,
		caller:   caller,
	}, nil
}

func (e *env) now() uint64 {
	return e.clock.Now()
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing database", "error", err)
	}
}

// ledger resolves id, or the configured default when id is empty.
func (e *env) ledger(id string) (ledger.Ledger, error) {
	if id == "" {
		id = e.cfg.DefaultLedger
	}
	l, ok := e.registry.Lookup(id)
	if !ok {
		return ledger.Ledger{}, NewExitError(ExitCommandError, fmt.Sprintf("unknown ledger %q (configured: %v)", id, e.registry.IDs()))
	}
	return l, nil
}

// fixedClock is the --now override.
type fixedClock uint64

func (c fixedClock) Now() uint64 { return uint64(c) }
