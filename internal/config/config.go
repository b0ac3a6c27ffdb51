// Package config loads timelock.cue and validates it against the embedded
// CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/timelock/internal/ledger"
)

//go:embed schema.cue
var schemaCUE string

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "timelock.cue"

// Config is the decoded, validated configuration.
type Config struct {
	Database      string                  `json:"database"`
	Identity      string                  `json:"identity"`
	LogLevel      string                  `json:"log_level"`
	ClaimGraceNS  uint64                  `json:"claim_grace_ns"`
	MinTimelockNS uint64                  `json:"min_timelock_ns"`
	DefaultLedger string                  `json:"default_ledger"`
	Ledgers       map[string]LedgerConfig `json:"ledgers"`
}

// LedgerConfig is one entry of the ledgers map.
type LedgerConfig struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Fee      uint64 `json:"fee"`
}

// builtinLedgers apply when the file configures none.
var builtinLedgers = map[string]LedgerConfig{
	"icp":   {Symbol: "ICP", Decimals: 8, Fee: 10_000},
	"ckbtc": {Symbol: "ckBTC", Decimals: 8, Fee: 10},
}

// LoadError is a config file that failed to parse or validate.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Load reads path and returns the resulting config. A missing file at the
// default location is not an error: defaults apply.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Parse(nil, path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse unifies data with the schema. nil data yields the defaults.
func Parse(data []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config"))
	if len(data) > 0 {
		user := ctx.CompileBytes(data, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return nil, &LoadError{File: filename, Message: cueMessage(err)}
		}
		value = value.Unify(user)
	}

	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{File: filename, Message: cueMessage(err)}
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, &LoadError{File: filename, Message: cueMessage(err)}
	}

	if len(cfg.Ledgers) == 0 {
		cfg.Ledgers = make(map[string]LedgerConfig, len(builtinLedgers))
		for id, l := range builtinLedgers {
			cfg.Ledgers[id] = l
		}
	}
	if _, ok := cfg.Ledgers[cfg.DefaultLedger]; !ok {
		return nil, &LoadError{File: filename, Message: fmt.Sprintf("default_ledger %q is not in ledgers", cfg.DefaultLedger)}
	}

	return &cfg, nil
}

// Registry builds the ledger registry described by the config.
func (c *Config) Registry() (*ledger.Registry, error) {
	ids := make([]string, 0, len(c.Ledgers))
	for id := range c.Ledgers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	ledgers := make([]ledger.Ledger, 0, len(ids))
	for _, id := range ids {
		l := c.Ledgers[id]
		ledgers = append(ledgers, ledger.Ledger{ID: id, Symbol: l.Symbol, Decimals: l.Decimals, Fee: l.Fee})
	}
	return ledger.NewRegistry(ledgers...)
}

// SlogLevel maps log_level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// cueMessage flattens a CUE error list into one line per problem.
func cueMessage(err error) string {
	return cueerrors.Details(err, nil)
}
