package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"liquidityLedger/internal/ledger"
)

// ProcessConfig holds configuration for the process command.
type ProcessConfig struct {
	RPCURL    string
	In        string
	Ledger    ledger.Config
	Store     StoreConfig
	StateFile string
	StateName string
	// Recompute is set when recompute-from-block was given at all, so block 0 is valid.
	Recompute          bool
	RecomputeFromBlock uint64
	SaveEvery          int
	MaxRetries         int
	RetryBackoff       time.Duration
	LogLevel           string
}

// LoadProcess merges config file, environment variables, and flags into ProcessConfig.
func LoadProcess(cfgFile string, flags *pflag.FlagSet) (ProcessConfig, error) {
	v, err := newViper(cfgFile, flags, storeDefaults(ledgerDefaults(map[string]interface{}{
		"in":            "./data/typed_events.jsonl",
		"state-name":    "ledger",
		"save-every":    1000,
		"max-retries":   3,
		"retry-backoff": 500 * time.Millisecond,
		"log-level":     "info",
	})))
	if err != nil {
		return ProcessConfig{}, err
	}

	storeCfg, err := loadStore(v)
	if err != nil {
		return ProcessConfig{}, err
	}

	cfg := ProcessConfig{
		RPCURL:             v.GetString("rpc"),
		In:                 v.GetString("in"),
		Ledger:             loadLedger(v),
		Store:              storeCfg,
		StateFile:          v.GetString("state-file"),
		StateName:          v.GetString("state-name"),
		Recompute:          v.IsSet("recompute-from-block"),
		RecomputeFromBlock: v.GetUint64("recompute-from-block"),
		SaveEvery:          v.GetInt("save-every"),
		MaxRetries:         v.GetInt("max-retries"),
		RetryBackoff:       v.GetDuration("retry-backoff"),
		LogLevel:           v.GetString("log-level"),
	}

	if cfg.RPCURL == "" {
		return ProcessConfig{}, fmt.Errorf("rpc url is required")
	}
	if cfg.Store.Backend == BackendMemory && cfg.StateFile == "" {
		return ProcessConfig{}, fmt.Errorf("state-file is required with the memory store")
	}
	return cfg, nil
}
