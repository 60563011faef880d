package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// HealthConfig holds configuration for the health command.
type HealthConfig struct {
	RPCURL    string
	Store     StoreConfig
	StateFile string
	StateName string
	// Schedule is a six-field cron expression. Empty with no Listen runs a single check.
	Schedule      string
	Listen        string
	SyncTolerance uint64
	MaxRetries    int
	RetryBackoff  time.Duration
	Timeout       time.Duration
	LogLevel      string
}

// LoadHealth merges config file, environment variables, and flags into HealthConfig.
func LoadHealth(cfgFile string, flags *pflag.FlagSet) (HealthConfig, error) {
	v, err := newViper(cfgFile, flags, storeDefaults(map[string]interface{}{
		"state-name":     "ledger",
		"sync-tolerance": uint64(5),
		"max-retries":    5,
		"retry-backoff":  time.Second,
		"timeout":        25 * time.Second,
		"log-level":      "info",
	}))
	if err != nil {
		return HealthConfig{}, err
	}

	cfg := HealthConfig{
		RPCURL:        v.GetString("rpc"),
		StateFile:     v.GetString("state-file"),
		StateName:     v.GetString("state-name"),
		Schedule:      v.GetString("schedule"),
		Listen:        v.GetString("listen"),
		SyncTolerance: v.GetUint64("sync-tolerance"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		Timeout:       v.GetDuration("timeout"),
		LogLevel:      v.GetString("log-level"),
	}
	if cfg.RPCURL == "" {
		return HealthConfig{}, fmt.Errorf("rpc url is required")
	}
	// a state file needs no store connection
	if cfg.StateFile == "" {
		if cfg.Store, err = loadStore(v); err != nil {
			return HealthConfig{}, err
		}
		if cfg.Store.Backend == BackendMemory {
			return HealthConfig{}, fmt.Errorf("the memory store keeps no state; use state-file")
		}
	}
	return cfg, nil
}
