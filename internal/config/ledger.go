package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"liquidityLedger/internal/ledger"
)

// StoreConfig selects and configures the entity store backend.
type StoreConfig struct {
	Backend       string
	PGDSN         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

func storeDefaults(defaults map[string]interface{}) map[string]interface{} {
	defaults["store"] = BackendPostgres
	defaults["redis-prefix"] = "ledger"
	return defaults
}

func loadStore(v *viper.Viper) (StoreConfig, error) {
	cfg := StoreConfig{
		Backend:       strings.ToLower(v.GetString("store")),
		PGDSN:         v.GetString("pg-dsn"),
		RedisAddr:     v.GetString("redis-addr"),
		RedisPassword: v.GetString("redis-password"),
		RedisDB:       v.GetInt("redis-db"),
		RedisPrefix:   v.GetString("redis-prefix"),
	}
	switch cfg.Backend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.PGDSN == "" {
			return StoreConfig{}, fmt.Errorf("pg dsn is required for the postgres store")
		}
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return StoreConfig{}, fmt.Errorf("redis addr is required for the redis store")
		}
	default:
		return StoreConfig{}, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	return cfg, nil
}

func ledgerDefaults(defaults map[string]interface{}) map[string]interface{} {
	d := ledger.DefaultConfig()
	defaults["factory"] = d.FactoryAddress
	defaults["zero-address"] = d.ZeroAddress
	defaults["native-token"] = d.NativeToken
	defaults["protocol-name"] = d.ProtocolName
	defaults["protocol-type"] = d.ProtocolType
	return defaults
}

func loadLedger(v *viper.Viper) ledger.Config {
	return ledger.Config{
		ZeroAddress:    v.GetString("zero-address"),
		FactoryAddress: v.GetString("factory"),
		NativeToken:    v.GetString("native-token"),
		ProtocolName:   v.GetString("protocol-name"),
		ProtocolType:   v.GetString("protocol-type"),
	}
}
