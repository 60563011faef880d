package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	RPCURL       string
	In           string
	Out          string
	Errors       string
	LogLevel     string
	Topic0Map    map[string]string
	IncludeTxGas bool
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":            "./data/typed_events.jsonl",
		"errors":         "./data/decode_errors.jsonl",
		"include-tx-gas": false,
		"log-level":      "info",
	})
	if err != nil {
		return DecodeConfig{}, err
	}

	cfg := DecodeConfig{
		RPCURL:       v.GetString("rpc"),
		In:           v.GetString("in"),
		Out:          v.GetString("out"),
		Errors:       v.GetString("errors"),
		LogLevel:     v.GetString("log-level"),
		Topic0Map:    getStringMap(v, "topic0-map"),
		IncludeTxGas: v.GetBool("include-tx-gas"),
	}
	if cfg.IncludeTxGas && cfg.RPCURL == "" {
		return DecodeConfig{}, fmt.Errorf("rpc url is required with include-tx-gas")
	}
	return cfg, nil
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	switch typed := v.Get(key).(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, val := range typed {
			out[k] = fmt.Sprintf("%v", val)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

// parseStringMap parses "k1=v1,k2=v2", skipping malformed pairs.
func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(input, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
