package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ServeConfig holds configuration for the HTTP API server, merged from
// flags, environment variables, and an optional config file.
type ServeConfig struct {
	Listen       string
	PGDSN        string
	RatesAPIURL  string
	APITimeout   time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	RPCURL       string
	ChainID      uint64
	LogLevel     string
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("listen", ":8080")
		v.SetDefault("api-timeout", 60*time.Second)
		v.SetDefault("max-attempts", 3)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
		v.SetDefault("log-level", "info")
	})
	if err != nil {
		return ServeConfig{}, err
	}

	cfg := ServeConfig{
		Listen:       v.GetString("listen"),
		PGDSN:        v.GetString("pg-dsn"),
		RatesAPIURL:  v.GetString("rates-api-url"),
		APITimeout:   v.GetDuration("api-timeout"),
		MaxAttempts:  v.GetInt("max-attempts"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		RPCURL:       v.GetString("rpc"),
		ChainID:      v.GetUint64("chain-id"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}

// ReportConfig holds configuration for the one-shot position report command.
type ReportConfig struct {
	PGDSN        string
	RatesAPIURL  string
	APITimeout   time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	RPCURL       string
	ChainID      uint64
	Owner        string
	Out          string
	LogLevel     string
}

// LoadReport merges config file, environment variables, and flags into ReportConfig.
func LoadReport(cfgFile string, flags *pflag.FlagSet) (ReportConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("api-timeout", 60*time.Second)
		v.SetDefault("max-attempts", 3)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
		v.SetDefault("out", "./data/positions.jsonl")
		v.SetDefault("log-level", "info")
	})
	if err != nil {
		return ReportConfig{}, err
	}

	cfg := ReportConfig{
		PGDSN:        v.GetString("pg-dsn"),
		RatesAPIURL:  v.GetString("rates-api-url"),
		APITimeout:   v.GetDuration("api-timeout"),
		MaxAttempts:  v.GetInt("max-attempts"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		RPCURL:       v.GetString("rpc"),
		ChainID:      v.GetUint64("chain-id"),
		Owner:        v.GetString("owner"),
		Out:          v.GetString("out"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, setDefaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("OPTIONSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}
