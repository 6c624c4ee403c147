// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

const (
	DefaultNetwork       = "main"
	DefaultTokenDecimals = 9
	DefaultSS58Prefix    = 42
	DefaultNetuid        = 0
	DefaultKeyAlias      = "module"
	DefaultFallbackFee   = 20000000
	DefaultMaxAge        = 60 * time.Second
	DefaultSubmitTimeout = 2 * time.Minute
	DefaultArchivePeriod = 60 * time.Second

	AddressTypeAccountId    = "AccountId"
	AddressTypeMultiAddress = "MultiAddress"

	envPrefix = "SUBSPACE"
)

var (
	DefaultKeystorePath = defaultHome("keys")
	DefaultCachePath    = defaultHome("cache.db")
)

type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
	Backoff  float64       `mapstructure:"backoff"`
	MaxDelay time.Duration `mapstructure:"maxDelay"`
}

type CacheConfig struct {
	ModulesMaxAge   time.Duration `mapstructure:"modulesMaxAge"`
	NamespaceMaxAge time.Duration `mapstructure:"namespaceMaxAge"`
	StateMaxAge     time.Duration `mapstructure:"stateMaxAge"`
}

// Config is constructed once at startup and handed to the client.
type Config struct {
	Network         string            `mapstructure:"network"`
	Networks        map[string]string `mapstructure:"networks"`
	DefaultNetuid   uint16            `mapstructure:"defaultNetuid"`
	TokenDecimals   int32             `mapstructure:"tokenDecimals"`
	SS58Prefix      uint16            `mapstructure:"ss58Prefix"`
	AddressType     string            `mapstructure:"addressType"`
	KeystorePath    string            `mapstructure:"keystorePath"`
	CachePath       string            `mapstructure:"cachePath"`
	Key             string            `mapstructure:"key"`
	FallbackFee     uint64            `mapstructure:"fallbackFee"`
	SubmitTimeout   time.Duration     `mapstructure:"submitTimeout"`
	ArchiveInterval time.Duration     `mapstructure:"archiveInterval"`
	Retry           RetryConfig       `mapstructure:"retry"`
	Cache           CacheConfig       `mapstructure:"cache"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Network: DefaultNetwork,
		Networks: map[string]string{
			"main":  "ws://127.0.0.1:9944",
			"local": "ws://127.0.0.1:9944",
		},
		DefaultNetuid:   DefaultNetuid,
		TokenDecimals:   DefaultTokenDecimals,
		SS58Prefix:      DefaultSS58Prefix,
		AddressType:     AddressTypeMultiAddress,
		KeystorePath:    DefaultKeystorePath,
		CachePath:       DefaultCachePath,
		Key:             DefaultKeyAlias,
		FallbackFee:     DefaultFallbackFee,
		SubmitTimeout:   DefaultSubmitTimeout,
		ArchiveInterval: DefaultArchivePeriod,
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    2 * time.Second,
			Backoff:  2,
			MaxDelay: 4 * time.Second,
		},
		Cache: CacheConfig{
			ModulesMaxAge:   DefaultMaxAge,
			NamespaceMaxAge: DefaultMaxAge,
			StateMaxAge:     DefaultMaxAge,
		},
	}
}

// GetConfig loads the file named by --config on top of the defaults and
// applies the network, keystore, key and max-age flags when they are set.
func GetConfig(ctx *cli.Context) (*Config, error) {
	cfg, err := Load(ctx.String(ConfigFileFlag.Name))
	if err != nil {
		return nil, err
	}
	if ctx.IsSet(NetworkFlag.Name) {
		cfg.Network = ctx.String(NetworkFlag.Name)
	}
	if ctx.IsSet(KeystorePathFlag.Name) {
		cfg.KeystorePath = ctx.String(KeystorePathFlag.Name)
	}
	if ctx.IsSet(KeyFlag.Name) {
		cfg.Key = ctx.String(KeyFlag.Name)
	}
	if ctx.IsSet(MaxAgeFlag.Name) {
		age := ctx.Duration(MaxAgeFlag.Name)
		cfg.Cache.ModulesMaxAge = age
		cfg.Cache.NamespaceMaxAge = age
		cfg.Cache.StateMaxAge = age
	}
	return cfg, cfg.Validate()
}

// Load reads path (any format viper understands) over the defaults.
// An empty path yields the defaults plus SUBSPACE_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s err: %w", path, err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config err: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Networks) == 0 {
		return errors.New("config err, no networks")
	}
	if _, ok := c.Networks[c.Network]; !ok {
		return fmt.Errorf("config err, network %s has no url", c.Network)
	}
	if c.TokenDecimals < 0 {
		return fmt.Errorf("config err, tokenDecimals %d", c.TokenDecimals)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("config err, retry attempts %d", c.Retry.Attempts)
	}
	switch c.AddressType {
	case AddressTypeAccountId, AddressTypeMultiAddress:
	default:
		return fmt.Errorf("config err, addressType %s", c.AddressType)
	}
	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("network", d.Network)
	v.SetDefault("networks", d.Networks)
	v.SetDefault("defaultNetuid", d.DefaultNetuid)
	v.SetDefault("tokenDecimals", d.TokenDecimals)
	v.SetDefault("ss58Prefix", d.SS58Prefix)
	v.SetDefault("addressType", d.AddressType)
	v.SetDefault("keystorePath", d.KeystorePath)
	v.SetDefault("cachePath", d.CachePath)
	v.SetDefault("key", d.Key)
	v.SetDefault("fallbackFee", d.FallbackFee)
	v.SetDefault("submitTimeout", d.SubmitTimeout)
	v.SetDefault("archiveInterval", d.ArchiveInterval)
	v.SetDefault("retry.attempts", d.Retry.Attempts)
	v.SetDefault("retry.delay", d.Retry.Delay)
	v.SetDefault("retry.backoff", d.Retry.Backoff)
	v.SetDefault("retry.maxDelay", d.Retry.MaxDelay)
	v.SetDefault("cache.modulesMaxAge", d.Cache.ModulesMaxAge)
	v.SetDefault("cache.namespaceMaxAge", d.Cache.NamespaceMaxAge)
	v.SetDefault("cache.stateMaxAge", d.Cache.StateMaxAge)
}

func defaultHome(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".subspace", name)
}
