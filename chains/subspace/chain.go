// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package subspace

import (
	"time"

	"github.com/ChainSafe/log15"
	"subspace-client/config"
	"subspace-client/core"
	"subspace-client/shared/cache"
	"subspace-client/shared/keyring"
	"subspace-client/shared/substrate"
	"subspace-client/utils"
)

// Client is the chain client: one per configuration, owning its connection,
// cache and key ring.
type Client struct {
	cfg      *config.Config
	conn     *Connection
	cache    *cache.Cache
	keys     *keyring.Keyring
	format   utils.Formatter
	registry *Registry
	writer   *writer
	now      func() time.Time
	log      log15.Logger
}

// NewClient connects to cfg.Network through dial and keeps its snapshots in
// store.
func NewClient(cfg *config.Config, dial substrate.Dialer, store cache.Store, logger log15.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Info("NewClient", "network", cfg.Network, "keystore", cfg.KeystorePath, "cache", cfg.CachePath)

	policy := core.RetryPolicy{
		MaxAttempts: cfg.Retry.Attempts,
		BaseDelay:   cfg.Retry.Delay,
		Multiplier:  cfg.Retry.Backoff,
		MaxDelay:    cfg.Retry.MaxDelay,
	}
	conn, err := NewConnection(core.Networks(cfg.Networks), cfg.Network, dial, policy, logger.New("module", "connection"))
	if err != nil {
		return nil, err
	}
	return newClient(cfg, conn, store, logger), nil
}

func newClient(cfg *config.Config, conn *Connection, store cache.Store, logger log15.Logger) *Client {
	format := utils.NewFormatter(cfg.TokenDecimals)
	c := cache.New(store, logger.New("module", "cache"))
	registry := NewRegistry(conn, c, format, cfg.SS58Prefix, logger.New("module", "registry"))

	client := &Client{
		cfg:      cfg,
		conn:     conn,
		cache:    c,
		keys:     keyring.New(cfg.KeystorePath, cfg.SS58Prefix, logger.New("module", "keyring")),
		format:   format,
		registry: registry,
		now:      time.Now,
		log:      logger,
	}
	client.writer = newWriter(client, logger.New("module", "writer"))
	return client
}

// SetClock replaces the time source of the client and its cache.
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
	c.cache.SetClock(now)
}

func (c *Client) Config() *config.Config {
	return c.cfg
}

func (c *Client) Formatter() utils.Formatter {
	return c.format
}

func (c *Client) Keyring() *keyring.Keyring {
	return c.keys
}

func (c *Client) Cache() *cache.Cache {
	return c.cache
}

func (c *Client) Registry() *Registry {
	return c.registry
}

// Network is the endpoint currently connected to.
func (c *Client) Network() core.NetworkEndpoint {
	return c.conn.Network()
}

// ClearCache drops every snapshot of the current network.
func (c *Client) ClearCache() (int, error) {
	return c.cache.Clear(networkPrefixes(c.conn.Network().Name)...)
}

func (c *Client) Close() error {
	err := c.conn.Close()
	if cerr := c.cache.Close(); err == nil {
		err = cerr
	}
	return err
}
