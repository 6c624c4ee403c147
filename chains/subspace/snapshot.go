// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package subspace

import (
	"fmt"
	"math"
	"time"

	"subspace-client/core"
	"subspace-client/models/submodel"
)

// anyAge accepts a snapshot however old it is.
const anyAge = time.Duration(math.MaxInt64)

// SaveSubnet archives the state and modules of netuid.
func (c *Client) SaveSubnet(netuid uint16) (submodel.SubnetSnapshot, error) {
	block, err := c.CurrentBlock()
	if err != nil {
		return submodel.SubnetSnapshot{}, err
	}
	state, err := c.SubnetState(netuid)
	if err != nil {
		return submodel.SubnetSnapshot{}, err
	}
	modules, err := c.registry.ListModules(netuid, c.cfg.Cache.StateMaxAge)
	if err != nil {
		return submodel.SubnetSnapshot{}, err
	}

	name := state.Name
	if name == "" {
		name = fmt.Sprint(netuid)
	}
	snap := submodel.SubnetSnapshot{
		Subnet:    state,
		Modules:   modules,
		Block:     block,
		Timestamp: c.now().Unix(),
	}
	if err := c.cache.Put(statePath(c.conn.Network().Name, name), snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// SaveBalances archives the free balance of every account.
func (c *Client) SaveBalances() (submodel.BalanceSnapshot, error) {
	block, err := c.CurrentBlock()
	if err != nil {
		return submodel.BalanceSnapshot{}, err
	}
	balances, err := c.Balances()
	if err != nil {
		return submodel.BalanceSnapshot{}, err
	}
	snap := submodel.BalanceSnapshot{Balances: balances, Block: block, Timestamp: c.now().Unix()}
	return snap, c.cache.Put(balancesPath(c.conn.Network().Name), snap)
}

// Save archives every subnet and the balances of the current network.
func (c *Client) Save() error {
	netuids, err := c.Netuids()
	if err != nil {
		return err
	}
	for _, netuid := range netuids {
		if _, err := c.SaveSubnet(netuid); err != nil {
			return fmt.Errorf("save subnet %d err: %w", netuid, err)
		}
	}
	if _, err := c.SaveBalances(); err != nil {
		return fmt.Errorf("save balances err: %w", err)
	}
	c.log.Debug("state saved", "network", c.conn.Network().Name, "subnets", len(netuids))
	return nil
}

// LoadSubnet returns the last archived snapshot of subnet, a name or netuid.
func (c *Client) LoadSubnet(subnet string) (submodel.SubnetSnapshot, error) {
	var snap submodel.SubnetSnapshot
	if !c.cache.Get(statePath(c.conn.Network().Name, subnet), anyAge, &snap) {
		return snap, fmt.Errorf("%w: no snapshot of %s", core.ErrUnknownSubnet, subnet)
	}
	return snap, nil
}

func (c *Client) LoadBalances() (submodel.BalanceSnapshot, error) {
	var snap submodel.BalanceSnapshot
	if !c.cache.Get(balancesPath(c.conn.Network().Name), anyAge, &snap) {
		return snap, fmt.Errorf("no balance snapshot for %s", c.conn.Network().Name)
	}
	return snap, nil
}
