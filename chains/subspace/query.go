// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package subspace

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"subspace-client/config"
	"subspace-client/core"
	"subspace-client/models/submodel"
)

// Balance is the free balance of ref in base units; unknown accounts hold 0.
func (c *Client) Balance(ref string) (uint64, error) {
	address, err := c.ResolveAddress(ref)
	if err != nil {
		return 0, err
	}
	id, err := c.accountID(address)
	if err != nil {
		return 0, err
	}
	var info submodel.AccountInfo
	if _, err := c.conn.Query(config.SystemModuleId, config.StorageAccount, []interface{}{id}, 0, &info); err != nil {
		return 0, err
	}
	return info.Data.Free, nil
}

// Account reads ref as an Account value.
func (c *Client) Account(ref string) (submodel.Account, error) {
	address, err := c.ResolveAddress(ref)
	if err != nil {
		return submodel.Account{}, err
	}
	free, err := c.Balance(address)
	if err != nil {
		return submodel.Account{}, err
	}
	return submodel.Account{Address: address, Free: c.format.ToDisplayUnits(free)}, nil
}

// Balances maps every account on chain to its free balance in display units.
func (c *Client) Balances() (map[string]decimal.Decimal, error) {
	raw, err := c.registry.freeBalances()
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(raw))
	for id, free := range raw {
		out[id.Address(c.cfg.SS58Prefix)] = c.format.ToDisplayUnits(free)
	}
	return out, nil
}

// Stake is the stake ref holds on netuid, in base units.
func (c *Client) Stake(ref string, netuid uint16) (uint64, error) {
	address, err := c.ResolveAddress(ref)
	if err != nil {
		return 0, err
	}
	id, err := c.accountID(address)
	if err != nil {
		return 0, err
	}
	var stake uint64
	if _, err := c.conn.Query(config.SubspaceModuleId, config.StorageStake, []interface{}{netuid, id}, 0, &stake); err != nil {
		return 0, err
	}
	return stake, nil
}

func (c *Client) SubnetStake(netuid uint16) (uint64, error) {
	var stake uint64
	_, err := c.conn.Query(config.SubspaceModuleId, config.StorageSubnetTotalStake, []interface{}{netuid}, 0, &stake)
	return stake, err
}

func (c *Client) TotalStake() (uint64, error) {
	var stake uint64
	_, err := c.conn.Query(config.SubspaceModuleId, config.StorageTotalStake, nil, 0, &stake)
	return stake, err
}

// ExistentialDeposit is read from the latest runtime metadata.
func (c *Client) ExistentialDeposit() (uint64, error) {
	var ed uint64
	err := c.conn.QueryConstant(config.BalancesModuleId, config.ConstantExistentialDeposit, 0, &ed)
	return ed, err
}

func (c *Client) CurrentBlock() (uint64, error) {
	return c.conn.LatestBlockNumber()
}

// Modules lists the modules of netuid, cached for the configured max age.
func (c *Client) Modules(netuid uint16) ([]submodel.Module, error) {
	return c.registry.ListModules(netuid, c.cfg.Cache.ModulesMaxAge)
}

func (c *Client) IsRegistered(ref string, netuid uint16) (bool, error) {
	address, err := c.ResolveAddress(ref)
	if err != nil {
		return false, err
	}
	id, err := c.accountID(address)
	if err != nil {
		return false, err
	}
	return c.registry.IsRegistered(id, netuid)
}

func (c *Client) Namespace(netuid uint16) (map[string]string, error) {
	return c.registry.Namespace(netuid, c.cfg.Cache.ModulesMaxAge)
}

func (c *Client) Keys(netuid uint16) ([]string, error) {
	modules, err := c.Modules(netuid)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(modules))
	for i, m := range modules {
		keys[i] = m.Key
	}
	return keys, nil
}

func (c *Client) Uids(netuid uint16) ([]uint16, error) {
	modules, err := c.Modules(netuid)
	if err != nil {
		return nil, err
	}
	uids := make([]uint16, len(modules))
	for i, m := range modules {
		uids[i] = m.Uid
	}
	return uids, nil
}

func (c *Client) Names(netuid uint16) ([]string, error) {
	modules, err := c.Modules(netuid)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(modules))
	for i, m := range modules {
		names[i] = m.Name
	}
	return names, nil
}

func (c *Client) Name2Uid(netuid uint16) (map[string]uint16, error) {
	modules, err := c.Modules(netuid)
	if err != nil {
		return nil, err
	}
	out := make(map[string]uint16, len(modules))
	for _, m := range modules {
		out[m.Name] = m.Uid
	}
	return out, nil
}

// Name2Module finds the module called name on netuid.
func (c *Client) Name2Module(name string, netuid uint16) (submodel.Module, error) {
	modules, err := c.Modules(netuid)
	if err != nil {
		return submodel.Module{}, err
	}
	for _, m := range modules {
		if m.Name == name {
			return m, nil
		}
	}
	return submodel.Module{}, fmt.Errorf("%w: no module %s on netuid %d", core.ErrInvalidAddress, name, netuid)
}

// Name2Key is the key of the module called name, an error when there is
// no such module.
func (c *Client) Name2Key(name string, netuid uint16) (string, error) {
	m, err := c.Name2Module(name, netuid)
	if err != nil {
		return "", err
	}
	return m.Key, nil
}

// Key2Module finds the module registered by the key behind ref on netuid.
func (c *Client) Key2Module(ref string, netuid uint16) (submodel.Module, error) {
	address, err := c.ResolveAddress(ref)
	if err != nil {
		return submodel.Module{}, err
	}
	modules, err := c.Modules(netuid)
	if err != nil {
		return submodel.Module{}, err
	}
	for _, m := range modules {
		if m.Key == address {
			return m, nil
		}
	}
	return submodel.Module{}, fmt.Errorf("%w: %s on netuid %d", core.ErrNotRegistered, address, netuid)
}

func (c *Client) ModuleExists(name string, netuid uint16) (bool, error) {
	modules, err := c.Modules(netuid)
	if err != nil {
		return false, err
	}
	for _, m := range modules {
		if m.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// Subnets lists the subnet names, sorted.
func (c *Client) Subnets() ([]string, error) {
	ns, err := c.registry.SubnetNamespace(c.cfg.Cache.NamespaceMaxAge)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ns))
	for name := range ns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Netuids lists the subnet ids, sorted.
func (c *Client) Netuids() ([]uint16, error) {
	ns, err := c.registry.SubnetNamespace(c.cfg.Cache.NamespaceMaxAge)
	if err != nil {
		return nil, err
	}
	ids := make([]uint16, 0, len(ns))
	for _, id := range ns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// SubnetState reads the parameters of netuid, named when it has a name.
func (c *Client) SubnetState(netuid uint16) (submodel.Subnet, error) {
	s, err := c.registry.SubnetState(netuid)
	if err != nil {
		return s, err
	}
	if name, err := c.SubnetName(netuid); err == nil {
		s.Name = name
	}
	return s, nil
}

func (c *Client) SubnetStates() ([]submodel.Subnet, error) {
	ids, err := c.Netuids()
	if err != nil {
		return nil, err
	}
	out := make([]submodel.Subnet, 0, len(ids))
	for _, id := range ids {
		s, err := c.SubnetState(id)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// RegisteredKeys maps the local key aliases registered on netuid to their
// addresses.
func (c *Client) RegisteredKeys(netuid uint16) (map[string]string, error) {
	local, err := c.keys.Addresses()
	if err != nil {
		return nil, err
	}
	keys, err := c.Keys(netuid)
	if err != nil {
		return nil, err
	}
	onChain := make(map[string]bool, len(keys))
	for _, k := range keys {
		onChain[k] = true
	}
	out := make(map[string]string)
	for alias, address := range local {
		if onChain[address] {
			out[alias] = address
		}
	}
	return out, nil
}
