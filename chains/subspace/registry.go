// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package subspace

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ChainSafe/log15"
	"github.com/shopspring/decimal"
	"subspace-client/config"
	"subspace-client/models/submodel"
	"subspace-client/shared/cache"
	"subspace-client/shared/substrate"
	"subspace-client/utils"
)

func modulesPath(network string, netuid uint16) string {
	return fmt.Sprintf("archive/%s.%d/modules", network, netuid)
}

func subnetNamespacePath(network string) string {
	return fmt.Sprintf("archive/%s/subnet_namespace", network)
}

func statePath(network, subnet string) string {
	return fmt.Sprintf("archive/%s/state_%s", network, subnet)
}

func balancesPath(network string) string {
	return fmt.Sprintf("archive/%s/balances", network)
}

// networkPrefixes cover every path of network and nothing of another
// network sharing its name as a prefix.
func networkPrefixes(network string) []string {
	return []string{"archive/" + network + "/", "archive/" + network + "."}
}

// Registry assembles the per subnet module views out of the chain maps.
type Registry struct {
	conn   *Connection
	cache  *cache.Cache
	format utils.Formatter
	prefix uint16
	log    log15.Logger
}

func NewRegistry(conn *Connection, c *cache.Cache, format utils.Formatter, prefix uint16, log log15.Logger) *Registry {
	return &Registry{conn: conn, cache: c, format: format, prefix: prefix, log: log}
}

// ListModules returns the modules of netuid ordered by uid, from the cache
// when the entry is at most maxAge old. Records that do not join across the
// chain maps are left out.
func (r *Registry) ListModules(netuid uint16, maxAge time.Duration) ([]submodel.Module, error) {
	path := modulesPath(r.conn.Network().Name, netuid)
	var modules []submodel.Module
	if r.cache.Get(path, maxAge, &modules) {
		return modules, nil
	}

	modules, err := r.fetchModules(netuid)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Put(path, modules); err != nil {
		r.log.Warn("save modules to cache failed", "path", path, "err", err)
	}
	return modules, nil
}

// Invalidate drops the cached module list of netuid.
func (r *Registry) Invalidate(netuid uint16) error {
	return r.cache.Invalidate(modulesPath(r.conn.Network().Name, netuid))
}

func (r *Registry) fetchModules(netuid uint16) ([]submodel.Module, error) {
	params := []interface{}{netuid}

	uid2key := make(map[uint16]substrate.AccountID)
	if err := r.scanMap(config.StorageKeys, params, func(k, v []byte) error {
		var uid uint16
		var key substrate.AccountID
		if err := substrate.Decode(k, &uid); err != nil {
			return err
		}
		if err := substrate.Decode(v, &key); err != nil {
			return err
		}
		uid2key[uid] = key
		return nil
	}); err != nil {
		return nil, err
	}

	key2uid := make(map[substrate.AccountID]uint16)
	if err := r.scanMap(config.StorageUids, params, func(k, v []byte) error {
		var key substrate.AccountID
		var uid uint16
		if err := substrate.Decode(k, &key); err != nil {
			return err
		}
		if err := substrate.Decode(v, &uid); err != nil {
			return err
		}
		key2uid[key] = uid
		return nil
	}); err != nil {
		return nil, err
	}

	uid2address := make(map[uint16]string)
	if err := r.scanMap(config.StorageAddress, params, func(k, v []byte) error {
		var uid uint16
		var address []byte
		if err := substrate.Decode(k, &uid); err != nil {
			return err
		}
		if err := substrate.Decode(v, &address); err != nil {
			return err
		}
		uid2address[uid] = string(address)
		return nil
	}); err != nil {
		return nil, err
	}

	uid2name := make(map[uint16]string)
	if err := r.scanMap(config.StorageNamespace, params, func(k, v []byte) error {
		var name []byte
		var uid uint16
		if err := substrate.Decode(k, &name); err != nil {
			return err
		}
		if err := substrate.Decode(v, &uid); err != nil {
			return err
		}
		uid2name[uid] = string(name)
		return nil
	}); err != nil {
		return nil, err
	}

	key2stake := make(map[substrate.AccountID]uint64)
	if err := r.scanMap(config.StorageStake, params, func(k, v []byte) error {
		var key substrate.AccountID
		var stake uint64
		if err := substrate.Decode(k, &key); err != nil {
			return err
		}
		if err := substrate.Decode(v, &stake); err != nil {
			return err
		}
		key2stake[key] = stake
		return nil
	}); err != nil {
		return nil, err
	}

	uid2weights := make(map[uint16][]submodel.WeightPair)
	if err := r.scanMap(config.StorageWeights, params, func(k, v []byte) error {
		var uid uint16
		var weights []submodel.WeightPair
		if err := substrate.Decode(k, &uid); err != nil {
			return err
		}
		if err := substrate.Decode(v, &weights); err != nil {
			return err
		}
		uid2weights[uid] = weights
		return nil
	}); err != nil {
		return nil, err
	}

	var emission, incentive, dividends []uint64
	for storage, vec := range map[string]*[]uint64{
		config.StorageEmission:  &emission,
		config.StorageIncentive: &incentive,
		config.StorageDividends: &dividends,
	} {
		if _, err := r.conn.Query(config.SubspaceModuleId, storage, params, 0, vec); err != nil {
			return nil, err
		}
	}

	balances, err := r.freeBalances()
	if err != nil {
		return nil, err
	}

	uids := make([]int, 0, len(uid2address))
	for uid := range uid2address {
		uids = append(uids, int(uid))
	}
	sort.Ints(uids)

	modules := make([]submodel.Module, 0, len(uids))
	for _, u := range uids {
		uid := uint16(u)
		key, ok := uid2key[uid]
		if !ok {
			r.log.Warn("module has an address but no key, cache may be stale", "netuid", netuid, "uid", uid)
			continue
		}
		if back, ok := key2uid[key]; !ok || back != uid {
			r.log.Warn("module key not in uid map, cache may be stale", "netuid", netuid, "uid", uid, "key", key.Address(r.prefix))
			continue
		}
		name, ok := uid2name[uid]
		if !ok {
			r.log.Warn("module has no name, cache may be stale", "netuid", netuid, "uid", uid)
			continue
		}

		weights := uid2weights[uid]
		if weights == nil {
			weights = []submodel.WeightPair{}
		}
		modules = append(modules, submodel.Module{
			Uid:       uid,
			Netuid:    netuid,
			Key:       key.Address(r.prefix),
			Name:      name,
			Address:   uid2address[uid],
			Stake:     r.format.ToDisplayUnits(key2stake[key]),
			Emission:  r.format.ToDisplayUnits(at(emission, uid)),
			Incentive: r.format.ToDisplayUnits(at(incentive, uid)),
			Dividends: r.format.ToDisplayUnits(at(dividends, uid)),
			Balance:   r.format.ToDisplayUnits(balances[key]),
			Weights:   weights,
		})
	}
	r.log.Debug("modules fetched", "netuid", netuid, "modules", len(modules), "addresses", len(uid2address))
	return modules, nil
}

func at(vec []uint64, uid uint16) uint64 {
	if int(uid) < len(vec) {
		return vec[uid]
	}
	return 0
}

func (r *Registry) scanMap(storage string, params []interface{}, fn func(k, v []byte) error) error {
	entries, err := r.conn.QueryMap(config.SubspaceModuleId, storage, params, 0)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := fn(e.Key, e.Value); err != nil {
			return fmt.Errorf("decode %s entry err: %s", storage, err)
		}
	}
	return nil
}

// freeBalances reads the free balance of every account on chain.
func (r *Registry) freeBalances() (map[substrate.AccountID]uint64, error) {
	entries, err := r.conn.QueryMap(config.SystemModuleId, config.StorageAccount, nil, 0)
	if err != nil {
		return nil, err
	}
	out := make(map[substrate.AccountID]uint64, len(entries))
	for _, e := range entries {
		var id substrate.AccountID
		var info submodel.AccountInfo
		if err := substrate.Decode(e.Key, &id); err != nil {
			return nil, fmt.Errorf("decode account key err: %s", err)
		}
		if err := substrate.Decode(e.Value, &info); err != nil {
			return nil, fmt.Errorf("decode account info err: %s", err)
		}
		out[id] = info.Data.Free
	}
	return out, nil
}

// IsRegistered tells whether key holds a uid on netuid.
func (r *Registry) IsRegistered(key substrate.AccountID, netuid uint16) (bool, error) {
	var uid uint16
	return r.conn.Query(config.SubspaceModuleId, config.StorageUids, []interface{}{netuid, key}, 0, &uid)
}

// Namespace maps module names of netuid to their network addresses.
func (r *Registry) Namespace(netuid uint16, maxAge time.Duration) (map[string]string, error) {
	modules, err := r.ListModules(netuid, maxAge)
	if err != nil {
		return nil, err
	}
	ns := make(map[string]string, len(modules))
	for _, m := range modules {
		ns[m.Name] = m.Address
	}
	return ns, nil
}

// SubnetNamespace maps subnet names to netuids.
func (r *Registry) SubnetNamespace(maxAge time.Duration) (map[string]uint16, error) {
	path := subnetNamespacePath(r.conn.Network().Name)
	var ns map[string]uint16
	if r.cache.Get(path, maxAge, &ns) {
		return ns, nil
	}

	ns = make(map[string]uint16)
	if err := r.scanMap(config.StorageSubnetNamespace, nil, func(k, v []byte) error {
		var name []byte
		var netuid uint16
		if err := substrate.Decode(k, &name); err != nil {
			return err
		}
		if err := substrate.Decode(v, &netuid); err != nil {
			return err
		}
		ns[string(name)] = netuid
		return nil
	}); err != nil {
		return nil, err
	}
	if err := r.cache.Put(path, ns); err != nil {
		r.log.Warn("save subnet namespace to cache failed", "path", path, "err", err)
	}
	return ns, nil
}

// InvalidateSubnets drops the cached subnet namespace.
func (r *Registry) InvalidateSubnets() error {
	return r.cache.Invalidate(subnetNamespacePath(r.conn.Network().Name))
}

// SubnetState reads the subnet level parameters of netuid straight from
// the chain.
func (r *Registry) SubnetState(netuid uint16) (submodel.Subnet, error) {
	params := []interface{}{netuid}
	s := submodel.Subnet{Netuid: netuid}

	u16s := []struct {
		storage string
		out     *uint16
	}{
		{config.StorageN, &s.N},
		{config.StorageTempo, &s.Tempo},
		{config.StorageImmunityPeriod, &s.ImmunityPeriod},
		{config.StorageMinAllowedWeights, &s.MinAllowedWeights},
		{config.StorageMaxAllowedUids, &s.MaxAllowedUids},
		{config.StorageMaxWeightsLimit, &s.MaxWeightsLimit},
	}
	for _, item := range u16s {
		if _, err := r.conn.Query(config.SubspaceModuleId, item.storage, params, 0, item.out); err != nil {
			return s, err
		}
	}

	var stake, emission, total uint64
	if _, err := r.conn.Query(config.SubspaceModuleId, config.StorageSubnetTotalStake, params, 0, &stake); err != nil {
		return s, err
	}
	if _, err := r.conn.Query(config.SubspaceModuleId, config.StorageSubnetEmission, params, 0, &emission); err != nil {
		return s, err
	}
	if _, err := r.conn.Query(config.SubspaceModuleId, config.StorageTotalStake, nil, 0, &total); err != nil {
		return s, err
	}
	var founder substrate.AccountID
	exist, err := r.conn.Query(config.SubspaceModuleId, config.StorageFounder, params, 0, &founder)
	if err != nil {
		return s, err
	}
	if exist {
		s.Founder = founder.Address(r.prefix)
	}

	s.Stake = r.format.ToDisplayUnits(stake)
	s.Emission = r.format.ToDisplayUnits(emission)
	s.Ratio = decimal.Zero
	if total > 0 {
		s.Ratio = decimal.NewFromBigInt(new(big.Int).SetUint64(stake), 0).Div(decimal.NewFromBigInt(new(big.Int).SetUint64(total), 0))
	}
	return s, nil
}
