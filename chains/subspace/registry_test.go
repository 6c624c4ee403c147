package subspace_test

import (
	"errors"
	"testing"
	"time"

	"subspace-client/core"
	"subspace-client/models/submodel"
	"subspace-client/shared/substrate/substratetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModulesJoin(t *testing.T) {
	f := newFixture(t)
	a, b, c := accountOf(t, 1), accountOf(t, 2), accountOf(t, 3)
	f.ledger.AddModule(0, a, "m0", "1.1.1.1:80", 2*oneToken)
	f.ledger.AddModule(0, b, "m1", "1.1.1.2:80", oneToken)
	f.ledger.AddModule(0, c, "m2", "1.1.1.3:80", 0)
	f.ledger.SetModuleStats(0, 2, 7, 8, 9)
	f.ledger.SetBalance(c, 3*oneToken)
	f.ledger.DropKey(0, 1)

	modules, err := f.client.Modules(0)
	require.NoError(t, err)
	require.Len(t, modules, 2)

	assert.Equal(t, uint16(0), modules[0].Uid)
	assert.Equal(t, "m0", modules[0].Name)
	assert.Equal(t, a.Address(42), modules[0].Key)
	assert.True(t, tokens("2").Equal(modules[0].Stake))

	m2 := modules[1]
	assert.Equal(t, uint16(2), m2.Uid)
	assert.Equal(t, "1.1.1.3:80", m2.Address)
	assert.True(t, tokens("0.000000007").Equal(m2.Emission))
	assert.True(t, tokens("0.000000009").Equal(m2.Dividends))
	assert.True(t, tokens("3").Equal(m2.Balance))
	assert.Equal(t, []submodel.WeightPair{}, m2.Weights)

	uids, err := f.client.Uids(0)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 2}, uids)
}

func TestModulesCached(t *testing.T) {
	f := newFixture(t)
	f.ledger.AddModule(0, accountOf(t, 1), "m0", "1.1.1.1:80", 0)

	names, err := f.client.Names(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0"}, names)
	reads := f.ledger.Calls(substratetest.MethodQueryMap)

	f.ledger.AddModule(0, accountOf(t, 2), "m1", "1.1.1.2:80", 0)
	names, err = f.client.Names(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0"}, names)
	assert.Equal(t, reads, f.ledger.Calls(substratetest.MethodQueryMap))

	f.now = f.now.Add(time.Minute + time.Second)
	names, err = f.client.Names(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0", "m1"}, names)
}

func TestCacheDisabled(t *testing.T) {
	f := newFixture(t)
	f.client.Config().Cache.ModulesMaxAge = -1
	f.ledger.AddModule(0, accountOf(t, 1), "m0", "1.1.1.1:80", 0)

	_, err := f.client.Modules(0)
	require.NoError(t, err)
	f.ledger.AddModule(0, accountOf(t, 2), "m1", "1.1.1.2:80", 0)
	modules, err := f.client.Modules(0)
	require.NoError(t, err)
	assert.Len(t, modules, 2)
}

func TestClearCache(t *testing.T) {
	f := newFixture(t)
	f.ledger.AddModule(0, accountOf(t, 1), "m0", "1.1.1.1:80", 0)
	_, err := f.client.Modules(0)
	require.NoError(t, err)
	_, err = f.client.Subnets()
	require.NoError(t, err)

	require.NoError(t, f.client.Cache().Put("archive/mainnet/balances", submodel.BalanceSnapshot{}))
	require.NoError(t, f.client.Cache().Put("archive/mainnet.0/modules", []submodel.Module{}))

	n, err := f.client.ClearCache()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	paths, err := f.client.Cache().Paths("archive/")
	require.NoError(t, err)
	assert.Equal(t, []string{"archive/mainnet.0/modules", "archive/mainnet/balances"}, paths)
}

func TestNameLookups(t *testing.T) {
	f := newFixture(t)
	a := accountOf(t, 1)
	f.ledger.AddModule(0, a, "vali", "1.1.1.1:80", 0)

	key, err := f.client.Name2Key("vali", 0)
	require.NoError(t, err)
	assert.Equal(t, a.Address(42), key)

	m, err := f.client.Key2Module(a.Address(42), 0)
	require.NoError(t, err)
	assert.Equal(t, "vali", m.Name)

	_, err = f.client.Key2Module(accountOf(t, 2).Address(42), 0)
	assert.True(t, errors.Is(err, core.ErrNotRegistered))

	exists, err := f.client.ModuleExists("vali", 0)
	require.NoError(t, err)
	assert.True(t, exists)

	ns, err := f.client.Namespace(0)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"vali": "1.1.1.1:80"}, ns)

	name2uid, err := f.client.Name2Uid(0)
	require.NoError(t, err)
	assert.Equal(t, map[string]uint16{"vali": 0}, name2uid)
}

func TestSubnetState(t *testing.T) {
	f := newFixture(t)
	f.ledger.AddSubnet(0, "commune", accountOf(t, 9))
	f.ledger.AddSubnet(1, "alpha", accountOf(t, 9))
	f.ledger.AddModule(0, accountOf(t, 1), "m0", "1.1.1.1:80", 3*oneToken)
	f.ledger.AddModule(1, accountOf(t, 2), "m1", "1.1.1.2:80", oneToken)

	state, err := f.client.SubnetState(0)
	require.NoError(t, err)
	assert.Equal(t, "commune", state.Name)
	assert.Equal(t, uint16(1), state.N)
	assert.Equal(t, accountOf(t, 9).Address(42), state.Founder)
	assert.True(t, tokens("3").Equal(state.Stake))
	assert.True(t, tokens("0.75").Equal(state.Ratio))

	names, err := f.client.Subnets()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "commune"}, names)

	states, err := f.client.SubnetStates()
	require.NoError(t, err)
	assert.Len(t, states, 2)

	total, err := f.client.TotalStake()
	require.NoError(t, err)
	assert.Equal(t, uint64(4*oneToken), total)
}

func TestSnapshots(t *testing.T) {
	f := newFixture(t)
	f.ledger.AddSubnet(0, "commune", accountOf(t, 9))
	f.ledger.AddModule(0, accountOf(t, 1), "m0", "1.1.1.1:80", 0)
	f.ledger.SetBalance(accountOf(t, 1), 2*oneToken)

	_, err := f.client.LoadSubnet("commune")
	assert.True(t, errors.Is(err, core.ErrUnknownSubnet))

	require.NoError(t, f.client.Save())

	snap, err := f.client.LoadSubnet("commune")
	require.NoError(t, err)
	assert.Equal(t, "commune", snap.Subnet.Name)
	assert.Len(t, snap.Modules, 1)
	assert.Equal(t, f.now.Unix(), snap.Timestamp)

	f.now = f.now.Add(24 * time.Hour)
	balances, err := f.client.LoadBalances()
	require.NoError(t, err)
	assert.True(t, tokens("2").Equal(balances.Balances[accountOf(t, 1).Address(42)]))
}
