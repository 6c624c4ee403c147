package subspace_test

import (
	"errors"
	"testing"
	"time"

	"subspace-client/chains/subspace"
	"subspace-client/config"
	"subspace-client/core"
	"subspace-client/shared/cache"
	"subspace-client/shared/keyring"
	"subspace-client/shared/substrate"
	"subspace-client/shared/substrate/substratetest"

	"github.com/ChainSafe/log15"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tlog = log15.Root()

const (
	mainURL = "ws://main.local:9944"
	testURL = "ws://test.local:9944"
	deadURL = "ws://dead.local:9944"

	oneToken = 1000000000
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Network = "main"
	cfg.Networks = map[string]string{"main": mainURL, "test": testURL, "dead": deadURL}
	cfg.KeystorePath = t.TempDir()
	cfg.Retry = config.RetryConfig{Attempts: 3}
	cfg.Cache = config.CacheConfig{
		ModulesMaxAge:   time.Minute,
		NamespaceMaxAge: time.Minute,
		StateMaxAge:     time.Minute,
	}
	return cfg
}

type fixture struct {
	client *subspace.Client
	ledger *substratetest.Ledger
	other  *substratetest.Ledger
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		ledger: substratetest.NewLedger(),
		other:  substratetest.NewLedger(),
		now:    time.Unix(1700000000, 0),
	}
	dial := substratetest.Dialer(map[string]*substratetest.Ledger{mainURL: f.ledger, testURL: f.other})
	client, err := subspace.NewClient(testConfig(t), dial, cache.NewMemoryStore(), tlog)
	require.NoError(t, err)
	client.SetClock(func() time.Time { return f.now })
	t.Cleanup(func() { client.Close() })
	f.client = client
	return f
}

// key returns the local key under alias funded with tokens.
func (f *fixture) key(t *testing.T, alias string, tokens int64) *keyring.Keypair {
	kp, _, err := f.client.Keyring().LoadOrCreate(alias)
	require.NoError(t, err)
	if tokens > 0 {
		f.ledger.SetBalance(kp.AccountID(), uint64(tokens)*oneToken)
	}
	return kp
}

func accountOf(t *testing.T, seed byte) substrate.AccountID {
	var id substrate.AccountID
	for i := range id {
		id[i] = seed
	}
	return id
}

func tokens(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestQueryRetryExhausted(t *testing.T) {
	f := newFixture(t)
	kp := f.key(t, "alice", 5)
	f.ledger.Fail(substratetest.MethodQuery, substratetest.ErrTransport, substratetest.ErrTransport, substratetest.ErrTransport)

	_, err := f.client.Balance(kp.Address())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrChainQuery))
	var qerr *core.QueryError
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, 3, qerr.Attempts)
	assert.Equal(t, 3, f.ledger.Calls(substratetest.MethodQuery))
}

func TestQueryRetryRecovers(t *testing.T) {
	f := newFixture(t)
	kp := f.key(t, "alice", 5)
	f.ledger.Fail(substratetest.MethodQuery, substratetest.ErrTransport, substratetest.ErrTransport)

	balance, err := f.client.Balance(kp.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(5*oneToken), balance)
}

func TestUnknownAccountHoldsNothing(t *testing.T) {
	f := newFixture(t)
	balance, err := f.client.Balance(accountOf(t, 9).Address(42))
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestSwitchNetwork(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "main", f.client.Network().Name)

	endpoint, err := f.client.ResolveNetwork("test")
	require.NoError(t, err)
	assert.Equal(t, testURL, endpoint.URL)
	assert.Equal(t, 1, f.ledger.Closed)

	endpoint, err = f.client.ResolveNetwork("test")
	require.NoError(t, err)
	assert.Equal(t, "test", endpoint.Name)
	assert.Equal(t, 0, f.other.Closed)

	endpoint, err = f.client.ResolveNetwork("main")
	require.NoError(t, err)
	assert.Equal(t, core.NetworkEndpoint{Name: "main", URL: mainURL}, endpoint)
	assert.Equal(t, 1, f.other.Closed)

	_, err = f.client.ResolveNetwork("nowhere")
	assert.True(t, errors.Is(err, core.ErrUnknownNetwork))
	assert.Equal(t, "main", f.client.Network().Name)
}

func TestFailedSwitchKeepsConnection(t *testing.T) {
	f := newFixture(t)
	kp := f.key(t, "alice", 5)

	_, err := f.client.ResolveNetwork("dead")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrChainConnection))
	assert.Equal(t, "main", f.client.Network().Name)
	assert.Zero(t, f.ledger.Closed)

	block, err := f.client.CurrentBlock()
	require.NoError(t, err)
	assert.Equal(t, f.ledger.Block(), block)
	balance, err := f.client.Balance(kp.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(5*oneToken), balance)
}

func TestNetworkCachesAreSeparate(t *testing.T) {
	f := newFixture(t)
	f.ledger.AddModule(0, accountOf(t, 1), "m1", "1.1.1.1:80", oneToken)

	modules, err := f.client.Modules(0)
	require.NoError(t, err)
	assert.Len(t, modules, 1)

	_, err = f.client.ResolveNetwork("test")
	require.NoError(t, err)
	modules, err = f.client.Modules(0)
	require.NoError(t, err)
	assert.Empty(t, modules)
}

func TestExistentialDepositAndBlock(t *testing.T) {
	f := newFixture(t)
	ed, err := f.client.ExistentialDeposit()
	require.NoError(t, err)
	assert.Equal(t, uint64(500), ed)

	block, err := f.client.CurrentBlock()
	require.NoError(t, err)
	assert.Equal(t, f.ledger.Block(), block)
}

func TestResolveSubnet(t *testing.T) {
	f := newFixture(t)
	f.ledger.AddSubnet(3, "alpha", accountOf(t, 1))

	netuid, err := f.client.ResolveSubnet("alpha")
	require.NoError(t, err)
	assert.Equal(t, uint16(3), netuid)

	netuid, err = f.client.ResolveSubnet("7")
	require.NoError(t, err)
	assert.Equal(t, uint16(7), netuid)

	netuid, err = f.client.ResolveSubnet("")
	require.NoError(t, err)
	assert.Equal(t, uint16(0), netuid)

	f.ledger.AddSubnet(4, "beta", accountOf(t, 1))
	netuid, err = f.client.ResolveSubnet("beta")
	require.NoError(t, err)
	assert.Equal(t, uint16(4), netuid)

	_, err = f.client.ResolveSubnet("gamma")
	assert.True(t, errors.Is(err, core.ErrUnknownSubnet))
}

func TestResolveAddress(t *testing.T) {
	f := newFixture(t)
	kp := f.key(t, "alice", 0)
	f.ledger.AddModule(0, accountOf(t, 2), "vali", "1.1.1.1:80", 0)

	addr, err := f.client.ResolveAddress("alice")
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), addr)

	addr, err = f.client.ResolveAddress(kp.PublicKeyHex())
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), addr)

	addr, err = f.client.ResolveAddress("vali")
	require.NoError(t, err)
	assert.Equal(t, accountOf(t, 2).Address(42), addr)

	_, err = f.client.ResolveAddress("nobody")
	assert.True(t, errors.Is(err, core.ErrInvalidAddress))
}
