package subspace_test

import (
	"errors"
	"testing"

	"subspace-client/chains/subspace"
	"subspace-client/core"
	"subspace-client/shared/substrate/substratetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterThenListed(t *testing.T) {
	f := newFixture(t)
	f.ledger.AddSubnet(3, "alpha", accountOf(t, 9))
	kp := f.key(t, "m1", 100)

	modules, err := f.client.Modules(3)
	require.NoError(t, err)
	assert.Empty(t, modules)

	out, err := f.client.Register(subspace.RegisterParams{
		Subnet:  "alpha",
		Key:     "m1",
		Name:    "m1",
		Address: "10.0.0.1:8000",
		Stake:   tokens("10"),
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "finalized", out.Message)
	assert.NotEmpty(t, out.BlockHash)

	registered, err := f.client.IsRegistered(kp.Address(), 3)
	require.NoError(t, err)
	assert.True(t, registered)

	m, err := f.client.Name2Module("m1", 3)
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), m.Key)
	assert.Equal(t, "10.0.0.1:8000", m.Address)
	assert.True(t, tokens("10").Equal(m.Stake))

	balance, err := f.client.Balance("m1")
	require.NoError(t, err)
	assert.Equal(t, uint64(90*oneToken), balance)
}

func TestRegisterCreatesSubnet(t *testing.T) {
	f := newFixture(t)
	f.ledger.AddSubnet(0, "commune", accountOf(t, 9))
	f.key(t, "m1", 1)

	_, err := f.client.Subnets()
	require.NoError(t, err)

	out, err := f.client.Register(subspace.RegisterParams{Subnet: "beta", Key: "m1", Name: "m1", Address: "10.0.0.1:8000"})
	require.NoError(t, err)
	require.True(t, out.Success)

	names, err := f.client.Subnets()
	require.NoError(t, err)
	assert.Equal(t, []string{"beta", "commune"}, names)
	netuid, err := f.client.ResolveSubnet("beta")
	require.NoError(t, err)
	assert.Equal(t, uint16(1), netuid)
}

func TestRegisterTwiceUpdates(t *testing.T) {
	f := newFixture(t)
	kp := f.key(t, "m1", 1)
	f.ledger.AddModule(0, kp.AccountID(), "m1", "10.0.0.1:8000", 0)

	out, err := f.client.Register(subspace.RegisterParams{Subnet: "0", Key: "m1", Name: "m1", Address: "10.0.0.2:8000"})
	require.NoError(t, err)
	require.True(t, out.Success)

	m, err := f.client.Key2Module("m1", 0)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2:8000", m.Address)
	assert.Equal(t, "m1", m.Name)
}

func TestRegisterInsufficientStake(t *testing.T) {
	f := newFixture(t)
	f.ledger.AddSubnet(0, "commune", accountOf(t, 9))
	f.key(t, "m1", 1)

	out, err := f.client.Register(subspace.RegisterParams{Key: "m1", Name: "m1", Address: "10.0.0.1:8000", Stake: tokens("2")})
	assert.True(t, errors.Is(err, core.ErrInsufficientBalance))
	assert.False(t, out.Success)
	assert.Zero(t, f.ledger.Calls(substratetest.MethodSubmit))
}

func TestUpdateKeepsEmptyFields(t *testing.T) {
	f := newFixture(t)
	kp := f.key(t, "m1", 1)
	f.ledger.AddModule(0, kp.AccountID(), "m1", "10.0.0.1:8000", 0)

	out, err := f.client.Update(subspace.UpdateParams{Key: "m1", Name: "renamed"})
	require.NoError(t, err)
	require.True(t, out.Success)

	m, err := f.client.Key2Module("m1", 0)
	require.NoError(t, err)
	assert.Equal(t, "renamed", m.Name)
	assert.Equal(t, "10.0.0.1:8000", m.Address)

	_, err = f.client.Update(subspace.UpdateParams{Key: "m1"})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))

	f.key(t, "stranger", 1)
	_, err = f.client.Update(subspace.UpdateParams{Key: "stranger", Name: "x"})
	assert.True(t, errors.Is(err, core.ErrNotRegistered))
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	f.key(t, "alice", 50)
	bob := accountOf(t, 2)
	f.ledger.SetFee(20000000)

	out, err := f.client.Transfer(subspace.TransferParams{Key: "alice", Dest: bob.Address(42), Amount: tokens("10")})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "included", out.Message)

	alice, err := f.client.Account("alice")
	require.NoError(t, err)
	assert.True(t, tokens("39.98").Equal(alice.Free), alice.Free.String())
	assert.Equal(t, uint64(10*oneToken), f.ledger.Balance(bob))
}

func TestTransferInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.key(t, "alice", 10)
	f.ledger.SetFee(20000000)

	out, err := f.client.Transfer(subspace.TransferParams{Key: "alice", Dest: accountOf(t, 2).Address(42), Amount: tokens("10")})
	require.Error(t, err)
	var balErr *core.InsufficientBalanceError
	require.True(t, errors.As(err, &balErr))
	assert.Equal(t, uint64(20000000), balErr.Fee)
	assert.Equal(t, uint64(500), balErr.ExistentialDeposit)
	assert.False(t, out.Success)
	assert.Zero(t, f.ledger.Calls(substratetest.MethodSubmit))
}

func TestTransferFeeFallback(t *testing.T) {
	f := newFixture(t)
	kp := f.key(t, "alice", 0)
	f.ledger.SetBalance(kp.AccountID(), 10*oneToken+20000000)
	f.ledger.SetFeeError(errors.New("payment_queryInfo unavailable"))
	dest := accountOf(t, 2).Address(42)

	_, err := f.client.Transfer(subspace.TransferParams{Key: "alice", Dest: dest, Amount: tokens("10")})
	assert.True(t, errors.Is(err, core.ErrInsufficientBalance))
	assert.Zero(t, f.ledger.Calls(substratetest.MethodSubmit))

	out, err := f.client.Transfer(subspace.TransferParams{Key: "alice", Dest: dest, Amount: tokens("10"), AllowDeath: true})
	require.NoError(t, err)
	assert.True(t, out.Success)
}

func TestTransferToModuleName(t *testing.T) {
	f := newFixture(t)
	f.key(t, "alice", 5)
	vali := accountOf(t, 3)
	f.ledger.AddModule(0, vali, "vali", "10.0.0.3:8000", 0)

	out, err := f.client.Transfer(subspace.TransferParams{Key: "alice", Dest: "vali", Amount: tokens("1"), Wait: core.ConfirmNone})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "sent", out.Message)
	assert.Empty(t, out.BlockHash)
	assert.Equal(t, uint64(oneToken), f.ledger.Balance(vali))
}

func TestStakeAndUnstake(t *testing.T) {
	f := newFixture(t)
	kp := f.key(t, "m1", 10)
	f.ledger.AddModule(0, kp.AccountID(), "m1", "10.0.0.1:8000", 0)

	amount := tokens("4")
	out, err := f.client.AddStake(subspace.StakeParams{Key: "m1", Amount: &amount})
	require.NoError(t, err)
	require.True(t, out.Success)

	stake, err := f.client.Stake("m1", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(4*oneToken), stake)

	tooMuch := tokens("5")
	out, err = f.client.RemoveStake(subspace.StakeParams{Key: "m1", Amount: &tooMuch})
	assert.True(t, errors.Is(err, core.ErrInsufficientBalance))
	assert.False(t, out.Success)

	out, err = f.client.RemoveStake(subspace.StakeParams{Key: "m1"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "included", out.Message)

	balance, err := f.client.Balance("m1")
	require.NoError(t, err)
	assert.Equal(t, uint64(10*oneToken), balance)
}

func TestStakeEverything(t *testing.T) {
	f := newFixture(t)
	kp := f.key(t, "m1", 3)
	f.ledger.AddModule(0, kp.AccountID(), "m1", "10.0.0.1:8000", 0)

	out, err := f.client.AddStake(subspace.StakeParams{Key: "m1"})
	require.NoError(t, err)
	require.True(t, out.Success)
	assert.Zero(t, f.ledger.Balance(kp.AccountID()))
}

func TestSetWeights(t *testing.T) {
	f := newFixture(t)
	kp := f.key(t, "m0", 1)
	f.ledger.AddModule(0, kp.AccountID(), "m0", "10.0.0.1:8000", 0)
	f.ledger.AddModule(0, accountOf(t, 2), "m1", "10.0.0.2:8000", 0)
	f.ledger.AddModule(0, accountOf(t, 3), "m2", "10.0.0.3:8000", 0)

	out, err := f.client.SetWeights(subspace.SetWeightsParams{Key: "m0"})
	require.NoError(t, err)
	require.True(t, out.Success)

	require.NoError(t, f.client.Registry().Invalidate(0))
	m, err := f.client.Key2Module("m0", 0)
	require.NoError(t, err)
	require.Len(t, m.Weights, 3)
	for _, w := range m.Weights {
		assert.Equal(t, uint16(21845), w.Weight)
	}

	_, err = f.client.SetWeights(subspace.SetWeightsParams{Key: "m0", Uids: []uint16{1, 2}, Weights: []decimal.Decimal{tokens("1")}})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestOnChainFailure(t *testing.T) {
	f := newFixture(t)
	kp := f.key(t, "m1", 1)
	f.ledger.AddModule(0, kp.AccountID(), "m1", "10.0.0.1:8000", 0)

	f.ledger.RejectNext("SubspaceModule.TooManyRegistrationsPerBlock")
	out, err := f.client.Update(subspace.UpdateParams{Key: "m1", Address: "10.0.0.9:8000"})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "SubspaceModule.TooManyRegistrationsPerBlock", out.Message)

	out, err = f.client.Update(subspace.UpdateParams{Key: "m1", Address: "10.0.0.9:8000", Subnet: "0"})
	require.NoError(t, err)
	assert.True(t, out.Success)
}

func TestSubmitTransportFailure(t *testing.T) {
	f := newFixture(t)
	f.key(t, "alice", 5)
	f.ledger.Fail(substratetest.MethodSubmit, substratetest.ErrTransport, substratetest.ErrTransport, substratetest.ErrTransport)

	_, err := f.client.Transfer(subspace.TransferParams{Key: "alice", Dest: accountOf(t, 2).Address(42), Amount: tokens("1")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrChainTransaction))
	var txErr *core.TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, core.OpTransfer, txErr.Op)
	assert.Equal(t, 3, f.ledger.Calls(substratetest.MethodSubmit))
}

func TestFailedResolutionKeepsNetwork(t *testing.T) {
	f := newFixture(t)
	f.key(t, "alice", 5)
	dest := accountOf(t, 2).Address(42)

	_, err := f.client.Transfer(subspace.TransferParams{Network: "test", Key: "bad/alias", Dest: dest, Amount: tokens("1")})
	assert.True(t, errors.Is(err, core.ErrInvalidKey))
	assert.Equal(t, "main", f.client.Network().Name)
	assert.Zero(t, f.ledger.Closed)

	amount := tokens("1")
	_, err = f.client.AddStake(subspace.StakeParams{Network: "test", Subnet: "gamma", Key: "alice", Amount: &amount})
	assert.True(t, errors.Is(err, core.ErrUnknownSubnet))
	assert.Equal(t, "main", f.client.Network().Name)

	_, err = f.client.Auth(subspace.AuthParams{Network: "test", Subnet: "gamma", Key: "alice", Module: "m", Fn: "f"})
	assert.True(t, errors.Is(err, core.ErrUnknownSubnet))
	assert.Equal(t, "main", f.client.Network().Name)

	assert.Zero(t, f.ledger.Calls(substratetest.MethodSubmit))
	assert.Zero(t, f.other.Calls(substratetest.MethodSubmit))

	out, err := f.client.Transfer(subspace.TransferParams{Key: "alice", Dest: dest, Amount: tokens("1")})
	require.NoError(t, err)
	assert.True(t, out.Success)
}
