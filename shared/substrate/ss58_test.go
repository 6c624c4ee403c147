package substrate_test

import (
	"testing"

	"subspace-client/shared/substrate"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alicePub     = "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
	aliceAddress = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
)

func TestSS58Encode(t *testing.T) {
	pub := hexutil.MustDecode(alicePub)
	assert.Equal(t, aliceAddress, substrate.SS58Encode(pub, 42))
}

func TestSS58Decode(t *testing.T) {
	id, err := substrate.SS58Decode(aliceAddress)
	require.NoError(t, err)
	assert.Equal(t, alicePub, id.Hex())
	assert.Equal(t, aliceAddress, id.Address(42))

	assert.True(t, substrate.IsValidAddress(aliceAddress))
	assert.False(t, substrate.IsValidAddress("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQZ"))
	assert.False(t, substrate.IsValidAddress("alice"))
}

func TestSS58TwoByteAddressType(t *testing.T) {
	pub := hexutil.MustDecode(alicePub)
	address := substrate.SS58Encode(pub, 2254)
	require.NotEmpty(t, address)
	assert.NotEqual(t, aliceAddress, address)

	id, err := substrate.SS58Decode(address)
	require.NoError(t, err)
	assert.Equal(t, alicePub, id.Hex())

	assert.Empty(t, substrate.SS58Encode(pub[:31], 42))
}

func TestParseAccountID(t *testing.T) {
	fromHex, err := substrate.ParseAccountID(alicePub)
	require.NoError(t, err)
	fromAddress, err := substrate.ParseAccountID(aliceAddress)
	require.NoError(t, err)
	assert.Equal(t, fromHex, fromAddress)

	_, err = substrate.ParseAccountID("0x1234")
	assert.Error(t, err)
}
