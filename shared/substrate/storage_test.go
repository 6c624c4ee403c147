package substrate_test

import (
	"testing"

	"subspace-client/shared/substrate"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoragePrefix(t *testing.T) {
	assert.Equal(t,
		"0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9",
		hexutil.Encode(substrate.StoragePrefix("System", "Account")))
}

func TestStorageKey(t *testing.T) {
	hashers := substrate.DefaultStorageHashers()
	id, err := substrate.ParseAccountID(alicePub)
	require.NoError(t, err)

	key, err := hashers.StorageKey("System", "Account", []interface{}{id})
	require.NoError(t, err)
	require.Len(t, key, 32+16+32)
	assert.Equal(t, id[:], key[48:])

	tail := key[32:]
	assert.Equal(t, id[:], hashers.TrailingKey("System", "Account", 0, tail))
}

func TestStorageKeyIdentity(t *testing.T) {
	hashers := substrate.DefaultStorageHashers()
	key, err := hashers.StorageKey("SubspaceModule", "Keys", []interface{}{uint16(3), uint16(1)})
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 0, 1, 0}, key[32:])

	name, err := hashers.StorageKey("SubspaceModule", "SubnetNamespace", []interface{}{"ab"})
	require.NoError(t, err)
	assert.Equal(t, []byte{8, 'a', 'b'}, name[32:])
}

func TestEncodeDecode(t *testing.T) {
	bz, err := substrate.Encode(uint64(500))
	require.NoError(t, err)
	var v uint64
	require.NoError(t, substrate.Decode(bz, &v))
	assert.Equal(t, uint64(500), v)
}
