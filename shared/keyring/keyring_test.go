package keyring_test

import (
	"bytes"
	"errors"
	"testing"

	"subspace-client/shared/keyring"
	"subspace-client/shared/substrate"

	"github.com/ChainSafe/log15"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tlog = log15.Root()

func TestLoadOrCreate(t *testing.T) {
	kr := keyring.New(t.TempDir(), 42, tlog)
	assert.False(t, kr.Exists("m1"))

	kp, created, err := kr.LoadOrCreate("m1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, kr.Exists("m1"))
	assert.True(t, substrate.IsValidAddress(kp.Address()))

	again, created, err := kr.LoadOrCreate("m1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, kp.Address(), again.Address())

	alias, ok := kr.AliasOf(kp.Address())
	assert.True(t, ok)
	assert.Equal(t, "m1", alias)
}

func TestImport(t *testing.T) {
	kr := keyring.New(t.TempDir(), 42, tlog)
	seed := bytes.Repeat([]byte{7}, 32)

	kp, err := kr.Import("seeded", seed)
	require.NoError(t, err)
	same, err := keyring.FromSeed("other", seed, 42)
	require.NoError(t, err)
	assert.Equal(t, same.Address(), kp.Address())

	_, err = kr.Import("seeded", seed)
	assert.True(t, errors.Is(err, keyring.ErrKeyExists))
	_, err = kr.Import("short", []byte{1})
	assert.Equal(t, keyring.ErrBadSeed, err)
}

func TestGetAndList(t *testing.T) {
	kr := keyring.New(t.TempDir(), 42, tlog)
	_, err := kr.Get("nobody")
	assert.True(t, errors.Is(err, keyring.ErrKeyNotFound))
	_, _, err = kr.LoadOrCreate("../escape")
	assert.True(t, errors.Is(err, keyring.ErrBadAlias))

	for _, alias := range []string{"b", "a"} {
		_, _, err := kr.LoadOrCreate(alias)
		require.NoError(t, err)
	}
	aliases, err := kr.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, aliases)

	addrs, err := kr.Addresses()
	require.NoError(t, err)
	assert.Len(t, addrs, 2)
}

func TestSignVerify(t *testing.T) {
	kp, err := keyring.FromSeed("s", bytes.Repeat([]byte{1}, 32), 42)
	require.NoError(t, err)
	sig, err := kp.Sign([]byte("hello"))
	require.NoError(t, err)
	assert.True(t, keyring.Verify(kp.PublicKey(), []byte("hello"), sig))
	assert.False(t, keyring.Verify(kp.PublicKey(), []byte("hellp"), sig))
	assert.False(t, keyring.Verify([]byte{1}, []byte("hello"), sig))
}
