// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package keyring

import (
	"crypto/ed25519"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"subspace-client/shared/substrate"
)

var ErrBadSeed = errors.New("seed must be 32 bytes")

// Keypair is an ed25519 key able to sign extrinsics and attestations.
type Keypair struct {
	alias  string
	prefix uint16
	priv   ed25519.PrivateKey
}

func NewKeypair(alias string, priv ed25519.PrivateKey, prefix uint16) *Keypair {
	return &Keypair{alias: alias, prefix: prefix, priv: priv}
}

// FromSeed derives the keypair of a 32 byte seed.
func FromSeed(alias string, seed []byte, prefix uint16) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrBadSeed
	}
	return NewKeypair(alias, ed25519.NewKeyFromSeed(seed), prefix), nil
}

func (k *Keypair) Alias() string {
	return k.alias
}

func (k *Keypair) PublicKey() []byte {
	return k.priv.Public().(ed25519.PublicKey)
}

func (k *Keypair) AccountID() substrate.AccountID {
	var id substrate.AccountID
	copy(id[:], k.PublicKey())
	return id
}

// Address is the ss58 address of the key.
func (k *Keypair) Address() string {
	return substrate.SS58Encode(k.PublicKey(), k.prefix)
}

func (k *Keypair) PublicKeyHex() string {
	return hexutil.Encode(k.PublicKey())
}

func (k *Keypair) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(k.priv, msg), nil
}

// Verify checks sig over msg against an ed25519 public key.
func Verify(pub, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}
