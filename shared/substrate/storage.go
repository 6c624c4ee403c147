// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package substrate

import (
	"fmt"

	"github.com/stafiprotocol/go-substrate-rpc-client/xxhash"
	"golang.org/x/crypto/blake2b"
)

// StorageHashers lists, per "Module.Storage", the hasher of each map key.
// Items that are absent hash every key with Identity.
type StorageHashers map[string][]string

func DefaultStorageHashers() StorageHashers {
	return StorageHashers{
		"System.Account": {HasherBlake2_128Concat},
	}
}

func (h StorageHashers) hasher(module, storage string, i int) string {
	list := h[module+"."+storage]
	if i < len(list) {
		return list[i]
	}
	return HasherIdentity
}

// StoragePrefix is twox128(module) ++ twox128(storage).
func StoragePrefix(module, storage string) []byte {
	m := xxhash.New128([]byte(module)).Sum(nil)
	s := xxhash.New128([]byte(storage)).Sum(nil)
	return append(m, s...)
}

func hashKey(hasher string, encoded []byte) ([]byte, error) {
	switch hasher {
	case HasherIdentity:
		return encoded, nil
	case HasherTwox64Concat:
		return append(xxhash.New64(encoded).Sum(nil), encoded...), nil
	case HasherBlake2_128Concat:
		h, err := blake2b.New(16, nil)
		if err != nil {
			return nil, err
		}
		h.Write(encoded)
		return append(h.Sum(nil), encoded...), nil
	default:
		return nil, fmt.Errorf("unsupported hasher %s", hasher)
	}
}

func hashLen(hasher string) int {
	switch hasher {
	case HasherTwox64Concat:
		return 8
	case HasherBlake2_128Concat:
		return 16
	default:
		return 0
	}
}

// StorageKey builds the full key of a storage item with its params.
func (h StorageHashers) StorageKey(module, storage string, params []interface{}) ([]byte, error) {
	key := StoragePrefix(module, storage)
	for i, p := range params {
		enc, err := EncodeParam(p)
		if err != nil {
			return nil, fmt.Errorf("encode param %d of %s.%s err: %s", i, module, storage, err)
		}
		hashed, err := hashKey(h.hasher(module, storage, i), enc)
		if err != nil {
			return nil, err
		}
		key = append(key, hashed...)
	}
	return key, nil
}

// TrailingKey strips the hash of the key that follows the first n params
// from the tail of a full storage key.
func (h StorageHashers) TrailingKey(module, storage string, n int, tail []byte) []byte {
	l := hashLen(h.hasher(module, storage, n))
	if len(tail) < l {
		return nil
	}
	return tail[l:]
}

type multiAddressID struct {
	Tag byte
	ID  AccountID
}

// EncodeParam SCALE encodes one storage key param.
func EncodeParam(p interface{}) ([]byte, error) {
	return Encode(encodable(p))
}

// encodable maps chain-facing Go values onto their SCALE shape.
func encodable(v interface{}) interface{} {
	switch x := v.(type) {
	case string:
		return []byte(x)
	default:
		return v
	}
}
