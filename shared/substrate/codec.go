package substrate

import (
	"github.com/stafiprotocol/go-substrate-rpc-client/types"
)

// Encode SCALE encodes v.
func Encode(v interface{}) ([]byte, error) {
	return types.EncodeToBytes(v)
}

// Decode SCALE decodes bz into target, target must be a pointer.
func Decode(bz []byte, target interface{}) error {
	return types.DecodeFromBytes(bz, target)
}
