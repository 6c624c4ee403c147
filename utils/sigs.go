package utils

import (
	"crypto/ed25519"
	"fmt"

	"subspace-client/core"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DecodeSignature reads a 0x-prefixed signature and public key pair.
func DecodeSignature(sigHex, pubHex string) ([]byte, ed25519.PublicKey, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: signature %s", core.ErrInvalidArgument, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, nil, fmt.Errorf("%w: signature length %d", core.ErrInvalidArgument, len(sig))
	}
	pub, err := hexutil.Decode(pubHex)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: public key %s", core.ErrInvalidKey, err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, nil, fmt.Errorf("%w: public key length %d", core.ErrInvalidKey, len(pub))
	}
	return sig, ed25519.PublicKey(pub), nil
}
