// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package substrate

// Client is the chain capability the core consumes. An empty blockHash
// means the latest block.
type Client interface {
	// Query decodes one storage value into result, result must be a pointer.
	Query(module, storage string, params []interface{}, blockHash string, result interface{}) (bool, error)
	QueryMap(module, storage string, params []interface{}, blockHash string) ([]MapEntry, error)
	// GetConstant decodes a metadata constant into result.
	GetConstant(module, constant, blockHash string, result interface{}) error

	ComposeCall(module, function string, args ...interface{}) (Call, error)
	CreateSignedExtrinsic(call Call, signer Signer, era Era) (Extrinsic, error)
	// SubmitExtrinsic returns an error only for transport failures; a chain
	// rejection is a Response with IsSuccess false.
	SubmitExtrinsic(ext Extrinsic, waitForInclusion, waitForFinalization bool) (*Response, error)
	// EstimateFee is the partial fee of ext, in base units.
	EstimateFee(ext Extrinsic) (uint64, error)

	GetBlockNumber(blockHash string) (uint64, error)
	GetBlockHash(blockNumber uint64) (string, error)

	Close() error
}

// Signer is key material able to sign chain payloads.
type Signer interface {
	Address() string
	PublicKey() []byte
	Sign(msg []byte) ([]byte, error)
}

// Dialer opens a Client against url.
type Dialer func(url string) (Client, error)
