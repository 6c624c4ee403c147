package substrate

import (
	"errors"
)

const (
	AddressTypeAccountId    = "AccountId"
	AddressTypeMultiAddress = "MultiAddress"

	HasherIdentity         = "Identity"
	HasherTwox64Concat     = "Twox64Concat"
	HasherBlake2_128Concat = "Blake2_128Concat"

	// mortal era length of submitted extrinsics, in blocks
	DefaultEraPeriod = 100
)

var (
	ErrRejected      = errors.New("extrinsic rejected")
	ErrWaitTimeout   = errors.New("timeout waiting for extrinsic status")
	ErrStorageAbsent = errors.New("storage value absent")
)

// AccountID is the raw 32 byte public key behind an ss58 address.
type AccountID [32]byte

// Compact marks a call argument encoded as a SCALE compact integer.
type Compact uint64

// MapEntry is one record of a storage map: the SCALE encoded key that
// follows the queried params, and the SCALE encoded value.
type MapEntry struct {
	Key   []byte
	Value []byte
}

// Call is a composed, not yet signed, chain call.
type Call struct {
	Module   string
	Function string
	Args     []interface{}
	Data     []byte // SCALE encoded call, when composed against metadata
}

// Era bounds the validity of a signed extrinsic.
type Era struct {
	Period uint64
}

// Extrinsic is a signed call ready for submission.
type Extrinsic struct {
	Call   Call
	Signer string
	Nonce  uint64
	Hex    string
}

// Response is the observed result of a submission.
type Response struct {
	IsSuccess    bool
	ErrorMessage string
	BlockHash    string
}
