package substrate

import (
	"fmt"
	"strings"

	"github.com/JFJun/go-substrate-crypto/ss58"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

var ss58Prefix = []byte("SS58PRE")

// ss58Ident is the one or two byte address type of prefix.
func ss58Ident(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}
	return []byte{
		byte((prefix&0x00fc)>>2) | 0x40,
		byte(prefix>>8) | byte((prefix&0x03)<<6),
	}
}

// SS58Encode renders a 32 byte public key as an ss58 address for the
// given network prefix. It returns "" for keys of any other length.
func SS58Encode(pub []byte, prefix uint16) string {
	address, err := ss58.Encode(pub, ss58Ident(prefix))
	if err != nil {
		return ""
	}
	return address
}

// SS58Decode returns the account id behind an ss58 address, checking the
// checksum.
func SS58Decode(address string) (AccountID, error) {
	var id AccountID
	raw, err := base58.Decode(address)
	if err != nil {
		return id, fmt.Errorf("decode %s err: %s", address, err)
	}
	if len(raw) == 0 {
		return id, fmt.Errorf("decode %s err: empty", address)
	}

	var pub []byte
	if raw[0]&0x40 == 0 {
		if err := ss58.VerityAddress(address, []byte{raw[0]}); err != nil {
			return id, fmt.Errorf("decode %s err: %s", address, err)
		}
		if pub, err = ss58.DecodeToPub(address); err != nil {
			return id, fmt.Errorf("decode %s err: %s", address, err)
		}
	} else {
		// two byte address types are beyond the ss58 package
		if len(raw) != 2+len(id)+2 || !checksumValid(raw) {
			return id, fmt.Errorf("decode %s err: bad checksum", address)
		}
		pub = raw[2 : 2+len(id)]
	}
	if len(pub) != len(id) {
		return id, fmt.Errorf("decode %s err: public key length %d", address, len(pub))
	}
	copy(id[:], pub)
	return id, nil
}

func checksumValid(raw []byte) bool {
	body, sum := raw[:len(raw)-2], raw[len(raw)-2:]
	want := blake2b.Sum512(append(append([]byte{}, ss58Prefix...), body...))
	return want[0] == sum[0] && want[1] == sum[1]
}

func IsValidAddress(address string) bool {
	_, err := SS58Decode(address)
	return err == nil
}

// ParseAccountID accepts an ss58 address or a 0x-prefixed 32 byte public key.
func ParseAccountID(s string) (AccountID, error) {
	if strings.HasPrefix(s, "0x") {
		var id AccountID
		bz, err := hexutil.Decode(s)
		if err != nil {
			return id, err
		}
		if len(bz) != len(id) {
			return id, fmt.Errorf("public key length %d", len(bz))
		}
		copy(id[:], bz)
		return id, nil
	}
	return SS58Decode(s)
}

func (id AccountID) Address(prefix uint16) string {
	return SS58Encode(id[:], prefix)
}

func (id AccountID) Hex() string {
	return hexutil.Encode(id[:])
}
