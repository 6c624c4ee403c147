package submodel

import (
	"github.com/shopspring/decimal"
)

// AccountData mirrors the balances pallet record, in base units.
type AccountData struct {
	Free       uint64
	Reserved   uint64
	MiscFrozen uint64
	FeeFrozen  uint64
}

// AccountInfo mirrors System.Account.
type AccountInfo struct {
	Nonce       uint32
	Consumers   uint32
	Providers   uint32
	Sufficients uint32
	Data        AccountData
}

// WeightPair is one (uid, weight) vote of a module.
type WeightPair struct {
	Uid    uint16 `json:"uid" cbor:"uid"`
	Weight uint16 `json:"weight" cbor:"weight"`
}

// Module is the joined view of one registered module. Monetary fields are
// display units.
type Module struct {
	Uid       uint16          `json:"uid" cbor:"uid"`
	Netuid    uint16          `json:"netuid" cbor:"netuid"`
	Key       string          `json:"key" cbor:"key"`
	Name      string          `json:"name" cbor:"name"`
	Address   string          `json:"address" cbor:"address"`
	Stake     decimal.Decimal `json:"stake" cbor:"stake"`
	Emission  decimal.Decimal `json:"emission" cbor:"emission"`
	Incentive decimal.Decimal `json:"incentive" cbor:"incentive"`
	Dividends decimal.Decimal `json:"dividends" cbor:"dividends"`
	Balance   decimal.Decimal `json:"balance" cbor:"balance"`
	Weights   []WeightPair    `json:"weights" cbor:"weights"`
}

// Subnet aggregates the subnet level parameters of one netuid.
type Subnet struct {
	Netuid            uint16          `json:"netuid" cbor:"netuid"`
	Name              string          `json:"name" cbor:"name"`
	Founder           string          `json:"founder" cbor:"founder"`
	N                 uint16          `json:"n" cbor:"n"`
	Tempo             uint16          `json:"tempo" cbor:"tempo"`
	ImmunityPeriod    uint16          `json:"immunity_period" cbor:"immunity_period"`
	MinAllowedWeights uint16          `json:"min_allowed_weights" cbor:"min_allowed_weights"`
	MaxAllowedUids    uint16          `json:"max_allowed_uids" cbor:"max_allowed_uids"`
	MaxWeightsLimit   uint16          `json:"max_weights_limit" cbor:"max_weights_limit"`
	Stake             decimal.Decimal `json:"stake" cbor:"stake"`
	Emission          decimal.Decimal `json:"emission" cbor:"emission"`
	Ratio             decimal.Decimal `json:"ratio" cbor:"ratio"`
}

// Account is a read of one address; never a live handle.
type Account struct {
	Address string          `json:"address" cbor:"address"`
	Free    decimal.Decimal `json:"free" cbor:"free"`
}

// TransactionOutcome is what every mutating operation reports.
type TransactionOutcome struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	BlockHash string `json:"block_hash,omitempty"`
}

// AuthData is the payload an attestation signs.
type AuthData struct {
	Network   string                 `json:"network"`
	Subnet    string                 `json:"subnet"`
	Module    string                 `json:"module"`
	Fn        string                 `json:"fn"`
	Args      []interface{}          `json:"args"`
	Kwargs    map[string]interface{} `json:"kwargs"`
	Timestamp int64                  `json:"timestamp"`
	Block     uint64                 `json:"block"`
	IP        string                 `json:"ip,omitempty"`
	Nonce     string                 `json:"nonce"`
}

// Auth is a signed AuthData. Data is the exact JSON that was signed.
type Auth struct {
	Address   string `json:"address"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
	Data      string `json:"data"`
}

type VerifyResult struct {
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
}

// SubnetSnapshot is the archived state of one subnet.
type SubnetSnapshot struct {
	Subnet    Subnet   `json:"subnet" cbor:"subnet"`
	Modules   []Module `json:"modules" cbor:"modules"`
	Block     uint64   `json:"block" cbor:"block"`
	Timestamp int64    `json:"timestamp" cbor:"timestamp"`
}

// BalanceSnapshot maps addresses to free balances in display units.
type BalanceSnapshot struct {
	Balances  map[string]decimal.Decimal `json:"balances" cbor:"balances"`
	Block     uint64                     `json:"block" cbor:"block"`
	Timestamp int64                      `json:"timestamp" cbor:"timestamp"`
}
