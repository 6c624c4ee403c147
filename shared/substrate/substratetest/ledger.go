// Package substratetest provides an in-memory ledger implementing
// substrate.Client, for exercising the chain client without a node.
package substratetest

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"subspace-client/config"
	"subspace-client/models/submodel"
	"subspace-client/shared/substrate"
)

const (
	MethodQuery     = "query"
	MethodQueryMap  = "query_map"
	MethodConstant  = "constant"
	MethodSubmit    = "submit"
	MethodFee       = "fee"
	MethodBlock     = "block"
	MethodSignature = "sign"
)

var ErrTransport = errors.New("substratetest: connection reset")

type module struct {
	key       substrate.AccountID
	name      string
	address   string
	stake     uint64
	emission  uint64
	incentive uint64
	dividends uint64
	weights   []submodel.WeightPair
}

type subnet struct {
	netuid            uint16
	name              string
	founder           substrate.AccountID
	tempo             uint16
	immunityPeriod    uint16
	minAllowedWeights uint16
	maxAllowedUids    uint16
	maxWeightsLimit   uint16
	emission          uint64
	modules           []*module
	missingKeys       map[uint16]bool
}

type entry struct {
	params []interface{}
	value  interface{}
}

// Ledger is a single-node chain kept in memory. Storage reads are served
// at the latest block whatever block hash is asked for.
type Ledger struct {
	mu sync.Mutex

	existentialDeposit uint64
	fee                uint64
	feeErr             error
	block              uint64

	accounts map[substrate.AccountID]*submodel.AccountInfo
	subnets  map[uint16]*subnet

	failures map[string][]error
	calls    map[string]int
	reject   string

	Submitted []substrate.Extrinsic
	Closed    int
}

func NewLedger() *Ledger {
	return &Ledger{
		existentialDeposit: 500,
		block:              1,
		accounts:           make(map[substrate.AccountID]*submodel.AccountInfo),
		subnets:            make(map[uint16]*subnet),
		failures:           make(map[string][]error),
		calls:              make(map[string]int),
	}
}

// Dialer returns a dialer handing out l for any url.
func (l *Ledger) Dialer() substrate.Dialer {
	return func(url string) (substrate.Client, error) {
		return l, nil
	}
}

// Dialer maps urls onto ledgers, one ledger per network.
func Dialer(ledgers map[string]*Ledger) substrate.Dialer {
	return func(url string) (substrate.Client, error) {
		l, ok := ledgers[url]
		if !ok {
			return nil, fmt.Errorf("dial %s: %w", url, ErrTransport)
		}
		return l, nil
	}
}

func (l *Ledger) SetExistentialDeposit(ed uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.existentialDeposit = ed
}

// SetFee sets the fee charged and estimated for every extrinsic.
func (l *Ledger) SetFee(fee uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fee = fee
}

// SetFeeError makes EstimateFee fail while still charging the fee.
func (l *Ledger) SetFeeError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.feeErr = err
}

func (l *Ledger) SetBalance(id substrate.AccountID, free uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.account(id).Data.Free = free
}

func (l *Ledger) Balance(id substrate.AccountID) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acc, ok := l.accounts[id]; ok {
		return acc.Data.Free
	}
	return 0
}

func (l *Ledger) AddSubnet(netuid uint16, name string, founder substrate.AccountID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addSubnet(netuid, name, founder)
}

// AddModule registers a module directly, returning its uid.
func (l *Ledger) AddModule(netuid uint16, key substrate.AccountID, name, address string, stake uint64) uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.subnets[netuid]
	if !ok {
		s = l.addSubnet(netuid, fmt.Sprintf("subnet%d", netuid), key)
	}
	s.modules = append(s.modules, &module{key: key, name: name, address: address, stake: stake})
	return uint16(len(s.modules) - 1)
}

// SetModuleStats sets the per uid emission, incentive and dividends.
func (l *Ledger) SetModuleStats(netuid, uid uint16, emission, incentive, dividends uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.subnets[netuid].modules[uid]
	m.emission, m.incentive, m.dividends = emission, incentive, dividends
}

// DropKey removes uid from the Keys map of netuid only, leaving the other
// maps as they are.
func (l *Ledger) DropKey(netuid, uid uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subnets[netuid].missingKeys[uid] = true
}

// Fail makes the next len(errs) calls of method return errs in order.
func (l *Ledger) Fail(method string, errs ...error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[method] = append(l.failures[method], errs...)
}

// RejectNext makes the next submission fail on chain with msg.
func (l *Ledger) RejectNext(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reject = msg
}

// Calls counts the calls of method, failed ones included.
func (l *Ledger) Calls(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[method]
}

func (l *Ledger) Block() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.block
}

func (l *Ledger) enter(method string) error {
	l.calls[method]++
	if errs := l.failures[method]; len(errs) > 0 {
		l.failures[method] = errs[1:]
		return errs[0]
	}
	return nil
}

func (l *Ledger) account(id substrate.AccountID) *submodel.AccountInfo {
	acc, ok := l.accounts[id]
	if !ok {
		acc = &submodel.AccountInfo{Providers: 1}
		l.accounts[id] = acc
	}
	return acc
}

func (l *Ledger) addSubnet(netuid uint16, name string, founder substrate.AccountID) *subnet {
	s := &subnet{
		netuid:            netuid,
		name:              name,
		founder:           founder,
		tempo:             1,
		immunityPeriod:    40,
		minAllowedWeights: 1,
		maxAllowedUids:    4096,
		maxWeightsLimit:   420,
		missingKeys:       make(map[uint16]bool),
	}
	l.subnets[netuid] = s
	return s
}

func blockHash(n uint64) string {
	return fmt.Sprintf("0x%064x", n)
}

func (l *Ledger) entries(module, storage string) ([]entry, error) {
	switch module + "." + storage {
	case config.SystemModuleId + "." + config.StorageAccount:
		out := make([]entry, 0, len(l.accounts))
		for id, acc := range l.accounts {
			out = append(out, entry{[]interface{}{id}, *acc})
		}
		return out, nil
	case config.SubspaceModuleId + "." + config.StorageTotalStake:
		var total uint64
		for _, s := range l.subnets {
			total += s.totalStake()
		}
		return []entry{{nil, total}}, nil
	case config.SubspaceModuleId + "." + config.StorageTotalSubnets:
		return []entry{{nil, uint16(len(l.subnets))}}, nil
	}

	if module != config.SubspaceModuleId {
		return nil, fmt.Errorf("unknown storage %s.%s", module, storage)
	}
	out := make([]entry, 0)
	for netuid, s := range l.subnets {
		switch storage {
		case config.StorageSubnetNamespace:
			out = append(out, entry{[]interface{}{[]byte(s.name)}, netuid})
		case config.StorageN:
			out = append(out, entry{[]interface{}{netuid}, uint16(len(s.modules))})
		case config.StorageTempo:
			out = append(out, entry{[]interface{}{netuid}, s.tempo})
		case config.StorageImmunityPeriod:
			out = append(out, entry{[]interface{}{netuid}, s.immunityPeriod})
		case config.StorageMinAllowedWeights:
			out = append(out, entry{[]interface{}{netuid}, s.minAllowedWeights})
		case config.StorageMaxAllowedUids:
			out = append(out, entry{[]interface{}{netuid}, s.maxAllowedUids})
		case config.StorageMaxWeightsLimit:
			out = append(out, entry{[]interface{}{netuid}, s.maxWeightsLimit})
		case config.StorageSubnetTotalStake:
			out = append(out, entry{[]interface{}{netuid}, s.totalStake()})
		case config.StorageSubnetEmission:
			out = append(out, entry{[]interface{}{netuid}, s.emission})
		case config.StorageFounder:
			out = append(out, entry{[]interface{}{netuid}, s.founder})
		case config.StorageEmission, config.StorageIncentive, config.StorageDividends:
			vec := make([]uint64, len(s.modules))
			for uid, m := range s.modules {
				switch storage {
				case config.StorageEmission:
					vec[uid] = m.emission
				case config.StorageIncentive:
					vec[uid] = m.incentive
				default:
					vec[uid] = m.dividends
				}
			}
			out = append(out, entry{[]interface{}{netuid}, vec})
		case config.StorageKeys, config.StorageUids, config.StorageAddress,
			config.StorageNamespace, config.StorageStake, config.StorageWeights:
			for i, m := range s.modules {
				uid := uint16(i)
				switch storage {
				case config.StorageKeys:
					if !s.missingKeys[uid] {
						out = append(out, entry{[]interface{}{netuid, uid}, m.key})
					}
				case config.StorageUids:
					out = append(out, entry{[]interface{}{netuid, m.key}, uid})
				case config.StorageAddress:
					out = append(out, entry{[]interface{}{netuid, uid}, []byte(m.address)})
				case config.StorageNamespace:
					out = append(out, entry{[]interface{}{netuid, []byte(m.name)}, uid})
				case config.StorageStake:
					out = append(out, entry{[]interface{}{netuid, m.key}, m.stake})
				case config.StorageWeights:
					out = append(out, entry{[]interface{}{netuid, uid}, m.weights})
				}
			}
		default:
			return nil, fmt.Errorf("unknown storage %s.%s", module, storage)
		}
	}
	return out, nil
}

func encodeParams(params []interface{}) ([]byte, error) {
	var buf []byte
	for _, p := range params {
		bz, err := substrate.EncodeParam(p)
		if err != nil {
			return nil, err
		}
		buf = append(buf, bz...)
	}
	return buf, nil
}

func (l *Ledger) Query(module, storage string, params []interface{}, blockHash string, result interface{}) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enter(MethodQuery); err != nil {
		return false, err
	}

	want, err := encodeParams(params)
	if err != nil {
		return false, err
	}
	entries, err := l.entries(module, storage)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		key, err := encodeParams(e.params)
		if err != nil {
			return false, err
		}
		if !bytes.Equal(key, want) {
			continue
		}
		bz, err := substrate.Encode(e.value)
		if err != nil {
			return false, err
		}
		return true, substrate.Decode(bz, result)
	}
	return false, nil
}

func (l *Ledger) QueryMap(module, storage string, params []interface{}, blockHash string) ([]substrate.MapEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enter(MethodQueryMap); err != nil {
		return nil, err
	}

	prefix, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	entries, err := l.entries(module, storage)
	if err != nil {
		return nil, err
	}
	out := make([]substrate.MapEntry, 0, len(entries))
	for _, e := range entries {
		if len(e.params) <= len(params) {
			continue
		}
		key, err := encodeParams(e.params)
		if err != nil {
			return nil, err
		}
		if !bytes.HasPrefix(key, prefix) {
			continue
		}
		value, err := substrate.Encode(e.value)
		if err != nil {
			return nil, err
		}
		out = append(out, substrate.MapEntry{Key: key[len(prefix):], Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key, out[j].Key) < 0 })
	return out, nil
}

func (l *Ledger) GetConstant(module, constant, blockHash string, result interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enter(MethodConstant); err != nil {
		return err
	}
	if module != config.BalancesModuleId || constant != config.ConstantExistentialDeposit {
		return fmt.Errorf("unknown constant %s.%s", module, constant)
	}
	bz, err := substrate.Encode(l.existentialDeposit)
	if err != nil {
		return err
	}
	return substrate.Decode(bz, result)
}

func (l *Ledger) ComposeCall(module, function string, args ...interface{}) (substrate.Call, error) {
	data, err := substrate.Encode(module + "." + function)
	if err != nil {
		return substrate.Call{}, err
	}
	return substrate.Call{Module: module, Function: function, Args: args, Data: data}, nil
}

func (l *Ledger) CreateSignedExtrinsic(call substrate.Call, signer substrate.Signer, era substrate.Era) (substrate.Extrinsic, error) {
	l.mu.Lock()
	if err := l.enter(MethodSignature); err != nil {
		l.mu.Unlock()
		return substrate.Extrinsic{}, err
	}
	var id substrate.AccountID
	copy(id[:], signer.PublicKey())
	nonce := l.account(id).Nonce
	l.mu.Unlock()

	sig, err := signer.Sign(call.Data)
	if err != nil {
		return substrate.Extrinsic{}, err
	}
	return substrate.Extrinsic{
		Call:   call,
		Signer: signer.Address(),
		Nonce:  uint64(nonce),
		Hex:    hexutil.Encode(append(append([]byte{}, id[:]...), sig...)),
	}, nil
}

func signerOf(ext substrate.Extrinsic) (substrate.AccountID, error) {
	var id substrate.AccountID
	bz, err := hexutil.Decode(ext.Hex)
	if err != nil {
		return id, err
	}
	if len(bz) < len(id) {
		return id, errors.New("short extrinsic")
	}
	copy(id[:], bz[:len(id)])
	return id, nil
}

func (l *Ledger) SubmitExtrinsic(ext substrate.Extrinsic, waitForInclusion, waitForFinalization bool) (*substrate.Response, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enter(MethodSubmit); err != nil {
		return nil, err
	}
	l.Submitted = append(l.Submitted, ext)

	who, err := signerOf(ext)
	if err != nil {
		return nil, err
	}
	acc := l.account(who)
	if acc.Data.Free < l.fee {
		return &substrate.Response{IsSuccess: false, ErrorMessage: "Invalid Transaction: Inability to pay some fees"}, nil
	}
	acc.Data.Free -= l.fee
	acc.Nonce++
	l.block++
	hash := blockHash(l.block)

	if l.reject != "" {
		msg := l.reject
		l.reject = ""
		return &substrate.Response{IsSuccess: false, ErrorMessage: msg, BlockHash: hash}, nil
	}
	if err := l.dispatch(who, ext.Call); err != nil {
		return &substrate.Response{IsSuccess: false, ErrorMessage: err.Error(), BlockHash: hash}, nil
	}
	if !waitForInclusion && !waitForFinalization {
		return &substrate.Response{IsSuccess: true}, nil
	}
	return &substrate.Response{IsSuccess: true, BlockHash: hash}, nil
}

func (l *Ledger) EstimateFee(ext substrate.Extrinsic) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enter(MethodFee); err != nil {
		return 0, err
	}
	if l.feeErr != nil {
		return 0, l.feeErr
	}
	return l.fee, nil
}

func (l *Ledger) GetBlockNumber(hash string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enter(MethodBlock); err != nil {
		return 0, err
	}
	if hash == "" {
		return l.block, nil
	}
	return hexutil.DecodeUint64("0x" + trimZeros(hash[2:]))
}

func (l *Ledger) GetBlockHash(n uint64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enter(MethodBlock); err != nil {
		return "", err
	}
	if n > l.block {
		return "", fmt.Errorf("block %d not produced yet", n)
	}
	return blockHash(n), nil
}

func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Closed++
	return nil
}

func trimZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}

func (s *subnet) totalStake() uint64 {
	var total uint64
	for _, m := range s.modules {
		total += m.stake
	}
	return total
}

func (s *subnet) uidOf(key substrate.AccountID) (uint16, bool) {
	for i, m := range s.modules {
		if m.key == key {
			return uint16(i), true
		}
	}
	return 0, false
}

func (s *subnet) nameTaken(name string, except int) bool {
	for i, m := range s.modules {
		if i != except && m.name == name {
			return true
		}
	}
	return false
}
