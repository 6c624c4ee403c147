// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package substrate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ChainSafe/log15"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/itering/substrate-api-rpc/rpc"
	"github.com/shopspring/decimal"
	gsrpc "github.com/stafiprotocol/go-substrate-rpc-client"
	"github.com/stafiprotocol/go-substrate-rpc-client/types"
	"golang.org/x/crypto/blake2b"
)

const (
	keysPageSize = 500

	extrinsicVersionSigned = 0x84
	multiSignatureEd25519  = 0x00
	multiAddressTagID      = 0x00
)

// GsrpcClient is the websocket Client backed by go-substrate-rpc-client for
// transport and SCALE, and by itering scale.go for event decoding.
type GsrpcClient struct {
	url         string
	api         *gsrpc.SubstrateAPI
	addressType string
	hashers     StorageHashers
	timeout     time.Duration
	log         log15.Logger

	metaLock    sync.RWMutex
	meta        *types.Metadata
	rawMeta     string
	genesisHash types.Hash
}

type runtimeVersion struct {
	SpecVersion        uint32 `json:"specVersion"`
	TransactionVersion uint32 `json:"transactionVersion"`
}

type header struct {
	Number string `json:"number"`
}

type signedBlock struct {
	Block struct {
		Extrinsics []string `json:"extrinsics"`
	} `json:"block"`
}

type storageChangeSet struct {
	Block   string       `json:"block"`
	Changes [][2]*string `json:"changes"`
}

type accountNonce struct {
	Nonce uint32
}

type signingPayload struct {
	Method             types.BytesBare
	Era                types.BytesBare
	Nonce              types.UCompact
	Tip                types.UCompact
	SpecVersion        types.U32
	TransactionVersion types.U32
	GenesisHash        types.Hash
	BlockHash          types.Hash
}

type signedExtrinsic struct {
	Version   byte
	Signer    types.BytesBare
	SigType   byte
	Signature [64]byte
	Era       types.BytesBare
	Nonce     types.UCompact
	Tip       types.UCompact
	Method    types.BytesBare
}

// NewDialer returns a Dialer opening GsrpcClients.
func NewDialer(addressType string, timeout time.Duration, log log15.Logger) Dialer {
	return func(url string) (Client, error) {
		return NewGsrpcClient(url, addressType, timeout, log)
	}
}

func NewGsrpcClient(url, addressType string, timeout time.Duration, log log15.Logger) (*GsrpcClient, error) {
	log.Info("Connecting to substrate chain...", "url", url)
	api, err := gsrpc.NewSubstrateAPI(url)
	if err != nil {
		return nil, err
	}

	c := &GsrpcClient{
		url:         url,
		api:         api,
		addressType: addressType,
		hashers:     DefaultStorageHashers(),
		timeout:     timeout,
		log:         log,
	}
	if err := c.UpdateMeta(); err != nil {
		return nil, err
	}

	genesis, err := api.RPC.Chain.GetBlockHash(0)
	if err != nil {
		return nil, fmt.Errorf("genesis hash err: %s", err)
	}
	c.genesisHash = genesis
	return c, nil
}

// UpdateMeta reloads the runtime metadata used to compose calls and decode events.
func (c *GsrpcClient) UpdateMeta() error {
	meta, err := c.api.RPC.State.GetMetadataLatest()
	if err != nil {
		return fmt.Errorf("metadata err: %s", err)
	}
	var raw string
	if err := c.api.Client.Call(&raw, "state_getMetadata"); err != nil {
		return fmt.Errorf("raw metadata err: %s", err)
	}

	c.metaLock.Lock()
	c.meta = meta
	c.rawMeta = raw
	c.metaLock.Unlock()
	return nil
}

func (c *GsrpcClient) metadata() (*types.Metadata, string) {
	c.metaLock.RLock()
	defer c.metaLock.RUnlock()
	return c.meta, c.rawMeta
}

func (c *GsrpcClient) call(result interface{}, method string, blockHash string, args ...interface{}) error {
	if blockHash != "" {
		args = append(args, blockHash)
	}
	return c.api.Client.Call(result, method, args...)
}

func (c *GsrpcClient) Query(module, storage string, params []interface{}, blockHash string, result interface{}) (bool, error) {
	key, err := c.hashers.StorageKey(module, storage, params)
	if err != nil {
		return false, err
	}
	var raw *string
	if err := c.call(&raw, "state_getStorage", blockHash, hexutil.Encode(key)); err != nil {
		return false, err
	}
	if raw == nil || *raw == "" || *raw == "0x" {
		return false, nil
	}
	bz, err := hexutil.Decode(*raw)
	if err != nil {
		return false, err
	}
	return true, Decode(bz, result)
}

func (c *GsrpcClient) QueryMap(module, storage string, params []interface{}, blockHash string) ([]MapEntry, error) {
	prefix, err := c.hashers.StorageKey(module, storage, params)
	if err != nil {
		return nil, err
	}
	prefixHex := hexutil.Encode(prefix)

	entries := make([]MapEntry, 0)
	startKey := prefixHex
	for {
		var page []string
		if err := c.call(&page, "state_getKeysPaged", blockHash, prefixHex, keysPageSize, startKey); err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		var sets []storageChangeSet
		if err := c.call(&sets, "state_queryStorageAt", blockHash, page); err != nil {
			return nil, err
		}
		for _, set := range sets {
			for _, change := range set.Changes {
				if change[0] == nil || change[1] == nil {
					continue
				}
				k, err := hexutil.Decode(*change[0])
				if err != nil {
					return nil, err
				}
				v, err := hexutil.Decode(*change[1])
				if err != nil {
					return nil, err
				}
				entries = append(entries, MapEntry{
					Key:   c.hashers.TrailingKey(module, storage, len(params), k[len(prefix):]),
					Value: v,
				})
			}
		}

		if len(page) < keysPageSize {
			break
		}
		startKey = page[len(page)-1]
	}
	return entries, nil
}

// GetConstant reads constants from the latest metadata whatever blockHash is.
func (c *GsrpcClient) GetConstant(module, constant, blockHash string, result interface{}) error {
	meta, _ := c.metadata()
	bz, err := meta.FindConstantValue(module, constant)
	if err != nil {
		return err
	}
	return Decode(bz, result)
}

func (c *GsrpcClient) ComposeCall(module, function string, args ...interface{}) (Call, error) {
	meta, _ := c.metadata()
	chainArgs := make([]interface{}, len(args))
	for i, a := range args {
		chainArgs[i] = c.chainArg(a)
	}
	call, err := types.NewCall(meta, module+"."+function, chainArgs...)
	if err != nil {
		return Call{}, fmt.Errorf("compose %s.%s err: %s", module, function, err)
	}
	data, err := Encode(call)
	if err != nil {
		return Call{}, err
	}
	return Call{Module: module, Function: function, Args: args, Data: data}, nil
}

func (c *GsrpcClient) chainArg(a interface{}) interface{} {
	switch x := a.(type) {
	case AccountID:
		if c.addressType == AddressTypeMultiAddress {
			return multiAddressID{Tag: multiAddressTagID, ID: x}
		}
		return x
	case Compact:
		return types.NewUCompactFromUInt(uint64(x))
	case string:
		return []byte(x)
	default:
		return a
	}
}

func (c *GsrpcClient) CreateSignedExtrinsic(call Call, signer Signer, era Era) (Extrinsic, error) {
	pub := signer.PublicKey()
	var who AccountID
	if len(pub) != len(who) {
		return Extrinsic{}, fmt.Errorf("signer public key length %d", len(pub))
	}
	copy(who[:], pub)

	var acc accountNonce
	if _, err := c.Query("System", "Account", []interface{}{who}, "", &acc); err != nil {
		return Extrinsic{}, fmt.Errorf("nonce err: %s", err)
	}

	var rv runtimeVersion
	if err := c.api.Client.Call(&rv, "state_getRuntimeVersion"); err != nil {
		return Extrinsic{}, fmt.Errorf("runtime version err: %s", err)
	}

	blockHash := c.genesisHash
	eraBytes := []byte{0x00}
	if era.Period > 0 {
		var hdr header
		if err := c.api.Client.Call(&hdr, "chain_getHeader"); err != nil {
			return Extrinsic{}, err
		}
		current, err := hexutil.DecodeUint64(hdr.Number)
		if err != nil {
			return Extrinsic{}, err
		}
		h, err := c.api.RPC.Chain.GetBlockHash(current)
		if err != nil {
			return Extrinsic{}, err
		}
		blockHash = h
		eraBytes = mortalEra(era.Period, current)
	}

	payload, err := Encode(signingPayload{
		Method:             call.Data,
		Era:                eraBytes,
		Nonce:              types.NewUCompactFromUInt(uint64(acc.Nonce)),
		Tip:                types.NewUCompactFromUInt(0),
		SpecVersion:        types.U32(rv.SpecVersion),
		TransactionVersion: types.U32(rv.TransactionVersion),
		GenesisHash:        c.genesisHash,
		BlockHash:          blockHash,
	})
	if err != nil {
		return Extrinsic{}, err
	}
	if len(payload) > 256 {
		h := blake2b.Sum256(payload)
		payload = h[:]
	}
	sig, err := signer.Sign(payload)
	if err != nil {
		return Extrinsic{}, err
	}

	xt := signedExtrinsic{
		Version: extrinsicVersionSigned,
		SigType: multiSignatureEd25519,
		Era:     eraBytes,
		Nonce:   types.NewUCompactFromUInt(uint64(acc.Nonce)),
		Tip:     types.NewUCompactFromUInt(0),
		Method:  call.Data,
	}
	if c.addressType == AddressTypeMultiAddress {
		xt.Signer = append([]byte{multiAddressTagID}, who[:]...)
	} else {
		xt.Signer = who[:]
	}
	copy(xt.Signature[:], sig)

	body, err := Encode(xt)
	if err != nil {
		return Extrinsic{}, err
	}
	enc, err := Encode(types.NewBytes(body))
	if err != nil {
		return Extrinsic{}, err
	}

	return Extrinsic{
		Call:   call,
		Signer: signer.Address(),
		Nonce:  uint64(acc.Nonce),
		Hex:    hexutil.Encode(enc),
	}, nil
}

func (c *GsrpcClient) SubmitExtrinsic(ext Extrinsic, waitForInclusion, waitForFinalization bool) (*Response, error) {
	if !waitForInclusion && !waitForFinalization {
		var hash string
		if err := c.api.Client.Call(&hash, "author_submitExtrinsic", ext.Hex); err != nil {
			if isRejection(err) {
				return &Response{IsSuccess: false, ErrorMessage: err.Error()}, nil
			}
			return nil, err
		}
		return &Response{IsSuccess: true}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	statuses := make(chan types.ExtrinsicStatus)
	sub, err := c.api.Client.Subscribe(ctx, "author", "submitAndWatchExtrinsic", "unwatchExtrinsic", "extrinsicUpdate", statuses, ext.Hex)
	if err != nil {
		if isRejection(err) {
			return &Response{IsSuccess: false, ErrorMessage: err.Error()}, nil
		}
		return nil, err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case status := <-statuses:
			switch {
			case status.IsInBlock:
				c.log.Debug("extrinsic in block", "block", status.AsInBlock.Hex(), "signer", ext.Signer)
				if !waitForFinalization {
					return c.outcome(ext, status.AsInBlock.Hex())
				}
			case status.IsFinalized:
				c.log.Debug("extrinsic finalized", "block", status.AsFinalized.Hex(), "signer", ext.Signer)
				return c.outcome(ext, status.AsFinalized.Hex())
			case status.IsDropped:
				return &Response{IsSuccess: false, ErrorMessage: "extrinsic dropped"}, nil
			case status.IsInvalid:
				return &Response{IsSuccess: false, ErrorMessage: "extrinsic invalid"}, nil
			case status.IsUsurped:
				return &Response{IsSuccess: false, ErrorMessage: "extrinsic usurped"}, nil
			case status.IsFinalityTimeout:
				return nil, ErrWaitTimeout
			}
		case err := <-sub.Err():
			return nil, err
		case <-ctx.Done():
			return nil, ErrWaitTimeout
		}
	}
}

// outcome reads the events of the block ext landed in.
func (c *GsrpcClient) outcome(ext Extrinsic, blockHash string) (*Response, error) {
	var blk signedBlock
	if err := c.api.Client.Call(&blk, "chain_getBlock", blockHash); err != nil {
		return nil, err
	}
	idx := -1
	for i, x := range blk.Block.Extrinsics {
		if strings.EqualFold(x, ext.Hex) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("extrinsic not found in block %s", blockHash)
	}

	var raw *string
	key := hexutil.Encode(StoragePrefix("System", "Events"))
	if err := c.call(&raw, "state_getStorage", blockHash, key); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("no events in block %s", blockHash)
	}

	_, rawMeta := c.metadata()
	events, err := DecodeEvents(rawMeta, *raw)
	if err != nil {
		return nil, err
	}
	ok, msg := ExtrinsicResult(events, idx)
	return &Response{IsSuccess: ok, ErrorMessage: msg, BlockHash: blockHash}, nil
}

func (c *GsrpcClient) EstimateFee(ext Extrinsic) (uint64, error) {
	var info rpc.PaymentQueryInfo
	if err := c.api.Client.Call(&info, "payment_queryInfo", ext.Hex); err != nil {
		return 0, err
	}
	fee, err := decimal.NewFromString(fmt.Sprint(info.PartialFee))
	if err != nil {
		return 0, fmt.Errorf("partial fee %v err: %s", info.PartialFee, err)
	}
	return strconv.ParseUint(fee.Truncate(0).String(), 10, 64)
}

func (c *GsrpcClient) GetBlockNumber(blockHash string) (uint64, error) {
	var hdr header
	if err := c.call(&hdr, "chain_getHeader", blockHash); err != nil {
		return 0, err
	}
	return hexutil.DecodeUint64(hdr.Number)
}

func (c *GsrpcClient) GetBlockHash(blockNumber uint64) (string, error) {
	hash, err := c.api.RPC.Chain.GetBlockHash(blockNumber)
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

func (c *GsrpcClient) Close() error {
	if cl, ok := c.api.Client.(interface{ Close() }); ok {
		cl.Close()
	}
	c.log.Info("Connection closed", "url", c.url)
	return nil
}

// isRejection tells pool validation errors (1010 invalid, 1011 unknown
// validity, 1012 temporarily banned) apart from transport failures.
func isRejection(err error) bool {
	msg := err.Error()
	for _, s := range []string{"1010", "1011", "1012", "Invalid Transaction", "Priority is too low"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// mortalEra encodes a mortal era of at least period blocks born at current.
func mortalEra(period, current uint64) []byte {
	p := uint64(4)
	for p < period && p < 1<<16 {
		p <<= 1
	}
	phase := current % p
	quantize := p >> 12
	if quantize < 1 {
		quantize = 1
	}
	quantized := phase / quantize * quantize

	tz := uint64(0)
	for v := p; v&1 == 0; v >>= 1 {
		tz++
	}
	low := tz - 1
	if low < 1 {
		low = 1
	}
	if low > 15 {
		low = 15
	}
	encoded := low | (quantized/quantize)<<4
	return []byte{byte(encoded), byte(encoded >> 8)}
}
