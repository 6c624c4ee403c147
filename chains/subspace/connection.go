// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package subspace

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ChainSafe/log15"
	"subspace-client/core"
	"subspace-client/models/submodel"
	"subspace-client/shared/substrate"
	"subspace-client/utils/metrics"
)

const (
	kindQuery    = "query"
	kindQueryMap = "query_map"
	kindConstant = "constant"
	kindBlock    = "block"
	kindCompose  = "compose"
	kindSign     = "sign"
	kindFee      = "fee"
	kindSubmit   = "submit"
)

// Connection is the only place that talks to the chain. Every request goes
// through the retry policy against the client of the current network.
type Connection struct {
	networks core.Networks
	dial     substrate.Dialer
	policy   core.RetryPolicy
	lock     sync.RWMutex
	current  core.NetworkEndpoint
	client   substrate.Client
	log      log15.Logger
}

func NewConnection(networks core.Networks, network string, dial substrate.Dialer, policy core.RetryPolicy, log log15.Logger) (*Connection, error) {
	endpoint, err := networks.Endpoint(network)
	if err != nil {
		return nil, err
	}
	c := &Connection{
		networks: networks,
		dial:     dial,
		policy:   policy,
		log:      log,
	}
	client, err := c.open(endpoint)
	if err != nil {
		return nil, err
	}
	c.current = endpoint
	c.client = client
	return c, nil
}

func (c *Connection) open(endpoint core.NetworkEndpoint) (substrate.Client, error) {
	var client substrate.Client
	_, err := c.policy.Do(c.log, "dial "+endpoint.Name, func() error {
		var err error
		client, err = c.dial(endpoint.URL)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", core.ErrChainConnection, endpoint, err)
	}
	c.log.Info("connected", "network", endpoint.Name, "url", endpoint.URL)
	return client, nil
}

// Network returns the endpoint currently connected to.
func (c *Connection) Network() core.NetworkEndpoint {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.current
}

func (c *Connection) Networks() core.Networks {
	return c.networks
}

// Switch connects to the named network. The current session is closed only
// once the new one is open, so a failed dial leaves it untouched. It waits
// for in-flight requests.
func (c *Connection) Switch(name string) (core.NetworkEndpoint, error) {
	endpoint, err := c.networks.Endpoint(name)
	if err != nil {
		return core.NetworkEndpoint{}, err
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	if endpoint == c.current && c.client != nil {
		return c.current, nil
	}

	client, err := c.open(endpoint)
	if err != nil {
		return core.NetworkEndpoint{}, err
	}
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			c.log.Warn("close connection failed", "network", c.current.Name, "err", err)
		}
	}
	c.log.Info("network switched", "from", c.current.Name, "to", endpoint.Name)
	c.current = endpoint
	c.client = client
	metrics.RecordNetworkSwitch()
	return endpoint, nil
}

// Reconnect closes and reopens the session of the current network.
func (c *Connection) Reconnect() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	client, err := c.open(c.current)
	if err != nil {
		return err
	}
	c.client = client
	return nil
}

func (c *Connection) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// do runs fn with the current client under the retry policy.
func (c *Connection) do(kind, name string, fn func(substrate.Client) error) (int, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.client == nil {
		return 0, fmt.Errorf("%w: not connected", core.ErrChainConnection)
	}
	attempts, err := c.policy.Do(c.log, name, func() error {
		return fn(c.client)
	})
	metrics.RecordRequest(c.current.Name, kind, attempts, err)
	return attempts, err
}

func (c *Connection) blockHash(client substrate.Client, block uint64) (string, error) {
	if block == 0 {
		return "", nil
	}
	return client.GetBlockHash(block)
}

// Query reads one storage value into result at block, 0 meaning the latest.
func (c *Connection) Query(module, storage string, params []interface{}, block uint64, result interface{}) (bool, error) {
	item := module + "." + storage
	var exist bool
	attempts, err := c.do(kindQuery, item, func(client substrate.Client) error {
		hash, err := c.blockHash(client, block)
		if err != nil {
			return err
		}
		exist, err = client.Query(module, storage, params, hash, result)
		return err
	})
	if err != nil {
		return false, &core.QueryError{Item: item, Attempts: attempts, Err: err}
	}
	return exist, nil
}

func (c *Connection) QueryMap(module, storage string, params []interface{}, block uint64) ([]substrate.MapEntry, error) {
	item := module + "." + storage
	var entries []substrate.MapEntry
	attempts, err := c.do(kindQueryMap, item, func(client substrate.Client) error {
		hash, err := c.blockHash(client, block)
		if err != nil {
			return err
		}
		entries, err = client.QueryMap(module, storage, params, hash)
		return err
	})
	if err != nil {
		return nil, &core.QueryError{Item: item, Attempts: attempts, Err: err}
	}
	return entries, nil
}

// QueryConstant reads a runtime constant into result.
func (c *Connection) QueryConstant(module, constant string, block uint64, result interface{}) error {
	item := module + "." + constant
	attempts, err := c.do(kindConstant, item, func(client substrate.Client) error {
		hash, err := c.blockHash(client, block)
		if err != nil {
			return err
		}
		return client.GetConstant(module, constant, hash, result)
	})
	if err != nil {
		return &core.QueryError{Item: item, Attempts: attempts, Err: err}
	}
	return nil
}

func (c *Connection) LatestBlockNumber() (uint64, error) {
	var n uint64
	attempts, err := c.do(kindBlock, "block number", func(client substrate.Client) error {
		var err error
		n, err = client.GetBlockNumber("")
		return err
	})
	if err != nil {
		return 0, &core.QueryError{Item: "block number", Attempts: attempts, Err: err}
	}
	return n, nil
}

func (c *Connection) BlockHash(block uint64) (string, error) {
	var hash string
	attempts, err := c.do(kindBlock, "block hash", func(client substrate.Client) error {
		var err error
		hash, err = client.GetBlockHash(block)
		return err
	})
	if err != nil {
		return "", &core.QueryError{Item: "block hash", Attempts: attempts, Err: err}
	}
	return hash, nil
}

func (c *Connection) Compose(module, function string, args ...interface{}) (substrate.Call, error) {
	var call substrate.Call
	attempts, err := c.do(kindCompose, module+"."+function, func(client substrate.Client) error {
		var err error
		call, err = client.ComposeCall(module, function, args...)
		return err
	})
	if err != nil {
		return substrate.Call{}, &core.QueryError{Item: module + "." + function, Attempts: attempts, Err: err}
	}
	return call, nil
}

func (c *Connection) sign(call substrate.Call, signer substrate.Signer) (substrate.Extrinsic, int, error) {
	var ext substrate.Extrinsic
	attempts, err := c.do(kindSign, call.Module+"."+call.Function, func(client substrate.Client) error {
		var err error
		ext, err = client.CreateSignedExtrinsic(call, signer, substrate.Era{Period: substrate.DefaultEraPeriod})
		return err
	})
	return ext, attempts, err
}

// EstimateFee is the partial fee of call signed by signer, in base units.
func (c *Connection) EstimateFee(call substrate.Call, signer substrate.Signer) (uint64, error) {
	ext, attempts, err := c.sign(call, signer)
	if err != nil {
		return 0, &core.QueryError{Item: "sign " + call.Function, Attempts: attempts, Err: err}
	}
	var fee uint64
	attempts, err = c.do(kindFee, "fee "+call.Function, func(client substrate.Client) error {
		var err error
		fee, err = client.EstimateFee(ext)
		return err
	})
	if err != nil {
		return 0, &core.QueryError{Item: "fee " + call.Function, Attempts: attempts, Err: err}
	}
	return fee, nil
}

// Submit signs and submits call. An on-chain rejection is a failed outcome,
// not an error; errors are transport failures after retries and
// confirmation timeouts.
func (c *Connection) Submit(op core.Operation, call substrate.Call, signer substrate.Signer, conf core.Confirmation) (submodel.TransactionOutcome, error) {
	ext, _, err := c.sign(call, signer)
	if err != nil {
		return submodel.TransactionOutcome{}, &core.TransactionError{Op: op, Message: "sign", Err: err}
	}

	inclusion, finalization := conf.Resolve(op).Waits()
	var resp *substrate.Response
	_, err = c.do(kindSubmit, string(op), func(client substrate.Client) error {
		var err error
		resp, err = client.SubmitExtrinsic(ext, inclusion, finalization)
		if errors.Is(err, substrate.ErrWaitTimeout) {
			return core.Permanent(err)
		}
		return err
	})
	if err != nil {
		return submodel.TransactionOutcome{}, &core.TransactionError{Op: op, Message: "submit", Err: err}
	}

	if !resp.IsSuccess {
		return submodel.TransactionOutcome{Success: false, Message: resp.ErrorMessage, BlockHash: resp.BlockHash}, nil
	}
	msg := "sent"
	switch {
	case finalization:
		msg = "finalized"
	case inclusion:
		msg = "included"
	}
	return submodel.TransactionOutcome{Success: true, Message: msg, BlockHash: resp.BlockHash}, nil
}
