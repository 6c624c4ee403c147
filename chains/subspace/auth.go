// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package subspace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"subspace-client/core"
	"subspace-client/models/submodel"
	"subspace-client/shared/keyring"
	"subspace-client/shared/substrate"
	"subspace-client/utils"
)

// AuthParams names what an attestation is for.
type AuthParams struct {
	Network string
	Subnet  string
	Key     string
	Module  string
	Fn      string
	Args    []interface{}
	Kwargs  map[string]interface{}
	IP      string
}

// Auth signs an attestation binding the request to the current block and
// time.
func (c *Client) Auth(p AuthParams) (submodel.Auth, error) {
	return keepNetworkOnError(c, func() (submodel.Auth, error) { return c.auth(p) })
}

func (c *Client) auth(p AuthParams) (submodel.Auth, error) {
	kp, err := c.ResolveKey(p.Key)
	if err != nil {
		return submodel.Auth{}, err
	}
	endpoint, err := c.ResolveNetwork(p.Network)
	if err != nil {
		return submodel.Auth{}, err
	}
	netuid, err := c.ResolveSubnet(p.Subnet)
	if err != nil {
		return submodel.Auth{}, err
	}
	block, err := c.CurrentBlock()
	if err != nil {
		return submodel.Auth{}, err
	}

	args := p.Args
	if args == nil {
		args = []interface{}{}
	}
	kwargs := p.Kwargs
	if kwargs == nil {
		kwargs = map[string]interface{}{}
	}
	data := submodel.AuthData{
		Network:   endpoint.Name,
		Subnet:    strconv.Itoa(int(netuid)),
		Module:    p.Module,
		Fn:        p.Fn,
		Args:      args,
		Kwargs:    kwargs,
		Timestamp: c.now().Unix(),
		Block:     block,
		IP:        p.IP,
		Nonce:     uuid.NewString(),
	}
	bz, err := json.Marshal(data)
	if err != nil {
		return submodel.Auth{}, err
	}
	sig, err := kp.Sign(bz)
	if err != nil {
		return submodel.Auth{}, err
	}
	return submodel.Auth{
		Address:   kp.Address(),
		PublicKey: kp.PublicKeyHex(),
		Signature: hexutil.Encode(sig),
		Data:      string(bz),
	}, nil
}

func unverified(err error) submodel.VerifyResult {
	return submodel.VerifyResult{Verified: false, Error: err.Error()}
}

// Verify checks the signature, that the address is the signer's, that the
// attestation is at most maxStaleness old and, when ensureRegistered is
// set, that the signer holds a uid on the attested subnet of the connected
// network. Only chain failures of the last check are returned as errors.
func (c *Client) Verify(auth submodel.Auth, maxStaleness time.Duration, ensureRegistered bool) (submodel.VerifyResult, error) {
	sig, pub, err := utils.DecodeSignature(auth.Signature, auth.PublicKey)
	if err != nil {
		return unverified(err), nil
	}
	if !keyring.Verify(pub, []byte(auth.Data), sig) {
		return unverified(fmt.Errorf("%w: signature mismatch", core.ErrInvalidKey)), nil
	}

	signer, err := substrate.SS58Decode(auth.Address)
	if err != nil {
		return unverified(fmt.Errorf("%w: %s", core.ErrInvalidAddress, err)), nil
	}
	if !bytes.Equal(signer[:], pub) {
		return unverified(fmt.Errorf("%w: %s did not sign", core.ErrInvalidAddress, auth.Address)), nil
	}

	var data submodel.AuthData
	if err := json.Unmarshal([]byte(auth.Data), &data); err != nil {
		return unverified(fmt.Errorf("%w: auth data %s", core.ErrInvalidArgument, err)), nil
	}
	age := c.now().Sub(time.Unix(data.Timestamp, 0))
	if age > maxStaleness {
		return unverified(fmt.Errorf("%w: %s old, allowed %s", core.ErrStale, age, maxStaleness)), nil
	}

	if ensureRegistered {
		if current := c.conn.Network().Name; data.Network != current {
			return unverified(fmt.Errorf("%w: attested on network %q, connected to %q", core.ErrUnknownNetwork, data.Network, current)), nil
		}
		netuid, err := c.ResolveSubnet(data.Subnet)
		if err != nil {
			return submodel.VerifyResult{}, err
		}
		registered, err := c.registry.IsRegistered(signer, netuid)
		if err != nil {
			return submodel.VerifyResult{}, err
		}
		if !registered {
			return unverified(fmt.Errorf("%w: %s on netuid %d", core.ErrNotRegistered, auth.Address, netuid)), nil
		}
	}
	return submodel.VerifyResult{Verified: true}, nil
}
