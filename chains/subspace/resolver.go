// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package subspace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"subspace-client/core"
	"subspace-client/shared/keyring"
	"subspace-client/shared/substrate"
)

// ResolveNetwork returns the current endpoint for an empty name, otherwise
// the named one, reconnecting when it differs from the current.
func (c *Client) ResolveNetwork(name string) (core.NetworkEndpoint, error) {
	if name == "" {
		return c.conn.Network(), nil
	}
	return c.conn.Switch(name)
}

// keepNetworkOnError runs fn and, when it fails, switches back to the
// network that was current before it.
func keepNetworkOnError[T any](c *Client, fn func() (T, error)) (T, error) {
	prev := c.conn.Network()
	out, err := fn()
	if err != nil && c.conn.Network() != prev {
		if _, serr := c.conn.Switch(prev.Name); serr != nil {
			c.log.Warn("restore network failed", "network", prev.Name, "err", serr)
		}
	}
	return out, err
}

// ResolveSubnet accepts a netuid, a subnet name or nothing for the
// configured default.
func (c *Client) ResolveSubnet(ref string) (uint16, error) {
	if ref == "" {
		return c.cfg.DefaultNetuid, nil
	}
	if n, err := strconv.ParseUint(ref, 10, 16); err == nil {
		return uint16(n), nil
	}

	ns, err := c.registry.SubnetNamespace(c.cfg.Cache.NamespaceMaxAge)
	if err != nil {
		return 0, err
	}
	if netuid, ok := ns[ref]; ok {
		return netuid, nil
	}

	c.log.Debug("subnet not in cached namespace, refreshing", "subnet", ref)
	ns, err = c.registry.SubnetNamespace(-1)
	if err != nil {
		return 0, err
	}
	if netuid, ok := ns[ref]; ok {
		return netuid, nil
	}
	return 0, fmt.Errorf("%w: %s", core.ErrUnknownSubnet, ref)
}

// SubnetName is the reverse of ResolveSubnet for named subnets.
func (c *Client) SubnetName(netuid uint16) (string, error) {
	ns, err := c.registry.SubnetNamespace(c.cfg.Cache.NamespaceMaxAge)
	if err != nil {
		return "", err
	}
	for name, id := range ns {
		if id == netuid {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: netuid %d", core.ErrUnknownSubnet, netuid)
}

// ResolveKey returns the key stored under ref, the configured key for an
// empty ref. An alias without key material gets a new key persisted under
// it. An ss58 address resolves to the local key holding it.
func (c *Client) ResolveKey(ref string) (*keyring.Keypair, error) {
	if ref == "" {
		ref = c.cfg.Key
	}

	var kp *keyring.Keypair
	if substrate.IsValidAddress(ref) {
		alias, ok := c.keys.AliasOf(ref)
		if !ok {
			return nil, fmt.Errorf("%w: no local key for %s", core.ErrInvalidKey, ref)
		}
		k, err := c.keys.Get(alias)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", core.ErrInvalidKey, err)
		}
		kp = k
	} else {
		k, created, err := c.keys.LoadOrCreate(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", core.ErrInvalidKey, err)
		}
		if created {
			c.log.Info("created key for alias", "alias", ref, "address", k.Address())
		}
		kp = k
	}

	if !substrate.IsValidAddress(kp.Address()) {
		return nil, fmt.Errorf("%w: %s has no valid address", core.ErrInvalidKey, ref)
	}
	return kp, nil
}

// ResolveAddress turns an ss58 address, a 0x public key, a local key alias
// or a module name of the default subnet into an ss58 address.
func (c *Client) ResolveAddress(ref string) (string, error) {
	if ref == "" {
		kp, err := c.ResolveKey("")
		if err != nil {
			return "", err
		}
		return kp.Address(), nil
	}
	if substrate.IsValidAddress(ref) {
		return ref, nil
	}
	if strings.HasPrefix(ref, "0x") {
		id, err := substrate.ParseAccountID(ref)
		if err != nil {
			return "", fmt.Errorf("%w: %s", core.ErrInvalidAddress, err)
		}
		return id.Address(c.cfg.SS58Prefix), nil
	}
	if c.keys.Exists(ref) {
		kp, err := c.keys.Get(ref)
		if err != nil {
			return "", fmt.Errorf("%w: %s", core.ErrInvalidKey, err)
		}
		return kp.Address(), nil
	}

	key, err := c.Name2Key(ref, c.cfg.DefaultNetuid)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, core.ErrInvalidAddress) {
		return "", err
	}
	return "", fmt.Errorf("%w: %s", core.ErrInvalidAddress, ref)
}

func (c *Client) accountID(address string) (substrate.AccountID, error) {
	id, err := substrate.ParseAccountID(address)
	if err != nil {
		return id, fmt.Errorf("%w: %s", core.ErrInvalidAddress, err)
	}
	return id, nil
}
