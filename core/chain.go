// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package core

import (
	"fmt"
	"sort"
)

// NetworkEndpoint names one ledger node url.
type NetworkEndpoint struct {
	Name string // Human-readable network name
	URL  string // url for rpc endpoint
}

func (n NetworkEndpoint) String() string {
	return fmt.Sprintf("%s(%s)", n.Name, n.URL)
}

// Networks is the immutable name -> url mapping loaded at configuration time.
type Networks map[string]string

func (n Networks) Endpoint(name string) (NetworkEndpoint, error) {
	url, ok := n[name]
	if !ok || url == "" {
		return NetworkEndpoint{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
	}
	return NetworkEndpoint{Name: name, URL: url}, nil
}

func (n Networks) Names() []string {
	names := make([]string, 0, len(n))
	for name := range n {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
