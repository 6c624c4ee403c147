// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package config

import (
	log "github.com/ChainSafe/log15"
	"github.com/urfave/cli/v2"
)

var (
	ConfigFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "json/yaml/toml configuration file",
	}

	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Supports levels crit (silent) to trce (trace)",
		Value: log.LvlInfo.String(),
	}

	KeystorePathFlag = &cli.StringFlag{
		Name:  "keystore",
		Usage: "Path to keystore directory",
		Value: DefaultKeystorePath,
	}

	NetworkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "network to talk to, one of the configured networks like [main test local ...]",
	}

	NetuidFlag = &cli.StringFlag{
		Name:  "netuid",
		Usage: "subnet id or subnet name",
	}

	KeyFlag = &cli.StringFlag{
		Name:  "key",
		Usage: "key alias, created on first use",
	}

	AliasFlag = &cli.StringFlag{
		Name:     "alias",
		Usage:    "alias the key is stored under",
		Required: true,
	}

	MaxAgeFlag = &cli.DurationFlag{
		Name:  "max-age",
		Usage: "accept cached chain snapshots younger than this, negative disables the cache",
		Value: DefaultMaxAge,
	}

	WaitFlag = &cli.StringFlag{
		Name:  "wait",
		Usage: "confirmation level [none inclusion finalization], empty uses the operation default",
	}
)
