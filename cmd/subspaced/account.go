// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package main

import (
	"fmt"
	"strings"

	"subspace-client/config"
	"subspace-client/shared/keyring"

	log "github.com/ChainSafe/log15"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stafiprotocol/chainbridge/utils/keystore"
	"github.com/urfave/cli/v2"
)

func keyringOf(ctx *cli.Context) (*keyring.Keyring, error) {
	cfg, err := config.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	return keyring.New(cfg.KeystorePath, cfg.SS58Prefix, log.Root().New("module", "keyring")), nil
}

func handleGenerateCmd(ctx *cli.Context) error {
	kr, err := keyringOf(ctx)
	if err != nil {
		return err
	}
	alias := ctx.String(config.AliasFlag.Name)
	if kr.Exists(alias) {
		return fmt.Errorf("%w: %s", keyring.ErrKeyExists, alias)
	}
	kp, _, err := kr.LoadOrCreate(alias)
	if err != nil {
		return err
	}
	log.Info("key generated", "alias", alias, "address", kp.Address(), "public", kp.PublicKeyHex())
	return nil
}

func handleImportCmd(ctx *cli.Context) error {
	log.Info("Importing key by rawseed...")
	kr, err := keyringOf(ctx)
	if err != nil {
		return err
	}
	alias := ctx.String(config.AliasFlag.Name)

	raw := strings.TrimSpace(string(keystore.GetPassword("Enter hex rawseed:")))
	if !strings.HasPrefix(raw, "0x") {
		raw = "0x" + raw
	}
	seed, err := hexutil.Decode(raw)
	if err != nil {
		return fmt.Errorf("invalid rawseed: %s", err)
	}
	kp, err := kr.Import(alias, seed)
	if err != nil {
		return err
	}
	log.Info("key imported", "alias", alias, "address", kp.Address())
	return nil
}

func handleListCmd(ctx *cli.Context) error {
	kr, err := keyringOf(ctx)
	if err != nil {
		return err
	}
	addrs, err := kr.Addresses()
	if err != nil {
		return err
	}
	return printResult(addrs)
}
