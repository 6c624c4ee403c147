// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package keyring

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ChainSafe/log15"
)

const keyExt = ".key"

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyExists   = errors.New("key already exists")
	ErrBadAlias    = errors.New("invalid key alias")
)

// Keyring stores one PEM encoded ed25519 key per alias under a directory.
type Keyring struct {
	dir    string
	prefix uint16
	lock   sync.Mutex
	log    log15.Logger
}

func New(dir string, prefix uint16, log log15.Logger) *Keyring {
	return &Keyring{dir: dir, prefix: prefix, log: log}
}

func (k *Keyring) path(alias string) (string, error) {
	if alias == "" || strings.ContainsAny(alias, `/\`) || strings.HasPrefix(alias, ".") {
		return "", fmt.Errorf("%w: %q", ErrBadAlias, alias)
	}
	return filepath.Join(k.dir, alias+keyExt), nil
}

func (k *Keyring) Exists(alias string) bool {
	p, err := k.path(alias)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Size() > 0
}

// Get loads the key stored under alias.
func (k *Keyring) Get(alias string) (*Keypair, error) {
	p, err := k.path(alias)
	if err != nil {
		return nil, err
	}
	priv, err := loadKey(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, alias)
	}
	if err != nil {
		return nil, fmt.Errorf("load key %s err: %s", alias, err)
	}
	return NewKeypair(alias, priv, k.prefix), nil
}

// LoadOrCreate returns the key under alias, generating and persisting a new
// one when the alias has no key material yet.
func (k *Keyring) LoadOrCreate(alias string) (*Keypair, bool, error) {
	k.lock.Lock()
	defer k.lock.Unlock()

	if k.Exists(alias) {
		kp, err := k.Get(alias)
		return kp, false, err
	}
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, false, err
	}
	if err := k.save(alias, priv); err != nil {
		return nil, false, err
	}
	kp := NewKeypair(alias, priv, k.prefix)
	k.log.Info("generated key", "alias", alias, "address", kp.Address())
	return kp, true, nil
}

// Import stores the key derived from seed under alias.
func (k *Keyring) Import(alias string, seed []byte) (*Keypair, error) {
	kp, err := FromSeed(alias, seed, k.prefix)
	if err != nil {
		return nil, err
	}
	k.lock.Lock()
	defer k.lock.Unlock()
	if err := k.save(alias, kp.priv); err != nil {
		return nil, err
	}
	k.log.Info("imported key", "alias", alias, "address", kp.Address())
	return kp, nil
}

// List returns the stored aliases, sorted.
func (k *Keyring) List() ([]string, error) {
	entries, err := os.ReadDir(k.dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	aliases := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), keyExt) {
			continue
		}
		aliases = append(aliases, strings.TrimSuffix(e.Name(), keyExt))
	}
	sort.Strings(aliases)
	return aliases, nil
}

// Addresses maps every stored alias to its address.
func (k *Keyring) Addresses() (map[string]string, error) {
	aliases, err := k.List()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(aliases))
	for _, alias := range aliases {
		kp, err := k.Get(alias)
		if err != nil {
			k.log.Warn("skip unreadable key", "alias", alias, "err", err)
			continue
		}
		out[alias] = kp.Address()
	}
	return out, nil
}

// AliasOf finds the alias holding address.
func (k *Keyring) AliasOf(address string) (string, bool) {
	addrs, err := k.Addresses()
	if err != nil {
		return "", false
	}
	for alias, a := range addrs {
		if a == address {
			return alias, true
		}
	}
	return "", false
}

func (k *Keyring) save(alias string, priv ed25519.PrivateKey) error {
	p, err := k.path(alias)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(k.dir, 0700); err != nil {
		return err
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if os.IsExist(err) {
		return fmt.Errorf("%w: %s", ErrKeyExists, alias)
	}
	if err != nil {
		return err
	}
	defer file.Close()
	return pem.Encode(file, &pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func loadKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block in key file")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("key is not ed25519")
	}
	return priv, nil
}
