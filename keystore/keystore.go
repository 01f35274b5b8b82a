// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package keystore manages the secp256k1 keys keyholders, maintainers and
// economic nodes use to sign governance messages. Keys live in JSON key
// files that must not be readable by other users.
package keystore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blinklabs-io/mergegate/governance"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const keyFileExtension = ".skey"

var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrKeyExists        = errors.New("key already exists")
	ErrInvalidKeyName   = errors.New("invalid key name")
	ErrInsecureFileMode = errors.New("insecure file permissions")
)

// Key is a loaded governance signing key
type Key struct {
	privKey     *secp256k1.PrivateKey
	Name        string
	Description string
}

// PublicKeyHex returns the compressed public key in hex
func (k *Key) PublicKeyHex() string {
	return hex.EncodeToString(k.privKey.PubKey().SerializeCompressed())
}

// Sign returns the hex encoded DER signature over the SHA-256 digest of
// message
func (k *Key) Sign(message []byte) string {
	return governance.SignMessage(k.privKey, message)
}

// KeyStoreConfig holds configuration for the KeyStore
type KeyStoreConfig struct {
	Logger *slog.Logger
	// Dir holds one key file per key
	Dir string
}

// KeyStore loads and creates named keys in a directory
type KeyStore struct {
	logger *slog.Logger
	keys   map[string]*Key
	dir    string
	mu     sync.Mutex
}

func NewKeyStore(cfg KeyStoreConfig) *KeyStore {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &KeyStore{
		dir:    cfg.Dir,
		logger: cfg.Logger.With("component", "keystore"),
		keys:   make(map[string]*Key),
	}
}

// Generate creates a new key and writes it to the key directory. Existing
// keys are never overwritten.
func (ks *KeyStore) Generate(name string, description string) (*Key, error) {
	path, err := ks.keyPath(name)
	if err != nil {
		return nil, err
	}
	privKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	key := &Key{
		Name:        name,
		Description: description,
		privKey:     privKey,
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if err := os.MkdirAll(ks.dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := writeKeyFile(path, key); err != nil {
		return nil, err
	}
	ks.keys[name] = key
	ks.logger.Info(
		"generated key",
		"name", name,
		"public_key", key.PublicKeyHex(),
	)
	return key, nil
}

// Load returns the named key, reading it from disk on first use
func (ks *KeyStore) Load(name string) (*Key, error) {
	path, err := ks.keyPath(name)
	if err != nil {
		return nil, err
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if key, ok := ks.keys[name]; ok {
		return key, nil
	}
	key, err := LoadKeyFile(path)
	if err != nil {
		return nil, err
	}
	key.Name = name
	ks.keys[name] = key
	return key, nil
}

// List returns the names of the keys in the key directory
func (ks *KeyStore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read key directory: %w", err)
	}
	var ret []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(entry.Name(), keyFileExtension); ok {
			ret = append(ret, name)
		}
	}
	sort.Strings(ret)
	return ret, nil
}

func (ks *KeyStore) keyPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKeyName, name)
	}
	return filepath.Join(ks.dir, name+keyFileExtension), nil
}
