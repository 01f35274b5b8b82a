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

package keystore

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const governanceKeyType = "GovernanceSigningKey_secp256k1"

// keyFileEnvelope is the JSON structure of a key file
type keyFileEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	KeyHex      string `json:"keyHex"`
}

// LoadKeyFile loads a key from a file path. Returns ErrInsecureFileMode if
// the file has group or other access.
//
// The file is opened first and permissions are checked on the open handle
// to avoid a race between the permission check and the read.
func LoadKeyFile(path string) (*Key, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, path)
		}
		return nil, fmt.Errorf("failed to open key file %q: %w", path, err)
	}
	defer f.Close()

	if err := checkOpenFilePermissions(f); err != nil {
		return nil, err
	}

	// Valid key files are well under this size
	const maxKeyFileSize = 64 << 10
	data, err := io.ReadAll(io.LimitReader(f, maxKeyFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %w", path, err)
	}
	key, err := parseKeyEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %q: %w", path, err)
	}
	return key, nil
}

func parseKeyEnvelope(fileBytes []byte) (*Key, error) {
	var env keyFileEnvelope
	if err := json.Unmarshal(fileBytes, &env); err != nil {
		return nil, fmt.Errorf("could not parse key file envelope: %w", err)
	}
	if env.Type != governanceKeyType {
		return nil, fmt.Errorf("unknown key type: %s", env.Type)
	}
	keyBytes, err := hex.DecodeString(env.KeyHex)
	if err != nil {
		return nil, fmt.Errorf("could not decode key from hex: %w", err)
	}
	if len(keyBytes) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf(
			"invalid key length: expected %d, got %d",
			secp256k1.PrivKeyBytesLen,
			len(keyBytes),
		)
	}
	return &Key{
		Description: env.Description,
		privKey:     secp256k1.PrivKeyFromBytes(keyBytes),
	}, nil
}

// writeKeyFile writes a key readable only by the owner. It fails if the
// file already exists.
func writeKeyFile(path string, key *Key) error {
	data, err := json.MarshalIndent(
		keyFileEnvelope{
			Type:        governanceKeyType,
			Description: key.Description,
			KeyHex:      hex.EncodeToString(key.privKey.Serialize()),
		},
		"",
		"    ",
	)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(
		filepath.Clean(path),
		os.O_WRONLY|os.O_CREATE|os.O_EXCL,
		0o600,
	)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrKeyExists, path)
		}
		return fmt.Errorf("failed to create key file %q: %w", path, err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write key file %q: %w", path, err)
	}
	return f.Close()
}
