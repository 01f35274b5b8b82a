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

package governance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/gowebpki/jcs"
)

// Verifier checks a hex encoded signature over message against a hex
// encoded public key. Any failure is reported as ErrInvalidSignature.
type Verifier interface {
	Verify(publicKeyHex string, signatureHex string, message []byte) error
}

// Secp256k1Verifier verifies DER encoded ECDSA signatures over the SHA-256
// digest of the message
type Secp256k1Verifier struct{}

func (Secp256k1Verifier) Verify(
	publicKeyHex string,
	signatureHex string,
	message []byte,
) error {
	pubKey, err := ParsePublicKeyHex(publicKeyHex)
	if err != nil {
		return err
	}
	sigBytes, err := decodeHex(signatureHex)
	if err != nil {
		return fmt.Errorf("%w: signature: %w", ErrInvalidSignature, err)
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("%w: signature: %w", ErrInvalidSignature, err)
	}
	digest := sha256.Sum256(message)
	if !sig.Verify(digest[:], pubKey) {
		return fmt.Errorf("%w: verification failed", ErrInvalidSignature)
	}
	return nil
}

// ParsePublicKeyHex parses a compressed or uncompressed secp256k1 public key
func ParsePublicKeyHex(publicKeyHex string) (*secp256k1.PublicKey, error) {
	keyBytes, err := decodeHex(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %w", ErrInvalidSignature, err)
	}
	pubKey, err := secp256k1.ParsePubKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %w", ErrInvalidSignature, err)
	}
	return pubKey, nil
}

// NormalizePublicKeyHex returns the canonical compressed hex form of a key,
// so the same key always compares equal
func NormalizePublicKeyHex(publicKeyHex string) (string, error) {
	pubKey, err := ParsePublicKeyHex(publicKeyHex)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(pubKey.SerializeCompressed()), nil
}

// SignMessage signs the SHA-256 digest of message and returns the hex
// encoded DER signature
func SignMessage(privKey *secp256k1.PrivateKey, message []byte) string {
	digest := sha256.Sum256(message)
	return hex.EncodeToString(ecdsa.Sign(privKey, digest[:]).Serialize())
}

// CanonicalJSON encodes v as RFC 8785 canonical JSON
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, errors.New("empty value")
	}
	return hex.DecodeString(s)
}
