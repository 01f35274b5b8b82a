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
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecp256k1Verifier(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	msg := []byte("PR #1 veto signal from pool-a")
	sig := SignMessage(key, msg)
	v := Secp256k1Verifier{}

	require.NoError(t, v.Verify(hexPubKey(key), sig, msg))
	require.NoError(t, v.Verify("0x"+hexPubKey(key), "0x"+sig, msg))
	assert.ErrorIs(t, v.Verify(hexPubKey(key), sig, []byte("other")), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(hexPubKey(key), "zz", msg), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(hexPubKey(key), "", msg), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify("02ff", sig, msg), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(hexPubKey(key), "3006020101020101", msg), ErrInvalidSignature)
}

func TestNormalizePublicKeyHex(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	uncompressed := key.PubKey().SerializeUncompressed()
	normalized, err := NormalizePublicKeyHex("0x" + hexString(uncompressed))
	require.NoError(t, err)
	assert.Equal(t, hexPubKey(key), normalized)

	_, err = NormalizePublicKeyHex("")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestCanonicalJSON(t *testing.T) {
	out, err := CanonicalJSON(map[string]any{
		"timestamp": "2025-03-01T12:00:00Z",
		"tier":      1,
		"evidence":  "aé",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"evidence":"aé","tier":1,"timestamp":"2025-03-01T12:00:00Z"}`, string(out))

	a := testActivation(EmergencyTierUrgent)
	first, err := ActivationSigningMessage(a, "keyholder-1", testEpoch)
	require.NoError(t, err)
	second, err := ActivationSigningMessage(a, "keyholder-1", testEpoch.Local())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, string(first), `"timestamp":"2025-03-01T12:00:00Z"`)
}
