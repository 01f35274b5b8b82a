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

package types

import (
	"encoding/binary"
	"time"
)

const (
	DecisionBlobKeyPrefix = "md"
)

func uint64ToBytes(input uint64) []byte {
	ret := make([]byte, 8)
	binary.BigEndian.PutUint64(ret, input)
	return ret
}

// DecisionBlobKeyProposalPrefix returns the key prefix shared by every
// decision snapshot of a proposal
func DecisionBlobKeyProposalPrefix(proposalID uint64) []byte {
	key := []byte(DecisionBlobKeyPrefix)
	key = append(key, uint64ToBytes(proposalID)...)
	return key
}

// DecisionBlobKey returns the key for a decision snapshot. Keys for the same
// proposal sort by decision time.
func DecisionBlobKey(proposalID uint64, decidedAt time.Time) []byte {
	key := DecisionBlobKeyProposalPrefix(proposalID)
	// #nosec G115 -- decision times are after the unix epoch
	key = append(key, uint64ToBytes(uint64(decidedAt.UnixNano()))...)
	return key
}
