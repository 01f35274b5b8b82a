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

import "errors"

var (
	ErrThresholdNotMet           = errors.New("signature threshold not met")
	ErrInvalidSignature          = errors.New("invalid signature")
	ErrDuplicateSignal           = errors.New("node already signaled this proposal")
	ErrNodeNotFound              = errors.New("economic node not found")
	ErrNodeNotActive             = errors.New("economic node not active")
	ErrInsufficientQualification = errors.New("insufficient qualification")
	ErrInvalidEmergencyTier      = errors.New("invalid emergency tier")
	ErrEmergencyExpired          = errors.New("emergency expired")
	ErrExtensionNotAllowed       = errors.New("extension not allowed for tier")
	ErrMaxExtensionsReached      = errors.New("maximum extensions reached")
	ErrInsufficientEvidence      = errors.New("insufficient evidence")

	ErrInvalidTier                = errors.New("invalid tier")
	ErrDuplicateNode              = errors.New("economic node already registered")
	ErrDuplicateZapVote           = errors.New("zap vote already recorded")
	ErrDuplicateParticipationVote = errors.New("participation vote already recorded")
	ErrNoVetoState                = errors.New("no veto state for proposal")
	ErrVetoResolved               = errors.New("veto already resolved")
	ErrReviewPeriodActive         = errors.New("review period has not ended")
	ErrEmergencyNotFound          = errors.New("emergency not found")
	ErrEmergencyActive            = errors.New("an emergency is already active")
	ErrInvalidContribution        = errors.New("invalid contribution")
)
