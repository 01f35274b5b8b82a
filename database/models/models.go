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

package models

import "errors"

// ErrDuplicate is returned by the metadata store when an insert violates a
// unique index
var ErrDuplicate = errors.New("duplicate record")

// MigrateModels contains a list of model objects that should have DB migrations applied
var MigrateModels = []any{
	&ActiveEmergency{},
	&Contribution{},
	&Contributor{},
	&EconomicNode{},
	&MergeDecision{},
	&ParticipationVote{},
	&ParticipationWeight{},
	&PrVetoState{},
	&VetoSignal{},
	&ZapVote{},
}
