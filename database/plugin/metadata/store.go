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

package metadata

import (
	"fmt"

	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/blinklabs-io/mergegate/database/plugin"
	"github.com/blinklabs-io/mergegate/database/types"
	"gorm.io/gorm"
)

// MetadataStore is implemented by every metadata plugin. Lookups of a single
// record return nil without an error when the record does not exist.
type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Contributors
	GetContributor(string, types.Txn) (*models.Contributor, error)
	GetContributors(types.Txn) ([]models.Contributor, error)
	SetContributor(*models.Contributor, types.Txn) error
	SetContributorActive(string, bool, types.Txn) error
	AddContribution(*models.Contribution, types.Txn) error
	GetContributions(types.Txn) ([]models.Contribution, error)
	SetContributionAges(map[uint]int, types.Txn) error

	// Participation weights
	SetParticipationWeights([]models.ParticipationWeight, types.Txn) error
	GetParticipationWeight(
		string, // contributorID
		types.Txn,
	) (*models.ParticipationWeight, error)
	GetParticipationWeights(types.Txn) ([]models.ParticipationWeight, error)

	// Economic nodes
	AddEconomicNode(*models.EconomicNode, types.Txn) error
	UpdateEconomicNode(*models.EconomicNode, types.Txn) error
	GetEconomicNode(uint, types.Txn) (*models.EconomicNode, error)
	GetEconomicNodeByPublicKey(
		string, // publicKey
		types.Txn,
	) (*models.EconomicNode, error)
	GetEconomicNodes(types.Txn) ([]models.EconomicNode, error)
	GetEconomicNodesByIDs([]uint, types.Txn) ([]models.EconomicNode, error)

	// Veto signals and state
	AddVetoSignal(*models.VetoSignal, types.Txn) error
	GetVetoSignal(
		uint64, // proposalID
		uint, // nodeID
		types.Txn,
	) (*models.VetoSignal, error)
	GetVetoSignals(uint64, types.Txn) ([]models.VetoSignal, error)
	GetPrVetoState(uint64, types.Txn) (*models.PrVetoState, error)
	GetActivePrVetoStates(types.Txn) ([]models.PrVetoState, error)
	SetPrVetoState(*models.PrVetoState, types.Txn) error

	// Votes
	AddZapVote(*models.ZapVote, types.Txn) error
	GetZapVotes(uint64, types.Txn) ([]models.ZapVote, error)
	AddParticipationVote(*models.ParticipationVote, types.Txn) error
	GetParticipationVotes(uint64, types.Txn) ([]models.ParticipationVote, error)

	// Emergencies
	AddEmergency(*models.ActiveEmergency, types.Txn) error
	UpdateEmergency(*models.ActiveEmergency, types.Txn) error
	GetEmergency(string, types.Txn) (*models.ActiveEmergency, error)
	GetOpenEmergencies(types.Txn) ([]models.ActiveEmergency, error)

	// Merge decisions
	AddMergeDecision(*models.MergeDecision, types.Txn) error
	GetMergeDecisions(uint64, types.Txn) ([]models.MergeDecision, error)
}

// New returns the started metadata plugin selected by name
func New(pluginName string) (MetadataStore, error) {
	p, err := plugin.StartPlugin(plugin.PluginTypeMetadata, pluginName)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		_ = p.Stop()
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
