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
	"fmt"
	"math"
	"time"

	"github.com/blinklabs-io/mergegate/database"
	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/blinklabs-io/mergegate/event"
)

const (
	DefaultCapPercentage          = 0.05
	DefaultCoolingOffThresholdBtc = 0.1
	DefaultCoolingOffPeriodDays   = 30
	DefaultRollingWindowDays      = 30
	DefaultReviewPeriod           = 90 * 24 * time.Hour

	// A zap vote never counts for less than this share of the voter's
	// standing participation weight
	zapWeightFloorFraction = 0.10
)

// WeightParams tunes the participation weight calculation. Zero values are
// replaced with the defaults.
type WeightParams struct {
	CapPercentage          float64
	CoolingOffThresholdBtc float64
	CoolingOffPeriodDays   int
	RollingWindowDays      int
}

func (p WeightParams) withDefaults() WeightParams {
	if p.CapPercentage <= 0 {
		p.CapPercentage = DefaultCapPercentage
	}
	if p.CoolingOffThresholdBtc <= 0 {
		p.CoolingOffThresholdBtc = DefaultCoolingOffThresholdBtc
	}
	if p.CoolingOffPeriodDays <= 0 {
		p.CoolingOffPeriodDays = DefaultCoolingOffPeriodDays
	}
	if p.RollingWindowDays <= 0 {
		p.RollingWindowDays = DefaultRollingWindowDays
	}
	return p
}

// WeightUpdateResult summarizes a participation weight update run
type WeightUpdateResult struct {
	UpdatedAt           time.Time
	Contributors        int
	TotalSystemWeight   float64
	UncappedTotalWeight float64
}

// WeightCalculator turns contributions into capped participation weights
type WeightCalculator struct {
	e      *Engine
	params WeightParams
}

// CalculateParticipationWeight returns the quadratic weight of the combined
// contribution
func CalculateParticipationWeight(
	mergeMiningBtc float64,
	feeForwardingBtc float64,
	cumulativeZapsBtc float64,
) float64 {
	total := mergeMiningBtc + feeForwardingBtc + cumulativeZapsBtc
	if total <= 0 {
		return 0
	}
	return math.Sqrt(total)
}

// CheckCoolingOff reports whether a contribution counts toward weight yet,
// using the default threshold and period
func CheckCoolingOff(amountBtc float64, ageDays int) bool {
	return checkCoolingOff(
		amountBtc,
		ageDays,
		DefaultCoolingOffThresholdBtc,
		DefaultCoolingOffPeriodDays,
	)
}

func checkCoolingOff(
	amountBtc float64,
	ageDays int,
	thresholdBtc float64,
	periodDays int,
) bool {
	if amountBtc < thresholdBtc {
		return true
	}
	return ageDays >= periodDays
}

// ComputeCappedWeights caps each base weight against the uncapped total in a
// single pass. A lone contributor is never capped.
func ComputeCappedWeights(
	baseWeights []float64,
	capPercentage float64,
) (capped []float64, uncappedTotal float64, cappedTotal float64) {
	for _, w := range baseWeights {
		uncappedTotal += w
	}
	capped = make([]float64, len(baseWeights))
	limit := uncappedTotal * capPercentage
	for i, w := range baseWeights {
		if len(baseWeights) > 1 {
			w = math.Min(w, limit)
		}
		capped[i] = w
		cappedTotal += w
	}
	return capped, uncappedTotal, cappedTotal
}

// CheckCoolingOff reports whether a contribution counts toward weight yet
func (w *WeightCalculator) CheckCoolingOff(amountBtc float64, ageDays int) bool {
	return checkCoolingOff(
		amountBtc,
		ageDays,
		w.params.CoolingOffThresholdBtc,
		w.params.CoolingOffPeriodDays,
	)
}

// ApplyWeightCap limits weight to the cap share of the system total. There
// is nothing to cap against until a total exists.
func (w *WeightCalculator) ApplyWeightCap(
	weight float64,
	totalSystemWeight float64,
) float64 {
	if totalSystemWeight <= 0 {
		return weight
	}
	return math.Min(weight, totalSystemWeight*w.params.CapPercentage)
}

// GetProposalVoteWeight returns the weight of a vote on a single proposal
func (w *WeightCalculator) GetProposalVoteWeight(
	participationWeight float64,
	proposalZapAmount float64,
	totalSystemWeight float64,
	contributionAgeDays int,
) float64 {
	if proposalZapAmount <= 0 ||
		!w.CheckCoolingOff(proposalZapAmount, contributionAgeDays) {
		return w.ApplyWeightCap(participationWeight, totalSystemWeight)
	}
	weight := math.Max(
		math.Sqrt(proposalZapAmount),
		participationWeight*zapWeightFloorFraction,
	)
	return w.ApplyWeightCap(weight, totalSystemWeight)
}

type contributionTotals struct {
	mergeMiningBtc    float64
	feeForwardingBtc  float64
	cumulativeZapsBtc float64
}

// UpdateParticipationWeights recomputes and stores the weight of every
// contributor. The whole run commits or nothing does.
func (w *WeightCalculator) UpdateParticipationWeights() (*WeightUpdateResult, error) {
	start := time.Now()
	now := w.e.now()
	result := &WeightUpdateResult{UpdatedAt: now}
	err := w.e.db.MetadataTxn(true).Do(func(txn *database.Txn) error {
		contributors, err := w.e.db.GetContributors(txn)
		if err != nil {
			return fmt.Errorf("failed to load contributors: %w", err)
		}
		contributions, err := w.e.db.GetContributions(txn)
		if err != nil {
			return fmt.Errorf("failed to load contributions: %w", err)
		}
		totals := w.aggregateContributions(contributions, now)
		ages := make(map[uint]int)
		for _, c := range contributions {
			if age := ageInDays(c.Timestamp, now); age != c.AgeDays {
				ages[c.ID] = age
			}
		}
		if err := w.e.db.SetContributionAges(ages, txn); err != nil {
			return fmt.Errorf("failed to refresh contribution ages: %w", err)
		}
		// Inactive contributors keep a zeroed row and stay out of the totals
		rows := make([]models.ParticipationWeight, len(contributors))
		var bases []float64
		var activeIdx []int
		for i, c := range contributors {
			rows[i] = models.ParticipationWeight{
				ContributorID: c.ID,
				UpdatedAt:     now,
			}
			if !c.Active {
				continue
			}
			t := totals[c.ID]
			row := &rows[i]
			row.MergeMiningBtc = t.mergeMiningBtc
			row.FeeForwardingBtc = t.feeForwardingBtc
			row.CumulativeZapsBtc = t.cumulativeZapsBtc
			row.TotalContributionBtc = t.mergeMiningBtc + t.feeForwardingBtc + t.cumulativeZapsBtc
			row.BaseWeight = CalculateParticipationWeight(
				t.mergeMiningBtc,
				t.feeForwardingBtc,
				t.cumulativeZapsBtc,
			)
			bases = append(bases, row.BaseWeight)
			activeIdx = append(activeIdx, i)
		}
		capped, uncappedTotal, cappedTotal := ComputeCappedWeights(
			bases,
			w.params.CapPercentage,
		)
		for j, i := range activeIdx {
			rows[i].CappedWeight = capped[j]
		}
		for i := range rows {
			rows[i].TotalSystemWeight = cappedTotal
			rows[i].UncappedTotalWeight = uncappedTotal
		}
		if err := w.e.db.SetParticipationWeights(rows, txn); err != nil {
			return err
		}
		result.Contributors = len(activeIdx)
		result.TotalSystemWeight = cappedTotal
		result.UncappedTotalWeight = uncappedTotal
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("participation weight update failed: %w", err)
	}
	w.e.metrics.weightUpdateDuration.Observe(time.Since(start).Seconds())
	w.e.metrics.totalSystemWeight.Set(result.TotalSystemWeight)
	w.e.metrics.contributors.Set(float64(result.Contributors))
	w.e.logger.Info(
		"updated participation weights",
		"contributors", result.Contributors,
		"total_system_weight", result.TotalSystemWeight,
		"uncapped_total_weight", result.UncappedTotalWeight,
	)
	w.e.publish(
		event.WeightsUpdatedEventType,
		event.WeightsUpdatedEvent{
			UpdatedAt:           result.UpdatedAt,
			Contributors:        result.Contributors,
			TotalSystemWeight:   result.TotalSystemWeight,
			UncappedTotalWeight: result.UncappedTotalWeight,
		},
	)
	return result, nil
}

// aggregateContributions derives per-contributor totals. Merge mining and
// fee forwarding use the rolling window, zaps are all-time but only once out
// of cooling-off.
func (w *WeightCalculator) aggregateContributions(
	contributions []models.Contribution,
	now time.Time,
) map[string]contributionTotals {
	cutoff := now.AddDate(0, 0, -w.params.RollingWindowDays)
	ret := make(map[string]contributionTotals)
	for _, c := range contributions {
		t := ret[c.ContributorID]
		switch c.Kind {
		case models.ContributionKindMergeMining:
			if !c.Timestamp.Before(cutoff) {
				t.mergeMiningBtc += c.AmountBtc
			}
		case models.ContributionKindFeeForwarding:
			if !c.Timestamp.Before(cutoff) {
				t.feeForwardingBtc += c.AmountBtc
			}
		case models.ContributionKindZap:
			if w.CheckCoolingOff(c.AmountBtc, ageInDays(c.Timestamp, now)) {
				t.cumulativeZapsBtc += c.AmountBtc
			}
		}
		ret[c.ContributorID] = t
	}
	return ret
}

func ageInDays(ts time.Time, now time.Time) int {
	age := int(now.Sub(ts) / (24 * time.Hour))
	if age < 0 {
		return 0
	}
	return age
}
