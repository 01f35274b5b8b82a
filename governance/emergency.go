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
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/blinklabs-io/mergegate/database"
	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/blinklabs-io/mergegate/event"
	"github.com/google/uuid"
)

// MinEvidenceLength is the minimum number of characters of evidence an
// emergency activation must carry
const MinEvidenceLength = 100

// EmergencyTier is the severity of an emergency. Lower is more severe.
type EmergencyTier uint8

const (
	EmergencyTierCritical EmergencyTier = 1
	EmergencyTierUrgent   EmergencyTier = 2
	EmergencyTierElevated EmergencyTier = 3
)

func ParseEmergencyTier(n int) (EmergencyTier, error) {
	if n < 0 || n > math.MaxUint8 || !EmergencyTier(n).Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidEmergencyTier, n)
	}
	return EmergencyTier(n), nil
}

func (t EmergencyTier) Valid() bool {
	switch t {
	case EmergencyTierCritical, EmergencyTierUrgent, EmergencyTierElevated:
		return true
	}
	return false
}

func (t EmergencyTier) String() string {
	switch t {
	case EmergencyTierCritical:
		return "critical"
	case EmergencyTierUrgent:
		return "urgent"
	case EmergencyTierElevated:
		return "elevated"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// Name is the human readable name of the tier
func (t EmergencyTier) Name() string {
	switch t {
	case EmergencyTierCritical:
		return "Critical Emergency"
	case EmergencyTierUrgent:
		return "Urgent Security Issue"
	case EmergencyTierElevated:
		return "Elevated Priority"
	default:
		return "Unknown"
	}
}

func (t EmergencyTier) ReviewPeriodDays() int {
	switch t {
	case EmergencyTierCritical:
		return 0
	case EmergencyTierUrgent:
		return 7
	case EmergencyTierElevated:
		return 30
	default:
		return 0
	}
}

// SignatureThreshold is the number of maintainer signatures a change needs
// while the emergency is active
func (t EmergencyTier) SignatureThreshold() (required int, total int) {
	switch t {
	case EmergencyTierCritical:
		return 4, 7
	case EmergencyTierUrgent:
		return 5, 7
	case EmergencyTierElevated:
		return 6, 7
	default:
		return 0, 0
	}
}

// ActivationThreshold is the number of keyholder signatures needed to
// activate an emergency. It is the same for every tier.
func (t EmergencyTier) ActivationThreshold() (required int, total int) {
	if !t.Valid() {
		return 0, 0
	}
	return 5, 7
}

func (t EmergencyTier) MaxDurationDays() int {
	switch t {
	case EmergencyTierCritical:
		return 7
	case EmergencyTierUrgent:
		return 30
	case EmergencyTierElevated:
		return 90
	default:
		return 0
	}
}

func (t EmergencyTier) AllowsExtensions() bool {
	return t.MaxExtensions() > 0
}

func (t EmergencyTier) MaxExtensions() uint32 {
	switch t {
	case EmergencyTierUrgent:
		return 1
	case EmergencyTierElevated:
		return 2
	default:
		return 0
	}
}

func (t EmergencyTier) ExtensionDurationDays() int {
	switch t {
	case EmergencyTierUrgent, EmergencyTierElevated:
		return 30
	default:
		return 0
	}
}

func (t EmergencyTier) ExtensionThreshold() (required int, total int) {
	switch t {
	case EmergencyTierUrgent, EmergencyTierElevated:
		return 6, 7
	default:
		return 0, 0
	}
}

func (t EmergencyTier) PostMortemDeadlineDays() int {
	switch t {
	case EmergencyTierCritical:
		return 30
	case EmergencyTierUrgent:
		return 60
	case EmergencyTierElevated:
		return 90
	default:
		return 0
	}
}

func (t EmergencyTier) RequiresSecurityAudit() bool {
	return t == EmergencyTierCritical
}

func (t EmergencyTier) SecurityAuditDeadlineDays() int {
	if t.RequiresSecurityAudit() {
		return 60
	}
	return 0
}

// KeyholderSignature is one keyholder's signature over an activation or
// extension message
type KeyholderSignature struct {
	Timestamp time.Time `json:"timestamp"`
	Keyholder string    `json:"keyholder"`
	PublicKey string    `json:"public_key"`
	Signature string    `json:"signature"`
}

// EmergencyActivation is a request to activate an emergency
type EmergencyActivation struct {
	ActivatedBy string               `json:"activated_by"`
	Reason      string               `json:"reason"`
	Evidence    string               `json:"evidence"`
	Signatures  []KeyholderSignature `json:"signatures"`
	Tier        EmergencyTier        `json:"tier"`
}

type activationMessage struct {
	ActivatedBy string `json:"activated_by"`
	Reason      string `json:"reason"`
	Evidence    string `json:"evidence"`
	Keyholder   string `json:"keyholder"`
	Timestamp   string `json:"timestamp"`
	Tier        uint8  `json:"tier"`
}

type extensionMessage struct {
	EmergencyID     string `json:"emergency_id"`
	Keyholder       string `json:"keyholder"`
	Timestamp       string `json:"timestamp"`
	ExtensionNumber uint32 `json:"extension_number"`
	Tier            uint8  `json:"tier"`
}

// ActivationSigningMessage returns the canonical JSON a keyholder signs to
// approve an activation
func ActivationSigningMessage(
	a *EmergencyActivation,
	keyholder string,
	timestamp time.Time,
) ([]byte, error) {
	return CanonicalJSON(activationMessage{
		Tier:        uint8(a.Tier),
		ActivatedBy: a.ActivatedBy,
		Reason:      a.Reason,
		Evidence:    a.Evidence,
		Keyholder:   keyholder,
		Timestamp:   timestamp.UTC().Format(time.RFC3339),
	})
}

// ExtensionSigningMessage returns the canonical JSON a keyholder signs to
// approve the next extension of an emergency
func ExtensionSigningMessage(
	emergency *models.ActiveEmergency,
	keyholder string,
	timestamp time.Time,
) ([]byte, error) {
	return CanonicalJSON(extensionMessage{
		EmergencyID:     emergency.ID,
		ExtensionNumber: emergency.ExtensionCount + 1,
		Keyholder:       keyholder,
		Tier:            emergency.Tier,
		Timestamp:       timestamp.UTC().Format(time.RFC3339),
	})
}

// IsExpired reports whether an emergency has run past its expiry
func IsExpired(emergency *models.ActiveEmergency, now time.Time) bool {
	return now.After(emergency.ExpiresAt)
}

// CanExtend reports whether an emergency may still be extended
func CanExtend(emergency *models.ActiveEmergency, now time.Time) bool {
	tier := EmergencyTier(emergency.Tier)
	return tier.AllowsExtensions() &&
		emergency.ExtensionCount < tier.MaxExtensions() &&
		!IsExpired(emergency, now)
}

// CalculateExtensionExpiration returns the expiry an emergency would have
// after one more extension
func CalculateExtensionExpiration(
	emergency *models.ActiveEmergency,
) (time.Time, bool) {
	tier := EmergencyTier(emergency.Tier)
	if !tier.AllowsExtensions() {
		return time.Time{}, false
	}
	return emergency.ExpiresAt.AddDate(0, 0, tier.ExtensionDurationDays()), true
}

// EmergencyValidator checks keyholder quorums for emergency activation and
// extension
type EmergencyValidator struct {
	verifier   Verifier
	keyholders map[string]struct{}
}

// NewEmergencyValidator creates a validator. When keyholders is not empty
// only those public keys may sign.
func NewEmergencyValidator(
	verifier Verifier,
	keyholders []string,
) (*EmergencyValidator, error) {
	if verifier == nil {
		verifier = Secp256k1Verifier{}
	}
	v := &EmergencyValidator{
		verifier:   verifier,
		keyholders: make(map[string]struct{}, len(keyholders)),
	}
	for _, k := range keyholders {
		normalized, err := NormalizePublicKeyHex(k)
		if err != nil {
			return nil, fmt.Errorf("invalid keyholder key %q: %w", k, err)
		}
		v.keyholders[normalized] = struct{}{}
	}
	return v, nil
}

// ValidateActivation checks the evidence and keyholder signatures of an
// activation request
func (v *EmergencyValidator) ValidateActivation(a *EmergencyActivation) error {
	if !a.Tier.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidEmergencyTier, a.Tier)
	}
	if n := utf8.RuneCountInString(a.Evidence); n < MinEvidenceLength {
		return fmt.Errorf(
			"%w: %d characters, need %d",
			ErrInsufficientEvidence,
			n,
			MinEvidenceLength,
		)
	}
	required, _ := a.Tier.ActivationThreshold()
	return v.verifySignatures(
		a.Signatures,
		required,
		func(sig KeyholderSignature) ([]byte, error) {
			return ActivationSigningMessage(a, sig.Keyholder, sig.Timestamp)
		},
	)
}

// ValidateExtension checks that an emergency may be extended and that the
// keyholder quorum signed the extension
func (v *EmergencyValidator) ValidateExtension(
	emergency *models.ActiveEmergency,
	signatures []KeyholderSignature,
	now time.Time,
) error {
	tier := EmergencyTier(emergency.Tier)
	if !tier.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidEmergencyTier, emergency.Tier)
	}
	if !tier.AllowsExtensions() {
		return fmt.Errorf("%w: %s", ErrExtensionNotAllowed, tier.Name())
	}
	if emergency.ExtensionCount >= tier.MaxExtensions() {
		return fmt.Errorf(
			"%w: %d of %d used",
			ErrMaxExtensionsReached,
			emergency.ExtensionCount,
			tier.MaxExtensions(),
		)
	}
	if IsExpired(emergency, now) {
		return fmt.Errorf(
			"%w: expired at %s",
			ErrEmergencyExpired,
			emergency.ExpiresAt.Format(time.RFC3339),
		)
	}
	required, _ := tier.ExtensionThreshold()
	return v.verifySignatures(
		signatures,
		required,
		func(sig KeyholderSignature) ([]byte, error) {
			return ExtensionSigningMessage(emergency, sig.Keyholder, sig.Timestamp)
		},
	)
}

// verifySignatures requires at least required distinct signing keys, then
// verifies every signature
func (v *EmergencyValidator) verifySignatures(
	signatures []KeyholderSignature,
	required int,
	message func(KeyholderSignature) ([]byte, error),
) error {
	distinct := make(map[string]struct{}, len(signatures))
	for _, sig := range signatures {
		key, err := NormalizePublicKeyHex(sig.PublicKey)
		if err != nil {
			key = sig.PublicKey
		}
		distinct[key] = struct{}{}
	}
	if len(distinct) < required {
		return fmt.Errorf(
			"%w: %d distinct keyholders, need %d",
			ErrThresholdNotMet,
			len(distinct),
			required,
		)
	}
	for _, sig := range signatures {
		key, err := NormalizePublicKeyHex(sig.PublicKey)
		if err != nil {
			return fmt.Errorf("keyholder %s: %w", sig.Keyholder, err)
		}
		if len(v.keyholders) > 0 {
			if _, ok := v.keyholders[key]; !ok {
				return fmt.Errorf(
					"%w: keyholder %s is not authorized",
					ErrInvalidSignature,
					sig.Keyholder,
				)
			}
		}
		msg, err := message(sig)
		if err != nil {
			return fmt.Errorf("failed to build signing message: %w", err)
		}
		if err := v.verifier.Verify(key, sig.Signature, msg); err != nil {
			return fmt.Errorf("keyholder %s: %w", sig.Keyholder, err)
		}
	}
	return nil
}

// EmergencyManager activates, extends and expires emergencies
type EmergencyManager struct {
	e         *Engine
	validator *EmergencyValidator
}

func (m *EmergencyManager) Validator() *EmergencyValidator {
	return m.validator
}

// ActivateEmergency validates an activation and stores the new emergency.
// Only one emergency may be in force at a time.
func (m *EmergencyManager) ActivateEmergency(
	a *EmergencyActivation,
) (*models.ActiveEmergency, error) {
	if err := m.validator.ValidateActivation(a); err != nil {
		return nil, err
	}
	now := m.e.now()
	emergency := &models.ActiveEmergency{
		ID:                 uuid.NewString(),
		Tier:               uint8(a.Tier),
		ActivatedBy:        a.ActivatedBy,
		Reason:             a.Reason,
		Evidence:           a.Evidence,
		ActivatedAt:        now,
		ExpiresAt:          now.AddDate(0, 0, a.Tier.MaxDurationDays()),
		PostMortemDeadline: now.AddDate(0, 0, a.Tier.PostMortemDeadlineDays()),
	}
	if a.Tier.RequiresSecurityAudit() {
		deadline := now.AddDate(0, 0, a.Tier.SecurityAuditDeadlineDays())
		emergency.SecurityAuditDeadline = &deadline
	}
	err := m.e.db.MetadataTxn(true).Do(func(txn *database.Txn) error {
		open, err := m.e.db.GetOpenEmergencies(txn)
		if err != nil {
			return err
		}
		for i := range open {
			if !IsExpired(&open[i], now) {
				return fmt.Errorf("%w: %s", ErrEmergencyActive, open[i].ID)
			}
		}
		return m.e.db.AddEmergency(emergency, txn)
	})
	if err != nil {
		return nil, err
	}
	m.e.metrics.emergencies.WithLabelValues("activated", a.Tier.String()).Inc()
	m.e.logger.Warn(
		"emergency activated",
		"emergency_id", emergency.ID,
		"tier", a.Tier.Name(),
		"activated_by", a.ActivatedBy,
		"expires_at", emergency.ExpiresAt,
	)
	m.e.publish(
		event.EmergencyActivatedEventType,
		event.EmergencyActivatedEvent{
			EmergencyID: emergency.ID,
			Tier:        emergency.Tier,
			ActivatedBy: emergency.ActivatedBy,
			ExpiresAt:   emergency.ExpiresAt,
		},
	)
	return emergency, nil
}

// ExtendEmergency validates an extension and pushes the expiry of the
// emergency out by the tier's extension duration
func (m *EmergencyManager) ExtendEmergency(
	emergencyID string,
	signatures []KeyholderSignature,
) (*models.ActiveEmergency, error) {
	now := m.e.now()
	var emergency *models.ActiveEmergency
	err := m.e.db.MetadataTxn(true).Do(func(txn *database.Txn) error {
		var err error
		emergency, err = m.getEmergency(emergencyID, txn)
		if err != nil {
			return err
		}
		if err := m.validator.ValidateExtension(emergency, signatures, now); err != nil {
			return err
		}
		expiresAt, ok := CalculateExtensionExpiration(emergency)
		if !ok {
			return ErrExtensionNotAllowed
		}
		emergency.ExpiresAt = expiresAt
		emergency.ExtensionCount++
		return m.e.db.UpdateEmergency(emergency, txn)
	})
	if err != nil {
		return nil, err
	}
	tier := EmergencyTier(emergency.Tier)
	m.e.metrics.emergencies.WithLabelValues("extended", tier.String()).Inc()
	m.e.logger.Warn(
		"emergency extended",
		"emergency_id", emergency.ID,
		"tier", tier.Name(),
		"extension_count", emergency.ExtensionCount,
		"expires_at", emergency.ExpiresAt,
	)
	m.e.publish(
		event.EmergencyExtendedEventType,
		event.EmergencyExtendedEvent{
			EmergencyID:    emergency.ID,
			Tier:           emergency.Tier,
			ExtensionCount: emergency.ExtensionCount,
			ExpiresAt:      emergency.ExpiresAt,
		},
	)
	return emergency, nil
}

func (m *EmergencyManager) GetEmergency(
	emergencyID string,
) (*models.ActiveEmergency, error) {
	return m.getEmergency(emergencyID, nil)
}

func (m *EmergencyManager) getEmergency(
	emergencyID string,
	txn *database.Txn,
) (*models.ActiveEmergency, error) {
	emergency, err := m.e.db.GetEmergency(emergencyID, txn)
	if err != nil {
		if errors.Is(err, models.ErrEmergencyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrEmergencyNotFound, emergencyID)
		}
		return nil, err
	}
	return emergency, nil
}

// CurrentEmergency returns the emergency in force, if any
func (m *EmergencyManager) CurrentEmergency() (*models.ActiveEmergency, error) {
	now := m.e.now()
	open, err := m.e.db.GetOpenEmergencies(nil)
	if err != nil {
		return nil, err
	}
	for i := range open {
		if !IsExpired(&open[i], now) {
			return &open[i], nil
		}
	}
	return nil, ErrEmergencyNotFound
}

// MarkExpiredEmergencies closes every open emergency past its expiry and
// returns how many were closed
func (m *EmergencyManager) MarkExpiredEmergencies() (int, error) {
	now := m.e.now()
	var expired []models.ActiveEmergency
	err := m.e.db.MetadataTxn(true).Do(func(txn *database.Txn) error {
		open, err := m.e.db.GetOpenEmergencies(txn)
		if err != nil {
			return err
		}
		for _, emergency := range open {
			if !IsExpired(&emergency, now) {
				continue
			}
			expiredAt := now
			emergency.ExpiredAt = &expiredAt
			if err := m.e.db.UpdateEmergency(&emergency, txn); err != nil {
				return fmt.Errorf("emergency %s: %w", emergency.ID, err)
			}
			expired = append(expired, emergency)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, emergency := range expired {
		tier := EmergencyTier(emergency.Tier)
		m.e.metrics.emergencies.WithLabelValues("expired", tier.String()).Inc()
		m.e.logger.Info(
			"emergency expired",
			"emergency_id", emergency.ID,
			"tier", tier.Name(),
		)
		m.e.publish(
			event.EmergencyExpiredEventType,
			event.EmergencyExpiredEvent{
				EmergencyID: emergency.ID,
				Tier:        emergency.Tier,
				ExpiredAt:   *emergency.ExpiredAt,
			},
		)
	}
	return len(expired), nil
}
