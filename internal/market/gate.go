package market

import (
	"fmt"
	"time"

	"github.com/jamoran1356/promptmind/internal/models"
)

// Reason is a machine-readable rule violation code.
type Reason string

const (
	ReasonDistinctParentsRequired Reason = "DISTINCT_PARENTS_REQUIRED"
	ReasonQualityTooLow           Reason = "QUALITY_TOO_LOW"
	ReasonCooldownActive          Reason = "COOLDOWN_ACTIVE"
	ReasonAmountOutOfRange        Reason = "AMOUNT_OUT_OF_RANGE"
	ReasonPriceTooLow             Reason = "PRICE_TOO_LOW"
)

// RuleViolation reports why a trade or breeding request is ineligible.
// It implements error so callers can propagate it directly.
type RuleViolation struct {
	Reason        Reason
	Detail        string
	CooldownUntil time.Time // set only for ReasonCooldownActive
}

func (v *RuleViolation) Error() string {
	if v.Detail != "" {
		return fmt.Sprintf("%s: %s", v.Reason, v.Detail)
	}
	return string(v.Reason)
}

const (
	// MinBreedQuality is the minimum quality score a parent needs.
	MinBreedQuality = 60

	// BreedCooldown is the wait between breedings by the same breeder.
	BreedCooldown = 24 * time.Hour

	MinTradeAmount = 1
	MaxTradeAmount = 100
	MinTradePrice  = 0.01
)

// QualityGate validates trade and breeding eligibility. All checks are pure:
// the caller resolves the prompts and the breeder's last event first.
type QualityGate struct{}

func NewQualityGate() *QualityGate {
	return &QualityGate{}
}

// CanBreed reports whether the two parents may be bred by a breeder whose
// most recent breeding event is lastEvent (nil if none). A nil return means
// eligible.
func (g *QualityGate) CanBreed(parent1, parent2 *models.Prompt, lastEvent *models.BreedingEvent, now time.Time) *RuleViolation {
	if parent1.ID == parent2.ID {
		return &RuleViolation{
			Reason: ReasonDistinctParentsRequired,
			Detail: "cannot breed a prompt with itself",
		}
	}

	if parent1.QualityScore < MinBreedQuality || parent2.QualityScore < MinBreedQuality {
		return &RuleViolation{
			Reason: ReasonQualityTooLow,
			Detail: fmt.Sprintf("parent quality must be >= %d", MinBreedQuality),
		}
	}

	if lastEvent != nil {
		until := lastEvent.CreatedAt.Add(BreedCooldown)
		if now.Before(until) {
			return &RuleViolation{
				Reason:        ReasonCooldownActive,
				Detail:        fmt.Sprintf("breeding cooldown active until %s", until.UTC().Format(time.RFC3339)),
				CooldownUntil: until,
			}
		}
	}

	return nil
}

// CanTrade reports whether amount tokens of the prompt may be traded at the
// given unit price. A nil return means eligible.
func (g *QualityGate) CanTrade(prompt *models.Prompt, amount int, price float64) *RuleViolation {
	if amount < MinTradeAmount || amount > MaxTradeAmount {
		return &RuleViolation{
			Reason: ReasonAmountOutOfRange,
			Detail: fmt.Sprintf("amount must be between %d and %d", MinTradeAmount, MaxTradeAmount),
		}
	}

	if price < MinTradePrice {
		return &RuleViolation{
			Reason: ReasonPriceTooLow,
			Detail: fmt.Sprintf("price must be at least %.2f", MinTradePrice),
		}
	}

	return nil
}
