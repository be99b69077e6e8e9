package market

import (
	"math"

	"github.com/jamoran1356/promptmind/internal/models"
)

// Per-trade price drift applied to the prompt token price.
const (
	buyPriceFactor  = 1.01
	sellPriceFactor = 0.99
)

// InitialPrice derives a token price from a quality score: score/10 rounded
// to cents. A score of 73 prices at 7.30.
func InitialPrice(qualityScore int) float64 {
	return round2(float64(qualityScore) / 10)
}

// ChildQuality is the rounded average of the two parent scores.
func ChildQuality(parent1Score, parent2Score int) int {
	return int(math.Round(float64(parent1Score+parent2Score) / 2))
}

// ChildPrice prices a bred child from its inherited quality, the same law
// used for freshly created prompts.
func ChildPrice(childQuality int) float64 {
	return InitialPrice(childQuality)
}

// PriceFactor returns the multiplier a trade applies to the token price.
// Storage layers use it inside their atomic update expression.
func PriceFactor(action models.TradeAction) float64 {
	switch action {
	case models.TradeActionBuy:
		return buyPriceFactor
	case models.TradeActionSell:
		return sellPriceFactor
	default:
		return 1
	}
}

// AdjustOnTrade moves the price with demand: up 1% on a buy, down 1% on a
// sell. The result never goes below zero.
func AdjustOnTrade(currentPrice float64, action models.TradeAction) float64 {
	adjusted := currentPrice * PriceFactor(action)
	if adjusted < 0 {
		return 0
	}
	return adjusted
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
