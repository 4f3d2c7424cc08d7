package model

import "time"

type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// EnrichmentEligible reports whether items in this tier may receive
// AI enrichment jobs. Low tier items are only touched in bulk by the
// weekly digest.
func (t Tier) EnrichmentEligible() bool {
	return t == TierHigh || t == TierMedium
}

// Score is the active score for one (user, item) pair. FinalScore is a
// pure function of RawScore plus the adjustment set active at scoring
// time, clamped into the configured range.
type Score struct {
	ID         int
	UserID     int
	ItemID     int
	RawScore   float64
	FinalScore float64
	Tier       Tier
	Factors    map[string]float64 // factor name -> contribution, for explainability
	ScoredAt   time.Time
}
