package scoring

import (
	"fmt"

	"inboxpilot/internal/model"
)

// Classifier maps a final score to a processing tier. The two
// thresholds partition the score range: >= high is high, >= medium is
// medium, everything below is low.
type Classifier struct {
	highThreshold   float64
	mediumThreshold float64
}

func NewClassifier(high, medium float64) (*Classifier, error) {
	if medium >= high {
		return nil, fmt.Errorf("medium threshold %.1f must be below high threshold %.1f", medium, high)
	}
	return &Classifier{highThreshold: high, mediumThreshold: medium}, nil
}

func (c *Classifier) Classify(finalScore float64) model.Tier {
	switch {
	case finalScore >= c.highThreshold:
		return model.TierHigh
	case finalScore >= c.mediumThreshold:
		return model.TierMedium
	default:
		return model.TierLow
	}
}

// CategoryFor maps a tier to the item's semantic bucket.
func CategoryFor(tier model.Tier) string {
	switch tier {
	case model.TierHigh:
		return model.CategoryNow
	case model.TierMedium:
		return model.CategoryNext
	default:
		return model.CategoryLater
	}
}
