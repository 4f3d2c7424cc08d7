package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxpilot/internal/model"
)

func TestClassifyThresholds(t *testing.T) {
	c, err := NewClassifier(70, 40)
	require.NoError(t, err)

	tests := []struct {
		score float64
		want  model.Tier
	}{
		{100, model.TierHigh},
		{70, model.TierHigh},
		{69.9, model.TierMedium},
		{40, model.TierMedium},
		{39.9, model.TierLow},
		{0, model.TierLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Classify(tt.score), "score %.1f", tt.score)
	}
}

func TestHighScoreWithBoostClassifiesHigh(t *testing.T) {
	e := NewEngine(0, 100, 50)
	c, err := NewClassifier(70, 40)
	require.NoError(t, err)

	final := e.FinalScore(72, 30)
	assert.Equal(t, 100.0, final)
	assert.Equal(t, model.TierHigh, c.Classify(final))

	assert.Equal(t, model.TierMedium, c.Classify(e.FinalScore(40, 0)))
}

func TestNewClassifierRejectsInvertedThresholds(t *testing.T) {
	_, err := NewClassifier(40, 70)
	assert.Error(t, err)

	_, err = NewClassifier(40, 40)
	assert.Error(t, err)
}

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, model.CategoryNow, CategoryFor(model.TierHigh))
	assert.Equal(t, model.CategoryNext, CategoryFor(model.TierMedium))
	assert.Equal(t, model.CategoryLater, CategoryFor(model.TierLow))
}

func TestEnrichmentEligibility(t *testing.T) {
	assert.True(t, model.TierHigh.EnrichmentEligible())
	assert.True(t, model.TierMedium.EnrichmentEligible())
	assert.False(t, model.TierLow.EnrichmentEligible())
}
