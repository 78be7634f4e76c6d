package extractors

import (
	"math"
	"sort"

	"github.com/engagestack/engagement-intel/internal/models"
)

// DipExtractor spots days whose mean sentiment falls well below the rest
// of the timeline.
type DipExtractor struct {
	negativeThreshold float64
	minScore          float64
}

// NewDipExtractor constructs a detector. Days at or below negativeThreshold
// that also sit under the timeline median are always reported.
func NewDipExtractor(negativeThreshold float64) *DipExtractor {
	return &DipExtractor{negativeThreshold: negativeThreshold, minScore: 3}
}

// Detect scores each day by its distance below the median in units of the
// mean absolute deviation. Results keep timeline order.
func (e *DipExtractor) Detect(timeline models.SentimentTimeline) []models.SentimentDip {
	if len(timeline) == 0 {
		return nil
	}

	means := make([]float64, 0, len(timeline))
	for _, p := range timeline {
		means = append(means, p.MeanSentiment)
	}

	median := percentile(means, 0.5)
	mad := meanAbsoluteDeviation(means, median)
	if mad == 0 {
		mad = 1
	}

	dips := make([]models.SentimentDip, 0)
	for _, p := range timeline {
		score := (median - p.MeanSentiment) / mad
		switch {
		case score >= e.minScore:
			dips = append(dips, models.SentimentDip{Date: p.Date, MeanSentiment: p.MeanSentiment, Score: score})
		case p.MeanSentiment <= e.negativeThreshold && p.MeanSentiment < median:
			dips = append(dips, models.SentimentDip{Date: p.Date, MeanSentiment: p.MeanSentiment, Score: math.Max(score, e.minScore)})
		}
	}
	return dips
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(math.Round(p * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func meanAbsoluteDeviation(values []float64, center float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Abs(v - center)
	}
	return sum / float64(len(values))
}
