package engine

import (
	"fmt"
	"sort"

	"github.com/engagestack/engagement-intel/internal/models"
)

// Aggregator derives the dashboard views from a snapshot. It holds only the
// classification policy and is safe for concurrent use.
type Aggregator struct {
	thresholds Thresholds
}

// NewAggregator validates thresholds and returns an Aggregator.
func NewAggregator(thresholds Thresholds) (*Aggregator, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("aggregator thresholds: %w", err)
	}
	return &Aggregator{thresholds: thresholds}, nil
}

// Thresholds returns the configured policy.
func (a *Aggregator) Thresholds() Thresholds { return a.thresholds }

// Aggregate computes all four views once for snap.
func (a *Aggregator) Aggregate(snap models.Snapshot) models.Views {
	return models.Views{
		KPIs:         ComputeKPISummary(snap, a.thresholds),
		Distribution: ComputeSentimentDistribution(snap, a.thresholds),
		Topics:       ComputeTopicFrequency(snap),
		Timeline:     ComputeSentimentTimeline(snap),
	}
}

// ComputeKPISummary returns the headline figures. An empty snapshot yields
// zeros, including AvgSentiment.
func ComputeKPISummary(snap models.Snapshot, t Thresholds) models.KPISummary {
	var kpis models.KPISummary
	var sum float64
	for _, e := range snap.All() {
		kpis.TotalEngagements++
		sum += e.Sentiment
		if t.Classify(e.Sentiment) == models.SentimentPositive {
			kpis.PositiveCount++
		}
		if e.AtRisk {
			kpis.AtRiskCount++
		}
	}
	if kpis.TotalEngagements == 0 {
		return kpis
	}
	kpis.AvgSentiment = sum / float64(kpis.TotalEngagements)
	kpis.SentimentDelta = kpis.AvgSentiment - t.Baseline
	return kpis
}

// ComputeSentimentDistribution buckets every engagement into one class.
func ComputeSentimentDistribution(snap models.Snapshot, t Thresholds) models.SentimentDistribution {
	var dist models.SentimentDistribution
	for _, e := range snap.All() {
		switch t.Classify(e.Sentiment) {
		case models.SentimentPositive:
			dist.Positive++
		case models.SentimentNegative:
			dist.Negative++
		default:
			dist.Neutral++
		}
	}
	return dist
}

// ComputeTopicFrequency counts engagements per topic. A topic repeated on
// one engagement counts once.
func ComputeTopicFrequency(snap models.Snapshot) models.TopicFrequencyTable {
	counts := make(map[string]int)
	for _, e := range snap.All() {
		seen := make(map[string]struct{}, len(e.Topics))
		for _, topic := range e.Topics {
			if _, ok := seen[topic]; ok {
				continue
			}
			seen[topic] = struct{}{}
			counts[topic]++
		}
	}

	table := make(models.TopicFrequencyTable, 0, len(counts))
	for topic, count := range counts {
		table = append(table, models.TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(table, func(i, j int) bool {
		if table[i].Count != table[j].Count {
			return table[i].Count > table[j].Count
		}
		return table[i].Topic < table[j].Topic
	})
	return table
}

// ComputeSentimentTimeline averages sentiment per calendar day, ascending.
func ComputeSentimentTimeline(snap models.Snapshot) models.SentimentTimeline {
	type bucket struct {
		sum   float64
		count int
	}
	days := make(map[models.Date]*bucket)
	for _, e := range snap.All() {
		b, ok := days[e.Date]
		if !ok {
			b = &bucket{}
			days[e.Date] = b
		}
		b.sum += e.Sentiment
		b.count++
	}

	timeline := make(models.SentimentTimeline, 0, len(days))
	for date, b := range days {
		timeline = append(timeline, models.TimelinePoint{
			Date:          date,
			MeanSentiment: b.sum / float64(b.count),
			Count:         b.count,
		})
	}
	sort.Slice(timeline, func(i, j int) bool {
		return timeline[i].Date.Before(timeline[j].Date)
	})
	return timeline
}
