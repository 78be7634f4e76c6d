package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/engagestack/engagement-intel/internal/models"
)

// Discrepancy records a server-supplied aggregate that disagrees with the
// locally computed value.
type Discrepancy struct {
	Field  string
	Local  float64
	Server float64
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("%s: local=%v server=%v", d.Field, d.Local, d.Server)
}

const reconcileTolerance = 0.01

// Reconcile compares the local views with the aggregates a backend shipped.
// Local values stay authoritative; the result only reports drift. Fields the
// server omitted are skipped.
func Reconcile(local models.Views, server models.ServerAggregates) []Discrepancy {
	var out []Discrepancy
	check := func(field string, l, s float64) {
		if math.Abs(l-s) > reconcileTolerance {
			out = append(out, Discrepancy{Field: field, Local: l, Server: s})
		}
	}

	kpis := map[string]float64{
		"total_engagements": float64(local.KPIs.TotalEngagements),
		"avg_sentiment":     local.KPIs.AvgSentiment,
		"positive_count":    float64(local.KPIs.PositiveCount),
		"at_risk_count":     float64(local.KPIs.AtRiskCount),
	}
	for _, field := range []string{"total_engagements", "avg_sentiment", "positive_count", "at_risk_count"} {
		if s, ok := server.KPIs[field]; ok {
			check("kpis."+field, kpis[field], s)
		}
	}

	for _, class := range models.SentimentClasses {
		if s, ok := server.Distribution[string(class)]; ok {
			check("sentiment_distribution."+string(class), float64(local.Distribution.Count(class)), float64(s))
		}
	}

	localTopics := make(map[string]int, len(local.Topics))
	for _, row := range local.Topics {
		localTopics[row.Topic] = row.Count
	}
	for topic, s := range server.TopTopics {
		check("top_topics."+topic, float64(localTopics[topic]), float64(s))
	}

	localDays := make(map[models.Date]float64, len(local.Timeline))
	for _, p := range local.Timeline {
		localDays[p.Date] = p.MeanSentiment
	}
	for _, p := range server.Timeline {
		date, err := models.ParseDate(p.Date)
		if err != nil {
			continue
		}
		if l, ok := localDays[date]; ok {
			check("sentiment_timeline."+string(date), l, p.Sentiment)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// ServerAggregatesOf renders views in the backend's precomputed shape.
func ServerAggregatesOf(views models.Views) models.ServerAggregates {
	agg := models.ServerAggregates{
		KPIs: map[string]float64{
			"total_engagements": float64(views.KPIs.TotalEngagements),
			"avg_sentiment":     views.KPIs.AvgSentiment,
			"positive_count":    float64(views.KPIs.PositiveCount),
			"at_risk_count":     float64(views.KPIs.AtRiskCount),
		},
		Distribution: views.Distribution.Map(),
		TopTopics:    make(map[string]int, len(views.Topics)),
		Timeline:     make([]models.ServerTimelinePoint, 0, len(views.Timeline)),
	}
	for _, row := range views.Topics {
		agg.TopTopics[row.Topic] = row.Count
	}
	for _, p := range views.Timeline {
		agg.Timeline = append(agg.Timeline, models.ServerTimelinePoint{Date: p.Date.String(), Sentiment: p.MeanSentiment})
	}
	return agg
}
