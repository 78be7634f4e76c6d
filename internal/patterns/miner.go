package patterns

import (
	"log/slog"
	"sort"

	"github.com/engagestack/engagement-intel/internal/models"
)

// Miner mines per-topic hotspots from a snapshot.
type Miner struct {
	logger *slog.Logger
}

// NewMiner constructs a Miner.
func NewMiner(logger *slog.Logger) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{logger: logger}
}

// Mine aggregates count, mean sentiment, at-risk count and recency per
// topic. Results are ordered by prevalence, then topic; limit <= 0 keeps all.
func (m *Miner) Mine(snap models.Snapshot, limit int) []models.TopicHotspot {
	if snap.Len() == 0 {
		return nil
	}

	topicStats := make(map[string]*topicAggregate)
	for _, e := range snap.All() {
		seen := make(map[string]struct{}, len(e.Topics))
		for _, topic := range e.Topics {
			if _, ok := seen[topic]; ok {
				continue
			}
			seen[topic] = struct{}{}

			agg := ensureAggregate(topicStats, topic)
			agg.count++
			agg.sentimentSum += e.Sentiment
			if e.AtRisk {
				agg.atRisk++
			}
			if agg.lastSeen.Before(e.Date) {
				agg.lastSeen = e.Date
			}
		}
	}

	total := float64(snap.Len())
	hotspots := make([]models.TopicHotspot, 0, len(topicStats))
	for topic, agg := range topicStats {
		hotspots = append(hotspots, models.TopicHotspot{
			Topic:         topic,
			Count:         agg.count,
			Prevalence:    float64(agg.count) / total,
			MeanSentiment: agg.sentimentSum / float64(agg.count),
			AtRiskCount:   agg.atRisk,
			LastSeen:      agg.lastSeen,
		})
	}

	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Prevalence != hotspots[j].Prevalence {
			return hotspots[i].Prevalence > hotspots[j].Prevalence
		}
		return hotspots[i].Topic < hotspots[j].Topic
	})
	if limit > 0 && len(hotspots) > limit {
		hotspots = hotspots[:limit]
	}

	m.logger.Debug("mined topic hotspots", slog.Int("topics", len(topicStats)), slog.Int("returned", len(hotspots)))
	return hotspots
}

type topicAggregate struct {
	count        int
	sentimentSum float64
	atRisk       int
	lastSeen     models.Date
}

func ensureAggregate(m map[string]*topicAggregate, topic string) *topicAggregate {
	if topic == "" {
		topic = "unknown"
	}
	agg, ok := m[topic]
	if !ok {
		agg = &topicAggregate{}
		m[topic] = agg
	}
	return agg
}
