package models

// SentimentClass labels a sentiment bucket.
type SentimentClass string

const (
	SentimentPositive SentimentClass = "positive"
	SentimentNeutral  SentimentClass = "neutral"
	SentimentNegative SentimentClass = "negative"
)

// SentimentClasses lists the classes in display order.
var SentimentClasses = []SentimentClass{SentimentPositive, SentimentNeutral, SentimentNegative}

// KPISummary holds the headline figures for a snapshot.
type KPISummary struct {
	TotalEngagements int     `json:"total_engagements"`
	AvgSentiment     float64 `json:"avg_sentiment"`
	PositiveCount    int     `json:"positive_count"`
	AtRiskCount      int     `json:"at_risk_count"`
	// SentimentDelta is AvgSentiment minus the configured neutral baseline.
	SentimentDelta float64 `json:"sentiment_delta"`
}

// PositiveShare returns the positive fraction in [0,1], 0 when empty.
func (k KPISummary) PositiveShare() float64 {
	return share(k.PositiveCount, k.TotalEngagements)
}

// AtRiskShare returns the at-risk fraction in [0,1], 0 when empty.
func (k KPISummary) AtRiskShare() float64 {
	return share(k.AtRiskCount, k.TotalEngagements)
}

// SentimentDistribution counts engagements per sentiment class.
type SentimentDistribution struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// Count returns the count for class.
func (d SentimentDistribution) Count(class SentimentClass) int {
	switch class {
	case SentimentPositive:
		return d.Positive
	case SentimentNegative:
		return d.Negative
	case SentimentNeutral:
		return d.Neutral
	default:
		return 0
	}
}

// Total returns the sum over all classes.
func (d SentimentDistribution) Total() int {
	return d.Positive + d.Neutral + d.Negative
}

// Share returns the fraction of engagements in class, 0 when empty.
func (d SentimentDistribution) Share(class SentimentClass) float64 {
	return share(d.Count(class), d.Total())
}

// Map returns the distribution keyed by class label.
func (d SentimentDistribution) Map() map[string]int {
	return map[string]int{
		string(SentimentPositive): d.Positive,
		string(SentimentNeutral):  d.Neutral,
		string(SentimentNegative): d.Negative,
	}
}

// TopicCount is one row of the topic frequency table.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// TopicFrequencyTable is ordered by descending count, then ascending topic.
type TopicFrequencyTable []TopicCount

// Top returns at most n leading rows. n <= 0 returns the whole table.
func (t TopicFrequencyTable) Top(n int) TopicFrequencyTable {
	if n <= 0 || n >= len(t) {
		return t
	}
	return t[:n]
}

// TimelinePoint is the mean sentiment of one calendar day.
type TimelinePoint struct {
	Date          Date    `json:"date"`
	MeanSentiment float64 `json:"sentiment"`
	Count         int     `json:"count"`
}

// SentimentTimeline is ordered ascending by date.
type SentimentTimeline []TimelinePoint

// Views bundles the four aggregate views derived from one snapshot.
type Views struct {
	KPIs         KPISummary            `json:"kpis"`
	Distribution SentimentDistribution `json:"sentiment_distribution"`
	Topics       TopicFrequencyTable   `json:"top_topics"`
	Timeline     SentimentTimeline     `json:"sentiment_timeline"`
}

// ServerAggregates are the precomputed views a backend may ship alongside
// raw engagements. They are informational only.
type ServerAggregates struct {
	KPIs         map[string]float64    `json:"kpis"`
	Distribution map[string]int        `json:"sentiment_distribution"`
	TopTopics    map[string]int        `json:"top_topics"`
	Timeline     []ServerTimelinePoint `json:"sentiment_timeline"`
}

// ServerTimelinePoint is one day of a server-supplied sentiment timeline.
type ServerTimelinePoint struct {
	Date      string  `json:"date"`
	Sentiment float64 `json:"sentiment"`
}

func share(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}
