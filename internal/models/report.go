package models

import "time"

// TopicHotspot summarises how a topic behaves across a snapshot.
type TopicHotspot struct {
	Topic         string  `json:"topic"`
	Count         int     `json:"count"`
	Prevalence    float64 `json:"prevalence"`
	MeanSentiment float64 `json:"mean_sentiment"`
	AtRiskCount   int     `json:"at_risk_count"`
	LastSeen      Date    `json:"last_seen"`
}

// SentimentDip flags a day whose mean sentiment sits well below the norm.
type SentimentDip struct {
	Date          Date    `json:"date"`
	MeanSentiment float64 `json:"sentiment"`
	Score         float64 `json:"score"`
}

// Report is the narrative recommendation report shown next to the charts.
type Report struct {
	Summary          string         `json:"summary"`
	Fixes            []string       `json:"fixes"`
	TuningParams     []string       `json:"tuning_params"`
	Hotspots         []TopicHotspot `json:"hotspots"`
	Dips             []SentimentDip `json:"dips"`
	NotebookMarkdown string         `json:"notebook_markdown"`
	GeneratedBy      string         `json:"generated_by"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// Dashboard is everything derived from one snapshot.
type Dashboard struct {
	Views  Views  `json:"views"`
	Report Report `json:"report"`
}

// Health is the backend health probe result. Mode names the inference
// backend that produced the narrative summary; it is display-only.
type Health struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
}

// CommitResult is the notebook store's answer to a commit.
type CommitResult struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}
