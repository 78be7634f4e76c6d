// Package summarize produces the narrative summary shown in the report.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/engagestack/engagement-intel/internal/models"
)

// Input is everything a summarizer may draw on.
type Input struct {
	Views    models.Views
	Hotspots []models.TopicHotspot
	Dips     []models.SentimentDip
	// Notes holds a handful of recent engagement notes for context.
	Notes []string
}

// Summarizer writes a short narrative summary. Name identifies the backend
// and is reported as the health mode.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, in Input) (string, error)
}

// ModeHeuristic names the built-in template summarizer.
const ModeHeuristic = "heuristic"

// Heuristic is the deterministic template summarizer used when no model
// backend is configured or the backend fails.
type Heuristic struct{}

// Name implements Summarizer.
func (Heuristic) Name() string { return ModeHeuristic }

// Summarize implements Summarizer.
func (Heuristic) Summarize(_ context.Context, in Input) (string, error) {
	kpis := in.Views.KPIs
	topTopic := "None"
	if len(in.Views.Topics) > 0 {
		topTopic = in.Views.Topics[0].Topic
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyzed %d engagements. Top topic: %s. Average sentiment: %.2f.",
		kpis.TotalEngagements, topTopic, kpis.AvgSentiment)
	if kpis.AtRiskCount > 0 {
		fmt.Fprintf(&b, " %d engagement(s) are at risk.", kpis.AtRiskCount)
	}
	if len(in.Dips) > 0 {
		dates := make([]string, 0, len(in.Dips))
		for _, d := range in.Dips {
			dates = append(dates, string(d.Date))
		}
		fmt.Fprintf(&b, " Sentiment dipped on %s.", strings.Join(dates, ", "))
	}
	return b.String(), nil
}

// SampleNotes returns up to n non-empty notes in snapshot order.
func SampleNotes(snap models.Snapshot, n int) []string {
	notes := make([]string, 0, n)
	for _, e := range snap.All() {
		if len(notes) >= n {
			break
		}
		if strings.TrimSpace(e.Notes) != "" {
			notes = append(notes, e.Notes)
		}
	}
	return notes
}
