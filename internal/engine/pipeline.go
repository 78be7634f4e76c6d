package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/engagestack/engagement-intel/internal/extractors"
	"github.com/engagestack/engagement-intel/internal/models"
	"github.com/engagestack/engagement-intel/internal/patterns"
	"github.com/engagestack/engagement-intel/internal/summarize"
)

const (
	defaultHotspotLimit = 5
	noteSampleSize      = 5
)

// Pipeline derives the full dashboard (views plus report) from a snapshot.
type Pipeline struct {
	logger       *slog.Logger
	aggregator   *Aggregator
	miner        *patterns.Miner
	dips         *extractors.DipExtractor
	rules        atomic.Pointer[RuleEngine]
	summarizer   summarize.Summarizer
	hotspotLimit int
	now          func() time.Time
}

// NewPipeline constructs a pipeline. A nil summarizer uses the heuristic
// template and a nil rule engine uses the default rule pack.
func NewPipeline(
	logger *slog.Logger,
	aggregator *Aggregator,
	rulesEngine *RuleEngine,
	summarizer summarize.Summarizer,
	miner *patterns.Miner,
	dips *extractors.DipExtractor,
) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if aggregator == nil {
		var err error
		aggregator, err = NewAggregator(DefaultThresholds())
		if err != nil {
			return nil, err
		}
	}
	if rulesEngine == nil {
		var err error
		rulesEngine, err = NewRuleEngineFromRules(DefaultRules(), logger)
		if err != nil {
			return nil, err
		}
	}
	if summarizer == nil {
		summarizer = summarize.Heuristic{}
	}
	if miner == nil {
		miner = patterns.NewMiner(logger)
	}
	if dips == nil {
		dips = extractors.NewDipExtractor(aggregator.Thresholds().Negative)
	}

	p := &Pipeline{
		logger:       logger,
		aggregator:   aggregator,
		miner:        miner,
		dips:         dips,
		summarizer:   summarizer,
		hotspotLimit: defaultHotspotLimit,
		now:          time.Now,
	}
	p.rules.Store(rulesEngine)
	return p, nil
}

// Aggregator returns the aggregator in use.
func (p *Pipeline) Aggregator() *Aggregator { return p.aggregator }

// Mode names the summarizer backend.
func (p *Pipeline) Mode() string { return p.summarizer.Name() }

// SetRules swaps the active rule engine. Safe for concurrent use with Run.
func (p *Pipeline) SetRules(rules *RuleEngine) {
	if rules == nil {
		return
	}
	p.rules.Store(rules)
}

// Views computes only the aggregate views.
func (p *Pipeline) Views(snap models.Snapshot) models.Views {
	return p.aggregator.Aggregate(snap)
}

// Run computes the views and the recommendation report for snap. Only
// context cancellation fails the run; a failing summarizer falls back to
// the heuristic template.
func (p *Pipeline) Run(ctx context.Context, snap models.Snapshot) (models.Dashboard, error) {
	if err := ctx.Err(); err != nil {
		return models.Dashboard{}, err
	}

	views := p.aggregator.Aggregate(snap)
	hotspots := p.miner.Mine(snap, p.hotspotLimit)
	dips := p.dips.Detect(views.Timeline)

	rec := p.rules.Load().Recommend(RuleInput{Views: views, Hotspots: hotspots, Dips: dips})
	if len(rec.RuleIDs) > 0 {
		p.logger.Debug("rules fired", slog.Any("rules", rec.RuleIDs))
	}

	in := summarize.Input{
		Views:    views,
		Hotspots: hotspots,
		Dips:     dips,
		Notes:    summarize.SampleNotes(snap, noteSampleSize),
	}
	summary, generatedBy := p.summarize(ctx, in)
	if err := ctx.Err(); err != nil {
		return models.Dashboard{}, err
	}

	report := models.Report{
		Summary:      summary,
		Fixes:        nonNil(rec.Fixes),
		TuningParams: nonNil(rec.TuningParams),
		Hotspots:     hotspots,
		Dips:         dips,
		GeneratedBy:  generatedBy,
		GeneratedAt:  p.now().UTC(),
	}
	report.NotebookMarkdown = RenderMarkdown(report)

	return models.Dashboard{Views: views, Report: report}, nil
}

func (p *Pipeline) summarize(ctx context.Context, in summarize.Input) (string, string) {
	summary, err := p.summarizer.Summarize(ctx, in)
	if err == nil && strings.TrimSpace(summary) != "" {
		return summary, p.summarizer.Name()
	}
	if err != nil {
		p.logger.Warn("summarizer failed, using heuristic", slog.String("mode", p.summarizer.Name()), slog.Any("error", err))
	}
	fallback := summarize.Heuristic{}
	summary, _ = fallback.Summarize(ctx, in)
	return summary, fallback.Name()
}

// RenderMarkdown renders the report as the markdown cell committed to the
// notebook store.
func RenderMarkdown(r models.Report) string {
	var b strings.Builder
	b.WriteString("# Analysis Report\n\n")
	b.WriteString(r.Summary)
	b.WriteString("\n")

	if len(r.Fixes) > 0 {
		b.WriteString("\n## Suggested Fixes\n\n")
		for _, fix := range r.Fixes {
			fmt.Fprintf(&b, "- %s\n", fix)
		}
	}
	if len(r.TuningParams) > 0 {
		b.WriteString("\n## Tuning Parameters\n\n")
		for _, param := range r.TuningParams {
			fmt.Fprintf(&b, "- `%s`\n", param)
		}
	}
	if len(r.Hotspots) > 0 {
		b.WriteString("\n## Topic Hotspots\n\n| Topic | Count | Mean sentiment | At risk |\n|---|---|---|---|\n")
		for _, h := range r.Hotspots {
			fmt.Fprintf(&b, "| %s | %d | %.2f | %d |\n", h.Topic, h.Count, h.MeanSentiment, h.AtRiskCount)
		}
	}
	if len(r.Dips) > 0 {
		b.WriteString("\n## Sentiment Dips\n\n")
		for _, d := range r.Dips {
			fmt.Fprintf(&b, "- %s: %.2f\n", d.Date, d.MeanSentiment)
		}
	}
	return b.String()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
