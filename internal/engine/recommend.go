package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"github.com/engagestack/engagement-intel/internal/models"
)

// RuleEngine turns aggregate views into suggested fixes and tuning
// parameters using a YAML rule pack.
type RuleEngine struct {
	rules  []compiledRule
	logger *slog.Logger
}

// Rule represents a single recommendation rule. A rule fires when every
// populated criterion in Match holds and, if set, the When expression is true.
type Rule struct {
	ID           string    `yaml:"id"`
	When         string    `yaml:"when"`
	Match        RuleMatch `yaml:"match"`
	Fixes        []string  `yaml:"fixes"`
	TuningParams []string  `yaml:"tuning_params"`
}

// RuleMatch defines optional attributes for rule matching.
type RuleMatch struct {
	Topics          []string `yaml:"topics"`
	MaxAvgSentiment *float64 `yaml:"max_avg_sentiment"`
	MinAtRisk       int      `yaml:"min_at_risk"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

// RuleInput is what rules are evaluated against.
type RuleInput struct {
	Views    models.Views
	Hotspots []models.TopicHotspot
	Dips     []models.SentimentDip
}

// Recommendation is the merged output of all firing rules.
type Recommendation struct {
	RuleIDs      []string
	Fixes        []string
	TuningParams []string
}

type compiledRule struct {
	Rule
	program cel.Program
}

// NewRuleEngine loads rules from path. An empty or missing path falls back
// to DefaultRules.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if path == "" {
		return NewRuleEngineFromRules(DefaultRules(), logger)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewRuleEngineFromRules(DefaultRules(), logger)
		}
		return nil, err
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rule pack %s: %w", path, err)
	}
	return NewRuleEngineFromRules(cfg.Rules, logger)
}

// NewRuleEngineFromRules compiles the When expression of every rule.
func NewRuleEngineFromRules(rules []Rule, logger *slog.Logger) (*RuleEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	env, err := ruleEnv()
	if err != nil {
		return nil, err
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		cr := compiledRule{Rule: rule}
		if strings.TrimSpace(rule.When) != "" {
			ast, iss := env.Compile(rule.When)
			if iss != nil && iss.Err() != nil {
				return nil, fmt.Errorf("rule %s: compile when: %w", rule.ID, iss.Err())
			}
			prg, err := env.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("rule %s: program: %w", rule.ID, err)
			}
			cr.program = prg
		}
		compiled = append(compiled, cr)
	}
	return &RuleEngine{rules: compiled, logger: logger}, nil
}

func ruleEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("kpis", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("distribution", cel.MapType(cel.StringType, cel.IntType)),
		cel.Variable("topics", cel.ListType(cel.StringType)),
		cel.Variable("hotspots", cel.ListType(cel.MapType(cel.StringType, cel.DynType))),
		cel.Variable("dips", cel.ListType(cel.MapType(cel.StringType, cel.DynType))),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return env, nil
}

// Len returns the number of loaded rules.
func (e *RuleEngine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

// Recommend evaluates every rule against in. Rules whose expression fails
// to evaluate are skipped and logged.
func (e *RuleEngine) Recommend(in RuleInput) Recommendation {
	var rec Recommendation
	if e == nil {
		return rec
	}

	activation := ruleActivation(in)
	for _, rule := range e.rules {
		if !rule.matches(in) {
			continue
		}
		if rule.program != nil {
			out, _, err := rule.program.Eval(activation)
			if err != nil {
				e.logger.Warn("rule evaluation failed", slog.String("rule", rule.ID), slog.Any("error", err))
				continue
			}
			fired, ok := out.Value().(bool)
			if !ok {
				e.logger.Warn("rule did not evaluate to bool", slog.String("rule", rule.ID))
				continue
			}
			if !fired {
				continue
			}
		}
		rec.RuleIDs = append(rec.RuleIDs, rule.ID)
		rec.Fixes = appendUnique(rec.Fixes, rule.Fixes...)
		rec.TuningParams = appendUnique(rec.TuningParams, rule.TuningParams...)
	}
	return rec
}

func (r compiledRule) matches(in RuleInput) bool {
	m := r.Match
	if len(m.Topics) > 0 && !hotspotsContain(m.Topics, in.Hotspots) {
		return false
	}
	if m.MaxAvgSentiment != nil && (in.Views.KPIs.TotalEngagements == 0 || in.Views.KPIs.AvgSentiment > *m.MaxAvgSentiment) {
		return false
	}
	if m.MinAtRisk > 0 && in.Views.KPIs.AtRiskCount < m.MinAtRisk {
		return false
	}
	return true
}

func ruleActivation(in RuleInput) map[string]any {
	kpis := in.Views.KPIs
	topics := make([]string, 0, len(in.Views.Topics))
	for _, row := range in.Views.Topics {
		topics = append(topics, row.Topic)
	}
	hotspots := make([]any, 0, len(in.Hotspots))
	for _, h := range in.Hotspots {
		hotspots = append(hotspots, map[string]any{
			"topic":          h.Topic,
			"count":          int64(h.Count),
			"prevalence":     h.Prevalence,
			"mean_sentiment": h.MeanSentiment,
			"at_risk_count":  int64(h.AtRiskCount),
			"last_seen":      string(h.LastSeen),
		})
	}
	dips := make([]any, 0, len(in.Dips))
	for _, d := range in.Dips {
		dips = append(dips, map[string]any{
			"date":      string(d.Date),
			"sentiment": d.MeanSentiment,
			"score":     d.Score,
		})
	}
	return map[string]any{
		"kpis": map[string]any{
			"total_engagements": int64(kpis.TotalEngagements),
			"avg_sentiment":     kpis.AvgSentiment,
			"positive_count":    int64(kpis.PositiveCount),
			"at_risk_count":     int64(kpis.AtRiskCount),
			"sentiment_delta":   kpis.SentimentDelta,
		},
		"distribution": map[string]any{
			string(models.SentimentPositive): int64(in.Views.Distribution.Positive),
			string(models.SentimentNeutral):  int64(in.Views.Distribution.Neutral),
			string(models.SentimentNegative): int64(in.Views.Distribution.Negative),
		},
		"topics":   topics,
		"hotspots": hotspots,
		"dips":     dips,
	}
}

// DefaultRules is the built-in rule pack used when none is configured.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:    "governance",
			When:  `topics.exists(t, t in ["governance", "unity catalog"])`,
			Fixes: []string{"Review Unity Catalog permissions for Governance issues."},
		},
		{
			ID:           "performance",
			When:         `topics.exists(t, t in ["performance", "photon", "pyspark"])`,
			Fixes:        []string{"Optimize shuffle partitions for Performance issues."},
			TuningParams: []string{"spark.sql.shuffle.partitions"},
		},
		{
			ID:    "streaming",
			When:  `topics.exists(t, t in ["streaming", "structured streaming", "auto loader"])`,
			Fixes: []string{"Use Auto Loader for Streaming ingestion."},
		},
		{
			ID:           "delta-writes",
			When:         `topics.exists(t, t in ["delta lake", "migration"])`,
			TuningParams: []string{"spark.databricks.delta.optimizeWrite.enabled"},
		},
		{
			ID:    "at-risk",
			Match: RuleMatch{MinAtRisk: 1},
			Fixes: []string{"Address at-risk engagements immediately."},
		},
		{
			ID:    "below-baseline",
			When:  `kpis.total_engagements > 0 && kpis.sentiment_delta < 0.0`,
			Fixes: []string{"Schedule follow-ups with customers trending below the neutral baseline."},
		},
		{
			ID:    "sentiment-dips",
			When:  `size(dips) > 0`,
			Fixes: []string{"Review engagements logged on days with sentiment dips."},
		},
	}
}

func hotspotsContain(topics []string, hotspots []models.TopicHotspot) bool {
	for _, h := range hotspots {
		for _, topic := range topics {
			if topic != "" && strings.EqualFold(topic, h.Topic) {
				return true
			}
		}
	}
	return false
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec] = struct{}{}
	}
	for _, item := range additions {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		existing = append(existing, item)
		seen[item] = struct{}{}
	}
	return existing
}
