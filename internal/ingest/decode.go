// Package ingest turns raw engagement records into a validated snapshot.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/engagestack/engagement-intel/internal/models"
)

// Midpoint scores for records that carry a sentiment class without a score.
var classMidpoints = map[string]float64{
	string(models.SentimentPositive): 0.7,
	string(models.SentimentNeutral):  0.5,
	string(models.SentimentNegative): 0.3,
}

const statusAtRisk = "at-risk"

// Result is the outcome of decoding one batch of records.
type Result struct {
	Snapshot models.Snapshot
	Dropped  []*models.InvalidRecordError
}

// Decoder validates and normalises engagement records.
type Decoder struct {
	schema *jsonschema.Schema
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewDecoder compiles the record schema.
func NewDecoder(logger *slog.Logger) (*Decoder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(recordSchemaURL, strings.NewReader(recordSchema)); err != nil {
		return nil, fmt.Errorf("load record schema: %w", err)
	}
	schema, err := c.Compile(recordSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	return &Decoder{schema: schema, logger: logger, now: time.Now, newID: uuid.NewString}, nil
}

// Decode builds a snapshot from records. Invalid records are dropped and
// reported in Result.Dropped; decoding never fails as a whole.
func (d *Decoder) Decode(source string, records []json.RawMessage) Result {
	engagements := make([]models.Engagement, 0, len(records))
	var dropped []*models.InvalidRecordError
	seen := make(map[string]struct{}, len(records))

	for i, raw := range records {
		e, invalid := d.decodeRecord(i, raw)
		if invalid == nil {
			if _, dup := seen[e.ID]; dup {
				invalid = &models.InvalidRecordError{Index: i, ID: e.ID, Kind: models.InvalidDuplicate, Reason: "duplicate id"}
			}
		}
		if invalid != nil {
			d.logger.Debug("dropping engagement record", slog.Int("index", i), slog.String("id", invalid.ID), slog.String("reason", invalid.Reason))
			dropped = append(dropped, invalid)
			continue
		}
		seen[e.ID] = struct{}{}
		engagements = append(engagements, e)
	}

	if len(dropped) > 0 {
		d.logger.Warn("dropped invalid engagement records", slog.String("source", source), slog.Int("dropped", len(dropped)), slog.Int("kept", len(engagements)))
	}

	return Result{
		Snapshot: models.NewSnapshot(d.newID(), source, d.now().UTC(), engagements),
		Dropped:  dropped,
	}
}

func (d *Decoder) decodeRecord(index int, raw json.RawMessage) (models.Engagement, *models.InvalidRecordError) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return models.Engagement{}, &models.InvalidRecordError{Index: index, Kind: models.InvalidMalformed, Reason: err.Error()}
	}
	obj, _ := doc.(map[string]any)
	id := stringID(obj["id"])

	if err := d.schema.Validate(doc); err != nil {
		return models.Engagement{}, &models.InvalidRecordError{Index: index, ID: id, Kind: models.InvalidSchema, Reason: schemaReason(err)}
	}

	date, err := models.ParseDate(obj["date"].(string))
	if err != nil {
		return models.Engagement{}, &models.InvalidRecordError{Index: index, ID: id, Kind: models.InvalidDate, Reason: err.Error()}
	}

	if id == "" {
		return models.Engagement{}, &models.InvalidRecordError{Index: index, Kind: models.InvalidSchema, Reason: "/id: blank"}
	}

	customer := strings.TrimSpace(obj["customer"].(string))
	if customer == "" {
		return models.Engagement{}, &models.InvalidRecordError{Index: index, ID: id, Kind: models.InvalidSchema, Reason: "/customer: blank"}
	}

	status := stringField(obj, "status")
	risk, _ := obj["risk"].(bool)

	return models.Engagement{
		ID:        id,
		Customer:  customer,
		Date:      date,
		Notes:     stringField(obj, "notes"),
		Feedback:  stringField(obj, "feedback"),
		Status:    status,
		Sentiment: sentimentScore(obj["sentiment"]),
		Topics:    topicLabels(obj),
		AtRisk:    risk || strings.EqualFold(strings.TrimSpace(status), statusAtRisk),
	}, nil
}

func stringID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// sentimentScore assumes the value already passed schema validation.
func sentimentScore(v any) float64 {
	switch s := v.(type) {
	case json.Number:
		f, _ := s.Float64()
		return f
	case map[string]any:
		if score, ok := s["sentiment_score"].(json.Number); ok {
			f, _ := score.Float64()
			return f
		}
		class, _ := s["sentiment_type"].(string)
		return classMidpoints[strings.ToLower(class)]
	default:
		return 0
	}
}

func topicLabels(obj map[string]any) []string {
	var raw []string
	for _, key := range []string{"topics", "technologies"} {
		if list, ok := obj[key].([]any); ok {
			for _, item := range list {
				if s, ok := item.(string); ok {
					raw = append(raw, s)
				}
			}
		}
	}
	switch t := obj["topic"].(type) {
	case string:
		raw = append(raw, t)
	case map[string]any:
		if s, ok := t["topic"].(string); ok {
			raw = append(raw, s)
		}
	}
	return NormalizeTopics(raw)
}

// NormalizeTopics lowercases, trims and de-duplicates labels, returning them
// sorted. Empty labels are dropped.
func NormalizeTopics(labels []string) []string {
	lower := cases.Lower(language.Und)
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		l := strings.TrimSpace(lower.String(label))
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func schemaReason(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	loc := leaf.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, leaf.Message)
}
