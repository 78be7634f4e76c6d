package api

import (
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/engagestack/engagement-intel/internal/models"
)

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("build struct: %v", err)
	}
	return s
}

func TestFromStructSearchRequest(t *testing.T) {
	req := mustStruct(t, map[string]any{"query": "acme", "page": 2, "page_size": 10})
	got, err := FromStructSearchRequest(req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Query != "acme" || got.Page != 2 || got.PageSize != 10 {
		t.Fatalf("unexpected request: %+v", got)
	}

	empty, err := FromStructSearchRequest(&structpb.Struct{})
	if err != nil {
		t.Fatalf("expected empty request to be valid, got %v", err)
	}
	if empty.Query != "" || empty.Page != 0 {
		t.Fatalf("unexpected defaults: %+v", empty)
	}
}

func TestFromStructSearchRequestRejectsBadTypes(t *testing.T) {
	cases := map[string]map[string]any{
		"query not string": {"query": 3},
		"fractional page":  {"page": 1.5},
		"negative size":    {"page_size": -1},
		"page as string":   {"page": "2"},
	}
	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := FromStructSearchRequest(mustStruct(t, fields)); err == nil {
				t.Fatalf("expected error for %v", fields)
			}
		})
	}
}

func TestFromStructToggleRequest(t *testing.T) {
	id, err := FromStructToggleRequest(mustStruct(t, map[string]any{"id": "e-1"}))
	if err != nil || id != "e-1" {
		t.Fatalf("unexpected toggle decode: %q %v", id, err)
	}
	if _, err := FromStructToggleRequest(&structpb.Struct{}); err == nil {
		t.Fatalf("expected missing id to fail")
	}
}

func TestToStructUsesJSONNames(t *testing.T) {
	view := SearchView{
		Query: "acme",
		Count: 1,
		Engagements: []EngagementRow{{
			Engagement: models.Engagement{ID: "1", Customer: "Acme", Date: "2024-01-02", Sentiment: 0.8, Topics: []string{"governance"}},
			Selected:   true,
		}},
	}
	s, err := ToStruct(view)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if s.GetFields()["count"].GetNumberValue() != 1 {
		t.Fatalf("unexpected count field: %v", s.GetFields()["count"])
	}
	rows := s.GetFields()["engagements"].GetListValue().GetValues()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0].GetStructValue().GetFields()
	if row["customer"].GetStringValue() != "Acme" || !row["selected"].GetBoolValue() {
		t.Fatalf("unexpected row: %v", row)
	}
	if row["topics"].GetListValue().GetValues()[0].GetStringValue() != "governance" {
		t.Fatalf("unexpected topics: %v", row["topics"])
	}
}

func TestToStructRejectsNonObjects(t *testing.T) {
	if _, err := ToStruct([]string{"a"}); err == nil {
		t.Fatalf("expected error for array payload")
	}
}

func TestFormatTimestamp(t *testing.T) {
	if FormatTimestamp(time.Time{}) != "" {
		t.Fatalf("expected empty string for zero time")
	}
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := FormatTimestamp(ts); got != "2024-03-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp: %s", got)
	}
}
