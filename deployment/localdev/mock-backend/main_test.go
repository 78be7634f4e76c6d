package main

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/engagestack/engagement-intel/internal/cache"
	"github.com/engagestack/engagement-intel/internal/repo"
)

const fixture = `{"engagements": [
  {"id": "ENG-001", "customer": "HealthPlus", "date": "2024-01-01", "sentiment": 0.8, "technologies": ["Unity Catalog"]},
  {"id": "ENG-002", "customer": "MediaStream", "date": "2024-01-02", "sentiment": {"sentiment_type": "negative"}, "status": "at-risk"}
], "weekly_summary": "Two engagements this week."}`

func newTestBackend(t *testing.T, failCommit bool) *repo.DashboardClient {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.json")
	if err := os.WriteFile(path, []byte(fixture), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	b, err := newBackend(path, failCommit)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	srv := httptest.NewServer(b.routes())
	t.Cleanup(srv.Close)
	return repo.NewDashboardClient(repo.DashboardClientConfig{BaseURL: srv.URL}, cache.NoopProvider{})
}

func TestDashboardDataCarriesAggregates(t *testing.T) {
	client := newTestBackend(t, false)
	payload, err := client.FetchPayload(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(payload.Engagements) != 2 {
		t.Fatalf("expected 2 engagements, got %d", len(payload.Engagements))
	}
	if payload.KPIs["total_engagements"] != 2 || payload.KPIs["at_risk_count"] != 1 {
		t.Fatalf("unexpected kpis %v", payload.KPIs)
	}
	if payload.Summary != "Two engagements this week." {
		t.Fatalf("unexpected summary %q", payload.Summary)
	}
}

func TestHealthAndCommit(t *testing.T) {
	client := newTestBackend(t, false)
	h, err := client.FetchHealth(context.Background())
	if err != nil || h.Status != "ok" || h.Mode != "mock" {
		t.Fatalf("unexpected health %+v %v", h, err)
	}
	res, err := client.CommitNotebook(context.Background(), "/Shared/Test", "# Analysis Report\n")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Status != "committed" || res.RequestID == "" {
		t.Fatalf("unexpected commit result %+v", res)
	}
}

func TestCommitFailure(t *testing.T) {
	client := newTestBackend(t, true)
	if _, err := client.CommitNotebook(context.Background(), "/Shared/Test", "x"); err == nil {
		t.Fatalf("expected commit failure")
	}
}
