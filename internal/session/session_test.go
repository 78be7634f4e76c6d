package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagestack/engagement-intel/internal/engine"
	"github.com/engagestack/engagement-intel/internal/ingest"
	"github.com/engagestack/engagement-intel/internal/models"
	"github.com/engagestack/engagement-intel/internal/repo"
)

type scriptedFetch struct {
	payload repo.Payload
	err     error
	gate    chan struct{}
}

type fakeSource struct {
	mu      sync.Mutex
	fetches []scriptedFetch
	calls   int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchPayload(ctx context.Context) (repo.Payload, error) {
	f.mu.Lock()
	fetch := f.fetches[min(f.calls, len(f.fetches)-1)]
	f.calls++
	f.mu.Unlock()
	if fetch.gate != nil {
		<-fetch.gate
	}
	return fetch.payload, fetch.err
}

type fakeCommitter struct {
	path     string
	markdown string
	err      error
}

func (f *fakeCommitter) CommitNotebook(ctx context.Context, path, markdown string) (models.CommitResult, error) {
	f.path, f.markdown = path, markdown
	if f.err != nil {
		return models.CommitResult{}, f.err
	}
	return models.CommitResult{RequestID: "req-1", Status: "committed"}, nil
}

func payloadOf(t *testing.T, records ...map[string]any) repo.Payload {
	t.Helper()
	raw := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		b, err := json.Marshal(r)
		require.NoError(t, err)
		raw = append(raw, b)
	}
	return repo.Payload{Engagements: raw}
}

func record(id, customer string, sentiment float64) map[string]any {
	return map[string]any{"id": id, "customer": customer, "date": "2024-01-01", "sentiment": sentiment, "notes": "notes for " + customer}
}

func newTestSession(t *testing.T, source Source, opts Options) *Session {
	t.Helper()
	decoder, err := ingest.NewDecoder(nil)
	require.NoError(t, err)
	pipeline, err := engine.NewPipeline(nil, nil, nil, nil, nil, nil)
	require.NoError(t, err)
	s, err := New(source, decoder, pipeline, opts)
	require.NoError(t, err)
	return s
}

func TestRefreshAppliesSnapshotAndClearsSelection(t *testing.T) {
	source := &fakeSource{fetches: []scriptedFetch{
		{payload: payloadOf(t, record("1", "Acme", 0.8), record("2", "Globex", 0.3))},
	}}
	s := newTestSession(t, source, Options{})

	_, err := s.Refresh(context.Background())
	require.NoError(t, err)
	s.Toggle("1")
	require.Equal(t, 1, s.State().Selection.Len())

	st, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Snapshot.Len())
	assert.Equal(t, 0, st.Selection.Len(), "selection is cleared on a new snapshot")
	assert.Equal(t, 2, st.Dashboard.Views.KPIs.TotalEngagements)
	assert.False(t, st.Stale)
}

func TestRefreshFailureKeepsPreviousStateStale(t *testing.T) {
	source := &fakeSource{fetches: []scriptedFetch{
		{payload: payloadOf(t, record("1", "Acme", 0.8))},
		{err: &models.DataFetchError{Op: "fetch", Err: errors.New("connection refused")}},
	}}
	s := newTestSession(t, source, Options{})

	first, err := s.Refresh(context.Background())
	require.NoError(t, err)

	st, err := s.Refresh(context.Background())
	var fetchErr *models.DataFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.True(t, st.Stale)
	assert.Contains(t, st.LastError, "connection refused")
	assert.Equal(t, first.Snapshot.ID(), st.Snapshot.ID())
	assert.Equal(t, 1, st.Dashboard.Views.KPIs.TotalEngagements)
}

func TestRefreshCountsDroppedRecords(t *testing.T) {
	bad := record("2", "Globex", 1.5)
	source := &fakeSource{fetches: []scriptedFetch{{payload: payloadOf(t, record("1", "Acme", 0.8), bad)}}}
	s := newTestSession(t, source, Options{})

	st, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.Snapshot.Len())
	assert.Equal(t, 1, st.Dropped)
}

func TestLastFetchWins(t *testing.T) {
	slowGate := make(chan struct{})
	source := &fakeSource{fetches: []scriptedFetch{
		{payload: payloadOf(t, record("old", "Old Co", 0.5)), gate: slowGate},
		{payload: payloadOf(t, record("new", "New Co", 0.5))},
	}}
	s := newTestSession(t, source, Options{})

	slowDone := make(chan error, 1)
	go func() {
		_, err := s.Refresh(context.Background())
		slowDone <- err
	}()

	// Wait until the slow fetch has been issued before starting the fast one.
	require.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return source.calls == 1
	}, defaultWait, pollInterval)

	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	close(slowGate)
	assert.ErrorIs(t, <-slowDone, ErrSuperseded)

	st := s.State()
	require.Equal(t, 1, st.Snapshot.Len())
	assert.Equal(t, "new", st.Snapshot.At(0).ID)
}

func waitForCalls(t *testing.T, source *fakeSource, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return source.calls == n
	}, defaultWait, pollInterval)
}

func TestOlderFetchResolvingFirstIsDiscarded(t *testing.T) {
	oldGate, newGate := make(chan struct{}), make(chan struct{})
	source := &fakeSource{fetches: []scriptedFetch{
		{payload: payloadOf(t, record("old", "Old Co", 0.5)), gate: oldGate},
		{payload: payloadOf(t, record("new", "New Co", 0.5)), gate: newGate},
	}}
	s := newTestSession(t, source, Options{})

	oldDone, newDone := make(chan error, 1), make(chan error, 1)
	go func() {
		_, err := s.Refresh(context.Background())
		oldDone <- err
	}()
	waitForCalls(t, source, 1)
	go func() {
		_, err := s.Refresh(context.Background())
		newDone <- err
	}()
	waitForCalls(t, source, 2)

	close(oldGate)
	assert.ErrorIs(t, <-oldDone, ErrSuperseded)
	assert.False(t, s.State().Loaded(), "an outdated result must not be applied while a newer fetch is in flight")

	close(newGate)
	require.NoError(t, <-newDone)
	st := s.State()
	require.Equal(t, 1, st.Snapshot.Len())
	assert.Equal(t, "new", st.Snapshot.At(0).ID)
	assert.Equal(t, uint64(2), st.Generation)
}

func TestNewestFetchFailureIsNotMaskedByOlderSuccess(t *testing.T) {
	oldGate := make(chan struct{})
	source := &fakeSource{fetches: []scriptedFetch{
		{payload: payloadOf(t, record("old", "Old Co", 0.5)), gate: oldGate},
		{err: &models.DataFetchError{Op: "fetch", Err: context.DeadlineExceeded}},
	}}
	s := newTestSession(t, source, Options{})

	oldDone := make(chan error, 1)
	go func() {
		_, err := s.Refresh(context.Background())
		oldDone <- err
	}()
	waitForCalls(t, source, 1)

	_, err := s.Refresh(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(oldGate)
	assert.ErrorIs(t, <-oldDone, ErrSuperseded)

	st := s.State()
	assert.False(t, st.Loaded())
	assert.True(t, st.Stale)
	assert.Contains(t, st.LastError, context.DeadlineExceeded.Error())
}

func TestSearchAndSelected(t *testing.T) {
	source := &fakeSource{fetches: []scriptedFetch{
		{payload: payloadOf(t, record("1", "Acme", 0.8), record("2", "Globex", 0.3))},
	}}
	s := newTestSession(t, source, Options{})
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	assert.Len(t, s.Search("ACME"), 1)
	assert.Len(t, s.Search(""), 2)

	s.Toggle("2")
	s.Toggle("ghost")
	selected := s.Selected()
	require.Len(t, selected, 1)
	assert.Equal(t, "2", selected[0].ID)
}

func TestCommit(t *testing.T) {
	source := &fakeSource{fetches: []scriptedFetch{{payload: payloadOf(t, record("1", "Acme", 0.8))}}}
	committer := &fakeCommitter{}
	s := newTestSession(t, source, Options{Committer: committer, NotebookPath: "/Shared/Default"})

	_, err := s.Commit(context.Background(), "")
	require.ErrorIs(t, err, ErrNoData)

	_, err = s.Refresh(context.Background())
	require.NoError(t, err)

	res, err := s.Commit(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, "/Shared/Default", committer.path)
	assert.Contains(t, committer.markdown, "# Analysis Report")

	committer.err = fmt.Errorf("store offline")
	_, err = s.Commit(context.Background(), "/Shared/Other")
	var commitErr *models.CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, "/Shared/Other", commitErr.Path)

	report, err := s.Report()
	require.NoError(t, err)
	assert.NotEmpty(t, report.Summary, "report stays available after a failed commit")
}

func TestCommitWithoutStore(t *testing.T) {
	source := &fakeSource{fetches: []scriptedFetch{{payload: payloadOf(t, record("1", "Acme", 0.8))}}}
	s := newTestSession(t, source, Options{})
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	_, err = s.Commit(context.Background(), "/Shared/x")
	var commitErr *models.CommitError
	assert.ErrorAs(t, err, &commitErr)
}

func TestHealthWithoutChecker(t *testing.T) {
	s := newTestSession(t, &fakeSource{fetches: []scriptedFetch{{}}}, Options{})
	h, err := s.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "heuristic", h.Mode)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(nil, nil, nil, Options{})
	assert.Error(t, err)
}

func TestReloadRulesRecomputesReport(t *testing.T) {
	source := &fakeSource{fetches: []scriptedFetch{{payload: payloadOf(t, record("1", "Acme", 0.8))}}}
	s := newTestSession(t, source, Options{})
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`rules:
  - id: always
    when: 'kpis.total_engagements > 0'
    fixes: ["Book a quarterly review"]
`), 0o600))

	require.NoError(t, s.ReloadRules(context.Background(), path))
	report, err := s.Report()
	require.NoError(t, err)
	assert.Equal(t, []string{"Book a quarterly review"}, report.Fixes)
	assert.Equal(t, 1, s.State().Snapshot.Len(), "snapshot is untouched by a rule reload")

	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - id: bad\n    when: 'kpis.'\n"), 0o600))
	assert.Error(t, s.ReloadRules(context.Background(), path))
	report, err = s.Report()
	require.NoError(t, err)
	assert.Equal(t, []string{"Book a quarterly review"}, report.Fixes, "a broken pack keeps the previous rules")
}

func TestPollRefreshesUntilCancelled(t *testing.T) {
	source := &fakeSource{fetches: []scriptedFetch{{payload: payloadOf(t, record("1", "Acme", 0.8))}}}
	s := newTestSession(t, source, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Poll(ctx, pollInterval)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.State().Loaded() }, defaultWait, pollInterval)
	cancel()
	select {
	case <-done:
	case <-time.After(defaultWait):
		t.Fatal("poll did not stop after cancel")
	}
}
