// Package session owns the dashboard state: the current snapshot, the views
// and report derived from it, and the highlight selection.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/engagestack/engagement-intel/internal/engine"
	"github.com/engagestack/engagement-intel/internal/ingest"
	"github.com/engagestack/engagement-intel/internal/metrics"
	"github.com/engagestack/engagement-intel/internal/models"
	"github.com/engagestack/engagement-intel/internal/repo"
)

var (
	// ErrSuperseded is returned by Refresh when a newer fetch started before
	// this one resolved. The result of the superseded fetch is discarded.
	ErrSuperseded = errors.New("refresh superseded by a newer fetch")
	// ErrNoData is returned when no snapshot has been loaded yet.
	ErrNoData = errors.New("no snapshot loaded")
)

const healthStatusUnavailable = "unavailable"

// Source provides the raw dashboard payload.
type Source interface {
	Name() string
	FetchPayload(ctx context.Context) (repo.Payload, error)
}

// HealthChecker probes the backend.
type HealthChecker interface {
	FetchHealth(ctx context.Context) (models.Health, error)
}

// NotebookCommitter persists report markdown to the notebook store.
type NotebookCommitter interface {
	CommitNotebook(ctx context.Context, notebookPath, markdown string) (models.CommitResult, error)
}

// Options carries the optional collaborators of a Session.
type Options struct {
	Logger       *slog.Logger
	Health       HealthChecker
	Committer    NotebookCommitter
	NotebookPath string
}

// State is an immutable view of the session. Slices inside it are shared
// with the session and must be treated as read-only.
type State struct {
	Snapshot  models.Snapshot
	Dashboard models.Dashboard
	Selection models.SelectionSet
	// Dropped counts records rejected while building Snapshot.
	Dropped int
	// Stale is set when the latest refresh failed and the data shown is from
	// an earlier successful fetch.
	Stale     bool
	LastError string
	// ServerSummary is the narrative shipped by the backend, if any.
	ServerSummary string
	Drift         []engine.Discrepancy
	Generation    uint64
}

// Loaded reports whether a snapshot has been applied.
func (s State) Loaded() bool { return !s.Snapshot.IsZero() }

// Session serialises state changes. Fetches may overlap; only the result of
// the most recently started fetch is ever applied.
type Session struct {
	logger       *slog.Logger
	source       Source
	decoder      *ingest.Decoder
	pipeline     *engine.Pipeline
	health       HealthChecker
	committer    NotebookCommitter
	notebookPath string

	started atomic.Uint64

	mu    sync.RWMutex
	state State
}

// New builds a session. source, decoder and pipeline are required.
func New(source Source, decoder *ingest.Decoder, pipeline *engine.Pipeline, opts Options) (*Session, error) {
	if source == nil {
		return nil, errors.New("session: source is required")
	}
	if decoder == nil {
		return nil, errors.New("session: decoder is required")
	}
	if pipeline == nil {
		return nil, errors.New("session: pipeline is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		logger:       logger,
		source:       source,
		decoder:      decoder,
		pipeline:     pipeline,
		health:       opts.Health,
		committer:    opts.Committer,
		notebookPath: opts.NotebookPath,
	}, nil
}

// Refresh fetches a new snapshot and recomputes everything derived from it.
// On fetch failure the previous state is kept, marked stale, and the error
// is returned. The selection is cleared whenever a new snapshot is applied.
// If another Refresh starts before this one resolves, this result, success
// or failure, is discarded and ErrSuperseded is returned.
func (s *Session) Refresh(ctx context.Context) (State, error) {
	gen := s.started.Add(1)
	start := time.Now()

	payload, err := s.source.FetchPayload(ctx)
	if err != nil {
		return s.fail(gen, start, err)
	}

	res := s.decoder.Decode(s.source.Name(), payload.Engagements)
	for _, drop := range res.Dropped {
		metrics.ObserveDropped(drop.Kind)
	}

	dashboard, err := s.pipeline.Run(ctx, res.Snapshot)
	if err != nil {
		return s.fail(gen, start, err)
	}

	drift := engine.Reconcile(dashboard.Views, payload.ServerAggregates)
	if len(drift) > 0 {
		fields := make([]string, 0, len(drift))
		for _, d := range drift {
			fields = append(fields, d.String())
		}
		s.logger.Warn("server aggregates disagree with local recomputation", slog.Int("fields", len(drift)), slog.String("drift", strings.Join(fields, "; ")))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.superseded(gen) {
		metrics.ObserveRefresh(time.Since(start), metrics.OutcomeSuperseded)
		s.logger.Debug("discarding superseded refresh", slog.Uint64("generation", gen), slog.Uint64("latest", s.started.Load()))
		return s.state, ErrSuperseded
	}

	s.state = State{
		Snapshot:      res.Snapshot,
		Dashboard:     dashboard,
		Selection:     models.NewSelectionSet(),
		Dropped:       len(res.Dropped),
		ServerSummary: payload.Summary,
		Drift:         drift,
		Generation:    gen,
	}
	metrics.SetSnapshotSize(res.Snapshot.Len())
	metrics.ObserveRefresh(time.Since(start), metrics.OutcomeSuccess)
	s.logger.Info("snapshot applied",
		slog.String("snapshot", res.Snapshot.ID()),
		slog.String("source", res.Snapshot.Source()),
		slog.Int("engagements", res.Snapshot.Len()),
		slog.Int("dropped", len(res.Dropped)),
		slog.Uint64("generation", gen),
	)
	return s.state, nil
}

func (s *Session) fail(gen uint64, start time.Time, err error) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.superseded(gen) {
		metrics.ObserveRefresh(time.Since(start), metrics.OutcomeSuperseded)
		s.logger.Debug("discarding superseded refresh failure", slog.Uint64("generation", gen), slog.Any("error", err))
		return s.state, ErrSuperseded
	}
	s.state.Stale = true
	s.state.LastError = err.Error()
	metrics.ObserveRefresh(time.Since(start), metrics.OutcomeError)
	s.logger.Warn("refresh failed, keeping previous snapshot", slog.Uint64("generation", gen), slog.Any("error", err))
	return s.state, err
}

// superseded reports whether a fetch newer than gen has started. Callers
// hold s.mu so a result is judged and applied atomically.
func (s *Session) superseded(gen uint64) bool {
	return gen < s.started.Load()
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Toggle flips id in the selection and returns the new selection. Ids not
// present in the snapshot are accepted and stay inert.
func (s *Session) Toggle(id string) models.SelectionSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Selection = s.state.Selection.Toggle(id)
	return s.state.Selection
}

// Search filters the current snapshot by query.
func (s *Session) Search(query string) []models.Engagement {
	return engine.Filter(s.State().Snapshot, query)
}

// Selected returns the selected engagements present in the snapshot.
func (s *Session) Selected() []models.Engagement {
	st := s.State()
	return st.Selection.Resolve(st.Snapshot)
}

// Report returns the recommendation report of the current snapshot.
func (s *Session) Report() (models.Report, error) {
	st := s.State()
	if !st.Loaded() {
		return models.Report{}, ErrNoData
	}
	return st.Dashboard.Report, nil
}

// Commit sends the current report markdown to the notebook store. An empty
// path uses the configured default. Failures are not retried.
func (s *Session) Commit(ctx context.Context, notebookPath string) (models.CommitResult, error) {
	if notebookPath == "" {
		notebookPath = s.notebookPath
	}
	report, err := s.Report()
	if err != nil {
		return models.CommitResult{}, err
	}
	if s.committer == nil {
		metrics.ObserveCommit(metrics.OutcomeError)
		return models.CommitResult{}, &models.CommitError{Path: notebookPath, Err: errors.New("no notebook store configured")}
	}

	res, err := s.committer.CommitNotebook(ctx, notebookPath, report.NotebookMarkdown)
	if err != nil {
		metrics.ObserveCommit(metrics.OutcomeError)
		s.logger.Warn("report commit failed", slog.String("path", notebookPath), slog.Any("error", err))
		var commitErr *models.CommitError
		if !errors.As(err, &commitErr) {
			err = &models.CommitError{Path: notebookPath, Err: err}
		}
		return models.CommitResult{}, err
	}
	metrics.ObserveCommit(metrics.OutcomeSuccess)
	s.logger.Info("report committed", slog.String("path", notebookPath), slog.String("request_id", res.RequestID))
	return res, nil
}

// Health probes the backend. Without a health checker the local summarizer
// mode is reported.
func (s *Session) Health(ctx context.Context) (models.Health, error) {
	mode := s.pipeline.Mode()
	if s.health == nil {
		return models.Health{Status: "ok", Mode: mode}, nil
	}
	h, err := s.health.FetchHealth(ctx)
	if err != nil {
		return models.Health{Status: healthStatusUnavailable, Mode: mode}, err
	}
	if h.Mode == "" {
		h.Mode = mode
	}
	return h, nil
}

// ReloadRules swaps the rule pack and recomputes the report for the current
// snapshot.
func (s *Session) ReloadRules(ctx context.Context, path string) error {
	rules, err := engine.NewRuleEngine(path, s.logger)
	if err != nil {
		return err
	}
	s.pipeline.SetRules(rules)
	s.logger.Info("rule pack reloaded", slog.String("path", path), slog.Int("rules", rules.Len()))
	return s.recompute(ctx)
}

func (s *Session) recompute(ctx context.Context) error {
	st := s.State()
	if !st.Loaded() {
		return nil
	}
	dashboard, err := s.pipeline.Run(ctx, st.Snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Snapshot.ID() != st.Snapshot.ID() {
		return nil
	}
	s.state.Dashboard = dashboard
	return nil
}

// Poll refreshes every interval until ctx is done. Errors are logged.
func (s *Session) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) && ctx.Err() == nil {
				s.logger.Debug("scheduled refresh failed", slog.Any("error", err))
			}
		}
	}
}
