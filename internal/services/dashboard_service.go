package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/engagestack/engagement-intel/internal/api"
	"github.com/engagestack/engagement-intel/internal/engine"
	"github.com/engagestack/engagement-intel/internal/models"
	"github.com/engagestack/engagement-intel/internal/repo"
	"github.com/engagestack/engagement-intel/internal/session"
	"github.com/engagestack/engagement-intel/internal/utils"
)

// DashboardService implements the gRPC Dashboard service on top of a session.
type DashboardService struct {
	logger    *slog.Logger
	session   *session.Session
	latencies *utils.LatencyTracker
}

var _ api.DashboardServer = (*DashboardService)(nil)

// NewDashboardService constructs the dashboard service facade.
func NewDashboardService(logger *slog.Logger, sess *session.Session) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{
		logger:    logger,
		session:   sess,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// GetDashboard returns the views and report summary of the current snapshot.
func (s *DashboardService) GetDashboard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	health, err := s.session.Health(ctx)
	if err != nil {
		s.logger.Debug("health probe failed", slog.Any("error", err))
	}
	return encode(s.dashboardView(s.session.State(), health))
}

// Refresh fetches a new snapshot and returns the resulting dashboard.
func (s *DashboardService) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}

	start := time.Now()
	st, err := s.session.Refresh(ctx)
	s.observe(time.Since(start))
	if err != nil {
		s.logger.Warn("refresh failed", slog.Any("error", err))
		return nil, toStatus(err)
	}
	health, _ := s.session.Health(ctx)
	return encode(s.dashboardView(st, health))
}

// SearchEngagements filters the snapshot by customer or notes text.
func (s *DashboardService) SearchEngagements(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	search, err := api.FromStructSearchRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	st := s.session.State()
	matches := engine.Filter(st.Snapshot, search.Query)
	view := api.SearchView{Query: search.Query, Count: len(matches)}
	if search.Page > 0 || search.PageSize > 0 {
		matches = engine.Page(matches, search.Page, search.PageSize)
		view.Page = max(search.Page, 1)
		view.PageSize = search.PageSize
		if view.PageSize <= 0 {
			view.PageSize = engine.DefaultPageSize
		}
	}
	view.Engagements = rows(matches, st.Selection)
	return encode(view)
}

// ToggleSelection flips one engagement in the highlight selection.
func (s *DashboardService) ToggleSelection(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	id, err := api.FromStructToggleRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	selection := s.session.Toggle(id)
	st := s.session.State()
	return encode(struct {
		ID          string              `json:"id"`
		Selected    bool                `json:"selected"`
		IDs         []string            `json:"ids"`
		Engagements []api.EngagementRow `json:"engagements"`
	}{
		ID:          id,
		Selected:    selection.Contains(id),
		IDs:         nonNil(selection.IDs()),
		Engagements: rows(selection.Resolve(st.Snapshot), selection),
	})
}

// GetReport returns the recommendation report.
func (s *DashboardService) GetReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	report, err := s.session.Report()
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(report)
}

// CommitReport persists the report markdown to the notebook store.
func (s *DashboardService) CommitReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(req); err != nil {
		return nil, err
	}
	path, err := api.FromStructCommitRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, err := s.session.Commit(ctx, path)
	if err != nil {
		s.logger.Error("commit report failed", slog.Any("error", err))
		return nil, toStatus(err)
	}
	return encode(res)
}

// RefreshLatencyP95 returns the current p95 refresh latency.
func (s *DashboardService) RefreshLatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

func (s *DashboardService) ready(req *structpb.Struct) error {
	if req == nil {
		return status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if s.session == nil {
		return status.Error(codes.FailedPrecondition, "session not configured")
	}
	return nil
}

func (s *DashboardService) observe(d time.Duration) {
	s.latencies.Observe(d)
	if total := s.latencies.Total(); total%20 == 0 {
		s.logger.Info("refresh latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", s.latencies.Count()))
	}
}

func (s *DashboardService) dashboardView(st session.State, health models.Health) api.DashboardView {
	return api.DashboardView{
		Views:         st.Dashboard.Views,
		Summary:       st.Dashboard.Report.Summary,
		ServerSummary: st.ServerSummary,
		SnapshotID:    st.Snapshot.ID(),
		Source:        st.Snapshot.Source(),
		FetchedAt:     api.FormatTimestamp(st.Snapshot.FetchedAt()),
		Stale:         st.Stale,
		LastError:     st.LastError,
		Dropped:       st.Dropped,
		Selected:      nonNil(st.Selection.IDs()),
		Health:        health,
	}
}

func rows(records []models.Engagement, selection models.SelectionSet) []api.EngagementRow {
	out := make([]api.EngagementRow, 0, len(records))
	for _, e := range records {
		out = append(out, api.EngagementRow{Engagement: e, Selected: selection.Contains(e.ID)})
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func encode(v any) (*structpb.Struct, error) {
	out, err := api.ToStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	var fetchErr *models.DataFetchError
	var commitErr *models.CommitError
	switch {
	case errors.Is(err, session.ErrSuperseded), errors.Is(err, repo.ErrCommitInProgress):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, session.ErrNoData):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.As(err, &fetchErr), errors.As(err, &commitErr):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
