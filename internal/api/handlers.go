package api

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/engagestack/engagement-intel/internal/models"
)

// DashboardView is the GetDashboard response body.
type DashboardView struct {
	Views         models.Views `json:"views"`
	Summary       string       `json:"summary"`
	ServerSummary string       `json:"server_summary,omitempty"`
	SnapshotID    string       `json:"snapshot_id"`
	Source        string       `json:"source"`
	FetchedAt     string       `json:"fetched_at,omitempty"`
	Stale         bool         `json:"stale"`
	LastError     string       `json:"last_error,omitempty"`
	Dropped       int          `json:"dropped"`
	Selected      []string     `json:"selected"`
	Health        models.Health `json:"health"`
}

// EngagementRow is one engagement in a search response.
type EngagementRow struct {
	models.Engagement
	Selected bool `json:"selected"`
}

// SearchView is the SearchEngagements response body.
type SearchView struct {
	Query       string          `json:"query"`
	Count       int             `json:"count"`
	Page        int             `json:"page,omitempty"`
	PageSize    int             `json:"page_size,omitempty"`
	Engagements []EngagementRow `json:"engagements"`
}

// SearchRequest is the decoded SearchEngagements request.
type SearchRequest struct {
	Query    string
	Page     int
	PageSize int
}

// FromStructSearchRequest reads {query, page, page_size}.
func FromStructSearchRequest(req *structpb.Struct) (SearchRequest, error) {
	query, err := optionalString(req, "query")
	if err != nil {
		return SearchRequest{}, err
	}
	page, err := optionalInt(req, "page")
	if err != nil {
		return SearchRequest{}, err
	}
	size, err := optionalInt(req, "page_size")
	if err != nil {
		return SearchRequest{}, err
	}
	if page < 0 || size < 0 {
		return SearchRequest{}, fmt.Errorf("page and page_size must not be negative")
	}
	return SearchRequest{Query: query, Page: page, PageSize: size}, nil
}

// FromStructToggleRequest reads the required {id}.
func FromStructToggleRequest(req *structpb.Struct) (string, error) {
	id, err := optionalString(req, "id")
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("id is required")
	}
	return id, nil
}

// FromStructCommitRequest reads the optional {notebook_path}.
func FromStructCommitRequest(req *structpb.Struct) (string, error) {
	return optionalString(req, "notebook_path")
}

// ToStruct converts any JSON-encodable value into a protobuf Struct using
// its JSON field names.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("response is not an object: %w", err)
	}
	return structpb.NewStruct(m)
}

// FormatTimestamp renders t as RFC3339 via the protobuf well-known type, or
// "" for the zero time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return timestamppb.New(t).AsTime().Format(time.RFC3339Nano)
}

func optionalString(req *structpb.Struct, key string) (string, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return "", nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue, nil
	case *structpb.Value_NullValue:
		return "", nil
	default:
		return "", fmt.Errorf("%s must be a string", key)
	}
}

func optionalInt(req *structpb.Struct, key string) (int, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return 0, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return int(n), nil
	case *structpb.Value_NullValue:
		return 0, nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}
