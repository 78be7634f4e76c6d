package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/engagestack/engagement-intel/internal/cache"
	"github.com/engagestack/engagement-intel/internal/models"
)

const (
	maxResponseBytes = 32 << 20
	commitLockTTL    = 30 * time.Second
)

// ErrCommitInProgress is wrapped by the CommitError returned when another
// commit to the same notebook path has not finished.
var ErrCommitInProgress = errors.New("commit already in progress")

// DashboardClientConfig configures the remote dashboard backend client.
type DashboardClientConfig struct {
	BaseURL           string
	DataPath          string
	HealthPath        string
	CommitPath        string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	PayloadTTL        time.Duration
	HealthTTL         time.Duration
}

// DashboardClient talks to the dashboard backend: the data and health
// endpoints inbound and the notebook commit endpoint outbound.
type DashboardClient struct {
	baseURL    string
	dataPath   string
	healthPath string
	commitPath string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      cache.Provider
	payloadTTL time.Duration
	healthTTL  time.Duration
	requestID  func() string
}

// NewDashboardClient constructs a client targeting the configured backend.
func NewDashboardClient(cfg DashboardClientConfig, cacheProvider cache.Provider) *DashboardClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &DashboardClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		dataPath:   firstNonEmpty(cfg.DataPath, "/api/dashboard/data"),
		healthPath: firstNonEmpty(cfg.HealthPath, "/health"),
		commitPath: firstNonEmpty(cfg.CommitPath, "/api/notebooks/commit"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:    rate.NewLimiter(limit, burst),
		cache:      cacheProvider,
		payloadTTL: cfg.PayloadTTL,
		healthTTL:  cfg.HealthTTL,
		requestID:  uuid.NewString,
	}
}

// Name identifies the backend in snapshots and logs.
func (c *DashboardClient) Name() string { return c.baseURL }

// FetchPayload GETs the dashboard document. Failures are *models.DataFetchError.
func (c *DashboardClient) FetchPayload(ctx context.Context) (Payload, error) {
	const op = "fetch dashboard data"
	if c == nil || c.baseURL == "" {
		return Payload{}, &models.DataFetchError{Op: op, Err: errors.New("dashboard base URL not configured")}
	}

	key := cache.Key("engagement", "payload", c.baseURL)
	if c.payloadTTL > 0 {
		if data, err := c.cache.Get(ctx, key); err == nil {
			if p, err := DecodePayload(data); err == nil {
				return p, nil
			}
		}
	}

	data, status, err := c.getBytes(ctx, c.resolvePath(c.dataPath))
	if err != nil {
		return Payload{}, &models.DataFetchError{Op: op, StatusCode: status, Err: err}
	}
	p, err := DecodePayload(data)
	if err != nil {
		return Payload{}, &models.DataFetchError{Op: op, StatusCode: status, Err: err}
	}

	if c.payloadTTL > 0 {
		_ = c.cache.Set(ctx, key, data, c.payloadTTL)
	}
	return p, nil
}

// FetchHealth GETs the backend health document.
func (c *DashboardClient) FetchHealth(ctx context.Context) (models.Health, error) {
	const op = "fetch health"
	if c == nil || c.baseURL == "" {
		return models.Health{}, &models.DataFetchError{Op: op, Err: errors.New("dashboard base URL not configured")}
	}

	key := cache.Key("engagement", "health", c.baseURL)
	if c.healthTTL > 0 {
		if cached, ok := cache.GetJSON[models.Health](ctx, c.cache, key); ok {
			return cached, nil
		}
	}

	data, status, err := c.getBytes(ctx, c.resolvePath(c.healthPath))
	if err != nil {
		return models.Health{}, &models.DataFetchError{Op: op, StatusCode: status, Err: err}
	}
	var health models.Health
	if err := json.Unmarshal(data, &health); err != nil {
		return models.Health{}, &models.DataFetchError{Op: op, StatusCode: status, Err: fmt.Errorf("decode response: %w", err)}
	}

	if c.healthTTL > 0 {
		_ = cache.SetJSON(ctx, c.cache, key, health, c.healthTTL)
	}
	return health, nil
}

// CommitNotebook POSTs the report markdown to the notebook store. It is not
// retried; failures are *models.CommitError.
func (c *DashboardClient) CommitNotebook(ctx context.Context, notebookPath, markdown string) (models.CommitResult, error) {
	if c == nil || c.baseURL == "" {
		return models.CommitResult{}, &models.CommitError{Path: notebookPath, Err: errors.New("dashboard base URL not configured")}
	}

	// One commit per notebook path at a time; a second caller fails fast
	// instead of racing the first to the store.
	lock := cache.Key("engagement", "commit", notebookPath)
	acquired, err := c.cache.SetNX(ctx, lock, []byte("1"), commitLockTTL)
	if err == nil && !acquired {
		return models.CommitResult{}, &models.CommitError{Path: notebookPath, Err: ErrCommitInProgress}
	}
	if acquired {
		defer func() { _ = c.cache.Del(context.WithoutCancel(ctx), lock) }()
	}

	requestID := c.requestID()
	payload := map[string]any{
		"notebook_path": notebookPath,
		"markdown":      markdown,
		"request_id":    requestID,
	}

	var response struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := c.postJSON(ctx, c.resolvePath(c.commitPath), requestID, payload, &response); err != nil {
		return models.CommitResult{}, &models.CommitError{Path: notebookPath, Err: err}
	}

	return models.CommitResult{
		RequestID: requestID,
		Status:    firstNonEmpty(response.Status, "committed"),
		Message:   response.Message,
	}, nil
}

func (c *DashboardClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *DashboardClient) getBytes(ctx context.Context, endpoint string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("dashboard backend returned %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

func (c *DashboardClient) postJSON(ctx context.Context, endpoint, requestID string, payload any, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notebook store returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
