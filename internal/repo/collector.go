package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/governstack/govern-trust/internal/models"
	"github.com/governstack/govern-trust/internal/utils"
)

// CollectorClient pulls metric snapshots from the external monitoring
// collector over HTTP.
type CollectorClient struct {
	baseURL      string
	snapshotPath string
	httpClient   *http.Client
}

// NewCollectorClient constructs a client targeting the configured collector.
func NewCollectorClient(baseURL, snapshotPath string, timeout time.Duration) *CollectorClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CollectorClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		snapshotPath: snapshotPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchSnapshot retrieves the latest metric snapshot. A transient failure is
// returned to the caller, which treats it as a skipped tick.
func (c *CollectorClient) FetchSnapshot(ctx context.Context) (models.MetricSnapshot, error) {
	if c == nil {
		return models.MetricSnapshot{}, fmt.Errorf("collector client not initialised")
	}
	if c.baseURL == "" {
		return models.MetricSnapshot{}, fmt.Errorf("collector base URL not configured")
	}

	var response struct {
		Timestamp     time.Time             `json:"timestamp"`
		DriftSeverity string                `json:"drift_severity"`
		DriftPSI      float64               `json:"drift_psi"`
		AccuracyDrop  float64               `json:"accuracy_drop"`
		BiasScore     float64               `json:"bias_score"`
		OverrideRate  float64               `json:"override_rate"`
		LLM           *models.LLMMetrics    `json:"llm"`
		System        *models.SystemMetrics `json:"system"`
	}

	if err := c.getJSON(ctx, c.snapshotURL(), &response); err != nil {
		return models.MetricSnapshot{}, utils.NewAppError("FetchSnapshot", "collector snapshot request failed", err)
	}

	snapshot := models.MetricSnapshot{
		Timestamp:     response.Timestamp,
		DriftSeverity: models.DriftSeverity(response.DriftSeverity),
		DriftPSI:      response.DriftPSI,
		AccuracyDrop:  response.AccuracyDrop,
		BiasScore:     response.BiasScore,
		OverrideRate:  response.OverrideRate,
		LLM:           response.LLM,
		System:        response.System,
	}
	return snapshot.Normalize(), nil
}

func (c *CollectorClient) snapshotURL() string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(c.snapshotPath, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *CollectorClient) getJSON(ctx context.Context, endpoint string, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("collector returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
