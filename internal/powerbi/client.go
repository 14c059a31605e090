package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"powerbi-glean-connector/internal/model"
	"powerbi-glean-connector/internal/utils"
)

// Scan job states reported by the scanner API
const (
	ScanStatusNotStarted = "NotStarted"
	ScanStatusRunning    = "Running"
	ScanStatusSucceeded  = "Succeeded"
	ScanStatusFailed     = "Failed"
)

// Client implements the Power BI REST API surface the sync pipeline needs
type Client struct {
	baseURL    string // e.g. https://api.powerbi.com/v1.0/myorg
	httpClient *http.Client
	tokens     oauth2.TokenSource
	limiter    *rate.Limiter
}

// NewClient creates a new Power BI REST client
func NewClient(baseURL string, tokens oauth2.TokenSource, rps float64, burst int) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("API base URL is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
		tokens:     tokens,
		limiter:    limiter,
	}, nil
}

// ResolveWorkspace looks up a workspace id by its display name
func (c *Client) ResolveWorkspace(ctx context.Context, name string) (string, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("name eq '%s'", strings.ReplaceAll(name, "'", "''")))
	reqURL := fmt.Sprintf("%s/groups?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	if err := c.prepare(ctx, req); err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var groups GroupsResponse
	if err := json.NewDecoder(resp.Body).Decode(&groups); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	for _, group := range groups.Value {
		if group.Name == name {
			return group.ID, nil
		}
	}

	return "", utils.NewWorkspaceNotFoundError(name)
}

// SubmitScan starts an asynchronous metadata scan of one workspace with
// lineage, datasource and schema detail enabled. Only an Accepted
// response counts as success.
func (c *Client) SubmitScan(ctx context.Context, workspaceID string) (*ScanJob, error) {
	reqURL := fmt.Sprintf("%s/admin/workspaces/getInfo?lineage=true&datasourceDetails=true&datasetSchema=true&datasetExpressions=true", c.baseURL)

	payload := ScanRequest{Workspaces: []string{workspaceID}}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if err := c.prepare(ctx, req); err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return nil, utils.NewScanSubmitError(resp.StatusCode, string(body))
	}

	var job ScanJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &job, nil
}

// GetScanStatus retrieves the current status of a scan job
func (c *Client) GetScanStatus(ctx context.Context, scanID string) (*ScanJob, error) {
	reqURL := fmt.Sprintf("%s/admin/workspaces/scanStatus/%s", c.baseURL, scanID)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if err := c.prepare(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var job ScanJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &job, nil
}

// GetScanResult retrieves and parses a completed scan. The raw payload
// is returned alongside the parsed tree so callers can archive it.
func (c *Client) GetScanResult(ctx context.Context, scanID string) (*model.WorkspaceScan, []byte, error) {
	reqURL := fmt.Sprintf("%s/admin/workspaces/scanResult/%s", c.baseURL, scanID)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	if err := c.prepare(ctx, req); err != nil {
		return nil, nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, utils.NewScanResultError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, utils.NewScanResultError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, nil, utils.NewScanResultError(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw)))
	}

	var scan model.WorkspaceScan
	if err := json.Unmarshal(raw, &scan); err != nil {
		return nil, nil, utils.NewScanResultError(err)
	}

	return &scan, raw, nil
}

// QueryTableTop runs a bounded top-N DAX query against one table of a
// dataset and returns the rows with cell order preserved
func (c *Client) QueryTableTop(ctx context.Context, datasetID, tableName string, topN int) ([]model.ExtractedRow, error) {
	reqURL := fmt.Sprintf("%s/datasets/%s/executeQueries", c.baseURL, datasetID)

	dax := fmt.Sprintf("EVALUATE TOPN(%d, '%s')", topN, strings.ReplaceAll(tableName, "'", "''"))
	payload := QueryRequest{
		Queries:            []QueryItem{{Query: dax}},
		SerializerSettings: SerializerSettings{IncludeNulls: true},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if err := c.prepare(ctx, req); err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Results) == 0 || len(result.Results[0].Tables) == 0 {
		return nil, fmt.Errorf("query returned no result tables")
	}

	rows, err := decodeRows(result.Results[0].Tables[0].Rows)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}

	return rows, nil
}

// prepare applies rate limiting and the bearer token to a request
func (c *Client) prepare(ctx context.Context, req *http.Request) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	token, err := c.tokens.Token()
	if err != nil {
		return utils.NewAuthError(err)
	}
	token.SetAuthHeader(req)
	return nil
}

// =============================================================================
// Power BI Data Structures
// =============================================================================

// ScanRequest is the body of a scan submission
type ScanRequest struct {
	Workspaces []string `json:"workspaces"`
}

// ScanJob represents an asynchronous workspace scan job
type ScanJob struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	CreatedDateTime string `json:"createdDateTime,omitempty"`
}

// IsTerminal reports whether the job has finished, successfully or not
func (j *ScanJob) IsTerminal() bool {
	return j.Status == ScanStatusSucceeded || j.Status == ScanStatusFailed
}

// GroupsResponse is the envelope of a workspace listing
type GroupsResponse struct {
	Value []Group `json:"value"`
}

// Group is one workspace in a listing
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// QueryRequest represents an executeQueries request
type QueryRequest struct {
	Queries            []QueryItem        `json:"queries"`
	SerializerSettings SerializerSettings `json:"serializerSettings"`
}

// QueryItem is a single DAX query
type QueryItem struct {
	Query string `json:"query"`
}

// SerializerSettings controls row serialization on the service side
type SerializerSettings struct {
	IncludeNulls bool `json:"includeNulls"`
}

// QueryResponse represents an executeQueries response
type QueryResponse struct {
	Results []QueryResult `json:"results"`
}

// QueryResult holds the tables of one query
type QueryResult struct {
	Tables []QueryTable `json:"tables"`
}

// QueryTable keeps rows raw. Rows are JSON objects whose key order
// carries column position, which a map decode would destroy.
type QueryTable struct {
	Rows json.RawMessage `json:"rows"`
}
