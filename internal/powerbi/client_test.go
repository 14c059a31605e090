package powerbi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"

	"powerbi-glean-connector/internal/utils"
)

func testTokens() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	client, err := NewClient(serverURL, testTokens(), 0, 0)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("", testTokens(), 0, 0); err == nil {
		t.Error("Expected an error for empty base URL")
	}
	if _, err := NewClient("https://api.powerbi.com/v1.0/myorg", nil, 0, 0); err == nil {
		t.Error("Expected an error for nil token source")
	}
}

func TestResolveWorkspace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/groups" {
			t.Errorf("Expected path /groups, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("$filter"); got != "name eq 'Data Team'" {
			t.Errorf("Expected name filter, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Expected bearer auth header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value":[{"id":"ws-123","name":"Data Team"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	id, err := client.ResolveWorkspace(context.Background(), "Data Team")
	if err != nil {
		t.Fatalf("Failed to resolve workspace: %v", err)
	}
	if id != "ws-123" {
		t.Errorf("Expected workspace id ws-123, got %s", id)
	}
}

func TestResolveWorkspaceNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value":[]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.ResolveWorkspace(context.Background(), "Missing Team")
	if err == nil {
		t.Fatal("Expected an error for a missing workspace")
	}

	appErr, ok := utils.AsAppError(err)
	if !ok {
		t.Fatalf("Expected an AppError, got %T", err)
	}
	if appErr.Code != utils.ErrCodeWorkspaceNotFound {
		t.Errorf("Expected code %s, got %s", utils.ErrCodeWorkspaceNotFound, appErr.Code)
	}
}

func TestSubmitScan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/admin/workspaces/getInfo" {
			t.Errorf("Expected scan submission path, got %s", r.URL.Path)
		}
		query := r.URL.Query()
		for _, flag := range []string{"lineage", "datasourceDetails", "datasetSchema", "datasetExpressions"} {
			if query.Get(flag) != "true" {
				t.Errorf("Expected %s=true in query, got %q", flag, query.Get(flag))
			}
		}

		var req ScanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode scan request: %v", err)
		}
		if len(req.Workspaces) != 1 || req.Workspaces[0] != "ws-123" {
			t.Errorf("Expected workspaces [ws-123], got %v", req.Workspaces)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"id":"scan-1","status":"NotStarted"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	job, err := client.SubmitScan(context.Background(), "ws-123")
	if err != nil {
		t.Fatalf("Failed to submit scan: %v", err)
	}
	if job.ID != "scan-1" {
		t.Errorf("Expected scan id scan-1, got %s", job.ID)
	}
	if job.Status != ScanStatusNotStarted {
		t.Errorf("Expected status NotStarted, got %s", job.Status)
	}
}

func TestSubmitScanRejectsNonAccepted(t *testing.T) {
	// A 200 here means the service did not actually queue a scan job
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"scan-1"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.SubmitScan(context.Background(), "ws-123")
	if err == nil {
		t.Fatal("Expected an error for a non-202 response")
	}

	appErr, ok := utils.AsAppError(err)
	if !ok {
		t.Fatalf("Expected an AppError, got %T", err)
	}
	if appErr.Code != utils.ErrCodeScanSubmit {
		t.Errorf("Expected code %s, got %s", utils.ErrCodeScanSubmit, appErr.Code)
	}
}

func TestGetScanResult(t *testing.T) {
	payload := `{"workspaces":[{"id":"ws-123","name":"Data Team","datasets":[{"id":"ds-1","name":"Sales","tables":[{"name":"Orders"}]}]}]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/workspaces/scanResult/scan-1" {
			t.Errorf("Expected scan result path, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	scan, raw, err := client.GetScanResult(context.Background(), "scan-1")
	if err != nil {
		t.Fatalf("Failed to get scan result: %v", err)
	}

	if string(raw) != payload {
		t.Error("Expected raw payload to match the response body")
	}
	if len(scan.Workspaces) != 1 {
		t.Fatalf("Expected 1 workspace, got %d", len(scan.Workspaces))
	}
	if scan.Workspaces[0].Datasets[0].Tables[0].Name != "Orders" {
		t.Errorf("Expected table Orders, got %s", scan.Workspaces[0].Datasets[0].Tables[0].Name)
	}
}

func TestGetScanResultError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("scan storage unavailable"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, _, err := client.GetScanResult(context.Background(), "scan-1")
	if err == nil {
		t.Fatal("Expected an error for a failed result fetch")
	}

	appErr, ok := utils.AsAppError(err)
	if !ok {
		t.Fatalf("Expected an AppError, got %T", err)
	}
	if appErr.Code != utils.ErrCodeScanResult {
		t.Errorf("Expected code %s, got %s", utils.ErrCodeScanResult, appErr.Code)
	}
}

func TestQueryTableTop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/datasets/ds-1/executeQueries" {
			t.Errorf("Expected executeQueries path, got %s", r.URL.Path)
		}

		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode query request: %v", err)
		}
		if len(req.Queries) != 1 {
			t.Fatalf("Expected 1 query, got %d", len(req.Queries))
		}
		if req.Queries[0].Query != "EVALUATE TOPN(50, 'Orders')" {
			t.Errorf("Unexpected DAX query: %q", req.Queries[0].Query)
		}
		if !req.SerializerSettings.IncludeNulls {
			t.Error("Expected includeNulls to be set")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"tables":[{"rows":[
			{"Orders[OrderID]": 1001, "Orders[Product]": "Chair"},
			{"Orders[OrderID]": 1002, "Orders[Product]": "Desk"}
		]}]}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	rows, err := client.QueryTableTop(context.Background(), "ds-1", "Orders", 50)
	if err != nil {
		t.Fatalf("Failed to query table: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].Cells[0].Column != "OrderID" || rows[0].Cells[0].Text != "1001" {
		t.Errorf("Unexpected first cell: %+v", rows[0].Cells[0])
	}
}

func TestQueryTableTopEscapesQuotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode query request: %v", err)
		}
		if req.Queries[0].Query != "EVALUATE TOPN(10, 'O''Brien Sales')" {
			t.Errorf("Expected doubled quotes in table name, got %q", req.Queries[0].Query)
		}
		w.Write([]byte(`{"results":[{"tables":[{"rows":[]}]}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	rows, err := client.QueryTableTop(context.Background(), "ds-1", "O'Brien Sales", 10)
	if err != nil {
		t.Fatalf("Failed to query table: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Expected no rows, got %d", len(rows))
	}
}

func TestQueryTableTopServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"DatasetExecuteQueriesError"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.QueryTableTop(context.Background(), "ds-1", "Orders", 50)
	if err == nil {
		t.Fatal("Expected an error for a failed query")
	}
}
