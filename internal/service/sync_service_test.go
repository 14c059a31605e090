package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"powerbi-glean-connector/internal/config"
	"powerbi-glean-connector/internal/glean"
	"powerbi-glean-connector/internal/logger"
	"powerbi-glean-connector/internal/model"
	"powerbi-glean-connector/internal/powerbi"
	"powerbi-glean-connector/internal/repository"
	"powerbi-glean-connector/internal/utils"

	"golang.org/x/oauth2"
)

// fakeRunRepo is an in-memory SyncRunRepository for orchestrator tests
type fakeRunRepo struct {
	mu    sync.Mutex
	runs  map[string]model.SyncRun
	order []string
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[string]model.SyncRun)}
}

func (r *fakeRunRepo) Create(ctx context.Context, run *model.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	r.runs[run.ID] = *run
	r.order = append(r.order, run.ID)
	return nil
}

func (r *fakeRunRepo) GetByID(ctx context.Context, id string) (*model.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	return &run, nil
}

func (r *fakeRunRepo) GetAll(ctx context.Context, status model.SyncStatus, limit, offset int) ([]*model.SyncRun, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*model.SyncRun
	for i := len(r.order) - 1; i >= 0; i-- {
		run := r.runs[r.order[i]]
		if status != "" && run.Status != status {
			continue
		}
		copied := run
		matched = append(matched, &copied)
	}
	total := int64(len(matched))
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *fakeRunRepo) Update(ctx context.Context, run *model.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = *run
	return nil
}

func (r *fakeRunRepo) GetLatest(ctx context.Context) (*model.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return nil, repository.ErrRunNotFound
	}
	run := r.runs[r.order[len(r.order)-1]]
	return &run, nil
}

func (r *fakeRunRepo) CountByStatus(ctx context.Context) (map[model.SyncStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[model.SyncStatus]int64)
	for _, run := range r.runs {
		counts[run.Status]++
	}
	return counts, nil
}

// pipelineServer scripts the Power BI side of a run: workspace lookup,
// scan lifecycle and per-table queries
type pipelineServer struct {
	server *httptest.Server

	mu            sync.Mutex
	groupCalls    int
	scanStatus    string
	tableRows     map[string]string // table name -> rows JSON
	tableStatus   map[string]int    // table name -> forced HTTP status
	statusGate    chan struct{}     // when set, scan stays Running until closed
	queriedTables []string
}

func newPipelineServer(t *testing.T) *pipelineServer {
	t.Helper()
	ps := &pipelineServer{
		scanStatus:  powerbi.ScanStatusSucceeded,
		tableRows:   make(map[string]string),
		tableStatus: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/groups", func(w http.ResponseWriter, r *http.Request) {
		ps.mu.Lock()
		ps.groupCalls++
		ps.mu.Unlock()
		fmt.Fprint(w, `{"value":[{"id":"ws-123","name":"Data Team"}]}`)
	})
	mux.HandleFunc("/admin/workspaces/getInfo", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"id":"scan-1","status":"NotStarted"}`)
	})
	mux.HandleFunc("/admin/workspaces/scanStatus/scan-1", func(w http.ResponseWriter, r *http.Request) {
		ps.mu.Lock()
		gate := ps.statusGate
		status := ps.scanStatus
		ps.mu.Unlock()
		if gate != nil {
			select {
			case <-gate:
			default:
				status = powerbi.ScanStatusRunning
			}
		}
		fmt.Fprintf(w, `{"id":"scan-1","status":"%s"}`, status)
	})
	mux.HandleFunc("/admin/workspaces/scanResult/scan-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"workspaces":[{"id":"ws-123","name":"Data Team","datasets":[{"id":"ds-1","name":"Sales","tables":[`+
			`{"name":"Orders"},{"name":"DateTableTemplate_8a6e1cff"},{"name":"Returns"}]}]}]}`)
	})
	mux.HandleFunc("/datasets/ds-1/executeQueries", func(w http.ResponseWriter, r *http.Request) {
		var req powerbi.QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode query request: %v", err)
		}
		table := tableFromDAX(req.Queries[0].Query)

		ps.mu.Lock()
		ps.queriedTables = append(ps.queriedTables, table)
		rows, hasRows := ps.tableRows[table]
		forced := ps.tableStatus[table]
		ps.mu.Unlock()

		if forced != 0 {
			w.WriteHeader(forced)
			fmt.Fprint(w, `{"error":{"code":"DatasetExecuteQueriesError"}}`)
			return
		}
		if !hasRows {
			rows = "[]"
		}
		fmt.Fprintf(w, `{"results":[{"tables":[{"rows":%s}]}]}`, rows)
	})

	ps.server = httptest.NewServer(mux)
	t.Cleanup(ps.server.Close)
	return ps
}

func tableFromDAX(query string) string {
	start := strings.IndexByte(query, '\'')
	end := strings.LastIndexByte(query, '\'')
	if start < 0 || end <= start {
		return ""
	}
	return query[start+1 : end]
}

// indexServer records the documents the publisher sends
type indexServer struct {
	server *httptest.Server

	mu         sync.Mutex
	indexedIDs []string
	failIDs    map[string]bool
}

func newIndexServer(t *testing.T) *indexServer {
	t.Helper()
	is := &indexServer{failIDs: make(map[string]bool)}
	is.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req glean.IndexDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode index request: %v", err)
		}

		is.mu.Lock()
		fail := is.failIDs[req.Document.ID]
		if !fail {
			is.indexedIDs = append(is.indexedIDs, req.Document.ID)
		}
		is.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"rejected"}`)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	t.Cleanup(is.server.Close)
	return is
}

func (is *indexServer) documents() []string {
	is.mu.Lock()
	defer is.mu.Unlock()
	return append([]string(nil), is.indexedIDs...)
}

func testConfig(pbiURL string) *config.Config {
	return &config.Config{
		PowerBI: config.PowerBIConfig{
			APIBaseURL:     pbiURL,
			PortalBaseURL:  "https://app.powerbi.com",
			WorkspaceName:  "Data Team",
			RowLimit:       50,
			SystemPrefixes: []string{"Date", "LocalDate", "RowNumber"},
		},
	}
}

func newTestSyncService(t *testing.T, cfg *config.Config, gleanURL string, repo repository.SyncRunRepository) SyncService {
	t.Helper()

	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
	client, err := powerbi.NewClient(cfg.PowerBI.APIBaseURL, tokens, 0, 0)
	if err != nil {
		t.Fatalf("Failed to create Power BI client: %v", err)
	}

	poller := powerbi.NewScanPoller(client, logger.NewNop())
	poller.SetPollInterval(5 * time.Millisecond)
	poller.SetMaxWait(2 * time.Second)

	gleanClient, err := glean.NewClient(gleanURL, "glean-token", "powerbiconductor")
	if err != nil {
		t.Fatalf("Failed to create Glean client: %v", err)
	}

	mapper := NewPositionalMapper(cfg.PowerBI.PortalBaseURL)
	return NewSyncService(cfg, logger.NewNop(), client, poller, gleanClient, mapper, nil, repo)
}

func waitForRun(t *testing.T, repo repository.SyncRunRepository, id string) *model.SyncRun {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		run, err := repo.GetByID(context.Background(), id)
		if err == nil && (run.Status == model.SyncStatusSucceeded || run.Status == model.SyncStatusFailed) {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for the run to finish")
	return nil
}

func waitForIdle(t *testing.T, svc SyncService) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if !svc.IsRunning() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for the service to go idle")
}

func TestSyncRunEndToEnd(t *testing.T) {
	pbi := newPipelineServer(t)
	pbi.tableRows["Orders"] = `[
		{"Orders[OrderID]": 1001, "Orders[Product]": "Chair", "Orders[Region]": "West"},
		{"Orders[OrderID]": 1002, "Orders[Product]": "Desk", "Orders[Region]": "East"}
	]`
	pbi.tableRows["Returns"] = `[]`
	index := newIndexServer(t)
	repo := newFakeRunRepo()

	svc := newTestSyncService(t, testConfig(pbi.server.URL), index.server.URL, repo)

	ticket, err := svc.RunNow(context.Background(), "")
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	if ticket.Status != model.SyncStatusPending {
		t.Errorf("Expected pending ticket, got %s", ticket.Status)
	}
	if ticket.Trigger != model.SyncTriggerManual {
		t.Errorf("Expected manual trigger, got %s", ticket.Trigger)
	}

	run := waitForRun(t, repo, ticket.ID)
	waitForIdle(t, svc)

	if run.Status != model.SyncStatusSucceeded {
		t.Fatalf("Expected run to succeed, got %s (%s)", run.Status, run.FirstErrorDetail)
	}
	if run.WorkspaceID != "ws-123" {
		t.Errorf("Expected resolved workspace id ws-123, got %s", run.WorkspaceID)
	}
	if run.TablesScanned != 2 {
		t.Errorf("Expected 2 tables scanned, got %d", run.TablesScanned)
	}
	if run.RowsExtracted != 2 {
		t.Errorf("Expected 2 rows extracted, got %d", run.RowsExtracted)
	}
	if run.DocumentsIndexed != 2 {
		t.Errorf("Expected 2 documents indexed, got %d", run.DocumentsIndexed)
	}
	if run.TablesFailed != 0 || run.DocumentsFailed != 0 {
		t.Errorf("Expected no failures, got %d/%d", run.TablesFailed, run.DocumentsFailed)
	}

	docs := index.documents()
	if len(docs) != 2 || docs[0] != "Sales_Orders_1001" || docs[1] != "Sales_Orders_1002" {
		t.Errorf("Expected documents Sales_Orders_1001, Sales_Orders_1002, got %v", docs)
	}

	// The calendar template table never reaches the query stage
	pbi.mu.Lock()
	queried := append([]string(nil), pbi.queriedTables...)
	pbi.mu.Unlock()
	for _, table := range queried {
		if strings.HasPrefix(table, "DateTableTemplate_") {
			t.Errorf("Expected system table to be skipped, but %s was queried", table)
		}
	}
}

func TestSyncRunIsolatesTableFailures(t *testing.T) {
	pbi := newPipelineServer(t)
	pbi.tableStatus["Orders"] = http.StatusInternalServerError
	pbi.tableRows["Returns"] = `[
		{"Returns[ReturnID]": 1, "Returns[Reason]": "damaged"},
		{"Returns[ReturnID]": 2, "Returns[Reason]": "wrong item"},
		{"Returns[ReturnID]": 3, "Returns[Reason]": "late"}
	]`
	index := newIndexServer(t)
	repo := newFakeRunRepo()

	svc := newTestSyncService(t, testConfig(pbi.server.URL), index.server.URL, repo)

	ticket, err := svc.RunNow(context.Background(), "")
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}

	run := waitForRun(t, repo, ticket.ID)
	waitForIdle(t, svc)

	if run.Status != model.SyncStatusSucceeded {
		t.Fatalf("Expected run to succeed despite a failed table, got %s", run.Status)
	}
	if run.TablesScanned != 2 {
		t.Errorf("Expected 2 tables scanned, got %d", run.TablesScanned)
	}
	if run.TablesFailed != 1 {
		t.Errorf("Expected 1 failed table, got %d", run.TablesFailed)
	}
	if run.RowsExtracted != 3 {
		t.Errorf("Expected 3 rows extracted, got %d", run.RowsExtracted)
	}
	if run.DocumentsIndexed != 3 {
		t.Errorf("Expected 3 documents indexed, got %d", run.DocumentsIndexed)
	}
	if run.FirstErrorDetail == "" {
		t.Error("Expected the first error detail to be recorded")
	}
}

func TestSyncRunPublishFailuresAreRecovered(t *testing.T) {
	pbi := newPipelineServer(t)
	pbi.tableRows["Orders"] = `[
		{"Orders[OrderID]": 1001, "Orders[Product]": "Chair"},
		{"Orders[OrderID]": 1002, "Orders[Product]": "Desk"}
	]`
	index := newIndexServer(t)
	index.failIDs["Sales_Orders_1001"] = true
	repo := newFakeRunRepo()

	svc := newTestSyncService(t, testConfig(pbi.server.URL), index.server.URL, repo)

	ticket, err := svc.RunNow(context.Background(), "")
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}

	run := waitForRun(t, repo, ticket.ID)
	waitForIdle(t, svc)

	if run.Status != model.SyncStatusSucceeded {
		t.Fatalf("Expected run to succeed despite a rejected document, got %s", run.Status)
	}
	if run.DocumentsIndexed != 1 {
		t.Errorf("Expected 1 document indexed, got %d", run.DocumentsIndexed)
	}
	if run.DocumentsFailed != 1 {
		t.Errorf("Expected 1 document failed, got %d", run.DocumentsFailed)
	}
	if !strings.Contains(run.FirstErrorDetail, "Sales_Orders_1001") {
		t.Errorf("Expected first error detail to name the document, got %q", run.FirstErrorDetail)
	}
}

func TestSyncRunFailsWhenScanFails(t *testing.T) {
	pbi := newPipelineServer(t)
	pbi.scanStatus = powerbi.ScanStatusFailed
	index := newIndexServer(t)
	repo := newFakeRunRepo()

	svc := newTestSyncService(t, testConfig(pbi.server.URL), index.server.URL, repo)

	ticket, err := svc.RunNow(context.Background(), "")
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}

	run := waitForRun(t, repo, ticket.ID)
	waitForIdle(t, svc)

	if run.Status != model.SyncStatusFailed {
		t.Fatalf("Expected run to fail, got %s", run.Status)
	}
	if run.TablesScanned != 0 {
		t.Errorf("Expected no tables scanned, got %d", run.TablesScanned)
	}
	if run.FirstErrorDetail == "" {
		t.Error("Expected a failure reason on the run record")
	}
	if len(index.documents()) != 0 {
		t.Errorf("Expected no documents indexed, got %v", index.documents())
	}
}

func TestRunNowWhileRunning(t *testing.T) {
	pbi := newPipelineServer(t)
	gate := make(chan struct{})
	pbi.statusGate = gate
	pbi.tableRows["Orders"] = `[]`
	index := newIndexServer(t)
	repo := newFakeRunRepo()

	svc := newTestSyncService(t, testConfig(pbi.server.URL), index.server.URL, repo)

	ticket, err := svc.RunNow(context.Background(), "")
	if err != nil {
		t.Fatalf("Failed to start first run: %v", err)
	}

	_, err = svc.RunNow(context.Background(), "")
	if err == nil {
		t.Fatal("Expected the second trigger to be rejected")
	}
	if !utils.IsErrorType(err, utils.ErrCodeSyncAlreadyRunning) {
		t.Errorf("Expected %s, got %v", utils.ErrCodeSyncAlreadyRunning, err)
	}

	// A scheduled tick during the run is skipped without creating a record
	svc.RunScheduled(context.Background())

	close(gate)
	waitForRun(t, repo, ticket.ID)
	waitForIdle(t, svc)

	runs, total, err := repo.GetAll(context.Background(), "", 0, 0)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if total != 1 || len(runs) != 1 {
		t.Errorf("Expected exactly one run record, got %d", total)
	}

	// The slot is free again
	second, err := svc.RunNow(context.Background(), "")
	if err != nil {
		t.Fatalf("Expected a new run after the first finished: %v", err)
	}
	waitForRun(t, repo, second.ID)
	waitForIdle(t, svc)
}

func TestRunUsesConfiguredWorkspaceID(t *testing.T) {
	pbi := newPipelineServer(t)
	pbi.tableRows["Orders"] = `[]`
	index := newIndexServer(t)
	repo := newFakeRunRepo()

	cfg := testConfig(pbi.server.URL)
	cfg.PowerBI.WorkspaceID = "ws-123"

	svc := newTestSyncService(t, cfg, index.server.URL, repo)

	ticket, err := svc.RunNow(context.Background(), "")
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	run := waitForRun(t, repo, ticket.ID)
	waitForIdle(t, svc)

	if run.Status != model.SyncStatusSucceeded {
		t.Fatalf("Expected run to succeed, got %s", run.Status)
	}

	pbi.mu.Lock()
	calls := pbi.groupCalls
	pbi.mu.Unlock()
	if calls != 0 {
		t.Errorf("Expected no workspace lookup with a pinned id, got %d calls", calls)
	}
}

func TestRunNowRequiresWorkspace(t *testing.T) {
	pbi := newPipelineServer(t)
	index := newIndexServer(t)
	repo := newFakeRunRepo()

	cfg := testConfig(pbi.server.URL)
	cfg.PowerBI.WorkspaceName = ""

	svc := newTestSyncService(t, cfg, index.server.URL, repo)

	_, err := svc.RunNow(context.Background(), "")
	if err == nil {
		t.Fatal("Expected an error without a configured workspace")
	}
	if !utils.IsErrorType(err, utils.ErrCodeValidationFailed) {
		t.Errorf("Expected a validation error, got %v", err)
	}
	if svc.IsRunning() {
		t.Error("Expected the run slot to stay free")
	}
}

func TestGetStatusReflectsHistory(t *testing.T) {
	pbi := newPipelineServer(t)
	pbi.tableRows["Orders"] = `[]`
	index := newIndexServer(t)
	repo := newFakeRunRepo()

	svc := newTestSyncService(t, testConfig(pbi.server.URL), index.server.URL, repo)

	status, err := svc.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("Failed to get status: %v", err)
	}
	if status.Running {
		t.Error("Expected no active run initially")
	}
	if status.LastRun != nil {
		t.Errorf("Expected no run history initially, got %+v", status.LastRun)
	}

	ticket, err := svc.RunNow(context.Background(), "")
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	waitForRun(t, repo, ticket.ID)
	waitForIdle(t, svc)

	status, err = svc.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("Failed to get status: %v", err)
	}
	if status.Running {
		t.Error("Expected no active run after completion")
	}
	if status.LastRun == nil || status.LastRun.ID != ticket.ID {
		t.Errorf("Expected the finished run as last run, got %+v", status.LastRun)
	}
	if status.Counts[model.SyncStatusSucceeded] != 1 {
		t.Errorf("Expected 1 succeeded run in counts, got %d", status.Counts[model.SyncStatusSucceeded])
	}
}
