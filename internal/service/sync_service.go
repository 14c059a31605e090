package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"powerbi-glean-connector/internal/archive"
	"powerbi-glean-connector/internal/config"
	"powerbi-glean-connector/internal/glean"
	"powerbi-glean-connector/internal/logger"
	"powerbi-glean-connector/internal/middleware"
	"powerbi-glean-connector/internal/model"
	"powerbi-glean-connector/internal/powerbi"
	"powerbi-glean-connector/internal/repository"
	"powerbi-glean-connector/internal/utils"
)

// SyncService runs the scan-extract-publish pipeline and tracks run
// history. At most one run is active at a time.
type SyncService interface {
	// RunNow starts a manually triggered run and returns its pending
	// record without waiting for completion. workspaceOverride selects a
	// different workspace than the configured one; empty means use the
	// configuration.
	RunNow(ctx context.Context, workspaceOverride string) (*model.SyncRun, error)

	// RunScheduled starts a schedule-triggered run. When a run is
	// already active the tick is skipped with a log line instead of
	// queueing.
	RunScheduled(ctx context.Context)

	// IsRunning reports whether a run is currently active
	IsRunning() bool

	// GetStatus returns the live state plus the most recent run record
	GetStatus(ctx context.Context) (*SyncStatusInfo, error)

	// ListRuns returns run history, newest first
	ListRuns(ctx context.Context, status model.SyncStatus, limit, offset int) ([]*model.SyncRun, int64, error)

	// GetRun returns a single run by ID
	GetRun(ctx context.Context, id string) (*model.SyncRun, error)

	// Stop cancels the active run, if any
	Stop()
}

// SyncStatusInfo is the live view returned by GetStatus
type SyncStatusInfo struct {
	Running bool                       `json:"running"`
	LastRun *model.SyncRun             `json:"lastRun,omitempty"`
	Counts  map[model.SyncStatus]int64 `json:"counts"`
}

type syncService struct {
	cfg       *config.Config
	log       logger.Logger
	client    *powerbi.Client
	poller    *powerbi.ScanPoller
	walker    *SchemaWalker
	extractor *TableExtractor
	mapper    DocumentMapper
	publisher *IndexPublisher
	archiver  *archive.ScanArchiver
	runs      repository.SyncRunRepository

	mu        sync.Mutex
	running   bool
	cancelRun context.CancelFunc
}

// NewSyncService wires the pipeline. archiver may be nil when raw scan
// archival is disabled.
func NewSyncService(
	cfg *config.Config,
	log logger.Logger,
	client *powerbi.Client,
	poller *powerbi.ScanPoller,
	gleanClient *glean.Client,
	mapper DocumentMapper,
	archiver *archive.ScanArchiver,
	runs repository.SyncRunRepository,
) SyncService {
	return &syncService{
		cfg:       cfg,
		log:       log,
		client:    client,
		poller:    poller,
		walker:    NewSchemaWalker(cfg.PowerBI.SystemPrefixes),
		extractor: NewTableExtractor(client, cfg.PowerBI.RowLimit),
		mapper:    mapper,
		publisher: NewIndexPublisher(gleanClient, log),
		archiver:  archiver,
		runs:      runs,
	}
}

func (s *syncService) RunNow(ctx context.Context, workspaceOverride string) (*model.SyncRun, error) {
	workspaceName := workspaceOverride
	if workspaceName == "" {
		workspaceName = s.cfg.PowerBI.WorkspaceName
	}
	return s.dispatch(ctx, model.SyncTriggerManual, workspaceName)
}

func (s *syncService) RunScheduled(ctx context.Context) {
	run, err := s.dispatch(ctx, model.SyncTriggerSchedule, s.cfg.PowerBI.WorkspaceName)
	if err != nil {
		if utils.IsErrorType(err, utils.ErrCodeSyncAlreadyRunning) {
			s.log.Info("skipping scheduled sync, a run is already in progress")
			return
		}
		s.log.Error("failed to start scheduled sync: %v", err)
		return
	}
	s.log.Info("scheduled sync run %s started", run.ID)
}

// dispatch acquires the single run slot, persists a pending record and
// hands the pipeline to a background goroutine. The returned record is
// the caller's ticket for polling progress.
func (s *syncService) dispatch(ctx context.Context, trigger model.SyncTrigger, workspaceName string) (*model.SyncRun, error) {
	if workspaceName == "" && s.cfg.PowerBI.WorkspaceID == "" {
		return nil, utils.NewValidationError("no workspace configured", "set powerbi.workspace_name or powerbi.workspace_id")
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, utils.NewErrorBuilder(utils.ErrCodeSyncAlreadyRunning).Build()
	}
	s.running = true
	s.mu.Unlock()

	run := &model.SyncRun{
		Trigger:       trigger,
		Status:        model.SyncStatusPending,
		WorkspaceName: workspaceName,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return nil, err
	}

	// Hand the caller a snapshot; the goroutine owns the live record
	// from here on.
	ticket := *run
	go s.execute(run)
	return &ticket, nil
}

// execute owns the run slot until the pipeline finishes. It runs on a
// background context so the run survives the triggering HTTP request.
func (s *syncService) execute(run *model.SyncRun) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancelRun = cancel
	s.mu.Unlock()

	middleware.SetSyncRunning(true)
	defer func() {
		cancel()
		s.mu.Lock()
		s.running = false
		s.cancelRun = nil
		s.mu.Unlock()
		middleware.SetSyncRunning(false)
	}()

	s.log.Info("sync run %s starting for workspace %q (trigger: %s)", run.ID, run.WorkspaceName, run.Trigger)

	started := time.Now()
	run.Status = model.SyncStatusRunning
	run.StartedAt = &started
	if err := s.runs.Update(ctx, run); err != nil {
		s.log.Error("failed to mark run %s as running: %v", run.ID, err)
	}

	report, err := s.runPipeline(ctx, run)

	finished := time.Now()
	run.FinishedAt = &finished
	run.ApplyReport(*report)
	middleware.RecordPipelineProgress(report.TablesScanned, report.RowsExtracted, report.DocumentsIndexed)

	if err != nil {
		run.Status = model.SyncStatusFailed
		if run.FirstErrorDetail == "" {
			run.FirstErrorDetail = model.TruncateErrorDetail(err.Error())
		}
		s.log.Error("sync run %s failed after %s: %v", run.ID, time.Since(started).Round(time.Millisecond), err)
	} else {
		run.Status = model.SyncStatusSucceeded
		s.log.Info("sync run %s finished in %s: %d tables scanned, %d rows extracted, %d documents indexed, %d errors",
			run.ID, time.Since(started).Round(time.Millisecond),
			report.TablesScanned, report.RowsExtracted, report.DocumentsIndexed, report.TotalErrors())
	}
	middleware.RecordSyncRun(string(run.Trigger), string(run.Status), time.Since(started))

	// Persist on a fresh context so a canceled run still records its
	// final state.
	updateCtx, updateCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer updateCancel()
	if err := s.runs.Update(updateCtx, run); err != nil {
		s.log.Error("failed to persist final state of run %s: %v", run.ID, err)
	}
}

// runPipeline performs one full pass: resolve workspace, scan, walk,
// then extract-map-publish per table. A returned error is fatal to the
// run; per-table and per-document failures are recorded on the report
// and the pass continues.
func (s *syncService) runPipeline(ctx context.Context, run *model.SyncRun) (*model.SyncReport, error) {
	report := &model.SyncReport{}

	workspaceID := ""
	if s.cfg.PowerBI.WorkspaceID != "" && run.WorkspaceName == s.cfg.PowerBI.WorkspaceName {
		workspaceID = s.cfg.PowerBI.WorkspaceID
	}
	if workspaceID == "" {
		id, err := s.client.ResolveWorkspace(ctx, run.WorkspaceName)
		if err != nil {
			middleware.RecordPipelineError("resolve")
			return report, err
		}
		workspaceID = id
	}
	run.WorkspaceID = workspaceID

	scanStarted := time.Now()
	scan, raw, err := s.poller.SubmitAndAwait(ctx, workspaceID)
	if err != nil {
		middleware.RecordPipelineError("scan")
		return report, err
	}
	middleware.ObserveScanWait(time.Since(scanStarted))

	if s.archiver != nil {
		s.archiver.ArchiveScan(ctx, run.ID, raw)
	}

	refs := s.walker.Walk(scan)
	s.log.Info("scan of workspace %s produced %d queryable tables", workspaceID, len(refs))

	for _, ref := range refs {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		report.TablesScanned++
		rows, err := s.extractor.Extract(ctx, ref)
		if err != nil {
			if utils.IsFatalSyncError(err) {
				middleware.RecordPipelineError("query")
				return report, err
			}
			report.RecordTableFailure(err.Error())
			middleware.RecordPipelineError("query")
			s.log.Warn("skipping table %s/%s: %v", ref.DatasetName, ref.TableName, err)
			continue
		}
		report.RowsExtracted += len(rows)

		for _, row := range rows {
			doc, ok := s.mapper.Map(ref, row)
			if !ok {
				continue
			}
			s.publisher.Publish(ctx, doc, report)
		}
	}

	return report, nil
}

func (s *syncService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *syncService) GetStatus(ctx context.Context) (*SyncStatusInfo, error) {
	info := &SyncStatusInfo{
		Running: s.IsRunning(),
	}

	last, err := s.runs.GetLatest(ctx)
	if err != nil && !errors.Is(err, repository.ErrRunNotFound) {
		return nil, err
	}
	info.LastRun = last

	counts, err := s.runs.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	info.Counts = counts

	return info, nil
}

func (s *syncService) ListRuns(ctx context.Context, status model.SyncStatus, limit, offset int) ([]*model.SyncRun, int64, error) {
	return s.runs.GetAll(ctx, status, limit, offset)
}

func (s *syncService) GetRun(ctx context.Context, id string) (*model.SyncRun, error) {
	// Validate UUID format
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrInvalidUUID
	}

	return s.runs.GetByID(ctx, id)
}

func (s *syncService) Stop() {
	s.mu.Lock()
	cancel := s.cancelRun
	s.mu.Unlock()
	if cancel != nil {
		s.log.Info("canceling active sync run")
		cancel()
	}
}
