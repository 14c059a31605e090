package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SyncTrigger string

const (
	SyncTriggerSchedule SyncTrigger = "schedule"
	SyncTriggerManual   SyncTrigger = "manual"
)

type SyncStatus string

const (
	SyncStatusPending   SyncStatus = "pending"
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusSucceeded SyncStatus = "succeeded"
	SyncStatusFailed    SyncStatus = "failed"
)

// MaxErrorDetailLen caps the stored first error detail. Upstream bodies
// can be arbitrarily large; only the head is worth keeping.
const MaxErrorDetailLen = 1024

// SyncRun records one execution of the workspace sync pipeline
type SyncRun struct {
	ID               string      `gorm:"type:char(36);primaryKey" json:"id"`
	Trigger          SyncTrigger `gorm:"type:enum('schedule','manual');not null" json:"trigger"`
	Status           SyncStatus  `gorm:"type:enum('pending','running','succeeded','failed');default:'pending'" json:"status"`
	WorkspaceName    string      `gorm:"size:255" json:"workspace_name"`
	WorkspaceID      string      `gorm:"type:char(36)" json:"workspace_id,omitempty"`
	TablesScanned    int         `json:"tables_scanned"`
	TablesFailed     int         `json:"tables_failed"`
	RowsExtracted    int         `json:"rows_extracted"`
	DocumentsIndexed int         `json:"documents_indexed"`
	DocumentsFailed  int         `json:"documents_failed"`
	FirstErrorDetail string      `gorm:"size:1024" json:"first_error_detail,omitempty"`
	StartedAt        *time.Time  `json:"started_at,omitempty"`
	FinishedAt       *time.Time  `json:"finished_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// TableName returns the table name for the SyncRun model
func (SyncRun) TableName() string {
	return "sync_runs"
}

// BeforeCreate generates a new UUID if ID is empty
func (sr *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if sr.ID == "" {
		sr.ID = uuid.New().String()
	}
	return nil
}

// SyncReport accumulates counters while a run executes. TablesScanned
// counts every table handed to the extractor, including tables whose
// query later failed.
type SyncReport struct {
	TablesScanned    int    `json:"tables_scanned"`
	TablesFailed     int    `json:"tables_failed"`
	RowsExtracted    int    `json:"rows_extracted"`
	DocumentsIndexed int    `json:"documents_indexed"`
	DocumentsFailed  int    `json:"documents_failed"`
	FirstErrorDetail string `json:"first_error_detail,omitempty"`
}

// RecordTableFailure counts a failed table query and keeps the first
// error detail seen in the run
func (r *SyncReport) RecordTableFailure(detail string) {
	r.TablesFailed++
	r.keepFirstError(detail)
}

// RecordPublishFailure counts a rejected document and keeps the first
// error detail seen in the run
func (r *SyncReport) RecordPublishFailure(detail string) {
	r.DocumentsFailed++
	r.keepFirstError(detail)
}

// TotalErrors is the sum of table and document failures
func (r *SyncReport) TotalErrors() int {
	return r.TablesFailed + r.DocumentsFailed
}

func (r *SyncReport) keepFirstError(detail string) {
	if r.FirstErrorDetail == "" {
		r.FirstErrorDetail = TruncateErrorDetail(detail)
	}
}

// TruncateErrorDetail trims detail to MaxErrorDetailLen bytes
func TruncateErrorDetail(detail string) string {
	if len(detail) > MaxErrorDetailLen {
		return detail[:MaxErrorDetailLen]
	}
	return detail
}

// ApplyReport copies final counters onto the run record
func (sr *SyncRun) ApplyReport(rep SyncReport) {
	sr.TablesScanned = rep.TablesScanned
	sr.TablesFailed = rep.TablesFailed
	sr.RowsExtracted = rep.RowsExtracted
	sr.DocumentsIndexed = rep.DocumentsIndexed
	sr.DocumentsFailed = rep.DocumentsFailed
	sr.FirstErrorDetail = rep.FirstErrorDetail
}
