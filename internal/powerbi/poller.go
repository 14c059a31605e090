package powerbi

import (
	"context"
	"time"

	"powerbi-glean-connector/internal/logger"
	"powerbi-glean-connector/internal/model"
	"powerbi-glean-connector/internal/utils"
)

// ScanPoller drives a submitted scan job to completion
type ScanPoller struct {
	client       *Client
	log          logger.Logger
	pollInterval time.Duration
	maxWait      time.Duration
}

// NewScanPoller creates a poller with the service's default cadence
func NewScanPoller(client *Client, log logger.Logger) *ScanPoller {
	return &ScanPoller{
		client:       client,
		log:          log,
		pollInterval: 2 * time.Second,
		maxWait:      10 * time.Minute,
	}
}

// SubmitAndAwait submits a workspace scan and waits for its result tree
func (p *ScanPoller) SubmitAndAwait(ctx context.Context, workspaceID string) (*model.WorkspaceScan, []byte, error) {
	job, err := p.client.SubmitScan(ctx, workspaceID)
	if err != nil {
		return nil, nil, err
	}

	p.log.Info("scan %s submitted for workspace %s", job.ID, workspaceID)
	return p.Await(ctx, job)
}

// Await polls job status until it leaves Running, then fetches the
// result. A status poll error is treated as transient; the deadline
// bounds the whole wait either way.
func (p *ScanPoller) Await(ctx context.Context, job *ScanJob) (*model.WorkspaceScan, []byte, error) {
	started := time.Now()
	status := job.Status

	for {
		switch status {
		case ScanStatusSucceeded:
			return p.client.GetScanResult(ctx, job.ID)
		case ScanStatusFailed:
			return nil, nil, utils.NewScanFailedError(job.ID, status)
		case ScanStatusRunning, ScanStatusNotStarted, "":
			// not terminal yet
		default:
			return nil, nil, utils.NewScanFailedError(job.ID, status)
		}

		if waited := time.Since(started); waited >= p.maxWait {
			return nil, nil, utils.NewScanTimeoutError(job.ID, waited)
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(p.pollInterval):
		}

		current, err := p.client.GetScanStatus(ctx, job.ID)
		if err != nil {
			p.log.Warn("scan %s status poll failed: %v", job.ID, err)
			continue
		}
		status = current.Status
	}
}

// SetPollInterval sets a custom polling interval
func (p *ScanPoller) SetPollInterval(interval time.Duration) {
	p.pollInterval = interval
}

// SetMaxWait sets the ceiling on total polling time
func (p *ScanPoller) SetMaxWait(maxWait time.Duration) {
	p.maxWait = maxWait
}
