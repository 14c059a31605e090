package service

import (
	"context"

	"powerbi-glean-connector/internal/glean"
	"powerbi-glean-connector/internal/logger"
	"powerbi-glean-connector/internal/middleware"
	"powerbi-glean-connector/internal/model"
)

// IndexPublisher pushes mapped documents to the search index and
// accounts the outcome on the run report
type IndexPublisher struct {
	client *glean.Client
	log    logger.Logger
}

// NewIndexPublisher creates a publisher backed by the given index
// client
func NewIndexPublisher(client *glean.Client, log logger.Logger) *IndexPublisher {
	return &IndexPublisher{
		client: client,
		log:    log,
	}
}

// Publish indexes one document. A rejection is recorded on the report
// and never stops the run. The first rejection in a run is logged with
// the full error body; later ones get a debug line to bound log
// volume.
func (p *IndexPublisher) Publish(ctx context.Context, doc *model.Document, report *model.SyncReport) bool {
	err := p.client.IndexDocument(ctx, doc)
	if err == nil {
		report.DocumentsIndexed++
		return true
	}

	firstFailure := report.DocumentsFailed == 0
	report.RecordPublishFailure(err.Error())
	middleware.RecordPipelineError("publish")

	if firstFailure {
		p.log.Error("index rejected document %s: %v", doc.ID, err)
	} else {
		p.log.Debug("index rejected document %s", doc.ID)
	}
	return false
}
