package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"costdash/internal/amqp"
	"costdash/internal/core"
)

// AuditWriter persists upload metadata.
type AuditWriter interface {
	RecordUpload(ctx context.Context, m core.UploadMeta) (bool, error)
}

// AuditWorker writes upload events from AMQP into the audit log
type AuditWorker struct {
	audit AuditWriter
}

func NewAuditWorker(audit AuditWriter) *AuditWorker {
	return &AuditWorker{audit: audit}
}

// HandleUploadEvent processes a single upload event. Returning an error
// requeues the message.
func (w *AuditWorker) HandleUploadEvent(ctx context.Context, msg *amqp.UploadEvent) error {
	if msg.DatasetID == "" {
		// Nothing to key the row on; drop it rather than requeue forever
		slog.WarnContext(ctx, "Upload event without dataset ID, skipping", "file", msg.File)
		return nil
	}

	slog.InfoContext(ctx, "Processing upload event",
		"dataset_id", msg.DatasetID,
		"file", msg.File,
		"records", msg.Records)

	inserted, err := w.audit.RecordUpload(ctx, msg.Meta())
	if err != nil {
		return fmt.Errorf("record upload %s: %w", msg.DatasetID, err)
	}
	if !inserted {
		slog.InfoContext(ctx, "Duplicate upload event ignored", "dataset_id", msg.DatasetID)
	}
	return nil
}

// Consumer delivers upload events to a handler until ctx ends.
type Consumer interface {
	ConsumeUploads(ctx context.Context, handler func(context.Context, *amqp.UploadEvent) error) error
}

// Run consumes until ctx is cancelled. Cancellation is not an error.
func (w *AuditWorker) Run(ctx context.Context, c Consumer) error {
	err := c.ConsumeUploads(ctx, w.HandleUploadEvent)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
