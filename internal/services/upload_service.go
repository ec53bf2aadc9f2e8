package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"costdash/internal/amqp"
	"costdash/internal/core"
)

// ErrAuditDisabled is returned when neither an audit log nor a publisher
// is configured.
var ErrAuditDisabled = errors.New("upload audit log disabled")

// AuditLog stores upload metadata.
type AuditLog interface {
	RecordUpload(ctx context.Context, m core.UploadMeta) (bool, error)
	ListRecentUploads(ctx context.Context, limit int) ([]core.UploadMeta, error)
	Close() error
}

// EventPublisher announces uploads to the audit worker.
type EventPublisher interface {
	PublishUpload(ctx context.Context, ev *amqp.UploadEvent) error
	Close() error
}

// UploadService records upload metadata through AMQP when a publisher is
// configured and straight into the audit log otherwise.
type UploadService struct {
	audit     AuditLog
	publisher EventPublisher
}

// NewUploadService accepts nil for either dependency.
func NewUploadService(audit AuditLog, publisher EventPublisher) *UploadService {
	return &UploadService{
		audit:     audit,
		publisher: publisher,
	}
}

// Record never blocks an upload on bookkeeping: callers log the returned
// error and carry on.
func (s *UploadService) Record(ctx context.Context, m core.UploadMeta) error {
	if s.publisher != nil {
		err := s.publisher.PublishUpload(ctx, amqp.NewUploadEvent(m))
		if err == nil {
			return nil
		}
		slog.WarnContext(ctx, "Failed to publish upload event",
			"dataset_id", m.DatasetID, "error", err)
		if s.audit == nil {
			return fmt.Errorf("publish upload event: %w", err)
		}
		// Fall back to writing the audit row ourselves
	}

	if s.audit == nil {
		slog.DebugContext(ctx, "Upload audit disabled, skipping", "dataset_id", m.DatasetID)
		return nil
	}
	if _, err := s.audit.RecordUpload(ctx, m); err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// Recent lists recent uploads from the audit log.
func (s *UploadService) Recent(ctx context.Context, limit int) ([]core.UploadMeta, error) {
	if s.audit == nil {
		return nil, ErrAuditDisabled
	}
	return s.audit.ListRecentUploads(ctx, limit)
}

// Ping checks the audit log when it supports health checks.
func (s *UploadService) Ping(ctx context.Context) error {
	p, ok := s.audit.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

// Enabled reports whether any bookkeeping backend is configured.
func (s *UploadService) Enabled() bool {
	return s.audit != nil || s.publisher != nil
}

// Close closes both storage and AMQP connections
func (s *UploadService) Close() error {
	var errs []error

	if s.audit != nil {
		if err := s.audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close upload service: %w", errors.Join(errs...))
	}

	return nil
}
