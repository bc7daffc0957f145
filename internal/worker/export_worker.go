package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tempo/internal/amqp"
	"tempo/internal/core"
	"tempo/internal/storage"
	"tempo/internal/track"
)

// RecordExporter is the destination for finished records; satisfied by
// the Google Sheets client.
type RecordExporter interface {
	AppendRecord(ctx context.Context, rec core.Record) (string, error)
}

// ExportWorker ships stopped records to the exporter. It is driven by
// AMQP events, with a periodic pending scan as a catch-up for anything
// a lost message left behind.
type ExportWorker struct {
	storage   *storage.SQLiteRepository
	exporter  RecordExporter
	batchSize int
}

func NewExportWorker(storage *storage.SQLiteRepository, exporter RecordExporter, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// HandleRecordEvent processes one event from the queue. Events for
// records that are still open (or deleted since) are acknowledged and
// dropped; the periodic scan will pick the record up once it stops.
func (w *ExportWorker) HandleRecordEvent(ctx context.Context, msg *amqp.RecordEventMessage) error {
	slog.InfoContext(ctx, "Processing record event",
		"id", msg.ID,
		"event", msg.Event)

	if msg.Event != track.EventRecordStopped && msg.Event != track.EventRecordCreated {
		return nil
	}

	rec, err := w.storage.GetRecord(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Record gone before export", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get record %d: %w", msg.ID, err)
	}
	if rec.Open() {
		return nil
	}

	return w.export(ctx, rec)
}

// ProcessPending exports any stopped records that never made it out,
// oldest first.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.storage.PendingExportRecords(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending records: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending record exports", "count", len(pending))

	for _, rec := range pending {
		if err := w.export(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to export record", "id", rec.ID, "error", err)
		}
	}
	return nil
}

func (w *ExportWorker) export(ctx context.Context, rec core.Record) error {
	ref, err := w.exporter.AppendRecord(ctx, rec)
	if err != nil {
		return fmt.Errorf("append record %d: %w", rec.ID, err)
	}

	if err := w.storage.MarkExported(ctx, rec.ID); err != nil {
		// The row is in the sheet; the next pending scan may duplicate
		// it, which beats losing it.
		slog.ErrorContext(ctx, "Failed to mark record exported", "id", rec.ID, "error", err)
		return nil
	}

	slog.InfoContext(ctx, "Record exported",
		"id", rec.ID,
		"project", rec.Project,
		"ref", ref)
	return nil
}
