package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tempo/internal/core"
)

// Record lifecycle events published to the export pipeline.
const (
	EventRecordCreated = "record.created"
	EventRecordUpdated = "record.updated"
	EventRecordStopped = "record.stopped"
)

// ErrProjectMismatch is returned when a stop request names a project
// other than the active record's.
var ErrProjectMismatch = errors.New("project does not match the active record")

// RecordService owns record writes: it validates, persists through the
// transactional store, and publishes lifecycle events. Publishing is
// best-effort; a failed publish never fails the write.
type RecordService struct {
	store RecordStore
	pub   Publisher
	clock core.Clock
}

func NewRecordService(store RecordStore, pub Publisher, clock core.Clock) *RecordService {
	if clock == nil {
		clock = core.SystemClock()
	}
	return &RecordService{store: store, pub: pub, clock: clock}
}

// Create persists a new record. A nil stop leaves the record open, which
// is rejected with core.ErrOpenRecordExists when another open record
// exists.
func (s *RecordService) Create(ctx context.Context, project string, start time.Time, stop *time.Time) (core.Record, error) {
	rec := core.Record{
		Project:        project,
		StartTimeEpoch: start.Unix(),
	}
	if stop != nil {
		v := stop.Unix()
		rec.StopTimeEpoch = &v
	}
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}

	created, err := s.store.CreateRecord(ctx, rec)
	if err != nil {
		return core.Record{}, fmt.Errorf("create record: %w", err)
	}

	slog.InfoContext(ctx, "Record created",
		"id", created.ID,
		"project", created.Project,
		"open", created.Open())

	s.publish(ctx, created, EventRecordCreated)
	return created, nil
}

// Update replaces project, start, and stop on an existing record. The
// same single-open-record rule applies as on create.
func (s *RecordService) Update(ctx context.Context, id int64, project string, start time.Time, stop *time.Time) (core.Record, error) {
	rec := core.Record{
		ID:             id,
		Project:        project,
		StartTimeEpoch: start.Unix(),
	}
	if stop != nil {
		v := stop.Unix()
		rec.StopTimeEpoch = &v
	}
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}

	updated, err := s.store.UpdateRecord(ctx, rec)
	if err != nil {
		return core.Record{}, fmt.Errorf("update record %d: %w", id, err)
	}

	s.publish(ctx, updated, EventRecordUpdated)
	return updated, nil
}

// Delete removes a record entirely. Records are atomic; there is no
// partial deletion.
func (s *RecordService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	return nil
}

func (s *RecordService) Get(ctx context.Context, id int64) (core.Record, error) {
	return s.store.GetRecord(ctx, id)
}

func (s *RecordService) List(ctx context.Context) ([]core.Record, error) {
	return s.store.ListRecords(ctx)
}

// Active returns the currently running record, or core.ErrNotFound.
func (s *RecordService) Active(ctx context.Context) (core.Record, error) {
	return s.store.OpenRecord(ctx)
}

// StopActive closes the running record at the given instant. The request
// must name the active record's project; anything else is rejected so a
// client cannot stop work it did not start.
func (s *RecordService) StopActive(ctx context.Context, project string, stop time.Time) (core.Record, error) {
	active, err := s.store.OpenRecord(ctx)
	if err != nil {
		return core.Record{}, fmt.Errorf("get active record: %w", err)
	}
	if active.Project != project {
		slog.WarnContext(ctx, "Stop request does not match active record",
			"requested", project,
			"active", active.Project)
		return core.Record{}, ErrProjectMismatch
	}

	v := stop.Unix()
	active.StopTimeEpoch = &v
	if err := active.Validate(); err != nil {
		return core.Record{}, err
	}

	updated, err := s.store.UpdateRecord(ctx, active)
	if err != nil {
		return core.Record{}, fmt.Errorf("stop record %d: %w", active.ID, err)
	}

	slog.InfoContext(ctx, "Record stopped",
		"id", updated.ID,
		"project", updated.Project,
		"elapsed", updated.Elapsed(s.clock.Now()))

	s.publish(ctx, updated, EventRecordStopped)
	return updated, nil
}

func (s *RecordService) publish(ctx context.Context, rec core.Record, event string) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishRecordEvent(ctx, rec.ID, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record event",
			"id", rec.ID,
			"event", event,
			"error", err)
	}
}
