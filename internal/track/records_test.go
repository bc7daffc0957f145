package track

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tempo/internal/core"
)

// fakeRecordStore mimics the transactional store: at most one open
// record, writes rejected otherwise.
type fakeRecordStore struct {
	records map[int64]core.Record
	nextID  int64
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{records: make(map[int64]core.Record), nextID: 1}
}

func (s *fakeRecordStore) openOther(excludeID int64) bool {
	for id, r := range s.records {
		if id != excludeID && r.Open() {
			return true
		}
	}
	return false
}

func (s *fakeRecordStore) CreateRecord(_ context.Context, rec core.Record) (core.Record, error) {
	if rec.Open() && s.openOther(0) {
		return core.Record{}, core.ErrOpenRecordExists
	}
	rec.ID = s.nextID
	s.nextID++
	s.records[rec.ID] = rec
	return rec, nil
}

func (s *fakeRecordStore) UpdateRecord(_ context.Context, rec core.Record) (core.Record, error) {
	if _, ok := s.records[rec.ID]; !ok {
		return core.Record{}, fmt.Errorf("record %d: %w", rec.ID, core.ErrNotFound)
	}
	if rec.Open() && s.openOther(rec.ID) {
		return core.Record{}, core.ErrOpenRecordExists
	}
	s.records[rec.ID] = rec
	return rec, nil
}

func (s *fakeRecordStore) DeleteRecord(_ context.Context, id int64) error {
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("record %d: %w", id, core.ErrNotFound)
	}
	delete(s.records, id)
	return nil
}

func (s *fakeRecordStore) GetRecord(_ context.Context, id int64) (core.Record, error) {
	rec, ok := s.records[id]
	if !ok {
		return core.Record{}, fmt.Errorf("record %d: %w", id, core.ErrNotFound)
	}
	return rec, nil
}

func (s *fakeRecordStore) ListRecords(_ context.Context) ([]core.Record, error) {
	out := make([]core.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeRecordStore) OpenRecord(_ context.Context) (core.Record, error) {
	for _, r := range s.records {
		if r.Open() {
			return r, nil
		}
	}
	return core.Record{}, fmt.Errorf("open record: %w", core.ErrNotFound)
}

type publishedEvent struct {
	id    int64
	event string
}

type fakePublisher struct {
	events []publishedEvent
	err    error
}

func (p *fakePublisher) PublishRecordEvent(_ context.Context, id int64, event string) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{id: id, event: event})
	return nil
}

func TestRecordServiceCreate(t *testing.T) {
	store := newFakeRecordStore()
	pub := &fakePublisher{}
	svc := NewRecordService(store, pub, fixedClock{now: at(2019, 7, 11, 12, 0)})
	ctx := context.Background()

	stop := at(2019, 7, 11, 10, 0)
	rec, err := svc.Create(ctx, "p1", at(2019, 7, 11, 9, 0), &stop)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == 0 || rec.Open() {
		t.Fatalf("expected a persisted closed record, got %+v", rec)
	}
	if len(pub.events) != 1 || pub.events[0].event != EventRecordCreated {
		t.Fatalf("expected one created event, got %v", pub.events)
	}
}

func TestRecordServiceCreateRejectsInvalid(t *testing.T) {
	store := newFakeRecordStore()
	svc := NewRecordService(store, nil, nil)
	ctx := context.Background()

	stop := at(2019, 7, 11, 8, 0)
	_, err := svc.Create(ctx, "p1", at(2019, 7, 11, 9, 0), &stop)
	if !errors.Is(err, core.ErrStopBeforeStart) {
		t.Fatalf("expected ErrStopBeforeStart, got %v", err)
	}
	if len(store.records) != 0 {
		t.Fatalf("invalid record must not be persisted")
	}

	if _, err := svc.Create(ctx, "", at(2019, 7, 11, 9, 0), nil); !errors.Is(err, core.ErrEmptyProject) {
		t.Fatalf("expected ErrEmptyProject, got %v", err)
	}
}

func TestRecordServiceSingleOpenRecord(t *testing.T) {
	store := newFakeRecordStore()
	svc := NewRecordService(store, nil, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "p1", at(2019, 7, 11, 9, 0), nil); err != nil {
		t.Fatalf("first open record: %v", err)
	}
	if _, err := svc.Create(ctx, "p2", at(2019, 7, 11, 10, 0), nil); !errors.Is(err, core.ErrOpenRecordExists) {
		t.Fatalf("second open record expected conflict, got %v", err)
	}

	// A closed record is always fine alongside the open one.
	stop := at(2019, 7, 11, 8, 0)
	if _, err := svc.Create(ctx, "p2", at(2019, 7, 11, 7, 0), &stop); err != nil {
		t.Fatalf("closed record alongside open: %v", err)
	}
}

func TestRecordServiceStopActive(t *testing.T) {
	store := newFakeRecordStore()
	pub := &fakePublisher{}
	svc := NewRecordService(store, pub, fixedClock{now: at(2019, 7, 11, 12, 0)})
	ctx := context.Background()

	created, err := svc.Create(ctx, "p1", at(2019, 7, 11, 9, 0), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stopped, err := svc.StopActive(ctx, "p1", at(2019, 7, 11, 11, 0))
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.ID != created.ID || stopped.Open() {
		t.Fatalf("expected the active record closed, got %+v", stopped)
	}
	if got := stopped.Elapsed(time.Time{}); got != 7200 {
		t.Fatalf("expected 7200 elapsed, got %d", got)
	}

	last := pub.events[len(pub.events)-1]
	if last.event != EventRecordStopped || last.id != created.ID {
		t.Fatalf("expected stopped event for %d, got %v", created.ID, last)
	}
}

func TestRecordServiceStopActiveMismatch(t *testing.T) {
	store := newFakeRecordStore()
	pub := &fakePublisher{}
	svc := NewRecordService(store, pub, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "p1", at(2019, 7, 11, 9, 0), nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	events := len(pub.events)

	if _, err := svc.StopActive(ctx, "p2", at(2019, 7, 11, 11, 0)); !errors.Is(err, ErrProjectMismatch) {
		t.Fatalf("expected ErrProjectMismatch, got %v", err)
	}

	active, err := svc.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if !active.Open() {
		t.Fatalf("mismatched stop must not close the record")
	}
	if len(pub.events) != events {
		t.Fatalf("mismatched stop must not publish")
	}
}

func TestRecordServiceStopActiveNoneRunning(t *testing.T) {
	svc := NewRecordService(newFakeRecordStore(), nil, nil)

	_, err := svc.StopActive(context.Background(), "p1", at(2019, 7, 11, 11, 0))
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordServicePublishFailureDoesNotFailWrite(t *testing.T) {
	store := newFakeRecordStore()
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewRecordService(store, pub, nil)

	stop := at(2019, 7, 11, 10, 0)
	rec, err := svc.Create(context.Background(), "p1", at(2019, 7, 11, 9, 0), &stop)
	if err != nil {
		t.Fatalf("create with failing publisher: %v", err)
	}
	if _, ok := store.records[rec.ID]; !ok {
		t.Fatalf("record must persist despite publish failure")
	}
}
