package track

import (
	"context"

	"tempo/internal/core"
)

// Store is the slice of the entity store the aggregation service
// consumes. Implementations return core.ErrNotFound (possibly wrapped)
// for unknown category names.
type Store interface {
	FindCategory(ctx context.Context, name string) (core.Category, error)
	ListCategoryProjects(ctx context.Context, category string) ([]core.Project, error)

	// RecordsForProject returns the project's records whose start epoch
	// falls in the half-open range [begin, end). A nil bound leaves that
	// side unbounded.
	RecordsForProject(ctx context.Context, project string, begin, end *int64) ([]core.Record, error)

	// RecordsStartedBetween returns every record whose start epoch falls
	// in [begin, end], inclusive on both ends. This is the day
	// aggregator's window policy and intentionally differs from
	// RecordsForProject's half-open range.
	RecordsStartedBetween(ctx context.Context, begin, end int64) ([]core.Record, error)
}

// RecordStore is the write-side store for record lifecycle operations.
// CreateRecord and UpdateRecord run check-then-write inside a single
// transaction so at most one open record ever exists.
type RecordStore interface {
	CreateRecord(ctx context.Context, rec core.Record) (core.Record, error)
	UpdateRecord(ctx context.Context, rec core.Record) (core.Record, error)
	DeleteRecord(ctx context.Context, id int64) error
	GetRecord(ctx context.Context, id int64) (core.Record, error)
	ListRecords(ctx context.Context) ([]core.Record, error)

	// OpenRecord returns the record with no stop time, or
	// core.ErrNotFound when everything is stopped.
	OpenRecord(ctx context.Context) (core.Record, error)
}

// Publisher emits record lifecycle events for asynchronous consumers.
// A nil Publisher is valid and silently drops events.
type Publisher interface {
	PublishRecordEvent(ctx context.Context, id int64, event string) error
}
