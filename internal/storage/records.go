package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tempo/internal/core"
)

const recordColumns = `r.id, p.name, r.start_time_epoch, r.stop_time_epoch`

func scanRecord(row interface{ Scan(...any) error }) (core.Record, error) {
	var rec core.Record
	var stop sql.NullInt64
	if err := row.Scan(&rec.ID, &rec.Project, &rec.StartTimeEpoch, &stop); err != nil {
		return core.Record{}, err
	}
	if stop.Valid {
		rec.StopTimeEpoch = &stop.Int64
	}
	return rec, nil
}

// CreateRecord inserts a record inside a transaction that first checks
// for a running record, so two concurrent starts cannot both succeed.
func (r *SQLiteRepository) CreateRecord(ctx context.Context, rec core.Record) (core.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	projectID, err := projectIDByName(ctx, tx, rec.Project)
	if err != nil {
		return core.Record{}, err
	}

	if rec.Open() {
		if err := ensureNoOpenRecord(ctx, tx, 0); err != nil {
			return core.Record{}, err
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO records (project_id, start_time_epoch, stop_time_epoch) VALUES (?, ?, ?)`,
		projectID, rec.StartTimeEpoch, nullableEpoch(rec.StopTimeEpoch))
	if err != nil {
		return core.Record{}, mapOpenIndexError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Record{}, fmt.Errorf("record insert id: %w", err)
	}
	rec.ID = id

	if err := tx.Commit(); err != nil {
		return core.Record{}, fmt.Errorf("commit record: %w", err)
	}

	slog.InfoContext(ctx, "Record saved",
		"id", rec.ID,
		"project", rec.Project,
		"start", rec.StartTimeEpoch,
		"open", rec.Open())
	return rec, nil
}

// UpdateRecord rewrites project, start, and stop under the same
// single-open-record check, ignoring the record itself.
func (r *SQLiteRepository) UpdateRecord(ctx context.Context, rec core.Record) (core.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	projectID, err := projectIDByName(ctx, tx, rec.Project)
	if err != nil {
		return core.Record{}, err
	}

	if rec.Open() {
		if err := ensureNoOpenRecord(ctx, tx, rec.ID); err != nil {
			return core.Record{}, err
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE records SET project_id = ?, start_time_epoch = ?, stop_time_epoch = ? WHERE id = ?`,
		projectID, rec.StartTimeEpoch, nullableEpoch(rec.StopTimeEpoch), rec.ID)
	if err != nil {
		return core.Record{}, mapOpenIndexError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Record{}, fmt.Errorf("record %d: %w", rec.ID, core.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return core.Record{}, fmt.Errorf("commit record %d: %w", rec.ID, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) DeleteRecord(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) GetRecord(ctx context.Context, id int64) (core.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records r JOIN projects p ON p.id = r.project_id WHERE r.id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, fmt.Errorf("record %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("select record %d: %w", id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) ListRecords(ctx context.Context) ([]core.Record, error) {
	return r.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM records r JOIN projects p ON p.id = r.project_id
		  ORDER BY r.start_time_epoch DESC, r.id DESC`)
}

// OpenRecord returns the running record. Storage guarantees at most one;
// core.ErrNotFound means everything is stopped.
func (r *SQLiteRepository) OpenRecord(ctx context.Context) (core.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records r JOIN projects p ON p.id = r.project_id
		  WHERE r.stop_time_epoch IS NULL ORDER BY r.id LIMIT 1`)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, fmt.Errorf("open record: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("select open record: %w", err)
	}
	return rec, nil
}

// RecordsForProject filters on start epoch with a half-open range:
// begin inclusive, end exclusive. Used by the elapsed-time calculator.
func (r *SQLiteRepository) RecordsForProject(ctx context.Context, project string, begin, end *int64) ([]core.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records r JOIN projects p ON p.id = r.project_id
	  WHERE p.name = ?`
	args := []any{project}
	if begin != nil {
		query += ` AND r.start_time_epoch >= ?`
		args = append(args, *begin)
	}
	if end != nil {
		query += ` AND r.start_time_epoch < ?`
		args = append(args, *end)
	}
	query += ` ORDER BY r.start_time_epoch, r.id`
	return r.queryRecords(ctx, query, args...)
}

// RecordsStartedBetween filters on start epoch inclusively on both ends.
// This is the day aggregator's window policy, distinct from the
// half-open range above.
func (r *SQLiteRepository) RecordsStartedBetween(ctx context.Context, begin, end int64) ([]core.Record, error) {
	return r.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM records r JOIN projects p ON p.id = r.project_id
		  WHERE r.start_time_epoch >= ? AND r.start_time_epoch <= ?
		  ORDER BY r.start_time_epoch, r.id`, begin, end)
}

// Export bookkeeping for the worker.

func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE records SET exported = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark record %d exported: %w", id, err)
	}
	return nil
}

// PendingExportRecords returns stopped records not yet exported, oldest
// first, capped at limit.
func (r *SQLiteRepository) PendingExportRecords(ctx context.Context, limit int) ([]core.Record, error) {
	return r.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM records r JOIN projects p ON p.id = r.project_id
		  WHERE r.stop_time_epoch IS NOT NULL AND r.exported = 0
		  ORDER BY r.id LIMIT ?`, limit)
}

func (r *SQLiteRepository) queryRecords(ctx context.Context, query string, args ...any) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullableEpoch(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func projectIDByName(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM projects WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("project %s: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("select project %s: %w", name, err)
	}
	return id, nil
}

func ensureNoOpenRecord(ctx context.Context, tx *sql.Tx, excludeID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM records WHERE stop_time_epoch IS NULL AND id != ?`, excludeID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check open record: %w", err)
	}
	return fmt.Errorf("record %d is still running: %w", id, core.ErrOpenRecordExists)
}

// mapOpenIndexError translates the partial unique index violation into
// the domain conflict error; the index is the backstop for races the
// in-transaction check cannot see.
func mapOpenIndexError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "uniq_open_record") {
		return core.ErrOpenRecordExists
	}
	return fmt.Errorf("write record: %w", err)
}
