package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tempo/internal/core"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustCategory(t *testing.T, repo *SQLiteRepository, name string) core.Category {
	t.Helper()
	c, err := repo.CreateCategory(context.Background(), core.Category{Name: name})
	if err != nil {
		t.Fatalf("create category %s: %v", name, err)
	}
	return c
}

func mustProject(t *testing.T, repo *SQLiteRepository, name string, categories ...string) core.Project {
	t.Helper()
	p, err := repo.CreateProject(context.Background(), core.Project{Name: name}, categories)
	if err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	return p
}

func mustRecord(t *testing.T, repo *SQLiteRepository, project string, start int64, stop *int64) core.Record {
	t.Helper()
	rec, err := repo.CreateRecord(context.Background(), core.Record{
		Project:        project,
		StartTimeEpoch: start,
		StopTimeEpoch:  stop,
	})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	return rec
}

func epoch(v int64) *int64 { return &v }

func TestCategoryCRUD(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	created := mustCategory(t, repo, "billable")
	if created.ID == 0 {
		t.Fatalf("expected an assigned id")
	}

	found, err := repo.FindCategory(ctx, "billable")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("expected id %d, got %d", created.ID, found.ID)
	}

	if _, err := repo.FindCategory(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	updated, err := repo.UpdateCategory(ctx, "billable", core.Category{Name: "client-work", Description: "renamed"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "client-work" || updated.Description != "renamed" {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if _, err := repo.FindCategory(ctx, "billable"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("old name must be gone, got %v", err)
	}

	if err := repo.DeleteCategory(ctx, "client-work"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteCategory(ctx, "client-work"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("double delete expected ErrNotFound, got %v", err)
	}
}

func TestProjectCategoryLinks(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	mustCategory(t, repo, "billable")
	mustCategory(t, repo, "internal")
	mustProject(t, repo, "p1", "billable", "internal")
	mustProject(t, repo, "p2", "billable")

	projects, err := repo.ListCategoryProjects(ctx, "billable")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 members, got %d", len(projects))
	}

	categories, err := repo.ListProjectCategories(ctx, "p1")
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(categories))
	}

	// An unknown category aborts the whole create; no orphan row remains.
	if _, err := repo.CreateProject(ctx, core.Project{Name: "p3"}, []string{"missing"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.FindProject(ctx, "p3"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("aborted create must not persist the project")
	}

	if err := repo.RemoveProjectFromCategory(ctx, "p1", "internal"); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	categories, err = repo.ListProjectCategories(ctx, "p1")
	if err != nil {
		t.Fatalf("list after unlink: %v", err)
	}
	if len(categories) != 1 || categories[0].Name != "billable" {
		t.Fatalf("expected only billable, got %v", categories)
	}
}

func TestDeleteCategoryKeepsProjects(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	mustCategory(t, repo, "billable")
	mustProject(t, repo, "p1", "billable")

	if err := repo.DeleteCategory(ctx, "billable"); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	if _, err := repo.FindProject(ctx, "p1"); err != nil {
		t.Fatalf("project must survive its category: %v", err)
	}
	categories, err := repo.ListProjectCategories(ctx, "p1")
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(categories) != 0 {
		t.Fatalf("join rows must cascade, got %v", categories)
	}
}

func TestDeleteProjectCascadesRecords(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	mustProject(t, repo, "p1")
	rec := mustRecord(t, repo, "p1", 1000, epoch(2000))

	if err := repo.DeleteProject(ctx, "p1"); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if _, err := repo.GetRecord(ctx, rec.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("record must cascade with its project, got %v", err)
	}
}

func TestRecordCRUD(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	mustProject(t, repo, "p1")
	mustProject(t, repo, "p2")

	rec := mustRecord(t, repo, "p1", 1000, epoch(2000))
	if rec.ID == 0 {
		t.Fatalf("expected an assigned id")
	}

	got, err := repo.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Project != "p1" || got.StartTimeEpoch != 1000 || *got.StopTimeEpoch != 2000 {
		t.Fatalf("unexpected record: %+v", got)
	}

	rec.Project = "p2"
	rec.StopTimeEpoch = epoch(3000)
	if _, err := repo.UpdateRecord(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err = repo.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.Project != "p2" || *got.StopTimeEpoch != 3000 {
		t.Fatalf("update not persisted: %+v", got)
	}

	// Writes against an unknown project are rejected up front.
	if _, err := repo.CreateRecord(ctx, core.Record{Project: "missing", StartTimeEpoch: 1}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.DeleteRecord(ctx, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteRecord(ctx, rec.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("double delete expected ErrNotFound, got %v", err)
	}
}

func TestSingleOpenRecord(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	mustProject(t, repo, "p1")
	mustProject(t, repo, "p2")

	open := mustRecord(t, repo, "p1", 1000, nil)

	if _, err := repo.CreateRecord(ctx, core.Record{Project: "p2", StartTimeEpoch: 2000}); !errors.Is(err, core.ErrOpenRecordExists) {
		t.Fatalf("second open record expected conflict, got %v", err)
	}

	// Closed records are unaffected by the open one.
	closed := mustRecord(t, repo, "p2", 500, epoch(800))

	// Reopening a closed record while another is open must fail too.
	closed.StopTimeEpoch = nil
	if _, err := repo.UpdateRecord(ctx, closed); !errors.Is(err, core.ErrOpenRecordExists) {
		t.Fatalf("reopen expected conflict, got %v", err)
	}

	// Updating the open record itself is fine.
	open.StartTimeEpoch = 1100
	if _, err := repo.UpdateRecord(ctx, open); err != nil {
		t.Fatalf("update open record: %v", err)
	}

	got, err := repo.OpenRecord(ctx)
	if err != nil {
		t.Fatalf("open record: %v", err)
	}
	if got.ID != open.ID || got.StartTimeEpoch != 1100 {
		t.Fatalf("unexpected open record: %+v", got)
	}

	open.StopTimeEpoch = epoch(5000)
	if _, err := repo.UpdateRecord(ctx, open); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := repo.OpenRecord(ctx); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound with everything stopped, got %v", err)
	}
}

func TestRecordRangePolicies(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	mustProject(t, repo, "p1")
	mustRecord(t, repo, "p1", 100, epoch(150))
	mustRecord(t, repo, "p1", 200, epoch(250))
	mustRecord(t, repo, "p1", 300, epoch(350))

	// Half-open: begin in, end out.
	begin, end := int64(100), int64(300)
	records, err := repo.RecordsForProject(ctx, "p1", &begin, &end)
	if err != nil {
		t.Fatalf("half-open: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("half-open expected 2 records, got %d", len(records))
	}

	// Inclusive both ends.
	records, err = repo.RecordsStartedBetween(ctx, 100, 300)
	if err != nil {
		t.Fatalf("inclusive: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("inclusive expected 3 records, got %d", len(records))
	}

	// Unbounded sides.
	records, err = repo.RecordsForProject(ctx, "p1", nil, &end)
	if err != nil {
		t.Fatalf("unbounded begin: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("unbounded begin expected 2 records, got %d", len(records))
	}
	records, err = repo.RecordsForProject(ctx, "p1", nil, nil)
	if err != nil {
		t.Fatalf("unbounded: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("unbounded expected 3 records, got %d", len(records))
	}
}

func TestExportBookkeeping(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	mustProject(t, repo, "p1")
	first := mustRecord(t, repo, "p1", 100, epoch(150))
	second := mustRecord(t, repo, "p1", 200, epoch(250))
	mustRecord(t, repo, "p1", 300, nil) // open, never pending

	pending, err := repo.PendingExportRecords(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != first.ID {
		t.Fatalf("expected [%d %d] pending, got %v", first.ID, second.ID, pending)
	}

	if err := repo.MarkExported(ctx, first.ID); err != nil {
		t.Fatalf("mark exported: %v", err)
	}
	pending, err = repo.PendingExportRecords(ctx, 10)
	if err != nil {
		t.Fatalf("pending after mark: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("expected only %d pending, got %v", second.ID, pending)
	}

	pending, err = repo.PendingExportRecords(ctx, 1)
	if err != nil {
		t.Fatalf("pending with limit: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("limit not applied, got %d", len(pending))
	}
}
