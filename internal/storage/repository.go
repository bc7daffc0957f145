package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tempo/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the entity store: categories, projects, the
// project-category join, and time records, all in a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Foreign keys are off by default in SQLite; cascades depend on them.
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Categories

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, description) VALUES (?, ?)`,
		c.Name, c.Description)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category %s: %w", c.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category insert id: %w", err)
	}
	c.ID = id

	slog.InfoContext(ctx, "Category created", "id", c.ID, "name", c.Name)
	return c, nil
}

func (r *SQLiteRepository) FindCategory(ctx context.Context, name string) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM categories WHERE name = ?`, name).
		Scan(&c.ID, &c.Name, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %s: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("select category %s: %w", name, err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description FROM categories ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, name string, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, description = ? WHERE name = ?`,
		c.Name, c.Description, name)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Category{}, fmt.Errorf("category %s: %w", name, core.ErrNotFound)
	}
	return r.FindCategory(ctx, c.Name)
}

// DeleteCategory removes the category and its join rows. Member projects
// are left untouched.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete category %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %s: %w", name, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Category deleted", "name", name)
	return nil
}

// Projects

// CreateProject inserts the project and links it to the named categories
// in one transaction; an unknown category aborts the whole create.
func (r *SQLiteRepository) CreateProject(ctx context.Context, p core.Project, categories []string) (core.Project, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Project{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO projects (name, description) VALUES (?, ?)`,
		p.Name, p.Description)
	if err != nil {
		return core.Project{}, fmt.Errorf("insert project %s: %w", p.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Project{}, fmt.Errorf("project insert id: %w", err)
	}
	p.ID = id

	for _, cat := range categories {
		if err := linkProject(ctx, tx, p.ID, cat); err != nil {
			return core.Project{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Project{}, fmt.Errorf("commit project %s: %w", p.Name, err)
	}

	slog.InfoContext(ctx, "Project created", "id", p.ID, "name", p.Name, "categories", len(categories))
	return p, nil
}

func linkProject(ctx context.Context, tx *sql.Tx, projectID int64, category string) error {
	var catID int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM categories WHERE name = ?`, category).Scan(&catID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("category %s: %w", category, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("select category %s: %w", category, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO project_categories (project_id, category_id) VALUES (?, ?)`,
		projectID, catID); err != nil {
		return fmt.Errorf("link project to category %s: %w", category, err)
	}
	return nil
}

func (r *SQLiteRepository) FindProject(ctx context.Context, name string) (core.Project, error) {
	var p core.Project
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM projects WHERE name = ?`, name).
		Scan(&p.ID, &p.Name, &p.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Project{}, fmt.Errorf("project %s: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return core.Project{}, fmt.Errorf("select project %s: %w", name, err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]core.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []core.Project
	for rows.Next() {
		var p core.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProject rewrites the project row and replaces its category links
// with the given set.
func (r *SQLiteRepository) UpdateProject(ctx context.Context, name string, p core.Project, categories []string) (core.Project, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Project{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ? WHERE name = ?`,
		p.Name, p.Description, name)
	if err != nil {
		return core.Project{}, fmt.Errorf("update project %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Project{}, fmt.Errorf("project %s: %w", name, core.ErrNotFound)
	}

	var id int64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM projects WHERE name = ?`, p.Name).Scan(&id); err != nil {
		return core.Project{}, fmt.Errorf("select project %s: %w", p.Name, err)
	}
	p.ID = id

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM project_categories WHERE project_id = ?`, id); err != nil {
		return core.Project{}, fmt.Errorf("unlink project %s: %w", p.Name, err)
	}
	for _, cat := range categories {
		if err := linkProject(ctx, tx, id, cat); err != nil {
			return core.Project{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Project{}, fmt.Errorf("commit project %s: %w", p.Name, err)
	}
	return p, nil
}

// DeleteProject removes the project; its records and join rows cascade.
func (r *SQLiteRepository) DeleteProject(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %s: %w", name, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Project deleted", "name", name)
	return nil
}

// Membership

func (r *SQLiteRepository) ListCategoryProjects(ctx context.Context, category string) ([]core.Project, error) {
	cat, err := r.FindCategory(ctx, category)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.description
		   FROM projects p
		   JOIN project_categories pc ON pc.project_id = p.id
		  WHERE pc.category_id = ?
		  ORDER BY p.name`, cat.ID)
	if err != nil {
		return nil, fmt.Errorf("list projects of category %s: %w", category, err)
	}
	defer rows.Close()

	var out []core.Project
	for rows.Next() {
		var p core.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListProjectCategories(ctx context.Context, project string) ([]core.Category, error) {
	p, err := r.FindProject(ctx, project)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.description
		   FROM categories c
		   JOIN project_categories pc ON pc.category_id = c.id
		  WHERE pc.project_id = ?
		  ORDER BY c.name`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list categories of project %s: %w", project, err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) AddProjectToCategory(ctx context.Context, project, category string) error {
	p, err := r.FindProject(ctx, project)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := linkProject(ctx, tx, p.ID, category); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) RemoveProjectFromCategory(ctx context.Context, project, category string) error {
	p, err := r.FindProject(ctx, project)
	if err != nil {
		return err
	}
	cat, err := r.FindCategory(ctx, category)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`DELETE FROM project_categories WHERE project_id = ? AND category_id = ?`,
		p.ID, cat.ID)
	if err != nil {
		return fmt.Errorf("unlink project %s from category %s: %w", project, category, err)
	}
	return nil
}
