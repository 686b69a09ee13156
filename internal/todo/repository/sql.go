package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/todomini/todomini-server/internal/todo"
)

// Dialect selects placeholder syntax for SQLRepo.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

const schema = `CREATE TABLE IF NOT EXISTS todo_files (
	folder      TEXT   NOT NULL,
	filename    TEXT   NOT NULL,
	content     TEXT   NOT NULL,
	created_at  BIGINT NOT NULL,
	modified_at BIGINT NOT NULL,
	PRIMARY KEY (folder, filename)
)`

const schemaIndex = `CREATE INDEX IF NOT EXISTS todo_files_folder_modified ON todo_files (folder, modified_at DESC)`

// SQLRepo implements Store on a relational database. Timestamps are stored
// as microseconds since the epoch.
type SQLRepo struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLRepo(db *sql.DB, dialect Dialect) *SQLRepo {
	return &SQLRepo{db: db, dialect: dialect}
}

// Migrate creates the todo_files table and its ordering index.
func (s *SQLRepo) Migrate(ctx context.Context) error {
	for _, stmt := range []string{schema, schemaIndex} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate todo_files: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLRepo) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLRepo) Upsert(ctx context.Context, folder, filename, content string, at time.Time) error {
	us := todo.Truncate(at).UnixMicro()
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO todo_files (folder, filename, content, created_at, modified_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (folder, filename) DO UPDATE SET content = excluded.content, modified_at = excluded.modified_at`),
		folder, filename, content, us, us)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", folder, filename, err)
	}
	return nil
}

func (s *SQLRepo) Delete(ctx context.Context, folder, filename string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM todo_files WHERE folder = ? AND filename = ?`), folder, filename)
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", folder, filename, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLRepo) Latest(ctx context.Context, folder string) (*todo.Document, error) {
	docs, err := s.query(ctx, folder, " LIMIT 1")
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

func (s *SQLRepo) List(ctx context.Context, folder string) ([]*todo.Document, error) {
	return s.query(ctx, folder, "")
}

func (s *SQLRepo) query(ctx context.Context, folder, limit string) ([]*todo.Document, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT filename, content, created_at, modified_at FROM todo_files
		 WHERE folder = ? ORDER BY modified_at DESC, filename ASC`+limit), folder)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", folder, err)
	}
	defer rows.Close()

	out := []*todo.Document{}
	for rows.Next() {
		var (
			d                  todo.Document
			created, modified int64
		)
		if err := rows.Scan(&d.Filename, &d.Content, &created, &modified); err != nil {
			return nil, fmt.Errorf("scan %s: %w", folder, err)
		}
		d.Folder = folder
		d.CreatedAt = time.UnixMicro(created).UTC()
		d.ModifiedAt = time.UnixMicro(modified).UTC()
		out = append(out, &d)
	}
	return out, rows.Err()
}
