package timeseries

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Row is one timeseries record as served on the wire. Content is the decoded
// JSON stored in the table's content column.
type Row struct {
	TS      float64 `json:"ts"`
	DB      string  `json:"db"`
	Path    string  `json:"path"`
	Type    string  `json:"type"`
	Content any     `json:"content"`
}

// Source is a read-only handle to one timeseries database file. A single
// *sql.DB is shared by all requests; database/sql pools connections
// internally, so per-thread handles are unnecessary.
type Source struct {
	name string
	path string
	db   *sql.DB
}

// Open opens the database at path, creating the resources and meta tables if
// they do not exist so an empty file is a valid (empty) source. The source
// name is the file's basename.
func Open(path string) (*Source, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open timeseries db %s: %w", path, err)
	}
	s := &Source{
		name: filepath.Base(path),
		path: path,
		db:   db,
	}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Name returns the source's name (the basename of its path).
func (s *Source) Name() string {
	return s.name
}

// Close releases the underlying handle.
func (s *Source) Close() error {
	return s.db.Close()
}

func (s *Source) createTables() error {
	_, err := s.db.Exec(`create table if not exists resources (
		ts real primary key not null,
		modified real,
		path text,
		type text,
		content text);`)
	if err != nil {
		return fmt.Errorf("failed to create resources table: %w", err)
	}
	_, err = s.db.Exec(`create table if not exists meta (
		id integer primary key,
		version integer,
		properties text);`)
	if err != nil {
		return fmt.Errorf("failed to create meta table: %w", err)
	}
	return nil
}

// Properties returns the source's properties document, decoded from the meta
// table, tagged with the source name under "db".
func (s *Source) Properties(ctx context.Context) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `select properties from meta where id=1;`).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to read properties of %s: %w", s.name, err)
	}
	props := make(map[string]any)
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("failed to decode properties of %s: %w", s.name, err)
	}
	props["db"] = s.name
	return props, nil
}

// Range returns all rows in the half-open window (t0, t1] in ascending ts
// order. Rows with a NULL path default to "<db>/<ts>".
func (s *Source) Range(ctx context.Context, t0, t1 float64) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`select ts, modified, path, type, content from resources where ts > ? and ts <= ? order by ts asc;`,
		t0, t1)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.name, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			ts       float64
			modified sql.NullFloat64
			path     sql.NullString
			typ      sql.NullString
			content  sql.NullString
		)
		if err := rows.Scan(&ts, &modified, &path, &typ, &content); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", s.name, err)
		}
		row := Row{TS: ts, DB: s.name, Type: typ.String}
		if path.Valid {
			row.Path = path.String
		} else {
			row.Path = fmt.Sprintf("%s/%v", s.name, ts)
		}
		if content.Valid {
			if err := json.Unmarshal([]byte(content.String), &row.Content); err != nil {
				return nil, fmt.Errorf("failed to decode content at ts=%v in %s: %w", ts, s.name, err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Insert writes a record, stamping modified with the current wall clock.
// Overwrite replaces an existing row at the same ts. The server itself never
// writes; producers and tests use this to build tables.
func (s *Source) Insert(ts float64, typ, content string, overwrite bool) error {
	verb := "insert"
	if overwrite {
		verb = "replace"
	}
	modified := float64(time.Now().UnixNano()) / 1e9
	_, err := s.db.Exec(
		fmt.Sprintf(`%s into resources (ts, modified, type, content) values (?, ?, ?, ?);`, verb),
		ts, modified, typ, content)
	return err
}

// SetProperties stores the properties document in the meta table.
func (s *Source) SetProperties(properties string, version int) error {
	_, err := s.db.Exec(`replace into meta (id, version, properties) values (?, ?, ?);`,
		1, version, properties)
	return err
}
