package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SQLite keeps every collection in the single documents table created by
// the database package migrations. Merge writes use json_patch, so nested
// objects merge too and explicit nulls remove fields.
type SQLite struct {
	db    *sql.DB
	newID func() string
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, newID: uuid.NewString}
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, err
	}

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	data, err := unmarshalDoc(raw)
	if err != nil {
		return nil, err
	}
	return &Snapshot{ID: id, Data: data}, nil
}

func (s *SQLite) Set(ctx context.Context, collection, id string, data Doc, merge bool) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	raw, err := marshalDoc(data)
	if err != nil {
		return err
	}

	update := `data = excluded.data`
	if merge {
		update = `data = json_patch(documents.data, excluded.data)`
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, json(?))
		 ON CONFLICT (collection, id) DO UPDATE SET `+update+`, updated_at = CURRENT_TIMESTAMP`,
		collection, id, raw,
	)
	if err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

func (s *SQLite) Create(ctx context.Context, collection, id string, data Doc) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	raw, err := marshalDoc(data)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, json(?))
		 ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, raw,
	)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

func (s *SQLite) Query(ctx context.Context, collection string, filters ...Filter) ([]Snapshot, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(`SELECT id, data FROM documents WHERE collection = ?`)
	args := []any{collection}
	for _, f := range filters {
		if err := validateField(f.Field); err != nil {
			return nil, err
		}
		b.WriteString(` AND json_extract(data, '$.` + f.Field + `') = ?`)
		args = append(args, sqlValue(f.Value))
	}
	b.WriteString(` ORDER BY created_at ASC, rowid ASC`)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		data, err := unmarshalDoc(raw)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, Snapshot{ID: id, Data: data})
	}
	return snaps, rows.Err()
}

func (s *SQLite) Add(ctx context.Context, collection string, data Doc) (string, error) {
	id := s.newID()
	if err := s.Set(ctx, collection, id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// sqlValue maps a filter value onto what json_extract returns for it.
func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func marshalDoc(d Doc) (string, error) {
	if d == nil {
		d = Doc{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return string(b), nil
}

func unmarshalDoc(raw string) (Doc, error) {
	var d Doc
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return d, nil
}
