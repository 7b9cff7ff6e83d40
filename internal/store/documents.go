package store

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jward/bazelnav/internal/index"
)

// Document is one cached index entry.
type Document struct {
	Path        string
	ContentHash string
	RootsHash   string
	Doc         *index.IndexedDocument
	Deps        []string
	IndexedAt   time.Time
}

// payload is the msgpack body of the payload column.
type payload struct {
	Doc  *index.IndexedDocument `msgpack:"doc"`
	Deps []string               `msgpack:"deps"`
}

func encodePayload(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(&payload{Doc: d.Doc, Deps: d.Deps}); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return buf.Bytes(), nil
}

func decodePayload(b []byte, d *Document) error {
	var p payload
	if err := msgpack.NewDecoder(bytes.NewReader(b)).Decode(&p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if p.Doc == nil {
		return errors.New("decode payload: empty document")
	}
	if p.Doc.Declarations == nil {
		p.Doc.Declarations = make(map[string]index.Declaration)
	}
	d.Doc = p.Doc
	d.Deps = p.Deps
	return nil
}

// PutDocument inserts or replaces the entry for d.Path.
func (s *Store) PutDocument(d *Document) error {
	body, err := encodePayload(d)
	if err != nil {
		return fmt.Errorf("put document %s: %w", d.Path, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO documents (path, content_hash, roots_hash, payload, indexed_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET content_hash = excluded.content_hash, roots_hash = excluded.roots_hash,
		 payload = excluded.payload, indexed_at = excluded.indexed_at`,
		d.Path, d.ContentHash, d.RootsHash, body, d.IndexedAt,
	)
	if err != nil {
		return fmt.Errorf("put document %s: %w", d.Path, err)
	}
	return nil
}

// DocumentByPath returns the cached entry for path, or nil if there is none.
func (s *Store) DocumentByPath(path string) (*Document, error) {
	d := &Document{}
	var body []byte
	err := s.db.QueryRow(
		"SELECT path, content_hash, roots_hash, payload, indexed_at FROM documents WHERE path = ?", path,
	).Scan(&d.Path, &d.ContentHash, &d.RootsHash, &body, &d.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("document by path: %w", err)
	}
	if err := decodePayload(body, d); err != nil {
		return nil, fmt.Errorf("document %s: %w", path, err)
	}
	return d, nil
}

// Paths returns every cached path in sorted order.
func (s *Store) Paths() ([]string, error) {
	rows, err := s.db.Query("SELECT path FROM documents ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("paths: %w", err)
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// DeleteDocuments removes the entries for paths.
func (s *Store) DeleteDocuments(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := s.db.Exec(
		"DELETE FROM documents WHERE path IN ("+placeholderList(len(paths))+")",
		stringsToArgs(paths)...,
	)
	if err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}
