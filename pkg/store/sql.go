package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/praetorian-inc/annomerge/pkg/annotation"
	"github.com/praetorian-inc/annomerge/pkg/types"
)

// dialect captures the few differences between the SQL backends.
type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind rewrites ? placeholders to $N for PostgreSQL.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlStore implements Store on database/sql. SQLite and PostgreSQL
// differ only in driver and placeholder syntax.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

func openSQL(driver, dsn string, d dialect) (*sqlStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if d == dialectSQLite && dsn == MemoryPath {
		// Each pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Initialize schema
	if err := CreateSchema(db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &sqlStore{db: db, dialect: d}, nil
}

func (s *sqlStore) exec(tx *sql.Tx, query string, args ...any) error {
	_, err := tx.Exec(s.dialect.rebind(query), args...)
	return err
}

// AddFile stores a file, replacing any earlier file with the same URI.
func (s *sqlStore) AddFile(file *types.AnnotationFile, id types.ContentID) error {
	if file == nil {
		return fmt.Errorf("file is required")
	}

	refsJSON, err := json.Marshal(file.References)
	if err != nil {
		return fmt.Errorf("marshaling references: %w", err)
	}
	fileRange, err := marshalRange(file.Range)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"terms", "targets"} {
		if err := s.exec(tx, "DELETE FROM "+table+" WHERE file_uri = ?", file.URI); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	if err := s.exec(tx, "DELETE FROM files WHERE uri = ?", file.URI); err != nil {
		return fmt.Errorf("clearing file: %w", err)
	}

	var seq int64
	if err := tx.QueryRow("SELECT COALESCE(MAX(seq), 0) + 1 FROM files").Scan(&seq); err != nil {
		return fmt.Errorf("allocating sequence: %w", err)
	}

	err = s.exec(tx, `
		INSERT INTO files (uri, content_id, seq, references_json, range_json)
		VALUES (?, ?, ?, ?, ?)
	`, file.URI, id, seq, string(refsJSON), fileRange)
	if err != nil {
		return fmt.Errorf("inserting file: %w", err)
	}

	for idx, target := range file.Targets {
		targetRange, err := marshalRange(target.Range)
		if err != nil {
			return err
		}
		err = s.exec(tx, `
			INSERT INTO targets (file_uri, idx, name, range_json)
			VALUES (?, ?, ?, ?)
		`, file.URI, idx, target.Name, targetRange)
		if err != nil {
			return fmt.Errorf("inserting target: %w", err)
		}

		for pos, term := range target.Terms {
			if err := s.insertTerm(tx, file.URI, idx, pos, target.Name, term); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing file: %w", err)
	}
	return nil
}

func (s *sqlStore) insertTerm(tx *sql.Tx, uri string, targetIdx, pos int, target string, term *types.Element) error {
	elementJSON, err := json.Marshal(term)
	if err != nil {
		return fmt.Errorf("marshaling term: %w", err)
	}

	var identity *string
	if id, ok := annotation.TermIdentity(term); ok {
		identity = &id
	}

	var startLine, startChar, endLine, endChar *int
	if r := term.SourceRange(); r != nil {
		startLine, startChar = &r.Start.Line, &r.Start.Character
		endLine, endChar = &r.End.Line, &r.End.Character
	}

	err = s.exec(tx, `
		INSERT INTO terms (file_uri, target_idx, position, target, identity, element_json,
			start_line, start_character, end_line, end_character)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uri, targetIdx, pos, target, identity, string(elementJSON),
		startLine, startChar, endLine, endChar)
	if err != nil {
		return fmt.Errorf("inserting term: %w", err)
	}
	return nil
}

// GetFile retrieves a file by URI.
func (s *sqlStore) GetFile(uri string) (*types.AnnotationFile, error) {
	var refsJSON string
	var fileRange sql.NullString
	err := s.db.QueryRow(s.dialect.rebind(
		"SELECT references_json, range_json FROM files WHERE uri = ?"), uri).Scan(&refsJSON, &fileRange)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", uri, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying file: %w", err)
	}

	file := &types.AnnotationFile{
		Type:    types.AnnotationFileType,
		URI:     uri,
		Targets: []*types.Target{},
	}
	if err := json.Unmarshal([]byte(refsJSON), &file.References); err != nil {
		return nil, fmt.Errorf("unmarshaling references: %w", err)
	}
	if file.References == nil {
		file.References = []types.Reference{}
	}
	if file.Range, err = unmarshalRange(fileRange); err != nil {
		return nil, err
	}

	if err := s.loadTargets(file); err != nil {
		return nil, err
	}
	if err := s.loadTerms(file); err != nil {
		return nil, err
	}
	return file, nil
}

func (s *sqlStore) loadTargets(file *types.AnnotationFile) error {
	rows, err := s.db.Query(s.dialect.rebind(
		"SELECT name, range_json FROM targets WHERE file_uri = ? ORDER BY idx"), file.URI)
	if err != nil {
		return fmt.Errorf("querying targets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		target := &types.Target{Type: types.TargetType, Terms: []*types.Element{}}
		var targetRange sql.NullString
		if err := rows.Scan(&target.Name, &targetRange); err != nil {
			return fmt.Errorf("scanning target: %w", err)
		}
		if target.Range, err = unmarshalRange(targetRange); err != nil {
			return err
		}
		file.Targets = append(file.Targets, target)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating targets: %w", err)
	}
	return nil
}

func (s *sqlStore) loadTerms(file *types.AnnotationFile) error {
	rows, err := s.db.Query(s.dialect.rebind(
		"SELECT target_idx, element_json FROM terms WHERE file_uri = ? ORDER BY target_idx, position"), file.URI)
	if err != nil {
		return fmt.Errorf("querying terms: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx int
		var elementJSON string
		if err := rows.Scan(&idx, &elementJSON); err != nil {
			return fmt.Errorf("scanning term: %w", err)
		}
		if idx < 0 || idx >= len(file.Targets) {
			return fmt.Errorf("term references unknown target %d in %s", idx, file.URI)
		}
		term, err := unmarshalElement(elementJSON)
		if err != nil {
			return err
		}
		file.Targets[idx].Terms = append(file.Targets[idx].Terms, term)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating terms: %w", err)
	}
	return nil
}

// ListFiles returns a summary of every stored file in insertion order.
func (s *sqlStore) ListFiles() ([]FileRecord, error) {
	rows, err := s.db.Query(`
		SELECT f.uri, f.content_id,
			(SELECT COUNT(*) FROM targets t WHERE t.file_uri = f.uri),
			(SELECT COUNT(*) FROM terms m WHERE m.file_uri = f.uri)
		FROM files f
		ORDER BY f.seq
	`)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	records := []FileRecord{}
	for rows.Next() {
		var rec FileRecord
		if err := rows.Scan(&rec.URI, &rec.ContentID, &rec.Targets, &rec.Terms); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating files: %w", err)
	}
	return records, nil
}

// GetTerms returns every stored term for target.
func (s *sqlStore) GetTerms(target string) ([]*types.Element, error) {
	rows, err := s.db.Query(s.dialect.rebind(`
		SELECT m.element_json
		FROM terms m
		JOIN files f ON f.uri = m.file_uri
		WHERE m.target = ?
		ORDER BY f.seq, m.target_idx, m.position
	`), target)
	if err != nil {
		return nil, fmt.Errorf("querying terms: %w", err)
	}
	defer rows.Close()

	terms := []*types.Element{}
	for rows.Next() {
		var elementJSON string
		if err := rows.Scan(&elementJSON); err != nil {
			return nil, fmt.Errorf("scanning term: %w", err)
		}
		term, err := unmarshalElement(elementJSON)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating terms: %w", err)
	}
	return terms, nil
}

// FileExists checks if content with this ID has already been stored.
func (s *sqlStore) FileExists(id types.ContentID) (bool, error) {
	var count int
	err := s.db.QueryRow(s.dialect.rebind("SELECT COUNT(*) FROM files WHERE content_id = ?"), id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking file existence: %w", err)
	}
	return count > 0, nil
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

func marshalRange(r *types.Range) (*string, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling range: %w", err)
	}
	str := string(data)
	return &str, nil
}

func unmarshalRange(s sql.NullString) (*types.Range, error) {
	if !s.Valid {
		return nil, nil
	}
	var r types.Range
	if err := json.Unmarshal([]byte(s.String), &r); err != nil {
		return nil, fmt.Errorf("unmarshaling range: %w", err)
	}
	return &r, nil
}

func unmarshalElement(data string) (*types.Element, error) {
	var el types.Element
	if err := json.Unmarshal([]byte(data), &el); err != nil {
		return nil, fmt.Errorf("unmarshaling term: %w", err)
	}
	return &el, nil
}
