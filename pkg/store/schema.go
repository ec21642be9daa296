package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// CreateSchema creates the database schema if it doesn't exist.
// The DDL is shared by the SQLite and PostgreSQL backends.
func CreateSchema(db *sql.DB, d dialect) error {
	if err := createSchemaVersionTable(db, d); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	if err := createFilesTable(db); err != nil {
		return fmt.Errorf("creating files table: %w", err)
	}

	if err := createTargetsTable(db); err != nil {
		return fmt.Errorf("creating targets table: %w", err)
	}

	if err := createTermsTable(db); err != nil {
		return fmt.Errorf("creating terms table: %w", err)
	}

	return nil
}

// ReadSchemaVersion returns the version recorded in db.
func ReadSchemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

func createSchemaVersionTable(db *sql.DB, d dialect) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Insert version if table is empty
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count)
	if err != nil {
		return err
	}

	if count == 0 {
		_, err = db.Exec(d.rebind("INSERT INTO schema_version (version) VALUES (?)"), SchemaVersion)
		return err
	}

	version, err := ReadSchemaVersion(db)
	if err != nil {
		return err
	}
	if version != SchemaVersion {
		return fmt.Errorf("unsupported schema version %d (want %d)", version, SchemaVersion)
	}
	return nil
}

func createFilesTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS files (
			uri TEXT PRIMARY KEY NOT NULL,
			content_id TEXT NOT NULL,
			seq BIGINT NOT NULL,
			references_json TEXT NOT NULL,
			range_json TEXT
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_files_content_id ON files(content_id)
	`)
	return err
}

func createTargetsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS targets (
			file_uri TEXT NOT NULL,
			idx INTEGER NOT NULL,
			name TEXT NOT NULL,
			range_json TEXT,
			PRIMARY KEY (file_uri, idx)
		)
	`)
	return err
}

func createTermsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS terms (
			file_uri TEXT NOT NULL,
			target_idx INTEGER NOT NULL,
			position INTEGER NOT NULL,
			target TEXT NOT NULL,
			identity TEXT,
			element_json TEXT NOT NULL,
			start_line INTEGER,
			start_character INTEGER,
			end_line INTEGER,
			end_character INTEGER,
			PRIMARY KEY (file_uri, target_idx, position)
		)
	`)
	if err != nil {
		return err
	}

	// Create index for efficient term lookup by target name
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_terms_target ON terms(target)
	`)
	return err
}
