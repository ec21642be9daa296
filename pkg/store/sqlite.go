package store

// SQLiteStore implements Store using SQLite. Builds with cgo use
// mattn/go-sqlite3; builds without cgo use the pure-Go modernc driver.
type SQLiteStore struct {
	*sqlStore
}

// NewSQLite creates a SQLite-based store.
// Use ":memory:" for in-memory database (useful for testing).
func NewSQLite(path string) (*SQLiteStore, error) {
	s, err := openSQL(sqliteDriver, path, dialectSQLite)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{sqlStore: s}, nil
}
