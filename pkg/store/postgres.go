package store

import (
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL through pgx.
type PostgresStore struct {
	*sqlStore
}

// NewPostgres creates a PostgreSQL-based store from a connection URL.
func NewPostgres(dsn string) (*PostgresStore, error) {
	s, err := openSQL("pgx", strings.TrimSpace(dsn), dialectPostgres)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{sqlStore: s}, nil
}
