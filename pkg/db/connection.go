package db

import (
	"database/sql"
	"errors"
	"os"
	"strings"

	"github.com/code-sleuth/ike-wp/pkg/util"

	"github.com/rs/zerolog"
	"github.com/tursodatabase/libsql-client-go/libsql"
)

var (
	ErrDatabaseURLRequired = errors.New("TURSO_DATABASE_URL environment variable is required")
	ErrAuthTokenRequired   = errors.New("TURSO_AUTH_TOKEN environment variable is required")
)

type DB struct {
	*sql.DB
}

// NewConnection opens a Turso connection using TURSO_DATABASE_URL and TURSO_AUTH_TOKEN.
func NewConnection() (*DB, error) {
	return Open(os.Getenv("TURSO_DATABASE_URL"), os.Getenv("TURSO_AUTH_TOKEN"))
}

// Open connects to the libSQL database at dbURL and pings it.
func Open(dbURL, authToken string) (*DB, error) {
	logger := util.NewLogger(zerolog.ErrorLevel)
	if strings.EqualFold(dbURL, "") {
		logger.Error().Msg("TURSO_DATABASE_URL env variable not set")
		return nil, ErrDatabaseURLRequired
	}

	if strings.EqualFold(authToken, "") {
		logger.Error().Msg("TURSO_AUTH_TOKEN env variable not set")
		return nil, ErrAuthTokenRequired
	}

	connector, err := libsql.NewConnector(dbURL, libsql.WithAuthToken(authToken))
	if err != nil {
		logger.Err(err).Msg("failed to create connector")
		return nil, err
	}

	db := sql.OpenDB(connector)
	if err := db.Ping(); err != nil {
		logger.Err(err).Msg("failed to ping database")
		return nil, err
	}

	return &DB{DB: db}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
