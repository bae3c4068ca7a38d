package export

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenPostgres connects to databaseURL through the pgx stdlib driver and applies
// the export schema.
func OpenPostgres(databaseURL string) (*SQLSink, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("verify postgres connection: %w", err)
	}

	sink, err := newSQLSink(db, dialectPostgres)
	if err != nil {
		db.Close()
		return nil, err
	}
	return sink, nil
}
