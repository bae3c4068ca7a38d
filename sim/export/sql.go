package export

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// schemaStatements is portable across SQLite and PostgreSQL.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id        TEXT PRIMARY KEY,
		seed          BIGINT NOT NULL,
		ticks         BIGINT NOT NULL,
		total_parcels INTEGER NOT NULL,
		dispatched    INTEGER NOT NULL,
		returned      INTEGER NOT NULL,
		in_system     INTEGER NOT NULL,
		return_events INTEGER NOT NULL,
		capacity      INTEGER NOT NULL,
		load_factor   DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS parcels (
		run_id        TEXT NOT NULL REFERENCES runs(run_id),
		parcel_id     TEXT NOT NULL,
		status        TEXT NOT NULL,
		priority      INTEGER NOT NULL,
		size          TEXT NOT NULL,
		destination   TEXT NOT NULL,
		arrival_tick  BIGINT NOT NULL,
		dispatch_tick BIGINT NOT NULL,
		return_count  INTEGER NOT NULL,
		PRIMARY KEY (run_id, parcel_id)
	)`,
	`CREATE TABLE IF NOT EXISTS status_history (
		run_id    TEXT NOT NULL,
		parcel_id TEXT NOT NULL,
		seq       INTEGER NOT NULL,
		status    TEXT NOT NULL,
		tick      BIGINT NOT NULL,
		PRIMARY KEY (run_id, parcel_id, seq),
		FOREIGN KEY (run_id, parcel_id) REFERENCES parcels(run_id, parcel_id)
	)`,
}

const (
	insertRunSQL = `INSERT INTO runs (run_id, seed, ticks, total_parcels, dispatched, returned, in_system, return_events, capacity, load_factor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertParcelSQL = `INSERT INTO parcels (run_id, parcel_id, status, priority, size, destination, arrival_tick, dispatch_tick, return_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertHistorySQL = `INSERT INTO status_history (run_id, parcel_id, seq, status, tick) VALUES (?, ?, ?, ?, ?)`
)

// dialect adapts the shared statements to a driver's placeholder syntax.
type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// SQLSink stores snapshots in the runs, parcels and status_history tables.
type SQLSink struct {
	db      *sql.DB
	dialect dialect
}

func newSQLSink(db *sql.DB, d dialect) (*SQLSink, error) {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return &SQLSink{db: db, dialect: d}, nil
}

// DB returns the underlying sql.DB for direct queries.
func (s *SQLSink) DB() *sql.DB {
	return s.db
}

// Export writes snap in a single transaction. A run ID can be exported only once.
func (s *SQLSink) Export(ctx context.Context, snap Snapshot) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin export: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logrus.Warnf("export rollback failed: %v", rbErr)
			}
		}
	}()

	c := snap.Counters
	if _, err = tx.ExecContext(ctx, s.dialect.rebind(insertRunSQL),
		snap.RunID, snap.Seed, snap.Ticks, len(snap.Records),
		c.Dispatched, c.Returned, c.InSystem, c.ReturnEvents,
		snap.Capacity, snap.LoadFactor); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", snap.RunID, err)
	}

	parcelStmt, err := tx.PrepareContext(ctx, s.dialect.rebind(insertParcelSQL))
	if err != nil {
		return fmt.Errorf("failed to prepare parcel insert: %w", err)
	}
	defer parcelStmt.Close()
	historyStmt, err := tx.PrepareContext(ctx, s.dialect.rebind(insertHistorySQL))
	if err != nil {
		return fmt.Errorf("failed to prepare history insert: %w", err)
	}
	defer historyStmt.Close()

	for _, r := range snap.Records {
		if _, err = parcelStmt.ExecContext(ctx, snap.RunID, r.ID, r.Status.String(), int(r.Priority),
			r.Size.String(), r.Destination, r.ArrivalTick, r.DispatchTick, r.ReturnCount); err != nil {
			return fmt.Errorf("failed to insert parcel %s: %w", r.ID, err)
		}
		// History is most recent first; seq 0 is the oldest entry.
		for i, h := range r.History {
			seq := len(r.History) - 1 - i
			if _, err = historyStmt.ExecContext(ctx, snap.RunID, r.ID, seq, h.Status.String(), h.Tick); err != nil {
				return fmt.Errorf("failed to insert history of %s: %w", r.ID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}
	logrus.Infof("exported %d parcel record(s) for run %s", len(snap.Records), snap.RunID)
	return nil
}

// Close closes the database connection.
func (s *SQLSink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
