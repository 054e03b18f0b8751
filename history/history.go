// Package history keeps the running-loss reports of training runs in a
// SQLite file so separate runs can be compared afterwards.
package history

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS loss_reports(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	ts REAL NOT NULL,
	epoch INTEGER NOT NULL,
	batch INTEGER NOT NULL,
	loss REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS loss_reports_run ON loss_reports(run_id, id);`

// Report is one "[epoch, batch] loss" line as printed by the trainer.
// Epoch and Batch are 1-based.
type Report struct {
	RunID string
	At    time.Time
	Epoch int
	Batch int
	Loss  float64
}

type Store struct {
	db *sql.DB
}

// Open creates the database file and its parent directory if needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "history dir")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open history %s", path)
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create history schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Record(runID string, epoch, batch int, loss float64) error {
	_, err := s.db.Exec(
		"INSERT INTO loss_reports(run_id, ts, epoch, batch, loss) VALUES(?,?,?,?,?)",
		runID, float64(time.Now().UnixMilli())/1000.0, epoch, batch, loss)
	return errors.Wrap(err, "insert loss report")
}

// Reports returns the reports of one run in insertion order.
func (s *Store) Reports(runID string) ([]Report, error) {
	rows, err := s.db.Query(
		"SELECT run_id, ts, epoch, batch, loss FROM loss_reports WHERE run_id = ? ORDER BY id",
		runID)
	if err != nil {
		return nil, errors.Wrap(err, "query loss reports")
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var (
			r  Report
			ts float64
		)
		if err := rows.Scan(&r.RunID, &ts, &r.Epoch, &r.Batch, &r.Loss); err != nil {
			return nil, errors.Wrap(err, "scan loss report")
		}
		r.At = time.UnixMilli(int64(ts * 1000))
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "read loss reports")
}

// Runs lists the distinct run ids, oldest first.
func (s *Store) Runs() ([]string, error) {
	rows, err := s.db.Query("SELECT run_id FROM loss_reports GROUP BY run_id ORDER BY MIN(id)")
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan run id")
		}
		out = append(out, id)
	}
	return out, errors.Wrap(rows.Err(), "read runs")
}

func (s *Store) Close() error {
	return s.db.Close()
}
