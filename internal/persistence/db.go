// Package persistence records simulation runs and their tick reports in
// SQLite, and streams tick reports to compressed JSONL logs.
//
// Pedestrian state is never written back or reloaded; every run starts from
// its seed.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/pedsim/internal/engine"
)

// DB wraps a SQLite connection for run history.
type DB struct {
	conn *sqlx.DB
}

// Run is one recorded simulation run.
type Run struct {
	ID        string    `db:"id" json:"id"`
	Seed      int64     `db:"seed" json:"seed"`
	Peds      int       `db:"peds" json:"peds"`
	Config    string    `db:"config_json" json:"config"`
	StartedAt time.Time `db:"started_at" json:"started_at"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		peds INTEGER NOT NULL,
		config_json TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tick_reports (
		run_id TEXT NOT NULL REFERENCES runs(id),
		tick INTEGER NOT NULL,
		alive INTEGER NOT NULL,
		moving INTEGER NOT NULL,
		collisions INTEGER NOT NULL,
		ped_collisions INTEGER NOT NULL,
		arrivals INTEGER NOT NULL,
		reroutes INTEGER NOT NULL,
		partial_routes INTEGER NOT NULL,
		no_routes INTEGER NOT NULL,
		stuck INTEGER NOT NULL,
		destroyed INTEGER NOT NULL,
		plot_changes INTEGER NOT NULL,
		crosswalks INTEGER NOT NULL,
		digest TEXT NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_run ON tick_reports(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// StartRun records a new run and returns it. cfg is stored as JSON.
func (db *DB) StartRun(seed int64, peds int, cfg any) (Run, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return Run{}, fmt.Errorf("marshal run config: %w", err)
	}
	run := Run{
		ID:        uuid.NewString(),
		Seed:      seed,
		Peds:      peds,
		Config:    string(cfgJSON),
		StartedAt: time.Now().UTC(),
	}
	_, err = db.conn.NamedExec(`INSERT INTO runs (id, seed, peds, config_json, started_at)
		VALUES (:id, :seed, :peds, :config_json, :started_at)`, run)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	slog.Info("run started", "run", run.ID, "seed", seed, "peds", peds)
	return run, nil
}

// Runs returns all recorded runs, newest first.
func (db *DB) Runs() ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT id, seed, peds, config_json, started_at FROM runs ORDER BY started_at DESC")
	return runs, err
}

// reportRow is the stored form of a tick report. The digest is kept as hex
// since SQLite integers are signed.
type reportRow struct {
	RunID string `db:"run_id"`
	engine.TickReport
	Digest string `db:"digest"`
}

// SaveReports appends tick reports for a run.
func (db *DB) SaveReports(runID string, reports []engine.TickReport) error {
	if len(reports) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(`INSERT OR REPLACE INTO tick_reports
		(run_id, tick, alive, moving, collisions, ped_collisions, arrivals, reroutes,
		 partial_routes, no_routes, stuck, destroyed, plot_changes, crosswalks, digest)
		VALUES (:run_id, :tick, :alive, :moving, :collisions, :ped_collisions, :arrivals, :reroutes,
		 :partial_routes, :no_routes, :stuck, :destroyed, :plot_changes, :crosswalks, :digest)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range reports {
		row := reportRow{RunID: runID, TickReport: r, Digest: fmt.Sprintf("%016x", r.Digest)}
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("insert report tick %d: %w", r.Tick, err)
		}
	}

	return tx.Commit()
}

// Reports returns the stored reports of a run in tick order.
func (db *DB) Reports(runID string) ([]engine.TickReport, error) {
	var rows []reportRow
	err := db.conn.Select(&rows, `SELECT run_id, tick, alive, moving, collisions, ped_collisions,
		arrivals, reroutes, partial_routes, no_routes, stuck, destroyed, plot_changes, crosswalks, digest
		FROM tick_reports WHERE run_id = ? ORDER BY tick`, runID)
	if err != nil {
		return nil, err
	}
	out := make([]engine.TickReport, len(rows))
	for i, row := range rows {
		out[i] = row.TickReport
		if _, err := fmt.Sscanf(row.Digest, "%x", &out[i].Digest); err != nil {
			return nil, fmt.Errorf("tick %d digest %q: %w", row.Tick, row.Digest, err)
		}
	}
	return out, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}
