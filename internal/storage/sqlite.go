// Package storage provides SQLite-based persistence for run history:
// recorded runs, their per-tick checksums and the VM snapshots taken at
// checksum ticks. Uses the pure-Go modernc.org/sqlite driver to avoid CGO
// dependencies.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/lockstep"
)

// ErrUnknownRun is returned when a run id is not in the history.
var ErrUnknownRun = errors.New("storage: unknown run")

// Store manages the SQLite database connection for run history.
type Store struct {
	db *sql.DB
}

// Run is one recorded simulation run.
type Run struct {
	ID        int64
	Scenario  string
	Seed      uint32
	Ticks     int
	FinalHash uint64
	CreatedAt time.Time
}

// Checksum is the game hash of a run at one tick.
type Checksum struct {
	Tick core.GameTime
	Hash uint64
}

// Snapshot is a unit's serialized VM state at one tick.
type Snapshot struct {
	Tick core.GameTime
	Unit core.UnitID
	Blob []byte
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
// Hashes are stored as the int64 with the same bits; SQLite integers are
// signed.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scenario TEXT NOT NULL,
			seed INTEGER NOT NULL,
			ticks INTEGER NOT NULL DEFAULT 0,
			final_hash INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_runs_scenario ON runs(scenario);

		CREATE TABLE IF NOT EXISTS checksums (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			tick INTEGER NOT NULL,
			hash INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick)
		);

		CREATE TABLE IF NOT EXISTS snapshots (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			tick INTEGER NOT NULL,
			unit_id INTEGER NOT NULL,
			blob BLOB NOT NULL,
			PRIMARY KEY (run_id, tick, unit_id)
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// BeginRun inserts a run record and returns a writer for its checksums and
// snapshots. Call Finish on the writer when the run ends.
func (s *Store) BeginRun(scenario string, seed uint32) (*RunWriter, error) {
	result, err := s.db.Exec(
		"INSERT INTO runs (scenario, seed) VALUES (?, ?)",
		scenario, int64(seed),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot save run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("storage: cannot get inserted ID: %w", err)
	}

	return &RunWriter{store: s, id: id}, nil
}

// RunWriter records the history of one run. It implements
// lockstep.Recorder.
type RunWriter struct {
	store *Store
	id    int64
}

var _ lockstep.Recorder = (*RunWriter)(nil)

// ID returns the run id.
func (w *RunWriter) ID() int64 {
	return w.id
}

// RecordChecksum stores the game hash at tick.
func (w *RunWriter) RecordChecksum(tick core.GameTime, hash uint64) error {
	_, err := w.store.db.Exec(
		"INSERT OR REPLACE INTO checksums (run_id, tick, hash) VALUES (?, ?, ?)",
		w.id, int64(tick), int64(hash), //nolint:gosec // bit-preserving
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save checksum: %w", err)
	}
	return nil
}

// RecordSnapshot stores a unit's VM snapshot at tick.
func (w *RunWriter) RecordSnapshot(tick core.GameTime, unit core.UnitID, blob []byte) error {
	_, err := w.store.db.Exec(
		"INSERT OR REPLACE INTO snapshots (run_id, tick, unit_id, blob) VALUES (?, ?, ?, ?)",
		w.id, int64(tick), int64(unit.Value()), blob,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save snapshot: %w", err)
	}
	return nil
}

// Finish stores the run length and final hash.
func (w *RunWriter) Finish(ticks int, finalHash uint64) error {
	_, err := w.store.db.Exec(
		"UPDATE runs SET ticks = ?, final_hash = ? WHERE id = ?",
		ticks, int64(finalHash), w.id, //nolint:gosec // bit-preserving
	)
	if err != nil {
		return fmt.Errorf("storage: cannot finish run: %w", err)
	}
	return nil
}

// RecentRuns retrieves the most recent runs, optionally filtered by
// scenario.
func (s *Store) RecentRuns(scenario string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, scenario, seed, ticks, final_hash, created_at
		 FROM runs
		 WHERE ? = '' OR scenario = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		scenario, scenario, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return runs, nil
}

// RunByID retrieves a run record.
func (s *Store) RunByID(id int64) (Run, error) {
	row := s.db.QueryRow(
		`SELECT id, scenario, seed, ticks, final_hash, created_at
		 FROM runs
		 WHERE id = ?`,
		id,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w %d", ErrUnknownRun, id)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var seed, hash int64
	var createdAt any
	if err := row.Scan(&r.ID, &r.Scenario, &seed, &r.Ticks, &hash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("storage: cannot scan row: %w", err)
	}
	r.Seed = uint32(seed) //nolint:gosec // written from a uint32
	r.FinalHash = uint64(hash)

	// Parse the datetime - handle both time.Time and string
	switch v := createdAt.(type) {
	case time.Time:
		r.CreatedAt = v
	case string:
		if parsed, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			r.CreatedAt = parsed
		}
	}
	return r, nil
}

// Checksums retrieves a run's checksum series ordered by tick.
func (s *Store) Checksums(runID int64) ([]Checksum, error) {
	rows, err := s.db.Query(
		"SELECT tick, hash FROM checksums WHERE run_id = ? ORDER BY tick",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query checksums: %w", err)
	}
	defer rows.Close()

	var out []Checksum
	for rows.Next() {
		var tick, hash int64
		if err := rows.Scan(&tick, &hash); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		out = append(out, Checksum{Tick: core.GameTime(tick), Hash: uint64(hash)}) //nolint:gosec // bit-preserving
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return out, nil
}

// Snapshots retrieves the unit snapshots of a run at tick, in unit order.
func (s *Store) Snapshots(runID int64, tick core.GameTime) ([]Snapshot, error) {
	rows, err := s.db.Query(
		"SELECT unit_id, blob FROM snapshots WHERE run_id = ? AND tick = ? ORDER BY unit_id",
		runID, int64(tick),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var unit int64
		snap := Snapshot{Tick: tick}
		if err := rows.Scan(&unit, &snap.Blob); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		snap.Unit = core.NewUnitID(uint32(unit)) //nolint:gosec // written from a uint32
		out = append(out, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return out, nil
}

// Divergence describes how two checksum series compare.
type Divergence struct {
	Compared  int           // Ticks present in both runs
	Diverged  bool          // A common tick has different hashes
	FirstTick core.GameTime // First differing tick when Diverged
	Left      uint64
	Right     uint64
}

// DiffRuns compares the checksum series of two runs on the ticks both
// recorded.
func (s *Store) DiffRuns(left, right int64) (Divergence, error) {
	for _, id := range []int64{left, right} {
		if _, err := s.RunByID(id); err != nil {
			return Divergence{}, err
		}
	}
	a, err := s.Checksums(left)
	if err != nil {
		return Divergence{}, err
	}
	b, err := s.Checksums(right)
	if err != nil {
		return Divergence{}, err
	}
	return Compare(a, b), nil
}

// Compare walks two tick-ordered checksum series and reports the first
// common tick where they differ.
func Compare(a, b []Checksum) Divergence {
	var d Divergence
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Tick < b[j].Tick:
			i++
		case a[i].Tick > b[j].Tick:
			j++
		default:
			d.Compared++
			if !d.Diverged && a[i].Hash != b[j].Hash {
				d.Diverged = true
				d.FirstTick = a[i].Tick
				d.Left, d.Right = a[i].Hash, b[j].Hash
			}
			i++
			j++
		}
	}
	return d
}

// DeleteRun removes a run and its recorded data.
func (s *Store) DeleteRun(id int64) error {
	for _, q := range []string{
		"DELETE FROM snapshots WHERE run_id = ?",
		"DELETE FROM checksums WHERE run_id = ?",
		"DELETE FROM runs WHERE id = ?",
	} {
		if _, err := s.db.Exec(q, id); err != nil {
			return fmt.Errorf("storage: cannot delete run: %w", err)
		}
	}
	return nil
}
