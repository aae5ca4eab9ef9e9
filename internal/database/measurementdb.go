package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/ipfsprobe/internal/model"
)

// FileName is the name of the database file inside its directory.
const FileName = "ipfsprobe.db"

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("measurement not found")

// MeasurementDB stores measurements in a SQLite file.
type MeasurementDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and the database file.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
func Open(dbDir string, opts Options) (*MeasurementDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		mode = "rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	mdb := &MeasurementDB{db: db, dbPath: dbPath}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			return nil, multierr.Append(fmt.Errorf("failed to enable WAL mode: %w", err), db.Close())
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to enable foreign keys: %w", err), db.Close())
	}
	if err := mdb.createTables(ctx); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to create tables: %w", err), db.Close())
	}

	return mdb, nil
}

// Path returns the database file path.
func (mdb *MeasurementDB) Path() string {
	return mdb.dbPath
}

// Close closes the database connection.
func (mdb *MeasurementDB) Close() error {
	return mdb.db.Close()
}

func (mdb *MeasurementDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dataset TEXT NOT NULL,
		label TEXT NOT NULL,
		seed INTEGER NOT NULL,
		sample_size INTEGER NOT NULL,
		total_rows INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		items INTEGER NOT NULL,
		items_with_providers INTEGER NOT NULL,
		website_reachable INTEGER NOT NULL,
		distinct_providers INTEGER NOT NULL,
		reachable_providers INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset, label);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS item_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		original_link TEXT NOT NULL,
		resolved_cid TEXT NOT NULL,
		website_reachable INTEGER NOT NULL,
		provider_count INTEGER NOT NULL,
		provider_ids TEXT NOT NULL,
		had_providers INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_run ON item_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_items_cid ON item_results(resolved_cid);

	CREATE TABLE IF NOT EXISTS peer_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		provider_id TEXT NOT NULL,
		appearances INTEGER NOT NULL,
		reachable INTEGER NOT NULL,
		ip_address TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_peers_run ON peer_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_peers_provider ON peer_results(provider_id);
	`
	_, err := mdb.db.ExecContext(ctx, schema)
	return err
}

// SaveMeasurement stores m and its results in one transaction and sets
// m.ID to the new run ID.
func (mdb *MeasurementDB) SaveMeasurement(ctx context.Context, m *model.Measurement) (id int64, err error) {
	tx, err := mdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	s := m.Summarize()
	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (dataset, label, seed, sample_size, total_rows, started_at, finished_at,
		items, items_with_providers, website_reachable, distinct_providers, reachable_providers)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Dataset, m.Label, m.Seed, m.SampleSize, m.TotalRows,
		formatTimestamp(m.StartedAt), formatTimestamp(m.FinishedAt),
		s.Items, s.ItemsWithProviders, s.WebsiteReachable, s.DistinctProviders, s.ReachableProviders,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	itemStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO item_results (run_id, original_link, resolved_cid, website_reachable, provider_count, provider_ids, had_providers)
	VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer itemStmt.Close()

	for _, item := range m.Items {
		ids, err := json.Marshal(item.ProviderIDs)
		if err != nil {
			return 0, fmt.Errorf("failed to encode provider IDs: %w", err)
		}
		if _, err := itemStmt.ExecContext(ctx, id, item.OriginalLink, item.ResolvedCID,
			item.WebsiteReachable, item.ProviderCount, string(ids), item.HadProviders); err != nil {
			return 0, fmt.Errorf("failed to insert item result: %w", err)
		}
	}

	peerStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO peer_results (run_id, provider_id, appearances, reachable, ip_address)
	VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare peer insert: %w", err)
	}
	defer peerStmt.Close()

	for _, peer := range m.Peers {
		var ip sql.NullString
		if peer.IPAddress != "" {
			ip = sql.NullString{String: peer.IPAddress, Valid: true}
		}
		if _, err := peerStmt.ExecContext(ctx, id, peer.ProviderID, peer.Appearances, peer.Reachable, ip); err != nil {
			return 0, fmt.Errorf("failed to insert peer result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit measurement: %w", err)
	}
	m.ID = id
	return id, nil
}

// RunFilter selects runs for ListRuns. Empty fields match everything.
type RunFilter struct {
	Dataset string
	Label   string

	// Limit keeps only the most recent runs. Zero means no limit.
	Limit int
}

// ListRuns returns the summaries of the runs matching filter, oldest first.
func (mdb *MeasurementDB) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunSummary, error) {
	var where []string
	var args []any
	if filter.Dataset != "" {
		where = append(where, "dataset = ?")
		args = append(args, filter.Dataset)
	}
	if filter.Label != "" {
		where = append(where, "label = ?")
		args = append(args, filter.Label)
	}

	query := `
	SELECT id, dataset, label, seed, sample_size, started_at, finished_at,
		items, items_with_providers, website_reachable, distinct_providers, reachable_providers
	FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := mdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.RunSummary, 0)
	for rows.Next() {
		var r model.RunSummary
		var started, finished string
		s := &r.Summary
		if err := rows.Scan(&r.ID, &r.Dataset, &r.Label, &r.Seed, &r.SampleSize, &started, &finished,
			&s.Items, &s.ItemsWithProviders, &s.WebsiteReachable, &s.DistinctProviders, &s.ReachableProviders); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = parseTimestamp(started)
		r.FinishedAt = parseTimestamp(finished)
		s.AvailabilityRatio = model.Ratio(s.ItemsWithProviders, s.Items)
		s.WebsiteRatio = model.Ratio(s.WebsiteReachable, s.Items)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	// Newest first was needed for LIMIT; callers get chronological order.
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	return runs, nil
}

// GetMeasurement loads a run with all of its results.
func (mdb *MeasurementDB) GetMeasurement(ctx context.Context, id int64) (*model.Measurement, error) {
	m := &model.Measurement{ID: id}
	var started, finished string
	err := mdb.db.QueryRowContext(ctx, `
	SELECT dataset, label, seed, sample_size, total_rows, started_at, finished_at
	FROM runs WHERE id = ?`, id).Scan(&m.Dataset, &m.Label, &m.Seed, &m.SampleSize, &m.TotalRows, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	m.StartedAt = parseTimestamp(started)
	m.FinishedAt = parseTimestamp(finished)

	if m.Items, err = mdb.loadItems(ctx, id); err != nil {
		return nil, err
	}
	if m.Peers, err = mdb.loadPeers(ctx, id); err != nil {
		return nil, err
	}
	return m, nil
}

func (mdb *MeasurementDB) loadItems(ctx context.Context, runID int64) ([]model.ItemResult, error) {
	rows, err := mdb.db.QueryContext(ctx, `
	SELECT original_link, resolved_cid, website_reachable, provider_count, provider_ids, had_providers
	FROM item_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query item results: %w", err)
	}
	defer rows.Close()

	items := make([]model.ItemResult, 0)
	for rows.Next() {
		var item model.ItemResult
		var ids string
		if err := rows.Scan(&item.OriginalLink, &item.ResolvedCID, &item.WebsiteReachable,
			&item.ProviderCount, &ids, &item.HadProviders); err != nil {
			return nil, fmt.Errorf("failed to scan item result: %w", err)
		}
		if err := json.Unmarshal([]byte(ids), &item.ProviderIDs); err != nil {
			return nil, fmt.Errorf("failed to decode provider IDs: %w", err)
		}
		if item.ProviderIDs == nil {
			item.ProviderIDs = []string{}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (mdb *MeasurementDB) loadPeers(ctx context.Context, runID int64) ([]model.PeerResult, error) {
	rows, err := mdb.db.QueryContext(ctx, `
	SELECT provider_id, appearances, reachable, ip_address
	FROM peer_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query peer results: %w", err)
	}
	defer rows.Close()

	peers := make([]model.PeerResult, 0)
	for rows.Next() {
		var peer model.PeerResult
		var ip sql.NullString
		if err := rows.Scan(&peer.ProviderID, &peer.Appearances, &peer.Reachable, &ip); err != nil {
			return nil, fmt.Errorf("failed to scan peer result: %w", err)
		}
		peer.IPAddress = ip.String
		peers = append(peers, peer)
	}
	return peers, rows.Err()
}

// ListDatasets returns the distinct dataset names with stored runs.
func (mdb *MeasurementDB) ListDatasets(ctx context.Context) ([]string, error) {
	rows, err := mdb.db.QueryContext(ctx, "SELECT DISTINCT dataset FROM runs ORDER BY dataset")
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	datasets := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, name)
	}
	return datasets, rows.Err()
}

// ProviderHistory counts, per run, whether providerID appeared and whether
// it was reachable. It returns the number of runs the provider was seen in
// and how many of those found it reachable.
func (mdb *MeasurementDB) ProviderHistory(ctx context.Context, providerID string) (seen, reachable int, err error) {
	err = mdb.db.QueryRowContext(ctx, `
	SELECT COUNT(*), COALESCE(SUM(reachable), 0)
	FROM peer_results WHERE provider_id = ?`, providerID).Scan(&seen, &reachable)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query provider history: %w", err)
	}
	return seen, reachable, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp tries each of timestampFormats and returns the zero time
// if none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
