// Package database stores measurements in SQLite.
//
// Each measurement becomes one row in runs, with its per-item results in
// item_results and its per-provider results in peer_results. The runs table
// also keeps the order-independent summary of the run so that the history
// command can list many runs without loading their rows.
//
// The driver is modernc.org/sqlite, which needs no cgo. The database is
// opened in WAL mode with a single connection, matching SQLite's single
// writer.
package database
