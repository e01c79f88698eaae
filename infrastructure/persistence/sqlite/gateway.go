package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"synapse/application/ports"
	pkgerrors "synapse/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshot_meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	taken_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS concepts (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	last_accessed TEXT NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS associations (
	from_id TEXT NOT NULL,
	to_id TEXT NOT NULL,
	tier TEXT NOT NULL,
	strength REAL NOT NULL,
	type TEXT NOT NULL,
	bidirectional INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	last_reinforced TEXT NOT NULL,
	reinforcements INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (from_id, to_id, tier)
);
CREATE INDEX IF NOT EXISTS idx_associations_to ON associations(to_id);
`

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Gateway persists memory graph snapshots in a local SQLite database.
// Saves replace the stored snapshot wholesale inside one transaction,
// so readers never observe a half-written graph.
type Gateway struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// NewGateway opens (or creates) the database at path and prepares the
// schema
func NewGateway(path string, logger *zap.Logger) (*Gateway, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open snapshot database")
	}
	// modernc/sqlite serializes writes itself; a single connection
	// avoids SQLITE_BUSY churn under concurrent saves.
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			db.Close()
			return nil, pkgerrors.Wrapf(err, "apply %q", pragma)
		}
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "prepare snapshot schema")
	}

	logger.Info("snapshot database ready", zap.String("path", path))
	return &Gateway{db: db, path: path, logger: logger}, nil
}

// Save durably replaces the stored snapshot
func (g *Gateway) Save(ctx context.Context, snapshot *ports.Snapshot) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "begin snapshot transaction")
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM concepts", "DELETE FROM associations"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return pkgerrors.Wrap(err, "clear previous snapshot")
		}
	}

	insertConcept, err := tx.PrepareContext(ctx, `
		INSERT INTO concepts (id, content, metadata, created_at, last_accessed, access_count)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return pkgerrors.Wrap(err, "prepare concept insert")
	}
	defer insertConcept.Close()

	for _, rec := range snapshot.Concepts {
		metadata, err := json.Marshal(rec.Metadata)
		if err != nil {
			return pkgerrors.Wrapf(err, "encode metadata for concept %s", rec.ID)
		}
		if _, err := insertConcept.ExecContext(ctx,
			rec.ID, rec.Content, string(metadata),
			formatTime(rec.CreatedAt), formatTime(rec.LastAccessed), rec.AccessCount,
		); err != nil {
			return pkgerrors.Wrapf(err, "save concept %s", rec.ID)
		}
	}

	insertAssociation, err := tx.PrepareContext(ctx, `
		INSERT INTO associations (from_id, to_id, tier, strength, type, bidirectional, created_at, last_reinforced, reinforcements)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return pkgerrors.Wrap(err, "prepare association insert")
	}
	defer insertAssociation.Close()

	for _, rec := range snapshot.Associations {
		if _, err := insertAssociation.ExecContext(ctx,
			rec.FromID, rec.ToID, rec.Tier, rec.Strength, rec.Type, boolToInt(rec.Bidirectional),
			formatTime(rec.CreatedAt), formatTime(rec.LastReinforced), rec.Reinforcements,
		); err != nil {
			return pkgerrors.Wrapf(err, "save association %s -> %s", rec.FromID, rec.ToID)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshot_meta (id, taken_at) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET taken_at = excluded.taken_at`,
		formatTime(snapshot.TakenAt),
	); err != nil {
		return pkgerrors.Wrap(err, "record snapshot time")
	}

	if err := tx.Commit(); err != nil {
		return pkgerrors.Wrap(err, "commit snapshot")
	}

	g.logger.Debug("snapshot persisted",
		zap.Int("concepts", len(snapshot.Concepts)),
		zap.Int("associations", len(snapshot.Associations)),
	)
	return nil
}

// Load returns the last saved snapshot, or an empty snapshot when
// nothing has been saved yet
func (g *Gateway) Load(ctx context.Context) (*ports.Snapshot, error) {
	snapshot := &ports.Snapshot{}

	var takenAt string
	err := g.db.QueryRowContext(ctx, "SELECT taken_at FROM snapshot_meta WHERE id = 1").Scan(&takenAt)
	switch {
	case err == sql.ErrNoRows:
		return snapshot, nil
	case err != nil:
		return nil, pkgerrors.Wrap(err, "read snapshot time")
	}
	if snapshot.TakenAt, err = parseTime(takenAt); err != nil {
		return nil, err
	}

	rows, err := g.db.QueryContext(ctx,
		"SELECT id, content, metadata, created_at, last_accessed, access_count FROM concepts")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read concepts")
	}
	defer rows.Close()

	for rows.Next() {
		var rec ports.ConceptRecord
		var metadata, createdAt, lastAccessed string
		if err := rows.Scan(&rec.ID, &rec.Content, &metadata, &createdAt, &lastAccessed, &rec.AccessCount); err != nil {
			return nil, pkgerrors.Wrap(err, "scan concept row")
		}
		if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
			return nil, pkgerrors.Wrapf(err, "decode metadata for concept %s", rec.ID)
		}
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if rec.LastAccessed, err = parseTime(lastAccessed); err != nil {
			return nil, err
		}
		snapshot.Concepts = append(snapshot.Concepts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "iterate concepts")
	}

	assocRows, err := g.db.QueryContext(ctx,
		"SELECT from_id, to_id, tier, strength, type, bidirectional, created_at, last_reinforced, reinforcements FROM associations")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read associations")
	}
	defer assocRows.Close()

	for assocRows.Next() {
		var rec ports.AssociationRecord
		var bidirectional int
		var createdAt, lastReinforced string
		if err := assocRows.Scan(&rec.FromID, &rec.ToID, &rec.Tier, &rec.Strength, &rec.Type,
			&bidirectional, &createdAt, &lastReinforced, &rec.Reinforcements); err != nil {
			return nil, pkgerrors.Wrap(err, "scan association row")
		}
		rec.Bidirectional = bidirectional != 0
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if rec.LastReinforced, err = parseTime(lastReinforced); err != nil {
			return nil, err
		}
		snapshot.Associations = append(snapshot.Associations, rec)
	}
	if err := assocRows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "iterate associations")
	}

	return snapshot, nil
}

// Backup writes a consistent copy of the database to dest
func (g *Gateway) Backup(ctx context.Context, dest string) error {
	if dest == "" {
		return pkgerrors.NewInvalidArgumentError("backup destination cannot be empty")
	}
	if _, err := g.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return pkgerrors.Wrapf(err, "backup to %s", dest)
	}
	g.logger.Info("database backed up", zap.String("dest", dest))
	return nil
}

// Stats reports size and freshness of the durable copy
func (g *Gateway) Stats(ctx context.Context) (*ports.PersistenceStats, error) {
	stats := &ports.PersistenceStats{}

	if err := g.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM concepts").Scan(&stats.ConceptCount); err != nil {
		return nil, pkgerrors.Wrap(err, "count concepts")
	}
	if err := g.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM associations").Scan(&stats.AssociationCount); err != nil {
		return nil, pkgerrors.Wrap(err, "count associations")
	}

	var takenAt string
	err := g.db.QueryRowContext(ctx, "SELECT taken_at FROM snapshot_meta WHERE id = 1").Scan(&takenAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, pkgerrors.Wrap(err, "read snapshot time")
	}
	if err == nil {
		if stats.LastSnapshot, err = parseTime(takenAt); err != nil {
			return nil, err
		}
	}

	if info, err := os.Stat(g.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}

// Optimize compacts the database file
func (g *Gateway) Optimize(ctx context.Context) error {
	if _, err := g.db.ExecContext(ctx, "VACUUM"); err != nil {
		return pkgerrors.Wrap(err, "vacuum database")
	}
	return nil
}

// Close releases the database handle
func (g *Gateway) Close() error {
	return g.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, pkgerrors.Wrapf(err, "parse stored timestamp %q", s)
	}
	return t, nil
}
