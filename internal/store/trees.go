package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/kitbash/internal/tree"
	"github.com/roach88/kitbash/internal/value"
)

// Record is one saved tree.
type Record struct {
	ID            string
	Name          string
	Root          string // root component id
	Snapshot      *tree.Snapshot
	Hash          string // content hash of the canonical snapshot
	Stats         value.Object
	Complete      bool
	Seq           int64
	EngineVersion string
}

// SaveTree stores t under name, replacing any tree previously saved under
// the same name. The id of an existing record is kept; seq always advances.
//
// Stats and completeness are recorded only when t is built, so a listing
// can show them without loading the tree.
func (s *Store) SaveTree(ctx context.Context, name string, t *tree.Tree) (Record, error) {
	if name == "" {
		return Record{}, fmt.Errorf("save tree: empty name")
	}

	snap, err := tree.Save(t.Root())
	if err != nil {
		return Record{}, fmt.Errorf("save tree %s: %w", name, err)
	}
	snapJSON, err := value.MarshalCanonical(snap.Value())
	if err != nil {
		return Record{}, fmt.Errorf("save tree %s: %w", name, err)
	}
	hash, err := value.Hash(value.DomainSnapshot, snap.Value())
	if err != nil {
		return Record{}, fmt.Errorf("save tree %s: %w", name, err)
	}

	stats := value.Object{}
	if t.Built() {
		stats = t.Stats().Snapshot()
	}
	statsJSON, err := value.MarshalCanonical(stats)
	if err != nil {
		return Record{}, fmt.Errorf("save tree %s: stats: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("save tree: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM saved_trees`).Scan(&seq); err != nil {
		return Record{}, fmt.Errorf("save tree: next seq: %w", err)
	}

	rec := Record{
		ID:            s.ids.Generate(),
		Name:          name,
		Root:          snap.Component,
		Snapshot:      snap,
		Hash:          hash,
		Stats:         stats,
		Complete:      t.Built() && t.Complete(),
		Seq:           seq,
		EngineVersion: value.EngineVersion,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO saved_trees
		(id, name, root_component, snapshot, snapshot_hash, stats, complete, seq, snapshot_version, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			root_component = excluded.root_component,
			snapshot = excluded.snapshot,
			snapshot_hash = excluded.snapshot_hash,
			stats = excluded.stats,
			complete = excluded.complete,
			seq = excluded.seq,
			snapshot_version = excluded.snapshot_version,
			engine_version = excluded.engine_version
	`,
		rec.ID,
		rec.Name,
		rec.Root,
		string(snapJSON),
		rec.Hash,
		string(statsJSON),
		rec.Complete,
		rec.Seq,
		value.SnapshotVersion,
		rec.EngineVersion,
	)
	if err != nil {
		return Record{}, fmt.Errorf("save tree %s: %w", name, err)
	}

	// The upsert keeps the original id.
	if err := tx.QueryRowContext(ctx, `SELECT id FROM saved_trees WHERE name = ?`, name).Scan(&rec.ID); err != nil {
		return Record{}, fmt.Errorf("save tree %s: read id: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("save tree: commit: %w", err)
	}
	return rec, nil
}

// GetTree returns the record saved under name.
func (s *Store) GetTree(ctx context.Context, name string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, root_component, snapshot, snapshot_hash, stats, complete, seq, snapshot_version, engine_version
		FROM saved_trees
		WHERE name = ?
	`, name)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return rec, err
}

// LoadTree reconstructs the tree saved under name with e's definitions.
// The result is unbuilt. Any definition mismatch is a *tree.LoadError.
func (s *Store) LoadTree(ctx context.Context, e *tree.Engine, name string) (*tree.Tree, Record, error) {
	rec, err := s.GetTree(ctx, name)
	if err != nil {
		return nil, Record{}, err
	}
	root, err := e.Load(rec.Snapshot)
	if err != nil {
		return nil, Record{}, fmt.Errorf("load tree %s: %w", name, err)
	}
	return root.Tree(), rec, nil
}

// ListTrees returns every saved tree, oldest save first. A non-empty root
// keeps only trees whose root is that component.
func (s *Store) ListTrees(ctx context.Context, root string) ([]Record, error) {
	query := `
		SELECT id, name, root_component, snapshot, snapshot_hash, stats, complete, seq, snapshot_version, engine_version
		FROM saved_trees`
	var args []any
	if root != "" {
		query += ` WHERE root_component = ?`
		args = append(args, root)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query saved trees: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved trees: %w", err)
	}
	return records, nil
}

// DeleteTree removes the tree saved under name.
func (s *Store) DeleteTree(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_trees WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete tree %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete tree %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec                 Record
		snapJSON, statsJSON string
		snapshotVersion     string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Root,
		&snapJSON,
		&rec.Hash,
		&statsJSON,
		&rec.Complete,
		&rec.Seq,
		&snapshotVersion,
		&rec.EngineVersion,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan saved tree: %w", err)
	}

	if snapshotVersion != value.SnapshotVersion {
		return Record{}, fmt.Errorf("saved tree %s: unsupported snapshot version %q", rec.Name, snapshotVersion)
	}

	snapVal, err := value.Unmarshal([]byte(snapJSON))
	if err != nil {
		return Record{}, fmt.Errorf("saved tree %s: snapshot: %w", rec.Name, err)
	}
	hash, err := value.Hash(value.DomainSnapshot, snapVal)
	if err != nil {
		return Record{}, fmt.Errorf("saved tree %s: snapshot: %w", rec.Name, err)
	}
	if hash != rec.Hash {
		return Record{}, fmt.Errorf("saved tree %s: snapshot hash mismatch", rec.Name)
	}
	rec.Snapshot, err = tree.SnapshotFromValue(snapVal)
	if err != nil {
		return Record{}, fmt.Errorf("saved tree %s: %w", rec.Name, err)
	}

	statsVal, err := value.Unmarshal([]byte(statsJSON))
	if err != nil {
		return Record{}, fmt.Errorf("saved tree %s: stats: %w", rec.Name, err)
	}
	stats, ok := statsVal.(value.Object)
	if !ok {
		return Record{}, fmt.Errorf("saved tree %s: stats must be an object", rec.Name)
	}
	rec.Stats = stats
	return rec, nil
}
