package store

import (
	"context"
	"sort"

	"github.com/clipforge/highlighter/internal/domain"
	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/google/uuid"
)

// CollectionRepo persists domain.Collection rows.
type CollectionRepo struct {
	db *DB
}

// NewCollectionRepo wraps db.
func NewCollectionRepo(db *DB) *CollectionRepo {
	return &CollectionRepo{db: db}
}

// ListCollections returns every collection for a project.
func (r *CollectionRepo) ListCollections(ctx context.Context, projectID uuid.UUID) ([]*domain.Collection, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, project_id, title, description, clip_ids, status, export_path
		FROM collections WHERE project_id = $1 ORDER BY title ASC`, projectID)
	if err != nil {
		return nil, errkind.New(errkind.Internal, "listing collections", err)
	}
	defer rows.Close()

	var out []*domain.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReplaceAll is C6's idempotent delete-then-reinsert for collections,
// mirroring ClipRepo.ReplaceAll.
func (r *CollectionRepo) ReplaceAll(ctx context.Context, projectID uuid.UUID, collections []*domain.Collection) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errkind.New(errkind.Internal, "beginning collections transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM collections WHERE project_id = $1`, projectID); err != nil {
		return errkind.New(errkind.Internal, "deleting existing collections", err)
	}

	for _, c := range collections {
		if _, err := tx.Exec(ctx, `
			INSERT INTO collections (id, project_id, title, description, clip_ids, status, export_path)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID, projectID, c.Title, c.Description, c.ClipIDs, string(c.Status), c.ExportPath); err != nil {
			return errkind.New(errkind.Internal, "inserting collection", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errkind.New(errkind.Internal, "committing collections transaction", err)
	}
	return nil
}

// ReorderClips rewrites a collection's clip_ids ordering, enforcing that the
// new order is a permutation of the existing multiset (§8 "reorder preserves
// the multiset of clip ids") rather than silently adding or dropping ids.
func (r *CollectionRepo) ReorderClips(ctx context.Context, collectionID uuid.UUID, newOrder []uuid.UUID) error {
	row := r.db.QueryRow(ctx, `SELECT clip_ids FROM collections WHERE id = $1`, collectionID)
	var current []uuid.UUID
	if err := row.Scan(&current); err != nil {
		return errkind.New(errkind.NotFound, "collection not found", err)
	}

	if !samePermutation(current, newOrder) {
		return errkind.New(errkind.InvalidArgument, "reorder must be a permutation of the collection's existing clips", nil)
	}

	_, err := r.db.Exec(ctx, `UPDATE collections SET clip_ids = $1 WHERE id = $2`, newOrder, collectionID)
	if err != nil {
		return errkind.New(errkind.Internal, "reordering collection clips", err)
	}
	return nil
}

func samePermutation(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	sortedA := append([]uuid.UUID{}, a...)
	sortedB := append([]uuid.UUID{}, b...)
	sort.Slice(sortedA, func(i, j int) bool { return sortedA[i].String() < sortedA[j].String() })
	sort.Slice(sortedB, func(i, j int) bool { return sortedB[i].String() < sortedB[j].String() })
	for i := range sortedA {
		if sortedA[i] != sortedB[i] {
			return false
		}
	}
	return true
}

func scanCollection(row scanner) (*domain.Collection, error) {
	var c domain.Collection
	var status string
	if err := row.Scan(&c.ID, &c.ProjectID, &c.Title, &c.Description, &c.ClipIDs, &status, &c.ExportPath); err != nil {
		return nil, errkind.New(errkind.Internal, "scanning collection row", err)
	}
	c.Status = domain.CollectionStatus(status)
	return &c, nil
}
