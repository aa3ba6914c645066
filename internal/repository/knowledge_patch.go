package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/pagination"
	"github.com/cloo-solutions/learnings/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const patchColumns = `id, space_id, topic_id, patch_type, proposed_changes, diff_original, diff_modified, status, reviewed_by, reviewed_at, review_notes, created_at, updated_at`

type KnowledgePatchRepository struct {
	db dbtx
}

func NewKnowledgePatchRepository(pool *pgxpool.Pool) *KnowledgePatchRepository {
	return &KnowledgePatchRepository{db: pool}
}

func NewKnowledgePatchRepositoryWithTx(tx pgx.Tx) *KnowledgePatchRepository {
	return &KnowledgePatchRepository{db: tx}
}

func (r *KnowledgePatchRepository) Create(ctx context.Context, p *domain.KnowledgePatch) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_patches (id, space_id, topic_id, patch_type, proposed_changes, diff_original, diff_modified, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.SpaceID, p.TopicID, p.PatchType, []byte(p.ProposedChanges), p.DiffOriginal, p.DiffModified, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *KnowledgePatchRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgePatch, error) {
	p, err := scanPatch(r.db.QueryRow(ctx, `SELECT `+patchColumns+` FROM knowledge_patches WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError(domain.ErrKnowledgePatchNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

// ListBySpaceWithCursor pages a space's patches newest first. An empty
// status lists every status.
func (r *KnowledgePatchRepository) ListBySpaceWithCursor(ctx context.Context, spaceID string, status domain.PatchStatus, cursor *pagination.Cursor, limit int) (*service.KnowledgePatchPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+patchColumns+` FROM knowledge_patches
			 WHERE space_id = $1 AND ($2 = '' OR status = $2) AND (created_at, id) < ($3, $4)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $5`,
			spaceID, string(status), cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+patchColumns+` FROM knowledge_patches
			 WHERE space_id = $1 AND ($2 = '' OR status = $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			spaceID, string(status), limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanPatchRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.KnowledgePatchPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *KnowledgePatchRepository) ListByTopic(ctx context.Context, topicID string) ([]*domain.KnowledgePatch, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+patchColumns+` FROM knowledge_patches WHERE topic_id = $1 ORDER BY created_at ASC, id ASC`,
		topicID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPatchRows(rows)
}

func (r *KnowledgePatchRepository) TransitionReview(ctx context.Context, id string, review domain.PatchReview) (bool, error) {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_patches
		 SET status = $1, reviewed_by = $2, reviewed_at = $3, review_notes = $4, updated_at = $3
		 WHERE id = $5 AND status = $6`,
		review.Status, review.ReviewerID, review.ReviewedAt, review.Notes, id, domain.PatchStatusPendingReview,
	)
	if err != nil {
		return false, err
	}
	return cmdTag.RowsAffected() == 1, nil
}

func scanPatch(row pgx.Row) (*domain.KnowledgePatch, error) {
	var p domain.KnowledgePatch
	var changes []byte
	if err := row.Scan(&p.ID, &p.SpaceID, &p.TopicID, &p.PatchType, &changes, &p.DiffOriginal, &p.DiffModified, &p.Status,
		&p.ReviewedBy, &p.ReviewedAt, &p.ReviewNotes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ProposedChanges = changes
	return &p, nil
}

func scanPatchRows(rows pgx.Rows) ([]*domain.KnowledgePatch, error) {
	patches := make([]*domain.KnowledgePatch, 0)
	for rows.Next() {
		p, err := scanPatch(rows)
		if err != nil {
			return nil, err
		}
		patches = append(patches, p)
	}
	return patches, rows.Err()
}
