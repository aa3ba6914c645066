package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const topicColumns = `id, space_id, title, content, code_examples, capture_context, created_by, status, created_at, updated_at, deleted_at`

type TopicRepository struct {
	db dbtx
}

func NewTopicRepository(pool *pgxpool.Pool) *TopicRepository {
	return &TopicRepository{db: pool}
}

func NewTopicRepositoryWithTx(tx pgx.Tx) *TopicRepository {
	return &TopicRepository{db: tx}
}

func (r *TopicRepository) Create(ctx context.Context, t *domain.Topic) error {
	examples := t.CodeExamples
	if examples == nil {
		examples = []domain.CodeExample{}
	}
	payload, err := json.Marshal(examples)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO topics (id, space_id, title, content, code_examples, capture_context, created_by, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.SpaceID, t.Title, t.Content, payload, t.CaptureContext, t.CreatedBy, t.Status, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetByID returns a live topic. Soft-deleted topics are not found.
func (r *TopicRepository) GetByID(ctx context.Context, id string) (*domain.Topic, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	t, err := scanTopic(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError(domain.ErrTopicNotFound, id)
		}
		return nil, err
	}
	return t, nil
}

func (r *TopicRepository) ListBySpace(ctx context.Context, spaceID string) ([]*domain.Topic, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+topicColumns+` FROM topics
		 WHERE space_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at DESC, id DESC`,
		spaceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTopicRows(rows)
}

func (r *TopicRepository) ListPendingBySpace(ctx context.Context, spaceID string) ([]*domain.Topic, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+topicColumns+` FROM topics t
		 WHERE t.space_id = $1 AND t.deleted_at IS NULL
		   AND NOT EXISTS (SELECT 1 FROM knowledge_patches p WHERE p.topic_id = t.id)
		 ORDER BY t.created_at DESC, t.id DESC`,
		spaceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTopicRows(rows)
}

func (r *TopicRepository) GetStats(ctx context.Context, spaceID string) (*domain.TopicStats, error) {
	var stats domain.TopicStats
	err := r.db.QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE EXISTS (SELECT 1 FROM knowledge_patches p WHERE p.topic_id = t.id))
		 FROM topics t
		 WHERE t.space_id = $1 AND t.deleted_at IS NULL`,
		spaceID,
	).Scan(&stats.Total, &stats.Distilled)
	if err != nil {
		return nil, err
	}
	stats.Pending = stats.Total - stats.Distilled
	return &stats, nil
}

func (r *TopicRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE topics SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		at, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.NewNotFoundError(domain.ErrTopicNotFound, id)
	}
	return nil
}

func scanTopic(row pgx.Row) (*domain.Topic, error) {
	var t domain.Topic
	var examples []byte
	if err := row.Scan(&t.ID, &t.SpaceID, &t.Title, &t.Content, &examples, &t.CaptureContext, &t.CreatedBy, &t.Status, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt); err != nil {
		return nil, err
	}
	if len(examples) > 0 {
		if err := json.Unmarshal(examples, &t.CodeExamples); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func scanTopicRows(rows pgx.Rows) ([]*domain.Topic, error) {
	topics := make([]*domain.Topic, 0)
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}
