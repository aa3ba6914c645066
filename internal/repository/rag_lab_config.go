package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RagLabConfigRepository struct {
	pool *pgxpool.Pool
}

func NewRagLabConfigRepository(pool *pgxpool.Pool) *RagLabConfigRepository {
	return &RagLabConfigRepository{pool: pool}
}

func (r *RagLabConfigRepository) GetByOrganization(ctx context.Context, organizationID string) (*domain.RagLabConfiguration, error) {
	var c domain.RagLabConfiguration
	err := r.pool.QueryRow(ctx,
		`SELECT id, organization_id, embedding_model, embedding_dimensions, include_code_blocks, max_text_length, created_at, updated_at
		 FROM rag_lab_configurations WHERE organization_id = $1`,
		organizationID,
	).Scan(&c.ID, &c.OrganizationID, &c.EmbeddingModel, &c.EmbeddingDimensions, &c.IncludeCodeBlocks, &c.MaxTextLength, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError(domain.ErrRagLabConfigNotFound, organizationID)
		}
		return nil, err
	}
	return &c, nil
}

// Upsert writes the organization's configuration. The row id of an existing
// configuration is kept.
func (r *RagLabConfigRepository) Upsert(ctx context.Context, c *domain.RagLabConfiguration) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO rag_lab_configurations (id, organization_id, embedding_model, embedding_dimensions, include_code_blocks, max_text_length, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (organization_id) DO UPDATE
		 SET embedding_model = EXCLUDED.embedding_model,
		     embedding_dimensions = EXCLUDED.embedding_dimensions,
		     include_code_blocks = EXCLUDED.include_code_blocks,
		     max_text_length = EXCLUDED.max_text_length,
		     updated_at = EXCLUDED.updated_at`,
		c.ID, c.OrganizationID, c.EmbeddingModel, c.EmbeddingDimensions, c.IncludeCodeBlocks, c.MaxTextLength, c.CreatedAt, c.UpdatedAt,
	)
	return err
}
