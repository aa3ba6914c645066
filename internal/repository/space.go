package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SpaceRepository struct {
	pool *pgxpool.Pool
}

func NewSpaceRepository(pool *pgxpool.Pool) *SpaceRepository {
	return &SpaceRepository{pool: pool}
}

func (r *SpaceRepository) Create(ctx context.Context, s *domain.Space) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO spaces (id, organization_id, name, slug, created_at) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.OrganizationID, s.Name, s.Slug, s.CreatedAt,
	)
	return err
}

func (r *SpaceRepository) GetSpaceByID(ctx context.Context, id string) (*domain.Space, error) {
	var s domain.Space
	err := r.pool.QueryRow(ctx,
		`SELECT id, organization_id, name, slug, created_at FROM spaces WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.OrganizationID, &s.Name, &s.Slug, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError(domain.ErrSpaceNotFound, id)
		}
		return nil, err
	}
	return &s, nil
}

func (r *SpaceRepository) ListSpacesByOrganization(ctx context.Context, organizationID string) ([]*domain.Space, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, organization_id, name, slug, created_at FROM spaces WHERE organization_id = $1 ORDER BY created_at ASC`,
		organizationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	spaces := make([]*domain.Space, 0)
	for rows.Next() {
		var s domain.Space
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.Name, &s.Slug, &s.CreatedAt); err != nil {
			return nil, err
		}
		spaces = append(spaces, &s)
	}
	return spaces, rows.Err()
}
