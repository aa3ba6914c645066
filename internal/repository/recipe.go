package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const (
	recipeColumns        = `r.id, r.space_id, r.name, r.slug, r.content, r.version, r.created_at, r.updated_at`
	recipeVersionColumns = `rv.id, rv.recipe_id, rv.name, rv.slug, rv.content, rv.version, rv.embedding::text, rv.created_by, rv.created_at`
)

type RecipeRepository struct {
	pool *pgxpool.Pool
}

func NewRecipeRepository(pool *pgxpool.Pool) *RecipeRepository {
	return &RecipeRepository{pool: pool}
}

// CreateRecipe inserts a recipe together with its first version
func (r *RecipeRepository) CreateRecipe(ctx context.Context, recipe *domain.Recipe, createdBy string) (*domain.RecipeVersion, error) {
	recipe.Version = 1
	version := &domain.RecipeVersion{
		ID:        uuid.NewString(),
		RecipeID:  recipe.ID,
		Name:      recipe.Name,
		Slug:      recipe.Slug,
		Content:   recipe.Content,
		Version:   1,
		CreatedBy: createdBy,
		CreatedAt: recipe.CreatedAt,
	}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO recipes (id, space_id, name, slug, content, version, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			recipe.ID, recipe.SpaceID, recipe.Name, recipe.Slug, recipe.Content, recipe.Version, recipe.CreatedAt, recipe.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return insertRecipeVersion(ctx, tx, version)
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// UpdateRecipeContent stores content as a new version of the recipe
func (r *RecipeRepository) UpdateRecipeContent(ctx context.Context, recipeID, content, createdBy string) (*domain.RecipeVersion, error) {
	var version *domain.RecipeVersion
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanRecipeVersion(tx.QueryRow(ctx,
			`SELECT `+recipeVersionColumns+`
			 FROM recipe_versions rv
			 JOIN recipes r ON r.id = rv.recipe_id AND r.version = rv.version
			 WHERE r.id = $1
			 FOR UPDATE OF r`,
			recipeID,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.NewNotFoundError(domain.ErrRecipeNotFound, recipeID)
			}
			return err
		}

		next := *current
		next.ID = uuid.NewString()
		next.Content = content
		next.Version = current.Version + 1
		next.Embedding = nil
		next.CreatedBy = createdBy
		next.CreatedAt = time.Now().UTC()
		if err := insertRecipeVersion(ctx, tx, &next); err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE recipes SET content = $1, version = $2, updated_at = $3 WHERE id = $4`,
			next.Content, next.Version, next.CreatedAt, recipeID,
		)
		version = &next
		return err
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

func (r *RecipeRepository) ListRecipesByOrganization(ctx context.Context, organizationID string) ([]*domain.Recipe, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recipeColumns+`
		 FROM recipes r
		 JOIN spaces sp ON sp.id = r.space_id
		 WHERE sp.organization_id = $1
		 ORDER BY r.name ASC`,
		organizationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipes := make([]*domain.Recipe, 0)
	for rows.Next() {
		var rec domain.Recipe
		if err := rows.Scan(&rec.ID, &rec.SpaceID, &rec.Name, &rec.Slug, &rec.Content, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		recipes = append(recipes, &rec)
	}
	return recipes, rows.Err()
}

// GetRecipeByIDInternal loads a recipe without an organization check
func (r *RecipeRepository) GetRecipeByIDInternal(ctx context.Context, id string) (*domain.Recipe, error) {
	var rec domain.Recipe
	err := r.pool.QueryRow(ctx, `SELECT `+recipeColumns+` FROM recipes r WHERE r.id = $1`, id).
		Scan(&rec.ID, &rec.SpaceID, &rec.Name, &rec.Slug, &rec.Content, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError(domain.ErrRecipeNotFound, id)
		}
		return nil, err
	}
	return &rec, nil
}

func (r *RecipeRepository) GetRecipeVersionByID(ctx context.Context, versionID string) (*domain.RecipeVersion, error) {
	v, err := scanRecipeVersion(r.pool.QueryRow(ctx, `SELECT `+recipeVersionColumns+` FROM recipe_versions rv WHERE rv.id = $1`, versionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError(domain.ErrRecipeVersionNotFound, versionID)
		}
		return nil, err
	}
	return v, nil
}

func (r *RecipeRepository) UpdateRecipeVersionEmbedding(ctx context.Context, versionID string, embedding []float32) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE recipe_versions SET embedding = $1 WHERE id = $2`,
		pgvector.NewVector(embedding), versionID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.NewNotFoundError(domain.ErrRecipeVersionNotFound, versionID)
	}
	return nil
}

func (r *RecipeRepository) FindSimilarRecipesByEmbedding(ctx context.Context, embedding []float32, spaceID string, threshold float64, limit int) ([]domain.SimilarRecipe, error) {
	if limit <= 0 {
		limit = defaultSimilarityLimit
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+recipeVersionColumns+`, CASE WHEN vector_dims(rv.embedding) = vector_dims($1::vector) THEN 1 - (rv.embedding <=> $1::vector) END AS similarity
		 FROM recipe_versions rv
		 JOIN recipes r ON r.id = rv.recipe_id AND r.version = rv.version
		 WHERE rv.embedding IS NOT NULL
		   AND ($2 = '' OR r.space_id = $2)
		   AND CASE WHEN vector_dims(rv.embedding) = vector_dims($1::vector) THEN 1 - (rv.embedding <=> $1::vector) END >= $3
		 ORDER BY similarity DESC
		 LIMIT $4`,
		pgvector.NewVector(embedding), spaceID, threshold, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.SimilarRecipe, 0)
	for rows.Next() {
		var similarity float64
		v, err := scanRecipeVersion(rows, &similarity)
		if err != nil {
			return nil, err
		}
		results = append(results, domain.SimilarRecipe{Version: v, Similarity: similarity})
	}
	return results, rows.Err()
}

func (r *RecipeRepository) ListLatestRecipeVersions(ctx context.Context, spaceID string) ([]*domain.RecipeVersion, error) {
	return r.listLatest(ctx, spaceID, false)
}

func (r *RecipeRepository) FindLatestRecipeVersionsWithoutEmbedding(ctx context.Context, spaceID string) ([]*domain.RecipeVersion, error) {
	return r.listLatest(ctx, spaceID, true)
}

func (r *RecipeRepository) listLatest(ctx context.Context, spaceID string, missingOnly bool) ([]*domain.RecipeVersion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recipeVersionColumns+`
		 FROM recipe_versions rv
		 JOIN recipes r ON r.id = rv.recipe_id AND r.version = rv.version
		 WHERE r.space_id = $1 AND (NOT $2 OR rv.embedding IS NULL)
		 ORDER BY r.name ASC`,
		spaceID, missingOnly,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make([]*domain.RecipeVersion, 0)
	for rows.Next() {
		v, err := scanRecipeVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func insertRecipeVersion(ctx context.Context, tx pgx.Tx, v *domain.RecipeVersion) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO recipe_versions (id, recipe_id, name, slug, content, version, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.ID, v.RecipeID, v.Name, v.Slug, v.Content, v.Version, v.CreatedBy, v.CreatedAt,
	)
	return err
}

func scanRecipeVersion(row pgx.Row, extra ...any) (*domain.RecipeVersion, error) {
	var v domain.RecipeVersion
	var embedding pgtype.Text
	dest := append([]any{&v.ID, &v.RecipeID, &v.Name, &v.Slug, &v.Content, &v.Version, &embedding, &v.CreatedBy, &v.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	vec, err := parseVector(embedding)
	if err != nil {
		return nil, err
	}
	v.Embedding = vec
	return &v, nil
}
