package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const (
	standardColumns        = `s.id, s.space_id, s.name, s.slug, s.description, s.scope, s.version, s.created_at, s.updated_at`
	standardVersionColumns = `sv.id, sv.standard_id, sv.name, sv.slug, sv.description, sv.scope, sv.version, sv.embedding::text, sv.created_by, sv.created_at`

	defaultSimilarityLimit = 10
)

// StandardRepository stores standards, their immutable versions and rules.
// Every rule change produces a new version.
type StandardRepository struct {
	pool *pgxpool.Pool
}

func NewStandardRepository(pool *pgxpool.Pool) *StandardRepository {
	return &StandardRepository{pool: pool}
}

// CreateStandard inserts a standard together with its first version
func (r *StandardRepository) CreateStandard(ctx context.Context, s *domain.Standard, rules []string, createdBy string) (*domain.StandardVersion, error) {
	s.Version = 1
	var version *domain.StandardVersion
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO standards (id, space_id, name, slug, description, scope, version, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			s.ID, s.SpaceID, s.Name, s.Slug, s.Description, s.Scope, s.Version, s.CreatedAt, s.UpdatedAt,
		)
		if err != nil {
			return err
		}
		version = &domain.StandardVersion{
			ID:          uuid.NewString(),
			StandardID:  s.ID,
			Name:        s.Name,
			Slug:        s.Slug,
			Description: s.Description,
			Scope:       s.Scope,
			Version:     1,
			CreatedBy:   createdBy,
			CreatedAt:   s.CreatedAt,
		}
		for _, content := range rules {
			version.Rules = append(version.Rules, domain.Rule{Content: content})
		}
		return insertStandardVersion(ctx, tx, version)
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

func (r *StandardRepository) ListStandardsBySpace(ctx context.Context, spaceID string) ([]*domain.Standard, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+standardColumns+` FROM standards s WHERE s.space_id = $1 ORDER BY s.name ASC`,
		spaceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	standards := make([]*domain.Standard, 0)
	for rows.Next() {
		s, err := scanStandard(rows)
		if err != nil {
			return nil, err
		}
		standards = append(standards, s)
	}
	return standards, rows.Err()
}

func (r *StandardRepository) GetStandard(ctx context.Context, id string) (*domain.Standard, error) {
	s, err := scanStandard(r.pool.QueryRow(ctx, `SELECT `+standardColumns+` FROM standards s WHERE s.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError(domain.ErrStandardNotFound, id)
		}
		return nil, err
	}
	return s, nil
}

// GetLatestRulesByStandardID returns the rules of the standard's current version in order
func (r *StandardRepository) GetLatestRulesByStandardID(ctx context.Context, standardID string) ([]domain.Rule, error) {
	return loadRules(ctx, r.pool,
		`SELECT ru.id, ru.standard_version_id, ru.content, ru.position
		 FROM rules ru
		 JOIN standard_versions sv ON sv.id = ru.standard_version_id
		 JOIN standards s ON s.id = sv.standard_id AND s.version = sv.version
		 WHERE s.id = $1
		 ORDER BY ru.position ASC`,
		standardID,
	)
}

func (r *StandardRepository) GetStandardVersionByID(ctx context.Context, versionID string) (*domain.StandardVersion, error) {
	v, err := scanStandardVersion(r.pool.QueryRow(ctx,
		`SELECT `+standardVersionColumns+` FROM standard_versions sv WHERE sv.id = $1`,
		versionID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError(domain.ErrStandardVersionNotFound, versionID)
		}
		return nil, err
	}
	v.Rules, err = loadRules(ctx, r.pool,
		`SELECT id, standard_version_id, content, position FROM rules WHERE standard_version_id = $1 ORDER BY position ASC`,
		versionID,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// AddRuleToStandard creates a new version holding the current rules plus the
// new one at the end. cmd.StandardID wins over cmd.StandardSlug; a slug alone
// must name exactly one standard in the organization.
func (r *StandardRepository) AddRuleToStandard(ctx context.Context, cmd domain.AddRuleCommand) (*domain.StandardVersion, error) {
	var version *domain.StandardVersion
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		standardID, err := lockStandardForRule(ctx, tx, cmd)
		if err != nil {
			return err
		}

		version, err = nextStandardVersion(ctx, tx, standardID, cmd.UserID)
		if err != nil {
			return err
		}
		version.Rules = append(version.Rules, domain.Rule{Content: cmd.RuleContent})
		return commitStandardVersion(ctx, tx, version)
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

func lockStandardForRule(ctx context.Context, tx pgx.Tx, cmd domain.AddRuleCommand) (string, error) {
	if cmd.StandardID != "" {
		var standardID string
		err := tx.QueryRow(ctx,
			`SELECT s.id FROM standards s
			 JOIN spaces sp ON sp.id = s.space_id
			 WHERE s.id = $1 AND sp.organization_id = $2
			 FOR UPDATE OF s`,
			cmd.StandardID, cmd.OrganizationID,
		).Scan(&standardID)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.NewNotFoundError(domain.ErrStandardNotFound, cmd.StandardID)
		}
		return standardID, err
	}

	rows, err := tx.Query(ctx,
		`SELECT s.id FROM standards s
		 JOIN spaces sp ON sp.id = s.space_id
		 WHERE s.slug = $1 AND sp.organization_id = $2
		 FOR UPDATE OF s`,
		cmd.StandardSlug, cmd.OrganizationID,
	)
	if err != nil {
		return "", err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", domain.NewNotFoundError(domain.ErrStandardNotFound, cmd.StandardSlug)
	case 1:
		return ids[0], nil
	default:
		return "", domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("standard slug %q is used in %d spaces, address the standard by id", cmd.StandardSlug, len(ids)))
	}
}

// UpdateStandardRules creates a new version where the rule with cmd.RuleID
// carries the new content. The rule keeps its position.
func (r *StandardRepository) UpdateStandardRules(ctx context.Context, cmd domain.UpdateRuleCommand) (*domain.StandardVersion, error) {
	var version *domain.StandardVersion
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var standardID string
		err := tx.QueryRow(ctx,
			`SELECT s.id FROM standards s
			 JOIN spaces sp ON sp.id = s.space_id
			 WHERE s.id = $1 AND sp.organization_id = $2
			 FOR UPDATE OF s`,
			cmd.StandardID, cmd.OrganizationID,
		).Scan(&standardID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.NewNotFoundError(domain.ErrStandardNotFound, cmd.StandardID)
			}
			return err
		}

		version, err = nextStandardVersion(ctx, tx, standardID, cmd.UserID)
		if err != nil {
			return err
		}
		found := false
		for i := range version.Rules {
			if version.Rules[i].ID == cmd.RuleID {
				version.Rules[i].Content = cmd.NewRuleContent
				found = true
				break
			}
		}
		if !found {
			return domain.NewNotFoundError(domain.ErrRuleNotFound, cmd.RuleID)
		}
		return commitStandardVersion(ctx, tx, version)
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

func (r *StandardRepository) UpdateStandardVersionEmbedding(ctx context.Context, versionID string, embedding []float32) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE standard_versions SET embedding = $1 WHERE id = $2`,
		pgvector.NewVector(embedding), versionID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.NewNotFoundError(domain.ErrStandardVersionNotFound, versionID)
	}
	return nil
}

// FindSimilarStandardsByEmbedding ranks latest standard versions by cosine
// similarity. Vectors of another dimension are ignored.
func (r *StandardRepository) FindSimilarStandardsByEmbedding(ctx context.Context, embedding []float32, spaceID string, threshold float64, limit int) ([]domain.SimilarStandard, error) {
	if limit <= 0 {
		limit = defaultSimilarityLimit
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+standardVersionColumns+`, CASE WHEN vector_dims(sv.embedding) = vector_dims($1::vector) THEN 1 - (sv.embedding <=> $1::vector) END AS similarity
		 FROM standard_versions sv
		 JOIN standards s ON s.id = sv.standard_id AND s.version = sv.version
		 WHERE sv.embedding IS NOT NULL
		   AND ($2 = '' OR s.space_id = $2)
		   AND CASE WHEN vector_dims(sv.embedding) = vector_dims($1::vector) THEN 1 - (sv.embedding <=> $1::vector) END >= $3
		 ORDER BY similarity DESC
		 LIMIT $4`,
		pgvector.NewVector(embedding), spaceID, threshold, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.SimilarStandard, 0)
	for rows.Next() {
		var similarity float64
		v, err := scanStandardVersion(rows, &similarity)
		if err != nil {
			return nil, err
		}
		results = append(results, domain.SimilarStandard{Version: v, Similarity: similarity})
	}
	return results, rows.Err()
}

func (r *StandardRepository) ListLatestStandardVersions(ctx context.Context, spaceID string) ([]*domain.StandardVersion, error) {
	return r.listLatest(ctx, spaceID, false)
}

func (r *StandardRepository) FindLatestStandardVersionsWithoutEmbedding(ctx context.Context, spaceID string) ([]*domain.StandardVersion, error) {
	return r.listLatest(ctx, spaceID, true)
}

func (r *StandardRepository) listLatest(ctx context.Context, spaceID string, missingOnly bool) ([]*domain.StandardVersion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+standardVersionColumns+`
		 FROM standard_versions sv
		 JOIN standards s ON s.id = sv.standard_id AND s.version = sv.version
		 WHERE s.space_id = $1 AND (NOT $2 OR sv.embedding IS NULL)
		 ORDER BY s.name ASC`,
		spaceID, missingOnly,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make([]*domain.StandardVersion, 0)
	for rows.Next() {
		v, err := scanStandardVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// nextStandardVersion loads the current version of a locked standard as the
// draft of its successor.
func nextStandardVersion(ctx context.Context, tx pgx.Tx, standardID, createdBy string) (*domain.StandardVersion, error) {
	current, err := scanStandardVersion(tx.QueryRow(ctx,
		`SELECT `+standardVersionColumns+`
		 FROM standard_versions sv
		 JOIN standards s ON s.id = sv.standard_id AND s.version = sv.version
		 WHERE s.id = $1`,
		standardID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("standard %s has no current version: %w", standardID, domain.ErrStandardVersionNotFound)
		}
		return nil, err
	}
	rules, err := loadRules(ctx, tx,
		`SELECT id, standard_version_id, content, position FROM rules WHERE standard_version_id = $1 ORDER BY position ASC`,
		current.ID,
	)
	if err != nil {
		return nil, err
	}

	next := *current
	next.ID = uuid.NewString()
	next.Version = current.Version + 1
	next.Embedding = nil
	next.CreatedBy = createdBy
	next.CreatedAt = time.Now().UTC()
	next.Rules = rules
	return &next, nil
}

// commitStandardVersion stores the version and makes it the standard's
// current version. Carried over rules keep their id, new rules get one.
func commitStandardVersion(ctx context.Context, tx pgx.Tx, v *domain.StandardVersion) error {
	if err := insertStandardVersion(ctx, tx, v); err != nil {
		return err
	}
	_, err := tx.Exec(ctx,
		`UPDATE standards SET version = $1, updated_at = $2 WHERE id = $3`,
		v.Version, v.CreatedAt, v.StandardID,
	)
	return err
}

func insertStandardVersion(ctx context.Context, tx pgx.Tx, v *domain.StandardVersion) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO standard_versions (id, standard_id, name, slug, description, scope, version, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.ID, v.StandardID, v.Name, v.Slug, v.Description, v.Scope, v.Version, v.CreatedBy, v.CreatedAt,
	)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i := range v.Rules {
		if v.Rules[i].ID == "" {
			v.Rules[i].ID = uuid.NewString()
		}
		v.Rules[i].StandardVersionID = v.ID
		v.Rules[i].Position = i
		batch.Queue(
			`INSERT INTO rules (id, standard_version_id, content, position) VALUES ($1, $2, $3, $4)`,
			v.Rules[i].ID, v.ID, v.Rules[i].Content, v.Rules[i].Position,
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}

func loadRules(ctx context.Context, db dbtx, query string, id string) ([]domain.Rule, error) {
	rows, err := db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]domain.Rule, 0)
	for rows.Next() {
		var rule domain.Rule
		if err := rows.Scan(&rule.ID, &rule.StandardVersionID, &rule.Content, &rule.Position); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanStandard(row pgx.Row) (*domain.Standard, error) {
	var s domain.Standard
	if err := row.Scan(&s.ID, &s.SpaceID, &s.Name, &s.Slug, &s.Description, &s.Scope, &s.Version, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanStandardVersion(row pgx.Row, extra ...any) (*domain.StandardVersion, error) {
	var v domain.StandardVersion
	var embedding pgtype.Text
	dest := append([]any{&v.ID, &v.StandardID, &v.Name, &v.Slug, &v.Description, &v.Scope, &v.Version, &embedding, &v.CreatedBy, &v.CreatedAt}, extra...)
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

// parseVector decodes the text form of a vector column. NULL yields nil.
func parseVector(t pgtype.Text) ([]float32, error) {
	if !t.Valid {
		return nil, nil
	}
	var vec pgvector.Vector
	if err := vec.Parse(t.String); err != nil {
		return nil, err
	}
	return vec.Slice(), nil
}
