//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func newTestPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(context.Background()) })

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)
	return pool
}

func createTestSpace(ctx context.Context, t *testing.T, repo *SpaceRepository, orgID string) *domain.Space {
	t.Helper()
	id := uuid.NewString()
	space := &domain.Space{
		ID:             id,
		OrganizationID: orgID,
		Name:           "Space " + id[:8],
		Slug:           "space-" + id[:8],
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, space))
	return space
}

func createTestTopic(ctx context.Context, t *testing.T, repo *TopicRepository, spaceID string, createdAt time.Time) *domain.Topic {
	t.Helper()
	topic := &domain.Topic{
		ID:             uuid.NewString(),
		SpaceID:        spaceID,
		Title:          "Prefer composition",
		Content:        "Compose small functions instead of deep inheritance",
		CodeExamples:   []domain.CodeExample{{Code: "const f = compose(a, b)", Language: "typescript"}},
		CaptureContext: domain.CaptureContextMCP,
		CreatedBy:      "user-1",
		Status:         domain.TopicStatusPending,
		CreatedAt:      createdAt.UTC().Truncate(time.Microsecond),
		UpdatedAt:      createdAt.UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, topic))
	return topic
}

func createTestStandard(ctx context.Context, t *testing.T, repo *StandardRepository, spaceID, slug string, rules ...string) (*domain.Standard, *domain.StandardVersion) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	standard := &domain.Standard{
		ID:          uuid.NewString(),
		SpaceID:     spaceID,
		Name:        "Standard " + slug,
		Slug:        slug,
		Description: "How we write " + slug,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	version, err := repo.CreateStandard(ctx, standard, rules, "user-1")
	require.NoError(t, err)
	return standard, version
}

func createTestRecipe(ctx context.Context, t *testing.T, repo *RecipeRepository, spaceID, slug string) (*domain.Recipe, *domain.RecipeVersion) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	recipe := &domain.Recipe{
		ID:        uuid.NewString(),
		SpaceID:   spaceID,
		Name:      "Recipe " + slug,
		Slug:      slug,
		Content:   "## Step 1\nDo the thing",
		CreatedAt: now,
		UpdatedAt: now,
	}
	version, err := repo.CreateRecipe(ctx, recipe, "user-1")
	require.NoError(t, err)
	return recipe, version
}

func unitVector(dims, hot int) []float32 {
	v := make([]float32, dims)
	v[hot] = 1
	return v
}
