package admin

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/learnings/internal/config"
	"github.com/cloo-solutions/learnings/internal/database"
	"github.com/cloo-solutions/learnings/internal/logger"
	"github.com/cloo-solutions/learnings/internal/openai"
	"github.com/cloo-solutions/learnings/internal/repository"
	"github.com/cloo-solutions/learnings/internal/service"
	"github.com/cloo-solutions/learnings/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// app is the wired object graph shared by every admin command
type app struct {
	cfg  *config.Config
	log  *logger.Logger
	pool *pgxpool.Pool

	spaces        *repository.SpaceRepository
	topicRepo     *repository.TopicRepository
	patchRepo     *repository.KnowledgePatchRepository
	standards     *repository.StandardRepository
	recipes       *repository.RecipeRepository
	embeddingJobs *repository.EmbeddingJobRepository
	batchJobRepo  *repository.BatchJobRepository
	ragLabRepo    *repository.RagLabConfigRepository

	ai         *openai.Client
	topics     *service.TopicService
	patches    *service.KnowledgePatchService
	distiller  *service.DistillationService
	embeddings *service.EmbeddingService
	ragLab     *service.RagLabService
	batchJobs  *service.BatchJobService
}

// loadApp reads the configuration, builds the logger and wires the app.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogMode, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:           cfg,
		log:           log,
		pool:          pool,
		spaces:        repository.NewSpaceRepository(pool),
		topicRepo:     repository.NewTopicRepository(pool),
		patchRepo:     repository.NewKnowledgePatchRepository(pool),
		standards:     repository.NewStandardRepository(pool),
		recipes:       repository.NewRecipeRepository(pool),
		embeddingJobs: repository.NewEmbeddingJobRepository(pool),
		batchJobRepo:  repository.NewBatchJobRepository(pool),
		ragLabRepo:    repository.NewRagLabConfigRepository(pool),
	}

	var archive service.ReviewArchive
	if cfg.HasS3() {
		s3Archive, err := storage.NewS3Archive(ctx, storage.S3ArchiveConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create S3 archive: %w", err)
		}
		if err := s3Archive.EnsureBucket(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Info("review archive ready", "bucket", cfg.S3Bucket)
		archive = s3Archive
	}

	a.ai = openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		CompletionModel:     cfg.CompletionModel,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		MaxRetries:          cfg.AIMaxRetries,
		RequestTimeout:      cfg.AIRequestTimeout,
	}, log)
	if !cfg.HasOpenAI() {
		log.Warn("AI provider not configured, distillation and embeddings are disabled")
	}

	a.topics = service.NewTopicService(a.topicRepo, log)
	a.embeddings = service.NewEmbeddingService(service.EmbeddingServiceDeps{
		AI:            a.ai,
		Standards:     a.standards,
		Recipes:       a.recipes,
		Spaces:        a.spaces,
		RagLab:        a.ragLabRepo,
		EmbeddingJobs: a.embeddingJobs,
	}, log)
	applier := service.NewPatchApplier(a.standards, a.embeddingJobs, log)
	a.patches = service.NewKnowledgePatchService(a.patchRepo, repository.NewTxRunner(pool), applier, archive, log)
	a.distiller = service.NewDistillationService(a.ai, a.standards, a.recipes, a.topicRepo, a.patches, log)
	a.ragLab = service.NewRagLabService(a.ragLabRepo)
	a.batchJobs = service.NewBatchJobService(a.batchJobRepo, a.topicRepo, a.embeddings, log)

	return a, nil
}

func (a *app) Close() {
	a.pool.Close()
	a.log.Sync()
}
