package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/learnings/internal/api/handlers"
	"github.com/cloo-solutions/learnings/internal/database"
	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/jobs"
	"github.com/cloo-solutions/learnings/internal/server"
	"github.com/cloo-solutions/learnings/internal/telemetry"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the learnings API server together with the embedding and batch job workers",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides LEARNINGS_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-workers", false, "Serve the API without running background workers")
	cmd.Flags().String("migrations", database.DefaultMigrationsSource, "Migration source URL")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, log := a.cfg, a.log

	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: telemetry.SampleRateFor(cfg.Environment),
		Debug:            cfg.Debug,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer shutdownTelemetry()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	// Run migrations unless --no-migrate flag is set
	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		source, _ := cmd.Flags().GetString("migrations")
		if err := migrateUp(cfg.DatabaseURL, source, a); err != nil {
			return err
		}
	}

	var workers []*jobs.Worker
	if noWorkers, _ := cmd.Flags().GetBool("no-workers"); !noWorkers {
		workers, err = startWorkers(ctx, a)
		if err != nil {
			return err
		}
	}

	router := server.NewRouter(server.RouterConfig{
		Logger:        log,
		Spaces:        a.spaces,
		TopicHandler:  handlers.NewTopicHandler(a.topics, a.distiller, a.batchJobs),
		PatchHandler:  handlers.NewPatchHandler(a.patches),
		JobHandler:    handlers.NewJobHandler(a.batchJobs),
		SearchHandler: handlers.NewSearchHandler(a.embeddings),
		RagLabHandler: handlers.NewRagLabHandler(a.ragLab, a.embeddings),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	for _, w := range workers {
		w.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

// startWorkers recovers work interrupted by a previous process and starts
// the embedding worker and one batch worker per job type.
func startWorkers(ctx context.Context, a *app) ([]*jobs.Worker, error) {
	cfg, log := a.cfg, a.log

	reset, err := a.embeddingJobs.ResetProcessing(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reset embedding jobs: %w", err)
	}
	if reset > 0 {
		log.Info("embedding jobs returned to pending", "count", reset)
	}

	runner := jobs.NewBatchJobRunner(a.batchJobRepo, cfg.MaxConcurrentAICalls, log)
	processors := []struct {
		name      string
		processor *jobs.BatchJobProcessor
	}{
		{"distill-topics", jobs.NewBatchJobProcessor(a.batchJobRepo, domain.BatchJobTypeDistillTopics, runner, jobs.NewDistillHandler(a.distiller), log)},
		{"embed-artifacts", jobs.NewBatchJobProcessor(a.batchJobRepo, domain.BatchJobTypeEmbedArtifacts, runner, jobs.NewEmbedHandler(a.embeddings), log)},
	}

	workers := []*jobs.Worker{
		jobs.NewWorker("embedding", jobs.NewEmbeddingWorker(a.embeddingJobs, a.embeddings, log), cfg.EmbeddingPollInterval, log),
	}
	for _, p := range processors {
		if err := p.processor.Recover(ctx); err != nil {
			return nil, fmt.Errorf("failed to recover %s jobs: %w", p.name, err)
		}
		workers = append(workers, jobs.NewWorker(p.name, p.processor, cfg.JobPollInterval, log))
	}

	for _, w := range workers {
		go w.Start(ctx)
	}
	log.Info("workers started", "count", len(workers), "max_concurrent_ai_calls", cfg.MaxConcurrentAICalls)
	return workers, nil
}

func migrateUp(databaseURL, source string, a *app) error {
	mg, err := database.NewMigrator(databaseURL, source, a.log)
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
