package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const batchJobColumns = `id, organization_id, space_id, job_type, status, items, processed_count, failed_count, cancel_requested, error, requested_by, created_at, started_at, finished_at`

type BatchJobRepository struct {
	pool *pgxpool.Pool
}

func NewBatchJobRepository(pool *pgxpool.Pool) *BatchJobRepository {
	return &BatchJobRepository{pool: pool}
}

func (r *BatchJobRepository) Create(ctx context.Context, job *domain.BatchJob) error {
	items := job.Items
	if items == nil {
		items = []domain.BatchItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO batch_jobs (id, organization_id, space_id, job_type, status, items, requested_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.OrganizationID, job.SpaceID, job.Type, job.Status, payload, job.RequestedBy, job.CreatedAt,
	)
	return err
}

func (r *BatchJobRepository) GetByID(ctx context.Context, id string) (*domain.BatchJob, error) {
	job, err := scanBatchJob(r.pool.QueryRow(ctx, `SELECT `+batchJobColumns+` FROM batch_jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError(domain.ErrBatchJobNotFound, id)
		}
		return nil, err
	}
	return job, nil
}

func (r *BatchJobRepository) ListByOrganization(ctx context.Context, organizationID, spaceID string, limit int) ([]*domain.BatchJob, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+batchJobColumns+` FROM batch_jobs
		 WHERE organization_id = $1 AND ($2 = '' OR space_id = $2)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3`,
		organizationID, spaceID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]*domain.BatchJob, 0)
	for rows.Next() {
		job, err := scanBatchJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *BatchJobRepository) RequestCancel(ctx context.Context, id string, at time.Time) (*domain.BatchJob, error) {
	job, err := scanBatchJob(r.pool.QueryRow(ctx,
		`UPDATE batch_jobs
		 SET cancel_requested = true,
		     status = CASE WHEN status = 'queued' THEN 'cancelled' ELSE status END,
		     finished_at = CASE WHEN status = 'queued' THEN $2 ELSE finished_at END
		 WHERE id = $1 AND status IN ('queued', 'running')
		 RETURNING `+batchJobColumns,
		id, at,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

// ClaimNext moves the oldest queued job of a type to running. It claims
// nothing while another job of that type is running. Claims of one type are
// serialized by a transaction-scoped advisory lock; a caller that loses the
// lock gets no job and tries again on its next poll.
func (r *BatchJobRepository) ClaimNext(ctx context.Context, jobType domain.BatchJobType, at time.Time) (*domain.BatchJob, error) {
	var job *domain.BatchJob
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var locked bool
		if err := tx.QueryRow(ctx,
			`SELECT pg_try_advisory_xact_lock(hashtext('batch_jobs:' || $1::text))`,
			jobType,
		).Scan(&locked); err != nil {
			return err
		}
		if !locked {
			return nil
		}

		claimed, err := scanBatchJob(tx.QueryRow(ctx,
			`WITH next AS (
				 SELECT id
				 FROM batch_jobs
				 WHERE job_type = $1 AND status = 'queued'
				   AND NOT EXISTS (SELECT 1 FROM batch_jobs WHERE job_type = $1 AND status = 'running')
				 ORDER BY created_at ASC
				 FOR UPDATE SKIP LOCKED
				 LIMIT 1
			 )
			 UPDATE batch_jobs
			 SET status = 'running', started_at = $2
			 FROM next
			 WHERE batch_jobs.id = next.id
			 RETURNING `+prefixedBatchJobColumns,
			jobType, at,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		job = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateProgress stores the counts of a running job and reports whether
// cancellation was requested.
func (r *BatchJobRepository) UpdateProgress(ctx context.Context, id string, processed, failed int) (bool, error) {
	var cancelRequested bool
	err := r.pool.QueryRow(ctx,
		`UPDATE batch_jobs SET processed_count = $1, failed_count = $2 WHERE id = $3 RETURNING cancel_requested`,
		processed, failed, id,
	).Scan(&cancelRequested)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.NewNotFoundError(domain.ErrBatchJobNotFound, id)
		}
		return false, err
	}
	return cancelRequested, nil
}

func (r *BatchJobRepository) IsCancelRequested(ctx context.Context, id string) (bool, error) {
	var cancelRequested bool
	err := r.pool.QueryRow(ctx, `SELECT cancel_requested FROM batch_jobs WHERE id = $1`, id).Scan(&cancelRequested)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.NewNotFoundError(domain.ErrBatchJobNotFound, id)
		}
		return false, err
	}
	return cancelRequested, nil
}

// Finish records the final state of a run
func (r *BatchJobRepository) Finish(ctx context.Context, id string, result domain.BatchJobResult, at time.Time) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE batch_jobs
		 SET status = $1, processed_count = $2, failed_count = $3, error = $4, finished_at = $5
		 WHERE id = $6`,
		result.Status, result.ProcessedCount, result.FailedCount, nullableString(result.Error), at, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.NewNotFoundError(domain.ErrBatchJobNotFound, id)
	}
	return nil
}

// ResetRunning requeues jobs left running by a stopped process
func (r *BatchJobRepository) ResetRunning(ctx context.Context, jobType domain.BatchJobType) (int64, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE batch_jobs SET status = 'queued', started_at = NULL WHERE job_type = $1 AND status = 'running'`,
		jobType,
	)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

const prefixedBatchJobColumns = `batch_jobs.id, batch_jobs.organization_id, batch_jobs.space_id, batch_jobs.job_type, batch_jobs.status,
	batch_jobs.items, batch_jobs.processed_count, batch_jobs.failed_count, batch_jobs.cancel_requested, batch_jobs.error,
	batch_jobs.requested_by, batch_jobs.created_at, batch_jobs.started_at, batch_jobs.finished_at`

func scanBatchJob(row pgx.Row) (*domain.BatchJob, error) {
	var job domain.BatchJob
	var items []byte
	var errMsg pgtype.Text
	if err := row.Scan(&job.ID, &job.OrganizationID, &job.SpaceID, &job.Type, &job.Status, &items, &job.ProcessedCount, &job.FailedCount,
		&job.CancelRequested, &errMsg, &job.RequestedBy, &job.CreatedAt, &job.StartedAt, &job.FinishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &job.Items); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}
