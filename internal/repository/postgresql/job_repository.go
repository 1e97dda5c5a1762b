package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"recipe-ingest-service/internal/apperr"
	"recipe-ingest-service/internal/entity"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

// CreateJob inserts the job and one step per type, in order, in a single
// transaction. A second job for the same source returns ErrConflict.
func (r *JobRepository) CreateJob(ctx context.Context, sourceID uuid.UUID, types []entity.StepType) (*entity.Job, error) {
	if len(types) == 0 {
		return nil, errors.New("job needs at least one step")
	}

	const insertJob = `
INSERT INTO jobs (source_id, status)
VALUES ($1, 'created')
RETURNING id, created_at;
`
	const insertStep = `
INSERT INTO job_steps (job_id, type, step_order, status)
VALUES ($1, $2, $3, 'created')
RETURNING id;
`
	job := entity.Job{SourceID: sourceID, Status: entity.StatusCreated}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertJob, sourceID).Scan(&job.ID, &job.CreatedAt); err != nil {
			return err
		}
		job.Steps = make([]entity.Step, 0, len(types))
		for i, typ := range types {
			st := entity.Step{JobID: job.ID, Type: typ, Order: i, Status: entity.StatusCreated}
			if err := tx.QueryRow(ctx, insertStep, job.ID, string(typ), i).Scan(&st.ID); err != nil {
				return err
			}
			job.Steps = append(job.Steps, st)
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return &job, nil
}

const selectJob = `
SELECT id, source_id, status, error_kind, error_message, created_at, started_at, completed_at
FROM jobs
`

// GetJob returns the job with its steps ordered by step order. Job and steps
// are read from one snapshot so a concurrent failure is seen on both or neither.
func (r *JobRepository) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return r.getJob(ctx, selectJob+`WHERE id = $1;`, id)
}

func (r *JobRepository) GetJobBySource(ctx context.Context, sourceID uuid.UUID) (*entity.Job, error) {
	return r.getJob(ctx, selectJob+`WHERE source_id = $1;`, sourceID)
}

func (r *JobRepository) getJob(ctx context.Context, q string, arg any) (*entity.Job, error) {
	const steps = `
SELECT id, job_id, type, step_order, status, error_message, started_at, completed_at
FROM job_steps
WHERE job_id = $1
ORDER BY step_order;
`
	var job *entity.Job
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := pgx.BeginTxFunc(ctx, r.pool, opts, func(tx pgx.Tx) error {
		j, err := scanJob(tx.QueryRow(ctx, q, arg))
		if err != nil {
			return err
		}

		rows, err := tx.Query(ctx, steps, j.ID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				st         entity.Step
				typeText   string
				statusText string
			)
			if err := rows.Scan(&st.ID, &st.JobID, &typeText, &st.Order, &statusText,
				&st.ErrorMessage, &st.StartedAt, &st.CompletedAt); err != nil {
				return err
			}
			st.Type = entity.StepType(typeText)
			st.Status = entity.JobStatus(statusText)
			j.Steps = append(j.Steps, st)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		job        entity.Job
		statusText string
	)
	if err := row.Scan(
		&job.ID,
		&job.SourceID,
		&statusText,
		&job.ErrorKind,    // NULL => nil
		&job.ErrorMessage, // NULL => nil
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	job.Status = entity.JobStatus(statusText)
	return &job, nil
}

// StartJob moves a job from created to processing.
func (r *JobRepository) StartJob(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE jobs SET status='processing', started_at=now() WHERE id=$1 AND status='created';`
	return expectOne(r.pool.Exec(ctx, q, id))
}

// MarkStepProcessing starts a created step. It refuses while any earlier
// step of the same job is not completed.
func (r *JobRepository) MarkStepProcessing(ctx context.Context, stepID uuid.UUID) error {
	const q = `
UPDATE job_steps s SET status='processing', started_at=now()
WHERE s.id=$1 AND s.status='created'
  AND NOT EXISTS (
	SELECT 1 FROM job_steps p
	WHERE p.job_id = s.job_id AND p.step_order < s.step_order AND p.status <> 'completed'
  );
`
	return expectOne(r.pool.Exec(ctx, q, stepID))
}

func (r *JobRepository) MarkStepCompleted(ctx context.Context, stepID uuid.UUID) error {
	const q = `UPDATE job_steps SET status='completed', completed_at=now() WHERE id=$1 AND status='processing';`
	return expectOne(r.pool.Exec(ctx, q, stepID))
}

func (r *JobRepository) MarkStepFailed(ctx context.Context, stepID uuid.UUID, message string) error {
	return markStepFailed(ctx, r.pool, stepID, message)
}

// FailStep records a step failure and the resulting job failure atomically.
func (r *JobRepository) FailStep(ctx context.Context, jobID, stepID uuid.UUID, kind apperr.Kind, message string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := markStepFailed(ctx, tx, stepID, message); err != nil {
			return fmt.Errorf("step: %w", err)
		}
		if err := markJobFailed(ctx, tx, jobID, kind, message); err != nil {
			return fmt.Errorf("job: %w", err)
		}
		return nil
	})
}

// MarkJobFailed fails a job that is created or processing.
func (r *JobRepository) MarkJobFailed(ctx context.Context, jobID uuid.UUID, kind apperr.Kind, message string) error {
	return markJobFailed(ctx, r.pool, jobID, kind, message)
}

// FailUnstarted fails a job only while it is still created. A job a worker
// has already started yields ErrInvalidTransition.
func (r *JobRepository) FailUnstarted(ctx context.Context, jobID uuid.UUID, kind apperr.Kind, message string) error {
	const q = `
UPDATE jobs SET status='failed', error_kind=$2, error_message=$3, completed_at=now()
WHERE id=$1 AND status='created';
`
	return expectOne(r.pool.Exec(ctx, q, jobID, string(kind), message))
}

// FailStale fails jobs that have been processing for longer than olderThan,
// or were created that long ago and never started, along with their
// processing steps. It returns the number of jobs failed.
func (r *JobRepository) FailStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	const jobs = `
UPDATE jobs SET status='failed', error_kind=$2, error_message=$3, completed_at=now()
WHERE (status='processing' AND started_at < now() - make_interval(secs => $1))
   OR (status='created' AND created_at < now() - make_interval(secs => $1))
RETURNING id;
`
	const steps = `
UPDATE job_steps SET status='failed', error_message=$2, completed_at=now()
WHERE status='processing' AND job_id = ANY($1::uuid[]);
`
	const msg = "job was interrupted before finishing"

	var n int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, jobs, olderThan.Seconds(), string(apperr.Interrupted), msg)
		if err != nil {
			return err
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		idText := make([]string, len(ids))
		for i, id := range ids {
			idText[i] = id.String()
		}
		if _, err := tx.Exec(ctx, steps, idText, msg); err != nil {
			return err
		}
		n = int64(len(ids))
		return nil
	})
	return n, err
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func markStepFailed(ctx context.Context, db execer, stepID uuid.UUID, message string) error {
	const q = `UPDATE job_steps SET status='failed', error_message=$2, completed_at=now() WHERE id=$1 AND status='processing';`
	return expectOne(db.Exec(ctx, q, stepID, message))
}

func markJobFailed(ctx context.Context, db execer, jobID uuid.UUID, kind apperr.Kind, message string) error {
	const q = `
UPDATE jobs SET status='failed', error_kind=$2, error_message=$3, completed_at=now()
WHERE id=$1 AND status IN ('created', 'processing');
`
	return expectOne(db.Exec(ctx, q, jobID, string(kind), message))
}

func markJobCompleted(ctx context.Context, db execer, jobID uuid.UUID) error {
	const q = `
UPDATE jobs SET status='completed', completed_at=now(), error_kind=NULL, error_message=NULL
WHERE id=$1 AND status='processing';
`
	return expectOne(db.Exec(ctx, q, jobID))
}

func expectOne(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}
