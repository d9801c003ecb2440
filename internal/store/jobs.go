package store

import (
	"context"

	"storefront-sync/internal/models"
)

// SaveFailedJob retains a job that exhausted its retry policy. Saving the
// same job twice keeps the latest failure.
func (s *Store) SaveFailedJob(ctx context.Context, job *models.FailedJob) error {
	payload := job.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	query := `
		INSERT INTO failed_jobs (id, name, payload, attempts, last_error, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET attempts = EXCLUDED.attempts, last_error = EXCLUDED.last_error, failed_at = EXCLUDED.failed_at`

	_, err := s.db.ExecContext(ctx, query,
		job.ID, job.Name, payload, job.Attempts, job.LastError, job.FailedAt)
	return err
}

// ListFailedJobs returns the most recent failed jobs first.
func (s *Store) ListFailedJobs(ctx context.Context, limit int) ([]models.FailedJob, error) {
	if limit <= 0 {
		limit = 50
	}
	jobs := []models.FailedJob{}
	err := s.db.SelectContext(ctx, &jobs,
		"SELECT id, name, payload, attempts, last_error, failed_at FROM failed_jobs ORDER BY failed_at DESC LIMIT $1", limit)
	return jobs, err
}

// IsJobProcessed checks if a job has already completed
func (s *Store) IsJobProcessed(ctx context.Context, jobID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_jobs WHERE job_id = $1)", jobID)
	return exists, err
}

// MarkJobProcessed records a completed job
func (s *Store) MarkJobProcessed(ctx context.Context, jobID, name string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_jobs (job_id, name) VALUES ($1, $2) ON CONFLICT (job_id) DO NOTHING",
		jobID, name)
	return err
}
