package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"storefront-sync/internal/models"
	"storefront-sync/internal/util"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePublisher struct {
	jobs []models.Job
	err  error
}

func (p *fakePublisher) PublishJob(_ context.Context, job models.Job) error {
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

func TestEnqueueAppliesDefaultPolicy(t *testing.T) {
	pub := &fakePublisher{}
	m := util.NewTestMetrics()
	q := New(pub, models.RetryPolicy{}, m, zap.NewNop())

	id, err := q.EnqueueEmail(context.Background(), "admin@example.com", "Product updated", "Product 7 changed")
	require.NoError(t, err)

	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	require.Len(t, pub.jobs, 1)
	job := pub.jobs[0]
	assert.Equal(t, id, job.ID)
	assert.Equal(t, models.JobSendEmail, job.Name)
	assert.Equal(t, models.DefaultRetryPolicy(), job.Retry)

	var payload models.EmailPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, "admin@example.com", payload.To)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues(models.JobSendEmail, "enqueued")))
}

func TestEnqueueWithExplicitPolicy(t *testing.T) {
	pub := &fakePublisher{}
	q := New(pub, models.DefaultRetryPolicy(), nil, zap.NewNop())

	policy := models.RetryPolicy{MaxAttempts: 5, BackoffType: models.BackoffExponential, Backoff: 2 * time.Second}
	_, err := q.Enqueue(context.Background(), "custom", map[string]string{"k": "v"}, policy)
	require.NoError(t, err)
	assert.Equal(t, policy, pub.jobs[0].Retry)
}

func TestEnqueueReturnsPublishError(t *testing.T) {
	q := New(&fakePublisher{err: errors.New("kafka down")}, models.DefaultRetryPolicy(), nil, zap.NewNop())

	_, err := q.EnqueueReport(context.Background(), "u1", "sales")
	assert.ErrorContains(t, err, "kafka down")
}

func TestEnqueueRejectsUnmarshalablePayload(t *testing.T) {
	q := New(&fakePublisher{}, models.DefaultRetryPolicy(), nil, zap.NewNop())

	_, err := q.Enqueue(context.Background(), "bad", make(chan int))
	assert.Error(t, err)
}
