package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront-sync/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func jobMessage(t *testing.T, offset int64, job models.Job) kafka.Message {
	t.Helper()
	b, err := json.Marshal(job)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestPublishJob(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: zap.NewNop()}

	job := models.Job{ID: "j1", Name: models.JobSendEmail, Payload: json.RawMessage(`{"to":"a@b.c"}`)}
	require.NoError(t, p.PublishJob(context.Background(), job))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "j1", string(w.msgs[0].Key))
	assert.Equal(t, models.JobSendEmail, string(w.msgs[0].Headers[0].Value))

	decoded, err := DecodeJob(w.msgs[0])
	require.NoError(t, err)
	assert.Equal(t, job.ID, decoded.ID)
	assert.JSONEq(t, `{"to":"a@b.c"}`, string(decoded.Payload))
}

func TestPublishJobWrapsWriteError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("broker down")}, logger: zap.NewNop()}

	err := p.PublishJob(context.Background(), models.Job{ID: "j1"})
	assert.ErrorContains(t, err, "broker down")
}

func TestConsumerCommitsOnlyHandledMessages(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		jobMessage(t, 1, models.Job{ID: "a", Name: "ok"}),
		jobMessage(t, 2, models.Job{ID: "b", Name: "fail"}),
		jobMessage(t, 3, models.Job{ID: "c", Name: "ok"}),
	}}
	c := &Consumer{reader: r, topic: "jobs", logger: zap.NewNop()}

	router := NewJobRouter(zap.NewNop())
	var mu sync.Mutex
	var handled []string
	router.On("ok", func(_ context.Context, job models.Job) error {
		mu.Lock()
		handled = append(handled, job.ID)
		mu.Unlock()
		return nil
	})
	router.On("fail", func(context.Context, models.Job) error { return errors.New("nope") })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := c.StartConsuming(ctx, router.HandleMessage)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"a", "c"}, handled)
	assert.Equal(t, []int64{1, 3}, r.committed)
}

func TestJobRouterFallbackAndMalformed(t *testing.T) {
	router := NewJobRouter(zap.NewNop())
	var got string
	router.Default(func(_ context.Context, job models.Job) error {
		got = job.Name
		return nil
	})

	require.NoError(t, router.HandleMessage(context.Background(), jobMessage(t, 1, models.Job{ID: "x", Name: "custom"})))
	assert.Equal(t, "custom", got)

	assert.NoError(t, router.HandleMessage(context.Background(), kafka.Message{Value: []byte("{not json")}))
}

func TestDecodeJobFallsBackToHeaderName(t *testing.T) {
	msg := kafka.Message{
		Value:   []byte(`{"id":"j9"}`),
		Headers: []kafka.Header{{Key: jobNameHeader, Value: []byte(models.JobGenerateReport)}},
	}
	job, err := DecodeJob(msg)
	require.NoError(t, err)
	assert.Equal(t, models.JobGenerateReport, job.Name)
}
