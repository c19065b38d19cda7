package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aprendeai-extraction-worker/models"
	"aprendeai-extraction-worker/services"
)

type fakeRunner struct {
	calls []string
	err   error
}

func (f *fakeRunner) Extract(_ context.Context, contentID string) (*services.JobResult, error) {
	f.calls = append(f.calls, contentID)
	if f.err != nil {
		return &services.JobResult{ContentID: contentID, Status: models.StatusFailed}, f.err
	}
	return &services.JobResult{ContentID: contentID, Status: models.StatusDone}, nil
}

func jobTask(t *testing.T, job any) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(job)
	require.NoError(t, err)
	return asynq.NewTask(TaskExtractText, payload)
}

func TestNewExtractTextTask(t *testing.T) {
	task, err := NewExtractTextTask("content-42", "content_extraction", 3, 3*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, TaskExtractText, task.Type())

	var job ExtractionJob
	require.NoError(t, json.Unmarshal(task.Payload(), &job))
	assert.Equal(t, ActionExtractText, job.Action)
	assert.Equal(t, "content-42", job.ContentID)

	_, err = time.Parse(time.RFC3339, job.Timestamp)
	assert.NoError(t, err)

	_, err = NewExtractTextTask("", "content_extraction", 3, 0)
	assert.Error(t, err)
}

func TestProcessTask_Success(t *testing.T) {
	runner := &fakeRunner{}
	consumer := NewExtractionConsumer(runner, true, 3, nil)

	err := consumer.ProcessTask(context.Background(), jobTask(t, ExtractionJob{
		Action:    ActionExtractText,
		ContentID: "c1",
		Timestamp: "2024-01-01T00:00:00Z",
	}))
	assert.NoError(t, err)
	assert.Equal(t, []string{"c1"}, runner.calls)
}

func TestProcessTask_MalformedPayload(t *testing.T) {
	runner := &fakeRunner{}
	consumer := NewExtractionConsumer(runner, true, 3, nil)

	err := consumer.ProcessTask(context.Background(), asynq.NewTask(TaskExtractText, []byte("{not json")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, runner.calls)
}

func TestProcessTask_MissingContentID(t *testing.T) {
	runner := &fakeRunner{}
	consumer := NewExtractionConsumer(runner, true, 3, nil)

	err := consumer.ProcessTask(context.Background(), jobTask(t, map[string]string{"action": ActionExtractText}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, runner.calls)
}

func TestProcessTask_UnknownActionIsAcknowledged(t *testing.T) {
	runner := &fakeRunner{}
	consumer := NewExtractionConsumer(runner, true, 3, nil)

	err := consumer.ProcessTask(context.Background(), jobTask(t, ExtractionJob{Action: "GENERATE_QUIZ", ContentID: "c1"}))
	assert.NoError(t, err)
	assert.Empty(t, runner.calls)
}

func TestProcessTask_FailurePolicy(t *testing.T) {
	transient := fmt.Errorf("%w: replace chunks: %w", services.ErrPersistence, errors.New("socket closed"))
	permanent := fmt.Errorf("%w: c1", services.ErrContentNotFound)

	tests := []struct {
		name            string
		runErr          error
		retryFailed     bool
		maxRedeliveries int
		wantNil         bool
		wantSkipRetry   bool
	}{
		{"permanent is not retried", permanent, true, 3, false, true},
		{"transient is requeued", transient, true, 3, false, false},
		{"transient with retry disabled is acked", transient, false, 3, true, false},
		{"transient past the limit is acked", transient, true, 0, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{err: tt.runErr}
			consumer := NewExtractionConsumer(runner, tt.retryFailed, tt.maxRedeliveries, nil)

			err := consumer.ProcessTask(context.Background(), jobTask(t, ExtractionJob{Action: ActionExtractText, ContentID: "c1"}))
			if tt.wantNil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantSkipRetry, errors.Is(err, asynq.SkipRetry))
			if !tt.wantSkipRetry {
				assert.ErrorIs(t, err, services.ErrPersistence)
			}
		})
	}
}
