package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentmatch/matching-engine/internal/models"
)

type stubRunRepo struct{}

func (s *stubRunRepo) Create(run *models.MatchRun) error               { return nil }
func (s *stubRunRepo) FindByID(id uuid.UUID) (*models.MatchRun, error) { return nil, nil }
func (s *stubRunRepo) UpdateError(id uuid.UUID, errorMsg string) error { return nil }
func (s *stubRunRepo) FindPendingRuns(limit int) ([]models.MatchRun, error) {
	return nil, nil
}
func (s *stubRunRepo) UpdateStatus(id uuid.UUID, status models.MatchRunStatus, partial bool) error {
	return nil
}

type recordingMatcher struct {
	processed chan uuid.UUID
}

func (m *recordingMatcher) ProcessRun(ctx context.Context, runID uuid.UUID) error {
	m.processed <- runID
	return nil
}

func (m *recordingMatcher) MatchSingle(ctx context.Context, candidateID, jobID uuid.UUID) (*models.MatchResult, error) {
	return nil, nil
}

func TestWorkerProcessesEnqueuedRuns(t *testing.T) {
	matcher := &recordingMatcher{processed: make(chan uuid.UUID, 4)}
	w := NewWorker(&stubRunRepo{}, matcher, 2, time.Second)

	w.Start(context.Background())
	defer w.Stop()

	first := uuid.New()
	second := uuid.New()
	w.EnqueueRun(first)
	w.EnqueueRun(second)

	got := map[uuid.UUID]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-matcher.processed:
			got[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for runs to be processed")
		}
	}

	assert.True(t, got[first])
	assert.True(t, got[second])
}

func TestWorkerStopIsIdempotentForEnqueue(t *testing.T) {
	matcher := &recordingMatcher{processed: make(chan uuid.UUID, 1)}
	w := NewWorker(&stubRunRepo{}, matcher, 1, time.Second)

	w.Start(context.Background())
	w.Stop()

	done := make(chan struct{})
	go func() {
		// Must not block after shutdown.
		w.EnqueueRun(uuid.New())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EnqueueRun blocked after Stop")
	}

	require.Empty(t, matcher.processed)
}
