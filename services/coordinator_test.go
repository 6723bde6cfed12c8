package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crispinterview/backend/models"
	"github.com/crispinterview/backend/repository"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []SessionEvent
}

func (r *eventRecorder) PublishEvent(event SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) countByType(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, event := range r.events {
		if event.Type == eventType {
			count++
		}
	}
	return count
}

func newTestCoordinator(t *testing.T) (*SessionCoordinator, *repository.MemoryStore, *fakeClock, *eventRecorder) {
	t.Helper()
	store := repository.NewMemoryStore()
	clock := &fakeClock{}
	recorder := &eventRecorder{}
	coordinator := NewSessionCoordinator(store, NewScoringPipeline(failingGenerator{}), recorder, clock)
	return coordinator, store, clock, recorder
}

func adaProfile() ProfileInput {
	return ProfileInput{
		Name:       "Ada Lovelace",
		Email:      "ada@example.com",
		Phone:      "555-010-1842",
		ResumeText: "Ada Lovelace\nada@example.com\nFull-stack developer.",
	}
}

func TestCoordinatorFullInterviewFlow(t *testing.T) {
	coordinator, store, _, recorder := newTestCoordinator(t)
	ctx := context.Background()

	candidate, interview, err := coordinator.StartProfile(ctx, adaProfile())
	require.NoError(t, err)
	require.NotNil(t, candidate)
	require.NotNil(t, interview)
	require.Len(t, interview.Questions, 6)

	session := coordinator.Session()
	assert.Equal(t, candidate.ID, session.CurrentCandidateID)
	assert.Equal(t, interview.ID, session.CurrentInterviewID)

	state, err := store.GetSessionState(ctx)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, interview.ID, *state.CurrentInterviewID)

	assert.Equal(t, models.TimeLimitEasy, interview.Questions[0].TimeLimit)

	answers := []string{
		"let and const are block scoped, var is function scoped and hoisted.",
		"A closure is a function capturing variables from its enclosing scope.",
		"Create an express app, register route handlers and listen on a port.",
		"useState holds state, useEffect runs side effects after render.",
		"Fan out over a broker, persist per conversation, ack for delivery.",
		"Dynamic programming over prefix pairs, O(n*m) time and space.",
	}
	for i, text := range answers {
		current, err := store.GetInterviewByID(ctx, interview.ID)
		require.NoError(t, err)
		question := CurrentQuestion(current)
		require.NotNil(t, question, "question %d", i)

		timeSpent := 30
		updated, err := coordinator.SubmitAnswer(ctx, text, &timeSpent, question.ID)
		require.NoError(t, err)

		if i < 5 {
			assert.Equal(t, i+1, updated.CurrentQuestionIndex)
			assert.Equal(t, models.StatusInProgress, updated.Status)
		}
	}

	final, err := store.GetInterviewByID(ctx, interview.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, final.Status)
	require.NotNil(t, final.FinalScore)
	assert.GreaterOrEqual(t, *final.FinalScore, 0)
	assert.LessOrEqual(t, *final.FinalScore, 100)
	require.NotNil(t, final.FinalSummary)
	require.Len(t, final.Answers, 6)
	for _, answer := range final.Answers {
		require.NotNil(t, answer.Score)
		assert.GreaterOrEqual(t, *answer.Score, 1)
		assert.LessOrEqual(t, *answer.Score, 10)
	}

	assert.Equal(t, 1, recorder.countByType(EventInterviewCompleted))
	assert.Equal(t, 6, recorder.countByType(EventScoringStarted))
	assert.Equal(t, 6, recorder.countByType(EventScoringCompleted))
	assert.Equal(t, 6, recorder.countByType(EventQuestionStarted))
}

func TestCoordinatorTimerExpiryAutoSubmits(t *testing.T) {
	coordinator, store, clock, recorder := newTestCoordinator(t)
	ctx := context.Background()

	_, interview, err := coordinator.StartProfile(ctx, adaProfile())
	require.NoError(t, err)

	// Drain the first question's whole budget.
	for i := 0; i < models.TimeLimitEasy; i++ {
		clock.tick()
	}

	require.Eventually(t, func() bool {
		current, err := store.GetInterviewByID(ctx, interview.ID)
		return err == nil && current.CurrentQuestionIndex == 1
	}, 5*time.Second, 10*time.Millisecond)

	current, err := store.GetInterviewByID(ctx, interview.ID)
	require.NoError(t, err)
	require.Len(t, current.Answers, 1)
	assert.Equal(t, "", current.Answers[0].Text)
	assert.Equal(t, models.TimeLimitEasy, current.Answers[0].TimeSpent)
	require.NotNil(t, current.Answers[0].Score)
	assert.Equal(t, 1, *current.Answers[0].Score)

	assert.Equal(t, 1, recorder.countByType(EventTimerExpired))
}

func TestCoordinatorStaleSubmitIsNoOp(t *testing.T) {
	coordinator, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, interview, err := coordinator.StartProfile(ctx, adaProfile())
	require.NoError(t, err)
	firstQuestion := interview.Questions[0].ID

	timeSpent := 20
	_, err = coordinator.SubmitAnswer(ctx, "real answer", &timeSpent, firstQuestion)
	require.NoError(t, err)

	// A late duplicate for the already-answered question must change nothing.
	late := 180
	updated, err := coordinator.SubmitAnswer(ctx, "", &late, firstQuestion)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CurrentQuestionIndex)

	current, err := store.GetInterviewByID(ctx, interview.ID)
	require.NoError(t, err)
	require.Len(t, current.Answers, 1)
	assert.Equal(t, "real answer", current.Answers[0].Text)
}

func TestCoordinatorDetectResumablePrefersLastResumed(t *testing.T) {
	coordinator, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	older := seedInProgressInterview(t, store, "Grace Hopper", "grace@example.com", -2*time.Hour)
	seedInProgressInterview(t, store, "Alan Turing", "alan@example.com", -1*time.Hour)

	// The older interview was resumed most recently, so it wins.
	resumedAt := time.Now().Add(-10 * time.Minute)
	older.LastResumedAt = &resumedAt
	require.NoError(t, store.UpdateInterview(ctx, older))

	resumable, err := coordinator.DetectResumable(ctx)
	require.NoError(t, err)
	require.NotNil(t, resumable)
	assert.Equal(t, older.ID, resumable.Interview.ID)
	assert.Equal(t, "Grace Hopper", resumable.Candidate.Name)

	state, err := store.GetSessionState(ctx)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.IsResuming)
	assert.Equal(t, older.ID, *state.CurrentInterviewID)
}

func TestCoordinatorDetectResumableFallsBackToStartedAt(t *testing.T) {
	coordinator, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	seedInProgressInterview(t, store, "Grace Hopper", "grace@example.com", -2*time.Hour)
	newer := seedInProgressInterview(t, store, "Alan Turing", "alan@example.com", -1*time.Hour)

	resumable, err := coordinator.DetectResumable(ctx)
	require.NoError(t, err)
	require.NotNil(t, resumable)
	assert.Equal(t, newer.ID, resumable.Interview.ID)
}

func TestCoordinatorDetectResumableIgnoresCompleted(t *testing.T) {
	coordinator, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	interview := seedInProgressInterview(t, store, "Grace Hopper", "grace@example.com", -time.Hour)
	Finalize(interview, 70, "done")
	require.NoError(t, store.UpdateInterview(ctx, interview))

	resumable, err := coordinator.DetectResumable(ctx)
	require.NoError(t, err)
	assert.Nil(t, resumable)
}

func TestCoordinatorResumeRestartsTimer(t *testing.T) {
	coordinator, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	interview := seedInProgressInterview(t, store, "Grace Hopper", "grace@example.com", -time.Hour)
	require.True(t, Advance(interview))
	require.True(t, Advance(interview))
	require.NoError(t, store.UpdateInterview(ctx, interview))

	resumable, err := coordinator.DetectResumable(ctx)
	require.NoError(t, err)
	require.NotNil(t, resumable)

	resumed, err := coordinator.Resume(ctx)
	require.NoError(t, err)
	require.NotNil(t, resumed.LastResumedAt)
	assert.Equal(t, 2, resumed.CurrentQuestionIndex)

	// Question three is Medium; the countdown restarts with its full budget.
	assert.Equal(t, models.TimeLimitMedium, coordinator.timer.TimeRemaining())
	assert.True(t, coordinator.timer.Active())

	state, err := store.GetSessionState(ctx)
	require.NoError(t, err)
	assert.False(t, state.IsResuming)
}

func TestCoordinatorResumeSkipsAnsweredQuestion(t *testing.T) {
	coordinator, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	// A crash between recording an answer and advancing leaves the pointer
	// behind; resuming must repair it.
	interview := seedInProgressInterview(t, store, "Grace Hopper", "grace@example.com", -time.Hour)
	question := CurrentQuestion(interview)
	answer := RecordAnswer(interview, question.ID, "recorded before crash", 60)
	require.NotNil(t, answer)
	require.NoError(t, store.CreateAnswer(ctx, answer))

	resumable, err := coordinator.DetectResumable(ctx)
	require.NoError(t, err)
	require.NotNil(t, resumable)

	resumed, err := coordinator.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed.CurrentQuestionIndex)
}

func TestCoordinatorStartNewAbandonsCurrent(t *testing.T) {
	coordinator, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, interview, err := coordinator.StartProfile(ctx, adaProfile())
	require.NoError(t, err)
	assert.True(t, coordinator.timer.Active())

	session, err := coordinator.StartNew(ctx)
	require.NoError(t, err)
	assert.Empty(t, session.CurrentCandidateID)
	assert.Empty(t, session.CurrentInterviewID)
	assert.False(t, coordinator.timer.Active())

	abandoned, err := store.GetInterviewByID(ctx, interview.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, abandoned.Status)
	assert.Nil(t, abandoned.FinalScore)

	// Abandoned interviews are never offered again.
	resumable, err := coordinator.DetectResumable(ctx)
	require.NoError(t, err)
	assert.Nil(t, resumable)
}

func TestCoordinatorStartProfileAbandonsCurrent(t *testing.T) {
	coordinator, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, first, err := coordinator.StartProfile(ctx, adaProfile())
	require.NoError(t, err)

	second := adaProfile()
	second.Name = "Grace Hopper"
	second.Email = "grace@example.com"
	_, replacement, err := coordinator.StartProfile(ctx, second)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, replacement.ID)

	abandoned, err := store.GetInterviewByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, abandoned.Status)
	assert.Nil(t, abandoned.FinalScore)

	// The replaced interview must never come back as a resume offer.
	resumable, err := coordinator.DetectResumable(ctx)
	require.NoError(t, err)
	require.NotNil(t, resumable)
	assert.Equal(t, replacement.ID, resumable.Interview.ID)
}

func TestCoordinatorViewDerivesPaused(t *testing.T) {
	coordinator, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	interview := seedInProgressInterview(t, store, "Grace Hopper", "grace@example.com", -time.Hour)

	resumable, err := coordinator.DetectResumable(ctx)
	require.NoError(t, err)
	require.NotNil(t, resumable)

	view, err := coordinator.View(ctx)
	require.NoError(t, err)
	require.NotNil(t, view.Interview)
	assert.True(t, view.Paused, "in-progress interview with no running timer is paused")
	require.NotNil(t, view.Resumable)
	assert.Equal(t, interview.ID, view.Resumable.Interview.ID)

	_, err = coordinator.Resume(ctx)
	require.NoError(t, err)

	view, err = coordinator.View(ctx)
	require.NoError(t, err)
	assert.False(t, view.Paused)
	assert.Nil(t, view.Resumable)
	require.NotNil(t, view.CurrentQuestion)
	assert.Equal(t, models.TimeLimitEasy, view.TimeRemaining)
}

func seedInProgressInterview(t *testing.T, store repository.Store, name, email string, startedAgo time.Duration) *models.Interview {
	t.Helper()
	ctx := context.Background()

	candidate := &models.Candidate{
		ID:        name + "-" + email,
		Name:      name,
		Email:     email,
		Phone:     "555-000-0000",
		CreatedAt: time.Now().Add(startedAgo),
	}
	require.NoError(t, store.CreateCandidate(ctx, candidate))

	interview := NewInterview(candidate.ID, FallbackQuestions())
	startedAt := time.Now().Add(startedAgo)
	interview.StartedAt = &startedAt
	interview.CreatedAt = startedAt
	require.NoError(t, store.CreateInterview(ctx, interview))
	return interview
}
