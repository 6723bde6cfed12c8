package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crispinterview/backend/models"
	"github.com/crispinterview/backend/repository"
	"github.com/google/uuid"
)

// SessionContext identifies which candidate/interview the UI is presently
// acting upon. The pair is always updated together.
type SessionContext struct {
	CurrentCandidateID string `json:"current_candidate_id,omitempty"`
	CurrentInterviewID string `json:"current_interview_id,omitempty"`
}

// ProfileInput is a completed candidate profile ready to start an interview.
type ProfileInput struct {
	Name       string
	Email      string
	Phone      string
	ResumeText string
}

// SessionEvent is broadcast to connected UI clients as the engine moves.
type SessionEvent struct {
	Type          string `json:"type"`
	InterviewID   string `json:"interview_id,omitempty"`
	QuestionID    string `json:"question_id,omitempty"`
	QuestionIndex int    `json:"question_index,omitempty"`
	TimeRemaining int    `json:"time_remaining,omitempty"`
	Status        string `json:"status,omitempty"`
}

// Session event types.
const (
	EventTimerTick          = "timer_tick"
	EventTimerExpired       = "timer_expired"
	EventQuestionStarted    = "question_started"
	EventScoringStarted     = "scoring_started"
	EventScoringCompleted   = "scoring_completed"
	EventInterviewCompleted = "interview_completed"
	EventInterviewResumed   = "interview_resumed"
)

type EventPublisher interface {
	PublishEvent(event SessionEvent)
}

// ResumableSession is an interrupted interview offered back to the user.
// It is surfaced only; resuming requires explicit confirmation.
type ResumableSession struct {
	Interview     *models.Interview `json:"interview"`
	Candidate     *models.Candidate `json:"candidate"`
	QuestionIndex int               `json:"question_index"`
	Answered      int               `json:"answered"`
	Total         int               `json:"total"`
}

// SessionView is the presentation snapshot of the current session.
type SessionView struct {
	Session           SessionContext    `json:"session"`
	Candidate         *models.Candidate `json:"candidate,omitempty"`
	Interview         *models.Interview `json:"interview,omitempty"`
	CurrentQuestion   *models.Question  `json:"current_question,omitempty"`
	TimeRemaining     int               `json:"time_remaining"`
	Paused            bool              `json:"paused"`
	ScoringInProgress bool              `json:"scoring_in_progress"`
	Resumable         *ResumableSession `json:"resumable,omitempty"`
}

// SessionCoordinator is the only component allowed to mutate the current
// candidate/interview pair. It composes the timer, the scoring pipeline and
// the interview state machine per user action, persisting every mutation
// before acknowledging it.
type SessionCoordinator struct {
	store    repository.Store
	pipeline *ScoringPipeline
	events   EventPublisher

	mu      sync.Mutex
	session SessionContext
	timer   *QuestionTimer
	scoring atomic.Bool

	// timedQuestionID is the question the running timer was started for, so
	// an expiry that loses the race with a manual submit targets the right
	// question and degrades to a no-op.
	timedQuestionID string
}

func NewSessionCoordinator(store repository.Store, pipeline *ScoringPipeline, events EventPublisher, clock Clock) *SessionCoordinator {
	coordinator := &SessionCoordinator{
		store:    store,
		pipeline: pipeline,
		events:   events,
	}
	coordinator.timer = NewQuestionTimer(clock,
		func(remaining int) {
			coordinator.publish(SessionEvent{Type: EventTimerTick, TimeRemaining: remaining})
		},
		coordinator.handleTimerExpiry,
	)
	return coordinator
}

// LoadSession restores the persisted current pointers after a restart. It
// never starts a timer: an interview found in progress stays paused until
// the user explicitly resumes it.
func (c *SessionCoordinator) LoadSession(ctx context.Context) error {
	state, err := c.store.GetSessionState(ctx)
	if err != nil {
		return fmt.Errorf("load session state: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if state != nil {
		if state.CurrentCandidateID != nil {
			c.session.CurrentCandidateID = *state.CurrentCandidateID
		}
		if state.CurrentInterviewID != nil {
			c.session.CurrentInterviewID = *state.CurrentInterviewID
		}
	}

	slog.Info("Session restored",
		"current_candidate_id", c.session.CurrentCandidateID,
		"current_interview_id", c.session.CurrentInterviewID)
	return nil
}

// Session returns a copy of the current session context.
func (c *SessionCoordinator) Session() SessionContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// StartProfile creates the candidate, generates the question set, creates
// the interview and marks both current. Any in-flight interview is abandoned
// first so it cannot resurface as resumable. The first question's timer
// starts immediately.
func (c *SessionCoordinator) StartProfile(ctx context.Context, input ProfileInput) (*models.Candidate, *models.Interview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timer.Stop()
	if err := c.abandonCurrentLocked(ctx); err != nil {
		return nil, nil, err
	}

	candidate := &models.Candidate{
		ID:         uuid.New().String(),
		Name:       input.Name,
		Email:      input.Email,
		Phone:      input.Phone,
		ResumeText: input.ResumeText,
		CreatedAt:  time.Now(),
	}
	if err := c.store.CreateCandidate(ctx, candidate); err != nil {
		return nil, nil, fmt.Errorf("create candidate: %w", err)
	}

	questions := c.pipeline.Questions(ctx, input.ResumeText)
	interview := NewInterview(candidate.ID, questions)
	if err := c.store.CreateInterview(ctx, interview); err != nil {
		return nil, nil, fmt.Errorf("create interview: %w", err)
	}

	if err := c.setSessionLocked(ctx, candidate.ID, interview.ID, false); err != nil {
		return nil, nil, err
	}

	first := CurrentQuestion(interview)
	if err := c.startTimerLocked(first); err != nil {
		return nil, nil, fmt.Errorf("start question timer: %w", err)
	}
	c.publish(SessionEvent{
		Type:          EventQuestionStarted,
		InterviewID:   interview.ID,
		QuestionID:    first.ID,
		QuestionIndex: 0,
		TimeRemaining: first.TimeLimit,
	})

	slog.Info("Interview started", "interview_id", interview.ID, "candidate_id", candidate.ID, "questions", len(questions))
	return candidate, interview, nil
}

// SubmitAnswer records and scores an answer for the current question, then
// advances or finalizes depending on position. questionID guards against a
// stale submission racing a timer expiry: when set and no longer current,
// the call is a no-op. timeSpentOverride substitutes the caller-measured
// elapsed time; when nil the timer's consumed budget is used.
func (c *SessionCoordinator) SubmitAnswer(ctx context.Context, text string, timeSpentOverride *int, questionID string) (*models.Interview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.CurrentInterviewID == "" {
		return nil, fmt.Errorf("no interview in progress")
	}

	interview, err := c.store.GetInterviewByID(ctx, c.session.CurrentInterviewID)
	if err != nil {
		return nil, fmt.Errorf("load interview: %w", err)
	}
	if interview == nil {
		return nil, fmt.Errorf("interview not found: %s", c.session.CurrentInterviewID)
	}
	if interview.Status != models.StatusInProgress {
		if questionID != "" {
			// A stale expiry arriving after the final manual submit.
			slog.Warn("Submission for finished interview ignored", "interview_id", interview.ID, "question_id", questionID)
			return interview, nil
		}
		return nil, fmt.Errorf("interview is not in progress")
	}

	question := CurrentQuestion(interview)
	if question == nil {
		return nil, fmt.Errorf("interview has no current question")
	}
	if questionID != "" && questionID != question.ID {
		slog.Warn("Stale answer submission ignored", "interview_id", interview.ID, "question_id", questionID, "current_question_id", question.ID)
		return interview, nil
	}

	timeSpent := c.timer.TimeSpent()
	if timeSpentOverride != nil {
		timeSpent = *timeSpentOverride
	}

	// The timer must be fully stopped before any transition so a late tick
	// cannot double-submit.
	c.timer.Stop()

	answer := RecordAnswer(interview, question.ID, text, timeSpent)
	if answer == nil {
		// Lost the expiry-vs-manual race; first event won.
		return interview, nil
	}
	if err := c.store.CreateAnswer(ctx, answer); err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}

	c.scoring.Store(true)
	c.publish(SessionEvent{Type: EventScoringStarted, InterviewID: interview.ID, QuestionID: question.ID})

	assessment := c.pipeline.ScoreAnswer(ctx, *question, *answer)
	scored := AttachScore(interview, question.ID, assessment.Score, assessment.Analysis)
	if scored != nil {
		if err := c.store.UpdateAnswer(ctx, scored); err != nil {
			slog.Error("Failed to persist answer score", "error", err, "question_id", question.ID)
		}
	}

	c.scoring.Store(false)
	c.publish(SessionEvent{Type: EventScoringCompleted, InterviewID: interview.ID, QuestionID: question.ID})

	if IsLastQuestion(interview) {
		final := c.pipeline.FinalSummary(ctx, interview.Questions, interview.Answers)
		Finalize(interview, final.Score, final.Summary)
		if err := c.store.UpdateInterview(ctx, interview); err != nil {
			return nil, fmt.Errorf("finalize interview: %w", err)
		}
		c.publish(SessionEvent{Type: EventInterviewCompleted, InterviewID: interview.ID, Status: interview.Status})
		slog.Info("Interview completed", "interview_id", interview.ID, "final_score", final.Score)
		return interview, nil
	}

	Advance(interview)
	if err := c.store.UpdateInterview(ctx, interview); err != nil {
		return nil, fmt.Errorf("advance interview: %w", err)
	}

	next := CurrentQuestion(interview)
	if err := c.startTimerLocked(next); err != nil {
		return nil, fmt.Errorf("start question timer: %w", err)
	}
	c.publish(SessionEvent{
		Type:          EventQuestionStarted,
		InterviewID:   interview.ID,
		QuestionID:    next.ID,
		QuestionIndex: interview.CurrentQuestionIndex,
		TimeRemaining: next.TimeLimit,
	})

	return interview, nil
}

// startTimerLocked starts the countdown for a question and remembers which
// question it is timing. Callers must hold c.mu.
func (c *SessionCoordinator) startTimerLocked(question *models.Question) error {
	if err := c.timer.Start(question.TimeLimit); err != nil {
		return err
	}
	c.timedQuestionID = question.ID
	return nil
}

// handleTimerExpiry auto-submits an empty answer with the full question
// budget when the countdown reaches zero. A manual submit racing the expiry
// wins cleanly: either the timer was already restarted for the next
// question, or the question-scoped submit degrades to a no-op.
func (c *SessionCoordinator) handleTimerExpiry() {
	c.mu.Lock()
	if c.timer.Active() {
		// A newer countdown superseded the expired one.
		c.mu.Unlock()
		return
	}
	interviewID := c.session.CurrentInterviewID
	questionID := c.timedQuestionID
	budget := c.timer.InitialTime()
	c.mu.Unlock()

	if interviewID == "" || questionID == "" {
		return
	}

	c.publish(SessionEvent{Type: EventTimerExpired, InterviewID: interviewID, QuestionID: questionID})
	slog.Info("Question timer expired, auto-submitting", "interview_id", interviewID, "question_id", questionID, "time_spent", budget)

	if _, err := c.SubmitAnswer(context.Background(), "", &budget, questionID); err != nil {
		slog.Error("Failed to auto-submit expired answer", "error", err, "interview_id", interviewID)
	}
}

// DetectResumable scans persisted interviews for an interrupted one with a
// matching candidate and offers the best match without auto-resuming. When
// several qualify, the most recently resumed wins, then the most recently
// started.
func (c *SessionCoordinator) DetectResumable(ctx context.Context) (*ResumableSession, error) {
	interviews, err := c.store.ListInterviews(ctx)
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}

	var resumable []models.Interview
	for _, interview := range interviews {
		if interview.Status == models.StatusInProgress {
			resumable = append(resumable, interview)
		}
	}
	if len(resumable) == 0 {
		return nil, nil
	}

	sort.SliceStable(resumable, func(i, j int) bool {
		return resumePriority(&resumable[i]).After(resumePriority(&resumable[j]))
	})

	for i := range resumable {
		interview := resumable[i]
		candidate, err := c.store.GetCandidateByID(ctx, interview.CandidateID)
		if err != nil {
			return nil, fmt.Errorf("load candidate: %w", err)
		}
		if candidate == nil {
			slog.Warn("Resumable interview has no candidate, skipping", "interview_id", interview.ID)
			continue
		}

		c.mu.Lock()
		err = c.setSessionLocked(ctx, candidate.ID, interview.ID, true)
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}

		slog.Info("Resumable interview detected", "interview_id", interview.ID, "candidate_id", candidate.ID, "question_index", interview.CurrentQuestionIndex)
		return &ResumableSession{
			Interview:     &interview,
			Candidate:     candidate,
			QuestionIndex: interview.CurrentQuestionIndex,
			Answered:      len(interview.Answers),
			Total:         len(interview.Questions),
		}, nil
	}
	return nil, nil
}

// resumePriority is the tie-break instant for resumable interviews: the
// last resume wins over the original start.
func resumePriority(interview *models.Interview) time.Time {
	if interview.LastResumedAt != nil {
		return *interview.LastResumedAt
	}
	if interview.StartedAt != nil {
		return *interview.StartedAt
	}
	return interview.CreatedAt
}

// Resume re-enters the current interview after explicit user confirmation
// and restarts the countdown for the current question with its full budget
// (per-question elapsed time is not persisted).
func (c *SessionCoordinator) Resume(ctx context.Context) (*models.Interview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.CurrentInterviewID == "" {
		return nil, fmt.Errorf("no interview to resume")
	}

	interview, err := c.store.GetInterviewByID(ctx, c.session.CurrentInterviewID)
	if err != nil {
		return nil, fmt.Errorf("load interview: %w", err)
	}
	if interview == nil {
		return nil, fmt.Errorf("interview not found: %s", c.session.CurrentInterviewID)
	}
	if !ResumeInterview(interview) {
		return nil, fmt.Errorf("interview is not resumable")
	}

	// A crash between recording the last answer and advancing leaves the
	// pointer on an already-answered question; repair before restarting.
	if question := CurrentQuestion(interview); question != nil && HasAnswer(interview, question.ID) && !IsLastQuestion(interview) {
		Advance(interview)
	}

	if err := c.store.UpdateInterview(ctx, interview); err != nil {
		return nil, fmt.Errorf("persist resumed interview: %w", err)
	}
	if err := c.setSessionLocked(ctx, interview.CandidateID, interview.ID, false); err != nil {
		return nil, err
	}

	question := CurrentQuestion(interview)
	if question != nil {
		if err := c.startTimerLocked(question); err != nil {
			return nil, fmt.Errorf("start question timer: %w", err)
		}
	}
	c.publish(SessionEvent{
		Type:          EventInterviewResumed,
		InterviewID:   interview.ID,
		QuestionIndex: interview.CurrentQuestionIndex,
	})

	return interview, nil
}

// StartNew abandons any in-flight interview and clears the current pointer
// pair so a fresh candidate can begin.
func (c *SessionCoordinator) StartNew(ctx context.Context) (SessionContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timer.Stop()

	if err := c.abandonCurrentLocked(ctx); err != nil {
		return c.session, err
	}

	if err := c.setSessionLocked(ctx, "", "", false); err != nil {
		return c.session, err
	}
	return c.session, nil
}

// abandonCurrentLocked marks the current interview completed without scores
// if it is still in flight. Callers must hold c.mu.
func (c *SessionCoordinator) abandonCurrentLocked(ctx context.Context) error {
	if c.session.CurrentInterviewID == "" {
		return nil
	}

	interview, err := c.store.GetInterviewByID(ctx, c.session.CurrentInterviewID)
	if err != nil {
		return fmt.Errorf("load interview: %w", err)
	}
	if interview != nil && AbandonInterview(interview) {
		if err := c.store.UpdateInterview(ctx, interview); err != nil {
			return fmt.Errorf("abandon interview: %w", err)
		}
		slog.Info("Abandoned in-flight interview", "interview_id", interview.ID)
	}
	return nil
}

// View builds the presentation snapshot of the current session. The paused
// flag is derived: an in-progress interview with no active timer.
func (c *SessionCoordinator) View(ctx context.Context) (*SessionView, error) {
	view := &SessionView{
		Session:           c.Session(),
		ScoringInProgress: c.scoring.Load(),
	}

	state, err := c.store.GetSessionState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session state: %w", err)
	}

	if view.Session.CurrentCandidateID != "" {
		candidate, err := c.store.GetCandidateByID(ctx, view.Session.CurrentCandidateID)
		if err != nil {
			return nil, fmt.Errorf("load candidate: %w", err)
		}
		view.Candidate = candidate
	}

	if view.Session.CurrentInterviewID != "" {
		interview, err := c.store.GetInterviewByID(ctx, view.Session.CurrentInterviewID)
		if err != nil {
			return nil, fmt.Errorf("load interview: %w", err)
		}
		view.Interview = interview

		if interview != nil && interview.Status == models.StatusInProgress {
			view.CurrentQuestion = CurrentQuestion(interview)
			view.TimeRemaining = c.timer.TimeRemaining()
			view.Paused = !c.timer.Active()

			if state != nil && state.IsResuming && view.Candidate != nil {
				view.Resumable = &ResumableSession{
					Interview:     interview,
					Candidate:     view.Candidate,
					QuestionIndex: interview.CurrentQuestionIndex,
					Answered:      len(interview.Answers),
					Total:         len(interview.Questions),
				}
			}
		}
	}

	return view, nil
}

// setSessionLocked updates the current pointer pair and the resuming flag
// as one persisted write. Callers must hold c.mu.
func (c *SessionCoordinator) setSessionLocked(ctx context.Context, candidateID, interviewID string, resuming bool) error {
	state := &models.SessionState{ID: models.SessionStateID, IsResuming: resuming}
	if candidateID != "" {
		state.CurrentCandidateID = &candidateID
	}
	if interviewID != "" {
		state.CurrentInterviewID = &interviewID
	}
	if err := c.store.SaveSessionState(ctx, state); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}

	c.session = SessionContext{
		CurrentCandidateID: candidateID,
		CurrentInterviewID: interviewID,
	}
	return nil
}

func (c *SessionCoordinator) publish(event SessionEvent) {
	if c.events != nil {
		c.events.PublishEvent(event)
	}
}
