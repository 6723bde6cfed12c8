package services

import (
	"log/slog"
	"time"

	"github.com/crispinterview/backend/models"
	"github.com/google/uuid"
)

// The interview state machine. An interview moves strictly forward:
// in_progress at creation, index only ever increasing, terminal at
// completed. Every transition defends its preconditions and degrades to a
// logged no-op instead of corrupting state.

// NewInterview creates an interview in progress at question zero. The
// question sequence is fixed for the interview's lifetime; regenerating
// questions means creating a new interview.
func NewInterview(candidateID string, questions []models.Question) *models.Interview {
	now := time.Now()
	interview := &models.Interview{
		ID:                   uuid.New().String(),
		CandidateID:          candidateID,
		Status:               models.StatusInProgress,
		CurrentQuestionIndex: 0,
		StartedAt:            &now,
		Answers:              []models.Answer{},
	}

	interview.Questions = make([]models.Question, len(questions))
	for i, question := range questions {
		question.InterviewID = interview.ID
		question.Order = i
		interview.Questions[i] = question
	}

	return interview
}

// CurrentQuestion returns the question at the progress pointer, or nil when
// the interview is completed or has no questions.
func CurrentQuestion(interview *models.Interview) *models.Question {
	if interview.Status == models.StatusCompleted {
		return nil
	}
	if interview.CurrentQuestionIndex < 0 || interview.CurrentQuestionIndex >= len(interview.Questions) {
		return nil
	}
	return &interview.Questions[interview.CurrentQuestionIndex]
}

// IsLastQuestion reports whether the progress pointer is on the final
// question.
func IsLastQuestion(interview *models.Interview) bool {
	return interview.CurrentQuestionIndex == len(interview.Questions)-1
}

// HasAnswer reports whether an answer has already been recorded for the
// question.
func HasAnswer(interview *models.Interview, questionID string) bool {
	for _, answer := range interview.Answers {
		if answer.QuestionID == questionID {
			return true
		}
	}
	return false
}

// RecordAnswer appends an answer for the question. At most one answer is
// ever recorded per question: a duplicate submission (for example a timer
// expiry racing a manual submit) is rejected as a no-op, and the returned
// answer is nil.
func RecordAnswer(interview *models.Interview, questionID, text string, timeSpent int) *models.Answer {
	if interview.Status != models.StatusInProgress {
		slog.Warn("Answer rejected, interview not in progress", "interview_id", interview.ID, "status", interview.Status)
		return nil
	}
	if HasAnswer(interview, questionID) {
		slog.Warn("Duplicate answer rejected", "interview_id", interview.ID, "question_id", questionID)
		return nil
	}

	answer := models.Answer{
		ID:          uuid.New().String(),
		InterviewID: interview.ID,
		QuestionID:  questionID,
		Text:        text,
		TimeSpent:   timeSpent,
		Timestamp:   time.Now(),
	}
	interview.Answers = append(interview.Answers, answer)

	slog.Info("Answer recorded", "interview_id", interview.ID, "question_id", questionID, "time_spent", timeSpent)
	return &interview.Answers[len(interview.Answers)-1]
}

// AttachScore fills in the score and analysis on the existing answer. It
// never touches the answer text. A missing answer is a caller ordering bug
// and is logged as a no-op.
func AttachScore(interview *models.Interview, questionID string, score int, analysis string) *models.Answer {
	for i := range interview.Answers {
		if interview.Answers[i].QuestionID != questionID {
			continue
		}
		interview.Answers[i].Score = &score
		interview.Answers[i].AIAnalysis = &analysis
		return &interview.Answers[i]
	}

	slog.Warn("AttachScore called before RecordAnswer", "interview_id", interview.ID, "question_id", questionID)
	return nil
}

// Advance moves the progress pointer to the next question. Advancing past
// the last question is a no-op; the caller must call Finalize instead.
func Advance(interview *models.Interview) bool {
	if interview.Status != models.StatusInProgress {
		slog.Warn("Advance rejected, interview not in progress", "interview_id", interview.ID, "status", interview.Status)
		return false
	}
	if IsLastQuestion(interview) {
		slog.Warn("Advance past last question rejected", "interview_id", interview.ID, "index", interview.CurrentQuestionIndex)
		return false
	}

	interview.CurrentQuestionIndex++
	return true
}

// Finalize completes the interview with its aggregate score and summary.
// Finalizing twice is a no-op.
func Finalize(interview *models.Interview, score int, summary string) bool {
	if interview.Status == models.StatusCompleted {
		slog.Warn("Finalize rejected, interview already completed", "interview_id", interview.ID)
		return false
	}

	now := time.Now()
	interview.Status = models.StatusCompleted
	interview.FinalScore = &score
	interview.FinalSummary = &summary
	interview.CompletedAt = &now

	slog.Info("Interview finalized", "interview_id", interview.ID, "final_score", score)
	return true
}

// ResumeInterview re-enters an interview after a restart. Progress and
// answers are untouched; only the resume timestamp moves.
func ResumeInterview(interview *models.Interview) bool {
	if interview.Status != models.StatusInProgress {
		slog.Warn("Resume rejected, interview not in progress", "interview_id", interview.ID, "status", interview.Status)
		return false
	}

	now := time.Now()
	interview.LastResumedAt = &now

	slog.Info("Interview resumed", "interview_id", interview.ID, "current_question_index", interview.CurrentQuestionIndex)
	return true
}

// AbandonInterview marks an in-flight interview terminal without scores so
// it is never again offered as resumable.
func AbandonInterview(interview *models.Interview) bool {
	if interview.Status == models.StatusCompleted {
		return false
	}

	now := time.Now()
	interview.Status = models.StatusCompleted
	interview.CompletedAt = &now

	slog.Info("Interview abandoned", "interview_id", interview.ID, "answered", len(interview.Answers))
	return true
}
