package models

import (
	"time"

	"gorm.io/gorm"
)

// Interview statuses persisted to the database. "paused" is never written:
// it is a derived view state (in_progress with no active timer) computed by
// the session coordinator.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Question difficulty tiers with their per-question time budgets.
const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"

	TimeLimitEasy   = 180 // 3 minutes
	TimeLimitMedium = 420 // 7 minutes
	TimeLimitHard   = 900 // 15 minutes
)

// TimeLimitFor returns the time budget in seconds for a difficulty tier.
func TimeLimitFor(difficulty string) int {
	switch difficulty {
	case DifficultyEasy:
		return TimeLimitEasy
	case DifficultyHard:
		return TimeLimitHard
	default:
		return TimeLimitMedium
	}
}

// Interview records one candidate's attempt at a fixed question sequence.
// Questions are set once at creation; answers are append-only with at most
// one answer per question.
type Interview struct {
	ID                   string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CandidateID          string         `gorm:"type:uuid;not null;index" json:"candidate_id"`
	Status               string         `gorm:"not null;default:'not_started';check:status IN ('not_started', 'in_progress', 'completed')" json:"status"`
	CurrentQuestionIndex int            `gorm:"not null;default:0" json:"current_question_index"`
	FinalScore           *int           `json:"final_score,omitempty"` // 0-100, set at completion
	FinalSummary         *string        `gorm:"type:text" json:"final_summary,omitempty"`
	StartedAt            *time.Time     `json:"started_at,omitempty"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
	LastResumedAt        *time.Time     `json:"last_resumed_at,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Candidate *Candidate `gorm:"foreignKey:CandidateID" json:"candidate,omitempty"`
	Questions []Question `gorm:"foreignKey:InterviewID" json:"questions,omitempty"`
	Answers   []Answer   `gorm:"foreignKey:InterviewID" json:"answers,omitempty"`
}

// Question is immutable once generated.
type Question struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	InterviewID string         `gorm:"type:uuid;not null;index" json:"interview_id"`
	Text        string         `gorm:"type:text;not null" json:"text"`
	Difficulty  string         `gorm:"not null;check:difficulty IN ('Easy', 'Medium', 'Hard')" json:"difficulty"`
	TimeLimit   int            `gorm:"not null" json:"time_limit"` // seconds
	Order       int            `gorm:"column:question_order;not null" json:"order"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Answer is created once per question and updated in place only to attach
// the score and analysis once the scoring pipeline completes.
type Answer struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	InterviewID string         `gorm:"type:uuid;not null;index" json:"interview_id"`
	QuestionID  string         `gorm:"type:uuid;not null;uniqueIndex" json:"question_id"`
	Text        string         `gorm:"type:text;not null" json:"text"`
	TimeSpent   int            `gorm:"not null" json:"time_spent"` // seconds actually used
	Timestamp   time.Time      `gorm:"not null" json:"timestamp"`
	Score       *int           `json:"score,omitempty"` // 1-10, absent until scored
	AIAnalysis  *string        `gorm:"type:text" json:"ai_analysis,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// SessionStateID is the fixed primary key of the singleton session row.
const SessionStateID = "current"

// SessionState is the single-row record of which candidate/interview the UI
// is presently acting upon, plus the resuming flag. The pointer pair is
// always written together.
type SessionState struct {
	ID                 string    `gorm:"primaryKey;size:32" json:"id"`
	CurrentCandidateID *string   `gorm:"type:uuid" json:"current_candidate_id,omitempty"`
	CurrentInterviewID *string   `gorm:"type:uuid" json:"current_interview_id,omitempty"`
	IsResuming         bool      `gorm:"not null;default:false" json:"is_resuming"`
	UpdatedAt          time.Time `json:"updated_at"`
}
