package repository

import (
	"context"
	"log/slog"

	"github.com/crispinterview/backend/models"
	"gorm.io/gorm"
)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.Candidate{},
		&models.Interview{},
		&models.Question{},
		&models.Answer{},
		&models.SessionState{},
	)
}

// Candidate operations
func (r *GORMRepository) CreateCandidate(ctx context.Context, candidate *models.Candidate) error {
	if err := r.db.WithContext(ctx).Create(candidate).Error; err != nil {
		slog.Error("Failed to create candidate", "error", err)
		return err
	}
	slog.Info("Candidate created", "candidate_id", candidate.ID, "email", candidate.Email)
	return nil
}

func (r *GORMRepository) GetCandidateByID(ctx context.Context, id string) (*models.Candidate, error) {
	var candidate models.Candidate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&candidate).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get candidate by ID", "error", err, "candidate_id", id)
		return nil, err
	}
	return &candidate, nil
}

func (r *GORMRepository) ListCandidates(ctx context.Context) ([]models.Candidate, error) {
	var candidates []models.Candidate
	if err := r.db.WithContext(ctx).Preload("Interviews").Order("created_at DESC").Find(&candidates).Error; err != nil {
		slog.Error("Failed to list candidates", "error", err)
		return nil, err
	}
	return candidates, nil
}

// Interview operations
func (r *GORMRepository) CreateInterview(ctx context.Context, interview *models.Interview) error {
	if err := r.db.WithContext(ctx).Create(interview).Error; err != nil {
		slog.Error("Failed to create interview", "error", err)
		return err
	}
	slog.Info("Interview created", "interview_id", interview.ID, "candidate_id", interview.CandidateID, "questions", len(interview.Questions))
	return nil
}

func (r *GORMRepository) UpdateInterview(ctx context.Context, interview *models.Interview) error {
	if err := r.db.WithContext(ctx).Omit("Questions", "Answers", "Candidate").Save(interview).Error; err != nil {
		slog.Error("Failed to update interview", "error", err, "interview_id", interview.ID)
		return err
	}
	slog.Info("Interview updated", "interview_id", interview.ID, "status", interview.Status, "current_question_index", interview.CurrentQuestionIndex)
	return nil
}

func (r *GORMRepository) GetInterviewByID(ctx context.Context, id string) (*models.Interview, error) {
	var interview models.Interview
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_order")
		}).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp")
		}).
		First(&interview).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get interview by ID", "error", err, "interview_id", id)
		return nil, err
	}
	return &interview, nil
}

func (r *GORMRepository) ListInterviews(ctx context.Context) ([]models.Interview, error) {
	var interviews []models.Interview
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_order")
		}).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp")
		}).
		Find(&interviews).Error
	if err != nil {
		slog.Error("Failed to list interviews", "error", err)
		return nil, err
	}
	return interviews, nil
}

// Answer operations
func (r *GORMRepository) CreateAnswer(ctx context.Context, answer *models.Answer) error {
	if err := r.db.WithContext(ctx).Create(answer).Error; err != nil {
		slog.Error("Failed to create answer", "error", err, "question_id", answer.QuestionID)
		return err
	}
	slog.Info("Answer created", "answer_id", answer.ID, "interview_id", answer.InterviewID, "question_id", answer.QuestionID)
	return nil
}

func (r *GORMRepository) UpdateAnswer(ctx context.Context, answer *models.Answer) error {
	if err := r.db.WithContext(ctx).Save(answer).Error; err != nil {
		slog.Error("Failed to update answer", "error", err, "answer_id", answer.ID)
		return err
	}
	return nil
}

// Session state operations
func (r *GORMRepository) GetSessionState(ctx context.Context) (*models.SessionState, error) {
	var state models.SessionState
	if err := r.db.WithContext(ctx).Where("id = ?", models.SessionStateID).First(&state).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get session state", "error", err)
		return nil, err
	}
	return &state, nil
}

func (r *GORMRepository) SaveSessionState(ctx context.Context, state *models.SessionState) error {
	state.ID = models.SessionStateID
	if err := r.db.WithContext(ctx).Save(state).Error; err != nil {
		slog.Error("Failed to save session state", "error", err)
		return err
	}
	slog.Debug("Session state saved",
		"current_candidate_id", state.CurrentCandidateID,
		"current_interview_id", state.CurrentInterviewID,
		"is_resuming", state.IsResuming)
	return nil
}
