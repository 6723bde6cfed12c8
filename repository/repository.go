package repository

import (
	"context"

	"github.com/crispinterview/backend/models"
)

// Store is the persistence contract the engine depends on: load-on-start and
// save-on-mutation. Interviews are always returned with their questions in
// order and any answers recorded so far.
type Store interface {
	CreateCandidate(ctx context.Context, candidate *models.Candidate) error
	GetCandidateByID(ctx context.Context, id string) (*models.Candidate, error)
	ListCandidates(ctx context.Context) ([]models.Candidate, error)

	CreateInterview(ctx context.Context, interview *models.Interview) error
	UpdateInterview(ctx context.Context, interview *models.Interview) error
	GetInterviewByID(ctx context.Context, id string) (*models.Interview, error)
	ListInterviews(ctx context.Context) ([]models.Interview, error)

	CreateAnswer(ctx context.Context, answer *models.Answer) error
	UpdateAnswer(ctx context.Context, answer *models.Answer) error

	GetSessionState(ctx context.Context) (*models.SessionState, error)
	SaveSessionState(ctx context.Context, state *models.SessionState) error
}
