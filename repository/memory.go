package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/crispinterview/backend/models"
)

// MemoryStore is an in-memory Store used by tests and when no database URL is
// configured. Records are deep-copied on the way in and out so callers never
// share state with the store.
type MemoryStore struct {
	mu         sync.RWMutex
	candidates map[string]models.Candidate
	interviews map[string]models.Interview
	state      *models.SessionState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		candidates: make(map[string]models.Candidate),
		interviews: make(map[string]models.Interview),
	}
}

func (s *MemoryStore) CreateCandidate(ctx context.Context, candidate *models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.candidates[candidate.ID]; exists {
		return fmt.Errorf("candidate already exists: %s", candidate.ID)
	}
	s.candidates[candidate.ID] = *candidate
	return nil
}

func (s *MemoryStore) GetCandidateByID(ctx context.Context, id string) (*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidate, exists := s.candidates[id]
	if !exists {
		return nil, nil
	}
	return &candidate, nil
}

func (s *MemoryStore) ListCandidates(ctx context.Context) ([]models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]models.Candidate, 0, len(s.candidates))
	for _, candidate := range s.candidates {
		candidate.Interviews = nil
		for _, interview := range s.interviews {
			if interview.CandidateID == candidate.ID {
				candidate.Interviews = append(candidate.Interviews, copyInterview(&interview))
			}
		}
		candidates = append(candidates, candidate)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	return candidates, nil
}

func (s *MemoryStore) CreateInterview(ctx context.Context, interview *models.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.interviews[interview.ID]; exists {
		return fmt.Errorf("interview already exists: %s", interview.ID)
	}
	s.interviews[interview.ID] = copyInterview(interview)
	return nil
}

func (s *MemoryStore) UpdateInterview(ctx context.Context, interview *models.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.interviews[interview.ID]
	if !exists {
		return fmt.Errorf("interview not found: %s", interview.ID)
	}

	// Questions are immutable and answers are written through the answer
	// operations; only the interview row itself is replaced here.
	updated := copyInterview(interview)
	updated.Questions = stored.Questions
	updated.Answers = stored.Answers
	s.interviews[interview.ID] = updated
	return nil
}

func (s *MemoryStore) GetInterviewByID(ctx context.Context, id string) (*models.Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	interview, exists := s.interviews[id]
	if !exists {
		return nil, nil
	}
	out := copyInterview(&interview)
	return &out, nil
}

func (s *MemoryStore) ListInterviews(ctx context.Context) ([]models.Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	interviews := make([]models.Interview, 0, len(s.interviews))
	for _, interview := range s.interviews {
		interviews = append(interviews, copyInterview(&interview))
	}
	sort.Slice(interviews, func(i, j int) bool {
		return interviews[i].CreatedAt.Before(interviews[j].CreatedAt)
	})
	return interviews, nil
}

func (s *MemoryStore) CreateAnswer(ctx context.Context, answer *models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	interview, exists := s.interviews[answer.InterviewID]
	if !exists {
		return fmt.Errorf("interview not found: %s", answer.InterviewID)
	}
	for _, existing := range interview.Answers {
		if existing.QuestionID == answer.QuestionID {
			return fmt.Errorf("answer already exists for question: %s", answer.QuestionID)
		}
	}
	interview.Answers = append(interview.Answers, *answer)
	s.interviews[answer.InterviewID] = interview
	return nil
}

func (s *MemoryStore) UpdateAnswer(ctx context.Context, answer *models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	interview, exists := s.interviews[answer.InterviewID]
	if !exists {
		return fmt.Errorf("interview not found: %s", answer.InterviewID)
	}
	for i, existing := range interview.Answers {
		if existing.QuestionID == answer.QuestionID {
			interview.Answers[i] = *answer
			s.interviews[answer.InterviewID] = interview
			return nil
		}
	}
	return fmt.Errorf("answer not found for question: %s", answer.QuestionID)
}

func (s *MemoryStore) GetSessionState(ctx context.Context) (*models.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return nil, nil
	}
	state := *s.state
	return &state, nil
}

func (s *MemoryStore) SaveSessionState(ctx context.Context, state *models.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := *state
	saved.ID = models.SessionStateID
	s.state = &saved
	slog.Debug("Session state saved in memory",
		"current_candidate_id", saved.CurrentCandidateID,
		"current_interview_id", saved.CurrentInterviewID)
	return nil
}

func copyInterview(interview *models.Interview) models.Interview {
	out := *interview
	out.Candidate = nil
	out.Questions = append([]models.Question(nil), interview.Questions...)
	out.Answers = append([]models.Answer(nil), interview.Answers...)
	return out
}
