package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crispinterview/backend/models"
	"github.com/crispinterview/backend/repository"
)

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	store repository.Store
}

// NewDatabaseSeeder creates a new database seeder
func NewDatabaseSeeder(store repository.Store) *DatabaseSeeder {
	return &DatabaseSeeder{store: store}
}

const seedCandidateEmail = "ada.lovelace@example.com"

// SeedDatabase seeds a demo candidate with a completed interview so the
// interviewer dashboard has data on first run (idempotent).
func (s *DatabaseSeeder) SeedDatabase() error {
	ctx := context.Background()

	if s.isSeedingComplete(ctx) {
		slog.Info("Database seeding already completed, skipping")
		return nil
	}

	candidate := &models.Candidate{
		ID:         uuid.New().String(),
		Name:       "Ada Lovelace",
		Email:      seedCandidateEmail,
		Phone:      "555-010-1842",
		ResumeText: "Ada Lovelace\nada.lovelace@example.com\n555-010-1842\nFull-stack developer with experience in React, Node.js and distributed systems.",
		CreatedAt:  time.Now(),
	}
	if err := s.store.CreateCandidate(ctx, candidate); err != nil {
		return fmt.Errorf("failed to seed candidate: %w", err)
	}

	interview := NewInterview(candidate.ID, FallbackQuestions())
	if err := s.store.CreateInterview(ctx, interview); err != nil {
		return fmt.Errorf("failed to seed interview: %w", err)
	}

	answers := []string{
		"let is block scoped and reassignable, const is block scoped and cannot be reassigned, var is function scoped and hoisted. Modern code should prefer const and let.",
		"A closure is a function that captures variables from its enclosing scope. For example a counter function returning an inner function that increments a captured count variable keeps that state alive between calls.",
		"Install express, create an app, define route handlers for each resource with app.get and app.post, add JSON body parsing middleware, and call app.listen. Handlers read params from req and write responses with res.json.",
		"Hooks let function components hold state and side effects. useState returns a value and a setter, useEffect runs a callback after render with a dependency array controlling when it re-runs, for example fetching data on mount.",
		"I would use a message broker to fan out messages, persist them in a partitioned store keyed by conversation, hold WebSocket connections on stateless gateway nodes, and use acknowledgements with retries for at-least-once delivery.",
		"Classic dynamic programming over a table of prefix pairs. Each cell extends the diagonal when characters match or takes the max of its neighbors. Time and space are both O(n*m), with space reducible to two rows.",
	}
	pipeline := NewScoringPipeline(nil)
	for _, text := range answers {
		question := CurrentQuestion(interview)
		if question == nil {
			break
		}
		answer := RecordAnswer(interview, question.ID, text, question.TimeLimit/3)
		if answer == nil {
			break
		}
		if err := s.store.CreateAnswer(ctx, answer); err != nil {
			return fmt.Errorf("failed to seed answer: %w", err)
		}

		assessment := pipeline.ScoreAnswer(ctx, *question, *answer)
		if scored := AttachScore(interview, question.ID, assessment.Score, assessment.Analysis); scored != nil {
			if err := s.store.UpdateAnswer(ctx, scored); err != nil {
				return fmt.Errorf("failed to seed answer score: %w", err)
			}
		}

		if IsLastQuestion(interview) {
			final := pipeline.FinalSummary(ctx, interview.Questions, interview.Answers)
			Finalize(interview, final.Score, final.Summary)
			break
		}
		Advance(interview)
	}

	if err := s.store.UpdateInterview(ctx, interview); err != nil {
		return fmt.Errorf("failed to seed completed interview: %w", err)
	}

	slog.Info("Database seeding completed successfully", "candidate_id", candidate.ID, "interview_id", interview.ID)
	return nil
}

// isSeedingComplete checks if seeding has already been completed
func (s *DatabaseSeeder) isSeedingComplete(ctx context.Context) bool {
	candidates, err := s.store.ListCandidates(ctx)
	if err != nil {
		return false
	}
	for _, candidate := range candidates {
		if candidate.Email == seedCandidateEmail {
			return true
		}
	}
	return false
}
