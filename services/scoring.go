package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/crispinterview/backend/models"
	"github.com/google/uuid"
)

// AnswerAssessment is the result of scoring a single answer.
type AnswerAssessment struct {
	Score    int    `json:"score"` // 1-10
	Analysis string `json:"analysis"`
}

// InterviewAssessment is the final aggregate result for a whole interview.
type InterviewAssessment struct {
	Score   int    `json:"score"` // 0-100
	Summary string `json:"summary"`
}

// Generator is the external question/scoring collaborator. Implementations
// may fail or return malformed output; the pipeline recovers locally.
type Generator interface {
	GenerateQuestions(ctx context.Context, resumeText string) ([]models.Question, error)
	ScoreAnswer(ctx context.Context, question models.Question, answer models.Answer) (*AnswerAssessment, error)
	GenerateFinalSummary(ctx context.Context, questions []models.Question, answers []models.Answer) (*InterviewAssessment, error)
}

// ScoringPipeline wraps the generator with clamping and a deterministic local
// fallback so callers always get a usable result. The primary and fallback
// paths are indistinguishable to the caller.
type ScoringPipeline struct {
	generator Generator
}

func NewScoringPipeline(generator Generator) *ScoringPipeline {
	return &ScoringPipeline{generator: generator}
}

var technicalKeywordPattern = regexp.MustCompile(`(?i)\b(function|const|let|var|class|import|export|async|await|promise|callback)\b`)

// fallbackQuestionBank is the fixed full-stack set used when the generator is
// unavailable or returns an unusable question payload.
var fallbackQuestionBank = []models.Question{
	{
		Text:       "What is the difference between let, const, and var in JavaScript?",
		Difficulty: models.DifficultyEasy,
		TimeLimit:  models.TimeLimitEasy,
	},
	{
		Text:       "Explain the concept of closures in JavaScript with an example.",
		Difficulty: models.DifficultyEasy,
		TimeLimit:  models.TimeLimitEasy,
	},
	{
		Text:       "How would you implement a simple REST API using Node.js and Express? Walk me through the basic setup.",
		Difficulty: models.DifficultyMedium,
		TimeLimit:  models.TimeLimitMedium,
	},
	{
		Text:       "What are React hooks and how do useState and useEffect work? Provide examples.",
		Difficulty: models.DifficultyMedium,
		TimeLimit:  models.TimeLimitMedium,
	},
	{
		Text:       "Design a scalable system for handling real-time chat messages. Consider database design, WebSocket connections, and message delivery guarantees.",
		Difficulty: models.DifficultyHard,
		TimeLimit:  models.TimeLimitHard,
	},
	{
		Text:       "Implement a function that efficiently finds the longest common subsequence between two strings. Explain the time and space complexity.",
		Difficulty: models.DifficultyHard,
		TimeLimit:  models.TimeLimitHard,
	},
}

// Questions returns the generated question set for a resume, or the fixed
// fallback bank when the generator fails. Always returns exactly six
// questions with orders 0-5.
func (p *ScoringPipeline) Questions(ctx context.Context, resumeText string) []models.Question {
	if p.generator != nil {
		questions, err := p.generator.GenerateQuestions(ctx, resumeText)
		if err == nil {
			return questions
		}
		slog.Warn("Question generation failed, using fallback question bank", "error", err)
	}
	return FallbackQuestions()
}

// FallbackQuestions returns a fresh copy of the fixed question bank with new
// ids and sequential orders.
func FallbackQuestions() []models.Question {
	questions := make([]models.Question, len(fallbackQuestionBank))
	for i, question := range fallbackQuestionBank {
		question.ID = uuid.New().String()
		question.Order = i
		questions[i] = question
	}
	return questions
}

// ScoreAnswer converts one answer into a score in [1,10] plus narrative
// feedback. Never fails: generator errors or malformed output fall back to
// the deterministic heuristic.
func (p *ScoringPipeline) ScoreAnswer(ctx context.Context, question models.Question, answer models.Answer) *AnswerAssessment {
	if p.generator != nil {
		assessment, err := p.generator.ScoreAnswer(ctx, question, answer)
		if err == nil {
			assessment.Score = clamp(assessment.Score, 1, 10)
			return assessment
		}
		slog.Warn("Answer scoring failed, using fallback heuristic", "error", err, "question_id", question.ID)
	}
	return fallbackScoreAnswer(question, answer)
}

// FinalSummary converts the full question/answer set into a score in [0,100]
// plus a narrative summary, with the same fallback guarantee as ScoreAnswer.
func (p *ScoringPipeline) FinalSummary(ctx context.Context, questions []models.Question, answers []models.Answer) *InterviewAssessment {
	if p.generator != nil {
		assessment, err := p.generator.GenerateFinalSummary(ctx, questions, answers)
		if err == nil {
			assessment.Score = clamp(assessment.Score, 0, 100)
			return assessment
		}
		slog.Warn("Final summary generation failed, using fallback heuristic", "error", err)
	}
	return fallbackSummary(questions, answers)
}

// fallbackScoreAnswer is the deterministic per-answer heuristic: answer
// length against a difficulty-specific threshold, boosted by technical
// vocabulary, with a hard floor of 1 for near-empty answers.
func fallbackScoreAnswer(question models.Question, answer models.Answer) *AnswerAssessment {
	answerLength := len(strings.TrimSpace(answer.Text))
	hasTechnicalKeywords := technicalKeywordPattern.MatchString(answer.Text)

	var baseScore int
	var analysis string

	switch question.Difficulty {
	case models.DifficultyEasy:
		baseScore = 4
		if answerLength > 50 {
			baseScore = 7
		}
		if hasTechnicalKeywords {
			baseScore++
			analysis = "Easy question response. Good technical terminology."
		} else {
			analysis = "Easy question response. Could use more technical details."
		}
	case models.DifficultyMedium:
		baseScore = 4
		if answerLength > 100 {
			baseScore = 6
		}
		if hasTechnicalKeywords {
			baseScore += 2
			analysis = "Medium question response. Demonstrates technical knowledge."
		} else {
			analysis = "Medium question response. Missing technical depth."
		}
	case models.DifficultyHard:
		baseScore = 3
		if answerLength > 200 {
			baseScore = 5
		}
		if hasTechnicalKeywords {
			baseScore += 2
			analysis = "Hard question requiring deep knowledge. Shows technical understanding."
		} else {
			analysis = "Hard question requiring deep knowledge. Could elaborate more on technical aspects."
		}
	}

	if answerLength < 10 {
		baseScore = 1
		analysis = "Very brief response. More detailed explanations needed."
	}

	return &AnswerAssessment{
		Score:    clamp(baseScore, 1, 10),
		Analysis: analysis,
	}
}

// fallbackSummary is the deterministic final assessment: the mean per-answer
// score scaled to 0-100, reported with per-difficulty averages and a
// qualitative band.
func fallbackSummary(questions []models.Question, answers []models.Answer) *InterviewAssessment {
	totalScore := 0
	for _, answer := range answers {
		if answer.Score != nil {
			totalScore += *answer.Score
		}
	}

	averageScore := 0.0
	if len(answers) > 0 {
		averageScore = math.Round(float64(totalScore)/float64(len(answers))*10) / 10
	}
	overallScore := clamp(int(math.Round(averageScore*10)), 0, 100)

	easyAvg := difficultyAverage(questions, answers, models.DifficultyEasy)
	mediumAvg := difficultyAverage(questions, answers, models.DifficultyMedium)
	hardAvg := difficultyAverage(questions, answers, models.DifficultyHard)

	var summary strings.Builder
	fmt.Fprintf(&summary, "Interview completed with an overall score of %d/100. ", overallScore)
	fmt.Fprintf(&summary, "Performance breakdown: Easy Questions %.1f/10, Medium Questions %.1f/10, Hard Questions %.1f/10. ", easyAvg, mediumAvg, hardAvg)

	switch {
	case overallScore >= 80:
		summary.WriteString("Excellent performance! Strong technical knowledge and problem-solving skills demonstrated.")
	case overallScore >= 70:
		summary.WriteString("Good performance with solid technical foundation. Some areas for improvement in advanced concepts.")
	case overallScore >= 60:
		summary.WriteString("Satisfactory performance. Recommend strengthening core concepts and practicing system design.")
	default:
		summary.WriteString("Needs improvement. Focus on fundamental concepts and hands-on practice recommended.")
	}

	return &InterviewAssessment{
		Score:   overallScore,
		Summary: summary.String(),
	}
}

// difficultyAverage computes the mean score of the answers whose positional
// question has the given difficulty. Answers align with questions by index.
func difficultyAverage(questions []models.Question, answers []models.Answer, difficulty string) float64 {
	total, count := 0, 0
	for i, answer := range answers {
		if i >= len(questions) || questions[i].Difficulty != difficulty {
			continue
		}
		if answer.Score != nil {
			total += *answer.Score
		}
		count++
	}
	if count == 0 {
		count = 1
	}
	return float64(total) / float64(count)
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
