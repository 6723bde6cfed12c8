package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/crispinterview/backend/models"
	"github.com/google/uuid"

	"google.golang.org/genai"
)

const (
	ModelName = "gemini-2.5-flash"

	// QuestionCount is the fixed interview length: two questions per
	// difficulty tier.
	QuestionCount    = 6
	questionsPerTier = 2

	// maxResumePromptChars caps how much resume text is sent to the model.
	maxResumePromptChars = 2000
)

// GeminiService implements Generator against the Gemini API. Responses are
// validated strictly at the boundary; anything malformed is returned as an
// error so the scoring pipeline can fall back locally.
type GeminiService struct {
	genaiClient *genai.Client
}

func NewGeminiService(apiKey string) *GeminiService {
	genaiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		slog.Error("Failed to create genai client", "error", err)
		return nil
	}

	return &GeminiService{genaiClient: genaiClient}
}

// GenerateQuestions asks the model for six interview questions tailored to
// the resume text, or generic full-stack questions when no resume is given.
func (g *GeminiService) GenerateQuestions(ctx context.Context, resumeText string) ([]models.Question, error) {
	if g.genaiClient == nil {
		return nil, fmt.Errorf("genai client not initialized")
	}

	prompt := buildQuestionsPrompt(resumeText)

	result, err := g.genaiClient.Models.GenerateContent(
		ctx,
		ModelName,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(
				"You are an AI interviewer for a full-stack developer position. Respond with JSON only.",
				genai.RoleUser,
			),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}

	questions, err := parseQuestionsResponse(result.Text())
	if err != nil {
		return nil, err
	}

	slog.Info("Generated interview questions", "count", len(questions), "resume_length", len(resumeText))
	return questions, nil
}

// ScoreAnswer asks the model to evaluate one answer against its question.
func (g *GeminiService) ScoreAnswer(ctx context.Context, question models.Question, answer models.Answer) (*AnswerAssessment, error) {
	if g.genaiClient == nil {
		return nil, fmt.Errorf("genai client not initialized")
	}

	systemInstruction := fmt.Sprintf(`You are an expert technical interviewer evaluating answers for a full-stack developer position.

Scoring criteria:
- Technical accuracy and depth
- Clarity of explanation
- Use of appropriate terminology
- Completeness of the answer
- Time efficiency (they had %ds and used %ds)

Return a JSON object with:
- "score": number from 1-10 (10 being excellent)
- "analysis": detailed feedback (2-3 sentences)

Question difficulty: %s`, question.TimeLimit, answer.TimeSpent, question.Difficulty)

	prompt := fmt.Sprintf("Question: %s\n\nCandidate's Answer: %s\n\nTime used: %ds out of %ds allowed.\n\nPlease evaluate this answer.",
		question.Text, answer.Text, answer.TimeSpent, question.TimeLimit)

	result, err := g.genaiClient.Models.GenerateContent(
		ctx,
		ModelName,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to score answer: %w", err)
	}

	assessment, err := parseAssessmentResponse(result.Text())
	if err != nil {
		return nil, err
	}

	slog.Info("Answer scored", "question_id", question.ID, "score", assessment.Score)
	return assessment, nil
}

// GenerateFinalSummary asks the model for the aggregate assessment over the
// whole interview.
func (g *GeminiService) GenerateFinalSummary(ctx context.Context, questions []models.Question, answers []models.Answer) (*InterviewAssessment, error) {
	if g.genaiClient == nil {
		return nil, fmt.Errorf("genai client not initialized")
	}

	var results strings.Builder
	for i, question := range questions {
		if i >= len(answers) {
			continue
		}
		answer := answers[i]
		score := 0
		if answer.Score != nil {
			score = *answer.Score
		}
		fmt.Fprintf(&results, "Question %d (%s): %s\nAnswer: %s\nScore: %d/10, Time: %ds/%ds\n\n",
			i+1, question.Difficulty, question.Text, answer.Text, score, answer.TimeSpent, question.TimeLimit)
	}

	systemInstruction := `You are an expert technical interviewer providing a final assessment for a full-stack developer candidate.

Analyze the complete interview performance and provide:
1. An overall score from 0-100
2. A comprehensive summary covering strengths and weaknesses, technical competency level, areas for improvement, and a hiring recommendation

Return a JSON object with:
- "score": number from 0-100
- "summary": detailed assessment (4-6 sentences)`

	prompt := fmt.Sprintf("Interview Results:\n\n%s\nPlease provide a comprehensive final assessment.", results.String())

	result, err := g.genaiClient.Models.GenerateContent(
		ctx,
		ModelName,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate final summary: %w", err)
	}

	assessment, err := parseSummaryResponse(result.Text())
	if err != nil {
		return nil, err
	}

	slog.Info("Final summary generated", "score", assessment.Score, "summary_length", len(assessment.Summary))
	return assessment, nil
}

func buildQuestionsPrompt(resumeText string) string {
	base := `Generate exactly 6 technical interview questions for a full-stack developer role (React/Node.js): 2 Easy, 2 Medium, and 2 Hard.

Return ONLY a JSON array with objects containing 'text' (the question), 'difficulty' (Easy/Medium/Hard), and 'timeLimit' (Easy: 180 seconds, Medium: 420 seconds, Hard: 900 seconds), ordered Easy first and Hard last.`

	if strings.TrimSpace(resumeText) == "" {
		return base
	}

	truncated := resumeText
	if len(truncated) > maxResumePromptChars {
		truncated = truncated[:maxResumePromptChars]
	}
	return fmt.Sprintf("%s\n\nTailor the questions to the candidate's experience level, technologies mentioned, and background.\n\nResume content: %s", base, truncated)
}

type questionPayload struct {
	Text       string `json:"text"`
	Difficulty string `json:"difficulty"`
	TimeLimit  int    `json:"timeLimit"`
}

// parseQuestionsResponse validates the generated question set strictly:
// exactly six questions, two per difficulty tier. Time limits are normalized
// to the canonical per-difficulty budgets regardless of what the model sent.
func parseQuestionsResponse(raw string) ([]models.Question, error) {
	cleaned := extractJSON(raw)

	var payload []questionPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("parse questions response: %w", err)
	}

	if len(payload) != QuestionCount {
		return nil, fmt.Errorf("expected %d questions, got %d", QuestionCount, len(payload))
	}

	perTier := make(map[string]int)
	questions := make([]models.Question, 0, QuestionCount)
	for i, item := range payload {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			return nil, fmt.Errorf("question %d has empty text", i)
		}
		switch item.Difficulty {
		case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
		default:
			return nil, fmt.Errorf("question %d has invalid difficulty %q", i, item.Difficulty)
		}
		perTier[item.Difficulty]++

		questions = append(questions, models.Question{
			ID:         uuid.New().String(),
			Text:       text,
			Difficulty: item.Difficulty,
			TimeLimit:  models.TimeLimitFor(item.Difficulty),
			Order:      i,
		})
	}

	for _, difficulty := range []string{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard} {
		if perTier[difficulty] != questionsPerTier {
			return nil, fmt.Errorf("expected %d %s questions, got %d", questionsPerTier, difficulty, perTier[difficulty])
		}
	}

	return questions, nil
}

type assessmentPayload struct {
	Score    *float64 `json:"score"`
	Analysis string   `json:"analysis"`
	Summary  string   `json:"summary"`
}

func parseAssessmentResponse(raw string) (*AnswerAssessment, error) {
	payload, err := parseAssessmentPayload(raw)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.Analysis) == "" {
		return nil, fmt.Errorf("assessment response missing analysis")
	}
	return &AnswerAssessment{
		Score:    int(math.Round(*payload.Score)),
		Analysis: strings.TrimSpace(payload.Analysis),
	}, nil
}

func parseSummaryResponse(raw string) (*InterviewAssessment, error) {
	payload, err := parseAssessmentPayload(raw)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return nil, fmt.Errorf("summary response missing summary")
	}
	return &InterviewAssessment{
		Score:   int(math.Round(*payload.Score)),
		Summary: strings.TrimSpace(payload.Summary),
	}, nil
}

func parseAssessmentPayload(raw string) (*assessmentPayload, error) {
	cleaned := extractJSON(raw)

	var payload assessmentPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("parse assessment response: %w", err)
	}
	if payload.Score == nil {
		return nil, fmt.Errorf("assessment response missing score")
	}
	return &payload, nil
}

// extractJSON strips markdown code fences the model sometimes wraps around
// JSON payloads.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
