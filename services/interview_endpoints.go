package services

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crispinterview/backend/models"
	"github.com/crispinterview/backend/repository"
)

type InterviewEndpoints struct {
	store       repository.Store
	coordinator *SessionCoordinator
}

func NewInterviewEndpoints(store repository.Store, coordinator *SessionCoordinator) *InterviewEndpoints {
	return &InterviewEndpoints{
		store:       store,
		coordinator: coordinator,
	}
}

type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	TimeSpent  *int   `json:"time_spent,omitempty"`
}

func (e *InterviewEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/session", func(r chi.Router) {
		r.Get("/", e.GetSessionHandler)
		r.Post("/answer", e.SubmitAnswerHandler)
		r.Post("/resume", e.ResumeHandler)
		r.Post("/new", e.StartNewHandler)
	})

	r.Route("/interviews", func(r chi.Router) {
		r.Get("/", e.ListInterviewsHandler)
		r.Get("/{id}", e.GetInterviewHandler)
	})
}

// GetSessionHandler returns the current session snapshot: candidate,
// interview progress, remaining time and any pending resume offer.
func (e *InterviewEndpoints) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	view, err := e.coordinator.View(r.Context())
	if err != nil {
		slog.Error("Failed to build session view", "error", err)
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

func (e *InterviewEndpoints) SubmitAnswerHandler(w http.ResponseWriter, r *http.Request) {
	var req SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	// The question id anchors the submission to one question; without it a
	// submission racing a timer expiry could land on the wrong question.
	if req.QuestionID == "" {
		http.Error(w, "question_id is required", http.StatusBadRequest)
		return
	}

	interview, err := e.coordinator.SubmitAnswer(r.Context(), req.Text, req.TimeSpent, req.QuestionID)
	if err != nil {
		slog.Warn("Answer submission rejected", "error", err)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"interview": interview,
	})
}

func (e *InterviewEndpoints) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	interview, err := e.coordinator.Resume(r.Context())
	if err != nil {
		slog.Warn("Resume rejected", "error", err)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"interview": interview,
		"message":   "Interview resumed",
	})
}

func (e *InterviewEndpoints) StartNewHandler(w http.ResponseWriter, r *http.Request) {
	session, err := e.coordinator.StartNew(r.Context())
	if err != nil {
		slog.Error("Failed to start new session", "error", err)
		http.Error(w, "Failed to start new session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"session": session,
		"message": "Session cleared",
	})
}

func (e *InterviewEndpoints) ListInterviewsHandler(w http.ResponseWriter, r *http.Request) {
	interviews, err := e.store.ListInterviews(r.Context())
	if err != nil {
		slog.Error("Failed to list interviews", "error", err)
		http.Error(w, "Failed to get interviews", http.StatusInternalServerError)
		return
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := make([]models.Interview, 0, len(interviews))
		for _, interview := range interviews {
			if interview.Status == status {
				filtered = append(filtered, interview)
			}
		}
		interviews = filtered
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"interviews": interviews,
		"count":      len(interviews),
	})
}

// GetInterviewHandler returns one interview with its full question and
// answer history, as shown on the interviewer dashboard detail view.
func (e *InterviewEndpoints) GetInterviewHandler(w http.ResponseWriter, r *http.Request) {
	interviewID := chi.URLParam(r, "id")
	if interviewID == "" {
		http.Error(w, "Interview ID is required", http.StatusBadRequest)
		return
	}

	interview, err := e.store.GetInterviewByID(r.Context(), interviewID)
	if err != nil {
		slog.Error("Failed to get interview", "error", err, "interview_id", interviewID)
		http.Error(w, "Failed to get interview", http.StatusInternalServerError)
		return
	}
	if interview == nil {
		http.Error(w, "Interview not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"interview": interview,
	})
}
