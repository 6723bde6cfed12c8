package services

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/crispinterview/backend/models"
	"github.com/crispinterview/backend/repository"
)

type CandidateEndpoints struct {
	store       repository.Store
	coordinator *SessionCoordinator
	extractor   *ResumeExtractor
	validate    *validator.Validate
}

func NewCandidateEndpoints(store repository.Store, coordinator *SessionCoordinator, extractor *ResumeExtractor) *CandidateEndpoints {
	return &CandidateEndpoints{
		store:       store,
		coordinator: coordinator,
		extractor:   extractor,
		validate:    validator.New(),
	}
}

type CreateCandidateRequest struct {
	Name       string `json:"name" validate:"required,min=2"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required,min=10"`
	ResumeText string `json:"resume_text"`
}

type CreateCandidateResponse struct {
	Candidate *models.Candidate `json:"candidate"`
	Interview *models.Interview `json:"interview"`
	Message   string            `json:"message"`
}

type ListCandidatesResponse struct {
	Candidates []models.Candidate `json:"candidates"`
	Count      int                `json:"count"`
}

func (e *CandidateEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/candidates", func(r chi.Router) {
		r.Post("/", e.CreateCandidateHandler)
		r.Post("/resume", e.UploadResumeHandler)
		r.Get("/", e.ListCandidatesHandler)
		r.Get("/{id}", e.GetCandidateHandler)
	})
}

// UploadResumeHandler accepts a multipart resume upload, extracts contact
// fields and returns them with per-field missing flags so the client knows
// which ones the user must fill in manually.
func (e *CandidateEndpoints) UploadResumeHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MaxResumeSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("resume")
	if err != nil {
		http.Error(w, "Resume file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxResumeSize+1))
	if err != nil {
		slog.Error("Failed to read resume upload", "error", err)
		http.Error(w, "Failed to read resume file", http.StatusInternalServerError)
		return
	}

	contentType := header.Header.Get("Content-Type")
	info, err := e.extractor.Extract(contentType, data)
	if err != nil {
		slog.Warn("Resume extraction rejected", "error", err, "content_type", contentType, "size", len(data))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	missing := map[string]bool{
		"name":  info.Name == nil || strings.TrimSpace(*info.Name) == "",
		"email": info.Email == nil || !ValidEmail(*info.Email),
		"phone": info.Phone == nil || !ValidPhone(*info.Phone),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"contact":        info,
		"missing_fields": missing,
	})

	slog.Info("Resume uploaded", "filename", header.Filename, "size", len(data))
}

// CreateCandidateHandler creates a candidate from a completed profile and
// starts their interview immediately.
func (e *CandidateEndpoints) CreateCandidateHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := e.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	candidate, interview, err := e.coordinator.StartProfile(r.Context(), ProfileInput{
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		Phone:      strings.TrimSpace(req.Phone),
		ResumeText: req.ResumeText,
	})
	if err != nil {
		slog.Error("Failed to start interview for candidate", "error", err, "email", req.Email)
		http.Error(w, "Failed to create candidate", http.StatusInternalServerError)
		return
	}

	response := CreateCandidateResponse{
		Candidate: candidate,
		Interview: interview,
		Message:   "Interview started successfully",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)

	slog.Info("Candidate created", "candidate_id", candidate.ID, "interview_id", interview.ID)
}

// ListCandidatesHandler returns all candidates, filtered by an optional
// search term over name and email and ordered by score or date.
func (e *CandidateEndpoints) ListCandidatesHandler(w http.ResponseWriter, r *http.Request) {
	candidates, err := e.store.ListCandidates(r.Context())
	if err != nil {
		slog.Error("Failed to list candidates", "error", err)
		http.Error(w, "Failed to get candidates", http.StatusInternalServerError)
		return
	}

	if search := strings.TrimSpace(r.URL.Query().Get("search")); search != "" {
		candidates = filterCandidates(candidates, search)
	}
	sortCandidates(candidates, r.URL.Query().Get("sort"))

	response := ListCandidatesResponse{
		Candidates: candidates,
		Count:      len(candidates),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)

	slog.Info("Candidates retrieved", "count", len(candidates))
}

func (e *CandidateEndpoints) GetCandidateHandler(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "id")
	if candidateID == "" {
		http.Error(w, "Candidate ID is required", http.StatusBadRequest)
		return
	}

	candidate, err := e.store.GetCandidateByID(r.Context(), candidateID)
	if err != nil {
		slog.Error("Failed to get candidate", "error", err, "candidate_id", candidateID)
		http.Error(w, "Failed to get candidate", http.StatusInternalServerError)
		return
	}
	if candidate == nil {
		http.Error(w, "Candidate not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"candidate": candidate,
	})

	slog.Info("Candidate retrieved", "candidate_id", candidateID)
}

func filterCandidates(candidates []models.Candidate, search string) []models.Candidate {
	search = strings.ToLower(search)
	filtered := make([]models.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if strings.Contains(strings.ToLower(candidate.Name), search) ||
			strings.Contains(strings.ToLower(candidate.Email), search) {
			filtered = append(filtered, candidate)
		}
	}
	return filtered
}

// sortCandidates orders by best final score ("score", descending, unscored
// last) or by creation date (default, newest first).
func sortCandidates(candidates []models.Candidate, order string) {
	if order == "score" {
		sort.SliceStable(candidates, func(i, j int) bool {
			return bestFinalScore(&candidates[i]) > bestFinalScore(&candidates[j])
		})
		return
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
}

func bestFinalScore(candidate *models.Candidate) int {
	best := -1
	for _, interview := range candidate.Interviews {
		if interview.FinalScore != nil && *interview.FinalScore > best {
			best = *interview.FinalScore
		}
	}
	return best
}
