package services

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crispinterview/backend/models"
	"github.com/crispinterview/backend/repository"
)

func newTestRouter(t *testing.T) (*chi.Mux, *SessionCoordinator, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	coordinator := NewSessionCoordinator(store, NewScoringPipeline(failingGenerator{}), nil, &fakeClock{})

	r := chi.NewRouter()
	NewCandidateEndpoints(store, coordinator, NewResumeExtractor(nil)).RegisterRoutes(r)
	NewInterviewEndpoints(store, coordinator).RegisterRoutes(r)
	return r, coordinator, store
}

func postJSON(t *testing.T, router *chi.Mux, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestUploadResumeHandler(t *testing.T) {
	router, _, _ := newTestRouter(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="resume"; filename="resume.pdf"`)
	header.Set("Content-Type", MimePDF)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("Jane Doe\njane.doe@example.com\n(555) 123-4567\nSenior Engineer"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/candidates/resume", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Contact       ContactInfo     `json:"contact"`
		MissingFields map[string]bool `json:"missing_fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.NotNil(t, response.Contact.Name)
	assert.Equal(t, "Jane Doe", *response.Contact.Name)
	assert.False(t, response.MissingFields["name"])
	assert.False(t, response.MissingFields["email"])
	assert.False(t, response.MissingFields["phone"])
}

func TestUploadResumeHandlerFlagsMissingFields(t *testing.T) {
	router, _, _ := newTestRouter(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="resume"; filename="resume.pdf"`)
	header.Set("Content-Type", MimePDF)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("Jane Doe\nno contact details here"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/candidates/resume", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		MissingFields map[string]bool `json:"missing_fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.False(t, response.MissingFields["name"])
	assert.True(t, response.MissingFields["email"])
	assert.True(t, response.MissingFields["phone"])
}

func TestCreateCandidateHandlerValidation(t *testing.T) {
	router, _, _ := newTestRouter(t)

	tests := []struct {
		name string
		body CreateCandidateRequest
	}{
		{"missing name", CreateCandidateRequest{Email: "a@b.com", Phone: "5551234567"}},
		{"bad email", CreateCandidateRequest{Name: "Jane", Email: "not-an-email", Phone: "5551234567"}},
		{"short phone", CreateCandidateRequest{Name: "Jane", Email: "a@b.com", Phone: "123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, router, "/candidates", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateCandidateStartsInterview(t *testing.T) {
	router, coordinator, _ := newTestRouter(t)

	rec := postJSON(t, router, "/candidates", CreateCandidateRequest{
		Name:       "Jane Doe",
		Email:      "jane@example.com",
		Phone:      "5551234567",
		ResumeText: "Full-stack developer.",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var response CreateCandidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.NotNil(t, response.Interview)
	assert.Len(t, response.Interview.Questions, 6)
	assert.Equal(t, models.StatusInProgress, response.Interview.Status)

	session := coordinator.Session()
	assert.Equal(t, response.Interview.ID, session.CurrentInterviewID)
}

func TestSessionEndpointsFlow(t *testing.T) {
	router, _, store := newTestRouter(t)

	rec := postJSON(t, router, "/candidates", CreateCandidateRequest{
		Name:  "Jane Doe",
		Email: "jane@example.com",
		Phone: "5551234567",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created CreateCandidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	req := httptest.NewRequest("GET", "/session", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var view SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.NotNil(t, view.CurrentQuestion)
	assert.Equal(t, models.TimeLimitEasy, view.TimeRemaining)
	assert.False(t, view.Paused)

	timeSpent := 25
	rec = postJSON(t, router, "/session/answer", SubmitAnswerRequest{
		QuestionID: view.CurrentQuestion.ID,
		Text:       "let is block scoped, var is function scoped.",
		TimeSpent:  &timeSpent,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	interview, err := store.GetInterviewByID(req.Context(), created.Interview.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, interview.CurrentQuestionIndex)
	require.Len(t, interview.Answers, 1)
}

func TestSubmitAnswerHandlerRequiresQuestionID(t *testing.T) {
	router, _, store := newTestRouter(t)

	rec := postJSON(t, router, "/candidates", CreateCandidateRequest{
		Name:  "Jane Doe",
		Email: "jane@example.com",
		Phone: "5551234567",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created CreateCandidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = postJSON(t, router, "/session/answer", SubmitAnswerRequest{Text: "unanchored answer"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	interview, err := store.GetInterviewByID(httptest.NewRequest("GET", "/", nil).Context(), created.Interview.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, interview.CurrentQuestionIndex)
	assert.Empty(t, interview.Answers)
}

func TestResumeHandlerWithoutSessionConflicts(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := postJSON(t, router, "/session/resume", struct{}{})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStartNewHandlerClearsSession(t *testing.T) {
	router, coordinator, _ := newTestRouter(t)

	rec := postJSON(t, router, "/candidates", CreateCandidateRequest{
		Name:  "Jane Doe",
		Email: "jane@example.com",
		Phone: "5551234567",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, router, "/session/new", struct{}{})
	require.Equal(t, http.StatusOK, rec.Code)

	session := coordinator.Session()
	assert.Empty(t, session.CurrentInterviewID)
}

func TestListCandidatesSearchAndSort(t *testing.T) {
	router, _, store := newTestRouter(t)
	ctx := httptest.NewRequest("GET", "/", nil).Context()

	high, low := 90, 40
	require.NoError(t, store.CreateCandidate(ctx, &models.Candidate{ID: "c1", Name: "Jane Doe", Email: "jane@example.com", CreatedAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, store.CreateCandidate(ctx, &models.Candidate{ID: "c2", Name: "John Roe", Email: "john@example.com", CreatedAt: time.Now()}))
	require.NoError(t, store.CreateInterview(ctx, &models.Interview{ID: "i1", CandidateID: "c1", Status: models.StatusCompleted, FinalScore: &high}))
	require.NoError(t, store.CreateInterview(ctx, &models.Interview{ID: "i2", CandidateID: "c2", Status: models.StatusCompleted, FinalScore: &low}))

	req := httptest.NewRequest("GET", "/candidates?search=jane", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var response ListCandidatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Equal(t, 1, response.Count)
	assert.Equal(t, "Jane Doe", response.Candidates[0].Name)

	req = httptest.NewRequest("GET", "/candidates?sort=score", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	response = ListCandidatesResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Equal(t, 2, response.Count)
	assert.Equal(t, "Jane Doe", response.Candidates[0].Name)

	req = httptest.NewRequest("GET", "/candidates", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	response = ListCandidatesResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "John Roe", response.Candidates[0].Name)
}

func TestGetCandidateHandlerNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/candidates/unknown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
