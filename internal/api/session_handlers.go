package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vytor/vocabdrill/internal/models"
)

type verdictRequest struct {
	Correct *bool `json:"correct" validate:"required"`
}

type examRequest struct {
	// Count of cards to sample; 0 or more than the deck holds means every card.
	Count *int `json:"count" validate:"omitempty,min=0"`
}

func (s *Server) handleStartStudy(w http.ResponseWriter, r *http.Request) {
	view, err := s.Sessions.StartStudy(r.Context(), chi.URLParam(r, "deckID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, view)
}

func (s *Server) handleStudy(w http.ResponseWriter, r *http.Request) {
	s.studyAction(w, r, s.Sessions.Study)
}

func (s *Server) handleKnow(w http.ResponseWriter, r *http.Request) {
	s.studyAction(w, r, s.Sessions.Know)
}

func (s *Server) handleDontKnow(w http.ResponseWriter, r *http.Request) {
	s.studyAction(w, r, s.Sessions.DontKnow)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	s.studyAction(w, r, s.Sessions.Advance)
}

func (s *Server) handleStudyVerdict(w http.ResponseWriter, r *http.Request) {
	var req verdictRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	view, err := s.Sessions.StudyVerdict(r.Context(), chi.URLParam(r, "sessionID"), *req.Correct)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleRemoveStudyCard(w http.ResponseWriter, r *http.Request) {
	view, err := s.Sessions.RemoveStudyCard(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "cardID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleExitStudy(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Sessions.ExitStudy(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

func (s *Server) studyAction(w http.ResponseWriter, r *http.Request,
	action func(ctx context.Context, id string) (*models.StudyView, error)) {
	view, err := action(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleStartExam(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	count := s.ExamDefaultCount
	if req.Count != nil {
		count = *req.Count
	}
	view, err := s.Sessions.StartExam(r.Context(), chi.URLParam(r, "deckID"), count)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, view)
}

func (s *Server) handleExam(w http.ResponseWriter, r *http.Request) {
	s.examAction(w, r, s.Sessions.Exam)
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	s.examAction(w, r, s.Sessions.Reveal)
}

func (s *Server) handleExamVerdict(w http.ResponseWriter, r *http.Request) {
	var req verdictRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	view, err := s.Sessions.ExamVerdict(r.Context(), chi.URLParam(r, "sessionID"), *req.Correct)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleExitExam(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Sessions.ExitExam(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

func (s *Server) examAction(w http.ResponseWriter, r *http.Request,
	action func(ctx context.Context, id string) (*models.ExamView, error)) {
	view, err := action(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}
