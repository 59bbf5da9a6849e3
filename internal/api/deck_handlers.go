package api

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vytor/vocabdrill/internal/logger"
	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/services"
)

type deckRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type cardRequest struct {
	English string `json:"english" validate:"required,max=500"`
	Chinese string `json:"chinese" validate:"required,max=500"`
	Note    string `json:"note" validate:"max=2000"`
}

func (c cardRequest) input() services.CardInput {
	return services.CardInput{English: c.English, Chinese: c.Chinese, Note: c.Note}
}

type cardListResponse struct {
	Cards []models.Card `json:"cards"`
	Total int           `json:"total"`
}

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := s.Decks.ListDecks(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, decks)
}

func (s *Server) handleCreateDeck(w http.ResponseWriter, r *http.Request) {
	var req deckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	deck, err := s.Decks.CreateDeck(r.Context(), req.Name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("deck created: id=%s", deck.ID)
	writeJSON(w, r, http.StatusCreated, deck)
}

func (s *Server) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	deck, err := s.Decks.GetDeck(r.Context(), chi.URLParam(r, "deckID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, deck)
}

func (s *Server) handleRenameDeck(w http.ResponseWriter, r *http.Request) {
	var req deckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	deck, err := s.Decks.RenameDeck(r.Context(), chi.URLParam(r, "deckID"), req.Name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, deck)
}

func (s *Server) handleDeleteDeck(w http.ResponseWriter, r *http.Request) {
	if err := s.Decks.DeleteDeck(r.Context(), chi.URLParam(r, "deckID")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	filter := models.CardFilter{
		DeckID: chi.URLParam(r, "deckID"),
		Search: r.URL.Query().Get("search"),
	}
	var err error
	if filter.MinWrong, err = queryInt(r, "min_wrong"); err != nil {
		handleError(w, r, err)
		return
	}
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		handleError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		handleError(w, r, err)
		return
	}

	cards, total, err := s.Decks.ListCards(r.Context(), filter)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cardListResponse{Cards: cards, Total: total})
}

func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	card, err := s.Decks.AddCard(r.Context(), chi.URLParam(r, "deckID"), req.input())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, card)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	card, err := s.Decks.UpdateCard(r.Context(), chi.URLParam(r, "deckID"), chi.URLParam(r, "cardID"), req.input())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.Decks.DeleteCard(r.Context(), chi.URLParam(r, "deckID"), chi.URLParam(r, "cardID")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImportCards(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, maxImportBody)
	if err != nil {
		handleError(w, r, err)
		return
	}
	res, err := s.Decks.ImportCards(r.Context(), chi.URLParam(r, "deckID"), bytes.NewReader(body))
	if err != nil {
		handleError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("cards imported: imported=%d, skipped=%d", res.Imported, res.Skipped)
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleExportCards(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")
	var buf bytes.Buffer
	if err := s.Decks.ExportCards(r.Context(), deckID, &buf); err != nil {
		handleError(w, r, err)
		return
	}
	writeBuffered(w, "text/plain; charset=utf-8", deckID+".txt", &buf)
}

func (s *Server) handleSessionLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		handleError(w, r, err)
		return
	}
	logs, err := s.Decks.SessionLogs(r.Context(), chi.URLParam(r, "deckID"), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, logs)
}
