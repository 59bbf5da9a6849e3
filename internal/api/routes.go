package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)
	r.Use(securityHeadersMiddleware)
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(timeoutMiddleware(s.RequestTimeout))

		r.Route("/decks", func(r chi.Router) {
			r.Get("/", s.handleListDecks)
			r.Post("/", s.handleCreateDeck)

			r.Route("/{deckID}", func(r chi.Router) {
				r.Get("/", s.handleGetDeck)
				r.Patch("/", s.handleRenameDeck)
				r.Delete("/", s.handleDeleteDeck)

				r.Get("/cards", s.handleListCards)
				r.Post("/cards", s.handleAddCard)
				r.Put("/cards/{cardID}", s.handleUpdateCard)
				r.Delete("/cards/{cardID}", s.handleDeleteCard)

				r.Post("/import", s.handleImportCards)
				r.Get("/export", s.handleExportCards)
				r.Get("/logs", s.handleSessionLogs)

				r.Post("/study", s.handleStartStudy)
				r.Post("/exam", s.handleStartExam)
			})
		})

		r.Route("/study/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleStudy)
			r.Post("/know", s.handleKnow)
			r.Post("/dont-know", s.handleDontKnow)
			r.Post("/verdict", s.handleStudyVerdict)
			r.Post("/advance", s.handleAdvance)
			r.Post("/exit", s.handleExitStudy)
			r.Delete("/cards/{cardID}", s.handleRemoveStudyCard)
		})

		r.Route("/exam/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleExam)
			r.Post("/reveal", s.handleReveal)
			r.Post("/verdict", s.handleExamVerdict)
			r.Post("/exit", s.handleExitExam)
		})

		r.Get("/stats", s.handleStats)
		r.Get("/backup", s.handleExportBackup)
		r.Post("/backup", s.handleRestoreBackup)
	})
	return r
}
