package api

import (
	"bytes"
	"net/http"

	"github.com/vytor/vocabdrill/internal/logger"
)

type restoreResponse struct {
	Queued int `json:"queued"`
}

func (s *Server) handleExportBackup(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.Backup.Export(r.Context(), &buf); err != nil {
		handleError(w, r, err)
		return
	}
	writeBuffered(w, "application/json", "vocabdrill-backup.json", &buf)
}

// handleRestoreBackup validates the document synchronously and hands the
// decks to the restore worker.
func (s *Server) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, maxBackupBody)
	if err != nil {
		handleError(w, r, err)
		return
	}
	n, err := s.Backup.Restore(r.Context(), bytes.NewReader(body))
	if err != nil {
		handleError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("backup restore queued: decks=%d", n)
	writeJSON(w, r, http.StatusAccepted, restoreResponse{Queued: n})
}
