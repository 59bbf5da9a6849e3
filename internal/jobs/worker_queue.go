package jobs

import (
	"github.com/vytor/vocabdrill/internal/models"
	"github.com/vytor/vocabdrill/internal/worker"
)

// WorkerQueue implements JobQueue using worker pools
type WorkerQueue struct {
	restorePool *worker.Pool
	restorer    worker.DeckRestorer
}

// NewWorkerQueue creates a new WorkerQueue implementation
func NewWorkerQueue(restorePool *worker.Pool, restorer worker.DeckRestorer) *WorkerQueue {
	return &WorkerQueue{restorePool: restorePool, restorer: restorer}
}

// SetRestorer wires the restorer after construction; the backup service and
// the queue refer to each other.
func (q *WorkerQueue) SetRestorer(r worker.DeckRestorer) {
	q.restorer = r
}

func (q *WorkerQueue) EnqueueRestore(decks []models.Deck) error {
	return q.restorePool.Submit(&worker.RestoreBackupJob{
		Restorer: q.restorer,
		Decks:    decks,
	})
}
