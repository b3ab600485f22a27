package archive

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bingo-rooms/internal/models"
)

const (
	queueBufferSize = 256
	saveTimeout     = 5 * time.Second
)

// Store persists finished rounds. Implemented by store.GameStore (Postgres)
// and store.MongoGameStore.
type Store interface {
	SaveGame(ctx context.Context, res models.GameResult) error
}

// Archiver queues finished rounds from the room engine and writes them
// to a Store on its own goroutine.
type Archiver struct {
	store Store
	queue chan models.GameResult
}

func NewArchiver(store Store) *Archiver {
	return &Archiver{
		store: store,
		queue: make(chan models.GameResult, queueBufferSize),
	}
}

// Record implements room.ResultRecorder. It never blocks; a full queue drops the record.
func (a *Archiver) Record(res models.GameResult) {
	select {
	case a.queue <- res:
	default:
		log.Warnf("archive queue full, dropping %s result for room %s", res.Outcome, res.RoomId)
	}
}

// Run saves queued results until ctx is done, then flushes what is left.
func (a *Archiver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			a.drain()
			return
		case res := <-a.queue:
			a.save(res)
		}
	}
}

func (a *Archiver) drain() {
	for {
		select {
		case res := <-a.queue:
			a.save(res)
		default:
			return
		}
	}
}

func (a *Archiver) save(res models.GameResult) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := a.store.SaveGame(ctx, res); err != nil {
		log.Errorf("archive %s result for room %s failed: %v", res.Outcome, res.RoomId, err)
		return
	}
	log.Debugf("archived %s result for room %s", res.Outcome, res.RoomId)
}
