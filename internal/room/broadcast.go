package room

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultBroadcastInterval = 100 * time.Millisecond

// BroadcastLoop periodically re-sends each playing room's latest number and
// full history, so a client that missed a draw catches up on the next tick.
type BroadcastLoop struct {
	registry *Registry
	interval time.Duration
}

func NewBroadcastLoop(registry *Registry, interval time.Duration) *BroadcastLoop {
	if interval <= 0 {
		interval = DefaultBroadcastInterval
	}
	return &BroadcastLoop{registry: registry, interval: interval}
}

// Run ticks until ctx is cancelled.
func (b *BroadcastLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	log.Infof("broadcast loop started, interval %s", b.interval)
	for {
		select {
		case <-ctx.Done():
			log.Info("broadcast loop stopped")
			return
		case <-ticker.C:
			b.Tick()
		}
	}
}

// Tick rebroadcasts every eligible room once and returns how many were sent.
func (b *BroadcastLoop) Tick() int {
	sent := 0
	for _, r := range b.registry.Rooms() {
		if r.Rebroadcast() {
			sent++
		}
	}
	return sent
}
