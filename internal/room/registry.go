package room

import (
	"errors"
	"sort"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bingo-rooms/internal/comm"
)

const (
	roomIdAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	roomIdLength   = 6
	joinAttempts   = 3
)

// Registry maps room ids to rooms for the whole process. It is created empty
// by main and torn down with Close.
//
// Lock order is registry -> room. Room methods never call back into the registry.
type Registry struct {
	cfg   Config
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:   cfg.withDefaults(),
		rooms: make(map[string]*Room),
	}
}

// Ensure returns the live room for id, creating it when absent or closed.
func (g *Registry) Ensure(id string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.rooms[id]; ok && !r.Closed() {
		return r
	}
	r := newRoom(id, g.cfg)
	g.rooms[id] = r
	log.Infof("room %s created (rooms=%d)", id, len(g.rooms))
	return r
}

func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[id]
	return r, ok
}

// RemoveIfEmpty deletes the room when it has no participants left.
// The room is closed first so a concurrent Join on it fails with ErrRoomClosed.
func (g *Registry) RemoveIfEmpty(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[id]
	if !ok || !r.closeIfEmpty() {
		return false
	}
	delete(g.rooms, id)
	log.Infof("room %s removed (rooms=%d)", id, len(g.rooms))
	return true
}

// Join adds the participant to room id, creating the room on first join.
// An empty id gets a generated one.
func (g *Registry) Join(id, participantId, displayName string) (*Room, comm.Joined, error) {
	if id == "" {
		var err error
		if id, err = g.newRoomId(); err != nil {
			return nil, comm.Joined{}, err
		}
	}

	for i := 0; i < joinAttempts; i++ {
		r := g.Ensure(id)
		joined, err := r.Join(participantId, displayName)
		if errors.Is(err, ErrRoomClosed) {
			continue
		}
		return r, joined, err
	}
	return nil, comm.Joined{}, ErrRoomClosed
}

// Leave removes the participant and drops the room once it is empty.
func (g *Registry) Leave(id, participantId string) {
	r, ok := g.Get(id)
	if !ok {
		return
	}
	if r.Leave(participantId) {
		g.remove(id, r)
	}
}

// remove deletes id only while it still maps to r; a replacement room
// created by a racing join is left alone.
func (g *Registry) remove(id string, r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cur, ok := g.rooms[id]; ok && cur == r {
		delete(g.rooms, id)
		log.Infof("room %s removed (rooms=%d)", id, len(g.rooms))
	}
}

// Rooms returns the current rooms ordered by id.
func (g *Registry) Rooms() []*Room {
	g.mu.Lock()
	out := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r)
	}
	g.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Close drops every room and cancels all draw timers.
func (g *Registry) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, r := range g.rooms {
		r.Close()
		delete(g.rooms, id)
	}
	log.Info("room registry closed")
}

func (g *Registry) newRoomId() (string, error) {
	for {
		id, err := gonanoid.Generate(roomIdAlphabet, roomIdLength)
		if err != nil {
			return "", err
		}
		if _, taken := g.Get(id); !taken {
			return id, nil
		}
	}
}
