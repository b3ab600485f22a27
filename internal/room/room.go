package room

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/comm"
	"github.com/avvvet/bingo-rooms/internal/models"
	log "github.com/sirupsen/logrus"
)

type State string

const (
	Waiting  State = "waiting"
	Playing  State = "playing"
	Finished State = "finished"
)

const DefaultDrawInterval = 5 * time.Second

// ErrRoomClosed is returned by Join when the room was torn down
// between lookup and join. Callers should ensure a fresh room and retry.
var ErrRoomClosed = errors.New("room closed")

// ClaimOutcome is the result of a bingo claim.
type ClaimOutcome int

const (
	ClaimIgnored  ClaimOutcome = iota // room not playing or claimant unknown
	ClaimRejected                     // no complete line
	ClaimAccepted
)

// Notifier delivers engine events to connections.
// Both methods are called with the room lock held and must not block.
type Notifier interface {
	Notify(participantId string, msg *comm.WSMessage)
	Broadcast(roomId string, participantIds []string, msg *comm.WSMessage)
}

// ResultRecorder receives finished rounds. Called with the room lock held, must not block.
type ResultRecorder interface {
	Record(res models.GameResult)
}

type Config struct {
	DrawInterval time.Duration
	Notifier     Notifier
	Recorder     ResultRecorder    // optional
	NewRand      func() *rand.Rand // optional, seeded sources for tests
	InstanceId   string
}

func (c Config) withDefaults() Config {
	if c.DrawInterval <= 0 {
		c.DrawInterval = DefaultDrawInterval
	}
	if c.Notifier == nil {
		c.Notifier = discard{}
	}
	if c.NewRand == nil {
		c.NewRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
	}
	return c
}

type discard struct{}

func (discard) Notify(string, *comm.WSMessage)              {}
func (discard) Broadcast(string, []string, *comm.WSMessage) {}

type Participant struct {
	Id     string
	Name   string
	Card   bingo.Card
	Marked map[int]bool
}

func (p *Participant) markedCells() []int {
	out := make([]int, 0, len(p.Marked))
	for idx := range p.Marked {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// Room owns one game. Every exported method takes mu for its whole duration,
// including the draw timer callback.
type Room struct {
	id  string
	cfg Config
	log *log.Entry

	mu           sync.Mutex
	participants map[string]*Participant
	rng          *rand.Rand
	pool         *bingo.DrawPool
	state        State
	winner       string
	timer        *time.Timer // non-nil iff state == Playing
	epoch        uint64      // bumped whenever a scheduled draw must be invalidated
	closed       bool
	joinSeq      int
	startedAt    time.Time
}

func newRoom(id string, cfg Config) *Room {
	rng := cfg.NewRand()
	return &Room{
		id:           id,
		cfg:          cfg,
		log:          log.WithFields(log.Fields{"room": id}),
		participants: make(map[string]*Participant),
		rng:          rng,
		pool:         bingo.NewDrawPool(rng),
		state:        Waiting,
	}
}

func (r *Room) Id() string {
	return r.id
}

// Join adds a participant with a fresh card. A repeated join for the same id
// keeps the existing card and re-sends the acknowledgment.
func (r *Room) Join(participantId, displayName string) (comm.Joined, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return comm.Joined{}, ErrRoomClosed
	}

	p, ok := r.participants[participantId]
	if !ok {
		r.joinSeq++
		name := strings.TrimSpace(displayName)
		if name == "" {
			name = fmt.Sprintf("Player %d", r.joinSeq)
		}
		p = &Participant{
			Id:     participantId,
			Name:   name,
			Card:   bingo.NewCard(r.rng),
			Marked: make(map[int]bool),
		}
		r.participants[participantId] = p
		r.log.Infof("participant %s joined as %q (total=%d)", participantId, name, len(r.participants))
	}

	joined := comm.Joined{
		Card:        p.Card,
		DisplayName: p.Name,
		Snapshot:    r.snapshot(),
	}
	r.notify(participantId, comm.TypeJoined, joined)
	r.broadcastCount()
	return joined, nil
}

// Leave removes a participant and reports whether the room is torn down.
// The draw timer is cancelled before the room becomes removable.
func (r *Room) Leave(participantId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[participantId]; !ok {
		return r.closed
	}
	delete(r.participants, participantId)
	r.log.Infof("participant %s left (total=%d)", participantId, len(r.participants))

	if len(r.participants) == 0 {
		r.teardownLocked()
		return true
	}
	r.broadcastCount()
	return false
}

// Start moves a waiting room to playing, draws the first number immediately
// and schedules the rest. It is a no-op in any other state.
func (r *Room) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.state != Waiting {
		r.log.Debugf("start ignored in state %s", r.state)
		return false
	}

	r.cancelDrawsLocked()
	r.pool.Reset()
	r.winner = ""
	r.state = Playing
	r.startedAt = time.Now()
	r.log.Info("game started")

	r.broadcast(comm.TypeStarted, r.snapshot())
	r.drawLocked()
	if r.state == Playing {
		r.scheduleLocked()
	}
	return true
}

// MarkCell marks (row, col) for the participant when the cell is free or its
// value has been called. Anything else is a silent no-op.
func (r *Room) MarkCell(participantId string, row, col int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantId]
	if !ok {
		return false
	}
	v, ok := p.Card.Value(row, col)
	if !ok {
		return false
	}
	if v != bingo.Free && !r.pool.Drawn(v) {
		r.log.Debugf("mark rejected for %s: %d not called", participantId, v)
		return false
	}

	p.Marked[bingo.Index(row, col)] = true
	r.notify(participantId, comm.TypeCellMarked, comm.CellMarked{
		Row:         row,
		Col:         col,
		MarkedCells: p.markedCells(),
	})
	return true
}

// ClaimBingo validates the claimant's marks. A valid claim finishes the room;
// an invalid one is reported to the claimant only and can be retried freely.
func (r *Room) ClaimBingo(participantId string) ClaimOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.state != Playing {
		return ClaimIgnored
	}
	p, ok := r.participants[participantId]
	if !ok {
		return ClaimIgnored
	}

	if !bingo.HasWin(p.Marked) {
		r.log.Infof("bingo claim by %s rejected", participantId)
		r.notify(participantId, comm.TypeBingoRejected, comm.BingoRejected{Reason: "no complete line"})
		return ClaimRejected
	}

	r.finishLocked(models.OutcomeWin, p.Name)
	r.log.Infof("%s wins after %d numbers", p.Name, r.pool.Len())
	r.broadcast(comm.TypeWin, comm.Win{
		RoomId:      r.id,
		Winner:      p.Name,
		Card:        p.Card,
		MarkedCells: p.markedCells(),
		Lines:       bingo.Lines(p.Marked),
	})
	return ClaimAccepted
}

// Reset returns the room to waiting and deals every participant a new card.
func (r *Room) Reset() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}

	r.cancelDrawsLocked()
	r.pool.Reset()
	r.winner = ""
	r.state = Waiting
	for _, p := range r.participants {
		p.Card = bingo.NewCard(r.rng)
		p.Marked = make(map[int]bool)
	}
	r.log.Info("game reset")

	snap := r.snapshot()
	for id, p := range r.participants {
		r.notify(id, comm.TypeResetAck, comm.ResetAck{Card: p.Card, Snapshot: snap})
	}
	return true
}

// Rebroadcast re-sends the latest number with the full history.
// It only fires for playing rooms that have drawn at least once.
func (r *Room) Rebroadcast() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.state != Playing {
		return false
	}
	v, ok := r.pool.Current()
	if !ok {
		return false
	}
	r.broadcastDraw(v)
	return true
}

// Snapshot is computed on every call.
func (r *Room) Snapshot() comm.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Participant returns a copy of the participant's state.
func (r *Room) Participant(participantId string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantId]
	if !ok {
		return Participant{}, false
	}
	cp := *p
	cp.Marked = make(map[int]bool, len(p.Marked))
	for k, v := range p.Marked {
		cp.Marked[k] = v
	}
	return cp, true
}

// Close tears the room down regardless of participants.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.teardownLocked()
	}
}

// closeIfEmpty tears down a room nobody has joined yet, reporting whether it is closed.
func (r *Room) closeIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed && len(r.participants) == 0 {
		r.teardownLocked()
	}
	return r.closed
}

func (r *Room) teardownLocked() {
	r.cancelDrawsLocked()
	r.closed = true
	r.participants = make(map[string]*Participant)
	r.log.Info("room torn down")
}

func (r *Room) cancelDrawsLocked() {
	r.epoch++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Room) scheduleLocked() {
	epoch := r.epoch
	r.timer = time.AfterFunc(r.cfg.DrawInterval, func() {
		r.tick(epoch)
	})
}

// tick runs one scheduled draw unless the schedule it belongs to was cancelled.
func (r *Room) tick(epoch uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.epoch != epoch || r.state != Playing {
		return
	}
	r.drawLocked()
	if r.state == Playing {
		r.scheduleLocked()
	}
}

func (r *Room) drawLocked() {
	v, err := r.pool.Draw()
	if errors.Is(err, bingo.ErrExhausted) {
		r.finishLocked(models.OutcomeExhausted, "")
		r.log.Info("draw pool exhausted without a winner")
		r.broadcast(comm.TypeDrawExhausted, r.snapshot())
		return
	}
	r.log.Debugf("drew %d (%d/%d)", v, r.pool.Len(), bingo.MaxBall)
	r.broadcastDraw(v)
}

func (r *Room) finishLocked(outcome, winner string) {
	r.cancelDrawsLocked()
	r.state = Finished
	r.winner = winner

	if r.cfg.Recorder != nil {
		r.cfg.Recorder.Record(models.GameResult{
			RoomId:        r.id,
			InstanceId:    r.cfg.InstanceId,
			Outcome:       outcome,
			Winner:        winner,
			CalledNumbers: r.pool.History(),
			Participants:  len(r.participants),
			StartedAt:     r.startedAt,
			FinishedAt:    time.Now(),
		})
	}
}

func (r *Room) snapshot() comm.Snapshot {
	s := comm.Snapshot{
		RoomId:           r.id,
		ParticipantCount: len(r.participants),
		CalledNumbers:    r.pool.History(),
		State:            string(r.state),
		Winner:           r.winner,
	}
	if v, ok := r.pool.Current(); ok {
		s.CurrentNumber = &v
	}
	return s
}

func (r *Room) broadcastDraw(v int) {
	r.broadcast(comm.TypeNumberDrawn, comm.NumberDrawn{
		RoomId:        r.id,
		Number:        v,
		CalledNumbers: r.pool.History(),
	})
}

func (r *Room) broadcastCount() {
	r.broadcast(comm.TypeParticipantCount, comm.ParticipantCount{
		RoomId: r.id,
		Count:  len(r.participants),
	})
}

func (r *Room) notify(participantId, msgType string, payload any) {
	msg, err := comm.NewMessage(msgType, payload)
	if err != nil {
		r.log.Errorf("notify %s: %v", participantId, err)
		return
	}
	r.cfg.Notifier.Notify(participantId, msg)
}

func (r *Room) broadcast(msgType string, payload any) {
	msg, err := comm.NewMessage(msgType, payload)
	if err != nil {
		r.log.Errorf("broadcast: %v", err)
		return
	}
	ids := make([]string, 0, len(r.participants))
	for id := range r.participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	r.cfg.Notifier.Broadcast(r.id, ids, msg)
}
