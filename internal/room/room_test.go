package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/comm"
	"github.com/avvvet/bingo-rooms/internal/models"
)

type sent struct {
	to   string   // set for Notify
	room string   // set for Broadcast
	ids  []string // broadcast recipients
	msg  *comm.WSMessage
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []sent
}

func (n *recordingNotifier) Notify(participantId string, msg *comm.WSMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, sent{to: participantId, msg: msg})
}

func (n *recordingNotifier) Broadcast(roomId string, ids []string, msg *comm.WSMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, sent{room: roomId, ids: ids, msg: msg})
}

func (n *recordingNotifier) ofType(t string) []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sent
	for _, s := range n.msgs {
		if s.msg.Type == t {
			out = append(out, s)
		}
	}
	return out
}

type resultSink struct {
	mu      sync.Mutex
	results []models.GameResult
}

func (s *resultSink) Record(res models.GameResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
}

func (s *resultSink) all() []models.GameResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.GameResult(nil), s.results...)
}

func testConfig(n Notifier, interval time.Duration) Config {
	var seed atomic.Uint64
	return Config{
		DrawInterval: interval,
		Notifier:     n,
		NewRand: func() *rand.Rand {
			s := seed.Add(1)
			return rand.New(rand.NewPCG(s, s*31))
		},
	}
}

// drawN runs n draws directly, bypassing the timer.
func drawN(r *Room, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < n && r.state == Playing; i++ {
		r.drawLocked()
	}
}

// drawUntilCalled draws until every given cell value has been called.
func drawUntilCalled(t *testing.T, r *Room, values ...int) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		done := true
		for _, v := range values {
			if v != bingo.Free && !r.pool.Drawn(v) {
				done = false
			}
		}
		if done {
			return
		}
		require.Equal(t, Playing, r.state)
		r.drawLocked()
	}
}

func decode[T any](t *testing.T, msg *comm.WSMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(msg.Data, &out))
	return out
}

func TestJoinAssignsCardAndDefaultName(t *testing.T) {
	n := &recordingNotifier{}
	g := NewRegistry(testConfig(n, time.Hour))

	r, joined, err := g.Join("room1", "a", "")
	require.NoError(t, err)
	assert.Equal(t, "Player 1", joined.DisplayName)
	assert.NoError(t, joined.Card.Validate())
	assert.Equal(t, 1, joined.Snapshot.ParticipantCount)
	assert.Equal(t, string(Waiting), joined.Snapshot.State)
	assert.Nil(t, joined.Snapshot.CurrentNumber)

	_, joined, err = g.Join("room1", "b", "  Alice ")
	require.NoError(t, err)
	assert.Equal(t, "Alice", joined.DisplayName)

	_, joined, err = g.Join("room1", "c", "")
	require.NoError(t, err)
	assert.Equal(t, "Player 3", joined.DisplayName)

	acks := n.ofType(comm.TypeJoined)
	require.Len(t, acks, 3)
	assert.Equal(t, "a", acks[0].to)

	counts := n.ofType(comm.TypeParticipantCount)
	require.Len(t, counts, 3)
	last := decode[comm.ParticipantCount](t, counts[2].msg)
	assert.Equal(t, 3, last.Count)
	assert.Equal(t, []string{"a", "b", "c"}, counts[2].ids)
	assert.Equal(t, 3, r.Snapshot().ParticipantCount)
}

func TestRejoinKeepsCard(t *testing.T) {
	g := NewRegistry(testConfig(nil, time.Hour))
	_, first, err := g.Join("r", "a", "Ann")
	require.NoError(t, err)
	_, second, err := g.Join("r", "a", "Other")
	require.NoError(t, err)

	assert.Equal(t, first.Card, second.Card)
	assert.Equal(t, "Ann", second.DisplayName)
	assert.Equal(t, 1, second.Snapshot.ParticipantCount)
}

func TestStartDrawsImmediately(t *testing.T) {
	n := &recordingNotifier{}
	g := NewRegistry(testConfig(n, time.Hour))
	r, _, err := g.Join("r", "a", "")
	require.NoError(t, err)

	require.True(t, r.Start())
	assert.Equal(t, Playing, r.State())

	started := n.ofType(comm.TypeStarted)
	require.Len(t, started, 1)
	assert.Equal(t, string(Playing), decode[comm.Snapshot](t, started[0].msg).State)

	drawn := n.ofType(comm.TypeNumberDrawn)
	require.Len(t, drawn, 1)
	nd := decode[comm.NumberDrawn](t, drawn[0].msg)
	assert.Equal(t, []int{nd.Number}, nd.CalledNumbers)

	snap := r.Snapshot()
	require.NotNil(t, snap.CurrentNumber)
	assert.Equal(t, nd.Number, *snap.CurrentNumber)

	assert.False(t, r.Start(), "start while playing is a no-op")
	assert.Len(t, n.ofType(comm.TypeStarted), 1)
}

func TestSnapshotIsFresh(t *testing.T) {
	g := NewRegistry(testConfig(nil, time.Hour))
	r, _, _ := g.Join("r", "a", "")
	r.Start()

	before := r.Snapshot()
	drawN(r, 1)
	after := r.Snapshot()

	assert.Len(t, before.CalledNumbers, 1)
	assert.Len(t, after.CalledNumbers, 2)
	assert.NotEqual(t, *before.CurrentNumber, *after.CurrentNumber)
}

func TestMarkCellRequiresCalledValue(t *testing.T) {
	n := &recordingNotifier{}
	g := NewRegistry(testConfig(n, time.Hour))
	r, _, _ := g.Join("r", "a", "")

	// nothing drawn yet
	assert.False(t, r.MarkCell("a", 0, 0))
	p, _ := r.Participant("a")
	assert.Empty(t, p.Marked)

	assert.True(t, r.MarkCell("a", 2, 2), "free cell is always markable")
	p, _ = r.Participant("a")
	assert.True(t, p.Marked[bingo.FreeIndex])

	r.Start()
	p, _ = r.Participant("a")
	for row := 0; row < bingo.Size; row++ {
		v, _ := p.Card.Value(row, 0)
		called := r.pool.Drawn(v)
		assert.Equal(t, called, r.MarkCell("a", row, 0), "row %d value %d", row, v)
	}

	v, _ := p.Card.Value(0, 1)
	drawUntilCalled(t, r, v)
	assert.True(t, r.MarkCell("a", 0, 1))

	acks := n.ofType(comm.TypeCellMarked)
	require.NotEmpty(t, acks)
	last := decode[comm.CellMarked](t, acks[len(acks)-1].msg)
	assert.Equal(t, 0, last.Row)
	assert.Equal(t, 1, last.Col)
	assert.Contains(t, last.MarkedCells, bingo.Index(0, 1))
	for _, a := range acks {
		assert.Equal(t, "a", a.to, "mark acks go to the requester only")
	}
}

func TestMarkCellIgnoresUnknownAndOutOfRange(t *testing.T) {
	g := NewRegistry(testConfig(nil, time.Hour))
	r, _, _ := g.Join("r", "a", "")

	assert.False(t, r.MarkCell("ghost", 2, 2))
	assert.False(t, r.MarkCell("a", 5, 0))
	assert.False(t, r.MarkCell("a", 0, -1))
}

func TestClaimWithoutLineIsRejected(t *testing.T) {
	n := &recordingNotifier{}
	g := NewRegistry(testConfig(n, time.Hour))
	r, _, _ := g.Join("r", "a", "")
	g.Join("r", "b", "")

	assert.Equal(t, ClaimIgnored, r.ClaimBingo("a"), "claims before start are ignored")

	r.Start()
	for i := 0; i < 3; i++ {
		assert.Equal(t, ClaimRejected, r.ClaimBingo("a"))
	}
	assert.Equal(t, Playing, r.State())
	assert.Empty(t, r.Snapshot().Winner)

	rejects := n.ofType(comm.TypeBingoRejected)
	require.Len(t, rejects, 3)
	for _, rej := range rejects {
		assert.Equal(t, "a", rej.to)
	}
	assert.Empty(t, n.ofType(comm.TypeWin))
	assert.Equal(t, ClaimIgnored, r.ClaimBingo("ghost"))
}

func TestClaimWithLineFinishesRoom(t *testing.T) {
	n := &recordingNotifier{}
	sink := &resultSink{}
	cfg := testConfig(n, time.Hour)
	cfg.Recorder = sink
	g := NewRegistry(cfg)
	r, _, _ := g.Join("r", "a", "Ann")
	g.Join("r", "b", "")
	r.Start()

	p, _ := r.Participant("a")
	var row0 []int
	for col := 0; col < bingo.Size; col++ {
		v, _ := p.Card.Value(0, col)
		row0 = append(row0, v)
	}
	drawUntilCalled(t, r, row0...)
	for col := 0; col < bingo.Size; col++ {
		require.True(t, r.MarkCell("a", 0, col))
	}

	assert.Equal(t, ClaimAccepted, r.ClaimBingo("a"))
	assert.Equal(t, Finished, r.State())
	assert.Equal(t, "Ann", r.Snapshot().Winner)

	r.mu.Lock()
	assert.Nil(t, r.timer)
	r.mu.Unlock()

	wins := n.ofType(comm.TypeWin)
	require.Len(t, wins, 1)
	assert.Equal(t, []string{"a", "b"}, wins[0].ids)
	win := decode[comm.Win](t, wins[0].msg)
	assert.Equal(t, "Ann", win.Winner)
	assert.Equal(t, p.Card, win.Card)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, win.MarkedCells)
	require.NotEmpty(t, win.Lines)
	assert.Equal(t, "row-0", win.Lines[0].Name)

	assert.False(t, r.Start(), "start after a win waits for reset")
	assert.Equal(t, ClaimIgnored, r.ClaimBingo("b"))

	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, models.OutcomeWin, results[0].Outcome)
	assert.Equal(t, "Ann", results[0].Winner)
	assert.Equal(t, 2, results[0].Participants)

	require.True(t, r.Reset())
	assert.Equal(t, Waiting, r.State())
	assert.True(t, r.Start())
}

func TestResetDealsFreshCards(t *testing.T) {
	n := &recordingNotifier{}
	g := NewRegistry(testConfig(n, time.Hour))
	r, _, _ := g.Join("r", "a", "")
	g.Join("r", "b", "")
	r.Start()
	r.MarkCell("a", 2, 2)
	r.MarkCell("b", 2, 2)

	require.True(t, r.Reset())
	snap := r.Snapshot()
	assert.Equal(t, string(Waiting), snap.State)
	assert.Empty(t, snap.CalledNumbers)
	assert.Nil(t, snap.CurrentNumber)
	assert.Empty(t, snap.Winner)

	acks := n.ofType(comm.TypeResetAck)
	require.Len(t, acks, 2)
	for _, ack := range acks {
		require.NotEmpty(t, ack.to, "reset is delivered per participant")
		p, ok := r.Participant(ack.to)
		require.True(t, ok)
		assert.Empty(t, p.Marked)
		assert.NoError(t, p.Card.Validate())

		body := decode[comm.ResetAck](t, ack.msg)
		assert.Equal(t, p.Card, body.Card)
		assert.Equal(t, string(Waiting), body.Snapshot.State)
	}

	r.mu.Lock()
	assert.Nil(t, r.timer)
	r.mu.Unlock()
}

func TestDrawTimerFiresAndStopsOnReset(t *testing.T) {
	n := &recordingNotifier{}
	g := NewRegistry(testConfig(n, 5*time.Millisecond))
	r, _, _ := g.Join("r", "a", "")
	r.Start()

	assert.Eventually(t, func() bool {
		return len(n.ofType(comm.TypeNumberDrawn)) >= 4
	}, 2*time.Second, 5*time.Millisecond)

	r.Reset()
	count := len(n.ofType(comm.TypeNumberDrawn))
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, count, len(n.ofType(comm.TypeNumberDrawn)))
	assert.Empty(t, r.Snapshot().CalledNumbers)
}

func TestLastLeaveTearsDownRoom(t *testing.T) {
	n := &recordingNotifier{}
	g := NewRegistry(testConfig(n, 5*time.Millisecond))
	r, _, _ := g.Join("r", "a", "")
	g.Join("r", "b", "")
	r.Start()

	g.Leave("r", "a")
	_, ok := g.Get("r")
	assert.True(t, ok)
	counts := n.ofType(comm.TypeParticipantCount)
	assert.Equal(t, 1, decode[comm.ParticipantCount](t, counts[len(counts)-1].msg).Count)

	g.Leave("r", "b")
	_, ok = g.Get("r")
	assert.False(t, ok)
	assert.True(t, r.Closed())
	assert.Zero(t, g.Len())

	count := len(n.ofType(comm.TypeNumberDrawn))
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, count, len(n.ofType(comm.TypeNumberDrawn)), "no draws after teardown")

	_, err := r.Join("c", "")
	assert.True(t, errors.Is(err, ErrRoomClosed))
}

func TestExhaustionFinishesWithoutWinner(t *testing.T) {
	n := &recordingNotifier{}
	sink := &resultSink{}
	cfg := testConfig(n, time.Hour)
	cfg.Recorder = sink
	g := NewRegistry(cfg)
	r, _, _ := g.Join("r", "a", "")
	r.Start()

	drawN(r, bingo.MaxBall-1)
	assert.Equal(t, Playing, r.State())
	assert.Len(t, r.Snapshot().CalledNumbers, bingo.MaxBall)

	drawN(r, 1)
	assert.Equal(t, Finished, r.State())
	assert.Empty(t, r.Snapshot().Winner)
	require.Len(t, n.ofType(comm.TypeDrawExhausted), 1)

	r.mu.Lock()
	assert.Nil(t, r.timer)
	r.mu.Unlock()

	assert.False(t, r.Rebroadcast())
	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, models.OutcomeExhausted, results[0].Outcome)
	assert.Len(t, results[0].CalledNumbers, bingo.MaxBall)
}

func TestStaleTickIsIgnored(t *testing.T) {
	g := NewRegistry(testConfig(nil, time.Hour))
	r, _, _ := g.Join("r", "a", "")
	r.Start()

	r.mu.Lock()
	stale := r.epoch
	r.mu.Unlock()

	r.Reset()
	r.Start()
	before := len(r.Snapshot().CalledNumbers)

	r.tick(stale)
	assert.Len(t, r.Snapshot().CalledNumbers, before)
}

func TestRegistryEnsureAndRemove(t *testing.T) {
	g := NewRegistry(testConfig(nil, time.Hour))

	a := g.Ensure("x")
	assert.Same(t, a, g.Ensure("x"))

	assert.True(t, g.RemoveIfEmpty("x"), "an unjoined room is empty")
	assert.True(t, a.Closed())
	_, ok := g.Get("x")
	assert.False(t, ok)

	b := g.Ensure("x")
	assert.NotSame(t, a, b)
	_, _, err := g.Join("x", "p", "")
	require.NoError(t, err)
	assert.False(t, g.RemoveIfEmpty("x"))
	assert.False(t, g.RemoveIfEmpty("missing"))
}

func TestRegistryReplacesClosedRoomOnJoin(t *testing.T) {
	g := NewRegistry(testConfig(nil, time.Hour))
	old := g.Ensure("x")
	old.Close()

	r, _, err := g.Join("x", "p", "")
	require.NoError(t, err)
	assert.NotSame(t, old, r)
	assert.False(t, r.Closed())
}

func TestRegistryGeneratesRoomId(t *testing.T) {
	g := NewRegistry(testConfig(nil, time.Hour))
	r, joined, err := g.Join("", "p", "")
	require.NoError(t, err)
	assert.Len(t, r.Id(), roomIdLength)
	assert.Equal(t, r.Id(), joined.Snapshot.RoomId)
}

func TestRegistryCloseCancelsTimers(t *testing.T) {
	n := &recordingNotifier{}
	g := NewRegistry(testConfig(n, 5*time.Millisecond))
	var rooms []*Room
	for i := 0; i < 3; i++ {
		r, _, _ := g.Join(fmt.Sprintf("r%d", i), "p", "")
		r.Start()
		rooms = append(rooms, r)
	}

	g.Close()
	assert.Zero(t, g.Len())
	for _, r := range rooms {
		assert.True(t, r.Closed())
	}
	count := len(n.ofType(comm.TypeNumberDrawn))
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, count, len(n.ofType(comm.TypeNumberDrawn)))
}

func TestConcurrentRoomsAreIndependent(t *testing.T) {
	g := NewRegistry(testConfig(&recordingNotifier{}, time.Millisecond))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			roomId := fmt.Sprintf("room-%d", i%4)
			pid := fmt.Sprintf("p-%d", i)
			r, _, err := g.Join(roomId, pid, "")
			if err != nil {
				return
			}
			r.Start()
			for j := 0; j < 50; j++ {
				r.MarkCell(pid, j%5, (j/5)%5)
				r.ClaimBingo(pid)
				r.Snapshot()
			}
			if i%3 == 0 {
				r.Reset()
			}
			g.Leave(roomId, pid)
		}(i)
	}
	wg.Wait()
	assert.Zero(t, g.Len())
}
