package bingo

import (
	"errors"
	"math/rand/v2"
)

// ErrExhausted is returned by Draw once all 75 values have been called.
var ErrExhausted = errors.New("draw pool exhausted")

// DrawPool keeps the ordered history of called numbers for a room.
// It is not safe for concurrent use; the owning room serializes access.
type DrawPool struct {
	rng     *rand.Rand
	history []int
	drawn   [MaxBall + 1]bool
}

func NewDrawPool(rng *rand.Rand) *DrawPool {
	return &DrawPool{
		rng:     rng,
		history: make([]int, 0, MaxBall),
	}
}

// Draw picks one value uniformly from the numbers not called yet.
func (p *DrawPool) Draw() (int, error) {
	remaining := make([]int, 0, MaxBall-len(p.history))
	for v := 1; v <= MaxBall; v++ {
		if !p.drawn[v] {
			remaining = append(remaining, v)
		}
	}
	if len(remaining) == 0 {
		return 0, ErrExhausted
	}

	v := remaining[p.rng.IntN(len(remaining))]
	p.drawn[v] = true
	p.history = append(p.history, v)
	return v, nil
}

// Drawn reports whether v has already been called.
func (p *DrawPool) Drawn(v int) bool {
	if v < 1 || v > MaxBall {
		return false
	}
	return p.drawn[v]
}

// History returns a copy of the called numbers in draw order.
func (p *DrawPool) History() []int {
	return append([]int(nil), p.history...)
}

func (p *DrawPool) Len() int {
	return len(p.history)
}

// Current returns the last called number, false before the first draw.
func (p *DrawPool) Current() (int, bool) {
	if len(p.history) == 0 {
		return 0, false
	}
	return p.history[len(p.history)-1], true
}

func (p *DrawPool) Reset() {
	p.history = p.history[:0]
	p.drawn = [MaxBall + 1]bool{}
}
