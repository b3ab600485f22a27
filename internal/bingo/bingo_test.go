package bingo

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func TestNewCardIsValid(t *testing.T) {
	rng := seeded(1)
	for i := 0; i < 500; i++ {
		card := NewCard(rng)
		require.NoError(t, card.Validate())

		v, ok := card.Value(2, 2)
		require.True(t, ok)
		assert.Equal(t, Free, v)

		for col := 0; col < Size; col++ {
			for row := 0; row < Size; row++ {
				if row == 2 && col == 2 {
					continue
				}
				v, _ := card.Value(row, col)
				assert.GreaterOrEqual(t, v, col*15+1)
				assert.LessOrEqual(t, v, col*15+15)
			}
		}
	}
}

func TestCardValidateRejectsDuplicates(t *testing.T) {
	card := NewCard(seeded(2))
	card[0][1] = card[0][0]
	assert.Error(t, card.Validate())

	card = NewCard(seeded(2))
	card[2][2] = 40
	assert.Error(t, card.Validate())

	card = NewCard(seeded(2))
	card[4][0] = 3
	assert.Error(t, card.Validate())
}

func TestCardValueOutOfBounds(t *testing.T) {
	card := NewCard(seeded(3))
	for _, pos := range [][2]int{{-1, 0}, {0, -1}, {5, 0}, {0, 5}} {
		_, ok := card.Value(pos[0], pos[1])
		assert.False(t, ok, "pos %v", pos)
	}
}

func TestDrawPoolExhaustsAfter75(t *testing.T) {
	pool := NewDrawPool(seeded(4))
	seen := make(map[int]bool)

	for i := 0; i < MaxBall; i++ {
		v, err := pool.Draw()
		require.NoError(t, err)
		require.False(t, seen[v], "value %d drawn twice", v)
		require.True(t, v >= 1 && v <= MaxBall)
		seen[v] = true

		cur, ok := pool.Current()
		require.True(t, ok)
		assert.Equal(t, v, cur)
	}

	_, err := pool.Draw()
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, MaxBall, pool.Len())
}

func TestDrawPoolIsReproducible(t *testing.T) {
	a := NewDrawPool(seeded(5))
	b := NewDrawPool(seeded(5))
	for i := 0; i < 20; i++ {
		va, _ := a.Draw()
		vb, _ := b.Draw()
		require.Equal(t, va, vb)
	}
	assert.Equal(t, a.History(), b.History())
}

func TestDrawPoolReset(t *testing.T) {
	pool := NewDrawPool(seeded(6))
	v, _ := pool.Draw()
	require.True(t, pool.Drawn(v))

	h := pool.History()
	h[0] = -1
	assert.Equal(t, v, pool.History()[0], "history must be a copy")

	pool.Reset()
	assert.False(t, pool.Drawn(v))
	assert.Zero(t, pool.Len())
	_, ok := pool.Current()
	assert.False(t, ok)
	assert.False(t, pool.Drawn(0))
	assert.False(t, pool.Drawn(76))
}

func marks(idx ...int) map[int]bool {
	m := make(map[int]bool, len(idx))
	for _, i := range idx {
		m[i] = true
	}
	return m
}

func TestHasWin(t *testing.T) {
	tests := []struct {
		name   string
		marked map[int]bool
		want   bool
	}{
		{"row 0", marks(0, 1, 2, 3, 4), true},
		{"col 0", marks(0, 5, 10, 15, 20), true},
		{"diagonal with free", marks(0, 6, 18, 24), true},
		{"anti-diagonal with free", marks(4, 8, 16, 20), true},
		{"row 2 through free", marks(10, 11, 13, 14), true},
		{"partial row", marks(0, 1, 2, 3), false},
		{"partial col", marks(0, 5, 10, 15), false},
		{"partial diagonal", marks(0, 6, 18), false},
		{"partial anti-diagonal", marks(4, 8, 20), false},
		{"empty", marks(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasWin(tt.marked))
		})
	}
}

func TestHasWinDoesNotMutateInput(t *testing.T) {
	m := marks(0, 6, 18, 24)
	require.True(t, HasWin(m))
	assert.False(t, m[FreeIndex])
	assert.Len(t, m, 4)
}

func TestLines(t *testing.T) {
	got := Lines(marks(0, 1, 2, 3, 4, 5, 10, 15, 20))
	require.Len(t, got, 2)
	assert.Equal(t, "row-0", got[0].Name)
	assert.Equal(t, "col-0", got[1].Name)
	assert.Equal(t, []int{0, 5, 10, 15, 20}, got[1].Indices)
	assert.Empty(t, Lines(marks(1)))
}
