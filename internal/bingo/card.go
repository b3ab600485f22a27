package bingo

import (
	"fmt"
	"math/rand/v2"
)

const (
	Size     = 5
	MaxBall  = 75
	colRange = MaxBall / Size // 15 values per column

	// Free is the sentinel value stored in the center cell.
	Free = 0

	freeRow = 2
	freeCol = 2
)

// FreeIndex is the linear index (row*5+col) of the center cell.
const FreeIndex = freeRow*Size + freeCol

// Card is a 5x5 bingo card stored column-major: card[col][row].
// Column c holds values in [15c+1, 15c+15], the center cell is Free.
type Card [Size][Size]int

// NewCard builds a card by sampling each column without replacement.
func NewCard(rng *rand.Rand) Card {
	var card Card
	for col := 0; col < Size; col++ {
		pool := make([]int, colRange)
		for i := range pool {
			pool[i] = col*colRange + i + 1
		}

		for row := 0; row < Size; row++ {
			if col == freeCol && row == freeRow {
				card[col][row] = Free
				continue
			}
			i := rng.IntN(len(pool))
			card[col][row] = pool[i]

			// swap-remove the picked value
			pool[i] = pool[len(pool)-1]
			pool = pool[:len(pool)-1]
		}
	}
	return card
}

// Value returns the value at (row, col), false when out of bounds.
func (c Card) Value(row, col int) (int, bool) {
	if row < 0 || row >= Size || col < 0 || col >= Size {
		return 0, false
	}
	return c[col][row], true
}

// Index encodes a cell position as row*5+col.
func Index(row, col int) int {
	return row*Size + col
}

// Validate reports the first column range, duplicate or free cell violation.
func (c Card) Validate() error {
	seen := make(map[int]bool, Size*Size)
	for col := 0; col < Size; col++ {
		lo, hi := col*colRange+1, col*colRange+colRange
		for row := 0; row < Size; row++ {
			v := c[col][row]
			if col == freeCol && row == freeRow {
				if v != Free {
					return fmt.Errorf("center cell is %d, want free", v)
				}
				continue
			}
			if v < lo || v > hi {
				return fmt.Errorf("cell (row=%d,col=%d) value %d outside [%d,%d]", row, col, v, lo, hi)
			}
			if seen[v] {
				return fmt.Errorf("duplicate value %d on card", v)
			}
			seen[v] = true
		}
	}
	return nil
}
