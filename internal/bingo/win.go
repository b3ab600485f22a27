package bingo

// Line is one completed row, column or diagonal.
type Line struct {
	Name    string `json:"name"`
	Indices []int  `json:"indices"`
}

var lines = buildLines()

// buildLines lists the 12 winning lines in check order:
// rows, columns, main diagonal, anti-diagonal.
func buildLines() []Line {
	out := make([]Line, 0, 2*Size+2)
	names := [Size]string{"0", "1", "2", "3", "4"}

	for r := 0; r < Size; r++ {
		l := Line{Name: "row-" + names[r]}
		for c := 0; c < Size; c++ {
			l.Indices = append(l.Indices, Index(r, c))
		}
		out = append(out, l)
	}
	for c := 0; c < Size; c++ {
		l := Line{Name: "col-" + names[c]}
		for r := 0; r < Size; r++ {
			l.Indices = append(l.Indices, Index(r, c))
		}
		out = append(out, l)
	}

	diag := Line{Name: "diagonal"}
	anti := Line{Name: "anti-diagonal"}
	for i := 0; i < Size; i++ {
		diag.Indices = append(diag.Indices, Index(i, i))
		anti.Indices = append(anti.Indices, Index(i, Size-1-i))
	}
	return append(out, diag, anti)
}

func complete(l Line, marked map[int]bool) bool {
	for _, idx := range l.Indices {
		if idx != FreeIndex && !marked[idx] {
			return false
		}
	}
	return true
}

// HasWin reports whether the marked cell indices complete any line.
// The free cell always counts as marked; marked is not modified.
func HasWin(marked map[int]bool) bool {
	for _, l := range lines {
		if complete(l, marked) {
			return true
		}
	}
	return false
}

// Lines returns every completed line, in check order.
func Lines(marked map[int]bool) []Line {
	var out []Line
	for _, l := range lines {
		if complete(l, marked) {
			out = append(out, Line{Name: l.Name, Indices: append([]int(nil), l.Indices...)})
		}
	}
	return out
}
