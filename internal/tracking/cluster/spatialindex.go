package cluster

import "math"

// spatialIndex accelerates neighbour queries over detection positions
// using a regular grid keyed by a Szudzik-paired cell id. Cell
// membership is position-only; the exact weighted composite distance
// (position + velocity + range + azimuth) is re-checked against every
// candidate the grid returns, so the grid only needs to be a superset
// of the true neighbourhood, never an exact one.
type spatialIndex struct {
	cellSize float64
	grid     map[int64][]int
}

func newSpatialIndex(cellSize float64) *spatialIndex {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &spatialIndex{cellSize: cellSize, grid: make(map[int64][]int)}
}

func (si *spatialIndex) build(xs, ys []float64) {
	si.grid = make(map[int64][]int, len(xs)/4+1)
	for i := range xs {
		id := si.cellID(xs[i], ys[i])
		si.grid[id] = append(si.grid[id], i)
	}
}

func (si *spatialIndex) cellID(x, y float64) int64 {
	cellX := int64(math.Floor(x / si.cellSize))
	cellY := int64(math.Floor(y / si.cellSize))
	return szudzikPair(cellX, cellY)
}

func szudzikPair(cellX, cellY int64) int64 {
	var a, b int64
	if cellX >= 0 {
		a = 2 * cellX
	} else {
		a = -2*cellX - 1
	}
	if cellY >= 0 {
		b = 2 * cellY
	} else {
		b = -2*cellY - 1
	}
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

// candidates returns the indices of points in the square block of cells
// reaching span cells out from the cell of (x,y) on every side, where
// span = ceil(radius/cellSize) + 1.
func (si *spatialIndex) candidates(x, y, radius float64) []int {
	cellX := int64(math.Floor(x / si.cellSize))
	cellY := int64(math.Floor(y / si.cellSize))

	// Widen the cell search with the radius so the block still
	// contains every true candidate.
	span := int64(math.Ceil(radius/si.cellSize)) + 1
	if span < 1 {
		span = 1
	}

	out := []int{}
	for dx := -span; dx <= span; dx++ {
		for dy := -span; dy <= span; dy++ {
			id := szudzikPair(cellX+dx, cellY+dy)
			out = append(out, si.grid[id]...)
		}
	}
	return out
}
