package mathutil

import "testing"

func TestHungarianAssignSimple(t *testing.T) {
	cost := [][]float64{
		{1, 5},
		{5, 1},
	}
	got := HungarianAssign(cost)
	if got[0] != 0 || got[1] != 1 {
		t.Fatalf("expected diagonal assignment, got %v", got)
	}
}

func TestHungarianAssignRejectsForbidden(t *testing.T) {
	cost := [][]float64{
		{forbidden, 2},
		{3, forbidden},
	}
	got := HungarianAssign(cost)
	if got[0] != 1 || got[1] != 0 {
		t.Fatalf("expected cross assignment avoiding forbidden entries, got %v", got)
	}
}

func TestHungarianAssignUnbalanced(t *testing.T) {
	// 3 rows, 2 columns: one row must be left unassigned.
	cost := [][]float64{
		{1, 9},
		{9, 1},
		{5, 5},
	}
	got := HungarianAssign(cost)
	assignedCols := map[int]bool{}
	unassigned := 0
	for _, c := range got {
		if c == -1 {
			unassigned++
			continue
		}
		if assignedCols[c] {
			t.Fatalf("column %d assigned twice", c)
		}
		assignedCols[c] = true
	}
	if unassigned != 1 {
		t.Fatalf("expected exactly 1 unassigned row, got %d", unassigned)
	}
}

func TestGreedyAssignNoDoubleBooking(t *testing.T) {
	cost := [][]float64{
		{1, 2, 3},
		{2, 1, 3},
		{3, 3, 1},
	}
	got := GreedyAssign(cost)
	seenCols := map[int]bool{}
	for _, c := range got {
		if c == -1 {
			continue
		}
		if seenCols[c] {
			t.Fatalf("greedy assign double-booked column %d", c)
		}
		seenCols[c] = true
	}
}

func TestGreedyAssignEmpty(t *testing.T) {
	if got := GreedyAssign(nil); got != nil {
		t.Fatalf("expected nil for empty cost matrix, got %v", got)
	}
}
