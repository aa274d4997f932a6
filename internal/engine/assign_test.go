package engine

import (
	"testing"
)

func TestSolveAssignment_Empty(t *testing.T) {
	result := solveAssignment(nil)
	if result != nil {
		t.Errorf("expected nil for empty cost matrix, got %v", result)
	}
}

func TestSolveAssignment_SingleElement(t *testing.T) {
	cost := [][]float64{{5.0}}
	result := solveAssignment(cost)
	if len(result) != 1 || result[0] != 0 {
		t.Errorf("expected [0], got %v", result)
	}
}

func TestSolveAssignment_SquareOptimal(t *testing.T) {
	// Classic 3x3 assignment problem:
	//   [1 2 3]     Optimal: row0→col0 (1), row1→col1 (4), row2→col2 (5) = 10
	//   [4 4 6]     NOT: row0→col0 (1), row1→col2 (6), row2→col1 (8) = 15
	//   [9 8 5]
	cost := [][]float64{
		{1, 2, 3},
		{4, 4, 6},
		{9, 8, 5},
	}
	result := solveAssignment(cost)

	if len(result) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(result))
	}

	totalCost := 0.0
	for i, j := range result {
		if j < 0 {
			t.Errorf("row %d unassigned", i)
			continue
		}
		totalCost += cost[i][j]
	}

	if totalCost != 10.0 {
		t.Errorf("expected optimal cost 10, got %v (assignments: %v)", totalCost, result)
	}
}

func TestSolveAssignment_Forbidden(t *testing.T) {
	// Row 1 has no reachable column (all forbidden).
	cost := [][]float64{
		{1, 2},
		{assignForbidden, assignForbidden},
	}
	result := solveAssignment(cost)

	if len(result) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(result))
	}
	if result[0] < 0 {
		t.Errorf("row 0 should be assigned, got %d", result[0])
	}
	if result[1] != -1 {
		t.Errorf("row 1 should be unassigned (-1), got %d", result[1])
	}
}

func TestSolveAssignment_MoreObservedThanTargets(t *testing.T) {
	// Three observed twins, two target slots → one stays unbound.
	cost := [][]float64{
		{1, 10},
		{10, 1},
		{5, 5},
	}
	result := solveAssignment(cost)

	if len(result) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(result))
	}

	assigned := 0
	totalCost := 0.0
	for i, j := range result {
		if j >= 0 {
			assigned++
			totalCost += cost[i][j]
		}
	}
	if assigned != 2 {
		t.Errorf("expected exactly 2 assigned rows, got %d (result: %v)", assigned, result)
	}
	if totalCost != 2.0 {
		t.Errorf("expected optimal cost 2, got %v (assignments: %v)", totalCost, result)
	}
}

func TestSolveAssignment_MoreTargetsThanObserved(t *testing.T) {
	// One twin still in the box: both observed pieces bind, one slot stays
	// open.
	cost := [][]float64{
		{10, 1, 5},
		{5, 10, 1},
	}
	result := solveAssignment(cost)

	if len(result) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(result))
	}

	totalCost := 0.0
	for i, j := range result {
		if j < 0 {
			t.Errorf("row %d unassigned", i)
			continue
		}
		totalCost += cost[i][j]
	}
	if totalCost != 2.0 {
		t.Errorf("expected optimal cost 2, got %v (assignments: %v)", totalCost, result)
	}
}

func TestSolveAssignment_AllZeroCost(t *testing.T) {
	cost := [][]float64{
		{0, 0},
		{0, 0},
	}
	result := solveAssignment(cost)

	if len(result) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(result))
	}
	if result[0] == result[1] {
		t.Errorf("both rows assigned to same column: %v", result)
	}
}

func TestSolveAssignment_NoTargets(t *testing.T) {
	cost := [][]float64{
		{},
		{},
	}
	result := solveAssignment(cost)

	if len(result) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(result))
	}
	for i, j := range result {
		if j != -1 {
			t.Errorf("row %d should be -1 (no columns), got %d", i, j)
		}
	}
}

func TestSolveAssignment_LargerOptimality(t *testing.T) {
	// 4x4 problem with known optimal.
	// Optimal assignment: (0,3)=1, (1,2)=2, (2,1)=3, (3,0)=4 → total=10
	cost := [][]float64{
		{10, 5, 7, 1},
		{8, 9, 2, 6},
		{7, 3, 11, 5},
		{4, 12, 8, 9},
	}
	result := solveAssignment(cost)

	totalCost := 0.0
	for i, j := range result {
		if j < 0 {
			t.Errorf("row %d unassigned in 4×4 problem", i)
			continue
		}
		totalCost += cost[i][j]
	}
	if totalCost != 10.0 {
		t.Errorf("expected optimal cost 10, got %v (assignments: %v)", totalCost, result)
	}
}
