// Package mathutil holds the numerical building blocks shared by
// ASSOCIATE+UPDATE and the IMM estimator: Hungarian assignment, the
// chi-squared gating threshold, and covariance sanitation.
package mathutil

import (
	"math"
	"sort"
)

// forbidden is the stand-in for +Inf in a cost matrix; entries at or
// above this value are never selected by the solver.
const forbidden = 1e18

// Forbidden is forbidden's exported form, for callers (e.g. assoc)
// that build cost matrices outside this package and need to mark a
// pairing as infeasible the same way.
const Forbidden = forbidden

// HungarianAssign solves the rectangular minimum-cost assignment
// problem for an n x m cost matrix using Kuhn-Munkres with potentials
// (Jonker-Volgenant variant). Returns assignment[i] = column assigned
// to row i, or -1 if row i is left unassigned. Entries >= forbidden in
// the input are treated as infeasible and never chosen.
func HungarianAssign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	if m == 0 {
		result := make([]int, n)
		for i := range result {
			result[i] = -1
		}
		return result
	}

	dim := n
	if m > dim {
		dim = m
	}

	c := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		c[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			if i < n && j < m {
				c[i][j] = cost[i][j]
			} else {
				c[i][j] = forbidden
			}
		}
	}

	const inf = math.MaxFloat64 / 2

	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	p := make([]int, dim+1)
	way := make([]int, dim+1)
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0

		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := c[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			if j1 < 0 {
				break
			}

			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	rowAssign := make([]int, dim)
	for i := range rowAssign {
		rowAssign[i] = -1
	}
	for j := 1; j <= dim; j++ {
		if p[j] > 0 && p[j] <= dim {
			rowAssign[p[j]-1] = j - 1
		}
	}

	result := make([]int, n)
	for i := 0; i < n; i++ {
		col := rowAssign[i]
		if col < 0 || col >= m || cost[i][col] >= forbidden {
			result[i] = -1
		} else {
			result[i] = col
		}
	}

	return result
}

// GreedyAssign is the fallback solver used when one side of the
// bipartite graph exceeds max_tracks_for_parallel: it repeatedly picks
// the globally cheapest feasible (row, col) pair, ties broken by the
// lower column index, until no feasible pairs remain. O(n*m*log(n*m)).
func GreedyAssign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	result := make([]int, n)
	for i := range result {
		result[i] = -1
	}
	if m == 0 {
		return result
	}

	type pair struct {
		i, j int
		cost float64
	}
	pairs := make([]pair, 0, n*m)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			if cost[i][j] < forbidden {
				pairs = append(pairs, pair{i, j, cost[i][j]})
			}
		}
	}
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].cost != pairs[b].cost {
			return pairs[a].cost < pairs[b].cost
		}
		return pairs[a].j < pairs[b].j
	})

	rowUsed := make([]bool, n)
	colUsed := make([]bool, m)
	for _, p := range pairs {
		if rowUsed[p.i] || colUsed[p.j] {
			continue
		}
		result[p.i] = p.j
		rowUsed[p.i] = true
		colUsed[p.j] = true
	}
	return result
}
