package mot

import (
	"math"
)

// solveAssignment finds maximum weight perfect matching of square weights matrix (Kuhn-Munkres with potentials, O(n^3)).
// Returns column assigned to every row.
func solveAssignment(weights [][]float64) []int {
	n := len(weights)
	if n == 0 {
		return []int{}
	}
	inf := math.Inf(1)
	// Potentials of rows (u) and columns (v), 1-based. Column 0 is a fictive one
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	// rowOfCol[j] - row matched to column j, 0 means free
	rowOfCol := make([]int, n+1)
	way := make([]int, n+1)
	minv := make([]float64, n+1)
	used := make([]bool, n+1)
	for i := 1; i <= n; i++ {
		rowOfCol[0] = i
		j0 := 0
		for j := 0; j <= n; j++ {
			minv[j] = inf
			used[j] = false
		}
		for {
			used[j0] = true
			i0 := rowOfCol[j0]
			delta := inf
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				// Maximization is minimization of negated weights
				cur := -weights[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[rowOfCol[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if rowOfCol[j0] == 0 {
				break
			}
		}
		// Flip augmenting path
		for j0 != 0 {
			j1 := way[j0]
			rowOfCol[j0] = rowOfCol[j1]
			j0 = j1
		}
	}
	colOfRow := make([]int, n)
	for j := 1; j <= n; j++ {
		if rowOfCol[j] != 0 {
			colOfRow[rowOfCol[j]-1] = j - 1
		}
	}
	return colOfRow
}
