package task

// visitState tracks a node's position in the depth-first traversal
// used by TopologicalSort.
type visitState int

const (
	unvisited visitState = iota
	visiting
	done
)

// TopologicalSort orders the graph's task ids via depth-first search.
// Dependencies whose ids are not present in the graph are silent
// no-ops, never cycles. A true back-edge within the in-graph set
// returns ErrCycle. Iteration order over ties is ascending task id,
// so the result is deterministic.
func TopologicalSort(g Graph) ([]int, error) {
	state := make(map[int]visitState, len(g))
	order := make([]int, 0, len(g))

	var visit func(id int) error
	visit = func(id int) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return ErrCycle
		}

		state[id] = visiting
		for _, dep := range g[id].DependsOn {
			if _, inGraph := g[dep]; !inGraph {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = done
		order = append(order, id)

		return nil
	}

	for _, id := range sortedIDs(g) {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// ComputeTiers groups task ids into parallel execution tiers. The
// tier of a node is one plus the maximum tier of its in-graph
// dependencies (0 if it has none). Returns ErrCycle under the same
// conditions as TopologicalSort.
func ComputeTiers(g Graph) ([][]int, error) {
	if _, err := TopologicalSort(g); err != nil {
		return nil, err
	}

	tierOf := make(map[int]int, len(g))

	var tierFor func(id int) int
	tierFor = func(id int) int {
		if t, ok := tierOf[id]; ok {
			return t
		}

		max := -1
		for _, dep := range g[id].DependsOn {
			if _, inGraph := g[dep]; !inGraph {
				continue
			}
			if dt := tierFor(dep); dt > max {
				max = dt
			}
		}

		t := max + 1
		tierOf[id] = t

		return t
	}

	maxTier := -1
	for _, id := range sortedIDs(g) {
		if t := tierFor(id); t > maxTier {
			maxTier = t
		}
	}

	tiers := make([][]int, maxTier+1)
	for _, id := range sortedIDs(g) {
		tiers[tierOf[id]] = append(tiers[tierOf[id]], id)
	}

	return tiers, nil
}
