package gridcalc

import (
	"maps"
	"slices"
)

// DependencyNode represents a cell in the dependency graph. a node exists
// while the cell either reads something (it is a dependent) or is read by
// a dependent.
type DependencyNode struct {
	Address CellAddress

	// set while the cell's formula reads are recorded
	IsDependent bool

	// cell-to-cell dependencies
	CellPrecedents map[CellAddress]struct{} // cells this cell reads
	CellDependents map[CellAddress]struct{} // cells that read this cell

	// ranges this cell reads. never expanded into per-cell edges.
	RangePrecedents map[RangeAddress]struct{}
}

// DependencyGraph tracks which formula cells read which cells and ranges
type DependencyGraph struct {
	nodes          map[CellAddress]*DependencyNode           // all nodes in the graph
	rangeObservers map[RangeAddress]map[CellAddress]struct{} // range -> cells that read it
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:          make(map[CellAddress]*DependencyNode),
		rangeObservers: make(map[RangeAddress]map[CellAddress]struct{}),
	}
}

func (dg *DependencyGraph) getOrCreateNode(addr CellAddress) *DependencyNode {
	if node, exists := dg.nodes[addr]; exists {
		return node
	}

	node := &DependencyNode{
		Address:         addr,
		CellPrecedents:  make(map[CellAddress]struct{}),
		CellDependents:  make(map[CellAddress]struct{}),
		RangePrecedents: make(map[RangeAddress]struct{}),
	}
	dg.nodes[addr] = node
	return node
}

// cleanupNodeIfEmpty removes a node once nothing references it
func (dg *DependencyGraph) cleanupNodeIfEmpty(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}

	if node.IsDependent ||
		len(node.CellPrecedents) > 0 ||
		len(node.CellDependents) > 0 ||
		len(node.RangePrecedents) > 0 {
		return
	}

	delete(dg.nodes, addr)
}

// clearPrecedents drops every read recorded for addr
func (dg *DependencyGraph) clearPrecedents(node *DependencyNode) {
	for precedentAddr := range node.CellPrecedents {
		if precedent, exists := dg.nodes[precedentAddr]; exists {
			delete(precedent.CellDependents, node.Address)
			if precedentAddr != node.Address {
				dg.cleanupNodeIfEmpty(precedentAddr)
			}
		}
	}
	clear(node.CellPrecedents)

	for rangeAddr := range node.RangePrecedents {
		if observers, exists := dg.rangeObservers[rangeAddr]; exists {
			delete(observers, node.Address)
			if len(observers) == 0 {
				delete(dg.rangeObservers, rangeAddr)
			}
		}
	}
	clear(node.RangePrecedents)
}

// Record replaces the reads of dependent with the given cells and ranges
func (dg *DependencyGraph) Record(dependent CellAddress, cells []CellAddress, ranges []RangeAddress) {
	node := dg.getOrCreateNode(dependent)
	dg.clearPrecedents(node)
	node.IsDependent = true

	for _, cell := range cells {
		precedent := dg.getOrCreateNode(cell)
		node.CellPrecedents[cell] = struct{}{}
		precedent.CellDependents[dependent] = struct{}{}
	}

	for _, rangeAddr := range ranges {
		node.RangePrecedents[rangeAddr] = struct{}{}
		if dg.rangeObservers[rangeAddr] == nil {
			dg.rangeObservers[rangeAddr] = make(map[CellAddress]struct{})
		}
		dg.rangeObservers[rangeAddr][dependent] = struct{}{}
	}
}

// Remove drops dependent as a dependent node. other cells may still read
// it, in which case its node stays.
func (dg *DependencyGraph) Remove(dependent CellAddress) {
	node, exists := dg.nodes[dependent]
	if !exists {
		return
	}

	dg.clearPrecedents(node)
	node.IsDependent = false
	dg.cleanupNodeIfEmpty(dependent)
}

// Reads returns the recorded reads of dependent, sorted. ok is false when
// nothing is recorded.
func (dg *DependencyGraph) Reads(dependent CellAddress) (cells []CellAddress, ranges []RangeAddress, ok bool) {
	node, exists := dg.nodes[dependent]
	if !exists || !node.IsDependent {
		return nil, nil, false
	}

	cells = slices.SortedFunc(maps.Keys(node.CellPrecedents), compareAddresses)
	ranges = slices.SortedFunc(maps.Keys(node.RangePrecedents), compareRanges)
	return cells, ranges, true
}

// HasDependent reports whether reads are recorded for addr
func (dg *DependencyGraph) HasDependent(addr CellAddress) bool {
	node, exists := dg.nodes[addr]
	return exists && node.IsDependent
}

// Dependents returns the cells that directly read addr, through a cell
// reference or a range containing it
func (dg *DependencyGraph) Dependents(addr CellAddress) []CellAddress {
	direct := make(map[CellAddress]struct{})

	if node, exists := dg.nodes[addr]; exists {
		for dependentAddr := range node.CellDependents {
			direct[dependentAddr] = struct{}{}
		}
	}

	// lazy range membership
	for rangeAddr, observers := range dg.rangeObservers {
		if rangeAddr.Contains(addr) {
			for observerAddr := range observers {
				direct[observerAddr] = struct{}{}
			}
		}
	}

	return slices.SortedFunc(maps.Keys(direct), compareAddresses)
}

// AffectedBy returns every cell whose value transitively depends on any
// of the changed cells, sorted row-major. the changed cells themselves are
// only included when they are reached through a dependent.
func (dg *DependencyGraph) AffectedBy(changed []CellAddress) []CellAddress {
	affected := make(map[CellAddress]struct{})
	visited := make(map[CellAddress]struct{}, len(changed))
	queue := make([]CellAddress, 0, len(changed))

	for _, addr := range changed {
		if _, seen := visited[addr]; !seen {
			visited[addr] = struct{}{}
			queue = append(queue, addr)
		}
	}

	for len(queue) > 0 {
		addr := queue[0]
		queue = queue[1:]

		for _, dependentAddr := range dg.Dependents(addr) {
			affected[dependentAddr] = struct{}{}
			if _, seen := visited[dependentAddr]; !seen {
				visited[dependentAddr] = struct{}{}
				queue = append(queue, dependentAddr)
			}
		}
	}

	return slices.SortedFunc(maps.Keys(affected), compareAddresses)
}

// TopoOrder orders subset so that every cell comes after the cells of the
// subset it reads. the walk is a depth-first search with an on-stack
// marker; reaching a cell that is still on the stack returns a
// *CycleError listing the cycle in traversal order. roots and precedents
// are visited row-major, so the result is deterministic.
func (dg *DependencyGraph) TopoOrder(subset []CellAddress) ([]CellAddress, error) {
	members := slices.Clone(subset)
	slices.SortFunc(members, compareAddresses)
	members = slices.Compact(members)

	inSubset := make(map[CellAddress]struct{}, len(members))
	for _, addr := range members {
		inSubset[addr] = struct{}{}
	}

	// three states: unvisited (not in map), visiting (false), visited (true)
	state := make(map[CellAddress]bool, len(members))
	stack := make([]CellAddress, 0, len(members))
	order := make([]CellAddress, 0, len(members))

	var visit func(addr CellAddress) error
	visit = func(addr CellAddress) error {
		if completed, exists := state[addr]; exists {
			if completed {
				return nil
			}
			// currently visiting - cycle detected
			start := slices.Index(stack, addr)
			return &CycleError{Members: slices.Clone(stack[start:])}
		}

		// mark as visiting
		state[addr] = false
		stack = append(stack, addr)

		for _, precedentAddr := range dg.subsetPrecedents(addr, members, inSubset) {
			if err := visit(precedentAddr); err != nil {
				return err
			}
		}

		// mark as visited
		state[addr] = true
		stack = stack[:len(stack)-1]
		order = append(order, addr)
		return nil
	}

	for _, addr := range members {
		if err := visit(addr); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// subsetPrecedents returns the members of the subset that addr reads,
// either directly or through a range, sorted row-major
func (dg *DependencyGraph) subsetPrecedents(addr CellAddress, members []CellAddress, inSubset map[CellAddress]struct{}) []CellAddress {
	node, exists := dg.nodes[addr]
	if !exists || !node.IsDependent {
		return nil
	}

	found := make(map[CellAddress]struct{})
	for precedentAddr := range node.CellPrecedents {
		if _, ok := inSubset[precedentAddr]; ok {
			found[precedentAddr] = struct{}{}
		}
	}
	for rangeAddr := range node.RangePrecedents {
		for _, member := range members {
			if rangeAddr.Contains(member) {
				found[member] = struct{}{}
			}
		}
	}

	return slices.SortedFunc(maps.Keys(found), compareAddresses)
}

// NodeCount returns the number of nodes in the graph
func (dg *DependencyGraph) NodeCount() int {
	return len(dg.nodes)
}

// RangeObserverCount returns the number of observed ranges
func (dg *DependencyGraph) RangeObserverCount() int {
	return len(dg.rangeObservers)
}
