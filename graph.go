package formula

// dependencyNode is one cell in the dependency graph
type dependencyNode struct {
	addr Address

	// cell-to-cell edges, in insertion order without duplicates
	precedents []Address // cells this cell reads
	dependents []Address // cells that read this cell

	precedentSet map[Address]struct{}
	dependentSet map[Address]struct{}
}

// DependencyGraph records which cells read which. An edge from -> to means
// the formula at from reads to. Node and edge insertion order is kept so
// that TopologicalOrder is deterministic for a given sheet.
type DependencyGraph struct {
	nodes map[Address]*dependencyNode
	order []Address // node insertion order
}

// NewDependencyGraph creates an empty dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[Address]*dependencyNode),
	}
}

// BuildDependencyGraph scans every formula cell of sheet row-major and
// records the references of each. Every formula cell becomes a node even
// when it reads nothing or its text does not lex.
func BuildDependencyGraph(sheet Sheet) *DependencyGraph {
	dg := NewDependencyGraph()
	for _, addr := range formulaCells(sheet) {
		cell, _ := sheet.GetCell(addr.Row, addr.Col)
		dg.AddNode(addr)
		refs, err := ExtractReferences(cell.Formula)
		if err != nil {
			// evaluation reports the lex failure for this cell
			continue
		}
		for _, ref := range refs {
			dg.AddEdge(addr, ref)
		}
	}
	return dg
}

// formulaCells lists formula-bearing cells row-major, asking the sheet
// directly when it can enumerate them.
func formulaCells(sheet Sheet) []Address {
	if lister, ok := sheet.(FormulaLister); ok {
		return lister.FormulaCells()
	}
	var out []Address
	rows, cols := sheet.RowCount(), sheet.ColCount()
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			if cell, ok := sheet.GetCell(row, col); ok && cell.HasFormula() {
				out = append(out, Address{Row: row, Col: col})
			}
		}
	}
	return out
}

// getOrCreateNode gets an existing node or creates a new one
func (dg *DependencyGraph) getOrCreateNode(addr Address) *dependencyNode {
	if node, exists := dg.nodes[addr]; exists {
		return node
	}
	node := &dependencyNode{
		addr:         addr,
		precedentSet: make(map[Address]struct{}),
		dependentSet: make(map[Address]struct{}),
	}
	dg.nodes[addr] = node
	dg.order = append(dg.order, addr)
	return node
}

// AddNode adds addr with no edges. Adding an existing node is a no-op.
func (dg *DependencyGraph) AddNode(addr Address) {
	dg.getOrCreateNode(addr)
}

// AddEdge records that the formula at from reads to. Both ends become
// nodes; a repeated edge is ignored.
func (dg *DependencyGraph) AddEdge(from, to Address) {
	fromNode := dg.getOrCreateNode(from)
	toNode := dg.getOrCreateNode(to)
	if _, exists := fromNode.precedentSet[to]; exists {
		return
	}
	fromNode.precedentSet[to] = struct{}{}
	fromNode.precedents = append(fromNode.precedents, to)
	toNode.dependentSet[from] = struct{}{}
	toNode.dependents = append(toNode.dependents, from)
}

// HasNode reports whether addr is in the graph
func (dg *DependencyGraph) HasNode(addr Address) bool {
	_, exists := dg.nodes[addr]
	return exists
}

// Nodes returns every node in insertion order
func (dg *DependencyGraph) Nodes() []Address {
	return append([]Address(nil), dg.order...)
}

// NodeCount returns the number of nodes
func (dg *DependencyGraph) NodeCount() int {
	return len(dg.order)
}

// Dependencies returns the cells addr reads, in the order first seen
func (dg *DependencyGraph) Dependencies(addr Address) []Address {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}
	return append([]Address(nil), node.precedents...)
}

// Dependents returns the cells that read addr directly
func (dg *DependencyGraph) Dependents(addr Address) []Address {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}
	return append([]Address(nil), node.dependents...)
}

// AllDependents returns every cell affected by addr (transitive closure),
// depth first
func (dg *DependencyGraph) AllDependents(addr Address) []Address {
	visited := map[Address]struct{}{addr: {}}
	var result []Address
	dg.collectDependents(addr, visited, &result)
	return result
}

// collectDependents recursively collects all dependents
func (dg *DependencyGraph) collectDependents(addr Address, visited map[Address]struct{}, result *[]Address) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	for _, dependentAddr := range node.dependents {
		if _, alreadyVisited := visited[dependentAddr]; !alreadyVisited {
			visited[dependentAddr] = struct{}{}
			*result = append(*result, dependentAddr)
			dg.collectDependents(dependentAddr, visited, result)
		}
	}
}

// TopologicalOrder returns every node such that each cell comes after all
// cells it reads. A cycle returns a *CircularReferenceError and no order.
func (dg *DependencyGraph) TopologicalOrder() ([]Address, error) {
	// three states: unvisited (not in map), visiting (false), visited (true)
	state := make(map[Address]bool, len(dg.order))
	postOrder := make([]Address, 0, len(dg.order))
	var stack []Address
	var cycle *CircularReferenceError

	var visit func(addr Address) bool
	visit = func(addr Address) bool {
		if completed, exists := state[addr]; exists {
			if !completed {
				// currently visiting - cycle detected
				cycle = newCycleError(stack, addr)
				return true
			}
			return false
		}

		state[addr] = false
		stack = append(stack, addr)
		// visit all dependents first so they land earlier in the post-order
		dependents := dg.nodes[addr].dependents
		for i := len(dependents) - 1; i >= 0; i-- {
			if visit(dependents[i]) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		state[addr] = true
		postOrder = append(postOrder, addr)
		return false
	}

	// roots and dependents are taken in reverse insertion order, so after
	// the final reversal unrelated cells keep their insertion order
	for i := len(dg.order) - 1; i >= 0; i-- {
		addr := dg.order[i]
		if _, visited := state[addr]; !visited {
			if visit(addr) {
				return nil, cycle
			}
		}
	}

	order := make([]Address, len(postOrder))
	for i, addr := range postOrder {
		order[len(postOrder)-1-i] = addr
	}
	return order, nil
}

// newCycleError builds the loop from the DFS stack. The stack runs along
// dependent edges, so it is reversed to read in the direction of
// references: each cell is followed by a cell it reads.
func newCycleError(stack []Address, at Address) *CircularReferenceError {
	start := 0
	for i, addr := range stack {
		if addr == at {
			start = i
			break
		}
	}
	loop := stack[start:]
	cycle := make([]Address, 0, len(loop)+1)
	cycle = append(cycle, at)
	for i := len(loop) - 1; i > 0; i-- {
		cycle = append(cycle, loop[i])
	}
	cycle = append(cycle, at)
	return &CircularReferenceError{At: at, Cycle: cycle}
}

// HasCycle checks if there are circular dependencies
func (dg *DependencyGraph) HasCycle() bool {
	_, err := dg.TopologicalOrder()
	return err != nil
}
