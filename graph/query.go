package graph

import (
	"fmt"
)

// Get returns the node for a module, or nil if not found.
func (g *Graph) Get(name string) *Node {
	return g.Modules[name]
}

// Contains returns true if the graph contains the given module.
func (g *Graph) Contains(name string) bool {
	_, ok := g.Modules[name]
	return ok
}

// Names returns module names in resolution order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// DirectDeps returns the direct dependencies of a module.
func (g *Graph) DirectDeps(name string) []string {
	if node := g.Modules[name]; node != nil {
		return node.Dependencies
	}
	return nil
}

// DirectDependents returns modules that directly depend on the given module.
func (g *Graph) DirectDependents(name string) []string {
	if node := g.Modules[name]; node != nil {
		return node.Dependents
	}
	return nil
}

// TransitiveDeps returns all transitive dependencies of a module in
// breadth-first order.
func (g *Graph) TransitiveDeps(name string) []string {
	return g.bfs(name, func(n *Node) []string { return n.Dependencies })
}

// TransitiveDependents returns all modules that transitively depend on the
// given module, closest dependents first.
func (g *Graph) TransitiveDependents(name string) []string {
	return g.bfs(name, func(n *Node) []string { return n.Dependents })
}

func (g *Graph) bfs(start string, next func(*Node) []string) []string {
	result := make([]string, 0)
	visited := map[string]bool{start: true}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.Modules[current]
		if node == nil {
			continue
		}
		for _, dep := range next(node) {
			if !visited[dep] {
				visited[dep] = true
				result = append(result, dep)
				queue = append(queue, dep)
			}
		}
	}

	return result
}

// Path finds the shortest dependency path from one module to another.
// Returns nil if no path exists.
func (g *Graph) Path(from, to string) Chain {
	if from == to {
		return Chain{from}
	}

	type queueItem struct {
		name string
		path Chain
	}

	visited := map[string]bool{from: true}
	queue := []queueItem{{name: from, path: Chain{from}}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.Modules[current.name]
		if node == nil {
			continue
		}

		for _, dep := range node.Dependencies {
			if dep == to {
				return append(current.path, dep)
			}
			if !visited[dep] {
				visited[dep] = true
				newPath := make(Chain, len(current.path)+1)
				copy(newPath, current.path)
				newPath[len(current.path)] = dep
				queue = append(queue, queueItem{name: dep, path: newPath})
			}
		}
	}

	return nil
}

// AllPaths finds all dependency paths from one module to another.
// This can be expensive for large graphs with many paths.
func (g *Graph) AllPaths(from, to string) []Chain {
	var result []Chain
	g.findAllPaths(from, to, Chain{from}, make(map[string]bool), &result)
	return result
}

func (g *Graph) findAllPaths(current, target string, path Chain, visited map[string]bool, result *[]Chain) {
	if current == target {
		pathCopy := make(Chain, len(path))
		copy(pathCopy, path)
		*result = append(*result, pathCopy)
		return
	}

	visited[current] = true
	defer func() { visited[current] = false }()

	node := g.Modules[current]
	if node == nil {
		return
	}

	for _, dep := range node.Dependencies {
		if !visited[dep] {
			g.findAllPaths(dep, target, append(path, dep), visited, result)
		}
	}
}

// WhyIncluded returns every chain from a root module down to name.
func (g *Graph) WhyIncluded(name string) ([]Chain, error) {
	if !g.Contains(name) {
		return nil, fmt.Errorf("module %q not found in graph", name)
	}
	var chains []Chain
	for _, root := range g.Roots() {
		chains = append(chains, g.AllPaths(root, name)...)
	}
	return chains, nil
}

// Roots returns modules nothing depends on, in resolution order.
func (g *Graph) Roots() []string {
	var roots []string
	for _, name := range g.order {
		if len(g.Modules[name].Dependents) == 0 {
			roots = append(roots, name)
		}
	}
	return roots
}

// Leaves returns modules without dependencies, in resolution order.
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, name := range g.order {
		if len(g.Modules[name].Dependencies) == 0 {
			leaves = append(leaves, name)
		}
	}
	return leaves
}

// Missing returns dependency names that have no node, in order of first
// mention. These are dependencies the loader skipped as ignored.
func (g *Graph) Missing() []string {
	var missing []string
	seen := make(map[string]bool)
	for _, name := range g.order {
		for _, dep := range g.Modules[name].Dependencies {
			if !g.Contains(dep) && !seen[dep] {
				seen[dep] = true
				missing = append(missing, dep)
			}
		}
	}
	return missing
}

// Filter returns the subgraph of nodes keep accepts. Edges to dropped
// nodes are removed.
func (g *Graph) Filter(keep func(*Node) bool) *Graph {
	var modules []SimpleModule
	for _, name := range g.order {
		node := g.Modules[name]
		if !keep(node) {
			continue
		}
		var deps []string
		for _, dep := range node.Dependencies {
			if d := g.Modules[dep]; d != nil && keep(d) {
				deps = append(deps, dep)
			}
		}
		modules = append(modules, SimpleModule{
			Name:         name,
			Dependencies: deps,
			Builtin:      node.Builtin,
			Schema:       node.Schema,
			Exports:      node.Exports,
		})
	}
	return Build(modules)
}

// Stats returns statistics about the graph.
func (g *Graph) Stats() Stats {
	stats := Stats{
		TotalModules: len(g.Modules),
		Missing:      len(g.Missing()),
	}
	for _, node := range g.Modules {
		if node.Schema {
			stats.SchemaModules++
		}
		if node.Builtin {
			stats.BuiltinModules++
		}
		stats.Edges += len(node.Dependencies)
	}
	stats.MaxDepth = g.calculateMaxDepth()
	return stats
}

func (g *Graph) calculateMaxDepth() int {
	depths := make(map[string]int)
	onPath := make(map[string]bool)
	var maxDepth int

	var dfs func(name string, depth int)
	dfs = func(name string, depth int) {
		// A node already on the current path closes a cycle.
		if onPath[name] {
			return
		}
		if existingDepth, ok := depths[name]; ok && existingDepth >= depth {
			return
		}
		node := g.Modules[name]
		if node == nil {
			return
		}
		depths[name] = depth
		if depth > maxDepth {
			maxDepth = depth
		}

		onPath[name] = true
		for _, dep := range node.Dependencies {
			dfs(dep, depth+1)
		}
		delete(onPath, name)
	}

	for _, root := range g.Roots() {
		dfs(root, 0)
	}
	return maxDepth
}

// HasCycles returns true if the graph contains cycles.
func (g *Graph) HasCycles() bool {
	return len(g.FindCycles()) > 0
}

// FindCycles returns all cycles in the graph, each starting at the first
// module of the cycle reached in resolution order.
func (g *Graph) FindCycles() []Chain {
	var cycles []Chain
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make(Chain, 0)

	var findCycles func(name string)
	findCycles = func(name string) {
		visited[name] = true
		recStack[name] = true
		path = append(path, name)

		if node := g.Modules[name]; node != nil {
			for _, dep := range node.Dependencies {
				if !g.Contains(dep) {
					continue
				}
				if !visited[dep] {
					findCycles(dep)
				} else if recStack[dep] {
					for i, k := range path {
						if k == dep {
							cycle := make(Chain, len(path)-i)
							copy(cycle, path[i:])
							cycles = append(cycles, cycle)
							break
						}
					}
				}
			}
		}

		path = path[:len(path)-1]
		recStack[name] = false
	}

	for _, name := range g.order {
		if !visited[name] {
			findCycles(name)
		}
	}

	return cycles
}
