package graph

import "strings"

// Graph is the dependency graph of the modules a loader resolved.
// It supports traversal in both directions.
type Graph struct {
	// Modules contains all nodes keyed by canonical module name.
	Modules map[string]*Node

	// order is the resolution order, used wherever output must be stable.
	order []string
}

// Node represents a module in the dependency graph.
type Node struct {
	Name string

	// Dependencies are the declared dependencies after renaming, including
	// ones that never resolved (see Graph.Missing).
	Dependencies []string

	// Dependents are modules that directly depend on this one.
	Dependents []string

	// Builtin is true for modules the loader provides itself.
	Builtin bool

	// Schema is true for modules that carry protobuf schema definitions.
	Schema bool

	// Exports is the number of exported symbols.
	Exports int
}

// Chain is a dependency path, first element depending on the second and so on.
type Chain []string

// String joins the chain with arrows.
func (c Chain) String() string {
	return strings.Join(c, " -> ")
}

// Stats summarizes a graph.
type Stats struct {
	TotalModules   int
	SchemaModules  int
	BuiltinModules int
	Edges          int

	// Missing counts distinct dependency names with no node.
	Missing int

	// MaxDepth is the longest dependency chain below any root.
	MaxDepth int
}
