package graph

import (
	"github.com/albertocavalcante/go-protorecon/loader"
)

// FromModules builds a graph from resolved loader modules. isSchema
// classifies module names; a nil isSchema marks nothing as schema.
func FromModules(modules []*loader.Module, isSchema func(name string) bool) *Graph {
	simple := make([]SimpleModule, 0, len(modules))
	for _, m := range modules {
		sm := SimpleModule{
			Name:         m.Name,
			Dependencies: m.Dependencies,
			Builtin:      m.Builtin,
			Schema:       !m.Builtin && isSchema != nil && isSchema(m.Name),
		}
		if m.Exports != nil {
			sm.Exports = m.Exports.Len()
		}
		simple = append(simple, sm)
	}
	return Build(simple)
}

// SimpleModule is a loader-independent module description.
type SimpleModule struct {
	Name         string
	Dependencies []string
	Builtin      bool
	Schema       bool
	Exports      int
}

// Build constructs a graph from a module list. Later entries with the same
// name replace earlier ones.
func Build(modules []SimpleModule) *Graph {
	g := &Graph{Modules: make(map[string]*Node)}

	for _, m := range modules {
		if _, ok := g.Modules[m.Name]; !ok {
			g.order = append(g.order, m.Name)
		}
		node := &Node{
			Name:         m.Name,
			Dependencies: make([]string, len(m.Dependencies)),
			Builtin:      m.Builtin,
			Schema:       m.Schema,
			Exports:      m.Exports,
		}
		copy(node.Dependencies, m.Dependencies)
		g.Modules[m.Name] = node
	}

	// Reverse edges, in resolution order.
	for _, name := range g.order {
		for _, dep := range g.Modules[name].Dependencies {
			if depNode, ok := g.Modules[dep]; ok {
				depNode.Dependents = append(depNode.Dependents, name)
			}
		}
	}

	return g
}
