package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const separatorWidth = 60 // Width of separator lines in text output

// JSONGraph is the JSON form of a graph: one dependency tree per root.
type JSONGraph struct {
	Roots   []JSONNode `json:"roots"`
	Missing []string   `json:"missing,omitempty"`
	Cycles  [][]string `json:"cycles,omitempty"`
}

// JSONNode is one module in a JSON dependency tree. A module already
// printed elsewhere in the tree is emitted once more as Unexpanded.
type JSONNode struct {
	Name         string     `json:"name"`
	Schema       bool       `json:"schema,omitempty"`
	Builtin      bool       `json:"builtin,omitempty"`
	Missing      bool       `json:"missing,omitempty"`
	Unexpanded   bool       `json:"unexpanded,omitempty"`
	Dependencies []JSONNode `json:"dependencies,omitempty"`
}

// ToJSON outputs the graph as indented JSON.
func (g *Graph) ToJSON() ([]byte, error) {
	out := JSONGraph{Missing: g.Missing()}
	for _, c := range g.FindCycles() {
		out.Cycles = append(out.Cycles, c)
	}
	visited := make(map[string]bool)
	for _, root := range g.Roots() {
		visited[root] = true
		out.Roots = append(out.Roots, g.jsonNode(root, visited))
	}
	return json.MarshalIndent(out, "", "  ")
}

func (g *Graph) jsonNode(name string, visited map[string]bool) JSONNode {
	node := g.Modules[name]
	if node == nil {
		return JSONNode{Name: name, Missing: true}
	}
	jn := JSONNode{Name: name, Schema: node.Schema, Builtin: node.Builtin}
	for _, dep := range node.Dependencies {
		if visited[dep] {
			jn.Dependencies = append(jn.Dependencies, JSONNode{Name: dep, Unexpanded: true})
			continue
		}
		visited[dep] = true
		jn.Dependencies = append(jn.Dependencies, g.jsonNode(dep, visited))
	}
	return jn
}

// ToDOT outputs the graph in Graphviz DOT format.
func (g *Graph) ToDOT() string {
	var buf bytes.Buffer

	buf.WriteString("digraph modules {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box];\n\n")

	for _, name := range g.order {
		node := g.Modules[name]
		var attrs []string
		if node.Schema {
			attrs = append(attrs, "style=bold")
		}
		if node.Builtin {
			attrs = append(attrs, "style=dotted")
		}
		if len(attrs) == 0 {
			buf.WriteString(fmt.Sprintf("  %q;\n", name))
		} else {
			buf.WriteString(fmt.Sprintf("  %q [%s];\n", name, strings.Join(attrs, ", ")))
		}
	}
	for _, name := range g.Missing() {
		buf.WriteString(fmt.Sprintf("  %q [style=dashed];\n", name))
	}

	buf.WriteString("\n")

	for _, name := range g.order {
		for _, dep := range g.Modules[name].Dependencies {
			buf.WriteString(fmt.Sprintf("  %q -> %q;\n", name, dep))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// ToText outputs a human-readable tree per root module.
func (g *Graph) ToText() string {
	var buf bytes.Buffer

	buf.WriteString("Module Graph\n")
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

	stats := g.Stats()
	buf.WriteString(fmt.Sprintf("Total modules: %d\n", stats.TotalModules))
	buf.WriteString(fmt.Sprintf("Schema modules: %d\n", stats.SchemaModules))
	buf.WriteString(fmt.Sprintf("Edges: %d\n", stats.Edges))
	buf.WriteString(fmt.Sprintf("Max depth: %d\n", stats.MaxDepth))
	if stats.Missing > 0 {
		buf.WriteString(fmt.Sprintf("Missing dependencies: %d\n", stats.Missing))
	}
	buf.WriteString("\n")

	buf.WriteString("Dependency Tree:\n")
	visited := make(map[string]bool)
	for _, root := range g.Roots() {
		g.printTree(&buf, root, "", true, true, visited)
	}

	return buf.String()
}

func (g *Graph) printTree(buf *bytes.Buffer, name, prefix string, isRoot, isLast bool, visited map[string]bool) {
	if isRoot {
		buf.WriteString(name)
	} else {
		connector := "├── "
		if isLast {
			connector = "└── "
		}
		buf.WriteString(prefix + connector + name)
	}

	node := g.Modules[name]
	switch {
	case node == nil:
		buf.WriteString(" (missing)")
	case node.Builtin:
		buf.WriteString(" (builtin)")
	}

	if visited[name] {
		buf.WriteString(" (circular)\n")
		return
	}
	buf.WriteString("\n")

	visited[name] = true
	defer func() { visited[name] = false }()

	if node == nil {
		return
	}

	childPrefix := prefix
	if !isRoot {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}
	for i, dep := range node.Dependencies {
		g.printTree(buf, dep, childPrefix, false, i == len(node.Dependencies)-1, visited)
	}
}

// ModuleInfo represents a module in the flat list output.
type ModuleInfo struct {
	Name       string   `json:"name"`
	Schema     bool     `json:"schema,omitempty"`
	Builtin    bool     `json:"builtin,omitempty"`
	Exports    int      `json:"exports"`
	RequiredBy []string `json:"required_by,omitempty"`
}

// ToModuleList outputs a flat list of modules sorted by name.
func (g *Graph) ToModuleList() []ModuleInfo {
	modules := make([]ModuleInfo, 0, len(g.Modules))
	for _, node := range g.Modules {
		requiredBy := make([]string, len(node.Dependents))
		copy(requiredBy, node.Dependents)
		modules = append(modules, ModuleInfo{
			Name:       node.Name,
			Schema:     node.Schema,
			Builtin:    node.Builtin,
			Exports:    node.Exports,
			RequiredBy: requiredBy,
		})
	}
	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Name < modules[j].Name
	})
	return modules
}
