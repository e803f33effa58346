// Package graph provides a dependency graph of loaded modules and query
// capabilities over it.
//
// # Building a Graph
//
// A Graph is built from the modules a loader resolved:
//
//	g := graph.FromModules(l.Modules(), d.IsSchemaModule)
//
// # Querying the Graph
//
//	deps := g.TransitiveDeps("WAWebProtobufsE2E.pb")
//	chains, _ := g.WhyIncluded("WACommon.pb")
//	path := g.Path(from, to)
//	cycles := g.FindCycles()
//
// Dependencies that were skipped during loading, such as ignored modules,
// stay on their dependents' edge lists and are reported by Missing.
//
// # Output Formats
//
//	jsonBytes, _ := g.ToJSON()
//	dotString := g.ToDOT()
//	textString := g.ToText()
package graph
