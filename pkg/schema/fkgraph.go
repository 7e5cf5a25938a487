package schema

import "sort"

// FKGraph indexes every relationship in both directions so the schema
// analyzer can expand a candidate table set along foreign keys without
// re-scanning every table's Relationships slice (spec.md §3.2, §4.3).
type FKGraph struct {
	// outbound[t] is the set of tables t directly references.
	outbound map[string]map[string]struct{}
	// inbound[t] is the set of tables that directly reference t.
	inbound map[string]map[string]struct{}
}

// BuildFKGraph walks every table's relationships once and builds both
// the outbound and inbound multimaps.
func BuildFKGraph(s *Schema) *FKGraph {
	g := &FKGraph{
		outbound: make(map[string]map[string]struct{}),
		inbound:  make(map[string]map[string]struct{}),
	}
	for _, name := range s.TableNames {
		for _, rel := range s.TableByName[name].Relationships {
			g.addEdge(name, rel.ReferencedTable)
		}
	}
	return g
}

func (g *FKGraph) addEdge(from, to string) {
	if g.outbound[from] == nil {
		g.outbound[from] = make(map[string]struct{})
	}
	g.outbound[from][to] = struct{}{}

	if g.inbound[to] == nil {
		g.inbound[to] = make(map[string]struct{})
	}
	g.inbound[to][from] = struct{}{}
}

// Outbound returns the sorted list of tables that table directly references.
func (g *FKGraph) Outbound(table string) []string {
	return sortedSet(g.outbound[table])
}

// Inbound returns the sorted list of tables that directly reference table.
func (g *FKGraph) Inbound(table string) []string {
	return sortedSet(g.inbound[table])
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortStrings(s []string) {
	sort.Strings(s)
}
