package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/docwise-ai/docgraph/pkg/common"
)

// Export is the serialized graph handed to external visualization
// tooling: two ordered collections with all node and edge attributes.
type Export struct {
	Nodes []common.Node `json:"nodes"`
	Edges []common.Edge `json:"edges"`
}

// Export snapshots the graph in creation order.
func (s *Store) Export() Export {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Export{
		Nodes: make([]common.Node, 0, len(s.nodes)),
		Edges: make([]common.Edge, 0, len(s.edgeOrder)),
	}
	for _, node := range s.nodes {
		out.Nodes = append(out.Nodes, *node)
	}
	for _, key := range s.edgeOrder {
		out.Edges = append(out.Edges, *s.edges[key])
	}
	return out
}

// LoadExport rebuilds a Store from a serialized export and validates
// referential integrity. Edges referencing unknown nodes, self-loops
// and duplicate triples fail the load.
func LoadExport(data []byte, cfg Config) (*Store, error) {
	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse graph export: %w", err)
	}

	s := NewStore(cfg)
	for i := range export.Nodes {
		node := export.Nodes[i]
		if node.ID == "" {
			return nil, &common.GraphConsistencyError{Reason: "node with empty id"}
		}
		if _, exists := s.byID[node.ID]; exists {
			return nil, &common.GraphConsistencyError{
				Reason: fmt.Sprintf("duplicate node id %s", node.ID),
			}
		}
		copied := node
		s.nodes = append(s.nodes, &copied)
		s.byID[node.ID] = &copied
		s.lookup[normalizeName(node.CanonicalName)] = node.ID
		for _, alias := range node.Aliases {
			if _, ok := s.lookup[normalizeName(alias)]; !ok {
				s.lookup[normalizeName(alias)] = node.ID
			}
		}
	}
	for i := range export.Edges {
		edge := export.Edges[i]
		if _, ok := s.byID[edge.SourceNodeID]; !ok {
			return nil, &common.GraphConsistencyError{
				Reason: fmt.Sprintf("edge references unknown node %s", edge.SourceNodeID),
			}
		}
		if _, ok := s.byID[edge.TargetNodeID]; !ok {
			return nil, &common.GraphConsistencyError{
				Reason: fmt.Sprintf("edge references unknown node %s", edge.TargetNodeID),
			}
		}
		if edge.SourceNodeID == edge.TargetNodeID {
			return nil, &common.GraphConsistencyError{
				Reason: fmt.Sprintf("self-loop on node %s", edge.SourceNodeID),
			}
		}
		key := edgeKey{source: edge.SourceNodeID, target: edge.TargetNodeID, relType: edge.Type}
		if _, exists := s.edges[key]; exists {
			return nil, &common.GraphConsistencyError{
				Reason: fmt.Sprintf("duplicate edge %s -> %s (%s)", edge.SourceNodeID, edge.TargetNodeID, edge.Type),
			}
		}
		copied := edge
		s.edges[key] = &copied
		s.edgeOrder = append(s.edgeOrder, key)
	}
	return s, nil
}

// Stats summarizes graph size for logging and the interactive prompt.
type Stats struct {
	Nodes       int                       `json:"nodes"`
	Edges       int                       `json:"edges"`
	NodesByType map[common.EntityType]int `json:"nodes_by_type"`
}

// Stats counts nodes and edges under the store lock.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Nodes:       len(s.nodes),
		Edges:       len(s.edgeOrder),
		NodesByType: map[common.EntityType]int{},
	}
	for _, node := range s.nodes {
		st.NodesByType[node.Type]++
	}
	return st
}

// Summary renders a short human-readable description of the export.
func (e Export) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d nodes, %d edges\n", len(e.Nodes), len(e.Edges))

	byType := map[common.EntityType]int{}
	for _, n := range e.Nodes {
		byType[n.Type]++
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(&b, "  %s: %d\n", t, byType[common.EntityType(t)])
	}
	return b.String()
}
