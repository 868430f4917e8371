// Package graph builds the knowledge graph: it canonicalizes entity
// mentions into nodes and folds relation candidates into edges while
// keeping the graph invariants. All writes are serialized behind one
// mutex because canonicalization decisions are order-sensitive.
package graph

import (
	"fmt"
	"sync"

	"github.com/docwise-ai/docgraph/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Config tunes entity resolution.
type Config struct {
	// ResolutionDistance is the allowed edit distance per 8 runes of
	// normalized name when merging a mention into an existing node of
	// the same type. Zero disables fuzzy matching entirely.
	ResolutionDistance int
}

// Diagnostics counts non-fatal events during graph building. Noisy
// input (blank mentions, unresolvable endpoints, self-loops) is skipped
// and counted; invariant violations surface as GraphConsistencyError
// instead.
type Diagnostics struct {
	MentionsResolved  int `json:"mentions_resolved"`
	NodesCreated      int `json:"nodes_created"`
	AliasesAdded      int `json:"aliases_added"`
	DistanceMerges    int `json:"distance_merges"`
	MentionsSkipped   int `json:"mentions_skipped"`
	EdgesCreated      int `json:"edges_created"`
	EdgesFolded       int `json:"edges_folded"`
	SelfLoopsRejected int `json:"self_loops_rejected"`
	RelationsSkipped  int `json:"relations_skipped"`
}

type edgeKey struct {
	source  string
	target  string
	relType common.RelationType
}

// Store is the mutable knowledge graph. Safe for concurrent use; every
// mutation takes the store lock so concurrent merges of the same new
// name cannot create two nodes for one entity.
type Store struct {
	mu sync.Mutex

	nodes  []*common.Node          // creation order, used for tie-breaks
	byID   map[string]*common.Node
	lookup map[string]string // normalized canonical name or alias -> node id

	edges     map[edgeKey]*common.Edge
	edgeOrder []edgeKey

	diag Diagnostics
	cfg  Config
}

// NewStore creates an empty graph store.
func NewStore(cfg Config) *Store {
	return &Store{
		byID:   map[string]*common.Node{},
		lookup: map[string]string{},
		edges:  map[edgeKey]*common.Edge{},
		cfg:    cfg,
	}
}

// Observe resolves a batch of mentions into nodes and folds the relation
// candidates between them into edges. One lock acquisition covers the
// whole batch so a chunk's mentions and relations land atomically.
func (s *Store) Observe(mentions []common.Mention, relations []common.RelationCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range mentions {
		if _, err := s.resolveLocked(m); err != nil {
			return err
		}
	}
	for _, rel := range relations {
		if err := s.foldLocked(rel); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) resolveLocked(m common.Mention) (*common.Node, error) {
	norm := normalizeName(m.Text)
	if norm == "" {
		s.diag.MentionsSkipped++
		return nil, nil
	}

	if id, ok := s.lookup[norm]; ok {
		node := s.byID[id]
		s.mergeLocked(node, m, norm)
		return node, nil
	}

	if node := s.closestNodeLocked(norm, m.Type); node != nil {
		s.diag.DistanceMerges++
		s.mergeLocked(node, m, norm)
		s.lookup[norm] = node.ID
		return node, nil
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate node ID: %w", err)
	}
	if _, exists := s.byID[id]; exists {
		return nil, &common.GraphConsistencyError{
			Reason: fmt.Sprintf("duplicate node id %s", id),
		}
	}

	node := &common.Node{
		ID:               id,
		CanonicalName:    canonicalForm(m.Text),
		Type:             m.Type,
		Aliases:          []string{},
		EvidenceChunkIDs: []string{},
	}
	addToSet(&node.EvidenceChunkIDs, m.ChunkID)

	s.nodes = append(s.nodes, node)
	s.byID[id] = node
	s.lookup[norm] = id
	s.diag.NodesCreated++
	s.diag.MentionsResolved++
	return node, nil
}

// mergeLocked adds a mention's evidence to an existing node and records
// a new surface form as an alias. The alias set only grows.
func (s *Store) mergeLocked(node *common.Node, m common.Mention, norm string) {
	addToSet(&node.EvidenceChunkIDs, m.ChunkID)

	surface := canonicalForm(m.Text)
	if surface != node.CanonicalName && addToSet(&node.Aliases, surface) {
		s.diag.AliasesAdded++
	}
	if _, ok := s.lookup[norm]; !ok {
		s.lookup[norm] = node.ID
	}
	s.diag.MentionsResolved++
}

func (s *Store) foldLocked(rel common.RelationCandidate) error {
	// Extractors clamp confidence to [0,1]; a value outside that range
	// means a broken producer, not noisy input.
	if rel.Confidence < 0 || rel.Confidence > 1 {
		return &common.GraphConsistencyError{
			Reason: fmt.Sprintf("relation confidence %v out of range", rel.Confidence),
		}
	}

	src, err := s.resolveLocked(rel.Source)
	if err != nil {
		return err
	}
	tgt, err := s.resolveLocked(rel.Target)
	if err != nil {
		return err
	}
	if src == nil || tgt == nil {
		s.diag.RelationsSkipped++
		return nil
	}
	if src.ID == tgt.ID {
		s.diag.SelfLoopsRejected++
		return nil
	}

	key := edgeKey{source: src.ID, target: tgt.ID, relType: rel.Type}
	if rel.Type.Symmetric() && key.source > key.target {
		key.source, key.target = key.target, key.source
	}

	if existing, ok := s.edges[key]; ok {
		if rel.Confidence > existing.Confidence {
			existing.Confidence = rel.Confidence
		}
		addToSet(&existing.EvidenceChunkIDs, rel.ChunkID)
		s.diag.EdgesFolded++
		return nil
	}

	edge := &common.Edge{
		SourceNodeID:     key.source,
		TargetNodeID:     key.target,
		Type:             rel.Type,
		Confidence:       rel.Confidence,
		EvidenceChunkIDs: []string{},
	}
	addToSet(&edge.EvidenceChunkIDs, rel.ChunkID)
	s.edges[key] = edge
	s.edgeOrder = append(s.edgeOrder, key)
	s.diag.EdgesCreated++
	return nil
}

// closestNodeLocked finds the best same-type node within the edit
// distance budget, preferring more evidence and then earlier creation.
func (s *Store) closestNodeLocked(norm string, typ common.EntityType) *common.Node {
	if s.cfg.ResolutionDistance <= 0 {
		return nil
	}
	budget := distanceBudget(norm, s.cfg.ResolutionDistance)

	var (
		best     *common.Node
		bestDist = budget + 1
	)
	for _, node := range s.nodes {
		if node.Type != typ {
			continue
		}
		dist := nodeDistance(node, norm)
		if dist > budget || dist > bestDist {
			continue
		}
		if dist < bestDist {
			best, bestDist = node, dist
			continue
		}
		// equal distance: more evidence wins, then creation order,
		// which the nodes slice already encodes
		if best != nil && len(node.EvidenceChunkIDs) > len(best.EvidenceChunkIDs) {
			best = node
		}
	}
	return best
}

func nodeDistance(node *common.Node, norm string) int {
	dist := levenshtein(norm, normalizeName(node.CanonicalName))
	for _, alias := range node.Aliases {
		if d := levenshtein(norm, normalizeName(alias)); d < dist {
			dist = d
		}
	}
	return dist
}

// FindNode looks up a node by exact normalized canonical name or alias.
func (s *Store) FindNode(name string) (common.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.lookup[normalizeName(name)]
	if !ok {
		return common.Node{}, false
	}
	return *s.byID[id], true
}

// NeighborhoodEvidence returns the evidence chunk ids of the node, its
// incident edges, and its 1-hop neighbors. Directed edge types are
// traversed source to target only; symmetric types both ways.
func (s *Store) NeighborhoodEvidence(nodeID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.byID[nodeID]
	if !ok {
		return nil
	}

	var out []string
	for _, id := range node.EvidenceChunkIDs {
		addToSet(&out, id)
	}
	for _, key := range s.edgeOrder {
		edge := s.edges[key]
		var neighbor string
		switch {
		case edge.SourceNodeID == nodeID:
			neighbor = edge.TargetNodeID
		case edge.TargetNodeID == nodeID && edge.Type.Symmetric():
			neighbor = edge.SourceNodeID
		default:
			continue
		}
		for _, id := range edge.EvidenceChunkIDs {
			addToSet(&out, id)
		}
		if n, ok := s.byID[neighbor]; ok {
			for _, id := range n.EvidenceChunkIDs {
				addToSet(&out, id)
			}
		}
	}
	return out
}

// Diagnostics returns a snapshot of the non-fatal event counters.
func (s *Store) Diagnostics() Diagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diag
}
