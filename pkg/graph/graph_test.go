package graph

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/docwise-ai/docgraph/pkg/common"
)

func mention(text string, typ common.EntityType, chunkID string) common.Mention {
	return common.Mention{Text: text, Type: typ, ChunkID: chunkID}
}

func relation(src, tgt common.Mention, typ common.RelationType, conf float64, chunkID string) common.RelationCandidate {
	return common.RelationCandidate{Source: src, Target: tgt, Type: typ, Confidence: conf, ChunkID: chunkID}
}

func TestResolveExactAndAlias(t *testing.T) {
	s := NewStore(Config{ResolutionDistance: 1})

	m1 := mention("Machine Learning", common.EntityTypeTechnology, "c1")
	m2 := mention("machine learning", common.EntityTypeTechnology, "c2")
	m3 := mention("machine-learning", common.EntityTypeTechnology, "c3")

	if err := s.Observe([]common.Mention{m1, m2, m3}, nil); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	st := s.Stats()
	if st.Nodes != 1 {
		t.Fatalf("expected 1 node, got %d", st.Nodes)
	}

	node, ok := s.FindNode("MACHINE LEARNING")
	if !ok {
		t.Fatal("lookup by normalized name failed")
	}
	if node.CanonicalName != "Machine Learning" {
		t.Errorf("canonical name changed to %q", node.CanonicalName)
	}
	if len(node.EvidenceChunkIDs) != 3 {
		t.Errorf("evidence = %v, want 3 chunks", node.EvidenceChunkIDs)
	}
}

func TestResolveEditDistanceSameTypeOnly(t *testing.T) {
	s := NewStore(Config{ResolutionDistance: 1})

	if err := s.Observe([]common.Mention{
		mention("PostgreSQL", common.EntityTypeTechnology, "c1"),
		mention("PostgreSOL", common.EntityTypeTechnology, "c2"), // typo merges
		mention("PostgreSQI", common.EntityTypeConcept, "c3"),    // other type stays apart
	}, nil); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	if st := s.Stats(); st.Nodes != 2 {
		t.Fatalf("expected 2 nodes, got %d", st.Nodes)
	}
}

func TestAliasSetMonotonic(t *testing.T) {
	s := NewStore(Config{})

	if err := s.Observe([]common.Mention{
		mention("Neural Networks", common.EntityTypeTechnology, "c1"),
		mention("neural networks", common.EntityTypeTechnology, "c2"),
	}, nil); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	node, _ := s.FindNode("neural networks")
	before := len(node.Aliases)

	if err := s.Observe([]common.Mention{
		mention("NEURAL NETWORKS", common.EntityTypeTechnology, "c3"),
	}, nil); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	node, _ = s.FindNode("neural networks")
	if len(node.Aliases) < before {
		t.Errorf("alias set shrank from %d to %d", before, len(node.Aliases))
	}
}

func TestEdgeFolding(t *testing.T) {
	s := NewStore(Config{})

	ml := mention("machine learning", common.EntityTypeTechnology, "c1")
	ai := mention("artificial intelligence", common.EntityTypeTechnology, "c1")

	rels := []common.RelationCandidate{
		relation(ml, ai, common.RelationPartOf, 0.6, "c1"),
		relation(ml, ai, common.RelationPartOf, 0.9, "c2"),
		relation(ml, ai, common.RelationPartOf, 0.4, "c3"),
	}
	if err := s.Observe([]common.Mention{ml, ai}, rels); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	export := s.Export()
	if len(export.Edges) != 1 {
		t.Fatalf("expected 1 folded edge, got %d", len(export.Edges))
	}
	edge := export.Edges[0]
	if edge.Confidence != 0.9 {
		t.Errorf("confidence = %v, want max 0.9", edge.Confidence)
	}
	if len(edge.EvidenceChunkIDs) != 3 {
		t.Errorf("evidence = %v, want union of 3 chunks", edge.EvidenceChunkIDs)
	}
}

func TestSelfLoopRejectedAfterResolution(t *testing.T) {
	s := NewStore(Config{})

	a := mention("Machine Learning", common.EntityTypeTechnology, "c1")
	b := mention("machine learning", common.EntityTypeTechnology, "c1")

	if err := s.Observe(
		[]common.Mention{a, b},
		[]common.RelationCandidate{relation(a, b, common.RelationRelatedTo, 0.8, "c1")},
	); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	if export := s.Export(); len(export.Edges) != 0 {
		t.Fatalf("self-loop survived folding: %v", export.Edges)
	}
	if d := s.Diagnostics(); d.SelfLoopsRejected != 1 {
		t.Errorf("SelfLoopsRejected = %d, want 1", d.SelfLoopsRejected)
	}
}

func TestSymmetricRelationFoldsBothDirections(t *testing.T) {
	s := NewStore(Config{})

	a := mention("Go", common.EntityTypeTechnology, "c1")
	b := mention("Rust", common.EntityTypeTechnology, "c1")

	if err := s.Observe(
		[]common.Mention{a, b},
		[]common.RelationCandidate{
			relation(a, b, common.RelationRelatedTo, 0.5, "c1"),
			relation(b, a, common.RelationRelatedTo, 0.7, "c2"),
		},
	); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	export := s.Export()
	if len(export.Edges) != 1 {
		t.Fatalf("expected symmetric fold into 1 edge, got %d", len(export.Edges))
	}
	if export.Edges[0].Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", export.Edges[0].Confidence)
	}
}

func TestDirectedRelationsStayDistinct(t *testing.T) {
	s := NewStore(Config{})

	a := mention("scheduler", common.EntityTypeConcept, "c1")
	b := mention("kernel", common.EntityTypeConcept, "c1")

	if err := s.Observe(
		[]common.Mention{a, b},
		[]common.RelationCandidate{
			relation(a, b, common.RelationPartOf, 0.9, "c1"),
			relation(b, a, common.RelationPartOf, 0.9, "c2"),
		},
	); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	if export := s.Export(); len(export.Edges) != 2 {
		t.Fatalf("directed edges collapsed, got %d", len(export.Edges))
	}
}

func TestObserveIdempotent(t *testing.T) {
	s := NewStore(Config{ResolutionDistance: 1})

	ms := []common.Mention{
		mention("Machine learning", common.EntityTypeTechnology, "c1"),
		mention("artificial intelligence", common.EntityTypeTechnology, "c1"),
	}
	rels := []common.RelationCandidate{
		relation(ms[0], ms[1], common.RelationPartOf, 0.9, "c1"),
	}

	for range 3 {
		if err := s.Observe(ms, rels); err != nil {
			t.Fatalf("Observe() error = %v", err)
		}
	}

	st := s.Stats()
	if st.Nodes != 2 || st.Edges != 1 {
		t.Fatalf("repeat observation changed graph size: %+v", st)
	}
}

func TestConcurrentObserveSingleNode(t *testing.T) {
	s := NewStore(Config{})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := mention("distributed consensus", common.EntityTypeConcept, "c1")
			_ = s.Observe([]common.Mention{m}, nil)
		}()
	}
	wg.Wait()

	if st := s.Stats(); st.Nodes != 1 {
		t.Fatalf("concurrent merges created %d nodes for one entity", st.Nodes)
	}
}

func TestExportRoundTrip(t *testing.T) {
	s := NewStore(Config{})

	ml := mention("machine learning", common.EntityTypeTechnology, "c1")
	ai := mention("artificial intelligence", common.EntityTypeTechnology, "c1")
	if err := s.Observe(
		[]common.Mention{ml, ai},
		[]common.RelationCandidate{relation(ml, ai, common.RelationPartOf, 0.9, "c1")},
	); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	data, err := json.Marshal(s.Export())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	loaded, err := LoadExport(data, Config{})
	if err != nil {
		t.Fatalf("LoadExport() error = %v", err)
	}
	if st := loaded.Stats(); st.Nodes != 2 || st.Edges != 1 {
		t.Fatalf("round trip changed graph size: %+v", st)
	}
	if _, ok := loaded.FindNode("Machine Learning"); !ok {
		t.Error("loaded store lost name lookup")
	}
}

func TestLoadExportRejectsDanglingEdge(t *testing.T) {
	data := []byte(`{
		"nodes": [{"id": "n1", "canonical_name": "A", "type": "concept", "aliases": [], "evidence_chunk_ids": []}],
		"edges": [{"source": "n1", "target": "missing", "type": "related_to", "confidence": 0.5, "evidence_chunk_ids": []}]
	}`)

	_, err := LoadExport(data, Config{})
	if err == nil {
		t.Fatal("expected consistency error")
	}
	var cerr *common.GraphConsistencyError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected GraphConsistencyError, got %T", err)
	}
}

func TestNeighborhoodEvidence(t *testing.T) {
	s := NewStore(Config{})

	ml := mention("machine learning", common.EntityTypeTechnology, "c1")
	ai := mention("artificial intelligence", common.EntityTypeTechnology, "c2")
	nn := mention("neural networks", common.EntityTypeTechnology, "c3")

	if err := s.Observe(
		[]common.Mention{ml, ai, nn},
		[]common.RelationCandidate{
			relation(ml, ai, common.RelationPartOf, 0.9, "c1"),
			relation(ml, nn, common.RelationUses, 0.8, "c3"),
		},
	); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	node, ok := s.FindNode("machine learning")
	if !ok {
		t.Fatal("node not found")
	}
	evidence := s.NeighborhoodEvidence(node.ID)
	for _, want := range []string{"c1", "c2", "c3"} {
		found := false
		for _, id := range evidence {
			if id == want {
				found = true
			}
		}
		if !found {
			t.Errorf("neighborhood evidence %v missing %s", evidence, want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Machine Learning", "machine learning"},
		{"  machine-learning  ", "machine learning"},
		{"Neural_Networks!", "neural networks"},
		{"...", ""},
	}
	for _, tt := range tests {
		if got := normalizeName(tt.in); got != tt.want {
			t.Errorf("normalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSummaryMentionsCounts(t *testing.T) {
	s := NewStore(Config{})
	_ = s.Observe([]common.Mention{
		mention("machine learning", common.EntityTypeTechnology, "c1"),
	}, nil)

	summary := s.Export().Summary()
	if !strings.Contains(summary, "1 nodes") {
		t.Errorf("summary %q missing node count", summary)
	}
}

func TestObserveRejectsOutOfRangeConfidence(t *testing.T) {
	s := NewStore(Config{ResolutionDistance: 1})

	ml := mention("machine learning", common.EntityTypeTechnology, "c1")
	nn := mention("neural networks", common.EntityTypeTechnology, "c1")

	err := s.Observe(nil, []common.RelationCandidate{
		relation(ml, nn, common.RelationUses, 1.5, "c1"),
	})
	var consistency *common.GraphConsistencyError
	if !errors.As(err, &consistency) {
		t.Fatalf("Observe() error = %v, want GraphConsistencyError", err)
	}

	err = s.Observe(nil, []common.RelationCandidate{
		relation(ml, nn, common.RelationUses, -0.1, "c1"),
	})
	if !errors.As(err, &consistency) {
		t.Fatalf("Observe() error = %v, want GraphConsistencyError", err)
	}
}
