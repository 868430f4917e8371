package common

// EntityType classifies a canonical entity or a raw mention.
// The set is fixed; extractors must map anything else to EntityTypeOther.
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeLocation     EntityType = "location"
	EntityTypeConcept      EntityType = "concept"
	EntityTypeTechnology   EntityType = "technology"
	EntityTypeOther        EntityType = "other"
)

// ParseEntityType maps a raw type label to one of the fixed entity types.
// Unknown labels fall back to EntityTypeOther.
func ParseEntityType(s string) EntityType {
	switch EntityType(normalizeLabel(s)) {
	case EntityTypePerson:
		return EntityTypePerson
	case EntityTypeOrganization:
		return EntityTypeOrganization
	case EntityTypeLocation:
		return EntityTypeLocation
	case EntityTypeConcept:
		return EntityTypeConcept
	case EntityTypeTechnology:
		return EntityTypeTechnology
	default:
		return EntityTypeOther
	}
}

// RelationType classifies an edge between two nodes. Directed types
// read source to target: the source is part of, uses, or is defined by
// the target. Passive phrasings are flipped during extraction so "B is
// used in A" still yields (A, uses, B).
type RelationType string

const (
	RelationRelatedTo RelationType = "related_to"
	RelationPartOf    RelationType = "part_of"
	RelationUses      RelationType = "uses"
	RelationDefinedBy RelationType = "defined_by"
)

// Symmetric reports whether the relation type is treated as undirected
// for query-time graph expansion. Storage is always directed.
func (r RelationType) Symmetric() bool {
	return r == RelationRelatedTo
}

// ParseRelationType maps a raw relation label to one of the fixed relation
// types. Unknown labels fall back to RelationRelatedTo.
func ParseRelationType(s string) RelationType {
	switch RelationType(normalizeLabel(s)) {
	case RelationPartOf:
		return RelationPartOf
	case RelationUses:
		return RelationUses
	case RelationDefinedBy:
		return RelationDefinedBy
	default:
		return RelationRelatedTo
	}
}

// Document is a normalized input document produced by the loader.
// Documents are immutable once loaded.
type Document struct {
	ID         string            `json:"id"`
	SourcePath string            `json:"source_path"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Chunk is a bounded contiguous slice of a document's text, the unit of
// embedding and retrieval. Offsets are rune positions into Document.Text,
// EndOffset exclusive. Chunks from one document form a non-decreasing
// sequence by SequenceIndex; consecutive chunks may overlap but never
// skip content.
type Chunk struct {
	ID            string `json:"id"`
	DocumentID    string `json:"document_id"`
	Text          string `json:"text"`
	StartOffset   int    `json:"start_offset"`
	EndOffset     int    `json:"end_offset"`
	SequenceIndex int    `json:"sequence_index"`
}

// Mention is a raw occurrence of an entity's surface form inside a chunk,
// prior to canonicalization. Mentions are ephemeral: they exist only
// between extraction and graph building.
type Mention struct {
	Text      string     `json:"text"`
	Type      EntityType `json:"type"`
	ChunkID   string     `json:"chunk_id"`
	SpanStart int        `json:"span_start"`
	SpanEnd   int        `json:"span_end"`
}

// RelationCandidate is a proposed, not yet folded, relation between two
// mentions that co-occur within an extraction window.
type RelationCandidate struct {
	Source     Mention      `json:"source"`
	Target     Mention      `json:"target"`
	Type       RelationType `json:"type"`
	Confidence float64      `json:"confidence"`
	ChunkID    string       `json:"chunk_id"`
}

// Node is a canonical, deduplicated entity in the knowledge graph.
// CanonicalName is stable once assigned; the alias set only grows.
type Node struct {
	ID               string     `json:"id"`
	CanonicalName    string     `json:"canonical_name"`
	Type             EntityType `json:"type"`
	Aliases          []string   `json:"aliases"`
	EvidenceChunkIDs []string   `json:"evidence_chunk_ids"`
}

// Edge is a directed, typed, evidence-backed relation between two nodes.
// At most one edge exists per (source, target, type) triple; repeat
// observations raise Confidence and extend the evidence set.
type Edge struct {
	SourceNodeID     string       `json:"source"`
	TargetNodeID     string       `json:"target"`
	Type             RelationType `json:"type"`
	Confidence       float64      `json:"confidence"`
	EvidenceChunkIDs []string     `json:"evidence_chunk_ids"`
}

// VectorRecord pairs a chunk with its embedding for the vector index.
// Records are one-to-one with chunks and read-only after indexing.
type VectorRecord struct {
	ChunkID  string            `json:"chunk_id"`
	Vector   []float32         `json:"vector"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RetrievalResult is one ranked chunk returned for a query, ordered by
// descending score among its siblings.
type RetrievalResult struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
	Text    string  `json:"text"`
}

// Answer is the generated response for one query. When
// InsufficientContext is true the text is the explicit "no relevant
// information found" response and CitedChunkIDs is empty.
type Answer struct {
	Text                string   `json:"text"`
	CitedChunkIDs       []string `json:"cited_chunk_ids"`
	InsufficientContext bool     `json:"insufficient_context"`
}

// Metadata keys attached to vector records at index time. The retriever
// reads them back for stable tie-breaking.
const (
	MetadataKeyDocumentID    = "document_id"
	MetadataKeySequenceIndex = "sequence_index"
	MetadataKeyFilename      = "filename"
)
