package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/docwise-ai/docgraph/pkg/ai"
	"github.com/docwise-ai/docgraph/pkg/common"
)

type extractEntity struct {
	EntityName string `json:"entity_name" jsonschema_description:"Exact surface form of the entity as it appears in the passage"`
	EntityType string `json:"entity_type" jsonschema_description:"One of the provided entity types"`
}

type extractRelation struct {
	SourceEntity string  `json:"source_entity" jsonschema_description:"Name of the source entity, exactly as extracted"`
	TargetEntity string  `json:"target_entity" jsonschema_description:"Name of the target entity, exactly as extracted"`
	RelationType string  `json:"relation_type" jsonschema_description:"One of the provided relation types"`
	Confidence   float64 `json:"confidence" jsonschema_description:"Score in [0,1] for how clearly the passage states the relationship"`
}

type extractResponse struct {
	Entities  []extractEntity   `json:"entities" jsonschema_description:"Entities identified in the passage"`
	Relations []extractRelation `json:"relations" jsonschema_description:"Relationships identified in the passage"`
}

// ModelExtractor asks a generative model for structured entities and
// relations. Mentions the model invents that have no span in the chunk
// text are dropped, keeping evidence grounded.
type ModelExtractor struct {
	client          ai.ModelClient
	model           string
	confidenceFloor float64
}

// NewModelExtractor creates a model-backed extractor. model may be
// empty to use the client's default chat model.
func NewModelExtractor(client ai.ModelClient, model string, floor float64) *ModelExtractor {
	return &ModelExtractor{client: client, model: model, confidenceFloor: floor}
}

// Extract sends the chunk text to the model with a structured-output
// schema and maps the response onto grounded mentions and candidates.
func (e *ModelExtractor) Extract(ctx context.Context, chunk common.Chunk) (Extraction, error) {
	if strings.TrimSpace(chunk.Text) == "" {
		return Extraction{}, &common.ExtractionError{ChunkID: chunk.ID, Err: errEmptyChunk}
	}

	systemPrompt := fmt.Sprintf(
		ai.ExtractPrompt,
		strings.Join(entityTypeLabels(), ","),
		strings.Join(relationTypeLabels(), ","),
		chunk.DocumentID,
	)

	opts := []ai.GenerateOption{ai.WithSystemPrompts(systemPrompt)}
	if e.model != "" {
		opts = append(opts, ai.WithModel(e.model))
	}

	var res extractResponse
	err := e.client.GenerateCompletionWithFormat(
		ctx,
		"extract_entities_and_relations",
		"Extract entities and relationships from a passage of a technical document.",
		chunk.Text,
		&res,
		opts...,
	)
	if err != nil {
		return Extraction{}, &common.ExtractionError{ChunkID: chunk.ID, Err: err}
	}

	mentions := make([]common.Mention, 0, len(res.Entities))
	byName := map[string]common.Mention{}
	for _, ent := range res.Entities {
		name := strings.TrimSpace(ent.EntityName)
		if name == "" {
			continue
		}
		start, end, ok := spanOf(chunk.Text, name)
		if !ok {
			// hallucinated or paraphrased entity, no grounding span
			continue
		}
		m := common.Mention{
			Text:      name,
			Type:      common.ParseEntityType(ent.EntityType),
			ChunkID:   chunk.ID,
			SpanStart: start,
			SpanEnd:   end,
		}
		key := strings.ToLower(name)
		if _, ok := byName[key]; ok {
			continue
		}
		byName[key] = m
		mentions = append(mentions, m)
	}

	relations := make([]common.RelationCandidate, 0, len(res.Relations))
	for _, rel := range res.Relations {
		src, okS := byName[strings.ToLower(strings.TrimSpace(rel.SourceEntity))]
		tgt, okT := byName[strings.ToLower(strings.TrimSpace(rel.TargetEntity))]
		if !okS || !okT {
			continue
		}
		relations = append(relations, common.RelationCandidate{
			Source:     src,
			Target:     tgt,
			Type:       common.ParseRelationType(rel.RelationType),
			Confidence: clamp01(rel.Confidence),
			ChunkID:    chunk.ID,
		})
	}

	return Extraction{
		Mentions:  mentions,
		Relations: filterRelations(relations, e.confidenceFloor),
	}, nil
}

// spanOf locates the first case-insensitive occurrence of phrase in
// text and returns its rune span.
func spanOf(text string, phrase string) (int, int, bool) {
	idx := strings.Index(strings.ToLower(text), strings.ToLower(phrase))
	if idx < 0 {
		return 0, 0, false
	}
	start := utf8.RuneCountInString(text[:idx])
	return start, start + utf8.RuneCountInString(phrase), true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func entityTypeLabels() []string {
	types := []common.EntityType{
		common.EntityTypePerson,
		common.EntityTypeOrganization,
		common.EntityTypeLocation,
		common.EntityTypeConcept,
		common.EntityTypeTechnology,
		common.EntityTypeOther,
	}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func relationTypeLabels() []string {
	types := []common.RelationType{
		common.RelationRelatedTo,
		common.RelationPartOf,
		common.RelationUses,
		common.RelationDefinedBy,
	}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
