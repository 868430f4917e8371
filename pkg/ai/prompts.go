package ai

// ExtractPrompt is the system prompt for structured entity/relationship
// extraction from one chunk of a technical document. Placeholders:
// entity types, relation types, document name.
const ExtractPrompt = `
# Task Context
You extract structured entity and relationship information from a passage of a technical document.

# Background Data
- Entity_types: [%s]
- Relation_types: [%s]
- Document_name: [%s]

# Detailed Task Description & Rules
## Entity Extraction
1. Identify every entity of one of the given types mentioned in the passage.
2. For each entity extract:
   - entity_name: the exact surface form as it appears in the passage.
   - entity_type: one of the provided types. Use "other" when unsure.

## Relationship Extraction
1. Identify relationships between entities you extracted in step 1. Only propose a relationship the passage itself supports; mere co-occurrence is not enough.
2. For each relationship extract:
   - source_entity and target_entity: entity names exactly as extracted in step 1.
   - relation_type: one of the provided relation types.
   - confidence: a score in [0,1] for how clearly the passage states the relationship.

Return only entities and relationships that are explicitly grounded in the passage. Do not invent entities from background knowledge.
`

// AnswerPrompt is the system prompt for grounded question answering.
// The placeholder is the retrieved context block; each passage is
// tagged with its chunk id.
const AnswerPrompt = `
You are a helpful assistant that answers questions about a corpus of technical documents.

Use only the provided context passages to answer. If the context does not contain the information needed, say so honestly instead of guessing. Never present background knowledge as if it came from the documents.

After every statement that is supported by a passage, cite the passage by writing its id in double square brackets, for example [[%s]]. Cite only ids that appear in the context below.

Context:
%s
`

// InsufficientContextAnswer is returned verbatim when retrieval finds
// no relevant context. The generative model is not called in that case.
const InsufficientContextAnswer = "I could not find relevant information in the indexed documents to answer this question."
