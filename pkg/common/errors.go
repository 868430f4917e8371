package common

import "fmt"

// EmptyDocumentError reports a document whose text is empty after
// normalization. The chunker refuses such input instead of producing
// zero chunks silently.
type EmptyDocumentError struct {
	DocumentID string
}

func (e *EmptyDocumentError) Error() string {
	return fmt.Sprintf("document %s is empty after normalization", e.DocumentID)
}

// UnreadableDocumentError reports a single file the loader could not
// read or parse. It is non-fatal to the batch.
type UnreadableDocumentError struct {
	Path string
	Err  error
}

func (e *UnreadableDocumentError) Error() string {
	return fmt.Sprintf("unreadable document %s: %v", e.Path, e.Err)
}

func (e *UnreadableDocumentError) Unwrap() error { return e.Err }

// IngestionError reports a per-document ingestion failure. The run
// skips the document and counts the failure.
type IngestionError struct {
	DocumentID string
	Err        error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed for document %s: %v", e.DocumentID, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// ExtractionError reports a per-chunk extraction failure. The run skips
// the chunk and counts the failure.
type ExtractionError struct {
	ChunkID string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for chunk %s: %v", e.ChunkID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// GraphConsistencyError reports a graph invariant violation such as a
// duplicate canonical id or a self-loop slipping through folding. It is
// fatal to the current run.
type GraphConsistencyError struct {
	Reason string
}

func (e *GraphConsistencyError) Error() string {
	return fmt.Sprintf("graph consistency violation: %s", e.Reason)
}

// RetrievalUnavailableError reports that the vector index could not be
// queried. Callers surface it as a degraded-mode answer, not a crash.
type RetrievalUnavailableError struct {
	Err error
}

func (e *RetrievalUnavailableError) Error() string {
	return fmt.Sprintf("vector index unavailable: %v", e.Err)
}

func (e *RetrievalUnavailableError) Unwrap() error { return e.Err }

// GenerationError reports that the generative model call failed after
// bounded retries. It is distinct from the insufficient-context case.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("answer generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
