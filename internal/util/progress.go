package util

import (
	"fmt"
	"sync/atomic"
)

// Each document passes through three milestones before it counts as
// done: chunked, embedded, extracted.
const ingestStepCount int64 = 3

// IngestProgress tracks milestone counts for one ingestion run. All
// counters are safe for concurrent use.
type IngestProgress struct {
	total int64

	chunked  atomic.Int64
	embedded atomic.Int64
	done     atomic.Int64
	failed   atomic.Int64
}

func NewIngestProgress(totalDocuments int) *IngestProgress {
	return &IngestProgress{total: int64(totalDocuments)}
}

func (p *IngestProgress) MarkChunked()   { p.chunked.Add(1) }
func (p *IngestProgress) MarkEmbedded()  { p.embedded.Add(1) }
func (p *IngestProgress) MarkCompleted() { p.done.Add(1) }

// MarkFailed records a document that left the pipeline early. Failed
// documents count as fully processed so the percentage still reaches
// 100 on a run with failures.
func (p *IngestProgress) MarkFailed() { p.failed.Add(1) }

// Percentage returns overall progress as 0-100, crediting documents
// for each milestone they have passed.
func (p *IngestProgress) Percentage() int32 {
	if p.total <= 0 {
		return 0
	}
	totalWork := p.total * ingestStepCount
	doneWork := min(
		p.chunked.Load()+p.embedded.Load()+p.done.Load()+p.failed.Load()*ingestStepCount,
		totalWork,
	)
	return int32(doneWork * 100 / totalWork)
}

// String renders the finished-document counter as "done/total".
func (p *IngestProgress) String() string {
	return fmt.Sprintf("%d/%d", p.done.Load()+p.failed.Load(), p.total)
}
