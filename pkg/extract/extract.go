// Package extract identifies entity mentions and candidate relations in
// chunk text. Two extractors are available: a deterministic rule-based
// one and a model-backed one; the pipeline selects by configuration and
// is agnostic to which is used.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docwise-ai/docgraph/pkg/ai"
	"github.com/docwise-ai/docgraph/pkg/common"
)

var errEmptyChunk = errors.New("empty chunk text")

// Extraction is the result of scanning one chunk: entity mentions and
// relation candidates between them. Both are ephemeral and consumed by
// the graph builder.
type Extraction struct {
	Mentions  []common.Mention
	Relations []common.RelationCandidate
}

// Extractor scans a single chunk. Implementations must be safe for
// concurrent use and must tag every mention with the exact source span
// in the chunk text so evidence can be tracked downstream.
type Extractor interface {
	Extract(ctx context.Context, chunk common.Chunk) (Extraction, error)
}

// Mode selects which extractor implementation New returns.
type Mode string

const (
	ModeRule  Mode = "rule"
	ModeModel Mode = "model"
)

// Config configures extractor construction.
type Config struct {
	Mode            Mode
	ConfidenceFloor float64 // relation candidates below this are discarded

	// Model-backed extraction only.
	Client ai.ModelClient
	Model  string // override for the client's default chat model, may be empty
}

// New constructs the extractor selected by cfg.Mode.
func New(cfg Config) (Extractor, error) {
	if cfg.ConfidenceFloor < 0 || cfg.ConfidenceFloor > 1 {
		return nil, fmt.Errorf("confidence floor %v outside [0,1]", cfg.ConfidenceFloor)
	}
	switch cfg.Mode {
	case ModeRule, "":
		return NewRuleExtractor(cfg.ConfidenceFloor), nil
	case ModeModel:
		if cfg.Client == nil {
			return nil, fmt.Errorf("model extraction requires a model client")
		}
		return NewModelExtractor(cfg.Client, cfg.Model, cfg.ConfidenceFloor), nil
	default:
		return nil, fmt.Errorf("unknown extraction mode %q", cfg.Mode)
	}
}

// filterRelations drops candidates below the confidence floor and
// self-relations whose endpoints share a surface form.
func filterRelations(cands []common.RelationCandidate, floor float64) []common.RelationCandidate {
	out := make([]common.RelationCandidate, 0, len(cands))
	for _, c := range cands {
		if c.Confidence < floor {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(c.Source.Text), strings.TrimSpace(c.Target.Text)) {
			continue
		}
		out = append(out, c)
	}
	return out
}
