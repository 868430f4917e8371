// Package loader reads raw document files from a directory and produces
// normalized Document records for the ingestion pipeline.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/docwise-ai/docgraph/internal/util"
	"github.com/docwise-ai/docgraph/pkg/common"
	"github.com/docwise-ai/docgraph/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/singleflight"
)

// Parser extracts plain text from one file format.
type Parser interface {
	// Extensions returns the lowercase file extensions (with dot) the
	// parser handles.
	Extensions() []string
	// Parse reads the file at path and returns its plain text.
	Parse(ctx context.Context, path string) (string, error)
}

// DirectoryLoader scans a directory tree and loads every file a
// registered parser can handle. Files are read once per run; repeated
// loads of the same path are collapsed and cached.
type DirectoryLoader struct {
	parsers map[string]Parser

	cache   map[string]common.Document
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewDirectoryLoader creates a loader with the default parser set
// (plain text, markdown, CSV, PDF).
func NewDirectoryLoader() *DirectoryLoader {
	l := &DirectoryLoader{
		parsers: make(map[string]Parser),
		cache:   make(map[string]common.Document),
	}
	l.Register(&TextParser{})
	l.Register(&PDFParser{})
	return l
}

// Register adds a parser for its declared extensions, replacing any
// previous parser for the same extension.
func (l *DirectoryLoader) Register(p Parser) {
	for _, ext := range p.Extensions() {
		l.parsers[strings.ToLower(ext)] = p
	}
}

// Load walks dir and returns a Document per readable, parseable file.
// Unreadable files are reported as UnreadableDocumentError values in the
// second return; they never fail the batch. The document order is stable
// (sorted by source path).
func (l *DirectoryLoader) Load(ctx context.Context, dir string) ([]common.Document, []error) {
	var (
		paths   []string
		skipped []error
	)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// one unreadable entry never sinks the batch
			skipped = append(skipped, &common.UnreadableDocumentError{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := l.parsers[strings.ToLower(filepath.Ext(path))]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	if walkErr != nil {
		skipped = append(skipped, &common.UnreadableDocumentError{Path: dir, Err: walkErr})
	}
	sort.Strings(paths)

	docs := make([]common.Document, 0, len(paths))
	for _, path := range paths {
		if ctx.Err() != nil {
			return docs, append(skipped, ctx.Err())
		}
		doc, err := l.LoadFile(ctx, path)
		if err != nil {
			logger.Warn("[Loader] Skipping unreadable document", "path", path, "error", err)
			skipped = append(skipped, err)
			continue
		}
		docs = append(docs, doc)
	}

	logger.Info("[Loader] Documents loaded", "count", len(docs), "skipped", len(skipped), "dir", dir)
	return docs, skipped
}

// LoadFile loads a single file into a Document. The result is cached per
// path for the lifetime of the loader.
func (l *DirectoryLoader) LoadFile(ctx context.Context, path string) (common.Document, error) {
	l.cacheMu.RLock()
	if cached, ok := l.cache[path]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(path, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[path]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		doc, err := l.loadFile(ctx, path)
		if err != nil {
			return common.Document{}, err
		}

		l.cacheMu.Lock()
		l.cache[path] = doc
		l.cacheMu.Unlock()
		return doc, nil
	})
	if err != nil {
		return common.Document{}, err
	}
	return result.(common.Document), nil
}

func (l *DirectoryLoader) loadFile(ctx context.Context, path string) (common.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	parser, ok := l.parsers[ext]
	if !ok {
		return common.Document{}, &common.UnreadableDocumentError{
			Path: path,
			Err:  fmt.Errorf("no parser registered for %q", ext),
		}
	}

	text, err := parser.Parse(ctx, path)
	if err != nil {
		return common.Document{}, &common.UnreadableDocumentError{Path: path, Err: err}
	}

	id, err := gonanoid.New()
	if err != nil {
		return common.Document{}, &common.UnreadableDocumentError{Path: path, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return common.Document{}, &common.UnreadableDocumentError{Path: path, Err: err}
	}

	return common.Document{
		ID:         id,
		SourcePath: path,
		Text:       util.NormalizeDocumentText(text),
		Metadata: map[string]string{
			"filename": filepath.Base(path),
			"format":   strings.TrimPrefix(ext, "."),
			"size":     fmt.Sprintf("%d", info.Size()),
		},
	}, nil
}

// TextParser handles plain-text formats that need no decoding.
type TextParser struct{}

func (p *TextParser) Extensions() []string { return []string{".txt", ".md", ".csv"} }

func (p *TextParser) Parse(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return util.SanitizePostgresText(string(data)), nil
}
