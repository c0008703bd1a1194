// Package extract runs the per-document pipeline: raw page lines in, assembled
// voter records out. Documents are independent of each other and may be
// processed in parallel; pages within a document are sequential because the
// current section label carries forward across pages.
package extract

import (
	"context"
	"log"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"rollscan/internal/assemble"
	"rollscan/internal/domain"
	"rollscan/internal/glyph"
	"rollscan/internal/rollmeta"
	"rollscan/internal/segment"
)

// headerFingerprints mark column-header lines in the obfuscated alphabet
// ("Elector", "Relation"); they are never voter rows.
var headerFingerprints = []string{"OHFWRU", "HODWLRQ"}

// Document is one electoral-roll document with its text already extracted,
// one slice of lines per page.
type Document struct {
	Path  string
	Pages [][]string
}

// Result is everything the pipeline produced for one document.
type Result struct {
	Path     string
	Metadata domain.PartMetadata
	Records  []domain.VoterRecord

	// CandidateRows counts lines passing the anchor and token-length
	// checks; the delta against len(Records) flags segmentation
	// regressions.
	CandidateRows int
	SkippedRows   int
}

// Pipeline extracts records from documents.
type Pipeline struct {
	log     *log.Logger
	metrics *Metrics
}

func New(log *log.Logger, metrics *Metrics) *Pipeline {
	return &Pipeline{log: log, metrics: metrics}
}

// Document processes one document sequentially, page by page.
func (p *Pipeline) Document(doc Document) Result {
	meta := rollmeta.FromPath(doc.Path)
	if len(doc.Pages) > 0 {
		rollmeta.FillFromHeader(&meta, doc.Pages[0])
	}

	res := Result{Path: doc.Path, Metadata: meta}
	filename := baseName(doc.Path)

	currentSection := ""
	for pageIdx, lines := range doc.Pages {
		pageNum := pageIdx + 1
		for _, line := range lines {
			if isColumnHeader(line) {
				continue
			}
			if section, ok := sectionLabel(line); ok {
				currentSection = section
				continue
			}
			if !segment.IsCandidate(line) {
				continue
			}
			res.CandidateRows++

			spans, ok := segment.Line(line)
			if !ok {
				res.SkippedRows++
				continue
			}
			res.Records = append(res.Records, assemble.Record(spans, meta, currentSection, filename, pageNum))
		}
	}

	p.metrics.ObserveDocument(len(res.Records), res.SkippedRows)
	if p.log != nil {
		p.log.Printf("extracted %s: %d records, %d candidates, %d skipped",
			filename, len(res.Records), res.CandidateRows, res.SkippedRows)
	}
	return res
}

// Batch processes documents with a bounded worker pool. Results keep the input
// order. No state is shared between documents, so the only coordination is the
// worker limit and context cancellation.
func (p *Pipeline) Batch(ctx context.Context, docs []Document, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(docs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = p.Document(doc)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// sectionLabel recognizes section-header lines in raw or decoded form and
// returns the label they establish for subsequent rows.
func sectionLabel(line string) (string, bool) {
	if strings.Contains(line, "6HFWLRQ") {
		return glyph.Decode(line), true
	}
	if strings.Contains(strings.ToLower(line), "section") {
		return strings.Join(strings.Fields(line), " "), true
	}
	if decoded := glyph.Decode(line); strings.Contains(strings.ToLower(decoded), "section") {
		return decoded, true
	}
	return "", false
}

func isColumnHeader(line string) bool {
	for _, fp := range headerFingerprints {
		if strings.Contains(line, fp) {
			return true
		}
	}
	return false
}

func baseName(path string) string {
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
