// Package indexer owns the document store and drives index construction and
// query scoring. Documents are added to the store first; BuildIndex turns the
// whole store into a fresh inverted index and publishes it for searching.
package indexer

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/metrics"
)

// Document is a stored document. Its text is kept verbatim.
type Document struct {
	ID   index.DocID `json:"id"`
	Text string      `json:"text"`
}

// Result is a ranked search together with the processed query terms and the
// generation of the index it ran against. TotalHits counts every matching
// document, before any limit.
type Result struct {
	Terms      []string           `json:"terms"`
	Generation uint64             `json:"generation"`
	Revision   uint64             `json:"revision"`
	TotalHits  int                `json:"total_hits"`
	Docs       []ranker.ScoredDoc `json:"results"`
}

// Stats describes the document store and the live index.
type Stats struct {
	Documents        int    `json:"documents"`
	IndexedDocuments int    `json:"indexed_documents"`
	Terms            int    `json:"terms"`
	Generation       uint64 `json:"generation"`
	Revision         uint64 `json:"revision"`
	Built            bool   `json:"built"`
	Dirty            bool   `json:"dirty"`
}

// published pairs an index with the build generation that produced it.
// Generation 0 is the empty index an Indexer starts with.
type published struct {
	idx        *index.InvertedIndex
	generation uint64
}

// Indexer is safe for concurrent use. Writes to the document store are
// serialized; searches never wait for a build because a build constructs a
// new index and swaps it in atomically.
//
// Searching before the first BuildIndex is allowed and returns whatever the
// live index holds, which is nothing unless documents were written with
// UpdateDocument.
type Indexer struct {
	processor *tokenizer.Processor
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu   sync.RWMutex
	docs map[index.DocID]string

	buildMu sync.Mutex
	live    atomic.Pointer[published]
	dirty   atomic.Bool
	// revision changes whenever the live index changes, by a build or an
	// incremental write.
	revision atomic.Uint64
}

type Option func(*Indexer)

func WithProcessor(p *tokenizer.Processor) Option {
	return func(ix *Indexer) { ix.processor = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// WithMetrics records store, build and index gauges on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ix *Indexer) { ix.metrics = m }
}

func New(opts ...Option) *Indexer {
	ix := &Indexer{
		processor: tokenizer.New(),
		logger:    slog.Default().With("component", "indexer"),
		docs:      make(map[index.DocID]string),
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.live.Store(&published{idx: index.New()})
	return ix
}

// AddDocument stores text under docID, replacing any earlier text. The index
// is not touched until the next BuildIndex.
func (ix *Indexer) AddDocument(docID index.DocID, text string) {
	ix.mu.Lock()
	ix.docs[docID] = text
	ix.dirty.Store(true)
	n := len(ix.docs)
	ix.mu.Unlock()

	ix.observeWrite("add", n)
	ix.logger.Debug("document stored", "doc_id", docID, "bytes", len(text))
}

// UpdateDocument stores text under docID and re-indexes that one document in
// the live index right away, retracting postings of its previous text.
func (ix *Indexer) UpdateDocument(docID index.DocID, text string) {
	terms := ix.processor.Process(text)

	ix.mu.Lock()
	ix.docs[docID] = text
	ix.live.Load().idx.UpdateDocument(docID, terms)
	ix.revision.Add(1)
	n := len(ix.docs)
	ix.mu.Unlock()

	ix.observeWrite("update", n)
	ix.observeIndex(ix.live.Load())
	ix.logger.Debug("document re-indexed", "doc_id", docID, "terms", len(terms))
}

// RemoveDocument deletes docID from the store and the live index. It reports
// whether the document was stored.
func (ix *Indexer) RemoveDocument(docID index.DocID) bool {
	ix.mu.Lock()
	_, ok := ix.docs[docID]
	if ok {
		delete(ix.docs, docID)
		ix.live.Load().idx.RemoveDocument(docID)
		ix.revision.Add(1)
	}
	n := len(ix.docs)
	ix.mu.Unlock()

	if !ok {
		return false
	}
	ix.observeWrite("remove", n)
	ix.observeIndex(ix.live.Load())
	ix.logger.Debug("document removed", "doc_id", docID)
	return true
}

// BuildIndex rebuilds the inverted index from every stored document, in
// ascending id order, and publishes it. Documents whose text changed since
// the previous build carry no postings from their old text.
func (ix *Indexer) BuildIndex() {
	ix.build("manual")
}

func (ix *Indexer) build(trigger string) {
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()
	start := time.Now()

	ix.mu.RLock()
	ids := make([]index.DocID, 0, len(ix.docs))
	for docID := range ix.docs {
		ids = append(ids, docID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fresh := index.New()
	for _, docID := range ids {
		fresh.AddDocument(docID, ix.processor.Process(ix.docs[docID]))
	}
	next := &published{
		idx:        fresh,
		generation: ix.live.Load().generation + 1,
	}
	ix.live.Store(next)
	ix.revision.Add(1)
	ix.dirty.Store(false)
	ix.mu.RUnlock()

	elapsed := time.Since(start)
	if ix.metrics != nil {
		ix.metrics.IndexBuildsTotal.WithLabelValues(trigger).Inc()
		ix.metrics.IndexBuildDuration.Observe(elapsed.Seconds())
	}
	ix.observeIndex(next)
	ix.logger.Info("index built",
		"trigger", trigger,
		"generation", next.generation,
		"documents", len(ids),
		"terms", fresh.Len(),
		"duration_ms", elapsed.Milliseconds(),
	)
}

// Search returns every document matching at least one query term, ordered by
// descending score and then ascending id. The score of a document is the sum
// of its frequencies for each processed query term.
func (ix *Indexer) Search(query string) []ranker.ScoredDoc {
	return ix.SearchLimit(query, 0).Docs
}

// SearchLimit is Search with an optional result limit (ignored when <= 0),
// also reporting the processed terms and the index generation used.
func (ix *Indexer) SearchLimit(query string, limit int) Result {
	terms := ix.processor.Process(query)
	revision := ix.revision.Load()
	live := ix.live.Load()
	if len(terms) == 0 {
		return Result{Terms: terms, Generation: live.generation, Revision: revision, Docs: []ranker.ScoredDoc{}}
	}
	postingsPerTerm := make([]index.Postings, 0, len(terms))
	for _, term := range terms {
		postingsPerTerm = append(postingsPerTerm, live.idx.Search(term))
	}
	docs := ranker.Rank(postingsPerTerm, 0)
	total := len(docs)
	if limit > 0 && total > limit {
		docs = docs[:limit]
	}
	ix.logger.Debug("query executed",
		"query", query,
		"terms", terms,
		"generation", live.generation,
		"total_hits", total,
		"returned", len(docs),
	)
	return Result{Terms: terms, Generation: live.generation, Revision: revision, TotalHits: total, Docs: docs}
}

// Analyze runs the text pipeline used for documents and queries.
func (ix *Indexer) Analyze(text string) []string {
	return ix.processor.Process(text)
}

// Document returns the stored text for docID.
func (ix *Indexer) Document(docID index.DocID) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	text, ok := ix.docs[docID]
	return text, ok
}

// Documents returns all stored documents sorted by id.
func (ix *Indexer) Documents() []Document {
	ix.mu.RLock()
	docs := make([]Document, 0, len(ix.docs))
	for docID, text := range ix.docs {
		docs = append(docs, Document{ID: docID, Text: text})
	}
	ix.mu.RUnlock()
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

// Len returns the number of stored documents.
func (ix *Indexer) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Built reports whether BuildIndex has run at least once.
func (ix *Indexer) Built() bool {
	return ix.live.Load().generation > 0
}

// Dirty reports whether documents were added since the last build.
func (ix *Indexer) Dirty() bool {
	return ix.dirty.Load()
}

// Generation returns the build generation of the live index.
func (ix *Indexer) Generation() uint64 {
	return ix.live.Load().generation
}

// Revision returns a counter that changes whenever the live index changes.
// Results computed at the same revision are identical.
func (ix *Indexer) Revision() uint64 {
	return ix.revision.Load()
}

// Snapshot returns the live index sorted by term.
func (ix *Indexer) Snapshot() []index.TermEntry {
	return ix.live.Load().idx.Snapshot()
}

func (ix *Indexer) Stats() Stats {
	live := ix.live.Load()
	return Stats{
		Documents:        ix.Len(),
		IndexedDocuments: live.idx.DocCount(),
		Terms:            live.idx.Len(),
		Generation:       live.generation,
		Revision:         ix.Revision(),
		Built:            live.generation > 0,
		Dirty:            ix.Dirty(),
	}
}

// StartBuildLoop rebuilds the index every interval while documents are
// pending; a non-positive interval disables periodic builds. When ctx is
// cancelled it performs a final build if needed. The returned channel is
// closed once the loop has exited.
func (ix *Indexer) StartBuildLoop(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	var tick <-chan time.Time
	var ticker *time.Ticker
	if interval > 0 {
		ticker = time.NewTicker(interval)
		tick = ticker.C
	}
	go func() {
		defer close(done)
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-ctx.Done():
				if ix.Dirty() {
					ix.logger.Info("build loop stopping, performing final build")
					ix.build("final")
				}
				return
			case <-tick:
				if ix.Dirty() {
					ix.build("loop")
				}
			}
		}
	}()
	return done
}

func (ix *Indexer) observeWrite(op string, stored int) {
	if ix.metrics == nil {
		return
	}
	ix.metrics.DocumentsAddedTotal.WithLabelValues(op).Inc()
	ix.metrics.DocumentsStored.Set(float64(stored))
}

func (ix *Indexer) observeIndex(p *published) {
	if ix.metrics == nil {
		return
	}
	ix.metrics.IndexTerms.Set(float64(p.idx.Len()))
	ix.metrics.IndexGeneration.Set(float64(p.generation))
}
