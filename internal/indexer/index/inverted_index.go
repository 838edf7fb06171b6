// Package index holds the inverted index: for every term, the documents it
// occurs in and how often.
package index

import (
	"fmt"
	"sort"
	"sync"
)

// InvertedIndex maps terms to postings. A term is present only while at least
// one indexed document contains it. It is safe for one writer and many
// concurrent readers.
type InvertedIndex struct {
	mu    sync.RWMutex
	index map[string]Postings
	// docTerms is the reverse index used to retract a document's postings
	// without scanning every term.
	docTerms map[DocID][]string
}

func New() *InvertedIndex {
	return &InvertedIndex{
		index:    make(map[string]Postings),
		docTerms: make(map[DocID][]string),
	}
}

// AddDocument counts the occurrences of each term and stores them under
// docID, overwriting the frequency of any term docID was already indexed
// under. Postings for terms no longer present are not retracted; use
// UpdateDocument for that. A nil or empty terms slice adds nothing.
func (x *InvertedIndex) AddDocument(docID DocID, terms []string) {
	freqs := countTerms(terms)
	if len(freqs) == 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.addLocked(docID, freqs)
}

// UpdateDocument replaces everything indexed for docID with terms.
func (x *InvertedIndex) UpdateDocument(docID DocID, terms []string) {
	freqs := countTerms(terms)
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(docID)
	x.addLocked(docID, freqs)
}

// RemoveDocument retracts every posting of docID and reports whether the
// document was indexed.
func (x *InvertedIndex) RemoveDocument(docID DocID) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.removeLocked(docID)
}

// Search returns a copy of the postings for term. The result is empty, not
// nil, when the term is not indexed.
func (x *InvertedIndex) Search(term string) Postings {
	x.mu.RLock()
	defer x.mu.RUnlock()
	postings, ok := x.index[term]
	if !ok {
		return Postings{}
	}
	out := make(Postings, len(postings))
	for docID, freq := range postings {
		out[docID] = freq
	}
	return out
}

// Len returns the number of distinct indexed terms.
func (x *InvertedIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.index)
}

// DocCount returns the number of documents with at least one posting.
func (x *InvertedIndex) DocCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docTerms)
}

// Terms returns every indexed term in sorted order.
func (x *InvertedIndex) Terms() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	terms := make([]string, 0, len(x.index))
	for term := range x.index {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Snapshot returns the whole index sorted by term, each posting list sorted
// by document id.
func (x *InvertedIndex) Snapshot() []TermEntry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	entries := make([]TermEntry, 0, len(x.index))
	for term, postings := range x.index {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings.Sorted(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

func (x *InvertedIndex) String() string {
	return fmt.Sprintf("InvertedIndex(size=%d)", x.Len())
}

func (x *InvertedIndex) addLocked(docID DocID, freqs map[string]int) {
	if len(freqs) == 0 {
		return
	}
	known := make(map[string]struct{}, len(x.docTerms[docID]))
	for _, term := range x.docTerms[docID] {
		known[term] = struct{}{}
	}
	for term, freq := range freqs {
		postings, ok := x.index[term]
		if !ok {
			postings = make(Postings)
			x.index[term] = postings
		}
		postings[docID] = freq
		if _, seen := known[term]; !seen {
			x.docTerms[docID] = append(x.docTerms[docID], term)
		}
	}
}

func (x *InvertedIndex) removeLocked(docID DocID) bool {
	terms, ok := x.docTerms[docID]
	if !ok {
		return false
	}
	for _, term := range terms {
		postings := x.index[term]
		delete(postings, docID)
		if len(postings) == 0 {
			delete(x.index, term)
		}
	}
	delete(x.docTerms, docID)
	return true
}

func countTerms(terms []string) map[string]int {
	freqs := make(map[string]int, len(terms))
	for _, term := range terms {
		freqs[term]++
	}
	return freqs
}
