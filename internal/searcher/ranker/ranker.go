// Package ranker turns per-term postings into an ordered result list. A
// document's score is the sum of its frequencies across the query terms.
package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer/index"
)

type ScoredDoc struct {
	DocID index.DocID `json:"doc_id"`
	Score int         `json:"score"`
}

// Rank sums the frequencies in postingsPerTerm per document and orders the
// documents by descending score. Equal scores are ordered by ascending
// document id so results are reproducible. A positive limit truncates.
//
// postingsPerTerm holds one entry per query term occurrence: a term repeated
// in the query contributes once per repetition.
func Rank(postingsPerTerm []index.Postings, limit int) []ScoredDoc {
	scores := Accumulate(postingsPerTerm)
	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		result = append(result, ScoredDoc{DocID: docID, Score: score})
	}
	Sort(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// Accumulate returns the summed frequency of every document that appears in
// any of the postings.
func Accumulate(postingsPerTerm []index.Postings) map[index.DocID]int {
	scores := make(map[index.DocID]int)
	for _, postings := range postingsPerTerm {
		for docID, freq := range postings {
			scores[docID] += freq
		}
	}
	return scores
}

// Sort orders docs by descending score, then ascending document id.
func Sort(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].DocID < docs[j].DocID
	})
}
