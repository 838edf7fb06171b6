package index

import "sort"

// DocID identifies a document within one collection.
type DocID int64

// Postings maps a document to how often a term occurs in it. Every stored
// frequency is at least one; an absent document has zero occurrences.
type Postings map[DocID]int

// Posting is one (document, frequency) pair of a term's postings.
type Posting struct {
	DocID     DocID `json:"d"`
	Frequency int   `json:"f"`
}

type PostingList []Posting

// TermEntry is a term with its postings sorted by document id.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// Sorted returns the postings as a list ordered by ascending document id.
func (p Postings) Sorted() PostingList {
	list := make(PostingList, 0, len(p))
	for docID, freq := range p {
		list = append(list, Posting{DocID: docID, Frequency: freq})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].DocID < list[j].DocID
	})
	return list
}

// Map converts a posting list back into a Postings map.
func (l PostingList) Map() Postings {
	p := make(Postings, len(l))
	for _, posting := range l {
		p[posting.DocID] = posting.Frequency
	}
	return p
}
