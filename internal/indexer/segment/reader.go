package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer/index"
)

// Reader serves lookups from one segment file. The dictionary is held in
// memory; postings are read from disk on demand.
type Reader struct {
	file   *os.File
	path   string
	header SegmentHeader
	dict   []DictEntry
}

// OpenReader opens and validates the segment at path.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func load(f *os.File, path string) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment file: %w", err)
	}
	if info.Size() < int64(HeaderSize+FooterSize) {
		return nil, fmt.Errorf("invalid segment file %s: too short (%d bytes)", path, info.Size())
	}

	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file %s: bad magic bytes %x", path, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}
	if err := checkBounds(header, info.Size()); err != nil {
		return nil, fmt.Errorf("invalid segment file %s: %w", path, err)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, info.Size()-int64(FooterSize)); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	if err := checkFooter(header, footer); err != nil {
		return nil, fmt.Errorf("invalid segment file %s: %w", path, err)
	}
	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if want, got := binary.LittleEndian.Uint32(footer[0:4]), crc32.ChecksumIEEE(dictBytes); want != got {
		return nil, fmt.Errorf("segment %s dictionary checksum mismatch: want %08x, got %08x", path, want, got)
	}
	postingsCRC := crc32.NewIEEE()
	if _, err := io.Copy(postingsCRC, io.NewSectionReader(f, header.PostOffset, header.PostSize)); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	if got := postingsCRC.Sum32(); got != header.PostCRC {
		return nil, fmt.Errorf("segment %s postings checksum mismatch: want %08x, got %08x", path, header.PostCRC, got)
	}

	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	if len(dict) != int(header.TermCount) {
		return nil, fmt.Errorf("segment %s: header says %d terms, dictionary has %d", path, header.TermCount, len(dict))
	}
	for i, d := range dict {
		if d.PostOffset < 0 || d.PostLen < 0 || d.PostOffset > header.PostSize || int64(d.PostLen) > header.PostSize-d.PostOffset {
			return nil, fmt.Errorf("segment %s: postings of %q out of bounds", path, d.Term)
		}
		if i > 0 && dict[i-1].Term >= d.Term {
			return nil, fmt.Errorf("segment %s: dictionary not sorted at %q", path, d.Term)
		}
	}
	return &Reader{file: f, path: path, header: header, dict: dict}, nil
}

// checkBounds verifies that the header describes postings followed directly
// by the dictionary and the footer, filling the file exactly.
func checkBounds(h SegmentHeader, size int64) error {
	dictEnd := size - int64(FooterSize)
	switch {
	case h.PostOffset != int64(HeaderSize):
		return fmt.Errorf("postings offset %d, want %d", h.PostOffset, HeaderSize)
	case h.DictOffset < int64(HeaderSize) || h.DictOffset > dictEnd:
		return fmt.Errorf("dictionary offset %d outside [%d, %d]", h.DictOffset, HeaderSize, dictEnd)
	case h.DictSize < 0 || h.DictSize != dictEnd-h.DictOffset:
		return fmt.Errorf("dictionary size %d does not match file size", h.DictSize)
	case h.PostSize != h.DictOffset-h.PostOffset:
		return fmt.Errorf("postings size %d does not match dictionary offset", h.PostSize)
	}
	return nil
}

// checkFooter cross-checks the header against the copy kept in the footer.
func checkFooter(h SegmentHeader, footer []byte) error {
	if n := binary.LittleEndian.Uint32(footer[4:8]); n != h.DocCount {
		return fmt.Errorf("footer doc count %d, header %d", n, h.DocCount)
	}
	if v := int64(binary.LittleEndian.Uint64(footer[8:16])); v != h.DictOffset {
		return fmt.Errorf("footer dictionary offset %d, header %d", v, h.DictOffset)
	}
	if v := int64(binary.LittleEndian.Uint64(footer[16:24])); v != h.DictSize {
		return fmt.Errorf("footer dictionary size %d, header %d", v, h.DictSize)
	}
	if v := int64(binary.LittleEndian.Uint64(footer[24:32])); v != h.PostSize {
		return fmt.Errorf("footer postings size %d, header %d", v, h.PostSize)
	}
	return nil
}

// Search returns the postings for term, or an empty map if the segment does
// not contain it.
func (r *Reader) Search(term string) (index.Postings, error) {
	i := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if i >= len(r.dict) || r.dict[i].Term != term {
		return index.Postings{}, nil
	}
	list, err := r.readPostings(r.dict[i])
	if err != nil {
		return nil, err
	}
	return list.Map(), nil
}

func (r *Reader) readPostings(entry DictEntry) (index.PostingList, error) {
	buf := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(buf, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings for %q: %w", entry.Term, err)
	}
	var list index.PostingList
	if err := json.Unmarshal(buf, &list); err != nil {
		return nil, fmt.Errorf("parsing postings for %q: %w", entry.Term, err)
	}
	return list, nil
}

// Entries reads the whole segment back in term order.
func (r *Reader) Entries() ([]index.TermEntry, error) {
	entries := make([]index.TermEntry, 0, len(r.dict))
	for _, d := range r.dict {
		list, err := r.readPostings(d)
		if err != nil {
			return nil, err
		}
		entries = append(entries, index.TermEntry{Term: d.Term, Postings: list})
	}
	return entries, nil
}

// Terms returns every term in the segment in sorted order.
func (r *Reader) Terms() []string {
	terms := make([]string, len(r.dict))
	for i, d := range r.dict {
		terms[i] = d.Term
	}
	return terms
}

func (r *Reader) DocCount() int {
	return int(r.header.DocCount)
}

func (r *Reader) Header() SegmentHeader {
	return r.header
}

func (r *Reader) CreatedAt() time.Time {
	return time.Unix(r.header.CreatedAt, 0)
}

func (r *Reader) Path() string {
	return r.path
}

func (r *Reader) Close() error {
	return r.file.Close()
}
