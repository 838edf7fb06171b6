// Package segment saves a built inverted index to a single immutable file and
// reads it back. Segments are an offline export of the live index; the
// indexer never loads them.
//
// Layout: a 64-byte header, one JSON posting list per term, a JSON dictionary
// sorted by term, and a 32-byte footer carrying a CRC32 of the dictionary.
// The header carries a CRC32 of the postings region.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer/index"
)

const (
	MagicBytes    uint32 = 0x54534547 // "TSEG"
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 32
	FileExt              = ".tseg"
)

// SegmentHeader is the 64-byte header written at the start of every segment.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	CreatedAt  int64
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
	PostCRC    uint32
}

// DictEntry maps a term to its postings offset, length, and document frequency
// in the segment file.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// Writer serialises TermEntry slices into new segment files.
type Writer struct {
	dataDir string
	now     func() time.Time
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir, now: time.Now}
}

// Write creates a new segment file containing entries, which must be sorted
// by term as returned by InvertedIndex.Snapshot. The file is written under a
// .tmp name and renamed once synced. It returns the segment file name.
func (w *Writer) Write(entries []index.TermEntry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Term >= entries[i].Term {
			return "", fmt.Errorf("entries not sorted at %q", entries[i].Term)
		}
	}
	createdAt := w.now()
	segmentName := fmt.Sprintf("seg_%d%s", createdAt.UnixNano(), FileExt)
	finalPath := filepath.Join(w.dataDir, segmentName)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	if err := writeSegment(f, entries, createdAt); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return segmentName, nil
}

func writeSegment(f *os.File, entries []index.TermEntry, createdAt time.Time) error {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.Write(headerBytes); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	postingsCRC := crc32.NewIEEE()
	postingsStart := int64(HeaderSize)
	offset := postingsStart
	dict := make([]DictEntry, 0, len(entries))
	docIDs := make(map[index.DocID]struct{})
	for _, entry := range entries {
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		if _, err := f.Write(postingsData); err != nil {
			return fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		postingsCRC.Write(postingsData)
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: offset - postingsStart,
			PostLen:    len(postingsData),
			DocFreq:    len(entry.Postings),
		})
		offset += int64(len(postingsData))
		for _, p := range entry.Postings {
			docIDs[p.DocID] = struct{}{}
		}
	}

	postingsSize := offset - postingsStart
	dictStart := offset
	dictData, err := json.Marshal(dict)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return fmt.Errorf("writing dictionary: %w", err)
	}
	dictSize := int64(len(dictData))

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(docIDs)))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(dictStart))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(dictSize))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(postingsSize))
	if _, err := f.Write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}

	header := SegmentHeader{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		TermCount:  uint32(len(entries)),
		DocCount:   uint32(len(docIDs)),
		CreatedAt:  createdAt.Unix(),
		DictOffset: dictStart,
		DictSize:   dictSize,
		PostOffset: postingsStart,
		PostSize:   postingsSize,
		PostCRC:    postingsCRC.Sum32(),
	}
	encodeHeader(headerBytes, header)
	if _, err := f.WriteAt(headerBytes, 0); err != nil {
		return fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing segment file: %w", err)
	}
	return nil
}

func encodeHeader(b []byte, h SegmentHeader) {
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint32(b[56:60], h.PostCRC)
}

func decodeHeader(b []byte) SegmentHeader {
	return SegmentHeader{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		TermCount:  binary.LittleEndian.Uint32(b[8:12]),
		DocCount:   binary.LittleEndian.Uint32(b[12:16]),
		DictOffset: int64(binary.LittleEndian.Uint64(b[16:24])),
		DictSize:   int64(binary.LittleEndian.Uint64(b[24:32])),
		PostOffset: int64(binary.LittleEndian.Uint64(b[32:40])),
		PostSize:   int64(binary.LittleEndian.Uint64(b[40:48])),
		CreatedAt:  int64(binary.LittleEndian.Uint64(b[48:56])),
		PostCRC:    binary.LittleEndian.Uint32(b[56:60]),
	}
}
