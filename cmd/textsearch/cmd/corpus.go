package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer/index"
)

var demoCorpus = []string{
	"Information retrieval is important for fast search",
	"Retrieval of information should be efficient",
	"Search engines use inverted index for retrieval",
}

// corpusFlags selects where documents are loaded from.
type corpusFlags struct {
	files []string
	dirs  []string
	lines []string
}

func (f *corpusFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.files, "file", nil, "File to index as one document (repeatable)")
	cmd.Flags().StringArrayVar(&f.dirs, "dir", nil, "Directory whose regular files are indexed, one document each (repeatable)")
	cmd.Flags().StringArrayVar(&f.lines, "lines", nil, "File whose non-empty lines are indexed as separate documents (repeatable)")
}

func (f *corpusFlags) empty() bool {
	return len(f.files) == 0 && len(f.dirs) == 0 && len(f.lines) == 0
}

// load stores every selected document in ix, numbering them from 1 in the
// order files, dirs, lines. It returns a label per document id.
func (f *corpusFlags) load(ix *indexer.Indexer) (map[index.DocID]string, error) {
	labels := make(map[index.DocID]string)
	next := index.DocID(1)
	add := func(label, text string) {
		ix.AddDocument(next, text)
		labels[next] = label
		next++
	}

	if f.empty() {
		for i, text := range demoCorpus {
			add(fmt.Sprintf("demo:%d", i+1), text)
		}
		return labels, nil
	}

	paths := append([]string(nil), f.files...)
	for _, dir := range f.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", dir, err)
		}
		var names []string
		for _, e := range entries {
			if e.Type().IsRegular() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading document %s: %w", path, err)
		}
		add(path, string(data))
	}

	for _, path := range f.lines {
		if err := readLines(path, func(n int, line string) {
			add(fmt.Sprintf("%s:%d", path, n), line)
		}); err != nil {
			return nil, err
		}
	}
	return labels, nil
}

func readLines(path string, fn func(n int, line string)) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		if line := strings.TrimSpace(sc.Text()); line != "" {
			fn(n, line)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}
