package extract

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadDir loads every .txt file under root as a Document. Files are the
// pdftotext convention: one file per roll document, pages separated by form
// feeds. Paths are returned in lexical order so batch output is stable.
func ReadDir(root string) ([]Document, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".txt") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)

	docs := make([]Document, 0, len(paths))
	for _, path := range paths {
		doc, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ReadFile loads one pre-extracted document.
func ReadFile(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Document{Path: path, Pages: splitPages(string(raw))}, nil
}

func splitPages(text string) [][]string {
	rawPages := strings.Split(text, "\f")
	pages := make([][]string, 0, len(rawPages))
	for _, rawPage := range rawPages {
		lines := strings.Split(strings.ReplaceAll(rawPage, "\r\n", "\n"), "\n")
		pages = append(pages, lines)
	}
	// A trailing form feed leaves an empty final page.
	if n := len(pages); n > 0 && len(pages[n-1]) == 1 && pages[n-1][0] == "" {
		pages = pages[:n-1]
	}
	return pages
}
