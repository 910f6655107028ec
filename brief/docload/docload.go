// Package docload reads case documents from disk as plain text.
package docload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupported is returned for file types that cannot be read as a document.
var ErrUnsupported = errors.New("unsupported document type")

// Document is one case: an id and its full text.
type Document struct {
	DocID string
	Path  string
	Text  string
}

// jsonDocument accepts the field names search results and scraped cases come with.
type jsonDocument struct {
	DocID    json.RawMessage `json:"doc_id"`
	DocIDAlt json.RawMessage `json:"docid"`
	TID      json.RawMessage `json:"tid"`
	Text     string          `json:"text"`
	CleanDoc string          `json:"clean_doc"`
	FullText string          `json:"full_text"`
}

var supportedExts = map[string]bool{".txt": true, ".md": true, ".json": true, ".pdf": true}

// Supported reports whether path has an extension Load can read.
func Supported(path string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(path))]
}

// Load reads path into a Document. The id comes from the JSON body when present, otherwise from the file name.
func Load(path string) (Document, error) {
	doc := Document{DocID: DocIDFromPath(path), Path: path}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		var b []byte
		b, err = os.ReadFile(path)
		doc.Text = string(b)
	case ".json":
		err = loadJSON(path, &doc)
	case ".pdf":
		doc.Text, err = ExtractPDFText(path)
	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	if err != nil {
		return Document{}, fmt.Errorf("load %s: %w", path, err)
	}
	doc.Text = normalizeNewlines(doc.Text)
	return doc, nil
}

func loadJSON(path string, doc *Document) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var jd jsonDocument
	if err := json.Unmarshal(b, &jd); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	for _, raw := range []json.RawMessage{jd.DocID, jd.DocIDAlt, jd.TID} {
		if id := rawID(raw); id != "" {
			doc.DocID = id
			break
		}
	}
	for _, text := range []string{jd.Text, jd.CleanDoc, jd.FullText} {
		if strings.TrimSpace(text) != "" {
			doc.Text = text
			break
		}
	}
	return nil
}

// rawID accepts ids encoded as JSON strings or numbers.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

// ExtractPDFText returns the plain text of every page of a PDF.
func ExtractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	b, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract plain text: %w", err)
	}
	if _, err := buf.ReadFrom(b); err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}
	return buf.String(), nil
}

// DocIDFromPath is the file name without directory or extension.
func DocIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Collect returns the loadable documents under inPath in sorted order. A file path is returned as-is when
// its type is supported. Summary outputs and index directories are skipped.
func Collect(inPath string) ([]string, error) {
	fi, err := os.Stat(inPath)
	if err != nil {
		return nil, fmt.Errorf("stat -in: %w", err)
	}
	if !fi.IsDir() {
		if !Supported(inPath) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, inPath)
		}
		return []string{inPath}, nil
	}

	var files []string
	err = filepath.WalkDir(inPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != inPath && (strings.EqualFold(name, "summaries") || strings.EqualFold(name, "index")) {
				return fs.SkipDir
			}
			return nil
		}
		if !Supported(path) || strings.HasSuffix(strings.ToLower(path), ".summary.json") {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk input dir: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
