package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/theimaginaryfoundation/casebrief/brief"
	"github.com/theimaginaryfoundation/casebrief/brief/fileutils"
)

// File stores one JSON file per document under a directory. Writes are atomic renames, so a crashed
// run never leaves a half-written record behind.
type File struct {
	dir string
	mu  sync.Mutex
}

func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("file cache: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file cache: %w", err)
	}
	return &File{dir: dir}, nil
}

// Path is where the record for docID lives. Document ids are path-escaped so any id maps to one file.
func (f *File) Path(docID string) string {
	return filepath.Join(f.dir, url.PathEscape(docID)+".json")
}

func (f *File) Get(ctx context.Context, docID string) (brief.Record, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read(docID)
}

func (f *File) PutSummary(ctx context.Context, docID, summary string) error {
	return f.update(docID, func(rec *brief.Record) {
		rec.Summary = summary
	})
}

func (f *File) PutQuery(ctx context.Context, docID, query, modifiedQuery string) error {
	return f.update(docID, func(rec *brief.Record) {
		rec.Query = query
		rec.ModifiedQuery = modifiedQuery
	})
}

func (f *File) read(docID string) (brief.Record, bool, error) {
	var rec brief.Record
	err := fileutils.ReadJSONFile(f.Path(docID), &rec)
	if errors.Is(err, fs.ErrNotExist) {
		return brief.Record{}, false, nil
	}
	if err != nil {
		return brief.Record{}, false, err
	}
	return rec, true, nil
}

func (f *File) update(docID string, apply func(*brief.Record)) error {
	if docID == "" {
		return errors.New("file cache: empty doc id")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, _, err := f.read(docID)
	if err != nil {
		return err
	}
	rec.DocID = docID
	apply(&rec)
	return fileutils.WriteJSONFileAtomic(f.Path(docID), rec, true)
}
