package brief

import (
	"strings"

	"github.com/theimaginaryfoundation/casebrief/brief/fileutils"
)

// DocumentSummary is the per-document artifact written by batch runs.
type DocumentSummary struct {
	DocID      string `json:"doc_id"`
	SourcePath string `json:"source_path,omitempty"`
	Summary    string `json:"summary"`
	ChunkCount int    `json:"chunk_count"`
	SourceSize int    `json:"source_chars"`
}

// IndexRecord is one row of index.jsonl, mapping a document to its summary file.
type IndexRecord struct {
	DocID       string `json:"doc_id"`
	SourcePath  string `json:"source_path,omitempty"`
	SummaryPath string `json:"summary_path"`
	Summary     string `json:"summary"`
	ChunkCount  int    `json:"chunk_count"`
}

// BuildIndexRecord creates a stable index row for a summary artifact. Summaries longer than
// maxSummaryChars are shortened; 0 keeps them whole.
func BuildIndexRecord(sum DocumentSummary, summaryPath string, maxSummaryChars int) IndexRecord {
	return IndexRecord{
		DocID:       strings.TrimSpace(sum.DocID),
		SourcePath:  sum.SourcePath,
		SummaryPath: summaryPath,
		Summary:     fileutils.Truncate(fileutils.SanitizeNewlines(sum.Summary), maxSummaryChars),
		ChunkCount:  sum.ChunkCount,
	}
}
