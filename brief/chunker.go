package brief

import "strings"

// ParagraphSeparator splits documents into paragraphs and rejoins chunk text.
const ParagraphSeparator = "\n"

const (
	DefaultMaxCharsPerChunk = 3000
	DefaultMaxChunks        = 10
)

// Chunk is a bounded, contiguous slice of a document's text. Chunks of one document are
// non-overlapping and numbered from 0 in document order.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// ChunkText splits text on paragraph boundaries and greedily packs paragraphs into chunks.
//
// A paragraph joins the current chunk only while the chunk, a separator and the paragraph together
// stay strictly under maxCharsPerChunk. A single paragraph longer than maxCharsPerChunk becomes its own
// oversized chunk. Whitespace-only paragraphs are dropped; all other paragraphs are kept byte for byte.
// When more than maxChunks chunks result, consecutive chunks are coalesced (see CoalesceChunks).
// maxChunks <= 0 disables coalescing.
func ChunkText(text string, maxCharsPerChunk, maxChunks int) []Chunk {
	var chunks []Chunk
	var buf strings.Builder
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Text: buf.String()})
		buf.Reset()
	}

	for _, para := range strings.Split(text, ParagraphSeparator) {
		if strings.TrimSpace(para) == "" {
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(ParagraphSeparator)+len(para) >= maxCharsPerChunk {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString(ParagraphSeparator)
		}
		buf.WriteString(para)
	}
	flush()

	return CoalesceChunks(chunks, maxChunks)
}

// CoalesceChunks merges consecutive groups of ceil(len(chunks)/maxChunks) chunks so that at most
// maxChunks remain. Indices are renumbered.
func CoalesceChunks(chunks []Chunk, maxChunks int) []Chunk {
	if maxChunks <= 0 || len(chunks) <= maxChunks {
		return chunks
	}
	groupSize := (len(chunks) + maxChunks - 1) / maxChunks

	out := make([]Chunk, 0, maxChunks)
	parts := make([]string, 0, groupSize)
	for start := 0; start < len(chunks); start += groupSize {
		end := min(start+groupSize, len(chunks))
		parts = parts[:0]
		for _, ch := range chunks[start:end] {
			parts = append(parts, ch.Text)
		}
		out = append(out, Chunk{Index: len(out), Text: strings.Join(parts, ParagraphSeparator)})
	}
	return out
}

// JoinChunks restores the text the chunks were cut from, minus any dropped blank paragraphs.
func JoinChunks(chunks []Chunk) string {
	parts := make([]string, len(chunks))
	for i, ch := range chunks {
		parts[i] = ch.Text
	}
	return strings.Join(parts, ParagraphSeparator)
}
