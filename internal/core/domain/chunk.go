package domain

// Chunk is a contiguous slice of a document's normalized text, the unit of
// retrieval. Chunks are created once at ingestion time and immutable after.
type Chunk struct {
	Text           string `json:"text"`
	Index          int    `json:"index"`
	CharCount      int    `json:"char_count"`
	WordCount      int    `json:"word_count"`
	FileID         string `json:"file_id"`
	Filename       string `json:"filename"`
	StartParagraph int    `json:"start_paragraph"`
	EndParagraph   int    `json:"end_paragraph"`
}

// EmbeddedChunk pairs a chunk with its vector. A nil vector means the
// embedding provider could not produce one; such chunks are stored but
// not indexed for vector search.
type EmbeddedChunk struct {
	Chunk
	Vector []float32
}
