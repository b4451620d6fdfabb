package domain

type RetrievalSource string

const (
	SourceKeyword RetrievalSource = "keyword"
	SourceVector  RetrievalSource = "vector"
)

type SearchMode string

const (
	ModeKeyword  SearchMode = "keyword"
	ModeVector   SearchMode = "vector"
	ModeHybrid   SearchMode = "hybrid"
	ModeWeighted SearchMode = "weighted"
)

// RankedCandidate is one result from a single retrieval signal.
// Rank is the 0-based position in its source list at fusion time.
type RankedCandidate struct {
	FileID     string          `json:"file_id"`
	Filename   string          `json:"filename"`
	ChunkIndex int             `json:"chunk_index"`
	Text       string          `json:"text"`
	Score      float64         `json:"score"`
	Source     RetrievalSource `json:"source"`
	Rank       int             `json:"rank"`
}

// SourceRecord records which signal contributed to a fused result and where
// the chunk stood in that signal's list.
type SourceRecord struct {
	Source RetrievalSource `json:"source"`
	Rank   int             `json:"rank"`
	Score  float64         `json:"score"`
}

// FusedResult is the output of rank fusion. (FileID, ChunkIndex) identifies
// the chunk across lists. VectorScore is kept separately when the vector
// signal contributed, because raw fusion scores mean nothing to end users.
type FusedResult struct {
	FileID      string         `json:"file_id"`
	Filename    string         `json:"filename"`
	ChunkIndex  int            `json:"chunk_index"`
	Text        string         `json:"text"`
	FusedScore  float64        `json:"fused_score"`
	FusionRank  int            `json:"fusion_rank"`
	VectorScore *float64       `json:"vector_score,omitempty"`
	Sources     []SourceRecord `json:"sources"`
}

// QueryOptions are per-call retrieval settings. Constructed fresh per query,
// never mutated mid-pipeline.
type QueryOptions struct {
	TopK             int        `json:"top_k"`
	MinScore         float64    `json:"min_score"`
	MaxContextLength int        `json:"max_context_length"`
	Mode             SearchMode `json:"mode"`
	RRFConstant      int        `json:"rrf_constant"`
	DiversityPenalty float64    `json:"diversity_penalty"`
	KeywordWeight    float64    `json:"keyword_weight"`
	VectorWeight     float64    `json:"vector_weight"`
}

// Normalize fills zero values with pipeline defaults.
func (o QueryOptions) Normalize() QueryOptions {
	out := o
	if out.TopK <= 0 {
		out.TopK = 5
	}
	if out.MinScore <= 0 {
		out.MinScore = 0.3
	}
	if out.MaxContextLength <= 0 {
		out.MaxContextLength = 4000
	}
	if out.Mode == "" {
		out.Mode = ModeHybrid
	}
	if out.RRFConstant <= 0 {
		out.RRFConstant = 60
	}
	if out.DiversityPenalty <= 0 || out.DiversityPenalty > 1 {
		out.DiversityPenalty = 0.9
	}
	if out.KeywordWeight <= 0 && out.VectorWeight <= 0 {
		out.KeywordWeight = 0.5
		out.VectorWeight = 0.5
	}
	return out
}

// RetrievalMetadata distinguishes chunks from files so the generator does
// not conflate "five chunks" with "five files".
type RetrievalMetadata struct {
	ChunksUsed int        `json:"chunks_used"`
	FileCount  int        `json:"file_count"`
	Files      []string   `json:"files"`
	Mode       SearchMode `json:"mode"`
}

type Answer struct {
	Text      string            `json:"text"`
	Sources   []FusedResult     `json:"sources"`
	Retrieval RetrievalMetadata `json:"retrieval"`
}

// AnswerFragment is one element of a streaming answer. A fragment with
// Done set (or a non-nil Err) terminates the stream.
type AnswerFragment struct {
	Text string
	Done bool
	Err  error
}
