package recall

import "context"

// #region embedder-interface

// Embedder abstracts the optional embeddings capability.
type Embedder interface {
	Embed(ctx context.Context, purpose string, inputs []string) ([][]float32, error)
}

// EmbedPurpose is the purpose tag sent with recall embedding requests.
const EmbedPurpose = "recall"

// #endregion embedder-interface

// #region config
// Config holds limits for the recall gate.
type Config struct {
	MinLineRunes    int     // lines shorter than this never qualify
	MaxKeywords     int     // 1..4
	RerankThreshold float32 // min cosine similarity for an embedding hit
	ScanLimit       int     // max user lines examined, newest first
}

// DefaultConfig returns sensible defaults for recall gating.
func DefaultConfig() Config {
	return Config{
		MinLineRunes:    4,
		MaxKeywords:     4,
		RerankThreshold: 0.75,
		ScanLimit:       50,
	}
}

// #endregion config

// #region result

// Via records how a recalled line was found.
type Via string

const (
	ViaNone      Via = ""
	ViaKeyword   Via = "keyword"
	ViaEmbedding Via = "embedding"
	ViaFallback  Via = "fallback"
)

// Result captures the outcome of one recall attempt. Found is false when the
// text is not a recall question or nothing qualified.
type Result struct {
	Triggered bool     `json:"triggered"`
	Found     bool     `json:"found"`
	Keywords  []string `json:"keywords,omitempty"`
	Line      string   `json:"line,omitempty"`
	Via       Via      `json:"via,omitempty"`
	Reason    string   `json:"reason"`
}

// #endregion result
