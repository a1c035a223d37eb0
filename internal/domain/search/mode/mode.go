package mode

// Mode is the per-shard search strategy.
type Mode string

// Search mode constants.
const (
	// Keyword runs BM25 full-text search on every shard.
	Keyword Mode = "keyword"
	// Semantic embeds the query once and runs KNN on every shard.
	Semantic Mode = "semantic"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Keyword || m == Semantic
}
