package semanticmemory

// MemoryEntry is one stored, content-addressed unit of semantic memory.
type MemoryEntry struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  string         `json:"created_at"`
	SessionID  string         `json:"session_id,omitempty"`
	MemoryType string         `json:"memory_type"`
}

// StoreInput is the request shape for Store.
type StoreInput struct {
	Text       string
	Metadata   map[string]any
	SessionID  string
	MemoryType string // defaults to "conversation"
}

// SearchInput is the request shape for Search.
type SearchInput struct {
	Query      string
	K          int // defaults to 5
	MemoryType string
	SessionID  string
	MinScore   float64
}

// SearchHit decorates a MemoryEntry with its retrieval score and the
// method that produced it ("vector" or "keyword").
type SearchHit struct {
	MemoryEntry
	Score        float64 `json:"score"`
	SearchMethod string  `json:"search_method"`
}

// Stats is the response shape for the Stats operation.
type Stats struct {
	Total                  int            `json:"total"`
	ByType                 map[string]int `json:"by_type"`
	UniqueSessions         int            `json:"unique_sessions"`
	Oldest                 string         `json:"oldest,omitempty"`
	Newest                 string         `json:"newest,omitempty"`
	VectorSearchAvailable  bool           `json:"vector_search_available"`
}
