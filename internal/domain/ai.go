package domain

// CompletionResult is what the AI collaborator returns for a prompt. Data is
// either the raw response text or, when the adapter already parsed it, a
// decoded JSON value (map[string]any or []any).
type CompletionResult struct {
	Success bool
	Data    any
	Error   string
}

// EmbeddingOptions selects the embedding model and vector size
type EmbeddingOptions struct {
	Model      string
	Dimensions int
}
