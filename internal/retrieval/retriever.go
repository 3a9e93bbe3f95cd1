// Package retrieval provides ranked passage lookup over a knowledge
// base of banking documents. Ranking quality is intentionally simple
// (term overlap); the interface is what the orchestrator depends on.
package retrieval

import "context"

// Result is one ranked passage.
type Result struct {
	Content string
	Source  string
	Score   float64
}

// Retriever returns the topK passages most relevant to query, best
// first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Result, error)
}
