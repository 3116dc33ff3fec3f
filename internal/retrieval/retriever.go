// Package retrieval answers free-text queries with the most similar document
// chunks from an embedded vector index. Chunks are produced offline by an
// ingestion job; this package only reads them.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
	"github.com/sashabaranov/go-openai"

	"github.com/bankteller/teller-go/internal/llm"
)

// ErrUnavailable marks failures of the vector index or the embedding
// service. The retriever does not retry; that policy belongs to callers.
var ErrUnavailable = errors.New("retrieval unavailable")

// Chunk is one span of source-document text returned from the index,
// read-only, scoped to a single request.
type Chunk struct {
	Text     string
	Metadata map[string]string
}

// NewEmbeddingFunc bridges the OpenAI embeddings API into a chromem-go
// EmbeddingFunc. chromem normalizes vectors itself, so no manual
// normalization is needed.
func NewEmbeddingFunc(client llm.Client, model string) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(model),
		})
		if err != nil {
			return nil, fmt.Errorf("embed failed: %w", err)
		}
		if len(resp.Data) == 0 {
			return nil, errors.New("no embeddings returned")
		}
		return resp.Data[0].Embedding, nil
	}
}

// Retriever performs similarity search against one collection (the
// configured namespace) of a chromem database. Safe for concurrent use.
type Retriever struct {
	collection *chromem.Collection
	topK       int
}

// Open opens (or creates) the index at path and binds the retriever to the
// given namespace. An empty path keeps the index in memory, which is mainly
// useful for tests.
func Open(path, namespace string, topK int, embed chromem.EmbeddingFunc) (*Retriever, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection(namespace, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open namespace %q: %w", namespace, err)
	}

	if topK <= 0 {
		topK = 4
	}
	return &Retriever{collection: collection, topK: topK}, nil
}

// Add upserts a chunk into the namespace. The serving path never calls this;
// it exists for the external ingester and for tests.
func (r *Retriever) Add(ctx context.Context, id, text string, metadata map[string]string) error {
	err := r.collection.AddDocument(ctx, chromem.Document{
		ID:       id,
		Content:  text,
		Metadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Retrieve returns up to k chunks ordered by descending similarity to the
// query. k <= 0 selects the configured default.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Chunk, error) {
	if k <= 0 {
		k = r.topK
	}
	// chromem rejects queries asking for more results than stored documents.
	if n := r.collection.Count(); n < k {
		k = n
	}
	if k == 0 {
		return nil, nil
	}

	results, err := r.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, res := range results {
		chunks = append(chunks, Chunk{Text: res.Content, Metadata: res.Metadata})
	}
	return chunks, nil
}
