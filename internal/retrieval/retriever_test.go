package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// testEmbedding maps known texts onto fixed unit vectors so similarity
// ordering is deterministic without a network call.
func testEmbedding(vectors map[string][]float32) func(ctx context.Context, text string) ([]float32, error) {
	return func(ctx context.Context, text string) ([]float32, error) {
		if v, ok := vectors[text]; ok {
			return v, nil
		}
		return []float32{1, 0, 0}, nil
	}
}

func TestRetriever_OrdersByDescendingSimilarity(t *testing.T) {
	vectors := map[string][]float32{
		"accounts can be opened online": {1, 0, 0},
		"transfers settle in one day":   {0.8, 0.6, 0},
		"branch hours are 9 to 5":       {0, 0, 1},
		"how do I open an account":      {1, 0, 0},
	}

	r, err := Open("", "banking", 4, testEmbedding(vectors))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.Add(ctx, "1", "accounts can be opened online", map[string]string{"source": "faq"}))
	require.NoError(t, r.Add(ctx, "2", "transfers settle in one day", nil))
	require.NoError(t, r.Add(ctx, "3", "branch hours are 9 to 5", nil))

	chunks, err := r.Retrieve(ctx, "how do I open an account", 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, "accounts can be opened online", chunks[0].Text)
	require.Equal(t, "transfers settle in one day", chunks[1].Text)
	require.Equal(t, "faq", chunks[0].Metadata["source"])
}

func TestRetriever_EmptyIndexReturnsNoChunks(t *testing.T) {
	r, err := Open("", "empty", 4, testEmbedding(nil))
	require.NoError(t, err)

	chunks, err := r.Retrieve(context.Background(), "anything", 4)
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestRetriever_ClampsKToStoredDocuments(t *testing.T) {
	r, err := Open("", "small", 4, testEmbedding(nil))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.Add(ctx, "1", "only document", nil))

	chunks, err := r.Retrieve(ctx, "query", 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestRetriever_EmbeddingFailureIsUnavailable(t *testing.T) {
	r, err := Open("", "broken", 4, func(ctx context.Context, text string) ([]float32, error) {
		return nil, context.DeadlineExceeded
	})
	require.NoError(t, err)

	err = r.Add(context.Background(), "1", "doc", nil)
	require.ErrorIs(t, err, ErrUnavailable)
}
