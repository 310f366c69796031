package rerank

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/careerrec/internal/config"
)

type fakeInference struct {
	req  *pinecone.RerankRequest
	resp *pinecone.RerankResponse
	err  error
}

func (f *fakeInference) Rerank(ctx context.Context, in *pinecone.RerankRequest) (*pinecone.RerankResponse, error) {
	f.req = in
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestPineconeReranker_Rerank(t *testing.T) {
	docB := pinecone.Document{"id": "b", rerankField: "title: B"}
	docA := pinecone.Document{"id": "a", rerankField: "title: A"}
	inf := &fakeInference{resp: &pinecone.RerankResponse{Data: []pinecone.RankedDocument{
		{Index: 1, Score: 0.8, Document: &docB},
		{Index: 0, Score: 0.1, Document: &docA},
	}}}

	r := newPineconeReranker(inf, "", time.Second)
	out, err := r.Rerank(context.Background(), "Data Analyst", []Document{{ID: "a", Text: "title: A"}, {ID: "b", Text: "title: B"}}, 5)
	require.NoError(t, err)

	require.Equal(t, defaultPineconeRerankModel, inf.req.Model)
	require.Equal(t, "Data Analyst", inf.req.Query)
	require.Equal(t, []string{rerankField}, *inf.req.RankFields)
	require.True(t, *inf.req.ReturnDocuments)
	require.Equal(t, 2, *inf.req.TopN)
	require.Len(t, inf.req.Documents, 2)

	require.Len(t, out, 2)
	require.Equal(t, "b", out[0].ID)
	require.Equal(t, "title: B", out[0].Text)
	require.Equal(t, "a", out[1].ID)
	require.InDelta(t, 0.8, out[0].Score, 1e-6)
}

func TestPineconeReranker_FallsBackToIndex(t *testing.T) {
	inf := &fakeInference{resp: &pinecone.RerankResponse{Data: []pinecone.RankedDocument{
		{Index: 1, Score: 0.5},
		{Index: 7, Score: 0.2},
	}}}

	r := newPineconeReranker(inf, "custom", time.Second)
	out, err := r.Rerank(context.Background(), "q", []Document{{ID: "a"}, {ID: "b", Text: "B"}}, 2)
	require.NoError(t, err)
	require.Equal(t, "custom", inf.req.Model)
	require.Len(t, out, 1)
	require.Equal(t, "b", out[0].ID)
	require.Equal(t, "B", out[0].Text)
}

func TestPineconeReranker_Error(t *testing.T) {
	boom := errors.New("service unavailable")
	r := newPineconeReranker(&fakeInference{err: boom}, "", time.Second)
	_, err := r.Rerank(context.Background(), "q", []Document{{ID: "a"}}, 1)
	require.ErrorIs(t, err, boom)

	out, err := r.Rerank(context.Background(), "q", nil, 1)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestNew(t *testing.T) {
	r, err := New(config.BackendConfig{})
	require.NoError(t, err)
	_, err = r.Rerank(context.Background(), "q", []Document{{ID: "a"}}, 1)
	require.ErrorIs(t, err, ErrDisabled)

	t.Setenv("PINECONE_API_KEY", "")
	_, err = New(config.BackendConfig{Type: "pinecone"})
	require.Error(t, err)

	t.Setenv("PINECONE_API_KEY", "env-key")
	r, err = New(config.BackendConfig{Type: "pinecone", Data: map[string]interface{}{"model": "pinecone-rerank-v0"}})
	require.NoError(t, err)
	require.IsType(t, &PineconeReranker{}, r)
	require.Equal(t, "pinecone-rerank-v0", r.(*PineconeReranker).model)

	_, err = New(config.BackendConfig{Type: "cohere"})
	require.Error(t, err)
}
