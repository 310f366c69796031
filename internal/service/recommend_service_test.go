package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/careerrec/internal/ai"
	"github.com/xxxsen/careerrec/internal/model"
	appErr "github.com/xxxsen/careerrec/internal/pkg/errors"
	"github.com/xxxsen/careerrec/internal/rerank"
	"github.com/xxxsen/careerrec/internal/vectorindex"
)

func candidates() []model.QueryResult {
	return []model.QueryResult{
		{ID: "1", Score: 0.9, Metadata: model.Metadata{Title: "SQL for interviews", Category: model.CategoryInterviewGuide, Roles: []string{"Data Analyst"}}},
		{ID: "2", Score: 0.8, Metadata: model.Metadata{Title: "ML roadmap", Category: model.CategoryLearningPath, Roles: []string{"Machine Learning"}}},
		{ID: "3", Score: 0.7, Metadata: model.Metadata{Title: "Stats blog", Category: model.CategoryBlog}},
	}
}

func reverseReranker() *stubReranker {
	return &stubReranker{fn: func(docs []rerank.Document) ([]rerank.Document, error) {
		out := make([]rerank.Document, 0, len(docs))
		for i := len(docs) - 1; i >= 0; i-- {
			// rerank-supplied text must never leak into results
			out = append(out, rerank.Document{ID: docs[i].ID, Text: "ignored"})
		}
		return out, nil
	}}
}

func TestRecommend_EmptyMatches(t *testing.T) {
	rr := reverseReranker()
	svc := NewRecommendService(&recordingEmbedder{}, &recordingIndex{}, rr, model.DefaultCategories, 0)
	rec, err := svc.Recommend(context.Background(), "Data Analyst", 5)
	require.NoError(t, err)
	require.True(t, rec.Empty())
	require.Empty(t, rec.Results)
	require.Equal(t, 0, rr.calls)
}

func TestRecommend_RerankedKeepsOriginalMetadata(t *testing.T) {
	idx := &recordingIndex{matches: candidates()}
	svc := NewRecommendService(&recordingEmbedder{}, idx, reverseReranker(), model.DefaultCategories, 0)
	rec, err := svc.Recommend(context.Background(), "Data Analyst", 5)
	require.NoError(t, err)
	require.True(t, rec.Ranked())
	require.Empty(t, rec.Warning)
	require.Len(t, rec.Results, 3)
	require.Equal(t, []string{"3", "2", "1"}, resultIDs(rec.Results))
	orig := candidates()
	require.Equal(t, orig[2], rec.Results[0])
	require.Equal(t, orig[0], rec.Results[2])
}

func TestRecommend_RerankSkipsUnknownIDs(t *testing.T) {
	idx := &recordingIndex{matches: candidates()}
	rr := &stubReranker{fn: func(docs []rerank.Document) ([]rerank.Document, error) {
		return []rerank.Document{{ID: "2"}, {ID: "zzz"}, {ID: "1"}}, nil
	}}
	rec, err := NewRecommendService(&recordingEmbedder{}, idx, rr, model.DefaultCategories, 0).Recommend(context.Background(), "x", 3)
	require.NoError(t, err)
	require.True(t, rec.Ranked())
	require.Equal(t, []string{"2", "1"}, resultIDs(rec.Results))
}

func TestRecommend_RerankFailureFallsBackUnranked(t *testing.T) {
	cases := map[string]func(docs []rerank.Document) ([]rerank.Document, error){
		"error": func(docs []rerank.Document) ([]rerank.Document, error) {
			return nil, errors.New("rerank service down")
		},
		"empty": func(docs []rerank.Document) ([]rerank.Document, error) {
			return []rerank.Document{}, nil
		},
		"unknown ids": func(docs []rerank.Document) ([]rerank.Document, error) {
			return []rerank.Document{{ID: "nope"}}, nil
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			idx := &recordingIndex{matches: candidates()}
			svc := NewRecommendService(&recordingEmbedder{}, idx, &stubReranker{fn: fn}, model.DefaultCategories, 0)
			rec, err := svc.Recommend(context.Background(), "Data Analyst", 5)
			require.NoError(t, err)
			require.Equal(t, StateUnranked, rec.State)
			require.NotEmpty(t, rec.Warning)
			require.Equal(t, candidates(), rec.Results)
		})
	}
}

func TestRecommend_DisabledRerankerIsUnranked(t *testing.T) {
	r, err := rerank.New(rerankNone())
	require.NoError(t, err)
	idx := &recordingIndex{matches: candidates()}
	rec, err := NewRecommendService(&recordingEmbedder{}, idx, r, model.DefaultCategories, 0).Recommend(context.Background(), "x", 0)
	require.NoError(t, err)
	require.Equal(t, StateUnranked, rec.State)
}

func TestRecommend_Errors(t *testing.T) {
	svc := NewRecommendService(&recordingEmbedder{failOn: "Data Analyst"}, &recordingIndex{}, reverseReranker(), model.DefaultCategories, 0)
	_, err := svc.Recommend(context.Background(), "  ", 5)
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = svc.Recommend(context.Background(), "Data Analyst", 5)
	require.Error(t, err)
}

func TestRecommend_TwoResourceExample(t *testing.T) {
	idx := &recordingIndex{matches: []model.QueryResult{
		{ID: "2", Metadata: model.Metadata{Title: "ML roadmap", Category: model.CategoryLearningPath, Roles: []string{"Machine Learning"}}},
		{ID: "1", Metadata: model.Metadata{Title: "SQL for interviews", Category: model.CategoryInterviewGuide, Roles: []string{"Data Analyst"}}},
	}}
	onlyFirst := &stubReranker{fn: func(docs []rerank.Document) ([]rerank.Document, error) {
		return []rerank.Document{{ID: "1"}}, nil
	}}
	svc := NewRecommendService(&recordingEmbedder{}, idx, onlyFirst, model.DefaultCategories, 0)
	rec, err := svc.Recommend(context.Background(), "Data Analyst", 2)
	require.NoError(t, err)

	got := svc.Categorize(context.Background(), rec)
	require.Equal(t, model.CategorizedResults{
		model.CategoryInterviewGuide: {{Title: "SQL for interviews", Description: "No description", URL: "#", Roles: []string{"Data Analyst"}}},
		model.CategoryLearningPath:   {},
		model.CategoryBlog:           {},
	}, got)
}

func TestIngestThenRecommend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	emb := ai.NewHashEmbedder(32)
	idx := vectorindex.NewMemoryIndex()
	resources := sampleResources(5)
	_, err := NewIngestService(emb, idx, 2).Ingest(ctx, resources, IngestOptions{})
	require.NoError(t, err)

	failing := &stubReranker{fn: func(docs []rerank.Document) ([]rerank.Document, error) {
		return nil, errors.New("down")
	}}
	svc := NewRecommendService(emb, idx, failing, model.DefaultCategories, 0)
	rec, err := svc.Recommend(ctx, resources[3].Title, 1)
	require.NoError(t, err)
	require.Len(t, rec.Results, 1)
	require.Equal(t, resources[3].ID, rec.Results[0].ID)
}

func TestRerankText_FixedKeyOrder(t *testing.T) {
	text := RerankText(model.Metadata{
		Title:       "SQL",
		Description: "Joins",
		Roles:       []string{"Data Analyst", "Data Engineer"},
		URL:         "https://x",
		Category:    "blog",
	})
	require.Equal(t, "title: SQL; description: Joins; roles: Data Analyst, Data Engineer; url: https://x; category: blog", text)
}

func resultIDs(results []model.QueryResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids
}
