package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/careerrec/internal/ai"
	"github.com/xxxsen/careerrec/internal/model"
	appErr "github.com/xxxsen/careerrec/internal/pkg/errors"
	"github.com/xxxsen/careerrec/internal/rerank"
	"github.com/xxxsen/careerrec/internal/vectorindex"
)

const defaultTopK = 20

type RecommendState string

const (
	StateRanked   RecommendState = "ranked"
	StateUnranked RecommendState = "unranked"
	StateEmpty    RecommendState = "empty"
)

// Recommendation is the outcome of one role lookup. Unranked results are in vector order and
// carry the reason reranking was skipped in Warning.
type Recommendation struct {
	Role    string              `json:"role"`
	State   RecommendState      `json:"state"`
	Results []model.QueryResult `json:"results"`
	Warning string              `json:"warning,omitempty"`
}

func (r *Recommendation) Ranked() bool {
	return r.State == StateRanked
}

func (r *Recommendation) Empty() bool {
	return r.State == StateEmpty
}

type RecommendService struct {
	embedder   ai.IEmbedder
	index      vectorindex.Index
	reranker   rerank.Reranker
	categories []string
	topK       int
}

func NewRecommendService(embedder ai.IEmbedder, index vectorindex.Index, reranker rerank.Reranker, categories []string, topK int) *RecommendService {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &RecommendService{
		embedder:   embedder,
		index:      index,
		reranker:   reranker,
		categories: categories,
		topK:       topK,
	}
}

func (s *RecommendService) Categories() []string {
	return append([]string(nil), s.categories...)
}

func (s *RecommendService) Recommend(ctx context.Context, role string, topK int) (*Recommendation, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return nil, fmt.Errorf("role is required: %w", appErr.ErrInvalid)
	}
	if topK <= 0 {
		topK = s.topK
	}
	logger := logutil.GetLogger(ctx).With(zap.String("role", role), zap.Int("top_k", topK))
	vector, err := s.embedder.Embed(ctx, role, ai.TaskTypeQuery)
	if err != nil {
		logger.Error("embed role failed", zap.Error(err))
		return nil, fmt.Errorf("embed role: %w", err)
	}
	candidates, err := s.index.Query(ctx, vector, topK, true)
	if err != nil {
		logger.Error("query vector index failed", zap.Error(err))
		return nil, fmt.Errorf("query index: %w", err)
	}
	if len(candidates) == 0 {
		logger.Info("no matches for role")
		return &Recommendation{Role: role, State: StateEmpty, Results: []model.QueryResult{}}, nil
	}
	ranked, err := s.rerank(ctx, role, candidates, topK)
	if err != nil {
		logger.Warn("rerank failed, serving unranked results", zap.Error(err))
		return &Recommendation{
			Role:    role,
			State:   StateUnranked,
			Results: candidates,
			Warning: "Could not rerank results: " + err.Error(),
		}, nil
	}
	return &Recommendation{Role: role, State: StateRanked, Results: ranked}, nil
}

// Categorize groups the recommendation under the configured categories.
func (s *RecommendService) Categorize(ctx context.Context, rec *Recommendation) model.CategorizedResults {
	out, dropped := categorize(rec.Results, s.categories)
	if dropped > 0 {
		logutil.GetLogger(ctx).Debug("results without a known category dropped",
			zap.String("role", rec.Role), zap.Int("dropped", dropped))
	}
	return out
}

func (s *RecommendService) rerank(ctx context.Context, role string, candidates []model.QueryResult, topK int) ([]model.QueryResult, error) {
	docs := make([]rerank.Document, 0, len(candidates))
	for _, c := range candidates {
		docs = append(docs, rerank.Document{ID: c.ID, Text: RerankText(c.Metadata)})
	}
	reranked, err := s.reranker.Rerank(ctx, role, docs, topK)
	if err != nil {
		return nil, err
	}
	if len(reranked) == 0 {
		return nil, fmt.Errorf("reranker returned no documents")
	}
	out := make([]model.QueryResult, 0, len(reranked))
	for _, doc := range reranked {
		// topK is small, a linear scan is fine
		for _, c := range candidates {
			if c.ID == doc.ID {
				out = append(out, c)
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("reranker returned only unknown ids")
	}
	return out, nil
}

// RerankText renders metadata as "key: value" pairs joined by "; " in a fixed key order.
func RerankText(md model.Metadata) string {
	parts := []string{
		"title: " + md.Title,
		"description: " + md.Description,
		"roles: " + strings.Join(md.Roles, ", "),
		"url: " + md.URL,
		"category: " + md.Category,
	}
	return strings.Join(parts, "; ")
}
