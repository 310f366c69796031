package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xxxsen/careerrec/internal/ai"
	"github.com/xxxsen/careerrec/internal/linkpreview"
	"github.com/xxxsen/careerrec/internal/model"
	"github.com/xxxsen/careerrec/internal/rerank"
	"github.com/xxxsen/careerrec/internal/vectorindex"
)

type recordingEmbedder struct {
	texts  []string
	failOn string
}

func (e *recordingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if e.failOn != "" && text == e.failOn {
		return nil, errors.New("embedding service down")
	}
	e.texts = append(e.texts, text)
	return []float32{float32(len(text)), 1}, nil
}

func (e *recordingEmbedder) ModelName() string {
	return "recording"
}

type recordingIndex struct {
	batches [][]vectorindex.Record
	matches []model.QueryResult
	failAt  int
	queries int
}

func (i *recordingIndex) Upsert(ctx context.Context, records []vectorindex.Record) error {
	if i.failAt > 0 && len(i.batches)+1 == i.failAt {
		return errors.New("index unavailable")
	}
	i.batches = append(i.batches, records)
	return nil
}

func (i *recordingIndex) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]model.QueryResult, error) {
	i.queries++
	out := append([]model.QueryResult(nil), i.matches...)
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

type stubReranker struct {
	calls int
	fn    func(docs []rerank.Document) ([]rerank.Document, error)
}

func (r *stubReranker) Rerank(ctx context.Context, query string, docs []rerank.Document, topN int) ([]rerank.Document, error) {
	r.calls++
	return r.fn(docs)
}

type scriptedGenerator struct {
	mu      sync.Mutex
	calls   int
	errs    []error
	payload generatedEntity
	prompts []string
}

func (g *scriptedGenerator) GenerateJSON(ctx context.Context, req *ai.GenerateRequest, out interface{}) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompts = append(g.prompts, req.Prompt)
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		if err != nil {
			return err
		}
	}
	*(out.(*generatedEntity)) = g.payload
	return nil
}

type stubPreviewer struct {
	previews map[string]*linkpreview.Preview
}

func (p *stubPreviewer) Preview(ctx context.Context, url string) (*linkpreview.Preview, error) {
	if v, ok := p.previews[url]; ok {
		return v, nil
	}
	return nil, errors.New("preview not found")
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func rateLimited() error {
	return &ai.RateLimitError{Provider: "stub", StatusCode: 429, Err: errors.New("too many requests")}
}
