package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/xxxsen/careerrec/internal/model"
)

// MemoryIndex keeps records in process and scores them by cosine similarity.
type MemoryIndex struct {
	mu      sync.RWMutex
	records []Record
	pos     map[string]int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{pos: make(map[string]int)}
}

func (m *MemoryIndex) Upsert(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("record id is required")
		}
		rec.Values = append([]float32(nil), rec.Values...)
		if idx, ok := m.pos[rec.ID]; ok {
			m.records[idx] = rec
			continue
		}
		m.pos[rec.ID] = len(m.records)
		m.records = append(m.records, rec)
	}
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]model.QueryResult, error) {
	if topK <= 0 {
		return []model.QueryResult{}, nil
	}
	m.mu.RLock()
	results := make([]model.QueryResult, 0, len(m.records))
	for _, rec := range m.records {
		item := model.QueryResult{ID: rec.ID, Score: cosineSimilarity(vector, rec.Values)}
		if includeMetadata {
			item.Metadata = rec.Metadata
		}
		results = append(results, item)
	}
	m.mu.RUnlock()
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func createMemoryIndex(args interface{}, deps Deps) (Index, error) {
	return NewMemoryIndex(), nil
}

func init() {
	Register("memory", createMemoryIndex)
}
