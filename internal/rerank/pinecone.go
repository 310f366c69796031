package rerank

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"

	"github.com/xxxsen/careerrec/internal/config"
)

const (
	defaultPineconeRerankModel = "bge-reranker-v2-m3"
	rerankField                = "reranking_field"
)

type pineconeConfig struct {
	APIKey  string `json:"api_key"`
	Host    string `json:"host"`
	Model   string `json:"model"`
	Timeout int    `json:"timeout"`
}

// pineconeInference is the part of *pinecone.InferenceService the reranker uses.
type pineconeInference interface {
	Rerank(ctx context.Context, in *pinecone.RerankRequest) (*pinecone.RerankResponse, error)
}

type PineconeReranker struct {
	inference pineconeInference
	model     string
	timeout   time.Duration
}

// NewPineconeReranker builds a reranker on the hosted inference API. An empty host uses the SDK default.
func NewPineconeReranker(host, apiKey, model string, timeout time.Duration) (*PineconeReranker, error) {
	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey, Host: host})
	if err != nil {
		return nil, fmt.Errorf("init pinecone client: %w", err)
	}
	return newPineconeReranker(pc.Inference, model, timeout), nil
}

func newPineconeReranker(inference pineconeInference, model string, timeout time.Duration) *PineconeReranker {
	if model == "" {
		model = defaultPineconeRerankModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PineconeReranker{inference: inference, model: model, timeout: timeout}
}

func (p *PineconeReranker) Rerank(ctx context.Context, query string, docs []Document, topN int) ([]Document, error) {
	if len(docs) == 0 {
		return []Document{}, nil
	}
	if topN <= 0 || topN > len(docs) {
		topN = len(docs)
	}
	documents := make([]pinecone.Document, 0, len(docs))
	for _, d := range docs {
		documents = append(documents, pinecone.Document{"id": d.ID, rerankField: d.Text})
	}
	rankFields := []string{rerankField}
	returnDocuments := true
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	resp, err := p.inference.Rerank(ctx, &pinecone.RerankRequest{
		Model:           p.model,
		Query:           query,
		Documents:       documents,
		RankFields:      &rankFields,
		ReturnDocuments: &returnDocuments,
		TopN:            &topN,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone rerank: %w", err)
	}
	ranked := make([]Document, 0, len(resp.Data))
	for _, item := range resp.Data {
		doc := Document{
			ID:    documentField(item.Document, "id"),
			Text:  documentField(item.Document, rerankField),
			Score: item.Score,
		}
		if doc.ID == "" {
			if item.Index < 0 || item.Index >= len(docs) {
				continue
			}
			doc.ID = docs[item.Index].ID
			doc.Text = docs[item.Index].Text
		}
		ranked = append(ranked, doc)
	}
	return ranked, nil
}

func documentField(doc *pinecone.Document, key string) string {
	if doc == nil {
		return ""
	}
	if v, ok := (*doc)[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

func createPineconeReranker(args interface{}) (Reranker, error) {
	cfg := &pineconeConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := config.SecretOrEnv(cfg.APIKey, "PINECONE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("pinecone api key is required")
	}
	return NewPineconeReranker(strings.TrimSpace(cfg.Host), apiKey, strings.TrimSpace(cfg.Model), time.Duration(cfg.Timeout)*time.Second)
}

func init() {
	Register("pinecone", createPineconeReranker)
}
