package vectorindex

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xxxsen/careerrec/internal/config"
	"github.com/xxxsen/careerrec/internal/model"
)

type pineconeConfig struct {
	Host      string `json:"host"`
	APIKey    string `json:"api_key"`
	Namespace string `json:"namespace"`
	Timeout   int    `json:"timeout"`
}

// pineconeDataPlane is the part of *pinecone.IndexConnection the index uses.
type pineconeDataPlane interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
}

// PineconeIndex talks to the data plane of one serverless index.
type PineconeIndex struct {
	conn    pineconeDataPlane
	timeout time.Duration
}

func NewPineconeIndex(host, apiKey, namespace string, timeout time.Duration) (*PineconeIndex, error) {
	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("init pinecone client: %w", err)
	}
	host = strings.TrimPrefix(strings.TrimRight(strings.TrimSpace(host), "/"), "https://")
	conn, err := pc.Index(pinecone.NewIndexConnParams{Host: host, Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("connect pinecone index %s: %w", host, err)
	}
	return newPineconeIndex(conn, timeout), nil
}

func newPineconeIndex(conn pineconeDataPlane, timeout time.Duration) *PineconeIndex {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PineconeIndex{conn: conn, timeout: timeout}
}

func (p *PineconeIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	records = dedupeRecords(records)
	vectors := make([]*pinecone.Vector, 0, len(records))
	for _, rec := range records {
		values := rec.Values
		vectors = append(vectors, &pinecone.Vector{
			Id:       rec.ID,
			Values:   &values,
			Metadata: metadataToStruct(rec.Metadata),
		})
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if _, err := p.conn.UpsertVectors(ctx, vectors); err != nil {
		return fmt.Errorf("pinecone upsert: %w", err)
	}
	return nil
}

func (p *PineconeIndex) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]model.QueryResult, error) {
	if topK <= 0 {
		return []model.QueryResult{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	resp, err := p.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: includeMetadata,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone query: %w", err)
	}
	results := make([]model.QueryResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		results = append(results, model.QueryResult{
			ID:       m.Vector.Id,
			Score:    m.Score,
			Metadata: metadataFromStruct(m.Vector.Metadata),
		})
	}
	return results, nil
}

func metadataToStruct(md model.Metadata) *structpb.Struct {
	roles := make([]*structpb.Value, 0, len(md.Roles))
	for _, r := range md.Roles {
		roles = append(roles, structpb.NewStringValue(r))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"title":       structpb.NewStringValue(md.Title),
		"description": structpb.NewStringValue(md.Description),
		"roles":       structpb.NewListValue(&structpb.ListValue{Values: roles}),
		"url":         structpb.NewStringValue(md.URL),
		"category":    structpb.NewStringValue(md.Category),
	}}
}

// metadataFromStruct accepts roles either as a list or as a comma separated string,
// since older records were written with the latter.
func metadataFromStruct(s *structpb.Struct) model.Metadata {
	fields := s.GetFields()
	md := model.Metadata{
		Title:       fields["title"].GetStringValue(),
		Description: fields["description"].GetStringValue(),
		URL:         fields["url"].GetStringValue(),
		Category:    fields["category"].GetStringValue(),
		Roles:       []string{},
	}
	roles := fields["roles"]
	switch roles.GetKind().(type) {
	case *structpb.Value_ListValue:
		for _, v := range roles.GetListValue().GetValues() {
			if r := strings.TrimSpace(v.GetStringValue()); r != "" {
				md.Roles = append(md.Roles, r)
			}
		}
	case *structpb.Value_StringValue:
		md.Roles = splitRoles(roles.GetStringValue())
	}
	return md
}

func createPineconeIndex(args interface{}, deps Deps) (Index, error) {
	cfg := &pineconeConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("pinecone host is required")
	}
	apiKey := config.SecretOrEnv(cfg.APIKey, "PINECONE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("pinecone api key is required")
	}
	return NewPineconeIndex(cfg.Host, apiKey, cfg.Namespace, time.Duration(cfg.Timeout)*time.Second)
}

func init() {
	Register("pinecone", createPineconeIndex)
}
