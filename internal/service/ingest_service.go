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
	"github.com/xxxsen/careerrec/internal/vectorindex"
)

type IngestOptions struct {
	// BatchSize is the number of records per upsert call.
	BatchSize int
	// Start is the catalog offset to resume from.
	Start int
	// Limit caps how many resources are ingested; <= 0 runs to the end.
	Limit int
}

type IngestReport struct {
	Batches int `json:"batches"`
	Records int `json:"records"`
	// NextStart is the offset of the first resource not yet upserted.
	NextStart int `json:"next_start"`
}

type IngestService struct {
	embedder  ai.IEmbedder
	index     vectorindex.Index
	batchSize int
}

func NewIngestService(embedder ai.IEmbedder, index vectorindex.Index, batchSize int) *IngestService {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &IngestService{embedder: embedder, index: index, batchSize: batchSize}
}

// Ingest embeds each resource title and upserts the records batch by batch in catalog order.
// On failure the report still describes the batches already written and NextStart points at the
// batch that failed, so the run can be resumed from there.
func (s *IngestService) Ingest(ctx context.Context, resources []model.Resource, opts IngestOptions) (IngestReport, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = s.batchSize
	}
	if opts.Start < 0 || opts.Start > len(resources) {
		return IngestReport{}, fmt.Errorf("start %d out of range [0,%d]: %w", opts.Start, len(resources), appErr.ErrInvalid)
	}
	end := len(resources)
	if opts.Limit > 0 && opts.Start+opts.Limit < end {
		end = opts.Start + opts.Limit
	}
	logger := logutil.GetLogger(ctx).With(zap.Int("start", opts.Start), zap.Int("end", end), zap.Int("batch_size", batchSize))
	report := IngestReport{NextStart: opts.Start}
	for begin := opts.Start; begin < end; begin += batchSize {
		stop := begin + batchSize
		if stop > end {
			stop = end
		}
		records := make([]vectorindex.Record, 0, stop-begin)
		for _, res := range resources[begin:stop] {
			rec, err := s.buildRecord(ctx, res)
			if err != nil {
				logger.Error("embed resource failed", zap.Int("batch_start", begin), zap.String("id", res.ID), zap.Error(err))
				return report, fmt.Errorf("ingest batch at %d: embed resource %s: %w", begin, res.ID, err)
			}
			records = append(records, rec)
		}
		if err := s.index.Upsert(ctx, records); err != nil {
			logger.Error("upsert batch failed", zap.Int("batch_start", begin), zap.Error(err))
			return report, fmt.Errorf("ingest batch at %d: upsert: %w", begin, err)
		}
		report.Batches++
		report.Records += len(records)
		report.NextStart = stop
		logger.Debug("batch upserted", zap.Int("batch_start", begin), zap.Int("records", len(records)))
	}
	logger.Info("ingest finished", zap.Int("batches", report.Batches), zap.Int("records", report.Records))
	return report, nil
}

func (s *IngestService) buildRecord(ctx context.Context, res model.Resource) (vectorindex.Record, error) {
	md := normalizeMetadata(res.Metadata)
	values, err := s.embedder.Embed(ctx, md.Title, ai.TaskTypeDocument)
	if err != nil {
		return vectorindex.Record{}, err
	}
	return vectorindex.Record{ID: res.ID, Values: values, Metadata: md}, nil
}

func normalizeMetadata(md model.Metadata) model.Metadata {
	md.Title = strings.TrimSpace(md.Title)
	md.Description = strings.TrimSpace(md.Description)
	md.URL = strings.TrimSpace(md.URL)
	md.Category = strings.TrimSpace(md.Category)
	roles := make([]string, 0, len(md.Roles))
	for _, r := range md.Roles {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	md.Roles = roles
	return md
}
