package job

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/careerrec/internal/model"
	"github.com/xxxsen/careerrec/internal/service"
)

const reindexPageSize = 500

type resourceLister interface {
	List(ctx context.Context, category string, offset, limit int) ([]model.Resource, error)
}

type ingester interface {
	Ingest(ctx context.Context, resources []model.Resource, opts service.IngestOptions) (service.IngestReport, error)
}

// ReindexJob re-embeds the stored catalog into the vector index.
type ReindexJob struct {
	resources resourceLister
	ingest    ingester
}

func NewReindexJob(resources resourceLister, ingest ingester) *ReindexJob {
	return &ReindexJob{resources: resources, ingest: ingest}
}

func (j *ReindexJob) Name() string {
	return "reindex"
}

func (j *ReindexJob) Run(ctx context.Context) error {
	items, err := LoadAllResources(ctx, j.resources)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		logutil.GetLogger(ctx).Info("catalog empty, nothing to reindex")
		return nil
	}
	report, err := j.ingest.Ingest(ctx, items, service.IngestOptions{})
	if err != nil {
		return fmt.Errorf("reindex stopped at %d: %w", report.NextStart, err)
	}
	logutil.GetLogger(ctx).Info("reindex finished",
		zap.Int("batches", report.Batches), zap.Int("records", report.Records))
	return nil
}

// LoadAllResources pages through the stored catalog in order.
func LoadAllResources(ctx context.Context, lister resourceLister) ([]model.Resource, error) {
	var out []model.Resource
	for offset := 0; ; offset += reindexPageSize {
		page, err := lister.List(ctx, "", offset, reindexPageSize)
		if err != nil {
			return nil, fmt.Errorf("list resources at %d: %w", offset, err)
		}
		out = append(out, page...)
		if len(page) < reindexPageSize {
			return out, nil
		}
	}
}
