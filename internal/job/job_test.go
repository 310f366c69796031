package job

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/careerrec/internal/model"
	"github.com/xxxsen/careerrec/internal/service"
)

type fakeLister struct {
	items []model.Resource
	calls int
	err   error
}

func (f *fakeLister) List(ctx context.Context, category string, offset, limit int) ([]model.Resource, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if offset >= len(f.items) {
		return []model.Resource{}, nil
	}
	end := offset + limit
	if end > len(f.items) {
		end = len(f.items)
	}
	return f.items[offset:end], nil
}

type fakeIngester struct {
	got    []model.Resource
	report service.IngestReport
	err    error
}

func (f *fakeIngester) Ingest(ctx context.Context, resources []model.Resource, opts service.IngestOptions) (service.IngestReport, error) {
	f.got = resources
	return f.report, f.err
}

type fakeDeleter struct {
	cutoff int64
}

func (f *fakeDeleter) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	f.cutoff = cutoff
	return 3, nil
}

func makeResources(n int) []model.Resource {
	out := make([]model.Resource, n)
	for i := range out {
		out[i] = model.Resource{ID: strconv.Itoa(i), Metadata: model.Metadata{Title: "t" + strconv.Itoa(i)}}
	}
	return out
}

func TestLoadAllResources_Pages(t *testing.T) {
	lister := &fakeLister{items: makeResources(reindexPageSize + 7)}
	items, err := LoadAllResources(context.Background(), lister)
	require.NoError(t, err)
	require.Len(t, items, reindexPageSize+7)
	require.Equal(t, 2, lister.calls)
	require.Equal(t, "0", items[0].ID)
}

func TestReindexJob_Run(t *testing.T) {
	lister := &fakeLister{items: makeResources(3)}
	ing := &fakeIngester{report: service.IngestReport{Batches: 3, Records: 3, NextStart: 3}}
	job := NewReindexJob(lister, ing)
	require.Equal(t, "reindex", job.Name())
	require.NoError(t, job.Run(context.Background()))
	require.Len(t, ing.got, 3)
}

func TestReindexJob_EmptyCatalogSkipsIngest(t *testing.T) {
	ing := &fakeIngester{}
	require.NoError(t, NewReindexJob(&fakeLister{}, ing).Run(context.Background()))
	require.Nil(t, ing.got)
}

func TestReindexJob_Errors(t *testing.T) {
	boom := errors.New("boom")
	err := NewReindexJob(&fakeLister{err: boom}, &fakeIngester{}).Run(context.Background())
	require.ErrorIs(t, err, boom)

	ing := &fakeIngester{report: service.IngestReport{NextStart: 1}, err: boom}
	err = NewReindexJob(&fakeLister{items: makeResources(2)}, ing).Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "stopped at 1")
}

func TestEmbeddingCacheCleanupJob_Cutoff(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	deleter := &fakeDeleter{}
	job := NewEmbeddingCacheCleanupJob(deleter, 2)
	job.now = func() time.Time { return now }
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, now.Add(-48*time.Hour).Unix(), deleter.cutoff)

	job = NewEmbeddingCacheCleanupJob(deleter, 0)
	job.now = func() time.Time { return now }
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, now.Add(-30*24*time.Hour).Unix(), deleter.cutoff)
}
