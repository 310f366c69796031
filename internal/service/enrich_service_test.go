package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/careerrec/internal/ai"
	"github.com/xxxsen/careerrec/internal/catalog"
	"github.com/xxxsen/careerrec/internal/linkpreview"
	"github.com/xxxsen/careerrec/internal/model"
)

func newTestEnrich(gen ai.IStructuredGenerator, prev Previewer, rec *sleepRecorder, jitter float64) *EnrichService {
	return NewEnrichService(prev, gen, EnrichConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		RowDelay:    time.Second,
	}, WithSleep(rec.sleep), WithJitter(func() float64 { return jitter }))
}

func TestGenerateFields_RetriesRateLimitsWithGrowingWaits(t *testing.T) {
	gen := &scriptedGenerator{
		errs:    []error{rateLimited(), rateLimited()},
		payload: generatedEntity{Title: "SQL Guide", Category: "Interview Guide", Roles: "Data Analyst, Data Scientist"},
	}
	rec := &sleepRecorder{}
	svc := newTestEnrich(gen, nil, rec, 0.99)

	fields, err := svc.GenerateFields(context.Background(), model.Resource{Metadata: model.Metadata{URL: "https://x/interview-guide/sql"}})
	require.NoError(t, err)
	require.Equal(t, 3, gen.calls)
	require.Equal(t, "interview guide", fields.Category)
	require.Equal(t, []string{"Data Analyst", "Data Scientist"}, fields.Roles)

	require.Len(t, rec.waits, 2)
	// minimum wait excludes jitter: base*2^attempt
	require.GreaterOrEqual(t, rec.waits[0], time.Second)
	require.Less(t, rec.waits[0], 2*time.Second)
	require.GreaterOrEqual(t, rec.waits[1], 2*time.Second)
	require.Less(t, rec.waits[1], 3*time.Second)
	require.Greater(t, rec.waits[1], rec.waits[0])
}

func TestGenerateFields_ExhaustsRetries(t *testing.T) {
	errs := make([]error, 5)
	for i := range errs {
		errs[i] = rateLimited()
	}
	gen := &scriptedGenerator{errs: errs}
	rec := &sleepRecorder{}
	_, err := newTestEnrich(gen, nil, rec, 0).GenerateFields(context.Background(), model.Resource{})
	require.ErrorIs(t, err, ErrMaxRetriesExceeded)
	require.True(t, ai.IsRateLimit(err))
	require.Equal(t, 5, gen.calls)
	require.Len(t, rec.waits, 4)
	require.Equal(t, 8*time.Second, rec.waits[3])
}

func TestGenerateFields_NonRateLimitIsTerminal(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{errors.New("unauthorized")}}
	rec := &sleepRecorder{}
	_, err := newTestEnrich(gen, nil, rec, 0).GenerateFields(context.Background(), model.Resource{})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrMaxRetriesExceeded)
	require.Equal(t, 1, gen.calls)
	require.Empty(t, rec.waits)
}

func TestGenerateFields_TruncatesRolesAndBuildsPrompt(t *testing.T) {
	gen := &scriptedGenerator{payload: generatedEntity{Category: "blog", Roles: "A, B, C, D, E, A"}}
	svc := newTestEnrich(gen, nil, &sleepRecorder{}, 0)
	fields, err := svc.GenerateFields(context.Background(), model.Resource{Metadata: model.Metadata{URL: "https://x/p/post", Title: "Post"}})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C", "D"}, fields.Roles)
	require.Contains(t, gen.prompts[0], "/p/")
	require.Contains(t, gen.prompts[0], "/interview-guide/")
	require.Contains(t, gen.prompts[0], "url: https://x/p/post")
	require.Contains(t, gen.prompts[0], "top 4 job roles")
}

func TestClassify_MarksRowsAndPacesBetweenRows(t *testing.T) {
	gen := &scriptedGenerator{
		errs:    []error{nil, errors.New("bad request"), nil},
		payload: generatedEntity{Title: "Generated", Category: "learning-path", Roles: "Data Engineer"},
	}
	rec := &sleepRecorder{}
	svc := newTestEnrich(gen, nil, rec, 0)
	rows := []catalog.Row{
		{Resource: model.Resource{ID: "0", Metadata: model.Metadata{URL: "https://a"}}},
		{Resource: model.Resource{ID: "1", Metadata: model.Metadata{URL: "https://b", Title: "Keep"}}},
		{Resource: model.Resource{ID: "2", Metadata: model.Metadata{URL: "https://c", Title: "Keep"}}},
	}
	report, err := svc.Classify(context.Background(), rows)
	require.NoError(t, err)
	require.Equal(t, EnrichReport{OK: 2, Failed: 1}, report)

	require.Equal(t, catalog.StatusOK, rows[0].Status)
	require.Equal(t, "Generated", rows[0].Title)
	require.Equal(t, []string{"Data Engineer"}, rows[0].Roles)
	require.Equal(t, catalog.StatusFailed, rows[1].Status)
	require.Contains(t, rows[1].Error, "bad request")
	require.Equal(t, "Keep", rows[2].Title)

	require.Equal(t, []time.Duration{time.Second, time.Second}, rec.waits)
}

func TestPreview_FillsFieldsAndContinuesOnError(t *testing.T) {
	prev := &stubPreviewer{previews: map[string]*linkpreview.Preview{
		"https://a": {Title: " A ", Description: "about a", URL: "https://a/canonical"},
		"https://c": {Title: "C"},
	}}
	rec := &sleepRecorder{}
	svc := newTestEnrich(nil, prev, rec, 0)
	rows := []catalog.Row{
		{Resource: model.Resource{ID: "0", Metadata: model.Metadata{URL: "https://a"}}},
		{Resource: model.Resource{ID: "1", Metadata: model.Metadata{URL: "https://b"}}},
		{Resource: model.Resource{ID: "2", Metadata: model.Metadata{URL: "https://c"}}},
		{Resource: model.Resource{ID: "3"}},
	}
	report, err := svc.Preview(context.Background(), rows)
	require.NoError(t, err)
	require.Equal(t, EnrichReport{OK: 2, Failed: 2}, report)
	require.Equal(t, "A", rows[0].Title)
	require.Equal(t, "https://a/canonical", rows[0].URL)
	require.Equal(t, "", rows[2].Description)
	require.Equal(t, "https://c", rows[2].URL)
	require.Equal(t, catalog.StatusFailed, rows[1].Status)
	require.Equal(t, catalog.StatusFailed, rows[3].Status)
	require.Len(t, rec.waits, 3)
}

func TestEnrich_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &scriptedGenerator{payload: generatedEntity{Category: "blog"}}
	rows := make([]catalog.Row, 3)
	_, err := newTestEnrich(gen, nil, &sleepRecorder{}, 0).Classify(ctx, rows)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, gen.calls)
}

func TestEnrich_RequiresClients(t *testing.T) {
	svc := newTestEnrich(nil, nil, &sleepRecorder{}, 0)
	_, err := svc.Preview(context.Background(), nil)
	require.Error(t, err)
	_, err = svc.Classify(context.Background(), nil)
	require.Error(t, err)
}
