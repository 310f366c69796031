package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/careerrec/internal/ai"
	"github.com/xxxsen/careerrec/internal/catalog"
	"github.com/xxxsen/careerrec/internal/linkpreview"
	"github.com/xxxsen/careerrec/internal/model"
)

var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

const entitySystemPrompt = "Generate some data fields."

type Previewer interface {
	Preview(ctx context.Context, url string) (*linkpreview.Preview, error)
}

type EnrichConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	RowDelay    time.Duration
	MaxRoles    int
	MaxTokens   int
	Categories  []string
}

type EnrichReport struct {
	OK     int `json:"ok"`
	Failed int `json:"failed"`
}

// GeneratedFields is the canonical form of a generation response.
type GeneratedFields struct {
	Title    string
	Category string
	Roles    []string
}

type generatedEntity struct {
	Title    string `json:"blog_title"`
	Category string `json:"category"`
	Roles    string `json:"roles"`
}

type EnrichService struct {
	previewer Previewer
	generator ai.IStructuredGenerator
	cfg       EnrichConfig
	sleep     func(ctx context.Context, d time.Duration) error
	jitter    func() float64
}

type EnrichOption func(*EnrichService)

// WithSleep replaces the wait used for backoff and row pacing.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) EnrichOption {
	return func(s *EnrichService) {
		s.sleep = fn
	}
}

// WithJitter replaces the source of the [0,1) backoff jitter.
func WithJitter(fn func() float64) EnrichOption {
	return func(s *EnrichService) {
		s.jitter = fn
	}
}

func NewEnrichService(previewer Previewer, generator ai.IStructuredGenerator, cfg EnrichConfig, opts ...EnrichOption) *EnrichService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxRoles <= 0 {
		cfg.MaxRoles = 4
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 256
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = model.DefaultCategories
	}
	s := &EnrichService{
		previewer: previewer,
		generator: generator,
		cfg:       cfg,
		sleep:     sleepContext,
		jitter:    rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Preview fills title and description of every row from the link preview service.
// A failed row is marked and skipped; only cancellation stops the run.
func (s *EnrichService) Preview(ctx context.Context, rows []catalog.Row) (EnrichReport, error) {
	if s.previewer == nil {
		return EnrichReport{}, fmt.Errorf("link preview is not configured")
	}
	return s.eachRow(ctx, rows, "preview", func(row *catalog.Row) error {
		if row.URL == "" {
			return fmt.Errorf("url is empty")
		}
		p, err := s.previewer.Preview(ctx, row.URL)
		if err != nil {
			return err
		}
		row.Title = strings.TrimSpace(p.Title)
		row.Description = strings.TrimSpace(p.Description)
		if u := strings.TrimSpace(p.URL); u != "" {
			row.URL = u
		}
		return nil
	})
}

// Classify asks the generation service for category and roles of every row.
func (s *EnrichService) Classify(ctx context.Context, rows []catalog.Row) (EnrichReport, error) {
	if s.generator == nil {
		return EnrichReport{}, fmt.Errorf("generation is not configured")
	}
	return s.eachRow(ctx, rows, "classify", func(row *catalog.Row) error {
		fields, err := s.GenerateFields(ctx, row.Resource)
		if err != nil {
			return err
		}
		if row.Title == "" {
			row.Title = fields.Title
		}
		if fields.Category != "" {
			row.Category = fields.Category
		}
		row.Roles = fields.Roles
		return nil
	})
}

func (s *EnrichService) eachRow(ctx context.Context, rows []catalog.Row, step string, fn func(row *catalog.Row) error) (EnrichReport, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("step", step))
	var report EnrichReport
	for i := range rows {
		if i > 0 && s.cfg.RowDelay > 0 {
			if err := s.sleep(ctx, s.cfg.RowDelay); err != nil {
				return report, err
			}
		}
		row := &rows[i]
		if err := fn(row); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			logger.Warn("enrich row failed", zap.String("id", row.ID), zap.String("url", row.URL), zap.Error(err))
			row.MarkFailed(err)
			report.Failed++
			continue
		}
		row.MarkOK()
		report.OK++
	}
	logger.Info("enrich finished", zap.Int("ok", report.OK), zap.Int("failed", report.Failed))
	return report, nil
}

// GenerateFields requests the structured fields for one resource. Rate limited calls are retried
// with exponential backoff plus jitter; any other failure is returned at once.
func (s *EnrichService) GenerateFields(ctx context.Context, res model.Resource) (*GeneratedFields, error) {
	req := &ai.GenerateRequest{
		System:     entitySystemPrompt,
		Prompt:     buildEntityPrompt(res, s.cfg.MaxRoles),
		SchemaName: "resource_fields",
		Schema:     entitySchema(s.cfg.Categories),
		MaxTokens:  s.cfg.MaxTokens,
	}
	logger := logutil.GetLogger(ctx).With(zap.String("id", res.ID))
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		var out generatedEntity
		err := s.generator.GenerateJSON(ctx, req, &out)
		if err == nil {
			return s.parseFields(out), nil
		}
		if !ai.IsRateLimit(err) {
			return nil, fmt.Errorf("generate fields: %w", err)
		}
		lastErr = err
		if attempt == s.cfg.MaxAttempts-1 {
			break
		}
		wait := s.backoff(attempt)
		logger.Warn("rate limited, retrying", zap.Int("attempt", attempt+1), zap.Duration("wait", wait))
		if err := s.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, s.cfg.MaxAttempts, lastErr)
}

// backoff returns base * 2^attempt plus up to one second of jitter.
func (s *EnrichService) backoff(attempt int) time.Duration {
	j := s.jitter()
	if j < 0 || j >= 1 {
		j = 0
	}
	return time.Duration(float64(s.cfg.BaseDelay)*math.Pow(2, float64(attempt))) + time.Duration(j*float64(time.Second))
}

func (s *EnrichService) parseFields(out generatedEntity) *GeneratedFields {
	roles := catalog.ParseRoles(out.Roles)
	if len(roles) > s.cfg.MaxRoles {
		roles = roles[:s.cfg.MaxRoles]
	}
	return &GeneratedFields{
		Title:    strings.TrimSpace(out.Title),
		Category: strings.ToLower(strings.TrimSpace(out.Category)),
		Roles:    roles,
	}
}

func buildEntityPrompt(res model.Resource, maxRoles int) string {
	var sb strings.Builder
	sb.WriteString("Based on the URL, extract the title and store it in the blog_title field. ")
	sb.WriteString("If the URL has /p/ in it, then put blog in the category field; ")
	sb.WriteString("if it has /interview-guide/, then put interview guide in the category field; ")
	sb.WriteString("otherwise put learning-path. ")
	fmt.Fprintf(&sb, "Also, based on the title and description, name the top %d job roles in data careers ", maxRoles)
	sb.WriteString("this resource helps with, as a comma separated list in the roles field.\n")
	fmt.Fprintf(&sb, "url: %s\ntitle: %s\ndescription: %s\n", res.URL, res.Title, res.Description)
	return sb.String()
}

func entitySchema(categories []string) *ai.Schema {
	return &ai.Schema{
		Type: ai.TypeObject,
		Properties: map[string]*ai.Schema{
			"blog_title": {Type: ai.TypeString, Description: "title of the resource"},
			"category":   {Type: ai.TypeString, Enum: categories},
			"roles":      {Type: ai.TypeString, Description: "comma separated job roles"},
		},
		Required: []string{"blog_title", "category", "roles"},
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
