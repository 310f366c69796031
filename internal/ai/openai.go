package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAIConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	Dimensions int    `json:"dimensions"`
}

type openAIProvider struct {
	name       string
	apiKey     string
	dimensions int
	client     openai.Client
}

func (p *openAIProvider) Name() string {
	return p.name
}

func (p *openAIProvider) GenerateJSON(ctx context.Context, model string, req *GenerateRequest, out interface{}) error {
	if p.apiKey == "" {
		return ErrUnavailable
	}
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(float64(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "result"
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: req.Schema.JSONSchema(),
					Strict: openai.Bool(true),
				},
			},
		}
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("%s response has no choices", p.name)
	}
	return decodeJSONOutput(resp.Choices[0].Message.Content, out)
}

func (p *openAIProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
		Model: openai.EmbeddingModel(model),
	}
	if p.dimensions > 0 {
		params.Dimensions = param.NewOpt(int64(p.dimensions))
	}
	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, p.wrapError(err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%s response has no embeddings", p.name)
	}
	values := resp.Data[0].Embedding
	vec := make([]float32, len(values))
	for i, v := range values {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (p *openAIProvider) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return wrapStatusError(p.name, apiErr.StatusCode, err)
	}
	return err
}

func newOpenAIProvider(name string, apiKey string, baseURL string, dimensions int, extra ...option.RequestOption) *openAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		// retries are driven by the enrichment backoff loop
		option.WithMaxRetries(0),
	}
	opts = append(opts, extra...)
	return &openAIProvider{
		name:       name,
		apiKey:     apiKey,
		dimensions: dimensions,
		client:     openai.NewClient(opts...),
	}
}

func createOpenAI(args interface{}) (*openAIProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return newOpenAIProvider("openai", firstNonEmpty(cfg.APIKey, "OPENAI_API_KEY"), baseURL, cfg.Dimensions), nil
}

func createOpenAIFactory(args interface{}) (IGenerateProvider, error) {
	return createOpenAI(args)
}

func createOpenAIEmbedFactory(args interface{}) (IEmbedProvider, error) {
	return createOpenAI(args)
}

func init() {
	Register("openai", createOpenAIFactory)
	RegisterEmbed("openai", createOpenAIEmbedFactory)
}
