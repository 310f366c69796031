package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEmbedProvider_Registry(t *testing.T) {
	p, err := NewEmbedProvider(" Hash ", map[string]interface{}{"dimensions": 8})
	require.NoError(t, err)
	require.Equal(t, "hash", p.Name())

	_, err = NewEmbedProvider("", nil)
	require.Error(t, err)
	_, err = NewEmbedProvider("missing", nil)
	require.Error(t, err)
	_, err = NewGenerateProvider("missing", nil)
	require.Error(t, err)
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(16)
	a, err := e.Embed(context.Background(), "Data Scientist", TaskTypeQuery)
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "Data Scientist", TaskTypeDocument)
	require.NoError(t, err)
	c, err := e.Embed(context.Background(), "Data Engineer", TaskTypeQuery)
	require.NoError(t, err)
	require.Len(t, a, 16)
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)

	var norm float32
	for _, v := range a {
		norm += v * v
	}
	require.InDelta(t, 1.0, norm, 1e-4)

	_, err = e.Embed(context.Background(), "", TaskTypeQuery)
	require.Error(t, err)
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "nomic-embed-text", req.Model)
		require.Equal(t, "hello", req.Input)
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer srv.Close()

	p, err := NewEmbedProvider("ollama", map[string]interface{}{"host": srv.URL})
	require.NoError(t, err)
	vec, err := NewEmbedder(p, "nomic-embed-text").Embed(context.Background(), "hello", TaskTypeQuery)
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOllamaEmbed_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := NewEmbedProvider("ollama", map[string]interface{}{"host": srv.URL})
	require.NoError(t, err)
	_, err = p.Embed(context.Background(), "m", "hello", "")
	require.Error(t, err)
	require.True(t, IsRateLimit(err))

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	require.Equal(t, http.StatusTooManyRequests, rl.StatusCode)
}

func TestWrapStatusError(t *testing.T) {
	base := fmt.Errorf("boom")
	require.False(t, IsRateLimit(wrapStatusError("x", http.StatusInternalServerError, base)))
	require.True(t, IsRateLimit(fmt.Errorf("wrapped: %w", wrapStatusError("x", http.StatusTooManyRequests, base))))
}

func TestDecodeJSONOutput(t *testing.T) {
	var out struct {
		Category string   `json:"category"`
		Roles    []string `json:"roles"`
	}
	require.NoError(t, decodeJSONOutput("```json\n{\"category\":\"blog\",\"roles\":[\"Data Analyst\"]}\n```", &out))
	require.Equal(t, "blog", out.Category)
	require.Equal(t, []string{"Data Analyst"}, out.Roles)

	require.Error(t, decodeJSONOutput("   ", &out))
	require.Error(t, decodeJSONOutput("not json", &out))
}

func TestSchema_JSONSchema(t *testing.T) {
	s := &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"category": {Type: TypeString, Enum: []string{"blog"}},
			"roles":    {Type: TypeArray, Items: &Schema{Type: TypeString}},
		},
		Required: []string{"category", "roles"},
	}
	out := s.JSONSchema()
	require.Equal(t, "object", out["type"])
	require.Equal(t, false, out["additionalProperties"])
	props := out["properties"].(map[string]interface{})
	require.Equal(t, []string{"blog"}, props["category"].(map[string]interface{})["enum"])
	require.Equal(t, "string", props["roles"].(map[string]interface{})["items"].(map[string]interface{})["type"])

	g := toGenaiSchema(s)
	require.Equal(t, "OBJECT", string(g.Type))
	require.Equal(t, "ARRAY", string(g.Properties["roles"].Type))
}

func TestGenerateProviders_UnavailableWithoutKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	for _, name := range []string{"gemini", "openai", "openrouter"} {
		p, err := NewGenerateProvider(name, nil)
		require.NoError(t, err)
		var out map[string]interface{}
		err = NewGenerator(p, "m", 5).GenerateJSON(context.Background(), &GenerateRequest{Prompt: "x"}, &out)
		require.ErrorIs(t, err, ErrUnavailable, name)
	}
}
