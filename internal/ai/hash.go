package ai

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
)

const defaultHashDimensions = 64

type hashConfig struct {
	Dimensions int `json:"dimensions"`
}

// hashProvider derives a unit vector from the sha256 of the text.
// Equal texts always map to equal vectors, which is enough for offline runs and tests.
type hashProvider struct {
	dimensions int
}

func NewHashEmbedder(dimensions int) IEmbedder {
	if dimensions <= 0 {
		dimensions = defaultHashDimensions
	}
	return NewEmbedder(&hashProvider{dimensions: dimensions}, "hash")
}

func (p *hashProvider) Name() string {
	return "hash"
}

func (p *hashProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, p.dimensions)
	var norm float64
	for i := range vec {
		vec[i] = float32(sum[i%len(sum)])/127.5 - 1.0
		norm += float64(vec[i] * vec[i])
	}
	mag := float32(math.Sqrt(norm))
	if mag == 0 {
		return vec, nil
	}
	for i := range vec {
		vec[i] /= mag
	}
	return vec, nil
}

func createHashEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &hashConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaultHashDimensions
	}
	return &hashProvider{dimensions: cfg.Dimensions}, nil
}

func init() {
	RegisterEmbed("hash", createHashEmbedFactory)
}
