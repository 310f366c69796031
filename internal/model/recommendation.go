package model

type QueryResult struct {
	ID       string   `json:"id"`
	Score    float32  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Summary is the display form of one resource inside a category.
type Summary struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Roles       []string `json:"roles"`
}

type CategorizedResults map[string][]Summary
