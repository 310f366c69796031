package service

import (
	"github.com/xxxsen/careerrec/internal/model"
)

const (
	defaultTitle       = "No title"
	defaultDescription = "No description"
	defaultURL         = "#"
)

// Categorize groups results under the known categories, keeping result order inside each group.
// Every known category is present in the output. Results with a missing or unknown category are dropped.
func Categorize(results []model.QueryResult, known []string) model.CategorizedResults {
	out, _ := categorize(results, known)
	return out
}

func categorize(results []model.QueryResult, known []string) (model.CategorizedResults, int) {
	out := make(model.CategorizedResults, len(known))
	for _, c := range known {
		out[c] = []model.Summary{}
	}
	dropped := 0
	for _, r := range results {
		items, ok := out[r.Metadata.Category]
		if !ok {
			dropped++
			continue
		}
		out[r.Metadata.Category] = append(items, summarize(r.Metadata))
	}
	return out, dropped
}

func summarize(md model.Metadata) model.Summary {
	s := model.Summary{
		Title:       orDefault(md.Title, defaultTitle),
		Description: orDefault(md.Description, defaultDescription),
		URL:         orDefault(md.URL, defaultURL),
		Roles:       md.Roles,
	}
	if s.Roles == nil {
		s.Roles = []string{}
	}
	return s
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
