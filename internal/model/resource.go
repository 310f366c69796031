package model

const (
	CategoryLearningPath   = "learning-path"
	CategoryBlog           = "blog"
	CategoryInterviewGuide = "interview guide"
)

// DefaultCategories is the display order used when the config does not override it.
var DefaultCategories = []string{CategoryLearningPath, CategoryBlog, CategoryInterviewGuide}

// Metadata is everything stored next to a resource vector. Only Title is embedded.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Roles       []string `json:"roles"`
	URL         string   `json:"url"`
	Category    string   `json:"category"`
}

type Resource struct {
	ID string `json:"id"`
	Metadata
}
