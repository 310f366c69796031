package service

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/xxxsen/careerrec/internal/model"
)

var exportHeader = []string{"Category", "Title", "Description", "URL", "Relevant Roles"}

type ExportService struct{}

func NewExportService() *ExportService {
	return &ExportService{}
}

// CSV writes the categorized results in the given category order. perCategory <= 0 exports everything.
func (s *ExportService) CSV(categorized model.CategorizedResults, order []string, perCategory int) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, category := range order {
		items := categorized[category]
		if perCategory > 0 && len(items) > perCategory {
			items = items[:perCategory]
		}
		for _, item := range items {
			if err := w.Write([]string{category, item.Title, item.Description, item.URL, strings.Join(item.Roles, ", ")}); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName is the download name for a role's export.
func (s *ExportService) FileName(role string) string {
	return strings.ReplaceAll(strings.TrimSpace(role), " ", "_") + "_resources.csv"
}
