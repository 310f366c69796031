package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/careerrec/internal/model"
	"github.com/xxxsen/careerrec/internal/pkg/errcode"
	"github.com/xxxsen/careerrec/internal/pkg/response"
	"github.com/xxxsen/careerrec/internal/service"
)

const (
	maxTopK        = 100
	maxPerCategory = 20
)

type RecommendHandler struct {
	recommend   *service.RecommendService
	export      *service.ExportService
	page        *service.PageRenderer
	commonRoles []string
	perCategory int
}

func NewRecommendHandler(recommend *service.RecommendService, export *service.ExportService, page *service.PageRenderer, commonRoles []string, perCategory int) *RecommendHandler {
	if perCategory <= 0 || perCategory > maxPerCategory {
		perCategory = 5
	}
	return &RecommendHandler{
		recommend:   recommend,
		export:      export,
		page:        page,
		commonRoles: commonRoles,
		perCategory: perCategory,
	}
}

type categoryView struct {
	Name  string          `json:"name"`
	Total int             `json:"total"`
	Shown int             `json:"shown"`
	Items []model.Summary `json:"items"`
}

type recommendationView struct {
	Role       string         `json:"role"`
	Ranked     bool           `json:"ranked"`
	Empty      bool           `json:"empty"`
	Warning    string         `json:"warning,omitempty"`
	Categories []categoryView `json:"categories"`
}

func (h *RecommendHandler) Roles(c *gin.Context) {
	response.Success(c, gin.H{
		"roles":      h.commonRoles,
		"categories": h.recommend.Categories(),
	})
}

func (h *RecommendHandler) Recommend(c *gin.Context) {
	role, topK, perCategory, ok := h.readQuery(c)
	if !ok {
		return
	}
	rec, err := h.recommend.Recommend(c.Request.Context(), role, topK)
	if err != nil {
		handleError(c, err)
		return
	}
	view := recommendationView{
		Role:       rec.Role,
		Ranked:     rec.Ranked(),
		Empty:      rec.Empty(),
		Warning:    rec.Warning,
		Categories: []categoryView{},
	}
	if !rec.Empty() {
		categorized := h.recommend.Categorize(c.Request.Context(), rec)
		for _, name := range h.recommend.Categories() {
			items := categorized[name]
			shown := items
			if len(shown) > perCategory {
				shown = shown[:perCategory]
			}
			view.Categories = append(view.Categories, categoryView{
				Name:  name,
				Total: len(items),
				Shown: len(shown),
				Items: append([]model.Summary{}, shown...),
			})
		}
	}
	response.Success(c, view)
}

func (h *RecommendHandler) Export(c *gin.Context) {
	role, topK, _, ok := h.readQuery(c)
	if !ok {
		return
	}
	rec, err := h.recommend.Recommend(c.Request.Context(), role, topK)
	if err != nil {
		handleError(c, err)
		return
	}
	data, err := h.export.CSV(h.recommend.Categorize(c.Request.Context(), rec), h.recommend.Categories(), 0)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Attachment(c, h.export.FileName(rec.Role), "text/csv; charset=utf-8", data)
}

func (h *RecommendHandler) Page(c *gin.Context) {
	role, topK, perCategory, ok := h.readQuery(c)
	if !ok {
		return
	}
	rec, err := h.recommend.Recommend(c.Request.Context(), role, topK)
	if err != nil {
		handleError(c, err)
		return
	}
	body, err := h.page.Render(service.PageInput{
		Role:        rec.Role,
		Warning:     rec.Warning,
		Empty:       rec.Empty(),
		Categories:  h.recommend.Categories(),
		Results:     h.recommend.Categorize(c.Request.Context(), rec),
		PerCategory: perCategory,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.HTML(c, string(body))
}

func (h *RecommendHandler) readQuery(c *gin.Context) (string, int, int, bool) {
	role := strings.TrimSpace(c.Query("role"))
	if role == "" {
		response.Error(c, errcode.ErrInvalid, "role is required")
		return "", 0, 0, false
	}
	topK, ok := queryInt(c, "top_k", 0, 1, maxTopK)
	if !ok {
		response.Error(c, errcode.ErrInvalid, "invalid top_k")
		return "", 0, 0, false
	}
	perCategory, ok := queryInt(c, "per_category", h.perCategory, 1, maxPerCategory)
	if !ok {
		response.Error(c, errcode.ErrInvalid, "invalid per_category")
		return "", 0, 0, false
	}
	return role, topK, perCategory, true
}
