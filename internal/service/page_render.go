package service

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/xxxsen/careerrec/internal/model"
)

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s</body>
</html>
`

// PageRenderer turns a recommendation into a standalone html page. Raw html inside
// resource fields is not passed through.
type PageRenderer struct {
	md goldmark.Markdown
}

func NewPageRenderer() *PageRenderer {
	return &PageRenderer{md: goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)}
}

type PageInput struct {
	Role        string
	Warning     string
	Empty       bool
	Categories  []string
	Results     model.CategorizedResults
	PerCategory int
}

func (r *PageRenderer) Render(in PageInput) ([]byte, error) {
	var body bytes.Buffer
	if err := r.md.Convert([]byte(BuildPageMarkdown(in)), &body); err != nil {
		return nil, err
	}
	title := "Career resources for " + in.Role
	return []byte(fmt.Sprintf(pageTemplate, stdhtml.EscapeString(title), body.String())), nil
}

// BuildPageMarkdown lays out one section per category with a "show more" overflow list.
func BuildPageMarkdown(in PageInput) string {
	var sb strings.Builder
	sb.WriteString("# Career Resource Recommender\n\n")
	fmt.Fprintf(&sb, "Resources for **%s**\n\n", escapeMarkdown(in.Role))
	if in.Empty {
		fmt.Fprintf(&sb, "No results found for the role '%s'. Try a different role.\n", escapeMarkdown(in.Role))
		return sb.String()
	}
	if in.Warning != "" {
		fmt.Fprintf(&sb, "> **Warning:** %s\n\n", escapeMarkdown(in.Warning))
	}
	limit := in.PerCategory
	if limit <= 0 {
		limit = 5
	}
	for _, category := range in.Categories {
		fmt.Fprintf(&sb, "## %s\n\n", escapeMarkdown(titleCase(category)))
		items := in.Results[category]
		if len(items) == 0 {
			fmt.Fprintf(&sb, "No %s resources found for this role.\n\n", escapeMarkdown(category))
			continue
		}
		shown := items
		if len(shown) > limit {
			shown = shown[:limit]
		}
		fmt.Fprintf(&sb, "*Showing %d of %d resources*\n\n", len(shown), len(items))
		for _, item := range shown {
			fmt.Fprintf(&sb, "#### [%s](%s)\n\n", escapeMarkdown(item.Title), escapeURL(item.URL))
			if item.Description != "" {
				fmt.Fprintf(&sb, "%s\n\n", escapeMarkdown(item.Description))
			}
			if len(item.Roles) > 0 {
				fmt.Fprintf(&sb, "**Relevant for:** %s\n\n", escapeMarkdown(strings.Join(item.Roles, ", ")))
			}
			sb.WriteString("---\n\n")
		}
		if rest := items[len(shown):]; len(rest) > 0 {
			fmt.Fprintf(&sb, "**Show %d more**\n\n", len(rest))
			for _, item := range rest {
				fmt.Fprintf(&sb, "- [%s](%s)\n", escapeMarkdown(item.Title), escapeURL(item.URL))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`,
	"<", "&lt;", ">", "&gt;", "#", `\#`, "|", `\|`,
)

func escapeMarkdown(s string) string {
	s = strings.TrimLeft(strings.ReplaceAll(s, "\n", " "), " \t")
	return escapeBlockStart(markdownEscaper.Replace(s))
}

// escapeBlockStart stops a leading marker from opening a list, a thematic break or a setext underline.
func escapeBlockStart(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '-', '+', '=', '~':
		return `\` + s
	}
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	if n > 0 && n < len(s) && (s[n] == '.' || s[n] == ')') {
		return s[:n] + `\` + s[n:]
	}
	return s
}

func escapeURL(u string) string {
	return strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29", "<", "%3C", ">", "%3E").Replace(u)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		parts := strings.Split(w, "-")
		for j, p := range parts {
			if p != "" {
				parts[j] = strings.ToUpper(p[:1]) + p[1:]
			}
		}
		words[i] = strings.Join(parts, "-")
	}
	return strings.Join(words, " ")
}
