package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xxxsen/careerrec/internal/model"
)

const (
	ColID          = "id"
	ColURL         = "url"
	ColTitle       = "title"
	ColDescription = "description"
	ColCategory    = "category"
	ColRoles       = "roles"
	ColStatus      = "status"
	ColError       = "error"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

var knownColumns = []string{ColID, ColURL, ColTitle, ColDescription, ColCategory, ColRoles, ColStatus, ColError}

// Row is one catalog line. Columns the catalog does not know survive a read/write in Extra.
type Row struct {
	model.Resource
	Status string
	Error  string
	Extra  map[string]string
}

func (r *Row) MarkOK() {
	r.Status = StatusOK
	r.Error = ""
}

func (r *Row) MarkFailed(err error) {
	r.Status = StatusFailed
	r.Error = err.Error()
}

type Table struct {
	extraColumns []string
	Rows         []Row
}

// Read parses a csv table addressed by header name. Header names are matched case-insensitively.
// Rows without an id take their zero based position, so ids stay stable across runs.
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &Table{Rows: []Row{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	known := make(map[string]bool, len(knownColumns))
	for _, c := range knownColumns {
		known[c] = true
	}
	t := &Table{Rows: []Row{}}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if key == "" {
			// pandas writes an unnamed index column
			continue
		}
		if _, dup := cols[key]; dup {
			continue
		}
		cols[key] = i
		if !known[key] {
			t.extraColumns = append(t.extraColumns, key)
		}
	}
	if _, ok := cols[ColURL]; !ok {
		if _, ok := cols[ColTitle]; !ok {
			return nil, fmt.Errorf("table needs a %q or %q column", ColURL, ColTitle)
		}
	}
	get := func(rec []string, key string) string {
		i, ok := cols[key]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	for line := 0; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		row := Row{
			Resource: model.Resource{
				ID: get(rec, ColID),
				Metadata: model.Metadata{
					URL:         get(rec, ColURL),
					Title:       get(rec, ColTitle),
					Description: get(rec, ColDescription),
					Category:    get(rec, ColCategory),
					Roles:       ParseRoles(get(rec, ColRoles)),
				},
			},
			Status: get(rec, ColStatus),
			Error:  get(rec, ColError),
		}
		if row.ID == "" {
			row.ID = strconv.Itoa(line)
		}
		if len(t.extraColumns) > 0 {
			row.Extra = make(map[string]string, len(t.extraColumns))
			for _, c := range t.extraColumns {
				row.Extra[c] = get(rec, c)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func (t *Table) Header() []string {
	return append(append([]string(nil), knownColumns...), t.extraColumns...)
}

func (t *Table) Write(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header()); err != nil {
		return err
	}
	for _, row := range t.Rows {
		rec := []string{
			row.ID,
			row.URL,
			row.Title,
			row.Description,
			row.Category,
			FormatRoles(row.Roles),
			row.Status,
			row.Error,
		}
		for _, c := range t.extraColumns {
			rec = append(rec, row.Extra[c])
		}
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Resources returns rows that carry something to embed, in table order.
func (t *Table) Resources() []model.Resource {
	out := make([]model.Resource, 0, len(t.Rows))
	for _, row := range t.Rows {
		if row.Status == StatusFailed {
			continue
		}
		res := row.Resource
		if res.Roles == nil {
			res.Roles = []string{}
		}
		out = append(out, res)
	}
	return out
}

// FillCategory sets category on every row and returns how many rows changed.
func (t *Table) FillCategory(category string) int {
	changed := 0
	for i := range t.Rows {
		if t.Rows[i].Category != category {
			t.Rows[i].Category = category
			changed++
		}
	}
	return changed
}

// ParseRoles splits a comma separated role list, dropping blanks and duplicates.
func ParseRoles(s string) []string {
	roles := make([]string, 0)
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		role := strings.TrimSpace(part)
		if role == "" || seen[strings.ToLower(role)] {
			continue
		}
		seen[strings.ToLower(role)] = true
		roles = append(roles, role)
	}
	return roles
}

func FormatRoles(roles []string) string {
	return strings.Join(roles, ", ")
}
