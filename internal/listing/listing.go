// Package listing turns untrusted pagination, search, and sort input into
// bounded, deterministic query parameters and result envelopes.
package listing

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
	maxPageSize     = 100

	// SortAsc and SortDesc are the accepted sort directions.
	SortAsc  = "asc"
	SortDesc = "desc"
)

var validate = validator.New()

// Params holds normalized list query parameters.
type Params struct {
	Page      int
	PageSize  int
	Search    string
	SortBy    string
	SortOrder string
}

// Options describe the per-collection sort contract.
type Options struct {
	// SortFields enumerates accepted sortBy values; the first entry is the default.
	SortFields []string
}

// Parse validates raw query values against opts. Out-of-range input is
// rejected with a field-level validation error, never clamped.
func Parse(query url.Values, opts Options) (Params, error) {
	fields := make(map[string]string)

	p := Params{
		Page:      defaultPage,
		PageSize:  defaultPageSize,
		Search:    query.Get("search"),
		SortOrder: SortDesc,
	}
	if len(opts.SortFields) > 0 {
		p.SortBy = opts.SortFields[0]
	}

	if raw := query.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fields["page"] = "must be an integer"
		} else {
			p.Page = n
		}
	}
	if raw := query.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fields["pageSize"] = "must be an integer"
		} else {
			p.PageSize = n
		}
	}
	if raw := query.Get("sortBy"); raw != "" {
		p.SortBy = raw
	}
	if raw := query.Get("sortOrder"); raw != "" {
		p.SortOrder = raw
	}

	if err := validate.Var(p.Page, "min=1"); err != nil {
		fields["page"] = "must be at least 1"
	}
	if err := validate.Var(p.PageSize, "min=1,max=100"); err != nil {
		fields["pageSize"] = "must be between 1 and 100"
	}
	if err := validate.Var(p.SortOrder, "oneof=asc desc"); err != nil {
		fields["sortOrder"] = "must be asc or desc"
	}
	if len(opts.SortFields) > 0 {
		if err := validate.Var(p.SortBy, "oneof="+strings.Join(opts.SortFields, " ")); err != nil {
			fields["sortBy"] = "must be one of: " + strings.Join(opts.SortFields, ", ")
		}
	}

	if len(fields) > 0 {
		return Params{}, httpx.NewValidationError(fields)
	}
	return p, nil
}

// Offset returns the row offset for the current page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// OrderClause builds an ORDER BY body for the resolved column with a stable
// id tiebreaker so page boundaries stay deterministic.
func OrderClause(column, sortOrder string) string {
	dir := "DESC"
	if sortOrder == SortAsc {
		dir = "ASC"
	}
	return column + " " + dir + ", id ASC"
}

// Page is the paginated result envelope.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// NewPage assembles the envelope for one result page.
func NewPage[T any](items []T, total int, p Params) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Data:       items,
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(p.PageSize))),
	}
}
