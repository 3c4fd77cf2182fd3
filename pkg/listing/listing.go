// Package listing implements the search, sort and paginate step shared by
// every list endpoint.
package listing

import (
	"cmp"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type Query struct {
	Search string `json:"search,omitempty"`
	Status string `json:"status,omitempty"`
	Sort   string `json:"sort,omitempty"`
	Order  string `json:"order,omitempty"`
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
}

type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

// Spec declares how a record type is searched, filtered and sorted.
type Spec[T any] struct {
	SearchFields func(T) []string
	Status       func(T) string
	Sorters      map[string]func(a, b T) int
	DefaultSort  string
}

// ParseQuery reads search, status, sort, order, page and limit.
func ParseQuery(v url.Values) Query {
	q := Query{
		Search: strings.TrimSpace(v.Get("search")),
		Status: strings.TrimSpace(v.Get("status")),
		Sort:   strings.TrimSpace(v.Get("sort")),
		Order:  strings.ToLower(strings.TrimSpace(v.Get("order"))),
	}
	q.Page, _ = strconv.Atoi(v.Get("page"))
	q.Limit, _ = strconv.Atoi(v.Get("limit"))
	return q.Normalize()
}

// Normalize fills defaults and clamps page and limit.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Order != "asc" {
		q.Order = "desc"
	}
	return q
}

// Filter keeps items matching Search and Status. The input is not modified.
func Filter[T any](items []T, q Query, spec Spec[T]) []T {
	needle := strings.ToLower(q.Search)
	out := make([]T, 0, len(items))
	for _, it := range items {
		if q.Status != "" && spec.Status != nil && !strings.EqualFold(spec.Status(it), q.Status) {
			continue
		}
		if needle != "" && spec.SearchFields != nil && !matches(spec.SearchFields(it), needle) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func matches(fields []string, needle string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// Sort returns a stably sorted copy. Unknown sort keys fall back to
// DefaultSort. Without any sorter the input order is kept.
func Sort[T any](items []T, q Query, spec Spec[T]) []T {
	out := slices.Clone(items)
	less, ok := spec.Sorters[q.Sort]
	if !ok {
		less, ok = spec.Sorters[spec.DefaultSort]
	}
	if !ok {
		return out
	}
	if q.Order == "asc" {
		slices.SortStableFunc(out, less)
	} else {
		slices.SortStableFunc(out, func(a, b T) int { return less(b, a) })
	}
	return out
}

// Paginate slices one page. Pages past the end are empty.
func Paginate[T any](items []T, page, limit int) Page[T] {
	q := Query{Page: page, Limit: limit}.Normalize()
	total := len(items)
	totalPages := (total + q.Limit - 1) / q.Limit
	start := total
	if q.Page-1 < totalPages {
		start = (q.Page - 1) * q.Limit
	}
	end := min(start+q.Limit, total)

	pageItems := make([]T, end-start)
	copy(pageItems, items[start:end])
	return Page[T]{
		Items:      pageItems,
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: totalPages,
	}
}

// Apply runs Filter, Sort and Paginate.
func Apply[T any](items []T, q Query, spec Spec[T]) Page[T] {
	q = q.Normalize()
	return Paginate(Sort(Filter(items, q, spec), q, spec), q.Page, q.Limit)
}

func ByString[T any](get func(T) string) func(a, b T) int {
	return func(a, b T) int {
		return cmp.Compare(strings.ToLower(get(a)), strings.ToLower(get(b)))
	}
}

func ByTime[T any](get func(T) time.Time) func(a, b T) int {
	return func(a, b T) int { return get(a).Compare(get(b)) }
}

func ByInt[T any](get func(T) int) func(a, b T) int {
	return func(a, b T) int { return cmp.Compare(get(a), get(b)) }
}

func ByDecimal[T any](get func(T) decimal.Decimal) func(a, b T) int {
	return func(a, b T) int { return get(a).Cmp(get(b)) }
}
