package models

import "math"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage keeps (Page-1)*PageSize within a Postgres int4 OFFSET.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// ListOptions holds the search and pagination inputs shared by list operations.
type ListOptions struct {
	Search         string
	Page           int
	PageSize       int
	IncludeDeleted bool
}

// Normalize clamps pagination to sane bounds.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Page > MaxPage {
		o.Page = MaxPage
	}
	if o.PageSize < 1 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
	return o
}

// Offset returns the row offset of the requested page.
func (o ListOptions) Offset() int {
	n := o.Normalize()
	return (n.Page - 1) * n.PageSize
}

// Page is one page of a list result.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NewPage builds a page, never returning a nil Items slice.
func NewPage[T any](items []T, total int, opts ListOptions) Page[T] {
	n := opts.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: n.Page, PageSize: n.PageSize}
}
