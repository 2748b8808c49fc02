// Package search provides paging over full-range scans.
//
// A scan cannot skip rows, so the Pager sees every match: it counts all of
// them and keeps only those inside the requested page.
//
//	p := search.NewPager[[]byte](criteria)
//	for s.Next() {
//	    if match(s.Result()) {
//	        p.Process(payload)
//	    }
//	}
//	page, total := p.Results(), p.Total()
package search

import "math"

// Criteria selects one page of results. Pages are numbered from 1.
type Criteria struct {
	PageNumber int `json:"pageNumber" yaml:"page_number"`
	PageSize   int `json:"pageSize" yaml:"page_size"`
}

// All returns criteria selecting every match in a single page.
func All() Criteria {
	return Criteria{PageNumber: 1, PageSize: 0}
}

// Normalize returns c with a page number of at least 1 and a non-negative
// page size. A page size of 0 disables paging.
func (c Criteria) Normalize() Criteria {
	if c.PageNumber < 1 {
		c.PageNumber = 1
	}
	if c.PageSize < 0 {
		c.PageSize = 0
	}
	return c
}

// Offset returns the zero-based ordinal of the first match on the page,
// saturating at math.MaxInt.
func (c Criteria) Offset() int {
	c = c.Normalize()
	if c.PageSize == 0 {
		return 0
	}
	if c.PageNumber-1 > math.MaxInt/c.PageSize {
		return math.MaxInt
	}
	return (c.PageNumber - 1) * c.PageSize
}

// Results is one page of matches plus the number of matches overall.
type Results[T any] struct {
	Results    []T `json:"results"`
	NumResults int `json:"numResults"`
}

// Pager accumulates one page of a match sequence.
type Pager[T any] struct {
	criteria Criteria
	results  []T
	total    int
}

// NewPager creates a pager for criteria.
func NewPager[T any](criteria Criteria) *Pager[T] {
	return &Pager[T]{criteria: criteria.Normalize()}
}

// Process records one match, keeping it when it falls inside the page.
func (p *Pager[T]) Process(item T) {
	ordinal := p.total
	p.total++

	if p.criteria.PageSize == 0 {
		p.results = append(p.results, item)
		return
	}
	if ordinal/p.criteria.PageSize == p.criteria.PageNumber-1 {
		p.results = append(p.results, item)
	}
}

// Total returns the number of matches processed.
func (p *Pager[T]) Total() int {
	return p.total
}

// Results returns the matches kept for the page.
func (p *Pager[T]) Results() []T {
	return p.results
}

// Map converts the kept matches with fn, stopping at the first error.
func Map[T, U any](p *Pager[T], fn func(T) (U, error)) (Results[U], error) {
	out := Results[U]{Results: make([]U, 0, len(p.results)), NumResults: p.total}
	for _, item := range p.results {
		u, err := fn(item)
		if err != nil {
			return Results[U]{}, err
		}
		out.Results = append(out.Results, u)
	}
	return out, nil
}
