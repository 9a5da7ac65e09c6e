package repository

// DefaultPerPage applies when a request does not specify a page size.
const DefaultPerPage = 20

// PageRequest selects one 1-based page. Values below 1 are clamped.
type PageRequest struct {
	Page    int
	PerPage int
}

func (r PageRequest) normalize() PageRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PerPage < 1 {
		r.PerPage = DefaultPerPage
	}
	return r
}

func (r PageRequest) offset() int { return (r.Page - 1) * r.PerPage }

// Page is one slice of an ordered result set. Total counts the whole set
// and does not depend on the page size. A page past the end has no items.
type Page[T any] struct {
	Items   []T
	Page    int
	PerPage int
	Total   int
}

func newPage[T any](req PageRequest, items []T, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Page: req.Page, PerPage: req.PerPage, Total: total}
}

func (p Page[T]) HasPrev() bool { return p.Page > 1 }
func (p Page[T]) HasNext() bool { return p.Page*p.PerPage < p.Total }
func (p Page[T]) PrevNum() int  { return p.Page - 1 }
func (p Page[T]) NextNum() int  { return p.Page + 1 }

// Pages is the number of pages, at least 1.
func (p Page[T]) Pages() int {
	if p.Total == 0 || p.PerPage < 1 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// IterPages lists page numbers for a pagination widget, with 0 marking a
// gap: the edges and a window around the current page are shown.
func (p Page[T]) IterPages() []int {
	const leftEdge, leftCurrent, rightCurrent, rightEdge = 2, 2, 5, 2
	var out []int
	last := 0
	pages := p.Pages()
	for n := 1; n <= pages; n++ {
		if n <= leftEdge ||
			(n > p.Page-leftCurrent-1 && n < p.Page+rightCurrent) ||
			n > pages-rightEdge {
			if last+1 != n {
				out = append(out, 0)
			}
			out = append(out, n)
			last = n
		}
	}
	return out
}
