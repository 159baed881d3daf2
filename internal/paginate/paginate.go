// Package paginate slices ordered result sets into fixed-size pages.
//
// A page number that is absent or not an integer resolves to the first page;
// an integer outside the valid range resolves to the last page. An empty
// collection still has one (empty) page.
package paginate

import (
	"errors"
	"strconv"
	"strings"
)

// PerPage is the number of items on every feed page.
const PerPage = 10

// Window describes which slice of a collection a page covers.
type Window struct {
	Number   int
	NumPages int
	Count    int
	Offset   int
	Limit    int
}

// Page is a window together with the items loaded for it.
type Page[T any] struct {
	Items        []T  `json:"items"`
	Number       int  `json:"number"`
	NumPages     int  `json:"num_pages"`
	Count        int  `json:"count"`
	HasNext      bool `json:"has_next"`
	HasPrevious  bool `json:"has_previous"`
	NextPage     int  `json:"next_page,omitempty"`
	PreviousPage int  `json:"previous_page,omitempty"`
}

// New resolves the requested page against a collection of count items.
func New(count int, page string) Window {
	if count < 0 {
		count = 0
	}
	numPages := (count + PerPage - 1) / PerPage
	if numPages == 0 {
		numPages = 1
	}

	number := 1
	n, err := strconv.Atoi(strings.TrimSpace(page))
	switch {
	case err == nil:
		number = n
		if number < 1 || number > numPages {
			number = numPages
		}
	case errors.Is(err, strconv.ErrRange):
		// an integer, just too large to represent
		number = numPages
	}

	return Window{
		Number:   number,
		NumPages: numPages,
		Count:    count,
		Offset:   (number - 1) * PerPage,
		Limit:    PerPage,
	}
}

func (w Window) HasNext() bool {
	return w.Number < w.NumPages
}

func (w Window) HasPrevious() bool {
	return w.Number > 1
}

// Of wraps items loaded for w. Items beyond the page size are dropped.
func Of[T any](w Window, items []T) Page[T] {
	if len(items) > w.Limit {
		items = items[:w.Limit]
	}
	if items == nil {
		items = []T{}
	}
	p := Page[T]{
		Items:       items,
		Number:      w.Number,
		NumPages:    w.NumPages,
		Count:       w.Count,
		HasNext:     w.HasNext(),
		HasPrevious: w.HasPrevious(),
	}
	if p.HasNext {
		p.NextPage = w.Number + 1
	}
	if p.HasPrevious {
		p.PreviousPage = w.Number - 1
	}
	return p
}
