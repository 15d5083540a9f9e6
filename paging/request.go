// Package paging injects ORDER BY, LIMIT and OFFSET into compiled SQL and
// truncates result streams to one page, recording whether more rows exist.
package paging

import (
	"fmt"
	"strings"
	"sync/atomic"
)

type Order uint8

const (
	Asc Order = iota
	Desc
)

func (o Order) String() string {
	if o == Desc {
		return "DESC"
	}
	return "ASC"
}

// ParseOrder accepts "asc" and "desc" in any case; anything else is Asc.
func ParseOrder(s string) Order {
	if strings.EqualFold(strings.TrimSpace(s), "desc") {
		return Desc
	}
	return Asc
}

// Request is the caller's page selection. A nil Limit disables paging.
// After the page is read, IsLastPage reports whether the result was complete.
// A request may be reused for the next page; each read starts the flag over.
type Request struct {
	Limit     *int
	Offset    int
	SortBy    string
	SortOrder Order

	more atomic.Bool
}

func NewRequest(limit, offset int) *Request {
	return &Request{Limit: &limit, Offset: offset}
}

// SortedBy sets the requested sort column and direction.
func (r *Request) SortedBy(column string, order Order) *Request {
	r.SortBy = column
	r.SortOrder = order
	return r
}

// IsLastPage is true until a row beyond the limit has been observed in the
// most recent read.
func (r *Request) IsLastPage() bool {
	return !r.more.Load()
}

func (r *Request) markMore() {
	r.more.Store(true)
}

func (r *Request) resetMore() {
	r.more.Store(false)
}

// Enabled reports whether r asks for paging at all.
func (r *Request) Enabled() bool {
	return r != nil && r.Limit != nil
}

func (r *Request) String() string {
	if !r.Enabled() {
		return "unpaged"
	}
	s := fmt.Sprintf("limit=%d offset=%d", *r.Limit, r.Offset)
	if r.SortBy != "" {
		s += fmt.Sprintf(" sort=%s %s", r.SortBy, r.SortOrder)
	}
	return s
}
