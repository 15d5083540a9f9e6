package dao

import (
	"context"
	"errors"
	"iter"

	"github.com/Konsultn-Engineering/daokit/database"
	"github.com/Konsultn-Engineering/daokit/mapper"
	"github.com/Konsultn-Engineering/daokit/paging"
	"github.com/Konsultn-Engineering/daokit/query"
)

var ErrNotFound = errors.New("no rows in result set")

// Query is a read query whose rows decode into T.
type Query[T any] struct {
	rt *Runtime
	q  *query.CompiledQuery
}

func NewQuery[T any](rt *Runtime, template string, m query.Method) (*Query[T], error) {
	q, err := rt.Compile(template, m)
	if err != nil {
		return nil, err
	}
	return &Query[T]{rt: rt, q: q}, nil
}

// MustQuery is NewQuery for package-level declarations.
func MustQuery[T any](rt *Runtime, template string, m query.Method) *Query[T] {
	q, err := NewQuery[T](rt, template, m)
	if err != nil {
		panic(err)
	}
	return q
}

func (q *Query[T]) Compiled() *query.CompiledQuery { return q.q }

// List returns every row. A paged call returns at most the effective limit
// and updates the request's last-page flag.
func (q *Query[T]) List(ctx context.Context, args ...any) ([]T, error) {
	var out []T
	err := q.each(ctx, args, func(v T) bool {
		out = append(out, v)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// One returns the first row, or ErrNotFound.
func (q *Query[T]) One(ctx context.Context, args ...any) (T, error) {
	var (
		out   T
		found bool
	)
	err := q.each(ctx, args, func(v T) bool {
		out, found = v, true
		return false
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if !found {
		return out, ErrNotFound
	}
	return out, nil
}

// Stream yields rows as the worker decodes them. The connection stays
// checked out until the sequence ends; stopping early releases it before
// the loop exits.
func (q *Query[T]) Stream(ctx context.Context, args ...any) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		stmt, err := q.rt.bind(q.q, args)
		if err != nil {
			yield(zero, err)
			return
		}

		ctx, cancel := q.rt.withTimeout(ctx)
		defer cancel()

		type item struct {
			v   T
			err error
		}
		items := make(chan item)
		go func() {
			defer close(items)
			err := q.rt.sched.Run(ctx, func(ctx context.Context, conn database.Conn) error {
				for v, err := range q.rows(ctx, stmt, conn) {
					select {
					case items <- item{v, err}:
					case <-ctx.Done():
						return ctx.Err()
					}
					if err != nil {
						return nil
					}
				}
				return nil
			})
			if err != nil {
				items <- item{err: err}
			}
		}()

		defer func() {
			cancel()
			for range items {
			}
		}()
		for it := range items {
			if !yield(it.v, it.err) || it.err != nil {
				return
			}
		}
	}
}

func (q *Query[T]) each(ctx context.Context, args []any, fn func(T) bool) error {
	stmt, err := q.rt.bind(q.q, args)
	if err != nil {
		return err
	}
	ctx, cancel := q.rt.withTimeout(ctx)
	defer cancel()

	return q.rt.sched.Run(ctx, func(ctx context.Context, conn database.Conn) error {
		for v, err := range q.rows(ctx, stmt, conn) {
			if err != nil {
				return err
			}
			if !fn(v) {
				return nil
			}
		}
		return nil
	})
}

// rows runs stmt on conn and decodes its result, truncated to the page.
func (q *Query[T]) rows(ctx context.Context, stmt *query.Statement, conn database.Conn) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		rows, err := stmt.Query(ctx, conn)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		seq := mapper.Decode[T](q.rt.decoder, rows)
		if req, limit, ok := stmt.Page(); ok {
			seq = paging.Truncate(seq, req, limit)
		}
		for v, err := range seq {
			if !yield(v, err) {
				return
			}
		}
	}
}
