// Package mapper turns result rows into typed Go values.
//
// A Plan is resolved once per target type and column shape and cached; every
// row of that shape then decodes without further reflection lookups.
package mapper

import (
	"iter"
	"reflect"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Konsultn-Engineering/daokit/cache"
	"github.com/Konsultn-Engineering/daokit/database"
)

// Default is used by Decode when no Deserializer is given.
var Default = New()

type planKey struct {
	typ   reflect.Type
	shape string
}

// Deserializer builds and caches decoding plans.
type Deserializer struct {
	plans *cache.LRU[planKey, *Plan]
	log   zerolog.Logger
}

type Option func(*config)

type config struct {
	logger    *zerolog.Logger
	cacheSize int
}

// WithLogger sets the logger used for unmatched column warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = &l }
}

// WithCacheSize bounds the number of cached plans.
func WithCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

func New(opts ...Option) *Deserializer {
	c := config{cacheSize: cache.DefaultSize}
	for _, opt := range opts {
		opt(&c)
	}
	d := &Deserializer{plans: cache.NewLRU[planKey, *Plan](c.cacheSize)}
	if c.logger != nil {
		d.log = *c.logger
	} else {
		d.log = log.Logger
	}
	return d
}

// Plan returns the decoding plan of t for a result with the given columns.
func (d *Deserializer) Plan(t reflect.Type, cols []database.Column) (*Plan, error) {
	key := planKey{typ: t, shape: shapeOf(cols)}
	return d.plans.GetOrCreate(key, func() (*Plan, error) {
		p, err := buildPlan(t, cols)
		if err != nil {
			return nil, err
		}
		if len(p.skipped) > 0 {
			d.log.Warn().
				Str("type", t.String()).
				Strs("columns", p.skipped).
				Msg("unmatched result columns skipped")
		}
		return p, nil
	})
}

// Cached reports the number of resident plans.
func (d *Deserializer) Cached() int { return d.plans.Len() }

func shapeOf(cols []database.Column) string {
	var b strings.Builder
	for _, c := range cols {
		b.WriteString(c.Name)
		b.WriteByte(0)
		b.WriteString(c.TypeName)
		b.WriteByte(0x1f)
	}
	return b.String()
}

// Decode yields one T per row and closes rows when the sequence ends, whether
// it was drained, stopped early or failed. A nil d uses Default.
func Decode[T any](d *Deserializer, rows database.Rows) iter.Seq2[T, error] {
	if d == nil {
		d = Default
	}
	return func(yield func(T, error) bool) {
		defer rows.Close()
		var zero T

		cols, err := rows.Columns()
		if err != nil {
			yield(zero, err)
			return
		}
		plan, err := d.Plan(reflect.TypeFor[T](), cols)
		if err != nil {
			yield(zero, err)
			return
		}

		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				yield(zero, err)
				return
			}
			v, err := plan.Decode(values)
			if err != nil {
				yield(zero, err)
				return
			}
			out, _ := v.Interface().(T)
			if !yield(out, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, err)
		}
	}
}

// Collect drains Decode into a slice, stopping at the first error.
func Collect[T any](d *Deserializer, rows database.Rows) ([]T, error) {
	var out []T
	for v, err := range Decode[T](d, rows) {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
