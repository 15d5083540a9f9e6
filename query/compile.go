// Package query compiles SQL templates with named placeholders into
// fragment lists once, and binds them to call arguments per call.
package query

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/Konsultn-Engineering/daokit/codec"
	"github.com/Konsultn-Engineering/daokit/dialect"
	"github.com/Konsultn-Engineering/daokit/schema"
)

// CompiledQuery is the immutable result of compiling one template for one
// method. It is safe for concurrent use.
type CompiledQuery struct {
	source    string
	template  string
	fragments []Fragment
	params    []Parameter
	dialect   dialect.Dialect
}

type Option func(*compileOptions)

type compileOptions struct {
	dialect dialect.Dialect
}

// WithDialect selects the placeholder style and identifier quoting used when
// binding. List parameters under a rewritten IN need a dialect with arrays.
func WithDialect(d dialect.Dialect) Option {
	return func(o *compileOptions) {
		if d != nil {
			o.dialect = d
		}
	}
}

var anyType = reflect.TypeFor[any]()

func positionalName(i int) string {
	return "param" + strconv.Itoa(i+1)
}

// Compile parses template against m. Every template or descriptor mistake is
// reported here; Bind only fails on argument values.
func Compile(template string, m Method, opts ...Option) (*CompiledQuery, error) {
	o := compileOptions{dialect: dialect.Standard}
	for _, opt := range opts {
		opt(&o)
	}
	source := m.Source()

	regions, err := splitRegions(template)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	// Unnamed placeholders are rejected before anything is rewritten.
	if _, err := findNamedParams(regions); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	text := rewriteIn(regions)
	if regions, err = splitRegions(text); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	tokens, err := findNamedParams(regions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	fragments := make([]Fragment, 0, 2*len(tokens)+2)
	last := 0
	for _, tok := range tokens {
		if tok.start > last {
			fragments = append(fragments, Static{Text: text[last:tok.start]})
		}
		f, err := compilePlaceholder(tok.name, m, source)
		if err != nil {
			return nil, err
		}
		if p, ok := f.(Param); ok && p.padded() && !o.dialect.SupportsArrays() && followsArrayOperator(fragments) {
			return nil, fmt.Errorf("%s: %w: :%s on %s", source, ErrArrayParameter, tok.name, o.dialect.Name())
		}
		fragments = append(fragments, f)
		last = tok.end
	}
	if last < len(text) {
		fragments = append(fragments, Static{Text: text[last:]})
	}
	fragments = append(fragments, PagingClause{ArgIndex: m.pagingIndex(), Meta: m.Paging})

	return &CompiledQuery{
		source:    source,
		template:  template,
		fragments: fragments,
		params:    append([]Parameter(nil), m.Params...),
		dialect:   o.dialect,
	}, nil
}

// MustCompile is Compile for package-level query declarations.
func MustCompile(template string, m Method, opts ...Option) *CompiledQuery {
	q, err := Compile(template, m, opts...)
	if err != nil {
		panic(err)
	}
	return q
}

// followsArrayOperator reports whether the last compiled fragment ends in a
// rewritten "=ANY(" or "!=ALL(".
func followsArrayOperator(fragments []Fragment) bool {
	if len(fragments) == 0 {
		return false
	}
	s, ok := fragments[len(fragments)-1].(Static)
	if !ok {
		return false
	}
	text := strings.TrimRight(s.Text, " \t\n")
	return strings.HasSuffix(text, "=ANY(") || strings.HasSuffix(text, "!=ALL(")
}

func compilePlaceholder(name string, m Method, source string) (Fragment, error) {
	segments := strings.Split(name, ".")
	idx, ok := m.lookup(segments[0])
	if !ok {
		return nil, &UnknownPlaceholderError{Name: name, Source: source}
	}
	param := m.Params[idx]

	switch {
	case param.isPaging():
		return nil, fmt.Errorf("%s: %w: :%s", source, ErrPagingPlaceholder, name)
	case param.Role == RoleSchema:
		return SchemaRef{ArgIndex: idx, Suffix: strings.Join(segments[1:], ".")}, nil
	}

	root := param.Type
	if root == nil {
		root = anyType
	}
	path, err := schema.Resolve(root, segments[1:])
	if err != nil {
		return nil, &UnresolvablePropertyError{Path: name, Root: root, Source: source, Err: err}
	}
	leaf := path.Type()
	return Param{
		Name:     name,
		ArgIndex: idx,
		Path:     path,
		Kind:     codec.KindOf(leaf),
		encode:   codec.EncoderFor(leaf),
	}, nil
}

func (q *CompiledQuery) Source() string   { return q.source }
func (q *CompiledQuery) Template() string { return q.template }

// Fragments returns a copy of the compiled fragment list.
func (q *CompiledQuery) Fragments() []Fragment {
	return append([]Fragment(nil), q.fragments...)
}

// Params returns the Param fragments in binding order.
func (q *CompiledQuery) Params() []Param {
	var out []Param
	for _, f := range q.fragments {
		if p, ok := f.(Param); ok {
			out = append(out, p)
		}
	}
	return out
}

// String renders the SQL with placeholders and without paging. Schema
// references show as <schema>.
func (q *CompiledQuery) String() string {
	var b strings.Builder
	n := 0
	for _, f := range q.fragments {
		switch f := f.(type) {
		case Static:
			b.WriteString(f.Text)
		case Param:
			n++
			writePlaceholder(&b, q.dialect, n, f.padded())
		case SchemaRef:
			writeSchemaRef(&b, "<schema>", f.Suffix)
		case PagingClause:
		}
	}
	return b.String()
}

// Bind resolves the compiled fragments against args, which must cover every
// declared parameter in declaration order. A value argument must have its
// parameter's declared type, a pointer to it, or a type of the same kind
// convertible to it.
func (q *CompiledQuery) Bind(args ...any) (*Statement, error) {
	if len(args) < len(q.params) {
		return nil, fmt.Errorf("%s: %w: want %d, got %d", q.source, ErrArgumentCount, len(q.params), len(args))
	}
	args, err := q.conform(args)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.Grow(len(q.template) + 16)
	bound := make([]any, 0, len(q.fragments)/2)
	stmt := &Statement{query: q, limit: -1}

	for _, f := range q.fragments {
		switch f := f.(type) {
		case Static:
			b.WriteString(f.Text)
		case Param:
			v, err := f.bind(args[f.ArgIndex])
			if err != nil {
				return nil, fmt.Errorf("%s: failed to bind :%s: %w", q.source, f.Name, err)
			}
			bound = append(bound, v)
			writePlaceholder(&b, q.dialect, len(bound), f.padded())
		case SchemaRef:
			name, err := schemaName(args[f.ArgIndex])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", q.source, err)
			}
			ident := q.dialect.QuoteIdentifier(name)
			stmt.schemas = append(stmt.schemas, ident)
			writeSchemaRef(&b, ident, f.Suffix)
		case PagingClause:
			if f.ArgIndex < 0 {
				continue
			}
			req := pagingRequest(args[f.ArgIndex])
			if limit, ok := f.Meta.EffectiveLimit(req); ok {
				stmt.page, stmt.limit = req, limit
				sql := f.Meta.Apply(b.String(), req)
				b.Reset()
				b.WriteString(sql)
			}
		}
	}

	stmt.sql = b.String()
	stmt.args = bound
	return stmt, nil
}

// conform checks each value argument against its declared type and returns
// args with same-kind conversions applied. args is not modified.
func (q *CompiledQuery) conform(args []any) ([]any, error) {
	var out []any
	for i, p := range q.params {
		if p.Role != RoleValue || p.isPaging() {
			continue
		}
		v, converted, ok := conformArg(p.Type, args[i])
		if !ok {
			name := p.Name
			if name == "" {
				name = positionalName(i)
			}
			return nil, fmt.Errorf("%s: %w: %s wants %s, got %T", q.source, ErrArgumentType, name, p.Type, args[i])
		}
		if converted {
			if out == nil {
				out = append([]any(nil), args...)
			}
			out[i] = v
		}
	}
	if out == nil {
		return args, nil
	}
	return out, nil
}

// conformArg matches arg to t, looking through pointers on either side.
func conformArg(t reflect.Type, arg any) (v any, converted, ok bool) {
	if t == nil || arg == nil || t.Kind() == reflect.Interface {
		return arg, false, true
	}
	if reflect.TypeOf(arg).AssignableTo(t) {
		return arg, false, true
	}
	rv := reflect.ValueOf(arg)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return arg, false, true
		}
		rv = rv.Elem()
	}
	want := t
	for want.Kind() == reflect.Pointer {
		want = want.Elem()
	}
	switch {
	case rv.Type().AssignableTo(want):
		return arg, false, true
	case kindClass(rv.Kind()) == kindClass(want.Kind()) && rv.Type().ConvertibleTo(want):
		return rv.Convert(want).Interface(), true, true
	}
	return nil, false, false
}

// kindClass folds the sized numeric kinds together so int32 binds as int64
// but an int never binds as a string.
func kindClass(k reflect.Kind) reflect.Kind {
	switch k {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return reflect.Int
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return reflect.Uint
	case reflect.Float32:
		return reflect.Float64
	}
	return k
}

func (p Param) bind(arg any) (any, error) {
	v, ok := p.Path.Get(arg)
	if !ok {
		return nil, nil
	}
	return p.encode(v)
}

func writeSchemaRef(b *strings.Builder, name, suffix string) {
	b.WriteString(name)
	if suffix != "" {
		b.WriteString(".")
		b.WriteString(suffix)
	}
}

func writePlaceholder(b *strings.Builder, d dialect.Dialect, n int, padded bool) {
	if padded {
		b.WriteString(" ")
		b.WriteString(d.Placeholder(n))
		b.WriteString(" ")
		return
	}
	b.WriteString(d.Placeholder(n))
}

func schemaName(arg any) (string, error) {
	var name string
	switch v := arg.(type) {
	case nil:
		return "", ErrNullSchemaRef
	case string:
		name = v
	case *string:
		if v == nil {
			return "", ErrNullSchemaRef
		}
		name = *v
	case fmt.Stringer:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return "", ErrNullSchemaRef
		}
		name = v.String()
	default:
		return "", fmt.Errorf("%w: %T", ErrInvalidSchemaName, arg)
	}
	if name == "" {
		return "", ErrNullSchemaRef
	}
	if !validIdentifier(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSchemaName, name)
	}
	return name, nil
}

func validIdentifier(s string) bool {
	for i, r := range s {
		if r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

// IsCompileError reports whether err is one of the errors Compile returns
// for a malformed template or descriptor.
func IsCompileError(err error) bool {
	var unknown *UnknownPlaceholderError
	var unresolvable *UnresolvablePropertyError
	return errors.Is(err, ErrUnsupportedTemplate) || errors.Is(err, ErrPagingPlaceholder) ||
		errors.Is(err, ErrArrayParameter) || errors.As(err, &unknown) || errors.As(err, &unresolvable)
}
