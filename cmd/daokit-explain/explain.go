package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/Konsultn-Engineering/daokit/codec"
	"github.com/Konsultn-Engineering/daokit/dialect"
	"github.com/Konsultn-Engineering/daokit/paging"
	"github.com/Konsultn-Engineering/daokit/query"
)

// File is the YAML document of templates to check.
type File struct {
	Driver  string  `yaml:"driver"`
	Queries []Entry `yaml:"queries"`
}

type Entry struct {
	Owner    string      `yaml:"owner"`
	Name     string      `yaml:"name"`
	Template string      `yaml:"template"`
	Params   []Param     `yaml:"params"`
	Paging   *PagingSpec `yaml:"paging"`
}

type Param struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Role string `yaml:"role"`
}

type PagingSpec struct {
	DefaultSort  string   `yaml:"default_sort"`
	AllowedSort  []string `yaml:"allowed_sort"`
	DefaultLimit int      `yaml:"default_limit"`
	MaxLimit     int      `yaml:"max_limit"`
}

var paramTypes = map[string]reflect.Type{
	"string":    reflect.TypeFor[string](),
	"int":       reflect.TypeFor[int](),
	"int32":     reflect.TypeFor[int32](),
	"int64":     reflect.TypeFor[int64](),
	"float64":   reflect.TypeFor[float64](),
	"bool":      reflect.TypeFor[bool](),
	"bytes":     reflect.TypeFor[[]byte](),
	"uuid":      reflect.TypeFor[uuid.UUID](),
	"ulid":      reflect.TypeFor[ulid.ULID](),
	"date":      reflect.TypeFor[civil.Date](),
	"time":      reflect.TypeFor[civil.Time](),
	"datetime":  reflect.TypeFor[civil.DateTime](),
	"timestamp": reflect.TypeFor[time.Time](),
	"yearmonth": reflect.TypeFor[codec.YearMonth](),
	"json":      reflect.TypeFor[map[string]any](),
	"any":       reflect.TypeFor[any](),
}

// typeOf resolves a type name; a leading "[]" declares a list.
func typeOf(name string) (reflect.Type, error) {
	if elem, ok := strings.CutPrefix(name, "[]"); ok {
		t, err := typeOf(elem)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(t), nil
	}
	if name == "" {
		return paramTypes["any"], nil
	}
	t, ok := paramTypes[name]
	if !ok {
		return nil, fmt.Errorf("unknown parameter type %q", name)
	}
	return t, nil
}

// Method builds the descriptor the entry's template compiles against.
func (e Entry) Method() (query.Method, error) {
	m := query.Method{Owner: e.Owner, Name: e.Name}
	for _, p := range e.Params {
		switch p.Role {
		case "schema":
			m.Params = append(m.Params, query.SchemaArg(p.Name))
		case "paging":
			m.Params = append(m.Params, query.PageArg(p.Name))
		case "", "value":
			t, err := typeOf(p.Type)
			if err != nil {
				return m, fmt.Errorf("%s: parameter %q: %w", m.Source(), p.Name, err)
			}
			m.Params = append(m.Params, query.Parameter{Name: p.Name, Type: t})
		default:
			return m, fmt.Errorf("%s: parameter %q: unknown role %q", m.Source(), p.Name, p.Role)
		}
	}
	if e.Paging != nil {
		m.Paging = paging.Meta{
			DefaultSort:  e.Paging.DefaultSort,
			AllowedSort:  e.Paging.AllowedSort,
			DefaultLimit: e.Paging.DefaultLimit,
			MaxLimit:     e.Paging.MaxLimit,
		}
	}
	return m, nil
}

func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &f, nil
}

// Explain compiles every entry for d and writes one block per query. It stops
// at the first template that does not compile.
func Explain(w io.Writer, f *File, d dialect.Dialect) error {
	for _, e := range f.Queries {
		m, err := e.Method()
		if err != nil {
			return err
		}
		q, err := query.Compile(e.Template, m, query.WithDialect(d))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "-- %s\n%s\n", q.Source(), q.String())
		for i, p := range q.Params() {
			fmt.Fprintf(w, "--   %d: %s (%s)\n", i+1, p.Name, p.Kind)
		}
		if m.Paging.DefaultLimit > 0 || m.Paging.DefaultSort != "" {
			fmt.Fprintf(w, "--   paged: %s\n", strings.TrimSpace(m.Paging.Apply("", paging.NewRequest(-1, 0))))
		}
		fmt.Fprintln(w)
	}
	return nil
}
