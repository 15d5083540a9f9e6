package query

import (
	"github.com/Konsultn-Engineering/daokit/codec"
	"github.com/Konsultn-Engineering/daokit/paging"
	"github.com/Konsultn-Engineering/daokit/schema"
)

// Fragment is one piece of a compiled query. The set is closed.
type Fragment interface {
	fragment()
}

// Static is literal SQL text.
type Static struct {
	Text string
}

// Param is a bound value read from argument ArgIndex along Path.
type Param struct {
	Name     string // placeholder text without the colon
	ArgIndex int
	Path     *schema.Path
	Kind     codec.Kind

	encode codec.Encoder
}

// SchemaRef substitutes the schema name held by argument ArgIndex into the
// SQL text, followed by .Suffix when Suffix is set.
type SchemaRef struct {
	ArgIndex int
	Suffix   string
}

// PagingClause appends ORDER BY, LIMIT and OFFSET for the paging argument.
// ArgIndex is -1 when the method takes no paging argument.
type PagingClause struct {
	ArgIndex int
	Meta     paging.Meta
}

func (Static) fragment()       {}
func (Param) fragment()        {}
func (SchemaRef) fragment()    {}
func (PagingClause) fragment() {}

// padded reports whether the placeholder is written as " ? " so that a
// rewritten "IN (:xs)" reads "=ANY( ? )".
func (p Param) padded() bool {
	return p.Kind == codec.KindList
}
