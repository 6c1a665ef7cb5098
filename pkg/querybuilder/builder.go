// Package querybuilder assembles dynamic SQL fragments for PostgreSQL without
// ever interpolating caller data. Values become positional parameters and
// column references must come from a fixed whitelist.
package querybuilder

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidColumn is returned for any column reference outside the whitelist.
// It indicates a programming error, not bad user input.
var ErrInvalidColumn = errors.New("querybuilder: invalid column")

// Operator is a comparison operator permitted in a Condition. Every filter
// the API exposes is an exact match, so equality is the only one.
type Operator string

const OpEq Operator = "="

func (o Operator) valid() bool {
	return o == OpEq
}

// Condition is a single "column op value" predicate. An empty Op means OpEq.
type Condition struct {
	Column string
	Op     Operator
	Value  any
}

// Eq is shorthand for an equality condition.
func Eq(column string, value any) Condition {
	return Condition{Column: column, Op: OpEq, Value: value}
}

// Whitelist is the immutable set of column names and table aliases a
// repository may reference. Build it once from the schema.
type Whitelist struct {
	columns map[string]struct{}
	aliases map[string]struct{}
}

// NewWhitelist builds a whitelist. Columns may be bare ("hostname") or
// qualified ("br.hostname"); a qualified entry also allows its bare form.
func NewWhitelist(columns, aliases []string) *Whitelist {
	w := &Whitelist{
		columns: make(map[string]struct{}, len(columns)),
		aliases: make(map[string]struct{}, len(aliases)),
	}
	for _, a := range aliases {
		w.aliases[a] = struct{}{}
	}
	for _, c := range columns {
		if alias, col, ok := strings.Cut(c, "."); ok {
			w.aliases[alias] = struct{}{}
			c = col
		}
		w.columns[c] = struct{}{}
	}
	return w
}

// Allows reports whether name is a valid column reference.
func (w *Whitelist) Allows(name string) bool {
	parts := strings.Split(name, ".")
	switch len(parts) {
	case 1:
		_, ok := w.columns[parts[0]]
		return ok
	case 2:
		_, aliasOK := w.aliases[parts[0]]
		_, colOK := w.columns[parts[1]]
		return aliasOK && colOK
	default:
		return false
	}
}

// NewBuilder returns an empty builder bound to this whitelist.
func (w *Whitelist) NewBuilder() *Builder {
	return &Builder{whitelist: w}
}

// Builder accumulates parameters for one query. It is not safe for
// concurrent use; create one per query.
type Builder struct {
	whitelist *Whitelist
	params    []any
}

// AddParameter appends value and returns its placeholder ($1, $2, ...).
func (b *Builder) AddParameter(value any) string {
	b.params = append(b.params, value)
	return fmt.Sprintf("$%d", len(b.params))
}

// ValidateColumn returns name unchanged when whitelisted, ErrInvalidColumn otherwise.
func (b *Builder) ValidateColumn(name string) (string, error) {
	if !b.whitelist.Allows(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidColumn, name)
	}
	return name, nil
}

// Column is ValidateColumn for ORDER BY and GROUP BY references.
func (b *Builder) Column(name string) (string, error) {
	return b.ValidateColumn(name)
}

// BuildWhere renders conditions joined with AND. Zero conditions yield ""
// so the query runs unfiltered.
func (b *Builder) BuildWhere(conds []Condition) (string, error) {
	if len(conds) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(conds))
	for _, c := range conds {
		col, err := b.ValidateColumn(c.Column)
		if err != nil {
			return "", err
		}
		op := c.Op
		if op == "" {
			op = OpEq
		}
		if !op.valid() {
			return "", fmt.Errorf("querybuilder: invalid operator %q", op)
		}
		clauses = append(clauses, fmt.Sprintf("%s %s %s", col, op, b.AddParameter(c.Value)))
	}
	return "WHERE " + strings.Join(clauses, " AND "), nil
}

// Params returns the parameters in placeholder order.
func (b *Builder) Params() []any {
	out := make([]any, len(b.params))
	copy(out, b.params)
	return out
}
