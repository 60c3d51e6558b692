package collection

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/rotisserie/eris"

	"github.com/dgketchum/openet-ptjpl/internal/graph"
)

// Clause types beyond the plain comparisons.
const (
	ClauseMaxDifference = "max_difference"
	ClauseInList        = "in_list"
)

var clauseAliases = map[string]string{
	"equals":              string(graph.OpEquals),
	"notEquals":           string(graph.OpNotEquals),
	"lessThan":            string(graph.OpLessThan),
	"lessThanOrEquals":    string(graph.OpLessThanOrEquals),
	"greaterThan":         string(graph.OpGreaterThan),
	"greaterThanOrEquals": string(graph.OpGreaterThanOrEquals),
	"maxDifference":       ClauseMaxDifference,
	"inList":              ClauseInList,
}

// Clause is one declarative comparison on scene metadata.
type Clause struct {
	Type       string  `json:"type" yaml:"type" mapstructure:"type"`
	LeftField  string  `json:"leftField" yaml:"leftField" mapstructure:"leftField"`
	RightValue any     `json:"rightValue,omitempty" yaml:"rightValue,omitempty" mapstructure:"rightValue"`
	RightField string  `json:"rightField,omitempty" yaml:"rightField,omitempty" mapstructure:"rightField"`
	Difference float64 `json:"difference,omitempty" yaml:"difference,omitempty" mapstructure:"difference"`
}

func (c Clause) normalized() (Clause, error) {
	if alias, ok := clauseAliases[c.Type]; ok {
		c.Type = alias
	}
	switch c.Type {
	case string(graph.OpEquals), string(graph.OpNotEquals),
		string(graph.OpLessThan), string(graph.OpLessThanOrEquals),
		string(graph.OpGreaterThan), string(graph.OpGreaterThanOrEquals),
		ClauseMaxDifference:
	case ClauseInList:
		if _, ok := listOf(c.RightValue); !ok {
			return c, eris.Wrapf(ErrInvalidValue, "collection: in_list on %s needs a list value", c.LeftField)
		}
	default:
		return c, eris.Wrapf(ErrInvalidValue, "collection: unknown filter type %q", c.Type)
	}
	if c.LeftField == "" {
		return c, eris.Wrapf(ErrInvalidValue, "collection: %s filter without leftField", c.Type)
	}
	if c.RightField == "" && c.RightValue == nil {
		return c, eris.Wrapf(ErrInvalidValue, "collection: %s filter on %s without a right side", c.Type, c.LeftField)
	}
	return c, nil
}

func (c Clause) filter() (graph.Filter, error) {
	switch c.Type {
	case ClauseMaxDifference:
		if c.RightField != "" {
			return graph.MaxDifference(c.Difference, c.LeftField, c.RightField), nil
		}
		return graph.MaxDifferenceValue(c.Difference, c.LeftField, c.RightValue), nil
	case ClauseInList:
		list, _ := listOf(c.RightValue)
		return graph.InList(c.LeftField, list), nil
	default:
		if c.RightField != "" {
			return graph.CompareFields(graph.Op(c.Type), c.LeftField, c.RightField)
		}
		return graph.Compare(graph.Op(c.Type), c.LeftField, c.RightValue)
	}
}

func listOf(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = f
		}
		return out, true
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}

// Predicate is a per-collection scene filter: either clauses that are
// combined conjunctively or an opaque filter graph.
type Predicate struct {
	Clauses []Clause
	Filter  graph.Filter
}

// ParsePredicate accepts a graph.Filter, a Predicate, a Clause, a clause
// list, or clause descriptions as maps with keys type, leftField,
// rightValue, rightField and difference.
func ParsePredicate(v any) (Predicate, error) {
	var clauses []Clause
	switch t := v.(type) {
	case graph.Filter:
		if t.IsZero() {
			return Predicate{}, eris.Wrap(ErrInvalidValue, "collection: empty filter")
		}
		return Predicate{Filter: t.Clone()}, nil
	case Predicate:
		return t.validated()
	case *Predicate:
		if t == nil {
			return Predicate{}, eris.Wrap(ErrInvalidValue, "collection: nil predicate")
		}
		return t.validated()
	case Clause:
		clauses = []Clause{t}
	case []Clause:
		clauses = t
	case map[string]any:
		c, err := decodeClause(t)
		if err != nil {
			return Predicate{}, err
		}
		clauses = []Clause{c}
	case []map[string]any:
		for _, m := range t {
			c, err := decodeClause(m)
			if err != nil {
				return Predicate{}, err
			}
			clauses = append(clauses, c)
		}
	case []any:
		for i, x := range t {
			m, ok := x.(map[string]any)
			if !ok {
				return Predicate{}, eris.Wrapf(ErrInvalidType, "collection: filter clause %d is %T", i, x)
			}
			c, err := decodeClause(m)
			if err != nil {
				return Predicate{}, err
			}
			clauses = append(clauses, c)
		}
	default:
		return Predicate{}, eris.Wrapf(ErrInvalidType, "collection: unsupported filter %T", v)
	}
	return Predicate{Clauses: clauses}.validated()
}

func decodeClause(m map[string]any) (Clause, error) {
	var c Clause
	if err := mapstructure.Decode(m, &c); err != nil {
		return Clause{}, eris.Wrapf(ErrInvalidValue, "collection: decode filter clause: %v", err)
	}
	return c, nil
}

func (p Predicate) validated() (Predicate, error) {
	if !p.Filter.IsZero() {
		return Predicate{Filter: p.Filter.Clone()}, nil
	}
	if len(p.Clauses) == 0 {
		return Predicate{}, eris.Wrap(ErrInvalidValue, "collection: empty filter clause list")
	}
	out := Predicate{Clauses: make([]Clause, len(p.Clauses))}
	for i, c := range p.Clauses {
		n, err := c.normalized()
		if err != nil {
			return Predicate{}, err
		}
		n.RightValue = copyValue(n.RightValue)
		out.Clauses[i] = n
	}
	return out, nil
}

// Graph returns the predicate as a filter graph. Every call builds a fresh
// graph.
func (p Predicate) Graph() (graph.Filter, error) {
	if !p.Filter.IsZero() {
		return p.Filter.Clone(), nil
	}
	filters := make([]graph.Filter, 0, len(p.Clauses))
	for _, c := range p.Clauses {
		f, err := c.filter()
		if err != nil {
			return graph.Filter{}, eris.Wrap(ErrInvalidValue, err.Error())
		}
		filters = append(filters, f)
	}
	if len(filters) == 1 {
		return filters[0], nil
	}
	return graph.And(filters...), nil
}

func (p Predicate) clone() Predicate {
	out := Predicate{}
	if !p.Filter.IsZero() {
		out.Filter = p.Filter.Clone()
	}
	if p.Clauses != nil {
		out.Clauses = make([]Clause, len(p.Clauses))
		for i, c := range p.Clauses {
			c.RightValue = copyValue(c.RightValue)
			out.Clauses[i] = c
		}
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	case []string:
		return append([]string{}, t...)
	case []float64:
		return append([]float64{}, t...)
	case []int:
		return append([]int{}, t...)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = copyValue(x)
		}
		return out
	default:
		return v
	}
}
