package graph

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/dgketchum/openet-ptjpl/internal/dateutil"
)

// Filter is a deferred predicate over image metadata.
type Filter struct {
	node *Node
}

// Node returns the underlying graph node.
func (f Filter) Node() *Node { return f.node }

// IsZero reports whether the handle is unset.
func (f Filter) IsZero() bool { return f.node == nil }

// Clone deep-copies the filter graph.
func (f Filter) Clone() Filter {
	return Filter{node: f.node.Clone()}
}

// Op names a comparison.
type Op string

// Comparison operators.
const (
	OpEquals              Op = "equals"
	OpNotEquals           Op = "not_equals"
	OpLessThan            Op = "less_than"
	OpLessThanOrEquals    Op = "less_than_or_equals"
	OpGreaterThan         Op = "greater_than"
	OpGreaterThanOrEquals Op = "greater_than_or_equals"
)

var opFunctions = map[Op]string{
	OpEquals:              FnFilterEquals,
	OpNotEquals:           FnFilterNotEquals,
	OpLessThan:            FnFilterLessThan,
	OpLessThanOrEquals:    FnFilterLessThanOrEquals,
	OpGreaterThan:         FnFilterGreaterThan,
	OpGreaterThanOrEquals: FnFilterGreaterThanOrEquals,
}

// Date keeps images acquired in [start, end).
func Date(start, end time.Time) Filter {
	return DateNodes(Num(float64(dateutil.Millis(start))), Num(float64(dateutil.Millis(end))))
}

// DateNodes is Date with deferred epoch-millisecond bounds.
func DateNodes(start, end Number) Filter {
	return Filter{node: Invoke(FnFilterDate, map[string]*Node{"start": start.node, "end": end.node})}
}

// Intersects keeps images whose footprint intersects g.
func Intersects(g Geometry) Filter {
	return Filter{node: Invoke(FnFilterIntersects, map[string]*Node{
		"leftField":  Constant(PropGeometry),
		"rightValue": g.node,
	})}
}

// Compare tests property leftField against a value.
func Compare(op Op, leftField string, value any) (Filter, error) {
	fn, ok := opFunctions[op]
	if !ok {
		return Filter{}, eris.Errorf("graph: unknown comparison %q", op)
	}
	return Filter{node: Invoke(fn, map[string]*Node{
		"leftField":  Constant(leftField),
		"rightValue": ValueOf(value),
	})}, nil
}

// CompareFields tests property leftField against property rightField. In a
// join the left field is read from the primary image and the right field
// from the secondary image.
func CompareFields(op Op, leftField, rightField string) (Filter, error) {
	fn, ok := opFunctions[op]
	if !ok {
		return Filter{}, eris.Errorf("graph: unknown comparison %q", op)
	}
	return Filter{node: Invoke(fn, map[string]*Node{
		"leftField":  Constant(leftField),
		"rightField": Constant(rightField),
	})}, nil
}

// Equals is Compare(OpEquals, ...).
func Equals(leftField string, value any) Filter {
	f, _ := Compare(OpEquals, leftField, value)
	return f
}

// LessThan is Compare(OpLessThan, ...).
func LessThan(leftField string, value any) Filter {
	f, _ := Compare(OpLessThan, leftField, value)
	return f
}

// LessThanOrEquals is Compare(OpLessThanOrEquals, ...).
func LessThanOrEquals(leftField string, value any) Filter {
	f, _ := Compare(OpLessThanOrEquals, leftField, value)
	return f
}

// GreaterThanOrEquals is Compare(OpGreaterThanOrEquals, ...).
func GreaterThanOrEquals(leftField string, value any) Filter {
	f, _ := Compare(OpGreaterThanOrEquals, leftField, value)
	return f
}

// MaxDifference keeps pairs whose properties differ by at most diff.
func MaxDifference(diff float64, leftField, rightField string) Filter {
	return Filter{node: Invoke(FnFilterMaxDifference, map[string]*Node{
		"difference": Constant(diff),
		"leftField":  Constant(leftField),
		"rightField": Constant(rightField),
	})}
}

// MaxDifferenceValue keeps images whose property is within diff of value.
func MaxDifferenceValue(diff float64, leftField string, value any) Filter {
	return Filter{node: Invoke(FnFilterMaxDifference, map[string]*Node{
		"difference": Constant(diff),
		"leftField":  Constant(leftField),
		"rightValue": ValueOf(value),
	})}
}

// InList keeps images whose property equals one of values.
func InList(leftField string, values []any) Filter {
	items := make([]*Node, len(values))
	for i, v := range values {
		items[i] = ValueOf(v)
	}
	return Filter{node: Invoke(FnFilterInList, map[string]*Node{
		"leftField":  Constant(leftField),
		"rightValue": Array(items...),
	})}
}

// And combines filters conjunctively.
func And(filters ...Filter) Filter {
	return Filter{node: Invoke(FnFilterAnd, map[string]*Node{"filters": filterArray(filters)})}
}

// Or combines filters disjunctively.
func Or(filters ...Filter) Filter {
	return Filter{node: Invoke(FnFilterOr, map[string]*Node{"filters": filterArray(filters)})}
}

// Not negates f.
func (f Filter) Not() Filter {
	return Filter{node: Invoke(FnFilterNot, map[string]*Node{"filter": f.node})}
}

func filterArray(filters []Filter) *Node {
	items := make([]*Node, len(filters))
	for i, f := range filters {
		items[i] = f.node
	}
	return Array(items...)
}
