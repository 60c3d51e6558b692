package localengine

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/dgketchum/openet-ptjpl/internal/graph"
)

// filterFunc tests a pair of images. In joins left is the primary image and
// right the secondary; collection filters pass the same image twice.
type filterFunc func(left, right *Image) (bool, error)

var filterOps = map[string]opFunc{
	graph.FnFilterDate:                opFilterDate,
	graph.FnFilterIntersects:          opFilterIntersects,
	graph.FnFilterEquals:              compareOp(func(c int) bool { return c == 0 }),
	graph.FnFilterNotEquals:           compareOp(func(c int) bool { return c != 0 }),
	graph.FnFilterLessThan:            compareOp(func(c int) bool { return c < 0 }),
	graph.FnFilterLessThanOrEquals:    compareOp(func(c int) bool { return c <= 0 }),
	graph.FnFilterGreaterThan:         compareOp(func(c int) bool { return c > 0 }),
	graph.FnFilterGreaterThanOrEquals: compareOp(func(c int) bool { return c >= 0 }),
	graph.FnFilterMaxDifference:       opFilterMaxDifference,
	graph.FnFilterInList:              opFilterInList,
	graph.FnFilterAnd:                 combineOp(true),
	graph.FnFilterOr:                  combineOp(false),
	graph.FnFilterNot:                 opFilterNot,
}

func opFilterDate(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	start, err := ev.number(n, "start", sc)
	if err != nil {
		return nil, err
	}
	end, err := ev.number(n, "end", sc)
	if err != nil {
		return nil, err
	}
	return filterFunc(func(left, _ *Image) (bool, error) {
		t, ok := toFloat(left.Props[graph.PropTimeStart])
		return ok && t >= start && t < end, nil
	}), nil
}

func opFilterIntersects(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	v, err := ev.arg(n, "rightValue", sc)
	if err != nil {
		return nil, err
	}
	g, ok := v.(geom.T)
	if !ok {
		return nil, eris.Errorf("rightValue is %T, want geometry", v)
	}
	target := g.Bounds()
	return filterFunc(func(left, _ *Image) (bool, error) {
		if left.Footprint == nil {
			return true, nil
		}
		return boundsOverlap(left.Footprint.Bounds(), target), nil
	}), nil
}

func boundsOverlap(a, b *geom.Bounds) bool {
	return a.Min(0) <= b.Max(0) && b.Min(0) <= a.Max(0) &&
		a.Min(1) <= b.Max(1) && b.Min(1) <= a.Max(1)
}

// operands resolves the right-hand side of a comparison: either a constant
// rightValue or the rightField property of the right image.
func operands(ev *evaluator, n *graph.Node, sc *scope) (string, func(right *Image) (any, bool), error) {
	left, err := ev.str(n, "leftField", sc)
	if err != nil {
		return "", nil, err
	}
	if n.Arg("rightField") != nil {
		field, err := ev.str(n, "rightField", sc)
		if err != nil {
			return "", nil, err
		}
		return left, func(right *Image) (any, bool) {
			v, ok := right.Props[field]
			return v, ok
		}, nil
	}
	value, err := ev.arg(n, "rightValue", sc)
	if err != nil {
		return "", nil, err
	}
	return left, func(*Image) (any, bool) { return value, true }, nil
}

// compareOp builds a comparison filter. A missing property never matches.
func compareOp(test func(c int) bool) opFunc {
	return func(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
		field, rhs, err := operands(ev, n, sc)
		if err != nil {
			return nil, err
		}
		return filterFunc(func(left, right *Image) (bool, error) {
			a, ok := left.Props[field]
			if !ok || a == nil {
				return false, nil
			}
			b, ok := rhs(right)
			if !ok || b == nil {
				return false, nil
			}
			return test(compareValues(a, b)), nil
		}), nil
	}
}

func opFilterMaxDifference(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	diff, err := ev.number(n, "difference", sc)
	if err != nil {
		return nil, err
	}
	field, rhs, err := operands(ev, n, sc)
	if err != nil {
		return nil, err
	}
	return filterFunc(func(left, right *Image) (bool, error) {
		a, aok := toFloat(left.Props[field])
		v, ok := rhs(right)
		b, bok := toFloat(v)
		if !aok || !ok || !bok {
			return false, nil
		}
		return math.Abs(a-b) <= diff, nil
	}), nil
}

func opFilterInList(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	field, err := ev.str(n, "leftField", sc)
	if err != nil {
		return nil, err
	}
	v, err := ev.arg(n, "rightValue", sc)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, eris.Errorf("rightValue is %T, want list", v)
	}
	return filterFunc(func(left, _ *Image) (bool, error) {
		a, ok := left.Props[field]
		if !ok {
			return false, nil
		}
		for _, x := range list {
			if compareValues(a, x) == 0 {
				return true, nil
			}
		}
		return false, nil
	}), nil
}

func combineOp(all bool) opFunc {
	return func(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
		v, err := ev.arg(n, "filters", sc)
		if err != nil {
			return nil, err
		}
		list, ok := v.([]any)
		if !ok {
			return nil, eris.Errorf("filters is %T, want list", v)
		}
		fs := make([]filterFunc, len(list))
		for i, x := range list {
			f, ok := x.(filterFunc)
			if !ok {
				return nil, eris.Errorf("filters item %d is %T", i, x)
			}
			fs[i] = f
		}
		return filterFunc(func(left, right *Image) (bool, error) {
			for _, f := range fs {
				ok, err := f(left, right)
				if err != nil {
					return false, err
				}
				if ok != all {
					return !all, nil
				}
			}
			return all, nil
		}), nil
	}
}

func opFilterNot(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	f, err := ev.filter(n, "filter", sc)
	if err != nil {
		return nil, err
	}
	return filterFunc(func(left, right *Image) (bool, error) {
		ok, err := f(left, right)
		return !ok, err
	}), nil
}

// compareValues orders numbers numerically and anything else by its string
// form.
func compareValues(a, b any) int {
	x, xok := toFloat(a)
	y, yok := toFloat(b)
	if xok && yok {
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	}
	s, t := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case s < t:
		return -1
	case s > t:
		return 1
	default:
		return 0
	}
}
