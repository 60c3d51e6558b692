package localengine

import (
	"github.com/rotisserie/eris"

	"github.com/dgketchum/openet-ptjpl/internal/graph"
)

type scope struct {
	parent *scope
	vars   map[string]any
	memo   map[*graph.Node]any
}

func (s *scope) lookup(name string) (any, bool) {
	for c := s; c != nil; c = c.parent {
		if v, ok := c.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

type closure struct {
	fn  *graph.Node
	env *scope
}

type opFunc func(ev *evaluator, n *graph.Node, sc *scope) (any, error)

// evaluator memoizes closed sub-graphs globally and sub-graphs that reference
// function arguments per call scope.
type evaluator struct {
	e      *Engine
	global map[*graph.Node]any
	free   map[*graph.Node]map[string]bool
}

func newEvaluator(e *Engine) *evaluator {
	return &evaluator{
		e:      e,
		global: make(map[*graph.Node]any),
		free:   make(map[*graph.Node]map[string]bool),
	}
}

func (ev *evaluator) eval(n *graph.Node, sc *scope) (any, error) {
	if n == nil {
		return nil, eris.New("localengine: nil node")
	}
	memo := ev.global
	if len(ev.freeRefs(n)) > 0 {
		if sc == nil {
			return nil, eris.Errorf("localengine: unbound argument in %s", n.FunctionName())
		}
		memo = sc.memo
	}
	if v, ok := memo[n]; ok {
		return v, nil
	}

	v, err := ev.evalNode(n, sc)
	if err != nil {
		return nil, err
	}
	memo[n] = v
	return v, nil
}

func (ev *evaluator) evalNode(n *graph.Node, sc *scope) (any, error) {
	switch n.Kind() {
	case graph.KindConstant:
		v := n.Value()
		if f, ok := toFloat(v); ok {
			return f, nil
		}
		return v, nil
	case graph.KindArray:
		items := n.Items()
		out := make([]any, len(items))
		for i, it := range items {
			v, err := ev.eval(it, sc)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case graph.KindDict:
		out := make(map[string]any)
		for _, k := range n.ArgNames() {
			v, err := ev.eval(n.Arg(k), sc)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case graph.KindArgRef:
		v, ok := sc.lookup(n.Ref())
		if !ok {
			return nil, eris.Errorf("localengine: unbound argument %q", n.Ref())
		}
		return v, nil
	case graph.KindFunction:
		return &closure{fn: n, env: sc}, nil
	case graph.KindInvocation:
		op, ok := ops[n.FunctionName()]
		if !ok {
			return nil, eris.Errorf("localengine: unsupported function %q", n.FunctionName())
		}
		v, err := op(ev, n, sc)
		if err != nil {
			return nil, eris.Wrap(err, n.FunctionName())
		}
		return v, nil
	default:
		return nil, eris.Errorf("localengine: unknown node kind %s", n.Kind())
	}
}

func (ev *evaluator) call(c *closure, args ...any) (any, error) {
	params := c.fn.Params()
	if len(params) != len(args) {
		return nil, eris.Errorf("localengine: function takes %d arguments, got %d", len(params), len(args))
	}
	sc := &scope{parent: c.env, vars: make(map[string]any, len(args)), memo: make(map[*graph.Node]any)}
	for i, p := range params {
		sc.vars[p] = args[i]
	}
	return ev.eval(c.fn.Body(), sc)
}

func (ev *evaluator) freeRefs(n *graph.Node) map[string]bool {
	if n == nil {
		return nil
	}
	if f, ok := ev.free[n]; ok {
		return f
	}
	ev.free[n] = nil
	out := make(map[string]bool)
	switch n.Kind() {
	case graph.KindArgRef:
		out[n.Ref()] = true
	case graph.KindFunction:
		bound := make(map[string]bool)
		for _, p := range n.Params() {
			bound[p] = true
		}
		for r := range ev.freeRefs(n.Body()) {
			if !bound[r] {
				out[r] = true
			}
		}
	case graph.KindArray:
		for _, it := range n.Items() {
			for r := range ev.freeRefs(it) {
				out[r] = true
			}
		}
	case graph.KindInvocation, graph.KindDict:
		for _, k := range n.ArgNames() {
			for r := range ev.freeRefs(n.Arg(k)) {
				out[r] = true
			}
		}
	}
	ev.free[n] = out
	return out
}

// Typed argument accessors.

func (ev *evaluator) arg(n *graph.Node, name string, sc *scope) (any, error) {
	a := n.Arg(name)
	if a == nil {
		return nil, eris.Errorf("missing argument %q", name)
	}
	return ev.eval(a, sc)
}

func (ev *evaluator) image(n *graph.Node, name string, sc *scope) (*Image, error) {
	v, err := ev.arg(n, name, sc)
	if err != nil {
		return nil, err
	}
	return asImage(v)
}

func (ev *evaluator) collection(n *graph.Node, name string, sc *scope) ([]*Image, error) {
	v, err := ev.arg(n, name, sc)
	if err != nil {
		return nil, err
	}
	return asCollection(v)
}

func (ev *evaluator) number(n *graph.Node, name string, sc *scope) (float64, error) {
	v, err := ev.arg(n, name, sc)
	if err != nil {
		return 0, err
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, eris.Errorf("argument %q is %T, want number", name, v)
	}
	return f, nil
}

func (ev *evaluator) str(n *graph.Node, name string, sc *scope) (string, error) {
	v, err := ev.arg(n, name, sc)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", eris.Errorf("argument %q is %T, want string", name, v)
	}
	return s, nil
}

func (ev *evaluator) strs(n *graph.Node, name string, sc *scope) ([]string, error) {
	v, err := ev.arg(n, name, sc)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, eris.Errorf("argument %q is %T, want list", name, v)
	}
	out := make([]string, len(list))
	for i, x := range list {
		s, ok := x.(string)
		if !ok {
			return nil, eris.Errorf("argument %q item %d is %T, want string", name, i, x)
		}
		out[i] = s
	}
	return out, nil
}

func (ev *evaluator) boolean(n *graph.Node, name string, sc *scope, def bool) (bool, error) {
	if n.Arg(name) == nil {
		return def, nil
	}
	v, err := ev.arg(n, name, sc)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, eris.Errorf("argument %q is %T, want bool", name, v)
	}
	return b, nil
}

func (ev *evaluator) filter(n *graph.Node, name string, sc *scope) (filterFunc, error) {
	v, err := ev.arg(n, name, sc)
	if err != nil {
		return nil, err
	}
	f, ok := v.(filterFunc)
	if !ok {
		return nil, eris.Errorf("argument %q is %T, want filter", name, v)
	}
	return f, nil
}

func asImage(v any) (*Image, error) {
	img, ok := v.(*Image)
	if !ok || img == nil {
		return nil, eris.Errorf("localengine: value is %T, want image", v)
	}
	return img, nil
}

func asCollection(v any) ([]*Image, error) {
	switch t := v.(type) {
	case []*Image:
		return t, nil
	case []any:
		out := make([]*Image, len(t))
		for i, x := range t {
			img, err := asImage(x)
			if err != nil {
				return nil, err
			}
			out[i] = img
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, eris.Errorf("localengine: value is %T, want image collection", v)
	}
}
