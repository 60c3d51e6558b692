// Package graph builds deferred computation graphs for the remote raster
// service. Nothing here evaluates pixels: handles wrap immutable nodes that
// are serialized and shipped to an engine.
package graph

import (
	"fmt"
	"sort"
)

// Kind enumerates node variants.
type Kind int

// Node kinds.
const (
	KindConstant Kind = iota
	KindInvocation
	KindArray
	KindDict
	KindArgRef
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindInvocation:
		return "invocation"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	case KindArgRef:
		return "argref"
	case KindFunction:
		return "function"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node is one immutable vertex of a computation graph. Build nodes with the
// constructors below; never mutate a node after construction.
type Node struct {
	kind   Kind
	value  any
	fn     string
	args   map[string]*Node
	items  []*Node
	ref    string
	params []string
	body   *Node
}

// Constant wraps a JSON-compatible value.
func Constant(v any) *Node {
	return &Node{kind: KindConstant, value: v}
}

// Invoke calls a named server-side function. Nil arguments are omitted.
func Invoke(fn string, args map[string]*Node) *Node {
	clean := make(map[string]*Node, len(args))
	for k, v := range args {
		if v != nil {
			clean[k] = v
		}
	}
	return &Node{kind: KindInvocation, fn: fn, args: clean}
}

// Array groups nodes into a list value.
func Array(items ...*Node) *Node {
	return &Node{kind: KindArray, items: append([]*Node(nil), items...)}
}

// Dict groups nodes into a dictionary value.
func Dict(values map[string]*Node) *Node {
	clean := make(map[string]*Node, len(values))
	for k, v := range values {
		if v != nil {
			clean[k] = v
		}
	}
	return &Node{kind: KindDict, args: clean}
}

// ArgRef references an argument of the enclosing function definition.
func ArgRef(name string) *Node {
	return &Node{kind: KindArgRef, ref: name}
}

// Function defines a server-side lambda.
func Function(params []string, body *Node) *Node {
	return &Node{kind: KindFunction, params: append([]string(nil), params...), body: body}
}

// Strings converts a string slice to an array of constants.
func Strings(values ...string) *Node {
	items := make([]*Node, len(values))
	for i, v := range values {
		items[i] = Constant(v)
	}
	return Array(items...)
}

// Kind returns the node variant.
func (n *Node) Kind() Kind { return n.kind }

// Value returns a constant's payload.
func (n *Node) Value() any { return n.value }

// FunctionName returns an invocation's function name.
func (n *Node) FunctionName() string { return n.fn }

// Arg returns an invocation argument or dictionary entry, nil if absent.
func (n *Node) Arg(name string) *Node { return n.args[name] }

// ArgNames returns invocation argument or dictionary keys in sorted order.
func (n *Node) ArgNames() []string {
	names := make([]string, 0, len(n.args))
	for k := range n.args {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Items returns an array's elements.
func (n *Node) Items() []*Node { return append([]*Node(nil), n.items...) }

// Ref returns the argument name an ArgRef points at.
func (n *Node) Ref() string { return n.ref }

// Params returns a function definition's argument names.
func (n *Node) Params() []string { return append([]string(nil), n.params...) }

// Body returns a function definition's body.
func (n *Node) Body() *Node { return n.body }

// Clone returns a deep copy of the graph rooted at n. Shared sub-graphs stay
// shared in the copy.
func (n *Node) Clone() *Node {
	return cloneNode(n, make(map[*Node]*Node))
}

func cloneNode(n *Node, seen map[*Node]*Node) *Node {
	if n == nil {
		return nil
	}
	if c, ok := seen[n]; ok {
		return c
	}
	c := &Node{
		kind:   n.kind,
		value:  cloneValue(n.value),
		fn:     n.fn,
		ref:    n.ref,
		params: append([]string(nil), n.params...),
	}
	seen[n] = c
	if n.args != nil {
		c.args = make(map[string]*Node, len(n.args))
		for k, v := range n.args {
			c.args[k] = cloneNode(v, seen)
		}
	}
	if n.items != nil {
		c.items = make([]*Node, len(n.items))
		for i, v := range n.items {
			c.items[i] = cloneNode(v, seen)
		}
	}
	c.body = cloneNode(n.body, seen)
	return c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = cloneValue(x)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []float64:
		return append([]float64(nil), t...)
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}

// functionDepth returns how many function definitions are nested in n.
func functionDepth(n *Node, seen map[*Node]int) int {
	if n == nil {
		return 0
	}
	if d, ok := seen[n]; ok {
		return d
	}
	seen[n] = 0
	depth := 0
	for _, a := range n.args {
		depth = max(depth, functionDepth(a, seen))
	}
	for _, it := range n.items {
		depth = max(depth, functionDepth(it, seen))
	}
	if n.kind == KindFunction {
		depth = max(depth, 1+functionDepth(n.body, seen))
	}
	seen[n] = depth
	return depth
}

// lambda builds a one-argument function definition whose argument name is
// unique with respect to any functions nested in its body.
func lambda(fn func(arg *Node) *Node) *Node {
	probe := fn(ArgRef("_MAPPING_VAR_PROBE"))
	depth := functionDepth(probe, make(map[*Node]int))
	name := fmt.Sprintf("_MAPPING_VAR_%d_0", depth)
	return Function([]string{name}, fn(ArgRef(name)))
}
