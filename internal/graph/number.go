package graph

// Number is a deferred scalar.
type Number struct {
	node *Node
}

// Num wraps a literal scalar.
func Num(v float64) Number {
	return Number{node: Constant(v)}
}

// NumberOf wraps an arbitrary node that evaluates to a scalar.
func NumberOf(n *Node) Number {
	return Number{node: n}
}

// Node returns the underlying graph node.
func (n Number) Node() *Node { return n.node }

func (n Number) binary(fn string, o Number) Number {
	return Number{node: Invoke(fn, map[string]*Node{"left": n.node, "right": o.node})}
}

// Add returns n + o.
func (n Number) Add(o Number) Number { return n.binary(FnNumberAdd, o) }

// Subtract returns n - o.
func (n Number) Subtract(o Number) Number { return n.binary(FnNumberSubtract, o) }

// Multiply returns n * o.
func (n Number) Multiply(o Number) Number { return n.binary(FnNumberMultiply, o) }

// Divide returns n / o.
func (n Number) Divide(o Number) Number { return n.binary(FnNumberDivide, o) }

// Floor rounds n down.
func (n Number) Floor() Number {
	return Number{node: Invoke(FnNumberFloor, map[string]*Node{"input": n.node})}
}
