package graph

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
)

// Expression is the serialized form of a graph: a table of values keyed by
// id plus the id of the result. Identical sub-graphs are stored once.
type Expression struct {
	Result string                     `json:"result"`
	Values map[string]json.RawMessage `json:"values"`
}

type valueRef struct {
	ValueReference string `json:"valueReference"`
}

type invocationValue struct {
	FunctionName string              `json:"functionName"`
	Arguments    map[string]valueRef `json:"arguments"`
}

type arrayValue struct {
	Values []valueRef `json:"values"`
}

type dictValue struct {
	Values map[string]valueRef `json:"values"`
}

type functionValue struct {
	ArgumentNames []string `json:"argumentNames"`
	Body          string   `json:"body"`
}

type wireValue struct {
	ConstantValue           json.RawMessage  `json:"constantValue,omitempty"`
	FunctionInvocationValue *invocationValue `json:"functionInvocationValue,omitempty"`
	ArrayValue              *arrayValue      `json:"arrayValue,omitempty"`
	DictionaryValue         *dictValue       `json:"dictionaryValue,omitempty"`
	ArgumentReference       *string          `json:"argumentReference,omitempty"`
	FunctionDefinitionValue *functionValue   `json:"functionDefinitionValue,omitempty"`
}

type encoder struct {
	byNode map[*Node]string
	byJSON map[string]string
	values map[string]json.RawMessage
}

// Encode serializes the graph rooted at n.
func Encode(n *Node) (*Expression, error) {
	if n == nil {
		return nil, eris.New("graph: encode nil node")
	}
	e := &encoder{
		byNode: make(map[*Node]string),
		byJSON: make(map[string]string),
		values: make(map[string]json.RawMessage),
	}
	id, err := e.encode(n)
	if err != nil {
		return nil, err
	}
	return &Expression{Result: id, Values: e.values}, nil
}

// MarshalJSON encodes n directly.
func (n *Node) MarshalJSON() ([]byte, error) {
	expr, err := Encode(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(expr)
}

func (e *encoder) encode(n *Node) (string, error) {
	if id, ok := e.byNode[n]; ok {
		return id, nil
	}

	var w wireValue
	switch n.kind {
	case KindConstant:
		raw, err := json.Marshal(n.value)
		if err != nil {
			return "", eris.Wrap(err, "graph: marshal constant")
		}
		w.ConstantValue = raw
	case KindInvocation:
		args := make(map[string]valueRef, len(n.args))
		for _, k := range n.ArgNames() {
			id, err := e.encode(n.args[k])
			if err != nil {
				return "", err
			}
			args[k] = valueRef{ValueReference: id}
		}
		w.FunctionInvocationValue = &invocationValue{FunctionName: n.fn, Arguments: args}
	case KindArray:
		items := make([]valueRef, len(n.items))
		for i, it := range n.items {
			id, err := e.encode(it)
			if err != nil {
				return "", err
			}
			items[i] = valueRef{ValueReference: id}
		}
		w.ArrayValue = &arrayValue{Values: items}
	case KindDict:
		vals := make(map[string]valueRef, len(n.args))
		for _, k := range n.ArgNames() {
			id, err := e.encode(n.args[k])
			if err != nil {
				return "", err
			}
			vals[k] = valueRef{ValueReference: id}
		}
		w.DictionaryValue = &dictValue{Values: vals}
	case KindArgRef:
		ref := n.ref
		w.ArgumentReference = &ref
	case KindFunction:
		body, err := e.encode(n.body)
		if err != nil {
			return "", err
		}
		w.FunctionDefinitionValue = &functionValue{ArgumentNames: n.params, Body: body}
	default:
		return "", eris.Errorf("graph: cannot encode %s node", n.kind)
	}

	raw, err := marshalWire(w, n.kind == KindConstant)
	if err != nil {
		return "", err
	}
	if id, ok := e.byJSON[string(raw)]; ok {
		e.byNode[n] = id
		return id, nil
	}
	id := strconv.Itoa(len(e.values))
	e.values[id] = raw
	e.byJSON[string(raw)] = id
	e.byNode[n] = id
	return id, nil
}

// marshalWire keeps constantValue present even when the constant is null.
func marshalWire(w wireValue, constant bool) ([]byte, error) {
	if constant {
		raw, err := json.Marshal(map[string]json.RawMessage{"constantValue": w.ConstantValue})
		return raw, eris.Wrap(err, "graph: marshal value")
	}
	raw, err := json.Marshal(w)
	return raw, eris.Wrap(err, "graph: marshal value")
}

// Decode rebuilds a graph from its serialized form. Constants decode to the
// generic JSON types (float64, string, bool, []any, map[string]any).
func Decode(expr *Expression) (*Node, error) {
	if expr == nil {
		return nil, eris.New("graph: decode nil expression")
	}
	d := &decoder{expr: expr, nodes: make(map[string]*Node), active: make(map[string]bool)}
	return d.decode(expr.Result)
}

// DecodeJSON parses and decodes a serialized expression.
func DecodeJSON(data []byte) (*Node, error) {
	var expr Expression
	if err := json.Unmarshal(data, &expr); err != nil {
		return nil, eris.Wrap(err, "graph: unmarshal expression")
	}
	return Decode(&expr)
}

type decoder struct {
	expr   *Expression
	nodes  map[string]*Node
	active map[string]bool
}

func (d *decoder) decode(id string) (*Node, error) {
	if n, ok := d.nodes[id]; ok {
		return n, nil
	}
	if d.active[id] {
		return nil, eris.Errorf("graph: cycle at value %s", id)
	}
	raw, ok := d.expr.Values[id]
	if !ok {
		return nil, eris.Errorf("graph: missing value %s", id)
	}
	d.active[id] = true
	defer delete(d.active, id)

	var w wireValue
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, eris.Wrapf(err, "graph: unmarshal value %s", id)
	}

	var n *Node
	switch {
	case w.FunctionInvocationValue != nil:
		args := make(map[string]*Node, len(w.FunctionInvocationValue.Arguments))
		for k, ref := range w.FunctionInvocationValue.Arguments {
			a, err := d.decode(ref.ValueReference)
			if err != nil {
				return nil, err
			}
			args[k] = a
		}
		n = Invoke(w.FunctionInvocationValue.FunctionName, args)
	case w.ArrayValue != nil:
		items := make([]*Node, len(w.ArrayValue.Values))
		for i, ref := range w.ArrayValue.Values {
			it, err := d.decode(ref.ValueReference)
			if err != nil {
				return nil, err
			}
			items[i] = it
		}
		n = Array(items...)
	case w.DictionaryValue != nil:
		vals := make(map[string]*Node, len(w.DictionaryValue.Values))
		for k, ref := range w.DictionaryValue.Values {
			v, err := d.decode(ref.ValueReference)
			if err != nil {
				return nil, err
			}
			vals[k] = v
		}
		n = Dict(vals)
	case w.ArgumentReference != nil:
		n = ArgRef(*w.ArgumentReference)
	case w.FunctionDefinitionValue != nil:
		body, err := d.decode(w.FunctionDefinitionValue.Body)
		if err != nil {
			return nil, err
		}
		n = Function(w.FunctionDefinitionValue.ArgumentNames, body)
	case w.ConstantValue != nil:
		var v any
		if err := json.Unmarshal(w.ConstantValue, &v); err != nil {
			return nil, eris.Wrapf(err, "graph: unmarshal constant %s", id)
		}
		n = Constant(v)
	default:
		return nil, eris.Errorf("graph: value %s has no recognized variant", id)
	}

	d.nodes[id] = n
	return n, nil
}
