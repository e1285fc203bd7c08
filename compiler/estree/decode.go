package estree

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	decoder struct {
		depth int
	}

	object struct {
		d   *decoder
		f   map[string]json.RawMessage
		err error
	}
)

// MaxDepth bounds node nesting. Lowering recursion follows the tree depth.
const MaxDepth = 1000

var ErrTooDeep = errors.New("syntax tree nested too deep")

func DecodeFile(ctx context.Context, name string) (*Program, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read syntax tree", "size", len(data), "name", name)

	return Decode(data)
}

// Decode reads an ESTree JSON document whose root is a Program.
func Decode(data []byte) (*Program, error) {
	var d decoder

	n, err := d.node(data)
	if err != nil {
		return nil, err
	}

	p, ok := n.(*Program)
	if !ok {
		typ := "null"
		if n != nil {
			typ = n.Type()
		}

		return nil, errors.New("expected Program, got %v", typ)
	}

	return p, nil
}

func (d *decoder) node(raw json.RawMessage) (_ Node, err error) {
	if isNull(raw) {
		return nil, nil
	}

	d.depth++
	defer func() { d.depth-- }()

	if d.depth > MaxDepth {
		return nil, ErrTooDeep
	}

	o := &object{d: d}

	if err = json.Unmarshal(raw, &o.f); err != nil {
		return nil, errors.Wrap(err, "decode node")
	}

	typ := o.str("type")
	if o.err == nil && typ == "" {
		return nil, errors.New("node without type")
	}

	b := Base{Loc: o.loc()}

	var n Node

	switch typ {
	case "Program":
		n = &Program{Base: b, SourceType: o.str("sourceType"), Body: o.nodes("body")}
	case "Identifier":
		n = &Identifier{Base: b, Name: o.str("name")}
	case "Literal":
		n = o.literal(b)
	case "VariableDeclaration":
		x := &VariableDeclaration{Base: b, Kind: o.str("kind")}

		for _, dn := range o.nodes("declarations") {
			dd, ok := dn.(*VariableDeclarator)
			if !ok && o.err == nil {
				o.err = errors.New("declarations: unexpected %v", typeOf(dn))
			}

			x.Declarations = append(x.Declarations, dd)
		}

		n = x
	case "VariableDeclarator":
		n = &VariableDeclarator{Base: b, ID: o.node("id"), Init: o.node("init")}
	case "FunctionDeclaration":
		n = &FunctionDeclaration{Base: b, ID: o.ident("id"), Params: o.nodes("params"), Body: o.block("body")}
	case "FunctionExpression":
		n = &FunctionExpression{Base: b, ID: o.ident("id"), Params: o.nodes("params"), Body: o.block("body")}
	case "ArrowFunctionExpression":
		n = &ArrowFunctionExpression{Base: b, Params: o.nodes("params"), Body: o.node("body"), Expression: o.bool("expression")}
	case "ReturnStatement":
		n = &ReturnStatement{Base: b, Argument: o.node("argument")}
	case "ExpressionStatement":
		n = &ExpressionStatement{Base: b, Expression: o.node("expression")}
	case "BlockStatement":
		n = &BlockStatement{Base: b, Body: o.nodes("body")}
	case "EmptyStatement":
		n = &EmptyStatement{Base: b}
	case "AssignmentExpression":
		n = &AssignmentExpression{Base: b, Operator: o.str("operator"), Left: o.node("left"), Right: o.node("right")}
	case "CallExpression":
		n = &CallExpression{Base: b, Callee: o.node("callee"), Arguments: o.nodes("arguments"), Optional: o.bool("optional")}
	case "MemberExpression":
		n = &MemberExpression{Base: b, Object: o.node("object"), Property: o.node("property"), Computed: o.bool("computed"), Optional: o.bool("optional")}
	case "ChainExpression":
		n = &ChainExpression{Base: b, Expression: o.node("expression")}
	case "ObjectExpression":
		n = &ObjectExpression{Base: b, Properties: o.nodes("properties")}
	case "Property":
		n = &Property{
			Base:      b,
			Key:       o.node("key"),
			Value:     o.node("value"),
			Kind:      o.str("kind"),
			Computed:  o.bool("computed"),
			Method:    o.bool("method"),
			Shorthand: o.bool("shorthand"),
		}
	case "ArrayExpression":
		n = &ArrayExpression{Base: b, Elements: o.nodes("elements")}
	case "SpreadElement":
		n = &SpreadElement{Base: b, Argument: o.node("argument")}
	case "UnaryExpression":
		n = &UnaryExpression{Base: b, Operator: o.str("operator"), Prefix: o.bool("prefix"), Argument: o.node("argument")}
	case "UpdateExpression":
		n = &UpdateExpression{Base: b, Operator: o.str("operator"), Prefix: o.bool("prefix"), Argument: o.node("argument")}
	case "BinaryExpression":
		n = &BinaryExpression{Base: b, Operator: o.str("operator"), Left: o.node("left"), Right: o.node("right")}
	case "LogicalExpression":
		n = &LogicalExpression{Base: b, Operator: o.str("operator"), Left: o.node("left"), Right: o.node("right")}
	case "ConditionalExpression":
		n = &ConditionalExpression{Base: b, Test: o.node("test"), Consequent: o.node("consequent"), Alternate: o.node("alternate")}
	case "AssignmentPattern":
		n = &AssignmentPattern{Base: b, Left: o.node("left"), Right: o.node("right")}
	case "RestElement":
		n = &RestElement{Base: b, Argument: o.node("argument")}
	default:
		n = &Unknown{Base: b, Kind: typ}
	}

	if o.err != nil {
		return nil, errors.Wrap(o.err, "%v", typ)
	}

	return n, nil
}

func (o *object) literal(b Base) *Literal {
	x := &Literal{Base: b, Raw: o.str("raw"), Bigint: o.str("bigint")}

	if raw, ok := o.f["regex"]; ok && !isNull(raw) && o.err == nil {
		x.Regex = new(RegExp)

		if err := json.Unmarshal(raw, x.Regex); err != nil {
			o.err = errors.Wrap(err, "regex")
		}

		return x
	}

	if x.Bigint != "" {
		return x
	}

	raw, ok := o.f["value"]
	if !ok || isNull(raw) || o.err != nil {
		return x
	}

	if err := json.Unmarshal(raw, &x.Value); err != nil {
		o.err = errors.Wrap(err, "value")
	}

	switch x.Value.(type) {
	case nil, bool, float64, string:
	default:
		o.err = errors.New("value: unexpected %T", x.Value)
	}

	return x
}

func (o *object) str(k string) (s string) {
	raw, ok := o.f[k]
	if !ok || isNull(raw) || o.err != nil {
		return ""
	}

	if err := json.Unmarshal(raw, &s); err != nil {
		o.err = errors.Wrap(err, "%v", k)
	}

	return s
}

func (o *object) bool(k string) (v bool) {
	raw, ok := o.f[k]
	if !ok || isNull(raw) || o.err != nil {
		return false
	}

	if err := json.Unmarshal(raw, &v); err != nil {
		o.err = errors.Wrap(err, "%v", k)
	}

	return v
}

func (o *object) loc() (l Loc) {
	raw, ok := o.f["loc"]
	if !ok || isNull(raw) || o.err != nil {
		return l
	}

	if err := json.Unmarshal(raw, &l); err != nil {
		o.err = errors.Wrap(err, "loc")
	}

	return l
}

func (o *object) node(k string) Node {
	raw, ok := o.f[k]
	if !ok || o.err != nil {
		return nil
	}

	n, err := o.d.node(raw)
	if err != nil {
		o.err = errors.Wrap(err, "%v", k)
		return nil
	}

	return n
}

func (o *object) nodes(k string) []Node {
	raw, ok := o.f[k]
	if !ok || isNull(raw) || o.err != nil {
		return nil
	}

	var list []json.RawMessage

	if err := json.Unmarshal(raw, &list); err != nil {
		o.err = errors.Wrap(err, "%v", k)
		return nil
	}

	r := make([]Node, len(list))

	for i, el := range list {
		n, err := o.d.node(el)
		if err != nil {
			o.err = errors.Wrap(err, "%v[%d]", k, i)
			return nil
		}

		r[i] = n
	}

	return r
}

func (o *object) ident(k string) *Identifier {
	n := o.node(k)
	if n == nil {
		return nil
	}

	id, ok := n.(*Identifier)
	if !ok && o.err == nil {
		o.err = errors.New("%v: expected Identifier, got %v", k, n.Type())
	}

	return id
}

func (o *object) block(k string) *BlockStatement {
	n := o.node(k)
	if n == nil {
		return nil
	}

	b, ok := n.(*BlockStatement)
	if !ok && o.err == nil {
		o.err = errors.New("%v: expected BlockStatement, got %v", k, n.Type())
	}

	return b
}

func typeOf(n Node) string {
	if n == nil {
		return "null"
	}

	return n.Type()
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)

	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
