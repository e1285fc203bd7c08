package front

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"tlog.app/go/errors"

	"github.com/dbdlang/dbd/compiler/estree"
	"github.com/dbdlang/dbd/compiler/ir"
	"github.com/dbdlang/dbd/compiler/scope"
)

// expression lowers n. ref is the object names are read from;
// a reference to the current scope means lexical resolution.
func (f *funContext) expression(n estree.Node, ref ir.Value) (e expr, err error) {
	f.tr.V("lower").Printw("lower expression", "type", typeOf(n), "ref", ref)

	switch n := n.(type) {
	case *estree.Identifier:
		return f.identifier(n.Name, ref, location(n)), nil
	case *estree.Literal:
		return f.literal(n)
	case *estree.AssignmentExpression:
		return f.assignment(n, ref)
	case *estree.CallExpression:
		return f.callExpression(n, ref)
	case *estree.MemberExpression:
		return f.member(n, ref)
	case *estree.ChainExpression:
		return f.expression(n.Expression, ref)
	case *estree.ObjectExpression:
		return f.object(n)
	case *estree.ArrayExpression:
		return f.array(n, ref)
	case *estree.FunctionExpression:
		if n.Body == nil {
			return e, errors.Wrap(ErrMalformed, "function expression without body")
		}

		return f.function(n.Params, n.Body.Body, location(n))
	case *estree.ArrowFunctionExpression:
		return f.arrow(n)
	case *estree.UnaryExpression:
		return f.operator(ir.UnOpDef(n.Operator), location(n), ref, n.Argument)
	case *estree.BinaryExpression:
		return f.operator(ir.BinOpDef(n.Operator), location(n), ref, n.Left, n.Right)
	case *estree.LogicalExpression:
		return f.operator(ir.LogicalDef(n.Operator), location(n), ref, n.Left, n.Right)
	case *estree.ConditionalExpression:
		return f.operator(ir.ConditionalDef(), location(n), ref, n.Test, n.Consequent, n.Alternate)
	case *estree.UpdateExpression:
		return f.update(n, ref)
	case nil:
		return e, errors.Wrap(ErrMalformed, "missing expression")
	default:
		f.tr.Printw("unsupported expression", "type", n.Type(), "loc", location(n), "func", f.Name())

		return expr{Value: ir.Null}, nil
	}
}

// lexical reports whether ref denotes the innermost scope,
// in which case names resolve through the environment chain.
func (f *funContext) lexical(ref ir.Value) bool {
	s := f.ScopeOf(ref)

	return s != nil && s == f.Current()
}

// chain loads the environment dist @parent links above the innermost one.
func (f *funContext) chain(dist int, l ir.Location) (code []ir.Instruction, obj ir.Value) {
	obj = f.Environment().Ref()

	for i := 0; i < dist; i++ {
		next := ir.Reference{ID: f.NextID()}

		code = append(code, f.call(next.ID, ir.GetFieldDef(ir.ParentName), l, obj))

		obj = next
	}

	return code, obj
}

// resolve finds the environment owning name.
// Free names resolve to the outermost environment.
func (f *funContext) resolve(name string) (owner *scope.Scope, v *scope.Variable, dist int) {
	owner, v, dist, ok := f.Lookup(name)
	if ok {
		return owner, v, dist
	}

	envs := f.Environments()
	dist = len(envs) - 1

	return envs[dist], nil, dist
}

func (f *funContext) identifier(name string, ref ir.Value, l ir.Location) expr {
	if !f.lexical(ref) {
		return f.read(nil, f.ScopeOf(ref), name, ref, l)
	}

	if p, ok := f.Parameter(name); ok {
		return expr{Scope: f.Current(), Value: p.Ref()}
	}

	owner, _, dist := f.resolve(name)

	code, obj := f.chain(dist, l)

	return f.read(code, owner, name, obj, l)
}

// read emits a field read of name from obj.
// A known assignment in owner refines the kind of the result.
func (f *funContext) read(code []ir.Instruction, owner *scope.Scope, name string, obj ir.Value, l ir.Location) expr {
	e := expr{Code: code, Scope: owner}

	var val ir.Value

	if owner != nil {
		if a, ok := owner.Assignments[name]; ok {
			switch v := a.Value.(type) {
			case ir.ScopeReference:
				val = ir.ScopeReference{ID: f.NextID(), Scope: v.Scope}
				e.Scope = f.ScopeOf(v)
			case ir.FunctionReference:
				val = ir.FunctionReference{ID: f.NextID(), Function: v.Function}
			}
		}
	}

	if val == nil {
		val = ir.Reference{ID: f.NextID()}
	}

	e.Code = append(e.Code, f.call(val.Identifier(), ir.GetFieldDef(name), l, obj))
	e.Value = val

	return e
}

func (f *funContext) literal(n *estree.Literal) (e expr, err error) {
	var kind ir.TypeKind
	var val any

	switch {
	case n.Regex != nil:
		kind = ir.KindRegExp
		val = "/" + n.Regex.Pattern + "/" + n.Regex.Flags
	case n.Bigint != "":
		x, ok := new(big.Int).SetString(n.Bigint, 10)
		if !ok {
			return e, errors.Wrap(ErrMalformed, "bigint literal %q", n.Bigint)
		}

		kind = ir.KindBigInt
		val = x
	default:
		switch v := n.Value.(type) {
		case nil:
			return expr{Value: ir.Null}, nil
		case string:
			kind, val = ir.KindString, v
		case float64:
			kind, val = ir.KindNumber, v
		case bool:
			kind, val = ir.KindBoolean, v
		default:
			return e, errors.Wrap(ErrMalformed, "literal of %T", v)
		}
	}

	return f.constant(kind, val, location(n)), nil
}

// constant interns val and materialises the scope of its kind on first use.
func (f *funContext) constant(kind ir.TypeKind, val any, l ir.Location) (e expr) {
	c := f.Constant(kind, val)

	s, created := f.LiteralScope(kind)
	if created {
		e.Code = append(e.Code, f.call(s.ID, ir.NewObjectDef(), l))
	}

	e.Scope = s
	e.Value = c

	return e
}

func (f *funContext) assignment(n *estree.AssignmentExpression, ref ir.Value) (e expr, err error) {
	if n.Left == nil || n.Right == nil {
		return e, errors.Wrap(ErrMalformed, "assignment without operand")
	}

	l := location(n)

	r, err := f.expression(n.Right, ref)
	if err != nil {
		return e, errors.Wrap(err, "right")
	}

	e.Code = r.Code
	e.Value = r.Value

	op := strings.TrimSuffix(n.Operator, "=")
	if op == "" {
		code, err := f.assign(n.Left, r.Value, ref)
		if err != nil {
			return e, err
		}

		e.Code = append(e.Code, code...)

		return e, nil
	}

	code, _, res, err := f.modify(n.Left, ref, func(cur ir.Value) expr {
		res := ir.Reference{ID: f.NextID()}

		return expr{
			Code:  []ir.Instruction{f.call(res.ID, operatorDef(op), l, cur, r.Value)},
			Value: res,
		}
	})
	if err != nil {
		return e, errors.Wrap(err, "left")
	}

	e.Code = append(e.Code, code...)
	e.Value = res

	return e, nil
}

func (f *funContext) callExpression(n *estree.CallExpression, ref ir.Value) (e expr, err error) {
	if n.Callee == nil {
		return e, errors.Wrap(ErrMalformed, "call without callee")
	}

	l := location(n)

	args := make([]ir.Value, 0, len(n.Arguments))

	for i, a := range n.Arguments {
		if v, ok := f.known(a, ref); ok {
			args = append(args, v)
			continue
		}

		x, err := f.expression(a, ref)
		if err != nil {
			return e, errors.Wrap(err, "argument %d", i)
		}

		e.Code = append(e.Code, x.Code...)
		args = append(args, x.Value)
	}

	callee, err := f.expression(n.Callee, ref)
	if err != nil {
		return e, errors.Wrap(err, "callee")
	}

	e.Code = append(e.Code, callee.Code...)

	env := f.Environment().Ref()
	res := ir.Reference{ID: f.NextID()}

	if fr, ok := callee.Value.(ir.FunctionReference); ok {
		ops := []ir.Value{env}

		for i := 1; i < len(fr.Function.Parameters); i++ {
			var v ir.Value = ir.Null

			if i-1 < len(args) {
				v = args[i-1]
			}

			ops = append(ops, v)
		}

		e.Code = append(e.Code, f.call(res.ID, fr.Function.Definition, l, ops...))
	} else {
		ops := append([]ir.Value{callee.Value, env}, args...)

		e.Code = append(e.Code, f.call(res.ID, ir.CallDynamicDef(), l, ops...))
	}

	e.Value = res

	return e, nil
}

// known returns the value of an identifier argument without emitting code.
// In lexical position that is a parameter of the current function or the known
// assignment of the innermost environment. Object and literal scopes are never consulted.
func (f *funContext) known(n estree.Node, ref ir.Value) (ir.Value, bool) {
	id, ok := n.(*estree.Identifier)
	if !ok {
		return nil, false
	}

	if !f.lexical(ref) {
		v, _, ok := f.ResolveVariable(id.Name, ref)
		if !ok {
			return nil, false
		}

		a, ok := f.ResolveAssignment(v, ref)

		return a.Value, ok
	}

	if p, ok := f.Parameter(id.Name); ok {
		return p.Ref(), true
	}

	owner, _, dist, ok := f.Lookup(id.Name)
	if !ok || dist != 0 {
		return nil, false
	}

	a, ok := owner.Assignments[id.Name]

	return a.Value, ok
}

func (f *funContext) member(n *estree.MemberExpression, ref ir.Value) (e expr, err error) {
	p, err := f.place(n, ref)
	if err != nil {
		return e, err
	}

	e = f.load(p)
	e.Code = append(p.code, e.Code...)

	return e, nil
}

// object lowers an object literal into a fresh object scope.
func (f *funContext) object(n *estree.ObjectExpression) (e expr, err error) {
	s := f.CreateScope(scope.Object)
	obj := s.Ref()

	e.Code = append(e.Code, f.call(s.ID, ir.NewObjectDef(), location(n)))

	f.Push(s)

	for _, pn := range n.Properties {
		p, ok := pn.(*estree.Property)
		if !ok {
			f.tr.Printw("unsupported object member", "type", typeOf(pn), "loc", location(pn), "func", f.Name())
			continue
		}

		if p.Key == nil || p.Value == nil {
			return e, errors.Wrap(ErrMalformed, "property without key or value")
		}

		if isPlaceholder(p.Value) {
			return e, errors.Wrap(ErrUnsupported, "object property value %v at %v:%v", p.Value.Type(), p.Loc.Start.Line, p.Loc.Start.Column)
		}

		l := location(p)

		if name, ok := propertyName(p.Key, p.Computed); ok {
			v, err := f.expression(p.Value, obj)
			if err != nil {
				return e, errors.Wrap(err, "property %v", name)
			}

			e.Code = append(e.Code, v.Code...)
			e.Code = append(e.Code, f.declareField(name, v.Value, obj, l)...)

			continue
		}

		key, err := f.expression(p.Key, obj)
		if err != nil {
			return e, errors.Wrap(err, "property key")
		}

		v, err := f.expression(p.Value, obj)
		if err != nil {
			return e, errors.Wrap(err, "computed property")
		}

		e.Code = append(e.Code, key.Code...)
		e.Code = append(e.Code, v.Code...)
		e.Code = append(e.Code, f.call(f.NextID(), ir.SetFieldDynamicDef(), l, obj, key.Value, v.Value))
	}

	f.Pop()

	e.Scope = s
	e.Value = obj

	return e, nil
}

func (f *funContext) array(n *estree.ArrayExpression, ref ir.Value) (e expr, err error) {
	s := f.CreateScope(scope.Object)
	arr := s.Ref()

	e.Code = append(e.Code, f.call(s.ID, ir.NewObjectDef(), location(n)))

	for i, el := range n.Elements {
		if el == nil {
			continue
		}

		v, err := f.expression(el, ref)
		if err != nil {
			return e, errors.Wrap(err, "element %d", i)
		}

		e.Code = append(e.Code, v.Code...)
		e.Code = append(e.Code, f.declareField(strconv.Itoa(i), v.Value, arr, location(el))...)
	}

	e.Scope = s
	e.Value = arr

	return e, nil
}

func (f *funContext) arrow(n *estree.ArrowFunctionExpression) (e expr, err error) {
	switch b := n.Body.(type) {
	case nil:
		return e, errors.Wrap(ErrMalformed, "arrow function without body")
	case *estree.BlockStatement:
		return f.function(n.Params, b.Body, location(n))
	default:
		ret := &estree.ReturnStatement{Base: estree.Base{Loc: b.Pos()}, Argument: b}

		return f.function(n.Params, []estree.Node{ret}, location(n))
	}
}

// operator lowers operands left to right and combines them with def.
func (f *funContext) operator(def ir.FunctionDefinition, l ir.Location, ref ir.Value, args ...estree.Node) (e expr, err error) {
	ops := make([]ir.Value, len(args))

	for i, a := range args {
		x, err := f.expression(a, ref)
		if err != nil {
			return e, errors.Wrap(err, "%v operand %d", def.Name, i)
		}

		e.Code = append(e.Code, x.Code...)
		ops[i] = x.Value
	}

	res := ir.Reference{ID: f.NextID()}

	e.Code = append(e.Code, f.call(res.ID, def, l, ops...))
	e.Value = res

	return e, nil
}

// update lowers ++ and -- as an addition written back to the operand.
func (f *funContext) update(n *estree.UpdateExpression, ref ir.Value) (e expr, err error) {
	if n.Argument == nil || len(n.Operator) != 2 {
		return e, errors.Wrap(ErrMalformed, "update %q", n.Operator)
	}

	l := location(n)

	code, cur, res, err := f.modify(n.Argument, ref, func(cur ir.Value) expr {
		one := f.constant(ir.KindNumber, 1.0, l)
		res := ir.Reference{ID: f.NextID()}

		return expr{
			Code:  append(one.Code, f.call(res.ID, ir.BinOpDef(n.Operator[:1]), l, cur, one.Value)),
			Value: res,
		}
	})
	if err != nil {
		return e, errors.Wrap(err, "operand")
	}

	e.Code = code

	e.Value = cur
	if n.Prefix {
		e.Value = res
	}

	return e, nil
}

// propertyName returns the static field name of a property key.
func propertyName(n estree.Node, computed bool) (string, bool) {
	switch n := n.(type) {
	case *estree.Identifier:
		return n.Name, !computed
	case *estree.Literal:
		if n.Regex != nil {
			return "", false
		}

		if n.Bigint != "" {
			return n.Bigint, true
		}

		switch v := n.Value.(type) {
		case string:
			return v, true
		case float64:
			return numberKey(v), true
		case bool:
			return strconv.FormatBool(v), true
		case nil:
			return "null", true
		}
	}

	return "", false
}

// numberKey converts a numeric key to the field name it denotes.
func numberKey(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		return "0"
	}

	if a := math.Abs(v); a >= 1e-6 && a < 1e21 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	// exponent without leading zeros: 1e+21, 1.5e-7
	mant, exp, _ := strings.Cut(strconv.FormatFloat(v, 'e', -1, 64), "e")

	return mant + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
}

func operatorDef(op string) ir.FunctionDefinition {
	switch op {
	case "&&", "||", "??":
		return ir.LogicalDef(op)
	default:
		return ir.BinOpDef(op)
	}
}

// isPlaceholder reports object property values that cannot be lowered at all.
func isPlaceholder(n estree.Node) bool {
	switch n := n.(type) {
	case *estree.AssignmentPattern:
		return true
	case *estree.Unknown:
		return n.Kind == "TSEmptyBodyFunctionExpression"
	}

	return false
}
