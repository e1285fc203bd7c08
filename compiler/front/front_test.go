package front

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbdlang/dbd/compiler/estree"
	"github.com/dbdlang/dbd/compiler/format"
	"github.com/dbdlang/dbd/compiler/ir"
	"github.com/dbdlang/dbd/compiler/verify"
)

func TestGlobalSeeding(t *testing.T) {
	fns := lower(t, prog(), "console")

	require.Len(t, fns, 1)

	main := fns[0]
	assert.Equal(t, MainName, main.Name())
	assert.Equal(t, "test.js.main", main.Definition.Signature)
	require.Len(t, main.Parameters, 1)
	assert.Equal(t, ir.ParentName, main.Parameters[0].Name)

	b := main.Blocks[0]

	require.IsType(t, &ir.ScopeDeclaration{}, b.Instructions[0])
	g := b.Instructions[0].(*ir.ScopeDeclaration).Scope

	var names []string

	for _, x := range b.Instructions[1:] {
		if c, ok := x.(*ir.Call); ok {
			names = append(names, c.Callee.Name)

			assert.Equal(t, ir.ScopeReference{ID: g, Scope: g}, c.Operands[0])
		}
	}

	assert.Equal(t, []string{
		"#set-field# globalThis",
		"#set-field# NaN",
		"#set-field# Infinity",
		"#set-field# undefined",
		"#set-field# console",
	}, names)

	host := b.Instructions[5].(*ir.Call)
	c, ok := host.Operands[1].(ir.Constant)
	require.True(t, ok)
	assert.Equal(t, "console", c.Value)
	assert.Equal(t, ir.KindString, c.Type.Kind)

	br, ok := b.Terminator().(*ir.Branch)
	require.True(t, ok)
	assert.Equal(t, 1, br.Target.Index)

	entry := main.Blocks[1]
	assert.Equal(t, "#set-field# @parent", entry.Instructions[1].(*ir.Call).Callee.Name)
	assert.IsType(t, &ir.Return{}, entry.Terminator())
}

func TestClosureDepth(t *testing.T) {
	fns := lower(t, prog(
		fnDecl("outer", nil,
			varDecl("x", num(1)),
			fnDecl("inner", nil, ret(ident("x"))),
		),
	))

	require.Len(t, fns, 3)
	assert.Equal(t, "outer", fns[1].Name())
	assert.Equal(t, MainName, fns[2].Name())

	inner := fns[0]
	assert.True(t, strings.HasPrefix(inner.Name(), "outer__"), "name: %v", inner.Name())
	assert.Equal(t, ir.ParentName, inner.Parameters[0].Name)

	cs := calls(inner)

	var parents, at int

	for i, c := range cs {
		switch c.Callee.Name {
		case "#get-field# @parent":
			parents++
			at = i
		case "#get-field# x":
			assert.Equal(t, at+1, i)
			assert.Equal(t, ir.Reference{ID: cs[at].Dest}, c.Operands[0])

			ret := inner.Blocks[0].Terminator().(*ir.Return)
			assert.Equal(t, ir.Reference{ID: c.Dest}, ret.Value)
		}
	}

	assert.Equal(t, 1, parents)
}

func TestObjectLiteral(t *testing.T) {
	fns := lower(t, prog(
		varDecl("o", object(
			property(ident("a"), num(1)),
			property(str("b"), str("s")),
		)),
	))

	cs := calls(fns[0])

	var obj ir.ID = ir.NoID
	var fields []string

	for _, c := range cs {
		if c.Callee.Name == ir.NewObject && obj == ir.NoID {
			obj = c.Dest
			continue
		}

		name, ok := c.Callee.Field()
		if !ok || !strings.HasPrefix(c.Callee.Name, ir.SetField) {
			continue
		}

		switch name {
		case "a", "b":
			assert.Equal(t, obj, c.Operands[0].Identifier())
			fields = append(fields, name)
		case "o":
			assert.Equal(t, ir.ScopeReference{ID: obj, Scope: obj}, c.Operands[1])
		}
	}

	assert.Equal(t, []string{"a", "b"}, fields)
}

func TestObjectPatternValue(t *testing.T) {
	_, err := transpile(t, prog(
		exprStmt(object(
			property(ident("a"), `{"type":"AssignmentPattern","left":`+ident("x")+`,"right":`+num(1)+`}`),
		)),
	))

	require.ErrorIs(t, err, ErrUnsupported)

	_, err = transpile(t, prog(
		exprStmt(object(
			property(ident("m"), `{"type":"TSEmptyBodyFunctionExpression","params":[]}`),
		)),
	))

	require.ErrorIs(t, err, ErrUnsupported)
}

func TestUnsupportedSkipped(t *testing.T) {
	plain := lower(t, prog(
		varDecl("a", num(1)),
		exprStmt(call(ident("f"), ident("a"))),
	))

	noisy := lower(t, prog(
		`{"type":"IfStatement","test":`+ident("a")+`}`,
		varDecl("a", num(1)),
		`{"type":"ForStatement"}`,
		exprStmt(call(ident("f"), ident("a"))),
	))

	assert.Equal(t, text(t, plain), text(t, noisy))

	f := fnDecl("f", []string{"a"}, ret(ident("a")))

	plain = lower(t, prog(f, fnDecl("g", nil, exprStmt(num(1)))))
	noisy = lower(t, prog(f, fnDecl("g", nil, exprStmt(`{"type":"TemplateLiteral","quasis":[]}`))))

	assert.Equal(t, text(t, plain[:1]), text(t, noisy[:1]))

	fns := lower(t, prog(
		varDecl("t", `{"type":"TemplateLiteral","quasis":[]}`),
	))

	set := findCall(t, fns[0], "#set-field# t")
	assert.True(t, ir.IsNull(set.Operands[1]))
}

func TestDeterministic(t *testing.T) {
	src := prog(
		fnDecl("f", []string{"a", "b"},
			ret(binary("+", ident("a"), ident("b"))),
		),
		varDecl("r", call(ident("f"), num(1), num(2))),
		exprStmt(assign("=", member(ident("r"), ident("x"), false), str("y"))),
	)

	a, b := lower(t, src), lower(t, src)

	require.Len(t, b, len(a))

	for i := range a {
		assert.Equal(t, a[i].Definition, b[i].Definition)
	}

	assert.Equal(t, text(t, a), text(t, b))
}

func TestUniqueIDs(t *testing.T) {
	fns := lower(t, prog(
		varDecl("o", object(property(ident("k"), num(1)))),
		fnDecl("f", []string{"p"},
			varDecl("q", array(ident("p"), "null", num(2))),
			exprStmt(update("++", true, ident("q"))),
			exprStmt(assign("+=", ident("q"), num(1))),
			block(
				varDecl("z", logical("&&", ident("p"), ident("q"))),
				ret(conditional(ident("z"), num(1), str("no"))),
			),
		),
		exprStmt(call(member(ident("o"), ident("k"), false), ident("o"), call(ident("f"), num(1)))),
		exprStmt(assign("=", member(ident("o"), str("k"), true), unary("!", ident("o")))),
		exprStmt(arrow(true, []string{"v"}, binary("*", ident("v"), num(2)))),
		exprStmt(function([]string{"w"}, ret(ident("w")))),
	))

	seen := map[ir.ID]string{}

	for _, fn := range fns {
		for _, p := range fn.Parameters {
			require.NotContains(t, seen, p.ID)
			seen[p.ID] = fn.Name() + " " + p.Name
		}

		for _, c := range calls(fn) {
			require.NotContains(t, seen, c.Dest, "dest of %v", c.Callee.Name)
			seen[c.Dest] = c.Callee.Name
		}
	}

	for _, fn := range fns {
		assert.Empty(t, verify.Unreachable(fn), "func %v", fn.Name())
	}
}

func TestKnownCallee(t *testing.T) {
	fns := lower(t, prog(
		fnDecl("f", []string{"a", "b"}),
		exprStmt(call(ident("f"), num(1))),
	))

	require.Len(t, fns, 2)

	f, main := fns[0], fns[1]

	c := findCall(t, main, "f")
	assert.Equal(t, f.Definition, c.Callee)
	require.Len(t, c.Operands, 3)
	assert.IsType(t, ir.ScopeReference{}, c.Operands[0])
	assert.Equal(t, ir.KindNumber, c.Operands[1].(ir.Constant).Type.Kind)
	assert.True(t, ir.IsNull(c.Operands[2]))

	require.Len(t, main.FunctionReferences, 1)
	assert.Same(t, f, main.FunctionReferences[0].Function)
}

func TestDynamicCallee(t *testing.T) {
	fns := lower(t, prog(
		exprStmt(call(ident("g"), num(1), num(2))),
	))

	main := fns[0]

	get := findCall(t, main, "#get-field# g")
	c := findCall(t, main, ir.CallDynamic)

	require.Len(t, c.Operands, 4)
	assert.Equal(t, ir.Reference{ID: get.Dest}, c.Operands[0])
	assert.IsType(t, ir.ScopeReference{}, c.Operands[1])

	// distinct literals are distinct constants
	assert.NotEqual(t, c.Operands[2], c.Operands[3])
}

func TestImplicitGlobal(t *testing.T) {
	fns := lower(t, prog(
		exprStmt(assign("=", ident("y"), num(2))),
	))

	main := fns[0]

	up := findCall(t, main, "#get-field# @parent")
	set := findCall(t, main, "#set-field# y")

	assert.Equal(t, ir.Reference{ID: up.Dest}, set.Operands[0])
}

func TestBlockStatement(t *testing.T) {
	fns := lower(t, prog(
		block(varDecl("z", num(1))),
		exprStmt(ident("z")),
	))

	main := fns[0]

	require.Len(t, main.Blocks, 4)

	for i, b := range main.Blocks[:3] {
		br, ok := b.Terminator().(*ir.Branch)
		require.True(t, ok, "block %d", i)
		assert.Equal(t, i+1, br.Target.Index)
	}

	inner := main.Blocks[2]
	assert.NotEqual(t, main.Blocks[1].Scope, inner.Scope)

	first := inner.Instructions[0].(*ir.Call)
	assert.Equal(t, ir.NewObject, first.Callee.Name)
	assert.Equal(t, inner.Scope, first.Dest)

	assert.IsType(t, &ir.Return{}, main.Blocks[3].Terminator())
}

func TestDeadCode(t *testing.T) {
	fns := lower(t, prog(
		fnDecl("f", nil,
			ret(num(1)),
			exprStmt(call(ident("g"))),
		),
	))

	f := fns[0]

	require.Len(t, f.Blocks, 2)
	assert.Equal(t, []int{1}, verify.Unreachable(f))
}

func TestMalformed(t *testing.T) {
	_, err := transpile(t, prog(
		`{"type":"ExpressionStatement","expression":null}`,
	))

	require.ErrorIs(t, err, ErrMalformed)

	_, err = New().Transpile(context.Background(), nil, "test.js")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestMemberRead(t *testing.T) {
	fns := lower(t, prog(
		varDecl("o", object(property(ident("a"), num(1)))),
		exprStmt(call(ident("g"), member(ident("o"), ident("a"), false))),
	))

	main := fns[0]

	o := findCall(t, main, "#get-field# o")
	a := findCall(t, main, "#get-field# a")
	c := findCall(t, main, ir.CallDynamic)

	assert.Equal(t, o.Dest, a.Operands[0].Identifier())
	assert.Equal(t, ir.Reference{ID: a.Dest}, c.Operands[2])
}

func TestComputedMember(t *testing.T) {
	fns := lower(t, prog(
		exprStmt(call(ident("g"), member(ident("o"), ident("k"), true))),
		exprStmt(assign("=", member(ident("o"), ident("k"), true), num(1))),
		exprStmt(call(ident("g"), member(ident("o"), str("a"), true))),
	))

	cs := calls(fns[0])

	var names []string

	for _, c := range cs {
		switch c.Callee.Name {
		case ir.GetFieldDynamic, ir.SetFieldDynamic, "#get-field# a", "#set-field# a":
			names = append(names, c.Callee.Name)
		}
	}

	assert.Equal(t, []string{ir.GetFieldDynamic, ir.SetFieldDynamic, "#get-field# a"}, names)

	get := findCall(t, fns[0], ir.GetFieldDynamic)
	set := findCall(t, fns[0], ir.SetFieldDynamic)

	require.Len(t, get.Operands, 2)
	require.Len(t, set.Operands, 3)
	assert.Equal(t, ir.KindNumber, set.Operands[2].(ir.Constant).Type.Kind)
}

func TestModifyMember(t *testing.T) {
	fns := lower(t, prog(
		exprStmt(assign("+=", member(call(ident("f")), ident("x"), false), num(1))),
		exprStmt(update("++", false, member(call(ident("h")), ident("y"), false))),
	))

	main := fns[0]

	var dyn []*ir.Call

	for _, c := range calls(main) {
		if c.Callee.Name == ir.CallDynamic {
			dyn = append(dyn, c)
		}
	}

	require.Len(t, dyn, 2)

	for i, field := range []string{"x", "y"} {
		get := findCall(t, main, ir.GetField+" "+field)
		set := findCall(t, main, ir.SetField+" "+field)
		op := findCall(t, main, "#binop# +")

		obj := ir.Reference{ID: dyn[i].Dest}

		assert.Equal(t, obj, get.Operands[0], "field %v", field)
		assert.Equal(t, obj, set.Operands[0], "field %v", field)

		if i == 0 {
			assert.Equal(t, ir.Reference{ID: get.Dest}, op.Operands[0])
			assert.Equal(t, ir.Reference{ID: op.Dest}, set.Operands[1])
		}
	}
}

func TestModifyComputedMember(t *testing.T) {
	fns := lower(t, prog(
		exprStmt(assign("+=", member(call(ident("f")), ident("k"), true), num(1))),
	))

	main := fns[0]

	var n int

	for _, c := range calls(main) {
		if c.Callee.Name == ir.CallDynamic || c.Callee.Name == "#get-field# k" {
			n++
		}
	}

	assert.Equal(t, 2, n, "object and key are evaluated once")

	f := findCall(t, main, ir.CallDynamic)
	k := findCall(t, main, "#get-field# k")
	get := findCall(t, main, ir.GetFieldDynamic)
	set := findCall(t, main, ir.SetFieldDynamic)

	obj := ir.Reference{ID: f.Dest}
	key := ir.Reference{ID: k.Dest}

	assert.Equal(t, []ir.Value{obj, key}, get.Operands)
	require.Len(t, set.Operands, 3)
	assert.Equal(t, obj, set.Operands[0])
	assert.Equal(t, key, set.Operands[1])
}

func TestUpdateValue(t *testing.T) {
	fns := lower(t, prog(
		varDecl("a", num(1)),
		fnDecl("post", nil, ret(update("++", false, ident("a")))),
		fnDecl("pre", nil, ret(update("--", true, ident("a")))),
	))

	require.Len(t, fns, 3)

	for _, tc := range []struct {
		fn     *ir.FunctionInfo
		op     string
		prefix bool
	}{
		{fns[0], "+", false},
		{fns[1], "-", true},
	} {
		get := findCall(t, tc.fn, "#get-field# a")
		op := findCall(t, tc.fn, "#binop# "+tc.op)
		set := findCall(t, tc.fn, "#set-field# a")

		assert.Equal(t, ir.Reference{ID: op.Dest}, set.Operands[1])

		ret := tc.fn.Blocks[0].Terminator().(*ir.Return)

		if tc.prefix {
			assert.Equal(t, ir.Reference{ID: op.Dest}, ret.Value, "func %v", tc.fn.Name())
		} else {
			assert.Equal(t, ir.Reference{ID: get.Dest}, ret.Value, "func %v", tc.fn.Name())
		}
	}
}

func TestEnclosingParameter(t *testing.T) {
	fns := lower(t, prog(
		fnDecl("outer", []string{"p"},
			fnDecl("inner", nil, ret(ident("p"))),
		),
	))

	require.Len(t, fns, 3)

	inner := fns[0]
	cs := calls(inner)

	up := findCall(t, inner, "#get-field# @parent")
	p := findCall(t, inner, "#get-field# p")

	var parents int

	for _, c := range cs {
		if c.Callee.Name == "#get-field# @parent" {
			parents++
		}
	}

	assert.Equal(t, 1, parents)
	assert.Equal(t, ir.Reference{ID: up.Dest}, p.Operands[0])

	ret := inner.Blocks[0].Terminator().(*ir.Return)
	assert.Equal(t, ir.Reference{ID: p.Dest}, ret.Value)
}

func TestObjectPropertyArgument(t *testing.T) {
	fns := lower(t, prog(
		varDecl("x", str("outer")),
		varDecl("o", object(
			property(ident("x"), num(1)),
			property(ident("y"), call(ident("g"), ident("x"))),
		)),
	))

	c := findCall(t, fns[0], ir.CallDynamic)
	require.Len(t, c.Operands, 3)

	arg, ok := c.Operands[2].(ir.Constant)
	require.True(t, ok, "arg: %#v", c.Operands[2])
	assert.Equal(t, "outer", arg.Value)
}

func TestNumberKey(t *testing.T) {
	for _, tc := range []struct {
		v   float64
		exp string
	}{
		{1, "1"},
		{-2, "-2"},
		{1.5, "1.5"},
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{0.000001, "0.000001"},
		{1e-7, "1e-7"},
		{1.5e-7, "1.5e-7"},
		{1e20, "100000000000000000000"},
		{1e21, "1e+21"},
		{1e300, "1e+300"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
	} {
		assert.Equal(t, tc.exp, numberKey(tc.v), "value %v", tc.v)
	}

	name, ok := propertyName(&estree.Literal{Value: 1e21}, true)
	assert.True(t, ok)
	assert.Equal(t, "1e+21", name)
}

func transpile(t testing.TB, src string, host ...string) ([]*ir.FunctionInfo, error) {
	t.Helper()

	p, err := estree.Decode([]byte(src))
	require.NoError(t, err)

	return New(host...).Transpile(context.Background(), p, "test.js")
}

func lower(t testing.TB, src string, host ...string) []*ir.FunctionInfo {
	t.Helper()

	fns, err := transpile(t, src, host...)
	require.NoError(t, err)

	require.NoError(t, verify.Functions(context.Background(), fns))

	return fns
}

func text(t testing.TB, fns []*ir.FunctionInfo) string {
	t.Helper()

	b, err := format.Format(context.Background(), nil, fns)
	require.NoError(t, err)

	return string(b)
}

func calls(fn *ir.FunctionInfo) (r []*ir.Call) {
	for _, b := range fn.Blocks {
		for _, x := range b.Instructions {
			if c, ok := x.(*ir.Call); ok {
				r = append(r, c)
			}
		}
	}

	return r
}

func findCall(t testing.TB, fn *ir.FunctionInfo, name string) *ir.Call {
	t.Helper()

	for _, c := range calls(fn) {
		if c.Callee.Name == name {
			return c
		}
	}

	t.Fatalf("no call to %v in %v", name, fn.Name())

	return nil
}

func prog(body ...string) string {
	return `{"type":"Program","sourceType":"script","body":[` + strings.Join(body, ",") + `]}`
}

func ident(name string) string { return fmt.Sprintf(`{"type":"Identifier","name":%q}`, name) }

func num(v float64) string { return fmt.Sprintf(`{"type":"Literal","value":%v,"raw":"%v"}`, v, v) }

func str(s string) string { return fmt.Sprintf(`{"type":"Literal","value":%q}`, s) }

func varDecl(name, init string) string {
	if init == "" {
		init = "null"
	}

	return `{"type":"VariableDeclaration","kind":"var","declarations":[{"type":"VariableDeclarator","id":` + ident(name) + `,"init":` + init + `}]}`
}

func params(names []string) string {
	ps := make([]string, len(names))

	for i, n := range names {
		ps[i] = ident(n)
	}

	return "[" + strings.Join(ps, ",") + "]"
}

func fnDecl(name string, ps []string, body ...string) string {
	return `{"type":"FunctionDeclaration","id":` + ident(name) + `,"params":` + params(ps) + `,"body":` + block(body...) + `}`
}

func function(ps []string, body ...string) string {
	return `{"type":"FunctionExpression","id":null,"params":` + params(ps) + `,"body":` + block(body...) + `}`
}

func arrow(expression bool, ps []string, body string) string {
	return fmt.Sprintf(`{"type":"ArrowFunctionExpression","params":%s,"body":%s,"expression":%v}`, params(ps), body, expression)
}

func block(body ...string) string {
	return `{"type":"BlockStatement","body":[` + strings.Join(body, ",") + `]}`
}

func ret(arg string) string { return `{"type":"ReturnStatement","argument":` + arg + `}` }

func exprStmt(e string) string { return `{"type":"ExpressionStatement","expression":` + e + `}` }

func call(callee string, args ...string) string {
	return `{"type":"CallExpression","callee":` + callee + `,"arguments":[` + strings.Join(args, ",") + `],"optional":false}`
}

func member(obj, prop string, computed bool) string {
	return fmt.Sprintf(`{"type":"MemberExpression","object":%s,"property":%s,"computed":%v,"optional":false}`, obj, prop, computed)
}

func assign(op, l, r string) string {
	return fmt.Sprintf(`{"type":"AssignmentExpression","operator":%q,"left":%s,"right":%s}`, op, l, r)
}

func binary(op, l, r string) string {
	return fmt.Sprintf(`{"type":"BinaryExpression","operator":%q,"left":%s,"right":%s}`, op, l, r)
}

func logical(op, l, r string) string {
	return fmt.Sprintf(`{"type":"LogicalExpression","operator":%q,"left":%s,"right":%s}`, op, l, r)
}

func unary(op, arg string) string {
	return fmt.Sprintf(`{"type":"UnaryExpression","operator":%q,"prefix":true,"argument":%s}`, op, arg)
}

func update(op string, prefix bool, arg string) string {
	return fmt.Sprintf(`{"type":"UpdateExpression","operator":%q,"prefix":%v,"argument":%s}`, op, prefix, arg)
}

func conditional(test, cons, alt string) string {
	return `{"type":"ConditionalExpression","test":` + test + `,"consequent":` + cons + `,"alternate":` + alt + `}`
}

func object(props ...string) string {
	return `{"type":"ObjectExpression","properties":[` + strings.Join(props, ",") + `]}`
}

func property(key, value string) string {
	return `{"type":"Property","key":` + key + `,"value":` + value + `,"kind":"init","computed":false,"method":false,"shorthand":false}`
}

func array(elems ...string) string {
	return `{"type":"ArrayExpression","elements":[` + strings.Join(elems, ",") + `]}`
}
