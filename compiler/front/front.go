package front

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/dbdlang/dbd/compiler/estree"
	"github.com/dbdlang/dbd/compiler/ir"
	"github.com/dbdlang/dbd/compiler/scope"
)

type (
	// Transpiler lowers syntax trees to IR.
	// It keeps no state between calls and is safe for concurrent use.
	Transpiler struct {
		HostDefined []string
	}

	// compilation is the state of one file.
	compilation struct {
		*scope.Manager

		file  string
		funcs []*ir.FunctionInfo

		tr tlog.Span
	}

	funContext struct {
		*compilation
		*ir.FunctionInfo
		*blockManager
	}

	// expr is the result of lowering an expression.
	expr struct {
		Code  []ir.Instruction
		Scope *scope.Scope
		Value ir.Value
	}

	global struct {
		v   *scope.Variable
		val ir.Value
	}
)

const MainName = "main"

var (
	ErrUnsupported = errors.New("unsupported construct")
	ErrMalformed   = errors.New("malformed syntax tree")
)

// New creates a Transpiler seeding hostDefined names into the global object.
func New(hostDefined ...string) *Transpiler {
	return &Transpiler{HostDefined: hostDefined}
}

// Transpile lowers prog into one FunctionInfo per function, enclosing functions last.
// The implicit top-level function is called main.
func (t *Transpiler) Transpile(ctx context.Context, prog *estree.Program, file string) (_ []*ir.FunctionInfo, err error) {
	tr := tlog.SpawnFromContext(ctx, "front: transpile", "file", file)
	defer tr.Finish("err", &err)

	if prog == nil {
		return nil, errors.Wrap(ErrMalformed, "no program")
	}

	c := &compilation{
		Manager: scope.New(tr),
		file:    file,
		tr:      tr,
	}

	l := location(prog)

	g := c.CreateScope(scope.Global)
	bm := &blockManager{}
	b := bm.CreateBlock(g, l)

	c.Push(g)
	bm.PushBlock(b)

	b.Add(&ir.ScopeDeclaration{Scope: g.ID, Location: l})
	b.Add(c.call(c.NextID(), ir.SetFieldDef("globalThis"), l, g.Ref(), g.Ref()))

	g.Assign(g.Declare("globalThis"), g.Ref())

	globals := []global{
		{v: &scope.Variable{Name: "NaN", Type: "NaN"}, val: ir.Null},
		{v: &scope.Variable{Name: "Infinity", Type: "int"}, val: ir.Null},
		{v: &scope.Variable{Name: "undefined", Type: "Record"}, val: ir.Null},
	}

	for _, name := range t.HostDefined {
		globals = append(globals, global{
			v: scope.NewVariable(name),
			val: ir.Constant{
				ID:    c.NextID(),
				Value: name,
				Type:  ir.TypeInfo{Kind: ir.KindString, Name: string(ir.KindString), Incomplete: true},
			},
		})
	}

	for _, x := range globals {
		dst := ir.Reference{ID: c.NextID()}

		g.Variables[x.v.Name] = x.v
		g.Assign(x.v, dst)

		b.Add(c.call(dst.ID, ir.SetFieldDef(x.v.Name), l, g.Ref(), x.val))
	}

	_, err = c.processFunction(bm, b, MainName, prog.Body, nil, l)
	if err != nil {
		return nil, err
	}

	c.Pop()

	if tr.If("dump_funcs") {
		for _, f := range c.funcs {
			tr.Printw("function", "name", f.Name(), "signature", f.Definition.Signature, "params", len(f.Parameters), "blocks", len(f.Blocks))
		}
	}

	return c.funcs, nil
}

func (c *compilation) call(dst ir.ID, def ir.FunctionDefinition, l ir.Location, ops ...ir.Value) *ir.Call {
	return &ir.Call{
		Dest:     dst,
		Callee:   def,
		Operands: ops,
		Location: l,
	}
}

func location(n estree.Node) ir.Location {
	if n == nil {
		return ir.Location{}
	}

	l := n.Pos()

	return ir.Location{
		Start: ir.Position{Line: l.Start.Line, Column: l.Start.Column},
		End:   ir.Position{Line: l.End.Line, Column: l.End.Column},
	}
}

func typeOf(n estree.Node) string {
	if n == nil {
		return "null"
	}

	return n.Type()
}
