package front

import (
	"tlog.app/go/errors"

	"github.com/dbdlang/dbd/compiler/estree"
	"github.com/dbdlang/dbd/compiler/ir"
	"github.com/dbdlang/dbd/compiler/scope"
)

func (f *funContext) statement(n estree.Node) (err error) {
	f.tr.V("lower").Printw("lower statement", "type", typeOf(n), "func", f.Name())

	switch n := n.(type) {
	case *estree.VariableDeclaration:
		return f.variableDeclaration(n)
	case *estree.FunctionDeclaration:
		return f.functionDeclaration(n)
	case *estree.ReturnStatement:
		return f.returnStatement(n)
	case *estree.ExpressionStatement:
		if n.Expression == nil {
			return errors.Wrap(ErrMalformed, "expression statement without expression")
		}

		e, err := f.expression(n.Expression, f.Current().Ref())
		if err != nil {
			return err
		}

		f.emit(location(n), e.Code...)

		return nil
	case *estree.BlockStatement:
		return f.blockStatement(n)
	case *estree.EmptyStatement:
		return nil
	case nil:
		return errors.Wrap(ErrMalformed, "null statement")
	default:
		f.tr.Printw("unsupported statement", "type", n.Type(), "loc", location(n), "func", f.Name())

		return nil
	}
}

func (f *funContext) variableDeclaration(n *estree.VariableDeclaration) error {
	ref := f.Current().Ref()

	var code []ir.Instruction

	for _, d := range n.Declarations {
		if d == nil || d.ID == nil {
			return errors.Wrap(ErrMalformed, "declarator without target")
		}

		var val ir.Value = ir.Null

		if d.Init != nil {
			e, err := f.expression(d.Init, ref)
			if err != nil {
				return errors.Wrap(err, "declarator")
			}

			code = append(code, e.Code...)
			val = e.Value
		}

		code = append(code, f.declare(d.ID, val, ref)...)
	}

	f.emit(location(n), code...)

	return nil
}

// functionDeclaration binds a new function object to its name in the current scope.
func (f *funContext) functionDeclaration(n *estree.FunctionDeclaration) error {
	if n.ID == nil || n.Body == nil {
		return errors.Wrap(ErrMalformed, "function declaration without name or body")
	}

	l := location(n)
	name := n.ID.Name

	cur := f.Current()
	ref := cur.Ref()

	v := cur.Declare(name)

	id := f.NextID()

	fname := name
	if f.Name() != MainName {
		fname = f.nestedName(id)
	}

	fn, err := f.processFunction(&blockManager{}, nil, fname, n.Body.Body, n.Params, l)
	if err != nil {
		return err
	}

	fr := ir.FunctionReference{ID: id, Function: fn}

	f.FunctionReferences = append(f.FunctionReferences, fr)

	f.emit(l,
		f.call(id, ir.NewObjectDef(), l),
		f.call(f.NextID(), ir.SetFieldDef(name), l, ref, fr),
	)

	cur.Assign(v, fr)

	return nil
}

func (f *funContext) returnStatement(n *estree.ReturnStatement) error {
	l := location(n)

	if n.Argument == nil {
		f.emit(l, &ir.Return{Value: ir.Null, Location: l})

		return nil
	}

	e, err := f.expression(n.Argument, f.Current().Ref())
	if err != nil {
		return errors.Wrap(err, "return")
	}

	f.emit(l, append(e.Code, &ir.Return{Value: e.Value, Location: l})...)

	return nil
}

// blockStatement lowers a braced block into its own scope and basic block.
func (f *funContext) blockStatement(n *estree.BlockStatement) error {
	l := location(n)

	parent := f.Current()
	from := f.open(l)

	s := f.CreateScope(scope.Block)
	f.Push(s)

	b := f.CreateBlock(s, l)
	from.Add(&ir.Branch{Target: b, Location: l})
	f.PushBlock(b)

	b.Add(
		f.call(s.ID, ir.NewObjectDef(), l),
		f.call(f.NextID(), ir.SetFieldDef(ir.ParentName), l, s.Ref(), parent.Ref()),
	)

	for _, st := range n.Body {
		err := f.statement(st)
		if err != nil {
			return err
		}
	}

	f.Pop()

	if last := f.CurrentBlock(); !last.Terminated() {
		next := f.CreateBlock(f.Current(), l)
		last.Add(&ir.Branch{Target: next, Location: l})
		f.PushBlock(next)
	}

	return nil
}
