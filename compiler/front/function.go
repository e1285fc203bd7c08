package front

import (
	"fmt"

	"tlog.app/go/errors"

	"github.com/dbdlang/dbd/compiler/estree"
	"github.com/dbdlang/dbd/compiler/ir"
	"github.com/dbdlang/dbd/compiler/scope"
)

// processFunction lowers one function body into the blocks of bm.
// If outer is not nil it gets a branch to the function entry.
// The resulting FunctionInfo is appended to the output after all nested functions.
func (c *compilation) processFunction(bm *blockManager, outer *ir.Block, name string, body, params []estree.Node, l ir.Location) (_ *ir.FunctionInfo, err error) {
	c.tr.V("lower").Printw("process function", "name", name, "params", len(params), "stmts", len(body))

	parent := ir.Parameter{ID: c.NextID(), Name: ir.ParentName, Location: l}

	fps := []ir.Parameter{parent}

	for _, p := range params {
		var pname string

		if id, ok := p.(*estree.Identifier); ok {
			pname = id.Name
		}

		fps = append(fps, ir.Parameter{ID: c.NextID(), Name: pname, Location: location(p)})
	}

	s := c.CreateScope(scope.Function)
	b := bm.CreateBlock(s, l)

	if outer != nil {
		outer.Add(&ir.Branch{Target: b, Location: l})
	}

	c.Push(s)
	bm.PushBlock(b)

	b.Add(&ir.ScopeDeclaration{Scope: s.ID, Location: l})
	b.Add(c.call(c.NextID(), ir.SetFieldDef(ir.ParentName), l, s.Ref(), parent.Ref()))

	// parameters are fields of the activation record too, so closures find them
	for _, p := range fps[1:] {
		if p.Name == "" {
			continue
		}

		s.Assign(s.Declare(p.Name), p.Ref())

		b.Add(c.call(c.NextID(), ir.SetFieldDef(p.Name), p.Location, s.Ref(), p.Ref()))
	}

	fn := &ir.FunctionInfo{
		FileName:   c.file,
		Definition: ir.UserDef(name, c.file),
		Parameters: fps,
	}

	f := &funContext{
		compilation:  c,
		FunctionInfo: fn,
		blockManager: bm,
	}

	for _, st := range body {
		err = f.statement(st)
		if err != nil {
			return nil, errors.Wrap(err, "function %v", name)
		}
	}

	if last := bm.CurrentBlock(); !last.Terminated() {
		last.Add(&ir.Return{Value: ir.Null, Location: l})
	}

	fn.Blocks = bm.blocks

	c.funcs = append(c.funcs, fn)

	c.Pop()

	return fn, nil
}

// nestedName names a function declared inside the function f.
func (f *funContext) nestedName(id ir.ID) string {
	return fmt.Sprintf("%s__%d", f.Name(), id)
}

// function lowers a function expression into a fresh function object.
func (f *funContext) function(params, body []estree.Node, l ir.Location) (e expr, err error) {
	id := f.NextID()

	fn, err := f.processFunction(&blockManager{}, nil, f.nestedName(id), body, params, l)
	if err != nil {
		return e, err
	}

	fr := ir.FunctionReference{ID: id, Function: fn}

	f.FunctionReferences = append(f.FunctionReferences, fr)

	e.Code = append(e.Code, f.call(id, ir.NewObjectDef(), l))
	e.Value = fr

	return e, nil
}
