// Package format renders lowered functions as text.
package format

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/dbdlang/dbd/compiler/ir"
)

type (
	Stats struct {
		Name         string
		Params       int
		Blocks       int
		Instructions int
		Calls        int
		Synthetic    int
		Constants    int
		Closures     int
	}
)

func Format(ctx context.Context, b []byte, x any) ([]byte, error) {
	return format(ctx, b, x, 0)
}

func format(ctx context.Context, b []byte, x any, d int) (_ []byte, err error) {
	switch x := x.(type) {
	case []*ir.FunctionInfo:
		for i, f := range x {
			if i != 0 {
				b = append(b, '\n')
			}

			b, err = formatFunc(ctx, b, f, d)
			if err != nil {
				return nil, errors.Wrap(err, "func %v", f.Name())
			}
		}

		return b, nil
	case *ir.FunctionInfo:
		return formatFunc(ctx, b, x, d)
	case *ir.Block:
		return formatBlock(ctx, b, x, d)
	case ir.Value:
		return formatValue(b, x), nil
	default:
		return nil, errors.New("unsupported type: %T", x)
	}
}

func formatFunc(ctx context.Context, b []byte, x *ir.FunctionInfo, d int) (_ []byte, err error) {
	b = app(b, d, "func %v(", x.Name())

	for i, p := range x.Parameters {
		if i != 0 {
			b = append(b, ", "...)
		}

		name := p.Name
		if name == "" {
			name = "_"
		}

		b = app(b, 0, "%v r%d", name, p.ID)
	}

	b = app(b, 0, ") %v {\n", x.Definition.Signature)

	for _, blk := range x.Blocks {
		b, err = formatBlock(ctx, b, blk, d)
		if err != nil {
			return nil, errors.Wrap(err, "block %d", blk.Index)
		}
	}

	b = app(b, d, "}\n")

	return b, nil
}

func formatBlock(ctx context.Context, b []byte, x *ir.Block, d int) ([]byte, error) {
	b = app(b, d, "b%d: scope s%d\n", x.Index, x.Scope)

	for _, in := range x.Instructions {
		b = app(b, d+1, "")

		switch in := in.(type) {
		case *ir.Call:
			b = app(b, 0, "r%d = %v(", in.Dest, in.Callee.Name)

			for i, op := range in.Operands {
				if i != 0 {
					b = append(b, ", "...)
				}

				b = formatValue(b, op)
			}

			b = append(b, ')')
		case *ir.Return:
			b = append(b, "return "...)
			b = formatValue(b, in.Value)
		case *ir.Branch:
			b = app(b, 0, "br b%d", in.Target.Index)
		case *ir.ScopeDeclaration:
			b = app(b, 0, "scope s%d", in.Scope)
		default:
			return nil, errors.New("unsupported instruction: %T", in)
		}

		if l := in.Loc(); l.Start.Line != 0 {
			b = app(b, 0, "\t// %d:%d", l.Start.Line, l.Start.Column)
		}

		b = append(b, '\n')
	}

	return b, nil
}

func formatValue(b []byte, x ir.Value) []byte {
	switch x := x.(type) {
	case nil:
		return append(b, "<nil>"...)
	case ir.Reference:
		return app(b, 0, "r%d", x.ID)
	case ir.ScopeReference:
		if x.ID == x.Scope {
			return app(b, 0, "s%d", x.Scope)
		}

		return app(b, 0, "r%d(s%d)", x.ID, x.Scope)
	case ir.FunctionReference:
		name := "?"
		if x.Function != nil {
			name = x.Function.Name()
		}

		return app(b, 0, "r%d(func %v)", x.ID, name)
	case ir.Constant:
		if ir.IsNull(x) {
			return append(b, "null"...)
		}

		switch v := x.Value.(type) {
		case string:
			return app(b, 0, "c%d(%v %q)", x.ID, x.Type.Kind, v)
		default:
			return app(b, 0, "c%d(%v %v)", x.ID, x.Type.Kind, v)
		}
	default:
		return app(b, 0, "%v", x)
	}
}

// Count summarises fns in output order.
func Count(fns []*ir.FunctionInfo) []Stats {
	r := make([]Stats, len(fns))

	for i, f := range fns {
		r[i] = count(f)
	}

	return r
}

func count(f *ir.FunctionInfo) (s Stats) {
	s.Name = f.Name()
	s.Params = len(f.Parameters) - 1
	s.Blocks = len(f.Blocks)
	s.Closures = len(f.FunctionReferences)

	for _, b := range f.Blocks {
		s.Instructions += len(b.Instructions)

		for _, in := range b.Instructions {
			c, ok := in.(*ir.Call)
			if !ok {
				continue
			}

			s.Calls++

			if c.Callee.IsSynthetic() {
				s.Synthetic++
			}

			for _, op := range c.Operands {
				if k, ok := op.(ir.Constant); ok && !ir.IsNull(k) {
					s.Constants++
				}
			}
		}
	}

	return s
}

func app(b []byte, d int, f string, args ...any) []byte {
	const tabs = "\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t"
	b = append(b, tabs[:d]...)
	b = hfmt.Appendf(b, f, args...)
	return b
}
