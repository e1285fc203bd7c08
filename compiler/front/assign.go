package front

import (
	"tlog.app/go/errors"

	"github.com/dbdlang/dbd/compiler/estree"
	"github.com/dbdlang/dbd/compiler/ir"
)

// declare binds a declaration target to val in the scope ref denotes.
func (f *funContext) declare(target estree.Node, val ir.Value, ref ir.Value) []ir.Instruction {
	id, ok := target.(*estree.Identifier)
	if !ok {
		f.tr.Printw("unsupported declaration target", "type", typeOf(target), "loc", location(target), "func", f.Name())
		return nil
	}

	return f.declareField(id.Name, val, ref, location(id))
}

// declareField records name = val in the scope of obj, if known, and stores the field.
func (f *funContext) declareField(name string, val ir.Value, obj ir.Value, l ir.Location) []ir.Instruction {
	if s := f.ScopeOf(obj); s != nil {
		s.Assign(s.Declare(name), val)
	}

	return []ir.Instruction{
		f.call(f.NextID(), ir.SetFieldDef(name), l, obj, val),
	}
}

// assign stores val into an assignment target.
func (f *funContext) assign(target estree.Node, val ir.Value, ref ir.Value) ([]ir.Instruction, error) {
	switch t := target.(type) {
	case *estree.Identifier:
		return f.assignIdentifier(t.Name, val, ref, location(t)), nil
	case *estree.MemberExpression:
		return f.assignMember(t, val, ref)
	case nil:
		return nil, errors.Wrap(ErrMalformed, "assignment without target")
	default:
		f.tr.Printw("unsupported assignment target", "type", t.Type(), "loc", location(t), "func", f.Name())

		return nil, nil
	}
}

// assignIdentifier stores into the environment owning name.
// An undeclared name becomes a field of the global object.
func (f *funContext) assignIdentifier(name string, val ir.Value, ref ir.Value, l ir.Location) []ir.Instruction {
	if !f.lexical(ref) {
		return f.declareField(name, val, ref, l)
	}

	owner, v, dist := f.resolve(name)
	if v == nil {
		v = owner.Declare(name)
	}

	owner.Assign(v, val)

	code, obj := f.chain(dist, l)

	return append(code, f.call(f.NextID(), ir.SetFieldDef(name), l, obj, val))
}

func (f *funContext) assignMember(t *estree.MemberExpression, val ir.Value, ref ir.Value) ([]ir.Instruction, error) {
	p, err := f.place(t, ref)
	if err != nil {
		return nil, err
	}

	return append(p.code, f.store(p, val)...), nil
}

// place is a member target with its object and key already lowered.
type place struct {
	code []ir.Instruction

	obj ir.Value
	key ir.Value // computed key, nil if name is static

	name string
	l    ir.Location
}

func (f *funContext) place(t *estree.MemberExpression, ref ir.Value) (p place, err error) {
	if t.Object == nil || t.Property == nil {
		return p, errors.Wrap(ErrMalformed, "member expression without operand")
	}

	p.l = location(t)

	obj, err := f.expression(t.Object, ref)
	if err != nil {
		return p, errors.Wrap(err, "object")
	}

	p.code = obj.Code
	p.obj = obj.Value

	if name, ok := propertyName(t.Property, t.Computed); ok {
		p.name = name

		return p, nil
	}

	key, err := f.expression(t.Property, ref)
	if err != nil {
		return p, errors.Wrap(err, "property")
	}

	p.code = append(p.code, key.Code...)
	p.key = key.Value

	return p, nil
}

// load reads the field p denotes. The returned code excludes p.code.
func (f *funContext) load(p place) expr {
	if p.key == nil {
		return f.read(nil, f.ScopeOf(p.obj), p.name, p.obj, p.l)
	}

	res := ir.Reference{ID: f.NextID()}

	return expr{
		Code:  []ir.Instruction{f.call(res.ID, ir.GetFieldDynamicDef(), p.l, p.obj, p.key)},
		Value: res,
	}
}

// store writes val to the field p denotes. The returned code excludes p.code.
func (f *funContext) store(p place, val ir.Value) []ir.Instruction {
	if p.key == nil {
		return f.declareField(p.name, val, p.obj, p.l)
	}

	return []ir.Instruction{
		f.call(f.NextID(), ir.SetFieldDynamicDef(), p.l, p.obj, p.key, val),
	}
}

// modify reads target, combines the current value and writes the result back.
// Object and key of a member target are evaluated once.
func (f *funContext) modify(target estree.Node, ref ir.Value, combine func(cur ir.Value) expr) (code []ir.Instruction, cur, res ir.Value, err error) {
	if m, ok := target.(*estree.MemberExpression); ok {
		p, err := f.place(m, ref)
		if err != nil {
			return nil, nil, nil, err
		}

		old := f.load(p)
		nv := combine(old.Value)

		code = append(p.code, old.Code...)
		code = append(code, nv.Code...)
		code = append(code, f.store(p, nv.Value)...)

		return code, old.Value, nv.Value, nil
	}

	old, err := f.expression(target, ref)
	if err != nil {
		return nil, nil, nil, err
	}

	nv := combine(old.Value)

	st, err := f.assign(target, nv.Value, ref)
	if err != nil {
		return nil, nil, nil, err
	}

	code = append(old.Code, nv.Code...)
	code = append(code, st...)

	return code, old.Value, nv.Value, nil
}
