package ir

import (
	"tlog.app/go/tlog/tlwire"
)

type (
	ID int

	// Value is one of Reference, Constant, ScopeReference or FunctionReference.
	Value interface {
		Identifier() ID

		value()
	}

	Reference struct {
		ID ID
	}

	Constant struct {
		ID    ID
		Value any
		Type  TypeInfo
	}

	// ScopeReference denotes a scope known at compile time.
	// The canonical reference of a scope has ID == Scope.
	ScopeReference struct {
		ID    ID
		Scope ID
	}

	FunctionReference struct {
		ID       ID
		Function *FunctionInfo
	}

	TypeKind string

	TypeInfo struct {
		Kind       TypeKind
		Name       string
		Incomplete bool
	}

	Position struct {
		Line   int
		Column int
	}

	Location struct {
		Start Position
		End   Position
	}

	Instruction interface {
		Loc() Location

		instruction()
	}

	Call struct {
		Dest     ID
		Receiver Value
		Callee   FunctionDefinition
		Operands []Value

		Location
	}

	Return struct {
		Value Value

		Location
	}

	Branch struct {
		Target *Block

		Location
	}

	ScopeDeclaration struct {
		Scope ID

		Location
	}

	Block struct {
		Index int
		Scope ID

		Instructions []Instruction

		Location
	}

	FunctionDefinition struct {
		Name      string
		Signature string
	}

	Parameter struct {
		ID   ID
		Name string

		Location
	}

	FunctionInfo struct {
		FileName   string
		Definition FunctionDefinition
		Parameters []Parameter

		Blocks []*Block

		FunctionReferences []FunctionReference
	}
)

const NoID ID = -1

const (
	KindNull    TypeKind = "null"
	KindNumber  TypeKind = "number"
	KindString  TypeKind = "string"
	KindBoolean TypeKind = "boolean"
	KindRegExp  TypeKind = "RegExp"
	KindBigInt  TypeKind = "bigint"
)

// ParentName is the name of the implicit first parameter and of the field
// linking an environment to its enclosing one.
const ParentName = "@parent"

// Null is the null-equivalent value. It is never a destination.
var Null = Constant{ID: NoID, Type: TypeInfo{Kind: KindNull, Name: "null"}}

func (v Reference) Identifier() ID         { return v.ID }
func (v Constant) Identifier() ID          { return v.ID }
func (v ScopeReference) Identifier() ID    { return v.ID }
func (v FunctionReference) Identifier() ID { return v.ID }

func (Reference) value()         {}
func (Constant) value()          {}
func (ScopeReference) value()    {}
func (FunctionReference) value() {}

func (l Location) Loc() Location { return l }

func (*Call) instruction()             {}
func (*Return) instruction()           {}
func (*Branch) instruction()           {}
func (*ScopeDeclaration) instruction() {}

// IsNull reports whether v is the null-equivalent value.
func IsNull(v Value) bool {
	c, ok := v.(Constant)

	return ok && c.Type.Kind == KindNull
}

// Ref is the value a parameter denotes.
func (p Parameter) Ref() Reference { return Reference{ID: p.ID} }

// Terminator returns the trailing Return or Branch of the block, if any.
func (b *Block) Terminator() Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}

	switch x := b.Instructions[len(b.Instructions)-1].(type) {
	case *Return, *Branch:
		return x
	}

	return nil
}

func (b *Block) Terminated() bool { return b.Terminator() != nil }

func (b *Block) Add(x ...Instruction) {
	b.Instructions = append(b.Instructions, x...)
}

func (f *FunctionInfo) Name() string { return f.Definition.Name }

// Parameter returns the declared parameter called name.
// The implicit @parent parameter never matches.
func (f *FunctionInfo) Parameter(name string) (Parameter, bool) {
	if name == "" {
		return Parameter{}, false
	}

	for _, p := range f.Parameters[1:] {
		if p.Name == name {
			return p, true
		}
	}

	return Parameter{}, false
}

func (v Reference) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 1)
	b = e.AppendKeyInt64(b, "ref", int64(v.ID))

	return b
}

func (v Constant) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 2)
	b = e.AppendKeyInt64(b, "const", int64(v.ID))
	b = e.AppendKeyString(b, "kind", string(v.Type.Kind))

	return b
}

func (v ScopeReference) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 2)
	b = e.AppendKeyInt64(b, "ref", int64(v.ID))
	b = e.AppendKeyInt64(b, "scope", int64(v.Scope))

	return b
}

func (v FunctionReference) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	name := ""
	if v.Function != nil {
		name = v.Function.Name()
	}

	b = e.AppendMap(b, 2)
	b = e.AppendKeyInt64(b, "ref", int64(v.ID))
	b = e.AppendKeyString(b, "func", name)

	return b
}
