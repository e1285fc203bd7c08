// Package irdoc is the serialised form of lowered functions.
package irdoc

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/Masterminds/semver/v3"
	"tlog.app/go/errors"

	"github.com/dbdlang/dbd/compiler/ir"
)

type (
	Document struct {
		Version   string     `json:"version"`
		File      string     `json:"file"`
		Functions []Function `json:"functions"`
	}

	Function struct {
		Name       string      `json:"name"`
		Signature  string      `json:"signature"`
		Parameters []Parameter `json:"parameters"`
		Blocks     []Block     `json:"blocks"`
		Closures   []Value     `json:"closures,omitempty"`
	}

	Parameter struct {
		ID   ir.ID  `json:"id"`
		Name string `json:"name"`
	}

	Block struct {
		Index        int           `json:"index"`
		Scope        ir.ID         `json:"scope"`
		Instructions []Instruction `json:"instructions"`
	}

	Instruction struct {
		Kind string `json:"kind"`

		Dest      *ir.ID  `json:"dest,omitempty"`
		Receiver  *Value  `json:"receiver,omitempty"`
		Callee    string  `json:"callee,omitempty"`
		Signature string  `json:"signature,omitempty"`
		Operands  []Value `json:"operands,omitempty"`

		Value  *Value `json:"value,omitempty"`
		Target *int   `json:"target,omitempty"`
		Scope  *ir.ID `json:"scope,omitempty"`

		Loc *Loc `json:"loc,omitempty"`
	}

	Value struct {
		Kind string `json:"kind"`
		ID   ir.ID  `json:"id"`

		Literal any    `json:"literal,omitempty"`
		Type    string `json:"type,omitempty"`

		Scope    *ir.ID `json:"scope,omitempty"`
		Function string `json:"function,omitempty"`
	}

	Loc struct {
		Line      int `json:"line"`
		Column    int `json:"column"`
		EndLine   int `json:"end_line"`
		EndColumn int `json:"end_column"`
	}
)

// Value kinds.
const (
	ValueReference = "reference"
	ValueConstant  = "constant"
	ValueScope     = "scope"
	ValueFunction  = "function"
	ValueNull      = "null"
)

// Version is written into every document.
// Compatible is the range of versions Load accepts.
const (
	Version    = "1.0.0"
	Compatible = "^1"
)

var (
	ErrVersion   = errors.New("incompatible document version")
	ErrMalformed = errors.New("malformed document")
)

func New(file string, fns []*ir.FunctionInfo) *Document {
	d := &Document{
		Version:   Version,
		File:      file,
		Functions: make([]Function, len(fns)),
	}

	for i, f := range fns {
		d.Functions[i] = function(f)
	}

	return d
}

func Marshal(file string, fns []*ir.FunctionInfo) ([]byte, error) {
	data, err := json.MarshalIndent(New(file, fns), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal")
	}

	return append(data, '\n'), nil
}

// Load decodes a document checking its version first.
func Load(data []byte) (*Document, error) {
	var d Document

	err := json.Unmarshal(data, &d)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal")
	}

	err = CheckVersion(d.Version)
	if err != nil {
		return nil, err
	}

	return &d, nil
}

// Decode rebuilds the functions of d.
// Function references resolve by signature within the document.
func (d *Document) Decode() ([]*ir.FunctionInfo, error) {
	fns := make([]*ir.FunctionInfo, len(d.Functions))
	bysig := make(map[string]*ir.FunctionInfo, len(d.Functions))

	for i, f := range d.Functions {
		fns[i] = &ir.FunctionInfo{
			FileName:   d.File,
			Definition: ir.FunctionDefinition{Name: f.Name, Signature: f.Signature},
		}

		bysig[f.Signature] = fns[i]
	}

	for i, f := range d.Functions {
		err := decodeFunction(fns[i], f, bysig)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}
	}

	return fns, nil
}

func decodeFunction(fn *ir.FunctionInfo, f Function, bysig map[string]*ir.FunctionInfo) error {
	for _, p := range f.Parameters {
		fn.Parameters = append(fn.Parameters, ir.Parameter{ID: p.ID, Name: p.Name})
	}

	blocks := make([]*ir.Block, len(f.Blocks))

	for i, b := range f.Blocks {
		if b.Index != i {
			return errors.Wrap(ErrMalformed, "block %d at position %d", b.Index, i)
		}

		blocks[i] = &ir.Block{Index: b.Index, Scope: b.Scope}
	}

	for i, b := range f.Blocks {
		for j, in := range b.Instructions {
			x, err := decodeInstruction(in, blocks, bysig)
			if err != nil {
				return errors.Wrap(err, "block %d instruction %d", i, j)
			}

			blocks[i].Add(x)
		}
	}

	fn.Blocks = blocks

	for _, c := range f.Closures {
		v, err := decodeValue(c, bysig)
		if err != nil {
			return errors.Wrap(err, "closure")
		}

		r, ok := v.(ir.FunctionReference)
		if !ok {
			return errors.Wrap(ErrMalformed, "closure of kind %v", c.Kind)
		}

		fn.FunctionReferences = append(fn.FunctionReferences, r)
	}

	return nil
}

func decodeInstruction(in Instruction, blocks []*ir.Block, bysig map[string]*ir.FunctionInfo) (x ir.Instruction, err error) {
	var l ir.Location

	if in.Loc != nil {
		l = ir.Location{
			Start: ir.Position{Line: in.Loc.Line, Column: in.Loc.Column},
			End:   ir.Position{Line: in.Loc.EndLine, Column: in.Loc.EndColumn},
		}
	}

	switch in.Kind {
	case "call":
		if in.Dest == nil {
			return nil, errors.Wrap(ErrMalformed, "call without dest")
		}

		c := &ir.Call{
			Dest:     *in.Dest,
			Callee:   ir.FunctionDefinition{Name: in.Callee, Signature: in.Signature},
			Operands: make([]ir.Value, len(in.Operands)),
			Location: l,
		}

		if in.Receiver != nil {
			c.Receiver, err = decodeValue(*in.Receiver, bysig)
			if err != nil {
				return nil, errors.Wrap(err, "receiver")
			}
		}

		for i, op := range in.Operands {
			c.Operands[i], err = decodeValue(op, bysig)
			if err != nil {
				return nil, errors.Wrap(err, "operand %d", i)
			}
		}

		return c, nil
	case "return":
		if in.Value == nil {
			return nil, errors.Wrap(ErrMalformed, "return without value")
		}

		v, err := decodeValue(*in.Value, bysig)
		if err != nil {
			return nil, errors.Wrap(err, "return")
		}

		return &ir.Return{Value: v, Location: l}, nil
	case "branch":
		if in.Target == nil || *in.Target < 0 || *in.Target >= len(blocks) {
			return nil, errors.Wrap(ErrMalformed, "branch target")
		}

		return &ir.Branch{Target: blocks[*in.Target], Location: l}, nil
	case "scope":
		if in.Scope == nil {
			return nil, errors.Wrap(ErrMalformed, "scope declaration without scope")
		}

		return &ir.ScopeDeclaration{Scope: *in.Scope, Location: l}, nil
	default:
		return nil, errors.Wrap(ErrMalformed, "instruction kind %q", in.Kind)
	}
}

func decodeValue(v Value, bysig map[string]*ir.FunctionInfo) (ir.Value, error) {
	switch v.Kind {
	case ValueReference:
		return ir.Reference{ID: v.ID}, nil
	case ValueScope:
		if v.Scope == nil {
			return nil, errors.Wrap(ErrMalformed, "scope value without scope")
		}

		return ir.ScopeReference{ID: v.ID, Scope: *v.Scope}, nil
	case ValueFunction:
		f, ok := bysig[v.Function]
		if !ok {
			return nil, errors.Wrap(ErrMalformed, "unknown function %q", v.Function)
		}

		return ir.FunctionReference{ID: v.ID, Function: f}, nil
	case ValueNull:
		return ir.Null, nil
	case ValueConstant:
		kind := ir.TypeKind(v.Type)

		lit := v.Literal

		switch {
		case lit == nil:
			lit = zero(kind)
		case kind == ir.KindBigInt:
			s, ok := lit.(string)
			if !ok {
				return nil, errors.Wrap(ErrMalformed, "bigint literal %v", lit)
			}

			x, ok := new(big.Int).SetString(s, 10)
			if !ok {
				return nil, errors.Wrap(ErrMalformed, "bigint literal %q", s)
			}

			lit = x
		}

		return ir.Constant{
			ID:    v.ID,
			Value: lit,
			Type:  ir.TypeInfo{Kind: kind, Name: v.Type, Incomplete: true},
		}, nil
	default:
		return nil, errors.Wrap(ErrMalformed, "value kind %q", v.Kind)
	}
}

// zero restores literals omitted from the document.
func zero(kind ir.TypeKind) any {
	switch kind {
	case ir.KindNumber:
		return 0.0
	case ir.KindBoolean:
		return false
	default:
		return ""
	}
}

func CheckVersion(v string) error {
	c, err := semver.NewConstraint(Compatible)
	if err != nil {
		return errors.Wrap(err, "constraint")
	}

	sv, err := semver.NewVersion(v)
	if err != nil {
		return errors.Wrap(err, "version %q", v)
	}

	if !c.Check(sv) {
		return errors.Wrap(ErrVersion, "%v not in %v", v, Compatible)
	}

	return nil
}

func function(f *ir.FunctionInfo) Function {
	x := Function{
		Name:      f.Name(),
		Signature: f.Definition.Signature,
	}

	for _, p := range f.Parameters {
		x.Parameters = append(x.Parameters, Parameter{ID: p.ID, Name: p.Name})
	}

	for _, b := range f.Blocks {
		blk := Block{Index: b.Index, Scope: b.Scope}

		for _, in := range b.Instructions {
			blk.Instructions = append(blk.Instructions, instruction(in))
		}

		x.Blocks = append(x.Blocks, blk)
	}

	for _, r := range f.FunctionReferences {
		x.Closures = append(x.Closures, value(r))
	}

	return x
}

func instruction(in ir.Instruction) (x Instruction) {
	switch in := in.(type) {
	case *ir.Call:
		x.Kind = "call"
		x.Dest = &in.Dest
		x.Callee = in.Callee.Name
		x.Signature = in.Callee.Signature

		if in.Receiver != nil {
			r := value(in.Receiver)
			x.Receiver = &r
		}

		x.Operands = make([]Value, len(in.Operands))

		for i, op := range in.Operands {
			x.Operands[i] = value(op)
		}
	case *ir.Return:
		x.Kind = "return"

		v := value(in.Value)
		x.Value = &v
	case *ir.Branch:
		x.Kind = "branch"
		x.Target = &in.Target.Index
	case *ir.ScopeDeclaration:
		x.Kind = "scope"
		x.Scope = &in.Scope
	}

	if l := in.Loc(); l != (ir.Location{}) {
		x.Loc = &Loc{
			Line:      l.Start.Line,
			Column:    l.Start.Column,
			EndLine:   l.End.Line,
			EndColumn: l.End.Column,
		}
	}

	return x
}

func value(v ir.Value) Value {
	switch v := v.(type) {
	case ir.Reference:
		return Value{Kind: ValueReference, ID: v.ID}
	case ir.ScopeReference:
		s := v.Scope
		return Value{Kind: ValueScope, ID: v.ID, Scope: &s}
	case ir.FunctionReference:
		x := Value{Kind: ValueFunction, ID: v.ID}
		if v.Function != nil {
			x.Function = v.Function.Definition.Signature
		}

		return x
	case ir.Constant:
		if ir.IsNull(v) {
			return Value{Kind: ValueNull, ID: v.ID}
		}

		return Value{Kind: ValueConstant, ID: v.ID, Literal: literal(v.Value), Type: string(v.Type.Kind)}
	default:
		return Value{Kind: fmt.Sprintf("%T", v), ID: ir.NoID}
	}
}

func literal(v any) any {
	switch v := v.(type) {
	case *big.Int:
		return v.String()
	default:
		return v
	}
}
