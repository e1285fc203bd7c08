package format

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbdlang/dbd/compiler/ir"
)

func sample() *ir.FunctionInfo {
	inner := &ir.FunctionInfo{Definition: ir.UserDef("main__4", "a.js")}

	b0 := &ir.Block{Index: 0, Scope: 1}
	b1 := &ir.Block{Index: 1, Scope: 1}

	b0.Add(
		&ir.ScopeDeclaration{Scope: 1},
		&ir.Call{
			Dest:   2,
			Callee: ir.SetFieldDef("s"),
			Operands: []ir.Value{
				ir.ScopeReference{ID: 1, Scope: 1},
				ir.Constant{ID: 3, Value: "x", Type: ir.TypeInfo{Kind: ir.KindString}},
			},
			Location: ir.Location{Start: ir.Position{Line: 2, Column: 4}},
		},
		&ir.Call{
			Dest:     5,
			Callee:   ir.NewObjectDef(),
			Operands: nil,
		},
		&ir.Call{
			Dest:   6,
			Callee: ir.SetFieldDef("f"),
			Operands: []ir.Value{
				ir.ScopeReference{ID: 7, Scope: 1},
				ir.FunctionReference{ID: 5, Function: inner},
			},
		},
		&ir.Branch{Target: b1},
	)

	b1.Add(&ir.Return{Value: ir.Null})

	return &ir.FunctionInfo{
		Definition: ir.UserDef("main", "a.js"),
		Parameters: []ir.Parameter{{ID: 0, Name: ir.ParentName}},
		Blocks:     []*ir.Block{b0, b1},
		FunctionReferences: []ir.FunctionReference{
			{ID: 5, Function: inner},
		},
	}
}

func TestFormat(t *testing.T) {
	b, err := Format(context.Background(), nil, []*ir.FunctionInfo{sample()})
	require.NoError(t, err)

	assert.Equal(t, `func main(@parent r0) a.js.main {
b0: scope s1
	scope s1
	r2 = #set-field# s(s1, c3(string "x"))	// 2:4
	r5 = #new-object#()
	r6 = #set-field# f(r7(s1), r5(func main__4))
	br b1
b1: scope s1
	return null
}
`, string(b))
}

func TestFormatUnsupported(t *testing.T) {
	_, err := Format(context.Background(), nil, 42)
	assert.Error(t, err)
}

func TestCount(t *testing.T) {
	s := Count([]*ir.FunctionInfo{sample()})

	require.Len(t, s, 1)
	assert.Equal(t, Stats{
		Name:         "main",
		Params:       0,
		Blocks:       2,
		Instructions: 6,
		Calls:        3,
		Synthetic:    3,
		Constants:    1,
		Closures:     1,
	}, s[0])
}
