// Package estree holds the subset of the ESTree syntax tree the lowering understands.
// Nodes of any other type decode to Unknown.
package estree

type (
	Node interface {
		Type() string
		Pos() Loc
	}

	Position struct {
		Line   int `json:"line"`
		Column int `json:"column"`
	}

	Loc struct {
		Start Position `json:"start"`
		End   Position `json:"end"`
	}

	Base struct {
		Loc Loc
	}

	Program struct {
		Base

		SourceType string
		Body       []Node
	}

	// Unknown is a node of a type not modelled here.
	Unknown struct {
		Base

		Kind string
	}

	Identifier struct {
		Base

		Name string
	}

	RegExp struct {
		Pattern string `json:"pattern"`
		Flags   string `json:"flags"`
	}

	Literal struct {
		Base

		Value  any // nil, bool, float64 or string
		Raw    string
		Regex  *RegExp
		Bigint string
	}

	VariableDeclaration struct {
		Base

		Kind         string
		Declarations []*VariableDeclarator
	}

	VariableDeclarator struct {
		Base

		ID   Node
		Init Node
	}

	FunctionDeclaration struct {
		Base

		ID     *Identifier
		Params []Node
		Body   *BlockStatement
	}

	FunctionExpression struct {
		Base

		ID     *Identifier
		Params []Node
		Body   *BlockStatement
	}

	ArrowFunctionExpression struct {
		Base

		Params     []Node
		Body       Node // *BlockStatement or an expression
		Expression bool
	}

	ReturnStatement struct {
		Base

		Argument Node
	}

	ExpressionStatement struct {
		Base

		Expression Node
	}

	BlockStatement struct {
		Base

		Body []Node
	}

	EmptyStatement struct {
		Base
	}

	AssignmentExpression struct {
		Base

		Operator string
		Left     Node
		Right    Node
	}

	CallExpression struct {
		Base

		Callee    Node
		Arguments []Node
		Optional  bool
	}

	MemberExpression struct {
		Base

		Object   Node
		Property Node
		Computed bool
		Optional bool
	}

	ChainExpression struct {
		Base

		Expression Node
	}

	ObjectExpression struct {
		Base

		Properties []Node // *Property or *SpreadElement
	}

	Property struct {
		Base

		Key       Node
		Value     Node
		Kind      string
		Computed  bool
		Method    bool
		Shorthand bool
	}

	ArrayExpression struct {
		Base

		Elements []Node // nil for holes
	}

	SpreadElement struct {
		Base

		Argument Node
	}

	UnaryExpression struct {
		Base

		Operator string
		Prefix   bool
		Argument Node
	}

	UpdateExpression struct {
		Base

		Operator string
		Prefix   bool
		Argument Node
	}

	BinaryExpression struct {
		Base

		Operator string
		Left     Node
		Right    Node
	}

	LogicalExpression struct {
		Base

		Operator string
		Left     Node
		Right    Node
	}

	ConditionalExpression struct {
		Base

		Test       Node
		Consequent Node
		Alternate  Node
	}

	AssignmentPattern struct {
		Base

		Left  Node
		Right Node
	}

	RestElement struct {
		Base

		Argument Node
	}
)

func (b Base) Pos() Loc { return b.Loc }

func (x *Program) Type() string                 { return "Program" }
func (x *Unknown) Type() string                 { return x.Kind }
func (x *Identifier) Type() string              { return "Identifier" }
func (x *Literal) Type() string                 { return "Literal" }
func (x *VariableDeclaration) Type() string     { return "VariableDeclaration" }
func (x *VariableDeclarator) Type() string      { return "VariableDeclarator" }
func (x *FunctionDeclaration) Type() string     { return "FunctionDeclaration" }
func (x *FunctionExpression) Type() string      { return "FunctionExpression" }
func (x *ArrowFunctionExpression) Type() string { return "ArrowFunctionExpression" }
func (x *ReturnStatement) Type() string         { return "ReturnStatement" }
func (x *ExpressionStatement) Type() string     { return "ExpressionStatement" }
func (x *BlockStatement) Type() string          { return "BlockStatement" }
func (x *EmptyStatement) Type() string          { return "EmptyStatement" }
func (x *AssignmentExpression) Type() string    { return "AssignmentExpression" }
func (x *CallExpression) Type() string          { return "CallExpression" }
func (x *MemberExpression) Type() string        { return "MemberExpression" }
func (x *ChainExpression) Type() string         { return "ChainExpression" }
func (x *ObjectExpression) Type() string        { return "ObjectExpression" }
func (x *Property) Type() string                { return "Property" }
func (x *ArrayExpression) Type() string         { return "ArrayExpression" }
func (x *SpreadElement) Type() string           { return "SpreadElement" }
func (x *UnaryExpression) Type() string         { return "UnaryExpression" }
func (x *UpdateExpression) Type() string        { return "UpdateExpression" }
func (x *BinaryExpression) Type() string        { return "BinaryExpression" }
func (x *LogicalExpression) Type() string       { return "LogicalExpression" }
func (x *ConditionalExpression) Type() string   { return "ConditionalExpression" }
func (x *AssignmentPattern) Type() string       { return "AssignmentPattern" }
func (x *RestElement) Type() string             { return "RestElement" }
