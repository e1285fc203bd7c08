package ir

import "strings"

// Synthetic function names. Field access, object creation and operators
// are all calls to one of these.
const (
	GetField        = "#get-field#"
	SetField        = "#set-field#"
	NewObject       = "#new-object#"
	GetFieldDynamic = "#get-field-dynamic#"
	SetFieldDynamic = "#set-field-dynamic#"
	BinOp           = "#binop#"
	UnOp            = "#unop#"
	LogicalOp       = "#logical#"
	ConditionalOp   = "#conditional#"
	CallDynamic     = "#call#"
)

func synthetic(name string, arg ...string) FunctionDefinition {
	if len(arg) != 0 {
		name += " " + strings.Join(arg, " ")
	}

	return FunctionDefinition{Name: name, Signature: name}
}

func GetFieldDef(field string) FunctionDefinition { return synthetic(GetField, field) }
func SetFieldDef(field string) FunctionDefinition { return synthetic(SetField, field) }
func NewObjectDef() FunctionDefinition            { return synthetic(NewObject) }
func GetFieldDynamicDef() FunctionDefinition      { return synthetic(GetFieldDynamic) }
func SetFieldDynamicDef() FunctionDefinition      { return synthetic(SetFieldDynamic) }
func BinOpDef(op string) FunctionDefinition       { return synthetic(BinOp, op) }
func UnOpDef(op string) FunctionDefinition        { return synthetic(UnOp, op) }
func LogicalDef(op string) FunctionDefinition     { return synthetic(LogicalOp, op) }
func ConditionalDef() FunctionDefinition          { return synthetic(ConditionalOp) }
func CallDynamicDef() FunctionDefinition          { return synthetic(CallDynamic) }

// UserDef is the definition of a compiled function of file.
func UserDef(name, file string) FunctionDefinition {
	return FunctionDefinition{Name: name, Signature: file + "." + name}
}

// IsSynthetic reports whether d names one of the field/object/operator primitives.
func (d FunctionDefinition) IsSynthetic() bool {
	return strings.HasPrefix(d.Name, "#")
}

// Field returns the field name of a #get-field# or #set-field# definition.
func (d FunctionDefinition) Field() (string, bool) {
	for _, p := range []string{GetField + " ", SetField + " "} {
		if name, ok := strings.CutPrefix(d.Name, p); ok {
			return name, true
		}
	}

	return "", false
}
