package scope

import (
	"fmt"
	"math/big"
	"strconv"

	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/dbdlang/dbd/compiler/ir"
)

type (
	Kind int

	Variable struct {
		Name     string
		Type     string
		Writable bool
	}

	Assignment struct {
		Value    ir.Value
		Variable *Variable
	}

	// Scope is one dynamic environment: an object, an activation record or the global object.
	Scope struct {
		ID   ir.ID
		Kind Kind

		Variables   map[string]*Variable
		Assignments map[string]Assignment
	}

	constKey struct {
		kind ir.TypeKind
		val  string
	}

	// Manager owns every id, scope and constant of one compilation.
	// It is not safe for concurrent use.
	Manager struct {
		next ir.ID

		arena    []*Scope // by id
		registry []*Scope // by id, pushed scopes only

		stack []*Scope // innermost last

		consts   map[constKey]ir.Constant
		literals map[ir.TypeKind]*Scope

		tr tlog.Span
	}
)

const (
	Global Kind = iota
	Function
	Block
	Object
	Literal
)

var kindNames = [...]string{
	Global:   "global",
	Function: "function",
	Block:    "block",
	Object:   "object",
	Literal:  "literal",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Environment reports whether scopes of this kind are linked by @parent
// and take part in identifier resolution.
func (k Kind) Environment() bool {
	return k == Global || k == Function || k == Block
}

func NewVariable(name string) *Variable {
	return &Variable{Name: name, Type: "unknown", Writable: true}
}

func New(tr tlog.Span) *Manager {
	return &Manager{
		consts:   make(map[constKey]ir.Constant),
		literals: make(map[ir.TypeKind]*Scope),
		tr:       tr,
	}
}

// NextID returns a fresh identifier. Identifiers are never reused.
func (m *Manager) NextID() ir.ID {
	id := m.next
	m.next++

	return id
}

func (m *Manager) CreateScope(k Kind) *Scope {
	s := &Scope{
		ID:          m.NextID(),
		Kind:        k,
		Variables:   make(map[string]*Variable),
		Assignments: make(map[string]Assignment),
	}

	m.arena = put(m.arena, s)

	m.tr.V("scope").Printw("create scope", "id", s.ID, "kind", k, "from", loc.Caller(1))

	return s
}

func (m *Manager) Push(s *Scope) {
	m.registry = put(m.registry, s)
	m.stack = append(m.stack, s)

	m.tr.V("scope").Printw("push scope", "id", s.ID, "kind", s.Kind, "depth", len(m.stack), "from", loc.Caller(1))
}

func (m *Manager) Pop() *Scope {
	if len(m.stack) == 0 {
		return nil
	}

	s := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]

	m.tr.V("scope").Printw("pop scope", "id", s.ID, "kind", s.Kind, "depth", len(m.stack), "from", loc.Caller(1))

	return s
}

func (m *Manager) Depth() int { return len(m.stack) }

func (m *Manager) Current() *Scope {
	if len(m.stack) == 0 {
		return nil
	}

	return m.stack[len(m.stack)-1]
}

func (m *Manager) CurrentID() ir.ID {
	s := m.Current()
	if s == nil {
		return ir.NoID
	}

	return s.ID
}

// Environment returns the innermost environment scope on the stack.
func (m *Manager) Environment() *Scope {
	for i := len(m.stack) - 1; i >= 0; i-- {
		if m.stack[i].Kind.Environment() {
			return m.stack[i]
		}
	}

	return nil
}

// Environments returns environment scopes innermost first.
func (m *Manager) Environments() []*Scope {
	var r []*Scope

	for i := len(m.stack) - 1; i >= 0; i-- {
		if m.stack[i].Kind.Environment() {
			r = append(r, m.stack[i])
		}
	}

	return r
}

// Lookup finds the innermost environment declaring name.
// dist is the number of @parent links between the innermost environment and the owner.
func (m *Manager) Lookup(name string) (s *Scope, v *Variable, dist int, ok bool) {
	for dist, s = range m.Environments() {
		if v, ok = s.Variables[name]; ok {
			return s, v, dist, true
		}
	}

	return nil, nil, -1, false
}

// ScopeOf returns the scope a value denotes.
// Plain references resolve only to scopes that have been pushed.
func (m *Manager) ScopeOf(v ir.Value) *Scope {
	switch v := v.(type) {
	case nil:
		return nil
	case ir.ScopeReference:
		return get(m.arena, v.Scope)
	case ir.Constant:
		return nil
	default:
		return get(m.registry, v.Identifier())
	}
}

// ResolveVariable finds the variable called name.
// With a non-nil ref only the scope ref denotes is searched,
// otherwise the stack innermost first.
func (m *Manager) ResolveVariable(name string, ref ir.Value) (*Variable, *Scope, bool) {
	if ref != nil {
		s := m.ScopeOf(ref)
		if s == nil {
			return nil, nil, false
		}

		v, ok := s.Variables[name]
		if !ok {
			return nil, nil, false
		}

		return v, s, true
	}

	for i := len(m.stack) - 1; i >= 0; i-- {
		s := m.stack[i]

		if v, ok := s.Variables[name]; ok {
			return v, s, true
		}
	}

	return nil, nil, false
}

// ResolveAssignment finds the last known assignment of v with the same search as ResolveVariable.
func (m *Manager) ResolveAssignment(v *Variable, ref ir.Value) (Assignment, bool) {
	if ref != nil {
		s := m.ScopeOf(ref)
		if s == nil {
			return Assignment{}, false
		}

		a, ok := s.Assignments[v.Name]

		return a, ok
	}

	for i := len(m.stack) - 1; i >= 0; i-- {
		if a, ok := m.stack[i].Assignments[v.Name]; ok {
			return a, true
		}
	}

	return Assignment{}, false
}

// Constant interns a literal value of the given kind.
func (m *Manager) Constant(kind ir.TypeKind, val any) ir.Constant {
	k := constKey{kind: kind, val: canonical(val)}

	if c, ok := m.consts[k]; ok {
		return c
	}

	c := ir.Constant{
		ID:    m.NextID(),
		Value: val,
		Type: ir.TypeInfo{
			Kind:       kind,
			Name:       string(kind),
			Incomplete: true,
		},
	}

	m.consts[k] = c

	return c
}

// LiteralScope returns the scope shared by all constants of kind.
// created is true the first time it is requested.
func (m *Manager) LiteralScope(kind ir.TypeKind) (s *Scope, created bool) {
	if s, ok := m.literals[kind]; ok {
		return s, false
	}

	s = m.CreateScope(Literal)
	m.literals[kind] = s

	return s, true
}

func (s *Scope) Ref() ir.ScopeReference {
	return ir.ScopeReference{ID: s.ID, Scope: s.ID}
}

// Declare adds the variable called name unless it is already declared.
func (s *Scope) Declare(name string) *Variable {
	if v, ok := s.Variables[name]; ok {
		return v
	}

	v := NewVariable(name)
	s.Variables[name] = v

	return v
}

func (s *Scope) Assign(v *Variable, val ir.Value) {
	s.Assignments[v.Name] = Assignment{Value: val, Variable: v}
}

func canonical(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case *big.Int:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func put(l []*Scope, s *Scope) []*Scope {
	for int(s.ID) >= len(l) {
		l = append(l, nil)
	}

	l[s.ID] = s

	return l
}

func get(l []*Scope, id ir.ID) *Scope {
	if id < 0 || int(id) >= len(l) {
		return nil
	}

	return l[id]
}
