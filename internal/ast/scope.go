package ast

import (
	"github.com/Goubermouche/sigma-sub002/internal/ir"
	"github.com/Goubermouche/sigma-sub002/internal/symtab"
	"github.com/Goubermouche/sigma-sub002/internal/types"
)

// Control tags whether a regular scope's entry is reached unconditionally
// or conditionally relative to its parent; the return-path validation
// keys off this.
type Control int

const (
	Unconditional Control = iota
	Conditional
)

// VarFlags are the bits a Variable in a scope can carry.
type VarFlags int

const (
	FlagNone  VarFlags = 0
	FlagParam VarFlags = 1 << 0
	FlagConst VarFlags = 1 << 1
)

// Variable is one local binding: its declared type, flags, and — once IR
// translation has run — the IR value that holds it (a LOCAL node or a
// parameter projection).
type Variable struct {
	Type     *types.Type
	Flags    VarFlags
	IRValue  *ir.Node
}

// Scope is a node in the scope tree rooted at one global Namespace. Every
// Scope is either a Regular scope (locals only) or additionally a
// Namespace (child namespaces, function/type tables) when Namespace is
// true.
type Scope struct {
	Parent   *Scope
	Children []*Scope

	Locals map[symtab.Key]*Variable

	// Regular-scope fields.
	ControlKind Control
	HasReturn   bool

	// Namespace-scope fields (valid when IsNamespace).
	IsNamespace    bool
	Name           symtab.Key
	ChildNamespace map[symtab.Key]*Scope
	Functions      map[symtab.Key]map[string]*Signature // ident -> signature-string -> decl
	Externals      map[symtab.Key]map[string]*Signature
	Types          map[symtab.Key]*types.Type
}

// NewGlobalNamespace returns the single root of the scope tree.
func NewGlobalNamespace() *Scope {
	return newScope(nil, true, Unconditional)
}

// NewChild returns a new regular child scope of s with the given control
// tag.
func (s *Scope) NewChild(ctl Control) *Scope {
	child := newScope(s, false, ctl)
	s.Children = append(s.Children, child)
	return child
}

// NewChildNamespace returns (or returns the existing) child namespace of s
// named name.
func (s *Scope) NewChildNamespace(name symtab.Key) *Scope {
	if !s.IsNamespace {
		panic("ast: NewChildNamespace on non-namespace scope")
	}
	if ns, ok := s.ChildNamespace[name]; ok {
		return ns
	}
	ns := newScope(s, true, Unconditional)
	ns.Name = name
	s.ChildNamespace[name] = ns
	s.Children = append(s.Children, ns)
	return ns
}

func newScope(parent *Scope, isNamespace bool, ctl Control) *Scope {
	s := &Scope{
		Parent:      parent,
		Locals:      make(map[symtab.Key]*Variable),
		ControlKind: ctl,
	}
	if isNamespace {
		s.IsNamespace = true
		s.ChildNamespace = make(map[symtab.Key]*Scope)
		s.Functions = make(map[symtab.Key]map[string]*Signature)
		s.Externals = make(map[symtab.Key]map[string]*Signature)
		s.Types = make(map[symtab.Key]*types.Type)
	}
	return s
}

// Declare binds name to v in s's local table.
func (s *Scope) Declare(name symtab.Key, v *Variable) {
	s.Locals[name] = v
}

// Lookup climbs the scope chain (not crossing into parent namespaces'
// siblings) looking for name.
func (s *Scope) Lookup(name symtab.Key) (*Variable, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if v, ok := cur.Locals[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// EnclosingNamespace returns the nearest ancestor (or self) that is a
// namespace scope.
func (s *Scope) EnclosingNamespace() *Scope {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.IsNamespace {
			return cur
		}
	}
	return nil
}

// ReturnsOnAllPaths reports whether every control path through s hits a
// ret: a scope returns by itself if HasReturn is set; otherwise it
// returns iff every child scope returns AND at least one child was
// Unconditional. Conditional children alone never suffice.
func (s *Scope) ReturnsOnAllPaths() bool {
	if s.HasReturn {
		return true
	}
	if len(s.Children) == 0 {
		return false
	}
	sawUnconditional := false
	for _, c := range s.Children {
		if !c.ReturnsOnAllPaths() {
			return false
		}
		if c.ControlKind == Unconditional {
			sawUnconditional = true
		}
	}
	return sawUnconditional
}
