// Package types implements the Sigma type system: a Type value carrying
// a Kind and a pointer level, with the alignment, size, promotion and
// "larger of two types" rules the semantic analyzer and back end share.
package types

import (
	"fmt"
	"strings"

	"github.com/Goubermouche/sigma-sub002/internal/symtab"
)

// Kind discriminates the shape of a Type.
type Kind int

const (
	Unknown        Kind = iota
	VarArgPromote       // sentinel used only during overload resolution
	Unresolved          // carries an identifier key until the checker resolves it
	Void
	I8
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F32
	F64
	Bool
	Char
	Struct
)

var kindNames = map[Kind]string{
	Unknown:       "unknown",
	VarArgPromote: "var-arg-promote",
	Unresolved:    "unresolved",
	Void:          "void",
	I8:            "i8",
	I16:           "i16",
	I32:           "i32",
	I64:           "i64",
	U8:            "u8",
	U16:           "u16",
	U32:           "u32",
	U64:           "u64",
	F32:           "f32",
	F64:           "f64",
	Bool:          "bool",
	Char:          "char",
	Struct:        "struct",
}

// Member is one named field of a struct type, in declaration order.
type Member struct {
	Name symtab.Key
	Type *Type
}

// Type is a value type: kind, pointer level, and (for Struct) an owned
// member list. Two Types are Equal iff kind, pointer level, identifier (for
// Unresolved/Struct) and member lists all match.
type Type struct {
	Kind         Kind
	PointerLevel int
	Ident        symtab.Key // valid for Unresolved and Struct
	Members      []Member   // valid for Struct only, ordered, owned
}

// New returns a value (pointer level 0) Type of the given kind.
func New(k Kind) *Type { return &Type{Kind: k} }

// PointerTo returns a Type identical to t but with one more level of
// indirection.
func (t *Type) PointerTo() *Type {
	cp := *t
	cp.PointerLevel++
	return &cp
}

// Deref decreases pointer level by one. It panics if t is not a pointer,
// since dereferencing a value type is a compiler bug by the time codegen
// sees it (the checker must reject it earlier).
func (t *Type) Deref() *Type {
	if t.PointerLevel == 0 {
		panic("types: Deref of non-pointer type")
	}
	cp := *t
	cp.PointerLevel--
	return &cp
}

// IsPointer reports whether t has indirection.
func (t *Type) IsPointer() bool { return t.PointerLevel > 0 }

// IsIntegral reports whether t is a signed or unsigned integer kind at
// pointer level 0.
func (t *Type) IsIntegral() bool {
	if t.IsPointer() {
		return false
	}
	switch t.Kind {
	case I8, I16, I32, I64, U8, U16, U32, U64:
		return true
	}
	return false
}

// IsSigned reports whether t is a signed integer kind.
func (t *Type) IsSigned() bool {
	switch t.Kind {
	case I8, I16, I32, I64:
		return true
	}
	return false
}

// IsFloat reports whether t is a floating-point kind at pointer level 0.
func (t *Type) IsFloat() bool {
	return !t.IsPointer() && (t.Kind == F32 || t.Kind == F64)
}

// integralBytes returns the byte width of an integral or float base kind;
// 0 for kinds with no fixed width (void, bool, char are handled separately).
func integralBytes(k Kind) int {
	switch k {
	case I8, U8:
		return 1
	case I16, U16:
		return 2
	case I32, U32, F32:
		return 4
	case I64, U64, F64:
		return 8
	}
	return 0
}

// Align returns the required alignment of t in bytes: 8 for any pointer,
// the byte width for integral/float/bool/char, and the max member alignment
// for a struct.
func (t *Type) Align() int {
	if t.IsPointer() {
		return 8
	}
	switch t.Kind {
	case Bool, Char:
		return 1
	case Struct:
		max := 1
		for _, m := range t.Members {
			if a := m.Type.Align(); a > max {
				max = a
			}
		}
		return max
	default:
		if b := integralBytes(t.Kind); b > 0 {
			return b
		}
	}
	return 1
}

// Size returns the size of t in bytes: 8 for any pointer, the byte width
// for integral/float, 1 for bool/char, and the sum of members plus padding
// (each member padded to its own alignment, the whole struct padded to its
// max member alignment) for a struct.
func (t *Type) Size() int {
	if t.IsPointer() {
		return 8
	}
	switch t.Kind {
	case Bool, Char:
		return 1
	case Void:
		return 0
	case Struct:
		offset := 0
		for _, m := range t.Members {
			a := m.Type.Align()
			offset = alignUp(offset, a)
			offset += m.Type.Size()
		}
		return alignUp(offset, t.Align())
	default:
		return integralBytes(t.Kind)
	}
}

func alignUp(v, a int) int {
	if a <= 1 {
		return v
	}
	return (v + a - 1) / a * a
}

// Offsets returns the byte offset of each member, in declaration order,
// applying the same padding rule as Size.
func (t *Type) Offsets() []int {
	offs := make([]int, len(t.Members))
	offset := 0
	for i, m := range t.Members {
		offset = alignUp(offset, m.Type.Align())
		offs[i] = offset
		offset += m.Type.Size()
	}
	return offs
}

// Equal reports structural equality.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind || t.PointerLevel != o.PointerLevel {
		return false
	}
	switch t.Kind {
	case Unresolved:
		return t.Ident == o.Ident
	case Struct:
		if t.Ident != o.Ident || len(t.Members) != len(o.Members) {
			return false
		}
		for i := range t.Members {
			if t.Members[i].Name != o.Members[i].Name || !t.Members[i].Type.Equal(o.Members[i].Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Less defines a total order: by pointer level, then kind, then identifier.
func (t *Type) Less(o *Type) bool {
	if t.PointerLevel != o.PointerLevel {
		return t.PointerLevel < o.PointerLevel
	}
	if t.Kind != o.Kind {
		return t.Kind < o.Kind
	}
	return t.Ident < o.Ident
}

// String renders a Type for diagnostics, e.g. "i32", "u8**", "struct:#3".
func (t *Type) String() string {
	var sb strings.Builder
	switch t.Kind {
	case Struct:
		sb.WriteString("struct:")
		sb.WriteString(fmt.Sprintf("#%d", t.Ident))
	default:
		sb.WriteString(kindNames[t.Kind])
	}
	sb.WriteString(strings.Repeat("*", t.PointerLevel))
	return sb.String()
}

// Larger picks the dominant of two types: pointer-dominant, otherwise
// higher bit width wins, ties broken in favor of signed.
func Larger(a, b *Type) *Type {
	if a.IsPointer() != b.IsPointer() {
		if a.IsPointer() {
			return a
		}
		return b
	}
	aw, bw := integralBytes(a.Kind), integralBytes(b.Kind)
	if aw != bw {
		if aw > bw {
			return a
		}
		return b
	}
	if a.IsSigned() && !b.IsSigned() {
		return a
	}
	if b.IsSigned() && !a.IsSigned() {
		return b
	}
	return a
}

// Promote applies the variadic-argument promotion rule: integers
// narrower than 32 bits promote to i32, pointers are unchanged, void is
// an error (reported by the caller), wider types are unchanged.
func Promote(t *Type) *Type {
	if t.IsPointer() {
		return t
	}
	switch t.Kind {
	case I8, I16, U8, U16:
		return New(I32)
	default:
		return t
	}
}
