// Package vm implements the interpreter: the runtime heap, call frames,
// operand stack, and opcode dispatch loop that execute a bytecode.Program.
package vm

import (
	"fmt"

	"github.com/kondziu/fml/internal/vmerr"
	"github.com/kondziu/fml/pkg/bytecode"
)

// PointerTag discriminates the variants of Pointer.
type PointerTag byte

const (
	PointerNull PointerTag = iota
	PointerInteger
	PointerBoolean
	PointerReference
)

// Pointer is an operand-stack/local/global/field value: either an unboxed
// primitive (Null, Integer, Boolean) or a reference into the heap.
type Pointer struct {
	Tag     PointerTag
	Integer int32
	Boolean bool
	Ref     HeapIndex
}

func NullPointer() Pointer               { return Pointer{Tag: PointerNull} }
func IntegerPointer(v int32) Pointer     { return Pointer{Tag: PointerInteger, Integer: v} }
func BooleanPointer(v bool) Pointer      { return Pointer{Tag: PointerBoolean, Boolean: v} }
func ReferencePointer(i HeapIndex) Pointer { return Pointer{Tag: PointerReference, Ref: i} }

func (p Pointer) IsNull() bool      { return p.Tag == PointerNull }
func (p Pointer) IsInteger() bool   { return p.Tag == PointerInteger }
func (p Pointer) IsBoolean() bool   { return p.Tag == PointerBoolean }
func (p Pointer) IsReference() bool { return p.Tag == PointerReference }

// AsIndex requires a non-negative Integer, used for array/local indices.
func (p Pointer) AsIndex() (int, error) {
	if p.Tag != PointerInteger {
		return 0, vmerr.New(vmerr.TypeError, "expected an integer index, got %s", p)
	}
	if p.Integer < 0 {
		return 0, vmerr.New(vmerr.Overflow, "expected a non-negative index, got %d", p.Integer)
	}
	return int(p.Integer), nil
}

// Truthy implements the Branch condition rule: Null is false, Boolean is
// itself, everything else (Integer, Reference) is true.
func (p Pointer) Truthy() bool {
	switch p.Tag {
	case PointerNull:
		return false
	case PointerBoolean:
		return p.Boolean
	default:
		return true
	}
}

// FromLiteral converts a constant-pool literal (Integer, Null, Boolean) into
// a Pointer. Any other constant tag is a malformed-program error: only
// these three tags are ever pushed directly by Literal.
func FromLiteral(obj bytecode.ProgramObject) (Pointer, error) {
	switch obj.Tag {
	case bytecode.TagInteger:
		return IntegerPointer(obj.Integer), nil
	case bytecode.TagNull:
		return NullPointer(), nil
	case bytecode.TagBoolean:
		return BooleanPointer(obj.Boolean), nil
	default:
		return Pointer{}, vmerr.New(vmerr.MalformedProgram, "constant tag 0x%02X is not a literal", obj.Tag)
	}
}

func (p Pointer) String() string {
	switch p.Tag {
	case PointerNull:
		return "null"
	case PointerInteger:
		return fmt.Sprintf("%d", p.Integer)
	case PointerBoolean:
		return fmt.Sprintf("%t", p.Boolean)
	case PointerReference:
		return fmt.Sprintf("0x%08x", int(p.Ref))
	default:
		return "?"
	}
}
