// Package bytecode defines the wire types, constant pool, program model, and
// serializer for the fml virtual machine.
//
// The bytecode is the low-level intermediate representation the compiler
// produces and the interpreter consumes. It is a flat vector of opcodes plus
// a deduplicated constant pool: literals, names, methods, slots, and class
// descriptions are all referenced by index rather than embedded inline.
//
// Architecture:
//
// The bytecode system follows a stack-based architecture where:
//  1. Values are pushed onto and popped from an operand stack
//  2. Opcodes consume operands from the stack and push results back
//  3. Locals live in per-call frames, globals in a process-wide table
//  4. Method lookups on object receivers walk a parent chain; field
//     lookups consult only the receiver's own fields
//
// Example compilation (inside a function body, where let declares a local;
// constant indices are numbered from 0 for this fragment alone):
//
//	Source:  let x = 10. x + 5
//
//	Bytecode:
//	  lit #0            ; push constant 10
//	  set local 0        ; store to local x (slot 0), value stays on stack
//	  drop
//	  get local 0        ; load x back onto stack
//	  lit #2            ; push constant 5
//	  call slot #1 2     ; call method "+" with receiver+1 arg
//
//	Constants: [10, "+", 5]
//
// Primitive types are opaque newtypes over unsigned integers so that the
// compiler and interpreter cannot accidentally mix a constant-pool index
// with a frame-local index or a raw code address.
package bytecode

import "fmt"

// ConstantPoolIndex identifies a slot in the constant pool. Serialized as an
// unsigned 16-bit integer.
type ConstantPoolIndex uint16

// LocalFrameIndex identifies a slot in the currently executing frame.
// Serialized as an unsigned 16-bit integer.
type LocalFrameIndex uint16

// Address is an index into the flat code vector. Serialized as an unsigned
// 32-bit integer.
type Address uint32

// Arity is an argument count, including the receiver for method calls.
// Serialized as a single byte.
type Arity uint8

// Size is a local-variable count for a method, excluding its parameters.
// Serialized as an unsigned 16-bit integer.
type Size uint16

// AddressRange names a contiguous instruction block: [Start, Start+Length).
type AddressRange struct {
	Start  Address
	Length int
}

// AddressRangeBetween builds an AddressRange covering [start, end], i.e. an
// inclusive end address as produced by the compiler's
// Program.CurrentAddress/UpcomingAddress bookkeeping.
func AddressRangeBetween(start, end Address) AddressRange {
	return AddressRange{Start: start, Length: int(end) - int(start) + 1}
}

// End returns the address one past the last instruction in the range.
func (r AddressRange) End() Address {
	return Address(int(r.Start) + r.Length)
}

func (i ConstantPoolIndex) String() string { return fmt.Sprintf("#%d", uint16(i)) }
func (i LocalFrameIndex) String() string   { return fmt.Sprintf("%d", uint16(i)) }
func (a Address) String() string          { return fmt.Sprintf("0x%X", uint32(a)) }
