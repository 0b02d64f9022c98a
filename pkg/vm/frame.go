package vm

import (
	"github.com/kondziu/fml/internal/vmerr"
	"github.com/kondziu/fml/pkg/bytecode"
)

// Frame is one call activation: its local-variable slots and the address to
// resume at on Return. The bottom sentinel frame (pushed once at startup)
// has a nil ReturnAddress; returning from it halts the interpreter.
type Frame struct {
	Locals        []Pointer
	ReturnAddress *bytecode.Address
}

func EmptyFrame() Frame { return Frame{} }

func NewFrame(returnAddress *bytecode.Address, slots []Pointer) Frame {
	return Frame{Locals: slots, ReturnAddress: returnAddress}
}

func (f *Frame) GetLocal(index bytecode.LocalFrameIndex) (Pointer, error) {
	if int(index) >= len(f.Locals) {
		return Pointer{}, vmerr.New(vmerr.StackUnderflow, "no local at index %d in frame of size %d", index, len(f.Locals))
	}
	return f.Locals[index], nil
}

func (f *Frame) SetLocal(index bytecode.LocalFrameIndex, value Pointer) error {
	if int(index) >= len(f.Locals) {
		return vmerr.New(vmerr.StackUnderflow, "no local at index %d in frame of size %d", index, len(f.Locals))
	}
	f.Locals[index] = value
	return nil
}
