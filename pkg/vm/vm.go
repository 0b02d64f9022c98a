package vm

import (
	"io"
	"os"

	"github.com/kondziu/fml/internal/vmerr"
	"github.com/kondziu/fml/pkg/bytecode"
)

// State is the interpreter's mutable runtime: instruction pointer, call
// frames, operand stack, global table, function table, and heap.
type State struct {
	IP        *bytecode.Address
	Frames    []Frame
	Operands  []Pointer
	Globals   map[string]Pointer
	Functions map[string]bytecode.ProgramObject
	Heap      Heap
}

// Interpreter executes a bytecode.Program against a State, writing Print
// output to Out.
type Interpreter struct {
	Program *bytecode.Program
	Out     io.Writer
	State   *State
}

// New builds an Interpreter ready to run program, with output directed to
// out (os.Stdout if nil). Initialization populates Globals and Functions
// from the program's registered globals, exactly as each global's Slot or
// Method constant dictates.
func New(program *bytecode.Program, out io.Writer) (*Interpreter, error) {
	if out == nil {
		out = os.Stdout
	}

	entryIndex, ok := program.Entry()
	if !ok {
		return nil, vmerr.New(vmerr.MalformedProgram, "program has no entry point")
	}
	entry, ok := program.GetConstant(entryIndex)
	if !ok || entry.Tag != bytecode.TagMethod {
		return nil, vmerr.New(vmerr.MalformedProgram, "entry constant %s is not a method", entryIndex)
	}

	start := entry.MethodCode.Start
	bottom := NewFrame(nil, make([]Pointer, int(entry.MethodParameters)+int(entry.MethodLocals)))
	state := &State{
		IP:        &start,
		Frames:    []Frame{bottom},
		Globals:   make(map[string]Pointer),
		Functions: make(map[string]bytecode.ProgramObject),
	}

	for _, index := range program.Globals() {
		obj, ok := program.GetConstant(index)
		if !ok {
			return nil, vmerr.New(vmerr.MalformedProgram, "global constant %s does not exist", index)
		}
		switch obj.Tag {
		case bytecode.TagSlot:
			name, err := constantString(program, obj.SlotName)
			if err != nil {
				return nil, err
			}
			if _, exists := state.Globals[name]; exists {
				return nil, vmerr.New(vmerr.MalformedProgram, "duplicate global %q", name)
			}
			state.Globals[name] = NullPointer()
		case bytecode.TagMethod:
			name, err := constantString(program, obj.MethodName)
			if err != nil {
				return nil, err
			}
			if _, exists := state.Functions[name]; exists {
				return nil, vmerr.New(vmerr.MalformedProgram, "duplicate function %q", name)
			}
			state.Functions[name] = obj
		default:
			return nil, vmerr.New(vmerr.MalformedProgram, "global constant %s is neither a slot nor a method", index)
		}
	}

	return &Interpreter{Program: program, Out: out, State: state}, nil
}

func constantString(program *bytecode.Program, index bytecode.ConstantPoolIndex) (string, error) {
	obj, ok := program.GetConstant(index)
	if !ok {
		return "", vmerr.New(vmerr.MalformedProgram, "no constant at %s", index)
	}
	if obj.Tag != bytecode.TagString {
		return "", vmerr.New(vmerr.MalformedProgram, "constant %s is not a string", index)
	}
	return obj.Str, nil
}

// Run executes instructions until the instruction pointer goes nil, which
// happens either by running off the end of the code vector or by returning
// from the bottom sentinel frame.
func (vm *Interpreter) Run() error {
	for vm.State.IP != nil {
		instr, ok := vm.Program.Code().Get(*vm.State.IP)
		if !ok {
			return vmerr.New(vmerr.MalformedProgram, "instruction pointer %s out of range", *vm.State.IP)
		}
		if err := vm.eval(instr); err != nil {
			return err
		}
	}
	return nil
}

func (vm *Interpreter) bump() {
	next, ok := vm.Program.Code().NextAddress(*vm.State.IP)
	if !ok {
		vm.State.IP = nil
		return
	}
	vm.State.IP = &next
}

func (vm *Interpreter) jumpTo(addr bytecode.Address) {
	vm.State.IP = &addr
}

func (vm *Interpreter) pushOperand(p Pointer) { vm.State.Operands = append(vm.State.Operands, p) }

func (vm *Interpreter) popOperand() (Pointer, error) {
	n := len(vm.State.Operands)
	if n == 0 {
		return Pointer{}, vmerr.New(vmerr.StackUnderflow, "operand stack is empty")
	}
	p := vm.State.Operands[n-1]
	vm.State.Operands = vm.State.Operands[:n-1]
	return p, nil
}

// peekOperand returns the top operand without removing it, implementing
// SetLocal/SetGlobal's rule that an assignment's value remains available as
// the expression's result.
func (vm *Interpreter) peekOperand() (Pointer, error) {
	n := len(vm.State.Operands)
	if n == 0 {
		return Pointer{}, vmerr.New(vmerr.StackUnderflow, "operand stack is empty")
	}
	return vm.State.Operands[n-1], nil
}

func (vm *Interpreter) popOperands(n int) ([]Pointer, error) {
	if len(vm.State.Operands) < n {
		return nil, vmerr.New(vmerr.StackUnderflow, "need %d operands, have %d", n, len(vm.State.Operands))
	}
	start := len(vm.State.Operands) - n
	args := append([]Pointer(nil), vm.State.Operands[start:]...)
	vm.State.Operands = vm.State.Operands[:start]
	return args, nil
}

func (vm *Interpreter) currentFrame() (*Frame, error) {
	if len(vm.State.Frames) == 0 {
		return nil, vmerr.New(vmerr.StackUnderflow, "no active frame")
	}
	return &vm.State.Frames[len(vm.State.Frames)-1], nil
}

func (vm *Interpreter) popFrame() (Frame, error) {
	n := len(vm.State.Frames)
	if n == 0 {
		return Frame{}, vmerr.New(vmerr.StackUnderflow, "frame stack is empty")
	}
	frame := vm.State.Frames[n-1]
	vm.State.Frames = vm.State.Frames[:n-1]
	return frame, nil
}

func (vm *Interpreter) pushFrame(frame Frame) {
	vm.State.Frames = append(vm.State.Frames, frame)
}

func (vm *Interpreter) dereference(i HeapIndex) (*HeapObjectEntry, error) {
	return vm.State.Heap.Get(i)
}

func (vm *Interpreter) constantString(index bytecode.ConstantPoolIndex) (string, error) {
	return constantString(vm.Program, index)
}

func (vm *Interpreter) eval(instr bytecode.Instruction) error {
	switch instr.Op {
	case bytecode.Label:
		vm.bump()
		return nil

	case bytecode.Literal:
		obj, ok := vm.Program.GetConstant(instr.Index)
		if !ok {
			return vmerr.New(vmerr.MalformedProgram, "no constant at %s", instr.Index)
		}
		p, err := FromLiteral(obj)
		if err != nil {
			return err
		}
		vm.pushOperand(p)
		vm.bump()
		return nil

	case bytecode.Print:
		if err := vm.evalPrint(instr); err != nil {
			return err
		}
		vm.bump()
		return nil

	case bytecode.Array:
		if err := vm.evalArray(); err != nil {
			return err
		}
		vm.bump()
		return nil

	case bytecode.ObjectOp:
		if err := vm.evalObject(instr); err != nil {
			return err
		}
		vm.bump()
		return nil

	case bytecode.GetField:
		if err := vm.evalGetField(instr); err != nil {
			return err
		}
		vm.bump()
		return nil

	case bytecode.SetField:
		if err := vm.evalSetField(instr); err != nil {
			return err
		}
		vm.bump()
		return nil

	case bytecode.CallMethod:
		return vm.evalCallMethod(instr)

	case bytecode.CallFunction:
		return vm.evalCallFunction(instr)

	case bytecode.SetLocal:
		frame, err := vm.currentFrame()
		if err != nil {
			return err
		}
		value, err := vm.peekOperand()
		if err != nil {
			return err
		}
		if err := frame.SetLocal(instr.Local, value); err != nil {
			return err
		}
		vm.bump()
		return nil

	case bytecode.GetLocal:
		frame, err := vm.currentFrame()
		if err != nil {
			return err
		}
		value, err := frame.GetLocal(instr.Local)
		if err != nil {
			return err
		}
		vm.pushOperand(value)
		vm.bump()
		return nil

	case bytecode.SetGlobal:
		name, err := vm.constantString(instr.Index)
		if err != nil {
			return err
		}
		value, err := vm.peekOperand()
		if err != nil {
			return err
		}
		if _, exists := vm.State.Globals[name]; !exists {
			return vmerr.New(vmerr.NameError, "no such global %q", name)
		}
		vm.State.Globals[name] = value
		vm.bump()
		return nil

	case bytecode.GetGlobal:
		name, err := vm.constantString(instr.Index)
		if err != nil {
			return err
		}
		value, ok := vm.State.Globals[name]
		if !ok {
			return vmerr.New(vmerr.NameError, "no such global %q", name)
		}
		vm.pushOperand(value)
		vm.bump()
		return nil

	case bytecode.Branch:
		cond, err := vm.popOperand()
		if err != nil {
			return err
		}
		if !cond.Truthy() {
			vm.bump()
			return nil
		}
		addr, err := vm.Program.GetLabelAddress(instr.Label)
		if err != nil {
			return err
		}
		vm.jumpTo(addr)
		return nil

	case bytecode.Jump:
		addr, err := vm.Program.GetLabelAddress(instr.Label)
		if err != nil {
			return err
		}
		vm.jumpTo(addr)
		return nil

	case bytecode.Return:
		frame, err := vm.popFrame()
		if err != nil {
			return err
		}
		vm.State.IP = frame.ReturnAddress
		return nil

	case bytecode.Drop:
		if _, err := vm.popOperand(); err != nil {
			return err
		}
		vm.bump()
		return nil

	default:
		return vmerr.New(vmerr.MalformedProgram, "unknown opcode 0x%02X", byte(instr.Op))
	}
}
