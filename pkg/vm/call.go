package vm

import (
	"github.com/kondziu/fml/internal/vmerr"
	"github.com/kondziu/fml/pkg/bytecode"
)

func (vm *Interpreter) evalArray() error {
	value, err := vm.popOperand()
	if err != nil {
		return err
	}
	sizePointer, err := vm.popOperand()
	if err != nil {
		return err
	}
	size, err := sizePointer.AsIndex()
	if err != nil {
		return err
	}
	elements := make([]Pointer, size)
	for i := range elements {
		elements[i] = value
	}
	index := vm.State.Heap.AllocateArray(elements)
	vm.pushOperand(ReferencePointer(index))
	return nil
}

func (vm *Interpreter) evalObject(instr bytecode.Instruction) error {
	class, ok := vm.Program.GetConstant(instr.Index)
	if !ok || class.Tag != bytecode.TagClass {
		return vmerr.New(vmerr.MalformedProgram, "constant %s is not a class", instr.Index)
	}

	var slotNames []string
	methods := make(map[string]bytecode.ProgramObject)
	for _, memberIndex := range class.ClassMembers {
		member, ok := vm.Program.GetConstant(memberIndex)
		if !ok {
			return vmerr.New(vmerr.MalformedProgram, "class member %s does not exist", memberIndex)
		}
		switch member.Tag {
		case bytecode.TagSlot:
			name, err := vm.constantString(member.SlotName)
			if err != nil {
				return err
			}
			slotNames = append(slotNames, name)
		case bytecode.TagMethod:
			name, err := vm.constantString(member.MethodName)
			if err != nil {
				return err
			}
			if _, exists := methods[name]; exists {
				return vmerr.New(vmerr.MalformedProgram, "duplicate method %q in object", name)
			}
			methods[name] = member
		default:
			return vmerr.New(vmerr.MalformedProgram, "class member %s is neither a slot nor a method", memberIndex)
		}
	}

	fields := make(map[string]Pointer, len(slotNames))
	for i := len(slotNames) - 1; i >= 0; i-- {
		value, err := vm.popOperand()
		if err != nil {
			return err
		}
		fields[slotNames[i]] = value
	}
	parent, err := vm.popOperand()
	if err != nil {
		return err
	}

	index := vm.State.Heap.AllocateObject(ObjectInstance{Parent: parent, Fields: fields, Methods: methods})
	vm.pushOperand(ReferencePointer(index))
	return nil
}

func (vm *Interpreter) evalGetField(instr bytecode.Instruction) error {
	receiver, err := vm.popOperand()
	if err != nil {
		return err
	}
	entry, err := vm.objectEntry(receiver)
	if err != nil {
		return err
	}
	name, err := vm.constantString(instr.Index)
	if err != nil {
		return err
	}
	value, err := entry.Object.GetField(name)
	if err != nil {
		return err
	}
	vm.pushOperand(value)
	return nil
}

func (vm *Interpreter) evalSetField(instr bytecode.Instruction) error {
	value, err := vm.popOperand()
	if err != nil {
		return err
	}
	receiver, err := vm.popOperand()
	if err != nil {
		return err
	}
	entry, err := vm.objectEntry(receiver)
	if err != nil {
		return err
	}
	name, err := vm.constantString(instr.Index)
	if err != nil {
		return err
	}
	if err := entry.Object.SetField(name, value); err != nil {
		return err
	}
	vm.pushOperand(value)
	return nil
}

func (vm *Interpreter) objectEntry(receiver Pointer) (*HeapObjectEntry, error) {
	if !receiver.IsReference() {
		return nil, vmerr.New(vmerr.TypeError, "expected an object, got %s", receiver)
	}
	entry, err := vm.dereference(receiver.Ref)
	if err != nil {
		return nil, err
	}
	if entry.Tag != HeapObjectObj {
		return nil, vmerr.New(vmerr.TypeError, "expected an object, got an array")
	}
	return entry, nil
}

func (vm *Interpreter) evalCallMethod(instr bytecode.Instruction) error {
	arity := int(instr.Arity)
	if arity < 1 {
		return vmerr.New(vmerr.ArityMismatch, "call slot requires at least 1 parameter (the receiver)")
	}
	all, err := vm.popOperands(arity)
	if err != nil {
		return err
	}
	receiver, args := all[0], all[1:]
	name, err := vm.constantString(instr.Index)
	if err != nil {
		return err
	}
	return vm.dispatchMethod(receiver, name, args)
}

func (vm *Interpreter) evalCallFunction(instr bytecode.Instruction) error {
	name, err := vm.constantString(instr.Index)
	if err != nil {
		return err
	}
	fn, ok := vm.State.Functions[name]
	if !ok {
		return vmerr.New(vmerr.NameError, "no such function %q", name)
	}
	arity := int(instr.Arity)
	if arity != int(fn.MethodParameters) {
		return vmerr.New(vmerr.ArityMismatch, "function %q expects %d arguments, got %d", name, fn.MethodParameters, arity)
	}
	args, err := vm.popOperands(arity)
	if err != nil {
		return err
	}

	locals := make([]Pointer, int(fn.MethodParameters)+int(fn.MethodLocals))
	copy(locals, args)

	vm.bump()
	returnAddress := *vm.State.IP
	vm.pushFrame(NewFrame(&returnAddress, locals))
	vm.jumpTo(fn.MethodCode.Start)
	return nil
}

// dispatchMethod sends name to receiver with args. Primitive receivers
// (Null, Integer, Boolean, Array) resolve and push a result immediately,
// bumping the instruction pointer themselves since no new frame is pushed.
// Object receivers may push a frame and jump instead, so they manage the
// instruction pointer on their own path.
func (vm *Interpreter) dispatchMethod(receiver Pointer, name string, args []Pointer) error {
	switch receiver.Tag {
	case PointerNull:
		result, err := dispatchNullMethod(name, args)
		if err != nil {
			return err
		}
		vm.pushOperand(result)
		vm.bump()
		return nil

	case PointerInteger:
		result, err := dispatchIntegerMethod(receiver.Integer, name, args)
		if err != nil {
			return err
		}
		vm.pushOperand(result)
		vm.bump()
		return nil

	case PointerBoolean:
		result, err := dispatchBooleanMethod(receiver.Boolean, name, args)
		if err != nil {
			return err
		}
		vm.pushOperand(result)
		vm.bump()
		return nil

	case PointerReference:
		entry, err := vm.dereference(receiver.Ref)
		if err != nil {
			return err
		}
		if entry.Tag == HeapArray {
			result, err := dispatchArrayMethod(entry, name, args)
			if err != nil {
				return err
			}
			vm.pushOperand(result)
			vm.bump()
			return nil
		}
		return vm.dispatchObjectMethod(receiver, entry, name, args)

	default:
		return vmerr.New(vmerr.TypeError, "unknown receiver tag %d", receiver.Tag)
	}
}

// dispatchObjectMethod looks up name on entry's own method table, falling
// back to its parent chain when absent. A method found on an object parent
// runs with the original receiver as local 0. A non-object parent (a
// primitive or an array) becomes the receiver of an ordinary dispatch.
// Fields never participate in this lookup: GetField/SetField only ever
// consult the receiver's own fields.
func (vm *Interpreter) dispatchObjectMethod(receiver Pointer, entry *HeapObjectEntry, name string, args []Pointer) error {
	for {
		if method, ok := entry.Object.Methods[name]; ok {
			return vm.callObjectMethod(receiver, method, args)
		}
		parent := entry.Object.Parent
		if parent.IsNull() {
			return vmerr.New(vmerr.NameError, "no method %q in object", name)
		}
		if !parent.IsReference() {
			return vm.dispatchMethod(parent, name, args)
		}
		next, err := vm.dereference(parent.Ref)
		if err != nil {
			return err
		}
		if next.Tag != HeapObjectObj {
			return vm.dispatchMethod(parent, name, args)
		}
		entry = next
	}
}

func (vm *Interpreter) callObjectMethod(receiver Pointer, method bytecode.ProgramObject, args []Pointer) error {
	if len(args) != int(method.MethodParameters)-1 {
		return vmerr.New(vmerr.ArityMismatch, "method expects %d arguments, got %d", int(method.MethodParameters)-1, len(args))
	}
	locals := make([]Pointer, int(method.MethodParameters)+int(method.MethodLocals))
	locals[0] = receiver
	copy(locals[1:], args)

	vm.bump()
	returnAddress := *vm.State.IP
	vm.pushFrame(NewFrame(&returnAddress, locals))
	vm.jumpTo(method.MethodCode.Start)
	return nil
}

func dispatchArrayMethod(entry *HeapObjectEntry, name string, args []Pointer) (Pointer, error) {
	switch name {
	case "get":
		if len(args) != 1 {
			return Pointer{}, vmerr.New(vmerr.ArityMismatch, "array get expects 1 argument, got %d", len(args))
		}
		index, err := args[0].AsIndex()
		if err != nil {
			return Pointer{}, err
		}
		return entry.Array.Get(index)
	case "set":
		if len(args) != 2 {
			return Pointer{}, vmerr.New(vmerr.ArityMismatch, "array set expects 2 arguments, got %d", len(args))
		}
		index, err := args[0].AsIndex()
		if err != nil {
			return Pointer{}, err
		}
		if err := entry.Array.Set(index, args[1]); err != nil {
			return Pointer{}, err
		}
		return args[1], nil
	default:
		return Pointer{}, vmerr.New(vmerr.NameError, "no method %q for array", name)
	}
}
