package bytecode

import "fmt"

// Opcode is a single bytecode instruction tag. Values match the wire format
// exactly.
type Opcode byte

const (
	Label        Opcode = 0x00
	Literal      Opcode = 0x01
	Print        Opcode = 0x02
	Array        Opcode = 0x03
	ObjectOp     Opcode = 0x04
	GetField     Opcode = 0x05
	SetField     Opcode = 0x06
	CallMethod   Opcode = 0x07
	CallFunction Opcode = 0x08
	SetLocal     Opcode = 0x09
	GetLocal     Opcode = 0x0A
	SetGlobal    Opcode = 0x0B
	GetGlobal    Opcode = 0x0C
	Branch       Opcode = 0x0D
	Jump         Opcode = 0x0E
	Return       Opcode = 0x0F
	Drop         Opcode = 0x10
)

// Instruction is a single decoded opcode plus whichever operand fields that
// opcode uses. Unused fields are zero.
type Instruction struct {
	Op Opcode

	// Literal, Print(format), GetField/SetField(name), CallMethod/CallFunction(name),
	// SetGlobal/GetGlobal(name): index into the constant pool.
	Index ConstantPoolIndex

	// SetLocal/GetLocal: index into the current frame.
	Local LocalFrameIndex

	// CallMethod/CallFunction: argument count. Print: argument count.
	Arity Arity

	// Label/Branch/Jump: label name, itself a ConstantPoolIndex into a String constant.
	Label ConstantPoolIndex
}

func (op Opcode) String() string {
	switch op {
	case Label:
		return "label"
	case Literal:
		return "lit"
	case Print:
		return "printf"
	case Array:
		return "array"
	case ObjectOp:
		return "object"
	case GetField:
		return "get slot"
	case SetField:
		return "set slot"
	case CallMethod:
		return "call slot"
	case CallFunction:
		return "call"
	case SetLocal:
		return "set local"
	case GetLocal:
		return "get local"
	case SetGlobal:
		return "set global"
	case GetGlobal:
		return "get global"
	case Branch:
		return "branch"
	case Jump:
		return "goto"
	case Return:
		return "return"
	case Drop:
		return "drop"
	default:
		return fmt.Sprintf("?0x%02X", byte(op))
	}
}

// Mnemonic renders the instruction the way Program.Dump prints it, resolving
// name/label indices to their constant-pool text via resolve.
func (i Instruction) Mnemonic(resolve func(ConstantPoolIndex) string) string {
	switch i.Op {
	case Label:
		return fmt.Sprintf("label %s", resolve(i.Label))
	case Literal:
		return fmt.Sprintf("lit %s", i.Index)
	case Print:
		return fmt.Sprintf("printf %s %d", resolve(i.Index), i.Arity)
	case Array:
		return "array"
	case ObjectOp:
		return fmt.Sprintf("object %s", i.Index)
	case GetField:
		return fmt.Sprintf("get slot %s", resolve(i.Index))
	case SetField:
		return fmt.Sprintf("set slot %s", resolve(i.Index))
	case CallMethod:
		return fmt.Sprintf("call slot %s %d", resolve(i.Index), i.Arity)
	case CallFunction:
		return fmt.Sprintf("call %s %d", resolve(i.Index), i.Arity)
	case SetLocal:
		return fmt.Sprintf("set local %d", i.Local)
	case GetLocal:
		return fmt.Sprintf("get local %d", i.Local)
	case SetGlobal:
		return fmt.Sprintf("set global %s", resolve(i.Index))
	case GetGlobal:
		return fmt.Sprintf("get global %s", resolve(i.Index))
	case Branch:
		return fmt.Sprintf("branch %s", resolve(i.Label))
	case Jump:
		return fmt.Sprintf("goto %s", resolve(i.Label))
	case Return:
		return "return"
	case Drop:
		return "drop"
	default:
		return i.Op.String()
	}
}
