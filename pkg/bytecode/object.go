package bytecode

import "fmt"

// ObjectTag identifies the kind of a constant-pool entry on the wire.
type ObjectTag byte

const (
	TagInteger ObjectTag = 0x00
	TagNull    ObjectTag = 0x01
	TagString  ObjectTag = 0x02
	TagMethod  ObjectTag = 0x03
	TagSlot    ObjectTag = 0x04
	TagClass   ObjectTag = 0x05
	TagBoolean ObjectTag = 0x06
)

// ProgramObject is a constant-pool entry. Exactly one of the typed fields is
// meaningful, selected by Tag.
type ProgramObject struct {
	Tag ObjectTag

	Integer int32
	Boolean bool
	Str     string

	// Slot: name of a field, indexing a String constant.
	SlotName ConstantPoolIndex

	// Method: name indexes a String constant, Parameters is the declared
	// arity (including an implicit receiver for object methods), Locals is
	// the count of non-parameter local slots, Code is the instruction range.
	MethodName       ConstantPoolIndex
	MethodParameters Arity
	MethodLocals     Size
	MethodCode       AddressRange

	// Class: ordered list of constant-pool indices, each a Slot or Method.
	ClassMembers []ConstantPoolIndex
}

func NewInteger(v int32) ProgramObject { return ProgramObject{Tag: TagInteger, Integer: v} }
func NewNull() ProgramObject           { return ProgramObject{Tag: TagNull} }
func NewBoolean(v bool) ProgramObject  { return ProgramObject{Tag: TagBoolean, Boolean: v} }
func NewString(v string) ProgramObject { return ProgramObject{Tag: TagString, Str: v} }

func NewSlot(name ConstantPoolIndex) ProgramObject {
	return ProgramObject{Tag: TagSlot, SlotName: name}
}

func NewMethod(name ConstantPoolIndex, parameters Arity, locals Size, code AddressRange) ProgramObject {
	return ProgramObject{
		Tag:              TagMethod,
		MethodName:       name,
		MethodParameters: parameters,
		MethodLocals:     locals,
		MethodCode:       code,
	}
}

func NewClass(members []ConstantPoolIndex) ProgramObject {
	return ProgramObject{Tag: TagClass, ClassMembers: members}
}

// Equal reports whether two constant-pool entries are wire-identical, used by
// Program.RegisterConstant to deduplicate. Method and Class entries are never
// considered equal to one another even with matching fields, since each
// compiled definition is unique to its call site.
func (o ProgramObject) Equal(other ProgramObject) bool {
	if o.Tag != other.Tag {
		return false
	}
	switch o.Tag {
	case TagInteger:
		return o.Integer == other.Integer
	case TagNull:
		return true
	case TagBoolean:
		return o.Boolean == other.Boolean
	case TagString:
		return o.Str == other.Str
	case TagSlot:
		return o.SlotName == other.SlotName
	default:
		return false
	}
}

func (o ProgramObject) String() string {
	switch o.Tag {
	case TagInteger:
		return fmt.Sprintf("%d", o.Integer)
	case TagNull:
		return "null"
	case TagBoolean:
		return fmt.Sprintf("%t", o.Boolean)
	case TagString:
		return fmt.Sprintf("%q", o.Str)
	case TagSlot:
		return fmt.Sprintf("slot %s", o.SlotName)
	case TagMethod:
		return fmt.Sprintf("method %s/%d", o.MethodName, o.MethodParameters)
	case TagClass:
		return fmt.Sprintf("class %v", o.ClassMembers)
	default:
		return "?"
	}
}

func (o ProgramObject) IsSlot() bool   { return o.Tag == TagSlot }
func (o ProgramObject) IsMethod() bool { return o.Tag == TagMethod }
