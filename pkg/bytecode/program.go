package bytecode

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Code is the flat instruction vector shared by every method and the
// top-level entry point; individual methods are identified by an
// AddressRange into it rather than owning their own slice.
type Code struct {
	instructions []Instruction
}

// Append appends opcodes and returns the AddressRange they occupy.
func (c *Code) Append(instructions ...Instruction) AddressRange {
	start := Address(len(c.instructions))
	c.instructions = append(c.instructions, instructions...)
	end := Address(len(c.instructions) - 1)
	return AddressRangeBetween(start, end)
}

// NextAddress returns the address after addr, or false once addr is the last
// instruction in the vector.
func (c *Code) NextAddress(addr Address) (Address, bool) {
	next := addr + 1
	if int(next) >= len(c.instructions) {
		return 0, false
	}
	return next, true
}

func (c *Code) Get(addr Address) (Instruction, bool) {
	if int(addr) >= len(c.instructions) {
		return Instruction{}, false
	}
	return c.instructions[addr], true
}

func (c *Code) Len() int { return len(c.instructions) }

func (c *Code) All() []Instruction { return c.instructions }

// Labels tracks label name -> code address bindings and the monotonic group
// counter used to keep label names unique across repeated emission (e.g.
// nested ifs each get their own "if_consequent:N").
type Labels struct {
	addresses map[string]Address
	groups    int
}

func newLabels() *Labels {
	return &Labels{addresses: make(map[string]Address)}
}

// NewGroup bumps the group counter and returns its new value, used to
// disambiguate a batch of label names generated for one construct.
func (l *Labels) NewGroup() int {
	l.groups++
	return l.groups
}

// GenerateName produces "name:group" without registering an address yet.
func (l *Labels) GenerateName(name string, group int) string {
	return fmt.Sprintf("%s:%d", name, group)
}

func (l *Labels) RegisterAddress(name string, addr Address) error {
	if _, exists := l.addresses[name]; exists {
		return errors.Errorf("label %q already registered", name)
	}
	l.addresses[name] = addr
	return nil
}

func (l *Labels) Get(name string) (Address, bool) {
	addr, ok := l.addresses[name]
	return addr, ok
}

// Program is the unit the compiler produces and the interpreter consumes: a
// deduplicated constant pool, the flat code vector, the set of global names,
// and the constant-pool index of the entry method.
type Program struct {
	code      Code
	labels    *Labels
	constants []ProgramObject
	globals   []ConstantPoolIndex
	entry     ConstantPoolIndex
	hasEntry  bool
}

func NewProgram() *Program {
	return &Program{labels: newLabels()}
}

func (p *Program) Code() *Code     { return &p.code }
func (p *Program) Labels() *Labels { return p.labels }

func (p *Program) Constants() []ProgramObject { return p.constants }

func (p *Program) GetConstant(i ConstantPoolIndex) (ProgramObject, bool) {
	if int(i) >= len(p.constants) {
		return ProgramObject{}, false
	}
	return p.constants[int(i)], true
}

// RegisterConstant deduplicates value constants (Integer, Null, Boolean,
// String, Slot) by equality, and always appends Method/Class entries fresh
// since each compiled definition is unique. Returns the index to reference.
func (p *Program) RegisterConstant(obj ProgramObject) ConstantPoolIndex {
	if obj.Tag != TagMethod && obj.Tag != TagClass {
		_, index, found := lo.FindIndexOf(p.constants, func(existing ProgramObject) bool {
			return existing.Equal(obj)
		})
		if found {
			return ConstantPoolIndex(index)
		}
	}
	p.constants = append(p.constants, obj)
	return ConstantPoolIndex(len(p.constants) - 1)
}

// RegisterGlobal records index (a Slot or Method constant) as a global. It is
// an error to register the same index twice.
func (p *Program) RegisterGlobal(index ConstantPoolIndex) error {
	for _, g := range p.globals {
		if g == index {
			return errors.Errorf("global at constant %s already registered", index)
		}
	}
	p.globals = append(p.globals, index)
	return nil
}

func (p *Program) Globals() []ConstantPoolIndex { return p.globals }

func (p *Program) SetEntry(index ConstantPoolIndex) { p.entry = index; p.hasEntry = true }

func (p *Program) Entry() (ConstantPoolIndex, bool) { return p.entry, p.hasEntry }

// CurrentAddress is the address of the most recently appended instruction.
func (p *Program) CurrentAddress() Address {
	if p.code.Len() == 0 {
		return 0
	}
	return Address(p.code.Len() - 1)
}

// UpcomingAddress is the address the next appended instruction will occupy.
func (p *Program) UpcomingAddress() Address {
	return Address(p.code.Len())
}

// EmitCode appends instructions to the code vector. A Label instruction's
// Label field names a String constant; the label's address is registered in
// Labels as a side effect.
func (p *Program) EmitCode(instructions ...Instruction) error {
	for _, instr := range instructions {
		addr := Address(p.code.Len())
		p.code.Append(instr)
		if instr.Op == Label {
			name, err := p.constantAsString(instr.Label)
			if err != nil {
				return errors.Wrapf(err, "emitting label at %s", addr)
			}
			if err := p.labels.RegisterAddress(name, addr); err != nil {
				return err
			}
		}
	}
	return nil
}

// EmitConditionally emits instr only when cond is true, used for the
// keep-result Drop-suppression discipline.
func (p *Program) EmitConditionally(cond bool, instr Instruction) error {
	if !cond {
		return nil
	}
	return p.EmitCode(instr)
}

func (p *Program) constantAsString(i ConstantPoolIndex) (string, error) {
	obj, ok := p.GetConstant(i)
	if !ok {
		return "", errors.Errorf("no constant at %s", i)
	}
	if obj.Tag != TagString {
		return "", errors.Errorf("constant %s is not a string (tag 0x%02X)", i, obj.Tag)
	}
	return obj.Str, nil
}

// GetLabelAddress resolves a label's address via its constant-pool name.
func (p *Program) GetLabelAddress(i ConstantPoolIndex) (Address, error) {
	name, err := p.constantAsString(i)
	if err != nil {
		return 0, err
	}
	addr, ok := p.labels.Get(name)
	if !ok {
		return 0, errors.Errorf("label %q is not registered", name)
	}
	return addr, nil
}

// GenerateLabelNames batches a set of related label names under one new
// group and registers each as a String constant, returning their indices in
// the order given.
func (p *Program) GenerateLabelNames(names ...string) []ConstantPoolIndex {
	group := p.labels.NewGroup()
	indices := make([]ConstantPoolIndex, len(names))
	for i, name := range names {
		full := p.labels.GenerateName(name, group)
		indices[i] = p.RegisterConstant(NewString(full))
	}
	return indices
}
