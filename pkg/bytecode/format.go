// Binary format for compiled programs.
//
// Layout (no magic number or version header; the format is identified by
// context, conventionally a ".fmlc" extension):
//
//	Constants section:
//	  count (u16)
//	  for each constant: tag (1 byte) + tag-specific payload
//	    Integer 0x00: i32 LE
//	    Null    0x01: (none)
//	    String  0x02: length (u32) + UTF-8 bytes
//	    Method  0x03: name CPI (u16) + parameters (u8) + locals (u16) +
//	                  instruction count (u32) + that many encoded instructions
//	    Slot    0x04: name CPI (u16)
//	    Class   0x05: member count (u16) + that many CPIs (u16 each)
//	    Boolean 0x06: 1 byte (0 or 1)
//	Globals section:
//	  count (u16) + that many CPIs (u16 each)
//	Entry:
//	  CPI (u16)
//
// Labels are not serialized: Deserialize recovers the label table by
// re-scanning every Method's instructions for Label opcodes.
package bytecode

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

func (p *Program) Serialize(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if err := writeU16(bw, len(p.constants)); err != nil {
		return errors.Wrap(err, "writing constant count")
	}
	for i, c := range p.constants {
		if err := p.writeConstant(bw, c); err != nil {
			return errors.Wrapf(err, "writing constant #%d", i)
		}
	}

	if err := writeU16(bw, len(p.globals)); err != nil {
		return errors.Wrap(err, "writing global count")
	}
	for _, g := range p.globals {
		if err := writeU16(bw, int(g)); err != nil {
			return errors.Wrap(err, "writing global index")
		}
	}

	entry, ok := p.Entry()
	if !ok {
		return errors.New("program has no entry point set")
	}
	if err := writeU16(bw, int(entry)); err != nil {
		return errors.Wrap(err, "writing entry index")
	}

	return bw.Flush()
}

func Deserialize(r io.Reader) (*Program, error) {
	br := bufio.NewReader(r)
	p := NewProgram()

	constantCount, err := readU16(br)
	if err != nil {
		return nil, errors.Wrap(err, "reading constant count")
	}

	p.constants = make([]ProgramObject, constantCount)
	for i := 0; i < constantCount; i++ {
		obj, err := p.readConstant(br)
		if err != nil {
			return nil, errors.Wrapf(err, "reading constant #%d", i)
		}
		p.constants[i] = obj
	}

	// Label names are not on the wire; recover addresses by scanning every
	// Method's code range for Label opcodes.
	for _, c := range p.constants {
		if c.Tag != TagMethod {
			continue
		}
		for offset := 0; offset < c.MethodCode.Length; offset++ {
			addr := c.MethodCode.Start + Address(offset)
			instr, ok := p.code.Get(addr)
			if !ok || instr.Op != Label {
				continue
			}
			name, err := p.constantAsString(instr.Label)
			if err != nil {
				return nil, errors.Wrapf(err, "resolving label at %s", addr)
			}
			if err := p.labels.RegisterAddress(name, addr); err != nil {
				return nil, err
			}
		}
	}

	globalCount, err := readU16(br)
	if err != nil {
		return nil, errors.Wrap(err, "reading global count")
	}
	p.globals = make([]ConstantPoolIndex, globalCount)
	for i := 0; i < globalCount; i++ {
		v, err := readU16(br)
		if err != nil {
			return nil, errors.Wrap(err, "reading global index")
		}
		p.globals[i] = ConstantPoolIndex(v)
	}

	entry, err := readU16(br)
	if err != nil {
		return nil, errors.Wrap(err, "reading entry index")
	}
	p.SetEntry(ConstantPoolIndex(entry))

	return p, nil
}

func (p *Program) writeConstant(w io.Writer, c ProgramObject) error {
	if err := writeByte(w, byte(c.Tag)); err != nil {
		return err
	}
	switch c.Tag {
	case TagInteger:
		return writeI32(w, c.Integer)
	case TagNull:
		return nil
	case TagBoolean:
		b := byte(0)
		if c.Boolean {
			b = 1
		}
		return writeByte(w, b)
	case TagString:
		return writeString(w, c.Str)
	case TagSlot:
		return writeU16(w, int(c.SlotName))
	case TagMethod:
		if err := writeU16(w, int(c.MethodName)); err != nil {
			return err
		}
		if err := writeByte(w, byte(c.MethodParameters)); err != nil {
			return err
		}
		if err := writeU16(w, int(c.MethodLocals)); err != nil {
			return err
		}
		instructions := p.code.All()[c.MethodCode.Start:c.MethodCode.End()]
		if err := writeU32(w, len(instructions)); err != nil {
			return err
		}
		for _, instr := range instructions {
			if err := writeInstruction(w, instr); err != nil {
				return err
			}
		}
		return nil
	case TagClass:
		if err := writeU16(w, len(c.ClassMembers)); err != nil {
			return err
		}
		for _, m := range c.ClassMembers {
			if err := writeU16(w, int(m)); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Errorf("unknown constant tag 0x%02X", c.Tag)
	}
}

func (p *Program) readConstant(r io.Reader) (ProgramObject, error) {
	tag, err := readByte(r)
	if err != nil {
		return ProgramObject{}, err
	}
	switch ObjectTag(tag) {
	case TagInteger:
		v, err := readI32(r)
		return NewInteger(v), err
	case TagNull:
		return NewNull(), nil
	case TagBoolean:
		b, err := readByte(r)
		return NewBoolean(b != 0), err
	case TagString:
		s, err := readString(r)
		return NewString(s), err
	case TagSlot:
		v, err := readU16(r)
		return NewSlot(ConstantPoolIndex(v)), err
	case TagMethod:
		name, err := readU16(r)
		if err != nil {
			return ProgramObject{}, err
		}
		parameters, err := readByte(r)
		if err != nil {
			return ProgramObject{}, err
		}
		locals, err := readU16(r)
		if err != nil {
			return ProgramObject{}, err
		}
		count, err := readU32(r)
		if err != nil {
			return ProgramObject{}, err
		}
		instructions := make([]Instruction, count)
		for i := 0; i < count; i++ {
			instructions[i], err = readInstruction(r)
			if err != nil {
				return ProgramObject{}, errors.Wrapf(err, "instruction #%d", i)
			}
		}
		rng := p.code.Append(instructions...)
		return NewMethod(ConstantPoolIndex(name), Arity(parameters), Size(locals), rng), nil
	case TagClass:
		count, err := readU16(r)
		if err != nil {
			return ProgramObject{}, err
		}
		members := make([]ConstantPoolIndex, count)
		for i := 0; i < count; i++ {
			v, err := readU16(r)
			if err != nil {
				return ProgramObject{}, err
			}
			members[i] = ConstantPoolIndex(v)
		}
		return NewClass(members), nil
	default:
		return ProgramObject{}, errors.Errorf("unknown constant tag 0x%02X", tag)
	}
}

func writeInstruction(w io.Writer, instr Instruction) error {
	if err := writeByte(w, byte(instr.Op)); err != nil {
		return err
	}
	switch instr.Op {
	case Label, Branch, Jump:
		return writeU16(w, int(instr.Label))
	case Literal, ObjectOp, GetField, SetField, SetGlobal, GetGlobal:
		return writeU16(w, int(instr.Index))
	case Print, CallMethod, CallFunction:
		if err := writeU16(w, int(instr.Index)); err != nil {
			return err
		}
		return writeByte(w, byte(instr.Arity))
	case SetLocal, GetLocal:
		return writeU16(w, int(instr.Local))
	case Array, Return, Drop:
		return nil
	default:
		return errors.Errorf("unknown opcode 0x%02X", byte(instr.Op))
	}
}

func readInstruction(r io.Reader) (Instruction, error) {
	tag, err := readByte(r)
	if err != nil {
		return Instruction{}, err
	}
	op := Opcode(tag)
	instr := Instruction{Op: op}
	switch op {
	case Label, Branch, Jump:
		v, err := readU16(r)
		instr.Label = ConstantPoolIndex(v)
		return instr, err
	case Literal, ObjectOp, GetField, SetField, SetGlobal, GetGlobal:
		v, err := readU16(r)
		instr.Index = ConstantPoolIndex(v)
		return instr, err
	case Print, CallMethod, CallFunction:
		v, err := readU16(r)
		if err != nil {
			return instr, err
		}
		instr.Index = ConstantPoolIndex(v)
		a, err := readByte(r)
		instr.Arity = Arity(a)
		return instr, err
	case SetLocal, GetLocal:
		v, err := readU16(r)
		instr.Local = LocalFrameIndex(v)
		return instr, err
	case Array, Return, Drop:
		return instr, nil
	default:
		return instr, errors.Errorf("unknown opcode 0x%02X", tag)
	}
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	_, err := io.ReadFull(r, buf[:])
	return buf[0], err
}

func writeU16(w io.Writer, v int) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(v))
	_, err := w.Write(buf[:])
	return err
}

func readU16(r io.Reader) (int, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint16(buf[:])), nil
}

func writeU32(w io.Writer, v int) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return err
}

func readU32(r io.Reader) (int, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint32(buf[:])), nil
}

func writeI32(w io.Writer, v int32) error {
	return writeU32(w, int(uint32(v)))
}

func readI32(r io.Reader) (int32, error) {
	v, err := readU32(r)
	return int32(uint32(v)), err
}

func writeString(w io.Writer, s string) error {
	if err := writeU32(w, len(s)); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
