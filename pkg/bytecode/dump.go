package bytecode

import (
	"fmt"
	"io"
)

// Dump writes a human-readable three-section rendering of p: the constant
// pool (Method bodies disassembled inline, labels outdented three spaces
// from the surrounding instructions), the global index table, and the
// entry point.
func (p *Program) Dump(w io.Writer) {
	resolve := func(i ConstantPoolIndex) string {
		obj, ok := p.GetConstant(i)
		if !ok {
			return fmt.Sprintf("<missing %s>", i)
		}
		if obj.Tag == TagString {
			return obj.Str
		}
		return obj.String()
	}

	fmt.Fprintln(w, "Constants :")
	for i, c := range p.constants {
		index := ConstantPoolIndex(i)
		if c.Tag == TagMethod {
			fmt.Fprintf(w, "    %s: Method(%s, nargs:%d, nlocals:%d) :\n", index, c.MethodName, c.MethodParameters, c.MethodLocals)
			p.dumpMethodBody(w, c, resolve)
			continue
		}
		fmt.Fprintf(w, "    %s: %s\n", index, c.String())
	}

	fmt.Fprintln(w, "Globals :")
	for _, g := range p.globals {
		fmt.Fprintf(w, "    %s\n", g)
	}

	if entry, ok := p.Entry(); ok {
		fmt.Fprintf(w, "Entry : %s\n", entry)
	} else {
		fmt.Fprintln(w, "Entry : <none>")
	}
}

// dumpMethodBody prints c's instructions two further indent levels in from
// the constant line, with labels outdented three spaces from that body
// indent.
func (p *Program) dumpMethodBody(w io.Writer, c ProgramObject, resolve func(ConstantPoolIndex) string) {
	const bodyIndent = "            " // 12 spaces: two levels past "    #i: "
	const labelIndent = "         "   // bodyIndent minus 3 spaces
	for offset := 0; offset < c.MethodCode.Length; offset++ {
		addr := c.MethodCode.Start + Address(offset)
		instr, ok := p.code.Get(addr)
		if !ok {
			continue
		}
		if instr.Op == Label {
			fmt.Fprintf(w, "%s%s: %s\n", labelIndent, addr, instr.Mnemonic(resolve))
			continue
		}
		fmt.Fprintf(w, "%s%s: %s\n", bodyIndent, addr, instr.Mnemonic(resolve))
	}
}
