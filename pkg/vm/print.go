package vm

import (
	"strings"

	"github.com/kondziu/fml/internal/vmerr"
	"github.com/kondziu/fml/pkg/bytecode"
)

// evalPrint renders instr's format string to vm.Out, substituting one popped
// argument for each unescaped '~' and resolving the backslash escapes
// '\~', '\\', '\"', '\n', '\t', '\r'. Arguments are popped in declaration
// order, having been pushed left to right by the compiler.
func (vm *Interpreter) evalPrint(instr bytecode.Instruction) error {
	format, err := vm.constantString(instr.Index)
	if err != nil {
		return err
	}
	args, err := vm.popOperands(int(instr.Arity))
	if err != nil {
		return err
	}

	var out strings.Builder
	argIndex := 0
	runes := []rune(format)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '\\' && i+1 < len(runes) {
			i++
			switch runes[i] {
			case '~':
				out.WriteRune('~')
			case '\\':
				out.WriteRune('\\')
			case '"':
				out.WriteRune('"')
			case 'n':
				out.WriteRune('\n')
			case 't':
				out.WriteRune('\t')
			case 'r':
				out.WriteRune('\r')
			default:
				return vmerr.New(vmerr.FormatError, "unknown escape \\%c in format string", runes[i])
			}
			continue
		}
		if c == '~' {
			if argIndex >= len(args) {
				return vmerr.New(vmerr.FormatError, "format string has more placeholders than the %d supplied arguments", len(args))
			}
			out.WriteString(args[argIndex].String())
			argIndex++
			continue
		}
		out.WriteRune(c)
	}
	if argIndex != len(args) {
		return vmerr.New(vmerr.FormatError, "format string has fewer placeholders than the %d supplied arguments", len(args))
	}

	if _, err := vm.Out.Write([]byte(out.String())); err != nil {
		return err
	}
	vm.pushOperand(NullPointer())
	return nil
}
