package vm

import (
	"bytes"
	"testing"

	"github.com/kondziu/fml/pkg/bytecode"
)

func TestEvalPrintDecodesEscapeSequences(t *testing.T) {
	program := bytecode.NewProgram()
	format := program.RegisterConstant(bytecode.NewString(`a\nb\tc\\d\"e\~f`))

	var out bytes.Buffer
	interp := &Interpreter{Program: program, Out: &out, State: &State{}}
	if err := interp.evalPrint(bytecode.Instruction{Op: bytecode.Print, Index: format, Arity: 0}); err != nil {
		t.Fatalf("evalPrint: %v", err)
	}

	want := "a\nb\tc\\d\"e~f"
	if got := out.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEvalPrintSubstitutesPlaceholdersInOrder(t *testing.T) {
	program := bytecode.NewProgram()
	format := program.RegisterConstant(bytecode.NewString("~ and ~"))

	var out bytes.Buffer
	interp := &Interpreter{Program: program, Out: &out, State: &State{
		Operands: []Pointer{IntegerPointer(1), IntegerPointer(2)},
	}}
	if err := interp.evalPrint(bytecode.Instruction{Op: bytecode.Print, Index: format, Arity: 2}); err != nil {
		t.Fatalf("evalPrint: %v", err)
	}
	if got, want := out.String(), "1 and 2"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if len(interp.State.Operands) != 1 || !interp.State.Operands[0].IsNull() {
		t.Errorf("expected Print to push a single Null result, got %v", interp.State.Operands)
	}
}

func TestEvalPrintUnknownEscapeIsFormatError(t *testing.T) {
	program := bytecode.NewProgram()
	format := program.RegisterConstant(bytecode.NewString(`a\xb`))

	interp := &Interpreter{Program: program, Out: &bytes.Buffer{}, State: &State{}}
	if err := interp.evalPrint(bytecode.Instruction{Op: bytecode.Print, Index: format, Arity: 0}); err == nil {
		t.Fatalf("expected an unknown escape to fail")
	}
}

func TestEvalPrintArityMismatch(t *testing.T) {
	program := bytecode.NewProgram()
	format := program.RegisterConstant(bytecode.NewString("~ ~"))

	interp := &Interpreter{Program: program, Out: &bytes.Buffer{}, State: &State{
		Operands: []Pointer{IntegerPointer(1)},
	}}
	if err := interp.evalPrint(bytecode.Instruction{Op: bytecode.Print, Index: format, Arity: 1}); err == nil {
		t.Fatalf("expected a format error for a placeholder with no matching argument")
	}
}
