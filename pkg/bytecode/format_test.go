package bytecode

import (
	"bytes"
	"testing"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	program := NewProgram()

	// A tiny "^" entry method: lit 42, lit 1, call slot "+", return.
	topName := program.RegisterConstant(NewString("^"))
	plus := program.RegisterConstant(NewString("+"))
	fortyTwo := program.RegisterConstant(NewInteger(42))
	one := program.RegisterConstant(NewInteger(1))

	if err := program.EmitCode(
		Instruction{Op: Literal, Index: fortyTwo},
		Instruction{Op: Literal, Index: one},
		Instruction{Op: CallMethod, Index: plus, Arity: 2},
		Instruction{Op: Return},
	); err != nil {
		t.Fatalf("EmitCode: %v", err)
	}
	finish := program.CurrentAddress()

	method := program.RegisterConstant(NewMethod(topName, 0, 0, AddressRangeBetween(0, finish)))
	program.SetEntry(method)

	var buf bytes.Buffer
	if err := program.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	decoded, err := Deserialize(&buf)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	entryIndex, ok := decoded.Entry()
	if !ok {
		t.Fatalf("decoded program has no entry")
	}
	entry, ok := decoded.GetConstant(entryIndex)
	if !ok || entry.Tag != TagMethod {
		t.Fatalf("decoded entry is not a method: %+v", entry)
	}
	if entry.MethodCode.Length != 4 {
		t.Errorf("expected 4 instructions in entry method, got %d", entry.MethodCode.Length)
	}

	instrs := decoded.Code().All()[entry.MethodCode.Start:entry.MethodCode.End()]
	if len(instrs) != 4 {
		t.Fatalf("expected 4 decoded instructions, got %d", len(instrs))
	}
	if instrs[2].Op != CallMethod {
		t.Errorf("expected instruction 2 to be CallMethod, got %s", instrs[2].Op)
	}
}

func TestRegisterConstantDedupesLiterals(t *testing.T) {
	program := NewProgram()

	a := program.RegisterConstant(NewInteger(7))
	b := program.RegisterConstant(NewInteger(7))
	if a != b {
		t.Errorf("expected duplicate integer constants to dedupe, got %s and %s", a, b)
	}

	c := program.RegisterConstant(NewString("x"))
	d := program.RegisterConstant(NewString("x"))
	if c != d {
		t.Errorf("expected duplicate string constants to dedupe, got %s and %s", c, d)
	}

	if len(program.Constants()) != 2 {
		t.Errorf("expected 2 distinct constants, got %d", len(program.Constants()))
	}
}

func TestRegisterConstantNeverDedupesMethodsOrClasses(t *testing.T) {
	program := NewProgram()

	name := program.RegisterConstant(NewString("m"))
	m1 := program.RegisterConstant(NewMethod(name, 0, 0, AddressRangeBetween(0, 0)))
	m2 := program.RegisterConstant(NewMethod(name, 0, 0, AddressRangeBetween(0, 0)))
	if m1 == m2 {
		t.Errorf("expected distinct method constants, got the same index %s twice", m1)
	}

	c1 := program.RegisterConstant(NewClass([]ConstantPoolIndex{m1}))
	c2 := program.RegisterConstant(NewClass([]ConstantPoolIndex{m1}))
	if c1 == c2 {
		t.Errorf("expected distinct class constants, got the same index %s twice", c1)
	}
}

func TestLabelsRejectDuplicateNames(t *testing.T) {
	program := NewProgram()
	names := program.GenerateLabelNames("loop")

	if err := program.EmitCode(Instruction{Op: Label, Label: names[0]}); err != nil {
		t.Fatalf("first label registration: %v", err)
	}
	if err := program.EmitCode(Instruction{Op: Label, Label: names[0]}); err == nil {
		t.Fatalf("expected duplicate label registration to fail")
	}
}
