package compiler

import (
	"testing"

	"github.com/kondziu/fml/pkg/ast"
	"github.com/kondziu/fml/pkg/bytecode"
)

func mustCompile(t *testing.T, top ast.Top) *bytecode.Program {
	t.Helper()
	program, err := Compile(top)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return program
}

func entryInstructions(t *testing.T, program *bytecode.Program) []bytecode.Instruction {
	t.Helper()
	index, ok := program.Entry()
	if !ok {
		t.Fatalf("program has no entry point")
	}
	entry, ok := program.GetConstant(index)
	if !ok || entry.Tag != bytecode.TagMethod {
		t.Fatalf("entry constant is not a method")
	}
	return program.Code().All()[entry.MethodCode.Start:entry.MethodCode.End()]
}

func TestCompileHelloWorld(t *testing.T) {
	top := ast.Top{Children: []ast.Node{
		ast.Print{Format: "Hello, World!\n"},
	}}
	program := mustCompile(t, top)

	instrs := entryInstructions(t, program)
	found := false
	for _, instr := range instrs {
		if instr.Op == bytecode.Print {
			found = true
			if instr.Arity != 0 {
				t.Errorf("expected printf with 0 arguments, got %d", instr.Arity)
			}
		}
	}
	if !found {
		t.Errorf("expected a Print instruction in the entry method, got %v", instrs)
	}
}

func TestCompileTopLevelVariableBecomesGlobal(t *testing.T) {
	top := ast.Top{Children: []ast.Node{
		ast.Variable{Name: "x", Value: ast.Integer{Value: 42}},
	}}
	program := mustCompile(t, top)

	globals := program.Globals()
	if len(globals) != 1 {
		t.Fatalf("expected 1 global, got %d", len(globals))
	}
	slot, ok := program.GetConstant(globals[0])
	if !ok || slot.Tag != bytecode.TagSlot {
		t.Fatalf("expected a slot constant for the global, got %+v", slot)
	}

	instrs := entryInstructions(t, program)
	var sawSetGlobal bool
	for _, instr := range instrs {
		if instr.Op == bytecode.SetGlobal {
			sawSetGlobal = true
		}
	}
	if !sawSetGlobal {
		t.Errorf("expected a SetGlobal instruction, got %v", instrs)
	}
}

func TestCompileDuplicateLocalInSameScopeFails(t *testing.T) {
	top := ast.Top{Children: []ast.Node{
		ast.Function{
			Name:       "f",
			Parameters: nil,
			Body: ast.Block{Children: []ast.Node{
				ast.Variable{Name: "x", Value: ast.Integer{Value: 1}},
				ast.Variable{Name: "x", Value: ast.Integer{Value: 2}},
			}},
		},
	}}
	if _, err := Compile(top); err == nil {
		t.Fatalf("expected a duplicate-local error, got nil")
	}
}

func TestCompileShadowingInNestedScopeSucceeds(t *testing.T) {
	top := ast.Top{Children: []ast.Node{
		ast.Function{
			Name:       "f",
			Parameters: nil,
			Body: ast.Block{Children: []ast.Node{
				ast.Variable{Name: "x", Value: ast.Integer{Value: 1}},
				ast.Block{Children: []ast.Node{
					ast.Variable{Name: "x", Value: ast.Integer{Value: 2}},
				}},
			}},
		},
	}}
	if _, err := Compile(top); err != nil {
		t.Fatalf("Compile: %v", err)
	}
}

func TestCompileNestedConditionalsGenerateDistinctLabels(t *testing.T) {
	cond := func(n int32) ast.Node {
		return ast.Conditional{
			Condition:   ast.Boolean{Value: true},
			Consequent:  ast.Integer{Value: n},
			Alternative: ast.Integer{Value: -n},
		}
	}
	top := ast.Top{Children: []ast.Node{
		ast.Conditional{
			Condition:   ast.Boolean{Value: true},
			Consequent:  cond(1),
			Alternative: cond(2),
		},
	}}
	program := mustCompile(t, top)

	seen := map[string]int{}
	for _, c := range program.Constants() {
		if c.Tag == bytecode.TagString {
			seen[c.Str]++
		}
	}
	for name, count := range seen {
		if count > 1 {
			t.Errorf("label/name constant %q registered %d times, want a unique label per occurrence", name, count)
		}
	}
}

func TestCompileArrayWithSideEffectingInitializerDesugarsToLoop(t *testing.T) {
	top := ast.Top{Children: []ast.Node{
		ast.ArrayNode{
			Size:  ast.Integer{Value: 3},
			Value: ast.CallFunction{Name: "next", Arguments: nil},
		},
	}}
	program := mustCompile(t, top)

	instrs := entryInstructions(t, program)
	var sawLoop bool
	for _, instr := range instrs {
		if instr.Op == bytecode.Branch {
			sawLoop = true
		}
	}
	if !sawLoop {
		t.Errorf("expected the side-effecting array initializer to desugar into a loop, got %v", instrs)
	}
}

func TestCompileArrayWithPureInitializerEmitsSingleArrayOp(t *testing.T) {
	top := ast.Top{Children: []ast.Node{
		ast.ArrayNode{Size: ast.Integer{Value: 3}, Value: ast.Integer{Value: 0}},
	}}
	program := mustCompile(t, top)

	instrs := entryInstructions(t, program)
	count := 0
	for _, instr := range instrs {
		if instr.Op == bytecode.Array {
			count++
		}
		if instr.Op == bytecode.Branch {
			t.Errorf("expected no loop for a pure initializer, got a Branch instruction")
		}
	}
	if count != 1 {
		t.Errorf("expected exactly 1 Array instruction, got %d", count)
	}
}

func TestCompileObjectInheritanceDispatch(t *testing.T) {
	parent := ast.Object{
		Extends: ast.Null{},
		Members: []ast.Member{
			ast.Function{Name: "greet", Parameters: nil, Body: ast.Print{Format: "hi"}},
		},
	}
	top := ast.Top{Children: []ast.Node{
		ast.Variable{Name: "child", Value: ast.Object{Extends: parent, Members: nil}},
		ast.CallMethod{Object: ast.AccessVariable{Name: "child"}, Name: "greet"},
	}}
	program := mustCompile(t, top)

	var classes int
	for _, c := range program.Constants() {
		if c.Tag == bytecode.TagClass {
			classes++
		}
	}
	if classes != 2 {
		t.Errorf("expected 2 class constants (parent and child), got %d", classes)
	}
}
