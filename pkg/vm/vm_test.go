package vm_test

import (
	"bytes"
	"testing"

	"github.com/kondziu/fml/pkg/ast"
	"github.com/kondziu/fml/pkg/compiler"
	"github.com/kondziu/fml/pkg/vm"
)

func run(t *testing.T, top ast.Top) string {
	t.Helper()
	program, err := compiler.Compile(top)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var out bytes.Buffer
	interp, err := vm.New(program, &out)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := interp.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

func TestHelloWorld(t *testing.T) {
	top := ast.Top{Children: []ast.Node{
		ast.Print{Format: "Hello, World!\n"},
	}}
	if got, want := run(t, top), "Hello, World!\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFibonacci(t *testing.T) {
	// function fib(n) = if n < 2 { n } else { fib(n-1) + fib(n-2) }
	fib := ast.Function{
		Name:       "fib",
		Parameters: []string{"n"},
		Body: ast.Conditional{
			Condition:  ast.Operation{Operator: "<", Left: ast.AccessVariable{Name: "n"}, Right: ast.Integer{Value: 2}},
			Consequent: ast.AccessVariable{Name: "n"},
			Alternative: ast.Operation{
				Operator: "+",
				Left: ast.CallFunction{Name: "fib", Arguments: []ast.Node{
					ast.Operation{Operator: "-", Left: ast.AccessVariable{Name: "n"}, Right: ast.Integer{Value: 1}},
				}},
				Right: ast.CallFunction{Name: "fib", Arguments: []ast.Node{
					ast.Operation{Operator: "-", Left: ast.AccessVariable{Name: "n"}, Right: ast.Integer{Value: 2}},
				}},
			},
		},
	}
	top := ast.Top{Children: []ast.Node{
		fib,
		ast.Print{Format: "~\n", Arguments: []ast.Node{
			ast.CallFunction{Name: "fib", Arguments: []ast.Node{ast.Integer{Value: 10}}},
		}},
	}}
	if got, want := run(t, top), "55\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestArrayWithSideEffectingInitializer(t *testing.T) {
	// counter starts at 0; array of size 3 filled by repeatedly calling next(),
	// which increments and returns the counter. Verifies the initializer runs
	// once per slot rather than once overall.
	next := ast.Function{
		Name:       "next",
		Parameters: nil,
		Body: ast.Block{Children: []ast.Node{
			ast.AssignVariable{Name: "counter", Value: ast.Operation{
				Operator: "+", Left: ast.AccessVariable{Name: "counter"}, Right: ast.Integer{Value: 1},
			}},
			ast.AccessVariable{Name: "counter"},
		}},
	}
	top := ast.Top{Children: []ast.Node{
		ast.Variable{Name: "counter", Value: ast.Integer{Value: 0}},
		next,
		ast.Variable{Name: "xs", Value: ast.ArrayNode{
			Size:  ast.Integer{Value: 3},
			Value: ast.CallFunction{Name: "next", Arguments: nil},
		}},
		ast.Print{Format: "~ ~ ~\n", Arguments: []ast.Node{
			ast.AccessArray{Array: ast.AccessVariable{Name: "xs"}, Index: ast.Integer{Value: 0}},
			ast.AccessArray{Array: ast.AccessVariable{Name: "xs"}, Index: ast.Integer{Value: 1}},
			ast.AccessArray{Array: ast.AccessVariable{Name: "xs"}, Index: ast.Integer{Value: 2}},
		}},
	}}
	if got, want := run(t, top), "1 2 3\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestObjectInheritanceDispatchesToParentMethod(t *testing.T) {
	parent := ast.Object{
		Extends: ast.Null{},
		Members: []ast.Member{
			ast.Function{Name: "greet", Body: ast.Print{Format: "hi\n"}},
		},
	}
	top := ast.Top{Children: []ast.Node{
		ast.Variable{Name: "child", Value: ast.Object{Extends: parent, Members: nil}},
		ast.CallMethod{Object: ast.AccessVariable{Name: "child"}, Name: "greet"},
	}}
	if got, want := run(t, top), "hi\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestObjectFieldAccessNeverWalksParentChain(t *testing.T) {
	parent := ast.Object{
		Extends: ast.Null{},
		Members: []ast.Member{
			ast.Variable{Name: "x", Value: ast.Integer{Value: 1}},
		},
	}
	top := ast.Top{Children: []ast.Node{
		ast.Variable{Name: "child", Value: ast.Object{Extends: parent, Members: nil}},
		ast.AccessField{Object: ast.AccessVariable{Name: "child"}, Field: "x"},
	}}
	program, err := compiler.Compile(top)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var out bytes.Buffer
	interp, err := vm.New(program, &out)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := interp.Run(); err == nil {
		t.Fatalf("expected a name error accessing a parent-only field, got none")
	}
}

func TestIntegerArithmeticAndComparison(t *testing.T) {
	top := ast.Top{Children: []ast.Node{
		ast.Print{Format: "~ ~ ~\n", Arguments: []ast.Node{
			ast.Operation{Operator: "+", Left: ast.Integer{Value: 2}, Right: ast.Integer{Value: 3}},
			ast.Operation{Operator: "*", Left: ast.Integer{Value: 4}, Right: ast.Integer{Value: 5}},
			ast.Operation{Operator: "<", Left: ast.Integer{Value: 1}, Right: ast.Integer{Value: 2}},
		}},
	}}
	if got, want := run(t, top), "5 20 true\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDivisionByZeroIsRuntimeError(t *testing.T) {
	top := ast.Top{Children: []ast.Node{
		ast.Operation{Operator: "/", Left: ast.Integer{Value: 1}, Right: ast.Integer{Value: 0}},
	}}
	program, err := compiler.Compile(top)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	interp, err := vm.New(program, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := interp.Run(); err == nil {
		t.Fatalf("expected a division-by-zero error, got none")
	}
}

func TestArrayOutOfBoundsIsRuntimeError(t *testing.T) {
	top := ast.Top{Children: []ast.Node{
		ast.Variable{Name: "xs", Value: ast.ArrayNode{Size: ast.Integer{Value: 2}, Value: ast.Integer{Value: 0}}},
		ast.AccessArray{Array: ast.AccessVariable{Name: "xs"}, Index: ast.Integer{Value: 5}},
	}}
	program, err := compiler.Compile(top)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	interp, err := vm.New(program, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := interp.Run(); err == nil {
		t.Fatalf("expected an out-of-bounds error, got none")
	}
}
