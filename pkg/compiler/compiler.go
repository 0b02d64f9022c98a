// Package compiler lowers an AST (pkg/ast) into a bytecode.Program. There is
// no parser here: trees arrive fully built, from a front end outside this
// module or from tests.
package compiler

import (
	"github.com/kondziu/fml/internal/vmerr"
	"github.com/kondziu/fml/pkg/ast"
	"github.com/kondziu/fml/pkg/bytecode"
)

// Compile lowers a Top node into a complete Program with its entry point set.
func Compile(top ast.Top) (*bytecode.Program, error) {
	program := bytecode.NewProgram()
	env := newBookkeeping()
	if err := compileTop(top, program, env); err != nil {
		return nil, err
	}
	return program, nil
}

// compileInto lowers node, pushing its value onto the operand stack unless
// keepResult is false, in which case any pushed value is immediately
// dropped. Every AST form that produces a runtime value honors this
// discipline so a caller never has to guess what it left behind.
func compileInto(node ast.Node, program *bytecode.Program, env *bookkeeping, keepResult bool) error {
	switch n := node.(type) {

	case ast.Integer:
		index := program.RegisterConstant(bytecode.NewInteger(n.Value))
		return emitLiteral(program, index, keepResult)

	case ast.Boolean:
		index := program.RegisterConstant(bytecode.NewBoolean(n.Value))
		return emitLiteral(program, index, keepResult)

	case ast.Null:
		index := program.RegisterConstant(bytecode.NewNull())
		return emitLiteral(program, index, keepResult)

	case ast.Variable:
		if env.hasFrame() {
			index, ok := env.registerNewLocal(n.Name)
			if !ok {
				return vmerr.New(vmerr.DuplicateLocal, "local %q already declared in this scope", n.Name)
			}
			if err := compileInto(n.Value, program, env, true); err != nil {
				return err
			}
			if err := program.EmitCode(bytecode.Instruction{Op: bytecode.SetLocal, Local: index}); err != nil {
				return err
			}
		} else {
			nameIndex := program.RegisterConstant(bytecode.NewString(n.Name))
			slotIndex := program.RegisterConstant(bytecode.NewSlot(nameIndex))
			if err := program.RegisterGlobal(slotIndex); err != nil {
				return err
			}
			env.registerGlobal(n.Name)
			if err := compileInto(n.Value, program, env, true); err != nil {
				return err
			}
			if err := program.EmitCode(bytecode.Instruction{Op: bytecode.SetGlobal, Index: nameIndex}); err != nil {
				return err
			}
		}
		return program.EmitConditionally(!keepResult, bytecode.Instruction{Op: bytecode.Drop})

	case ast.AccessVariable:
		if env.hasLocal(n.Name) {
			index := env.registerLocal(n.Name)
			return emitGetLocal(program, index, keepResult)
		}
		nameIndex := program.RegisterConstant(bytecode.NewString(n.Name))
		return emitGetGlobal(program, nameIndex, keepResult)

	case ast.AssignVariable:
		if env.hasLocal(n.Name) {
			index := env.registerLocal(n.Name)
			if err := compileInto(n.Value, program, env, true); err != nil {
				return err
			}
			if err := program.EmitCode(bytecode.Instruction{Op: bytecode.SetLocal, Local: index}); err != nil {
				return err
			}
		} else {
			nameIndex := program.RegisterConstant(bytecode.NewString(n.Name))
			if err := compileInto(n.Value, program, env, true); err != nil {
				return err
			}
			if err := program.EmitCode(bytecode.Instruction{Op: bytecode.SetGlobal, Index: nameIndex}); err != nil {
				return err
			}
		}
		return program.EmitConditionally(!keepResult, bytecode.Instruction{Op: bytecode.Drop})

	case ast.Conditional:
		return compileConditional(n, program, env, keepResult)

	case ast.Loop:
		return compileLoop(n, program, env, keepResult)

	case ast.ArrayNode:
		return compileArray(n, program, env, keepResult)

	case ast.AccessArray:
		if err := compileInto(n.Array, program, env, true); err != nil {
			return err
		}
		if err := compileInto(n.Index, program, env, true); err != nil {
			return err
		}
		name := program.RegisterConstant(bytecode.NewString("get"))
		if err := program.EmitCode(bytecode.Instruction{Op: bytecode.CallMethod, Index: name, Arity: 2}); err != nil {
			return err
		}
		return program.EmitConditionally(!keepResult, bytecode.Instruction{Op: bytecode.Drop})

	case ast.AssignArray:
		if err := compileInto(n.Array, program, env, true); err != nil {
			return err
		}
		if err := compileInto(n.Index, program, env, true); err != nil {
			return err
		}
		if err := compileInto(n.Value, program, env, true); err != nil {
			return err
		}
		name := program.RegisterConstant(bytecode.NewString("set"))
		if err := program.EmitCode(bytecode.Instruction{Op: bytecode.CallMethod, Index: name, Arity: 3}); err != nil {
			return err
		}
		return program.EmitConditionally(!keepResult, bytecode.Instruction{Op: bytecode.Drop})

	case ast.Print:
		formatIndex := program.RegisterConstant(bytecode.NewString(n.Format))
		for _, arg := range n.Arguments {
			if err := compileInto(arg, program, env, true); err != nil {
				return err
			}
		}
		instr := bytecode.Instruction{Op: bytecode.Print, Index: formatIndex, Arity: bytecode.Arity(len(n.Arguments))}
		if err := program.EmitCode(instr); err != nil {
			return err
		}
		return program.EmitConditionally(!keepResult, bytecode.Instruction{Op: bytecode.Drop})

	case ast.Function:
		index, err := compileFunctionDefinition(n.Name, n.Receiver, n.Parameters, n.Body, program, env)
		if err != nil {
			return err
		}
		if !n.Receiver {
			return program.RegisterGlobal(index)
		}
		return nil

	case ast.CallFunction:
		nameIndex := program.RegisterConstant(bytecode.NewString(n.Name))
		for _, arg := range n.Arguments {
			if err := compileInto(arg, program, env, true); err != nil {
				return err
			}
		}
		instr := bytecode.Instruction{Op: bytecode.CallFunction, Index: nameIndex, Arity: bytecode.Arity(len(n.Arguments))}
		if err := program.EmitCode(instr); err != nil {
			return err
		}
		return program.EmitConditionally(!keepResult, bytecode.Instruction{Op: bytecode.Drop})

	case ast.CallMethod:
		nameIndex := program.RegisterConstant(bytecode.NewString(n.Name))
		if err := compileInto(n.Object, program, env, true); err != nil {
			return err
		}
		for _, arg := range n.Arguments {
			if err := compileInto(arg, program, env, true); err != nil {
				return err
			}
		}
		instr := bytecode.Instruction{Op: bytecode.CallMethod, Index: nameIndex, Arity: bytecode.Arity(len(n.Arguments) + 1)}
		if err := program.EmitCode(instr); err != nil {
			return err
		}
		return program.EmitConditionally(!keepResult, bytecode.Instruction{Op: bytecode.Drop})

	case ast.Operation:
		nameIndex := program.RegisterConstant(bytecode.NewString(n.Operator))
		if err := compileInto(n.Left, program, env, true); err != nil {
			return err
		}
		if err := compileInto(n.Right, program, env, true); err != nil {
			return err
		}
		if err := program.EmitCode(bytecode.Instruction{Op: bytecode.CallMethod, Index: nameIndex, Arity: 2}); err != nil {
			return err
		}
		return program.EmitConditionally(!keepResult, bytecode.Instruction{Op: bytecode.Drop})

	case ast.Object:
		return compileObject(n, program, env, keepResult)

	case ast.Block:
		env.enterScope()
		if len(n.Children) == 0 {
			env.leaveScope()
			index := program.RegisterConstant(bytecode.NewNull())
			return emitLiteral(program, index, keepResult)
		}
		for i, child := range n.Children {
			last := i == len(n.Children)-1
			if err := compileInto(child, program, env, last && keepResult); err != nil {
				env.leaveScope()
				return err
			}
		}
		env.leaveScope()
		return nil

	case ast.AccessField:
		if err := compileInto(n.Object, program, env, true); err != nil {
			return err
		}
		nameIndex := program.RegisterConstant(bytecode.NewString(n.Field))
		if err := program.EmitCode(bytecode.Instruction{Op: bytecode.GetField, Index: nameIndex}); err != nil {
			return err
		}
		return program.EmitConditionally(!keepResult, bytecode.Instruction{Op: bytecode.Drop})

	case ast.AssignField:
		if err := compileInto(n.Object, program, env, true); err != nil {
			return err
		}
		if err := compileInto(n.Value, program, env, true); err != nil {
			return err
		}
		nameIndex := program.RegisterConstant(bytecode.NewString(n.Field))
		if err := program.EmitCode(bytecode.Instruction{Op: bytecode.SetField, Index: nameIndex}); err != nil {
			return err
		}
		return program.EmitConditionally(!keepResult, bytecode.Instruction{Op: bytecode.Drop})

	case ast.Top:
		return compileTop(n, program, env)

	default:
		return vmerr.New(vmerr.MalformedMember, "cannot compile AST node of type %T", node)
	}
}

func emitLiteral(program *bytecode.Program, index bytecode.ConstantPoolIndex, keepResult bool) error {
	if err := program.EmitCode(bytecode.Instruction{Op: bytecode.Literal, Index: index}); err != nil {
		return err
	}
	return program.EmitConditionally(!keepResult, bytecode.Instruction{Op: bytecode.Drop})
}

func emitGetLocal(program *bytecode.Program, index bytecode.LocalFrameIndex, keepResult bool) error {
	if err := program.EmitCode(bytecode.Instruction{Op: bytecode.GetLocal, Local: index}); err != nil {
		return err
	}
	return program.EmitConditionally(!keepResult, bytecode.Instruction{Op: bytecode.Drop})
}

func emitGetGlobal(program *bytecode.Program, index bytecode.ConstantPoolIndex, keepResult bool) error {
	if err := program.EmitCode(bytecode.Instruction{Op: bytecode.GetGlobal, Index: index}); err != nil {
		return err
	}
	return program.EmitConditionally(!keepResult, bytecode.Instruction{Op: bytecode.Drop})
}

func compileConditional(n ast.Conditional, program *bytecode.Program, env *bookkeeping, keepResult bool) error {
	labels := program.GenerateLabelNames("if_consequent", "if_end")
	consequent, end := labels[0], labels[1]

	if err := compileInto(n.Condition, program, env, true); err != nil {
		return err
	}
	if err := program.EmitCode(bytecode.Instruction{Op: bytecode.Branch, Label: consequent}); err != nil {
		return err
	}
	if err := compileInto(n.Alternative, program, env, keepResult); err != nil {
		return err
	}
	if err := program.EmitCode(bytecode.Instruction{Op: bytecode.Jump, Label: end}); err != nil {
		return err
	}
	if err := program.EmitCode(bytecode.Instruction{Op: bytecode.Label, Label: consequent}); err != nil {
		return err
	}
	if err := compileInto(n.Consequent, program, env, keepResult); err != nil {
		return err
	}
	return program.EmitCode(bytecode.Instruction{Op: bytecode.Label, Label: end})
}

func compileLoop(n ast.Loop, program *bytecode.Program, env *bookkeeping, keepResult bool) error {
	labels := program.GenerateLabelNames("loop_body", "loop_condition")
	body, condition := labels[0], labels[1]

	if err := program.EmitCode(bytecode.Instruction{Op: bytecode.Jump, Label: condition}); err != nil {
		return err
	}
	if err := program.EmitCode(bytecode.Instruction{Op: bytecode.Label, Label: body}); err != nil {
		return err
	}
	if err := compileInto(n.Body, program, env, false); err != nil {
		return err
	}
	if err := program.EmitCode(bytecode.Instruction{Op: bytecode.Label, Label: condition}); err != nil {
		return err
	}
	if err := compileInto(n.Condition, program, env, true); err != nil {
		return err
	}
	if err := program.EmitCode(bytecode.Instruction{Op: bytecode.Branch, Label: body}); err != nil {
		return err
	}
	if keepResult {
		index := program.RegisterConstant(bytecode.NewNull())
		return program.EmitCode(bytecode.Instruction{Op: bytecode.Literal, Index: index})
	}
	return nil
}

// sideEffectFreeInitializer reports whether value can be evaluated once and
// replicated across every array slot instead of being desugared into an
// explicit fill loop.
func sideEffectFreeInitializer(value ast.Node) bool {
	switch value.(type) {
	case ast.Boolean, ast.Integer, ast.Null, ast.AccessVariable, ast.AccessField:
		return true
	default:
		return false
	}
}

func compileArray(n ast.ArrayNode, program *bytecode.Program, env *bookkeeping, keepResult bool) error {
	if sideEffectFreeInitializer(n.Value) {
		if err := compileInto(n.Size, program, env, true); err != nil {
			return err
		}
		if err := compileInto(n.Value, program, env, true); err != nil {
			return err
		}
		if err := program.EmitCode(bytecode.Instruction{Op: bytecode.Array}); err != nil {
			return err
		}
		return program.EmitConditionally(!keepResult, bytecode.Instruction{Op: bytecode.Drop})
	}

	sizeName := env.generateLocalName("size")
	arrayName := env.generateLocalName("array")
	indexName := env.generateLocalName("i")

	block := ast.Block{Children: []ast.Node{
		ast.Variable{Name: sizeName, Value: n.Size},
		ast.Variable{Name: arrayName, Value: ast.ArrayNode{
			Size:  ast.AccessVariable{Name: sizeName},
			Value: ast.Null{},
		}},
		ast.Variable{Name: indexName, Value: ast.Integer{Value: 0}},
		ast.Loop{
			Condition: ast.Operation{
				Operator: "<",
				Left:     ast.AccessVariable{Name: indexName},
				Right:    ast.AccessVariable{Name: sizeName},
			},
			Body: ast.Block{Children: []ast.Node{
				ast.AssignArray{
					Array: ast.AccessVariable{Name: arrayName},
					Index: ast.AccessVariable{Name: indexName},
					Value: n.Value,
				},
				ast.AssignVariable{
					Name: indexName,
					Value: ast.Operation{
						Operator: "+",
						Left:     ast.AccessVariable{Name: indexName},
						Right:    ast.Integer{Value: 1},
					},
				},
			}},
		},
		ast.AccessVariable{Name: arrayName},
	}}

	return compileInto(block, program, env, keepResult)
}

func compileFunctionDefinition(name string, receiver bool, parameters []string, body ast.Node, program *bytecode.Program, env *bookkeeping) (bytecode.ConstantPoolIndex, error) {
	labels := program.GenerateLabelNames("function_end")
	end := labels[0]

	if err := program.EmitCode(bytecode.Instruction{Op: bytecode.Jump, Label: end}); err != nil {
		return 0, err
	}
	start := program.UpcomingAddress()

	allParameters := parameters
	if receiver {
		allParameters = append([]string{"this"}, parameters...)
	}
	f := frameFromParameters(allParameters)
	env.pushFrame(f)

	if err := compileInto(body, program, env, true); err != nil {
		env.popFrame()
		return 0, err
	}
	localsCount := env.countLocals()
	env.popFrame()

	if err := program.EmitCode(bytecode.Instruction{Op: bytecode.Return}); err != nil {
		return 0, err
	}
	if err := program.EmitCode(bytecode.Instruction{Op: bytecode.Label, Label: end}); err != nil {
		return 0, err
	}
	finish := program.CurrentAddress()

	nameIndex := program.RegisterConstant(bytecode.NewString(name))
	method := bytecode.NewMethod(
		nameIndex,
		bytecode.Arity(len(allParameters)),
		bytecode.Size(localsCount-len(allParameters)),
		bytecode.AddressRangeBetween(start, finish),
	)
	return program.RegisterConstant(method), nil
}

func compileObject(n ast.Object, program *bytecode.Program, env *bookkeeping, keepResult bool) error {
	if err := compileInto(n.Extends, program, env, true); err != nil {
		return err
	}

	members := make([]bytecode.ConstantPoolIndex, 0, len(n.Members))
	for _, member := range n.Members {
		switch m := member.(type) {
		case ast.Function:
			index, err := compileFunctionDefinition(m.Name, true, m.Parameters, m.Body, program, env)
			if err != nil {
				return err
			}
			members = append(members, index)

		case ast.Variable:
			if err := compileInto(m.Value, program, env, true); err != nil {
				return err
			}
			nameIndex := program.RegisterConstant(bytecode.NewString(m.Name))
			slotIndex := program.RegisterConstant(bytecode.NewSlot(nameIndex))
			members = append(members, slotIndex)

		default:
			return vmerr.New(vmerr.MalformedMember, "cannot define an object member from %T", member)
		}
	}

	class := bytecode.NewClass(members)
	classIndex := program.RegisterConstant(class)
	if err := program.EmitCode(bytecode.Instruction{Op: bytecode.ObjectOp, Index: classIndex}); err != nil {
		return err
	}
	return program.EmitConditionally(!keepResult, bytecode.Instruction{Op: bytecode.Drop})
}

func compileTop(n ast.Top, program *bytecode.Program, env *bookkeeping) error {
	labels := program.GenerateLabelNames("^", "$")
	nameIndex, end := labels[0], labels[1]

	if err := program.EmitCode(bytecode.Instruction{Op: bytecode.Jump, Label: end}); err != nil {
		return err
	}
	start := program.UpcomingAddress()

	for i, child := range n.Children {
		last := i == len(n.Children)-1
		if err := compileInto(child, program, env, last); err != nil {
			return err
		}
	}

	if err := program.EmitCode(bytecode.Instruction{Op: bytecode.Label, Label: end}); err != nil {
		return err
	}
	finish := program.CurrentAddress()

	method := bytecode.NewMethod(nameIndex, 0, bytecode.Size(env.top.count()), bytecode.AddressRangeBetween(start, finish))
	index := program.RegisterConstant(method)
	program.SetEntry(index)
	return nil
}
