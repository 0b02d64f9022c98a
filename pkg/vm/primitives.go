package vm

import "github.com/kondziu/fml/internal/vmerr"

// dispatchNullMethod implements the handful of selectors Null understands:
// identity comparison only. Everything else is a name error.
func dispatchNullMethod(name string, args []Pointer) (Pointer, error) {
	switch name {
	case "==", "eq":
		return BooleanPointer(len(args) == 1 && args[0].IsNull()), requireArity(name, args, 1)
	case "!=", "neq":
		return BooleanPointer(len(args) != 1 || !args[0].IsNull()), requireArity(name, args, 1)
	default:
		return Pointer{}, vmerr.New(vmerr.NameError, "no method %q on null", name)
	}
}

// dispatchBooleanMethod implements Boolean's logical operators, each with a
// symbol and a word alias, matching the pairs Integer offers.
func dispatchBooleanMethod(receiver bool, name string, args []Pointer) (Pointer, error) {
	if err := requireArity(name, args, 1); err != nil {
		return Pointer{}, err
	}
	other, err := asBoolean(args[0])
	if err != nil {
		return Pointer{}, err
	}
	switch name {
	case "&", "and":
		return BooleanPointer(receiver && other), nil
	case "|", "or":
		return BooleanPointer(receiver || other), nil
	case "==", "eq":
		return BooleanPointer(receiver == other), nil
	case "!=", "neq":
		return BooleanPointer(receiver != other), nil
	default:
		return Pointer{}, vmerr.New(vmerr.NameError, "no method %q on boolean", name)
	}
}

// dispatchIntegerMethod implements Integer's arithmetic and comparison
// operators. Every operator has both a symbol spelling (as the compiler
// emits for infix Operation nodes) and a word alias, mirroring how
// call-slot syntax can name the same selector either way.
func dispatchIntegerMethod(receiver int32, name string, args []Pointer) (Pointer, error) {
	if err := requireArity(name, args, 1); err != nil {
		return Pointer{}, err
	}
	other, err := asInteger(args[0])
	if err != nil {
		return Pointer{}, err
	}
	switch name {
	case "+", "add":
		return IntegerPointer(receiver + other), nil
	case "-", "sub":
		return IntegerPointer(receiver - other), nil
	case "*", "mul":
		return IntegerPointer(receiver * other), nil
	case "/", "div":
		if other == 0 {
			return Pointer{}, vmerr.New(vmerr.Overflow, "division by zero")
		}
		return IntegerPointer(receiver / other), nil
	case "%", "mod":
		if other == 0 {
			return Pointer{}, vmerr.New(vmerr.Overflow, "division by zero")
		}
		return IntegerPointer(receiver % other), nil
	case "<", "lt":
		return BooleanPointer(receiver < other), nil
	case ">", "gt":
		return BooleanPointer(receiver > other), nil
	case "<=", "le":
		return BooleanPointer(receiver <= other), nil
	case ">=", "ge":
		return BooleanPointer(receiver >= other), nil
	case "==", "eq":
		return BooleanPointer(receiver == other), nil
	case "!=", "neq":
		return BooleanPointer(receiver != other), nil
	default:
		return Pointer{}, vmerr.New(vmerr.UnknownOperator, "no method %q on integer", name)
	}
}

func requireArity(name string, args []Pointer, want int) error {
	if len(args) != want {
		return vmerr.New(vmerr.ArityMismatch, "method %q expects %d argument(s), got %d", name, want, len(args))
	}
	return nil
}

func asInteger(p Pointer) (int32, error) {
	if !p.IsInteger() {
		return 0, vmerr.New(vmerr.TypeError, "expected an integer, got %s", p)
	}
	return p.Integer, nil
}

func asBoolean(p Pointer) (bool, error) {
	if !p.IsBoolean() {
		return false, vmerr.New(vmerr.TypeError, "expected a boolean, got %s", p)
	}
	return p.Boolean, nil
}
