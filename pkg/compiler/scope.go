package compiler

import (
	"github.com/kondziu/fml/pkg/bytecode"
)

type localKey struct {
	scope int
	name  string
}

// frame tracks local-variable bindings for one function/method activation.
// Bindings are keyed by (scope, name) so that a block's locals shadow an
// outer block's without colliding, while name resolution walks the active
// scope chain from innermost to outermost.
type frame struct {
	locals      map[localKey]bytecode.LocalFrameIndex
	scopes      []int
	scopeSeq    int
}

func newFrame() *frame {
	return &frame{locals: make(map[localKey]bytecode.LocalFrameIndex), scopes: []int{0}}
}

// frameFromParameters seeds scope 0 with names in order, used for function
// and method parameter lists.
func frameFromParameters(names []string) *frame {
	f := newFrame()
	for _, name := range names {
		f.registerNewLocal(name)
	}
	return f
}

func (f *frame) currentScope() int { return f.scopes[len(f.scopes)-1] }

func (f *frame) enterScope() {
	f.scopeSeq++
	f.scopes = append(f.scopes, f.scopeSeq)
}

func (f *frame) leaveScope() {
	f.scopes = f.scopes[:len(f.scopes)-1]
}

func (f *frame) inOutermostScope() bool { return len(f.scopes) == 1 }

func (f *frame) count() int { return len(f.locals) }

// registerNewLocal binds name fresh in the current scope. Returns false if
// name is already bound in this exact scope.
func (f *frame) registerNewLocal(name string) (bytecode.LocalFrameIndex, bool) {
	key := localKey{scope: f.currentScope(), name: name}
	if _, exists := f.locals[key]; exists {
		return 0, false
	}
	index := bytecode.LocalFrameIndex(len(f.locals))
	f.locals[key] = index
	return index, true
}

// registerLocal resolves name against the active scope chain (innermost
// first); if unbound anywhere in the chain, it is registered fresh in the
// current scope. This mirrors the compiler's own AST revisits (e.g. a
// desugared loop counter) silently becoming a local rather than erroring.
func (f *frame) registerLocal(name string) bytecode.LocalFrameIndex {
	if index, ok := f.lookupLocal(name); ok {
		return index
	}
	index, _ := f.registerNewLocal(name)
	return index
}

func (f *frame) lookupLocal(name string) (bytecode.LocalFrameIndex, bool) {
	for i := len(f.scopes) - 1; i >= 0; i-- {
		key := localKey{scope: f.scopes[i], name: name}
		if index, ok := f.locals[key]; ok {
			return index, true
		}
	}
	return 0, false
}

func (f *frame) hasLocal(name string) bool {
	_, ok := f.lookupLocal(name)
	return ok
}

// generateLocalName produces a synthetic name guaranteed unique within this
// frame, for compiler-introduced temporaries like array-initializer loops.
func (f *frame) generateLocalName(base string) string {
	n := len(f.locals)
	return "?" + base + "_" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// bookkeeping tracks the whole compile-time environment: the stack of
// active function/method frames, and the synthetic top-level frame used
// while compiling a Top node before any block has been entered.
type bookkeeping struct {
	frames  []*frame
	globals map[string]bool
	top     *frame
}

func newBookkeeping() *bookkeeping {
	return &bookkeeping{globals: make(map[string]bool), top: newFrame()}
}

func (b *bookkeeping) pushFrame(f *frame) {
	b.frames = append(b.frames, f)
}

func (b *bookkeeping) popFrame() {
	b.frames = b.frames[:len(b.frames)-1]
}

func (b *bookkeeping) active() *frame {
	if len(b.frames) > 0 {
		return b.frames[len(b.frames)-1]
	}
	return b.top
}

// hasFrame reports whether a Variable declaration right now should become a
// local (true) or a global (false): true once inside any function/method
// frame, or once the top-level code has entered at least one block scope.
func (b *bookkeeping) hasFrame() bool {
	if len(b.frames) > 0 {
		return true
	}
	return !b.top.inOutermostScope()
}

func (b *bookkeeping) enterScope() { b.active().enterScope() }
func (b *bookkeeping) leaveScope() { b.active().leaveScope() }

func (b *bookkeeping) registerGlobal(name string) { b.globals[name] = true }

func (b *bookkeeping) hasLocal(name string) bool {
	if len(b.frames) > 0 || !b.top.inOutermostScope() {
		return b.active().hasLocal(name)
	}
	return false
}

func (b *bookkeeping) registerNewLocal(name string) (bytecode.LocalFrameIndex, bool) {
	return b.active().registerNewLocal(name)
}

func (b *bookkeeping) registerLocal(name string) bytecode.LocalFrameIndex {
	return b.active().registerLocal(name)
}

func (b *bookkeeping) countLocals() int { return b.active().count() }

func (b *bookkeeping) generateLocalName(base string) string {
	return b.active().generateLocalName(base)
}
