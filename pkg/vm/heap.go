package vm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kondziu/fml/internal/vmerr"
	"github.com/kondziu/fml/pkg/bytecode"
)

// HeapIndex identifies a heap-allocated object.
type HeapIndex int

// HeapObjectTag discriminates the two heap-allocated shapes.
type HeapObjectTag byte

const (
	HeapArray HeapObjectTag = iota
	HeapObjectObj
)

// HeapObjectEntry is one allocation: either an ArrayInstance or an
// ObjectInstance.
type HeapObjectEntry struct {
	Tag    HeapObjectTag
	Array  ArrayInstance
	Object ObjectInstance
}

// ArrayInstance is a fixed-size, mutable vector of Pointers.
type ArrayInstance struct {
	Elements []Pointer
}

func (a ArrayInstance) Get(index int) (Pointer, error) {
	if index < 0 || index >= len(a.Elements) {
		return Pointer{}, vmerr.New(vmerr.Overflow, "array index %d out of bounds (length %d)", index, len(a.Elements))
	}
	return a.Elements[index], nil
}

func (a ArrayInstance) Set(index int, value Pointer) error {
	if index < 0 || index >= len(a.Elements) {
		return vmerr.New(vmerr.Overflow, "array index %d out of bounds (length %d)", index, len(a.Elements))
	}
	a.Elements[index] = value
	return nil
}

func (a ArrayInstance) String() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ObjectInstance is a parent pointer plus its own fields and methods. Method
// lookup walks the parent chain; field lookup does not (fields are looked
// up only on the receiver object itself).
type ObjectInstance struct {
	Parent  Pointer
	Fields  map[string]Pointer
	Methods map[string]bytecode.ProgramObject
}

func (o ObjectInstance) GetField(name string) (Pointer, error) {
	v, ok := o.Fields[name]
	if !ok {
		return Pointer{}, vmerr.New(vmerr.NameError, "no field named %q", name)
	}
	return v, nil
}

func (o ObjectInstance) SetField(name string, value Pointer) error {
	if _, ok := o.Fields[name]; !ok {
		return vmerr.New(vmerr.NameError, "no field named %q", name)
	}
	o.Fields[name] = value
	return nil
}

func (o ObjectInstance) String() string {
	names := make([]string, 0, len(o.Fields))
	for name := range o.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names)+1)
	parts = append(parts, fmt.Sprintf("..=%s", o.Parent))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", name, o.Fields[name]))
	}
	return "object(" + strings.Join(parts, ", ") + ")"
}

// Heap is the append-only store of allocated arrays and objects.
type Heap struct {
	entries []HeapObjectEntry
}

func (h *Heap) Allocate(entry HeapObjectEntry) HeapIndex {
	h.entries = append(h.entries, entry)
	return HeapIndex(len(h.entries) - 1)
}

func (h *Heap) AllocateArray(elements []Pointer) HeapIndex {
	return h.Allocate(HeapObjectEntry{Tag: HeapArray, Array: ArrayInstance{Elements: elements}})
}

func (h *Heap) AllocateObject(obj ObjectInstance) HeapIndex {
	return h.Allocate(HeapObjectEntry{Tag: HeapObjectObj, Object: obj})
}

func (h *Heap) Get(i HeapIndex) (*HeapObjectEntry, error) {
	if int(i) < 0 || int(i) >= len(h.entries) {
		return nil, vmerr.New(vmerr.MalformedProgram, "heap index %d out of bounds (size %d)", i, len(h.entries))
	}
	return &h.entries[i], nil
}

func (h *Heap) Len() int { return len(h.entries) }

func (h *Heap) All() []HeapObjectEntry { return h.entries }

func (e HeapObjectEntry) String() string {
	if e.Tag == HeapArray {
		return e.Array.String()
	}
	return e.Object.String()
}
