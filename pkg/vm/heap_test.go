package vm

import "testing"

func TestArrayInstanceGetSetBounds(t *testing.T) {
	a := ArrayInstance{Elements: []Pointer{IntegerPointer(1), IntegerPointer(2)}}

	if _, err := a.Get(5); err == nil {
		t.Errorf("expected an out-of-bounds error")
	}
	if err := a.Set(1, IntegerPointer(9)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := a.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Integer != 9 {
		t.Errorf("got %d, want 9", v.Integer)
	}
}

func TestObjectInstanceFieldsDoNotFallThroughToParent(t *testing.T) {
	parent := ObjectInstance{Fields: map[string]Pointer{"x": IntegerPointer(1)}}
	var heap Heap
	parentIndex := heap.AllocateObject(parent)

	child := ObjectInstance{Parent: ReferencePointer(parentIndex), Fields: map[string]Pointer{}}
	if _, err := child.GetField("x"); err == nil {
		t.Errorf("expected GetField to fail: fields never walk the parent chain")
	}
}

func TestHeapGetOutOfBounds(t *testing.T) {
	var heap Heap
	if _, err := heap.Get(0); err == nil {
		t.Errorf("expected an out-of-bounds heap access to fail")
	}
	idx := heap.AllocateArray(nil)
	if _, err := heap.Get(idx); err != nil {
		t.Errorf("Get(%d): %v", idx, err)
	}
}
