package vm

// Object represents a heap-allocated managed object.
//
// Objects carry a NativeSlot so the bridging layer can cache the object's
// native-visible wrapper on the object itself. The wrapper never outlives
// the object: once the object becomes unreachable so does its slot.
type Object struct {
	class *Class
	slots []Value

	native NativeSlot
}

// Class represents a managed class. Classes are themselves objects from the
// point of view of foreign code and carry their own NativeSlot.
type Class struct {
	Name       string   // Class name
	Namespace  string   // Namespace (empty for default)
	Superclass *Class   // Parent class (nil for Object)
	InstVars   []string // Instance variable names
	NumSlots   int      // Total number of slots needed

	native NativeSlot
}

// ---------------------------------------------------------------------------
// Object creation
// ---------------------------------------------------------------------------

// NewObject creates a new instance of class with all slots set to Nil.
func NewObject(class *Class) *Object {
	n := 0
	if class != nil {
		n = class.NumSlots
	}
	obj := &Object{class: class, slots: make([]Value, n)}
	for i := range obj.slots {
		obj.slots[i] = Nil
	}
	return obj
}

// Class returns the object's class.
func (obj *Object) Class() *Class {
	return obj.class
}

// NumSlots returns the number of instance variable slots.
func (obj *Object) NumSlots() int {
	return len(obj.slots)
}

// GetSlot returns the value at the given slot index.
// Panics if index is out of range.
func (obj *Object) GetSlot(index int) Value {
	if index < 0 || index >= len(obj.slots) {
		panic("Object.GetSlot: index out of range")
	}
	return obj.slots[index]
}

// SetSlot sets the value at the given slot index.
// Panics if index is out of range.
func (obj *Object) SetSlot(index int, value Value) {
	if index < 0 || index >= len(obj.slots) {
		panic("Object.SetSlot: index out of range")
	}
	obj.slots[index] = value
}

// Native returns the slot caching the object's native wrapper.
func (obj *Object) Native() *NativeSlot {
	return &obj.native
}
