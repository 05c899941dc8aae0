package vm

import "sync"

// ---------------------------------------------------------------------------
// Class: managed class representation
// ---------------------------------------------------------------------------

// NewClass creates a class with the given name and superclass. The slot
// count is the superclass's plus one per instance variable.
func NewClass(name string, superclass *Class, instVars ...string) *Class {
	c := &Class{
		Name:       name,
		Superclass: superclass,
		InstVars:   instVars,
	}
	c.NumSlots = c.instVarOffset() + len(instVars)
	return c
}

// InstVarIndex returns the slot index for an instance variable by name.
// Returns -1 if the variable is not found.
func (c *Class) InstVarIndex(name string) int {
	for i, n := range c.InstVars {
		if n == name {
			return c.instVarOffset() + i
		}
	}
	if c.Superclass != nil {
		return c.Superclass.InstVarIndex(name)
	}
	return -1
}

// instVarOffset returns the starting slot index for this class's instance variables.
func (c *Class) instVarOffset() int {
	if c.Superclass == nil {
		return 0
	}
	return c.Superclass.NumSlots
}

// IsSubclassOf returns true if c is a subclass of other (or is the same class).
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.Superclass {
		if current == other {
			return true
		}
	}
	return false
}

// FullName returns the namespace-qualified class name.
func (c *Class) FullName() string {
	if c.Namespace == "" {
		return c.Name
	}
	return c.Namespace + "::" + c.Name
}

// Native returns the slot caching the class's native wrapper.
func (c *Class) Native() *NativeSlot {
	return &c.native
}

// ---------------------------------------------------------------------------
// ClassTable: class registry
// ---------------------------------------------------------------------------

// ClassTable manages registered classes by name.
type ClassTable struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewClassTable creates a new empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{
		classes: make(map[string]*Class),
	}
}

// Register adds a class to the table.
// Returns the previous class with this name, or nil.
func (ct *ClassTable) Register(c *Class) *Class {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	key := c.FullName()
	old := ct.classes[key]
	ct.classes[key] = c
	return old
}

// Lookup finds a class by its namespace-qualified name.
func (ct *ClassTable) Lookup(name string) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.classes[name]
}

// Len returns the number of registered classes.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.classes)
}
