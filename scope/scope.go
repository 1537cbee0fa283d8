// Package scope implements the chained symbol environment used during
// contextual analysis. A table is a stack of scopes, innermost first;
// each scope owns its name bindings and the table tracks the static
// level and the next free displacement of the current frame.
package scope

import (
	"fmt"

	"triangle/types"
)

type EntityKind int

const (
	Constant EntityKind = iota
	Variable
	Procedure
	Function
	Primitive
	TypeEntity
)

func (k EntityKind) String() string {
	switch k {
	case Constant:
		return "constant"
	case Variable:
		return "variable"
	case Procedure:
		return "procedure"
	case Function:
		return "function"
	case Primitive:
		return "primitive routine"
	case TypeEntity:
		return "type"
	}
	return "entity"
}

type Param struct {
	Type  *types.Type
	ByRef bool
}

// Entity is the runtime description bound to a declared name. AST
// nodes hold non-owning references to entities; the declaring scope
// owns them.
type Entity struct {
	Name string
	Kind EntityKind

	// Declared type: the value type for constants and variables, the
	// result type for functions and primitive functions, the underlying
	// structure for type entities. Nil for procedures.
	Type *types.Type

	// Address of addressable entities, assigned at declaration time.
	Level int
	Disp  int
	Size  int

	// ByRef marks a by-reference parameter: the slot holds an address
	// and accesses go through it.
	ByRef bool

	// Known constants carry their value and occupy no storage.
	Known bool
	Value int

	// Routine signature.
	Params   []Param
	ArgWords int

	// Primitive routine displacement in the machine's PB segment.
	Prim int
}

type frame struct {
	names     map[string]*Entity
	routine   bool
	savedDisp int
}

// Table is the scope environment. NewTable returns one whose outermost
// scope is already populated with the standard environment, at static
// level 0 with no displacement consumed.
type Table struct {
	frames []*frame
	level  int
	disp   int
}

func NewTable() *Table {
	t := &Table{}
	t.frames = append(t.frames, &frame{names: standardEnvironment()})
	return t
}

// EnterBlock opens a scope that shares the current frame: the level is
// unchanged and displacement keeps growing from where it is.
func (t *Table) EnterBlock() {
	t.frames = append(t.frames, &frame{names: map[string]*Entity{}, savedDisp: t.disp})
}

// EnterRoutine opens the body scope of a procedure or function: one
// level deeper, displacement restarting at zero for the parameters.
func (t *Table) EnterRoutine() {
	t.frames = append(t.frames, &frame{names: map[string]*Entity{}, routine: true, savedDisp: t.disp})
	t.level++
	t.disp = 0
}

// Exit pops the innermost scope and restores the displacement the
// enclosing scope had on entry. Scopes are strictly stack disciplined.
func (t *Table) Exit() {
	if len(t.frames) <= 1 {
		panic("scope: exit past the standard environment")
	}
	top := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	t.disp = top.savedDisp
	if top.routine {
		t.level--
	}
}

func (t *Table) Level() int {
	return t.level
}

// Declare binds an entity in the current scope. It fails if the name
// is already bound in this scope (shadowing an outer scope is fine).
// Declaring a variable, or a constant without a known value, allocates
// storage: the entity receives the current (level, displacement) and
// the displacement advances by the entity's size.
func (t *Table) Declare(e *Entity) error {
	top := t.frames[len(t.frames)-1]
	if _, ok := top.names[e.Name]; ok {
		return fmt.Errorf("%q is already declared in this scope", e.Name)
	}
	switch e.Kind {
	case Variable:
		t.allocate(e)
	case Constant:
		if !e.Known {
			t.allocate(e)
		}
	default:
		e.Level = t.level
	}
	top.names[e.Name] = e
	return nil
}

func (t *Table) allocate(e *Entity) {
	e.Level = t.level
	e.Disp = t.disp
	t.disp += e.Size
}

// Resolve walks outward from the innermost scope and returns the first
// binding of name, or nil.
func (t *Table) Resolve(name string) *Entity {
	for i := len(t.frames) - 1; i >= 0; i-- {
		if e, ok := t.frames[i].names[name]; ok {
			return e
		}
	}
	return nil
}
