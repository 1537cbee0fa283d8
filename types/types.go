package types

import (
	"fmt"
	"strings"
)

type Kind int

const (
	// ErrorKind is the type assigned after a contextual error. It is
	// equivalent and assignable to every type so one fault does not
	// cascade into spurious follow-up diagnostics.
	ErrorKind Kind = iota
	IntKind
	BoolKind
	CharKind
	// AnyKind only appears in standard-environment signatures (the
	// polymorphic operands of = and \=). It matches any operand type.
	AnyKind
	ArrayKind
	RecordKind
)

type Field struct {
	Name   string
	Type   *Type
	Offset int // word offset within the record
}

// Type is a structural type representation. Named types are resolved
// to their underlying structure during contextual analysis, so a name
// never survives into a Type value and equivalence is purely shape
// based.
type Type struct {
	Kind   Kind
	Count  int // number of elements, arrays only
	Elem   *Type
	Fields []Field
}

var (
	ErrorType = &Type{Kind: ErrorKind}
	IntType   = &Type{Kind: IntKind}
	BoolType  = &Type{Kind: BoolKind}
	CharType  = &Type{Kind: CharKind}
	AnyType   = &Type{Kind: AnyKind}
)

func NewArray(count int, elem *Type) *Type {
	return &Type{Kind: ArrayKind, Count: count, Elem: elem}
}

// NewRecord builds a record type from fields in declaration order and
// assigns each field its word offset.
func NewRecord(fields []Field) *Type {
	offset := 0
	for i := range fields {
		fields[i].Offset = offset
		offset += fields[i].Type.SizeWords()
	}
	return &Type{Kind: RecordKind, Fields: fields}
}

// Equivalent reports structural equivalence: arrays match on size and
// element type, records match on field names and types pairwise in
// order. The error type is equivalent to everything.
func Equivalent(a, b *Type) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Kind == ErrorKind || b.Kind == ErrorKind {
		return true
	}
	if a.Kind == AnyKind || b.Kind == AnyKind {
		return true
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ArrayKind:
		return a.Count == b.Count && Equivalent(a.Elem, b.Elem)
	case RecordKind:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name || !Equivalent(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
		return true
	}
	return true
}

// Assignable reports whether a value of type src may be stored into a
// location of type dst.
func Assignable(dst, src *Type) bool {
	return Equivalent(dst, src)
}

// SizeWords is the storage size of a value of this type in machine
// words. Primitives occupy one word. The error type reports one word
// so address allocation stays sane after an error; no code is emitted
// for erroneous programs anyway.
func (t *Type) SizeWords() int {
	switch t.Kind {
	case ArrayKind:
		return t.Count * t.Elem.SizeWords()
	case RecordKind:
		size := 0
		for _, f := range t.Fields {
			size += f.Type.SizeWords()
		}
		return size
	default:
		return 1
	}
}

// Field looks up a record field by name.
func (t *Type) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case ErrorKind:
		return "<error>"
	case IntKind:
		return "Integer"
	case BoolKind:
		return "Boolean"
	case CharKind:
		return "Char"
	case AnyKind:
		return "<any>"
	case ArrayKind:
		return fmt.Sprintf("array %d of %s", t.Count, t.Elem)
	case RecordKind:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Type)
		}
		return "record " + strings.Join(parts, ", ") + " end"
	}
	return "<unknown>"
}
