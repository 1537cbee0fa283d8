package scope

import (
	"triangle/machine"
	"triangle/types"
)

// The standard environment is a fixed part of the language definition:
// the primitive types, the boolean and maxint constants, the built-in
// routines and the operators. User declarations at the outermost level
// live in a child scope, so shadowing a built-in is legal.

const MaxInt = 32767

func typeEntity(name string, t *types.Type) *Entity {
	return &Entity{Name: name, Kind: TypeEntity, Type: t}
}

func knownConst(name string, t *types.Type, value int) *Entity {
	return &Entity{Name: name, Kind: Constant, Type: t, Known: true, Value: value}
}

func primitive(name string, prim int, result *types.Type, params ...Param) *Entity {
	words := 0
	for _, p := range params {
		if p.ByRef {
			words++
		} else {
			words += p.Type.SizeWords()
		}
	}
	return &Entity{Name: name, Kind: Primitive, Type: result, Prim: prim, Params: params, ArgWords: words}
}

func byValue(t *types.Type) Param { return Param{Type: t} }
func byRef(t *types.Type) Param   { return Param{Type: t, ByRef: true} }

func standardEnvironment() map[string]*Entity {
	entities := []*Entity{
		typeEntity("Integer", types.IntType),
		typeEntity("Boolean", types.BoolType),
		typeEntity("Char", types.CharType),

		knownConst("false", types.BoolType, 0),
		knownConst("true", types.BoolType, 1),
		knownConst("maxint", types.IntType, MaxInt),

		primitive("chr", machine.PrimID, types.CharType, byValue(types.IntType)),
		primitive("ord", machine.PrimID, types.IntType, byValue(types.CharType)),
		primitive("eol", machine.PrimEol, types.BoolType),
		primitive("eof", machine.PrimEof, types.BoolType),
		primitive("get", machine.PrimGet, nil, byRef(types.CharType)),
		primitive("put", machine.PrimPut, nil, byValue(types.CharType)),
		primitive("getint", machine.PrimGetint, nil, byRef(types.IntType)),
		primitive("putint", machine.PrimPutint, nil, byValue(types.IntType)),
		primitive("geteol", machine.PrimGeteol, nil),
		primitive("puteol", machine.PrimPuteol, nil),
	}
	names := make(map[string]*Entity, len(entities))
	for _, e := range entities {
		names[e.Name] = e
	}
	return names
}

var binaryOperators = map[string]*Entity{
	"+":   primitive("+", machine.PrimAdd, types.IntType, byValue(types.IntType), byValue(types.IntType)),
	"-":   primitive("-", machine.PrimSub, types.IntType, byValue(types.IntType), byValue(types.IntType)),
	"*":   primitive("*", machine.PrimMult, types.IntType, byValue(types.IntType), byValue(types.IntType)),
	"/":   primitive("/", machine.PrimDiv, types.IntType, byValue(types.IntType), byValue(types.IntType)),
	"//":  primitive("//", machine.PrimMod, types.IntType, byValue(types.IntType), byValue(types.IntType)),
	"<":   primitive("<", machine.PrimLt, types.BoolType, byValue(types.IntType), byValue(types.IntType)),
	"<=":  primitive("<=", machine.PrimLe, types.BoolType, byValue(types.IntType), byValue(types.IntType)),
	">":   primitive(">", machine.PrimGt, types.BoolType, byValue(types.IntType), byValue(types.IntType)),
	">=":  primitive(">=", machine.PrimGe, types.BoolType, byValue(types.IntType), byValue(types.IntType)),
	"/\\": primitive("/\\", machine.PrimAnd, types.BoolType, byValue(types.BoolType), byValue(types.BoolType)),
	"\\/": primitive("\\/", machine.PrimOr, types.BoolType, byValue(types.BoolType), byValue(types.BoolType)),

	// = and \= compare any two values of one equivalent type.
	"=":   primitive("=", machine.PrimEq, types.BoolType, byValue(types.AnyType), byValue(types.AnyType)),
	"\\=": primitive("\\=", machine.PrimNe, types.BoolType, byValue(types.AnyType), byValue(types.AnyType)),
}

var unaryOperators = map[string]*Entity{
	"\\": primitive("\\", machine.PrimNot, types.BoolType, byValue(types.BoolType)),
	"-":  primitive("-", machine.PrimNeg, types.IntType, byValue(types.IntType)),
}

// BinaryOperator returns the standard-environment entity for a binary
// operator, or nil if the operator has no binary form.
func BinaryOperator(op string) *Entity {
	return binaryOperators[op]
}

// UnaryOperator returns the standard-environment entity for a unary
// operator, or nil if the operator has no unary form.
func UnaryOperator(op string) *Entity {
	return unaryOperators[op]
}
