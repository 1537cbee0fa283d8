// Package ast defines the abstract syntax tree produced by the parser
// and annotated by the checker. Nodes are tagged variants over four
// families: declarations, commands, expressions and vnames, plus the
// type denoters that appear in declarations. Every node carries its
// source position; after contextual analysis expressions carry their
// resolved type and identifier-like nodes carry a non-owning reference
// to the scope entity they denote.
package ast

import (
	"triangle/report"
	"triangle/scope"
	"triangle/types"
)

type Program struct {
	Body Command
	Pos  report.Pos
}

// Declarations.

type Declaration interface {
	Position() report.Pos
	declNode()
}

type ConstDecl struct {
	Name   string
	Value  Expression
	Pos    report.Pos
	Entity *scope.Entity
}

type VarDecl struct {
	Name    string
	Denoter TypeDenoter
	Pos     report.Pos
	Entity  *scope.Entity
}

type TypeDecl struct {
	Name    string
	Denoter TypeDenoter
	Pos     report.Pos
	Entity  *scope.Entity
}

type Formal struct {
	Name    string
	Denoter TypeDenoter
	ByRef   bool
	Pos     report.Pos
	Entity  *scope.Entity
}

type ProcDecl struct {
	Name    string
	Formals []*Formal
	Body    Command
	Pos     report.Pos
	Entity  *scope.Entity
}

type FuncDecl struct {
	Name    string
	Formals []*Formal
	Result  TypeDenoter
	Body    Expression
	Pos     report.Pos
	Entity  *scope.Entity
}

func (d *ConstDecl) Position() report.Pos { return d.Pos }
func (d *VarDecl) Position() report.Pos   { return d.Pos }
func (d *TypeDecl) Position() report.Pos  { return d.Pos }
func (d *ProcDecl) Position() report.Pos  { return d.Pos }
func (d *FuncDecl) Position() report.Pos  { return d.Pos }

func (*ConstDecl) declNode() {}
func (*VarDecl) declNode()   {}
func (*TypeDecl) declNode()  {}
func (*ProcDecl) declNode()  {}
func (*FuncDecl) declNode()  {}

// Commands.

type Command interface {
	Position() report.Pos
	cmdNode()
}

type AssignCmd struct {
	Target Vname
	Value  Expression
	Pos    report.Pos
}

type CallCmd struct {
	Name   string
	Args   []*Actual
	Pos    report.Pos
	Entity *scope.Entity
}

type SequentialCmd struct {
	List []Command
	Pos  report.Pos
}

// LetCmd scopes a declaration group over a body command. The group is
// an explicit collection: consecutive routine declarations inside it
// are mutually visible.
type LetCmd struct {
	Decls []Declaration
	Body  Command
	Pos   report.Pos
}

type IfCmd struct {
	Cond Expression
	Then Command
	Else Command
	Pos  report.Pos
}

type WhileCmd struct {
	Cond Expression
	Body Command
	Pos  report.Pos
}

// RepeatCmd runs its body at least once and exits when the condition
// becomes true.
type RepeatCmd struct {
	Body Command
	Cond Expression
	Pos  report.Pos
}

type EmptyCmd struct {
	Pos report.Pos
}

func (c *AssignCmd) Position() report.Pos     { return c.Pos }
func (c *CallCmd) Position() report.Pos       { return c.Pos }
func (c *SequentialCmd) Position() report.Pos { return c.Pos }
func (c *LetCmd) Position() report.Pos        { return c.Pos }
func (c *IfCmd) Position() report.Pos         { return c.Pos }
func (c *WhileCmd) Position() report.Pos      { return c.Pos }
func (c *RepeatCmd) Position() report.Pos     { return c.Pos }
func (c *EmptyCmd) Position() report.Pos      { return c.Pos }

func (*AssignCmd) cmdNode()     {}
func (*CallCmd) cmdNode()       {}
func (*SequentialCmd) cmdNode() {}
func (*LetCmd) cmdNode()        {}
func (*IfCmd) cmdNode()         {}
func (*WhileCmd) cmdNode()      {}
func (*RepeatCmd) cmdNode()     {}
func (*EmptyCmd) cmdNode()      {}

// Actual is one argument of a call. ByRef actuals are written with the
// var keyword and denote a storage location rather than a value.
type Actual struct {
	ByRef bool
	V     Vname      // set when ByRef
	E     Expression // set otherwise
	Pos   report.Pos
}

// Expressions.

type Expression interface {
	Position() report.Pos
	ResultType() *types.Type
	exprNode()
}

type IntLitExpr struct {
	Value int
	Pos   report.Pos
	Type  *types.Type
}

type CharLitExpr struct {
	Value byte
	Pos   report.Pos
	Type  *types.Type
}

type VnameExpr struct {
	V    Vname
	Pos  report.Pos
	Type *types.Type
}

type UnaryExpr struct {
	Op      string
	Operand Expression
	Pos     report.Pos
	Type    *types.Type
	Entity  *scope.Entity
}

type BinaryExpr struct {
	Op     string
	Left   Expression
	Right  Expression
	Pos    report.Pos
	Type   *types.Type
	Entity *scope.Entity
}

type CallExpr struct {
	Name   string
	Args   []*Actual
	Pos    report.Pos
	Type   *types.Type
	Entity *scope.Entity
}

type IfExpr struct {
	Cond Expression
	Then Expression
	Else Expression
	Pos  report.Pos
	Type *types.Type
}

type LetExpr struct {
	Decls []Declaration
	Body  Expression
	Pos   report.Pos
	Type  *types.Type
}

// ArrayExpr constructs an array value from its elements in order.
type ArrayExpr struct {
	Elems []Expression
	Pos   report.Pos
	Type  *types.Type
}

type RecordFieldExpr struct {
	Name  string
	Value Expression
	Pos   report.Pos
}

// RecordExpr constructs a record value from its fields in order.
type RecordExpr struct {
	Fields []RecordFieldExpr
	Pos    report.Pos
	Type   *types.Type
}

func (e *IntLitExpr) Position() report.Pos  { return e.Pos }
func (e *CharLitExpr) Position() report.Pos { return e.Pos }
func (e *VnameExpr) Position() report.Pos   { return e.Pos }
func (e *UnaryExpr) Position() report.Pos   { return e.Pos }
func (e *BinaryExpr) Position() report.Pos  { return e.Pos }
func (e *CallExpr) Position() report.Pos    { return e.Pos }
func (e *IfExpr) Position() report.Pos      { return e.Pos }
func (e *LetExpr) Position() report.Pos     { return e.Pos }
func (e *ArrayExpr) Position() report.Pos   { return e.Pos }
func (e *RecordExpr) Position() report.Pos  { return e.Pos }

func (e *IntLitExpr) ResultType() *types.Type  { return e.Type }
func (e *CharLitExpr) ResultType() *types.Type { return e.Type }
func (e *VnameExpr) ResultType() *types.Type   { return e.Type }
func (e *UnaryExpr) ResultType() *types.Type   { return e.Type }
func (e *BinaryExpr) ResultType() *types.Type  { return e.Type }
func (e *CallExpr) ResultType() *types.Type    { return e.Type }
func (e *IfExpr) ResultType() *types.Type      { return e.Type }
func (e *LetExpr) ResultType() *types.Type     { return e.Type }
func (e *ArrayExpr) ResultType() *types.Type   { return e.Type }
func (e *RecordExpr) ResultType() *types.Type  { return e.Type }

func (*IntLitExpr) exprNode()  {}
func (*CharLitExpr) exprNode() {}
func (*VnameExpr) exprNode()   {}
func (*UnaryExpr) exprNode()   {}
func (*BinaryExpr) exprNode()  {}
func (*CallExpr) exprNode()    {}
func (*IfExpr) exprNode()      {}
func (*LetExpr) exprNode()     {}
func (*ArrayExpr) exprNode()   {}
func (*RecordExpr) exprNode()  {}

// Vnames denote storage locations (or constants used as values).

type Vname interface {
	Position() report.Pos
	VnameType() *types.Type
	vnameNode()
}

type SimpleVname struct {
	Name   string
	Pos    report.Pos
	Type   *types.Type
	Entity *scope.Entity
}

type DotVname struct {
	Rec    Vname
	Field  string
	Pos    report.Pos
	Type   *types.Type
	Offset int // word offset of the field within the record
}

type SubscriptVname struct {
	Arr   Vname
	Index Expression
	Pos   report.Pos
	Type  *types.Type
}

func (v *SimpleVname) Position() report.Pos    { return v.Pos }
func (v *DotVname) Position() report.Pos       { return v.Pos }
func (v *SubscriptVname) Position() report.Pos { return v.Pos }

func (v *SimpleVname) VnameType() *types.Type    { return v.Type }
func (v *DotVname) VnameType() *types.Type       { return v.Type }
func (v *SubscriptVname) VnameType() *types.Type { return v.Type }

func (*SimpleVname) vnameNode()    {}
func (*DotVname) vnameNode()       {}
func (*SubscriptVname) vnameNode() {}

// Root returns the simple vname at the base of a selection chain.
func Root(v Vname) *SimpleVname {
	for {
		switch n := v.(type) {
		case *SimpleVname:
			return n
		case *DotVname:
			v = n.Rec
		case *SubscriptVname:
			v = n.Arr
		default:
			return nil
		}
	}
}

// Type denoters.

type TypeDenoter interface {
	Position() report.Pos
	denoterNode()
}

type NamedTypeDenoter struct {
	Name string
	Pos  report.Pos
}

type ArrayTypeDenoter struct {
	Count int
	Elem  TypeDenoter
	Pos   report.Pos
}

type FieldDenoter struct {
	Name    string
	Denoter TypeDenoter
	Pos     report.Pos
}

type RecordTypeDenoter struct {
	Fields []FieldDenoter
	Pos    report.Pos
}

func (d *NamedTypeDenoter) Position() report.Pos  { return d.Pos }
func (d *ArrayTypeDenoter) Position() report.Pos  { return d.Pos }
func (d *RecordTypeDenoter) Position() report.Pos { return d.Pos }

func (*NamedTypeDenoter) denoterNode()  {}
func (*ArrayTypeDenoter) denoterNode()  {}
func (*RecordTypeDenoter) denoterNode() {}
