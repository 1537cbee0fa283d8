// Package folder rewrites integer operator applications whose operands
// are known at compile time into literal expressions. It runs between
// checking and encoding, bottom-up, so folded subexpressions feed the
// folds above them. Division and modulo by a literal zero are left
// alone for the machine to trap at run time.
package folder

import (
	"triangle/ast"
	"triangle/scope"
	"triangle/types"
)

// Fold rewrites prog in place. The program must already be checked:
// the folder relies on expression types and resolved entities.
func Fold(prog *ast.Program) {
	foldCommand(prog.Body)
}

func foldCommand(cmd ast.Command) {
	switch n := cmd.(type) {
	case *ast.AssignCmd:
		foldVname(n.Target)
		n.Value = foldExpression(n.Value)
	case *ast.CallCmd:
		foldActuals(n.Args)
	case *ast.SequentialCmd:
		for _, sub := range n.List {
			foldCommand(sub)
		}
	case *ast.LetCmd:
		foldDeclarations(n.Decls)
		foldCommand(n.Body)
	case *ast.IfCmd:
		n.Cond = foldExpression(n.Cond)
		foldCommand(n.Then)
		foldCommand(n.Else)
	case *ast.WhileCmd:
		n.Cond = foldExpression(n.Cond)
		foldCommand(n.Body)
	case *ast.RepeatCmd:
		foldCommand(n.Body)
		n.Cond = foldExpression(n.Cond)
	case *ast.EmptyCmd:
	}
}

func foldDeclarations(decls []ast.Declaration) {
	for _, d := range decls {
		switch n := d.(type) {
		case *ast.ConstDecl:
			n.Value = foldExpression(n.Value)
		case *ast.ProcDecl:
			foldCommand(n.Body)
		case *ast.FuncDecl:
			n.Body = foldExpression(n.Body)
		}
	}
}

func foldActuals(args []*ast.Actual) {
	for _, arg := range args {
		if arg.ByRef {
			foldVname(arg.V)
		} else {
			arg.E = foldExpression(arg.E)
		}
	}
}

func foldVname(v ast.Vname) {
	switch n := v.(type) {
	case *ast.DotVname:
		foldVname(n.Rec)
	case *ast.SubscriptVname:
		foldVname(n.Arr)
		n.Index = foldExpression(n.Index)
	}
}

func foldExpression(e ast.Expression) ast.Expression {
	switch n := e.(type) {
	case *ast.UnaryExpr:
		n.Operand = foldExpression(n.Operand)
		return foldUnary(n)
	case *ast.BinaryExpr:
		n.Left = foldExpression(n.Left)
		n.Right = foldExpression(n.Right)
		return foldBinary(n)
	case *ast.VnameExpr:
		foldVname(n.V)
	case *ast.CallExpr:
		foldActuals(n.Args)
	case *ast.IfExpr:
		n.Cond = foldExpression(n.Cond)
		n.Then = foldExpression(n.Then)
		n.Else = foldExpression(n.Else)
	case *ast.LetExpr:
		foldDeclarations(n.Decls)
		n.Body = foldExpression(n.Body)
	case *ast.ArrayExpr:
		for i := range n.Elems {
			n.Elems[i] = foldExpression(n.Elems[i])
		}
	case *ast.RecordExpr:
		for i := range n.Fields {
			n.Fields[i].Value = foldExpression(n.Fields[i].Value)
		}
	}
	return e
}

func foldUnary(e *ast.UnaryExpr) ast.Expression {
	if e.Type == nil || e.Type.Kind != types.IntKind {
		return e
	}
	v, ok := knownInt(e.Operand)
	if !ok || e.Op != "-" {
		return e
	}
	return &ast.IntLitExpr{Value: -v, Pos: e.Pos, Type: e.Type}
}

func foldBinary(e *ast.BinaryExpr) ast.Expression {
	if e.Type == nil || e.Type.Kind != types.IntKind {
		return e
	}
	lv, lok := knownInt(e.Left)
	rv, rok := knownInt(e.Right)
	if !lok || !rok {
		return e
	}
	var v int
	switch e.Op {
	case "+":
		v = lv + rv
	case "-":
		v = lv - rv
	case "*":
		v = lv * rv
	case "/":
		if rv == 0 {
			return e
		}
		v = lv / rv
	case "//":
		if rv == 0 {
			return e
		}
		v = lv % rv
	default:
		return e
	}
	return &ast.IntLitExpr{Value: v, Pos: e.Pos, Type: e.Type}
}

// knownInt reports the compile-time value of an integer expression:
// either a literal or a reference to a constant bound to a literal.
func knownInt(e ast.Expression) (int, bool) {
	switch n := e.(type) {
	case *ast.IntLitExpr:
		return n.Value, true
	case *ast.VnameExpr:
		sv, ok := n.V.(*ast.SimpleVname)
		if !ok || sv.Entity == nil {
			return 0, false
		}
		ent := sv.Entity
		if ent.Kind == scope.Constant && ent.Known && ent.Type != nil && ent.Type.Kind == types.IntKind {
			return ent.Value, true
		}
	}
	return 0, false
}
