// Package checker performs contextual analysis: one recursive
// traversal over the AST that resolves identifiers against the scope
// environment, checks types, allocates runtime addresses and annotates
// the tree for the encoder. Every fault is reported once and checking
// continues with the error type and entity so independent faults in
// the same program still surface in a single run.
package checker

import (
	"triangle/ast"
	"triangle/report"
	"triangle/scope"
	"triangle/types"
)

// errorEntity stands in for the entity of a name that failed to
// resolve. It is a well-formed variable of the error type so later
// checks pass quietly instead of cascading.
var errorEntity = &scope.Entity{Name: "<error>", Kind: scope.Variable, Type: types.ErrorType, Size: 1}

type checker struct {
	table    *scope.Table
	reporter *report.Reporter
}

// Check analyses prog, reporting diagnostics through reporter and
// annotating the tree in place. The scope environment is created here
// and discarded when checking completes; only the entity records the
// AST now points at survive.
func Check(prog *ast.Program, reporter *report.Reporter) {
	c := &checker{table: scope.NewTable(), reporter: reporter}
	c.table.EnterBlock()
	c.checkCommand(prog.Body)
	c.table.Exit()
}

func (c *checker) report(pos report.Pos, format string, args ...interface{}) {
	c.reporter.Report(pos, format, args...)
}

func (c *checker) resolve(name string, pos report.Pos) *scope.Entity {
	if ent := c.table.Resolve(name); ent != nil {
		return ent
	}
	c.report(pos, "undeclared identifier %q", name)
	return errorEntity
}

func (c *checker) declare(ent *scope.Entity, pos report.Pos) {
	if err := c.table.Declare(ent); err != nil {
		c.report(pos, "%s", err)
	}
}

// Commands.

func (c *checker) checkCommand(cmd ast.Command) {
	switch n := cmd.(type) {
	case *ast.AssignCmd:
		targetType := c.checkVname(n.Target)
		valueType := c.checkExpression(n.Value)
		c.requireStorage(n.Target)
		if !types.Assignable(targetType, valueType) {
			c.report(n.Value.Position(), "cannot assign a value of type %s to %s", valueType, targetType)
		}
	case *ast.CallCmd:
		ent := c.resolve(n.Name, n.Pos)
		n.Entity = ent
		if ent != errorEntity && !isProcedure(ent) {
			c.report(n.Pos, "%q is not a procedure", n.Name)
			n.Entity = errorEntity
			c.checkActuals(n.Name, errorEntity, n.Args, n.Pos)
			return
		}
		c.checkActuals(n.Name, ent, n.Args, n.Pos)
	case *ast.SequentialCmd:
		for _, sub := range n.List {
			c.checkCommand(sub)
		}
	case *ast.LetCmd:
		c.table.EnterBlock()
		c.checkDeclarations(n.Decls)
		c.checkCommand(n.Body)
		c.table.Exit()
	case *ast.IfCmd:
		c.requireBool(n.Cond)
		c.checkCommand(n.Then)
		c.checkCommand(n.Else)
	case *ast.WhileCmd:
		c.requireBool(n.Cond)
		c.checkCommand(n.Body)
	case *ast.RepeatCmd:
		c.checkCommand(n.Body)
		c.requireBool(n.Cond)
	case *ast.EmptyCmd:
	}
}

func (c *checker) requireBool(cond ast.Expression) {
	t := c.checkExpression(cond)
	if t.Kind != types.BoolKind && t.Kind != types.ErrorKind {
		c.report(cond.Position(), "condition must be of type Boolean, got %s", t)
	}
}

func isProcedure(ent *scope.Entity) bool {
	return ent.Kind == scope.Procedure || (ent.Kind == scope.Primitive && ent.Type == nil)
}

func isFunction(ent *scope.Entity) bool {
	return ent.Kind == scope.Function || (ent.Kind == scope.Primitive && ent.Type != nil)
}

// Declarations.

// checkDeclarations processes a declaration group in order.
// Consecutive procedure and function declarations form a mutually
// recursive subgroup: their signatures are declared first so sibling
// bodies can call each other, then every body is checked against the
// completed signatures. Non-routine declarations are visible only to
// later siblings.
func (c *checker) checkDeclarations(decls []ast.Declaration) {
	i := 0
	for i < len(decls) {
		if !isRoutineDecl(decls[i]) {
			c.checkSingleDeclaration(decls[i])
			i++
			continue
		}
		j := i
		for j < len(decls) && isRoutineDecl(decls[j]) {
			j++
		}
		group := decls[i:j]
		for _, d := range group {
			c.declareRoutine(d)
		}
		for _, d := range group {
			c.checkRoutineBody(d)
		}
		i = j
	}
}

func isRoutineDecl(d ast.Declaration) bool {
	switch d.(type) {
	case *ast.ProcDecl, *ast.FuncDecl:
		return true
	}
	return false
}

func (c *checker) checkSingleDeclaration(d ast.Declaration) {
	switch n := d.(type) {
	case *ast.ConstDecl:
		t := c.checkExpression(n.Value)
		ent := &scope.Entity{Name: n.Name, Kind: scope.Constant, Type: t}
		switch lit := n.Value.(type) {
		case *ast.IntLitExpr:
			ent.Known = true
			ent.Value = lit.Value
		case *ast.CharLitExpr:
			ent.Known = true
			ent.Value = int(lit.Value)
		default:
			ent.Size = t.SizeWords()
		}
		c.declare(ent, n.Pos)
		n.Entity = ent
	case *ast.VarDecl:
		t := c.resolveDenoter(n.Denoter)
		ent := &scope.Entity{Name: n.Name, Kind: scope.Variable, Type: t, Size: t.SizeWords()}
		c.declare(ent, n.Pos)
		n.Entity = ent
	case *ast.TypeDecl:
		t := c.resolveDenoter(n.Denoter)
		ent := &scope.Entity{Name: n.Name, Kind: scope.TypeEntity, Type: t}
		c.declare(ent, n.Pos)
		n.Entity = ent
	default:
		panic("checker: routine declaration outside a group")
	}
}

// declareRoutine is the first half-pass over a routine group: the
// signature is resolved and declared, the body untouched.
func (c *checker) declareRoutine(d ast.Declaration) {
	switch n := d.(type) {
	case *ast.ProcDecl:
		ent := &scope.Entity{Name: n.Name, Kind: scope.Procedure, Params: c.resolveFormals(n.Formals)}
		ent.ArgWords = argWords(ent.Params)
		c.declare(ent, n.Pos)
		n.Entity = ent
	case *ast.FuncDecl:
		ent := &scope.Entity{
			Name:   n.Name,
			Kind:   scope.Function,
			Type:   c.resolveDenoter(n.Result),
			Params: c.resolveFormals(n.Formals),
		}
		ent.ArgWords = argWords(ent.Params)
		c.declare(ent, n.Pos)
		n.Entity = ent
	}
}

func (c *checker) resolveFormals(formals []*ast.Formal) []scope.Param {
	params := make([]scope.Param, len(formals))
	for i, f := range formals {
		params[i] = scope.Param{Type: c.resolveDenoter(f.Denoter), ByRef: f.ByRef}
	}
	return params
}

func argWords(params []scope.Param) int {
	words := 0
	for _, p := range params {
		if p.ByRef {
			words++
		} else {
			words += p.Type.SizeWords()
		}
	}
	return words
}

// checkRoutineBody is the second half-pass: parameters are declared in
// a fresh routine scope and the body is checked against the group's
// completed signatures.
func (c *checker) checkRoutineBody(d ast.Declaration) {
	switch n := d.(type) {
	case *ast.ProcDecl:
		c.table.EnterRoutine()
		c.declareFormals(n.Formals, n.Entity.Params)
		c.checkCommand(n.Body)
		c.table.Exit()
	case *ast.FuncDecl:
		c.table.EnterRoutine()
		c.declareFormals(n.Formals, n.Entity.Params)
		bodyType := c.checkExpression(n.Body)
		if !types.Assignable(n.Entity.Type, bodyType) {
			c.report(n.Body.Position(), "function %q returns %s, its body has type %s", n.Name, n.Entity.Type, bodyType)
		}
		c.table.Exit()
	}
}

func (c *checker) declareFormals(formals []*ast.Formal, params []scope.Param) {
	for i, f := range formals {
		size := params[i].Type.SizeWords()
		if f.ByRef {
			size = 1
		}
		ent := &scope.Entity{Name: f.Name, Kind: scope.Variable, Type: params[i].Type, ByRef: f.ByRef, Size: size}
		c.declare(ent, f.Pos)
		f.Entity = ent
	}
}

func (c *checker) resolveDenoter(d ast.TypeDenoter) *types.Type {
	switch n := d.(type) {
	case *ast.NamedTypeDenoter:
		ent := c.resolve(n.Name, n.Pos)
		if ent == errorEntity {
			return types.ErrorType
		}
		if ent.Kind != scope.TypeEntity {
			c.report(n.Pos, "%q does not denote a type", n.Name)
			return types.ErrorType
		}
		return ent.Type
	case *ast.ArrayTypeDenoter:
		elem := c.resolveDenoter(n.Elem)
		if n.Count <= 0 {
			c.report(n.Pos, "array size must be positive")
			return types.ErrorType
		}
		return types.NewArray(n.Count, elem)
	case *ast.RecordTypeDenoter:
		fields := make([]types.Field, 0, len(n.Fields))
		seen := map[string]bool{}
		for _, f := range n.Fields {
			if seen[f.Name] {
				c.report(f.Pos, "duplicate record field %q", f.Name)
				continue
			}
			seen[f.Name] = true
			fields = append(fields, types.Field{Name: f.Name, Type: c.resolveDenoter(f.Denoter)})
		}
		return types.NewRecord(fields)
	}
	return types.ErrorType
}

// Expressions.

func (c *checker) checkExpression(e ast.Expression) *types.Type {
	switch n := e.(type) {
	case *ast.IntLitExpr:
		if n.Value > scope.MaxInt {
			c.report(n.Pos, "integer literal exceeds maxint")
		}
		n.Type = types.IntType
	case *ast.CharLitExpr:
		n.Type = types.CharType
	case *ast.VnameExpr:
		n.Type = c.checkVname(n.V)
	case *ast.UnaryExpr:
		operandType := c.checkExpression(n.Operand)
		ent := scope.UnaryOperator(n.Op)
		if ent == nil {
			c.report(n.Pos, "%q is not a unary operator", n.Op)
			n.Entity = errorEntity
			n.Type = types.ErrorType
			break
		}
		n.Entity = ent
		if !types.Equivalent(ent.Params[0].Type, operandType) {
			c.report(n.Operand.Position(), "operand of %q must be %s, got %s", n.Op, ent.Params[0].Type, operandType)
		}
		n.Type = ent.Type
	case *ast.BinaryExpr:
		leftType := c.checkExpression(n.Left)
		rightType := c.checkExpression(n.Right)
		ent := scope.BinaryOperator(n.Op)
		if ent == nil {
			c.report(n.Pos, "%q is not a binary operator", n.Op)
			n.Entity = errorEntity
			n.Type = types.ErrorType
			break
		}
		n.Entity = ent
		if ent.Params[0].Type.Kind == types.AnyKind {
			// = and \= compare two values of one equivalent type.
			if !types.Equivalent(leftType, rightType) {
				c.report(n.Pos, "operands of %q must have equivalent types, got %s and %s", n.Op, leftType, rightType)
			}
		} else {
			if !types.Equivalent(ent.Params[0].Type, leftType) {
				c.report(n.Left.Position(), "left operand of %q must be %s, got %s", n.Op, ent.Params[0].Type, leftType)
			}
			if !types.Equivalent(ent.Params[1].Type, rightType) {
				c.report(n.Right.Position(), "right operand of %q must be %s, got %s", n.Op, ent.Params[1].Type, rightType)
			}
		}
		n.Type = ent.Type
	case *ast.CallExpr:
		ent := c.resolve(n.Name, n.Pos)
		n.Entity = ent
		if ent != errorEntity && !isFunction(ent) {
			c.report(n.Pos, "%q is not a function", n.Name)
			n.Entity = errorEntity
			ent = errorEntity
		}
		c.checkActuals(n.Name, ent, n.Args, n.Pos)
		if ent == errorEntity {
			n.Type = types.ErrorType
		} else {
			n.Type = ent.Type
		}
	case *ast.IfExpr:
		c.requireBool(n.Cond)
		thenType := c.checkExpression(n.Then)
		elseType := c.checkExpression(n.Else)
		if !types.Equivalent(thenType, elseType) {
			c.report(n.Pos, "if-expression branches have types %s and %s", thenType, elseType)
			n.Type = types.ErrorType
		} else {
			n.Type = thenType
		}
	case *ast.LetExpr:
		c.table.EnterBlock()
		c.checkDeclarations(n.Decls)
		n.Type = c.checkExpression(n.Body)
		c.table.Exit()
	case *ast.ArrayExpr:
		elemType := c.checkExpression(n.Elems[0])
		for _, elem := range n.Elems[1:] {
			t := c.checkExpression(elem)
			if !types.Equivalent(elemType, t) {
				c.report(elem.Position(), "array elements must all have type %s, got %s", elemType, t)
			}
		}
		n.Type = types.NewArray(len(n.Elems), elemType)
	case *ast.RecordExpr:
		fields := make([]types.Field, 0, len(n.Fields))
		seen := map[string]bool{}
		for _, f := range n.Fields {
			t := c.checkExpression(f.Value)
			if seen[f.Name] {
				c.report(f.Pos, "duplicate record field %q", f.Name)
				continue
			}
			seen[f.Name] = true
			fields = append(fields, types.Field{Name: f.Name, Type: t})
		}
		n.Type = types.NewRecord(fields)
	}
	return e.ResultType()
}

// Vnames.

func (c *checker) checkVname(v ast.Vname) *types.Type {
	switch n := v.(type) {
	case *ast.SimpleVname:
		ent := c.resolve(n.Name, n.Pos)
		if ent != errorEntity && ent.Kind != scope.Constant && ent.Kind != scope.Variable {
			c.report(n.Pos, "%q does not denote a value", n.Name)
			ent = errorEntity
		}
		n.Entity = ent
		n.Type = ent.Type
	case *ast.DotVname:
		recType := c.checkVname(n.Rec)
		switch {
		case recType.Kind == types.ErrorKind:
			n.Type = types.ErrorType
		case recType.Kind != types.RecordKind:
			c.report(n.Pos, "selection requires a record, got %s", recType)
			n.Type = types.ErrorType
		default:
			field, ok := recType.Field(n.Field)
			if !ok {
				c.report(n.Pos, "record has no field %q", n.Field)
				n.Type = types.ErrorType
				break
			}
			n.Offset = field.Offset
			n.Type = field.Type
		}
	case *ast.SubscriptVname:
		arrType := c.checkVname(n.Arr)
		indexType := c.checkExpression(n.Index)
		if indexType.Kind != types.IntKind && indexType.Kind != types.ErrorKind {
			c.report(n.Index.Position(), "array index must be of type Integer, got %s", indexType)
		}
		switch {
		case arrType.Kind == types.ErrorKind:
			n.Type = types.ErrorType
		case arrType.Kind != types.ArrayKind:
			c.report(n.Pos, "subscripting requires an array, got %s", arrType)
			n.Type = types.ErrorType
		default:
			n.Type = arrType.Elem
		}
	}
	return v.VnameType()
}

// requireStorage reports when v does not denote assignable storage.
// The root must be a variable; constants are values, not locations.
func (c *checker) requireStorage(v ast.Vname) {
	root := ast.Root(v)
	if root == nil || root.Entity == nil {
		return
	}
	if root.Entity.Kind == scope.Constant {
		c.report(v.Position(), "%q denotes a constant, not assignable storage", root.Name)
	}
}

// Actual parameters.

func (c *checker) checkActuals(name string, ent *scope.Entity, args []*ast.Actual, pos report.Pos) {
	if ent == errorEntity {
		c.checkActualsLenient(args)
		return
	}
	if len(args) != len(ent.Params) {
		c.report(pos, "routine %q expects %d arguments, got %d", name, len(ent.Params), len(args))
		c.checkActualsLenient(args)
		return
	}
	for i, arg := range args {
		param := ent.Params[i]
		if param.ByRef {
			if !arg.ByRef {
				c.report(arg.Pos, "argument %d of %q must be a var actual denoting storage", i+1, name)
				c.checkExpression(arg.E)
				continue
			}
			t := c.checkVname(arg.V)
			c.requireStorage(arg.V)
			if !types.Assignable(param.Type, t) {
				c.report(arg.Pos, "argument %d of %q must have type %s, got %s", i+1, name, param.Type, t)
			}
			continue
		}
		if arg.ByRef {
			c.report(arg.Pos, "argument %d of %q is passed by value, not var", i+1, name)
			c.checkVname(arg.V)
			continue
		}
		t := c.checkExpression(arg.E)
		if !types.Assignable(param.Type, t) {
			c.report(arg.Pos, "argument %d of %q must have type %s, got %s", i+1, name, param.Type, t)
		}
	}
}

// checkActualsLenient types the arguments without a signature to check
// against, so faults inside them are still found.
func (c *checker) checkActualsLenient(args []*ast.Actual) {
	for _, arg := range args {
		if arg.ByRef {
			c.checkVname(arg.V)
		} else {
			c.checkExpression(arg.E)
		}
	}
}
