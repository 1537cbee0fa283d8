// Package encoder turns a checked (and optionally folded) AST into an
// object program for the abstract machine. The encoder tracks the
// current frame depth (declared words plus operand words already
// pushed) while emitting and assigns each variable and stored constant
// its displacement from that count, so declarations elaborated in the
// middle of an expression land where the run-time stack actually puts
// them. Forward jumps and calls to routines that are not yet encoded
// are recorded as pending patches and resolved once their target
// position is known; finishing with an unresolved patch is an internal
// error, never a user diagnostic.
package encoder

import (
	"fmt"

	"triangle/ast"
	"triangle/machine"
	"triangle/scope"
)

type encoder struct {
	code    []machine.Instruction
	pending map[int]bool            // jump instructions awaiting a target
	entries map[*scope.Entity]int   // routine entity -> entry address
	waiting map[*scope.Entity][]int // call sites awaiting a routine entry
	err     error
}

// Encode produces the instruction sequence and entry address for prog.
// The returned error signals an encoder invariant violation; it is
// never a diagnostic about the source program.
func Encode(prog *ast.Program) (*machine.Program, error) {
	enc := &encoder{
		pending: map[int]bool{},
		entries: map[*scope.Entity]int{},
		waiting: map[*scope.Entity][]int{},
	}
	entry := enc.encodeProgram(prog)
	enc.emit(machine.Halt, 0, 0, 0)
	if enc.err != nil {
		return nil, enc.err
	}
	if len(enc.pending) > 0 {
		return nil, fmt.Errorf("encoder: %d unresolved jump targets", len(enc.pending))
	}
	if len(enc.waiting) > 0 {
		return nil, fmt.Errorf("encoder: %d calls to routines that were never encoded", len(enc.waiting))
	}
	return &machine.Program{Code: enc.code, Entry: entry}, nil
}

func (enc *encoder) fail(format string, args ...interface{}) {
	if enc.err == nil {
		enc.err = fmt.Errorf("encoder: "+format, args...)
	}
}

func (enc *encoder) emit(op machine.Opcode, r machine.Register, n, d int) int {
	enc.code = append(enc.code, machine.Instruction{Op: op, R: r, N: n, D: d})
	return len(enc.code) - 1
}

func (enc *encoder) emitPendingJump() int {
	idx := enc.emit(machine.Jump, 0, 0, 0)
	enc.pending[idx] = true
	return idx
}

func (enc *encoder) emitPendingJumpif(test int) int {
	idx := enc.emit(machine.Jumpif, 0, test, 0)
	enc.pending[idx] = true
	return idx
}

func (enc *encoder) patch(idx int) {
	if !enc.pending[idx] {
		enc.fail("patch of instruction %d which is not pending", idx)
		return
	}
	enc.code[idx].D = len(enc.code)
	delete(enc.pending, idx)
}

// setEntry fixes a routine's entry address and resolves every call
// emitted before the routine body was reached.
func (enc *encoder) setEntry(ent *scope.Entity) {
	entry := len(enc.code)
	enc.entries[ent] = entry
	for _, idx := range enc.waiting[ent] {
		enc.code[idx].D = entry
	}
	delete(enc.waiting, ent)
}

// displayRegister picks the register addressing the frame of an entity
// declared at objLevel, seen from code running at curLevel.
func (enc *encoder) displayRegister(curLevel, objLevel int) machine.Register {
	switch {
	case objLevel == 0:
		return machine.SB
	case curLevel == objLevel:
		return machine.LB
	case curLevel-objLevel <= 6:
		return machine.L1 + machine.Register(curLevel-objLevel-1)
	default:
		enc.fail("frame access across more than 6 static levels")
		return machine.LB
	}
}

func (enc *encoder) encodeProgram(prog *ast.Program) int {
	// The entry address is the first instruction of the top-level body,
	// after any top-level declarations.
	if let, ok := prog.Body.(*ast.LetCmd); ok {
		size := enc.encodeDeclarations(let.Decls, 0, 0)
		entry := len(enc.code)
		enc.encodeCommand(let.Body, 0, size)
		return entry
	}
	enc.encodeCommand(prog.Body, 0, 0)
	return 0
}

// Declarations. depth is the frame word where the declaration's
// storage begins; the returned size is the number of words the
// declarations consumed, to be released when their scope exits.

func (enc *encoder) encodeDeclarations(decls []ast.Declaration, level, depth int) int {
	size := 0
	for _, d := range decls {
		size += enc.encodeDeclaration(d, level, depth+size)
	}
	return size
}

func (enc *encoder) encodeDeclaration(d ast.Declaration, level, depth int) int {
	switch n := d.(type) {
	case *ast.ConstDecl:
		if n.Entity.Known {
			return 0
		}
		// The evaluated value lands at the current frame depth, which
		// may exceed the checker's declaration-time displacement when
		// operand words of an enclosing expression are pending below.
		enc.encodeExpression(n.Value, level, depth)
		n.Entity.Disp = depth
		return n.Entity.Size
	case *ast.VarDecl:
		if n.Entity.Size > 0 {
			enc.emit(machine.Push, 0, 0, n.Entity.Size)
		}
		n.Entity.Disp = depth
		return n.Entity.Size
	case *ast.TypeDecl:
		return 0
	case *ast.ProcDecl:
		skip := enc.emitPendingJump()
		enc.setEntry(n.Entity)
		enc.encodeCommand(n.Body, level+1, n.Entity.ArgWords)
		enc.emit(machine.Return, 0, 0, n.Entity.ArgWords)
		enc.patch(skip)
		return 0
	case *ast.FuncDecl:
		skip := enc.emitPendingJump()
		enc.setEntry(n.Entity)
		enc.encodeExpression(n.Body, level+1, n.Entity.ArgWords)
		enc.emit(machine.Return, 0, n.Entity.Type.SizeWords(), n.Entity.ArgWords)
		enc.patch(skip)
		return 0
	}
	return 0
}

// Commands. depth is the number of frame words below the stack top
// when the command starts; commands leave it unchanged.

func (enc *encoder) encodeCommand(cmd ast.Command, level, depth int) {
	switch n := cmd.(type) {
	case *ast.AssignCmd:
		enc.encodeExpression(n.Value, level, depth)
		enc.encodeVnameStore(n.Target, level, depth+n.Value.ResultType().SizeWords())
	case *ast.CallCmd:
		enc.encodeCall(n.Entity, n.Args, level, depth)
	case *ast.SequentialCmd:
		for _, sub := range n.List {
			enc.encodeCommand(sub, level, depth)
		}
	case *ast.LetCmd:
		size := enc.encodeDeclarations(n.Decls, level, depth)
		enc.encodeCommand(n.Body, level, depth+size)
		if size > 0 {
			enc.emit(machine.Pop, 0, 0, size)
		}
	case *ast.IfCmd:
		enc.encodeExpression(n.Cond, level, depth)
		skipThen := enc.emitPendingJumpif(0)
		enc.encodeCommand(n.Then, level, depth)
		skipElse := enc.emitPendingJump()
		enc.patch(skipThen)
		enc.encodeCommand(n.Else, level, depth)
		enc.patch(skipElse)
	case *ast.WhileCmd:
		// Test at the bottom: one forward jump to the condition, then a
		// conditional backward jump to the body.
		toCond := enc.emitPendingJump()
		body := len(enc.code)
		enc.encodeCommand(n.Body, level, depth)
		enc.patch(toCond)
		enc.encodeExpression(n.Cond, level, depth)
		enc.emit(machine.Jumpif, 0, 1, body)
	case *ast.RepeatCmd:
		body := len(enc.code)
		enc.encodeCommand(n.Body, level, depth)
		enc.encodeExpression(n.Cond, level, depth)
		enc.emit(machine.Jumpif, 0, 0, body)
	case *ast.EmptyCmd:
	}
}

// Expressions leave their value on top of the operand stack. depth is
// the frame word the value will start at.

func (enc *encoder) encodeExpression(e ast.Expression, level, depth int) {
	switch n := e.(type) {
	case *ast.IntLitExpr:
		enc.emit(machine.Loadl, 0, 0, n.Value)
	case *ast.CharLitExpr:
		enc.emit(machine.Loadl, 0, 0, int(n.Value))
	case *ast.VnameExpr:
		enc.encodeVnameFetch(n.V, level, depth)
	case *ast.UnaryExpr:
		enc.encodeExpression(n.Operand, level, depth)
		enc.emit(machine.Call, machine.PB, n.Entity.ArgWords, n.Entity.Prim)
	case *ast.BinaryExpr:
		enc.encodeExpression(n.Left, level, depth)
		enc.encodeExpression(n.Right, level, depth+n.Left.ResultType().SizeWords())
		if n.Entity.Prim == machine.PrimEq || n.Entity.Prim == machine.PrimNe {
			// Polymorphic comparison: the operand size rides on the stack.
			enc.emit(machine.Loadl, 0, 0, n.Left.ResultType().SizeWords())
		}
		enc.emit(machine.Call, machine.PB, n.Entity.ArgWords, n.Entity.Prim)
	case *ast.CallExpr:
		enc.encodeCall(n.Entity, n.Args, level, depth)
	case *ast.IfExpr:
		enc.encodeExpression(n.Cond, level, depth)
		skipThen := enc.emitPendingJumpif(0)
		enc.encodeExpression(n.Then, level, depth)
		skipElse := enc.emitPendingJump()
		enc.patch(skipThen)
		enc.encodeExpression(n.Else, level, depth)
		enc.patch(skipElse)
	case *ast.LetExpr:
		size := enc.encodeDeclarations(n.Decls, level, depth)
		enc.encodeExpression(n.Body, level, depth+size)
		if size > 0 {
			enc.emit(machine.Pop, 0, n.Type.SizeWords(), size)
		}
	case *ast.ArrayExpr:
		d := depth
		for _, elem := range n.Elems {
			enc.encodeExpression(elem, level, d)
			d += elem.ResultType().SizeWords()
		}
	case *ast.RecordExpr:
		d := depth
		for _, f := range n.Fields {
			enc.encodeExpression(f.Value, level, d)
			d += f.Value.ResultType().SizeWords()
		}
	}
}

// Calls.

func (enc *encoder) encodeCall(ent *scope.Entity, args []*ast.Actual, level, depth int) {
	d := depth
	for i, arg := range args {
		if ent.Params[i].ByRef {
			enc.encodeVnameAddress(arg.V, level, d)
			d++
		} else {
			enc.encodeExpression(arg.E, level, d)
			d += ent.Params[i].Type.SizeWords()
		}
	}
	if ent.Kind == scope.Primitive {
		enc.emit(machine.Call, machine.PB, ent.ArgWords, ent.Prim)
		return
	}
	// The static link register addresses the frame of the routine's
	// declaring level so the callee can reach enclosing locals.
	reg := enc.displayRegister(level, ent.Level)
	if entry, ok := enc.entries[ent]; ok {
		enc.emit(machine.Call, reg, ent.ArgWords, entry)
		return
	}
	// Forward call within a mutually recursive group: patch the entry
	// once the routine body is encoded.
	idx := enc.emit(machine.Call, reg, ent.ArgWords, 0)
	enc.waiting[ent] = append(enc.waiting[ent], idx)
}

// Vname access. A vname resolves to its root entity plus a static word
// offset; only a runtime subscript forces the address onto the stack.

type access struct {
	ent     *scope.Entity
	offset  int
	onStack bool
}

func (enc *encoder) analyzeVname(v ast.Vname, level, depth int) access {
	switch n := v.(type) {
	case *ast.SimpleVname:
		return access{ent: n.Entity}
	case *ast.DotVname:
		a := enc.analyzeVname(n.Rec, level, depth)
		a.offset += n.Offset
		return a
	case *ast.SubscriptVname:
		a := enc.analyzeVname(n.Arr, level, depth)
		elemSize := n.Type.SizeWords()
		if lit, ok := n.Index.(*ast.IntLitExpr); ok {
			a.offset += lit.Value * elemSize
			return a
		}
		a = enc.materialize(a, level)
		enc.encodeExpression(n.Index, level, depth+1)
		if elemSize != 1 {
			enc.emit(machine.Loadl, 0, 0, elemSize)
			enc.emit(machine.Call, machine.PB, 2, machine.PrimMult)
		}
		enc.emit(machine.Call, machine.PB, 2, machine.PrimAdd)
		return a
	}
	return access{ent: errorAccessEntity}
}

var errorAccessEntity = &scope.Entity{Name: "<error>", Kind: scope.Variable, Size: 1}

// materialize puts the access's address on the operand stack.
func (enc *encoder) materialize(a access, level int) access {
	switch {
	case a.onStack:
		if a.offset != 0 {
			enc.emit(machine.Loadl, 0, 0, a.offset)
			enc.emit(machine.Call, machine.PB, 2, machine.PrimAdd)
		}
	case a.ent.ByRef:
		reg := enc.displayRegister(level, a.ent.Level)
		enc.emit(machine.Load, reg, 1, a.ent.Disp)
		if a.offset != 0 {
			enc.emit(machine.Loadl, 0, 0, a.offset)
			enc.emit(machine.Call, machine.PB, 2, machine.PrimAdd)
		}
	default:
		reg := enc.displayRegister(level, a.ent.Level)
		enc.emit(machine.Loada, reg, 0, a.ent.Disp+a.offset)
	}
	return access{onStack: true}
}

func (enc *encoder) encodeVnameFetch(v ast.Vname, level, depth int) {
	if sv, ok := v.(*ast.SimpleVname); ok && sv.Entity.Kind == scope.Constant && sv.Entity.Known {
		enc.emit(machine.Loadl, 0, 0, sv.Entity.Value)
		return
	}
	size := v.VnameType().SizeWords()
	a := enc.analyzeVname(v, level, depth)
	if a.onStack || a.ent.ByRef {
		enc.materialize(a, level)
		enc.emit(machine.Loadi, 0, size, 0)
		return
	}
	reg := enc.displayRegister(level, a.ent.Level)
	enc.emit(machine.Load, reg, size, a.ent.Disp+a.offset)
}

func (enc *encoder) encodeVnameStore(v ast.Vname, level, depth int) {
	size := v.VnameType().SizeWords()
	a := enc.analyzeVname(v, level, depth)
	if a.onStack || a.ent.ByRef {
		enc.materialize(a, level)
		enc.emit(machine.Storei, 0, size, 0)
		return
	}
	reg := enc.displayRegister(level, a.ent.Level)
	enc.emit(machine.Store, reg, size, a.ent.Disp+a.offset)
}

func (enc *encoder) encodeVnameAddress(v ast.Vname, level, depth int) {
	a := enc.analyzeVname(v, level, depth)
	enc.materialize(a, level)
}
