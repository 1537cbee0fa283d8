package triangle

// A small interpreter for object programs, used to check end-to-end
// behavior of compiled code. It models the frame layout the encoder
// assumes: a frame's addressable words start at its base with the
// arguments first, and the call linkage lives beside the stack in
// frame records instead of occupying addressable words.

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/stretchr/testify/assert"
	"testing"

	"triangle/machine"
)

const stepLimit = 1000000

type frameRec struct {
	base   int // index of the frame's first word (first argument)
	static int // base of the frame one static level out
	ret    int
	prevLB int
}

type vm struct {
	code   []machine.Instruction
	stack  []int
	frames []frameRec
	lb     int
	pc     int
	in     *bufio.Reader
	out    bytes.Buffer
}

func runObject(obj *machine.Program, input string) (string, error) {
	m := &vm{code: obj.Code, in: bufio.NewReader(strings.NewReader(input))}
	for steps := 0; ; steps++ {
		if steps >= stepLimit {
			return m.out.String(), fmt.Errorf("step limit exceeded at pc %d", m.pc)
		}
		if m.pc < 0 || m.pc >= len(m.code) {
			return m.out.String(), fmt.Errorf("pc %d outside the program", m.pc)
		}
		inst := m.code[m.pc]
		switch inst.Op {
		case machine.Load:
			base := m.regBase(inst.R)
			for i := 0; i < inst.N; i++ {
				m.push(m.stack[base+inst.D+i])
			}
		case machine.Loada:
			m.push(m.regBase(inst.R) + inst.D)
		case machine.Loadi:
			addr := m.pop()
			for i := 0; i < inst.N; i++ {
				m.push(m.stack[addr+i])
			}
		case machine.Loadl:
			m.push(inst.D)
		case machine.Store:
			words := m.popN(inst.N)
			copy(m.stack[m.regBase(inst.R)+inst.D:], words)
		case machine.Storei:
			addr := m.pop()
			words := m.popN(inst.N)
			copy(m.stack[addr:], words)
		case machine.Call:
			if inst.R == machine.PB {
				if err := m.primitive(inst.D); err != nil {
					return m.out.String(), err
				}
				break
			}
			base := len(m.stack) - inst.N
			m.frames = append(m.frames, frameRec{
				base:   base,
				static: m.regBase(inst.R),
				ret:    m.pc + 1,
				prevLB: m.lb,
			})
			m.lb = base
			m.pc = inst.D
			continue
		case machine.Return:
			result := m.popN(inst.N)
			rec := m.frames[len(m.frames)-1]
			m.frames = m.frames[:len(m.frames)-1]
			m.stack = m.stack[:rec.base]
			m.stack = append(m.stack, result...)
			m.lb = rec.prevLB
			m.pc = rec.ret
			continue
		case machine.Push:
			for i := 0; i < inst.D; i++ {
				m.push(0)
			}
		case machine.Pop:
			kept := m.popN(inst.N)
			m.stack = m.stack[:len(m.stack)-inst.D]
			m.stack = append(m.stack, kept...)
		case machine.Jump:
			m.pc = inst.D
			continue
		case machine.Jumpif:
			if m.pop() == inst.N {
				m.pc = inst.D
				continue
			}
		case machine.Halt:
			return m.out.String(), nil
		default:
			return m.out.String(), fmt.Errorf("bad opcode %d at pc %d", int(inst.Op), m.pc)
		}
		m.pc++
	}
}

func (m *vm) push(v int) {
	m.stack = append(m.stack, v)
}

func (m *vm) pop() int {
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func (m *vm) popN(n int) []int {
	words := make([]int, n)
	copy(words, m.stack[len(m.stack)-n:])
	m.stack = m.stack[:len(m.stack)-n]
	return words
}

func (m *vm) regBase(r machine.Register) int {
	switch {
	case r == machine.SB:
		return 0
	case r == machine.LB:
		return m.lb
	case r >= machine.L1 && r <= machine.L6:
		base := m.lb
		for i := 0; i <= int(r-machine.L1); i++ {
			base = m.staticOf(base)
		}
		return base
	}
	panic(fmt.Sprintf("bad register %d", int(r)))
}

func (m *vm) staticOf(base int) int {
	for i := len(m.frames) - 1; i >= 0; i-- {
		if m.frames[i].base == base {
			return m.frames[i].static
		}
	}
	return 0
}

func boolWord(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (m *vm) primitive(d int) error {
	switch d {
	case machine.PrimID:
		// chr and ord: the word is already the value.
	case machine.PrimNot:
		m.push(boolWord(m.pop() == 0))
	case machine.PrimAnd:
		b, a := m.pop(), m.pop()
		m.push(boolWord(a != 0 && b != 0))
	case machine.PrimOr:
		b, a := m.pop(), m.pop()
		m.push(boolWord(a != 0 || b != 0))
	case machine.PrimSucc:
		m.push(m.pop() + 1)
	case machine.PrimPred:
		m.push(m.pop() - 1)
	case machine.PrimNeg:
		m.push(-m.pop())
	case machine.PrimAdd:
		b, a := m.pop(), m.pop()
		m.push(a + b)
	case machine.PrimSub:
		b, a := m.pop(), m.pop()
		m.push(a - b)
	case machine.PrimMult:
		b, a := m.pop(), m.pop()
		m.push(a * b)
	case machine.PrimDiv:
		b, a := m.pop(), m.pop()
		if b == 0 {
			return fmt.Errorf("division by zero at pc %d", m.pc)
		}
		m.push(a / b)
	case machine.PrimMod:
		b, a := m.pop(), m.pop()
		if b == 0 {
			return fmt.Errorf("division by zero at pc %d", m.pc)
		}
		m.push(a % b)
	case machine.PrimLt:
		b, a := m.pop(), m.pop()
		m.push(boolWord(a < b))
	case machine.PrimLe:
		b, a := m.pop(), m.pop()
		m.push(boolWord(a <= b))
	case machine.PrimGe:
		b, a := m.pop(), m.pop()
		m.push(boolWord(a >= b))
	case machine.PrimGt:
		b, a := m.pop(), m.pop()
		m.push(boolWord(a > b))
	case machine.PrimEq, machine.PrimNe:
		size := m.pop()
		b := m.popN(size)
		a := m.popN(size)
		equal := true
		for i := range a {
			if a[i] != b[i] {
				equal = false
				break
			}
		}
		if d == machine.PrimEq {
			m.push(boolWord(equal))
		} else {
			m.push(boolWord(!equal))
		}
	case machine.PrimEol:
		next, err := m.in.Peek(1)
		m.push(boolWord(err == nil && next[0] == '\n'))
	case machine.PrimEof:
		_, err := m.in.Peek(1)
		m.push(boolWord(err == io.EOF))
	case machine.PrimGet:
		addr := m.pop()
		ch, err := m.in.ReadByte()
		if err != nil {
			return fmt.Errorf("get past end of input at pc %d", m.pc)
		}
		m.stack[addr] = int(ch)
	case machine.PrimPut:
		m.out.WriteByte(byte(m.pop()))
	case machine.PrimGetint:
		addr := m.pop()
		var v int
		if _, err := fmt.Fscan(m.in, &v); err != nil {
			return fmt.Errorf("getint: %v at pc %d", err, m.pc)
		}
		m.stack[addr] = v
	case machine.PrimPutint:
		fmt.Fprintf(&m.out, "%d", m.pop())
	case machine.PrimGeteol:
		for {
			ch, err := m.in.ReadByte()
			if err != nil || ch == '\n' {
				break
			}
		}
	case machine.PrimPuteol:
		m.out.WriteByte('\n')
	default:
		return fmt.Errorf("bad primitive %d at pc %d", d, m.pc)
	}
	return nil
}

// run compiles src and interprets the object program.
func run(t *testing.T, src, input string, opts Options) string {
	obj, reporter, err := Compile([]byte(src), opts)
	assert.Nil(t, err)
	assert.Empty(t, reporter.Diagnostics())
	assert.NotNil(t, obj)
	out, err := runObject(obj, input)
	assert.Nil(t, err)
	return out
}

func TestRun_PutInt(t *testing.T) {
	assert.Equal(t, "42", run(t, "putint(42)", "", Options{}))
}

func TestRun_EchoLine(t *testing.T) {
	src := `
let var c: Char in
while \eol() do
begin
    get(var c);
    put(c)
end
`
	assert.Equal(t, "hello", run(t, src, "hello\n", Options{}))
}

func TestRun_SumLoop(t *testing.T) {
	// Reads n, sums 1..n: the loop body runs exactly n times.
	src := `
let
    var n: Integer;
    var sum: Integer
in
begin
    getint(var n);
    sum := 0;
    while n > 0 do
    begin
        sum := sum + n;
        n := n - 1
    end;
    putint(sum)
end
`
	assert.Equal(t, "55", run(t, src, "10\n", Options{}))
	assert.Equal(t, "0", run(t, src, "0\n", Options{}))
	assert.Equal(t, "55", run(t, src, "10\n", Options{Folding: true}))
}

func TestRun_RepeatRunsBodyFirst(t *testing.T) {
	src := `
let var n: Integer in
begin
    n := 5;
    repeat
    begin
        putint(n);
        n := n - 1
    end
    until n < 4
end
`
	// One iteration even though a while with the same condition would
	// also stop after the second.
	assert.Equal(t, "54", run(t, src, "", Options{}))
}

func TestRun_MutualRecursion(t *testing.T) {
	src := `
let
    func even(n: Integer): Boolean ~ if n = 0 then true else odd(n - 1);
    func odd(n: Integer): Boolean ~ if n = 0 then false else even(n - 1)
in
begin
    putint(if even(10) then 1 else 0);
    putint(if odd(10) then 1 else 0);
    putint(if even(7) then 1 else 0);
    putint(if odd(7) then 1 else 0)
end
`
	assert.Equal(t, "1001", run(t, src, "", Options{}))
}

func TestRun_Factorial(t *testing.T) {
	src := `
let
    func fact(n: Integer): Integer ~ if n <= 1 then 1 else n * fact(n - 1)
in
    putint(fact(7))
`
	assert.Equal(t, "5040", run(t, src, "", Options{}))
	assert.Equal(t, "5040", run(t, src, "", Options{Folding: true}))
}

func TestRun_ByRefParameter(t *testing.T) {
	src := `
let
    var a: Integer;
    var b: Integer;
    proc swap(var x: Integer, var y: Integer) ~
        let var tmp: Integer in
        begin
            tmp := x;
            x := y;
            y := tmp
        end
in
begin
    a := 3;
    b := 9;
    swap(var a, var b);
    putint(a);
    putint(b)
end
`
	assert.Equal(t, "93", run(t, src, "", Options{}))
}

func TestRun_ValueParameterIsACopy(t *testing.T) {
	src := `
let
    var a: Integer;
    proc clobber(x: Integer) ~ x := 0
in
begin
    a := 7;
    clobber(a);
    putint(a)
end
`
	assert.Equal(t, "7", run(t, src, "", Options{}))
}

func TestRun_ArraysAndRecords(t *testing.T) {
	src := `
let
    type Point ~ record x: Integer, y: Integer end;
    var ps: array 3 of Point;
    var i: Integer;
    var sum: Integer
in
begin
    i := 0;
    while i < 3 do
    begin
        ps[i] := {x ~ i, y ~ i * i};
        i := i + 1
    end;
    sum := 0;
    i := 0;
    while i < 3 do
    begin
        sum := sum + ps[i].x + ps[i].y;
        i := i + 1
    end;
    putint(sum)
end
`
	// 0+0 + 1+1 + 2+4
	assert.Equal(t, "8", run(t, src, "", Options{}))
}

func TestRun_WholeRecordOperations(t *testing.T) {
	src := `
let
    type Point ~ record x: Integer, y: Integer end;
    var p: Point;
    var q: Point
in
begin
    p := {x ~ 1, y ~ 2};
    q := p;
    putint(if p = q then 1 else 0);
    q.y := 3;
    putint(if p \= q then 1 else 0)
end
`
	assert.Equal(t, "11", run(t, src, "", Options{}))
}

func TestRun_NestedRoutineUsesEnclosingFrame(t *testing.T) {
	src := `
let
    proc outer() ~
        let
            var x: Integer;
            proc inner() ~ x := x + 1
        in
        begin
            x := 5;
            inner();
            inner();
            putint(x)
        end
in
    outer()
`
	assert.Equal(t, "7", run(t, src, "", Options{}))
}

func TestRun_CharsAndStdConstants(t *testing.T) {
	src := `
let var n: Integer in
begin
    put(chr(ord('a') + 1));
    n := maxint // 10;
    putint(n)
end
`
	assert.Equal(t, "b7", run(t, src, "", Options{}))
}

func TestRun_LetExpressionAndShadowing(t *testing.T) {
	src := `
let
    var n: Integer
in
begin
    n := 3;
    putint(let const n ~ 10 in n * n);
    putint(n)
end
`
	assert.Equal(t, "1003", run(t, src, "", Options{}))
}

func TestRun_LetExpressionAboveOperands(t *testing.T) {
	// Storage declared mid-expression sits above whatever operand words
	// are already on the stack: as the right operand of a binary, as a
	// middle call argument, and inside an aggregate.
	src := `
let
    var n: Integer;
    var a: array 3 of Integer;
    func add3(x: Integer, y: Integer, z: Integer): Integer ~ x + y + z
in
begin
    n := 5;
    putint(1 + (let const m ~ n + 0 in m));
    putint(add3(1, let const m ~ n + 0 in m, 2));
    a := [1, let const m ~ n + 0 in m, 2];
    putint(a[0] + a[1] + a[2])
end
`
	assert.Equal(t, "688", run(t, src, "", Options{}))
	assert.Equal(t, "688", run(t, src, "", Options{Folding: true}))
}

func TestRun_LetExpressionVarThroughReference(t *testing.T) {
	// The reference passed for v must point at v's own word, not at the
	// pending left operand holding n.
	src := `
let
    var n: Integer;
    func deref(var x: Integer): Integer ~ x
in
begin
    n := 9;
    putint(n + (let var v: Integer in deref(var v)))
end
`
	assert.Equal(t, "9", run(t, src, "", Options{}))
}

func TestRun_DivisionByZeroTraps(t *testing.T) {
	src := "let var z: Integer in begin z := 0; putint(1 / z) end"
	obj, reporter, err := Compile([]byte(src), Options{})
	assert.Nil(t, err)
	assert.Equal(t, 0, reporter.ErrorCount())
	_, err = runObject(obj, "")
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestRun_FoldedLiteralDivisionByZeroStillTraps(t *testing.T) {
	src := "putint(1 / 0)"
	obj, reporter, err := Compile([]byte(src), Options{Folding: true})
	assert.Nil(t, err)
	assert.Equal(t, 0, reporter.ErrorCount())
	_, err = runObject(obj, "")
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestRun_FoldingPreservesBehavior(t *testing.T) {
	src := `
let
    const width ~ 8;
    var area: Integer;
    func scale(n: Integer): Integer ~ n * width
in
begin
    area := width * width + 2 * width;
    putint(area);
    puteol();
    putint(scale(3))
end
`
	plain, _, err := Compile([]byte(src), Options{})
	assert.Nil(t, err)
	foldedObj, _, err := Compile([]byte(src), Options{Folding: true})
	assert.Nil(t, err)
	assert.True(t, len(foldedObj.Code) < len(plain.Code))

	plainOut, err := runObject(plain, "")
	assert.Nil(t, err)
	foldedOut, err := runObject(foldedObj, "")
	assert.Nil(t, err)
	assert.Equal(t, plainOut, foldedOut)
	assert.Equal(t, "80\n24", plainOut)
}
