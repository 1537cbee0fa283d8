// Package machine describes the abstract stack machine targeted by the
// compiler: its instruction set, addressing registers and the built-in
// primitive routines. The compiler only produces programs for this
// machine; executing them is somebody else's job.
package machine

import (
	"encoding/binary"
	"fmt"
	"io"
)

type Opcode int

const (
	// Load pushes N words from address D[R].
	Load Opcode = iota
	// Loada pushes the address D[R].
	Loada
	// Loadi pops an address and pushes the N words stored there.
	Loadi
	// Loadl pushes the literal word D.
	Loadl
	// Store pops N words into address D[R].
	Store
	// Storei pops an address, then pops N words into it.
	Storei
	// Call invokes the routine at code address D with N argument words;
	// R names the register holding the static link. R == PB invokes the
	// primitive routine numbered D instead.
	Call
	// Return pops an N-word result, discards the frame and its D
	// argument words, pushes the result back and resumes the caller.
	Return
	// Push extends the stack by D uninitialised words.
	Push
	// Pop saves the top N words, discards the D words below them and
	// pushes the saved words back.
	Pop
	// Jump continues at code address D.
	Jump
	// Jumpif pops one word and jumps to D when it equals N.
	Jumpif
	// Halt stops execution.
	Halt
)

var opcodeNames = [...]string{
	Load:   "LOAD",
	Loada:  "LOADA",
	Loadi:  "LOADI",
	Loadl:  "LOADL",
	Store:  "STORE",
	Storei: "STOREI",
	Call:   "CALL",
	Return: "RETURN",
	Push:   "PUSH",
	Pop:    "POP",
	Jump:   "JUMP",
	Jumpif: "JUMPIF",
	Halt:   "HALT",
}

func (op Opcode) String() string {
	if op < 0 || int(op) >= len(opcodeNames) {
		return fmt.Sprintf("OP(%d)", int(op))
	}
	return opcodeNames[op]
}

// Register identifies the base register of an address operand. SB is
// the base of the outermost (level 0) frame, LB the base of the
// current frame, and L1..L6 the bases of the one to six lexically
// enclosing frames reached through static links. PB addresses the
// primitive routine segment and is only meaningful in Call.
type Register int

const (
	SB Register = iota
	LB
	L1
	L2
	L3
	L4
	L5
	L6
	PB
)

var registerNames = [...]string{"SB", "LB", "L1", "L2", "L3", "L4", "L5", "L6", "PB"}

func (r Register) String() string {
	if r < 0 || int(r) >= len(registerNames) {
		return fmt.Sprintf("R(%d)", int(r))
	}
	return registerNames[r]
}

// Primitive routine displacements within the PB segment. These are a
// fixed part of the machine definition.
const (
	PrimID = iota + 1
	PrimNot
	PrimAnd
	PrimOr
	PrimSucc
	PrimPred
	PrimNeg
	PrimAdd
	PrimSub
	PrimMult
	PrimDiv
	PrimMod
	PrimLt
	PrimLe
	PrimGe
	PrimGt
	PrimEq
	PrimNe
	PrimEol
	PrimEof
	PrimGet
	PrimPut
	PrimGeteol
	PrimPuteol
	PrimGetint
	PrimPutint
)

// Instruction is one fixed-format machine instruction. The meaning of
// R, N and D depends on the opcode; unused operands are zero.
type Instruction struct {
	Op Opcode
	R  Register
	N  int
	D  int
}

func (i Instruction) String() string {
	return fmt.Sprintf("%s(%d) %d[%s]", i.Op, i.N, i.D, i.R)
}

// Program is a finished, fully patched object program. Entry is the
// index of the first instruction of the program's top-level body;
// execution may equally start at instruction 0 because routine bodies
// are guarded by jumps.
type Program struct {
	Code  []Instruction
	Entry int
}

// WriteTo writes the object program in its file format: four
// big-endian int32 words (op, r, n, d) per instruction.
func (p *Program) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for _, inst := range p.Code {
		words := [4]int32{int32(inst.Op), int32(inst.R), int32(inst.N), int32(inst.D)}
		if err := binary.Write(w, binary.BigEndian, words[:]); err != nil {
			return written, err
		}
		written += 16
	}
	return written, nil
}
