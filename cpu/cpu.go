// Package cpu implements the core of the NEC 78K/0 8-bit microcontroller
// instruction set (compatible with the uPD78F0831Y and similar parts): a
// single-threaded, deterministic interpreter that fetches, decodes, and
// executes one instruction at a time against a uniform 64 KiB memory image.
package cpu

import (
	"fmt"

	"github.com/hejops/k0/bits"
	"github.com/hejops/k0/mem"
)

// Register indices, as consumed by ReadGPReg/WriteGPReg. Each is the low 3
// bits of the opcodes that reference it directly.
const (
	RegX byte = iota // low byte of AX
	RegA             // high byte of AX
	RegC             // low byte of BC
	RegB             // high byte of BC
	RegE             // low byte of DE
	RegD             // high byte of DE
	RegL             // low byte of HL
	RegH             // high byte of HL
)

// Register-pair indices, as consumed by ReadGPPair/WriteGPPair.
const (
	PairAX byte = iota
	PairBC
	PairDE
	PairHL
)

// PSW bit weights (bit 7 most significant).
const (
	FlagCY     byte = 1 << 0 // carry / bit-manipulation target
	FlagISP    byte = 1 << 1 // in-service priority, preserved
	FlagUnused byte = 1 << 2 // reserved, preserved bit-for-bit
	FlagRBS0   byte = 1 << 3 // bank select low
	FlagAC     byte = 1 << 4 // auxiliary carry
	FlagRBS1   byte = 1 << 5 // bank select high
	FlagZ      byte = 1 << 6 // zero flag
	FlagIE     byte = 1 << 7 // interrupt enable, preserved; not interpreted here
)

// registersBase is the absolute address of register bank 0 (X register).
// Bank n lives at registersBase - 8*n.
const registersBase uint16 = 0xfef8

// pswAddr is the absolute address at which the architectural PSW is
// aliased via the saddr window (offset 0x1e, i.e. 0xfe00+0x100+0x1e).
const pswAddr uint16 = 0xff1e

// A Cpu is the complete architectural state of one 78K/0 core: a memory
// image plus the pc/sp registers. The eight general-purpose registers and
// the program status word are not separate fields — they live inside the
// memory image itself (see ReadGPReg, ReadPSW) exactly as they do on
// hardware, where register access is implicitly bank-relative memory
// access.
type Cpu struct {
	Bus *mem.Bus

	PC uint16 // program counter, wraps mod 2^16
	SP uint16 // stack pointer, wraps mod 2^16
}

// New returns a freshly constructed Cpu: zeroed memory, pc=0, sp=0, psw=0.
func New() *Cpu {
	return &Cpu{Bus: &mem.Bus{}}
}

// Read reads one byte from addr.
func (c *Cpu) Read(addr uint16) byte { return c.Bus.Read(addr) }

// Write writes data to addr.
func (c *Cpu) Write(addr uint16, data byte) { c.Bus.Write(addr, data) }

// ReadMemory returns a copy of n bytes starting at addr.
func (c *Cpu) ReadMemory(addr uint16, n int) []byte { return c.Bus.ReadBlock(addr, n) }

// WriteMemory stores data starting at addr. This is how an embedder seeds
// the initial memory image; the core never loads anything from disk
// itself.
func (c *Cpu) WriteMemory(addr uint16, data []byte) { c.Bus.WriteBlock(addr, data) }

// bankBase returns the absolute address of register X in the currently
// selected bank.
func (c *Cpu) bankBase() uint16 {
	return registersBase - 8*uint16(c.ReadRB())
}

// ReadGPReg returns the value of general-purpose register r (0..7).
func (c *Cpu) ReadGPReg(r byte) byte {
	return c.Bus.Read(c.bankBase() + uint16(r))
}

// WriteGPReg sets general-purpose register r (0..7) to v.
func (c *Cpu) WriteGPReg(r byte, v byte) {
	c.Bus.Write(c.bankBase()+uint16(r), v)
}

// ReadGPPair returns the 16-bit value of register pair p (0..3), assembled
// little-endian from its two underlying byte registers.
func (c *Cpu) ReadGPPair(p byte) uint16 {
	addr := c.bankBase() + 2*uint16(p)
	return bits.Word(c.Bus.Read(addr), c.Bus.Read(addr+1))
}

// WriteGPPair sets register pair p (0..3) to v, little-endian.
func (c *Cpu) WriteGPPair(p byte, v uint16) {
	addr := c.bankBase() + 2*uint16(p)
	lo, hi := bits.Split(v)
	c.Bus.Write(addr, lo)
	c.Bus.Write(addr+1, hi)
}

// ReadPSW returns the program status word.
func (c *Cpu) ReadPSW() byte { return c.Bus.Read(pswAddr) }

// WritePSW sets the program status word to v, unconditionally (all eight
// bits, including the reserved one).
func (c *Cpu) WritePSW(v byte) { c.Bus.Write(pswAddr, v) }

// ReadRB returns the currently selected register bank, 0..3, decoded from
// the RBS0/RBS1 bits of PSW.
func (c *Cpu) ReadRB() byte {
	psw := c.ReadPSW()
	rbs0 := (psw & FlagRBS0) >> 3
	rbs1 := (psw & FlagRBS1) >> 5
	return rbs0 | (rbs1 << 1)
}

// WriteRB selects register bank n (0..3), clearing and rewriting only the
// RBS0/RBS1 bits of PSW; every other bit is left untouched.
func (c *Cpu) WriteRB(n byte) {
	psw := c.ReadPSW()
	psw &^= FlagRBS0 | FlagRBS1
	if n&1 != 0 {
		psw |= FlagRBS0
	}
	if n&2 != 0 {
		psw |= FlagRBS1
	}
	c.WritePSW(psw)
}

// setZ sets or clears the Z flag according to whether result is zero,
// leaving every other PSW bit unchanged.
func (c *Cpu) setZ(result byte) {
	psw := c.ReadPSW()
	c.WritePSW(bits.WithBit(psw, 6, result == 0))
}

// setCY sets or clears the CY flag, leaving every other PSW bit unchanged.
func (c *Cpu) setCY(cond bool) {
	c.WritePSW(bits.WithBit(c.ReadPSW(), 0, cond))
}

// setAC sets or clears the AC flag, leaving every other PSW bit unchanged.
func (c *Cpu) setAC(cond bool) {
	c.WritePSW(bits.WithBit(c.ReadPSW(), 4, cond))
}

// cy reports whether the CY flag is currently set.
func (c *Cpu) cy() bool { return bits.Bit(c.ReadPSW(), 0) }

// zero reports whether the Z flag is currently set.
func (c *Cpu) zero() bool { return bits.Bit(c.ReadPSW(), 6) }

// fetchByte consumes one byte from the instruction stream at pc.
func (c *Cpu) fetchByte() byte {
	v := c.Bus.Read(c.PC)
	c.PC++
	return v
}

// fetchAddr16 consumes a little-endian absolute 16-bit address from the
// instruction stream (the addr16 addressing mode).
func (c *Cpu) fetchAddr16() uint16 {
	lo := c.fetchByte()
	hi := c.fetchByte()
	return bits.Word(lo, hi)
}

// fetchSaddr consumes one short-direct offset byte and returns the absolute
// address it names. Offsets below 0x20 land in the SFR/PSW alias window;
// the rest land in the plain short-direct window just below it.
func (c *Cpu) fetchSaddr() uint16 {
	o := c.fetchByte()
	if o < 0x20 {
		return 0xff00 | uint16(o)
	}
	return 0xfe00 | uint16(o)
}

// fetchSfr consumes one special-function-register offset byte and returns
// the absolute address it names.
func (c *Cpu) fetchSfr() uint16 {
	o := c.fetchByte()
	return 0xff00 | uint16(o)
}

// fetchDisp consumes one signed 8-bit displacement byte, pre-widened for
// wrapping addition against pc.
func (c *Cpu) fetchDisp() uint16 {
	return bits.SignExtend(c.fetchByte())
}

// UnimplementedOpcodeError is the single error kind the core produces: a
// fetch landed on a byte (or prefix+byte) with no assigned handler. This is
// fatal; the caller must neither retry nor silently skip.
type UnimplementedOpcodeError struct {
	Bytes []byte
	PC    uint16
}

func (e *UnimplementedOpcodeError) Error() string {
	return fmt.Sprintf("unimplemented opcode %#02x at pc=%#04x", e.Bytes, e.PC)
}

// Step executes exactly one instruction: fetch, decode, execute. Every
// memory read and write the instruction's semantics specify happens in
// program order before Step returns; no intermediate state is observable by
// an embedder.
func (c *Cpu) Step() error {
	startPC := c.PC
	op := c.fetchByte()

	var table *[256]*opcode
	var dispatchOp byte = op

	switch op {
	case 0x61:
		table = &ext61Table
		dispatchOp = c.fetchByte()
	case 0x71:
		table = &ext71Table
		dispatchOp = c.fetchByte()
	case 0x31:
		table = &ext31Table
		dispatchOp = c.fetchByte()
	default:
		table = &primaryTable
	}

	entry := table[dispatchOp]
	if entry == nil {
		consumed := []byte{op}
		if table != &primaryTable {
			consumed = []byte{op, dispatchOp}
		}
		return &UnimplementedOpcodeError{Bytes: consumed, PC: startPC}
	}

	entry.exec(c, dispatchOp)
	return nil
}
