package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newLoaded(pc uint16, program ...byte) *Cpu {
	c := New()
	c.WriteMemory(pc, program)
	c.PC = pc
	return c
}

// Register banks are aliased memory, not distinct storage: writing a
// register in one bank must not be observable after switching to another.
func TestRegisterBankAliasing(t *testing.T) {
	c := New()
	c.WriteRB(0)
	c.WriteGPReg(RegA, 0x11)
	c.WriteRB(1)
	c.WriteGPReg(RegA, 0x22)
	assert.Equal(t, byte(0x22), c.ReadGPReg(RegA))
	c.WriteRB(0)
	assert.Equal(t, byte(0x11), c.ReadGPReg(RegA))
}

// Register pairs are the little-endian combination of their two halves,
// sharing the same underlying bytes.
func TestRegisterPairAliasing(t *testing.T) {
	c := New()
	c.WriteGPReg(RegX, 0xcd)
	c.WriteGPReg(RegA, 0xab)
	assert.Equal(t, uint16(0xabcd), c.ReadGPPair(PairAX))

	c.WriteGPPair(PairBC, 0x1234)
	assert.Equal(t, byte(0x34), c.ReadGPReg(RegC))
	assert.Equal(t, byte(0x12), c.ReadGPReg(RegB))
}

// PSW is the literal memory cell at 0xff1e: writing through the saddr
// alias (offset 0x1e) and reading ReadPSW must agree, and vice versa.
func TestPSWIsMemoryAliased(t *testing.T) {
	c := New()
	c.WritePSW(0xa5)
	assert.Equal(t, byte(0xa5), c.Read(0xff1e))

	c.Write(0xff1e, 0x5a)
	assert.Equal(t, byte(0x5a), c.ReadPSW())
}

// Selecting a register bank touches only RBS0/RBS1 and preserves every
// other PSW bit, including the reserved one.
func TestWriteRBPreservesOtherFlags(t *testing.T) {
	c := New()
	c.WritePSW(0xff)
	c.WriteRB(0)
	psw := c.ReadPSW()
	assert.False(t, bitSet(psw, FlagRBS0))
	assert.False(t, bitSet(psw, FlagRBS1))
	assert.True(t, bitSet(psw, FlagIE))
	assert.True(t, bitSet(psw, FlagZ))
	assert.True(t, bitSet(psw, FlagAC))
	assert.True(t, bitSet(psw, FlagUnused))
	assert.True(t, bitSet(psw, FlagISP))
	assert.True(t, bitSet(psw, FlagCY))
}

func bitSet(v, mask byte) bool { return v&mask != 0 }

// An unassigned opcode byte must produce UnimplementedOpcodeError and must
// not silently advance as a no-op.
func TestUnimplementedOpcode(t *testing.T) {
	c := newLoaded(0x1000, 0x0f) // never assigned by any table
	err := c.Step()
	assert.Error(t, err)
	var target *UnimplementedOpcodeError
	assert.ErrorAs(t, err, &target)
	assert.Equal(t, uint16(0x1000), target.PC)
}

// Scenario A: mov a,#imm followed by inc a.
func TestScenarioMovIncA(t *testing.T) {
	c := newLoaded(0x1000, 0xa1, 0x7f, 0x41)

	err := c.Step()
	assert.NoError(t, err)
	assert.Equal(t, byte(0x7f), c.ReadGPReg(RegA))

	err = c.Step()
	assert.NoError(t, err)
	assert.Equal(t, byte(0x80), c.ReadGPReg(RegA))
	assert.True(t, bitSet(c.ReadPSW(), FlagAC))
	assert.False(t, bitSet(c.ReadPSW(), FlagZ))
}

// INC/DEC affect Z and AC only; CY is untouched.
func TestIncDecFlags(t *testing.T) {
	c := New()
	c.WritePSW(FlagCY) // CY set beforehand, must survive
	c.WriteGPReg(RegB, 0xff)
	incReg(c, 0x43) // INC B
	assert.Equal(t, byte(0x00), c.ReadGPReg(RegB))
	assert.True(t, c.zero())
	assert.True(t, bitSet(c.ReadPSW(), FlagAC))
	assert.True(t, c.cy())

	c.WriteGPReg(RegB, 0x00)
	decReg(c, 0x53) // DEC B
	assert.Equal(t, byte(0xff), c.ReadGPReg(RegB))
	assert.False(t, c.zero())
	assert.True(t, bitSet(c.ReadPSW(), FlagAC))
}

// INC saddr mirrors INC r: same Z/AC rules, applied to a memory cell.
func TestIncSaddr(t *testing.T) {
	c := newLoaded(0x0000, 0x81, 0x20)
	c.Write(0xfe20, 0x00)
	c.WritePSW(FlagZ | FlagAC)
	err := c.Step()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x0002), c.PC)
	assert.Equal(t, byte(0x00), c.ReadPSW())
	assert.Equal(t, byte(0x01), c.Read(0xfe20))
}

// DEC saddr mirrors DEC r: same Z/AC rules, applied to a memory cell.
func TestDecSaddr(t *testing.T) {
	c := newLoaded(0x0000, 0x91, 0x20)
	c.Write(0xfe20, 0x01)
	c.WritePSW(FlagAC)
	err := c.Step()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x0002), c.PC)
	assert.Equal(t, FlagZ, c.ReadPSW())
	assert.Equal(t, byte(0x00), c.Read(0xfe20))
}

// Scenario B (bit test and branch): bt saddr.3,$disp over saddr=0x20.
func TestScenarioBitTestBranch(t *testing.T) {
	c := newLoaded(0x2000, (3<<4)|0x8c, 0x20, 0x05)
	c.Write(0xfe20, 0x08) // bit 3 set
	err := c.Step()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x2008), c.PC)
}

func TestBitTestBranchNotTaken(t *testing.T) {
	c := newLoaded(0x2000, (3<<4)|0x8c, 0x20, 0x05)
	c.Write(0xfe20, 0x00) // bit 3 clear
	err := c.Step()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x2003), c.PC)
}

// Scenario C: callt [0040h+2*5] pushes the return address and jumps
// through the vector table.
func TestScenarioCallt(t *testing.T) {
	c := newLoaded(0x1000, 0xcb) // t=5, vector at 0x004a
	c.SP = 0xfe1f
	c.Write(0x004a, 0xcd)
	c.Write(0x004b, 0xab)

	err := c.Step()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0xabcd), c.PC)
	assert.Equal(t, uint16(0xfe1d), c.SP)
	assert.Equal(t, byte(0x01), c.Read(0xfe1d))
	assert.Equal(t, byte(0x10), c.Read(0xfe1e))
}

// ret is the exact inverse of a call: pops what was pushed.
func TestCallAndRetRoundTrip(t *testing.T) {
	c := newLoaded(0x1000, 0x9a, 0x00, 0x30) // call !0x3000
	c.SP = 0xfe20
	c.WriteMemory(0x3000, []byte{0xaf}) // ret

	err := c.Step() // call
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x3000), c.PC)

	err = c.Step() // ret
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x1003), c.PC)
	assert.Equal(t, uint16(0xfe20), c.SP)
}

// callf targets page (n+8)<<8 | low byte.
func TestCallf(t *testing.T) {
	c := newLoaded(0x1000, 0x3c, 0x55) // n=3 -> page 0x0b
	c.SP = 0xfe20
	err := c.Step()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x0b55), c.PC)
}

// reti restores pc and psw and pops three bytes.
func TestReti(t *testing.T) {
	c := newLoaded(0x1000, 0x8f)
	c.SP = 0xfe1d
	c.Write(0xfe1d, 0x34)
	c.Write(0xfe1e, 0x12)
	c.Write(0xfe1f, 0xc4)
	err := c.Step()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x1234), c.PC)
	assert.Equal(t, byte(0xc4), c.ReadPSW())
	assert.Equal(t, uint16(0xfe20), c.SP)
}

// push rp / pop rp round-trip and use the documented byte layout.
func TestPushPopRP(t *testing.T) {
	c := New()
	c.SP = 0xfe20
	c.WriteGPPair(PairDE, 0xbeef)
	pushRP(c, 0xb5) // PUSH DE
	assert.Equal(t, uint16(0xfe1e), c.SP)
	assert.Equal(t, byte(0xef), c.Read(0xfe1e))
	assert.Equal(t, byte(0xbe), c.Read(0xfe1f))

	c.WriteGPPair(PairDE, 0x0000)
	popRP(c, 0xb4) // POP DE
	assert.Equal(t, uint16(0xbeef), c.ReadGPPair(PairDE))
	assert.Equal(t, uint16(0xfe20), c.SP)
}

// or/and/xor update Z only, never CY/AC.
func TestBitwiseOpsOnlyTouchZ(t *testing.T) {
	c := newLoaded(0x1000, 0x6d, 0xf0) // or a,#imm
	c.WritePSW(FlagCY | FlagAC)
	c.WriteGPReg(RegA, 0x0f)

	err := c.Step()
	assert.NoError(t, err)
	assert.Equal(t, byte(0xff), c.ReadGPReg(RegA))
	assert.False(t, c.zero())
	assert.True(t, c.cy())
	assert.True(t, bitSet(c.ReadPSW(), FlagAC))
}

// OR/AND/XOR saddr,#imm write back to the memory cell, not to A.
func TestLogicalSaddrImmWritesMemory(t *testing.T) {
	c := newLoaded(0x1000, 0xe8, 0x20, 0x0f) // or saddr,#imm
	c.Write(0xfe20, 0xf0)
	err := c.Step()
	assert.NoError(t, err)
	assert.Equal(t, byte(0xff), c.Read(0xfe20))
	assert.False(t, c.zero())
}

// dbnz decrements and branches on nonzero, with no PSW side effect.
func TestDbnzSaddr(t *testing.T) {
	c := newLoaded(0x1000, 0x04, 0x20, 0x05)
	c.Write(0xfe20, 0x01)
	err := c.Step()
	assert.NoError(t, err)
	assert.Equal(t, byte(0x00), c.Read(0xfe20))
	assert.Equal(t, uint16(0x1003), c.PC) // not taken: counter hit zero

	c2 := newLoaded(0x1000, 0x04, 0x20, 0x05)
	c2.Write(0xfe20, 0x02)
	err = c2.Step()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x1008), c2.PC) // taken
}

// Rotation instructions touch CY only.
func TestRotateTouchesOnlyCY(t *testing.T) {
	c := New()
	c.WritePSW(FlagZ | FlagAC)
	c.WriteGPReg(RegA, 0x81)
	rorA(c, 0x24)
	assert.Equal(t, byte(0xc0), c.ReadGPReg(RegA))
	assert.True(t, c.cy())
	assert.True(t, bitSet(c.ReadPSW(), FlagZ))
	assert.True(t, bitSet(c.ReadPSW(), FlagAC))
}

func TestRolcCarryChain(t *testing.T) {
	c := New()
	c.setCY(true)
	c.WriteGPReg(RegA, 0x40)
	rolcA(c, 0x27)
	assert.Equal(t, byte(0x81), c.ReadGPReg(RegA))
	assert.False(t, c.cy())
}

// sel rb rewrites only RBS0/RBS1.
func TestSelRB(t *testing.T) {
	c := New()
	c.WritePSW(0xff)
	selRB(c, 0xd0) // bank 0
	assert.Equal(t, byte(0), c.ReadRB())
	selRB(c, 0xf8) // bank 3
	assert.Equal(t, byte(3), c.ReadRB())
}

// mov1 cy,a.b / mov1 a.b,cy round-trip a single bit.
func TestMov1BitRoundTrip(t *testing.T) {
	c := New()
	c.WriteGPReg(RegA, 0x00)
	c.setCY(true)
	mov1AFromCY(c, (5 << 4)) // set bit 5 from CY
	assert.Equal(t, byte(0x20), c.ReadGPReg(RegA))

	c.setCY(false)
	mov1CYFromA(c, (5 << 4))
	assert.True(t, c.cy())
}

// movw sp,#imm16 discards the fixed SFR byte and sets SP directly.
func TestMovwSPImm(t *testing.T) {
	c := newLoaded(0x1000, 0xee, 0x1c, 0x00, 0xfe)
	err := c.Step()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0xfe00), c.SP)
}

// xchw ax,rp swaps both pairs' worth of bytes.
func TestXchwAX(t *testing.T) {
	c := New()
	c.WriteGPPair(PairAX, 0x1111)
	c.WriteGPPair(PairHL, 0x2222)
	xchwAXRP(c, 0xe6)
	assert.Equal(t, uint16(0x2222), c.ReadGPPair(PairAX))
	assert.Equal(t, uint16(0x1111), c.ReadGPPair(PairHL))
}
