package cpu

import "github.com/hejops/k0/bits"

// bitIndex recovers the embedded bit index (0..7) from an opcode byte whose
// high nibble carries it, per the (b<<4)|fixed-low-nibble encoding used
// throughout the bit-manipulation families. The mask is needed because
// some fixed low-nibble codes (e.g. 0x8C, 0x8A, 0x82) already have their
// own high bit set, which ORs into the nibble alongside b.
func bitIndex(op byte) byte { return (op >> 4) & 0x07 }

// regIndex recovers the embedded register index (0..7) from an opcode
// byte's low 3 bits.
func regIndex(op byte) byte { return op & 0x07 }

// pairIndex recovers the embedded register-pair index (0..3) from an
// opcode byte in one of the pair-indexed rows (base, base+2, base+4,
// base+6).
func pairIndex(op, base byte) byte { return (op - base) >> 1 }

// NOP
func nop(c *Cpu, op byte) {}

// NOT1 CY — 0x01
func not1CY(c *Cpu, op byte) { c.setCY(!c.cy()) }

// SET1 CY — 0x20
func set1CYOp(c *Cpu, op byte) { c.setCY(true) }

// CLR1 CY — 0x21
func clr1CYOp(c *Cpu, op byte) { c.setCY(false) }

// PUSH PSW — 0x22
func pushPSW(c *Cpu, op byte) {
	c.SP--
	c.Write(c.SP, c.ReadPSW())
}

// POP PSW — 0x23
func popPSW(c *Cpu, op byte) {
	c.WritePSW(c.Read(c.SP))
	c.SP++
}

// ROR A,1 — 0x24. Only CY changes.
func rorA(c *Cpu, op byte) {
	a := c.ReadGPReg(RegA)
	bit0 := bits.Bit(a, 0)
	c.WriteGPReg(RegA, bits.WithBit(a>>1, 7, bit0))
	c.setCY(bit0)
}

// RORC A,1 — 0x25. Only CY changes.
func rorcA(c *Cpu, op byte) {
	a := c.ReadGPReg(RegA)
	oldCY := c.cy()
	c.setCY(bits.Bit(a, 0))
	c.WriteGPReg(RegA, bits.WithBit(a>>1, 7, oldCY))
}

// ROL A,1 — 0x26. Only CY changes.
func rolA(c *Cpu, op byte) {
	a := c.ReadGPReg(RegA)
	bit7 := bits.Bit(a, 7)
	c.WriteGPReg(RegA, bits.WithBit(a<<1, 0, bit7))
	c.setCY(bit7)
}

// ROLC A,1 — 0x27. Only CY changes.
func rolcA(c *Cpu, op byte) {
	a := c.ReadGPReg(RegA)
	oldCY := c.cy()
	c.setCY(bits.Bit(a, 7))
	c.WriteGPReg(RegA, bits.WithBit(a<<1, 0, oldCY))
}

// MOV r,#imm — 0xA0..0xA7 imm
func movRegImm(c *Cpu, op byte) {
	c.WriteGPReg(regIndex(op), c.fetchByte())
}

// INC r — 0x40..0x47
func incReg(c *Cpu, op byte) {
	r := regIndex(op)
	old := c.ReadGPReg(r)
	result := old + 1
	c.WriteGPReg(r, result)
	c.setZ(result)
	c.setAC(old&0x0f == 0x0f)
}

// DEC r — 0x50..0x57
func decReg(c *Cpu, op byte) {
	r := regIndex(op)
	old := c.ReadGPReg(r)
	result := old - 1
	c.WriteGPReg(r, result)
	c.setZ(result)
	c.setAC(old&0x0f == 0x00)
}

// INC saddr — 0x81 saddr. Same Z/AC rules as INC r.
func incSaddr(c *Cpu, op byte) {
	addr := c.fetchSaddr()
	old := c.Read(addr)
	result := old + 1
	c.Write(addr, result)
	c.setZ(result)
	c.setAC(old&0x0f == 0x0f)
}

// DEC saddr — 0x91 saddr. Same Z/AC rules as DEC r.
func decSaddr(c *Cpu, op byte) {
	addr := c.fetchSaddr()
	old := c.Read(addr)
	result := old - 1
	c.Write(addr, result)
	c.setZ(result)
	c.setAC(old&0x0f == 0x00)
}

// MOV A,r (r != A) — 0x60..0x67 except 0x61
func movAFromReg(c *Cpu, op byte) {
	c.WriteGPReg(RegA, c.ReadGPReg(regIndex(op)))
}

// MOV r,A (r != A) — 0x70..0x77 except 0x71
func movRegFromA(c *Cpu, op byte) {
	c.WriteGPReg(regIndex(op), c.ReadGPReg(RegA))
}

// XCH A,r — 0x30, 0x32..0x37
func xchAReg(c *Cpu, op byte) {
	r := regIndex(op)
	a, v := c.ReadGPReg(RegA), c.ReadGPReg(r)
	c.WriteGPReg(RegA, v)
	c.WriteGPReg(r, a)
}

// MOV A,!addr16 — 0x8E
func movAAddr16(c *Cpu, op byte) {
	c.WriteGPReg(RegA, c.Read(c.fetchAddr16()))
}

// MOV !addr16,A — 0x9E
func movAddr16A(c *Cpu, op byte) {
	c.Write(c.fetchAddr16(), c.ReadGPReg(RegA))
}

// MOV A,saddr — 0xF0
func movASaddr(c *Cpu, op byte) {
	c.WriteGPReg(RegA, c.Read(c.fetchSaddr()))
}

// MOV saddr,A — 0xF2
func movSaddrA(c *Cpu, op byte) {
	c.Write(c.fetchSaddr(), c.ReadGPReg(RegA))
}

// MOV A,sfr — 0xF4. A pure read: the original implementation's redundant
// write-back is not reproduced here (see spec's open question).
func movASfr(c *Cpu, op byte) {
	c.WriteGPReg(RegA, c.Read(c.fetchSfr()))
}

// MOV sfr,A — 0xF6
func movSfrA(c *Cpu, op byte) {
	c.Write(c.fetchSfr(), c.ReadGPReg(RegA))
}

// MOV saddr,#imm — 0x11
func movSaddrImm(c *Cpu, op byte) {
	addr := c.fetchSaddr()
	c.Write(addr, c.fetchByte())
}

// MOV sfr,#imm — 0x13
func movSfrImm(c *Cpu, op byte) {
	addr := c.fetchSfr()
	c.Write(addr, c.fetchByte())
}

// MOV A,[DE] — 0x85
func movADE(c *Cpu, op byte) {
	c.WriteGPReg(RegA, c.Read(c.ReadGPPair(PairDE)))
}

// MOV [DE],A — 0x95
func movDEA(c *Cpu, op byte) {
	c.Write(c.ReadGPPair(PairDE), c.ReadGPReg(RegA))
}

// MOV A,[HL] — 0x87
func movAHL(c *Cpu, op byte) {
	c.WriteGPReg(RegA, c.Read(c.ReadGPPair(PairHL)))
}

// MOV [HL],A — 0x97
func movHLA(c *Cpu, op byte) {
	c.Write(c.ReadGPPair(PairHL), c.ReadGPReg(RegA))
}

// XCH A,!addr16 — 0xCE
func xchAAddr16(c *Cpu, op byte) {
	addr := c.fetchAddr16()
	a, v := c.ReadGPReg(RegA), c.Read(addr)
	c.WriteGPReg(RegA, v)
	c.Write(addr, a)
}

// XCH A,saddr — 0x83
func xchASaddr(c *Cpu, op byte) {
	addr := c.fetchSaddr()
	a, v := c.ReadGPReg(RegA), c.Read(addr)
	c.WriteGPReg(RegA, v)
	c.Write(addr, a)
}

// XCH A,sfr — 0x93
func xchASfr(c *Cpu, op byte) {
	addr := c.fetchSfr()
	a, v := c.ReadGPReg(RegA), c.Read(addr)
	c.WriteGPReg(RegA, v)
	c.Write(addr, a)
}

// XCH A,[DE] — 0x05
func xchADE(c *Cpu, op byte) {
	addr := c.ReadGPPair(PairDE)
	a, v := c.ReadGPReg(RegA), c.Read(addr)
	c.WriteGPReg(RegA, v)
	c.Write(addr, a)
}

// XCH A,[HL] — 0x07
func xchAHL(c *Cpu, op byte) {
	addr := c.ReadGPPair(PairHL)
	a, v := c.ReadGPReg(RegA), c.Read(addr)
	c.WriteGPReg(RegA, v)
	c.Write(addr, a)
}

// MOVW rp,#imm16 — 0x10, 0x12, 0x14, 0x16
func movwRPImm(c *Cpu, op byte) {
	p := pairIndex(op, 0x10)
	c.WriteGPPair(p, c.fetchAddr16())
}

// INCW rp — 0x80, 0x82, 0x84, 0x86. Does not touch PSW.
func incwRP(c *Cpu, op byte) {
	p := pairIndex(op, 0x80)
	c.WriteGPPair(p, c.ReadGPPair(p)+1)
}

// DECW rp — 0x90, 0x92, 0x94, 0x96. Does not touch PSW.
func decwRP(c *Cpu, op byte) {
	p := pairIndex(op, 0x90)
	c.WriteGPPair(p, c.ReadGPPair(p)-1)
}

// XCHW AX,rp — 0xE2 (BC), 0xE4 (DE), 0xE6 (HL)
func xchwAXRP(c *Cpu, op byte) {
	p := pairIndex(op, 0xe0)
	ax, other := c.ReadGPPair(PairAX), c.ReadGPPair(p)
	c.WriteGPPair(PairAX, other)
	c.WriteGPPair(p, ax)
}

// MOVW SP,#imm16 — 0xEE 0x1C imm16. The fixed 0x1C byte is the SFR offset
// for SP on real hardware; it is consumed and discarded, and SP is set
// directly (see SPEC_FULL.md's note on this instruction).
func movwSPImm(c *Cpu, op byte) {
	_ = c.fetchByte() // fixed 0x1C
	c.SP = c.fetchAddr16()
}

// operationOr computes a|b and updates Z; no other flag changes.
func (c *Cpu) operationOr(a, b byte) byte {
	result := a | b
	c.setZ(result)
	return result
}

// operationAnd computes a&b and updates Z; no other flag changes.
func (c *Cpu) operationAnd(a, b byte) byte {
	result := a & b
	c.setZ(result)
	return result
}

// operationXor computes a^b and updates Z; no other flag changes.
func (c *Cpu) operationXor(a, b byte) byte {
	result := a ^ b
	c.setZ(result)
	return result
}

// OR A,#imm — 0x6D
func orAImm(c *Cpu, op byte) {
	c.WriteGPReg(RegA, c.operationOr(c.ReadGPReg(RegA), c.fetchByte()))
}

// OR A,saddr — 0x6E
func orASaddr(c *Cpu, op byte) {
	b := c.Read(c.fetchSaddr())
	c.WriteGPReg(RegA, c.operationOr(c.ReadGPReg(RegA), b))
}

// OR A,!addr16 — 0x68
func orAAddr16(c *Cpu, op byte) {
	b := c.Read(c.fetchAddr16())
	c.WriteGPReg(RegA, c.operationOr(c.ReadGPReg(RegA), b))
}

// OR saddr,#imm — 0xE8. The destination is the memory cell, not A.
func orSaddrImm(c *Cpu, op byte) {
	addr := c.fetchSaddr()
	a := c.Read(addr)
	b := c.fetchByte()
	c.Write(addr, c.operationOr(a, b))
}

// AND A,#imm — 0x5D
func andAImm(c *Cpu, op byte) {
	c.WriteGPReg(RegA, c.operationAnd(c.ReadGPReg(RegA), c.fetchByte()))
}

// AND A,saddr — 0x5E
func andASaddr(c *Cpu, op byte) {
	b := c.Read(c.fetchSaddr())
	c.WriteGPReg(RegA, c.operationAnd(c.ReadGPReg(RegA), b))
}

// AND A,!addr16 — 0x58
func andAAddr16(c *Cpu, op byte) {
	b := c.Read(c.fetchAddr16())
	c.WriteGPReg(RegA, c.operationAnd(c.ReadGPReg(RegA), b))
}

// AND saddr,#imm — 0xD8
func andSaddrImm(c *Cpu, op byte) {
	addr := c.fetchSaddr()
	a := c.Read(addr)
	b := c.fetchByte()
	c.Write(addr, c.operationAnd(a, b))
}

// XOR A,#imm — 0x7D
func xorAImm(c *Cpu, op byte) {
	c.WriteGPReg(RegA, c.operationXor(c.ReadGPReg(RegA), c.fetchByte()))
}

// XOR A,saddr — 0x7E
func xorASaddr(c *Cpu, op byte) {
	b := c.Read(c.fetchSaddr())
	c.WriteGPReg(RegA, c.operationXor(c.ReadGPReg(RegA), b))
}

// XOR A,!addr16 — 0x78
func xorAAddr16(c *Cpu, op byte) {
	b := c.Read(c.fetchAddr16())
	c.WriteGPReg(RegA, c.operationXor(c.ReadGPReg(RegA), b))
}

// XOR saddr,#imm — 0xF8
func xorSaddrImm(c *Cpu, op byte) {
	addr := c.fetchSaddr()
	a := c.Read(addr)
	b := c.fetchByte()
	c.Write(addr, c.operationXor(a, b))
}

// SET1 saddr.b — (b<<4)|0x0A saddr
func set1Saddr(c *Cpu, op byte) {
	b := bitIndex(op)
	addr := c.fetchSaddr()
	c.Write(addr, bits.SetBit(c.Read(addr), b))
}

// CLR1 saddr.b — (b<<4)|0x0B saddr
func clr1Saddr(c *Cpu, op byte) {
	b := bitIndex(op)
	addr := c.fetchSaddr()
	c.Write(addr, bits.ClearBit(c.Read(addr), b))
}

// BT saddr.b,$disp — per-bit primary opcode (0x8C + 0x10*b) saddr disp
func btSaddr(c *Cpu, op byte) {
	b := bitIndex(op)
	addr := c.fetchSaddr()
	disp := c.fetchDisp()
	if bits.Bit(c.Read(addr), b) {
		c.PC += disp
	}
}

// BR $disp8 — 0xFA disp, unconditional
func br(c *Cpu, op byte) {
	c.PC += c.fetchDisp()
}

// BR !addr16 — 0x9B addr16, unconditional
func brAddr16(c *Cpu, op byte) {
	c.PC = c.fetchAddr16()
}

// BC $disp8 — 0x8D, taken iff CY=1
func bc(c *Cpu, op byte) {
	disp := c.fetchDisp()
	if c.cy() {
		c.PC += disp
	}
}

// BNC $disp8 — 0x9D, taken iff CY=0
func bnc(c *Cpu, op byte) {
	disp := c.fetchDisp()
	if !c.cy() {
		c.PC += disp
	}
}

// BZ $disp8 — 0xAD, taken iff Z=1
func bz(c *Cpu, op byte) {
	disp := c.fetchDisp()
	if c.zero() {
		c.PC += disp
	}
}

// BNZ $disp8 — 0xBD, taken iff Z=0
func bnz(c *Cpu, op byte) {
	disp := c.fetchDisp()
	if !c.zero() {
		c.PC += disp
	}
}

// DBNZ C,$disp — 0x8A. PSW is not modified.
func dbnzC(c *Cpu, op byte) {
	disp := c.fetchDisp()
	v := c.ReadGPReg(RegC) - 1
	c.WriteGPReg(RegC, v)
	if v != 0 {
		c.PC += disp
	}
}

// DBNZ B,$disp — 0x8B. PSW is not modified.
func dbnzB(c *Cpu, op byte) {
	disp := c.fetchDisp()
	v := c.ReadGPReg(RegB) - 1
	c.WriteGPReg(RegB, v)
	if v != 0 {
		c.PC += disp
	}
}

// DBNZ saddr,$disp — 0x04 saddr disp. PSW is not modified.
func dbnzSaddr(c *Cpu, op byte) {
	addr := c.fetchSaddr()
	disp := c.fetchDisp()
	v := c.Read(addr) - 1
	c.Write(addr, v)
	if v != 0 {
		c.PC += disp
	}
}

// pushReturnAddress pushes the current pc (the return address) onto the
// stack, pre-decrementing sp by 2: low byte at the new sp, high byte above
// it.
func (c *Cpu) pushReturnAddress() {
	lo, hi := bits.Split(c.PC)
	c.SP -= 2
	c.Write(c.SP, lo)
	c.Write(c.SP+1, hi)
}

// CALL !addr16 — 0x9A addr16
func callAddr16(c *Cpu, op byte) {
	target := c.fetchAddr16()
	c.pushReturnAddress()
	c.PC = target
}

// CALLF !addr11 — 0x0C, 0x1C, ..., 0x7C, low byte. Target page is the
// primary opcode's high nibble + 8, giving pages 0x0800..0x0FFF.
func callf(c *Cpu, op byte) {
	page := (op >> 4) + 8
	low := c.fetchByte()
	target := uint16(page)<<8 | uint16(low)
	c.pushReturnAddress()
	c.PC = target
}

// CALLT [0040h+2t] — odd opcodes 0xC1..0xFF, 32 entries. t is the entry's
// index into the vector table at 0x0040.
func callt(c *Cpu, op byte) {
	t := (op - 0xc1) / 2
	vector := 0x0040 + 2*uint16(t)
	lo, hi := c.Read(vector), c.Read(vector+1)
	target := bits.Word(lo, hi)
	c.pushReturnAddress()
	c.PC = target
}

// RET — 0xAF
func ret(c *Cpu, op byte) {
	lo, hi := c.Read(c.SP), c.Read(c.SP+1)
	c.PC = bits.Word(lo, hi)
	c.SP += 2
}

// RETI — 0x8F
func reti(c *Cpu, op byte) {
	lo, hi := c.Read(c.SP), c.Read(c.SP+1)
	c.PC = bits.Word(lo, hi)
	c.WritePSW(c.Read(c.SP + 2))
	c.SP += 3
}

// PUSH rp — 0xB1 (AX), 0xB3 (BC), 0xB5 (DE), 0xB7 (HL). The high-byte
// member lands at sp-1, the low-byte member at sp-2.
func pushRP(c *Cpu, op byte) {
	p := pairIndex(op, 0xb1)
	lo, hi := bits.Split(c.ReadGPPair(p))
	old := c.SP
	c.Write(old-1, hi)
	c.Write(old-2, lo)
	c.SP = old - 2
}

// POP rp — 0xB0 (AX), 0xB2 (BC), 0xB4 (DE), 0xB6 (HL). Inverse of PUSH rp.
func popRP(c *Cpu, op byte) {
	p := pairIndex(op, 0xb0)
	lo, hi := c.Read(c.SP), c.Read(c.SP+1)
	c.WriteGPPair(p, bits.Word(lo, hi))
	c.SP += 2
}

// SEL RBn — 0x61 0xD0/0xD8/0xF0/0xF8
func selRB(c *Cpu, op2 byte) {
	switch op2 {
	case 0xd0:
		c.WriteRB(0)
	case 0xd8:
		c.WriteRB(1)
	case 0xf0:
		c.WriteRB(2)
	case 0xf8:
		c.WriteRB(3)
	}
}

// OR A,r (r != A) — 0x61 0x68, 0x6A..0x6F
func orARegExt(c *Cpu, op2 byte) {
	r := regIndex(op2)
	c.WriteGPReg(RegA, c.operationOr(c.ReadGPReg(RegA), c.ReadGPReg(r)))
}

// OR r,A — 0x61 0x60..0x67 (0x61 0x61 means OR A,A)
func orRegAExt(c *Cpu, op2 byte) {
	r := regIndex(op2)
	c.WriteGPReg(r, c.operationOr(c.ReadGPReg(RegA), c.ReadGPReg(r)))
}

// AND A,r (r != A) — 0x61 0x58, 0x5A..0x5F
func andARegExt(c *Cpu, op2 byte) {
	r := regIndex(op2)
	c.WriteGPReg(RegA, c.operationAnd(c.ReadGPReg(RegA), c.ReadGPReg(r)))
}

// AND r,A — 0x61 0x50..0x57
func andRegAExt(c *Cpu, op2 byte) {
	r := regIndex(op2)
	c.WriteGPReg(r, c.operationAnd(c.ReadGPReg(RegA), c.ReadGPReg(r)))
}

// XOR A,r (r != A) — 0x61 0x78, 0x7A..0x7F
func xorARegExt(c *Cpu, op2 byte) {
	r := regIndex(op2)
	c.WriteGPReg(RegA, c.operationXor(c.ReadGPReg(RegA), c.ReadGPReg(r)))
}

// XOR r,A — 0x61 0x70..0x77
func xorRegAExt(c *Cpu, op2 byte) {
	r := regIndex(op2)
	c.WriteGPReg(r, c.operationXor(c.ReadGPReg(RegA), c.ReadGPReg(r)))
}

// SET1 A.b — 0x61 (b<<4)|0x8A
func set1A(c *Cpu, op2 byte) {
	b := bitIndex(op2)
	c.WriteGPReg(RegA, bits.SetBit(c.ReadGPReg(RegA), b))
}

// CLR1 A.b — 0x61 (b<<4)|0x8B
func clr1A(c *Cpu, op2 byte) {
	b := bitIndex(op2)
	c.WriteGPReg(RegA, bits.ClearBit(c.ReadGPReg(RegA), b))
}

// MOV1 CY,A.b — 0x61 (b<<4)|0x8C
func mov1CYFromA(c *Cpu, op2 byte) {
	b := bitIndex(op2)
	c.setCY(bits.Bit(c.ReadGPReg(RegA), b))
}

// MOV1 A.b,CY — 0x61 (b<<4)|0x89
func mov1AFromCY(c *Cpu, op2 byte) {
	b := bitIndex(op2)
	c.WriteGPReg(RegA, bits.WithBit(c.ReadGPReg(RegA), b, c.cy()))
}

// SET1 sfr.b — 0x71 (b<<4)|0x0A sfr
func set1Sfr(c *Cpu, op2 byte) {
	b := bitIndex(op2)
	addr := c.fetchSfr()
	c.Write(addr, bits.SetBit(c.Read(addr), b))
}

// CLR1 sfr.b — 0x71 (b<<4)|0x0B sfr
func clr1Sfr(c *Cpu, op2 byte) {
	b := bitIndex(op2)
	addr := c.fetchSfr()
	c.Write(addr, bits.ClearBit(c.Read(addr), b))
}

// SET1 [HL].b — 0x71 (b<<4)|0x82
func set1HL(c *Cpu, op2 byte) {
	b := bitIndex(op2)
	addr := c.ReadGPPair(PairHL)
	c.Write(addr, bits.SetBit(c.Read(addr), b))
}

// CLR1 [HL].b — 0x71 (b<<4)|0x83
func clr1HL(c *Cpu, op2 byte) {
	b := bitIndex(op2)
	addr := c.ReadGPPair(PairHL)
	c.Write(addr, bits.ClearBit(c.Read(addr), b))
}

// MOV1 CY,sfr.b — 0x71 (b<<4)|0x0C sfr
func mov1CYFromSfr(c *Cpu, op2 byte) {
	b := bitIndex(op2)
	c.setCY(bits.Bit(c.Read(c.fetchSfr()), b))
}

// MOV1 CY,saddr.b — 0x71 (b<<4)|0x04 saddr
func mov1CYFromSaddr(c *Cpu, op2 byte) {
	b := bitIndex(op2)
	c.setCY(bits.Bit(c.Read(c.fetchSaddr()), b))
}

// MOV1 sfr.b,CY — 0x71 (b<<4)|0x09 sfr
func mov1SfrFromCY(c *Cpu, op2 byte) {
	b := bitIndex(op2)
	addr := c.fetchSfr()
	c.Write(addr, bits.WithBit(c.Read(addr), b, c.cy()))
}

// MOV1 saddr.b,CY — 0x71 (b<<4)|0x01 saddr
func mov1SaddrFromCY(c *Cpu, op2 byte) {
	b := bitIndex(op2)
	addr := c.fetchSaddr()
	c.Write(addr, bits.WithBit(c.Read(addr), b, c.cy()))
}

// BT A.b,$disp — 0x31 (b<<4)|0x0E disp
func btA(c *Cpu, op2 byte) {
	b := bitIndex(op2)
	disp := c.fetchDisp()
	if bits.Bit(c.ReadGPReg(RegA), b) {
		c.PC += disp
	}
}

// BT sfr.b,$disp — 0x31 (b<<4)|0x06 sfr disp
func btSfr(c *Cpu, op2 byte) {
	b := bitIndex(op2)
	addr := c.fetchSfr()
	disp := c.fetchDisp()
	if bits.Bit(c.Read(addr), b) {
		c.PC += disp
	}
}
