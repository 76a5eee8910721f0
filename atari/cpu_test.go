package atari

import "testing"

// newTestCPU builds a CPU over bare RAM (both ROM windows disabled) with the
// given program at 0x0600 and the reset vector pointing at it.
func newTestCPU(program ...byte) (*CPU, *MemoryBus) {
	bus := NewMemoryBus()
	for i, b := range program {
		bus.Write(0x0600+uint16(i), b)
	}
	bus.Write(vectorReset, 0x00)
	bus.Write(vectorReset+1, 0x06)
	cpu := NewCPU(bus)
	return cpu, bus
}

func step(t *testing.T, c *CPU) int {
	t.Helper()
	cycles, err := c.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	return cycles
}

func TestReset(t *testing.T) {
	cpu, _ := newTestCPU(0xEA)
	cpu.a = 0xFF
	cpu.x = 0xFF
	cpu.y = 0xFF
	cpu.s = 0x00
	cpu.p.decodeFrom(0xFF)
	cpu.halted = true
	cpu.nmiPending = true
	cpu.cycles = 99
	cpu.Reset()
	if cpu.a != 0 || cpu.x != 0 || cpu.y != 0 {
		t.Fatalf("registers: got A=0x%02x X=0x%02x Y=0x%02x, want all 0", cpu.a, cpu.x, cpu.y)
	}
	if cpu.s != 0xFF {
		t.Fatalf("sp: got=0x%02x, want=0xFF", cpu.s)
	}
	if got := cpu.p.encode(); got != 0x24 {
		t.Fatalf("status: got=0x%02x, want=0x24 (I set, others clear)", got)
	}
	if cpu.pc != 0x0600 {
		t.Fatalf("pc: got=0x%04x, want=0x0600 (reset vector)", cpu.pc)
	}
	if cpu.halted {
		t.Fatal("halted must clear on reset")
	}
	if cpu.cycles != 0 {
		t.Fatalf("cycle counter: got=%d, want=0", cpu.cycles)
	}
}

func TestZeropageIndexedWraps(t *testing.T) {
	// LDX #$02; LDA $FF,X must read 0x0001, not 0x0101.
	cpu, bus := newTestCPU(0xA2, 0x02, 0xB5, 0xFF)
	bus.Write(0x0001, 0x99)
	bus.Write(0x0101, 0x11)
	step(t, cpu)
	step(t, cpu)
	if cpu.a != 0x99 {
		t.Fatalf("a: got=0x%02x, want=0x99", cpu.a)
	}
}

func TestAbsoluteIndexedPageCrossPenalty(t *testing.T) {
	// LDX #$01; LDA $10FF,X crosses into 0x1100: 4+1 cycles.
	cpu, _ := newTestCPU(0xA2, 0x01, 0xBD, 0xFF, 0x10)
	step(t, cpu)
	if got := step(t, cpu); got != 5 {
		t.Fatalf("page-crossing LDA abs,X: got=%d cycles, want=5", got)
	}

	// LDX #$10; LDA $1000,X stays in page 0x10: 4 cycles.
	cpu, _ = newTestCPU(0xA2, 0x10, 0xBD, 0x00, 0x10)
	step(t, cpu)
	if got := step(t, cpu); got != 4 {
		t.Fatalf("same-page LDA abs,X: got=%d cycles, want=4", got)
	}
}

func TestStoreHasNoPageCrossPenalty(t *testing.T) {
	// STA abs,X always takes 5 cycles, crossing or not.
	cpu, _ := newTestCPU(0xA2, 0x01, 0x9D, 0xFF, 0x10)
	step(t, cpu)
	if got := step(t, cpu); got != 5 {
		t.Fatalf("page-crossing STA abs,X: got=%d cycles, want=5", got)
	}
}

func TestBranchTiming(t *testing.T) {
	// BNE not taken: 2 cycles.
	cpu, _ := newTestCPU(0xA9, 0x00, 0xD0, 0x02)
	step(t, cpu)
	if got := step(t, cpu); got != 2 {
		t.Fatalf("branch not taken: got=%d cycles, want=2", got)
	}

	// BNE taken within the page: 3 cycles.
	cpu, _ = newTestCPU(0xA9, 0x01, 0xD0, 0x02)
	step(t, cpu)
	if got := step(t, cpu); got != 3 {
		t.Fatalf("branch taken, same page: got=%d cycles, want=3", got)
	}

	// BNE taken across a page boundary: 4 cycles. The branch sits at
	// 0x06FC so the post-operand PC is 0x06FE and the target 0x0700.
	cpu, bus := newTestCPU(0xA9, 0x01)
	bus.Write(0x06FC, 0xD0)
	bus.Write(0x06FD, 0x02)
	bus.Write(0x0700, 0xEA)
	step(t, cpu)
	cpu.pc = 0x06FC
	if got := step(t, cpu); got != 4 {
		t.Fatalf("branch taken, page crossed: got=%d cycles, want=4", got)
	}
	if cpu.pc != 0x0700 {
		t.Fatalf("branch target: got=0x%04x, want=0x0700", cpu.pc)
	}
}

func TestADCBinary(t *testing.T) {
	// CLC; LDA #$50; ADC #$50 overflows into the sign bit.
	cpu, _ := newTestCPU(0x18, 0xA9, 0x50, 0x69, 0x50)
	for i := 0; i < 3; i++ {
		step(t, cpu)
	}
	if cpu.a != 0xA0 {
		t.Fatalf("a: got=0x%02x, want=0xA0", cpu.a)
	}
	if !cpu.p.v || cpu.p.c || !cpu.p.n {
		t.Fatalf("flags: got V=%v C=%v N=%v, want V=true C=false N=true", cpu.p.v, cpu.p.c, cpu.p.n)
	}

	// CLC; LDA #$FF; ADC #$01 carries out to zero.
	cpu, _ = newTestCPU(0x18, 0xA9, 0xFF, 0x69, 0x01)
	for i := 0; i < 3; i++ {
		step(t, cpu)
	}
	if cpu.a != 0x00 || !cpu.p.c || !cpu.p.z {
		t.Fatalf("got a=0x%02x C=%v Z=%v, want a=0x00 C=true Z=true", cpu.a, cpu.p.c, cpu.p.z)
	}
}

func TestADCDecimal(t *testing.T) {
	// SED; CLC; LDA #$19; ADC #$28 = 0x47 in BCD.
	cpu, _ := newTestCPU(0xF8, 0x18, 0xA9, 0x19, 0x69, 0x28)
	for i := 0; i < 4; i++ {
		step(t, cpu)
	}
	if cpu.a != 0x47 {
		t.Fatalf("BCD 19+28: got=0x%02x, want=0x47", cpu.a)
	}
	if cpu.p.c {
		t.Fatal("BCD 19+28 must not carry")
	}

	// SED; SEC; LDA #$58; ADC #$46 = 105 decimal: result 0x05 carry out.
	cpu, _ = newTestCPU(0xF8, 0x38, 0xA9, 0x58, 0x69, 0x46)
	for i := 0; i < 4; i++ {
		step(t, cpu)
	}
	if cpu.a != 0x05 || !cpu.p.c {
		t.Fatalf("BCD 58+46+1: got a=0x%02x C=%v, want a=0x05 C=true", cpu.a, cpu.p.c)
	}
}

func TestSBCDecimal(t *testing.T) {
	// SED; SEC; LDA #$46; SBC #$12 = 0x34 in BCD.
	cpu, _ := newTestCPU(0xF8, 0x38, 0xA9, 0x46, 0xE9, 0x12)
	for i := 0; i < 4; i++ {
		step(t, cpu)
	}
	if cpu.a != 0x34 {
		t.Fatalf("BCD 46-12: got=0x%02x, want=0x34", cpu.a)
	}
	if !cpu.p.c {
		t.Fatal("no borrow expected")
	}

	// SED; SEC; LDA #$12; SBC #$21 borrows: 0x91.
	cpu, _ = newTestCPU(0xF8, 0x38, 0xA9, 0x12, 0xE9, 0x21)
	for i := 0; i < 4; i++ {
		step(t, cpu)
	}
	if cpu.a != 0x91 || cpu.p.c {
		t.Fatalf("BCD 12-21: got a=0x%02x C=%v, want a=0x91 C=false", cpu.a, cpu.p.c)
	}
}

func TestStackPushWrapsWithinPageOne(t *testing.T) {
	// LDX #$00; TXS; LDA #$AB; PHA writes 0x0100 and wraps SP to 0xFF.
	cpu, bus := newTestCPU(0xA2, 0x00, 0x9A, 0xA9, 0xAB, 0x48)
	for i := 0; i < 4; i++ {
		step(t, cpu)
	}
	if got := bus.Read(0x0100); got != 0xAB {
		t.Fatalf("stack byte: got=0x%02x, want=0xAB", got)
	}
	if cpu.s != 0xFF {
		t.Fatalf("sp after wrap: got=0x%02x, want=0xFF", cpu.s)
	}
}

func TestJmpIndirectPageWrapBug(t *testing.T) {
	// JMP ($10FF) takes its high byte from 0x1000, not 0x1100.
	cpu, bus := newTestCPU(0x6C, 0xFF, 0x10)
	bus.Write(0x10FF, 0x00)
	bus.Write(0x1000, 0x07)
	bus.Write(0x1100, 0x99)
	step(t, cpu)
	if cpu.pc != 0x0700 {
		t.Fatalf("pc: got=0x%04x, want=0x0700", cpu.pc)
	}
}

func TestIllegalOpcodeHalts(t *testing.T) {
	cpu, _ := newTestCPU(0x02)
	if _, err := cpu.Step(); err == nil {
		t.Fatal("illegal opcode: want a diagnostic error")
	}
	if !cpu.IsHalted() {
		t.Fatal("cpu must be halted")
	}
	cycles, err := cpu.Step()
	if cycles != 0 || err != nil {
		t.Fatalf("halted step: got=(%d, %v), want=(0, nil)", cycles, err)
	}
	cpu.Reset()
	if cpu.IsHalted() {
		t.Fatal("reset must clear the halt")
	}
}

func TestNMIService(t *testing.T) {
	cpu, bus := newTestCPU(0xEA)
	bus.Write(vectorNMI, 0x00)
	bus.Write(vectorNMI+1, 0x07)
	cpu.p.i = true // NMI ignores the interrupt-disable flag
	cpu.RequestNMI()
	if got := step(t, cpu); got != interruptCycles {
		t.Fatalf("NMI service: got=%d cycles, want=%d", got, interruptCycles)
	}
	if cpu.pc != 0x0700 {
		t.Fatalf("pc: got=0x%04x, want=0x0700", cpu.pc)
	}
	if !cpu.p.i {
		t.Fatal("interrupt-disable must be set during service")
	}
	// Return address 0x0600 and status are on the stack.
	if hi, lo := bus.Read(0x01FF), bus.Read(0x01FE); hi != 0x06 || lo != 0x00 {
		t.Fatalf("stacked pc: got=0x%02x%02x, want=0x0600", hi, lo)
	}
	// The request is one-shot.
	if got := step(t, cpu); got == interruptCycles && cpu.pc == 0x0700 {
		t.Fatal("NMI serviced twice")
	}
}

func TestIRQMasking(t *testing.T) {
	// CLI; NOP, vectors IRQ to 0x0700. I is set after reset, so the
	// request stays pending through the first instruction.
	cpu, bus := newTestCPU(0x58, 0xEA)
	bus.Write(vectorIRQ, 0x00)
	bus.Write(vectorIRQ+1, 0x07)
	cpu.RequestIRQ()
	step(t, cpu) // CLI; IRQ not yet serviceable at this boundary
	if got := step(t, cpu); got != interruptCycles {
		t.Fatalf("IRQ service: got=%d cycles, want=%d", got, interruptCycles)
	}
	if cpu.pc != 0x0700 {
		t.Fatalf("pc: got=0x%04x, want=0x0700", cpu.pc)
	}
}

func TestCycleCounterIsMonotonic(t *testing.T) {
	cpu, _ := newTestCPU(0xA9, 0x01, 0xEA, 0xEA)
	sum := 0
	for i := 0; i < 3; i++ {
		sum += step(t, cpu)
	}
	if cpu.Cycles() != uint64(sum) {
		t.Fatalf("cycle counter: got=%d, want=%d", cpu.Cycles(), sum)
	}
}

func TestCompareSetsCarryOnGreaterOrEqual(t *testing.T) {
	// LDA #$40; CMP #$40 sets C and Z.
	cpu, _ := newTestCPU(0xA9, 0x40, 0xC9, 0x40)
	step(t, cpu)
	step(t, cpu)
	if !cpu.p.c || !cpu.p.z {
		t.Fatalf("CMP equal: got C=%v Z=%v, want both true", cpu.p.c, cpu.p.z)
	}

	// LDA #$10; CMP #$40 clears C.
	cpu, _ = newTestCPU(0xA9, 0x10, 0xC9, 0x40)
	step(t, cpu)
	step(t, cpu)
	if cpu.p.c {
		t.Fatal("CMP with smaller accumulator must clear carry")
	}
}

func TestBRKAndRTI(t *testing.T) {
	// BRK vectors through 0xFFFE; the handler returns with RTI to the
	// byte after the BRK padding byte.
	cpu, bus := newTestCPU(0x00, 0xFF, 0xEA)
	bus.Write(vectorIRQ, 0x00)
	bus.Write(vectorIRQ+1, 0x07)
	bus.Write(0x0700, 0x40) // RTI
	step(t, cpu)
	if cpu.pc != 0x0700 {
		t.Fatalf("pc after BRK: got=0x%04x, want=0x0700", cpu.pc)
	}
	if !cpu.p.i {
		t.Fatal("BRK must set interrupt-disable")
	}
	step(t, cpu)
	if cpu.pc != 0x0602 {
		t.Fatalf("pc after RTI: got=0x%04x, want=0x0602", cpu.pc)
	}
}
