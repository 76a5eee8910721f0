package atari

import "testing"

// newTestConsole builds a ROM-less console running the given program from
// 0x0600, with the NMI vector pointing at an RTI stub at 0x0700.
func newTestConsole(t *testing.T, program ...byte) *Console {
	t.Helper()
	console, err := NewConsole(nil, nil)
	if err != nil {
		t.Fatalf("NewConsole: %v", err)
	}
	for i, b := range program {
		console.Bus.Write(0x0600+uint16(i), b)
	}
	console.Bus.Write(vectorReset, 0x00)
	console.Bus.Write(vectorReset+1, 0x06)
	console.Bus.Write(vectorNMI, 0x00)
	console.Bus.Write(vectorNMI+1, 0x07)
	console.Bus.Write(0x0700, 0x40) // RTI
	console.Reset()
	return console
}

func TestConsoleWSYNCBurnsToScanlineBoundary(t *testing.T) {
	// LDA #$00; STA $D40A. The store hits WSYNC, so its step must
	// account for every cycle up to the next scanline boundary.
	console := newTestConsole(t, 0xA9, 0x00, 0x8D, 0x0A, 0xD4)
	if _, err := console.Step(); err != nil { // LDA, 2 cycles
		t.Fatalf("Step: %v", err)
	}
	cycles, err := console.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cycles != CyclesPerScanline-2 {
		t.Fatalf("WSYNC step: got=%d cycles, want=%d", cycles, CyclesPerScanline-2)
	}
	if console.ANTIC.Scanline() != 1 {
		t.Fatalf("scanline: got=%d, want=1", console.ANTIC.Scanline())
	}
	if console.ANTIC.PendingStall() {
		t.Fatal("stall must be consumed by the step")
	}
	// CPU and engine agree on elapsed time.
	if console.CPU.Cycles() != uint64(CyclesPerScanline) {
		t.Fatalf("cpu cycles: got=%d, want=%d", console.CPU.Cycles(), CyclesPerScanline)
	}
}

func TestConsoleRoutesVBIToNMI(t *testing.T) {
	// Enable the VBI and spin. Soon after scanline 248 the CPU must be
	// vectored to the NMI handler.
	console := newTestConsole(t,
		0xA9, 0x40, // LDA #$40
		0x8D, 0x0E, 0xD4, // STA NMIEN
		0x4C, 0x05, 0x06, // JMP self
	)
	reached := false
	for i := 0; i < 20000; i++ {
		if _, err := console.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
		if console.CPU.PC() == 0x0700 {
			reached = true
			break
		}
	}
	if !reached {
		t.Fatal("CPU never entered the NMI handler")
	}
	if s := console.ANTIC.Scanline(); s < VBlankStart {
		t.Fatalf("NMI before vertical blank: scanline=%d", s)
	}
}

func TestConsoleStepFrame(t *testing.T) {
	console := newTestConsole(t, 0x4C, 0x00, 0x06) // JMP self
	cycles, err := console.StepFrame()
	if err != nil {
		t.Fatalf("StepFrame: %v", err)
	}
	if got := console.ANTIC.Frames(); got != 1 {
		t.Fatalf("frames: got=%d, want=1", got)
	}
	// A frame is 262 scanlines of 114 cycles; the last instruction may
	// overrun the boundary by a few cycles.
	want := ScanlinesPerFrame * CyclesPerScanline
	if cycles < want || cycles > want+8 {
		t.Fatalf("frame cycles: got=%d, want about %d", cycles, want)
	}
}

func TestConsoleStepFrameWithHaltedCPU(t *testing.T) {
	// An illegal opcode halts the CPU. The display engine keeps its own
	// schedule, so frame stepping still completes.
	console := newTestConsole(t, 0x02)
	if _, err := console.Step(); err == nil {
		t.Fatal("illegal opcode: want an error")
	}
	if !console.CPU.IsHalted() {
		t.Fatal("cpu must be halted")
	}
	if _, err := console.StepFrame(); err != nil {
		t.Fatalf("StepFrame: %v", err)
	}
	if got := console.ANTIC.Frames(); got != 1 {
		t.Fatalf("frames: got=%d, want=1", got)
	}
}

func TestConsoleReset(t *testing.T) {
	console := newTestConsole(t, 0x4C, 0x00, 0x06)
	if _, err := console.StepFrame(); err != nil {
		t.Fatalf("StepFrame: %v", err)
	}
	console.Reset()
	if console.Cycles() != 0 {
		t.Fatalf("cycles: got=%d, want=0", console.Cycles())
	}
	if console.ANTIC.Frames() != 0 || console.ANTIC.Scanline() != 0 {
		t.Fatalf("engine after reset: got frames=%d scanline=%d, want 0/0",
			console.ANTIC.Frames(), console.ANTIC.Scanline())
	}
	if console.CPU.PC() != 0x0600 {
		t.Fatalf("pc after reset: got=0x%04x, want=0x0600", console.CPU.PC())
	}
}

func TestConsoleLoadsROMImages(t *testing.T) {
	osROM := make([]byte, 0x4000)
	for i := range osROM {
		osROM[i] = 0xFF
	}
	basicROM := make([]byte, 0x2000)
	console, err := NewConsole(osROM, basicROM)
	if err != nil {
		t.Fatalf("NewConsole: %v", err)
	}
	// ROM visible outside the I/O hole.
	if got := console.Bus.Read(0xC000); got != 0xFF {
		t.Fatalf("OS window: got=0x%02x, want=0xFF", got)
	}
	// The engine still answers inside 0xD000-0xD7FF.
	if got := console.Bus.Read(0xD40B); got != 0x00 {
		t.Fatalf("VCOUNT through the I/O hole: got=0x%02x, want=0x00", got)
	}

	if _, err := NewConsole(make([]byte, 100), nil); err == nil {
		t.Fatal("undersized OS image must be rejected")
	}
}
