package atari

// ANTIC emulates the display-list engine: an autonomous per-scanline state
// machine that fetches its own instruction stream from memory, raises NMIs
// (vertical blank and display-list interrupts) and can stall the CPU until
// the next scanline boundary (WSYNC).
// References:
//   https://en.wikipedia.org/wiki/ANTIC
//   https://www.atariarchives.org/mapping/appendix12.php
//
// Timing is fixed NTSC: 262 scanlines per frame at 114 CPU cycles each,
// vertical blank starting at scanline 248. VCOUNT reads back scanline/2.
const (
	ScanlinesPerFrame = 262
	CyclesPerScanline = 114
	VBlankStart       = 248
)

// Register offsets within the 0xD400 page. Only 4 offset bits are decoded,
// so the page mirrors every 16 bytes.
const (
	regDMACTL = 0x0 // DMA control
	regCHACTL = 0x1 // Character control
	regDLISTL = 0x2 // Display list pointer low
	regDLISTH = 0x3 // Display list pointer high
	regHSCROL = 0x4 // Horizontal scroll, 0-15
	regVSCROL = 0x5 // Vertical scroll, 0-15
	regPMBASE = 0x7 // Player/missile base page
	regCHBASE = 0x9 // Character set base page
	regWSYNC  = 0xA // Any write stalls the CPU to the next scanline
	regVCOUNT = 0xB // Read-only live scanline counter / 2
	regNMIEN  = 0xE // Interrupt enable
	regNMIST  = 0xF // Read: asserted classes. Write: acknowledge-clear
)

// NMIEN/NMIST bits.
const (
	nmiDLI = 0x80
	nmiVBI = 0x40
)

// DMACTL bits (playfield width bits are latched but unused by this core).
const (
	dmaDisplayList = 0x20
)

// Display list instruction encoding: low nibble is the mode, high bits are
// independent flags. Mode 0 is a blank instruction whose line count lives in
// bits 4-6; mode 1 is a jump, with bit 6 selecting the wait-for-VBI variant.
const (
	dlModeMask = 0x0F
	dlDLI      = 0x80 // Interrupt at the end of the instruction's last line
	dlLMS      = 0x40 // Load memory scan pointer from the next two bytes
	dlVScroll  = 0x20
	dlHScroll  = 0x10

	modeBlank = 0x0
	modeJump  = 0x1
)

// Scanlines per mode line. Entries 0 and 1 are placeholders; blank and jump
// instructions carry their own counts.
var modeScanlines = [16]int{1, 1, 8, 10, 8, 16, 8, 16, 8, 4, 4, 2, 1, 2, 1, 1}

// TickResult reports the side effects of one Tick span. VBI and DLI are
// one-shot interrupt requests for the host to route into the CPU; Stall is
// asserted from a WSYNC write until the next scanline boundary.
type TickResult struct {
	Stall bool
	VBI   bool
	DLI   bool
}

type ANTIC struct {
	bus *MemoryBus

	dmactl byte
	chactl byte
	dlist  uint16 // Display list pointer as programmed
	hscrol byte
	vscrol byte
	pmbase byte
	chbase byte
	nmien  byte
	nmist  byte

	cursor    uint16 // Display list fetch cursor
	memScan   uint16 // Current memory scan pointer, set by LMS
	scanline  int
	lineCycle int // CPU cycles into the current scanline
	linesLeft int // Scanlines remaining for the current instruction
	dliArmed  bool
	waitVBI   bool // Jump-and-wait seen; fetch resumes at vertical blank
	stalled   bool
	vsLatch   bool
	hsLatch   bool
	frames    uint64
}

// NewANTIC creates a display engine that fetches through the given bus.
func NewANTIC(bus *MemoryBus) *ANTIC {
	return &ANTIC{bus: bus}
}

// Reset clears all registers and timing state, including any pending
// interrupt status and stall.
func (a *ANTIC) Reset() {
	*a = ANTIC{bus: a.bus}
}

// LoadDisplayList sets the instruction-stream pointer and restarts the fetch
// cursor at it.
func (a *ANTIC) LoadDisplayList(address uint16) {
	a.dlist = address
	a.cursor = address
	a.linesLeft = 0
	a.dliArmed = false
	a.waitVBI = false
}

// Frames returns the number of completed frames since reset.
func (a *ANTIC) Frames() uint64 {
	return a.frames
}

// Scanline returns the live scanline counter.
func (a *ANTIC) Scanline() int {
	return a.scanline
}

// PendingStall reports whether a WSYNC stall is asserted.
func (a *ANTIC) PendingStall() bool {
	return a.stalled
}

// CyclesUntilScanline returns the exact cycle count to the next scanline
// boundary. The engine's schedule is deterministic, so a WSYNC stall is this
// many cycles, never an open-ended wait.
func (a *ANTIC) CyclesUntilScanline() int {
	return CyclesPerScanline - a.lineCycle
}

// WriteRegister implements the 0xD400 register page.
func (a *ANTIC) WriteRegister(offset uint16, data byte) {
	switch offset & 0x0F {
	case regDMACTL:
		a.dmactl = data
	case regCHACTL:
		a.chactl = data
	case regDLISTL:
		a.dlist = (a.dlist & 0xFF00) | uint16(data)
		a.cursor = a.dlist
	case regDLISTH:
		a.dlist = (a.dlist & 0x00FF) | uint16(data)<<8
		a.cursor = a.dlist
	case regHSCROL:
		a.hscrol = data & 0x0F
	case regVSCROL:
		a.vscrol = data & 0x0F
	case regPMBASE:
		a.pmbase = data
	case regCHBASE:
		a.chbase = data
	case regWSYNC:
		// Any value. Stall holds until the next scanline boundary.
		a.stalled = true
	case regNMIEN:
		a.nmien = data
	case regNMIST:
		// NMIRES: acknowledge both interrupt classes.
		a.nmist = 0
	}
}

// ReadRegister implements reads from the 0xD400 register page.
func (a *ANTIC) ReadRegister(offset uint16) byte {
	switch offset & 0x0F {
	case regDMACTL:
		return a.dmactl
	case regCHACTL:
		return a.chactl
	case regDLISTL:
		return byte(a.dlist)
	case regDLISTH:
		return byte(a.dlist >> 8)
	case regHSCROL:
		return a.hscrol
	case regVSCROL:
		return a.vscrol
	case regPMBASE:
		return a.pmbase
	case regCHBASE:
		return a.chbase
	case regVCOUNT:
		return byte(a.scanline >> 1)
	case regNMIEN:
		return a.nmien
	case regNMIST:
		return a.nmist
	}
	return 0xFF
}

// Tick advances the engine by the given elapsed CPU cycle count and reports
// the side effects produced during that span. Interrupt requests and stall
// state must be consumed by the caller in the same tick they are reported.
func (a *ANTIC) Tick(cycles int) TickResult {
	var res TickResult
	a.lineCycle += cycles
	for a.lineCycle >= CyclesPerScanline {
		a.lineCycle -= CyclesPerScanline
		a.stalled = false
		a.advanceScanline(&res)
	}
	res.Stall = a.stalled
	return res
}

// advanceScanline runs the per-scanline-boundary state machine: frame wrap,
// vertical blank entry, and display list consumption.
func (a *ANTIC) advanceScanline(res *TickResult) {
	a.scanline++
	if a.scanline == ScanlinesPerFrame {
		a.scanline = 0
		a.frames++
	}
	if a.scanline == VBlankStart {
		a.nmist |= nmiVBI
		if a.nmien&nmiVBI != 0 {
			res.VBI = true
		}
		// A jump-and-wait instruction resumes fetching from here on.
		a.waitVBI = false
		return
	}
	if a.scanline > VBlankStart {
		// Display fetch is idle for the rest of the vertical blank.
		return
	}
	if a.dmactl&dmaDisplayList == 0 || a.waitVBI {
		return
	}
	if a.linesLeft > 0 {
		a.linesLeft--
		if a.linesLeft == 0 && a.dliArmed {
			// End of the instruction's last scanline.
			a.nmist |= nmiDLI
			if a.nmien&nmiDLI != 0 {
				res.DLI = true
			}
			a.dliArmed = false
		}
	}
	if a.linesLeft > 0 {
		return
	}
	a.fetchInstruction()
}

// fetchInstruction consumes the next display list instruction and sets up
// the scanline count for it.
func (a *ANTIC) fetchInstruction() {
	op := a.fetchByte()
	mode := op & dlModeMask
	switch mode {
	case modeBlank:
		// 1-8 blank lines from bits 4-6; the DLI flag is still honored.
		a.linesLeft = int((op>>4)&0x07) + 1
		a.dliArmed = op&dlDLI != 0
	case modeJump:
		target := a.fetch16()
		a.cursor = target
		if op&dlLMS != 0 {
			// Jump and wait for vertical blank: the list restarts once
			// per frame.
			a.waitVBI = true
			a.linesLeft = 0
			a.dliArmed = false
		} else {
			a.linesLeft = 1
			a.dliArmed = op&dlDLI != 0
		}
	default:
		a.linesLeft = modeScanlines[mode]
		a.dliArmed = op&dlDLI != 0
		a.vsLatch = op&dlVScroll != 0
		a.hsLatch = op&dlHScroll != 0
		if op&dlLMS != 0 {
			a.memScan = a.fetch16()
		}
	}
}

func (a *ANTIC) fetchByte() byte {
	b := a.bus.Read(a.cursor)
	a.cursor++
	return b
}

func (a *ANTIC) fetch16() uint16 {
	l := a.fetchByte()
	h := a.fetchByte()
	return uint16(h)<<8 | uint16(l)
}
