package atari

// Console owns the core triad and drives it as a single clock domain. The
// CPU and ANTIC never see each other; they are coupled only through the bus
// and the interrupt/stall values returned from Tick, which Step consumes in
// the same tick they are produced. Multiple consoles can coexist; there is
// no package-level state.
type Console struct {
	Bus    *MemoryBus
	CPU    *CPU
	ANTIC  *ANTIC
	cycles uint64
}

// NewConsole wires a bus, CPU and display engine. osROM and basicROM are
// optional images; a nil image leaves that window disabled so RAM shows
// through.
func NewConsole(osROM, basicROM []byte) (*Console, error) {
	bus := NewMemoryBus()
	if osROM != nil {
		if err := bus.LoadOS(osROM); err != nil {
			return nil, err
		}
	}
	if basicROM != nil {
		if err := bus.LoadBASIC(basicROM); err != nil {
			return nil, err
		}
	}
	antic := NewANTIC(bus)
	if err := bus.RegisterPage(0xD400, antic); err != nil {
		return nil, err
	}
	cpu := NewCPU(bus)
	return &Console{Bus: bus, CPU: cpu, ANTIC: antic}, nil
}

// Reset returns the whole system to power-on state. This is the only way to
// clear a halted CPU and the only cancellation concept in the core.
func (c *Console) Reset() {
	c.CPU.Reset()
	c.ANTIC.Reset()
	c.cycles = 0
}

// Step executes one CPU instruction and advances the display engine by the
// elapsed cycles, so interrupts and stalls are observed at the cycle they
// occur rather than at frame granularity. A reported WSYNC stall suspends
// the CPU for exactly the computed cycles to the next scanline boundary
// before the next instruction may issue.
func (c *Console) Step() (int, error) {
	cycles, err := c.CPU.Step()
	if err != nil {
		return cycles, err
	}
	c.cycles += uint64(cycles)
	res := c.ANTIC.Tick(cycles)
	c.route(res)
	if res.Stall {
		stall := c.ANTIC.CyclesUntilScanline()
		c.route(c.ANTIC.Tick(stall))
		c.CPU.cycles += uint64(stall)
		c.cycles += uint64(stall)
		cycles += stall
	}
	return cycles, nil
}

// route forwards the engine's one-shot interrupt requests to the CPU. Both
// classes arrive on the NMI line.
func (c *Console) route(res TickResult) {
	if res.VBI || res.DLI {
		c.CPU.RequestNMI()
	}
}

// StepFrame runs until the display engine completes the current frame and
// returns the cycles consumed. The step that halts the CPU surfaces its
// error; an already-halted CPU leaves the frame to finish on the engine's
// clock alone.
func (c *Console) StepFrame() (int, error) {
	start := c.ANTIC.Frames()
	total := 0
	for c.ANTIC.Frames() == start {
		cycles, err := c.Step()
		total += cycles
		if err != nil {
			return total, err
		}
		if c.CPU.IsHalted() {
			// A halted CPU consumes no cycles; let the frame finish on
			// the engine's clock alone.
			c.route(c.ANTIC.Tick(CyclesPerScanline))
			total += CyclesPerScanline
			c.cycles += CyclesPerScanline
		}
	}
	return total, nil
}

// Cycles returns the total machine cycles driven through the console.
func (c *Console) Cycles() uint64 {
	return c.cycles
}
