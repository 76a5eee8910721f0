package atari

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// DebugConsole wraps a Console with a stdio monitor, you can execute some
// commands through stdin.
// commands:
//   s:
//     execute step(s), optionally "s 100" or "s 2f" (frames) or "s 5d"
//     (steps with state printed after each).
//   p:
//     print machine state.
//   br:
//     set a break point, "br 0xA000".
//   r:
//     reset.
//   q:
//     quit.
type DebugConsole struct {
	*Console
	breakpoints []uint16
}

// NewDebugConsole wraps an existing console.
func NewDebugConsole(console *Console) *DebugConsole {
	return &DebugConsole{Console: console}
}

func (c *DebugConsole) printStack() {
	for i := 0; i < 256; i++ {
		idx := uint16(0x100 | i)
		fmt.Printf("0x%04x: 0x%02x, ", idx, c.Bus.Read(idx))
		if i%16 == 15 {
			fmt.Println()
		}
	}
}

func (c *DebugConsole) basePrint() {
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Executed cycles: %d\n", c.Cycles())
	fmt.Printf("Frames: %d\n", c.ANTIC.Frames())
	fmt.Println("Last: " + c.CPU.lastExecution)
	fmt.Printf("CPU:   PC=0x%04x, A=0x%02x, X=0x%02x, Y=0x%02x, S=0x%02x, P=0x%02x, halted=%v\n",
		c.CPU.pc, c.CPU.a, c.CPU.x, c.CPU.y, c.CPU.s, c.CPU.p.encode(), c.CPU.halted)
	fmt.Printf("ANTIC: scanline=%d, dlist=0x%04x, cursor=0x%04x, NMIEN=0x%02x, NMIST=0x%02x\n",
		c.ANTIC.scanline, c.ANTIC.dlist, c.ANTIC.cursor, c.ANTIC.nmien, c.ANTIC.nmist)
}

func (c *DebugConsole) printCommand(args []string) {
	if len(args) < 2 {
		c.basePrint()
		return
	}
	switch args[1] {
	case "c", "cpu":
		fmt.Printf("%+v\n", *c.CPU)
	case "a", "antic":
		fmt.Printf("%+v\n", *c.ANTIC)
	case "st", "stack":
		c.printStack()
	}
}

func (c *DebugConsole) checkBreak() bool {
	for _, bp := range c.breakpoints {
		if bp == c.CPU.pc {
			fmt.Printf("Break at: 0x%04x\n", bp)
			return true
		}
	}
	return false
}

func (c *DebugConsole) stepCommand(args []string) (int, error) {
	if len(args) < 2 {
		return c.Step()
	}
	re := regexp.MustCompile("^([0-9]+)")
	if !re.MatchString(args[1]) {
		return 0, fmt.Errorf("bad step count %q", args[1])
	}
	num, _ := strconv.Atoi(re.FindString(args[1]))
	unit := args[1][len(args[1])-1]
	cycles := 0
	switch unit {
	case 'f':
		for i := 0; i < num; i++ {
			v, err := c.StepFrame()
			cycles += v
			if err != nil {
				return cycles, err
			}
			if c.checkBreak() {
				return cycles, nil
			}
		}
	case 'd':
		// Steps with state printed after each.
		for i := 0; i < num; i++ {
			v, err := c.Step()
			c.basePrint()
			cycles += v
			if err != nil {
				return cycles, err
			}
			if c.checkBreak() {
				return cycles, nil
			}
		}
	default:
		for i := 0; i < num; i++ {
			v, err := c.Step()
			cycles += v
			if err != nil {
				return cycles, err
			}
			if c.checkBreak() {
				return cycles, nil
			}
		}
	}
	return cycles, nil
}

func (c *DebugConsole) breakPointCommand(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("breakpoint needs an address")
	}
	var i int
	fmt.Sscanf(args[1], "0x%x\n", &i)
	c.breakpoints = append(c.breakpoints, uint16(i))
	return nil
}

// Run reads commands from stdin until quit.
func (c *DebugConsole) Run() error {
	in := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("Debugger mode, 'q' to quit \n>> ")
		line, err := in.ReadString('\n')
		if err != nil {
			return err
		}
		args := strings.Split(strings.TrimSuffix(line, "\n"), " ")
		switch args[0] {
		case "p", "print":
			c.printCommand(args)
		case "s", "step":
			cycles, err := c.stepCommand(args)
			c.basePrint() // Print data before it die.
			if err != nil {
				fmt.Println(err)
			}
			fmt.Printf("Executed %d CPU cycles.\n", cycles)
		case "br", "breakpoint":
			if err := c.breakPointCommand(args); err != nil {
				fmt.Println(err)
			}
		case "r", "reset":
			c.Reset()
		case "q", "quit":
			fmt.Println("Quitting.")
			return nil
		default:
			fmt.Printf("Unknown command %s\n", args[0])
		}
	}
}
