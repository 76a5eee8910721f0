package main

import (
	"flag"
	"os"
	"runtime/pprof"
	"time"

	"github.com/golang/glog"

	"github.com/petermartis/T-HMI-Atari800/atari"
)

var (
	osPath     = flag.String("os", "", "path to a 16K OS ROM image (optional)")
	basicPath  = flag.String("basic", "", "path to an 8K BASIC ROM image (optional)")
	frames     = flag.Int("frames", 600, "number of video frames to run headless")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	debug      = flag.Bool("debug", false, "run the stdio debug monitor")
)

func readROM(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		glog.Fatalln("Failed to read: " + path)
	}
	return b
}

func main() {
	flag.Parse()
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			glog.Fatal("Failed to create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			glog.Fatal("Failed to start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}
	console, err := atari.NewConsole(readROM(*osPath), readROM(*basicPath))
	if err != nil {
		glog.Fatalln("Failed to initiate Console: ", err)
	}
	if *debug {
		if err := atari.NewDebugConsole(console).Run(); err != nil {
			glog.Fatalln(err)
		}
		return
	}
	start := time.Now()
	for i := 0; i < *frames; i++ {
		if _, err := console.StepFrame(); err != nil {
			glog.Errorf("CPU halted: %v", err)
			break
		}
	}
	elapsed := time.Since(start)
	glog.Infof("Ran %d frames, %d cycles in %v (%.1fx hardware speed)",
		console.ANTIC.Frames(), console.Cycles(), elapsed,
		float64(console.Cycles())/atari.CPUFrequency/elapsed.Seconds())
	glog.Flush()
}
