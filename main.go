package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"

	"speccy/emu"
	"speccy/emu/log"
	"speccy/hw/fdc"
	"speccy/hw/snapshot"
	"speccy/hw/tape"
)

func main() {
	cli := parseArgs(os.Args[1:])
	log.EnableDebugModules(log.ModuleMask(cli.Log))

	switch cli.mode {
	case diskInfosMode:
		printDiskInfos(cli.DiskInfos.Path)
	case tapeInfosMode:
		printTapeInfos(cli.TapeInfos.Path)
	case regsMode:
		s, err := snapshot.LoadFile(cli.Regs.Path)
		checkf(err, "failed to load snapshot")
		checkf(emu.WriteRegs(os.Stdout, s), "failed to write registers")
	case versionMode:
		printVersion()
	case runMode:
		run(cli.Config, &cli.Run)
	}
}

func run(cfgPath string, args *Run) {
	if cfgPath == "" {
		cfgPath = emu.ConfigPath()
	}
	cfg := emu.LoadConfigOrDefault(cfgPath)
	if args.DOS {
		cfg.Emulation.BootToDOS = true
	}

	e, err := emu.New(cfg, filepath.Dir(cfgPath))
	checkf(err, "failed to start emulator")
	checkf(e.Load(args.Media...), "failed to load media")
	if args.Trace != nil {
		e.Machine.CPU.SetTraceOutput(args.Trace)
		defer args.Trace.Close()
	}
	if args.WAV != "" {
		checkf(e.RecordAudio(args.WAV), "failed to record audio")
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	go func() {
		<-sigc
		e.Stop()
	}()

	_, err = e.Run(args.Frames)
	signal.Stop(sigc)
	checkf(err, "emulation failed")
	checkf(e.Close(), "failed to close audio recording")

	if args.Screenshot != "" {
		checkf(e.SaveScreenshot(args.Screenshot), "failed to save screenshot")
	}
	if args.Save != "" {
		checkf(e.Machine.SaveMedia(args.Save), "failed to save %s", args.Save)
	}
	fmt.Println(&e.Machine.CPU.Regs)
}

func printDiskInfos(path string) {
	d, err := fdc.LoadDiskFile(path)
	checkf(err, "failed to load disk image")

	info := d.Info()
	fmt.Printf("label:   %q\n", info.Label)
	fmt.Printf("files:   %d (%d deleted)\n", info.Files, info.Deleted)
	fmt.Printf("free:    %d sectors\n", info.FreeSectors)
	fmt.Printf("next:    track %d sector %d\n\n", info.FirstTrack, info.FirstSector)
	for _, f := range d.Catalog() {
		fmt.Println(f)
	}
}

func printTapeInfos(path string) {
	t, err := tape.LoadFile(path)
	checkf(err, "failed to load tape")
	if t.IsPCM() {
		fatalf("%s: sampled tapes have no blocks", path)
	}
	for _, b := range t.Blocks() {
		fmt.Println(b)
	}
}

func printVersion() {
	version := "(devel)"
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		version = bi.Main.Version
	}
	fmt.Println("speccy", version)
}
