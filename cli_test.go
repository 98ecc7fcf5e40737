package main

import (
	"os"
	"path/filepath"
	"testing"

	"speccy/emu/log"
)

func TestParseArgs(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "game.trd")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		args []string
		want mode
	}{
		{[]string{"run"}, runMode},
		{[]string{"run", file, "--frames", "10"}, runMode},
		{[]string{"disk-infos", file}, diskInfosMode},
		{[]string{"tape-infos", file}, tapeInfosMode},
		{[]string{"regs", file}, regsMode},
		{[]string{"version"}, versionMode},
	} {
		if got := parseArgs(tt.args).mode; got != tt.want {
			t.Errorf("%q: mode %d, want %d", tt.args, got, tt.want)
		}
	}

	cli := parseArgs([]string{"--log", "fdc,tape", "run", file, "--frames", "10", "--dos"})
	if want := logModMask(log.ModFDC.Mask() | log.ModTape.Mask()); cli.Log != want {
		t.Errorf("log mask %x, want %x", cli.Log, want)
	}
	if cli.Run.Frames != 10 || !cli.Run.DOS || len(cli.Run.Media) != 1 {
		t.Errorf("run args %+v", cli.Run)
	}
}
