package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"speccy/emu/log"
)

type mode byte

const (
	runMode       mode = iota // Run media headless
	diskInfosMode             // Show disk catalog
	tapeInfosMode             // Show tape blocks
	regsMode                  // Dump snapshot registers
	versionMode               // Show speccy version
)

type (
	CLI struct {
		Run       Run       `cmd:"" help:"Run the emulator without display."`
		DiskInfos DiskInfos `cmd:"" help:"Show disk image catalog." name:"disk-infos"`
		TapeInfos TapeInfos `cmd:"" help:"Show tape blocks." name:"tape-infos"`
		Regs      Regs      `cmd:"" help:"Dump snapshot registers as JSON."`
		Version   Version   `cmd:"" help:"Show speccy version."`

		Log    logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`
		Config string     `help:"${config_help}" type:"path" placeholder:"FILE"`

		mode mode
	}

	Run struct {
		Media []string `arg:"" name:"media" help:"${media_help}" optional:""`

		Frames     int      `name:"frames" help:"Number of frames to run, 0 to run until interrupted." default:"250"`
		Screenshot string   `name:"screenshot" help:"Save the last frame as PNG." type:"path" placeholder:"FILE"`
		WAV        string   `name:"wav" help:"Record audio to a WAV file." type:"path" placeholder:"FILE"`
		Save       string   `name:"save" help:"${save_help}" type:"path" placeholder:"FILE"`
		DOS        bool     `name:"dos" help:"Boot into TR-DOS."`
		Trace      *outfile `name:"trace" help:"Write CPU trace log." placeholder:"FILE|stdout|stderr"`
	}

	DiskInfos struct {
		Path string `arg:"" name:"/path/to/disk" help:"TRD or SCL image." type:"existingfile"`
	}

	TapeInfos struct {
		Path string `arg:"" name:"/path/to/tape" help:"TAP image." type:"existingfile"`
	}

	Regs struct {
		Path string `arg:"" name:"/path/to/snapshot" help:"Z80 snapshot." type:"existingfile"`
	}

	Version struct{}
)

var vars = kong.Vars{
	"media_help":  "Disk (.trd, .scl), tape (.tap, .wav, .mp3) or snapshot (.z80) files, loaded in order.",
	"save_help":   "Save disk A, the tape or a snapshot after running, chosen by extension.",
	"config_help": "Configuration file. (default: speccy config directory)",
	"log_help":    "Enable logging for specified modules.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("speccy"),
		kong.Description("Pentagon 128 emulator."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch strings.Fields(ctx.Command())[0] {
	case "disk-infos":
		cfg.mode = diskInfosMode
	case "tape-infos":
		cfg.mode = tapeInfosMode
	case "regs":
		cfg.mode = regsMode
	case "version":
		cfg.mode = versionMode
	default:
		cfg.mode = runMode
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	if strings.HasPrefix(ctx.Command(), "run") {
		loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
		var strs []string
		for _, m := range log.ModuleNames() {
			strs = append(strs, "    - "+m)
		}

		fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	}

	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm *logModMask) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	list, ok := tok.Value.(string)
	if !ok {
		return fmt.Errorf("expected a list of log modules, got %v", tok.Value)
	}
	if strings.Contains(","+list+",", ",no,") && list != "no" {
		return fmt.Errorf("cannot combine 'no' with other log modules")
	}
	if list == "no" {
		log.SetOutput(io.Discard)
	}
	mask, err := log.ParseModules(list)
	if err != nil {
		return err
	}
	*lm = logModMask(mask)
	return nil
}

type outfile struct {
	w     io.Writer
	name  string
	close func() error
}

// Decode decodes FILE|stdout|stderr into an io.WriteCloser
// that writes to that file.
//
// Implements kong.MapperValue interface.
func (f *outfile) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	f.name, _ = tok.Value.(string)
	f.close = func() error { return nil }

	switch f.name {
	case "stdout":
		f.w = os.Stdout
	case "stderr":
		f.w = os.Stderr
	default:
		fd, err := os.Create(f.name)
		if err != nil {
			return err
		}
		f.w = bufio.NewWriter(fd)
		f.close = func() error {
			if err := f.w.(*bufio.Writer).Flush(); err != nil {
				fd.Close()
				return err
			}
			return fd.Close()
		}
	}
	return nil
}

func (f *outfile) String() string              { return f.name }
func (f *outfile) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *outfile) Close() error                { return f.close() }

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
