package emu

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/kirsle/configdir"

	"speccy/emu/log"
	"speccy/hw"
	"speccy/hw/sound"
)

type Config struct {
	ROMs      ROMConfig       `toml:"roms"`
	Audio     AudioConfig     `toml:"audio"`
	Emulation EmulationConfig `toml:"emulation"`
}

type ROMConfig struct {
	ROM128 string `toml:"rom128"`
	ROM48  string `toml:"rom48"`
	DOS    string `toml:"trdos"`
	Sys    string `toml:"sys"`
}

type AudioConfig struct {
	DisableAudio bool    `toml:"disable_audio"`
	SampleRate   int     `toml:"sample_rate"`
	MixerMode    string  `toml:"mixer_mode"`
	AYVolume     int     `toml:"ay_volume"`
	BeeperVolume int     `toml:"beeper_volume"`
	TapeVolume   int     `toml:"tape_volume"`
	FilterCutoff float64 `toml:"filter_cutoff"`
}

type EmulationConfig struct {
	BootToDOS    bool `toml:"boot_to_dos"`
	TapeAutoPlay bool `toml:"tape_autoplay"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	snd := sound.DefaultConfig()
	return Config{
		ROMs: ROMConfig{
			ROM128: "128.rom",
			ROM48:  "48.rom",
			DOS:    "trdos.rom",
		},
		Audio: AudioConfig{
			SampleRate:   snd.SampleRate,
			MixerMode:    snd.Mixer.String(),
			AYVolume:     snd.AYVolume,
			BeeperVolume: snd.BeeperVolume,
			TapeVolume:   snd.TapeVolume,
			FilterCutoff: snd.FilterCutoff,
		},
		Emulation: EmulationConfig{TapeAutoPlay: true},
	}
}

// Machine converts cfg into the hardware configuration. Relative ROM paths
// are resolved against romDir.
func (cfg Config) Machine(romDir string) (hw.Config, error) {
	snd := sound.DefaultConfig()
	a := cfg.Audio
	if a.SampleRate > 0 {
		snd.SampleRate = a.SampleRate
	}
	if a.MixerMode != "" {
		m, ok := sound.ParseMixerMode(a.MixerMode)
		if !ok {
			return hw.Config{}, fmt.Errorf("invalid mixer mode %q", a.MixerMode)
		}
		snd.Mixer = m
	}
	snd.AYVolume = a.AYVolume
	snd.BeeperVolume = a.BeeperVolume
	snd.TapeVolume = a.TapeVolume
	snd.FilterCutoff = a.FilterCutoff

	rom := func(path string) string {
		if path == "" || filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(romDir, path)
	}
	return hw.Config{
		ROMs: hw.ROMPaths{
			ROM128: rom(cfg.ROMs.ROM128),
			ROM48:  rom(cfg.ROMs.ROM48),
			DOS:    rom(cfg.ROMs.DOS),
			Sys:    rom(cfg.ROMs.Sys),
		},
		Sound:        snd,
		BootToDOS:    cfg.Emulation.BootToDOS,
		TapeAutoPlay: cfg.Emulation.TapeAutoPlay,
	}, nil
}

var ConfigDir = sync.OnceValue(func() string {
	dir := configdir.LocalConfig("speccy")
	if err := configdir.MakePath(dir); err != nil {
		log.ModEmu.Fatalf("failed to create directory %s: %v", dir, err)
	}
	return dir
})

const cfgFilename = "config.toml"

// ConfigPath is the path of the configuration file in the config directory.
func ConfigPath() string { return filepath.Join(ConfigDir(), cfgFilename) }

// LoadConfig reads the configuration at path. Keys missing from the file
// keep their default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return DefaultConfig(), err
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		log.ModEmu.WarnZ("unknown config keys").String("path", path).Int("count", len(undec)).End()
	}
	return cfg, nil
}

// LoadConfigOrDefault loads the configuration at path, or at ConfigPath if
// path is empty, and falls back to DefaultConfig.
func LoadConfigOrDefault(path string) Config {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := LoadConfig(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.ModEmu.InfoZ("no config file, using defaults").String("path", path).End()
	case err != nil:
		log.ModEmu.WarnZ("failed to load config").String("path", path).Error("err", err).End()
	}
	return cfg
}

// SaveConfig writes cfg to path.
func SaveConfig(cfg Config, path string) error {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}
