package main

import (
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/pwnedmirror/internal/config"
)

// engineFlags holds the pflag bindings shared by every subcommand that
// constructs an Engine.
type engineFlags struct {
	resourceDir string
	workers     int
	dataFile    string
	mocked      bool
	configPath  string
	cwd         string
}

func bindEngineFlags(fs *flag.FlagSet) *engineFlags {
	f := &engineFlags{}

	fs.StringVar(&f.resourceDir, "resource-dir", "", "Directory holding the mirrored datasets")
	fs.IntVar(&f.workers, "workers", 0, "Number of cooperative fetch workers (0 = use config default)")
	fs.StringVar(&f.dataFile, "data-file", "", "Import range data from a sorted bulk `file` instead of upstream")
	fs.BoolVar(&f.mocked, "mocked", false, "Use the deterministic synthetic Range Provider")
	fs.StringVarP(&f.configPath, "config", "c", "", "Use specified config `file`")
	fs.StringVarP(&f.cwd, "cwd", "C", "", "Run as if started in `dir`")

	return f
}

func (f *engineFlags) overrides() config.Overrides {
	o := config.Overrides{
		ResourceDir:     f.resourceDir,
		DataFilePath:    f.dataFile,
		Mocked:          f.mocked,
		ConfigPath:      f.configPath,
		WorkDirOverride: f.cwd,
	}

	if f.workers > 0 {
		workers := f.workers
		o.Workers = &workers
	}

	return o
}
