package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/alexanderKus/risc-v-emulator/pkg/config"
	"github.com/alexanderKus/risc-v-emulator/pkg/program"
	"github.com/alexanderKus/risc-v-emulator/pkg/rv32i"
	"github.com/alexanderKus/risc-v-emulator/pkg/staterepository"
)

const (
	exitOK    = 0
	exitFault = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rv32i", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: rv32i [flags] <image>")
		fs.PrintDefaults()
	}
	configPath := fs.String("config-path", "", "Path to a JSON configuration file")
	resume := fs.Bool("resume", false, "Continue from the latest snapshot of the image in -data-path")
	flags := config.Register(fs, "steps", "trace", "dump", "data-path", "keep-snapshots")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}

	logger := log.New(stderr, "", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Printf("Error: %v", err)
		return exitUsage
	}
	flags.Apply(&cfg)
	if *resume && cfg.DataPath == "" {
		logger.Printf("Error: -resume needs -data-path")
		return exitUsage
	}

	m := rv32i.NewMachine()
	if err := program.Load(m, fs.Arg(0)); err != nil {
		logger.Printf("Error: %v", err)
		if errors.Is(err, rv32i.ErrUsage) {
			return exitUsage
		}
		return exitFault
	}

	if cfg.TraceFile != "" {
		trace, file, err := rv32i.OpenTraceLogger(cfg.TraceFile)
		if err != nil {
			logger.Printf("Failed to open trace file: %v", err)
			return exitUsage
		}
		defer file.Close()
		m.SetTraceLogger(trace)
	}

	var repo *staterepository.PebbleStateRepository
	if cfg.DataPath != "" {
		repo, err = staterepository.Open(cfg.DataPath)
		if err != nil {
			logger.Printf("Failed to open snapshot store: %v", err)
			return exitFault
		}
		defer repo.Close()
	}

	if *resume {
		snap, found, err := repo.LatestSnapshot(m.ImageHash())
		if err != nil {
			logger.Printf("Failed to read snapshot: %v", err)
			return exitFault
		}
		if found {
			if err := staterepository.Restore(m, snap); err != nil {
				logger.Printf("Failed to restore snapshot: %v", err)
				return exitFault
			}
			logger.Printf("Resuming image %s at step %d", m.ImageHash(), snap.Step)
		}
	}

	exitReason, runErr := m.Run(cfg.Steps)
	logger.Printf("%s after %d instructions, state root %x", exitReason.Type, m.Retired(), m.StateRoot())

	if repo != nil {
		pruned, err := repo.SaveAndPrune(staterepository.Capture(m), cfg.KeepSnapshots)
		if err != nil {
			logger.Printf("Failed to save snapshot: %v", err)
			return exitFault
		}
		if pruned > 0 {
			logger.Printf("Pruned %d old snapshots of image %s", pruned, m.ImageHash())
		}
	}

	if cfg.DumpRegisters {
		if err := m.DumpRegisters(stdout); err != nil {
			logger.Printf("Failed to dump registers: %v", err)
		}
	}

	if runErr != nil {
		logger.Printf("Error: %v", runErr)
		return exitFault
	}
	return exitOK
}
