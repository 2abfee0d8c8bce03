package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"steps": 50, "data_path": "/var/lib/rv32i", "dump_registers": true}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.Steps = 50
	want.DataPath = "/var/lib/rv32i"
	want.DumpRegisters = true
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("missing file loaded")
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	cfg := Default()
	cfg.Steps = 50
	cfg.TraceFile = "from-file.log"

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags := Register(fs, "steps", "trace", "dump", "keep-snapshots")
	if err := fs.Parse([]string{"-steps", "7", "-dump", "-keep-snapshots", "2"}); err != nil {
		t.Fatal(err)
	}
	flags.Apply(&cfg)

	if cfg.Steps != 7 || !cfg.DumpRegisters || cfg.KeepSnapshots != 2 {
		t.Errorf("explicit flags not applied: %+v", cfg)
	}
	if cfg.TraceFile != "from-file.log" {
		t.Errorf("unset flag overwrote file value: %q", cfg.TraceFile)
	}
	if fs.Lookup("socket") != nil {
		t.Errorf("unrequested flag registered")
	}
}
