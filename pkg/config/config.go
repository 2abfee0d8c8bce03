// Package config holds the settings shared by the commands. Values come from
// an optional JSON file; command line flags that were set explicitly win.
package config

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/alexanderKus/risc-v-emulator/pkg/constants"
)

// Config represents the configuration loaded from the JSON file
type Config struct {
	Steps         uint64 `json:"steps"`          // Instruction budget per run
	TraceFile     string `json:"trace_file"`     // Per-instruction trace destination
	DumpRegisters bool   `json:"dump_registers"` // Print registers after the run
	DataPath      string `json:"data_path"`      // Snapshot database directory
	KeepSnapshots int    `json:"keep_snapshots"` // Snapshots kept per image, 0 keeps all
	SocketPath    string `json:"socket_path"`    // Conformance server unix socket
	QuicAddr      string `json:"quic_addr"`      // Conformance server QUIC address
	KeySeed       string `json:"key_seed"`       // Seed of the QUIC identity key
	MetricsAddr   string `json:"metrics_addr"`   // HTTP address for /metrics
}

func Default() Config {
	return Config{
		Steps:      constants.DefaultStepBudget,
		SocketPath: "/tmp/rv32i_target.sock",
	}
}

// Load reads a JSON file over the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config file")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse config file")
	}
	return cfg, nil
}

// Flags holds command line values until Apply merges them into a Config.
type Flags struct {
	fs     *flag.FlagSet
	values Config
}

// Register defines the flags named in fields on fs with defaults from
// Default(). Unknown names are ignored.
func Register(fs *flag.FlagSet, fields ...string) *Flags {
	f := &Flags{fs: fs, values: Default()}
	for _, name := range fields {
		switch name {
		case "steps":
			fs.Uint64Var(&f.values.Steps, name, f.values.Steps, "Maximum number of instructions to execute")
		case "trace":
			fs.StringVar(&f.values.TraceFile, name, "", "Write a per-instruction trace to this file")
		case "dump":
			fs.BoolVar(&f.values.DumpRegisters, name, false, "Print the register file after the run")
		case "data-path":
			fs.StringVar(&f.values.DataPath, name, "", "Path to the snapshot database directory")
		case "keep-snapshots":
			fs.IntVar(&f.values.KeepSnapshots, name, 0, "Snapshots to keep per image after saving; 0 keeps all")
		case "socket":
			fs.StringVar(&f.values.SocketPath, name, f.values.SocketPath, "Path for the Unix domain socket")
		case "quic":
			fs.StringVar(&f.values.QuicAddr, name, "", "UDP address for the QUIC interface")
		case "key-seed":
			fs.StringVar(&f.values.KeySeed, name, "", "Seed for the QUIC identity key")
		case "metrics":
			fs.StringVar(&f.values.MetricsAddr, name, "", "HTTP address for Prometheus metrics")
		}
	}
	return f
}

// Apply copies every flag that was set on the command line into cfg.
func (f *Flags) Apply(cfg *Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "steps":
			cfg.Steps = f.values.Steps
		case "trace":
			cfg.TraceFile = f.values.TraceFile
		case "dump":
			cfg.DumpRegisters = f.values.DumpRegisters
		case "data-path":
			cfg.DataPath = f.values.DataPath
		case "keep-snapshots":
			cfg.KeepSnapshots = f.values.KeepSnapshots
		case "socket":
			cfg.SocketPath = f.values.SocketPath
		case "quic":
			cfg.QuicAddr = f.values.QuicAddr
		case "key-seed":
			cfg.KeySeed = f.values.KeySeed
		case "metrics":
			cfg.MetricsAddr = f.values.MetricsAddr
		}
	})
}
