package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/segmentio/encoding/json"
	"k8s.io/klog/v2"

	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// Config represents the JSON configuration file structure.
type Config struct {
	General GeneralConfig `json:"general"`
	Runtime RuntimeConfig `json:"runtime"`
	Program ProgramConfig `json:"program"`
}

// GeneralConfig holds general application settings.
type GeneralConfig struct {
	DataDir      string `json:"data_dir"`
	LogVerbosity int    `json:"log_verbosity"`
}

// RuntimeConfig holds transaction execution settings.
type RuntimeConfig struct {
	ComputeUnitLimit uint64 `json:"compute_unit_limit"`
	VerifySignatures bool   `json:"verify_signatures"`
}

// ProgramConfig holds the deployed program addresses.
type ProgramConfig struct {
	MessageBufferID string `json:"message_buffer_id"`
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		General: GeneralConfig{
			DataDir:      defaultDataDir(),
			LogVerbosity: 0,
		},
		Runtime: RuntimeConfig{
			ComputeUnitLimit: uint64(types.DefaultComputeUnitsPerInstruction),
			VerifySignatures: true,
		},
		Program: ProgramConfig{
			MessageBufferID: types.MessageBufferProgramID.String(),
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".msgbuf"
	}
	return home + "/.msgbuf"
}

// loadConfig loads configuration from the specified JSON file. A missing
// file yields the defaults.
func loadConfig(configPath string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			klog.V(1).Infof("Config file not found at %s, using defaults", configPath)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	klog.V(1).Infof("Loaded configuration from %s", configPath)
	return cfg, nil
}

// options are the effective settings after flags override the config file.
type options struct {
	dataDir          string
	computeUnitLimit uint64
	verifySignatures bool
	programID        types.Pubkey
}

// applyConfigWithCLIOverrides merges cfg with the flags of fs that were
// explicitly set on the command line.
func applyConfigWithCLIOverrides(fs *flag.FlagSet, cfg Config, g *globalFlags) (options, error) {
	flagSet := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		flagSet[f.Name] = true
	})

	opts := options{
		dataDir:          cfg.General.DataDir,
		computeUnitLimit: cfg.Runtime.ComputeUnitLimit,
		verifySignatures: cfg.Runtime.VerifySignatures,
	}
	if flagSet["data-dir"] {
		opts.dataDir = g.dataDir
	}
	if flagSet["compute-unit-limit"] {
		opts.computeUnitLimit = g.computeUnitLimit
	}
	if flagSet["skip-sig-verify"] {
		opts.verifySignatures = !g.skipSigVerify
	}

	programID := cfg.Program.MessageBufferID
	if flagSet["program-id"] {
		programID = g.programID
	}
	pk, err := types.PubkeyFromBase58(programID)
	if err != nil {
		return opts, fmt.Errorf("invalid message buffer program id %q: %w", programID, err)
	}
	opts.programID = pk

	if !flagSet["v"] && cfg.General.LogVerbosity > 0 {
		if err := fs.Set("v", strconv.Itoa(cfg.General.LogVerbosity)); err != nil {
			return opts, err
		}
	}
	return opts, nil
}
