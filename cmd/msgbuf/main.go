// msgbuf runs the message buffer program against a local ledger.
//
// The ledger is a badger account store under the data directory. Every
// subcommand that changes state builds a transaction, signs it with the
// given keypair files and executes it through the runtime; a failed
// transaction leaves the ledger untouched.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"k8s.io/klog/v2"

	"github.com/naviprotocol/pyth-crosschain/pkg/accounts"
	"github.com/naviprotocol/pyth-crosschain/pkg/metrics"
	"github.com/naviprotocol/pyth-crosschain/pkg/runtime"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

type globalFlags struct {
	configFile       string
	dataDir          string
	computeUnitLimit uint64
	skipSigVerify    bool
	programID        string
	printMetrics     bool
	showVersion      bool
}

func registerGlobalFlags(fs *flag.FlagSet) *globalFlags {
	g := &globalFlags{}
	fs.StringVar(&g.configFile, "config", defaultDataDir()+"/config.json", "Path to JSON configuration file")
	fs.StringVar(&g.dataDir, "data-dir", "", "Ledger directory (\":memory:\" for a throwaway ledger)")
	fs.Uint64Var(&g.computeUnitLimit, "compute-unit-limit", 0, "Compute budget per transaction")
	fs.BoolVar(&g.skipSigVerify, "skip-sig-verify", false, "Skip signature verification (unsafe)")
	fs.StringVar(&g.programID, "program-id", "", "Message buffer program id")
	fs.BoolVar(&g.printMetrics, "print-metrics", false, "Print runtime metrics in Prometheus text format on exit")
	fs.BoolVar(&g.showVersion, "version", false, "Print version and exit")
	return g
}

// env is what a subcommand runs against.
type env struct {
	opts    options
	db      accounts.AccountsDB
	rt      *runtime.Runtime
	metrics *metrics.Metrics
	out     io.Writer
}

func openEnv(opts options, out io.Writer) (*env, error) {
	var db accounts.AccountsDB
	if opts.dataDir == ":memory:" {
		db = accounts.NewMemoryDB()
		klog.V(1).Info("Using in-memory ledger")
	} else {
		dbPath := opts.dataDir + "/accounts"
		if err := os.MkdirAll(dbPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		bdb, err := accounts.NewBadgerDB(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger: %w", err)
		}
		klog.V(1).Infof("Opened ledger at %s", dbPath)
		db = bdb
	}

	m := metrics.NewMetrics()
	m.AccountsCount.SetUint64(db.GetAccountsCount())
	rt := runtime.New(db, runtime.NewDefaultRegistry(opts.programID),
		runtime.WithMetrics(m),
		runtime.WithConfig(runtime.Config{
			ComputeUnitLimit: types.ComputeUnits(opts.computeUnitLimit),
			VerifySignatures: opts.verifySignatures,
		}),
	)
	return &env{opts: opts, db: db, rt: rt, metrics: m, out: out}, nil
}

type command struct {
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"keygen":         {"keygen -out FILE", runKeygen},
	"airdrop":        {"airdrop -to PUBKEY -lamports N", runAirdrop},
	"set-rent":       {"set-rent [-lamports-per-byte-year N] [-exemption-threshold F]", runSetRent},
	"init-whitelist": {"init-whitelist -keypair FILE [-admin PUBKEY]", runInitWhitelist},
	"set-allowed":    {"set-allowed -keypair FILE -programs PUBKEY[,PUBKEY...]", runSetAllowed},
	"update-admin":   {"update-admin -keypair FILE -new-admin PUBKEY", runUpdateAdmin},
	"create-buffer":  {"create-buffer -keypair FILE -auth PUBKEY -base PUBKEY -size N", runCreateBuffer},
	"resize-buffer":  {"resize-buffer -keypair FILE -auth PUBKEY -base PUBKEY -size N [-bump B] [-buffer PUBKEY] [-cu-limit N]", runResizeBuffer},
	"delete-buffer":  {"delete-buffer -keypair FILE -auth PUBKEY -base PUBKEY", runDeleteBuffer},
	"show-whitelist": {"show-whitelist", runShowWhitelist},
	"show-buffer":    {"show-buffer -auth PUBKEY -base PUBKEY", runShowBuffer},
	"show-account":   {"show-account -pubkey PUBKEY", runShowAccount},
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: msgbuf [global flags] <command> [command flags]\n\nCommands:\n")
		names := make([]string, 0, len(commands))
		for name := range commands {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %s\n", commands[name].usage)
		}
		fmt.Fprintf(out, "\nGlobal flags:\n")
		fs.PrintDefaults()
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	fs := flag.NewFlagSet("msgbuf", flag.ContinueOnError)
	klog.InitFlags(fs)
	g := registerGlobalFlags(fs)
	fs.Usage = usage(fs)
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	defer klog.Flush()

	if g.showVersion {
		fmt.Printf("msgbuf %s (%s)\n", Version, GitCommit)
		return 0
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", fs.Arg(0))
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(g.configFile)
	if err != nil {
		klog.Errorf("Failed to load configuration: %v", err)
		return 1
	}
	opts, err := applyConfigWithCLIOverrides(fs, cfg, g)
	if err != nil {
		klog.Errorf("Invalid configuration: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnv(opts, os.Stdout)
	if err != nil {
		klog.Errorf("%v", err)
		return 1
	}
	defer e.db.Close()

	err = cmd.run(ctx, e, fs.Args()[1:])
	if g.printMetrics {
		fmt.Print(e.metrics.Format())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
