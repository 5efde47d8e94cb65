package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/naviprotocol/pyth-crosschain/pkg/crypto"
	"github.com/naviprotocol/pyth-crosschain/pkg/svm/programs/compute_budget"
	"github.com/naviprotocol/pyth-crosschain/pkg/svm/programs/message_buffer"
	"github.com/naviprotocol/pyth-crosschain/pkg/svm/sysvar"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

var errMissingFlag = errors.New("missing required flag")

func parsePubkey(name, value string) (types.Pubkey, error) {
	if value == "" {
		return types.Pubkey{}, fmt.Errorf("%w -%s", errMissingFlag, name)
	}
	pk, err := types.PubkeyFromBase58(value)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("-%s: %w", name, err)
	}
	return pk, nil
}

func parsePubkeyList(name, value string) ([]types.Pubkey, error) {
	var out []types.Pubkey
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		pk, err := parsePubkey(name, s)
		if err != nil {
			return nil, err
		}
		out = append(out, pk)
	}
	return out, nil
}

// uint32Value is a flag.Value rejecting numbers that do not fit in 32 bits.
type uint32Value uint32

func (v *uint32Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return err
	}
	*v = uint32Value(n)
	return nil
}

func (v *uint32Value) String() string {
	return strconv.FormatUint(uint64(*v), 10)
}

func uint32Flag(fs *flag.FlagSet, name string, value uint32, usage string) *uint32 {
	p := new(uint32)
	*p = value
	fs.Var((*uint32Value)(p), name, usage)
	return p
}

func loadSigner(path string) (*crypto.Keypair, error) {
	if path == "" {
		return nil, fmt.Errorf("%w -keypair", errMissingFlag)
	}
	return crypto.LoadKeypair(path)
}

// submit signs a transaction paid for by signer and executes it.
func (e *env) submit(ctx context.Context, signer *crypto.Keypair, ixs ...types.Instruction) error {
	blockhash := types.SHA256([]byte(uuid.NewString()))
	tx, err := types.NewTransaction(signer.Pubkey(), blockhash, ixs...)
	if err != nil {
		return err
	}
	if err := crypto.SignTransaction(tx, signer); err != nil {
		return err
	}
	result, err := e.rt.ExecuteTransaction(ctx, tx)
	if err != nil {
		return err
	}
	printResult(e.out, result)
	if !result.Success {
		return fmt.Errorf("transaction %s failed: %w", result.ExecutionID, result.Error)
	}
	return nil
}

func runKeygen(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	out := fs.String("out", "", "Path to write the keypair to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("%w -out", errMissingFlag)
	}
	k, err := crypto.GenerateKeypair()
	if err != nil {
		return err
	}
	if err := crypto.SaveKeypair(*out, k); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Wrote keypair %s to %s\n", k.Pubkey(), *out)
	return nil
}

func runAirdrop(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("airdrop", flag.ContinueOnError)
	to := fs.String("to", "", "Recipient")
	lamports := fs.Uint64("lamports", 0, "Amount to credit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pk, err := parsePubkey("to", *to)
	if err != nil {
		return err
	}
	acct, err := e.db.GetAccount(pk)
	if err != nil {
		return err
	}
	if acct == nil {
		acct = types.NewAccount(0, types.SystemProgramID)
	}
	acct.Lamports += types.Lamports(*lamports)
	if err := e.db.SetAccount(pk, acct); err != nil {
		return err
	}
	klog.V(1).Infof("Airdropped %d lamports to %s", *lamports, pk)
	fmt.Fprintf(e.out, "Balance of %s: %d lamports\n", pk, acct.Lamports)
	return nil
}

func runSetRent(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("set-rent", flag.ContinueOnError)
	def := sysvar.DefaultRent()
	perByte := fs.Uint64("lamports-per-byte-year", def.LamportsPerByteYear, "Rent per byte-year")
	threshold := fs.Float64("exemption-threshold", def.ExemptionThreshold, "Years of rent required for exemption")
	burn := fs.Uint("burn-percent", uint(def.BurnPercent), "Percent of collected rent burned")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *burn > 100 {
		return fmt.Errorf("-burn-percent must be at most 100, got %d", *burn)
	}
	rent := sysvar.Rent{
		LamportsPerByteYear: *perByte,
		ExemptionThreshold:  *threshold,
		BurnPercent:         uint8(*burn),
	}
	acct, err := sysvar.NewRentAccount(rent)
	if err != nil {
		return err
	}
	if err := e.db.SetAccount(types.SysvarRentID, acct); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Rent set: %d lamports/byte-year, threshold %g (minimum for 0 bytes: %d)\n",
		rent.LamportsPerByteYear, rent.ExemptionThreshold, rent.MinimumBalance(0))
	return nil
}

func runInitWhitelist(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("init-whitelist", flag.ContinueOnError)
	keypair := fs.String("keypair", "", "Payer keypair file")
	admin := fs.String("admin", "", "Whitelist admin (defaults to the payer)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	signer, err := loadSigner(*keypair)
	if err != nil {
		return err
	}
	adminKey := signer.Pubkey()
	if *admin != "" {
		if adminKey, err = parsePubkey("admin", *admin); err != nil {
			return err
		}
	}
	ix, err := message_buffer.NewInitializeInstruction(e.opts.programID, signer.Pubkey(), adminKey)
	if err != nil {
		return err
	}
	return e.submit(ctx, signer, ix)
}

func runSetAllowed(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("set-allowed", flag.ContinueOnError)
	keypair := fs.String("keypair", "", "Admin keypair file")
	programs := fs.String("programs", "", "Comma separated program authorities (empty clears the list)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	signer, err := loadSigner(*keypair)
	if err != nil {
		return err
	}
	allowed, err := parsePubkeyList("programs", *programs)
	if err != nil {
		return err
	}
	ix, err := message_buffer.NewSetAllowedProgramsInstruction(e.opts.programID, signer.Pubkey(), allowed)
	if err != nil {
		return err
	}
	return e.submit(ctx, signer, ix)
}

func runUpdateAdmin(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("update-admin", flag.ContinueOnError)
	keypair := fs.String("keypair", "", "Current admin keypair file")
	newAdmin := fs.String("new-admin", "", "New admin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	signer, err := loadSigner(*keypair)
	if err != nil {
		return err
	}
	pk, err := parsePubkey("new-admin", *newAdmin)
	if err != nil {
		return err
	}
	ix, err := message_buffer.NewUpdateWhitelistAdminInstruction(e.opts.programID, signer.Pubkey(), pk)
	if err != nil {
		return err
	}
	return e.submit(ctx, signer, ix)
}

// bufferFlags are shared by the commands addressing one buffer.
type bufferFlags struct {
	keypair string
	auth    string
	base    string
}

func (b *bufferFlags) register(fs *flag.FlagSet, withKeypair bool) {
	if withKeypair {
		fs.StringVar(&b.keypair, "keypair", "", "Admin keypair file")
	}
	fs.StringVar(&b.auth, "auth", "", "Allowed program authority")
	fs.StringVar(&b.base, "base", "", "Base account key")
}

func (b *bufferFlags) keys() (auth, base types.Pubkey, err error) {
	if auth, err = parsePubkey("auth", b.auth); err != nil {
		return
	}
	base, err = parsePubkey("base", b.base)
	return
}

func runCreateBuffer(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("create-buffer", flag.ContinueOnError)
	var bf bufferFlags
	bf.register(fs, true)
	size := uint32Flag(fs, "size", message_buffer.HeaderLen, "Initial size in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	signer, err := loadSigner(bf.keypair)
	if err != nil {
		return err
	}
	auth, base, err := bf.keys()
	if err != nil {
		return err
	}
	ix, err := message_buffer.NewCreateBufferInstruction(e.opts.programID, signer.Pubkey(), auth, base, *size)
	if err != nil {
		return err
	}
	return e.submit(ctx, signer, ix)
}

func runResizeBuffer(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("resize-buffer", flag.ContinueOnError)
	var bf bufferFlags
	bf.register(fs, true)
	size := uint32Flag(fs, "size", 0, "Target size in bytes")
	bump := fs.Int("bump", -1, "Buffer bump (derived when negative)")
	buffer := fs.String("buffer", "", "Buffer account (derived when empty)")
	cuLimit := uint32Flag(fs, "cu-limit", 0, "Compute unit limit requested by the transaction")
	if err := fs.Parse(args); err != nil {
		return err
	}
	signer, err := loadSigner(bf.keypair)
	if err != nil {
		return err
	}
	auth, base, err := bf.keys()
	if err != nil {
		return err
	}
	if *bump > 255 {
		return fmt.Errorf("-bump must be at most 255, got %d", *bump)
	}

	derived, derivedBump, err := message_buffer.BufferAddress(e.opts.programID, auth, base)
	if err != nil {
		return err
	}
	target := derived
	if *buffer != "" {
		if target, err = parsePubkey("buffer", *buffer); err != nil {
			return err
		}
	}
	if *bump >= 0 {
		derivedBump = uint8(*bump)
	}

	ix, err := message_buffer.NewResizeBufferInstruction(e.opts.programID, signer.Pubkey(), target,
		message_buffer.ResizeBufferArgs{
			AllowedProgramAuth: auth,
			BaseAccountKey:     base,
			BufferBump:         derivedBump,
			TargetSize:         *size,
		})
	if err != nil {
		return err
	}
	if *cuLimit > 0 {
		return e.submit(ctx, signer, compute_budget.NewSetComputeUnitLimitInstruction(*cuLimit), ix)
	}
	return e.submit(ctx, signer, ix)
}

func runDeleteBuffer(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("delete-buffer", flag.ContinueOnError)
	var bf bufferFlags
	bf.register(fs, true)
	if err := fs.Parse(args); err != nil {
		return err
	}
	signer, err := loadSigner(bf.keypair)
	if err != nil {
		return err
	}
	auth, base, err := bf.keys()
	if err != nil {
		return err
	}
	buffer, bump, err := message_buffer.BufferAddress(e.opts.programID, auth, base)
	if err != nil {
		return err
	}
	ix, err := message_buffer.NewDeleteBufferInstruction(e.opts.programID, signer.Pubkey(), buffer,
		message_buffer.DeleteBufferArgs{
			AllowedProgramAuth: auth,
			BaseAccountKey:     base,
			BufferBump:         bump,
		})
	if err != nil {
		return err
	}
	return e.submit(ctx, signer, ix)
}

func runShowWhitelist(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("show-whitelist", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, _, err := message_buffer.WhitelistAddress(e.opts.programID)
	if err != nil {
		return err
	}
	acct, err := e.db.GetAccount(addr)
	if err != nil {
		return err
	}
	if acct == nil {
		return fmt.Errorf("whitelist %s is not initialized", addr)
	}
	w, err := message_buffer.UnmarshalWhitelist(acct.Data)
	if err != nil {
		return err
	}
	printFields(e.out, [][2]string{
		{"Address", addr.String()},
		{"Admin", w.Admin.String()},
		{"Bump", fmt.Sprintf("%d", w.Bump)},
		{"Lamports", fmt.Sprintf("%d", acct.Lamports)},
		{"Allowed programs", fmt.Sprintf("%d/%d", len(w.AllowedPrograms), message_buffer.MaxAllowedPrograms)},
	})
	if len(w.AllowedPrograms) > 0 {
		table := newTable(e.out, "#", "Allowed program")
		for i, pk := range w.AllowedPrograms {
			table.Append([]string{fmt.Sprintf("%d", i), pk.String()})
		}
		table.Render()
	}
	return nil
}

func runShowBuffer(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("show-buffer", flag.ContinueOnError)
	var bf bufferFlags
	bf.register(fs, false)
	if err := fs.Parse(args); err != nil {
		return err
	}
	auth, base, err := bf.keys()
	if err != nil {
		return err
	}
	addr, _, err := message_buffer.BufferAddress(e.opts.programID, auth, base)
	if err != nil {
		return err
	}
	acct, err := e.db.GetAccount(addr)
	if err != nil {
		return err
	}
	if acct == nil {
		return fmt.Errorf("message buffer %s does not exist", addr)
	}
	header, err := message_buffer.UnmarshalMessageBufferHeader(acct.Data)
	if err != nil {
		return err
	}
	rent, err := e.rt.Rent()
	if err != nil {
		return err
	}
	minimum := rent.MinimumBalance(acct.DataLen())
	printFields(e.out, [][2]string{
		{"Address", addr.String()},
		{"Owner", acct.Owner.String()},
		{"Size", fmt.Sprintf("%d", acct.DataLen())},
		{"Lamports", fmt.Sprintf("%d", acct.Lamports)},
		{"Rent exempt minimum", fmt.Sprintf("%d", minimum)},
		{"Rent exempt", fmt.Sprintf("%t", acct.Lamports >= minimum)},
		{"Bump", fmt.Sprintf("%d", header.Bump)},
		{"Version", fmt.Sprintf("%d", header.Version)},
		{"Header length", fmt.Sprintf("%d", header.HeaderLen)},
	})
	return nil
}

func runShowAccount(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("show-account", flag.ContinueOnError)
	pubkey := fs.String("pubkey", "", "Account to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pk, err := parsePubkey("pubkey", *pubkey)
	if err != nil {
		return err
	}
	acct, err := e.db.GetAccount(pk)
	if err != nil {
		return err
	}
	if acct == nil {
		return fmt.Errorf("account %s does not exist", pk)
	}
	printFields(e.out, [][2]string{
		{"Address", pk.String()},
		{"Owner", acct.Owner.String()},
		{"Lamports", fmt.Sprintf("%d", acct.Lamports)},
		{"Balance", fmt.Sprintf("%.9f SOL", acct.Lamports.SOL())},
		{"Data length", fmt.Sprintf("%d", acct.DataLen())},
		{"Executable", fmt.Sprintf("%t", acct.Executable)},
	})
	return nil
}
