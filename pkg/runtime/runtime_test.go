package runtime

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/naviprotocol/pyth-crosschain/pkg/accounts"
	"github.com/naviprotocol/pyth-crosschain/pkg/crypto"
	"github.com/naviprotocol/pyth-crosschain/pkg/metrics"
	"github.com/naviprotocol/pyth-crosschain/pkg/svm/programs/compute_budget"
	"github.com/naviprotocol/pyth-crosschain/pkg/svm/programs/system"
	"github.com/naviprotocol/pyth-crosschain/pkg/svm/syscall"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

var testBlockhash = types.SHA256([]byte("blockhash"))

func testPubkey(name string) types.Pubkey {
	return types.Pubkey(types.SHA256([]byte(name)))
}

func newKeypair(t *testing.T) *crypto.Keypair {
	t.Helper()
	kp, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	return kp
}

func newTestRuntime(t *testing.T, db accounts.AccountsDB) *Runtime {
	t.Helper()
	return New(db, NewDefaultRegistry(types.MessageBufferProgramID), WithMetrics(metrics.NewMetrics()))
}

func fund(t *testing.T, db accounts.AccountsDB, pk types.Pubkey, lamports types.Lamports) {
	t.Helper()
	if err := db.SetAccount(pk, types.NewAccount(lamports, types.SystemProgramID)); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}
}

func balance(t *testing.T, db accounts.AccountsDB, pk types.Pubkey) types.Lamports {
	t.Helper()
	acc, err := db.GetAccount(pk)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acc == nil {
		return 0
	}
	return acc.Lamports
}

// send signs and executes ixs with payer paying and signing, plus any extra
// signers.
func send(t *testing.T, rt *Runtime, payer *crypto.Keypair, signers []*crypto.Keypair, ixs ...types.Instruction) *types.TransactionResult {
	t.Helper()
	tx, err := types.NewTransaction(payer.Pubkey(), testBlockhash, ixs...)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	if err := crypto.SignTransaction(tx, append([]*crypto.Keypair{payer}, signers...)...); err != nil {
		t.Fatalf("SignTransaction: %v", err)
	}
	result, err := rt.ExecuteTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("ExecuteTransaction: %v", err)
	}
	return result
}

func TestExecuteTransfer(t *testing.T) {
	db := accounts.NewMemoryDB()
	rt := newTestRuntime(t, db)
	payer := newKeypair(t)
	to := testPubkey("recipient")
	fund(t, db, payer.Pubkey(), 1_000_000)

	result := send(t, rt, payer, nil, system.NewTransferInstruction(payer.Pubkey(), to, 400_000))
	if !result.Success {
		t.Fatalf("transfer failed: %v", result.Error)
	}
	if result.ExecutionID == "" {
		t.Error("missing execution id")
	}
	if got := balance(t, db, payer.Pubkey()); got != 600_000 {
		t.Errorf("payer balance = %d, want 600000", got)
	}
	if got := balance(t, db, to); got != 400_000 {
		t.Errorf("recipient balance = %d, want 400000", got)
	}
	if len(result.AccountDeltas) != 2 {
		t.Errorf("expected 2 deltas, got %d", len(result.AccountDeltas))
	}
	if result.Logs[0] != "Program 11111111111111111111111111111111 invoke [1]" {
		t.Errorf("unexpected first log %q", result.Logs[0])
	}
	if last := result.Logs[len(result.Logs)-1]; last != "Program 11111111111111111111111111111111 success" {
		t.Errorf("unexpected last log %q", last)
	}

	m := rt.Metrics()
	if m.TransactionsProcessed.Value() != 1 || m.TransactionsFailed.Value() != 0 {
		t.Errorf("unexpected tx metrics: processed %d failed %d",
			m.TransactionsProcessed.Value(), m.TransactionsFailed.Value())
	}
	if m.AccountsCommitted.Value() != 2 || m.AccountsCount.Value() != 2 {
		t.Errorf("unexpected commit metrics: committed %d count %d",
			m.AccountsCommitted.Value(), m.AccountsCount.Value())
	}
	if m.SignaturesVerified.Value() != 1 {
		t.Errorf("expected 1 verified signature, got %d", m.SignaturesVerified.Value())
	}
}

func TestExecuteTransactionAtomic(t *testing.T) {
	db := accounts.NewMemoryDB()
	rt := newTestRuntime(t, db)
	payer := newKeypair(t)
	to := testPubkey("recipient")
	fund(t, db, payer.Pubkey(), 1_000_000)

	// The second transfer overdraws; the first must not be committed.
	result := send(t, rt, payer, nil,
		system.NewTransferInstruction(payer.Pubkey(), to, 600_000),
		system.NewTransferInstruction(payer.Pubkey(), to, 600_000),
	)
	if result.Success {
		t.Fatal("expected failure")
	}
	var ixErr *InstructionError
	if !errors.As(result.Error, &ixErr) || ixErr.Index != 1 {
		t.Fatalf("expected instruction 1 to fail, got %v", result.Error)
	}
	if !errors.Is(result.Error, system.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", result.Error)
	}
	if got := balance(t, db, payer.Pubkey()); got != 1_000_000 {
		t.Errorf("payer balance = %d, want 1000000", got)
	}
	if db.HasAccount(to) {
		t.Error("recipient must not exist after a failed transaction")
	}
	if len(result.AccountDeltas) != 0 {
		t.Errorf("failed transaction reported %d deltas", len(result.AccountDeltas))
	}
	if rt.Metrics().TransactionsFailed.Value() != 1 {
		t.Errorf("expected 1 failed transaction, got %d", rt.Metrics().TransactionsFailed.Value())
	}
}

func TestExecuteTransactionSignatures(t *testing.T) {
	db := accounts.NewMemoryDB()
	rt := newTestRuntime(t, db)
	payer := newKeypair(t)
	fund(t, db, payer.Pubkey(), 1_000_000)

	tx, err := types.NewTransaction(payer.Pubkey(), testBlockhash,
		system.NewTransferInstruction(payer.Pubkey(), testPubkey("recipient"), 1))
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	result, err := rt.ExecuteTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("ExecuteTransaction: %v", err)
	}
	if result.Success {
		t.Fatal("unsigned transaction must fail")
	}
	var verr *crypto.TransactionVerificationError
	if !errors.As(result.Error, &verr) {
		t.Errorf("expected TransactionVerificationError, got %v", result.Error)
	}

	unverified := New(db, NewDefaultRegistry(types.MessageBufferProgramID),
		WithMetrics(metrics.NewMetrics()),
		WithConfig(Config{VerifySignatures: false}))
	result, err = unverified.ExecuteTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("ExecuteTransaction: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success without verification, got %v", result.Error)
	}
}

func TestExecuteTransactionErrors(t *testing.T) {
	db := accounts.NewMemoryDB()
	rt := newTestRuntime(t, db)

	result, err := rt.ExecuteTransaction(context.Background(), nil)
	if err != nil {
		t.Fatalf("ExecuteTransaction: %v", err)
	}
	if !errors.Is(result.Error, ErrNilTransaction) {
		t.Errorf("expected ErrNilTransaction, got %v", result.Error)
	}

	payer := newKeypair(t)
	fund(t, db, payer.Pubkey(), 1_000_000)
	result = send(t, rt, payer, nil)
	if !errors.Is(result.Error, ErrNoInstructions) {
		t.Errorf("expected ErrNoInstructions, got %v", result.Error)
	}

	unknown := types.Instruction{ProgramID: testPubkey("unknown program")}
	result = send(t, rt, payer, nil, unknown)
	if !errors.Is(result.Error, ErrProgramNotFound) {
		t.Errorf("expected ErrProgramNotFound, got %v", result.Error)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tx, _ := types.NewTransaction(payer.Pubkey(), testBlockhash,
		system.NewTransferInstruction(payer.Pubkey(), testPubkey("recipient"), 1))
	_ = crypto.SignTransaction(tx, payer)
	if _, err := rt.ExecuteTransaction(ctx, tx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestVerifyAccountChanges(t *testing.T) {
	programID := testPubkey("test program")
	owned := testPubkey("owned")
	readonly := testPubkey("readonly")

	tests := []struct {
		name    string
		program ProgramFunc
		wantErr error
	}{
		{
			name: "read-only data write",
			program: func(ctx *syscall.ExecutionContext, _ []byte) error {
				acc, _ := ctx.GetAccount(readonly)
				acc.Data[0] = 1
				return nil
			},
			wantErr: ErrReadOnlyModified,
		},
		{
			name: "lamports minted",
			program: func(ctx *syscall.ExecutionContext, _ []byte) error {
				acc, _ := ctx.GetAccount(owned)
				*acc.Lamports += 5
				return nil
			},
			wantErr: ErrUnbalancedTransaction,
		},
		{
			name: "executable flipped",
			program: func(ctx *syscall.ExecutionContext, _ []byte) error {
				acc, _ := ctx.GetAccount(owned)
				acc.Executable = true
				return nil
			},
			wantErr: ErrExecutableModified,
		},
		{
			name: "owned data write",
			program: func(ctx *syscall.ExecutionContext, _ []byte) error {
				acc, _ := ctx.GetAccount(owned)
				acc.Data[0] = 7
				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := accounts.NewMemoryDB()
			registry := NewProgramRegistry()
			registry.RegisterProgram(programID, tt.program)
			rt := New(db, registry, WithMetrics(metrics.NewMetrics()))

			payer := newKeypair(t)
			fund(t, db, payer.Pubkey(), 1_000_000)
			_ = db.SetAccount(owned, types.NewAccountWithData(100, []byte{0}, programID))
			_ = db.SetAccount(readonly, types.NewAccountWithData(100, []byte{0}, programID))

			result := send(t, rt, payer, nil, types.Instruction{
				ProgramID: programID,
				Accounts: []types.AccountMeta{
					types.NewAccountMeta(owned, false, true),
					types.NewAccountMeta(readonly, false, false),
				},
			})
			if tt.wantErr == nil {
				if !result.Success {
					t.Fatalf("unexpected failure: %v", result.Error)
				}
				acc, _ := db.GetAccount(owned)
				if acc.Data[0] != 7 {
					t.Errorf("owned data not committed: %v", acc.Data)
				}
				return
			}
			if !errors.Is(result.Error, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, result.Error)
			}
			acc, _ := db.GetAccount(readonly)
			if acc.Data[0] != 0 {
				t.Error("read-only account changed in the store")
			}
		})
	}
}

func TestComputeBudget(t *testing.T) {
	db := accounts.NewMemoryDB()
	programID := testPubkey("burner")
	registry := NewProgramRegistry()
	registry.RegisterProgram(programID, ProgramFunc(func(ctx *syscall.ExecutionContext, _ []byte) error {
		return ctx.ConsumeComputeUnits(600)
	}))
	rt := New(db, registry,
		WithMetrics(metrics.NewMetrics()),
		WithConfig(Config{ComputeUnitLimit: 1000, VerifySignatures: true}))

	payer := newKeypair(t)
	fund(t, db, payer.Pubkey(), 1_000_000)
	ix := types.Instruction{ProgramID: programID}

	result := send(t, rt, payer, nil, ix)
	if !result.Success || result.ComputeUnits != 600 {
		t.Fatalf("expected success with 600 CU, got %v / %d", result.Error, result.ComputeUnits)
	}

	// The budget covers the whole transaction.
	result = send(t, rt, payer, nil, ix, ix)
	if !errors.Is(result.Error, syscall.ErrComputeExhausted) {
		t.Errorf("expected ErrComputeExhausted, got %v", result.Error)
	}
	found := false
	for _, l := range result.Logs {
		if strings.Contains(l, "consumed 600 of 1000 compute units") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing consumption log in %v", result.Logs)
	}

	// A compute budget instruction replaces the configured limit.
	registry.RegisterProgram(compute_budget.ProgramID, compute_budget.New())
	result = send(t, rt, payer, nil, compute_budget.NewSetComputeUnitLimitInstruction(1500), ix, ix)
	if !result.Success {
		t.Fatalf("expected success under a raised limit, got %v", result.Error)
	}
	if result.ComputeUnits != compute_budget.ExecuteCost+1200 {
		t.Errorf("consumed %d CU", result.ComputeUnits)
	}

	result = send(t, rt, payer, nil, compute_budget.NewSetComputeUnitLimitInstruction(700), ix, ix)
	if !errors.Is(result.Error, syscall.ErrComputeExhausted) {
		t.Errorf("expected ErrComputeExhausted under a lowered limit, got %v", result.Error)
	}

	result = send(t, rt, payer, nil,
		compute_budget.NewSetComputeUnitLimitInstruction(1500),
		compute_budget.NewSetComputeUnitLimitInstruction(1500), ix)
	if !errors.Is(result.Error, compute_budget.ErrDuplicateInstruction) {
		t.Errorf("expected ErrDuplicateInstruction, got %v", result.Error)
	}
}

func TestProgramRegistry(t *testing.T) {
	r := NewDefaultRegistry(types.MessageBufferProgramID)

	if !r.HasProgram(types.SystemProgramID) || !r.HasProgram(types.MessageBufferProgramID) {
		t.Fatal("default programs not registered")
	}
	if name, _ := r.GetProgramName(types.MessageBufferProgramID); name != "message_buffer" {
		t.Errorf("unexpected name %q", name)
	}
	if len(r.ListPrograms()) != 3 {
		t.Errorf("expected 3 programs, got %d", len(r.ListPrograms()))
	}

	acc := r.ProgramAccount(types.SystemProgramID)
	if acc == nil || !acc.Executable || acc.Owner != types.NativeLoaderID {
		t.Errorf("unexpected program account %+v", acc)
	}
	if r.ProgramAccount(testPubkey("nope")) != nil {
		t.Error("unregistered program must have no account")
	}

	ctx := syscall.NewExecutionContext(testPubkey("nope"), nil, nil, 1000, nil)
	if err := r.ExecuteProgram(ctx); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("expected ErrProgramNotFound, got %v", err)
	}
}

func TestExecuteWithBadger(t *testing.T) {
	db, err := accounts.NewBadgerDB(filepath.Join(t.TempDir(), "accounts"))
	if err != nil {
		t.Fatalf("NewBadgerDB: %v", err)
	}
	defer db.Close()

	rt := newTestRuntime(t, db)
	payer := newKeypair(t)
	fund(t, db, payer.Pubkey(), 5_000_000)

	result := send(t, rt, payer, nil, system.NewTransferInstruction(payer.Pubkey(), testPubkey("recipient"), 5_000_000))
	if !result.Success {
		t.Fatalf("transfer failed: %v", result.Error)
	}
	// A drained account is purged.
	if db.HasAccount(payer.Pubkey()) {
		t.Error("zero-lamport payer should be deleted")
	}
	if got := balance(t, db, testPubkey("recipient")); got != 5_000_000 {
		t.Errorf("recipient balance = %d", got)
	}
	if db.GetAccountsCount() != 1 {
		t.Errorf("expected 1 account, got %d", db.GetAccountsCount())
	}
}
