// Package runtime executes transactions against the account store. Every
// instruction runs on a private copy of the transaction's accounts; the
// resulting deltas are committed in one atomic write only if all
// instructions succeed.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/naviprotocol/pyth-crosschain/pkg/accounts"
	"github.com/naviprotocol/pyth-crosschain/pkg/crypto"
	"github.com/naviprotocol/pyth-crosschain/pkg/metrics"
	"github.com/naviprotocol/pyth-crosschain/pkg/svm/programs/compute_budget"
	"github.com/naviprotocol/pyth-crosschain/pkg/svm/syscall"
	"github.com/naviprotocol/pyth-crosschain/pkg/svm/sysvar"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// Runtime errors
var (
	// ErrNilTransaction indicates a nil transaction was submitted.
	ErrNilTransaction = errors.New("nil transaction")

	// ErrNoInstructions indicates the transaction carries no instructions.
	ErrNoInstructions = errors.New("transaction has no instructions")

	// ErrInvalidAccountIndex indicates a compiled instruction references a
	// key outside the message.
	ErrInvalidAccountIndex = errors.New("account index out of bounds")

	// ErrUnbalancedTransaction indicates an instruction created or destroyed
	// lamports.
	ErrUnbalancedTransaction = errors.New("sum of account balances changed")

	// ErrReadOnlyModified indicates an instruction changed an account it
	// received read-only.
	ErrReadOnlyModified = errors.New("instruction modified a read-only account")

	// ErrExecutableModified indicates an instruction changed the executable
	// flag of an account.
	ErrExecutableModified = errors.New("instruction changed the executable flag")
)

// Config holds the runtime settings.
type Config struct {
	// ComputeUnitLimit is the compute budget of a whole transaction.
	ComputeUnitLimit types.ComputeUnits

	// VerifySignatures enables ed25519 verification of every required
	// signature before execution.
	VerifySignatures bool
}

// DefaultConfig returns the default runtime settings.
func DefaultConfig() Config {
	return Config{
		ComputeUnitLimit: types.DefaultComputeUnitsPerInstruction,
		VerifySignatures: true,
	}
}

// Runtime executes transactions. Transactions are serialized; each one sees
// the committed effects of the previous.
type Runtime struct {
	mu       sync.Mutex
	db       accounts.AccountsDB
	registry *ProgramRegistry
	metrics  *metrics.Metrics
	config   Config
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithMetrics records execution metrics into m instead of the default set.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runtime) {
		r.metrics = m
	}
}

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) Option {
	return func(r *Runtime) {
		r.config = cfg
	}
}

// New creates a runtime over db dispatching to the programs in registry.
func New(db accounts.AccountsDB, registry *ProgramRegistry, opts ...Option) *Runtime {
	r := &Runtime{
		db:       db,
		registry: registry,
		metrics:  metrics.DefaultMetrics(),
		config:   DefaultConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.config.ComputeUnitLimit == 0 {
		r.config.ComputeUnitLimit = types.DefaultComputeUnitsPerInstruction
	}
	if r.config.ComputeUnitLimit > types.MaxComputeUnitsPerTransaction {
		r.config.ComputeUnitLimit = types.MaxComputeUnitsPerTransaction
	}
	return r
}

// Metrics returns the metrics the runtime records into.
func (r *Runtime) Metrics() *metrics.Metrics {
	return r.metrics
}

// Registry returns the program registry.
func (r *Runtime) Registry() *ProgramRegistry {
	return r.registry
}

// Rent returns the rent parameters currently stored in the rent sysvar, or
// the defaults when the sysvar has not been written.
func (r *Runtime) Rent() (sysvar.Rent, error) {
	acc, err := r.db.GetAccount(types.SysvarRentID)
	if err != nil {
		return sysvar.Rent{}, fmt.Errorf("failed to load rent sysvar: %w", err)
	}
	if acc == nil {
		return sysvar.DefaultRent(), nil
	}
	return sysvar.UnmarshalRent(acc.Data)
}

// ExecuteTransaction executes tx and commits its effects if every
// instruction succeeds. A transaction that fails is reported through
// TransactionResult.Error and leaves the store untouched; the returned error
// is reserved for storage failures and cancellation.
func (r *Runtime) ExecuteTransaction(ctx context.Context, tx *types.Transaction) (*types.TransactionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	result := &types.TransactionResult{
		ExecutionID:   uuid.NewString(),
		Logs:          make([]string, 0),
		AccountDeltas: make([]types.AccountDelta, 0),
	}

	if err := r.execute(ctx, tx, result); err != nil {
		return nil, err
	}

	instructions := 0
	if tx != nil {
		instructions = len(tx.Message.Instructions)
	}
	r.metrics.RecordTransaction(result.Success, instructions, uint64(result.ComputeUnits), time.Since(start))
	if result.Success {
		r.metrics.RecordCommit(len(result.AccountDeltas), r.db.GetAccountsCount())
		klog.V(1).Infof("tx %s: committed %d account(s), %d CU",
			result.ExecutionID, len(result.AccountDeltas), result.ComputeUnits)
	} else {
		klog.V(1).Infof("tx %s: failed: %v", result.ExecutionID, result.Error)
	}
	return result, nil
}

func (r *Runtime) execute(ctx context.Context, tx *types.Transaction, result *types.TransactionResult) error {
	if tx == nil {
		result.Error = ErrNilTransaction
		return nil
	}
	if len(tx.Message.Instructions) == 0 {
		result.Error = ErrNoInstructions
		return nil
	}

	if r.config.VerifySignatures {
		if err := crypto.VerifyTransaction(tx); err != nil {
			result.Error = err
			return nil
		}
		r.metrics.SignaturesVerified.Add(uint64(len(tx.Signatures)))
	}

	rent, err := r.Rent()
	if err != nil {
		return err
	}

	txAccounts, err := r.loadTransactionAccounts(tx)
	if err != nil {
		return err
	}
	snapshots := make([]*types.Account, len(txAccounts))
	for i, acc := range txAccounts {
		snapshots[i] = acc.ToAccount()
	}

	ixs := make([]types.Instruction, len(tx.Message.Instructions))
	for i := range tx.Message.Instructions {
		ix, err := decompileInstruction(&tx.Message, &tx.Message.Instructions[i])
		if err != nil {
			result.Error = &InstructionError{Index: i, Err: err}
			return nil
		}
		ixs[i] = *ix
	}

	budget, err := compute_budget.ParseBudget(ixs)
	if err != nil {
		result.Error = err
		return nil
	}
	remaining := uint64(r.config.ComputeUnitLimit)
	if budget.ComputeUnitLimit > 0 {
		remaining = uint64(budget.ComputeUnitLimit)
	}

	for i := range ixs {
		if err := ctx.Err(); err != nil {
			return err
		}

		ix := &ixs[i]
		consumed, logs, err := r.executeInstruction(ix, txAccounts, rent, remaining, result.ExecutionID)
		result.Logs = append(result.Logs, logs...)
		result.ComputeUnits += types.ComputeUnits(consumed)
		remaining -= consumed
		if err != nil {
			result.Error = &InstructionError{Index: i, ProgramID: ix.ProgramID, Err: err}
			return nil
		}
	}

	for i, acc := range txAccounts {
		post := acc.ToAccount()
		if post.Equal(snapshots[i]) {
			continue
		}
		delta := types.AccountDelta{Pubkey: acc.Pubkey, OldAccount: snapshots[i], NewAccount: post}
		if post.Lamports == 0 {
			delta.NewAccount = nil
		}
		result.AccountDeltas = append(result.AccountDeltas, delta)
	}

	if len(result.AccountDeltas) > 0 {
		if err := r.db.CommitAccounts(result.AccountDeltas); err != nil {
			if errors.Is(err, accounts.ErrStaleAccount) {
				result.Error = err
				result.AccountDeltas = result.AccountDeltas[:0]
				return nil
			}
			return err
		}
	}

	result.Success = true
	return nil
}

// executeInstruction runs one top-level instruction on copies of the
// transaction accounts and writes the copies back only on success.
func (r *Runtime) executeInstruction(ix *types.Instruction, txAccounts []*syscall.AccountInfo, rent syscall.RentCalculator, budget uint64, execID string) (uint64, []string, error) {
	programID := ix.ProgramID.String()
	logs := []string{fmt.Sprintf("Program %s invoke [1]", programID)}

	if !r.registry.HasProgram(ix.ProgramID) {
		err := fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
		return 0, append(logs, fmt.Sprintf("Program %s failed: %v", programID, err)), err
	}

	byKey := make(map[types.Pubkey]*syscall.AccountInfo, len(txAccounts))
	for _, acc := range txAccounts {
		byKey[acc.Pubkey] = acc
	}

	views := make([]*syscall.AccountInfo, len(ix.Accounts))
	seen := make(map[types.Pubkey]*syscall.AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		if v, ok := seen[meta.Pubkey]; ok {
			views[i] = v
			continue
		}
		v := byKey[meta.Pubkey].Clone()
		v.IsSigner = meta.IsSigner
		v.IsWritable = meta.IsWritable
		seen[meta.Pubkey] = v
		views[i] = v
	}

	ctx := syscall.NewExecutionContext(ix.ProgramID, views, ix.Data, budget, rent)
	ctx.Invoker = r.registry

	klog.V(2).Infof("tx %s: invoke %s with %d account(s)", execID, programID, len(views))
	err := r.registry.ExecuteProgram(ctx)
	if err == nil {
		err = verifyAccountChanges(byKey, seen)
	}

	consumed := ctx.GetComputeUnitsConsumed()
	logs = append(logs, ctx.GetLogs()...)
	logs = append(logs, fmt.Sprintf("Program %s consumed %d of %d compute units", programID, consumed, budget))
	if err != nil {
		return consumed, append(logs, fmt.Sprintf("Program %s failed: %v", programID, err)), err
	}
	logs = append(logs, fmt.Sprintf("Program %s success", programID))

	for key, v := range seen {
		acc := byKey[key]
		*acc.Lamports = *v.Lamports
		acc.Owner = v.Owner
		acc.Data = v.Data
	}
	return consumed, logs, nil
}

// verifyAccountChanges checks the instruction-level invariants the syscall
// layer cannot see: read-only accounts come back untouched, executable
// flags never change and the lamport total is conserved.
func verifyAccountChanges(before map[types.Pubkey]*syscall.AccountInfo, after map[types.Pubkey]*syscall.AccountInfo) error {
	var sumBefore, sumAfter uint64
	for key, post := range after {
		pre := before[key]
		sumBefore += *pre.Lamports
		sumAfter += *post.Lamports

		if post.Executable != pre.Executable {
			return fmt.Errorf("%w: %s", ErrExecutableModified, key.String())
		}
		if !post.IsWritable && !post.ToAccount().Equal(pre.ToAccount()) {
			return fmt.Errorf("%w: %s", ErrReadOnlyModified, key.String())
		}
	}
	if sumBefore != sumAfter {
		return fmt.Errorf("%w: %d before, %d after", ErrUnbalancedTransaction, sumBefore, sumAfter)
	}
	return nil
}

// loadTransactionAccounts loads every account key of the message. Missing
// keys become empty system accounts; registered programs are presented as
// executable accounts.
func (r *Runtime) loadTransactionAccounts(tx *types.Transaction) ([]*syscall.AccountInfo, error) {
	msg := &tx.Message
	out := make([]*syscall.AccountInfo, len(msg.AccountKeys))
	for i, pubkey := range msg.AccountKeys {
		account, err := r.db.GetAccount(pubkey)
		if err != nil {
			return nil, fmt.Errorf("failed to load account %s: %w", pubkey.String(), err)
		}
		if account == nil {
			account = r.registry.ProgramAccount(pubkey)
		}
		out[i] = syscall.NewAccountInfo(pubkey, account, msg.IsSigner(i), msg.IsWritable(i))
	}
	return out, nil
}

// decompileInstruction converts a compiled instruction to a full instruction.
func decompileInstruction(msg *types.Message, compiled *types.CompiledInstruction) (*types.Instruction, error) {
	if int(compiled.ProgramIDIndex) >= len(msg.AccountKeys) {
		return nil, fmt.Errorf("%w: program id index %d", ErrInvalidAccountIndex, compiled.ProgramIDIndex)
	}

	metas := make([]types.AccountMeta, len(compiled.AccountIndices))
	for i, idx := range compiled.AccountIndices {
		if int(idx) >= len(msg.AccountKeys) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidAccountIndex, idx)
		}
		metas[i] = types.NewAccountMeta(msg.AccountKeys[idx], msg.IsSigner(int(idx)), msg.IsWritable(int(idx)))
	}

	return &types.Instruction{
		ProgramID: msg.AccountKeys[compiled.ProgramIDIndex],
		Accounts:  metas,
		Data:      compiled.Data,
	}, nil
}

// InstructionError reports which instruction of a transaction failed.
type InstructionError struct {
	Index     int
	ProgramID types.Pubkey
	Err       error
}

// Error implements the error interface.
func (e *InstructionError) Error() string {
	if e.ProgramID.IsZero() {
		return fmt.Sprintf("instruction %d failed: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("instruction %d (program %s) failed: %v", e.Index, e.ProgramID.String(), e.Err)
}

// Unwrap returns the underlying error.
func (e *InstructionError) Unwrap() error {
	return e.Err
}
