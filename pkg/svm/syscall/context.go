package syscall

import (
	"errors"
	"fmt"
	"sync"

	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// Context errors
var (
	ErrAccountNotFound             = errors.New("account not found")
	ErrAccountNotWritable          = errors.New("account is not writable")
	ErrAccountNotSigner            = errors.New("account is not a signer")
	ErrInsufficientFunds           = errors.New("insufficient funds")
	ErrArithmeticOverflow          = errors.New("arithmetic overflow")
	ErrComputeExhausted            = errors.New("compute units exhausted")
	ErrMaxLogsExceeded             = errors.New("maximum log entries exceeded")
	ErrLogTooLong                  = errors.New("log message too long")
	ErrInvalidAccountIndex         = errors.New("invalid account index")
	ErrExternalAccountLamportSpend = errors.New("instruction spent from the balance of an account it does not own")
	ErrExternalAccountDataModified = errors.New("instruction modified data of an account it does not own")
	ErrAccountDataTooLarge         = errors.New("account data exceeds maximum size")
	ErrMaxDataIncreaseExceeded     = errors.New("account data grew by more than the permitted increase")
	ErrInvalidAccountOwner         = errors.New("account owned by an unexpected program")
)

// RentCalculator reports the minimum balance an account of a given data
// size must hold. sysvar.Rent satisfies it.
type RentCalculator interface {
	MinimumBalance(dataLen uint64) types.Lamports
}

// AccountInfo represents account information available to a program.
type AccountInfo struct {
	Pubkey     types.Pubkey
	Lamports   *uint64 // Pointer allows modification detection
	Data       []byte
	Owner      types.Pubkey
	Executable bool
	RentEpoch  uint64
	IsSigner   bool
	IsWritable bool
}

// NewAccountInfo wraps a stored account for execution.
func NewAccountInfo(pubkey types.Pubkey, account *types.Account, isSigner, isWritable bool) *AccountInfo {
	if account == nil {
		account = types.NewAccount(0, types.SystemProgramID)
	}
	lamports := uint64(account.Lamports)
	info := &AccountInfo{
		Pubkey:     pubkey,
		Lamports:   &lamports,
		Owner:      account.Owner,
		Executable: account.Executable,
		RentEpoch:  uint64(account.RentEpoch),
		IsSigner:   isSigner,
		IsWritable: isWritable,
	}
	if account.Data != nil {
		info.Data = make([]byte, len(account.Data))
		copy(info.Data, account.Data)
	}
	return info
}

// Clone creates a deep copy of AccountInfo.
func (a *AccountInfo) Clone() *AccountInfo {
	if a == nil {
		return nil
	}
	lamports := *a.Lamports
	clone := &AccountInfo{
		Pubkey:     a.Pubkey,
		Lamports:   &lamports,
		Owner:      a.Owner,
		Executable: a.Executable,
		RentEpoch:  a.RentEpoch,
		IsSigner:   a.IsSigner,
		IsWritable: a.IsWritable,
	}
	if a.Data != nil {
		clone.Data = make([]byte, len(a.Data))
		copy(clone.Data, a.Data)
	}
	return clone
}

// ToAccount converts the execution view back into a stored account.
func (a *AccountInfo) ToAccount() *types.Account {
	var data []byte
	if a.Data != nil {
		data = make([]byte, len(a.Data))
		copy(data, a.Data)
	}
	return &types.Account{
		Lamports:   types.Lamports(*a.Lamports),
		Data:       data,
		Owner:      a.Owner,
		Executable: a.Executable,
		RentEpoch:  types.Epoch(a.RentEpoch),
	}
}

// ExecutionContext holds the execution state of one top-level instruction,
// including any cross-program invocations it makes.
type ExecutionContext struct {
	mu sync.RWMutex

	// Program being executed
	ProgramID types.Pubkey

	// Accounts available to the instruction
	Accounts []*AccountInfo

	// Account index by pubkey for fast lookup
	accountIndex map[types.Pubkey]int

	// Data length of every account when the top-level instruction started;
	// the realloc ceiling is measured from here.
	originalDataLen map[types.Pubkey]int

	// Instruction data
	InstructionData []byte

	// Compute meter
	computeUnits    uint64
	maxComputeUnits uint64

	// Execution logs
	logs    []string
	maxLogs int

	// Depth of CPI calls
	Depth int

	// Stack of callers for CPI
	CallerStack []types.Pubkey

	// Rent oracle
	Rent RentCalculator

	// Invoker dispatches cross-program invocations.
	Invoker ProgramExecutor
}

// NewExecutionContext creates a new execution context.
func NewExecutionContext(programID types.Pubkey, accounts []*AccountInfo, instructionData []byte, computeUnits uint64, rent RentCalculator) *ExecutionContext {
	ctx := &ExecutionContext{
		ProgramID:       programID,
		Accounts:        accounts,
		InstructionData: instructionData,
		computeUnits:    computeUnits,
		maxComputeUnits: computeUnits,
		accountIndex:    make(map[types.Pubkey]int, len(accounts)),
		originalDataLen: make(map[types.Pubkey]int, len(accounts)),
		logs:            make([]string, 0, MaxLogMessages),
		maxLogs:         MaxLogMessages,
		CallerStack:     make([]types.Pubkey, 0, MaxCPIDepth),
		Rent:            rent,
	}

	for i, acc := range accounts {
		ctx.accountIndex[acc.Pubkey] = i
		ctx.originalDataLen[acc.Pubkey] = len(acc.Data)
	}

	return ctx
}

// ConsumeComputeUnits deducts compute units.
func (ctx *ExecutionContext) ConsumeComputeUnits(units uint64) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if units > ctx.computeUnits {
		ctx.computeUnits = 0
		return ErrComputeExhausted
	}
	ctx.computeUnits -= units
	return nil
}

// GetComputeUnitsRemaining returns remaining compute units.
func (ctx *ExecutionContext) GetComputeUnitsRemaining() uint64 {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.computeUnits
}

// GetComputeUnitsConsumed returns consumed compute units.
func (ctx *ExecutionContext) GetComputeUnitsConsumed() uint64 {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.maxComputeUnits - ctx.computeUnits
}

// AddLog adds a log message.
func (ctx *ExecutionContext) AddLog(message string) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if len(ctx.logs) >= ctx.maxLogs {
		return ErrMaxLogsExceeded
	}
	if len(message) > MaxLogMessageLength {
		return ErrLogTooLong
	}

	ctx.logs = append(ctx.logs, message)
	return nil
}

// Logf records a "Program log:" line. Logging never fails the program; a
// full log buffer drops the message.
func (ctx *ExecutionContext) Logf(format string, args ...interface{}) {
	_ = ctx.AddLog("Program log: " + fmt.Sprintf(format, args...))
}

// GetLogs returns all log messages.
func (ctx *ExecutionContext) GetLogs() []string {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	logs := make([]string, len(ctx.logs))
	copy(logs, ctx.logs)
	return logs
}

// GetAccount returns an account by pubkey.
func (ctx *ExecutionContext) GetAccount(pubkey types.Pubkey) (*AccountInfo, error) {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.accountLocked(pubkey)
}

func (ctx *ExecutionContext) accountLocked(pubkey types.Pubkey) (*AccountInfo, error) {
	idx, ok := ctx.accountIndex[pubkey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey.String())
	}
	return ctx.Accounts[idx], nil
}

// GetAccountByIndex returns an account by index.
func (ctx *ExecutionContext) GetAccountByIndex(index int) (*AccountInfo, error) {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()

	if index < 0 || index >= len(ctx.Accounts) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAccountIndex, index)
	}
	return ctx.Accounts[index], nil
}

// MinimumBalance asks the rent oracle for the rent-exempt minimum.
func (ctx *ExecutionContext) MinimumBalance(dataLen uint64) types.Lamports {
	return ctx.Rent.MinimumBalance(dataLen)
}

// TransferLamports moves lamports out of an account owned by the executing
// program. Debiting any other account has to go through its owner.
func (ctx *ExecutionContext) TransferLamports(from, to types.Pubkey, amount uint64) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	fromAcc, err := ctx.accountLocked(from)
	if err != nil {
		return err
	}
	toAcc, err := ctx.accountLocked(to)
	if err != nil {
		return err
	}

	if !fromAcc.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, from.String())
	}
	if !toAcc.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, to.String())
	}
	if fromAcc.Owner != ctx.ProgramID {
		return fmt.Errorf("%w: %s", ErrExternalAccountLamportSpend, from.String())
	}
	if *fromAcc.Lamports < amount {
		return fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, amount, *fromAcc.Lamports)
	}
	if *toAcc.Lamports+amount < *toAcc.Lamports {
		return ErrArithmeticOverflow
	}

	*fromAcc.Lamports -= amount
	*toAcc.Lamports += amount
	return nil
}

// ReallocAccountData resizes an account's data in place. Only the owning
// program may resize, growth is bounded by MaxPermittedDataIncrease over the
// length the account had when the instruction started, grown bytes are
// zero-filled and the existing prefix is preserved.
func (ctx *ExecutionContext) ReallocAccountData(pubkey types.Pubkey, newSize int) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	acc, err := ctx.accountLocked(pubkey)
	if err != nil {
		return err
	}
	if !acc.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, pubkey.String())
	}
	if acc.Owner != ctx.ProgramID {
		return fmt.Errorf("%w: %s", ErrExternalAccountDataModified, pubkey.String())
	}
	if newSize < 0 || newSize > MaxAccountDataSize {
		return fmt.Errorf("%w: %d bytes", ErrAccountDataTooLarge, newSize)
	}
	if err := ctx.checkDataIncreaseLocked(pubkey, newSize); err != nil {
		return err
	}

	if newSize == len(acc.Data) {
		return nil
	}
	resized := make([]byte, newSize)
	copy(resized, acc.Data)
	acc.Data = resized
	return nil
}

func (ctx *ExecutionContext) checkDataIncreaseLocked(pubkey types.Pubkey, newSize int) error {
	original := ctx.originalDataLen[pubkey]
	if newSize > original+MaxPermittedDataIncrease {
		return fmt.Errorf("%w: %d -> %d", ErrMaxDataIncreaseExceeded, original, newSize)
	}
	return nil
}

// CheckAccountOwnership verifies an account is owned by the expected program.
func (ctx *ExecutionContext) CheckAccountOwnership(pubkey types.Pubkey, expectedOwner types.Pubkey) error {
	acc, err := ctx.GetAccount(pubkey)
	if err != nil {
		return err
	}
	if acc.Owner != expectedOwner {
		return fmt.Errorf("%w: %s owned by %s, expected %s", ErrInvalidAccountOwner,
			pubkey.String(), acc.Owner.String(), expectedOwner.String())
	}
	return nil
}

// PushCaller pushes a caller onto the CPI stack.
func (ctx *ExecutionContext) PushCaller(programID types.Pubkey) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.CallerStack = append(ctx.CallerStack, programID)
	ctx.Depth++
}

// PopCaller pops a caller from the CPI stack.
func (ctx *ExecutionContext) PopCaller() (types.Pubkey, bool) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if len(ctx.CallerStack) == 0 {
		return types.ZeroPubkey, false
	}
	caller := ctx.CallerStack[len(ctx.CallerStack)-1]
	ctx.CallerStack = ctx.CallerStack[:len(ctx.CallerStack)-1]
	ctx.Depth--
	return caller, true
}
