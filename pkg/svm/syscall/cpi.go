package syscall

import (
	"errors"
	"fmt"

	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// CPI errors
var (
	ErrCPIDepthExceeded        = errors.New("CPI depth exceeded")
	ErrCPIAccountNotFound      = errors.New("account not found in instruction context")
	ErrCPIWritablePrivilege    = errors.New("writable privilege escalation")
	ErrCPISignerPrivilege      = errors.New("signer privilege escalation")
	ErrCPIReentrancy           = errors.New("program reentrancy not allowed")
	ErrCPINoExecutor           = errors.New("no program executor for CPI")
	ErrCPIInstructionDataLarge = errors.New("instruction data too large")
	ErrReadOnlyModified        = errors.New("callee modified a read-only account")
)

// ProgramExecutor dispatches a context to the program named by
// ctx.ProgramID. The runtime's program registry implements it.
type ProgramExecutor interface {
	ExecuteProgram(ctx *ExecutionContext) error
}

// InvokeProgram performs a cross-program invocation without PDA signers.
func (ctx *ExecutionContext) InvokeProgram(ix types.Instruction) error {
	return ctx.InvokeProgramSigned(ix, nil)
}

// InvokeProgramSigned performs a cross-program invocation. Each entry of
// signerSeeds is the full seed list (bump included) of a PDA of the calling
// program; those PDAs may appear as signers in ix. Callee writes to writable
// accounts are copied back to the caller when the callee succeeds.
func (ctx *ExecutionContext) InvokeProgramSigned(ix types.Instruction, signerSeeds [][][]byte) error {
	if ctx.Depth >= MaxCPIDepth {
		return ErrCPIDepthExceeded
	}
	if ctx.Invoker == nil {
		return ErrCPINoExecutor
	}
	if ix.ProgramID == ctx.ProgramID {
		return fmt.Errorf("%w: %s", ErrCPIReentrancy, ix.ProgramID.String())
	}
	if len(ix.Data) > MaxInstructionData {
		return fmt.Errorf("%w: %d bytes", ErrCPIInstructionDataLarge, len(ix.Data))
	}
	if err := ctx.ConsumeComputeUnits(CUInvoke); err != nil {
		return err
	}

	pdaSigners := make(map[types.Pubkey]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		pda, err := ctx.CreateProgramAddress(seeds)
		if err != nil {
			return err
		}
		pdaSigners[pda] = true
	}

	calleeAccounts, err := ctx.resolveCalleeAccounts(ix.Accounts, pdaSigners)
	if err != nil {
		return err
	}

	ctx.PushCaller(ctx.ProgramID)
	defer ctx.PopCaller()

	oldProgramID := ctx.ProgramID
	oldAccounts := ctx.Accounts
	oldAccountIndex := ctx.accountIndex
	oldInstructionData := ctx.InstructionData

	ctx.ProgramID = ix.ProgramID
	ctx.Accounts = calleeAccounts
	ctx.InstructionData = ix.Data
	ctx.accountIndex = make(map[types.Pubkey]int, len(calleeAccounts))
	for i, acc := range calleeAccounts {
		ctx.accountIndex[acc.Pubkey] = i
	}

	_ = ctx.AddLog(fmt.Sprintf("Program %s invoke [%d]", ix.ProgramID.String(), ctx.Depth+1))
	err = ctx.Invoker.ExecuteProgram(ctx)
	if err != nil {
		_ = ctx.AddLog(fmt.Sprintf("Program %s failed: %v", ix.ProgramID.String(), err))
	} else {
		_ = ctx.AddLog(fmt.Sprintf("Program %s success", ix.ProgramID.String()))
	}

	ctx.ProgramID = oldProgramID
	ctx.Accounts = oldAccounts
	ctx.accountIndex = oldAccountIndex
	ctx.InstructionData = oldInstructionData

	if err != nil {
		return err
	}
	return ctx.propagateAccountChanges(calleeAccounts)
}

// resolveCalleeAccounts builds the callee's view. An account may only be
// writable or a signer in the callee if it already is in the caller, or, for
// signing, if it is one of the PDAs vouched for by signer seeds.
func (ctx *ExecutionContext) resolveCalleeAccounts(metas []types.AccountMeta, pdaSigners map[types.Pubkey]bool) ([]*AccountInfo, error) {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()

	callee := make([]*AccountInfo, 0, len(metas))
	seen := make(map[types.Pubkey]int, len(metas))
	for _, meta := range metas {
		if i, ok := seen[meta.Pubkey]; ok {
			callee[i].IsSigner = callee[i].IsSigner || meta.IsSigner
			callee[i].IsWritable = callee[i].IsWritable || meta.IsWritable
			continue
		}
		callerAcc, err := ctx.accountLocked(meta.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrCPIAccountNotFound, meta.Pubkey.String())
		}
		if meta.IsWritable && !callerAcc.IsWritable {
			return nil, fmt.Errorf("%w: %s", ErrCPIWritablePrivilege, meta.Pubkey.String())
		}
		if meta.IsSigner && !callerAcc.IsSigner && !pdaSigners[meta.Pubkey] {
			return nil, fmt.Errorf("%w: %s", ErrCPISignerPrivilege, meta.Pubkey.String())
		}
		info := callerAcc.Clone()
		info.IsSigner = meta.IsSigner
		info.IsWritable = meta.IsWritable
		seen[meta.Pubkey] = len(callee)
		callee = append(callee, info)
	}
	return callee, nil
}

// propagateAccountChanges copies the callee's writable accounts back into the
// caller's view. Read-only accounts must come back unchanged.
func (ctx *ExecutionContext) propagateAccountChanges(calleeAccounts []*AccountInfo) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	for _, calleeAcc := range calleeAccounts {
		callerAcc, err := ctx.accountLocked(calleeAcc.Pubkey)
		if err != nil {
			return err
		}
		if !calleeAcc.IsWritable {
			if *calleeAcc.Lamports != *callerAcc.Lamports || calleeAcc.Owner != callerAcc.Owner ||
				len(calleeAcc.Data) != len(callerAcc.Data) {
				return fmt.Errorf("%w: %s", ErrReadOnlyModified, calleeAcc.Pubkey.String())
			}
			continue
		}
		if err := ctx.checkDataIncreaseLocked(calleeAcc.Pubkey, len(calleeAcc.Data)); err != nil {
			return err
		}
		*callerAcc.Lamports = *calleeAcc.Lamports
		callerAcc.Owner = calleeAcc.Owner
		if len(calleeAcc.Data) != len(callerAcc.Data) {
			callerAcc.Data = make([]byte, len(calleeAcc.Data))
		}
		copy(callerAcc.Data, calleeAcc.Data)
	}
	return nil
}
