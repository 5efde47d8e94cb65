package system

import (
	"fmt"

	"github.com/naviprotocol/pyth-crosschain/pkg/svm/syscall"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

func signerWritable(ctx *syscall.ExecutionContext, index int, role string) (*syscall.AccountInfo, error) {
	acc, err := ctx.GetAccountByIndex(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotEnoughAccountKeys, role)
	}
	if !acc.IsSigner {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotSigner, role)
	}
	if !acc.IsWritable {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotWritable, role)
	}
	return acc, nil
}

// handleCreateAccount handles the CreateAccount instruction.
// Account layout:
//
//	[0] funding account (signer, writable)
//	[1] new account (signer, writable)
func handleCreateAccount(ctx *syscall.ExecutionContext, inst *CreateAccountInstruction) error {
	fundingAcc, err := signerWritable(ctx, 0, "funding account")
	if err != nil {
		return err
	}
	newAcc, err := signerWritable(ctx, 1, "new account")
	if err != nil {
		return err
	}

	if *newAcc.Lamports > 0 || len(newAcc.Data) > 0 || newAcc.Owner != types.SystemProgramID {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, newAcc.Pubkey.String())
	}
	if inst.Space > syscall.MaxAccountDataSize {
		return fmt.Errorf("%w: %d bytes", ErrAccountDataTooLarge, inst.Space)
	}

	minimum := ctx.MinimumBalance(inst.Space)
	if inst.Lamports < uint64(minimum) {
		return fmt.Errorf("%w: need %d lamports for %d bytes", ErrAccountNotRentExempt, minimum, inst.Space)
	}

	if err := transfer(ctx, fundingAcc, newAcc, inst.Lamports); err != nil {
		return err
	}
	newAcc.Data = make([]byte, inst.Space)
	newAcc.Owner = inst.Owner

	_ = ctx.AddLog(fmt.Sprintf("Program log: created %s with %d bytes owned by %s",
		newAcc.Pubkey.String(), inst.Space, inst.Owner.String()))
	return nil
}

// handleAssign handles the Assign instruction.
// Account layout:
//
//	[0] account to assign (signer, writable)
func handleAssign(ctx *syscall.ExecutionContext, inst *AssignInstruction) error {
	acc, err := signerWritable(ctx, 0, "account to assign")
	if err != nil {
		return err
	}
	if acc.Owner == inst.Owner {
		return nil
	}
	if acc.Owner != types.SystemProgramID {
		return fmt.Errorf("%w: account must be owned by System Program", ErrInvalidAccountOwner)
	}
	acc.Owner = inst.Owner
	return nil
}

// handleTransfer handles the Transfer instruction.
// Account layout:
//
//	[0] source account (signer, writable)
//	[1] destination account (writable)
func handleTransfer(ctx *syscall.ExecutionContext, inst *TransferInstruction) error {
	sourceAcc, err := signerWritable(ctx, 0, "source account")
	if err != nil {
		return err
	}
	destAcc, err := ctx.GetAccountByIndex(1)
	if err != nil {
		return fmt.Errorf("%w: destination account", ErrNotEnoughAccountKeys)
	}
	if len(sourceAcc.Data) > 0 {
		return fmt.Errorf("%w: %s", ErrTransferFromAccountWithData, sourceAcc.Pubkey.String())
	}
	return transfer(ctx, sourceAcc, destAcc, inst.Lamports)
}

// handleAllocate handles the Allocate instruction.
// Account layout:
//
//	[0] account to allocate (signer, writable)
func handleAllocate(ctx *syscall.ExecutionContext, inst *AllocateInstruction) error {
	acc, err := signerWritable(ctx, 0, "account to allocate")
	if err != nil {
		return err
	}
	if len(acc.Data) > 0 || acc.Owner != types.SystemProgramID {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, acc.Pubkey.String())
	}
	if inst.Space > syscall.MaxAccountDataSize {
		return fmt.Errorf("%w: %d bytes", ErrAccountDataTooLarge, inst.Space)
	}
	acc.Data = make([]byte, inst.Space)
	return nil
}

func transfer(ctx *syscall.ExecutionContext, from, to *syscall.AccountInfo, lamports uint64) error {
	if from.Owner != types.SystemProgramID {
		return fmt.Errorf("%w: source %s", ErrInvalidAccountOwner, from.Pubkey.String())
	}
	if err := ctx.TransferLamports(from.Pubkey, to.Pubkey, lamports); err != nil {
		if *from.Lamports < lamports {
			return fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, lamports, *from.Lamports)
		}
		return err
	}
	return nil
}
