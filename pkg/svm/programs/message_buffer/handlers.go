package message_buffer

import (
	"fmt"

	"github.com/naviprotocol/pyth-crosschain/pkg/svm/programs/system"
	"github.com/naviprotocol/pyth-crosschain/pkg/svm/syscall"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// handleInitialize creates the whitelist PDA.
// Account layout:
//
//	[0] payer (signer, writable)
//	[1] whitelist (writable)
//	[2] system program
func handleInitialize(ctx *syscall.ExecutionContext, data []byte) error {
	var args InitializeArgs
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	payer, err := accountAt(ctx, 0, "payer")
	if err != nil {
		return err
	}
	whitelistInfo, err := accountAt(ctx, 1, "whitelist")
	if err != nil {
		return err
	}
	systemProgram, err := accountAt(ctx, 2, "system program")
	if err != nil {
		return err
	}
	if !payer.IsSigner || !payer.IsWritable {
		return fmt.Errorf("%w: payer must sign and be writable", ErrAccountNotMutable)
	}
	if !whitelistInfo.IsWritable {
		return fmt.Errorf("%w: whitelist", ErrAccountNotMutable)
	}
	if systemProgram.Pubkey != types.SystemProgramID {
		return fmt.Errorf("%w: %s", ErrInvalidProgramID, systemProgram.Pubkey.String())
	}

	seeds := [][]byte{[]byte(SeedMessage), []byte(SeedWhitelist)}
	expected, bump, err := ctx.FindProgramAddress(seeds)
	if err != nil {
		return err
	}
	if expected != whitelistInfo.Pubkey {
		return fmt.Errorf("%w: whitelist expected at %s", ErrConstraintSeeds, expected.String())
	}

	lamports := uint64(ctx.MinimumBalance(WhitelistLen))
	ix := system.NewCreateAccountInstruction(payer.Pubkey, whitelistInfo.Pubkey, lamports, WhitelistLen, ctx.ProgramID)
	if err := ctx.InvokeProgramSigned(ix, [][][]byte{append(seeds, []byte{bump})}); err != nil {
		return err
	}

	return storeWhitelist(whitelistInfo, &Whitelist{Bump: bump, Admin: args.Admin})
}

// loadWhitelistForAdmin validates the account list of the admin-only
// whitelist instructions:
//
//	[0] admin (signer)
//	[1] whitelist (writable)
func loadWhitelistForAdmin(ctx *syscall.ExecutionContext) (*Whitelist, *syscall.AccountInfo, error) {
	admin, err := accountAt(ctx, 0, "admin")
	if err != nil {
		return nil, nil, err
	}
	whitelistInfo, err := accountAt(ctx, 1, "whitelist")
	if err != nil {
		return nil, nil, err
	}
	w, err := loadWhitelist(ctx, whitelistInfo)
	if err != nil {
		return nil, nil, err
	}
	if err := checkAdmin(w, admin); err != nil {
		return nil, nil, err
	}
	return w, whitelistInfo, nil
}

func handleSetAllowedPrograms(ctx *syscall.ExecutionContext, data []byte) error {
	var args SetAllowedProgramsArgs
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	w, info, err := loadWhitelistForAdmin(ctx)
	if err != nil {
		return err
	}
	if err := ValidateAllowedPrograms(args.AllowedPrograms); err != nil {
		return err
	}
	w.AllowedPrograms = args.AllowedPrograms
	ctx.Logf("Allowed programs: %d", len(w.AllowedPrograms))
	return storeWhitelist(info, w)
}

func handleUpdateWhitelistAdmin(ctx *syscall.ExecutionContext, data []byte) error {
	var args UpdateWhitelistAdminArgs
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	w, info, err := loadWhitelistForAdmin(ctx)
	if err != nil {
		return err
	}
	w.Admin = args.NewAdmin
	ctx.Logf("Whitelist admin: %s", w.Admin.String())
	return storeWhitelist(info, w)
}

// handleCreateBuffer creates and initializes a message buffer PDA of
// args.TargetSize bytes, funded by the admin. An address that already holds
// lamports but no data is topped up and adopted.
func handleCreateBuffer(ctx *syscall.ExecutionContext, data []byte) error {
	var args CreateBufferArgs
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	accts, err := loadBufferAccounts(ctx)
	if err != nil {
		return err
	}
	buffer, err := messageBuffer(ctx)
	if err != nil {
		return err
	}
	if err := accts.whitelist.IsAllowedProgramAuth(args.AllowedProgramAuth); err != nil {
		return err
	}

	targetSize := uint64(args.TargetSize)
	if targetSize < HeaderLen {
		return fmt.Errorf("%w: %d < %d", ErrMessageBufferTooSmall, targetSize, HeaderLen)
	}
	if targetSize > syscall.MaxPermittedDataIncrease {
		return fmt.Errorf("%w: %d > %d", ErrMessageBufferTooLarge, targetSize, syscall.MaxPermittedDataIncrease)
	}

	expected, bump, err := ctx.FindProgramAddress(bufferSeeds(args.AllowedProgramAuth, args.BaseAccountKey))
	if err != nil {
		return err
	}
	if expected != buffer.Pubkey {
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidPDA, expected.String(), buffer.Pubkey.String())
	}
	if len(buffer.Data) > 0 || buffer.Owner == ctx.ProgramID {
		return fmt.Errorf("%w: %s", ErrMessageBufferAlreadyInitialized, buffer.Pubkey.String())
	}

	signer := [][][]byte{bufferSignerSeeds(args.AllowedProgramAuth, args.BaseAccountKey, bump)}
	required := ctx.MinimumBalance(targetSize)
	if *buffer.Lamports == 0 {
		ix := system.NewCreateAccountInstruction(accts.admin.Pubkey, buffer.Pubkey, uint64(required), targetSize, ctx.ProgramID)
		if err := ctx.InvokeProgramSigned(ix, signer); err != nil {
			return fmt.Errorf("%w: %w", ErrFundsTransferFailed, err)
		}
	} else {
		delta := ReconcileFunding(types.Lamports(*buffer.Lamports), targetSize, ctx.Rent)
		if err := fundBuffer(ctx, accts.admin, buffer, delta); err != nil {
			return err
		}
		if err := ctx.InvokeProgramSigned(system.NewAllocateInstruction(buffer.Pubkey, targetSize), signer); err != nil {
			return fmt.Errorf("%w: %w", ErrReallocFailed, err)
		}
		if err := ctx.InvokeProgramSigned(system.NewAssignInstruction(buffer.Pubkey, ctx.ProgramID), signer); err != nil {
			return err
		}
	}

	if err := NewMessageBufferHeader(bump).Store(buffer.Data); err != nil {
		return err
	}
	ctx.Logf("Created message buffer %s with %d bytes", buffer.Pubkey.String(), targetSize)
	return nil
}

// handleDeleteBuffer closes a message buffer: all of its lamports go to the
// admin and its data is released. The runtime purges zero-lamport accounts.
func handleDeleteBuffer(ctx *syscall.ExecutionContext, data []byte) error {
	var args DeleteBufferArgs
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	accts, err := loadBufferAccounts(ctx)
	if err != nil {
		return err
	}
	buffer, err := messageBuffer(ctx)
	if err != nil {
		return err
	}
	if err := accts.whitelist.IsAllowedProgramAuth(args.AllowedProgramAuth); err != nil {
		return err
	}
	if err := CheckDiscriminator(buffer.Data, MessageBufferDiscriminator); err != nil {
		return err
	}
	if err := VerifyBufferAddress(ctx.ProgramID, args.AllowedProgramAuth, args.BaseAccountKey, args.BufferBump, buffer.Pubkey); err != nil {
		return err
	}

	lamports := *buffer.Lamports
	if err := ctx.TransferLamports(buffer.Pubkey, accts.admin.Pubkey, lamports); err != nil {
		return fmt.Errorf("%w: %w", ErrFundsTransferFailed, err)
	}
	if err := ctx.ReallocAccountData(buffer.Pubkey, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrReallocFailed, err)
	}
	ctx.Logf("Deleted message buffer %s, returned %d lamports", buffer.Pubkey.String(), lamports)
	return nil
}
