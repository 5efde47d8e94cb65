package message_buffer

import (
	"fmt"

	"github.com/naviprotocol/pyth-crosschain/pkg/svm/syscall"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// handleResizeBuffer grows or shrinks a message buffer to args.TargetSize.
//
// Growth is limited to syscall.MaxPermittedDataIncrease bytes per call and is
// funded by the admin up to the rent-exempt minimum of the target size.
// Resizing to the current size is allowed so that a buffer can be topped up
// after rent parameters change. Shrinking keeps any surplus lamports in the
// buffer.
func handleResizeBuffer(ctx *syscall.ExecutionContext, data []byte) error {
	var args ResizeBufferArgs
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

	targetSize := int(args.TargetSize)
	if targetSize < HeaderLen {
		return fmt.Errorf("%w: %d < %d", ErrMessageBufferTooSmall, targetSize, HeaderLen)
	}
	currentSize := len(buffer.Data)
	if err := CheckSizeDelta(currentSize, targetSize); err != nil {
		return err
	}

	if err := ctx.ConsumeComputeUnits(syscall.CUCreatePDA); err != nil {
		return err
	}
	if err := VerifyBufferAddress(ctx.ProgramID, args.AllowedProgramAuth, args.BaseAccountKey, args.BufferBump, buffer.Pubkey); err != nil {
		return err
	}

	if targetSize >= currentSize {
		delta := ReconcileFunding(types.Lamports(*buffer.Lamports), uint64(targetSize), ctx.Rent)
		if err := fundBuffer(ctx, accts.admin, buffer, delta); err != nil {
			return err
		}
	}
	return GrowOrShrink(ctx, buffer, targetSize)
}
