package message_buffer

import (
	"fmt"

	"github.com/naviprotocol/pyth-crosschain/pkg/svm/programs/system"
	"github.com/naviprotocol/pyth-crosschain/pkg/svm/syscall"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// FundingDelta is the outcome of reconciling a buffer's balance against the
// rent-exempt minimum of its target size.
type FundingDelta struct {
	Required  types.Lamports
	Shortfall types.Lamports
}

// NeedsTransfer reports whether lamports have to be moved into the buffer.
func (d FundingDelta) NeedsTransfer() bool {
	return d.Shortfall > 0
}

// ReconcileFunding computes the rent-exempt minimum for targetSize and how
// far currentBalance falls short of it. A balance at or above the minimum
// yields a zero shortfall; surplus is never reported for refund.
func ReconcileFunding(currentBalance types.Lamports, targetSize uint64, rent syscall.RentCalculator) FundingDelta {
	required := rent.MinimumBalance(targetSize)
	delta := FundingDelta{Required: required}
	if currentBalance < required {
		delta.Shortfall = required - currentBalance
	}
	return delta
}

// fundBuffer moves the shortfall from admin to buffer through the system
// program.
func fundBuffer(ctx *syscall.ExecutionContext, admin, buffer *syscall.AccountInfo, delta FundingDelta) error {
	if !delta.NeedsTransfer() {
		return nil
	}
	ix := system.NewTransferInstruction(admin.Pubkey, buffer.Pubkey, uint64(delta.Shortfall))
	if err := ctx.InvokeProgram(ix); err != nil {
		return fmt.Errorf("%w: %d lamports to %s: %w", ErrFundsTransferFailed, delta.Shortfall, buffer.Pubkey.String(), err)
	}
	ctx.Logf("Funded %s with %d lamports", buffer.Pubkey.String(), delta.Shortfall)
	return nil
}
