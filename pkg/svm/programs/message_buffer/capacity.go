package message_buffer

import (
	"fmt"

	"github.com/naviprotocol/pyth-crosschain/pkg/svm/syscall"
)

// CheckSizeDelta fails with ErrTargetSizeDeltaExceeded when growing from
// currentSize to targetSize exceeds the permitted per-instruction increase.
// Shrinking is never limited.
func CheckSizeDelta(currentSize, targetSize int) error {
	delta := targetSize - currentSize
	if delta > syscall.MaxPermittedDataIncrease {
		return fmt.Errorf("%w: %d -> %d grows by %d, max %d",
			ErrTargetSizeDeltaExceeded, currentSize, targetSize, delta, syscall.MaxPermittedDataIncrease)
	}
	return nil
}

// GrowOrShrink resizes the account's data to exactly targetSize bytes. The
// unchanged prefix is preserved and grown bytes are zeroed.
func GrowOrShrink(ctx *syscall.ExecutionContext, account *syscall.AccountInfo, targetSize int) error {
	currentSize := len(account.Data)
	if err := CheckSizeDelta(currentSize, targetSize); err != nil {
		return err
	}
	if err := ctx.ReallocAccountData(account.Pubkey, targetSize); err != nil {
		return fmt.Errorf("%w: %s to %d bytes: %w", ErrReallocFailed, account.Pubkey.String(), targetSize, err)
	}
	if targetSize != currentSize {
		ctx.Logf("Resized %s from %d to %d bytes", account.Pubkey.String(), currentSize, targetSize)
	}
	return nil
}
