package message_buffer

import (
	"fmt"

	"github.com/naviprotocol/pyth-crosschain/pkg/svm/syscall"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

func bufferSeeds(allowedProgramAuth, baseAccountKey types.Pubkey) [][]byte {
	return [][]byte{allowedProgramAuth[:], []byte(SeedMessage), baseAccountKey[:]}
}

func bufferSignerSeeds(allowedProgramAuth, baseAccountKey types.Pubkey, bump uint8) [][]byte {
	return append(bufferSeeds(allowedProgramAuth, baseAccountKey), []byte{bump})
}

// VerifyBufferAddress re-derives the message buffer address from
// [allowedProgramAuth, "message", baseAccountKey, bump] under programID and
// fails with ErrInvalidPDA if the derivation lands on the curve or differs
// from claimed.
func VerifyBufferAddress(programID, allowedProgramAuth, baseAccountKey types.Pubkey, bump uint8, claimed types.Pubkey) error {
	expected, err := syscall.CreateProgramAddress(bufferSignerSeeds(allowedProgramAuth, baseAccountKey, bump), programID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPDA, err)
	}
	if expected != claimed {
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidPDA, expected.String(), claimed.String())
	}
	return nil
}
