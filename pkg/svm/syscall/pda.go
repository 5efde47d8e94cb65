package syscall

import (
	"errors"
	"fmt"

	solana "github.com/gagliardetto/solana-go"

	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// PDA constants
const (
	// MaxSeeds is the maximum number of seeds for PDA derivation
	MaxSeeds = 16
	// MaxSeedLen is the maximum length of a single seed
	MaxSeedLen = 32
)

// PDA errors
var (
	ErrInvalidSeeds   = errors.New("invalid seeds")
	ErrAddressOnCurve = errors.New("derived address lies on the ed25519 curve")
)

func validateSeeds(seeds [][]byte) error {
	if len(seeds) > MaxSeeds {
		return fmt.Errorf("%w: %d seeds, max %d", ErrInvalidSeeds, len(seeds), MaxSeeds)
	}
	for i, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return fmt.Errorf("%w: seed %d is %d bytes, max %d", ErrInvalidSeeds, i, len(seed), MaxSeedLen)
		}
	}
	return nil
}

// CreateProgramAddress derives SHA256(seeds || programID || "ProgramDerivedAddress")
// and rejects results that fall on the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, error) {
	if err := validateSeeds(seeds); err != nil {
		return types.ZeroPubkey, err
	}
	pda, err := solana.CreateProgramAddress(seeds, solana.PublicKeyFromBytes(programID[:]))
	if err != nil {
		return types.ZeroPubkey, fmt.Errorf("%w: %v", ErrAddressOnCurve, err)
	}
	return types.Pubkey(pda), nil
}

// FindProgramAddress searches bumps from 255 down for the first off-curve
// address and returns it with the bump.
func FindProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	// the bump seed takes one slot
	if len(seeds) >= MaxSeeds {
		return types.ZeroPubkey, 0, fmt.Errorf("%w: %d seeds leaves no room for a bump", ErrInvalidSeeds, len(seeds))
	}
	if err := validateSeeds(seeds); err != nil {
		return types.ZeroPubkey, 0, err
	}
	pda, bump, err := solana.FindProgramAddress(seeds, solana.PublicKeyFromBytes(programID[:]))
	if err != nil {
		return types.ZeroPubkey, 0, fmt.Errorf("%w: %v", ErrInvalidSeeds, err)
	}
	return types.Pubkey(pda), bump, nil
}

// CreateProgramAddress charges the compute meter and derives a PDA for the
// executing program.
func (ctx *ExecutionContext) CreateProgramAddress(seeds [][]byte) (types.Pubkey, error) {
	if err := ctx.ConsumeComputeUnits(CUCreatePDA); err != nil {
		return types.ZeroPubkey, err
	}
	return CreateProgramAddress(seeds, ctx.ProgramID)
}

// FindProgramAddress charges the compute meter and searches a PDA for the
// executing program.
func (ctx *ExecutionContext) FindProgramAddress(seeds [][]byte) (types.Pubkey, uint8, error) {
	if err := ctx.ConsumeComputeUnits(CUFindPDA); err != nil {
		return types.ZeroPubkey, 0, err
	}
	pda, bump, err := FindProgramAddress(seeds, ctx.ProgramID)
	if err != nil {
		return types.ZeroPubkey, 0, err
	}
	if err := ctx.ConsumeComputeUnits(uint64(255-bump) * CUFindPDAPerIter); err != nil {
		return types.ZeroPubkey, 0, err
	}
	return pda, bump, nil
}
