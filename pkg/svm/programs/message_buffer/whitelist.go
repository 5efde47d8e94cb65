package message_buffer

import (
	"fmt"

	"github.com/naviprotocol/pyth-crosschain/pkg/svm/syscall"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// IsAllowedProgramAuth fails with ErrUnauthorized unless auth is one of the
// whitelisted program authorities.
func (w *Whitelist) IsAllowedProgramAuth(auth types.Pubkey) error {
	for _, allowed := range w.AllowedPrograms {
		if allowed == auth {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not an allowed program authority", ErrUnauthorized, auth.String())
}

// ValidateAllowedPrograms rejects duplicate entries and lists that do not
// fit the whitelist account.
func ValidateAllowedPrograms(allowed []types.Pubkey) error {
	if len(allowed) > MaxAllowedPrograms {
		return fmt.Errorf("%w: %d, max %d", ErrTooManyAllowedPrograms, len(allowed), MaxAllowedPrograms)
	}
	seen := make(map[types.Pubkey]struct{}, len(allowed))
	for _, pk := range allowed {
		if _, ok := seen[pk]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateAllowedProgram, pk.String())
		}
		seen[pk] = struct{}{}
	}
	return nil
}

// loadWhitelist deserializes the whitelist account and checks that it is
// owned by the program and lives at the address derived from its stored bump.
func loadWhitelist(ctx *syscall.ExecutionContext, info *syscall.AccountInfo) (*Whitelist, error) {
	if err := ctx.CheckAccountOwnership(info.Pubkey, ctx.ProgramID); err != nil {
		return nil, fmt.Errorf("%w: whitelist: %v", ErrAccountOwnedByWrongProgram, err)
	}
	w, err := UnmarshalWhitelist(info.Data)
	if err != nil {
		return nil, err
	}
	expected, err := ctx.CreateProgramAddress([][]byte{[]byte(SeedMessage), []byte(SeedWhitelist), {w.Bump}})
	if err != nil || expected != info.Pubkey {
		return nil, fmt.Errorf("%w: whitelist %s", ErrConstraintSeeds, info.Pubkey.String())
	}
	return w, nil
}

// checkAdmin binds the signing admin account to the whitelist's admin.
func checkAdmin(w *Whitelist, admin *syscall.AccountInfo) error {
	if admin.Pubkey != w.Admin {
		return fmt.Errorf("%w: %s is not the whitelist admin", ErrUnauthorized, admin.Pubkey.String())
	}
	if !admin.IsSigner {
		return fmt.Errorf("%w: admin %s did not sign", ErrUnauthorized, admin.Pubkey.String())
	}
	return nil
}

func storeWhitelist(info *syscall.AccountInfo, w *Whitelist) error {
	if !info.IsWritable {
		return fmt.Errorf("%w: whitelist", ErrAccountNotMutable)
	}
	data, err := w.Marshal()
	if err != nil {
		return err
	}
	if len(info.Data) < len(data) {
		return fmt.Errorf("%w: whitelist account holds %d bytes", ErrAccountDidNotDeserialize, len(info.Data))
	}
	copy(info.Data, data)
	return nil
}
