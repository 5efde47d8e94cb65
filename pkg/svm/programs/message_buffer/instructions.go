package message_buffer

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/naviprotocol/pyth-crosschain/pkg/svm/syscall"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// Instruction names
const (
	InstructionInitialize           = "initialize"
	InstructionSetAllowedPrograms   = "set_allowed_programs"
	InstructionUpdateWhitelistAdmin = "update_whitelist_admin"
	InstructionCreateBuffer         = "create_buffer"
	InstructionResizeBuffer         = "resize_buffer"
	InstructionDeleteBuffer         = "delete_buffer"
)

// InstructionDiscriminator returns sha256("global:<name>")[:8].
func InstructionDiscriminator(name string) [DiscriminatorLen]byte {
	var d [DiscriminatorLen]byte
	sum := sha256.Sum256([]byte("global:" + name))
	copy(d[:], sum[:DiscriminatorLen])
	return d
}

type InitializeArgs struct {
	Admin types.Pubkey
}

type SetAllowedProgramsArgs struct {
	AllowedPrograms []types.Pubkey
}

type UpdateWhitelistAdminArgs struct {
	NewAdmin types.Pubkey
}

type CreateBufferArgs struct {
	AllowedProgramAuth types.Pubkey
	BaseAccountKey     types.Pubkey
	TargetSize         uint32
}

type ResizeBufferArgs struct {
	AllowedProgramAuth types.Pubkey
	BaseAccountKey     types.Pubkey
	BufferBump         uint8
	TargetSize         uint32
}

type DeleteBufferArgs struct {
	AllowedProgramAuth types.Pubkey
	BaseAccountKey     types.Pubkey
	BufferBump         uint8
}

// encodeInstruction writes the discriminator of name followed by the borsh
// encoding of args, which is passed by value.
func encodeInstruction(name string, args interface{}) ([]byte, error) {
	disc := InstructionDiscriminator(name)
	buf := bytes.NewBuffer(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
		return nil, fmt.Errorf("encoding %s args: %w", name, err)
	}
	return buf.Bytes(), nil
}

func decodeArgs(data []byte, args interface{}) error {
	if err := bin.NewBorshDecoder(data).Decode(args); err != nil {
		return fmt.Errorf("%w: %v", ErrInstructionDidNotDeserialize, err)
	}
	return nil
}

// WhitelistAddress returns the whitelist PDA of programID and its bump.
func WhitelistAddress(programID types.Pubkey) (types.Pubkey, uint8, error) {
	return syscall.FindProgramAddress([][]byte{[]byte(SeedMessage), []byte(SeedWhitelist)}, programID)
}

// BufferAddress returns the message buffer PDA owned by allowedProgramAuth
// for baseAccountKey, and its bump.
func BufferAddress(programID, allowedProgramAuth, baseAccountKey types.Pubkey) (types.Pubkey, uint8, error) {
	return syscall.FindProgramAddress(bufferSeeds(allowedProgramAuth, baseAccountKey), programID)
}

// NewInitializeInstruction creates the whitelist, paid for by payer.
func NewInitializeInstruction(programID, payer, admin types.Pubkey) (types.Instruction, error) {
	whitelist, _, err := WhitelistAddress(programID)
	if err != nil {
		return types.Instruction{}, err
	}
	data, err := encodeInstruction(InstructionInitialize, InitializeArgs{Admin: admin})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(payer, true, true),
			types.NewAccountMeta(whitelist, false, true),
			types.NewAccountMeta(types.SystemProgramID, false, false),
		},
		Data: data,
	}, nil
}

// NewSetAllowedProgramsInstruction replaces the whitelist's allowed programs.
func NewSetAllowedProgramsInstruction(programID, admin types.Pubkey, allowed []types.Pubkey) (types.Instruction, error) {
	return newWhitelistAdminInstruction(programID, admin, InstructionSetAllowedPrograms,
		SetAllowedProgramsArgs{AllowedPrograms: allowed})
}

// NewUpdateWhitelistAdminInstruction hands the whitelist to newAdmin.
func NewUpdateWhitelistAdminInstruction(programID, admin, newAdmin types.Pubkey) (types.Instruction, error) {
	return newWhitelistAdminInstruction(programID, admin, InstructionUpdateWhitelistAdmin,
		UpdateWhitelistAdminArgs{NewAdmin: newAdmin})
}

func newWhitelistAdminInstruction(programID, admin types.Pubkey, name string, args interface{}) (types.Instruction, error) {
	whitelist, _, err := WhitelistAddress(programID)
	if err != nil {
		return types.Instruction{}, err
	}
	data, err := encodeInstruction(name, args)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(admin, true, true),
			types.NewAccountMeta(whitelist, false, true),
		},
		Data: data,
	}, nil
}

// NewCreateBufferInstruction creates the buffer PDA of
// (allowedProgramAuth, baseAccountKey) with targetSize bytes.
func NewCreateBufferInstruction(programID, admin, allowedProgramAuth, baseAccountKey types.Pubkey, targetSize uint32) (types.Instruction, error) {
	buffer, _, err := BufferAddress(programID, allowedProgramAuth, baseAccountKey)
	if err != nil {
		return types.Instruction{}, err
	}
	args := CreateBufferArgs{
		AllowedProgramAuth: allowedProgramAuth,
		BaseAccountKey:     baseAccountKey,
		TargetSize:         targetSize,
	}
	return newBufferInstruction(programID, admin, buffer, InstructionCreateBuffer, args)
}

// NewResizeBufferInstruction resizes buffer to targetSize. The buffer
// address is passed explicitly so callers can supply any account.
func NewResizeBufferInstruction(programID, admin, buffer types.Pubkey, args ResizeBufferArgs) (types.Instruction, error) {
	return newBufferInstruction(programID, admin, buffer, InstructionResizeBuffer, args)
}

// NewDeleteBufferInstruction closes buffer and returns its lamports to admin.
func NewDeleteBufferInstruction(programID, admin, buffer types.Pubkey, args DeleteBufferArgs) (types.Instruction, error) {
	return newBufferInstruction(programID, admin, buffer, InstructionDeleteBuffer, args)
}

func newBufferInstruction(programID, admin, buffer types.Pubkey, name string, args interface{}) (types.Instruction, error) {
	whitelist, _, err := WhitelistAddress(programID)
	if err != nil {
		return types.Instruction{}, err
	}
	data, err := encodeInstruction(name, args)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(whitelist, false, false),
			types.NewAccountMeta(admin, true, true),
			types.NewAccountMeta(types.SystemProgramID, false, false),
			types.NewAccountMeta(buffer, false, true),
		},
		Data: data,
	}, nil
}
