// Package system implements the subset of the System Program the message
// buffer program relies on: creating accounts, allocating data, assigning
// ownership and transferring lamports.
//
// All accounts are initially owned by the System Program until assigned
// to another program.
package system

import (
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/naviprotocol/pyth-crosschain/pkg/svm/syscall"
	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// SystemProgram implements the System Program.
type SystemProgram struct {
	// ProgramID is the System Program's public key
	ProgramID types.Pubkey
}

// New creates a new SystemProgram instance.
func New() *SystemProgram {
	return &SystemProgram{
		ProgramID: types.SystemProgramID,
	}
}

// Execute executes a System Program instruction. The first 4 bytes are a
// little-endian uint32 discriminator; the rest is instruction specific.
func (p *SystemProgram) Execute(ctx *syscall.ExecutionContext, instruction []byte) error {
	decoder := bin.NewBinDecoder(instruction)
	discriminator, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return fmt.Errorf("%w: missing discriminator", ErrInvalidInstructionData)
	}

	switch discriminator {
	case InstructionCreateAccount:
		var inst CreateAccountInstruction
		if err := inst.UnmarshalWithDecoder(decoder); err != nil {
			return fmt.Errorf("%w: CreateAccount: %v", ErrInvalidInstructionData, err)
		}
		return handleCreateAccount(ctx, &inst)

	case InstructionAssign:
		var inst AssignInstruction
		if err := inst.UnmarshalWithDecoder(decoder); err != nil {
			return fmt.Errorf("%w: Assign: %v", ErrInvalidInstructionData, err)
		}
		return handleAssign(ctx, &inst)

	case InstructionTransfer:
		var inst TransferInstruction
		if err := inst.UnmarshalWithDecoder(decoder); err != nil {
			return fmt.Errorf("%w: Transfer: %v", ErrInvalidInstructionData, err)
		}
		return handleTransfer(ctx, &inst)

	case InstructionAllocate:
		var inst AllocateInstruction
		if err := inst.UnmarshalWithDecoder(decoder); err != nil {
			return fmt.Errorf("%w: Allocate: %v", ErrInvalidInstructionData, err)
		}
		return handleAllocate(ctx, &inst)

	default:
		return fmt.Errorf("%w: unknown instruction %d", ErrInvalidInstructionData, discriminator)
	}
}

// GetProgramID returns the System Program's public key.
func (p *SystemProgram) GetProgramID() types.Pubkey {
	return p.ProgramID
}
